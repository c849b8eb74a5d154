// Package testutil provides shared fixtures for backend tests.
package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"
	"testing"

	"fableweaver/internal/cache"
	"fableweaver/internal/database"
	"fableweaver/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq atomic.Uint64

// NewDB opens a private in-memory SQLite database with every persistent model migrated.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(database.PersistentModels()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db
}

// NewRedis starts a miniredis server and installs it as the cache client
// until the test ends.
func NewRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	prev := cache.GetClient()
	cache.SetClient(client)
	t.Cleanup(func() {
		cache.SetClient(prev)
		_ = client.Close()
	})
	return mr, client
}

// CreateUser inserts a user with a unique username derived from prefix.
func CreateUser(t testing.TB, db *gorm.DB, prefix string) *models.User {
	t.Helper()
	n := seq.Add(1)
	hash, _ := bcrypt.GenerateFromPassword([]byte("Password123!"), bcrypt.MinCost)
	u := &models.User{
		Username: fmt.Sprintf("%s%d", prefix, n),
		Email:    fmt.Sprintf("%s%d@example.com", prefix, n),
		Password: string(hash),
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// CreateNovel inserts a public, approved novel owned by authorID.
func CreateNovel(t testing.TB, db *gorm.DB, authorID uint, title, genre string) *models.Novel {
	t.Helper()
	n := &models.Novel{
		AuthorID:         authorID,
		Title:            title,
		Genre:            genre,
		Status:           models.NovelStatusOngoing,
		ModerationStatus: models.ModerationApproved,
		IsPublic:         true,
	}
	if err := db.Omit("Author").Create(n).Error; err != nil {
		t.Fatalf("create novel: %v", err)
	}
	return n
}

// CreateCharacter inserts an active public character owned by creatorID.
func CreateCharacter(t testing.TB, db *gorm.DB, creatorID uint, name string) *models.CharacterProfile {
	t.Helper()
	c := &models.CharacterProfile{
		CreatorID:   creatorID,
		Name:        name,
		Personality: "curious",
		Background:  "unknown",
		IsPublic:    true,
		IsActive:    true,
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("create character: %v", err)
	}
	return c
}

// TinyPNG encodes a w x h gradient PNG.
func TinyPNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 120, A: 255})
		}
	}
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
