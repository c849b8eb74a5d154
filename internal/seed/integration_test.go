//go:build integration

package seed

import (
	"context"
	"net/url"
	"os"
	"strings"
	"testing"

	"fableweaver/internal/config"
	"fableweaver/internal/database"
	"fableweaver/internal/models"
)

func parseDatabaseURLToConfig(dsn string) (*config.Config, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}
	password := ""
	if u.User != nil {
		password, _ = u.User.Password()
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	dbname := strings.TrimPrefix(u.Path, "/")
	cfg := &config.Config{
		DBHost:       host,
		DBPort:       port,
		DBUser:       u.User.Username(),
		DBPassword:   password,
		DBName:       dbname,
		DBSSLMode:    "disable",
		Env:          "test",
		DBSchemaMode: "auto",
	}
	return cfg, nil
}

func TestIntegration_SeedPostgres(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration seed test")
	}
	cfg, err := parseDatabaseURLToConfig(dsn)
	if err != nil {
		t.Fatalf("failed parse dsn: %v", err)
	}
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: true})
	if err != nil {
		t.Fatalf("db connect failed: %v", err)
	}

	opts := DefaultOptions()
	opts.SkipBcrypt = true
	opts.Clean = true
	sum, err := Seed(context.Background(), db, opts)
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	var listed int64
	err = db.Model(&models.Novel{}).
		Where("moderation_status = ? AND is_public = ?", models.ModerationApproved, true).
		Count(&listed).Error
	if err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if listed == 0 || listed >= int64(sum.Novels) {
		t.Fatalf("expected some but not all of %d novels approved, got %d", sum.Novels, listed)
	}
}
