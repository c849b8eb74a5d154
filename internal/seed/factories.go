// Package seed fills a development database with demo readers, novels and
// characters.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fableweaver/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "Password123!"

var (
	demoGenres          = []string{"fantasy", "scifi", "mystery", "romance", "horror", "adventure", "historical"}
	demoTags            = []string{"magic", "slow burn", "found family", "heist", "space", "dragons", "detective", "time travel", "court intrigue", "survival"}
	demoPersonalities   = []string{"stubborn", "cheerful", "secretive", "reckless", "gentle", "sardonic", "anxious", "loyal"}
	demoThreadTopics    = []string{"general", "writing", "feedback", "worldbuilding", "recommendations"}
	demoEmotionalStates = []string{"hopeful", "grieving", "furious", "calm", "uncertain"}
)

// Factory builds domain rows with fake content and persists them.
type Factory struct {
	db    *gorm.DB
	faker *gofakeit.Faker
	opts  Options
	hash  string
}

// NewFactory binds a factory to db. A zero seed uses the clock.
func NewFactory(db *gorm.DB, opts Options, seed int64) *Factory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{db: db, faker: gofakeit.New(seed), opts: opts}
}

func (f *Factory) password() (string, error) {
	if f.hash != "" {
		return f.hash, nil
	}
	cost := bcrypt.DefaultCost
	if f.opts.SkipBcrypt {
		cost = bcrypt.MinCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), cost)
	if err != nil {
		return "", fmt.Errorf("hash demo password: %w", err)
	}
	f.hash = string(hashed)
	return f.hash, nil
}

// createdAt spreads timestamps over the last MaxDays days.
func (f *Factory) createdAt() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.faker.Number(0, maxDays*24*60)) * time.Minute
	return time.Now().Add(-back)
}

func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	hash, err := f.password()
	if err != nil {
		return nil, err
	}
	username := fmt.Sprintf("%s%d", strings.ToLower(f.faker.FirstName()), f.faker.Number(100, 99999))
	user := &models.User{
		Username:  username,
		Email:     username + "@example.com",
		Password:  hash,
		Bio:       f.faker.Sentence(10),
		CreatedAt: f.createdAt(),
	}
	for _, override := range overrides {
		override(user)
	}
	if err := f.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateNovel stores an approved public novel unless an override says otherwise.
func (f *Factory) CreateNovel(ctx context.Context, author *models.User, overrides ...func(*models.Novel)) (*models.Novel, error) {
	title := strings.TrimSuffix(f.faker.Sentence(f.faker.Number(2, 5)), ".")
	novel := &models.Novel{
		AuthorID:         author.ID,
		Title:            title,
		Description:      f.faker.Paragraph(1, 3, 12, " "),
		Genre:            f.faker.RandomString(demoGenres),
		Tags:             []string{f.faker.RandomString(demoTags), f.faker.RandomString(demoTags)},
		Status:           models.NovelStatusOngoing,
		ModerationStatus: models.ModerationApproved,
		IsPublic:         true,
		ViewCount:        int64(f.faker.Number(0, 5000)),
		CreatedAt:        f.createdAt(),
	}
	if novel.Tags[0] == novel.Tags[1] {
		novel.Tags = novel.Tags[:1]
	}
	for _, override := range overrides {
		override(novel)
	}
	if err := f.db.WithContext(ctx).Omit("Author").Create(novel).Error; err != nil {
		return nil, err
	}
	return novel, nil
}

// CreateChapters appends n chapters after the novel's current last one and
// keeps chapter_count in step.
func (f *Factory) CreateChapters(ctx context.Context, novel *models.Novel, n int) ([]models.Chapter, error) {
	if n <= 0 {
		return nil, nil
	}
	chapters := make([]models.Chapter, 0, n)
	for i := 1; i <= n; i++ {
		content := f.faker.Paragraph(f.faker.Number(3, 6), 5, 14, "\n\n")
		chapters = append(chapters, models.Chapter{
			NovelID:       novel.ID,
			ChapterNumber: novel.ChapterCount + i,
			Title:         strings.TrimSuffix(f.faker.Sentence(3), "."),
			Content:       content,
			Summary:       f.faker.Sentence(12),
			WordCount:     len(strings.Fields(content)),
			IsAIGenerated: f.faker.Number(0, 3) == 0,
		})
	}
	err := f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&chapters).Error; err != nil {
			return err
		}
		return tx.Model(&models.Novel{}).Where("id = ?", novel.ID).
			Update("chapter_count", gorm.Expr("chapter_count + ?", n)).Error
	})
	if err != nil {
		return nil, err
	}
	novel.ChapterCount += n
	return chapters, nil
}

func (f *Factory) CreateCharacter(ctx context.Context, creator *models.User, overrides ...func(*models.CharacterProfile)) (*models.CharacterProfile, error) {
	character := &models.CharacterProfile{
		CreatorID:   creator.ID,
		Name:        f.faker.FirstName() + " " + f.faker.LastName(),
		Description: f.faker.Sentence(12),
		Personality: f.faker.RandomString(demoPersonalities) + " and " + f.faker.RandomString(demoPersonalities),
		Background:  f.faker.Paragraph(1, 2, 12, " "),
		Appearance:  f.faker.Sentence(8),
		IsPublic:    true,
		IsActive:    true,
	}
	for _, override := range overrides {
		override(character)
	}
	if err := f.db.WithContext(ctx).Create(character).Error; err != nil {
		return nil, err
	}
	return character, nil
}

// CastCharacter links a character to a novel and records an arc entry for
// each of the given chapters.
func (f *Factory) CastCharacter(ctx context.Context, novel *models.Novel, character *models.CharacterProfile, role string, chapters []models.Chapter) error {
	return f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		link := models.NovelCharacter{NovelID: novel.ID, CharacterID: character.ID, Role: role}
		if err := tx.Omit("Character").Create(&link).Error; err != nil {
			return err
		}
		for _, ch := range chapters {
			progression := models.CharacterProgression{
				NovelID:        novel.ID,
				CharacterID:    character.ID,
				ChapterID:      ch.ID,
				ChapterNumber:  ch.ChapterNumber,
				Development:    f.faker.Sentence(10),
				EmotionalState: f.faker.RandomString(demoEmotionalStates),
				Relationships:  f.faker.Sentence(6),
			}
			if err := tx.Omit("Character").Create(&progression).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// CreateReview leaves a rated comment on a novel.
func (f *Factory) CreateReview(ctx context.Context, reader *models.User, novel *models.Novel) (*models.NovelComment, error) {
	comment := &models.NovelComment{
		NovelID: novel.ID,
		UserID:  reader.ID,
		Content: f.faker.Sentence(f.faker.Number(6, 18)),
		Rating:  f.faker.Number(2, 5),
	}
	if err := f.db.WithContext(ctx).Omit("User").Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

func (f *Factory) CreateFriendship(ctx context.Context, requester, addressee *models.User, status models.FriendshipStatus) error {
	friendship := &models.Friendship{
		RequesterID: requester.ID,
		AddresseeID: addressee.ID,
		Status:      status,
	}
	return f.db.WithContext(ctx).Omit("Requester", "Addressee").Create(friendship).Error
}

// CreateThread opens a forum thread with a few replies from others.
func (f *Factory) CreateThread(ctx context.Context, author *models.User, repliers []models.User) (*models.Thread, error) {
	thread := &models.Thread{
		UserID:    author.ID,
		Title:     strings.TrimSuffix(f.faker.Question(), "?") + "?",
		Content:   f.faker.Paragraph(1, 3, 10, " "),
		Category:  f.faker.RandomString(demoThreadTopics),
		CreatedAt: f.createdAt(),
	}
	err := f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("User").Create(thread).Error; err != nil {
			return err
		}
		for _, r := range repliers {
			reply := models.ThreadComment{ThreadID: thread.ID, UserID: r.ID, Content: f.faker.Sentence(9)}
			if err := tx.Omit("User").Create(&reply).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return thread, nil
}
