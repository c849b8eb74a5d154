package seed

import (
	"context"
	"fmt"
	"log/slog"

	"fableweaver/internal/database"
	"fableweaver/internal/models"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// Options size the demo data set.
type Options struct {
	Users              int
	NovelsPerUser      int
	ChaptersPerNovel   int
	CharactersPerNovel int
	MaxDays            int
	// Seed fixes the fake data generator; zero uses the clock.
	Seed       int64
	SkipBcrypt bool
	Clean      bool
}

// DefaultOptions is a small library that exercises every screen.
func DefaultOptions() Options {
	return Options{
		Users:              12,
		NovelsPerUser:      2,
		ChaptersPerNovel:   4,
		CharactersPerNovel: 2,
		MaxDays:            90,
	}
}

// Summary counts the rows Seed created.
type Summary struct {
	Users       int `json:"users"`
	Novels      int `json:"novels"`
	Chapters    int `json:"chapters"`
	Characters  int `json:"characters"`
	Reviews     int `json:"reviews"`
	Friendships int `json:"friendships"`
	Threads     int `json:"threads"`
}

// Seed populates db with demo content. Every fourth novel waits in the
// moderation queue so the admin screens have work to show.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (*Summary, error) {
	if opts.Users < 2 {
		return nil, fmt.Errorf("seed needs at least 2 users, got %d", opts.Users)
	}
	slog.InfoContext(ctx, "seeding database",
		slog.Int("users", opts.Users),
		slog.Int("novels_per_user", opts.NovelsPerUser),
		slog.Int("chapters_per_novel", opts.ChaptersPerNovel))

	if opts.Clean {
		if err := Clear(ctx, db); err != nil {
			return nil, err
		}
	}

	f := NewFactory(db, opts, opts.Seed)
	sum := &Summary{}

	users := make([]models.User, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		u, err := f.CreateUser(ctx)
		if err != nil {
			return sum, fmt.Errorf("create user: %w", err)
		}
		users = append(users, *u)
	}
	sum.Users = len(users)

	for i := range users {
		next := &users[(i+1)%len(users)]
		status := lo.Ternary(i%3 == 2, models.FriendshipStatusPending, models.FriendshipStatusAccepted)
		if err := f.CreateFriendship(ctx, &users[i], next, status); err != nil {
			return sum, fmt.Errorf("create friendship: %w", err)
		}
		sum.Friendships++
	}

	n := 0
	for i := range users {
		author := &users[i]
		for j := 0; j < opts.NovelsPerUser; j++ {
			pending := n%4 == 3
			n++
			novel, err := f.CreateNovel(ctx, author, func(nv *models.Novel) {
				if pending {
					nv.ModerationStatus = models.ModerationPending
				}
			})
			if err != nil {
				return sum, fmt.Errorf("create novel: %w", err)
			}
			sum.Novels++

			chapters, err := f.CreateChapters(ctx, novel, opts.ChaptersPerNovel)
			if err != nil {
				return sum, fmt.Errorf("create chapters for novel %d: %w", novel.ID, err)
			}
			sum.Chapters += len(chapters)

			for k := 0; k < opts.CharactersPerNovel; k++ {
				character, err := f.CreateCharacter(ctx, author)
				if err != nil {
					return sum, fmt.Errorf("create character: %w", err)
				}
				role := lo.Ternary(k == 0, models.CharacterRoleProtagonist, models.CharacterRoleSupporting)
				if err := f.CastCharacter(ctx, novel, character, role, chapters); err != nil {
					return sum, fmt.Errorf("cast character %d: %w", character.ID, err)
				}
				sum.Characters++
			}

			if pending {
				continue
			}
			reader := &users[(i+j+1)%len(users)]
			if _, err := f.CreateReview(ctx, reader, novel); err != nil {
				return sum, fmt.Errorf("create review: %w", err)
			}
			sum.Reviews++
		}
	}

	for i := 0; i < len(users); i += 3 {
		repliers := lo.Filter(users, func(u models.User, k int) bool { return k != i && k%4 == 1 })
		if _, err := f.CreateThread(ctx, &users[i], repliers); err != nil {
			return sum, fmt.Errorf("create thread: %w", err)
		}
		sum.Threads++
	}

	slog.InfoContext(ctx, "seeding completed",
		slog.Int("users", sum.Users),
		slog.Int("novels", sum.Novels),
		slog.Int("chapters", sum.Chapters),
		slog.Int("characters", sum.Characters))
	return sum, nil
}

// Clear deletes every row of the schema-managed tables, children first.
func Clear(ctx context.Context, db *gorm.DB) error {
	slog.WarnContext(ctx, "clearing existing data")
	all := database.PersistentModels()
	tx := db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for i := len(all) - 1; i >= 0; i-- {
		if err := tx.Delete(all[i]).Error; err != nil {
			return fmt.Errorf("clear %T: %w", all[i], err)
		}
	}
	return nil
}
