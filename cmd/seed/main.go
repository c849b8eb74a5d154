// Command seed fills the database with demo writers, novels, and threads.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"fableweaver/internal/config"
	"fableweaver/internal/database"
	"fableweaver/internal/middleware"
	"fableweaver/internal/seed"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	defaults := seed.DefaultOptions()
	opts := defaults
	flag.IntVar(&opts.Users, "users", defaults.Users, "number of users to create")
	flag.IntVar(&opts.NovelsPerUser, "novels", defaults.NovelsPerUser, "novels per user")
	flag.IntVar(&opts.ChaptersPerNovel, "chapters", defaults.ChaptersPerNovel, "chapters per novel")
	flag.IntVar(&opts.CharactersPerNovel, "characters", defaults.CharactersPerNovel, "characters cast per novel")
	flag.IntVar(&opts.MaxDays, "days", defaults.MaxDays, "spread creation dates over this many days")
	flag.Int64Var(&opts.Seed, "seed", 0, "random seed (0 uses the clock)")
	flag.BoolVar(&opts.SkipBcrypt, "skip-bcrypt", false, "hash demo passwords at minimum cost")
	flag.BoolVar(&opts.Clean, "clean", true, "clear existing data before seeding")
	flag.Parse()

	if err := run(opts); err != nil {
		slog.Error("seeding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(opts seed.Options) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	middleware.ConfigureLogger(cfg.Env, cfg.LogLevel)
	if cfg.IsProduction() {
		return errors.New("refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	slog.Info("seeding database",
		slog.Int("users", opts.Users),
		slog.Int("novels_per_user", opts.NovelsPerUser),
		slog.Bool("clean", opts.Clean))

	summary, err := seed.Seed(context.Background(), db, opts)
	if err != nil {
		return err
	}

	slog.Info("seeding complete",
		slog.Int("users", summary.Users),
		slog.Int("novels", summary.Novels),
		slog.Int("chapters", summary.Chapters),
		slog.Int("characters", summary.Characters),
		slog.Int("reviews", summary.Reviews),
		slog.Int("friendships", summary.Friendships),
		slog.Int("threads", summary.Threads))
	fmt.Printf("All demo users have the password %q\n", seed.DemoPassword)
	return nil
}
