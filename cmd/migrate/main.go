// Command migrate runs schema operations for the backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"fableweaver/internal/config"
	"fableweaver/internal/database"
	"fableweaver/internal/middleware"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	if err := run(); err != nil {
		slog.Error("migrate failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate/main.go <up|auto|status|down [version]>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	middleware.ConfigureLogger(cfg.Env, cfg.LogLevel)

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	ctx := context.Background()
	cmd := strings.ToLower(strings.TrimSpace(flag.Arg(0)))
	switch cmd {
	case "up":
		ran, err := database.NewMigrator(db, database.GetMigrations()).Up(ctx)
		if err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
		if len(ran) == 0 {
			slog.Info("schema already up to date")
		}
		for _, m := range ran {
			slog.Info("applied migration", slog.String("migration", m.String()))
		}
	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return fmt.Errorf("auto schema apply failed: %w", err)
		}
		slog.Info("automigrations applied")
	case "status":
		status, err := database.GetSchemaStatus(ctx, db, cfg)
		if err != nil {
			return fmt.Errorf("schema status failed: %w", err)
		}
		slog.Info("schema status",
			slog.String("mode", status.Mode),
			slog.String("env", status.Environment),
			slog.Bool("run_sql", status.WillRunSQL),
			slog.Bool("run_auto", status.WillRunAutoMigrate),
			slog.Int("pending", len(status.Pending())))
		for _, line := range status.Lines() {
			fmt.Println(line)
		}
	case "down":
		migrator := database.NewMigrator(db, database.GetMigrations())
		var reverted *database.Migration
		if flag.NArg() < 2 {
			reverted, err = migrator.RollbackLatest(ctx)
		} else {
			version, convErr := strconv.Atoi(flag.Arg(1))
			if convErr != nil {
				return fmt.Errorf("invalid version %q: %w", flag.Arg(1), convErr)
			}
			reverted, err = migrator.Rollback(ctx, version)
		}
		if err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		if reverted == nil {
			slog.Info("no applied migrations to roll back")
			break
		}
		slog.Info("rolled back migration", slog.String("migration", reverted.String()))
	default:
		return usage()
	}

	return nil
}
