package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"fableweaver/internal/config"

	"gorm.io/gorm"
)

// Schema modes selected by DB_SCHEMA_MODE.
const (
	// SchemaModeHybrid runs the SQL migrations, then AutoMigrate outside production.
	SchemaModeHybrid = "hybrid"
	// SchemaModeSQL runs only the numbered SQL migrations.
	SchemaModeSQL = "sql"
	// SchemaModeAuto runs only GORM AutoMigrate over PersistentModels.
	SchemaModeAuto = "auto"
)

// SchemaStatus describes what ApplySchema would do and where the SQL history stands.
type SchemaStatus struct {
	Mode               string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	Migrations         []MigrationState
}

// Pending returns the migrations that have not been applied yet.
func (s *SchemaStatus) Pending() []Migration {
	var out []Migration
	for _, state := range s.Migrations {
		if !state.Applied() {
			out = append(out, state.Migration)
		}
	}
	return out
}

// Lines renders one line per migration for the migrate status command.
func (s *SchemaStatus) Lines() []string {
	lines := make([]string, 0, len(s.Migrations))
	for _, state := range s.Migrations {
		if state.Applied() {
			lines = append(lines, fmt.Sprintf("%s applied %s", state, state.AppliedAt.UTC().Format("2006-01-02 15:04:05")))
		} else {
			lines = append(lines, fmt.Sprintf("%s pending", state))
		}
	}
	return lines
}

func isProdLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

func normalizedSchemaMode(cfg *config.Config) string {
	mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))
	if mode == "" {
		return SchemaModeHybrid
	}
	return mode
}

// schemaPolicy decides which of the two schema paths run. AutoMigrate never
// runs against a production-like database unless it was asked for explicitly.
func schemaPolicy(cfg *config.Config) (runSQL bool, runAuto bool, err error) {
	prodLike := isProdLikeEnv(cfg.Env)

	switch mode := normalizedSchemaMode(cfg); mode {
	case SchemaModeSQL:
		return true, false, nil
	case SchemaModeAuto:
		if prodLike && !cfg.DBAutoMigrateAllowDestructive {
			return false, false, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		return false, true, nil
	case SchemaModeHybrid:
		return true, !prodLike, nil
	default:
		return false, false, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", mode)
	}
}

// ApplySchema brings the database up to date according to cfg.DBSchemaMode.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	runSQL, runAuto, err := schemaPolicy(cfg)
	if err != nil {
		return err
	}

	if runSQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}

	if runAuto {
		mode := normalizedSchemaMode(cfg)
		if isProdLikeEnv(cfg.Env) {
			slog.WarnContext(ctx, "running AutoMigrate against a production-like database", slog.String("env", cfg.Env))
		}
		slog.InfoContext(ctx, "running AutoMigrate", slog.String("mode", mode), slog.Int("models", len(PersistentModels())))
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	return nil
}

// GetSchemaStatus reports the schema policy for cfg and, when SQL migrations
// are part of it, the state of every embedded migration.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	runSQL, runAuto, err := schemaPolicy(cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		Mode:               normalizedSchemaMode(cfg),
		Environment:        cfg.Env,
		WillRunSQL:         runSQL,
		WillRunAutoMigrate: runAuto,
	}
	if !runSQL {
		return status, nil
	}

	states, err := NewMigrator(db, GetMigrations()).Status(ctx)
	if err != nil {
		return nil, err
	}
	status.Migrations = states
	return status, nil
}
