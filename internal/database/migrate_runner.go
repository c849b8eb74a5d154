package database

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"gorm.io/gorm"
)

// MigrationLog records one applied migration.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	AppliedAt time.Time `gorm:"autoCreateTime;index"`
}

// TableName returns the database table name for MigrationLog.
func (MigrationLog) TableName() string {
	return "migration_logs"
}

// MigrationState pairs a known migration with when it was applied.
type MigrationState struct {
	Migration
	AppliedAt *time.Time
}

// Applied reports whether the migration is recorded in migration_logs.
func (s MigrationState) Applied() bool {
	return s.AppliedAt != nil
}

// Migrator applies and reverts an ordered migration list against one database.
// Each script runs in the same transaction as its migration_logs row, so a
// failing script leaves neither the schema change nor the record behind.
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
}

// NewMigrator builds a Migrator over migrations, which must be in version order.
func NewMigrator(db *gorm.DB, migrations []Migration) *Migrator {
	return &Migrator{db: db, migrations: migrations}
}

func (m *Migrator) ensureLogTable(ctx context.Context) error {
	if err := m.db.WithContext(ctx).AutoMigrate(&MigrationLog{}); err != nil {
		return fmt.Errorf("ensure migration_logs: %w", err)
	}
	return nil
}

func (m *Migrator) appliedLogs(ctx context.Context) ([]MigrationLog, error) {
	var logs []MigrationLog
	if err := m.db.WithContext(ctx).Order("version ASC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("read migration_logs: %w", err)
	}
	return logs, nil
}

// Status lists every known migration with its applied time, oldest first.
func (m *Migrator) Status(ctx context.Context) ([]MigrationState, error) {
	if err := m.ensureLogTable(ctx); err != nil {
		return nil, err
	}
	logs, err := m.appliedLogs(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateAppliedVersions(logs, m.migrations); err != nil {
		return nil, err
	}

	appliedAt := make(map[int]time.Time, len(logs))
	for _, l := range logs {
		appliedAt[l.Version] = l.AppliedAt
	}
	states := make([]MigrationState, 0, len(m.migrations))
	for _, mig := range m.migrations {
		state := MigrationState{Migration: mig}
		if at, ok := appliedAt[mig.Version]; ok {
			state.AppliedAt = &at
		}
		states = append(states, state)
	}
	return states, nil
}

// Up applies every pending migration in order and returns the ones it ran.
func (m *Migrator) Up(ctx context.Context) ([]Migration, error) {
	states, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}

	var ran []Migration
	for _, state := range states {
		if state.Applied() {
			slog.DebugContext(ctx, "migration already applied", slog.String("migration", state.String()))
			continue
		}
		slog.InfoContext(ctx, "applying migration", slog.String("migration", state.String()))
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(state.UpScript).Error; err != nil {
				return err
			}
			return tx.Create(&MigrationLog{Version: state.Version, Name: state.Name}).Error
		})
		if err != nil {
			return ran, fmt.Errorf("apply migration %s: %w", state.Migration, err)
		}
		ran = append(ran, state.Migration)
	}
	return ran, nil
}

// Rollback reverts version, which must be the newest applied migration:
// 000001_init cannot be reverted while 000002_novel_search still indexes its tables.
func (m *Migrator) Rollback(ctx context.Context, version int) (*Migration, error) {
	states, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(states, func(s MigrationState) bool { return s.Version == version })
	if idx < 0 {
		return nil, fmt.Errorf("migration version %06d not found", version)
	}
	target := states[idx]
	if !target.Applied() {
		return nil, fmt.Errorf("migration %s has not been applied", target.Migration)
	}
	for _, later := range states[idx+1:] {
		if later.Applied() {
			return nil, fmt.Errorf("migration %s is still applied; roll it back before %s", later.Migration, target.Migration)
		}
	}

	slog.InfoContext(ctx, "rolling back migration", slog.String("migration", target.String()))
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(target.DownScript).Error; err != nil {
			return err
		}
		return tx.Where("version = ?", version).Delete(&MigrationLog{}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("roll back migration %s: %w", target.Migration, err)
	}
	return &target.Migration, nil
}

// RollbackLatest reverts the newest applied migration. It returns nil when
// nothing is applied.
func (m *Migrator) RollbackLatest(ctx context.Context) (*Migration, error) {
	states, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}
	for i := len(states) - 1; i >= 0; i-- {
		if states[i].Applied() {
			return m.Rollback(ctx, states[i].Version)
		}
	}
	return nil, nil
}

// RunMigrations applies all pending embedded migrations.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	ran, err := NewMigrator(db, GetMigrations()).Up(ctx)
	if err != nil {
		return err
	}
	if len(ran) > 0 {
		slog.InfoContext(ctx, "sql migrations applied", slog.Int("count", len(ran)), slog.String("latest", ran[len(ran)-1].String()))
	}
	return nil
}

// RollbackMigration reverts one embedded migration by version.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	_, err := NewMigrator(db, GetMigrations()).Rollback(ctx, version)
	return err
}

func validateAppliedVersions(applied []MigrationLog, known []Migration) error {
	versions := make(map[int]struct{}, len(known))
	for _, m := range known {
		versions[m.Version] = struct{}{}
	}

	var unknown []string
	for _, l := range applied {
		if _, ok := versions[l.Version]; !ok {
			unknown = append(unknown, fmt.Sprintf("%06d_%s", l.Version, l.Name))
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	return fmt.Errorf(
		"migration_logs contains versions this build does not know: %s (deploy the newer build or reset the development database)",
		strings.Join(unknown, ", "),
	)
}
