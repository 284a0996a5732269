package database

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"zanhu/internal/middleware"

	"gorm.io/gorm"
)

// MigrationLog is one row of the applied-migrations ledger.
type MigrationLog struct {
	Version   int    `gorm:"primaryKey;autoIncrement:false"`
	Name      string `gorm:"size:255;not null"`
	Checksum  string `gorm:"size:16;not null;default:''"`
	AppliedAt time.Time
}

func (MigrationLog) TableName() string {
	return "migration_logs"
}

// MigrationStore reads and writes the migration ledger.
type MigrationStore interface {
	Applied(ctx context.Context) ([]MigrationLog, error)
	Apply(ctx context.Context, m Migration) error
	Revert(ctx context.Context, m Migration) error
}

type migrationStore struct {
	db *gorm.DB
}

func NewMigrationStore(db *gorm.DB) MigrationStore {
	return &migrationStore{db: db}
}

func (s *migrationStore) Applied(ctx context.Context) ([]MigrationLog, error) {
	if !s.db.Migrator().HasTable(&MigrationLog{}) {
		return nil, nil
	}
	var logs []MigrationLog
	if err := s.db.WithContext(ctx).Order("version ASC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("read migration ledger: %w", err)
	}
	return logs, nil
}

// Apply runs the up script and records it in one transaction.
func (s *migrationStore) Apply(ctx context.Context, m Migration) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.Up).Error; err != nil {
			return fmt.Errorf("apply %s: %w", m, err)
		}
		entry := MigrationLog{Version: m.Version, Name: m.Name, Checksum: m.Checksum, AppliedAt: time.Now().UTC()}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("record %s: %w", m, err)
		}
		return nil
	})
}

// Revert runs the down script and drops the ledger row in one transaction.
func (s *migrationStore) Revert(ctx context.Context, m Migration) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.Down).Error; err != nil {
			return fmt.Errorf("revert %s: %w", m, err)
		}
		return tx.Where("version = ?", m.Version).Delete(&MigrationLog{}).Error
	})
}

// AppliedVersions lists the versions recorded in the ledger.
func AppliedVersions(ctx context.Context, db *gorm.DB) ([]int, error) {
	logs, err := NewMigrationStore(db).Applied(ctx)
	if err != nil {
		return nil, err
	}
	versions := make([]int, 0, len(logs))
	for _, l := range logs {
		versions = append(versions, l.Version)
	}
	return versions, nil
}

// RunMigrations applies every embedded migration that is not in the ledger yet.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	return runMigrations(ctx, db, migrations)
}

func runMigrations(ctx context.Context, db *gorm.DB, set []Migration) error {
	if err := db.WithContext(ctx).AutoMigrate(&MigrationLog{}); err != nil {
		return fmt.Errorf("ensure migration ledger: %w", err)
	}

	store := NewMigrationStore(db)
	applied, err := store.Applied(ctx)
	if err != nil {
		return err
	}
	if err := verifyLedger(applied, set); err != nil {
		return err
	}

	done := make(map[int]bool, len(applied))
	for _, l := range applied {
		done[l.Version] = true
	}

	for _, m := range set {
		if done[m.Version] {
			continue
		}
		middleware.Logger.Info("applying migration", slog.String("migration", m.String()))
		if err := store.Apply(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// verifyLedger refuses to continue when the database knows versions this
// binary does not, or when an applied script was edited afterwards.
func verifyLedger(applied []MigrationLog, set []Migration) error {
	known := make(map[int]Migration, len(set))
	for _, m := range set {
		known[m.Version] = m
	}

	var unknown, edited []string
	for _, l := range applied {
		m, ok := known[l.Version]
		switch {
		case !ok:
			unknown = append(unknown, fmt.Sprintf("%06d", l.Version))
		case l.Checksum != "" && l.Checksum != m.Checksum:
			edited = append(edited, m.String())
		}
	}
	slices.Sort(unknown)

	if len(unknown) > 0 {
		return fmt.Errorf("migration_logs contains versions unknown to this build: %s", strings.Join(unknown, ", "))
	}
	if len(edited) > 0 {
		return fmt.Errorf("applied migrations were modified afterwards: %s", strings.Join(edited, ", "))
	}
	return nil
}

// RollbackMigration reverts a single applied migration.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	m := GetMigrationByVersion(version)
	if m == nil {
		return fmt.Errorf("migration version %d not found", version)
	}

	applied, err := AppliedVersions(ctx, db)
	if err != nil {
		return err
	}
	if !slices.Contains(applied, version) {
		return fmt.Errorf("migration %s has not been applied", m)
	}

	middleware.Logger.Info("rolling back migration", slog.String("migration", m.String()))
	return NewMigrationStore(db).Revert(ctx, *m)
}
