package database

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"zanhu/internal/config"
	"zanhu/internal/middleware"

	"gorm.io/gorm"
)

// Schema modes: hybrid runs SQL migrations and, outside production, AutoMigrate.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// schemaPlan is what ApplySchema will do for a given config.
type schemaPlan struct {
	Mode     string
	SQL      bool
	Auto     bool
	Reckless bool // auto mode explicitly allowed in a production-like env
}

// SchemaStatus describes what ApplySchema would do against the current database.
type SchemaStatus struct {
	Mode               string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	AppliedVersions    []int
	PendingMigrations  []Migration
}

var prodLikeEnvs = []string{"production", "prod", "staging", "stage"}

func planSchema(cfg *config.Config) (schemaPlan, error) {
	plan := schemaPlan{Mode: strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))}
	if plan.Mode == "" {
		plan.Mode = SchemaModeHybrid
	}
	prodLike := slices.Contains(prodLikeEnvs, strings.ToLower(strings.TrimSpace(cfg.Env)))

	// The embedded SQL targets postgres; sqlite databases are built from the models.
	if driverName(cfg) == "sqlite" {
		plan.Auto = true
		return plan, nil
	}

	switch plan.Mode {
	case SchemaModeSQL:
		plan.SQL = true
	case SchemaModeHybrid:
		plan.SQL, plan.Auto = true, !prodLike
	case SchemaModeAuto:
		if prodLike && !cfg.DBAutoMigrateAllowDestructive {
			return schemaPlan{}, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.Auto = true
		plan.Reckless = prodLike
	default:
		return schemaPlan{}, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", plan.Mode)
	}
	return plan, nil
}

// ApplySchema brings the database schema up to date according to DB_SCHEMA_MODE.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := planSchema(cfg)
	if err != nil {
		return err
	}

	if plan.SQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}

	if plan.Auto {
		if plan.Reckless {
			middleware.Logger.Warn("AutoMigrate running in a production-like environment",
				slog.String("env", cfg.Env))
		}
		middleware.Logger.Info("running gorm AutoMigrate",
			slog.String("mode", plan.Mode), slog.Int("models", len(PersistentModels())))
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	return nil
}

// GetSchemaStatus reports the plan plus applied and pending SQL migrations.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := planSchema(cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		Mode:               plan.Mode,
		Environment:        cfg.Env,
		WillRunSQL:         plan.SQL,
		WillRunAutoMigrate: plan.Auto,
	}
	if !plan.SQL {
		return status, nil
	}

	applied, err := AppliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}
	status.AppliedVersions = applied
	for _, m := range GetMigrations() {
		if !slices.Contains(applied, m.Version) {
			status.PendingMigrations = append(status.PendingMigrations, m)
		}
	}
	return status, nil
}
