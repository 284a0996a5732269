// Package bootstrap wires the process-wide database and redis handles.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"zanhu/internal/cache"
	"zanhu/internal/config"
	"zanhu/internal/database"
	"zanhu/internal/models"
	"zanhu/internal/seed"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo populates the "demo" preset when the news table is empty.
	SeedDemo bool
}

// InitRuntime connects to DB and Redis and runs the development bootstrap steps.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := ensureDevRootAdmin(cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	if opts.SeedDemo {
		if err := seedDemo(context.Background(), db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo content: %w", err)
		}
	}

	return db, r, nil
}

func seedDemo(ctx context.Context, db *gorm.DB) error {
	var existing int64
	if err := db.WithContext(ctx).Model(&models.News{}).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		slog.Info("demo seed skipped, news already present", "news", existing)
		return nil
	}

	seeder := seed.NewSeeder(db, seed.Options{})
	if err := seeder.ApplyPreset("demo"); err != nil {
		return err
	}
	sum, err := seeder.Run(ctx)
	if err != nil {
		return err
	}
	slog.Info("demo content seeded",
		"users", sum.Users,
		"news", sum.News,
		"articles", sum.Articles,
		"questions", sum.Questions,
	)
	return nil
}

func ensureDevRootAdmin(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	username := strings.TrimSpace(cfg.DevRootUsername)
	if username == "" {
		username = "zanhu_root"
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = "root@zanhu.local"
	}
	password := cfg.DevRootPassword
	if password == "" {
		return errors.New("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash root password: %w", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var root models.User
		findErr := tx.Where("username = ?", username).First(&root).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			root = models.User{
				Username: username,
				Email:    email,
				Password: string(hashedPassword),
				IsAdmin:  true,
			}
			return tx.Create(&root).Error
		case findErr != nil:
			return findErr
		}

		updates := map[string]any{"is_admin": true}
		if cfg.DevRootForceCredentials {
			updates["email"] = email
			updates["password"] = string(hashedPassword)
		}
		return tx.Model(&models.User{}).Where("id = ?", root.ID).Updates(updates).Error
	})
	if err != nil {
		return err
	}

	slog.Info("development root admin ensured", "username", username, "email", email)
	return nil
}
