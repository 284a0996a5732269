// Package main provides admin management utilities for Zanhu.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"zanhu/internal/config"
	"zanhu/internal/database"
	"zanhu/internal/models"
	"zanhu/internal/repository"
	"zanhu/internal/service"

	"gorm.io/gorm"
)

// main promotes or demotes users by username, or lists the current admins.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage:")
		fmt.Println("  go run ./cmd/admin promote <username>   - Promote user to admin")
		fmt.Println("  go run ./cmd/admin demote <username>    - Demote user from admin")
		fmt.Println("  go run ./cmd/admin list-admins          - List all admins")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	users := repository.NewUserRepository(db)
	svc := service.NewUserService(users)

	switch command := os.Args[1]; command {
	case "promote", "demote":
		if len(os.Args) < 3 {
			fmt.Printf("Usage: go run ./cmd/admin %s <username>\n", command)
			os.Exit(1)
		}
		if err := setAdmin(ctx, users, svc, os.Args[2], command == "promote"); err != nil {
			log.Fatal(err)
		}

	case "list-admins":
		listAdmins(db)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func setAdmin(ctx context.Context, users repository.UserRepository, svc *service.UserService, username string, isAdmin bool) error {
	user, err := users.GetByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if user == nil {
		return errors.New("user " + username + " not found")
	}

	if user.IsAdmin == isAdmin {
		fmt.Printf("User %s (ID: %d) already has is_admin=%t\n", user.Username, user.ID, isAdmin)
		return nil
	}

	if _, err := svc.SetAdmin(ctx, user.ID, isAdmin); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	verb := "demoted"
	if isAdmin {
		verb = "promoted"
	}
	fmt.Printf("✅ Successfully %s %s (ID: %d)\n", verb, user.Username, user.ID)
	return nil
}

func listAdmins(db *gorm.DB) {
	var admins []models.User
	if err := db.Where("is_admin = ?", true).Order("username").Find(&admins).Error; err != nil {
		log.Fatalf("Failed to fetch admins: %v", err)
	}

	if len(admins) == 0 {
		fmt.Println("No admins found in the system")
		return
	}

	fmt.Println("\n📋 Current Admins:")
	fmt.Println("─────────────────────────────────────")
	for _, admin := range admins {
		fmt.Printf("ID: %d | Username: %s | Email: %s\n", admin.ID, admin.Username, admin.Email)
	}
	fmt.Println("─────────────────────────────────────")
}
