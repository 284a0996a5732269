// Command main runs the database seeder for Zanhu.
package main

import (
	"context"
	"flag"
	"log"

	"zanhu/internal/config"
	"zanhu/internal/database"
	"zanhu/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numItems := flag.Int("items", 200, "Number of news, articles and questions to create")
	mix := flag.String("mix", "default", "Content mix: default, social, knowledge or qa")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	fast := flag.Bool("fast", false, "Store plain text passwords (dev only, logins will fail)")
	preset := flag.String("preset", "", "Apply a volume preset (small, demo, large, stress)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	distribution, ok := seed.Distributions[*mix]
	if !ok {
		log.Fatalf("Unknown mix %q", *mix)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db, seed.Options{
		NumUsers:    *numUsers,
		NumItems:    *numItems,
		Mix:         distribution,
		ShouldClean: *shouldClean,
		SkipBcrypt:  *fast,
	})
	if *preset != "" {
		log.Printf("Applying preset: %s (ignoring volume flags)\n", *preset)
		if err := s.ApplyPreset(*preset); err != nil {
			log.Fatalf("❌ %v", err)
		}
	}

	if _, err := s.Run(context.Background()); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("✨ All done! Your database is now populated with test data.")
	log.Printf("📧 All test users have the password: %s (log in as \"demo\")", seed.DefaultPassword)
}
