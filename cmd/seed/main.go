package main

import (
	"fmt"
	"log"
	"os"

	"github.com/prohub/nexus/backend/internal/config"
	"github.com/prohub/nexus/backend/internal/database"
	"github.com/prohub/nexus/backend/internal/seed"
)

func main() {
	command := "dev"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "dev":
		run("Seeding development database", func(s *seed.Seeder) error { return s.SeedDev() })
	case "test":
		run("Seeding test database", func(s *seed.Seeder) error { return s.SeedTest() })
	case "clean":
		run("Cleaning seed data", func(s *seed.Seeder) error { return s.Clean() })
	default:
		fmt.Println("Usage: seed [dev|test|clean]")
		fmt.Println("  dev   - Seed development database with users, topics, hidden content and live sessions")
		fmt.Println("  test  - Seed one user per role and a handful of topics")
		fmt.Println("  clean - Remove all forum data (use with caution)")
		os.Exit(1)
	}
}

func run(banner string, fn func(*seed.Seeder) error) {
	log.Printf("%s...", banner)

	dbConfig, environment := config.LoadDatabase()
	if environment == "production" && os.Getenv("SEED_FORCE") != "true" {
		log.Fatal("Refusing to seed a production database, set SEED_FORCE=true to override")
	}

	if err := database.Initialize(dbConfig, environment); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Database connected")

	if err := fn(seed.NewSeeder(database.DB)); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Println("Done")
}
