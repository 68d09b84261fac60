package main

import (
	"fmt"
	"log"
	"os"

	"github.com/prohub/nexus/backend/internal/config"
	"github.com/prohub/nexus/backend/internal/database"
)

func main() {
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "up":
		runMigrationsUp()
	case "status":
		showStatus()
	default:
		fmt.Println("Usage: migrate [up|status]")
		fmt.Println("  up     - Create or update every table and index")
		fmt.Println("  status - List tables that do not exist yet")
		os.Exit(1)
	}
}

func connect() {
	dbConfig, environment := config.LoadDatabase()

	log.Printf("Connecting to %s database...", dbConfig.Driver)
	if err := database.Initialize(dbConfig, environment); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Database connected")
}

func runMigrationsUp() {
	connect()
	defer database.Close()

	log.Println("Running migrations...")
	if err := database.Migrate(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("All migrations completed successfully")
}

func showStatus() {
	connect()
	defer database.Close()

	migrator := database.DB.Migrator()
	pending := 0
	for _, model := range database.AllModels() {
		if !migrator.HasTable(model) {
			fmt.Printf("  missing: %T\n", model)
			pending++
		}
	}
	if pending == 0 {
		fmt.Println("Schema is up to date")
		return
	}
	fmt.Printf("%d table(s) pending, run: migrate up\n", pending)
}
