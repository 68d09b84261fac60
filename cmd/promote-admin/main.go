package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/prohub/nexus/backend/internal/config"
	"github.com/prohub/nexus/backend/internal/database"
	"github.com/prohub/nexus/backend/internal/models"
	"github.com/prohub/nexus/backend/internal/repository"
)

func main() {
	email := flag.String("email", "", "Email address of the user to change")
	role := flag.String("role", string(models.RoleModerator), "Role to grant: newbie, member, pro, moderator or admin")
	revoke := flag.Bool("revoke", false, "Reset the user to member")
	flag.Parse()

	if *email == "" {
		fmt.Println("Usage: go run cmd/promote-admin/main.go -email=user@example.com [-role=admin]")
		fmt.Println("       go run cmd/promote-admin/main.go -email=user@example.com -revoke")
		return
	}

	target := models.UserRole(*role)
	if *revoke {
		target = models.RoleMember
	}
	if !target.Valid() {
		log.Fatalf("Unknown role %q", *role)
	}

	dbConfig, environment := config.LoadDatabase()
	if err := database.Initialize(dbConfig, environment); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	users := repository.NewUserRepository(database.DB)

	user, err := users.GetUserByEmail(ctx, *email)
	if err != nil {
		fmt.Printf("User not found: %s\n", *email)
		return
	}

	if user.Role == target {
		fmt.Printf("User %s already has role %s\n", user.Username, target)
		return
	}

	if err := users.SetRole(ctx, user.ID, target); err != nil {
		fmt.Printf("Failed to set role: %v\n", err)
		return
	}

	fmt.Printf("Role of %s (%s) changed: %s -> %s\n", user.Username, user.Email, user.Role, target)
	fmt.Printf("  User ID: %s\n", user.ID)
	fmt.Println("  Roles are read on every request; no new login is needed")
}
