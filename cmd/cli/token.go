package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prohub/nexus/backend/internal/auth"
	"github.com/prohub/nexus/backend/internal/models"
	"github.com/spf13/cobra"
)

var (
	mintUserID   string
	mintUsername string
	mintRole     string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Work with session tokens",
}

var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Sign a token with the server's JWT_SECRET (development only)",
	Long: `Signs a session token locally. The server reads roles from the database on
every request, so the --role flag only fills the claim; it grants nothing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			return fmt.Errorf("JWT_SECRET is not set")
		}
		if mintUserID == "" {
			return fmt.Errorf("--user-id is required")
		}

		role := models.UserRole(mintRole)
		if !role.Valid() {
			return fmt.Errorf("unknown role %q", mintRole)
		}

		token, expiresAt, err := auth.NewService([]byte(secret)).GenerateToken(&models.User{
			ID:       mintUserID,
			Username: mintUsername,
			Role:     role,
		})
		if err != nil {
			return err
		}

		if output == "json" {
			fmt.Printf("{\"token\":%q,\"expires_at\":%q}\n", token, expiresAt.Format(time.RFC3339))
			return nil
		}
		fmt.Println(token)
		fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Local().Format(time.DateTime))
		return nil
	},
}

func init() {
	mintCmd.Flags().StringVar(&mintUserID, "user-id", "", "User id placed in the token")
	mintCmd.Flags().StringVar(&mintUsername, "username", "", "Username placed in the token")
	mintCmd.Flags().StringVar(&mintRole, "role", string(models.RoleMember), "Role claim")

	tokenCmd.AddCommand(mintCmd)
}
