package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var presencePage string

var presenceCmd = &cobra.Command{
	Use:   "presence",
	Short: "Inspect who is online",
}

var onlineCmd = &cobra.Command{
	Use:   "online",
	Short: "Send one heartbeat and print the online counts and visible users",
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			Counts struct {
				Users  int `json:"users"`
				Guests int `json:"guests"`
				Robots int `json:"robots"`
				Total  int `json:"total"`
			} `json:"counts"`
			OnlineUsers []struct {
				Username    string    `json:"username"`
				UserType    string    `json:"user_type"`
				CurrentPage string    `json:"current_page"`
				LastSeenAt  time.Time `json:"last_seen_at"`
			} `json:"online_users"`
		}
		payload := map[string]string{
			"session_id":   "cli-" + uuid.NewString(),
			"current_page": presencePage,
		}
		body, err := call("POST", "/api/v1/presence/heartbeat", payload, &result)
		if err != nil {
			return err
		}
		if output == "json" {
			printJSON(body)
			return nil
		}

		c := result.Counts
		fmt.Printf("Online: %d (users %d, guests %d, robots %d)\n", c.Total, c.Users, c.Guests, c.Robots)
		for _, u := range result.OnlineUsers {
			name := u.Username
			if name == "" {
				name = "(" + u.UserType + ")"
			}
			fmt.Printf("  %-20s %-30s %s ago\n", name, u.CurrentPage, time.Since(u.LastSeenAt).Round(time.Second))
		}
		return nil
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Print the heartbeat schedule advertised to clients",
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := call("GET", "/api/v1/presence/schedule", nil, nil)
		if err != nil {
			return err
		}
		printJSON(body)
		return nil
	},
}

func init() {
	onlineCmd.Flags().StringVar(&presencePage, "page", "/cli", "Page reported with the heartbeat")

	presenceCmd.AddCommand(onlineCmd)
	presenceCmd.AddCommand(scheduleCmd)
}
