package main

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

var (
	modReason  string
	listStatus string
	listSearch string
)

var moderationCmd = &cobra.Command{
	Use:     "mod",
	Aliases: []string{"moderation"},
	Short:   "Hide, restore and audit forum content (moderators only)",
}

var hideCmd = &cobra.Command{
	Use:         "hide <type> <id>",
	Short:       "Hide a topic, post, resource or video",
	Args:        cobra.ExactArgs(2),
	Annotations: map[string]string{requiresToken: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if modReason == "" {
			return fmt.Errorf("--reason is required to hide content")
		}
		return moderate(args[0], args[1], "hide", map[string]string{"reason": modReason})
	},
}

var unhideCmd = &cobra.Command{
	Use:         "unhide <type> <id>",
	Short:       "Restore hidden content",
	Args:        cobra.ExactArgs(2),
	Annotations: map[string]string{requiresToken: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var payload any
		if modReason != "" {
			payload = map[string]string{"reason": modReason}
		}
		return moderate(args[0], args[1], "unhide", payload)
	},
}

var historyCmd = &cobra.Command{
	Use:         "history <type> <id>",
	Short:       "Show the moderation history of an item, newest first",
	Args:        cobra.ExactArgs(2),
	Annotations: map[string]string{requiresToken: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			History []struct {
				Action        string    `json:"action"`
				Reason        *string   `json:"reason"`
				ModeratorName string    `json:"moderator_name"`
				CreatedAt     time.Time `json:"created_at"`
			} `json:"history"`
		}
		body, err := call("GET", itemPath(args[0], args[1])+"/history", nil, &result)
		if err != nil {
			return err
		}
		if output == "json" {
			printJSON(body)
			return nil
		}

		if len(result.History) == 0 {
			fmt.Println("No moderation actions recorded")
			return nil
		}
		for _, entry := range result.History {
			moderator := entry.ModeratorName
			if moderator == "" {
				moderator = "system"
			}
			reason := "-"
			if entry.Reason != nil {
				reason = *entry.Reason
			}
			fmt.Printf("%s  %-7s %-16s %s\n", entry.CreatedAt.Local().Format(time.DateTime), entry.Action, moderator, reason)
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:         "list <type>",
	Short:       "List content for the moderation queue",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{requiresToken: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		query := url.Values{}
		if listStatus != "" {
			query.Set("status", listStatus)
		}
		if listSearch != "" {
			query.Set("search", listSearch)
		}
		query.Set("preview", "80")

		var result struct {
			Items []struct {
				ID       string `json:"id"`
				Title    string `json:"title"`
				Body     string `json:"body"`
				IsHidden bool   `json:"is_hidden"`
			} `json:"items"`
		}
		body, err := call("GET", "/api/v1/moderation/"+url.PathEscape(args[0])+"?"+query.Encode(), nil, &result)
		if err != nil {
			return err
		}
		if output == "json" {
			printJSON(body)
			return nil
		}

		for _, item := range result.Items {
			state := "visible"
			if item.IsHidden {
				state = "hidden"
			}
			label := item.Title
			if label == "" {
				label = item.Body
			}
			fmt.Printf("%s  %-7s %s\n", item.ID, state, label)
		}
		fmt.Printf("%d item(s)\n", len(result.Items))
		return nil
	},
}

func init() {
	hideCmd.Flags().StringVar(&modReason, "reason", "", "Reason shown to the author")
	unhideCmd.Flags().StringVar(&modReason, "reason", "", "Optional reason for the audit log")
	listCmd.Flags().StringVar(&listStatus, "status", "all", "all, hidden or active")
	listCmd.Flags().StringVar(&listSearch, "search", "", "Substring matched against title and body")

	moderationCmd.AddCommand(hideCmd)
	moderationCmd.AddCommand(unhideCmd)
	moderationCmd.AddCommand(historyCmd)
	moderationCmd.AddCommand(listCmd)
}

func itemPath(contentType, id string) string {
	return "/api/v1/moderation/" + url.PathEscape(contentType) + "/" + url.PathEscape(id)
}

func moderate(contentType, id, action string, payload any) error {
	body, err := call("POST", itemPath(contentType, id)+"/"+action, payload, nil)
	if err != nil {
		return err
	}
	if output == "json" {
		printJSON(body)
		return nil
	}
	fmt.Printf("✓ %s %s: %s done\n", contentType, id, action)
	return nil
}
