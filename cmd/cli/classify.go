package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prohub/nexus/backend/internal/moderation"
	"github.com/spf13/cobra"
)

var rulesFile string

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Test texts against the moderation rules",
}

var classifyLocalCmd = &cobra.Command{
	Use:   "local [text]",
	Short: "Classify text with the local rule set (reads stdin without an argument)",
	Long: `Runs the submission classifier and the strict scanner on the given text
without contacting a server. Use --rules to try a YAML rule file before deploying it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := argOrStdin(args)
		if err != nil {
			return err
		}

		rules, err := moderation.LoadRules(rulesFile)
		if err != nil {
			return err
		}
		classifier, err := moderation.NewClassifier(rules)
		if err != nil {
			return err
		}
		scanner, err := moderation.NewStrictScanner(rules)
		if err != nil {
			return err
		}

		verdict := classifier.Classify(text)
		scan := scanner.Scan(text)

		if output == "json" {
			body, err := json.Marshal(map[string]any{"classifier": verdict, "scanner": scan})
			if err != nil {
				return err
			}
			printJSON(body)
			return nil
		}

		printVerdict("classifier", verdict.IsClean, verdict.Reason)
		printVerdict("scanner", !scan.Prohibited, scan.Reason)
		if len(scan.AdCategories) > 0 {
			fmt.Printf("  ad signals: %s\n", strings.Join(scan.AdCategories, ", "))
		}
		return nil
	},
}

var classifyRemoteCmd = &cobra.Command{
	Use:   "remote [text]",
	Short: "Classify text on the server, applying your role's bypass",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := argOrStdin(args)
		if err != nil {
			return err
		}

		var result struct {
			IsClean  bool   `json:"is_clean"`
			Reason   string `json:"reason"`
			Bypassed bool   `json:"bypassed"`
		}
		body, err := call("POST", "/api/v1/moderation/classify", map[string]string{"text": text}, &result)
		if err != nil {
			return err
		}

		if output == "json" {
			printJSON(body)
			return nil
		}
		printVerdict("server", result.IsClean, result.Reason)
		if result.Bypassed {
			fmt.Println("  (screening bypassed for your role)")
		}
		return nil
	},
}

func init() {
	classifyLocalCmd.Flags().StringVar(&rulesFile, "rules", os.Getenv("MODERATION_RULES_FILE"), "YAML rule file merged over the defaults")

	classifyCmd.AddCommand(classifyLocalCmd)
	classifyCmd.AddCommand(classifyRemoteCmd)
}

func argOrStdin(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}

func printVerdict(source string, isClean bool, reason string) {
	if isClean {
		fmt.Printf("%-10s clean\n", source+":")
		return
	}
	fmt.Printf("%-10s flagged (%s)\n", source+":", reason)
}
