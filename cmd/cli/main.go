package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prohub/nexus/backend/internal/config"
	"github.com/prohub/nexus/backend/internal/telemetry"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

var (
	authToken string
	apiURL    string = "http://localhost:8787"
	output    string = "text" // "text" or "json"

	tracerProvider *sdktrace.TracerProvider
)

// commands annotated with this key call authenticated endpoints
const requiresToken = "requires-token"

var rootCmd = &cobra.Command{
	Use:   "nexusctl",
	Short: "Nexus CLI - moderate the forum and inspect presence",
	Long: `nexusctl talks to a Nexus backend: hide and restore content, read the
moderation history, watch who is online and test texts against the local rules.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if authToken == "" {
			authToken = os.Getenv("NEXUS_TOKEN")
		}
		if authToken == "" && cmd.Annotations[requiresToken] == "true" {
			fmt.Fprintf(os.Stderr, "Error: NEXUS_TOKEN environment variable not set\n")
			fmt.Fprintf(os.Stderr, "Mint one with: nexusctl token mint --user-id <id>\n")
			os.Exit(1)
		}

		// OTEL_ENABLED=true links CLI requests to the server's traces
		tp, err := telemetry.InitServiceTracer("nexusctl", config.LoadTelemetry(), "cli")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: tracing disabled: %v\n", err)
		}
		tracerProvider = tp
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetry.Shutdown(ctx, tracerProvider)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "Authentication token (defaults to NEXUS_TOKEN env var)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", apiURL, "API server URL")
	rootCmd.PersistentFlags().StringVar(&output, "output", output, "Output format: text or json")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(moderationCmd)
	rootCmd.AddCommand(presenceCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
