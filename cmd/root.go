package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "polymarket-engine",
	Short: "Low-latency trading engine for Polymarket binary markets",
	Long: `Trading engine for Polymarket YES/NO markets. It maintains live order
books over WebSocket, evaluates arbitrage and event-snipe strategies on a
fixed cadence, and routes accepted signals through risk checks into live,
paper or dry-run execution.`,
}

// Execute runs the root command. Called once from main.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// getEnvFirst returns the first non-empty value among the given env vars.
func getEnvFirst(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}
