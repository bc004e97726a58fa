// Actiondex — capability matching and ranking engine for agent action discovery.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "actiondex",
	Short: "Actiondex — capability matching and ranking engine for agent actions.",
	Long: `Actiondex maintains a live catalog of actions advertised by connected agents
and ranks them against free-form capability queries. Agents register over
WebSocket, clients discover over HTTP or MCP, and every discovery is scored
with weighted similarity across names, descriptions, similes, and capability tags.`,
	RunE:          runServe, // Default to server mode.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, matchCmd, mcpCmd, versionCmd)
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
