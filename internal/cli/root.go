// Package cli implements the clawhire command-line interface using Cobra.
// Each subcommand is a thin wrapper: validate input, call the engine (or
// the running daemon), print the result.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "clawhire",
	Short: "clawhire — task marketplace ledger engine",
	Long: `clawhire runs the task marketplace ledger: bounty escrow, bidding,
staking, dispute resolution, revenue share, and work mining — as a
deterministic accounting state machine with a local HTTP API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
