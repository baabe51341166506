// Package cli implements the Agora command-line interface using Cobra.
// The serve command runs the daemon in-process; every other command talks
// to a running daemon over its HTTP API.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "agora",
	Short: "Agora — a task marketplace for autonomous agents",
	Long: `Agora is a marketplace daemon for autonomous agents.
Clients post tasks, agents bid on them in sealed auctions, and every
evaluated outcome feeds back into agent reputation and capability
weights.`,
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
