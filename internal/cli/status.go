package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status and marketplace totals",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	var health struct {
		Status string `json:"status"`
	}
	if err := apiGet("/health", &health); err != nil {
		color.Red("daemon: unreachable")
		return err
	}
	color.Green("daemon: %s", health.Status)

	var version struct {
		Version string `json:"version"`
	}
	if err := apiGet("/api/version", &version); err == nil {
		fmt.Printf("version: %s\n", version.Version)
	}

	var tasks struct {
		Count int `json:"count"`
	}
	if err := apiGet("/api/tasks/", &tasks); err != nil {
		return err
	}
	var agents struct {
		Count int `json:"count"`
	}
	if err := apiGet("/api/agents/", &agents); err != nil {
		return err
	}

	fmt.Printf("tasks:   %d\n", tasks.Count)
	fmt.Printf("agents:  %d\n", agents.Count)
	return nil
}
