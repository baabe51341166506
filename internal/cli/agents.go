package cli

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/agora-network/agora/internal/domain"
)

func init() {
	agentsCmd.AddCommand(agentShowCmd)
	rootCmd.AddCommand(agentsCmd)
}

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List agents by reputation",
	RunE:  runAgents,
}

func runAgents(cmd *cobra.Command, args []string) error {
	var resp struct {
		Agents []domain.Agent `json:"agents"`
	}
	if err := apiGet("/api/agents/", &resp); err != nil {
		return err
	}

	if len(resp.Agents) == 0 {
		fmt.Println("No agents registered.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREPUTATION\tWORKLOAD\tCAPABILITIES\tACTIVE")
	for _, a := range resp.Agents {
		active := color.GreenString("yes")
		if !a.Active {
			active = color.RedString("no")
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n",
			a.ID, a.Reputation, a.Workload, formatCapabilities(a.Capabilities), active)
	}
	return w.Flush()
}

var agentShowCmd = &cobra.Command{
	Use:   "show <agent-id>",
	Short: "Show one agent's learning state",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentShow,
}

func runAgentShow(cmd *cobra.Command, args []string) error {
	var snap domain.LearningState
	if err := apiGet("/api/agents/"+args[0]+"/learning", &snap); err != nil {
		return err
	}
	a := snap.Agent

	fmt.Printf("ID:              %s\n", a.ID)
	fmt.Printf("Reputation:      %d\n", a.Reputation)
	fmt.Printf("Workload:        %d\n", a.Workload)
	fmt.Printf("Learning curve:  %d\n", snap.LearningCurve)
	fmt.Printf("Confidence:      %d\n", a.Strategy.Confidence)
	fmt.Printf("Risk tolerance:  %d\n", a.Strategy.RiskTolerance)
	fmt.Printf("Capabilities:    %s\n", formatCapabilities(a.Capabilities))

	if len(snap.RecentTasks) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TASK\tSCORE")
		for _, ts := range snap.RecentTasks {
			fmt.Fprintf(w, "%s\t%d\n", shortID(ts.TaskID), ts.Score)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func formatCapabilities(caps map[string]int) string {
	tags := make([]string, 0, len(caps))
	for tag := range caps {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	out := ""
	for i, tag := range tags {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%s:%d", tag, caps[tag])
	}
	return out
}
