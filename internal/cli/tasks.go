package cli

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/agora-network/agora/internal/domain"
)

func init() {
	tasksCmd.Flags().StringVar(&taskStatus, "status", "", "Filter by status (OPEN, ASSIGNED, ...)")
	tasksCmd.Flags().StringVar(&taskCreator, "creator", "", "Filter by creator")
	tasksCmd.Flags().StringVar(&taskCapability, "capability", "", "Filter by required capability")
	tasksCmd.AddCommand(taskShowCmd)
	rootCmd.AddCommand(tasksCmd)
}

var (
	taskStatus     string
	taskCreator    string
	taskCapability string
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List marketplace tasks",
	RunE:  runTasks,
}

func runTasks(cmd *cobra.Command, args []string) error {
	params := url.Values{}
	if taskStatus != "" {
		params.Set("status", taskStatus)
	}
	if taskCreator != "" {
		params.Set("creator", taskCreator)
	}
	if taskCapability != "" {
		params.Set("capability", taskCapability)
	}

	var resp struct {
		Tasks []domain.Task `json:"tasks"`
	}
	path := "/api/tasks/"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	if err := apiGet(path, &resp); err != nil {
		return err
	}

	if len(resp.Tasks) == 0 {
		fmt.Println("No tasks found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tCREATOR\tCAPABILITIES\tREWARD\tAGENT")
	for _, t := range resp.Tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			shortID(t.ID),
			colorStatus(t.Status),
			t.Creator,
			strings.Join(t.Capabilities, ","),
			t.Reward,
			t.AssignedAgent,
		)
	}
	return w.Flush()
}

var taskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show one task with its bids",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	var view struct {
		Task domain.Task  `json:"Task"`
		Bids []domain.Bid `json:"Bids"`
	}
	if err := apiGet("/api/tasks/"+args[0], &view); err != nil {
		return err
	}
	t := view.Task

	fmt.Printf("ID:            %s\n", t.ID)
	fmt.Printf("Status:        %s\n", colorStatus(t.Status))
	fmt.Printf("Creator:       %s\n", t.Creator)
	fmt.Printf("Capabilities:  %s\n", strings.Join(t.Capabilities, ", "))
	fmt.Printf("Reward:        %d\n", t.Reward)
	fmt.Printf("Min rep:       %d\n", t.MinReputation)
	if t.AssignedAgent != "" {
		fmt.Printf("Assigned to:   %s\n", t.AssignedAgent)
	}
	if t.Evaluation != nil {
		fmt.Printf("Final score:   %d\n", t.Evaluation.FinalScore)
	}

	if len(view.Bids) == 0 {
		return nil
	}
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "AGENT\tAMOUNT\tUTILITY\tSELECTED")
	for _, b := range view.Bids {
		selected := ""
		if b.Selected {
			selected = color.GreenString("winner")
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", b.AgentID, b.Amount, b.Utility, selected)
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func colorStatus(s domain.TaskStatus) string {
	switch s {
	case domain.TaskOpen:
		return color.CyanString(string(s))
	case domain.TaskAssigned, domain.TaskInProgress:
		return color.YellowString(string(s))
	case domain.TaskCompleted:
		return color.GreenString(string(s))
	case domain.TaskFailed, domain.TaskCancelled:
		return color.RedString(string(s))
	default:
		return string(s)
	}
}
