package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/flowline-dev/flowline/internal/core"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored runs and their step records",
}

var runsListCmd = &cobra.Command{
	Use:   "list <workflow-id>",
	Short: "List runs of a workflow",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run with its full step record log",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsShowJSON bool

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)

	runsShowCmd.Flags().BoolVar(&runsShowJSON, "json", false,
		"Print the raw run document as JSON")
}

func runRunsList(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	summaries, err := store.ListRunsForWorkflow(context.Background(), args[0])
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		cmd.Println("no runs for workflow")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tSTEPS\tCREATED")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			s.ID, s.Status, s.StepCount, s.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	run, err := store.GetRun(context.Background(), core.RunID(args[0]))
	if err != nil {
		return err
	}

	if runsShowJSON {
		data, err := json.MarshalIndent(run, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("run %s  workflow %s  status %s\n", run.ID, run.WorkflowID, run.Status)
	if run.Error != "" {
		cmd.Printf("error: %s\n", run.Error)
	}
	if run.WakeAt != nil {
		cmd.Printf("sleeping until %s\n", run.WakeAt.Format("2006-01-02 15:04:05"))
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tNODE\tKIND\tSTATUS\tATTEMPT")
	for _, step := range run.Steps {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			step.ID, step.NodeID, step.Kind, step.Status, step.Attempt)
	}
	return w.Flush()
}
