package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowline-dev/flowline/internal/core"
	"github.com/flowline-dev/flowline/internal/graph"
	"github.com/flowline-dev/flowline/internal/snapshot"
	"github.com/flowline-dev/flowline/internal/trigger"
)

var validateCmd = &cobra.Command{
	Use:   "validate <workflow-id-or-file>",
	Short: "Validate a workflow graph",
	Long: `Check a workflow against the graph invariants: known node kinds,
no dangling edges, at most one trigger, and an acyclic path from the
trigger. Accepts either a stored workflow ID or a YAML document path.

Exit status is non-zero when validation fails; warnings alone do not
fail the check.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	wf, err := resolveWorkflow(args[0])
	if err != nil {
		return err
	}

	warnings, err := graph.Validate(wf)
	if err != nil {
		return err
	}
	if _, err := trigger.Entry(wf); err != nil {
		return err
	}

	for _, warning := range warnings {
		cmd.Printf("warning: node %s: %s\n", warning.NodeID, warning.Message)
	}
	cmd.Printf("workflow %s is valid (%d nodes, %d edges)\n", wf.ID, len(wf.Nodes), len(wf.Edges))
	return nil
}

// resolveWorkflow loads the argument as a YAML file when one exists at
// that path, and falls back to a store lookup by ID.
func resolveWorkflow(arg string) (*core.Workflow, error) {
	if _, err := os.Stat(arg); err == nil {
		return snapshot.ImportFromFile(arg, snapshot.ImportOptions{})
	}

	store, closeStore, err := openStore()
	if err != nil {
		return nil, err
	}
	defer closeStore()
	return store.LoadWorkflow(context.Background(), arg)
}
