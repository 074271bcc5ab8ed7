package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var triggerCmd = &cobra.Command{
	Use:   "trigger <workflow-id>",
	Short: "Fire the manual trigger of a workflow",
	Long: `Send a manual trigger event to a running flowline server.

The server creates a run for the workflow and executes it
asynchronously; the command prints the created run.

Examples:
  flowline trigger 3f8a... --server http://localhost:8080
  flowline trigger 3f8a... --data '{"customer":"acme"}'`,
	Args: cobra.ExactArgs(1),
	RunE: runTrigger,
}

var (
	triggerServer string
	triggerData   string
)

func init() {
	rootCmd.AddCommand(triggerCmd)

	triggerCmd.Flags().StringVar(&triggerServer, "server", "http://localhost:8080",
		"Base URL of the flowline server")
	triggerCmd.Flags().StringVar(&triggerData, "data", "",
		"JSON payload merged into the trigger event data")
}

func runTrigger(cmd *cobra.Command, args []string) error {
	data := map[string]json.RawMessage{
		"workflowId": json.RawMessage(fmt.Sprintf("%q", args[0])),
	}
	if triggerData != "" {
		var extra map[string]json.RawMessage
		if err := json.Unmarshal([]byte(triggerData), &extra); err != nil {
			return fmt.Errorf("--data must be a JSON object: %w", err)
		}
		for k, v := range extra {
			if k != "workflowId" {
				data[k] = v
			}
		}
	}

	body, err := json.Marshal(map[string]interface{}{
		"name": "manual.trigger",
		"data": data,
	})
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(triggerServer+"/api/v1/events", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sending trigger event: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, respBody)
	}

	return printJSON(cmd, respBody)
}

// printJSON re-indents a JSON response for terminal output.
func printJSON(cmd *cobra.Command, data []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		cmd.Println(string(data))
		return nil
	}
	cmd.Println(buf.String())
	return nil
}
