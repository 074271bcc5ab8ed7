package snapshot

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flowline-dev/flowline/internal/core"
)

func sampleWorkflow() *core.Workflow {
	return &core.Workflow{
		ID:      "wf-1",
		Name:    "Sample",
		OwnerID: "user-1",
		Nodes: []core.Node{
			{ID: "t", Kind: core.NodeKindManualTrigger, Position: core.Position{X: 0, Y: 0}},
			{ID: "m", Kind: core.NodeKindModelGenerate, Position: core.Position{X: 200, Y: 0},
				Data: json.RawMessage(`{"provider":"openai","prompt":"hello","max_tokens":100}`)},
		},
		Edges: []core.Edge{
			{ID: "e1", Source: "t", Target: "m"},
		},
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	data, err := Export(sampleWorkflow())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.Contains(string(data), "kind: MANUAL_TRIGGER") {
		t.Errorf("document missing node kind:\n%s", data)
	}

	wf, err := Import(data, ImportOptions{})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if wf.ID != "wf-1" || wf.Name != "Sample" {
		t.Errorf("workflow = %s/%s", wf.ID, wf.Name)
	}
	if len(wf.Nodes) != 2 || len(wf.Edges) != 1 {
		t.Fatalf("got %d nodes, %d edges", len(wf.Nodes), len(wf.Edges))
	}

	var cfg map[string]interface{}
	if err := json.Unmarshal(wf.Nodes[1].Data, &cfg); err != nil {
		t.Fatalf("node data not valid JSON after import: %v", err)
	}
	if cfg["provider"] != "openai" {
		t.Errorf("provider = %v", cfg["provider"])
	}
}

func TestImport_NewIDs(t *testing.T) {
	data, err := Export(sampleWorkflow())
	if err != nil {
		t.Fatal(err)
	}

	wf, err := Import(data, ImportOptions{NewIDs: true})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if wf.ID == "wf-1" {
		t.Error("workflow ID should be remapped")
	}
	for _, n := range wf.Nodes {
		if n.ID == "t" || n.ID == "m" {
			t.Errorf("node ID %s not remapped", n.ID)
		}
	}
	// Edge endpoints must follow the remapped nodes.
	if _, ok := wf.NodeByID(wf.Edges[0].Source); !ok {
		t.Error("edge source does not reference a remapped node")
	}
	if _, ok := wf.NodeByID(wf.Edges[0].Target); !ok {
		t.Error("edge target does not reference a remapped node")
	}
}

func TestImport_RejectsInvalidGraph(t *testing.T) {
	doc := `
version: 1
workflow:
  id: wf-bad
  name: Bad
  nodes:
    - id: a
      kind: MANUAL_TRIGGER
      position: {x: 0, y: 0}
    - id: b
      kind: MANUAL_TRIGGER
      position: {x: 100, y: 0}
  edges: []
`
	_, err := Import([]byte(doc), ImportOptions{})
	if !core.IsCode(err, core.CodeMultipleTriggers) {
		t.Errorf("error = %v, want MULTIPLE_TRIGGERS", err)
	}
}

func TestImport_RejectsUnknownVersion(t *testing.T) {
	_, err := Import([]byte("version: 99\nworkflow:\n  id: x\n  name: X\n"), ImportOptions{})
	if err == nil || !strings.Contains(err.Error(), "version") {
		t.Errorf("error = %v, want version error", err)
	}
}

func TestExportToFileAndBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.yaml")
	if err := ExportToFile(sampleWorkflow(), path); err != nil {
		t.Fatalf("ExportToFile() error = %v", err)
	}
	wf, err := ImportFromFile(path, ImportOptions{})
	if err != nil {
		t.Fatalf("ImportFromFile() error = %v", err)
	}
	if wf.Name != "Sample" {
		t.Errorf("Name = %q", wf.Name)
	}
}
