// Package snapshot moves workflows in and out of the system as YAML
// documents, for backup, sharing and seeding environments.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/flowline-dev/flowline/internal/core"
	"github.com/flowline-dev/flowline/internal/graph"
)

// FormatVersion is the current document format version.
const FormatVersion = 1

// Document is the on-disk YAML shape of an exported workflow.
type Document struct {
	Version    int       `yaml:"version"`
	ExportedAt time.Time `yaml:"exported_at"`
	Workflow   Workflow  `yaml:"workflow"`
}

// Workflow mirrors core.Workflow with YAML-friendly node data.
type Workflow struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	OwnerID string `yaml:"owner_id,omitempty"`
	Nodes   []Node `yaml:"nodes"`
	Edges   []Edge `yaml:"edges"`
}

// Node is a workflow node. Data is an open map so exported YAML stays
// readable instead of carrying an embedded JSON string.
type Node struct {
	ID       string                 `yaml:"id"`
	Kind     string                 `yaml:"kind"`
	Position Position               `yaml:"position"`
	Data     map[string]interface{} `yaml:"data,omitempty"`
}

// Position is a canvas coordinate.
type Position struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Edge is a directed connection between two nodes.
type Edge struct {
	ID           string `yaml:"id"`
	Source       string `yaml:"source"`
	SourceHandle string `yaml:"source_handle,omitempty"`
	Target       string `yaml:"target"`
	TargetHandle string `yaml:"target_handle,omitempty"`
}

// Export renders a workflow as a YAML document.
func Export(wf *core.Workflow) ([]byte, error) {
	doc := Document{
		Version:    FormatVersion,
		ExportedAt: time.Now().UTC(),
		Workflow: Workflow{
			ID:      wf.ID,
			Name:    wf.Name,
			OwnerID: wf.OwnerID,
			Nodes:   make([]Node, 0, len(wf.Nodes)),
			Edges:   make([]Edge, 0, len(wf.Edges)),
		},
	}

	for _, n := range wf.Nodes {
		node := Node{
			ID:       string(n.ID),
			Kind:     string(n.Kind),
			Position: Position{X: n.Position.X, Y: n.Position.Y},
		}
		if len(n.Data) > 0 {
			var data map[string]interface{}
			if err := json.Unmarshal(n.Data, &data); err != nil {
				return nil, fmt.Errorf("decoding data of node %s: %w", n.ID, err)
			}
			node.Data = data
		}
		doc.Workflow.Nodes = append(doc.Workflow.Nodes, node)
	}
	for _, e := range wf.Edges {
		doc.Workflow.Edges = append(doc.Workflow.Edges, Edge{
			ID:           e.ID,
			Source:       string(e.Source),
			SourceHandle: e.SourceHandle,
			Target:       string(e.Target),
			TargetHandle: e.TargetHandle,
		})
	}

	return yaml.Marshal(doc)
}

// ExportToFile writes the workflow document atomically.
func ExportToFile(wf *core.Workflow, path string) error {
	data, err := Export(wf)
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0o644)
}

// ImportOptions configures Import.
type ImportOptions struct {
	// NewIDs assigns fresh identifiers to the workflow and all nodes
	// and edges, for duplicating into an environment where the
	// originals already exist. Edge endpoints are remapped to match.
	NewIDs bool
}

// Import parses a YAML document into a validated workflow.
func Import(data []byte, opts ImportOptions) (*core.Workflow, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	if doc.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported document version %d", doc.Version)
	}

	wf := &core.Workflow{
		ID:      doc.Workflow.ID,
		Name:    doc.Workflow.Name,
		OwnerID: doc.Workflow.OwnerID,
		Nodes:   make([]core.Node, 0, len(doc.Workflow.Nodes)),
		Edges:   make([]core.Edge, 0, len(doc.Workflow.Edges)),
	}
	if wf.ID == "" {
		wf.ID = uuid.NewString()
	}

	for _, n := range doc.Workflow.Nodes {
		node := core.Node{
			ID:       core.NodeID(n.ID),
			Kind:     core.NodeKind(n.Kind),
			Position: core.Position{X: n.Position.X, Y: n.Position.Y},
		}
		if len(n.Data) > 0 {
			raw, err := json.Marshal(normalizeYAML(n.Data))
			if err != nil {
				return nil, fmt.Errorf("encoding data of node %s: %w", n.ID, err)
			}
			node.Data = raw
		}
		wf.Nodes = append(wf.Nodes, node)
	}
	for _, e := range doc.Workflow.Edges {
		wf.Edges = append(wf.Edges, core.Edge{
			ID:           e.ID,
			Source:       core.NodeID(e.Source),
			SourceHandle: e.SourceHandle,
			Target:       core.NodeID(e.Target),
			TargetHandle: e.TargetHandle,
		})
	}

	if opts.NewIDs {
		remapIDs(wf)
	}

	if _, err := graph.Validate(wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// ImportFromFile reads and parses a workflow document.
func ImportFromFile(path string, opts ImportOptions) (*core.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Import(data, opts)
}

func remapIDs(wf *core.Workflow) {
	wf.ID = uuid.NewString()

	nodeIDs := make(map[core.NodeID]core.NodeID, len(wf.Nodes))
	for i := range wf.Nodes {
		fresh := core.NodeID(uuid.NewString())
		nodeIDs[wf.Nodes[i].ID] = fresh
		wf.Nodes[i].ID = fresh
	}
	for i := range wf.Edges {
		wf.Edges[i].ID = uuid.NewString()
		if mapped, ok := nodeIDs[wf.Edges[i].Source]; ok {
			wf.Edges[i].Source = mapped
		}
		if mapped, ok := nodeIDs[wf.Edges[i].Target]; ok {
			wf.Edges[i].Target = mapped
		}
	}
}

// normalizeYAML converts map[interface{}]interface{} trees that yaml.v3
// can produce inside nested values into JSON-encodable maps.
func normalizeYAML(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalizeYAML(item)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		keys := make([]string, 0, len(val))
		tmp := make(map[string]interface{}, len(val))
		for k, item := range val {
			ks := fmt.Sprintf("%v", k)
			keys = append(keys, ks)
			tmp[ks] = normalizeYAML(item)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out[k] = tmp[k]
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalizeYAML(item)
		}
		return out
	default:
		return v
	}
}
