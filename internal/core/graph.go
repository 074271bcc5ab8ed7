package core

import "encoding/json"

// NodeID uniquely identifies a node within a workflow. IDs are opaque,
// collision-resistant and may be generated by clients.
type NodeID string

// NodeKind is the closed set of node types a workflow may contain.
type NodeKind string

const (
	NodeKindInitial       NodeKind = "INITIAL"
	NodeKindManualTrigger NodeKind = "MANUAL_TRIGGER"
	NodeKindHTTPRequest   NodeKind = "HTTP_REQUEST"
	NodeKindModelGenerate NodeKind = "MODEL_GENERATE"
	NodeKindSleep         NodeKind = "SLEEP"
)

// NodeKinds returns every known node kind.
func NodeKinds() []NodeKind {
	return []NodeKind{
		NodeKindInitial,
		NodeKindManualTrigger,
		NodeKindHTTPRequest,
		NodeKindModelGenerate,
		NodeKindSleep,
	}
}

// IsValidNodeKind reports whether k belongs to the closed kind set.
func IsValidNodeKind(k NodeKind) bool {
	for _, known := range NodeKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Position is a canvas coordinate. Presentation only, it carries no
// execution semantics.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a single typed node in a workflow graph. Data holds the
// kind-specific configuration payload; the graph layer treats it as opaque
// and only the node's handler interprets it.
type Node struct {
	ID       NodeID          `json:"id"`
	Kind     NodeKind        `json:"kind"`
	Position Position        `json:"position"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Edge connects a source node's output handle to a target node's input
// handle.
type Edge struct {
	ID           string `json:"id"`
	Source       NodeID `json:"source"`
	SourceHandle string `json:"source_handle,omitempty"`
	Target       NodeID `json:"target"`
	TargetHandle string `json:"target_handle,omitempty"`
}

// Workflow is a user-authored graph of nodes and edges.
type Workflow struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"owner_id,omitempty"`
	Nodes   []Node `json:"nodes"`
	Edges   []Edge `json:"edges"`
}

// NodeByID returns the node with the given id.
func (w *Workflow) NodeByID(id NodeID) (Node, bool) {
	for _, n := range w.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// HasNode reports whether a node with the given id exists.
func (w *Workflow) HasNode(id NodeID) bool {
	_, ok := w.NodeByID(id)
	return ok
}

// Clone returns a deep copy of the workflow. Runs snapshot the graph via
// Clone so concurrent edits never affect in-flight executions.
func (w *Workflow) Clone() *Workflow {
	cp := &Workflow{
		ID:      w.ID,
		Name:    w.Name,
		OwnerID: w.OwnerID,
		Nodes:   make([]Node, len(w.Nodes)),
		Edges:   make([]Edge, len(w.Edges)),
	}
	copy(cp.Edges, w.Edges)
	for i, n := range w.Nodes {
		cp.Nodes[i] = n
		if n.Data != nil {
			cp.Nodes[i].Data = append(json.RawMessage(nil), n.Data...)
		}
	}
	return cp
}
