package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/flowline-dev/flowline/internal/core"
	"github.com/flowline-dev/flowline/internal/engine"
	"github.com/flowline-dev/flowline/internal/graph"
	"github.com/flowline-dev/flowline/internal/trigger"
)

// Handlers carries the dependencies behind the REST routes.
type Handlers struct {
	workflows core.WorkflowStore
	runs      core.RunStore
	scheduler *engine.Scheduler
}

// NewHandlers wires the REST handlers.
func NewHandlers(workflows core.WorkflowStore, runs core.RunStore, scheduler *engine.Scheduler) *Handlers {
	return &Handlers{
		workflows: workflows,
		runs:      runs,
		scheduler: scheduler,
	}
}

// RegisterRoutes mounts all REST routes on the router.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/workflows", func(r chi.Router) {
		r.Post("/", h.createWorkflow)
		r.Get("/", h.listWorkflows)
		r.Route("/{workflowID}", func(r chi.Router) {
			r.Get("/", h.getWorkflow)
			r.Patch("/", h.renameWorkflow)
			r.Delete("/", h.deleteWorkflow)
			r.Put("/graph", h.replaceGraph)
			r.Post("/nodes", h.addNode)
			r.Delete("/nodes/{nodeID}", h.removeNode)
			r.Post("/edges", h.addEdge)
			r.Post("/validate", h.validateWorkflow)
			r.Get("/runs", h.listRuns)
		})
	})
	r.Post("/events", h.handleEvent)
	r.Route("/runs/{runID}", func(r chi.Router) {
		r.Get("/", h.getRun)
		r.Post("/cancel", h.cancelRun)
	})
}

type createWorkflowRequest struct {
	Name    string `json:"name"`
	OwnerID string `json:"owner_id"`
}

// createWorkflow creates a workflow seeded with a single placeholder
// node, the state the editor shows before the user picks a trigger.
func (h *Handlers) createWorkflow(w http.ResponseWriter, r *http.Request) {
	var req createWorkflowRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, core.ErrGraph(core.CodeInvalidNodeData, "invalid request body: "+err.Error()))
		return
	}
	if req.Name == "" {
		req.Name = "Untitled Workflow"
	}

	wf := &core.Workflow{
		ID:      uuid.NewString(),
		Name:    req.Name,
		OwnerID: req.OwnerID,
		Nodes: []core.Node{
			{
				ID:       core.NodeID(uuid.NewString()),
				Kind:     core.NodeKindInitial,
				Position: core.Position{X: 0, Y: 0},
			},
		},
		Edges: []core.Edge{},
	}

	if err := h.workflows.SaveWorkflow(r.Context(), wf); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, wf)
}

func (h *Handlers) listWorkflows(w http.ResponseWriter, r *http.Request) {
	list, err := h.workflows.ListWorkflows(r.Context(), r.URL.Query().Get("owner"))
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []*core.Workflow{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handlers) getWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := h.workflows.LoadWorkflow(r.Context(), chi.URLParam(r, "workflowID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

type renameWorkflowRequest struct {
	Name string `json:"name"`
}

func (h *Handlers) renameWorkflow(w http.ResponseWriter, r *http.Request) {
	var req renameWorkflowRequest
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		writeError(w, core.ErrGraph(core.CodeInvalidNodeData, "name is required"))
		return
	}

	wf, err := h.workflows.LoadWorkflow(r.Context(), chi.URLParam(r, "workflowID"))
	if err != nil {
		writeError(w, err)
		return
	}
	wf.Name = req.Name
	if err := h.workflows.SaveWorkflow(r.Context(), wf); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (h *Handlers) deleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := h.workflows.DeleteWorkflow(r.Context(), chi.URLParam(r, "workflowID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type replaceGraphRequest struct {
	Nodes []core.Node `json:"nodes"`
	Edges []core.Edge `json:"edges"`
}

// replaceGraph swaps the whole node and edge set, the way an editor
// save works. The incoming graph must validate as a unit.
func (h *Handlers) replaceGraph(w http.ResponseWriter, r *http.Request) {
	var req replaceGraphRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, core.ErrGraph(core.CodeInvalidNodeData, "invalid request body: "+err.Error()))
		return
	}

	wf, err := h.workflows.LoadWorkflow(r.Context(), chi.URLParam(r, "workflowID"))
	if err != nil {
		writeError(w, err)
		return
	}

	candidate := &core.Workflow{
		ID:      wf.ID,
		Name:    wf.Name,
		OwnerID: wf.OwnerID,
		Nodes:   req.Nodes,
		Edges:   req.Edges,
	}
	warnings, err := graph.Validate(candidate)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.workflows.SaveWorkflow(r.Context(), candidate); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"workflow": candidate,
		"warnings": warnings,
	})
}

// addNode inserts one node. Adding an INITIAL node resets the canvas:
// the node set becomes exactly that node and all edges are dropped.
func (h *Handlers) addNode(w http.ResponseWriter, r *http.Request) {
	var node core.Node
	if err := decodeJSON(r, &node); err != nil {
		writeError(w, core.ErrGraph(core.CodeInvalidNodeData, "invalid request body: "+err.Error()))
		return
	}
	if node.ID == "" {
		node.ID = core.NodeID(uuid.NewString())
	}

	wf, err := h.workflows.LoadWorkflow(r.Context(), chi.URLParam(r, "workflowID"))
	if err != nil {
		writeError(w, err)
		return
	}

	var updated *core.Workflow
	if node.Kind == core.NodeKindInitial {
		updated = graph.ReplaceWithInitial(wf, node)
	} else {
		updated, err = graph.AddNode(wf, node)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	if err := h.workflows.SaveWorkflow(r.Context(), updated); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handlers) removeNode(w http.ResponseWriter, r *http.Request) {
	wf, err := h.workflows.LoadWorkflow(r.Context(), chi.URLParam(r, "workflowID"))
	if err != nil {
		writeError(w, err)
		return
	}

	updated, err := graph.RemoveNode(wf, core.NodeID(chi.URLParam(r, "nodeID")))
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.workflows.SaveWorkflow(r.Context(), updated); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handlers) addEdge(w http.ResponseWriter, r *http.Request) {
	var edge core.Edge
	if err := decodeJSON(r, &edge); err != nil {
		writeError(w, core.ErrGraph(core.CodeInvalidNodeData, "invalid request body: "+err.Error()))
		return
	}
	if edge.ID == "" {
		edge.ID = uuid.NewString()
	}

	wf, err := h.workflows.LoadWorkflow(r.Context(), chi.URLParam(r, "workflowID"))
	if err != nil {
		writeError(w, err)
		return
	}

	updated, err := graph.AddEdge(wf, edge)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.workflows.SaveWorkflow(r.Context(), updated); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handlers) validateWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := h.workflows.LoadWorkflow(r.Context(), chi.URLParam(r, "workflowID"))
	if err != nil {
		writeError(w, err)
		return
	}

	warnings, err := graph.Validate(wf)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := trigger.Entry(wf); err != nil {
		writeError(w, err)
		return
	}
	if warnings == nil {
		warnings = []graph.Warning{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid":    true,
		"warnings": warnings,
	})
}

type eventRequest struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

// handleEvent is the trigger ingress. A matching workflow gets a run
// created and queued; the run is returned immediately, execution is
// asynchronous.
func (h *Handlers) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		writeError(w, core.ErrGraph(core.CodeInvalidNodeData, "event name is required"))
		return
	}

	run, err := h.scheduler.HandleEvent(r.Context(), core.TriggerEvent{
		Name: req.Name,
		Data: req.Data,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, run.Summary())
}

func (h *Handlers) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.GetRun(r.Context(), core.RunID(chi.URLParam(r, "runID")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *Handlers) listRuns(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.runs.ListRunsForWorkflow(r.Context(), chi.URLParam(r, "workflowID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if summaries == nil {
		summaries = []core.RunSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *Handlers) cancelRun(w http.ResponseWriter, r *http.Request) {
	id := core.RunID(chi.URLParam(r, "runID"))
	if err := h.scheduler.Cancel(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	run, err := h.runs.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run.Summary())
}
