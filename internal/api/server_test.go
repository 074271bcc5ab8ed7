package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flowline-dev/flowline/internal/core"
	"github.com/flowline-dev/flowline/internal/engine"
	"github.com/flowline-dev/flowline/internal/events"
	"github.com/flowline-dev/flowline/internal/provider"
	"github.com/flowline-dev/flowline/internal/state"
)

type testAPI struct {
	server *Server
	store  *state.MemoryStore
	bus    *events.Bus
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store := state.NewMemoryStore()
	bus := events.New(64)
	t.Cleanup(bus.Close)

	gateway := provider.NewGateway(provider.NewRegistry(), bus, nil)
	executor := engine.NewExecutor(store, gateway, bus, nil)
	scheduler := engine.NewScheduler(engine.DefaultSchedulerConfig(), store, store, executor, bus, nil)

	handlers := NewHandlers(store, store, scheduler)
	cfg := DefaultConfig()
	cfg.EnableCORS = false
	server := New(cfg, handlers, bus, nil)

	return &testAPI{server: server, store: store, bus: bus}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestCreateWorkflow(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/workflows", map[string]string{
		"name":     "My Flow",
		"owner_id": "user-1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
	}

	wf := decodeBody[core.Workflow](t, rec)
	if wf.Name != "My Flow" {
		t.Errorf("Name = %q", wf.Name)
	}
	if len(wf.Nodes) != 1 || wf.Nodes[0].Kind != core.NodeKindInitial {
		t.Errorf("new workflow should hold a single placeholder node, got %+v", wf.Nodes)
	}
}

func TestRenameWorkflow(t *testing.T) {
	api := newTestAPI(t)
	wf := decodeBody[core.Workflow](t, api.do(t, http.MethodPost, "/api/v1/workflows", map[string]string{"name": "Old"}))

	rec := api.do(t, http.MethodPatch, "/api/v1/workflows/"+wf.ID, map[string]string{"name": "New"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if got := decodeBody[core.Workflow](t, rec); got.Name != "New" {
		t.Errorf("Name = %q, want New", got.Name)
	}
}

func TestWorkflowNotFound(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/api/v1/workflows/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// buildWorkflow creates a workflow and replaces the placeholder with a
// trigger node, returning the workflow ID and trigger node ID.
func buildWorkflow(t *testing.T, api *testAPI) (string, string) {
	t.Helper()

	wf := decodeBody[core.Workflow](t, api.do(t, http.MethodPost, "/api/v1/workflows", map[string]string{"name": "Flow"}))

	rec := api.do(t, http.MethodPut, "/api/v1/workflows/"+wf.ID+"/graph", map[string]interface{}{
		"nodes": []core.Node{{ID: "trigger-1", Kind: core.NodeKindManualTrigger}},
		"edges": []core.Edge{},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("replace graph status = %d: %s", rec.Code, rec.Body)
	}
	return wf.ID, "trigger-1"
}

func TestReplaceGraph(t *testing.T) {
	api := newTestAPI(t)
	wf := decodeBody[core.Workflow](t, api.do(t, http.MethodPost, "/api/v1/workflows", map[string]string{"name": "Flow"}))

	rec := api.do(t, http.MethodPut, "/api/v1/workflows/"+wf.ID+"/graph", map[string]interface{}{
		"nodes": []core.Node{
			{ID: "t", Kind: core.NodeKindManualTrigger},
			{ID: "h", Kind: core.NodeKindHTTPRequest, Data: json.RawMessage(`{"url":"https://example.com"}`)},
		},
		"edges": []core.Edge{{ID: "e1", Source: "t", Target: "h"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
}

func TestReplaceGraph_RejectsDanglingEdge(t *testing.T) {
	api := newTestAPI(t)
	wf := decodeBody[core.Workflow](t, api.do(t, http.MethodPost, "/api/v1/workflows", map[string]string{"name": "Flow"}))

	rec := api.do(t, http.MethodPut, "/api/v1/workflows/"+wf.ID+"/graph", map[string]interface{}{
		"nodes": []core.Node{{ID: "t", Kind: core.NodeKindManualTrigger}},
		"edges": []core.Edge{{ID: "e1", Source: "t", Target: "ghost"}},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", rec.Code, rec.Body)
	}
	resp := decodeBody[errorResponse](t, rec)
	if resp.Code != core.CodeDanglingEdge {
		t.Errorf("Code = %q, want %q", resp.Code, core.CodeDanglingEdge)
	}
}

func TestAddNode_SecondTriggerRejected(t *testing.T) {
	api := newTestAPI(t)
	wfID, _ := buildWorkflow(t, api)

	rec := api.do(t, http.MethodPost, "/api/v1/workflows/"+wfID+"/nodes", core.Node{
		ID: "trigger-2", Kind: core.NodeKindManualTrigger,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", rec.Code, rec.Body)
	}
	resp := decodeBody[errorResponse](t, rec)
	if resp.Code != core.CodeMultipleTriggers {
		t.Errorf("Code = %q, want %q", resp.Code, core.CodeMultipleTriggers)
	}
}

func TestAddNode_InitialResetsGraph(t *testing.T) {
	api := newTestAPI(t)
	wfID, _ := buildWorkflow(t, api)

	rec := api.do(t, http.MethodPost, "/api/v1/workflows/"+wfID+"/nodes", core.Node{
		ID: "reset", Kind: core.NodeKindInitial,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	wf := decodeBody[core.Workflow](t, rec)
	if len(wf.Nodes) != 1 || wf.Nodes[0].Kind != core.NodeKindInitial {
		t.Errorf("nodes = %+v, want single placeholder", wf.Nodes)
	}
	if len(wf.Edges) != 0 {
		t.Errorf("edges = %+v, want empty", wf.Edges)
	}
}

func TestAddEdge(t *testing.T) {
	api := newTestAPI(t)
	wfID, triggerID := buildWorkflow(t, api)

	rec := api.do(t, http.MethodPost, "/api/v1/workflows/"+wfID+"/nodes", core.Node{
		ID: "http-1", Kind: core.NodeKindHTTPRequest, Data: json.RawMessage(`{"url":"https://example.com"}`),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add node status = %d: %s", rec.Code, rec.Body)
	}

	rec = api.do(t, http.MethodPost, "/api/v1/workflows/"+wfID+"/edges", core.Edge{
		Source: core.NodeID(triggerID), Target: "http-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add edge status = %d: %s", rec.Code, rec.Body)
	}
	wf := decodeBody[core.Workflow](t, rec)
	if len(wf.Edges) != 1 {
		t.Errorf("edges = %+v, want 1", wf.Edges)
	}
}

func TestValidateWorkflow_NoTrigger(t *testing.T) {
	api := newTestAPI(t)
	wf := decodeBody[core.Workflow](t, api.do(t, http.MethodPost, "/api/v1/workflows", map[string]string{"name": "Flow"}))

	rec := api.do(t, http.MethodPost, "/api/v1/workflows/"+wf.ID+"/validate", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", rec.Code, rec.Body)
	}
	resp := decodeBody[errorResponse](t, rec)
	if resp.Code != core.CodeNoTrigger {
		t.Errorf("Code = %q, want %q", resp.Code, core.CodeNoTrigger)
	}
}

func TestHandleEvent(t *testing.T) {
	api := newTestAPI(t)
	wfID, _ := buildWorkflow(t, api)

	rec := api.do(t, http.MethodPost, "/api/v1/events", map[string]interface{}{
		"name": "manual.trigger",
		"data": map[string]string{"workflowId": wfID},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body)
	}
	summary := decodeBody[core.RunSummary](t, rec)
	if summary.WorkflowID != wfID {
		t.Errorf("WorkflowID = %q, want %q", summary.WorkflowID, wfID)
	}

	// The run is persisted and queryable immediately.
	rec = api.do(t, http.MethodGet, "/api/v1/runs/"+string(summary.ID), nil)
	if rec.Code != http.StatusOK {
		t.Errorf("get run status = %d: %s", rec.Code, rec.Body)
	}

	rec = api.do(t, http.MethodGet, "/api/v1/workflows/"+wfID+"/runs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list runs status = %d: %s", rec.Code, rec.Body)
	}
	if got := decodeBody[[]core.RunSummary](t, rec); len(got) != 1 {
		t.Errorf("runs = %d, want 1", len(got))
	}
}

func TestHandleEvent_UnknownEvent(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodPost, "/api/v1/events", map[string]interface{}{
		"name": "unknown.event",
		"data": map[string]string{"workflowId": "wf"},
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404: %s", rec.Code, rec.Body)
	}
}

func TestHandleEvent_MissingWorkflowID(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodPost, "/api/v1/events", map[string]interface{}{
		"name": "manual.trigger",
		"data": map[string]string{},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422: %s", rec.Code, rec.Body)
	}
}

func TestCancelRun(t *testing.T) {
	api := newTestAPI(t)
	wfID, _ := buildWorkflow(t, api)

	rec := api.do(t, http.MethodPost, "/api/v1/events", map[string]interface{}{
		"name": "manual.trigger",
		"data": map[string]string{"workflowId": wfID},
	})
	summary := decodeBody[core.RunSummary](t, rec)

	rec = api.do(t, http.MethodPost, "/api/v1/runs/"+string(summary.ID)+"/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d: %s", rec.Code, rec.Body)
	}
	got := decodeBody[core.RunSummary](t, rec)
	if got.Status != core.RunStatusCancelled {
		t.Errorf("Status = %q, want cancelled", got.Status)
	}
}

func TestDeleteWorkflow(t *testing.T) {
	api := newTestAPI(t)
	wfID, _ := buildWorkflow(t, api)

	rec := api.do(t, http.MethodDelete, "/api/v1/workflows/"+wfID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	rec = api.do(t, http.MethodGet, "/api/v1/workflows/"+wfID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 after delete", rec.Code)
	}
}

func TestSSEHandlerShutdown(t *testing.T) {
	bus := events.New(16)
	defer bus.Close()

	h := NewSSEHandler(bus)
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want 0", h.ClientCount())
	}
	if err := h.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
