package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flowline-dev/flowline/internal/core"
	"github.com/flowline-dev/flowline/internal/logging"
	"github.com/flowline-dev/flowline/internal/provider"
)

// HandlerContext carries the collaborators a node handler may use.
type HandlerContext struct {
	Run        *core.Run
	Node       core.Node
	Logger     *logging.Logger
	Gateway    *provider.Gateway
	HTTPClient *http.Client
}

// NodeHandler executes one node kind. Handlers must be idempotent under
// retry: the executor memoizes terminal results through step records, but
// an attempt that failed mid-flight may be re-issued.
type NodeHandler interface {
	Kind() core.StepKind
	Execute(ctx context.Context, hctx HandlerContext) (map[string]any, error)
}

// handlerFor dispatches a node kind to its handler. The switch is
// exhaustive over the closed kind set: adding a kind without a handler is
// caught here, not at some runtime map lookup.
func handlerFor(kind core.NodeKind) (NodeHandler, error) {
	switch kind {
	case core.NodeKindManualTrigger:
		return manualTriggerHandler{}, nil
	case core.NodeKindHTTPRequest:
		return httpRequestHandler{}, nil
	case core.NodeKindModelGenerate:
		return modelGenerateHandler{}, nil
	case core.NodeKindSleep:
		return sleepHandler{}, nil
	case core.NodeKindInitial:
		return nil, core.ErrGraph(core.CodeInvalidNodeData,
			"INITIAL placeholder nodes are not executable")
	default:
		return nil, core.ErrGraph(core.CodeUnknownNodeKind,
			fmt.Sprintf("no handler for node kind %q", kind))
	}
}

// stepKindFor maps a node kind to its step classification.
func stepKindFor(kind core.NodeKind) core.StepKind {
	switch kind {
	case core.NodeKindSleep:
		return core.StepKindSleep
	case core.NodeKindModelGenerate:
		return core.StepKindModelInvocation
	default:
		return core.StepKindCompute
	}
}

// =============================================================================
// Manual trigger
// =============================================================================

type manualTriggerHandler struct{}

func (manualTriggerHandler) Kind() core.StepKind { return core.StepKindCompute }

// Execute records the trigger activation; the output echoes the event data
// so downstream nodes can reference it.
func (manualTriggerHandler) Execute(_ context.Context, hctx HandlerContext) (map[string]any, error) {
	out := map[string]any{"triggered": true}
	if len(hctx.Run.TriggerData) > 0 {
		var data map[string]any
		if err := json.Unmarshal(hctx.Run.TriggerData, &data); err == nil {
			out["event"] = data
		}
	}
	return out, nil
}

// =============================================================================
// HTTP request
// =============================================================================

type httpRequestConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

type httpRequestHandler struct{}

func (httpRequestHandler) Kind() core.StepKind { return core.StepKindCompute }

func (httpRequestHandler) Execute(ctx context.Context, hctx HandlerContext) (map[string]any, error) {
	var cfg httpRequestConfig
	if err := json.Unmarshal(hctx.Node.Data, &cfg); err != nil {
		return nil, core.ErrGraph(core.CodeInvalidNodeData, "invalid http request config").WithCause(err)
	}
	if cfg.URL == "" {
		return nil, core.ErrGraph(core.CodeInvalidNodeData, "http request node requires a url")
	}
	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if cfg.Body != "" {
		body = strings.NewReader(cfg.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, body)
	if err != nil {
		return nil, core.ErrGraph(core.CodeInvalidNodeData, "building http request").WithCause(err)
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	client := hctx.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, core.ErrExecution("HTTP_REQUEST_FAILED", err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, core.ErrExecution("HTTP_REQUEST_FAILED", err.Error())
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, core.ErrExecution("HTTP_UPSTREAM_ERROR",
			fmt.Sprintf("%s %s returned %d", method, cfg.URL, resp.StatusCode))
	case resp.StatusCode >= 400:
		derr := core.ErrGraph(core.CodeInvalidNodeData,
			fmt.Sprintf("%s %s returned %d", method, cfg.URL, resp.StatusCode))
		return nil, derr.WithDetail("status", resp.StatusCode)
	}

	return map[string]any{
		"status": resp.StatusCode,
		"body":   string(respBody),
	}, nil
}

// =============================================================================
// Model generation
// =============================================================================

type modelGenerateConfig struct {
	Provider       string  `json:"provider"`
	Model          string  `json:"model"`
	SystemPrompt   string  `json:"system_prompt"`
	Prompt         string  `json:"prompt"`
	MaxTokens      int     `json:"max_tokens"`
	Temperature    float64 `json:"temperature"`
	TimeoutSeconds int     `json:"timeout_seconds"`
	RecordInputs   bool    `json:"record_inputs"`
	RecordOutputs  bool    `json:"record_outputs"`
}

type modelGenerateHandler struct{}

func (modelGenerateHandler) Kind() core.StepKind { return core.StepKindModelInvocation }

func (modelGenerateHandler) Execute(ctx context.Context, hctx HandlerContext) (map[string]any, error) {
	var cfg modelGenerateConfig
	if err := json.Unmarshal(hctx.Node.Data, &cfg); err != nil {
		return nil, core.ErrGraph(core.CodeInvalidNodeData, "invalid model generate config").WithCause(err)
	}
	if cfg.Provider == "" {
		return nil, core.ErrGraph(core.CodeInvalidNodeData, "model generate node requires a provider")
	}
	if cfg.Prompt == "" {
		return nil, core.ErrGraph(core.CodeInvalidNodeData, "model generate node requires a prompt")
	}

	req := core.GenerateRequest{
		SystemPrompt:  cfg.SystemPrompt,
		Prompt:        cfg.Prompt,
		Model:         cfg.Model,
		MaxTokens:     cfg.MaxTokens,
		Temperature:   cfg.Temperature,
		RecordInputs:  cfg.RecordInputs,
		RecordOutputs: cfg.RecordOutputs,
	}
	if cfg.TimeoutSeconds > 0 {
		req.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	result, err := hctx.Gateway.Generate(ctx, string(hctx.Run.ID), cfg.Provider, req)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"text":       result.Text,
		"model":      result.Model,
		"tokens_in":  result.TokensIn,
		"tokens_out": result.TokensOut,
	}, nil
}

// =============================================================================
// Sleep
// =============================================================================

type sleepConfig struct {
	Duration string `json:"duration"`
}

// sleepHandler only parses configuration. The durable suspend/resume
// mechanics live in the executor, which persists the wake time instead of
// blocking a goroutine.
type sleepHandler struct{}

func (sleepHandler) Kind() core.StepKind { return core.StepKindSleep }

func (sleepHandler) Execute(_ context.Context, hctx HandlerContext) (map[string]any, error) {
	d, err := sleepDuration(hctx.Node)
	if err != nil {
		return nil, err
	}
	return map[string]any{"duration": d.String()}, nil
}

// sleepDuration parses the configured delay for a sleep node.
func sleepDuration(node core.Node) (time.Duration, error) {
	var cfg sleepConfig
	if len(node.Data) > 0 {
		if err := json.Unmarshal(node.Data, &cfg); err != nil {
			return 0, core.ErrGraph(core.CodeInvalidNodeData, "invalid sleep config").WithCause(err)
		}
	}
	if cfg.Duration == "" {
		return 0, core.ErrGraph(core.CodeInvalidNodeData, "sleep node requires a duration")
	}
	d, err := time.ParseDuration(cfg.Duration)
	if err != nil {
		return 0, core.ErrGraph(core.CodeInvalidNodeData, "invalid sleep duration").WithCause(err)
	}
	if d < 0 {
		return 0, core.ErrGraph(core.CodeInvalidNodeData, "sleep duration cannot be negative")
	}
	return d, nil
}
