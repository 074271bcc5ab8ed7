package provider

import (
	"context"
	"time"

	"github.com/flowline-dev/flowline/internal/core"
	"github.com/flowline-dev/flowline/internal/events"
	"github.com/flowline-dev/flowline/internal/logging"
)

// DefaultAttemptTimeout bounds a single generation attempt when the
// request does not carry its own timeout.
const DefaultAttemptTimeout = 2 * time.Minute

// Gateway dispatches generation requests to registered providers, applies
// the per-attempt timeout and records telemetry. It is the sole interface
// between the engine and any AI vendor.
type Gateway struct {
	registry core.ProviderRegistry
	bus      *events.Bus
	logger   *logging.Logger

	recordInputs  bool
	recordOutputs bool
}

// GatewayOption configures the gateway.
type GatewayOption func(*Gateway)

// WithTelemetryDefaults turns on process-wide input/output recording.
// Per-request flags can still enable recording on top of these, never
// disable it.
func WithTelemetryDefaults(inputs, outputs bool) GatewayOption {
	return func(g *Gateway) {
		g.recordInputs = inputs
		g.recordOutputs = outputs
	}
}

// NewGateway creates a gateway over the given registry.
func NewGateway(registry core.ProviderRegistry, bus *events.Bus, logger *logging.Logger, opts ...GatewayOption) *Gateway {
	if logger == nil {
		logger = logging.NewNop()
	}
	g := &Gateway{
		registry: registry,
		bus:      bus,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Providers returns the names of all registered providers.
func (g *Gateway) Providers() []string {
	return g.registry.List()
}

// Generate runs a text generation through the named provider. Telemetry
// requested by the caller is recorded irrespective of success or failure;
// recording goes through the event bus and cannot block the caller.
func (g *Gateway) Generate(ctx context.Context, runID, providerID string, req core.GenerateRequest) (*core.GenerateResult, error) {
	p, err := g.registry.Get(providerID)
	if err != nil {
		return nil, err
	}

	req.RecordInputs = req.RecordInputs || g.recordInputs
	req.RecordOutputs = req.RecordOutputs || g.recordOutputs

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result, genErr := p.Generate(attemptCtx, req)
	elapsed := time.Since(start)

	// Attempt timeout is indistinguishable from an unreachable provider.
	if genErr != nil && attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		genErr = core.ErrTimeout("generation attempt exceeded " + timeout.String()).WithCause(genErr)
	}

	g.recordTelemetry(runID, providerID, req, result, genErr)

	log := g.logger.WithRun(runID).WithProvider(providerID)
	if genErr != nil {
		log.Error("model generation failed",
			"model", req.Model,
			"duration", elapsed,
			"error", genErr,
		)
		return nil, genErr
	}

	result.Duration = elapsed
	log.Info("model generation completed",
		"model", result.Model,
		"tokens_in", result.TokensIn,
		"tokens_out", result.TokensOut,
		"duration", elapsed,
	)
	return result, nil
}

func (g *Gateway) recordTelemetry(runID, providerID string, req core.GenerateRequest, result *core.GenerateResult, genErr error) {
	if g.bus == nil || (!req.RecordInputs && !req.RecordOutputs) {
		return
	}

	var input, output, errMsg string
	if req.RecordInputs {
		input = req.SystemPrompt + "\n" + req.Prompt
	}
	if req.RecordOutputs && result != nil {
		output = result.Text
	}
	if genErr != nil {
		errMsg = genErr.Error()
	}
	g.bus.Publish(events.NewTelemetryEvent(runID, providerID, req.Model, input, output, errMsg))
}
