package provider

import (
	"context"
	"errors"

	"github.com/flowline-dev/flowline/internal/core"
)

var errEmptyResponse = errors.New("empty completion response")

const anthropicDefaultBaseURL = "https://api.anthropic.com/v1"

// AnthropicProvider implements ModelProvider over the Anthropic messages
// API.
type AnthropicProvider struct {
	*BaseProvider
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(cfg ProviderConfig) *AnthropicProvider {
	cfg.Name = "anthropic"
	if cfg.BaseURL == "" {
		cfg.BaseURL = anthropicDefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-5"
	}
	return &AnthropicProvider{BaseProvider: NewBaseProvider(cfg)}
}

// Name returns the provider identifier.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// Ping checks reachability with a minimal request.
func (p *AnthropicProvider) Ping(ctx context.Context) error {
	_, err := p.Generate(ctx, core.GenerateRequest{Prompt: "ping", MaxTokens: 1})
	if core.IsCode(err, core.CodeProviderUnavailable) {
		return err
	}
	return nil
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Generate runs a messages-API completion.
func (p *AnthropicProvider) Generate(ctx context.Context, req core.GenerateRequest) (*core.GenerateResult, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	payload := anthropicRequest{
		Model:     p.DefaultModel(req.Model),
		System:    req.SystemPrompt,
		Messages:  []anthropicMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens: maxTokens,
	}

	headers := map[string]string{
		"x-api-key":         p.Config().APIKey,
		"anthropic-version": "2023-06-01",
	}

	var resp anthropicResponse
	if err := p.PostJSON(ctx, p.Config().BaseURL+"/messages", headers, payload, &resp); err != nil {
		return nil, err
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return nil, core.ErrProviderUnavailable(p.Name(), errEmptyResponse)
	}

	return &core.GenerateResult{
		Text:      text,
		Model:     resp.Model,
		TokensIn:  resp.Usage.InputTokens,
		TokensOut: resp.Usage.OutputTokens,
	}, nil
}

var _ core.ModelProvider = (*AnthropicProvider)(nil)
