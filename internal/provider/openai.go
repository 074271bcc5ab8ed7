package provider

import (
	"context"

	"github.com/flowline-dev/flowline/internal/core"
)

const openaiDefaultBaseURL = "https://api.openai.com/v1"

// OpenAIProvider implements ModelProvider over the OpenAI chat completions
// API.
type OpenAIProvider struct {
	*BaseProvider
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg ProviderConfig) *OpenAIProvider {
	cfg.Name = "openai"
	if cfg.BaseURL == "" {
		cfg.BaseURL = openaiDefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	return &OpenAIProvider{BaseProvider: NewBaseProvider(cfg)}
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string { return "openai" }

// Ping checks reachability with a minimal request.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	_, err := p.Generate(ctx, core.GenerateRequest{Prompt: "ping", MaxTokens: 1})
	if core.IsCode(err, core.CodeProviderUnavailable) {
		return err
	}
	return nil
}

type openaiChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message openaiMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Generate runs a chat completion.
func (p *OpenAIProvider) Generate(ctx context.Context, req core.GenerateRequest) (*core.GenerateResult, error) {
	messages := make([]openaiMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openaiMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, openaiMessage{Role: "user", Content: req.Prompt})

	payload := openaiChatRequest{
		Model:       p.DefaultModel(req.Model),
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	var resp openaiChatResponse
	headers := map[string]string{"Authorization": "Bearer " + p.Config().APIKey}
	if err := p.PostJSON(ctx, p.Config().BaseURL+"/chat/completions", headers, payload, &resp); err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, core.ErrProviderUnavailable(p.Name(), errEmptyResponse)
	}

	return &core.GenerateResult{
		Text:      resp.Choices[0].Message.Content,
		Model:     resp.Model,
		TokensIn:  resp.Usage.PromptTokens,
		TokensOut: resp.Usage.CompletionTokens,
	}, nil
}

var _ core.ModelProvider = (*OpenAIProvider)(nil)
