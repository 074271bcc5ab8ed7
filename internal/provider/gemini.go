package provider

import (
	"context"
	"fmt"

	"github.com/flowline-dev/flowline/internal/core"
)

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider implements ModelProvider over the Google Generative
// Language API.
type GeminiProvider struct {
	*BaseProvider
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(cfg ProviderConfig) *GeminiProvider {
	cfg.Name = "gemini"
	if cfg.BaseURL == "" {
		cfg.BaseURL = geminiDefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	return &GeminiProvider{BaseProvider: NewBaseProvider(cfg)}
}

// Name returns the provider identifier.
func (p *GeminiProvider) Name() string { return "gemini" }

// Ping checks reachability with a minimal request.
func (p *GeminiProvider) Ping(ctx context.Context) error {
	_, err := p.Generate(ctx, core.GenerateRequest{Prompt: "ping", MaxTokens: 1})
	if core.IsCode(err, core.CodeProviderUnavailable) {
		return err
	}
	return nil
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  *geminiGenConf  `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConf struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

// Generate runs a generateContent call.
func (p *GeminiProvider) Generate(ctx context.Context, req core.GenerateRequest) (*core.GenerateResult, error) {
	model := p.DefaultModel(req.Model)

	payload := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}},
		},
	}
	if req.SystemPrompt != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemPrompt}}}
	}
	if req.MaxTokens > 0 || req.Temperature > 0 {
		payload.GenerationConfig = &geminiGenConf{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", p.Config().BaseURL, model)
	headers := map[string]string{"x-goog-api-key": p.Config().APIKey}

	var resp geminiResponse
	if err := p.PostJSON(ctx, url, headers, payload, &resp); err != nil {
		return nil, err
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, core.ErrProviderUnavailable(p.Name(), errEmptyResponse)
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		text += part.Text
	}

	respModel := resp.ModelVersion
	if respModel == "" {
		respModel = model
	}

	return &core.GenerateResult{
		Text:      text,
		Model:     respModel,
		TokensIn:  resp.UsageMetadata.PromptTokenCount,
		TokensOut: resp.UsageMetadata.CandidatesTokenCount,
	}, nil
}

var _ core.ModelProvider = (*GeminiProvider)(nil)
