package provider

import (
	"time"

	"github.com/flowline-dev/flowline/internal/config"
	"github.com/flowline-dev/flowline/internal/core"
)

// NewRegistryFromConfig builds a registry containing every enabled
// provider. Disabled providers are simply absent; asking the registry
// for one yields an unknown-provider error at execution time.
func NewRegistryFromConfig(cfg *config.ProvidersConfig) *Registry {
	registry := NewRegistry()
	registry.ApplyConfig(cfg)
	return registry
}

// ApplyConfig reconciles the registry with the given configuration:
// enabled providers are registered (replacing stale credentials or base
// URLs), disabled ones are removed. Called again on config hot reload.
func (r *Registry) ApplyConfig(cfg *config.ProvidersConfig) {
	enabled := make(map[string]core.ModelProvider)
	if cfg.OpenAI.Enabled {
		enabled["openai"] = NewOpenAIProvider(fromConfig("openai", cfg.OpenAI))
	}
	if cfg.Anthropic.Enabled {
		enabled["anthropic"] = NewAnthropicProvider(fromConfig("anthropic", cfg.Anthropic))
	}
	if cfg.Gemini.Enabled {
		enabled["gemini"] = NewGeminiProvider(fromConfig("gemini", cfg.Gemini))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.providers {
		if _, ok := enabled[name]; !ok {
			delete(r.providers, name)
		}
	}
	for name, p := range enabled {
		r.providers[name] = p
	}
}

func fromConfig(name string, pc config.ProviderConfig) ProviderConfig {
	timeout := time.Duration(0)
	if pc.Timeout != "" {
		// Validated at startup; a parse failure here means the zero
		// value and the adapter's default applies.
		timeout, _ = time.ParseDuration(pc.Timeout)
	}
	return ProviderConfig{
		Name:    name,
		APIKey:  pc.APIKey,
		BaseURL: pc.BaseURL,
		Model:   pc.Model,
		Timeout: timeout,
	}
}

var _ core.ProviderRegistry = (*Registry)(nil)
