package provider

import (
	"reflect"
	"testing"

	"github.com/flowline-dev/flowline/internal/config"
)

func TestNewRegistryFromConfig(t *testing.T) {
	cfg := &config.ProvidersConfig{
		OpenAI:    config.ProviderConfig{Enabled: true, APIKey: "sk-test", Model: "gpt-4o"},
		Anthropic: config.ProviderConfig{Enabled: false},
		Gemini:    config.ProviderConfig{Enabled: false},
	}

	registry := NewRegistryFromConfig(cfg)
	if got := registry.List(); !reflect.DeepEqual(got, []string{"openai"}) {
		t.Errorf("List() = %v, want [openai]", got)
	}
}

func TestRegistry_ApplyConfig_Reconciles(t *testing.T) {
	registry := NewRegistryFromConfig(&config.ProvidersConfig{
		OpenAI: config.ProviderConfig{Enabled: true, APIKey: "sk-test"},
	})

	// A reload flips openai off and anthropic on; the registry must
	// drop the one and pick up the other.
	registry.ApplyConfig(&config.ProvidersConfig{
		OpenAI:    config.ProviderConfig{Enabled: false},
		Anthropic: config.ProviderConfig{Enabled: true, APIKey: "sk-ant", Model: "claude-sonnet-4"},
	})

	if got := registry.List(); !reflect.DeepEqual(got, []string{"anthropic"}) {
		t.Errorf("List() after reload = %v, want [anthropic]", got)
	}
	if _, err := registry.Get("openai"); err == nil {
		t.Error("Get(openai) should fail after it was disabled")
	}
}

func TestRegistry_ApplyConfig_Empty(t *testing.T) {
	registry := NewRegistryFromConfig(&config.ProvidersConfig{
		OpenAI: config.ProviderConfig{Enabled: true, APIKey: "sk-test"},
	})

	registry.ApplyConfig(&config.ProvidersConfig{})
	if got := registry.List(); len(got) != 0 {
		t.Errorf("List() = %v, want empty", got)
	}
}
