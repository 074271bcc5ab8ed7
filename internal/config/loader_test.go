package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoader_Defaults(t *testing.T) {
	loader := NewLoader().WithConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))

	// An explicit but missing config file is an error; defaults-only
	// loading goes through the search-path branch.
	if _, err := loader.Load(); err == nil {
		t.Error("Load() with missing explicit file expected error")
	}

	loader = NewLoader()
	loader.v.AddConfigPath(t.TempDir())
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Storage.Backend = %q, want sqlite", cfg.Storage.Backend)
	}
	if cfg.Engine.Workers != 4 || cfg.Engine.MaxAttempts != 3 {
		t.Errorf("Engine defaults = %+v", cfg.Engine)
	}
	if !cfg.Providers.OpenAI.Enabled || cfg.Providers.OpenAI.Model != "gpt-4o" {
		t.Errorf("OpenAI defaults = %+v", cfg.Providers.OpenAI)
	}
	if cfg.Telemetry.RecordInputs || cfg.Telemetry.RecordOutputs {
		t.Error("telemetry recording should default off")
	}
}

func TestLoader_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flowline.yaml")
	content := `
log:
  level: debug
server:
  port: 9090
engine:
  workers: 8
providers:
  default: anthropic
  anthropic:
    model: claude-sonnet-4-5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewLoader().WithConfigFile(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Engine.Workers != 8 {
		t.Errorf("Engine.Workers = %d, want 8", cfg.Engine.Workers)
	}
	if cfg.Providers.Default != "anthropic" {
		t.Errorf("Providers.Default = %q, want anthropic", cfg.Providers.Default)
	}
	// Unset fields keep defaults.
	if cfg.Engine.MaxAttempts != 3 {
		t.Errorf("Engine.MaxAttempts = %d, want default 3", cfg.Engine.MaxAttempts)
	}
}

func TestLoader_EnvOverride(t *testing.T) {
	t.Setenv("FLOWLINE_SERVER_PORT", "7070")
	t.Setenv("FLOWLINE_PROVIDERS_OPENAI_API_KEY", "sk-test-key")

	loader := NewLoader()
	loader.v.AddConfigPath(t.TempDir())
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want env override 7070", cfg.Server.Port)
	}
	if cfg.Providers.OpenAI.APIKey != "sk-test-key" {
		t.Errorf("OpenAI.APIKey = %q, want env value", cfg.Providers.OpenAI.APIKey)
	}
}
