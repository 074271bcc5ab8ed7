package config

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateServer(&cfg.Server)
	v.validateStorage(&cfg.Storage)
	v.validateEngine(&cfg.Engine)
	v.validateProviders(&cfg.Providers)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
	})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error")
	}

	switch cfg.Format {
	case "auto", "text", "json":
	default:
		v.addError("log.format", cfg.Format, "must be one of: auto, text, json")
	}
}

func (v *Validator) validateServer(cfg *ServerConfig) {
	if cfg.Port < 1 || cfg.Port > 65535 {
		v.addError("server.port", cfg.Port, "must be between 1 and 65535")
	}
	v.validateDuration("server.read_timeout", cfg.ReadTimeout)
	v.validateDuration("server.write_timeout", cfg.WriteTimeout)
	v.validateDuration("server.shutdown_timeout", cfg.ShutdownTimeout)
}

func (v *Validator) validateStorage(cfg *StorageConfig) {
	switch cfg.Backend {
	case "sqlite", "json", "memory", "":
	default:
		v.addError("storage.backend", cfg.Backend, "must be one of: sqlite, json, memory")
	}
	if cfg.Backend != "memory" && strings.TrimSpace(cfg.Path) == "" {
		v.addError("storage.path", cfg.Path, "required for persistent backends")
	}
}

func (v *Validator) validateEngine(cfg *EngineConfig) {
	if cfg.Workers < 1 {
		v.addError("engine.workers", cfg.Workers, "must be at least 1")
	}
	if cfg.QueueSize < 1 {
		v.addError("engine.queue_size", cfg.QueueSize, "must be at least 1")
	}
	if cfg.MaxAttempts < 1 {
		v.addError("engine.max_attempts", cfg.MaxAttempts, "must be at least 1")
	}
	v.validateDuration("engine.wake_interval", cfg.WakeInterval)
	v.validateDuration("engine.base_delay", cfg.BaseDelay)
	v.validateDuration("engine.max_delay", cfg.MaxDelay)
}

func (v *Validator) validateProviders(cfg *ProvidersConfig) {
	switch cfg.Default {
	case "openai", "anthropic", "gemini", "":
	default:
		v.addError("providers.default", cfg.Default, "must be one of: openai, anthropic, gemini")
	}

	for name, p := range map[string]*ProviderConfig{
		"openai":    &cfg.OpenAI,
		"anthropic": &cfg.Anthropic,
		"gemini":    &cfg.Gemini,
	} {
		if !p.Enabled {
			continue
		}
		if p.Timeout != "" {
			v.validateDuration("providers."+name+".timeout", p.Timeout)
		}
		if strings.TrimSpace(p.Model) == "" {
			v.addError("providers."+name+".model", p.Model, "required when provider is enabled")
		}
	}

	if len(cfg.EnabledProviders()) == 0 {
		v.addError("providers", nil, "at least one provider must be enabled")
	}
}

func (v *Validator) validateDuration(field, value string) {
	if value == "" {
		v.addError(field, value, "required duration")
		return
	}
	if _, err := time.ParseDuration(value); err != nil {
		v.addError(field, value, "invalid duration format")
	}
}
