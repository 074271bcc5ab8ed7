package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "FLOWLINE",
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: "FLOWLINE",
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (FLOWLINE_*)
// 3. Project config (.flowline.yaml in current directory)
// 4. User config (~/.config/flowline/config.yaml)
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	// Configure environment variable reading
	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	// Config file setup
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName(".flowline")
		l.v.SetConfigType("yaml")

		// Project config takes precedence over user config
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "flowline"))
		}
	}

	// Read config file (ignore not found)
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// ConfigFileUsed returns the path of the config file viper actually read,
// or empty when running on defaults and environment alone.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	// Log defaults
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")
	l.v.SetDefault("log.add_source", false)

	// Server defaults
	l.v.SetDefault("server.host", "127.0.0.1")
	l.v.SetDefault("server.port", 8080)
	l.v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	l.v.SetDefault("server.read_timeout", "30s")
	l.v.SetDefault("server.write_timeout", "30s")
	l.v.SetDefault("server.shutdown_timeout", "10s")

	// Storage defaults
	l.v.SetDefault("storage.backend", "sqlite")
	l.v.SetDefault("storage.path", ".flowline/state/flowline.db")

	// Engine defaults
	l.v.SetDefault("engine.workers", 4)
	l.v.SetDefault("engine.queue_size", 256)
	l.v.SetDefault("engine.wake_interval", "1s")
	l.v.SetDefault("engine.max_attempts", 3)
	l.v.SetDefault("engine.base_delay", "1s")
	l.v.SetDefault("engine.max_delay", "30s")

	// Provider defaults. Keys come from the environment
	// (FLOWLINE_PROVIDERS_OPENAI_API_KEY and friends), never from
	// defaults.
	l.v.SetDefault("providers.default", "openai")
	l.v.SetDefault("providers.openai.enabled", true)
	l.v.SetDefault("providers.openai.model", "gpt-4o")
	l.v.SetDefault("providers.openai.timeout", "2m")
	l.v.SetDefault("providers.anthropic.enabled", true)
	l.v.SetDefault("providers.anthropic.model", "claude-sonnet-4-5")
	l.v.SetDefault("providers.anthropic.timeout", "2m")
	l.v.SetDefault("providers.gemini.enabled", true)
	l.v.SetDefault("providers.gemini.model", "gemini-2.5-flash")
	l.v.SetDefault("providers.gemini.timeout", "2m")

	// Viper only merges environment variables for keys it already
	// knows, so the secret fields need empty defaults.
	for _, p := range []string{"openai", "anthropic", "gemini"} {
		l.v.SetDefault("providers."+p+".api_key", "")
		l.v.SetDefault("providers."+p+".base_url", "")
	}

	// Telemetry defaults
	l.v.SetDefault("telemetry.record_inputs", false)
	l.v.SetDefault("telemetry.record_outputs", false)
}
