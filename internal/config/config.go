package config

// Config holds all application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	File      string `mapstructure:"file"`
	AddSource bool   `mapstructure:"add_source"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host            string   `mapstructure:"host"`
	Port            int      `mapstructure:"port"`
	CORSOrigins     []string `mapstructure:"cors_origins"`
	ReadTimeout     string   `mapstructure:"read_timeout"`
	WriteTimeout    string   `mapstructure:"write_timeout"`
	ShutdownTimeout string   `mapstructure:"shutdown_timeout"`
}

// StorageConfig configures workflow and run persistence.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// EngineConfig configures run execution.
type EngineConfig struct {
	Workers      int    `mapstructure:"workers"`
	QueueSize    int    `mapstructure:"queue_size"`
	WakeInterval string `mapstructure:"wake_interval"`
	MaxAttempts  int    `mapstructure:"max_attempts"`
	BaseDelay    string `mapstructure:"base_delay"`
	MaxDelay     string `mapstructure:"max_delay"`
}

// ProvidersConfig configures the model providers.
type ProvidersConfig struct {
	Default   string         `mapstructure:"default"`
	OpenAI    ProviderConfig `mapstructure:"openai"`
	Anthropic ProviderConfig `mapstructure:"anthropic"`
	Gemini    ProviderConfig `mapstructure:"gemini"`
}

// ProviderConfig configures a single model provider.
type ProviderConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	Timeout string `mapstructure:"timeout"`
}

// TelemetryConfig configures recording of model inputs and outputs on
// step records. Both default off so prompts never land in storage unless
// asked for.
type TelemetryConfig struct {
	RecordInputs  bool `mapstructure:"record_inputs"`
	RecordOutputs bool `mapstructure:"record_outputs"`
}

// EnabledProviders returns the names of providers with Enabled set.
func (p *ProvidersConfig) EnabledProviders() []string {
	var names []string
	if p.OpenAI.Enabled {
		names = append(names, "openai")
	}
	if p.Anthropic.Enabled {
		names = append(names, "anthropic")
	}
	if p.Gemini.Enabled {
		names = append(names, "gemini")
	}
	return names
}
