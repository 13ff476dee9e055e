// Package config provides configuration types and loading for argus.
package config

// Config is the root configuration struct.
// Top-level groups: Paths, Analysis, Extraction, Events, Server, Log.
type Config struct {
	Paths      PathsConfig      `json:"paths"`
	Analysis   AnalysisConfig   `json:"analysis"`
	Extraction ExtractionConfig `json:"extraction"`
	Events     EventsConfig     `json:"events"`
	Server     ServerConfig     `json:"server"`
	Log        LogConfig        `json:"log"`
}

// ---------------------------------------------------------------------------
// Paths – filesystem locations
// ---------------------------------------------------------------------------

// PathsConfig groups all filesystem path settings.
type PathsConfig struct {
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
	GraphDB string `json:"graphDb" envconfig:"GRAPH_DB"`
}

// ---------------------------------------------------------------------------
// Analysis – orchestrator policies and backend endpoints
// ---------------------------------------------------------------------------

// PolicyConfig controls timeout and retry behaviour for one analysis kind.
// Zero values fall back to the built-in defaults.
type PolicyConfig struct {
	TimeoutSeconds   int `json:"timeoutSeconds" envconfig:"TIMEOUT_SECONDS"`
	MaxRetries       int `json:"maxRetries" envconfig:"MAX_RETRIES"`
	RetryDelayMillis int `json:"retryDelayMillis" envconfig:"RETRY_DELAY_MILLIS"`
}

// BackendConfig locates one analysis backend service.
type BackendConfig struct {
	BaseURL string `json:"baseUrl" envconfig:"BASE_URL"`
	APIKey  string `json:"apiKey" envconfig:"API_KEY"`
}

// BackendsConfig contains one endpoint per analysis kind.
type BackendsConfig struct {
	Topology  BackendConfig `json:"topology"`
	Causal    BackendConfig `json:"causal"`
	Consensus BackendConfig `json:"consensus"`
}

// AnalysisConfig groups orchestrator settings.
type AnalysisConfig struct {
	Topology      PolicyConfig   `json:"topology"`
	Causal        PolicyConfig   `json:"causal"`
	Consensus     PolicyConfig   `json:"consensus"`
	MaxConcurrent int            `json:"maxConcurrent" envconfig:"MAX_CONCURRENT"`
	Backends      BackendsConfig `json:"backends"`
}

// ---------------------------------------------------------------------------
// Extraction – triple extraction capability
// ---------------------------------------------------------------------------

// ExtractionConfig configures the OpenAI-compatible extraction endpoint.
type ExtractionConfig struct {
	APIKey         string `json:"apiKey" envconfig:"API_KEY"`
	APIBase        string `json:"apiBase,omitempty" envconfig:"API_BASE"`
	Model          string `json:"model" envconfig:"MODEL"`
	TimeoutSeconds int    `json:"timeoutSeconds" envconfig:"TIMEOUT_SECONDS"`
}

// ---------------------------------------------------------------------------
// Events – distribution fabric
// ---------------------------------------------------------------------------

// KafkaBridgeConfig configures the optional Kafka event mirror.
type KafkaBridgeConfig struct {
	Enabled             bool   `json:"enabled" envconfig:"ENABLED"`
	Brokers             string `json:"brokers" envconfig:"BROKERS"`
	Topic               string `json:"topic" envconfig:"TOPIC"`
	WriteTimeoutSeconds int    `json:"writeTimeoutSeconds" envconfig:"WRITE_TIMEOUT_SECONDS"`
}

// EventsConfig groups event-distribution settings.
type EventsConfig struct {
	// BufferSize is the per-connection delivery channel capacity.
	BufferSize int               `json:"bufferSize" envconfig:"BUFFER_SIZE"`
	Kafka      KafkaBridgeConfig `json:"kafka"`
}

// ---------------------------------------------------------------------------
// Server / Log
// ---------------------------------------------------------------------------

// ServerConfig configures the HTTP and websocket surface.
type ServerConfig struct {
	Listen string `json:"listen" envconfig:"LISTEN"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `json:"level" envconfig:"LEVEL"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir: "~/.argus",
			GraphDB: "~/.argus/graph.db",
		},
		Analysis: AnalysisConfig{
			Topology:      PolicyConfig{TimeoutSeconds: 300, MaxRetries: 3, RetryDelayMillis: 1000},
			Causal:        PolicyConfig{TimeoutSeconds: 240, MaxRetries: 3, RetryDelayMillis: 1500},
			Consensus:     PolicyConfig{TimeoutSeconds: 180, MaxRetries: 2, RetryDelayMillis: 2000},
			MaxConcurrent: 3,
		},
		Extraction: ExtractionConfig{
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 60,
		},
		Events: EventsConfig{
			BufferSize: 64,
			Kafka: KafkaBridgeConfig{
				Topic:               "argus.events",
				WriteTimeoutSeconds: 10,
			},
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:8090",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
