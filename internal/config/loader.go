package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".argus"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("ARGUS_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := resolveHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := resolveHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

func resolveHomeDir() (string, error) {
	if h := strings.TrimSpace(os.Getenv("ARGUS_HOME")); h != "" {
		if strings.HasPrefix(h, "~") {
			base, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(base, h[1:]), nil
		}
		return h, nil
	}
	return os.UserHomeDir()
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Load process env vars from ~/.config/argus/env (and fallbacks) first.
	LoadEnvFileCandidates()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil // Use defaults if we can't find config path
	}

	data, err := os.ReadFile(path)
	if err == nil {
		data = substituteEnvValues(data)
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	// If file doesn't exist, continue with defaults

	// Override with environment variables for each group
	envconfig.Process("ARGUS_PATHS", &cfg.Paths)
	envconfig.Process("ARGUS_ANALYSIS", &cfg.Analysis)
	envconfig.Process("ARGUS_ANALYSIS_TOPOLOGY", &cfg.Analysis.Topology)
	envconfig.Process("ARGUS_ANALYSIS_CAUSAL", &cfg.Analysis.Causal)
	envconfig.Process("ARGUS_ANALYSIS_CONSENSUS", &cfg.Analysis.Consensus)
	envconfig.Process("ARGUS_BACKEND_TOPOLOGY", &cfg.Analysis.Backends.Topology)
	envconfig.Process("ARGUS_BACKEND_CAUSAL", &cfg.Analysis.Backends.Causal)
	envconfig.Process("ARGUS_BACKEND_CONSENSUS", &cfg.Analysis.Backends.Consensus)
	envconfig.Process("ARGUS_EXTRACTION", &cfg.Extraction)
	envconfig.Process("ARGUS_EVENTS", &cfg.Events)
	envconfig.Process("ARGUS_EVENTS_KAFKA", &cfg.Events.Kafka)
	envconfig.Process("ARGUS_SERVER", &cfg.Server)
	envconfig.Process("ARGUS_LOG", &cfg.Log)

	// Fallback for extraction API key
	if cfg.Extraction.APIKey == "" {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg.Extraction.APIKey = key
		} else if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
			cfg.Extraction.APIKey = key
		}
	}

	// Expand ~ in paths
	expandHome := func(p *string) {
		if strings.HasPrefix(*p, "~") {
			if home, err := os.UserHomeDir(); err == nil {
				*p = filepath.Join(home, (*p)[1:])
			}
		}
	}
	expandHome(&cfg.Paths.DataDir)
	expandHome(&cfg.Paths.GraphDB)

	if cfg.Analysis.MaxConcurrent <= 0 {
		cfg.Analysis.MaxConcurrent = 3
	}
	if cfg.Events.BufferSize <= 0 {
		cfg.Events.BufferSize = 64
	}

	return cfg, nil
}

// Save writes the configuration to the config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// EnsureDir ensures a directory exists with proper permissions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// substituteEnvValues replaces ${VAR} references in the raw config with the
// corresponding environment variable, leaving unknown references untouched.
func substituteEnvValues(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if len(parts) != 2 {
			return match
		}
		if value, ok := os.LookupEnv(string(parts[1])); ok {
			return []byte(value)
		}
		return match
	})
}
