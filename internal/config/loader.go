package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"preventcoach/internal/model"
)

// ProviderConfig describes one model provider in the failover priority list.
// Providers are attempted in the order they appear in config.yaml. API keys
// are referenced by environment variable name and resolved at load time; a
// keyed provider whose variable is unset is dropped from the list.
type ProviderConfig struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"` // openai, deepseek, ark, ollama
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"-"`
}

// GatewayConfig holds model-invocation gateway configuration.
type GatewayConfig struct {
	HistoryWindow int              `yaml:"history_window"`
	Providers     []ProviderConfig `yaml:"providers"`
}

// SessionConfig holds session store configuration.
type SessionConfig struct {
	RedisURL string `yaml:"redis_url" envconfig:"REDIS_URL"`
}

// AuditConfig holds audit sink configuration.
type AuditConfig struct {
	Sink      string `yaml:"sink"` // redis or file
	Dir       string `yaml:"dir"`
	QueueSize int    `yaml:"queue_size"`
}

// ProfilesConfig holds the patient directory configuration.
type ProfilesConfig struct {
	Path string `yaml:"path"`
}

// Config is the root configuration loaded from config.yaml with environment
// overrides applied on top.
type Config struct {
	Log      model.LogConfig `yaml:"log"`
	Gateway  GatewayConfig   `yaml:"gateway"`
	Session  SessionConfig   `yaml:"session"`
	Audit    AuditConfig     `yaml:"audit"`
	Profiles ProfilesConfig  `yaml:"profiles"`
}

// LoadConfig loads configuration from a YAML file, applies environment
// overrides and resolves provider API keys.
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing YAML: %w", err)
	}

	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("error processing environment configuration: %w", err)
	}

	applyDefaults(&config)
	config.Gateway.Providers = resolveProviders(config.Gateway.Providers)

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "console"
	}
	if config.Log.Output == "" {
		config.Log.Output = "stdout"
	}
	if config.Log.TimeFormat == "" {
		config.Log.TimeFormat = "rfc3339"
	}
	if config.Log.FilePath == "" {
		config.Log.FilePath = "logs/preventcoach.log"
	}
	if config.Gateway.HistoryWindow <= 0 {
		config.Gateway.HistoryWindow = 8
	}
	if config.Audit.Sink == "" {
		config.Audit.Sink = "file"
	}
	if config.Audit.Dir == "" {
		config.Audit.Dir = "data/audit"
	}
	if config.Audit.QueueSize <= 0 {
		config.Audit.QueueSize = 256
	}
	if config.Profiles.Path == "" {
		config.Profiles.Path = "patients.yaml"
	}
}

// resolveProviders resolves API keys from the environment and drops keyed
// providers whose key is absent. Keyless kinds (ollama) always stay.
func resolveProviders(providers []ProviderConfig) []ProviderConfig {
	resolved := make([]ProviderConfig, 0, len(providers))
	for _, p := range providers {
		if p.APIKeyEnv != "" {
			p.APIKey = os.Getenv(p.APIKeyEnv)
			if p.APIKey == "" {
				continue
			}
		}
		resolved = append(resolved, p)
	}
	return resolved
}
