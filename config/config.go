// Package config provides configuration loading and management for Driftwatch.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete Driftwatch configuration
type Config struct {
	Docs     DocsConfig     `yaml:"docs"`
	Model    ModelConfig    `yaml:"model"`
	Run      RunConfig      `yaml:"run"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	NATS     NATSConfig     `yaml:"nats"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

// DocsConfig configures the tracked document corpus
type DocsConfig struct {
	// Dir is the corpus root: one directory per topic, each holding a
	// <topic>-best-practices.md document
	Dir string `yaml:"dir"`
	// Watch enables the filesystem watcher between runs
	Watch bool `yaml:"watch"`
}

// EndpointConfig configures one model endpoint in the fallback chain
type EndpointConfig struct {
	// Provider selects the request codec ("ollama", "openai", "anthropic")
	Provider string `yaml:"provider"`
	// URL is the endpoint base URL
	URL string `yaml:"url"`
	// Model is the model identifier passed to the endpoint
	Model string `yaml:"model"`
	// MaxTokens caps the response length (0 = provider default)
	MaxTokens int `yaml:"max_tokens"`
}

// ModelConfig configures the LLM endpoint chain
type ModelConfig struct {
	// Endpoints is tried in order; a later entry serves when earlier ones fail
	Endpoints []EndpointConfig `yaml:"endpoints"`
	// Temperature controls randomness (0.0-1.0, default: 0.2)
	Temperature float64 `yaml:"temperature"`
	// Timeout is the maximum time to wait for model responses
	Timeout time.Duration `yaml:"timeout"`
}

// RunConfig configures audit run parameters
type RunConfig struct {
	// MaxConcurrentEvaluations bounds simultaneous evaluation agent calls
	MaxConcurrentEvaluations int `yaml:"max_concurrent_evaluations"`
	// TokenBudgetHint is the characters-per-token cost estimation ratio
	TokenBudgetHint int `yaml:"token_budget_hint"`
}

// GatewayConfig configures the remote repository tool endpoint
type GatewayConfig struct {
	// Endpoint is the MCP tool endpoint URL (empty = publishing disabled)
	Endpoint string `yaml:"endpoint"`
	// TokenEnv names the environment variable holding the bearer credential
	TokenEnv string `yaml:"token_env"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL (empty = use embedded server)
	URL string `yaml:"url"`
	// Embedded indicates whether to use embedded NATS
	Embedded bool `yaml:"embedded"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address for /metrics (empty = disabled)
	Addr string `yaml:"addr"`
}

// ScheduleConfig configures the audit trigger
type ScheduleConfig struct {
	// Cron is the schedule spec (default: Saturdays at 06:00)
	Cron string `yaml:"cron"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Docs: DocsConfig{
			Dir:   "docs",
			Watch: true,
		},
		Model: ModelConfig{
			Endpoints: []EndpointConfig{
				{
					Provider: "ollama",
					URL:      "http://localhost:11434/v1",
					Model:    "qwen2.5-coder:32b",
				},
			},
			Temperature: 0.2,
			Timeout:     5 * time.Minute,
		},
		Run: RunConfig{
			MaxConcurrentEvaluations: 3,
			TokenBudgetHint:          4,
		},
		Gateway: GatewayConfig{
			Endpoint: "",
			TokenEnv: "DRIFTWATCH_GATEWAY_TOKEN",
		},
		NATS: NATSConfig{
			URL:      "",
			Embedded: true,
		},
		Metrics: MetricsConfig{
			Addr: "",
		},
		Schedule: ScheduleConfig{
			Cron: "0 6 * * 6",
		},
	}
}

// GatewayToken resolves the bearer credential from the environment
func (c *Config) GatewayToken() string {
	if c.Gateway.TokenEnv == "" {
		return ""
	}
	return os.Getenv(c.Gateway.TokenEnv)
}

// PublishingEnabled reports whether a remote tool endpoint is configured
// and its bearer credential resolves. Without both, runs evaluate only and
// log what they would have published.
func (c *Config) PublishingEnabled() bool {
	return c.Gateway.Endpoint != "" && c.GatewayToken() != ""
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Docs.Dir == "" {
		return fmt.Errorf("docs.dir is required")
	}
	if len(c.Model.Endpoints) == 0 {
		return fmt.Errorf("model.endpoints must list at least one endpoint")
	}
	for i, ep := range c.Model.Endpoints {
		if ep.Provider == "" {
			return fmt.Errorf("model.endpoints[%d].provider is required", i)
		}
		if ep.URL == "" {
			return fmt.Errorf("model.endpoints[%d].url is required", i)
		}
		if ep.Model == "" {
			return fmt.Errorf("model.endpoints[%d].model is required", i)
		}
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 1 {
		return fmt.Errorf("model.temperature must be between 0 and 1")
	}
	if c.Run.MaxConcurrentEvaluations < 0 {
		return fmt.Errorf("run.max_concurrent_evaluations cannot be negative")
	}
	if c.Schedule.Cron == "" {
		return fmt.Errorf("schedule.cron is required")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Docs
	if other.Docs.Dir != "" {
		c.Docs.Dir = other.Docs.Dir
	}
	if other.Docs.Watch {
		c.Docs.Watch = true
	}

	// Model
	if len(other.Model.Endpoints) > 0 {
		c.Model.Endpoints = other.Model.Endpoints
	}
	if other.Model.Temperature != 0 {
		c.Model.Temperature = other.Model.Temperature
	}
	if other.Model.Timeout != 0 {
		c.Model.Timeout = other.Model.Timeout
	}

	// Run
	if other.Run.MaxConcurrentEvaluations != 0 {
		c.Run.MaxConcurrentEvaluations = other.Run.MaxConcurrentEvaluations
	}
	if other.Run.TokenBudgetHint != 0 {
		c.Run.TokenBudgetHint = other.Run.TokenBudgetHint
	}

	// Gateway
	if other.Gateway.Endpoint != "" {
		c.Gateway.Endpoint = other.Gateway.Endpoint
	}
	if other.Gateway.TokenEnv != "" {
		c.Gateway.TokenEnv = other.Gateway.TokenEnv
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
		c.NATS.Embedded = false
	}

	// Metrics
	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}

	// Schedule
	if other.Schedule.Cron != "" {
		c.Schedule.Cron = other.Schedule.Cron
	}
}
