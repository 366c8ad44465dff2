package config

import (
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Filename    string            `yaml:"-" mapstructure:"-"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Client      ClientConfig      `yaml:"client" mapstructure:"client"`
	Chat        ChatConfig        `yaml:"chat" mapstructure:"chat"`
	Degradation DegradationConfig `yaml:"degradation" mapstructure:"degradation"`
	Health      HealthConfig      `yaml:"health" mapstructure:"health"`
	Logging     LoggingConfig     `yaml:"logging" mapstructure:"logging"`
}

// ServerConfig points at the inference server (LM Studio, Ollama, llama.cpp...)
type ServerConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	APIKey  string `yaml:"api_key,omitempty" mapstructure:"api_key"`
}

// ClientConfig tunes the HTTP client
type ClientConfig struct {
	MetricsPaths      map[string]string `yaml:"metrics_paths,omitempty" mapstructure:"metrics_paths"`
	Timeout           time.Duration     `yaml:"timeout" mapstructure:"timeout"`
	RetryAttempts     int               `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RequestsPerSecond float64           `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int               `yaml:"burst" mapstructure:"burst"`
	MaxResponseSize   int64             `yaml:"max_response_size" mapstructure:"max_response_size"`
	LegacyModelCompat bool              `yaml:"legacy_model_compat" mapstructure:"legacy_model_compat"`
}

// ChatConfig holds chat defaults used by the REPL and one-shot commands
type ChatConfig struct {
	DefaultModel string  `yaml:"default_model" mapstructure:"default_model"`
	SystemPrompt string  `yaml:"system_prompt" mapstructure:"system_prompt"`
	Temperature  float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens    int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxHistory   int     `yaml:"max_history" mapstructure:"max_history"`
	Stream       bool    `yaml:"stream" mapstructure:"stream"`
}

// DegradationConfig holds fallback strategies per feature and retry scheduling
type DegradationConfig struct {
	Strategies       map[string]string `yaml:"strategies" mapstructure:"strategies"`
	CacheTTL         time.Duration     `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	RetryMaxAttempts int               `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryBaseDelay   time.Duration     `yaml:"retry_base_delay" mapstructure:"retry_base_delay"`
}

// HealthConfig controls the connection poller
type HealthConfig struct {
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Dir        string `yaml:"dir" mapstructure:"dir"`
	Theme      string `yaml:"theme" mapstructure:"theme"`
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"`
	FileOutput bool   `yaml:"file_output" mapstructure:"file_output"`
}
