package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/thushan/locallm/internal/core/constants"
	"github.com/thushan/locallm/internal/core/domain"
	"github.com/thushan/locallm/internal/util"
)

const (
	DefaultConfigName = "locallm"
	DefaultEnvPrefix  = "LOCALLM"
	EnvConfigFile     = "LOCALLM_CONFIG_FILE"

	DefaultMaxResponseSize = 32 * 1024 * 1024
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			// LM Studio's default port
			BaseURL: constants.DefaultBaseURL,
		},
		Client: ClientConfig{
			Timeout:           30 * time.Second,
			RetryAttempts:     constants.DefaultRetryAttempts,
			RequestsPerSecond: 0, // unlimited
			Burst:             1,
			MaxResponseSize:   DefaultMaxResponseSize,
			LegacyModelCompat: true,
			MetricsPaths:      map[string]string{},
		},
		Chat: ChatConfig{
			SystemPrompt: "You are a helpful coding assistant.",
			Temperature:  0.7,
			MaxTokens:    2048,
			MaxHistory:   20,
			Stream:       true,
		},
		Degradation: DegradationConfig{
			Strategies: map[string]string{
				string(domain.FeatureModels):     string(domain.StrategyCached),
				string(domain.FeatureChat):       string(domain.StrategySimplified),
				string(domain.FeatureCompletion): string(domain.StrategySimplified),
				string(domain.FeatureEmbeddings): string(domain.StrategyGuidance),
			},
			CacheTTL:         5 * time.Minute,
			RetryMaxAttempts: 3,
			RetryBaseDelay:   2 * time.Second,
		},
		Health: HealthConfig{
			Enabled:  true,
			Interval: 30 * time.Second,
			Timeout:  5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "warn",
			FileOutput: false,
			Dir:        "./logs",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
			Theme:      "default",
		},
	}
}

// LoadEnvFiles loads .env style files that exist, later files don't override earlier ones
func LoadEnvFiles(files ...string) []string {
	var loaded []string
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			continue
		}
		loaded = append(loaded, f)
	}
	return loaded
}

// DefaultEnvFiles returns the env files checked at startup
func DefaultEnvFiles() []string {
	files := []string{".env", DefaultConfigName + ".env"}
	if home, err := os.UserHomeDir(); err == nil {
		files = append(files, filepath.Join(home, ".config", DefaultConfigName, DefaultConfigName+".env"))
	}
	return files
}

// Load loads configuration from file and environment variables. An explicit
// configFile must exist, otherwise a missing config file just means defaults.
func Load(configFile string) (*Config, error) {
	v := newViper()

	if configFile == "" {
		configFile = os.Getenv(EnvConfigFile)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	} else if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Watch re-reads the config file on change and hands the new, validated config to onChange.
// Invalid edits are reported to onError and the previous config stays in effect.
func Watch(cfg *Config, onChange func(*Config, fsnotify.Event), onError func(error)) bool {
	if cfg == nil || cfg.Filename == "" {
		return false
	}

	v := newViper()
	v.SetConfigFile(cfg.Filename)
	if err := v.ReadInConfig(); err != nil {
		if onError != nil {
			onError(err)
		}
		return false
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(v)
		if err == nil {
			err = next.Validate()
		}
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(next, e)
	})
	v.WatchConfig()
	return true
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName(DefaultConfigName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", DefaultConfigName))
	}

	v.SetEnvPrefix(DefaultEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultConfig())
	return v
}

// setDefaults registers every key so AutomaticEnv can override it during Unmarshal
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.base_url", d.Server.BaseURL)
	v.SetDefault("server.api_key", d.Server.APIKey)

	v.SetDefault("client.timeout", d.Client.Timeout)
	v.SetDefault("client.retry_attempts", d.Client.RetryAttempts)
	v.SetDefault("client.requests_per_second", d.Client.RequestsPerSecond)
	v.SetDefault("client.burst", d.Client.Burst)
	v.SetDefault("client.max_response_size", d.Client.MaxResponseSize)
	v.SetDefault("client.legacy_model_compat", d.Client.LegacyModelCompat)
	v.SetDefault("client.metrics_paths", d.Client.MetricsPaths)

	v.SetDefault("chat.default_model", d.Chat.DefaultModel)
	v.SetDefault("chat.system_prompt", d.Chat.SystemPrompt)
	v.SetDefault("chat.temperature", d.Chat.Temperature)
	v.SetDefault("chat.max_tokens", d.Chat.MaxTokens)
	v.SetDefault("chat.max_history", d.Chat.MaxHistory)
	v.SetDefault("chat.stream", d.Chat.Stream)

	v.SetDefault("degradation.strategies", d.Degradation.Strategies)
	v.SetDefault("degradation.cache_ttl", d.Degradation.CacheTTL)
	v.SetDefault("degradation.retry_max_attempts", d.Degradation.RetryMaxAttempts)
	v.SetDefault("degradation.retry_base_delay", d.Degradation.RetryBaseDelay)

	v.SetDefault("health.enabled", d.Health.Enabled)
	v.SetDefault("health.interval", d.Health.Interval)
	v.SetDefault("health.timeout", d.Health.Timeout)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file_output", d.Logging.FileOutput)
	v.SetDefault("logging.dir", d.Logging.Dir)
	v.SetDefault("logging.max_size", d.Logging.MaxSize)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age", d.Logging.MaxAge)
	v.SetDefault("logging.theme", d.Logging.Theme)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.Filename = v.ConfigFileUsed()
	cfg.Server.BaseURL = util.NormaliseBaseURL(cfg.Server.BaseURL)
	return cfg, nil
}

// Validate checks the values that would otherwise fail deep inside the client
func (c *Config) Validate() error {
	if err := util.ValidateBaseURL(c.Server.BaseURL); err != nil {
		return domain.NewConfigValidationError("server.base_url", c.Server.BaseURL, err.Error())
	}
	if c.Client.Timeout <= 0 {
		return domain.NewConfigValidationError("client.timeout", c.Client.Timeout, "must be positive")
	}
	if c.Client.RetryAttempts < 0 || c.Client.RetryAttempts > 10 {
		return domain.NewConfigValidationError("client.retry_attempts", c.Client.RetryAttempts, "must be between 0 and 10")
	}
	if c.Client.RequestsPerSecond < 0 {
		return domain.NewConfigValidationError("client.requests_per_second", c.Client.RequestsPerSecond, "must not be negative")
	}
	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		return domain.NewConfigValidationError("chat.temperature", c.Chat.Temperature, "must be between 0 and 2")
	}
	if c.Chat.MaxTokens < 0 {
		return domain.NewConfigValidationError("chat.max_tokens", c.Chat.MaxTokens, "must not be negative")
	}
	if c.Chat.MaxHistory < 1 {
		return domain.NewConfigValidationError("chat.max_history", c.Chat.MaxHistory, "must be at least 1")
	}
	for feature, strategy := range c.Degradation.Strategies {
		if _, err := domain.ParseFeature(feature); err != nil {
			return domain.NewConfigValidationError("degradation.strategies", feature, err.Error())
		}
		if _, err := domain.ParseFallbackStrategy(strategy); err != nil {
			return domain.NewConfigValidationError("degradation.strategies."+feature, strategy, err.Error())
		}
	}
	if c.Health.Enabled && c.Health.Interval < time.Second {
		return domain.NewConfigValidationError("health.interval", c.Health.Interval, "must be at least 1s")
	}
	return nil
}

// StrategyFor returns the configured fallback strategy, guidance when unset
func (c *Config) StrategyFor(feature domain.Feature) domain.FallbackStrategy {
	if s, ok := c.Degradation.Strategies[string(feature)]; ok {
		if strategy, err := domain.ParseFallbackStrategy(s); err == nil {
			return strategy
		}
	}
	return domain.StrategyGuidance
}

// ToYAML renders the effective configuration, the API key is masked
func (c *Config) ToYAML() ([]byte, error) {
	masked := *c
	if masked.Server.APIKey != "" {
		masked.Server.APIKey = "********"
	}
	return yaml.Marshal(&masked)
}
