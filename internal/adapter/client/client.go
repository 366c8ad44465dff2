package client

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/docker/go-units"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"

	"github.com/thushan/locallm/internal/config"
	"github.com/thushan/locallm/internal/core/constants"
	"github.com/thushan/locallm/internal/logger"
	"github.com/thushan/locallm/internal/util"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DefaultTimeout         = 30 * time.Second
	DefaultMaxResponseSize = 32 * 1024 * 1024
	MaxErrorBodySize       = 64 * 1024
	MaxStreamLineSize      = 1024 * 1024

	DefaultMaxIdleConnections        = 10
	DefaultIdleConnTimeout           = 90 * time.Second
	DefaultMaxIdleConnectionsPerHost = 4
)

// HTTPClient interface for better testability
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Settings is the mutable part of the client, swapped as a whole by UpdateSettings
type Settings struct {
	MetricsPaths      map[string]string
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RetryAttempts     int
	RequestsPerSecond float64
	Burst             int
	MaxResponseSize   int64
	LegacyModelCompat bool

	// Retry delay is min(RetryBaseDelay*2^attempt + jitter, RetryMaxDelay)
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RetryJitter    time.Duration
}

// SettingsFromConfig maps configuration onto client settings
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		BaseURL:           cfg.Server.BaseURL,
		APIKey:            cfg.Server.APIKey,
		Timeout:           cfg.Client.Timeout,
		RetryAttempts:     cfg.Client.RetryAttempts,
		RequestsPerSecond: cfg.Client.RequestsPerSecond,
		Burst:             cfg.Client.Burst,
		MaxResponseSize:   cfg.Client.MaxResponseSize,
		LegacyModelCompat: cfg.Client.LegacyModelCompat,
		MetricsPaths:      cfg.Client.MetricsPaths,
		RetryBaseDelay:    constants.DefaultRetryBaseDelay,
		RetryMaxDelay:     constants.DefaultRetryMaxDelay,
		RetryJitter:       constants.DefaultRetryJitterMax,
	}
}

func (s Settings) withDefaults() Settings {
	s.BaseURL = util.NormaliseBaseURL(s.BaseURL)
	if s.BaseURL == "" {
		s.BaseURL = constants.DefaultBaseURL
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
	if s.RetryAttempts < 0 {
		s.RetryAttempts = 0
	}
	if s.MaxResponseSize <= 0 {
		s.MaxResponseSize = DefaultMaxResponseSize
	}
	if s.RetryBaseDelay <= 0 {
		s.RetryBaseDelay = constants.DefaultRetryBaseDelay
	}
	if s.RetryMaxDelay <= 0 {
		s.RetryMaxDelay = constants.DefaultRetryMaxDelay
	}
	if s.RetryJitter < 0 {
		s.RetryJitter = 0
	}
	if s.Burst <= 0 {
		s.Burst = 1
	}
	return s
}

// Client talks to an OpenAI-compatible inference server. It retries
// transient failures and classifies everything else into *domain.LLMError.
type Client struct {
	httpClient HTTPClient
	logger     *logger.StyledLogger
	limiter    *rate.Limiter
	extractor  *StatsExtractor
	sleep      func(ctx context.Context, d time.Duration) error
	settings   Settings
	stats      clientStats
	mu         sync.RWMutex
}

// Option customises a Client at construction
type Option func(*Client)

// WithHTTPClient swaps the transport, mostly for tests
func WithHTTPClient(hc HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithSleep replaces the backoff sleeper so tests don't wait out real delays
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.sleep = fn
	}
}

func New(settings Settings, log *logger.StyledLogger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			// per request timeouts come from the context, streaming needs an open-ended body
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        DefaultMaxIdleConnections,
				IdleConnTimeout:     DefaultIdleConnTimeout,
				MaxIdleConnsPerHost: DefaultMaxIdleConnectionsPerHost,
			},
		},
		logger: log,
		sleep:  sleepContext,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.applySettings(settings)
	return c
}

// UpdateSettings applies new settings, in-flight requests finish with the old ones
func (c *Client) UpdateSettings(settings Settings) {
	old := c.Settings()
	c.applySettings(settings)
	next := c.Settings()

	if old.BaseURL != next.BaseURL {
		c.logger.InfoWithEndpoint("Server changed to", next.BaseURL, "previous", old.BaseURL)
	}
	c.logger.Debug("Client settings updated",
		"timeout", next.Timeout,
		"retry_attempts", next.RetryAttempts,
		"requests_per_second", next.RequestsPerSecond,
		"max_response_size", units.HumanSize(float64(next.MaxResponseSize)))
}

func (c *Client) applySettings(settings Settings) {
	settings = settings.withDefaults()

	var limiter *rate.Limiter
	if settings.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(settings.RequestsPerSecond), settings.Burst)
	}

	extractor, err := NewStatsExtractor(settings.MetricsPaths)
	if err != nil {
		c.logger.Warn("Ignoring invalid metrics paths", "error", err)
		extractor = nil
	}

	c.mu.Lock()
	c.settings = settings
	c.limiter = limiter
	c.extractor = extractor
	c.mu.Unlock()
}

// Settings returns a copy of the current settings
func (c *Client) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

func (c *Client) BaseURL() string {
	return c.Settings().BaseURL
}

func (c *Client) snapshot() (Settings, *rate.Limiter, *StatsExtractor) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings, c.limiter, c.extractor
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
