package app

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/thushan/locallm/internal/adapter/chat"
	"github.com/thushan/locallm/internal/adapter/client"
	"github.com/thushan/locallm/internal/adapter/degradation"
	"github.com/thushan/locallm/internal/adapter/guidance"
	"github.com/thushan/locallm/internal/adapter/health"
	"github.com/thushan/locallm/internal/config"
	"github.com/thushan/locallm/internal/core/domain"
	"github.com/thushan/locallm/internal/logger"
)

// Application wires the client, degradation service, error handler and
// connection monitor together for the CLI commands
type Application struct {
	configMu    sync.RWMutex
	config      *config.Config
	startTime   time.Time
	logger      *logger.StyledLogger
	client      *client.Client
	degradation *degradation.Service
	errors      *guidance.Handler
	monitor     *health.Monitor
	stopOnce    sync.Once
	started     bool
}

// New builds the application from cfg, nothing runs until Start
func New(cfg *config.Config, log *logger.StyledLogger, opts ...client.Option) *Application {
	llm := client.New(client.SettingsFromConfig(cfg), log, opts...)
	svc := degradation.NewService(degradation.ConfigFrom(cfg), log)

	monitor := health.NewMonitor(llm, log, health.MonitorConfig{
		Interval: cfg.Health.Interval,
		Timeout:  cfg.Health.Timeout,
	})
	monitor.SetObserver(svc)

	a := &Application{
		startTime:   time.Now(),
		logger:      log,
		client:      llm,
		degradation: svc,
		errors:      guidance.NewHandler(log, guidance.DefaultHistorySize),
		monitor:     monitor,
	}
	a.setConfig(cfg)

	monitor.SetRecoveryCallback(health.RecoveryCallbackFunc(func(ctx context.Context, result health.Result) error {
		log.InfoWithEndpoint("Connection restored", llm.BaseURL(), "latency", result.Latency)
		return nil
	}))

	// checks used by scheduled recovery
	check := func(ctx context.Context) error {
		_, err := llm.TestConnection(ctx)
		return err
	}
	svc.SetRecoveryCheck(domain.FeatureConnection, check)
	svc.SetRecoveryCheck(domain.FeatureModels, func(ctx context.Context) error {
		_, err := llm.ListModels(ctx)
		return err
	})

	return a
}

// Start runs the connection monitor and, when a config file is in use, live reload.
// One-shot commands don't call it.
func (a *Application) Start(ctx context.Context) error {
	cfg := a.getConfig()
	if cfg.Health.Enabled {
		if err := a.monitor.Start(ctx); err != nil {
			return err
		}
	}

	if config.Watch(cfg, a.reload, func(err error) {
		a.logger.Warn("Ignoring invalid configuration change", "error", err)
	}) {
		a.logger.Debug("Watching configuration", "file", cfg.Filename)
	}

	a.started = true
	return nil
}

func (a *Application) reload(next *config.Config, e fsnotify.Event) {
	a.setConfig(next)
	a.client.UpdateSettings(client.SettingsFromConfig(next))
	a.monitor.SetInterval(next.Health.Interval)
	a.logger.Info("Configuration reloaded", "file", e.Name, "op", e.Op.String())
	if a.monitor.IsRunning() {
		if err := a.monitor.ForceCheck(); err != nil {
			a.logger.Debug("Health check after reload failed", "error", err)
		}
	}
}

// Stop shuts down background work, it is safe to call more than once
func (a *Application) Stop() {
	a.stopOnce.Do(func() {
		if a.started {
			a.monitor.Stop()
		}
		a.degradation.Close()
		a.logger.Debug("Application stopped", "uptime", time.Since(a.startTime).Round(time.Millisecond))
	})
}

// EnableHealth turns on connection polling for long-running commands,
// interval overrides health.interval when positive
func (a *Application) EnableHealth(interval time.Duration) {
	a.configMu.Lock()
	a.config.Health.Enabled = true
	a.configMu.Unlock()
	a.monitor.SetInterval(interval)
}

func (a *Application) Client() *client.Client {
	return a.client
}

func (a *Application) Degradation() *degradation.Service {
	return a.degradation
}

func (a *Application) Errors() *guidance.Handler {
	return a.errors
}

func (a *Application) Monitor() *health.Monitor {
	return a.monitor
}

func (a *Application) Config() *config.Config {
	return a.getConfig()
}

func (a *Application) Logger() *logger.StyledLogger {
	return a.logger
}

func (a *Application) StartTime() time.Time {
	return a.startTime
}

// NewChat starts a conversation with the configured chat defaults
func (a *Application) NewChat() *chat.Controller {
	session := chat.NewSession(a.getConfig().Chat)
	return chat.NewController(a.client, session, a.degradation, a.errors, a.logger)
}
