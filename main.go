package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/pterm/pterm"

	"github.com/thushan/locallm/internal/app"
	"github.com/thushan/locallm/internal/cli"
	"github.com/thushan/locallm/internal/config"
	"github.com/thushan/locallm/internal/core/domain"
	"github.com/thushan/locallm/internal/logger"
	"github.com/thushan/locallm/internal/util"
	"github.com/thushan/locallm/internal/version"
	"github.com/thushan/locallm/pkg/format"
	"github.com/thushan/locallm/pkg/nerdstats"
)

func main() {
	// .env files first so LOCALLM_* variables reach both kong and viper
	config.LoadEnvFiles(config.DefaultEnvFiles()...)

	// setup: graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	kctx := kong.Parse(&cli.CLI,
		kong.Name(version.ShortName),
		kong.Description(version.Description+"\n\nWorks with LM Studio, Ollama, llama.cpp and any OpenAI-compatible server.\n\nVersion: ${version}"),
		kong.UsageOnError(),
		kong.Vars{"version": version.Version},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	if !util.ShouldUseColors() {
		pterm.DisableColor()
	}

	cfg, err := config.Load(cli.CLI.ConfigFile)
	if err != nil {
		logger.FatalConfig(slog.Default(), "Failed to load configuration", "error", err)
	}
	if cli.CLI.Server != "" {
		if err := util.ValidateBaseURL(cli.CLI.Server); err != nil {
			logger.FatalConfig(slog.Default(), "Invalid --server", "error", err)
		}
		cfg.Server.BaseURL = cli.CLI.Server
	}
	if cli.CLI.LogLevel != nil {
		cfg.Logging.Level = *cli.CLI.LogLevel
	}

	logInstance, styledLogger, cleanup, err := logger.NewWithTheme(buildLoggerConfig(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialise logger: %v\n", err)
		os.Exit(logger.ExitFailure)
	}
	defer cleanup()
	slog.SetDefault(logInstance)

	styledLogger.Debug("Initialising", "version", version.Version, "pid", os.Getpid(), "command", kctx.Command())

	application := app.New(cfg, styledLogger)

	err = kctx.Run(&cli.Runtime{
		App:         application,
		In:          os.Stdin,
		Out:         os.Stdout,
		Err:         os.Stderr,
		Interactive: util.IsInteractiveInput(),
	})
	application.Stop()
	reportProcessStats(styledLogger, application.StartTime())

	if err != nil {
		styledLogger.Debug("Command failed", "command", kctx.Command(), "error", err)
		// llm errors have already been explained with guidance
		if _, ok := domain.AsLLMError(err); !ok {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		cleanup()
		os.Exit(logger.ExitFailure)
	}
}

func reportProcessStats(log *logger.StyledLogger, startTime time.Time) {
	stats := nerdstats.Snapshot(startTime)
	log.Debug("Process stats",
		"uptime", format.Duration(stats.Uptime),
		"heap_alloc", format.Bytes(int64(stats.HeapAlloc)),
		"heap_inuse", format.Bytes(int64(stats.HeapInuse)),
		"total_alloc", format.Bytes(int64(stats.TotalAlloc)),
		"live_objects", stats.LiveObjects(),
		"goroutines", stats.NumGoroutines,
		"num_gc", stats.NumGC,
		"avg_gc_pause", format.Duration(stats.AverageGCPause()),
	)
}

func buildLoggerConfig(cfg *config.Config) *logger.Config {
	return &logger.Config{
		Level:      cfg.Logging.Level,
		LogDir:     cfg.Logging.Dir,
		Theme:      cfg.Logging.Theme,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		FileOutput: cfg.Logging.FileOutput,
	}
}
