package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/thushan/locallm/internal/util"
	"github.com/thushan/locallm/theme"
)

type Config struct {
	Level      string
	LogDir     string
	Theme      string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	FileOutput bool

	// Writer overrides the terminal destination, stderr by default so
	// model output on stdout stays clean for piping
	Writer io.Writer
}

const DefaultLogOutputName = "locallm.log"

// New builds the terminal logger and, with FileOutput, a rotating JSON file
// that always records at debug so retries and state changes can be traced
// after the fact.
func New(cfg *Config) (*slog.Logger, func(), error) {
	level := parseLevel(cfg.Level)

	writer := cfg.Writer
	if writer == nil {
		writer = os.Stderr
	}
	terminal := createTerminalHandler(writer, level, theme.GetTheme(cfg.Theme))

	if !cfg.FileOutput {
		return slog.New(terminal), func() {}, nil
	}

	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory %s: %w", cfg.LogDir, err)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, DefaultLogOutputName),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   true,
	}
	file := slog.NewJSONHandler(rotator, &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: replaceAttr,
	})

	return slog.New(teeHandler{terminal: terminal, file: file}), func() { _ = rotator.Close() }, nil
}

func createTerminalHandler(w io.Writer, level slog.Level, appTheme *theme.Theme) slog.Handler {
	if util.ShouldUseColors() {
		plogger := pterm.DefaultLogger.
			WithLevel(convertToPTermLevel(level)).
			WithWriter(w).
			WithFormatter(pterm.LogFormatterColorful).
			WithKeyStyles(map[string]pterm.Style{
				"level": *appTheme.Info,
				"msg":   *appTheme.Info,
				"time":  *appTheme.Muted,
			})
		return pterm.NewSlogHandler(plogger)
	}

	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr,
	})
}

// replaceAttr keeps JSON records readable: styled strings lose their ANSI
// codes, errors become their message and retry delays and latencies are
// rounded to the millisecond.
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.String("timestamp", a.Value.Time().Format("2006-01-02 15:04:05"))
	}

	switch a.Value.Kind() {
	case slog.KindString:
		if str := a.Value.String(); strings.ContainsRune(str, '\x1b') {
			return slog.String(a.Key, stripAnsiCodes(str))
		}
	case slog.KindDuration:
		return slog.String(a.Key, a.Value.Duration().Round(time.Millisecond).String())
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, err.Error())
		}
		return slog.String(a.Key, fmt.Sprintf("%v", a.Value.Any()))
	}
	return a
}

// teeHandler writes every record to the terminal, at its level, and the file
type teeHandler struct {
	terminal slog.Handler
	file     slog.Handler
}

func (h teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.terminal.Enabled(ctx, level) || h.file.Enabled(ctx, level)
}

func (h teeHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.terminal.Enabled(ctx, record.Level) {
		if err := h.terminal.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}
	return h.file.Handle(ctx, record)
}

func (h teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return teeHandler{terminal: h.terminal.WithAttrs(attrs), file: h.file.WithAttrs(attrs)}
}

func (h teeHandler) WithGroup(name string) slog.Handler {
	return teeHandler{terminal: h.terminal.WithGroup(name), file: h.file.WithGroup(name)}
}

// parseLevel accepts slog's names plus "warning", anything else is info
func parseLevel(level string) slog.Level {
	level = strings.TrimSpace(level)
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func convertToPTermLevel(level slog.Level) pterm.LogLevel {
	switch {
	case level <= slog.LevelDebug:
		return pterm.LogLevelTrace
	case level <= slog.LevelInfo:
		return pterm.LogLevelInfo
	case level <= slog.LevelWarn:
		return pterm.LogLevelWarn
	default:
		return pterm.LogLevelError
	}
}
