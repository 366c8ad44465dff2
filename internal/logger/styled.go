package logger

import (
	"fmt"
	"log/slog"

	"github.com/pterm/pterm"

	"github.com/thushan/locallm/internal/core/domain"
	"github.com/thushan/locallm/theme"
)

// StyledLogger wraps slog.Logger with Theme-aware formatting
type StyledLogger struct {
	logger *slog.Logger
	Theme  *theme.Theme
}

func NewStyledLogger(logger *slog.Logger, theme *theme.Theme) *StyledLogger {
	return &StyledLogger{
		logger: logger,
		Theme:  theme,
	}
}

// NewDiscard returns a logger that drops everything, used by tests and library callers
func NewDiscard() *StyledLogger {
	return NewStyledLogger(slog.New(slog.DiscardHandler), theme.Default())
}

func (sl *StyledLogger) Debug(msg string, args ...any) {
	sl.logger.Debug(msg, args...)
}

func (sl *StyledLogger) Info(msg string, args ...any) {
	sl.logger.Info(msg, args...)
}

func (sl *StyledLogger) Warn(msg string, args ...any) {
	sl.logger.Warn(msg, args...)
}

func (sl *StyledLogger) Error(msg string, args ...any) {
	sl.logger.Error(msg, args...)
}

func (sl *StyledLogger) InfoWithCount(msg string, count int, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.Theme.Counts}.Sprint("(", count, ")"))
	sl.logger.Info(styledMsg, args...)
}

func (sl *StyledLogger) InfoWithEndpoint(msg string, endpoint string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.Theme.Endpoint}.Sprint(endpoint))
	sl.logger.Info(styledMsg, args...)
}

func (sl *StyledLogger) InfoWithModel(msg string, model string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.Theme.Model}.Sprint(model))
	sl.logger.Info(styledMsg, args...)
}

// InfoFeatureState logs a feature transition with the state coloured
func (sl *StyledLogger) InfoFeatureState(msg string, feature domain.Feature, state domain.FeatureState, args ...any) {
	styledMsg := fmt.Sprintf("%s %s is %s", msg,
		pterm.Style{sl.Theme.Endpoint}.Sprint(string(feature)),
		sl.FeatureStateText(state))

	if state == domain.StateUnavailable || state == domain.StateDisabled {
		sl.logger.Warn(styledMsg, args...)
		return
	}
	sl.logger.Info(styledMsg, args...)
}

// FeatureStateText colours a state for terminal output
func (sl *StyledLogger) FeatureStateText(state domain.FeatureState) string {
	var colour pterm.Color
	switch state {
	case domain.StateAvailable:
		colour = sl.Theme.StateAvailable
	case domain.StateLimited:
		colour = sl.Theme.StateLimited
	case domain.StateUnavailable:
		colour = sl.Theme.StateUnavailable
	default:
		colour = sl.Theme.StateDisabled
	}
	return pterm.Style{colour}.Sprint(string(state))
}

func (sl *StyledLogger) WithRequestID(requestID string) *StyledLogger {
	return sl.With("request_id", requestID)
}

func (sl *StyledLogger) With(args ...any) *StyledLogger {
	return &StyledLogger{
		logger: sl.logger.With(args...),
		Theme:  sl.Theme,
	}
}

func NewWithTheme(cfg *Config) (*slog.Logger, *StyledLogger, func(), error) {
	logger, cleanup, err := New(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	appTheme := theme.GetTheme(cfg.Theme)
	styledLogger := NewStyledLogger(logger, appTheme)

	return logger, styledLogger, cleanup, nil
}
