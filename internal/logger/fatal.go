package logger

import (
	"log/slog"
	"os"
)

const (
	ExitFailure     = 1
	ExitConfigError = 2
)

// exitFunc is swapped in tests
var exitFunc = os.Exit

func FatalWithLogger(logger *slog.Logger, msg string, args ...any) {
	logger.Error(msg, args...)
	exitFunc(ExitFailure)
}

// FatalConfig is used when settings can't be loaded, scripts can tell it apart by exit code
func FatalConfig(logger *slog.Logger, msg string, args ...any) {
	logger.Error(msg, args...)
	exitFunc(ExitConfigError)
}
