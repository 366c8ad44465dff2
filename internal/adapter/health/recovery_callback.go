package health

import (
	"context"
)

// Observer receives every check result
type Observer interface {
	OnHealthResult(ctx context.Context, result Result)
}

type ObserverFunc func(ctx context.Context, result Result)

func (f ObserverFunc) OnHealthResult(ctx context.Context, result Result) {
	f(ctx, result)
}

// RecoveryCallback is called when the server comes back after being unreachable
type RecoveryCallback interface {
	OnConnectionRestored(ctx context.Context, result Result) error
}

// RecoveryCallbackFunc is a function adapter for RecoveryCallback
type RecoveryCallbackFunc func(ctx context.Context, result Result) error

func (f RecoveryCallbackFunc) OnConnectionRestored(ctx context.Context, result Result) error {
	return f(ctx, result)
}

// NoOpRecoveryCallback is a no-op implementation of RecoveryCallback
type NoOpRecoveryCallback struct{}

func (NoOpRecoveryCallback) OnConnectionRestored(ctx context.Context, result Result) error {
	return nil
}
