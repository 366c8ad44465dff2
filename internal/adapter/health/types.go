package health

import (
	"context"
	"time"

	"github.com/thushan/locallm/internal/core/constants"
)

const (
	DefaultCheckInterval = 30 * time.Second
	DefaultCheckTimeout  = 5 * time.Second

	SlowResponseThreshold = 10 * time.Second

	DefaultCircuitBreakerThreshold = 3
	DefaultCircuitBreakerTimeout   = 30 * time.Second

	MaxBackoffMultiplier = constants.DefaultMaxBackoffMultiplier
	MaxBackoffSeconds    = constants.DefaultMaxBackoffSeconds
)

type Status string

const (
	StatusUnknown   Status = "unknown"
	StatusOnline    Status = "online"
	StatusBusy      Status = "busy"
	StatusUnhealthy Status = "unhealthy"
	StatusOffline   Status = "offline"
)

// IsReachable reports whether the server answered at all
func (s Status) IsReachable() bool {
	return s == StatusOnline || s == StatusBusy
}

// Pinger is the narrow view of the client used for probing
type Pinger interface {
	TestConnection(ctx context.Context) (time.Duration, error)
}

// Result is the outcome of a single connection check
type Result struct {
	CheckedAt           time.Time
	Err                 error
	Status              Status
	Latency             time.Duration
	NextCheckIn         time.Duration
	ConsecutiveFailures int
}
