package constants

import "time"

// Retry and backoff constants
const (
	// Client retry delay is min(base*2^attempt + jitter, max)
	DefaultRetryBaseDelay = 1000 * time.Millisecond
	DefaultRetryMaxDelay  = 10 * time.Second
	DefaultRetryJitterMax = 1000 * time.Millisecond
	DefaultRetryAttempts  = 3

	// Maximum backoff multiplier for the connection poller (1, 2, 4, 8, 12)
	DefaultMaxBackoffMultiplier = 12

	// Maximum backoff duration for health checks and scheduled retries
	DefaultMaxBackoffSeconds = 60 * time.Second
)
