package util

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/thushan/locallm/internal/core/constants"
)

// CalculateRetryDelay computes the client retry delay for a zero-based attempt.
// Formula: min(baseDelay * 2^attempt + jitter, maxDelay), jitter uniform in [0, jitterMax)
func CalculateRetryDelay(attempt int, baseDelay, maxDelay, jitterMax time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	backoff := float64(baseDelay) * math.Pow(2, float64(attempt))
	if jitterMax > 0 {
		backoff += float64(rand.Int64N(int64(jitterMax))) //nolint:gosec // jitter only
	}

	if backoff > float64(maxDelay) {
		backoff = float64(maxDelay)
	}

	return time.Duration(backoff)
}

// CalculateExponentialBackoff computes exponential backoff with optional jitter.
// Formula: baseDelay * 2^(attempt-1), capped at maxDelay
func CalculateExponentialBackoff(attempt int, baseDelay time.Duration, maxDelay time.Duration, jitterPercent float64) time.Duration {
	if attempt <= 0 {
		return 0
	}

	backoff := float64(baseDelay) * math.Pow(2, float64(attempt-1))

	if backoff > float64(maxDelay) {
		backoff = float64(maxDelay)
	}

	if jitterPercent > 0 {
		jitter := backoff * jitterPercent * (rand.Float64() - 0.5) //nolint:gosec // jitter only
		backoff += jitter
	}

	return time.Duration(backoff)
}

// CalculatePollBackoff computes the next connection poll interval.
// The multiplier is already exponential (1, 2, 4, 8...) and the result is capped.
func CalculatePollBackoff(checkInterval time.Duration, backoffMultiplier int) time.Duration {
	if backoffMultiplier <= 0 {
		return checkInterval
	}

	backoffInterval := checkInterval * time.Duration(backoffMultiplier)

	if backoffInterval > constants.DefaultMaxBackoffSeconds {
		backoffInterval = constants.DefaultMaxBackoffSeconds
	}

	return backoffInterval
}
