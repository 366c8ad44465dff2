package health

import (
	"errors"
	"sync/atomic"
	"time"
)

var (
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
)

// CircuitBreaker stops probing a server that keeps failing, it half-opens
// again once timeout has passed since the last failure
type CircuitBreaker struct {
	failures         atomic.Int64
	lastFailure      atomic.Int64 // unix nano
	isOpen           atomic.Bool
	failureThreshold int
	timeout          time.Duration
}

func NewCircuitBreaker() *CircuitBreaker {
	return NewCircuitBreakerWith(DefaultCircuitBreakerThreshold, DefaultCircuitBreakerTimeout)
}

func NewCircuitBreakerWith(threshold int, timeout time.Duration) *CircuitBreaker {
	if threshold < 1 {
		threshold = 1
	}
	return &CircuitBreaker{
		failureThreshold: threshold,
		timeout:          timeout,
	}
}

func (cb *CircuitBreaker) IsOpen() bool {
	if !cb.isOpen.Load() {
		return false
	}

	lastFailure := time.Unix(0, cb.lastFailure.Load())
	if time.Since(lastFailure) > cb.timeout {
		cb.isOpen.Store(false)
		cb.failures.Store(0)
		return false
	}
	return true
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.failures.Store(0)
	cb.isOpen.Store(false)
}

func (cb *CircuitBreaker) RecordFailure() {
	failures := cb.failures.Add(1)
	cb.lastFailure.Store(time.Now().UnixNano())

	if failures >= int64(cb.failureThreshold) {
		cb.isOpen.Store(true)
	}
}

func (cb *CircuitBreaker) Failures() int {
	return int(cb.failures.Load())
}
