package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/thushan/locallm/internal/core/domain"
	"github.com/thushan/locallm/internal/logger"
	"github.com/thushan/locallm/internal/util"
)

/*
Connection status promotion:

Connection errors (refused, timeout, DNS):
- StatusOffline straight away
- Backoff: 2x, 4x, 8x up to MaxBackoffMultiplier, capped at MaxBackoffSeconds

Other errors (5xx, bad payloads):
- StatusUnhealthy, same backoff

Success:
- StatusBusy when slower than SlowResponseThreshold, StatusOnline otherwise
- Resets failure counters and backoff

Circuit breaker:
- Opens after DefaultCircuitBreakerThreshold consecutive failures
- Checks are skipped (reported offline) while open
- Half-opens after DefaultCircuitBreakerTimeout
*/

type MonitorConfig struct {
	Breaker  *CircuitBreaker
	Interval time.Duration
	Timeout  time.Duration
}

// Monitor polls the inference server and reports every result to an Observer
type Monitor struct {
	pinger   Pinger
	observer Observer
	recovery RecoveryCallback
	logger   *logger.StyledLogger
	breaker  *CircuitBreaker
	tracker  *StatusTransitionTracker
	stopCh   chan struct{}
	wakeCh   chan struct{}
	last     Result
	interval time.Duration
	timeout  time.Duration

	multiplier          int
	consecutiveFailures int

	wg      sync.WaitGroup
	mu      sync.Mutex
	stateMu sync.RWMutex
	running bool
}

func NewMonitor(pinger Pinger, log *logger.StyledLogger, cfg MonitorConfig) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultCheckInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCheckTimeout
	}
	if cfg.Breaker == nil {
		cfg.Breaker = NewCircuitBreaker()
	}
	return &Monitor{
		pinger:     pinger,
		logger:     log,
		breaker:    cfg.Breaker,
		tracker:    NewStatusTransitionTracker(),
		recovery:   NoOpRecoveryCallback{},
		interval:   cfg.Interval,
		timeout:    cfg.Timeout,
		multiplier: 1,
		last:       Result{Status: StatusUnknown},
	}
}

func (m *Monitor) SetObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = o
}

func (m *Monitor) SetRecoveryCallback(cb RecoveryCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cb == nil {
		cb = NoOpRecoveryCallback{}
	}
	m.recovery = cb
}

// Start checks immediately and then keeps polling until Stop or ctx is done
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	m.stopCh = make(chan struct{})
	m.wakeCh = make(chan struct{}, 1)
	m.running = true

	m.wg.Add(1)
	go m.loop(ctx, m.stopCh, m.wakeCh)

	m.logger.Debug("Connection monitor started", "interval", m.Interval(), "timeout", m.timeout)
	return nil
}

func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	close(m.stopCh)
	m.running = false
	m.mu.Unlock()

	m.wg.Wait()
}

func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// ForceCheck asks the running loop to check now instead of waiting out the interval
func (m *Monitor) ForceCheck() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return fmt.Errorf("connection monitor is not running")
	}
	select {
	case m.wakeCh <- struct{}{}:
	default:
	}
	return nil
}

// SetInterval changes the polling interval, it applies from the next check
func (m *Monitor) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	m.stateMu.Lock()
	m.interval = d
	m.stateMu.Unlock()
}

func (m *Monitor) Interval() time.Duration {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.interval
}

func (m *Monitor) LastResult() Result {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.last
}

func (m *Monitor) loop(ctx context.Context, stopCh, wakeCh chan struct{}) {
	defer m.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-wakeCh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		case <-timer.C:
		}

		result := m.Check(ctx)
		timer.Reset(result.NextCheckIn)
	}
}

// Check runs one connection check, updates backoff and notifies the observer
func (m *Monitor) Check(ctx context.Context) Result {
	start := time.Now()
	result := Result{CheckedAt: start}

	checked := false
	if m.breaker.IsOpen() {
		result.Err = domain.NewConnectionError(domain.CodeServerUnavailable, "server marked offline after repeated failures", ErrCircuitBreakerOpen)
	} else {
		checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
		result.Latency, result.Err = m.pinger.TestConnection(checkCtx)
		cancel()
		checked = true
		if result.Latency == 0 {
			result.Latency = time.Since(start)
		}
	}

	// shutting down mid check says nothing about the server
	if ctx.Err() != nil {
		return Result{Status: StatusUnknown, NextCheckIn: m.Interval(), CheckedAt: start}
	}

	result.Status = determineStatus(result.Latency, result.Err)

	m.stateMu.Lock()
	previous := m.last.Status
	if result.Status.IsReachable() {
		m.consecutiveFailures = 0
		m.multiplier = 1
	} else {
		m.consecutiveFailures++
		m.multiplier *= 2
		if m.multiplier > MaxBackoffMultiplier {
			m.multiplier = MaxBackoffMultiplier
		}
	}
	result.ConsecutiveFailures = m.consecutiveFailures
	result.NextCheckIn = util.CalculatePollBackoff(m.interval, m.multiplier)
	m.last = result
	m.stateMu.Unlock()

	if checked {
		if result.Status.IsReachable() {
			m.breaker.RecordSuccess()
		} else {
			m.breaker.RecordFailure()
		}
	}

	m.logResult(result)

	m.mu.Lock()
	observer, recovery := m.observer, m.recovery
	m.mu.Unlock()

	if observer != nil {
		observer.OnHealthResult(ctx, result)
	}

	if result.Status.IsReachable() && previous != StatusUnknown && !previous.IsReachable() {
		if err := recovery.OnConnectionRestored(ctx, result); err != nil {
			m.logger.Warn("Connection recovery callback failed", "error", err)
		}
	}

	return result
}

func (m *Monitor) logResult(result Result) {
	shouldLog, errorCount := m.tracker.ShouldLog(result.Status, result.Err != nil)
	if !shouldLog {
		return
	}

	if errorCount > 0 {
		m.logger.Warn("Server still unreachable",
			"status", string(result.Status),
			"consecutive_failures", errorCount,
			"next_check_in", result.NextCheckIn,
			"error", result.Err)
		return
	}

	if result.Status.IsReachable() {
		m.logger.Info("Server connection status", "status", string(result.Status), "latency", result.Latency)
		return
	}
	m.logger.Warn("Server connection status",
		"status", string(result.Status),
		"next_check_in", result.NextCheckIn,
		"error", result.Err)
}

func determineStatus(latency time.Duration, err error) Status {
	if err == nil {
		if latency > SlowResponseThreshold {
			return StatusBusy
		}
		return StatusOnline
	}

	if errors.Is(err, ErrCircuitBreakerOpen) {
		return StatusOffline
	}
	if domain.CategoryOf(err) == domain.CategoryConnection {
		return StatusOffline
	}
	return StatusUnhealthy
}
