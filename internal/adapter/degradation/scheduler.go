package degradation

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/thushan/locallm/internal/core/constants"
	"github.com/thushan/locallm/internal/logger"
	"github.com/thushan/locallm/internal/util"
)

const retryJitterPercent = 0.2

type RetryOptions struct {
	// OnDone is called once with nil after a successful run or the last error
	OnDone      func(err error)
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

type scheduledRetry struct {
	cancel context.CancelFunc
}

// RetryScheduler re-runs named operations in the background with exponential
// backoff. Scheduling a name that is already pending replaces it.
type RetryScheduler struct {
	ctx     context.Context
	cancel  context.CancelFunc
	pending *xsync.Map[string, *scheduledRetry]
	logger  *logger.StyledLogger
	sleep   func(ctx context.Context, d time.Duration) error
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
}

func NewRetryScheduler(log *logger.StyledLogger) *RetryScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &RetryScheduler{
		ctx:     ctx,
		cancel:  cancel,
		pending: xsync.NewMap[string, *scheduledRetry](),
		logger:  log,
		sleep:   sleepContext,
	}
}

// Schedule starts retrying fn under name. It returns false once the scheduler is closed.
func (rs *RetryScheduler) Schedule(name string, fn func(ctx context.Context) error, opts RetryOptions) bool {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = constants.DefaultRetryBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = constants.DefaultMaxBackoffSeconds
	}

	rs.mu.Lock()
	if rs.closed {
		rs.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(rs.ctx)
	job := &scheduledRetry{cancel: cancel}
	previous, hadPrevious := rs.pending.LoadAndStore(name, job)
	rs.wg.Add(1)
	rs.mu.Unlock()

	if hadPrevious {
		previous.cancel()
	}

	go rs.run(ctx, name, job, fn, opts)
	return true
}

func (rs *RetryScheduler) run(ctx context.Context, name string, job *scheduledRetry, fn func(ctx context.Context) error, opts RetryOptions) {
	defer rs.wg.Done()
	defer func() {
		// only remove ourselves, a replacement may already be registered
		rs.mu.Lock()
		if current, ok := rs.pending.Load(name); ok && current == job {
			rs.pending.Delete(name)
		}
		rs.mu.Unlock()
		job.cancel()
	}()

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		delay := util.CalculateExponentialBackoff(attempt, opts.BaseDelay, opts.MaxDelay, retryJitterPercent)
		if err := rs.sleep(ctx, delay); err != nil {
			rs.logger.Debug("Scheduled retry cancelled", "name", name, "attempt", attempt)
			return
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			rs.logger.Debug("Scheduled retry succeeded", "name", name, "attempt", attempt)
			if opts.OnDone != nil {
				opts.OnDone(nil)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		rs.logger.Debug("Scheduled retry failed", "name", name, "attempt", attempt, "max_attempts", opts.MaxAttempts, "error", lastErr)
	}

	if opts.OnDone != nil {
		opts.OnDone(lastErr)
	}
}

// Cancel stops a pending retry, it reports whether one was pending
func (rs *RetryScheduler) Cancel(name string) bool {
	job, ok := rs.pending.LoadAndDelete(name)
	if !ok {
		return false
	}
	job.cancel()
	return true
}

func (rs *RetryScheduler) IsPending(name string) bool {
	_, ok := rs.pending.Load(name)
	return ok
}

func (rs *RetryScheduler) Pending() int {
	return rs.pending.Size()
}

// Close cancels everything and waits for running retries to return
func (rs *RetryScheduler) Close() {
	rs.mu.Lock()
	if rs.closed {
		rs.mu.Unlock()
		return
	}
	rs.closed = true
	rs.mu.Unlock()

	rs.cancel()
	rs.wg.Wait()
	rs.pending.Clear()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
