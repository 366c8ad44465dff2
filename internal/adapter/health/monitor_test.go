package health

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/locallm/internal/core/domain"
	"github.com/thushan/locallm/internal/logger"
)

type fakePinger struct {
	err     error
	calls   atomic.Int32
	latency time.Duration
	mu      sync.Mutex
}

func (f *fakePinger) TestConnection(ctx context.Context) (time.Duration, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latency, f.err
}

func (f *fakePinger) set(latency time.Duration, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latency = latency
	f.err = err
}

type recordingObserver struct {
	results []Result
	mu      sync.Mutex
}

func (r *recordingObserver) OnHealthResult(ctx context.Context, result Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func (r *recordingObserver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

var errRefused = domain.NewConnectionError(domain.CodeConnectionRefused, "connection refused", nil)

func newTestMonitor(p Pinger) *Monitor {
	return NewMonitor(p, logger.NewDiscard(), MonitorConfig{
		Interval: time.Second,
		Timeout:  time.Second,
		Breaker:  NewCircuitBreakerWith(100, time.Minute),
	})
}

func TestDetermineStatus(t *testing.T) {
	testCases := []struct {
		name    string
		err     error
		latency time.Duration
		want    Status
	}{
		{"online", nil, 10 * time.Millisecond, StatusOnline},
		{"busy", nil, SlowResponseThreshold + time.Second, StatusBusy},
		{"connection error", errRefused, 0, StatusOffline},
		{"circuit open", ErrCircuitBreakerOpen, 0, StatusOffline},
		{"server error", domain.NewAPIError(domain.CodeServerError, 500, "boom", nil), 0, StatusUnhealthy},
		{"foreign error", errors.New("odd"), 0, StatusUnhealthy},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, determineStatus(tc.latency, tc.err))
		})
	}
}

func TestMonitor_BackoffGrowsAndResets(t *testing.T) {
	p := &fakePinger{err: errRefused}
	m := newTestMonitor(p)

	expected := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 12 * time.Second, 12 * time.Second}
	for i, want := range expected {
		result := m.Check(context.Background())
		assert.Equal(t, StatusOffline, result.Status)
		assert.Equal(t, want, result.NextCheckIn, "check %d", i+1)
		assert.Equal(t, i+1, result.ConsecutiveFailures)
	}

	p.set(5*time.Millisecond, nil)
	result := m.Check(context.Background())
	assert.Equal(t, StatusOnline, result.Status)
	assert.Equal(t, time.Second, result.NextCheckIn)
	assert.Equal(t, 0, result.ConsecutiveFailures)
	assert.Equal(t, StatusOnline, m.LastResult().Status)
}

func TestMonitor_RecoveryCallbackOnlyAfterOutage(t *testing.T) {
	p := &fakePinger{}
	m := newTestMonitor(p)

	var restored atomic.Int32
	m.SetRecoveryCallback(RecoveryCallbackFunc(func(ctx context.Context, result Result) error {
		restored.Add(1)
		return nil
	}))

	m.Check(context.Background())
	assert.Equal(t, int32(0), restored.Load(), "unknown to online is not a recovery")

	p.set(0, errRefused)
	m.Check(context.Background())
	m.Check(context.Background())

	p.set(time.Millisecond, nil)
	m.Check(context.Background())
	m.Check(context.Background())
	assert.Equal(t, int32(1), restored.Load())
}

func TestMonitor_CircuitBreakerSkipsChecks(t *testing.T) {
	p := &fakePinger{err: errRefused}
	m := NewMonitor(p, logger.NewDiscard(), MonitorConfig{
		Interval: time.Second,
		Breaker:  NewCircuitBreakerWith(2, time.Hour),
	})

	m.Check(context.Background())
	m.Check(context.Background())
	require.Equal(t, int32(2), p.calls.Load())

	result := m.Check(context.Background())
	assert.Equal(t, int32(2), p.calls.Load(), "open breaker must not reach the server")
	assert.Equal(t, StatusOffline, result.Status)
	assert.ErrorIs(t, result.Err, ErrCircuitBreakerOpen)
	assert.Equal(t, domain.CategoryConnection, domain.CategoryOf(result.Err))
}

func TestMonitor_StartNotifiesObserver(t *testing.T) {
	p := &fakePinger{latency: time.Millisecond}
	m := newTestMonitor(p)
	obs := &recordingObserver{}
	m.SetObserver(obs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Start(ctx))
	require.NoError(t, m.Start(ctx), "second start is a no-op")

	assert.Eventually(t, func() bool { return obs.count() >= 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, m.ForceCheck())
	assert.Eventually(t, func() bool { return obs.count() >= 2 }, time.Second, 10*time.Millisecond)

	m.Stop()
	assert.False(t, m.IsRunning())
	assert.Error(t, m.ForceCheck())
	m.Stop()
}

func TestCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreakerWith(3, 50*time.Millisecond)

	cb.RecordFailure()
	cb.RecordFailure()
	assert.False(t, cb.IsOpen())
	cb.RecordFailure()
	assert.True(t, cb.IsOpen())
	assert.Equal(t, 3, cb.Failures())

	assert.Eventually(t, func() bool { return !cb.IsOpen() }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, cb.Failures())

	cb.RecordFailure()
	cb.RecordSuccess()
	assert.Equal(t, 0, cb.Failures())
}

func TestStatusTransitionTracker(t *testing.T) {
	st := NewStatusTransitionTracker()

	shouldLog, _ := st.ShouldLog(StatusOffline, true)
	assert.True(t, shouldLog, "first status is a transition")

	logged := 0
	for i := 0; i < 20; i++ {
		if ok, _ := st.ShouldLog(StatusOffline, true); ok {
			logged++
		}
	}
	assert.Equal(t, 2, logged, "every 10th repeat is logged")

	shouldLog, count := st.ShouldLog(StatusOnline, false)
	assert.True(t, shouldLog)
	assert.Equal(t, 0, count)
}
