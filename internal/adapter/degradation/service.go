package degradation

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/thushan/locallm/internal/adapter/health"
	"github.com/thushan/locallm/internal/config"
	"github.com/thushan/locallm/internal/core/domain"
	"github.com/thushan/locallm/internal/logger"
	"github.com/thushan/locallm/pkg/eventbus"
)

type Config struct {
	Strategies       map[domain.Feature]domain.FallbackStrategy
	CacheTTL         time.Duration
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
}

func ConfigFrom(cfg *config.Config) Config {
	strategies := make(map[domain.Feature]domain.FallbackStrategy, len(domain.AllFeatures))
	for _, f := range domain.AllFeatures {
		strategies[f] = cfg.StrategyFor(f)
	}
	return Config{
		Strategies:       strategies,
		CacheTTL:         cfg.Degradation.CacheTTL,
		RetryMaxAttempts: cfg.Degradation.RetryMaxAttempts,
		RetryBaseDelay:   cfg.Degradation.RetryBaseDelay,
	}
}

// RecoveryCheck reports whether a feature works again, used by scheduled recovery
type RecoveryCheck func(ctx context.Context) error

// Service tracks per-feature availability and applies fallback strategies.
// Transitions are serialised by mu, reads go through the xsync map.
type Service struct {
	states    *xsync.Map[domain.Feature, domain.FeatureStatus]
	checks    *xsync.Map[domain.Feature, RecoveryCheck]
	cache     *ResponseCache
	scheduler *RetryScheduler
	bus       *eventbus.EventBus[domain.FeatureStateChange]
	logger    *logger.StyledLogger
	now       func() time.Time
	cfg       Config
	mu        sync.Mutex
	closeOnce sync.Once
}

func NewService(cfg Config, log *logger.StyledLogger) *Service {
	if cfg.Strategies == nil {
		cfg.Strategies = map[domain.Feature]domain.FallbackStrategy{}
	}

	s := &Service{
		states:    xsync.NewMap[domain.Feature, domain.FeatureStatus](),
		checks:    xsync.NewMap[domain.Feature, RecoveryCheck](),
		cache:     NewResponseCache(cfg.CacheTTL),
		scheduler: NewRetryScheduler(log),
		bus:       eventbus.New[domain.FeatureStateChange](),
		logger:    log,
		now:       time.Now,
		cfg:       cfg,
	}

	started := s.now()
	for _, f := range domain.AllFeatures {
		s.states.Store(f, domain.FeatureStatus{Feature: f, State: domain.StateAvailable, LastChanged: started})
	}
	return s
}

// Subscribe delivers every state change until ctx is done
func (s *Service) Subscribe(ctx context.Context) (<-chan domain.FeatureStateChange, func()) {
	return s.bus.Subscribe(ctx)
}

// SetRecoveryCheck registers how a feature is re-checked by scheduled recovery
func (s *Service) SetRecoveryCheck(feature domain.Feature, check RecoveryCheck) {
	if check == nil {
		s.checks.Delete(feature)
		return
	}
	s.checks.Store(feature, check)
}

// Strategy returns the configured fallback for feature, guidance when unset
func (s *Service) Strategy(feature domain.Feature) domain.FallbackStrategy {
	if strategy, ok := s.cfg.Strategies[feature]; ok && strategy != "" {
		return strategy
	}
	return domain.StrategyGuidance
}

func (s *Service) State(feature domain.Feature) domain.FeatureState {
	if st, ok := s.states.Load(feature); ok {
		return st.State
	}
	return domain.StateUnavailable
}

func (s *Service) Status(feature domain.Feature) (domain.FeatureStatus, bool) {
	return s.states.Load(feature)
}

// Snapshot returns every feature's status, connection first
func (s *Service) Snapshot() []domain.FeatureStatus {
	out := make([]domain.FeatureStatus, 0, len(domain.AllFeatures))
	for _, f := range domain.AllFeatures {
		if st, ok := s.states.Load(f); ok {
			out = append(out, st)
		}
	}
	return out
}

func (s *Service) IsUsable(feature domain.Feature) bool {
	return s.State(feature).IsUsable()
}

// RecordSuccess marks feature available. Any success proves the server is
// reachable, so the connection is restored too and other features that were
// cut off by it move to limited until they succeed themselves.
func (s *Service) RecordSuccess(feature domain.Feature) {
	s.mu.Lock()
	var changes []domain.FeatureStateChange

	if st, ok := s.states.Load(feature); ok && st.State != domain.StateDisabled {
		st.ConsecutiveFails = 0
		st.LastError = ""
		s.states.Store(feature, st)
		changes = s.setLocked(changes, feature, domain.StateAvailable, "request succeeded", false)
	}

	if feature != domain.FeatureConnection {
		changes = s.restoreConnectionLocked(changes, "request succeeded")
	} else {
		changes = s.promoteDependentsLocked(changes)
	}
	s.mu.Unlock()

	s.publish(changes)
	for _, c := range changes {
		s.scheduler.Cancel(recoveryName(c.Feature))
	}
}

// RecordFailure applies err to feature. Connection errors make the feature and
// every dependent feature unavailable, other errors leave it limited.
// Validation errors and cancellations say nothing about the server and are ignored.
func (s *Service) RecordFailure(feature domain.Feature, err error) {
	if err == nil {
		return
	}
	llmErr := domain.WrapUnknown(err)
	if llmErr.Category == domain.CategoryValidation || llmErr.Code == domain.CodeCancelled || llmErr.Code == domain.CodeFeatureDisabled {
		return
	}

	connectionLost := llmErr.Category == domain.CategoryConnection
	target := domain.StateLimited
	if connectionLost {
		target = domain.StateUnavailable
	}

	s.mu.Lock()
	var changes []domain.FeatureStateChange

	if st, ok := s.states.Load(feature); ok {
		st.ConsecutiveFails++
		st.LastError = llmErr.Error()
		s.states.Store(feature, st)
		if st.State != domain.StateDisabled {
			changes = s.setLocked(changes, feature, target, string(llmErr.Code), false)
		}
	}

	if connectionLost {
		reason := "connection lost: " + string(llmErr.Code)
		if feature != domain.FeatureConnection {
			changes = s.setLocked(changes, domain.FeatureConnection, domain.StateUnavailable, reason, true)
		}
		for _, dep := range domain.DependentFeatures {
			if dep == feature || s.State(dep) == domain.StateDisabled {
				continue
			}
			changes = s.setLocked(changes, dep, domain.StateUnavailable, reason, true)
		}
	}
	s.mu.Unlock()

	s.publish(changes)
}

// Disable parks feature until Enable is called
func (s *Service) Disable(feature domain.Feature, reason string) bool {
	s.mu.Lock()
	changes := s.setLocked(nil, feature, domain.StateDisabled, reason, false)
	s.mu.Unlock()

	s.scheduler.Cancel(recoveryName(feature))
	s.publish(changes)
	return len(changes) > 0
}

// Enable brings a disabled feature back as limited, or unavailable while the
// connection is down. It reports false when the feature wasn't disabled.
func (s *Service) Enable(feature domain.Feature) bool {
	s.mu.Lock()
	if s.State(feature) != domain.StateDisabled {
		s.mu.Unlock()
		return false
	}

	target := domain.StateLimited
	if feature != domain.FeatureConnection && s.State(domain.FeatureConnection) == domain.StateUnavailable {
		target = domain.StateUnavailable
	}
	if st, ok := s.states.Load(feature); ok {
		st.ConsecutiveFails = 0
		s.states.Store(feature, st)
	}
	changes := s.setLocked(nil, feature, target, "enabled", false)
	s.mu.Unlock()

	s.publish(changes)
	return true
}

// OnHealthResult feeds connection monitor results into the state machine
func (s *Service) OnHealthResult(_ context.Context, result health.Result) {
	if result.Status.IsReachable() {
		s.RecordSuccess(domain.FeatureConnection)
		return
	}
	if result.Err != nil {
		s.RecordFailure(domain.FeatureConnection, result.Err)
	}
}

// ScheduleRecovery re-runs the feature's recovery check in the background until it
// succeeds or attempts run out
func (s *Service) ScheduleRecovery(feature domain.Feature) bool {
	check, ok := s.checks.Load(feature)
	if !ok {
		return false
	}

	name := recoveryName(feature)
	return s.scheduler.Schedule(name, func(ctx context.Context) error {
		if s.State(feature) == domain.StateDisabled {
			return nil
		}
		err := check(ctx)
		if err == nil {
			s.RecordSuccess(feature)
		}
		return err
	}, RetryOptions{
		MaxAttempts: s.cfg.RetryMaxAttempts,
		BaseDelay:   s.cfg.RetryBaseDelay,
		OnDone: func(err error) {
			if err != nil {
				s.logger.Warn("Feature did not recover", "feature", feature, "error", err)
			}
		},
	})
}

// Scheduler exposes the retry scheduler for host level retries
func (s *Service) Scheduler() *RetryScheduler {
	return s.scheduler
}

// Close stops pending retries and closes subscriber channels
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		s.scheduler.Close()
		s.bus.Shutdown()
	})
}

func (s *Service) restoreConnectionLocked(changes []domain.FeatureStateChange, reason string) []domain.FeatureStateChange {
	conn, ok := s.states.Load(domain.FeatureConnection)
	if !ok || conn.State == domain.StateAvailable || conn.State == domain.StateDisabled {
		return changes
	}
	conn.ConsecutiveFails = 0
	conn.LastError = ""
	s.states.Store(domain.FeatureConnection, conn)
	changes = s.setLocked(changes, domain.FeatureConnection, domain.StateAvailable, reason, true)
	return s.promoteDependentsLocked(changes)
}

// promoteDependentsLocked moves features cut off by the connection to limited, never to available
func (s *Service) promoteDependentsLocked(changes []domain.FeatureStateChange) []domain.FeatureStateChange {
	for _, dep := range domain.DependentFeatures {
		if s.State(dep) == domain.StateUnavailable {
			changes = s.setLocked(changes, dep, domain.StateLimited, "connection restored", true)
		}
	}
	return changes
}

func (s *Service) setLocked(changes []domain.FeatureStateChange, feature domain.Feature, to domain.FeatureState, reason string, cascaded bool) []domain.FeatureStateChange {
	st, ok := s.states.Load(feature)
	if !ok || st.State == to {
		return changes
	}

	change := domain.FeatureStateChange{
		At:       s.now(),
		Feature:  feature,
		From:     st.State,
		To:       to,
		Reason:   reason,
		Cascaded: cascaded,
	}
	st.State = to
	st.LastChanged = change.At
	s.states.Store(feature, st)
	return append(changes, change)
}

func (s *Service) publish(changes []domain.FeatureStateChange) {
	for _, c := range changes {
		s.logger.InfoFeatureState("Feature state changed,", c.Feature, c.To,
			"from", string(c.From), "reason", c.Reason, "cascaded", c.Cascaded)
		s.bus.Publish(c)
	}
}

func recoveryName(feature domain.Feature) string {
	return "recover:" + string(feature)
}
