package degradation

import (
	"context"
	"fmt"
	"time"

	"github.com/thushan/locallm/internal/adapter/guidance"
	"github.com/thushan/locallm/internal/core/domain"
)

type Source string

const (
	SourceLive       Source = "live"
	SourceCache      Source = "cache"
	SourceSimplified Source = "simplified"
)

// Operation is one feature call. Key enables the cached strategy, Simplified
// is the reduced request tried by the simplified strategy.
type Operation[T any] struct {
	Run        func(ctx context.Context) (T, error)
	Simplified func(ctx context.Context) (T, error)
	Key        string
}

type Result[T any] struct {
	Value    T
	Err      error
	Strategy domain.FallbackStrategy
	Source   Source
	Age      time.Duration
	Degraded bool
}

// FallbackError is returned when no fallback could produce a value
type FallbackError struct {
	Err      error
	Feature  domain.Feature
	Strategy domain.FallbackStrategy
	Guidance guidance.Guidance
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("%s unavailable (%s): %v", e.Feature, e.Strategy, e.Err)
}

func (e *FallbackError) Unwrap() error {
	return e.Err
}

// Execute runs op for feature, records the outcome and applies the feature's
// fallback strategy on failure. Disabled features are never attempted.
func Execute[T any](ctx context.Context, s *Service, feature domain.Feature, op Operation[T]) (Result[T], error) {
	strategy := s.Strategy(feature)

	if s.State(feature) == domain.StateDisabled {
		err := domain.NewRuntimeError(domain.CodeFeatureDisabled,
			fmt.Sprintf("%s is disabled", feature), nil).WithDetail("feature", string(feature))
		return Result[T]{Err: err, Strategy: strategy}, &FallbackError{
			Err:      err,
			Feature:  feature,
			Strategy: strategy,
			Guidance: guidance.For(err),
		}
	}

	value, err := op.Run(ctx)
	if err == nil {
		s.RecordSuccess(feature)
		if op.Key != "" {
			s.cache.Store(feature, op.Key, value)
		}
		return Result[T]{Value: value, Source: SourceLive}, nil
	}

	s.RecordFailure(feature, err)

	// nothing to fall back from when the caller gave up or sent a bad request
	if domain.CategoryOf(err) == domain.CategoryValidation ||
		ctx.Err() != nil || domain.WrapUnknown(err).Code == domain.CodeCancelled {
		return Result[T]{Err: err}, err
	}

	if !s.IsUsable(feature) {
		s.ScheduleRecovery(feature)
	}

	result := Result[T]{Err: err, Strategy: strategy, Degraded: true}

	switch strategy {
	case domain.StrategyCached:
		if op.Key != "" {
			if cached, age, ok := s.cache.Load(feature, op.Key); ok {
				if v, ok := cached.(T); ok {
					s.logger.Info("Serving cached response", "feature", feature, "key", op.Key, "age", age.Round(time.Second))
					result.Value = v
					result.Source = SourceCache
					result.Age = age
					return result, nil
				}
			}
		}

	case domain.StrategySimplified:
		if op.Simplified != nil {
			v, simplifiedErr := op.Simplified(ctx)
			if simplifiedErr == nil {
				s.logger.Info("Simplified request succeeded", "feature", feature)
				result.Value = v
				result.Source = SourceSimplified
				return result, nil
			}
			s.logger.Debug("Simplified request failed", "feature", feature, "error", simplifiedErr)
		}

	case domain.StrategyDisable:
		s.Disable(feature, "disabled after "+string(domain.WrapUnknown(err).Code))
	}

	return result, &FallbackError{
		Err:      err,
		Feature:  feature,
		Strategy: strategy,
		Guidance: guidance.For(err),
	}
}
