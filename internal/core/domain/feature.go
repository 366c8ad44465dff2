package domain

import (
	"fmt"
	"time"
)

type Feature string

const (
	FeatureModels     Feature = "models"
	FeatureChat       Feature = "chat"
	FeatureCompletion Feature = "completion"
	FeatureEmbeddings Feature = "embeddings"
	FeatureConnection Feature = "connection"
)

// AllFeatures lists the tracked features, connection first
var AllFeatures = []Feature{
	FeatureConnection,
	FeatureModels,
	FeatureChat,
	FeatureCompletion,
	FeatureEmbeddings,
}

// DependentFeatures are the features that need a live connection
var DependentFeatures = []Feature{
	FeatureModels,
	FeatureChat,
	FeatureCompletion,
	FeatureEmbeddings,
}

func ParseFeature(s string) (Feature, error) {
	for _, f := range AllFeatures {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown feature: %s", s)
}

type FeatureState string

const (
	StateAvailable   FeatureState = "available"
	StateLimited     FeatureState = "limited"
	StateUnavailable FeatureState = "unavailable"
	StateDisabled    FeatureState = "disabled"
)

// IsUsable reports whether requests for the feature should be attempted at all
func (s FeatureState) IsUsable() bool {
	return s == StateAvailable || s == StateLimited
}

type FallbackStrategy string

const (
	StrategyCached     FallbackStrategy = "cached"
	StrategySimplified FallbackStrategy = "simplified"
	StrategyGuidance   FallbackStrategy = "guidance"
	StrategyDisable    FallbackStrategy = "disable"
)

func ParseFallbackStrategy(s string) (FallbackStrategy, error) {
	switch FallbackStrategy(s) {
	case StrategyCached, StrategySimplified, StrategyGuidance, StrategyDisable:
		return FallbackStrategy(s), nil
	}
	return "", fmt.Errorf("unknown fallback strategy: %s", s)
}

// FeatureStatus is the snapshot held per feature
type FeatureStatus struct {
	LastChanged      time.Time    `json:"last_changed"`
	LastError        string       `json:"last_error,omitempty"`
	Feature          Feature      `json:"feature"`
	State            FeatureState `json:"state"`
	ConsecutiveFails int          `json:"consecutive_failures"`
}

// FeatureStateChange is published whenever a feature moves between states
type FeatureStateChange struct {
	At       time.Time    `json:"at"`
	Feature  Feature      `json:"feature"`
	From     FeatureState `json:"from"`
	To       FeatureState `json:"to"`
	Reason   string       `json:"reason,omitempty"`
	Cascaded bool         `json:"cascaded,omitempty"`
}
