package guidance

import (
	"fmt"

	"github.com/thushan/locallm/internal/core/domain"
)

type RecoveryStrategy string

const (
	RecoveryRetry       RecoveryStrategy = "retry"
	RecoveryFallback    RecoveryStrategy = "fallback"
	RecoveryReconfigure RecoveryStrategy = "reconfigure"
	RecoveryUserAction  RecoveryStrategy = "user_action"
	RecoveryIgnore      RecoveryStrategy = "ignore"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Action names a host command the user can run to recover
type Action string

const (
	ActionCheckConnection Action = "check-connection"
	ActionSelectModel     Action = "select-model"
	ActionOpenSettings    Action = "open-settings"
	ActionRetry           Action = "retry"
	ActionShowLogs        Action = "show-logs"
	ActionClearChat       Action = "clear-chat"
	ActionEnableFeature   Action = "enable-feature"
)

// Guidance is what the host shows a person after an error
type Guidance struct {
	Title    string               `json:"title"`
	Message  string               `json:"message"`
	Severity Severity             `json:"severity"`
	Strategy RecoveryStrategy     `json:"strategy"`
	Code     domain.ErrorCode     `json:"code,omitempty"`
	Category domain.ErrorCategory `json:"category,omitempty"`
	Actions  []Action             `json:"actions,omitempty"`
}

type rule struct {
	title    string
	severity Severity
	strategy RecoveryStrategy
	actions  []Action
}

var rulesByCode = map[domain.ErrorCode]rule{
	domain.CodeConnectionRefused: {"Server not running", SeverityError, RecoveryUserAction,
		[]Action{ActionCheckConnection, ActionOpenSettings}},
	domain.CodeConnectionTimeout: {"Server not responding", SeverityWarning, RecoveryRetry,
		[]Action{ActionRetry, ActionCheckConnection}},
	domain.CodeNetworkError: {"Network problem", SeverityError, RecoveryRetry,
		[]Action{ActionCheckConnection, ActionOpenSettings}},
	domain.CodeServerUnavailable: {"Server unavailable", SeverityWarning, RecoveryRetry,
		[]Action{ActionRetry, ActionCheckConnection}},
	domain.CodeRateLimited: {"Slow down", SeverityWarning, RecoveryRetry,
		[]Action{ActionRetry}},
	domain.CodeUnauthorized: {"Not authorised", SeverityError, RecoveryReconfigure,
		[]Action{ActionOpenSettings}},
	domain.CodeServerError: {"Server error", SeverityError, RecoveryRetry,
		[]Action{ActionRetry, ActionShowLogs}},
	domain.CodeInvalidResponse: {"Unexpected response", SeverityError, RecoveryFallback,
		[]Action{ActionShowLogs}},
	domain.CodeModelNotFound: {"Model not found", SeverityError, RecoveryUserAction,
		[]Action{ActionSelectModel}},
	domain.CodeModelNotLoaded: {"Model not loaded", SeverityWarning, RecoveryUserAction,
		[]Action{ActionSelectModel, ActionRetry}},
	domain.CodeContextLengthExceeded: {"Conversation too long", SeverityWarning, RecoveryUserAction,
		[]Action{ActionClearChat}},
	domain.CodeInvalidConfiguration: {"Invalid settings", SeverityError, RecoveryReconfigure,
		[]Action{ActionOpenSettings}},
	domain.CodeCancelled: {"Cancelled", SeverityInfo, RecoveryIgnore, nil},
	domain.CodeFeatureDisabled: {"Feature disabled", SeverityWarning, RecoveryUserAction,
		[]Action{ActionEnableFeature, ActionCheckConnection}},
	domain.CodeStreamError: {"Response interrupted", SeverityWarning, RecoveryRetry,
		[]Action{ActionRetry}},
}

var rulesByCategory = map[domain.ErrorCategory]rule{
	domain.CategoryConnection: {"Connection problem", SeverityError, RecoveryRetry,
		[]Action{ActionCheckConnection, ActionRetry}},
	domain.CategoryAPI: {"Server error", SeverityError, RecoveryFallback,
		[]Action{ActionRetry, ActionShowLogs}},
	domain.CategoryModel: {"Model problem", SeverityError, RecoveryUserAction,
		[]Action{ActionSelectModel}},
	domain.CategoryValidation: {"Invalid request", SeverityWarning, RecoveryUserAction,
		[]Action{ActionOpenSettings}},
	domain.CategoryRuntime: {"Something went wrong", SeverityError, RecoveryFallback,
		[]Action{ActionShowLogs}},
}

// For maps any error onto guidance. Code rules win over category rules.
func For(err error) Guidance {
	if err == nil {
		return Guidance{Title: "OK", Severity: SeverityInfo, Strategy: RecoveryIgnore}
	}

	llmErr := domain.WrapUnknown(err)

	r, ok := rulesByCode[llmErr.Code]
	if !ok {
		r = rulesByCategory[llmErr.Category]
	}

	g := Guidance{
		Title:    r.title,
		Message:  llmErr.UserMessage(),
		Severity: r.severity,
		Strategy: r.strategy,
		Code:     llmErr.Code,
		Category: llmErr.Category,
		Actions:  append([]Action(nil), r.actions...),
	}
	if g.Title == "" {
		g.Title = "Error"
		g.Severity = SeverityError
		g.Strategy = RecoveryFallback
	}
	return g
}

// StrategyFor returns just the recovery strategy for err
func StrategyFor(err error) RecoveryStrategy {
	return For(err).Strategy
}

func (g Guidance) String() string {
	if len(g.Actions) == 0 {
		return fmt.Sprintf("%s: %s", g.Title, g.Message)
	}
	return fmt.Sprintf("%s: %s (try: %v)", g.Title, g.Message, g.Actions)
}
