package guidance

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/locallm/internal/core/domain"
	"github.com/thushan/locallm/internal/logger"
)

func TestFor(t *testing.T) {
	testCases := []struct {
		name         string
		err          error
		wantStrategy RecoveryStrategy
		wantAction   Action
		wantSeverity Severity
	}{
		{
			name:         "connection refused",
			err:          domain.NewConnectionError(domain.CodeConnectionRefused, "refused", nil),
			wantStrategy: RecoveryUserAction,
			wantAction:   ActionCheckConnection,
			wantSeverity: SeverityError,
		},
		{
			name:         "model not found",
			err:          domain.NewModelError(domain.CodeModelNotFound, "llama", "nope", nil),
			wantStrategy: RecoveryUserAction,
			wantAction:   ActionSelectModel,
			wantSeverity: SeverityError,
		},
		{
			name:         "context length",
			err:          domain.NewModelError(domain.CodeContextLengthExceeded, "llama", "too long", nil),
			wantStrategy: RecoveryUserAction,
			wantAction:   ActionClearChat,
			wantSeverity: SeverityWarning,
		},
		{
			name:         "unauthorized",
			err:          domain.NewAPIError(domain.CodeUnauthorized, 401, "no", nil),
			wantStrategy: RecoveryReconfigure,
			wantAction:   ActionOpenSettings,
			wantSeverity: SeverityError,
		},
		{
			name:         "plain api error uses category rule",
			err:          domain.NewAPIError(domain.CodeAPIError, 422, "meh", nil),
			wantStrategy: RecoveryFallback,
			wantAction:   ActionRetry,
			wantSeverity: SeverityError,
		},
		{
			name:         "wrapped disabled",
			err:          fmt.Errorf("chat: %w", domain.NewRuntimeError(domain.CodeFeatureDisabled, "off", nil)),
			wantStrategy: RecoveryUserAction,
			wantAction:   ActionEnableFeature,
			wantSeverity: SeverityWarning,
		},
		{
			name:         "foreign error",
			err:          errors.New("kaboom"),
			wantStrategy: RecoveryFallback,
			wantAction:   ActionShowLogs,
			wantSeverity: SeverityError,
		},
		{
			name:         "cancelled",
			err:          context.Canceled,
			wantStrategy: RecoveryIgnore,
			wantSeverity: SeverityInfo,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := For(tc.err)
			assert.Equal(t, tc.wantStrategy, g.Strategy)
			assert.Equal(t, tc.wantSeverity, g.Severity)
			assert.NotEmpty(t, g.Title)
			assert.NotEmpty(t, g.Message)
			if tc.wantAction != "" {
				assert.Contains(t, g.Actions, tc.wantAction)
			} else {
				assert.Empty(t, g.Actions)
			}
		})
	}
}

func TestFor_ModelNameInMessage(t *testing.T) {
	g := For(domain.NewModelError(domain.CodeModelNotFound, "qwen2.5-coder", "not found", nil))
	assert.Contains(t, g.Message, "qwen2.5-coder")
}

func TestFor_Nil(t *testing.T) {
	assert.Equal(t, RecoveryIgnore, For(nil).Strategy)
}

func TestHandler_HistoryIsBounded(t *testing.T) {
	h := NewHandler(logger.NewDiscard(), 3)

	codes := []domain.ErrorCode{
		domain.CodeConnectionRefused,
		domain.CodeServerError,
		domain.CodeConnectionRefused,
		domain.CodeModelNotFound,
		domain.CodeConnectionRefused,
	}
	for _, code := range codes {
		var err error
		switch code {
		case domain.CodeConnectionRefused:
			err = domain.NewConnectionError(code, "refused", nil)
		case domain.CodeServerError:
			err = domain.NewAPIError(code, 500, "boom", nil)
		default:
			err = domain.NewModelError(code, "m", "missing", nil)
		}
		h.Handle(domain.FeatureChat, err)
	}

	recent := h.Recent(10)
	require.Len(t, recent, 3)
	assert.Equal(t, domain.CodeConnectionRefused, recent[0].Code, "newest first")
	assert.Equal(t, domain.CodeModelNotFound, recent[1].Code)
	assert.Equal(t, domain.CodeConnectionRefused, recent[2].Code)
	assert.Equal(t, domain.FeatureChat, recent[0].Feature)

	assert.Len(t, h.Recent(2), 2)

	counts := h.Counts()
	require.Len(t, counts, 3)
	assert.Equal(t, CodeCount{Code: domain.CodeConnectionRefused, Count: 3}, counts[0])

	h.Clear()
	assert.Empty(t, h.Recent(0))
	assert.Empty(t, h.Counts())
}

func TestHandler_NilErrorNotRecorded(t *testing.T) {
	h := NewHandler(logger.NewDiscard(), 0)
	h.Handle(domain.FeatureModels, nil)
	assert.Empty(t, h.Recent(0))
}
