package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/thushan/locallm/internal/core/domain"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestExtractErrorMessage(t *testing.T) {
	testCases := []struct {
		name string
		body string
		want string
	}{
		{"openai envelope", `{"error":{"message":"bad model","type":"invalid_request_error"}}`, "bad model"},
		{"string error", `{"error":"Model not loaded"}`, "Model not loaded"},
		{"message field", `{"message":"nope"}`, "nope"},
		{"detail field", `{"detail":"validation failed"}`, "validation failed"},
		{"plain text", "upstream exploded\n", "upstream exploded"},
		{"empty", "", ""},
		{"json without message", `{"ok":false}`, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractErrorMessage([]byte(tc.body)))
		})
	}
}

func TestClassifyTransportError(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want domain.ErrorCode
	}{
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, domain.CodeConnectionRefused},
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), domain.CodeConnectionTimeout},
		{"net timeout", timeoutErr{}, domain.CodeConnectionTimeout},
		{"dns", &net.DNSError{Name: "nowhere.invalid", Err: "no such host"}, domain.CodeNetworkError},
		{"reset", syscall.ECONNRESET, domain.CodeServerUnavailable},
		{"other", errors.New("tls: bad certificate"), domain.CodeNetworkError},
		{"cancelled", context.Canceled, domain.CodeCancelled},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyTransportError(context.Background(), tc.err)
			assert.Equal(t, tc.want, got.Code)
			assert.ErrorIs(t, got, tc.err)
		})
	}
}

func TestClassifyTransportError_CancelledParentWins(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := classifyTransportError(ctx, &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED})
	assert.Equal(t, domain.CodeCancelled, got.Code)
	assert.False(t, domain.IsRetryable(got))
}

func TestClassifyTransportError_ParentDeadlineIsTimeout(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	got := classifyTransportError(ctx, fmt.Errorf("dial: %w", context.DeadlineExceeded))
	assert.Equal(t, domain.CategoryConnection, got.Category)
	assert.Equal(t, domain.CodeConnectionTimeout, got.Code)

	got = classifyBodyError(ctx, errors.New("read: i/o timeout"))
	assert.Equal(t, domain.CodeConnectionTimeout, got.Code)
}

func TestClassifyStatus_Recoverability(t *testing.T) {
	assert.True(t, classifyStatus(500, nil, "m").Recoverable)
	assert.True(t, classifyStatus(429, nil, "m").Recoverable)
	assert.False(t, classifyStatus(422, nil, "m").Recoverable)
	assert.False(t, domain.IsRetryable(classifyStatus(404, nil, "m")))
}
