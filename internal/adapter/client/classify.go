package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/tidwall/gjson"

	"github.com/thushan/locallm/internal/core/domain"
)

var contextLengthPhrases = []string{
	"context length",
	"context_length",
	"maximum context",
	"context window",
	"too many tokens",
}

var notLoadedPhrases = []string{
	"not loaded",
	"no model loaded",
	"no models loaded",
}

// classifyStatus turns a non-2xx response into an *LLMError. Only the status
// and the body text are considered, headers never matter.
func classifyStatus(statusCode int, body []byte, model string) *domain.LLMError {
	message := extractErrorMessage(body)
	if message == "" {
		message = http.StatusText(statusCode)
	}
	lower := strings.ToLower(message)

	switch {
	case statusCode == http.StatusNotFound:
		return domain.NewModelError(domain.CodeModelNotFound, model, message, nil).
			WithDetail("status", statusCode)
	case statusCode < http.StatusInternalServerError && containsAny(lower, notLoadedPhrases):
		return domain.NewModelError(domain.CodeModelNotLoaded, model, message, nil).
			WithDetail("status", statusCode)
	case statusCode == http.StatusBadRequest && containsAny(lower, contextLengthPhrases):
		return domain.NewModelError(domain.CodeContextLengthExceeded, model, message, nil).
			WithDetail("status", statusCode)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return domain.NewAPIError(domain.CodeUnauthorized, statusCode, message, nil)
	case statusCode == http.StatusTooManyRequests:
		return domain.NewAPIError(domain.CodeRateLimited, statusCode, message, nil)
	case statusCode >= http.StatusInternalServerError:
		return domain.NewAPIError(domain.CodeServerError, statusCode, message, nil)
	default:
		return domain.NewAPIError(domain.CodeAPIError, statusCode, message, nil)
	}
}

// extractErrorMessage pulls the human readable part out of the various error
// envelopes servers send: {"error":{"message":..}}, {"error":".."}, {"message":..}, {"detail":..}
func extractErrorMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if !gjson.ValidBytes(body) {
		return truncate(strings.TrimSpace(string(body)), 512)
	}

	for _, path := range []string{"error.message", "error", "message", "detail"} {
		if r := gjson.GetBytes(body, path); r.Exists() && r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}

// contextError classifies a failure caused by the caller's context. A passed
// deadline means the server was too slow, only an explicit cancel is CANCELLED.
func contextError(parent context.Context, err error) (*domain.LLMError, bool) {
	if errors.Is(parent.Err(), context.DeadlineExceeded) {
		return domain.NewConnectionError(domain.CodeConnectionTimeout, "request timed out", err), true
	}
	if parent.Err() != nil || errors.Is(err, context.Canceled) {
		return domain.NewRuntimeError(domain.CodeCancelled, "request cancelled", err), true
	}
	return nil, false
}

// classifyTransportError maps errors from the transport. parent is the caller's
// context, a cancelled parent is never reported as a connection problem.
func classifyTransportError(parent context.Context, err error) *domain.LLMError {
	if ctxErr, ok := contextError(parent, err); ok {
		return ctxErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewConnectionError(domain.CodeConnectionTimeout, "request timed out", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewConnectionError(domain.CodeConnectionTimeout, "request timed out", err)
	}

	if errors.Is(err, syscall.ECONNREFUSED) || strings.Contains(strings.ToLower(err.Error()), "connection refused") {
		return domain.NewConnectionError(domain.CodeConnectionRefused, "connection refused", err)
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNRESET) {
		return domain.NewConnectionError(domain.CodeServerUnavailable, "server closed the connection", err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return domain.NewConnectionError(domain.CodeNetworkError, fmt.Sprintf("cannot resolve %s", dnsErr.Name), err)
	}

	return domain.NewConnectionError(domain.CodeNetworkError, "network error", err)
}

// classifyBodyError handles failures while reading a response body, which
// happen after the status line so retrying is no longer an option
func classifyBodyError(parent context.Context, err error) *domain.LLMError {
	if ctxErr, ok := contextError(parent, err); ok {
		return ctxErr
	}
	return domain.NewRuntimeError(domain.CodeStreamError, "failed reading response", err)
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
