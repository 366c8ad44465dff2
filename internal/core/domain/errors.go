package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type ErrorCategory string

const (
	CategoryConnection ErrorCategory = "connection"
	CategoryAPI        ErrorCategory = "api"
	CategoryModel      ErrorCategory = "model"
	CategoryValidation ErrorCategory = "validation"
	CategoryRuntime    ErrorCategory = "runtime"
)

type ErrorCode string

const (
	CodeConnectionRefused ErrorCode = "CONNECTION_REFUSED"
	CodeConnectionTimeout ErrorCode = "CONNECTION_TIMEOUT"
	CodeNetworkError      ErrorCode = "NETWORK_ERROR"
	CodeServerUnavailable ErrorCode = "SERVER_UNAVAILABLE"

	CodeAPIError        ErrorCode = "API_ERROR"
	CodeRateLimited     ErrorCode = "RATE_LIMITED"
	CodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	CodeInvalidResponse ErrorCode = "INVALID_RESPONSE"
	CodeServerError     ErrorCode = "SERVER_ERROR"

	CodeModelNotFound         ErrorCode = "MODEL_NOT_FOUND"
	CodeModelNotLoaded        ErrorCode = "MODEL_NOT_LOADED"
	CodeContextLengthExceeded ErrorCode = "CONTEXT_LENGTH_EXCEEDED"

	CodeInvalidRequest       ErrorCode = "INVALID_REQUEST"
	CodeInvalidConfiguration ErrorCode = "INVALID_CONFIGURATION"
	CodeMissingParameter     ErrorCode = "MISSING_PARAMETER"

	CodeUnknown         ErrorCode = "UNKNOWN_ERROR"
	CodeStreamError     ErrorCode = "STREAM_ERROR"
	CodeCancelled       ErrorCode = "CANCELLED"
	CodeFeatureDisabled ErrorCode = "FEATURE_DISABLED"
)

// LLMError is the single error type surfaced by the client and the degradation layer.
// Category and Code drive retry decisions, feature state transitions and user guidance.
type LLMError struct {
	Err         error
	Details     map[string]any
	Category    ErrorCategory
	Code        ErrorCode
	Message     string
	StatusCode  int
	Recoverable bool
}

func (e *LLMError) Error() string {
	msg := e.Message
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s error [%s]: %s: %v", e.Category, e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s error [%s]: %s", e.Category, e.Code, msg)
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

// WithDetail attaches a key/value for logging and guidance, returning the same error
func (e *LLMError) WithDetail(key string, value any) *LLMError {
	if e.Details == nil {
		e.Details = make(map[string]any, 2)
	}
	e.Details[key] = value
	return e
}

// UserMessage returns the message shown to a person, never the raw transport error
func (e *LLMError) UserMessage() string {
	if msg, ok := userMessagesByCode[e.Code]; ok {
		if e.Code == CodeModelNotFound {
			if model, ok := e.Details["model"].(string); ok && model != "" {
				return fmt.Sprintf("Model '%s' was not found on the server. Select a different model or load it first.", model)
			}
		}
		return msg
	}
	if msg, ok := userMessagesByCategory[e.Category]; ok {
		return msg
	}
	return userMessagesByCategory[CategoryRuntime]
}

var userMessagesByCategory = map[ErrorCategory]string{
	CategoryConnection: "Unable to reach the local LLM server. Make sure it is running and the server URL is correct.",
	CategoryAPI:        "The LLM server returned an error. Try again in a moment.",
	CategoryModel:      "There is a problem with the selected model.",
	CategoryValidation: "The request is invalid. Check your input and settings.",
	CategoryRuntime:    "An unexpected error occurred.",
}

var userMessagesByCode = map[ErrorCode]string{
	CodeConnectionRefused:     "Connection refused. Start LM Studio, Ollama or your inference server and try again.",
	CodeConnectionTimeout:     "The LLM server did not respond in time. It may be busy loading a model.",
	CodeNetworkError:          "A network error occurred while talking to the LLM server.",
	CodeServerUnavailable:     "The LLM server is currently unavailable.",
	CodeRateLimited:           "The LLM server is rate limiting requests. Wait a moment and try again.",
	CodeUnauthorized:          "The LLM server rejected the credentials. Check the API key setting.",
	CodeInvalidResponse:       "The LLM server returned a response that could not be understood.",
	CodeServerError:           "The LLM server hit an internal error. Try again shortly.",
	CodeModelNotFound:         "The requested model was not found on the server. Select a different model.",
	CodeModelNotLoaded:        "The model is not loaded. Load it in your inference server first.",
	CodeContextLengthExceeded: "The conversation is too long for the model's context window. Clear the chat or shorten the input.",
	CodeInvalidConfiguration:  "The configuration is invalid. Check your settings.",
	CodeMissingParameter:      "A required parameter is missing.",
	CodeCancelled:             "The request was cancelled.",
	CodeFeatureDisabled:       "This feature has been disabled after repeated failures. Re-enable it once the server is healthy.",
	CodeStreamError:           "The response stream was interrupted.",
}

func NewConnectionError(code ErrorCode, message string, err error) *LLMError {
	return &LLMError{
		Category:    CategoryConnection,
		Code:        code,
		Message:     message,
		Recoverable: true,
		Err:         err,
	}
}

func NewAPIError(code ErrorCode, statusCode int, message string, err error) *LLMError {
	return &LLMError{
		Category:    CategoryAPI,
		Code:        code,
		Message:     message,
		StatusCode:  statusCode,
		Recoverable: statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError,
		Err:         err,
	}
}

func NewModelError(code ErrorCode, model string, message string, err error) *LLMError {
	e := &LLMError{
		Category:    CategoryModel,
		Code:        code,
		Message:     message,
		Recoverable: code == CodeModelNotLoaded,
		Err:         err,
	}
	if model != "" {
		e.WithDetail("model", model)
	}
	return e
}

func NewValidationError(code ErrorCode, field string, message string) *LLMError {
	e := &LLMError{
		Category: CategoryValidation,
		Code:     code,
		Message:  message,
	}
	if field != "" {
		e.WithDetail("field", field)
	}
	return e
}

func NewRuntimeError(code ErrorCode, message string, err error) *LLMError {
	return &LLMError{
		Category:    CategoryRuntime,
		Code:        code,
		Message:     message,
		Recoverable: code != CodeCancelled && code != CodeFeatureDisabled,
		Err:         err,
	}
}

// AsLLMError extracts an *LLMError from a wrapped chain
func AsLLMError(err error) (*LLMError, bool) {
	var llmErr *LLMError
	if errors.As(err, &llmErr) {
		return llmErr, true
	}
	return nil, false
}

// IsRetryable reports whether the client retry loop may re-issue a request after err.
// Validation errors are never retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	llmErr, ok := AsLLMError(err)
	if !ok {
		return false
	}
	switch llmErr.Category {
	case CategoryConnection:
		return true
	case CategoryAPI:
		return llmErr.Recoverable
	default:
		return false
	}
}

// CategoryOf returns the category of err, runtime for foreign errors
func CategoryOf(err error) ErrorCategory {
	if llmErr, ok := AsLLMError(err); ok {
		return llmErr.Category
	}
	return CategoryRuntime
}

// WrapUnknown converts any error into an *LLMError, leaving existing ones untouched
func WrapUnknown(err error) *LLMError {
	if err == nil {
		return nil
	}
	if llmErr, ok := AsLLMError(err); ok {
		return llmErr
	}
	if errors.Is(err, context.Canceled) {
		return NewRuntimeError(CodeCancelled, "request cancelled", err)
	}
	return NewRuntimeError(CodeUnknown, "unexpected error", err)
}

type ConfigValidationError struct {
	Value  interface{}
	Field  string
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("invalid configuration for %s=%v: %s", e.Field, e.Value, e.Reason)
}

func NewConfigValidationError(field string, value interface{}, reason string) *ConfigValidationError {
	return &ConfigValidationError{
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}
