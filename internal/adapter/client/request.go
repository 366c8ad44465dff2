package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/thushan/locallm/internal/core/constants"
	"github.com/thushan/locallm/internal/core/domain"
	"github.com/thushan/locallm/internal/logger"
	"github.com/thushan/locallm/internal/util"
	"github.com/thushan/locallm/internal/version"
)

var errRequestTimeout = errors.New("request timeout exceeded")

type request struct {
	body    any
	method  string
	path    string
	model   string
	stream  bool
	noRetry bool
}

// response is a successful exchange. Non-streaming responses are fully read
// into payload, streaming ones keep the body open until Close.
type response struct {
	body      io.ReadCloser
	cancel    context.CancelCauseFunc
	log       *logger.StyledLogger
	requestID string
	payload   []byte
	status    int
}

func (r *response) Close() {
	if r.body != nil {
		_ = r.body.Close()
	}
	if r.cancel != nil {
		r.cancel(nil)
	}
}

// send runs the retry loop. The request is tried at most RetryAttempts+1 times,
// only connection errors, 429 and 5xx are retried.
func (c *Client) send(ctx context.Context, req *request) (*response, error) {
	settings, limiter, _ := c.snapshot()

	var payload []byte
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return nil, domain.NewValidationError(domain.CodeInvalidRequest, "", "unable to encode request").WithDetail("error", err.Error())
		}
		payload = b
	}

	maxAttempts := settings.RetryAttempts + 1
	if req.noRetry {
		maxAttempts = 1
	}

	requestID := util.GenerateRequestID()
	log := c.logger.WithRequestID(requestID)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := util.CalculateRetryDelay(attempt-1, settings.RetryBaseDelay, settings.RetryMaxDelay, settings.RetryJitter)
			c.stats.retries.Add(1)
			log.Debug("Retrying request",
				"path", req.path,
				"attempt", attempt+1,
				"max_attempts", maxAttempts,
				"delay", delay,
				"error", lastErr)
			if err := c.sleep(ctx, delay); err != nil {
				c.stats.failures.Add(1)
				if ctxErr, ok := contextError(ctx, err); ok {
					return nil, ctxErr
				}
				return nil, domain.NewRuntimeError(domain.CodeCancelled, "request cancelled", err)
			}
		}

		resp, err := c.attempt(ctx, settings, limiter, req, payload, requestID)
		if err == nil {
			resp.log = log
			return resp, nil
		}

		lastErr = err
		if !domain.IsRetryable(err) {
			break
		}
	}

	c.stats.failures.Add(1)
	log.Debug("Request failed", "path", req.path, "error", lastErr)
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, settings Settings, limiter *rate.Limiter, req *request, payload []byte, requestID string) (*response, error) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			if ctxErr, ok := contextError(ctx, err); ok && ctx.Err() != nil {
				return nil, ctxErr
			}
			return nil, domain.NewConnectionError(domain.CodeConnectionTimeout, "rate limit wait exceeds deadline", err)
		}
	}

	attemptCtx, cancel := context.WithCancelCause(ctx)
	timer := time.AfterFunc(settings.Timeout, func() { cancel(errRequestTimeout) })

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.method, util.ResolveURLPath(settings.BaseURL, req.path), body)
	if err != nil {
		timer.Stop()
		cancel(nil)
		return nil, domain.NewValidationError(domain.CodeInvalidConfiguration, "server.base_url", "unable to build request").
			WithDetail("error", err.Error())
	}

	if payload != nil {
		httpReq.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	}
	if req.stream {
		httpReq.Header.Set(constants.HeaderAccept, constants.ContentTypeEventStream)
	} else {
		httpReq.Header.Set(constants.HeaderAccept, constants.ContentTypeJSON)
	}
	if settings.APIKey != "" {
		httpReq.Header.Set(constants.HeaderAuthorization, "Bearer "+settings.APIKey)
	}
	httpReq.Header.Set(constants.HeaderUserAgent, version.UserAgent())
	httpReq.Header.Set(constants.HeaderRequestID, requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	c.stats.requests.Add(1)
	if err != nil {
		timer.Stop()
		cancel(nil)
		return nil, classifyAttemptError(ctx, attemptCtx, err, classifyTransportError)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, MaxErrorBodySize))
		_ = resp.Body.Close()
		timer.Stop()
		cancel(nil)
		return nil, classifyStatus(resp.StatusCode, errBody, req.model).WithDetail("request_id", requestID)
	}

	if req.stream {
		// the timeout covers getting to the first byte, a stream may run as long as it likes
		timer.Stop()
		c.stats.recordLatency(time.Since(start))
		return &response{
			body:      resp.Body,
			cancel:    cancel,
			requestID: requestID,
			status:    resp.StatusCode,
		}, nil
	}

	defer func() {
		timer.Stop()
		cancel(nil)
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, settings.MaxResponseSize+1))
	_ = resp.Body.Close()
	if err != nil {
		return nil, classifyAttemptError(ctx, attemptCtx, err, classifyTransportError)
	}
	if int64(len(data)) > settings.MaxResponseSize {
		return nil, domain.NewAPIError(domain.CodeInvalidResponse, resp.StatusCode, "response exceeds maximum size", nil).
			WithDetail("max_size", settings.MaxResponseSize)
	}

	c.stats.bytesIn.Add(int64(len(data)))
	c.stats.recordLatency(time.Since(start))

	return &response{
		payload:   data,
		requestID: requestID,
		status:    resp.StatusCode,
	}, nil
}

// classifyAttemptError reports our own timeout as a connection timeout before
// falling back to the given classifier
func classifyAttemptError(parent, attemptCtx context.Context, err error, fallback func(context.Context, error) *domain.LLMError) *domain.LLMError {
	if parent.Err() == nil && errors.Is(context.Cause(attemptCtx), errRequestTimeout) {
		return domain.NewConnectionError(domain.CodeConnectionTimeout, "request timed out", err)
	}
	return fallback(parent, err)
}

// doJSON sends a non-streaming request and decodes the payload into out
func (c *Client) doJSON(ctx context.Context, req *request, out any) (*response, error) {
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}

	if out != nil {
		if err := json.Unmarshal(resp.payload, out); err != nil {
			return nil, domain.NewAPIError(domain.CodeInvalidResponse, resp.status, "unable to decode server response", err).
				WithDetail("request_id", resp.requestID)
		}
	}
	return resp, nil
}
