package client

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/docker/go-units"

	"github.com/thushan/locallm/internal/core/constants"
	"github.com/thushan/locallm/internal/core/domain"
)

// ListModels fetches GET /v1/models. Untyped models get the legacy compat flag
// from settings so the predicates on domain.Model behave consistently.
func (c *Client) ListModels(ctx context.Context) ([]*domain.Model, error) {
	var out domain.ModelsResponse
	if _, err := c.doJSON(ctx, &request{method: http.MethodGet, path: constants.PathV1Models}, &out); err != nil {
		return nil, err
	}

	settings := c.Settings()
	models := make([]*domain.Model, 0, len(out.Data))
	untyped := 0
	for _, m := range out.Data {
		if m == nil || m.ID == "" {
			continue
		}
		m.LegacyCompat = settings.LegacyModelCompat
		if m.Type == "" {
			untyped++
		}
		models = append(models, m)
	}

	if untyped > 0 && settings.LegacyModelCompat {
		c.logger.Warn("Server did not report model types, treating untyped models as loaded chat models",
			"untyped", untyped)
	}
	c.logger.Debug("Listed models", "count", len(models), "untyped", untyped)
	return models, nil
}

// Catalog lists models and wraps them for lookups
func (c *Client) Catalog(ctx context.Context) (*domain.ModelCatalog, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.ModelCatalog{Models: models, FetchedAt: time.Now()}, nil
}

func (c *Client) ChatCompletion(ctx context.Context, req *domain.ChatCompletionRequest) (*domain.ChatCompletionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body := *req
	body.Stream = false

	var out domain.ChatCompletionResponse
	resp, err := c.doJSON(ctx, &request{
		method: http.MethodPost,
		path:   constants.PathV1ChatCompletions,
		body:   &body,
		model:  req.Model,
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, domain.NewAPIError(domain.CodeInvalidResponse, resp.status, "server returned no choices", nil).
			WithDetail("request_id", resp.requestID)
	}

	out.Stats = c.fillStats(ctx, out.Stats, resp.payload)
	resp.log.Debug("Chat completion finished",
		"model", out.Model,
		"size", units.HumanSize(float64(len(resp.payload))))
	return &out, nil
}

// StreamChatCompletion streams a chat completion, calling onChunk for every
// decoded chunk. Retries only happen before the first byte of the stream.
func (c *Client) StreamChatCompletion(ctx context.Context, req *domain.ChatCompletionRequest, onChunk func(*domain.ChatCompletionChunk) error) (*StreamResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body := *req
	body.Stream = true

	started := time.Now()
	resp, err := c.send(ctx, &request{
		method: http.MethodPost,
		path:   constants.PathV1ChatCompletions,
		body:   &body,
		model:  req.Model,
		stream: true,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Close()

	result := &StreamResult{RequestID: resp.requestID, Model: req.Model}
	var content strings.Builder
	var callbackErr error

	err = c.consumeStream(ctx, resp, func(ctx context.Context, r io.Reader) (int, error) {
		skipped, perr := ParseStream(ctx, r, resp.log, func(chunk *domain.ChatCompletionChunk) error {
			result.Chunks++
			if chunk.Model != "" {
				result.Model = chunk.Model
			}
			if len(chunk.Choices) > 0 && chunk.Choices[0].FinishReason != nil {
				result.FinishReason = *chunk.Choices[0].FinishReason
			}
			if chunk.Usage != nil {
				result.Usage = chunk.Usage
			}
			if !chunk.Stats.IsZero() {
				result.Stats = chunk.Stats
			}
			content.WriteString(chunk.Text())

			if onChunk != nil {
				if cerr := onChunk(chunk); cerr != nil {
					callbackErr = cerr
					return cerr
				}
			}
			return nil
		})
		result.Skipped = skipped
		return skipped, perr
	})
	if callbackErr != nil {
		return nil, callbackErr
	}
	if err != nil {
		return nil, err
	}

	result.Content = content.String()
	result.Duration = time.Since(started)
	resp.log.Debug("Chat stream finished",
		"model", result.Model,
		"chunks", result.Chunks,
		"skipped", result.Skipped,
		"duration", result.Duration)
	return result, nil
}

func (c *Client) TextCompletion(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body := *req
	body.Stream = false

	var out domain.CompletionResponse
	resp, err := c.doJSON(ctx, &request{
		method: http.MethodPost,
		path:   constants.PathV1Completions,
		body:   &body,
		model:  req.Model,
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, domain.NewAPIError(domain.CodeInvalidResponse, resp.status, "server returned no choices", nil).
			WithDetail("request_id", resp.requestID)
	}

	out.Stats = c.fillStats(ctx, out.Stats, resp.payload)
	return &out, nil
}

func (c *Client) StreamTextCompletion(ctx context.Context, req *domain.CompletionRequest, onChunk func(*domain.CompletionChunk) error) (*StreamResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body := *req
	body.Stream = true

	started := time.Now()
	resp, err := c.send(ctx, &request{
		method: http.MethodPost,
		path:   constants.PathV1Completions,
		body:   &body,
		model:  req.Model,
		stream: true,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Close()

	result := &StreamResult{RequestID: resp.requestID, Model: req.Model}
	var content strings.Builder
	var callbackErr error

	err = c.consumeStream(ctx, resp, func(ctx context.Context, r io.Reader) (int, error) {
		skipped, perr := ParseStream(ctx, r, resp.log, func(chunk *domain.CompletionChunk) error {
			result.Chunks++
			if chunk.Model != "" {
				result.Model = chunk.Model
			}
			if len(chunk.Choices) > 0 && chunk.Choices[0].FinishReason != nil {
				result.FinishReason = *chunk.Choices[0].FinishReason
			}
			if chunk.Usage != nil {
				result.Usage = chunk.Usage
			}
			if !chunk.Stats.IsZero() {
				result.Stats = chunk.Stats
			}
			content.WriteString(chunk.Text())

			if onChunk != nil {
				if cerr := onChunk(chunk); cerr != nil {
					callbackErr = cerr
					return cerr
				}
			}
			return nil
		})
		result.Skipped = skipped
		return skipped, perr
	})
	if callbackErr != nil {
		return nil, callbackErr
	}
	if err != nil {
		return nil, err
	}

	result.Content = content.String()
	result.Duration = time.Since(started)
	return result, nil
}

func (c *Client) Embeddings(ctx context.Context, req *domain.EmbeddingRequest) (*domain.EmbeddingResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var out domain.EmbeddingResponse
	resp, err := c.doJSON(ctx, &request{
		method: http.MethodPost,
		path:   constants.PathV1Embeddings,
		body:   req,
		model:  req.Model,
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, domain.NewAPIError(domain.CodeInvalidResponse, resp.status, "server returned no embeddings", nil).
			WithDetail("request_id", resp.requestID)
	}
	return &out, nil
}

// TestConnection makes a single, unretried GET /v1/models and reports the round trip time
func (c *Client) TestConnection(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	resp, err := c.send(ctx, &request{method: http.MethodGet, path: constants.PathV1Models, noRetry: true})
	if err != nil {
		return 0, err
	}
	resp.Close()
	return time.Since(start), nil
}

func (c *Client) fillStats(ctx context.Context, stats *domain.PerformanceStats, payload []byte) *domain.PerformanceStats {
	if !stats.IsZero() {
		return stats
	}
	_, _, extractor := c.snapshot()
	if extracted := extractor.Extract(ctx, payload); extracted != nil {
		return extracted
	}
	return stats
}
