package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/locallm/internal/adapter/client"
	"github.com/thushan/locallm/internal/adapter/degradation"
	"github.com/thushan/locallm/internal/adapter/guidance"
	"github.com/thushan/locallm/internal/config"
	"github.com/thushan/locallm/internal/core/domain"
	"github.com/thushan/locallm/internal/logger"
)

type fakeBackend struct {
	chatErr   error
	streamErr error
	models    []*domain.Model
	requests  []*domain.ChatCompletionRequest
	deltas    []string
	mu        sync.Mutex
}

func (f *fakeBackend) ListModels(context.Context) ([]*domain.Model, error) {
	return f.models, nil
}

func (f *fakeBackend) ChatCompletion(_ context.Context, req *domain.ChatCompletionRequest) (*domain.ChatCompletionResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return &domain.ChatCompletionResponse{
		Model: req.Model,
		Choices: []domain.ChatCompletionChoice{{
			Message:      domain.ChatMessage{Role: domain.RoleAssistant, Content: "plain answer"},
			FinishReason: "stop",
		}},
	}, nil
}

func (f *fakeBackend) StreamChatCompletion(_ context.Context, req *domain.ChatCompletionRequest, onChunk func(*domain.ChatCompletionChunk) error) (*client.StreamResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	content := ""
	for _, d := range f.deltas {
		content += d
		if err := onChunk(&domain.ChatCompletionChunk{Choices: []domain.ChatCompletionDelta{{Delta: domain.ChatMessage{Content: d}}}}); err != nil {
			return nil, err
		}
	}
	return &client.StreamResult{Content: content, Model: req.Model, FinishReason: "stop", RequestID: "req-1"}, nil
}

func newTestController(t *testing.T, backend *fakeBackend, chatCfg config.ChatConfig, strategies map[domain.Feature]domain.FallbackStrategy) (*Controller, *degradation.Service) {
	t.Helper()
	log := logger.NewDiscard()
	svc := degradation.NewService(degradation.Config{Strategies: strategies, CacheTTL: time.Minute}, log)
	t.Cleanup(svc.Close)
	return NewController(backend, NewSession(chatCfg), svc, guidance.NewHandler(log, 10), log), svc
}

func TestController_SendNonStreaming(t *testing.T) {
	backend := &fakeBackend{}
	ctrl, _ := newTestController(t, backend, config.ChatConfig{DefaultModel: "m"}, nil)

	reply, err := ctrl.Send(context.Background(), "  hello  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain answer", reply.Content)
	assert.Equal(t, degradation.SourceLive, reply.Source)
	assert.Equal(t, "stop", reply.FinishReason)

	history := ctrl.Session().History()
	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[0].Content)
}

func TestController_SendStreamingAutoSelectsModel(t *testing.T) {
	backend := &fakeBackend{
		deltas: []string{"Hel", "lo"},
		models: []*domain.Model{{ID: "qwen", Type: domain.ModelTypeLLM, State: domain.ModelStateLoaded}},
	}
	ctrl, _ := newTestController(t, backend, config.ChatConfig{Stream: true}, nil)

	var got []string
	reply, err := ctrl.Send(context.Background(), "hi", func(d string) { got = append(got, d) })
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, got)
	assert.Equal(t, "Hello", reply.Content)
	assert.Equal(t, "qwen", ctrl.Session().Model())
	assert.Equal(t, "qwen", backend.requests[0].Model)
}

func TestController_SendFailureKeepsHistoryClean(t *testing.T) {
	backend := &fakeBackend{chatErr: domain.NewConnectionError(domain.CodeConnectionRefused, "refused", nil)}
	ctrl, svc := newTestController(t, backend, config.ChatConfig{DefaultModel: "m"}, nil)

	_, err := ctrl.Send(context.Background(), "hello", nil)

	var fbErr *degradation.FallbackError
	require.ErrorAs(t, err, &fbErr)
	assert.Zero(t, ctrl.Session().Len())
	assert.Equal(t, domain.StateUnavailable, svc.State(domain.FeatureChat))
}

func TestController_SimplifiedFallback(t *testing.T) {
	backend := &fakeBackend{
		streamErr: domain.NewModelError(domain.CodeContextLengthExceeded, "m", "too long", nil),
	}
	ctrl, _ := newTestController(t, backend, config.ChatConfig{DefaultModel: "m", Stream: true, MaxTokens: 4096},
		map[domain.Feature]domain.FallbackStrategy{domain.FeatureChat: domain.StrategySimplified})

	reply, err := ctrl.Send(context.Background(), "long question", nil)
	require.NoError(t, err)
	assert.True(t, reply.Degraded)
	assert.Equal(t, degradation.SourceSimplified, reply.Source)
	assert.Equal(t, "plain answer", reply.Content)

	require.Len(t, backend.requests, 2)
	assert.False(t, backend.requests[1].Stream)
	assert.Equal(t, 256, *backend.requests[1].MaxTokens)
}

func TestController_EmptyPromptRejected(t *testing.T) {
	backend := &fakeBackend{}
	ctrl, _ := newTestController(t, backend, config.ChatConfig{DefaultModel: "m"}, nil)

	_, err := ctrl.Send(context.Background(), "   ", nil)
	assert.Equal(t, domain.CategoryValidation, domain.CategoryOf(err))
	assert.Empty(t, backend.requests)
}

func TestController_HandleHostMessages(t *testing.T) {
	backend := &fakeBackend{
		deltas: []string{"a", "b"},
		models: []*domain.Model{{ID: "qwen", Type: domain.ModelTypeLLM, State: domain.ModelStateLoaded}},
	}
	ctrl, _ := newTestController(t, backend, config.ChatConfig{Stream: true}, nil)
	ctx := context.Background()

	var out []HostMessage
	emit := func(m HostMessage) { out = append(out, m) }

	ctrl.Handle(ctx, HostMessage{Type: TypeSelectModel, Model: "qwen"}, emit)
	require.Len(t, out, 1)
	assert.Equal(t, TypeModelList, out[0].Type)
	assert.Equal(t, "qwen", out[0].Model)
	require.Len(t, out[0].Models, 1)
	assert.True(t, out[0].Models[0].Chat)

	out = nil
	ctrl.Handle(ctx, HostMessage{Type: TypeSendMessage, Text: "hi"}, emit)
	require.Len(t, out, 3)
	assert.Equal(t, TypeStreamChunk, out[0].Type)
	assert.Equal(t, TypeStreamChunk, out[1].Type)
	assert.Equal(t, TypeStreamEnd, out[2].Type)
	assert.Equal(t, "ab", out[2].Text)

	out = nil
	ctrl.Handle(ctx, HostMessage{Type: TypeClearChat}, emit)
	assert.Empty(t, out)
	assert.Zero(t, ctrl.Session().Len())

	ctrl.Handle(ctx, HostMessage{Type: TypeSendMessage, Text: ""}, emit)
	require.Len(t, out, 1)
	assert.Equal(t, TypeError, out[0].Type)
	require.NotNil(t, out[0].Guidance)
	assert.Equal(t, domain.CodeMissingParameter, out[0].Guidance.Code)
}

func TestController_EnableFeature(t *testing.T) {
	backend := &fakeBackend{}
	ctrl, svc := newTestController(t, backend, config.ChatConfig{}, nil)
	ctx := context.Background()

	var out []HostMessage
	emit := func(m HostMessage) { out = append(out, m) }

	svc.Disable(domain.FeatureEmbeddings, "parked")
	ctrl.Handle(ctx, HostMessage{Type: TypeEnableFeature, Feature: domain.FeatureEmbeddings}, emit)
	require.Len(t, out, 1)
	assert.Equal(t, TypeFeatureState, out[0].Type)
	assert.Equal(t, domain.FeatureEmbeddings, out[0].Feature)
	assert.Equal(t, domain.StateLimited, out[0].State)
	assert.Equal(t, domain.StateLimited, svc.State(domain.FeatureEmbeddings))

	st, changed, err := ctrl.EnableFeature("embeddings")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, domain.StateLimited, st.State)

	out = nil
	ctrl.Handle(ctx, HostMessage{Type: TypeEnableFeature, Feature: "teleport"}, emit)
	require.Len(t, out, 1)
	assert.Equal(t, TypeError, out[0].Type)
	require.NotNil(t, out[0].Guidance)
	assert.Equal(t, domain.CodeInvalidRequest, out[0].Guidance.Code)
}
