package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/locallm/internal/config"
	"github.com/thushan/locallm/internal/core/domain"
)

func TestSession_RequestIncludesSystemPromptAndHistory(t *testing.T) {
	s := NewSession(config.ChatConfig{
		DefaultModel: "qwen2.5-7b-instruct",
		SystemPrompt: "Be brief.",
		Temperature:  0.3,
		MaxTokens:    512,
		Stream:       true,
	})
	s.Commit("hi", "hello")

	req := s.Request("how are you?")
	require.NoError(t, req.Validate())
	assert.Equal(t, "qwen2.5-7b-instruct", req.Model)
	assert.True(t, req.Stream)
	require.Len(t, req.Messages, 4)
	assert.Equal(t, domain.ChatMessage{Role: domain.RoleSystem, Content: "Be brief."}, req.Messages[0])
	assert.Equal(t, domain.ChatMessage{Role: domain.RoleUser, Content: "how are you?"}, req.Messages[3])
	assert.Equal(t, 0.3, *req.Temperature)
	assert.Equal(t, 512, *req.MaxTokens)

	assert.Equal(t, 2, s.Len(), "building a request doesn't record it")
}

func TestSession_HistoryIsTrimmed(t *testing.T) {
	s := NewSession(config.ChatConfig{MaxHistory: 4})
	for i := 0; i < 5; i++ {
		s.Commit(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	history := s.History()
	require.Len(t, history, 4)
	assert.Equal(t, "q3", history[0].Content)
	assert.Equal(t, domain.RoleUser, history[0].Role)
	assert.Equal(t, "a4", history[3].Content)
}

func TestTrimHistory_NeverStartsWithAssistant(t *testing.T) {
	history := []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "q0"},
		{Role: domain.RoleAssistant, Content: "a0"},
		{Role: domain.RoleUser, Content: "q1"},
		{Role: domain.RoleAssistant, Content: "a1"},
	}

	trimmed := trimHistory(history, 3)
	require.Len(t, trimmed, 2)
	assert.Equal(t, "q1", trimmed[0].Content)

	assert.Len(t, trimHistory(history, 0), 4)
	assert.Len(t, trimHistory(history, 10), 4)
}

func TestSession_SimplifiedRequest(t *testing.T) {
	s := NewSession(config.ChatConfig{DefaultModel: "m", MaxTokens: 2048, Stream: true, SystemPrompt: "sys"})
	for i := 0; i < 3; i++ {
		s.Commit(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	req := s.SimplifiedRequest("again")
	assert.False(t, req.Stream)
	assert.Equal(t, simplifiedMaxTokens, *req.MaxTokens)
	require.Len(t, req.Messages, 4, "system, last exchange, prompt")
	assert.Equal(t, "q2", req.Messages[1].Content)

	small := NewSession(config.ChatConfig{DefaultModel: "m", MaxTokens: 64})
	assert.Equal(t, 64, *small.SimplifiedRequest("x").MaxTokens)
}

func TestSession_ClearStartsNewConversation(t *testing.T) {
	s := NewSession(config.ChatConfig{})
	id := s.ID()
	s.Commit("q", "a")

	s.Clear()
	assert.Zero(t, s.Len())
	assert.NotEqual(t, id, s.ID())
	assert.Equal(t, DefaultMaxHistory, s.maxHistory)
}

type staticLister struct {
	err    error
	models []*domain.Model
}

func (l staticLister) ListModels(context.Context) ([]*domain.Model, error) {
	return l.models, l.err
}

func TestSelectModel(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name      string
		lister    staticLister
		preferred string
		want      string
		wantCode  domain.ErrorCode
	}{
		{
			name:      "preferred wins without listing",
			lister:    staticLister{err: errors.New("must not be called")},
			preferred: "custom",
			want:      "custom",
		},
		{
			name: "first loaded chat model",
			lister: staticLister{models: []*domain.Model{
				{ID: "nomic-embed", Type: domain.ModelTypeEmbeddings, State: domain.ModelStateLoaded},
				{ID: "llama-unloaded", Type: domain.ModelTypeLLM, State: domain.ModelStateNotLoaded},
				{ID: "qwen", Type: domain.ModelTypeLLM, State: domain.ModelStateLoaded},
			}},
			want: "qwen",
		},
		{
			name:      "legacy untyped model",
			lister:    staticLister{models: []*domain.Model{{ID: "llama3", LegacyCompat: true}}},
			want:      "llama3",
			preferred: "",
		},
		{
			name:     "no models",
			lister:   staticLister{},
			wantCode: domain.CodeModelNotFound,
		},
		{
			name:     "nothing loaded",
			lister:   staticLister{models: []*domain.Model{{ID: "llama", Type: domain.ModelTypeLLM, State: domain.ModelStateNotLoaded}}},
			wantCode: domain.CodeModelNotLoaded,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SelectModel(ctx, tc.lister, tc.preferred)
			if tc.wantCode != "" {
				llmErr, ok := domain.AsLLMError(err)
				require.True(t, ok)
				assert.Equal(t, tc.wantCode, llmErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseHostMessage(t *testing.T) {
	msg, err := ParseHostMessage([]byte(`{"type":"sendMessage","text":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeSendMessage, msg.Type)
	assert.Equal(t, "hello", msg.Text)

	msg, err = ParseHostMessage([]byte(`{"type":"selectModel","model":"qwen"}`))
	require.NoError(t, err)
	assert.Equal(t, "qwen", msg.Model)

	msg, err = ParseHostMessage([]byte(`{"type":"enableFeature","feature":"chat"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.FeatureChat, msg.Feature)

	for _, bad := range []string{`{`, `{}`, `{"type":"streamChunk"}`, `{"type":"bogus"}`, `{"type":"enableFeature"}`} {
		_, err := ParseHostMessage([]byte(bad))
		assert.Equal(t, domain.CategoryValidation, domain.CategoryOf(err), bad)
	}
}

func TestHostMessage_Marshal(t *testing.T) {
	data, err := HostMessage{Type: TypeStreamChunk, Text: "tok"}.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"streamChunk","text":"tok"}`, string(data))
}
