package chat

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/thushan/locallm/internal/config"
	"github.com/thushan/locallm/internal/core/domain"
)

const (
	DefaultMaxHistory = 20

	// simplified requests keep only the latest exchange and a smaller answer budget
	simplifiedHistory   = 2
	simplifiedMaxTokens = 256
)

// Session is one conversation: model, system prompt and trimmed history
type Session struct {
	id           string
	model        string
	systemPrompt string
	history      []domain.ChatMessage
	temperature  float64
	maxTokens    int
	maxHistory   int
	stream       bool
	mu           sync.RWMutex
}

func NewSession(cfg config.ChatConfig) *Session {
	maxHistory := cfg.MaxHistory
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Session{
		id:           uuid.NewString(),
		model:        cfg.DefaultModel,
		systemPrompt: cfg.SystemPrompt,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		maxHistory:   maxHistory,
		stream:       cfg.Stream,
	}
}

func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

func (s *Session) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

func (s *Session) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = strings.TrimSpace(model)
}

func (s *Session) SystemPrompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.systemPrompt
}

func (s *Session) SetSystemPrompt(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.systemPrompt = strings.TrimSpace(prompt)
}

func (s *Session) Streaming() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stream
}

func (s *Session) SetStreaming(stream bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stream = stream
}

// Clear drops the history and starts a new conversation id
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.id = uuid.NewString()
}

func (s *Session) History() []domain.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ChatMessage, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// Commit appends a finished exchange and trims the history
func (s *Session) Commit(user, assistant string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history,
		domain.ChatMessage{Role: domain.RoleUser, Content: user},
		domain.ChatMessage{Role: domain.RoleAssistant, Content: assistant},
	)
	s.history = trimHistory(s.history, s.maxHistory)
}

// Request builds the chat request for a new user message without recording it
func (s *Session) Request(prompt string) *domain.ChatCompletionRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buildLocked(prompt, s.history, s.maxTokens, s.stream)
}

// SimplifiedRequest is the reduced request for the simplified fallback:
// not streamed, last exchange only and a capped answer length
func (s *Session) SimplifiedRequest(prompt string) *domain.ChatCompletionRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	maxTokens := simplifiedMaxTokens
	if s.maxTokens > 0 && s.maxTokens < maxTokens {
		maxTokens = s.maxTokens
	}
	return s.buildLocked(prompt, trimHistory(s.history, simplifiedHistory), maxTokens, false)
}

func (s *Session) buildLocked(prompt string, history []domain.ChatMessage, maxTokens int, stream bool) *domain.ChatCompletionRequest {
	messages := make([]domain.ChatMessage, 0, len(history)+2)
	if s.systemPrompt != "" {
		messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: s.systemPrompt})
	}
	messages = append(messages, history...)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: prompt})

	req := &domain.ChatCompletionRequest{
		Model:    s.model,
		Messages: messages,
		Stream:   stream,
	}
	temperature := s.temperature
	req.Temperature = &temperature
	if maxTokens > 0 {
		req.MaxTokens = &maxTokens
	}
	return req
}

// trimHistory keeps the newest max messages and never starts on an assistant reply
func trimHistory(history []domain.ChatMessage, max int) []domain.ChatMessage {
	if max <= 0 || len(history) <= max {
		return history
	}
	trimmed := history[len(history)-max:]
	for len(trimmed) > 0 && trimmed[0].Role == domain.RoleAssistant {
		trimmed = trimmed[1:]
	}
	out := make([]domain.ChatMessage, len(trimmed))
	copy(out, trimmed)
	return out
}
