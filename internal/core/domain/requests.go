package domain

import "strings"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	Model            string        `json:"model"`
	Messages         []ChatMessage `json:"messages"`
	Temperature      *float64      `json:"temperature,omitempty"`
	TopP             *float64      `json:"top_p,omitempty"`
	MaxTokens        *int          `json:"max_tokens,omitempty"`
	Stop             []string      `json:"stop,omitempty"`
	PresencePenalty  *float64      `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64      `json:"frequency_penalty,omitempty"`
	Seed             *int          `json:"seed,omitempty"`
	Stream           bool          `json:"stream"`
}

type ChatCompletionResponse struct {
	ID                string                 `json:"id"`
	Object            string                 `json:"object"`
	Model             string                 `json:"model"`
	SystemFingerprint string                 `json:"system_fingerprint,omitempty"`
	Choices           []ChatCompletionChoice `json:"choices"`
	Usage             *Usage                 `json:"usage,omitempty"`
	Stats             *PerformanceStats      `json:"stats,omitempty"`
	Created           int64                  `json:"created"`
}

type ChatCompletionChoice struct {
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
	Index        int         `json:"index"`
}

// Content returns the first choice's message text
func (r *ChatCompletionResponse) Content() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

type ChatCompletionChunk struct {
	ID      string                `json:"id"`
	Object  string                `json:"object"`
	Model   string                `json:"model"`
	Choices []ChatCompletionDelta `json:"choices"`
	Usage   *Usage                `json:"usage,omitempty"`
	Stats   *PerformanceStats     `json:"stats,omitempty"`
	Created int64                 `json:"created"`
}

type ChatCompletionDelta struct {
	Delta        ChatMessage `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
	Index        int         `json:"index"`
}

// Text returns the delta content of the first choice
func (c *ChatCompletionChunk) Text() string {
	if c == nil || len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Delta.Content
}

type CompletionRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	Seed        *int     `json:"seed,omitempty"`
	Stream      bool     `json:"stream"`
}

type CompletionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
	Usage   *Usage             `json:"usage,omitempty"`
	Stats   *PerformanceStats  `json:"stats,omitempty"`
	Created int64              `json:"created"`
}

type CompletionChoice struct {
	Text         string  `json:"text"`
	FinishReason *string `json:"finish_reason"`
	Index        int     `json:"index"`
}

func (r *CompletionResponse) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Text
}

// CompletionChunk shares the response shape, streaming servers send partial text per choice
type CompletionChunk = CompletionResponse

type EmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type EmbeddingResponse struct {
	Object string          `json:"object"`
	Model  string          `json:"model"`
	Data   []EmbeddingData `json:"data"`
	Usage  *Usage          `json:"usage,omitempty"`
}

type EmbeddingData struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// PerformanceStats mirrors LM Studio's "stats" block. Other servers leave it empty
// unless metrics paths are configured on the client.
type PerformanceStats struct {
	TokensPerSecond  float64 `json:"tokens_per_second,omitempty"`
	TimeToFirstToken float64 `json:"time_to_first_token,omitempty"`
	GenerationTime   float64 `json:"generation_time,omitempty"`
	StopReason       string  `json:"stop_reason,omitempty"`
}

func (s *PerformanceStats) IsZero() bool {
	return s == nil || (s.TokensPerSecond == 0 && s.TimeToFirstToken == 0 && s.GenerationTime == 0 && s.StopReason == "")
}

// Validate checks a chat request before it leaves the process
func (r *ChatCompletionRequest) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return NewValidationError(CodeMissingParameter, "model", "model is required")
	}
	if len(r.Messages) == 0 {
		return NewValidationError(CodeMissingParameter, "messages", "at least one message is required")
	}
	for i, m := range r.Messages {
		switch m.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return NewValidationError(CodeInvalidRequest, "messages", "unsupported role '"+m.Role+"'").WithDetail("index", i)
		}
	}
	return validateSampling(r.Temperature, r.MaxTokens)
}

func (r *CompletionRequest) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return NewValidationError(CodeMissingParameter, "model", "model is required")
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return NewValidationError(CodeMissingParameter, "prompt", "prompt is required")
	}
	return validateSampling(r.Temperature, r.MaxTokens)
}

func (r *EmbeddingRequest) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return NewValidationError(CodeMissingParameter, "model", "model is required")
	}
	if len(r.Input) == 0 {
		return NewValidationError(CodeMissingParameter, "input", "at least one input is required")
	}
	return nil
}

func validateSampling(temperature *float64, maxTokens *int) error {
	if temperature != nil && (*temperature < 0 || *temperature > 2) {
		return NewValidationError(CodeInvalidRequest, "temperature", "temperature must be between 0 and 2")
	}
	if maxTokens != nil && *maxTokens < 0 {
		return NewValidationError(CodeInvalidRequest, "max_tokens", "max_tokens must not be negative")
	}
	return nil
}
