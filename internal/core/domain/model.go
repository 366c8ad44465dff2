package domain

import (
	"context"
	"time"
)

type ModelType string

const (
	ModelTypeLLM        ModelType = "llm"
	ModelTypeVLM        ModelType = "vlm"
	ModelTypeEmbeddings ModelType = "embeddings"
)

const (
	ModelStateLoaded    = "loaded"
	ModelStateNotLoaded = "not-loaded"
)

// Model is a model advertised by the inference server. LM Studio fills in the
// extended fields (type, publisher, arch...), plain OpenAI-compatible servers
// only send id/object/owned_by.
type Model struct {
	ID                string    `json:"id"`
	Object            string    `json:"object,omitempty"`
	OwnedBy           string    `json:"owned_by,omitempty"`
	Type              ModelType `json:"type,omitempty"`
	Publisher         string    `json:"publisher,omitempty"`
	Arch              string    `json:"arch,omitempty"`
	CompatibilityType string    `json:"compatibility_type,omitempty"`
	Quantization      string    `json:"quantization,omitempty"`
	State             string    `json:"state,omitempty"`
	MaxContextLength  int       `json:"max_context_length,omitempty"`

	// LegacyCompat treats an untyped model as a loaded chat model. It is set by
	// the client from configuration and never comes off the wire.
	LegacyCompat bool `json:"-"`
}

// IsLoaded reports whether the server has the model in memory. Servers that don't
// report a state (Ollama, llama.cpp) only list usable models, so an empty state
// counts as loaded.
func (m *Model) IsLoaded() bool {
	if m.Type == "" {
		return m.LegacyCompat
	}
	return m.State == "" || m.State == ModelStateLoaded
}

func (m *Model) SupportsChat() bool {
	switch m.Type {
	case ModelTypeLLM, ModelTypeVLM:
		return true
	case "":
		return m.LegacyCompat
	default:
		return false
	}
}

func (m *Model) SupportsEmbeddings() bool {
	return m.Type == ModelTypeEmbeddings
}

// ModelsResponse is the envelope returned by GET /v1/models
type ModelsResponse struct {
	Object string   `json:"object"`
	Data   []*Model `json:"data"`
}

// ModelCatalog is a point-in-time listing with lookup helpers
type ModelCatalog struct {
	FetchedAt time.Time
	Models    []*Model
}

func (c *ModelCatalog) Find(id string) (*Model, bool) {
	for _, m := range c.Models {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}

// FirstChatModel picks the first loaded chat-capable model, used when no default is configured
func (c *ModelCatalog) FirstChatModel() (*Model, bool) {
	for _, m := range c.Models {
		if m.SupportsChat() && m.IsLoaded() {
			return m, true
		}
	}
	return nil, false
}

func (c *ModelCatalog) FirstEmbeddingModel() (*Model, bool) {
	for _, m := range c.Models {
		if m.SupportsEmbeddings() && m.IsLoaded() {
			return m, true
		}
	}
	return nil, false
}

// ModelLister is the narrow view of the client needed for model selection
type ModelLister interface {
	ListModels(ctx context.Context) ([]*Model, error)
}
