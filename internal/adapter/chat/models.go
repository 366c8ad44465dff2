package chat

import (
	"context"
	"time"

	"github.com/thushan/locallm/internal/core/domain"
)

// SelectModel returns preferred when set, otherwise the first loaded
// chat-capable model the server reports
func SelectModel(ctx context.Context, lister domain.ModelLister, preferred string) (string, error) {
	if preferred != "" {
		return preferred, nil
	}

	models, err := lister.ListModels(ctx)
	if err != nil {
		return "", err
	}

	catalog := &domain.ModelCatalog{Models: models, FetchedAt: time.Now()}
	if m, ok := catalog.FirstChatModel(); ok {
		return m.ID, nil
	}

	if len(models) == 0 {
		return "", domain.NewModelError(domain.CodeModelNotFound, "", "the server reported no models", nil)
	}
	return "", domain.NewModelError(domain.CodeModelNotLoaded, "", "no chat model is loaded", nil).
		WithDetail("available", len(models))
}

// ModelInfo is the model summary sent to hosts in a modelList message
type ModelInfo struct {
	ID        string           `json:"id"`
	Type      domain.ModelType `json:"type,omitempty"`
	State     string           `json:"state,omitempty"`
	Publisher string           `json:"publisher,omitempty"`
	Context   int              `json:"max_context_length,omitempty"`
	Loaded    bool             `json:"loaded"`
	Chat      bool             `json:"chat"`
}

func ModelInfos(models []*domain.Model) []ModelInfo {
	out := make([]ModelInfo, 0, len(models))
	for _, m := range models {
		out = append(out, ModelInfo{
			ID:        m.ID,
			Type:      m.Type,
			State:     m.State,
			Publisher: m.Publisher,
			Context:   m.MaxContextLength,
			Loaded:    m.IsLoaded(),
			Chat:      m.SupportsChat(),
		})
	}
	return out
}
