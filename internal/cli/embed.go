package cli

import (
	"context"
	"fmt"

	"github.com/thushan/locallm/internal/adapter/degradation"
	"github.com/thushan/locallm/internal/core/domain"
	"github.com/thushan/locallm/pkg/format"
)

const previewValues = 4

type EmbedCmd struct {
	Input []string `arg:"" help:"Texts to embed, one vector each"`
	Model string   `short:"m" help:"Embedding model, defaults to the first loaded embedding model"`
	JSON  bool     `help:"Print the full response as JSON"`
}

func (c *EmbedCmd) Run(ctx context.Context, rt *Runtime) error {
	llm := rt.App.Client()

	model := c.Model
	if model == "" {
		catalog, err := llm.Catalog(ctx)
		if err != nil {
			return reportFailure(rt, domain.FeatureModels, err)
		}
		m, ok := catalog.FirstEmbeddingModel()
		if !ok {
			return reportFailure(rt, domain.FeatureEmbeddings,
				domain.NewModelError(domain.CodeModelNotFound, "", "no embedding model is loaded", nil))
		}
		model = m.ID
	}

	req := &domain.EmbeddingRequest{Model: model, Input: c.Input}
	res, err := degradation.Execute(ctx, rt.App.Degradation(), domain.FeatureEmbeddings, degradation.Operation[*domain.EmbeddingResponse]{
		Run: func(ctx context.Context) (*domain.EmbeddingResponse, error) {
			return llm.Embeddings(ctx, req)
		},
	})
	if err != nil {
		return reportFailure(rt, domain.FeatureEmbeddings, err)
	}

	resp := res.Value
	if c.JSON {
		return writeJSON(rt.Out, resp)
	}

	for _, d := range resp.Data {
		preview := d.Embedding
		if len(preview) > previewValues {
			preview = preview[:previewValues]
		}
		fmt.Fprintf(rt.Out, "#%d  dims=%d  size=%s  %v...\n",
			d.Index, len(d.Embedding), format.Bytes(int64(len(d.Embedding)*8)), preview)
	}
	if resp.Usage != nil {
		fmt.Fprintf(rt.Err, "model %s, %d prompt tokens\n", resp.Model, resp.Usage.PromptTokens)
	}
	return nil
}
