package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/thushan/locallm/internal/adapter/chat"
	"github.com/thushan/locallm/internal/adapter/degradation"
	"github.com/thushan/locallm/internal/adapter/guidance"
	"github.com/thushan/locallm/internal/core/domain"
	"github.com/thushan/locallm/pkg/container"
)

type CompleteCmd struct {
	Prompt      []string `arg:"" help:"Text to continue"`
	Model       string   `short:"m" help:"Model to use, defaults to chat.default_model or the first loaded chat model"`
	MaxTokens   int      `name:"max-tokens" help:"Upper bound on generated tokens, 0 leaves it to the server"`
	Temperature *float64 `help:"Sampling temperature between 0 and 2"`
	Stop        []string `help:"Stop sequences"`
	Stream      bool     `help:"Print tokens as they arrive"`
}

func (c *CompleteCmd) Run(ctx context.Context, rt *Runtime) error {
	llm := rt.App.Client()
	cfg := rt.App.Config()

	model, err := chat.SelectModel(ctx, llm, firstNonEmpty(c.Model, cfg.Chat.DefaultModel))
	if err != nil {
		return reportFailure(rt, domain.FeatureModels, err)
	}

	req := &domain.CompletionRequest{
		Model:       model,
		Prompt:      strings.Join(c.Prompt, " "),
		Temperature: c.Temperature,
		Stop:        c.Stop,
	}
	if c.MaxTokens > 0 {
		req.MaxTokens = &c.MaxTokens
	}

	streamed := false
	res, err := degradation.Execute(ctx, rt.App.Degradation(), domain.FeatureCompletion, degradation.Operation[string]{
		Key: model + "\x00" + req.Prompt,
		Run: func(ctx context.Context) (string, error) {
			if !c.Stream {
				resp, err := llm.TextCompletion(ctx, req)
				if err != nil {
					return "", err
				}
				return resp.Text(), nil
			}
			result, err := llm.StreamTextCompletion(ctx, req, func(chunk *domain.CompletionChunk) error {
				if text := chunk.Text(); text != "" {
					streamed = true
					fmt.Fprint(rt.Out, text)
				}
				return nil
			})
			if err != nil {
				return "", err
			}
			return result.Content, nil
		},
		Simplified: func(ctx context.Context) (string, error) {
			small := *req
			limit := 128
			if req.MaxTokens != nil && *req.MaxTokens < limit {
				limit = *req.MaxTokens
			}
			small.MaxTokens = &limit
			resp, err := llm.TextCompletion(ctx, &small)
			if err != nil {
				return "", err
			}
			return resp.Text(), nil
		},
	})
	if streamed {
		fmt.Fprintln(rt.Out)
	}
	if err != nil {
		return reportFailure(rt, domain.FeatureCompletion, err)
	}

	if !streamed || res.Source != degradation.SourceLive {
		fmt.Fprintln(rt.Out, res.Value)
	}
	if res.Degraded {
		fmt.Fprintf(rt.Err, "(degraded: %s)\n", res.Source)
	}
	return nil
}

// reportFailure prints guidance for err and returns it for the exit code
func reportFailure(rt *Runtime, feature domain.Feature, err error) error {
	g := rt.App.Errors().Handle(feature, err)
	fmt.Fprintln(rt.Err, g.String())
	if hint := guidance.LoopbackHint(rt.App.Client().BaseURL(), err, container.IsContainerised()); hint != "" {
		fmt.Fprintln(rt.Err, hint)
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
