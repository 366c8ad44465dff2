package cli

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"

	"github.com/thushan/locallm/internal/adapter/chat"
	"github.com/thushan/locallm/internal/core/domain"
	"github.com/thushan/locallm/pkg/format"
)

type ModelsCmd struct {
	JSON bool `help:"Print the listing as JSON"`
	Chat bool `help:"Only show loaded chat-capable models"`
}

func (c *ModelsCmd) Run(ctx context.Context, rt *Runtime) error {
	ctrl := rt.App.NewChat()
	models, res, err := ctrl.Models(ctx)
	if err != nil {
		return err
	}

	if c.Chat {
		filtered := models[:0:0]
		for _, m := range models {
			if m.SupportsChat() && m.IsLoaded() {
				filtered = append(filtered, m)
			}
		}
		models = filtered
	}

	if c.JSON {
		return writeJSON(rt.Out, chat.ModelInfos(models))
	}

	if res.Degraded {
		fmt.Fprintf(rt.Err, "Server unreachable, showing the listing cached %s ago\n", format.TimeDuration(res.Age))
	}
	if len(models) == 0 {
		fmt.Fprintln(rt.Out, "No models reported by the server")
		return nil
	}
	return renderModels(rt, models)
}

func renderModels(rt *Runtime, models []*domain.Model) error {
	data := pterm.TableData{{"MODEL", "TYPE", "STATE", "CONTEXT", "QUANT"}}
	for _, m := range models {
		typ := string(m.Type)
		if typ == "" {
			typ = "-"
		}
		state := "loaded"
		if !m.IsLoaded() {
			state = "not loaded"
		}
		quant := m.Quantization
		if quant == "" {
			quant = "-"
		}
		data = append(data, []string{m.ID, typ, state, format.ContextLength(m.MaxContextLength), quant})
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(rt.Out, table)
	return nil
}
