package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"golang.org/x/sync/errgroup"

	"github.com/thushan/locallm/internal/adapter/client"
	"github.com/thushan/locallm/internal/adapter/guidance"
	"github.com/thushan/locallm/internal/core/domain"
	"github.com/thushan/locallm/pkg/container"
	"github.com/thushan/locallm/pkg/format"
)

type StatusCmd struct {
	JSON    bool          `help:"Print the report as JSON"`
	Timeout time.Duration `default:"5s" help:"How long to wait for the server"`
}

// StatusReport is what the status command prints
type StatusReport struct {
	CheckedAt   time.Time              `json:"checked_at"`
	Server      string                 `json:"server"`
	Error       string                 `json:"error,omitempty"`
	Hint        string                 `json:"hint,omitempty"`
	Latency     time.Duration          `json:"latency"`
	Models      int                    `json:"models"`
	ChatModels  int                    `json:"chat_models"`
	Features    []domain.FeatureStatus `json:"features"`
	Errors      []guidance.CodeCount   `json:"errors,omitempty"`
	Client      client.Stats           `json:"client"`
	Reachable   bool                   `json:"reachable"`
	ModelsError string                 `json:"models_error,omitempty"`
}

func (c *StatusCmd) Run(ctx context.Context, rt *Runtime) error {
	report := c.collect(ctx, rt)
	if c.JSON {
		return writeJSON(rt.Out, report)
	}
	return renderStatus(rt, report)
}

// collect checks the connection and the model listing in parallel and feeds
// both outcomes into the feature state machine
func (c *StatusCmd) collect(ctx context.Context, rt *Runtime) StatusReport {
	llm := rt.App.Client()
	svc := rt.App.Degradation()
	errs := rt.App.Errors()

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	report := StatusReport{Server: llm.BaseURL(), CheckedAt: time.Now()}

	var g errgroup.Group
	g.Go(func() error {
		latency, err := llm.TestConnection(ctx)
		if err != nil {
			svc.RecordFailure(domain.FeatureConnection, err)
			report.Error = errs.Handle(domain.FeatureConnection, err).String()
			report.Hint = guidance.LoopbackHint(llm.BaseURL(), err, container.IsContainerised())
			return nil
		}
		svc.RecordSuccess(domain.FeatureConnection)
		report.Reachable = true
		report.Latency = latency
		return nil
	})
	g.Go(func() error {
		models, err := llm.ListModels(ctx)
		if err != nil {
			svc.RecordFailure(domain.FeatureModels, err)
			report.ModelsError = errs.Handle(domain.FeatureModels, err).Message
			return nil
		}
		svc.RecordSuccess(domain.FeatureModels)
		report.Models = len(models)
		for _, m := range models {
			if m.SupportsChat() && m.IsLoaded() {
				report.ChatModels++
			}
		}
		return nil
	})
	_ = g.Wait()

	report.Features = svc.Snapshot()
	report.Errors = errs.Counts()
	report.Client = llm.Stats()
	return report
}

func renderStatus(rt *Runtime, r StatusReport) error {
	if r.Reachable {
		fmt.Fprintf(rt.Out, "Server   %s  online (%s)\n", r.Server, format.Latency(r.Latency))
	} else {
		fmt.Fprintf(rt.Out, "Server   %s  offline\n", r.Server)
		if r.Error != "" {
			fmt.Fprintf(rt.Out, "         %s\n", r.Error)
		}
		if r.Hint != "" {
			fmt.Fprintf(rt.Out, "         %s\n", r.Hint)
		}
	}
	if r.ModelsError == "" {
		fmt.Fprintf(rt.Out, "Models   %d listed, %d loaded for chat\n", r.Models, r.ChatModels)
	} else {
		fmt.Fprintf(rt.Out, "Models   %s\n", r.ModelsError)
	}
	fmt.Fprintln(rt.Out)

	log := rt.App.Logger()
	data := pterm.TableData{{"FEATURE", "STATE", "FAILURES", "CHANGED"}}
	for _, f := range r.Features {
		data = append(data, []string{
			string(f.Feature),
			log.FeatureStateText(f.State),
			fmt.Sprintf("%d", f.ConsecutiveFails),
			format.TimeAgo(f.LastChanged),
		})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(rt.Out, table)

	st := r.Client
	fmt.Fprintf(rt.Out, "\nRequests %d (%d ok, %d retries, %d failed), %s received, avg %s\n",
		st.Requests, st.Successes, st.Retries, st.Failures, format.Bytes(st.BytesReceived), format.Latency(st.AverageLatency))

	if len(r.Errors) > 0 {
		fmt.Fprintln(rt.Out, "Errors")
		for _, e := range r.Errors {
			fmt.Fprintf(rt.Out, "  %-26s %d\n", e.Code, e.Count)
		}
	}
	return nil
}
