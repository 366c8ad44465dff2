package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/thushan/locallm/internal/core/domain"
)

type WatchCmd struct {
	JSON     bool          `help:"Print state changes as JSON lines"`
	Interval time.Duration `help:"Override health.interval"`
}

func (c *WatchCmd) Run(ctx context.Context, rt *Runtime) error {
	rt.App.EnableHealth(c.Interval)

	events, unsubscribe := rt.App.Degradation().Subscribe(ctx)
	defer unsubscribe()

	if err := rt.App.Start(ctx); err != nil {
		return err
	}

	if !c.JSON {
		fmt.Fprintf(rt.Out, "Watching %s, Ctrl+C to stop\n", rt.App.Client().BaseURL())
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := c.print(rt, ev); err != nil {
				return err
			}
		}
	}
}

func (c *WatchCmd) print(rt *Runtime, ev domain.FeatureStateChange) error {
	if c.JSON {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(rt.Out, string(data))
		return err
	}

	log := rt.App.Logger()
	line := fmt.Sprintf("%s  %-11s %s -> %s", ev.At.Format(time.TimeOnly), ev.Feature,
		log.FeatureStateText(ev.From), log.FeatureStateText(ev.To))
	if ev.Reason != "" {
		line += "  (" + ev.Reason + ")"
	}
	_, err := fmt.Fprintln(rt.Out, line)
	return err
}
