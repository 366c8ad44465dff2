package cli

import (
	"context"
	"fmt"
)

type ConfigCmd struct {
	JSON bool `help:"Print as JSON instead of YAML"`
}

func (c *ConfigCmd) Run(_ context.Context, rt *Runtime) error {
	cfg := rt.App.Config()
	if cfg.Filename != "" {
		fmt.Fprintf(rt.Err, "# loaded from %s\n", cfg.Filename)
	} else {
		fmt.Fprintln(rt.Err, "# no config file found, using defaults and environment")
	}

	if c.JSON {
		masked := *cfg
		if masked.Server.APIKey != "" {
			masked.Server.APIKey = "********"
		}
		return writeJSON(rt.Out, masked)
	}

	data, err := cfg.ToYAML()
	if err != nil {
		return err
	}
	_, err = rt.Out.Write(data)
	return err
}
