package cli

import (
	"context"
	"fmt"
	"log"
	"runtime"

	"github.com/thushan/locallm/internal/version"
)

type VersionCmd struct {
	Short bool `help:"Only print the version number"`
}

func (c *VersionCmd) Run(_ context.Context, rt *Runtime) error {
	if c.Short {
		_, err := fmt.Fprintln(rt.Out, version.Version)
		return err
	}
	version.PrintVersionInfo(true, log.New(rt.Out, "", 0))
	_, err := fmt.Fprintf(rt.Out, "     Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return err
}
