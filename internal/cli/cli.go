package cli

import (
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/thushan/locallm/internal/app"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Globals are flags shared by every command
type Globals struct {
	ConfigFile string  `name:"config-file" short:"c" env:"LOCALLM_CONFIG_FILE" type:"path" help:"Config file to use instead of the default search path"`
	Server     string  `short:"s" help:"Override server.base_url for this run"`
	LogLevel   *string `env:"LOCALLM_LOG_LEVEL" enum:"debug,info,warn,error" help:"Log level [${enum}]"`
}

// CLI is the kong grammar for the locallm binary
var CLI struct {
	Globals `embed:""`

	Chat     ChatCmd     `cmd:"" help:"Chat with a model, interactively or one-shot" default:"withargs"`
	Models   ModelsCmd   `cmd:"" help:"List the models the server offers"`
	Complete CompleteCmd `cmd:"" help:"Run a raw text completion"`
	Embed    EmbedCmd    `cmd:"" help:"Create embeddings for text"`
	Status   StatusCmd   `cmd:"" help:"Show server connectivity, feature states and recent errors"`
	Watch    WatchCmd    `cmd:"" help:"Poll the server and print feature state changes"`
	Config   ConfigCmd   `cmd:"" help:"Print the effective configuration"`
	Version  VersionCmd  `cmd:"" help:"Print version information"`
}

// Runtime is bound into every command's Run method
type Runtime struct {
	App *app.Application
	In  io.Reader
	Out io.Writer
	Err io.Writer

	// Interactive is true when stdin is a terminal
	Interactive bool
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
