package theme

import (
	"github.com/pterm/pterm"
)

// Theme defines the colour scheme used by the logger and the CLI output
type Theme struct {
	Info  *pterm.Style
	Muted *pterm.Style

	// Prompt and assistant styling for the chat REPL
	Prompt    *pterm.Style
	Assistant *pterm.Style
	Accent    *pterm.Style

	Endpoint pterm.Color
	Counts   pterm.Color
	Numbers  pterm.Color
	Model    pterm.Color

	// Feature state colours
	StateAvailable   pterm.Color
	StateLimited     pterm.Color
	StateUnavailable pterm.Color
	StateDisabled    pterm.Color
}

// Default returns the default application theme
func Default() *Theme {
	return &Theme{
		Info:  pterm.NewStyle(pterm.FgGreen),
		Muted: pterm.NewStyle(pterm.FgGray),

		Prompt:    pterm.NewStyle(pterm.FgCyan, pterm.Bold),
		Assistant: pterm.NewStyle(pterm.FgDefault),
		Accent:    pterm.NewStyle(pterm.FgMagenta),

		Endpoint: pterm.FgLightBlue,
		Counts:   pterm.FgLightYellow,
		Numbers:  pterm.FgLightCyan,
		Model:    pterm.FgLightMagenta,

		StateAvailable:   pterm.FgGreen,
		StateLimited:     pterm.FgYellow,
		StateUnavailable: pterm.FgRed,
		StateDisabled:    pterm.FgGray,
	}
}

// Dark returns a dark theme variant
func Dark() *Theme {
	return &Theme{
		Info:  pterm.NewStyle(pterm.FgLightGreen),
		Muted: pterm.NewStyle(pterm.FgGray),

		Prompt:    pterm.NewStyle(pterm.FgLightCyan, pterm.Bold),
		Assistant: pterm.NewStyle(pterm.FgLightWhite),
		Accent:    pterm.NewStyle(pterm.FgLightMagenta),

		Endpoint: pterm.FgLightBlue,
		Counts:   pterm.FgLightYellow,
		Numbers:  pterm.FgLightCyan,
		Model:    pterm.FgLightMagenta,

		StateAvailable:   pterm.FgLightGreen,
		StateLimited:     pterm.FgLightYellow,
		StateUnavailable: pterm.FgLightRed,
		StateDisabled:    pterm.FgGray,
	}
}

// Light returns a light theme variant
func Light() *Theme {
	return &Theme{
		Info:  pterm.NewStyle(pterm.FgBlack),
		Muted: pterm.NewStyle(pterm.FgGray),

		Prompt:    pterm.NewStyle(pterm.FgBlue, pterm.Bold),
		Assistant: pterm.NewStyle(pterm.FgBlack),
		Accent:    pterm.NewStyle(pterm.FgMagenta),

		Endpoint: pterm.FgBlue,
		Counts:   pterm.FgMagenta,
		Numbers:  pterm.FgBlue,
		Model:    pterm.FgMagenta,

		StateAvailable:   pterm.FgGreen,
		StateLimited:     pterm.FgRed,
		StateUnavailable: pterm.FgRed,
		StateDisabled:    pterm.FgGray,
	}
}

// GetTheme returns the appropriate theme based on environment or preference
func GetTheme(name string) *Theme {
	switch name {
	case "dark":
		return Dark()
	case "light":
		return Light()
	default:
		return Default()
	}
}

// ColourSplash Colours for the version banner
func ColourSplash(message ...any) string {
	return pterm.LightGreen(message...)
}

// ColourVersion Colours Version numbers, used for the version banner
func ColourVersion(message ...any) string {
	return pterm.LightYellow(message...)
}

// StyleUrl Colours for URLs and hyperlinks
func StyleUrl(message ...any) string {
	return pterm.LightBlue(message...)
}

// Hyperlink creates a hyperlink in the terminal
func Hyperlink(uri string, text string) string {
	return "\x1b]8;;" + uri + "\x07" + text + "\x1b]8;;\x07" + "\u001b[0m"
}
