package util

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

/*
   references:
   - https://no-color.org/
   - https://github.com/sitkevij/no_color
*/

// IsTerminal checks if stdout is a terminal using go-isatty
func IsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

// IsInteractiveInput reports whether stdin is a terminal, the chat REPL only prompts when it is
func IsInteractiveInput() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// ShouldUseColors determines if coloured output should be used
func ShouldUseColors() bool {
	if noColor := os.Getenv("NO_COLOR"); noColor != "" {
		return false
	}

	if forceColor := os.Getenv("FORCE_COLOR"); forceColor != "" {
		return forceColor != "0"
	}

	if forced := os.Getenv("LOCALLM_FORCE_COLORS"); forced != "" {
		return strings.ToLower(forced) == "true"
	}

	return IsTerminal()
}
