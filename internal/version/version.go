package version

import (
	"fmt"
	"log"
	"strings"

	"github.com/thushan/locallm/theme"
)

var (
	Name        = "locallm"
	ShortName   = "locallm"
	Authors     = "Thushan Fernando"
	Description = "Chat with your local LLM server"
	Version     = "v0.0.1"
	Commit      = "none"
	Date        = "nowish"
	User        = "local"
)

const (
	GithubHomeText  = "github.com/thushan/locallm"
	GithubHomeUri   = "https://github.com/thushan/locallm"
	GithubLatestUri = "https://github.com/thushan/locallm/releases/latest"
)

// UserAgent is sent with every request to the inference server
func UserAgent() string {
	return fmt.Sprintf("%s/%s", ShortName, Version)
}

func PrintVersionInfo(extendedInfo bool, vlog *log.Logger) {
	githubUri := theme.Hyperlink(GithubHomeUri, GithubHomeText)
	latestUri := theme.Hyperlink(GithubLatestUri, Version)

	var b strings.Builder

	b.WriteString(theme.ColourSplash("╭─ locallm ─────────────────────────────────────╮\n"))
	b.WriteString(theme.ColourSplash("│ "))
	b.WriteString(theme.StyleUrl(githubUri))
	b.WriteString("  ")
	b.WriteString(theme.ColourVersion(latestUri))
	b.WriteString(theme.ColourSplash("\n╰───────────────────────────────────────────────╯"))

	if extendedInfo {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf(" Commit: %s\n", Commit))
		b.WriteString(fmt.Sprintf("  Built: %s\n", Date))
		b.WriteString(fmt.Sprintf("  Using: %s\n", User))
	}

	vlog.Println(b.String())
}
