package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// HeaderInfo contains information to display in the header.
type HeaderInfo struct {
	Version string // e.g. "v0.4.0"
	Tagline string
	Detail  []string // Extra muted lines, such as build info
}

// HeaderWidth is the default width of the header divider
const HeaderWidth = 50

// RenderHeader renders the program name, version and a divider.
func RenderHeader(info HeaderInfo) string {
	titleStyle := lipgloss.NewStyle().
		Foreground(ColorNeonPink).
		Bold(true)
	versionStyle := lipgloss.NewStyle().Foreground(ColorNeonCyan)
	dividerStyle := lipgloss.NewStyle().Foreground(ColorGlassBorder)

	var output strings.Builder

	output.WriteString(titleStyle.Render("sshwrap"))
	if info.Version != "" {
		output.WriteString(" ")
		output.WriteString(versionStyle.Render(info.Version))
	}
	output.WriteString("\n")

	if info.Tagline != "" {
		output.WriteString(lipgloss.NewStyle().Foreground(ColorSecondary).Render(info.Tagline))
		output.WriteString("\n")
	}
	for _, line := range info.Detail {
		output.WriteString(MutedStyle().Render(line))
		output.WriteString("\n")
	}

	output.WriteString(dividerStyle.Render(strings.Repeat("━", HeaderWidth)))
	output.WriteString("\n")

	return output.String()
}
