package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Neon palette shared by every styled surface.
const (
	ColorNeonPink   lipgloss.Color = "#FF2E97"
	ColorNeonCyan   lipgloss.Color = "#00FFFF"
	ColorNeonPurple lipgloss.Color = "#BF40FF"
	ColorNeonGreen  lipgloss.Color = "#39FF14"
	ColorNeonOrange lipgloss.Color = "#FF6B35"
	ColorNeonAmber  lipgloss.Color = "#FFAA00"

	ColorDeepVoid    lipgloss.Color = "#0A0A0F"
	ColorDarkSurface lipgloss.Color = "#12121A"
	ColorGlassBorder lipgloss.Color = "#2A2A4A"
)

// Semantic colors for status indication
const (
	ColorSuccess lipgloss.Color = "#39FF14"
	ColorError   lipgloss.Color = "#FF0055"
	ColorWarning lipgloss.Color = "#FFAA00"
	ColorInfo    lipgloss.Color = "#00FFFF"
)

// Text colors for content hierarchy
const (
	ColorPrimary   lipgloss.Color = "#FFFFFF"
	ColorSecondary lipgloss.Color = "#B4B4D0"
	ColorMuted     lipgloss.Color = "#6B6B8D"
)

// GradientColors cycle through the spinner frames.
var GradientColors = []lipgloss.Color{
	ColorNeonPink,
	ColorNeonPurple,
	ColorNeonCyan,
	ColorNeonGreen,
}

func SuccessStyle() lipgloss.Style { return lipgloss.NewStyle().Foreground(ColorSuccess) }
func ErrorStyle() lipgloss.Style   { return lipgloss.NewStyle().Foreground(ColorError) }
func WarningStyle() lipgloss.Style { return lipgloss.NewStyle().Foreground(ColorWarning) }
func InfoStyle() lipgloss.Style    { return lipgloss.NewStyle().Foreground(ColorInfo) }
func MutedStyle() lipgloss.Style   { return lipgloss.NewStyle().Foreground(ColorMuted) }

// SetColorMode applies an output.color setting ("auto", "always", "never")
// to every style in the process. auto keeps lipgloss's own detection for w.
func SetColorMode(mode string, w io.Writer) {
	switch mode {
	case "never":
		DisableColors()
	case "always":
		lipgloss.SetColorProfile(termenv.TrueColor)
	default:
		if !IsTerminal(w) {
			DisableColors()
			return
		}
		lipgloss.SetColorProfile(termenv.NewOutput(w).EnvColorProfile())
	}
}

// DisableColors switches to monochrome output, as for --no-color.
func DisableColors() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// IsTerminal reports whether v is a file attached to a terminal.
func IsTerminal(v any) bool {
	f, ok := v.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// PrintWarning writes a warning line to stderr.
func PrintWarning(msg string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", WarningStyle().Render(SymbolWarning), msg)
}
