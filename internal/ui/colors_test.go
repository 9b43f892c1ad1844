package ui

import (
	"bytes"
	"os"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaletteIsHex(t *testing.T) {
	colors := []lipgloss.Color{
		ColorNeonPink, ColorNeonCyan, ColorNeonPurple, ColorNeonGreen,
		ColorNeonOrange, ColorNeonAmber, ColorDeepVoid, ColorDarkSurface,
		ColorGlassBorder, ColorSuccess, ColorError, ColorWarning, ColorInfo,
		ColorPrimary, ColorSecondary, ColorMuted,
	}

	for _, color := range colors {
		s := string(color)
		assert.Len(t, s, 7, "color should be #RRGGBB: %s", s)
		assert.Equal(t, byte('#'), s[0])
	}
	assert.Len(t, GradientColors, 4)
}

func TestStylesRender(t *testing.T) {
	styles := map[string]lipgloss.Style{
		"success": SuccessStyle(),
		"error":   ErrorStyle(),
		"warning": WarningStyle(),
		"info":    InfoStyle(),
		"muted":   MutedStyle(),
	}

	for name, style := range styles {
		t.Run(name, func(t *testing.T) {
			assert.Contains(t, style.Render(name), name)
		})
	}
}

func TestSetColorMode(t *testing.T) {
	orig := lipgloss.ColorProfile()
	t.Cleanup(func() { lipgloss.SetColorProfile(orig) })

	SetColorMode("never", &bytes.Buffer{})
	assert.Equal(t, "plain", SuccessStyle().Render("plain"), "never renders without escapes")

	SetColorMode("auto", &bytes.Buffer{})
	assert.Equal(t, "plain", SuccessStyle().Render("plain"), "non-terminals get no color")

	SetColorMode("always", &bytes.Buffer{})
	assert.NotEqual(t, "plain", SuccessStyle().Render("plain"))
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))

	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, IsTerminal(f))
}

func TestPrintWarning(t *testing.T) {
	oldStderr := os.Stderr
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stderr = w

	PrintWarning("control socket is stale")

	w.Close()
	os.Stderr = oldStderr

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	assert.Contains(t, buf.String(), "control socket is stale")
	assert.Contains(t, buf.String(), SymbolWarning)
}
