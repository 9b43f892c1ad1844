package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShellQuote(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", "'simple'"},
		{"with space", "'with space'"},
		{"with'quote", "'with'\\''quote'"},
		{"", "''"},
		{"$variable", "'$variable'"},
		{"$(command)", "'$(command)'"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShellQuote(tt.input))
		})
	}
}

func TestShellQuotePreserveTilde(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"~", "~"},
		{"~/upload", "~/'upload'"},
		{"~/dir with spaces", "~/'dir with spaces'"},
		{"/var/tmp", "'/var/tmp'"},
		{"~user/path", "'~user/path'"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShellQuotePreserveTilde(tt.input))
		})
	}
}

func TestQuoteIfNeeded(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"ssh", "ssh"},
		{"-oControlPath=/home/u/.ssh/sshwrap-%r@%h:%p", "-oControlPath=/home/u/.ssh/sshwrap-%r@%h:%p"},
		{"-oProxyCommand=ssh -W %h:%p jump", "'-oProxyCommand=ssh -W %h:%p jump'"},
		{"", "''"},
		{"it's", "'it'\\''s'"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, QuoteIfNeeded(tt.input))
		})
	}
}

func TestShellJoin(t *testing.T) {
	got := ShellJoin([]string{"ssh", "-p", "2222", "-i", "/keys/my key"})
	assert.Equal(t, "ssh -p 2222 -i '/keys/my key'", got)
	assert.Equal(t, "", ShellJoin(nil))
}
