package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	t.Cleanup(func() { SetOutput(prev) })
	return &buf
}

func TestEnvLogger_Debug(t *testing.T) {
	tests := []struct {
		name      string
		envValue  string
		namespace string
		expectLog bool
	}{
		{
			name:      "logs when SSHWRAP_DEBUG is a wildcard",
			envValue:  "*",
			namespace: "sshwrap:debug:host",
			expectLog: true,
		},
		{
			name:      "logs when namespace prefix is enabled",
			envValue:  "sshwrap:debug",
			namespace: "sshwrap:debug:host",
			expectLog: true,
		},
		{
			name:      "logs from a trailing star pattern",
			envValue:  "sshwrap:verbose:*",
			namespace: "sshwrap:verbose:pty",
			expectLog: true,
		},
		{
			name:      "logs when one of several patterns matches",
			envValue:  "other, sshwrap:audit",
			namespace: "sshwrap:audit",
			expectLog: true,
		},
		{
			name:      "does not log for a sibling namespace",
			envValue:  "sshwrap:debug:exec",
			namespace: "sshwrap:debug:host",
			expectLog: false,
		},
		{
			name:      "does not match a partial segment",
			envValue:  "sshwrap:deb",
			namespace: "sshwrap:debug:host",
			expectLog: false,
		},
		{
			name:      "does not log when SSHWRAP_DEBUG is empty",
			envValue:  "",
			namespace: "sshwrap:debug:host",
			expectLog: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureOutput(t)
			t.Setenv(DebugEnv, tt.envValue)

			l := NewEnvLogger(tt.namespace)
			l.Debug("test message %s", "arg")

			if tt.expectLog {
				assert.Contains(t, buf.String(), "test message arg")
				assert.Contains(t, buf.String(), tt.namespace)
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestEnvLogger_Levels(t *testing.T) {
	buf := captureOutput(t)
	t.Setenv(DebugEnv, "")

	l := NewEnvLogger("sshwrap:debug:test")
	l.Info("info message %d", 42)
	l.Warn("warning message")
	l.Error("error message")

	out := buf.String()
	assert.Contains(t, out, "info message 42")
	assert.Contains(t, out, "WRN")
	assert.Contains(t, out, "warning message")
	assert.Contains(t, out, "ERR")
	assert.Contains(t, out, "error message")
}

func TestNamespaceHelpers(t *testing.T) {
	buf := captureOutput(t)
	t.Setenv(DebugEnv, "*")

	Debugger("host").Debug("d")
	Verbose("pty").Debug("v")
	Audit().Debug("a")

	out := buf.String()
	assert.Contains(t, out, "sshwrap:debug:host")
	assert.Contains(t, out, "sshwrap:verbose:pty")
	assert.Contains(t, out, "sshwrap:audit")
}

func TestNoopLogger(t *testing.T) {
	buf := captureOutput(t)

	l := Noop()
	l.Debug("debug")
	l.Info("info")
	l.Warn("warn")
	l.Error("error")

	assert.Empty(t, buf.String(), "noop logger should not produce any output")
}

func TestBufferLogger(t *testing.T) {
	l := NewBufferLogger()

	l.Debug("debug %s", "msg")
	l.Info("info %s", "msg")
	l.Warn("warn %s", "msg")
	l.Error("error %s", "msg")

	require.Len(t, l.Messages, 4)

	assert.Equal(t, "debug", l.Messages[0].Level)
	assert.Equal(t, "debug msg", l.Messages[0].Message)

	assert.Equal(t, "info", l.Messages[1].Level)
	assert.Equal(t, "info msg", l.Messages[1].Message)

	assert.Equal(t, "warn", l.Messages[2].Level)
	assert.Equal(t, "warn msg", l.Messages[2].Message)

	assert.Equal(t, "error", l.Messages[3].Level)
	assert.Equal(t, "error msg", l.Messages[3].Message)

	assert.True(t, l.Contains("warn m"))
	assert.False(t, l.Contains("missing"))
	assert.Len(t, l.Snapshot(), 4)
}

func TestBufferLogger_HasLevel(t *testing.T) {
	l := NewBufferLogger()

	assert.False(t, l.HasLevel("debug"))
	assert.False(t, l.HasLevel("error"))

	l.Debug("test")
	assert.True(t, l.HasLevel("debug"))
	assert.False(t, l.HasLevel("error"))

	l.Error("test")
	assert.True(t, l.HasLevel("error"))
}

func TestBufferLogger_Clear(t *testing.T) {
	l := NewBufferLogger()

	l.Debug("test1")
	l.Info("test2")
	require.Len(t, l.Messages, 2)

	l.Clear()
	assert.Empty(t, l.Messages)
}

func TestDefault(t *testing.T) {
	original := defaultLogger
	defer func() { defaultLogger = original }()

	d := Default()
	assert.NotNil(t, d)

	buf := NewBufferLogger()
	SetDefault(buf)

	assert.Equal(t, buf, Default())
}

func TestEnvLogger_FormatStrings(t *testing.T) {
	buf := captureOutput(t)

	l := NewEnvLogger("fmt")
	l.Info("int: %d, string: %s, float: %.2f", 42, "hello", 3.14159)

	output := buf.String()
	assert.True(t, strings.Contains(output, "int: 42"))
	assert.True(t, strings.Contains(output, "string: hello"))
	assert.True(t, strings.Contains(output, "float: 3.14"))
}
