package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReportMissing(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		output string
		code   int
		want   []string
	}{
		{
			name:   "bash reports the missing tool",
			line:   "go test ./...",
			output: "bash: go: command not found\n",
			code:   127,
			want:   []string{"'go' not found in PATH on build01", "rc_file", "prepend_cmd"},
		},
		{
			name:   "falls back to the first word",
			line:   "rustup show",
			output: "",
			code:   127,
			want:   []string{"'rustup' not found in PATH on build01"},
		},
		{name: "other exit codes stay quiet", line: "make", output: "make: go: No such file or directory", code: 2},
		{name: "success stays quiet", line: "uptime", output: " 10:00 up 3 days", code: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			reportMissing(&buf, tt.line, "build01", tt.output, tt.code)
			if len(tt.want) == 0 {
				assert.Empty(t, buf.String())
				return
			}
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
		})
	}
}
