package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMissingCommand(t *testing.T) {
	tests := []struct {
		name      string
		output    string
		exitCode  int
		wantCmd   string
		wantFound bool
	}{
		{"bash command not found", "bash: go: command not found", 127, "go", true},
		{"zsh command not found", "zsh: command not found: python", 127, "python", true},
		{"sh not found", "sh: 1: node: not found", 127, "node", true},
		{"-bash no such file", "-bash: mycommand: No such file or directory", 127, "mycommand", true},
		{"generic not found", "rustc: not found", 127, "rustc", true},
		{"127 without a pattern", "some other error message", 127, "", true},
		{"other exit code", "bash: go: command not found", 1, "", false},
		{"make cannot find go", "make: go: No such file or directory\nmake: *** [test] Error 1", 2, "go", true},
		{"env shebang", "env: node: No such file or directory", 1, "node", true},
		{"/bin/sh script", "/bin/sh: rustc: not found", 2, "rustc", true},
		{"unrelated make error", "make: *** No rule to make target 'foo'.  Stop.", 2, "", false},
		{"test failure", "FAIL: TestSomething", 1, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, found := MissingCommand(tt.output, tt.exitCode)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.wantCmd, cmd)
		})
	}
}

func TestNotFoundError(t *testing.T) {
	err := NotFoundError("go test ./...", "build01", "bash: go: command not found", 127)
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "'go' not found in PATH on build01")
	assert.Contains(t, err.Error(), "rc_file")
	assert.Contains(t, err.Error(), "prepend_cmd")

	err = NotFoundError("rustup show", "build01", "some error", 127)
	assert.Contains(t, err.Error(), "'rustup' not found")

	assert.Nil(t, NotFoundError("go test ./...", "build01", "tests failed", 1))
}

