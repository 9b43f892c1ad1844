package exec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rileyhilliard/sshwrap/internal/errors"
)

// Shell messages for a missing command. They only count with exit code 127.
var commandNotFoundPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bash: (\S+): command not found`),
	regexp.MustCompile(`(?i)zsh: command not found: (\S+)`),
	regexp.MustCompile(`(?i)sh: \d+: (\S+): not found`),
	regexp.MustCompile(`(?i)-bash: (\S+): No such file or directory`),
	regexp.MustCompile(`(?i)(\S+): not found`),
	regexp.MustCompile(`(?i)(\S+): command not found`),
}

// A tool such as make failing because something it calls is missing.
// These come with any exit code.
var dependencyNotFoundPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)make: (\S+): No such file or directory`),
	regexp.MustCompile(`(?i)/bin/sh: (\S+): not found`),
	regexp.MustCompile(`(?i)env: (\S+): No such file or directory`),
}

// MissingCommand reports the command a remote run could not find. output is
// the terminal transcript, which merges stdout and stderr.
func MissingCommand(output string, exitCode int) (string, bool) {
	if exitCode == 127 {
		for _, p := range commandNotFoundPatterns {
			if m := p.FindStringSubmatch(output); len(m) > 1 {
				return m[1], true
			}
		}
		return "", true
	}
	for _, p := range dependencyNotFoundPatterns {
		if m := p.FindStringSubmatch(output); len(m) > 1 {
			return m[1], true
		}
	}
	return "", false
}

// NotFoundError explains a missing remote command, or returns nil when the
// output does not look like one.
func NotFoundError(cmd, host, output string, exitCode int) error {
	name, ok := MissingCommand(output, exitCode)
	if !ok {
		return nil
	}
	if name == "" {
		if fields := strings.Fields(cmd); len(fields) > 0 {
			name = fields[0]
		} else {
			name = "command"
		}
	}

	suggestion := fmt.Sprintf(`'%s' wasn't found in the PATH of the remote ssh session.

Non-interactive ssh sessions skip most shell profile files. Either:

1. Install '%s' on %s

2. Source the file that sets up PATH before every command:
   hosts:
     %s:
       rc_file: ~/.bashrc

3. Or prepend a setup command:
   hosts:
     %s:
       prepend_cmd: export PATH=$HOME/.local/bin:$PATH`, name, name, host, host, host)

	return errors.New(errors.ErrExec,
		fmt.Sprintf("'%s' not found in PATH on %s", name, host),
		suggestion)
}

