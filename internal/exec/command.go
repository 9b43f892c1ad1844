package exec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rileyhilliard/sshwrap/internal/util"
)

// CommandOptions describe how a remote command line is wrapped.
type CommandOptions struct {
	RCFile     string
	PrependCmd string
	Env        map[string]string
	Dir        string
}

// BuildRemoteCommand wraps cmd as
//
//	source <rc>; export K='v'; <prepend> && cd <dir> && <cmd>
//
// leaving out every part that is not configured.
func BuildRemoteCommand(cmd string, o CommandOptions) string {
	var parts []string
	if o.PrependCmd != "" {
		parts = append(parts, o.PrependCmd)
	}
	if o.Dir != "" {
		parts = append(parts, "cd "+util.ShellQuotePreserveTilde(o.Dir))
	}
	parts = append(parts, cmd)
	full := strings.Join(parts, " && ")

	full = buildEnvPrefix(o.Env) + full
	if o.RCFile != "" {
		full = "source " + util.ShellQuotePreserveTilde(o.RCFile) + "; " + full
	}
	return full
}

// buildEnvPrefix exports env in key order so command lines are stable.
func buildEnvPrefix(env map[string]string) string {
	if len(env) == 0 {
		return ""
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "export %s=%s; ", k, util.ShellQuote(env[k]))
	}
	return b.String()
}
