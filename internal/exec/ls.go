package exec

import (
	"context"
	"strings"
	"time"

	"github.com/rileyhilliard/sshwrap/internal/errors"
	"github.com/rileyhilliard/sshwrap/internal/util"
)

// Ls lists target on the remote host. On a non-zero ls exit the entries are
// nil and the code is returned so callers can tell "missing" from "empty".
func (e *Executor) Ls(ctx context.Context, target string, lsOpt []string, timeout time.Duration) ([]string, int, error) {
	cmd := BuildLsCommand(target, lsOpt)
	lines, code, err := e.ExecAndGetOutput(ctx, cmd, Options{Timeout: timeout})
	if err != nil {
		// Only a plain non-zero ls exit is reported as a code.
		if c, ok := errors.ExitCodeOf(err); !ok || c == 255 {
			return nil, code, err
		}
	}
	if code != 0 {
		return nil, code, nil
	}
	return util.CompactStrings(lines), 0, nil
}

// BuildLsCommand returns the ls command line for target.
func BuildLsCommand(target string, lsOpt []string) string {
	parts := []string{"ls"}
	for _, o := range util.CompactStrings(lsOpt) {
		parts = append(parts, util.QuoteIfNeeded(o))
	}
	if target != "" {
		parts = append(parts, util.ShellQuotePreserveTilde(target))
	}
	return strings.Join(parts, " ")
}
