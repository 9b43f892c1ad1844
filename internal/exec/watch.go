package exec

import (
	"context"
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rileyhilliard/sshwrap/internal/errors"
	goretry "github.com/sethvargo/go-retry"
)

// DefaultWatchDelay is the pause between polls.
const DefaultWatchDelay = 3 * time.Second

// WatchOptions control Watch polling.
type WatchOptions struct {
	Delay time.Duration
	// MaxRetry bounds the number of re-runs; zero polls until ctx is done.
	MaxRetry int
	Exec     Options
}

// Watch re-runs cmd until its output matches until, and returns the exit
// code of the matching run.
func (e *Executor) Watch(ctx context.Context, cmd string, until *regexp.Regexp, opts WatchOptions) (int, error) {
	if until == nil {
		return -1, errors.New(errors.ErrConfig,
			"No watch condition given",
			"Pass --until with a regular expression to wait for.")
	}

	delay := opts.Delay
	if delay <= 0 {
		delay = DefaultWatchDelay
	}
	backoff := goretry.NewConstant(delay)
	if opts.MaxRetry > 0 {
		backoff = goretry.WithMaxRetries(uint64(opts.MaxRetry), backoff)
	}

	var (
		code  int
		polls int
	)
	errNotYet := fmt.Errorf("output did not match %s", until)
	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		polls++
		lines, c, err := e.ExecAndGetOutput(ctx, cmd, opts.Exec)
		code = c
		// Fatal session failures end the watch; a failing command is polled again.
		if err != nil {
			if _, ok := errors.ExitCodeOf(err); !ok {
				return err
			}
		}
		if until.MatchString(strings.Join(lines, "\n")) {
			return nil
		}
		e.log.Debug("watch poll %d: %v", polls, errNotYet)
		return goretry.RetryableError(errNotYet)
	})
	if stderrors.Is(err, errNotYet) {
		return code, errors.New(errors.ErrExec,
			fmt.Sprintf("%q never printed a match for %s after %d run(s)", cmd, until, polls),
			"Increase --max-retry or --delay, or check the pattern.")
	}
	return code, err
}
