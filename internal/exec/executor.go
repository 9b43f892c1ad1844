// Package exec runs commands on a remote host over its multiplexed master
// connection.
package exec

import (
	"context"
	stderrors "errors"
	"io"
	"time"

	"github.com/rileyhilliard/sshwrap/internal/errors"
	"github.com/rileyhilliard/sshwrap/internal/host"
	"github.com/rileyhilliard/sshwrap/internal/logger"
	"github.com/rileyhilliard/sshwrap/internal/pty"
	"github.com/rileyhilliard/sshwrap/internal/retry"
)

// tailSize bounds the output kept to classify ssh failures.
const tailSize = 4096

// Options tune a single remote command.
type Options struct {
	Timeout time.Duration
	// Output receives the streamed terminal output.
	Output io.Writer

	// RCFile and PrependCmd override the descriptor's values when set.
	RCFile     string
	PrependCmd string

	Env map[string]string
	Dir string
}

// Executor runs commands through one host Session.
type Executor struct {
	session *host.Session
	log     logger.Logger
}

// New returns an Executor for s.
func New(s *host.Session) *Executor {
	return &Executor{session: s, log: logger.Debugger("exec")}
}

// WithLogger replaces the debug logger.
func (e *Executor) WithLogger(l logger.Logger) *Executor {
	e.log = l
	return e
}

// Session returns the host session commands run through.
func (e *Executor) Session() *host.Session {
	return e.session
}

// Exec runs cmd on the remote host and returns its exit code. Codes 126 and
// 127 come back with a nil error so callers can probe for commands; any other
// non-zero code is returned together with a NonZeroExit error.
func (e *Executor) Exec(ctx context.Context, cmd string, opts Options) (int, error) {
	var extra []pty.Listener
	if opts.Output != nil {
		extra = append(extra, pty.Tee(opts.Output))
	}
	return e.run(ctx, cmd, opts, func() []pty.Listener { return extra })
}

// ExecAndGetOutput runs cmd and returns its output lines along with the exit
// code. Output of failed attempts that were retried is discarded.
func (e *Executor) ExecAndGetOutput(ctx context.Context, cmd string, opts Options) ([]string, int, error) {
	var out *pty.Collector
	code, err := e.run(ctx, cmd, opts, func() []pty.Listener {
		out = &pty.Collector{}
		ls := []pty.Listener{out.Listener()}
		if opts.Output != nil {
			ls = append(ls, pty.Tee(opts.Output))
		}
		return ls
	})
	var lines []string
	if out != nil {
		lines = out.Lines()
	}
	return lines, code, err
}

// run executes cmd with retry. listeners is called once per attempt.
func (e *Executor) run(ctx context.Context, cmd string, opts Options, listeners func() []pty.Listener) (int, error) {
	d := e.session.Descriptor()
	remote := BuildRemoteCommand(cmd, CommandOptions{
		RCFile:     firstNonEmpty(opts.RCFile, d.RCFile),
		PrependCmd: firstNonEmpty(opts.PrependCmd, d.PrependCmd),
		Env:        opts.Env,
		Dir:        opts.Dir,
	})
	args := append(e.session.SSHArgs(false), remote)

	e.log.Debug("exec %q on %s", remote, d.Host)
	code, err := e.withRetry(ctx, func(ctx context.Context) (int, error) {
		return e.attempt(ctx, args, opts.Timeout, listeners())
	})
	if err != nil {
		return exitCode(err), errors.Annotate(err, d.ErrorContext(cmd))
	}
	return code, nil
}

func (e *Executor) withRetry(ctx context.Context, work func(ctx context.Context) (int, error)) (int, error) {
	policy := e.session.Descriptor().RetryPolicy()
	policy.Log = e.log
	return retry.Do(ctx, policy, e.session.Disconnect, work)
}

// attempt connects and runs one ssh invocation.
func (e *Executor) attempt(ctx context.Context, args []string, timeout time.Duration, listeners []pty.Listener) (int, error) {
	if err := e.session.Connect(ctx, timeout); err != nil {
		return -1, err
	}

	tail := pty.NewTail(tailSize)
	spec := pty.Spec{
		Command:   "ssh",
		Args:      args,
		Timeout:   timeout,
		Listeners: append([]pty.Listener{e.session.LoginListener(), tail.Listener()}, listeners...),
	}
	err := e.session.Runner().Run(ctx, spec)
	return Classify(err, tail.String())
}

// Classify turns the outcome of an ssh run into an exit code and error.
func Classify(err error, output string) (int, error) {
	if err == nil {
		return 0, nil
	}
	code, ok := errors.ExitCodeOf(err)
	if !ok {
		return -1, err
	}
	switch code {
	case 126, 127:
		return code, nil
	case 255:
		if kind, fatal := host.ClassifyOutput(output); fatal {
			se := errors.NewSessionError(kind, false)
			se.ExitCode = code
			return code, se
		}
		// ssh itself failed for an unknown reason, most often a torn-down
		// control socket.
		var se *errors.SessionError
		if stderrors.As(err, &se) {
			se.Retryable = true
		}
	}
	return code, err
}

// exitCode extracts the remote exit code carried by err, or -1.
func exitCode(err error) int {
	var se *errors.SessionError
	if stderrors.As(err, &se) && se.ExitCode != 0 {
		return se.ExitCode
	}
	return -1
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
