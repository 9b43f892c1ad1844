// Package sync moves files to and from a remote host by running rsync over
// the host's multiplexed master connection.
package sync

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rileyhilliard/sshwrap/internal/errors"
	"github.com/rileyhilliard/sshwrap/internal/exec"
	"github.com/rileyhilliard/sshwrap/internal/host"
	"github.com/rileyhilliard/sshwrap/internal/logger"
	"github.com/rileyhilliard/sshwrap/internal/pty"
	"github.com/rileyhilliard/sshwrap/internal/retry"
	"github.com/rileyhilliard/sshwrap/internal/util"
)

// tailSize bounds the rsync output kept for error messages and stats.
const tailSize = 8192

// RetryableExitCodes are rsync exits worth another attempt: socket and
// protocol stream errors, partial transfers, vanished files, timeouts and
// ssh failures.
var RetryableExitCodes = []int{10, 12, 23, 24, 30, 35, 255}

// baseArgs are passed to every transfer.
var baseArgs = []string{"-avv", "--copy-unsafe-links"}

// Options tune a single transfer.
type Options struct {
	Timeout time.Duration
	// RsyncOpt is appended after the built-in flags, e.g. --exclude=*.o.
	RsyncOpt []string
	// Output receives rsync's streamed terminal output.
	Output io.Writer
}

// Result describes a finished transfer.
type Result struct {
	// NothingToSend is set when the local sources matched no files and
	// rsync was never started.
	NothingToSend bool
	Sources       []string
	Stats         Stats
}

// Syncer runs rsync through one host Session.
type Syncer struct {
	session *host.Session
	exec    *exec.Executor
	log     logger.Logger
	rsync   string
}

// New returns a Syncer for s. The remote directory for sends is created
// through an Executor sharing the same session.
func New(s *host.Session) *Syncer {
	return &Syncer{
		session: s,
		exec:    exec.New(s),
		log:     logger.Debugger("sync"),
		rsync:   "rsync",
	}
}

// WithLogger replaces the debug logger.
func (s *Syncer) WithLogger(l logger.Logger) *Syncer {
	s.log = l
	s.exec.WithLogger(l)
	return s
}

// WithRsync sets the rsync binary, which defaults to "rsync" on PATH.
func (s *Syncer) WithRsync(bin string) *Syncer {
	if bin != "" {
		s.rsync = bin
	}
	return s
}

// Send copies local sources to dst on the remote host. Sources are expanded
// as globs locally; when nothing matches rsync is not run and the result has
// NothingToSend set. The remote parent of dst is created first.
func (s *Syncer) Send(ctx context.Context, src []string, dst string, opts Options) (Result, error) {
	d := s.session.Descriptor()
	if err := s.session.Connect(ctx, opts.Timeout); err != nil {
		return Result{}, err
	}

	sources := ExpandSources(src)
	if len(sources) == 0 {
		s.log.Debug("no local file matched %v", src)
		return Result{NothingToSend: true}, nil
	}

	if dir := RemoteDir(dst); dir != "" {
		if err := s.ensureRemoteDir(ctx, dir, opts.Timeout); err != nil {
			return Result{Sources: sources}, err
		}
	}

	args := BuildSendArgs(s.session.SSHArgs(true), d.SSHOptions().Destination(), sources, dst, opts.RsyncOpt)
	s.log.Debug("send %v to %s:%s", sources, d.Host, dst)
	stats, err := s.run(ctx, args, opts, describe("send", sources, dst))
	return Result{Sources: sources, Stats: stats}, err
}

// Recv copies remote sources into the local dst. Remote globs are expanded
// by the remote shell.
func (s *Syncer) Recv(ctx context.Context, src []string, dst string, opts Options) (Result, error) {
	d := s.session.Descriptor()
	if err := s.session.Connect(ctx, opts.Timeout); err != nil {
		return Result{}, err
	}

	oldArgs := false
	if v, err := s.LocalVersion(ctx); err != nil {
		s.log.Debug("rsync version unknown, not adding --old-args: %v", err)
	} else {
		oldArgs = v.NeedsOldArgs()
	}

	args := BuildRecvArgs(s.session.SSHArgs(true), d.SSHOptions().Destination(), src, dst, opts.RsyncOpt, oldArgs)
	s.log.Debug("recv %s:%v to %s", d.Host, src, dst)
	stats, err := s.run(ctx, args, opts, describe("recv", src, dst))
	return Result{Sources: src, Stats: stats}, err
}

// run executes rsync with retry.
func (s *Syncer) run(ctx context.Context, args []string, opts Options, what string) (Stats, error) {
	d := s.session.Descriptor()
	policy := d.RetryPolicy()
	policy.Log = s.log

	var tail *pty.Tail
	_, err := retry.Do(ctx, policy, s.session.Disconnect, func(ctx context.Context) (struct{}, error) {
		if err := s.session.Connect(ctx, opts.Timeout); err != nil {
			return struct{}{}, err
		}
		tail = pty.NewTail(tailSize)
		ls := []pty.Listener{s.session.LoginListener(), tail.Listener()}
		if opts.Output != nil {
			ls = append(ls, pty.Tee(opts.Output))
		}
		err := s.session.Runner().Run(ctx, pty.Spec{
			Command:             s.rsync,
			Args:                args,
			Timeout:             opts.Timeout,
			AcceptableExitCodes: RetryableExitCodes,
			Listeners:           ls,
		})
		return struct{}{}, classify(err, tail.String())
	})

	var output string
	if tail != nil {
		output = tail.String()
	}
	if err != nil {
		err = errors.Annotate(err, d.ErrorContext(what))
		return Stats{}, handleRsyncError(err, d.Host, output)
	}
	stats, _ := ParseStats(output)
	return stats, nil
}

// classify turns an rsync exit 255 caused by a recognized ssh failure into that
// fatal kind.
func classify(err error, output string) error {
	if code, ok := errors.ExitCodeOf(err); ok && code == 255 {
		if kind, fatal := host.ClassifyOutput(output); fatal {
			se := errors.NewSessionError(kind, false)
			se.ExitCode = code
			return se
		}
	}
	return err
}

// BuildSendArgs constructs the rsync arguments for a send. Exported for
// testing command construction without running rsync.
func BuildSendArgs(sshArgs []string, remote string, sources []string, dst string, rsyncOpt []string) []string {
	args := append([]string(nil), baseArgs...)
	args = append(args, "-e", remoteShell(sshArgs))
	args = append(args, util.CompactStrings(rsyncOpt)...)
	args = append(args, sources...)
	return append(args, remote+":"+dst)
}

// BuildRecvArgs constructs the rsync arguments for a recv. All remote sources
// travel in one argument separated by spaces, which rsync 3.2.4 and later only
// split with --old-args.
func BuildRecvArgs(sshArgs []string, remote string, sources []string, dst string, rsyncOpt []string, oldArgs bool) []string {
	var args []string
	if oldArgs {
		args = append(args, "--old-args")
	}
	args = append(args, baseArgs...)
	args = append(args, "-e", remoteShell(sshArgs))
	args = append(args, util.CompactStrings(rsyncOpt)...)
	return append(args, remote+":"+strings.Join(sources, " "), dst)
}

func remoteShell(sshArgs []string) string {
	return "ssh " + util.ShellJoin(sshArgs)
}

// ExpandSources expands each pattern as a local glob, with ** and {a,b}
// support. A trailing slash, which tells rsync to copy a directory's contents,
// is kept on every match. Invalid patterns and patterns matching nothing are
// dropped.
func ExpandSources(patterns []string) []string {
	var out []string
	for _, p := range patterns {
		matches, err := doublestar.FilepathGlob(p)
		if err != nil {
			continue
		}
		for _, m := range matches {
			if strings.HasSuffix(p, "/") && !strings.HasSuffix(m, "/") {
				m += "/"
			}
			out = append(out, m)
		}
	}
	return out
}

// RemoteDir returns the remote directory that must exist before sending to
// dst, or "" when there is nothing to create.
func RemoteDir(dst string) string {
	dir := dst
	if !strings.HasSuffix(dst, "/") {
		dir = path.Dir(dst)
	}
	switch dir {
	case "", ".", "/":
		return ""
	}
	return dir
}

// ensureRemoteDir creates dir on the remote host.
// rsync requires the target directory (or at least its parent) to exist.
func (s *Syncer) ensureRemoteDir(ctx context.Context, dir string, timeout time.Duration) error {
	// Use single quotes around all but leading ~ so tilde expands but spaces are safe
	// e.g. ~/out/logs -> mkdir -p ~/'out/logs'
	lines, code, err := s.exec.ExecAndGetOutput(ctx, "mkdir -p "+util.ShellQuotePreserveTilde(dir), execOptions(timeout))
	if _, nonZero := errors.ExitCodeOf(err); err != nil && !nonZero {
		return err
	}
	if code != 0 {
		return errors.New(errors.ErrSync,
			fmt.Sprintf("Couldn't create remote directory %s", dir),
			fmt.Sprintf("Remote error: %s", strings.TrimSpace(strings.Join(lines, "\n"))))
	}
	return nil
}

func execOptions(timeout time.Duration) exec.Options {
	return exec.Options{Timeout: timeout}
}

func describe(op string, src []string, dst string) string {
	return fmt.Sprintf("rsync %s %s -> %s", op, strings.Join(src, " "), dst)
}
