// Package client is the library entry point: one Client per remote host,
// running commands and transfers over that host's shared master connection.
package client

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rileyhilliard/sshwrap/internal/errors"
	"github.com/rileyhilliard/sshwrap/internal/exec"
	"github.com/rileyhilliard/sshwrap/internal/host"
	"github.com/rileyhilliard/sshwrap/internal/logger"
	"github.com/rileyhilliard/sshwrap/internal/sync"
)

// Client talks to one remote host.
type Client struct {
	session *host.Session
	exec    *exec.Executor
	sync    *sync.Syncer
	log     logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger replaces the debug logger of the client and its executors.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.log = l
		c.exec.WithLogger(l)
		c.sync.WithLogger(l)
	}
}

// WithRsync sets the local rsync binary.
func WithRsync(bin string) Option {
	return func(c *Client) {
		c.sync.WithRsync(bin)
	}
}

// New creates a Client with a session of its own.
func New(d host.Descriptor, sessionOpts []host.Option, opts ...Option) (*Client, error) {
	s, err := host.NewSession(d, sessionOpts...)
	if err != nil {
		return nil, err
	}
	return ForSession(s, opts...), nil
}

// FromRegistry creates a Client sharing the registry's session for d.
func FromRegistry(r *host.Registry, d host.Descriptor, opts ...Option) (*Client, error) {
	s, err := r.Session(d)
	if err != nil {
		return nil, err
	}
	return ForSession(s, opts...), nil
}

// ForSession wraps an existing session.
func ForSession(s *host.Session, opts ...Option) *Client {
	c := &Client{
		session: s,
		exec:    exec.New(s),
		sync:    sync.New(s),
		log:     logger.Debugger("client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the underlying host session.
func (c *Client) Session() *host.Session {
	return c.session
}

// Exec runs cmd and returns its exit code.
func (c *Client) Exec(ctx context.Context, cmd string, opts exec.Options) (int, error) {
	if err := requireCommand(cmd); err != nil {
		return -1, err
	}
	c.log.Debug("exec called %q", cmd)
	return c.exec.Exec(ctx, cmd, opts)
}

// ExecAndGetOutput runs cmd and returns its output lines and exit code.
func (c *Client) ExecAndGetOutput(ctx context.Context, cmd string, opts exec.Options) ([]string, int, error) {
	if err := requireCommand(cmd); err != nil {
		return nil, -1, err
	}
	return c.exec.ExecAndGetOutput(ctx, cmd, opts)
}

// Ls lists target on the remote host.
func (c *Client) Ls(ctx context.Context, target string, lsOpt []string, timeout time.Duration) ([]string, int, error) {
	return c.exec.Ls(ctx, target, lsOpt, timeout)
}

// Expect runs cmd in an interactive shell and answers its prompts with steps.
func (c *Client) Expect(ctx context.Context, cmd string, steps []exec.Step, opts exec.Options) (int, error) {
	if err := requireCommand(cmd); err != nil {
		return -1, err
	}
	return c.exec.Expect(ctx, cmd, steps, opts)
}

// Watch re-runs cmd until its output matches until.
func (c *Client) Watch(ctx context.Context, cmd string, until *regexp.Regexp, opts exec.WatchOptions) (int, error) {
	if err := requireCommand(cmd); err != nil {
		return -1, err
	}
	return c.exec.Watch(ctx, cmd, until, opts)
}

// Send copies local sources to dst on the remote host.
func (c *Client) Send(ctx context.Context, src []string, dst string, opts sync.Options) (sync.Result, error) {
	if err := requireTransfer(src, dst); err != nil {
		return sync.Result{}, err
	}
	return c.sync.Send(ctx, src, dst, opts)
}

// Recv copies remote sources into the local dst.
func (c *Client) Recv(ctx context.Context, src []string, dst string, opts sync.Options) (sync.Result, error) {
	if err := requireTransfer(src, dst); err != nil {
		return sync.Result{}, err
	}
	return c.sync.Recv(ctx, src, dst, opts)
}

// CheckRsync verifies that rsync exists on the remote host.
func (c *Client) CheckRsync(ctx context.Context, timeout time.Duration) error {
	return c.sync.CheckRemote(ctx, timeout)
}

// LocalRsyncVersion returns the local rsync release.
func (c *Client) LocalRsyncVersion(ctx context.Context) (sync.Version, error) {
	return c.sync.LocalVersion(ctx)
}

// CanConnect establishes the master connection and round-trips a random
// token through the remote shell. It reports true only when the token came
// back; failures are returned as errors.
func (c *Client) CanConnect(ctx context.Context, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		return false, errors.New(errors.ErrConfig,
			"timeout must be positive",
			"Pass --timeout with a duration like 10s.")
	}
	token := uuid.NewString()
	lines, _, err := c.exec.ExecAndGetOutput(ctx, "echo "+token, exec.Options{Timeout: timeout})
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.Join(lines, "\n"), token), nil
}

// Disconnect closes the master connection. It is safe to call when none
// exists.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.session.Disconnect(ctx)
}

func requireCommand(cmd string) error {
	if strings.TrimSpace(cmd) == "" {
		return errors.New(errors.ErrConfig,
			"No command given",
			"Pass the command to run, e.g. sshwrap exec 'uptime'.")
	}
	return nil
}

func requireTransfer(src []string, dst string) error {
	if len(src) == 0 {
		return errors.New(errors.ErrConfig,
			"No source given",
			"Pass at least one source path before the destination.")
	}
	if dst == "" {
		return errors.New(errors.ErrConfig,
			"No destination given",
			"Pass the destination path as the last argument.")
	}
	return nil
}
