package host

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rileyhilliard/sshwrap/internal/errors"
	"github.com/rileyhilliard/sshwrap/internal/logger"
	"github.com/rileyhilliard/sshwrap/internal/login"
	"github.com/rileyhilliard/sshwrap/internal/pty"
	"github.com/rileyhilliard/sshwrap/internal/util"
)

// State is the lifecycle position of a master connection.
type State int

const (
	StateNoSession State = iota
	StateProbing
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateProbing:
		return "probing"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "no session"
	}
}

// Session owns the master connection for one Descriptor. Probe, connect and
// disconnect are serialized; different Sessions never block each other.
type Session struct {
	desc   Descriptor
	runner *pty.Runner
	log    logger.Logger
	audit  logger.Logger

	// newToken generates the handshake sentinel.
	newToken func() string

	mu     sync.Mutex
	master *pty.Process

	stateMu      sync.Mutex
	state        State
	rsyncVersion string
}

// Option configures a Session.
type Option func(*Session)

// WithRunner spawns processes through r.
func WithRunner(r *pty.Runner) Option {
	return func(s *Session) { s.runner = r }
}

// WithLogger sets the debug logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithAudit sets the sink receiving credential entry markers.
func WithAudit(l logger.Logger) Option {
	return func(s *Session) { s.audit = l }
}

// NewSession sanitizes d and returns its Session.
func NewSession(d Descriptor, opts ...Option) (*Session, error) {
	d, err := Sanitize(d)
	if err != nil {
		return nil, err
	}
	s := &Session{
		desc:     d,
		runner:   pty.NewRunner(),
		log:      logger.Debugger("host"),
		audit:    logger.Audit(),
		newToken: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Descriptor returns the sanitized descriptor.
func (s *Session) Descriptor() Descriptor {
	return s.desc
}

// Runner returns the process runner shared by all operations on the host.
func (s *Session) Runner() *pty.Runner {
	return s.runner
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

// CachedRsyncVersion returns the local rsync version probed earlier, if any.
func (s *Session) CachedRsyncVersion() (string, bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.rsyncVersion, s.rsyncVersion != ""
}

// SetRsyncVersion caches the local rsync version.
func (s *Session) SetRsyncVersion(v string) {
	s.stateMu.Lock()
	s.rsyncVersion = v
	s.stateMu.Unlock()
}

// SSHArgs returns the ssh option vector for the host.
func (s *Session) SSHArgs(withoutDestination bool) []string {
	return s.desc.SSHOptions().Args(withoutDestination)
}

// LoginListener answers login prompts with the descriptor's credentials.
func (s *Session) LoginListener() pty.Listener {
	return login.Listener(s.desc.Credentials(), s.audit)
}

// Exists reports whether a master connection is up. A probe that times out
// or fails counts as no connection.
func (s *Session) Exists(ctx context.Context, timeout time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exists(ctx, timeout)
}

func (s *Session) exists(ctx context.Context, timeout time.Duration) (bool, error) {
	out, err := s.control(ctx, "check", timeout)
	if err != nil {
		var se *errors.SessionError
		if stderrors.As(err, &se) {
			s.log.Debug("no master for %s: %v", s.desc.Host, err)
			return false, nil
		}
		return false, err
	}
	return !NoControlSocket(out), nil
}

// control runs `ssh -O <cmd>` against the master socket.
func (s *Session) control(ctx context.Context, cmd string, timeout time.Duration) (string, error) {
	var out pty.Collector
	args := append(s.SSHArgs(true), "-O", cmd, s.desc.Host)
	err := s.runner.Run(ctx, pty.Spec{
		Command:   "ssh",
		Args:      args,
		Timeout:   timeout,
		Listeners: []pty.Listener{out.Listener()},
	})
	return out.String(), err
}

// Connect makes sure a master connection is up, establishing one when the
// probe finds none. A live master is reused without a new handshake.
func (s *Session) Connect(ctx context.Context, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.State()
	s.setState(StateProbing)

	ok, err := s.exists(ctx, timeout)
	if err != nil {
		s.setState(prev)
		return err
	}
	if ok {
		s.log.Debug("reuse master for %s", s.desc.Host)
		s.setState(StateConnected)
		return nil
	}

	s.dropMaster()
	if err := s.handshake(ctx, timeout); err != nil {
		s.setState(StateDisconnected)
		return errors.Annotate(err, s.desc.ErrorContext(""))
	}
	s.setState(StateConnected)
	return nil
}

// dropMaster kills a stale master shell. mu must be held.
func (s *Session) dropMaster() {
	if s.master == nil {
		return
	}
	s.log.Debug("discard stale master for %s", s.desc.Host)
	s.master.Fail(errors.NewSessionError(errors.KindMasterFailed, false))
	s.master = nil
}

func (s *Session) handshake(ctx context.Context, timeout time.Duration) error {
	ok, failed := s.newToken(), s.newToken()
	established := make(chan struct{})
	var once sync.Once

	spec := pty.Spec{
		Command: pty.Shell(),
		Listeners: []pty.Listener{
			s.LoginListener(),
			func(p *pty.Process, chunk string) {
				if kind, found := ClassifyOutput(chunk); found {
					p.Fail(errors.NewSessionError(kind, false))
				}
			},
			sentinel(ok, func(*pty.Process) { once.Do(func() { close(established) }) }),
			// ssh exited for a reason none of the patterns above recognized.
			sentinel(failed, func(p *pty.Process) {
				p.Fail(errors.NewSessionError(errors.KindMasterFailed, true))
			}),
		},
	}

	// The master shell outlives this call; only the handshake is bounded by ctx.
	p, err := s.runner.Start(context.WithoutCancel(ctx), spec)
	if err != nil {
		return err
	}

	cmd := fmt.Sprintf("ssh %s echo %s || echo %s\n",
		util.ShellJoin(s.SSHArgs(false)), splitToken(ok), splitToken(failed))
	if err := p.WriteString(cmd); err != nil {
		p.Fail(err)
		return errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Failed to start ssh master for %s", s.desc.Host), "")
	}

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case <-established:
		s.log.Debug("master established for %s", s.desc.Host)
		s.master = p
		return nil
	case <-p.Done():
		if err := p.Wait(); err != nil {
			return err
		}
		return errors.NewSessionError(errors.KindMasterFailed, true)
	case <-expired:
		_ = p.WriteString("\n")
		_ = p.WriteString("exit\n")
		terr := errors.NewTimeoutError(timeout)
		p.Fail(terr)
		<-p.Done()
		return terr
	case <-ctx.Done():
		p.Fail(ctx.Err())
		return ctx.Err()
	}
}

// splitToken quotes a token in two halves so the typed command line never
// contains it verbatim; only the echo output does.
func splitToken(token string) string {
	half := len(token) / 2
	return "'" + token[:half] + "''" + token[half:] + "'"
}

// sentinel calls hit once token appears in the output, even when it is split
// across chunks.
func sentinel(token string, hit func(p *pty.Process)) pty.Listener {
	var tail string
	seen := false
	return func(p *pty.Process, chunk string) {
		if seen {
			return
		}
		buf := tail + chunk
		if strings.Contains(buf, token) {
			seen = true
			hit(p)
			return
		}
		if len(buf) > len(token) {
			buf = buf[len(buf)-len(token):]
		}
		tail = buf
	}
}

// Disconnect tears down the master connection. It is a no-op when none
// exists, and safe to call repeatedly.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.master == nil {
		ok, err := s.exists(ctx, 0)
		if err != nil {
			return err
		}
		if !ok {
			s.log.Debug("no master to disconnect for %s", s.desc.Host)
			return nil
		}
	}

	out, err := s.control(ctx, "exit", 0)
	if err != nil && !alreadyGone(err, out) {
		return errors.Annotate(err, s.desc.ErrorContext("ssh -O exit"))
	}

	if s.master != nil {
		if werr := s.master.WriteString("exit\n"); werr != nil {
			s.log.Debug("write exit to master shell: %v", werr)
		}
		s.master = nil
	}
	s.setState(StateDisconnected)
	return nil
}

// alreadyGone reports whether an `ssh -O exit` failure means the master was
// not running.
func alreadyGone(err error, output string) bool {
	if code, ok := errors.ExitCodeOf(err); ok && code == 255 {
		return true
	}
	return NoControlSocket(output)
}
