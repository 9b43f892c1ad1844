// Package pty runs ssh and rsync on pseudo-terminals.
//
// A Process streams its terminal output to an ordered list of listeners from a
// single reader goroutine, enforces an optional watchdog timeout, and reports
// exactly one outcome when the child exits.
package pty

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rileyhilliard/sshwrap/internal/errors"
	"github.com/rileyhilliard/sshwrap/internal/logger"
)

// drainGrace bounds how long output is still read after the child exits.
// Backgrounded descendants can keep the terminal open indefinitely.
const drainGrace = 200 * time.Millisecond

// Listener receives normalized output chunks in arrival order.
// Listeners run on the reader goroutine and must not block.
type Listener func(p *Process, chunk string)

// Spec describes a child to run.
type Spec struct {
	Command string
	Args    []string
	Env     []string

	// Timeout arms a watchdog when positive.
	Timeout time.Duration
	// OnTimeout runs before the child is killed by the watchdog.
	OnTimeout func(p *Process)

	// AcceptableExitCodes marks non-zero codes as retryable.
	AcceptableExitCodes []int

	Listeners []Listener
}

// String renders the command line for logs and errors.
func (s Spec) String() string {
	if len(s.Args) == 0 {
		return s.Command
	}
	return s.Command + " " + strings.Join(s.Args, " ")
}

// Runner starts processes through a Starter.
type Runner struct {
	Starter Starter
	Log     logger.Logger
	Verbose logger.Logger
}

// NewRunner returns a Runner spawning real pseudo-terminals.
func NewRunner() *Runner {
	return &Runner{
		Starter: DefaultStarter{},
		Log:     logger.Debugger("pty"),
		Verbose: logger.Verbose("pty"),
	}
}

// Run starts spec and waits for its outcome.
func (r *Runner) Run(ctx context.Context, spec Spec) error {
	p, err := r.Start(ctx, spec)
	if err != nil {
		return err
	}
	return p.Wait()
}

// Start spawns spec and returns the running Process.
func (r *Runner) Start(ctx context.Context, spec Spec) (*Process, error) {
	log := r.Log
	if log == nil {
		log = logger.Noop()
	}
	starter := r.Starter
	if starter == nil {
		starter = DefaultStarter{}
	}

	log.Debug("spawn %s", spec)
	child, err := starter.Start(ctx, spec.Command, spec.Args, spec.Env)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Failed to start %s", spec.Command),
			fmt.Sprintf("Check that %s is installed and on your PATH.", spec.Command))
	}

	listeners := make([]Listener, 0, len(spec.Listeners)+1)
	if r.Verbose != nil {
		v := r.Verbose
		listeners = append(listeners, func(_ *Process, chunk string) { v.Debug("%s", chunk) })
	}
	listeners = append(listeners, spec.Listeners...)

	pctx, cancel := context.WithCancel(ctx)
	p := &Process{
		spec:       spec,
		child:      child,
		log:        log,
		listeners:  listeners,
		ctx:        pctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		readerDone: make(chan struct{}),
		exitCode:   -1,
	}

	if spec.Timeout > 0 {
		p.watchdog = time.AfterFunc(spec.Timeout, p.expire)
	}

	go p.read()
	go p.wait()
	go p.watchContext(ctx)

	return p, nil
}

// Process is a running child. It exits exactly once and is never reused.
type Process struct {
	spec      Spec
	child     Child
	log       logger.Logger
	listeners []Listener

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex

	mu       sync.Mutex
	failure  error
	err      error
	exitCode int

	watchdog   *time.Timer
	done       chan struct{}
	readerDone chan struct{}
}

// Write sends raw input to the child's terminal.
func (p *Process) Write(b []byte) (int, error) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.child.Write(b)
}

// WriteString sends s to the child's terminal.
func (p *Process) WriteString(s string) error {
	_, err := p.Write([]byte(s))
	return err
}

// Fail terminates the child with err as its outcome. The first failure wins;
// later calls are ignored.
func (p *Process) Fail(err error) {
	p.mu.Lock()
	if p.failure != nil {
		p.mu.Unlock()
		return
	}
	p.failure = err
	p.mu.Unlock()

	p.log.Debug("fail %s: %v", p.spec.Command, err)
	if kerr := p.child.Kill(); kerr != nil {
		p.log.Debug("kill %s: %v", p.spec.Command, kerr)
	}
}

// Done returns a channel closed once the outcome is known.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Context is canceled when the process exits.
func (p *Process) Context() context.Context {
	return p.ctx
}

// Wait blocks until the process exits and returns its outcome.
func (p *Process) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// ExitCode returns the child's exit code, or -1 while running or when killed
// by a signal.
func (p *Process) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// Spec returns the spec the process was started with.
func (p *Process) Spec() Spec {
	return p.spec
}

func (p *Process) expire() {
	if p.spec.OnTimeout != nil {
		p.spec.OnTimeout(p)
	}
	p.Fail(errors.NewTimeoutError(p.spec.Timeout))
}

func (p *Process) watchContext(ctx context.Context) {
	select {
	case <-ctx.Done():
		p.Fail(ctx.Err())
	case <-p.done:
	}
}

func (p *Process) read() {
	defer close(p.readerDone)

	buf := make([]byte, 32*1024)
	var carry []byte
	for {
		n, err := p.child.Read(buf)
		if n > 0 {
			var chunk string
			chunk, carry = splitChunk(append(carry, buf[:n]...))
			p.dispatch(chunk)
		}
		if err != nil {
			break
		}
	}
	if len(carry) > 0 {
		p.dispatch(string(carry))
	}
}

// splitChunk normalizes CRLF in data and returns it with the bytes to hold
// for the next read: a trailing CR, so a CRLF split across reads still
// normalizes, or an incomplete trailing UTF-8 sequence.
func splitChunk(data []byte) (string, []byte) {
	keep := len(data)
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if utf8.RuneStart(data[i]) {
			if !utf8.FullRune(data[i:]) {
				keep = i
			}
			break
		}
	}
	if keep == len(data) && keep > 0 && data[keep-1] == '\r' {
		keep--
	}

	var carry []byte
	if keep < len(data) {
		carry = append([]byte(nil), data[keep:]...)
	}
	return strings.ReplaceAll(string(data[:keep]), "\r\n", "\n"), carry
}

func (p *Process) dispatch(chunk string) {
	if chunk == "" {
		return
	}
	for _, l := range p.listeners {
		l(p, chunk)
	}
}

func (p *Process) wait() {
	code, signal, werr := p.child.Wait()

	select {
	case <-p.readerDone:
	case <-time.After(drainGrace):
	}
	if err := p.child.Close(); err != nil {
		p.log.Debug("close pty %s: %v", p.spec.Command, err)
	}
	<-p.readerDone

	if p.watchdog != nil {
		p.watchdog.Stop()
	}

	p.mu.Lock()
	p.exitCode = code
	p.err = p.outcome(code, signal, werr)
	p.mu.Unlock()

	p.log.Debug("exit %s: code=%d signal=%d err=%v", p.spec.Command, code, signal, p.err)
	p.cancel()
	close(p.done)
}

// outcome must be called with p.mu held.
func (p *Process) outcome(code, signal int, werr error) error {
	if p.failure != nil {
		return p.failure
	}
	if werr != nil {
		return errors.WrapWithCode(werr, errors.ErrExec,
			fmt.Sprintf("Failed waiting for %s", p.spec.Command), "")
	}
	if signal > 0 {
		return errors.NewSignalError(signal)
	}
	if code == 0 {
		return nil
	}
	return errors.NewExitCodeError(code, slices.Contains(p.spec.AcceptableExitCodes, code))
}
