// Package testing provides a scripted terminal child for exercising code that
// drives ssh and rsync without spawning real processes.
package testing

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rileyhilliard/sshwrap/internal/pty"
)

type stepKind int

const (
	stepEmit stepKind = iota
	stepAwait
)

type step struct {
	kind stepKind
	text string
}

// Script describes what a fake child prints and which input it waits for.
// Steps run in order; the child then exits with the configured code.
type Script struct {
	steps  []step
	code   int
	signal int
	hang   bool
}

// NewScript returns an empty script that exits 0.
func NewScript() *Script {
	return &Script{}
}

// Emit prints text to the terminal.
func (s *Script) Emit(text string) *Script {
	s.steps = append(s.steps, step{kind: stepEmit, text: text})
	return s
}

// Await blocks until input written since the previous Await contains text.
func (s *Script) Await(text string) *Script {
	s.steps = append(s.steps, step{kind: stepAwait, text: text})
	return s
}

// Exit sets the exit code reported once the steps finish.
func (s *Script) Exit(code int) *Script {
	s.code = code
	return s
}

// Signal makes the child report termination by sig.
func (s *Script) Signal(sig int) *Script {
	s.signal = sig
	return s
}

// Hang keeps the child alive after its steps until it is killed.
func (s *Script) Hang() *Script {
	s.hang = true
	return s
}

// Call records one spawn.
type Call struct {
	Name string
	Args []string
	Env  []string
}

// Line returns the call as a single command line.
func (c Call) Line() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// FakeStarter implements pty.Starter with scripted children.
type FakeStarter struct {
	mu       sync.Mutex
	respond  func(Call) *Script
	calls    []Call
	children []*FakeChild
}

// NewFakeStarter creates a starter that asks respond for each spawn's script.
// A nil script behaves like a child that exits 0 without output.
func NewFakeStarter(respond func(Call) *Script) *FakeStarter {
	return &FakeStarter{respond: respond}
}

// Start implements pty.Starter.
func (f *FakeStarter) Start(_ context.Context, name string, args []string, env []string) (pty.Child, error) {
	call := Call{Name: name, Args: append([]string(nil), args...), Env: env}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	respond := f.respond
	f.mu.Unlock()

	var script *Script
	if respond != nil {
		script = respond(call)
	}
	if script == nil {
		script = NewScript()
	}

	child := newFakeChild(call, script)

	f.mu.Lock()
	f.children = append(f.children, child)
	f.mu.Unlock()
	return child, nil
}

// Calls returns every spawn seen so far.
func (f *FakeStarter) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsContaining returns spawns whose command line contains substr.
func (f *FakeStarter) CallsContaining(substr string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if strings.Contains(c.Line(), substr) {
			out = append(out, c)
		}
	}
	return out
}

// Children returns the fake children in spawn order.
func (f *FakeStarter) Children() []*FakeChild {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeChild(nil), f.children...)
}

// FakeChild is a scripted pty.Child.
type FakeChild struct {
	Call Call

	script *Script
	pr     *io.PipeReader
	pw     *io.PipeWriter

	mu      sync.Mutex
	input   strings.Builder
	cursor  int
	changed chan struct{}
	killed  bool
	code    int
	signal  int

	killCh chan struct{}
	exited chan struct{}
	once   sync.Once
}

func newFakeChild(call Call, script *Script) *FakeChild {
	pr, pw := io.Pipe()
	c := &FakeChild{
		Call:    call,
		script:  script,
		pr:      pr,
		pw:      pw,
		changed: make(chan struct{}, 1),
		killCh:  make(chan struct{}),
		exited:  make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *FakeChild) run() {
	for _, st := range c.script.steps {
		switch st.kind {
		case stepEmit:
			if _, err := c.pw.Write([]byte(st.text)); err != nil {
				c.exit(-1, 0)
				return
			}
		case stepAwait:
			if !c.await(st.text) {
				return
			}
		}
	}
	if c.script.hang {
		<-c.killCh
		return
	}
	c.exit(c.script.code, c.script.signal)
}

func (c *FakeChild) await(text string) bool {
	for {
		c.mu.Lock()
		in := c.input.String()[c.cursor:]
		if i := strings.Index(in, text); i >= 0 {
			c.cursor += i + len(text)
			c.mu.Unlock()
			return true
		}
		c.mu.Unlock()

		select {
		case <-c.changed:
		case <-c.killCh:
			return false
		}
	}
}

func (c *FakeChild) exit(code, signal int) {
	c.once.Do(func() {
		c.mu.Lock()
		c.code, c.signal = code, signal
		c.mu.Unlock()
		_ = c.pw.Close()
		close(c.exited)
	})
}

// Read implements pty.Child.
func (c *FakeChild) Read(b []byte) (int, error) {
	return c.pr.Read(b)
}

// Write implements pty.Child; input is recorded for Await and Input.
func (c *FakeChild) Write(b []byte) (int, error) {
	c.mu.Lock()
	c.input.Write(b)
	c.mu.Unlock()
	select {
	case c.changed <- struct{}{}:
	default:
	}
	return len(b), nil
}

// Wait implements pty.Child.
func (c *FakeChild) Wait() (int, int, error) {
	<-c.exited
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code, c.signal, nil
}

// Kill implements pty.Child. A killed child reports SIGKILL.
func (c *FakeChild) Kill() error {
	c.mu.Lock()
	already := c.killed
	c.killed = true
	c.mu.Unlock()
	if !already {
		close(c.killCh)
	}
	c.exit(-1, 9)
	return nil
}

// Close implements pty.Child.
func (c *FakeChild) Close() error {
	return c.pr.Close()
}

// Input returns everything written to the child.
func (c *FakeChild) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input.String()
}

// Killed reports whether the child was killed.
func (c *FakeChild) Killed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.killed
}

// String describes the child for test failure messages.
func (c *FakeChild) String() string {
	return fmt.Sprintf("fake child %q", c.Call.Line())
}
