package pty

import (
	"io"
	"strings"
	"sync"

	"github.com/rileyhilliard/sshwrap/internal/util"
)

// Collector accumulates output for callers that need the whole transcript.
type Collector struct {
	mu sync.Mutex
	b  strings.Builder
}

// Listener returns the listener that appends chunks to the collector.
func (c *Collector) Listener() Listener {
	return func(_ *Process, chunk string) {
		c.mu.Lock()
		c.b.WriteString(chunk)
		c.mu.Unlock()
	}
}

// String returns everything collected so far.
func (c *Collector) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.b.String()
}

// Lines returns the collected output split into lines.
func (c *Collector) Lines() []string {
	return util.SplitLines(c.String())
}

// Tee returns a listener that copies every chunk to w. Write errors are ignored.
func Tee(w io.Writer) Listener {
	return func(_ *Process, chunk string) {
		_, _ = io.WriteString(w, chunk)
	}
}

// Tail keeps only the last bytes of output, enough to classify how a long
// running command failed.
type Tail struct {
	mu    sync.Mutex
	limit int
	buf   string
}

// NewTail keeps at most limit bytes.
func NewTail(limit int) *Tail {
	return &Tail{limit: limit}
}

// Listener returns the listener feeding the tail.
func (t *Tail) Listener() Listener {
	return func(_ *Process, chunk string) {
		t.add(chunk)
	}
}

// Write lets the tail sit behind an io.Writer, such as exec output.
func (t *Tail) Write(b []byte) (int, error) {
	t.add(string(b))
	return len(b), nil
}

func (t *Tail) add(chunk string) {
	t.mu.Lock()
	t.buf += chunk
	if len(t.buf) > t.limit {
		t.buf = t.buf[len(t.buf)-t.limit:]
	}
	t.mu.Unlock()
}

// String returns the retained output.
func (t *Tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf
}
