package login

import (
	"regexp"
	"sync"

	"github.com/rileyhilliard/sshwrap/internal/logger"
	"github.com/rileyhilliard/sshwrap/internal/pty"
)

// Expectation pairs an output pattern with the input sent when it appears.
// Repeat is how many times the pair is used; values below 1 mean once.
type Expectation struct {
	Pattern  *regexp.Regexp
	Response string
	Repeat   int
}

// Queue is a FIFO of expectations. Only the head is ever tested.
type Queue struct {
	mu    sync.Mutex
	items []Expectation
}

// NewQueue returns a queue holding items in order.
func NewQueue(items ...Expectation) *Queue {
	q := &Queue{}
	for _, it := range items {
		q.Push(it)
	}
	return q
}

// Push appends an expectation.
func (q *Queue) Push(e Expectation) {
	if e.Repeat < 1 {
		e.Repeat = 1
	}
	q.mu.Lock()
	q.items = append(q.items, e)
	q.mu.Unlock()
}

// Peek returns the head without consuming it.
func (q *Queue) Peek() (Expectation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Expectation{}, false
	}
	return q.items[0], true
}

// Consume uses one repeat of the head, dropping it when exhausted.
func (q *Queue) Consume() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.consumeLocked()
}

func (q *Queue) consumeLocked() {
	if len(q.items) == 0 {
		return
	}
	q.items[0].Repeat--
	if q.items[0].Repeat <= 0 {
		q.items = q.items[1:]
	}
}

// Len returns the number of pending expectations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// match consumes the head if it matches chunk and returns its response.
func (q *Queue) match(chunk string) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 || !q.items[0].Pattern.MatchString(chunk) {
		return "", false
	}
	resp := q.items[0].Response
	q.consumeLocked()
	return resp, true
}

// QueueListener tests the queue head against every chunk and sends the
// response on a match. At most one expectation is consumed per chunk.
func QueueListener(q *Queue, log logger.Logger) pty.Listener {
	if log == nil {
		log = logger.Noop()
	}
	return func(p *pty.Process, chunk string) {
		resp, ok := q.match(chunk)
		if !ok {
			return
		}
		log.Debug("expectation matched, %d left", q.Len())
		if err := p.WriteString(resp); err != nil {
			log.Debug("send response: %v", err)
		}
	}
}
