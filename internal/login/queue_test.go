package login

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/rileyhilliard/sshwrap/internal/logger"
	"github.com/rileyhilliard/sshwrap/internal/pty"
	ptytesting "github.com/rileyhilliard/sshwrap/internal/pty/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue(
		Expectation{Pattern: regexp.MustCompile(`a`), Response: "1"},
		Expectation{Pattern: regexp.MustCompile(`b`), Response: "2", Repeat: 2},
	)
	require.Equal(t, 2, q.Len())

	head, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, "1", head.Response)
	assert.Equal(t, 1, head.Repeat, "repeat below one defaults to one")

	q.Consume()
	head, _ = q.Peek()
	assert.Equal(t, "2", head.Response)

	q.Consume()
	assert.Equal(t, 1, q.Len(), "entry with repeats left stays at the head")
	q.Consume()
	assert.Equal(t, 0, q.Len())

	_, ok = q.Peek()
	assert.False(t, ok)
	q.Consume()
}

func TestQueue_OnlyHeadMatches(t *testing.T) {
	q := NewQueue(
		Expectation{Pattern: regexp.MustCompile(`first`), Response: "1"},
		Expectation{Pattern: regexp.MustCompile(`second`), Response: "2"},
	)

	_, ok := q.match("second")
	assert.False(t, ok, "no lookahead past the head")

	resp, ok := q.match("first")
	require.True(t, ok)
	assert.Equal(t, "1", resp)

	resp, ok = q.match("second")
	require.True(t, ok)
	assert.Equal(t, "2", resp)
}

func TestQueueListener_Conversation(t *testing.T) {
	starter := ptytesting.NewFakeStarter(func(ptytesting.Call) *ptytesting.Script {
		return ptytesting.NewScript().
			Emit("$ ").
			Await("make install\n").
			Emit("Proceed? ").
			Await("y\n").
			Emit("Proceed? ").
			Await("y\n").
			Emit("$ ").
			Await("exit\n")
	})
	r := &pty.Runner{Starter: starter, Log: logger.Noop()}

	prompt := regexp.MustCompile(`\$ $`)
	q := NewQueue(
		Expectation{Pattern: prompt, Response: "make install\n"},
		Expectation{Pattern: regexp.MustCompile(`Proceed\?`), Response: "y\n", Repeat: 2},
		Expectation{Pattern: prompt, Response: "exit\n"},
	)

	err := r.Run(context.Background(), pty.Spec{
		Command:   "ssh",
		Timeout:   5 * time.Second,
		Listeners: []pty.Listener{QueueListener(q, nil)},
	})

	require.NoError(t, err)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, "make install\ny\ny\nexit\n", starter.Children()[0].Input())
}
