package pty_test

import (
	"context"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rileyhilliard/sshwrap/internal/errors"
	"github.com/rileyhilliard/sshwrap/internal/logger"
	"github.com/rileyhilliard/sshwrap/internal/pty"
	ptytesting "github.com/rileyhilliard/sshwrap/internal/pty/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeRunner(respond func(ptytesting.Call) *ptytesting.Script) (*pty.Runner, *ptytesting.FakeStarter) {
	starter := ptytesting.NewFakeStarter(respond)
	return &pty.Runner{Starter: starter, Log: logger.Noop()}, starter
}

func script(s *ptytesting.Script) func(ptytesting.Call) *ptytesting.Script {
	return func(ptytesting.Call) *ptytesting.Script { return s }
}

func TestRun_RealEcho(t *testing.T) {
	if _, err := exec.LookPath("echo"); err != nil {
		t.Skip("echo not available")
	}

	var out pty.Collector
	r := pty.NewRunner()
	err := r.Run(context.Background(), pty.Spec{
		Command:   "echo",
		Args:      []string{"hoge"},
		Timeout:   5 * time.Second,
		Listeners: []pty.Listener{out.Listener()},
	})

	require.NoError(t, err)
	assert.Equal(t, "hoge\n", out.String())
}

func TestRun_RealWatchdogKillsChild(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}

	r := pty.NewRunner()
	start := time.Now()
	p, err := r.Start(context.Background(), pty.Spec{
		Command: "sleep",
		Args:    []string{"10"},
		Timeout: 300 * time.Millisecond,
	})
	require.NoError(t, err)

	err = p.Wait()
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, errors.KindTimeoutExpired, errors.KindOf(err))
	assert.True(t, errors.IsRetryable(err))
	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond)
	assert.Less(t, elapsed, 5*time.Second, "child should be killed near the timeout")
}

func TestRun_ExitClassification(t *testing.T) {
	tests := []struct {
		name       string
		script     *ptytesting.Script
		acceptable []int
		wantKind   errors.Kind
		retryable  bool
		wantNil    bool
	}{
		{
			name:    "zero exit succeeds",
			script:  ptytesting.NewScript().Emit("ok\n"),
			wantNil: true,
		},
		{
			name:     "non-zero exit",
			script:   ptytesting.NewScript().Exit(2),
			wantKind: errors.KindNonZeroExit,
		},
		{
			name:       "non-zero exit in acceptable set is retryable",
			script:     ptytesting.NewScript().Exit(23),
			acceptable: []int{10, 23},
			wantKind:   errors.KindNonZeroExit,
			retryable:  true,
		},
		{
			name:     "signal exit",
			script:   ptytesting.NewScript().Signal(15),
			wantKind: errors.KindSignalReceived,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := fakeRunner(script(tt.script))
			err := r.Run(context.Background(), pty.Spec{
				Command:             "rsync",
				AcceptableExitCodes: tt.acceptable,
			})

			if tt.wantNil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, errors.KindOf(err))
			assert.Equal(t, tt.retryable, errors.IsRetryable(err))
		})
	}
}

func TestRun_ExitCodeRecorded(t *testing.T) {
	r, _ := fakeRunner(script(ptytesting.NewScript().Exit(127)))
	p, err := r.Start(context.Background(), pty.Spec{Command: "ssh"})
	require.NoError(t, err)

	err = p.Wait()
	code, ok := errors.ExitCodeOf(err)
	require.True(t, ok)
	assert.Equal(t, 127, code)
	assert.Equal(t, 127, p.ExitCode())
}

func TestRun_ListenersSeeChunksInOrder(t *testing.T) {
	r, _ := fakeRunner(script(ptytesting.NewScript().Emit("one\r\n").Emit("two\r").Emit("\nthree")))

	var mu sync.Mutex
	var first, second []string
	err := r.Run(context.Background(), pty.Spec{
		Command: "ssh",
		Listeners: []pty.Listener{
			func(_ *pty.Process, chunk string) {
				mu.Lock()
				first = append(first, chunk)
				mu.Unlock()
			},
			func(_ *pty.Process, chunk string) {
				mu.Lock()
				second = append(second, chunk)
				mu.Unlock()
			},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"one\n", "two", "\nthree"}, first)
	assert.Equal(t, first, second)
}

func TestRun_MultiByteRuneSplitAcrossReads(t *testing.T) {
	// "café ✓" with both multi-byte runes cut between writes.
	r, _ := fakeRunner(script(ptytesting.NewScript().
		Emit("caf\xc3").
		Emit("\xa9 \xe2\x9c").
		Emit("\x93 done\r\n")))

	var chunks []string
	err := r.Run(context.Background(), pty.Spec{
		Command: "ssh",
		Listeners: []pty.Listener{func(_ *pty.Process, chunk string) {
			chunks = append(chunks, chunk)
		}},
	})

	require.NoError(t, err)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c), "chunk %q", c)
	}
	assert.Equal(t, []string{"caf", "é ", "✓ done\n"}, chunks)
}

func TestRun_ListenerCanAnswerPrompt(t *testing.T) {
	r, starter := fakeRunner(script(ptytesting.NewScript().
		Emit("continue? ").
		Await("yes\n").
		Emit("thanks\n")))

	var out pty.Collector
	err := r.Run(context.Background(), pty.Spec{
		Command: "ssh",
		Listeners: []pty.Listener{
			out.Listener(),
			func(p *pty.Process, chunk string) {
				if strings.Contains(chunk, "continue?") {
					_ = p.WriteString("yes\n")
				}
			},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "continue? thanks\n", out.String())
	require.Len(t, starter.Children(), 1)
	assert.Equal(t, "yes\n", starter.Children()[0].Input())
}

func TestProcess_FirstFailureWins(t *testing.T) {
	r, starter := fakeRunner(script(ptytesting.NewScript().Hang()))
	p, err := r.Start(context.Background(), pty.Spec{Command: "ssh"})
	require.NoError(t, err)

	first := errors.NewSessionError(errors.KindPermissionDenied, false)
	p.Fail(first)
	p.Fail(errors.NewSessionError(errors.KindBadPort, false))

	err = p.Wait()
	assert.Equal(t, errors.KindPermissionDenied, errors.KindOf(err))
	assert.True(t, starter.Children()[0].Killed())

	select {
	case <-p.Done():
	default:
		t.Fatal("done channel should be closed after Wait")
	}
	assert.Error(t, p.Context().Err())
}

func TestProcess_WatchdogRunsTimeoutHook(t *testing.T) {
	r, starter := fakeRunner(script(ptytesting.NewScript().Hang()))

	p, err := r.Start(context.Background(), pty.Spec{
		Command: "sh",
		Timeout: 50 * time.Millisecond,
		OnTimeout: func(p *pty.Process) {
			_ = p.WriteString("\n")
			_ = p.WriteString("exit\n")
		},
	})
	require.NoError(t, err)

	err = p.Wait()
	require.Error(t, err)
	assert.Equal(t, errors.KindTimeoutExpired, errors.KindOf(err))
	assert.Equal(t, "\nexit\n", starter.Children()[0].Input())
}

func TestProcess_WatchdogStoppedOnNormalExit(t *testing.T) {
	r, _ := fakeRunner(script(ptytesting.NewScript().Emit("done\n")))

	err := r.Run(context.Background(), pty.Spec{Command: "ssh", Timeout: 30 * time.Millisecond})
	require.NoError(t, err)

	// A watchdog left armed would have nothing to kill; make sure nothing panics.
	time.Sleep(60 * time.Millisecond)
}

func TestProcess_ContextCancelKillsChild(t *testing.T) {
	r, starter := fakeRunner(script(ptytesting.NewScript().Hang()))

	ctx, cancel := context.WithCancel(context.Background())
	p, err := r.Start(ctx, pty.Spec{Command: "ssh"})
	require.NoError(t, err)

	cancel()
	err = p.Wait()
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, starter.Children()[0].Killed())
}

func TestSpecString(t *testing.T) {
	assert.Equal(t, "ssh", pty.Spec{Command: "ssh"}.String())
	assert.Equal(t, "ssh -O check host", pty.Spec{Command: "ssh", Args: []string{"-O", "check", "host"}}.String())
}

func TestShell(t *testing.T) {
	t.Setenv("SHELL", "/bin/zsh")
	assert.Equal(t, "/bin/zsh", pty.Shell())

	t.Setenv("SHELL", "")
	assert.Equal(t, "/bin/sh", pty.Shell())
}

func TestCollectorLines(t *testing.T) {
	r, _ := fakeRunner(script(ptytesting.NewScript().Emit("a\nb\n")))

	var out pty.Collector
	require.NoError(t, r.Run(context.Background(), pty.Spec{
		Command:   "ssh",
		Listeners: []pty.Listener{out.Listener()},
	}))
	assert.Equal(t, []string{"a", "b"}, out.Lines())
}

func TestTee(t *testing.T) {
	r, _ := fakeRunner(script(ptytesting.NewScript().Emit("streamed\n")))

	var buf strings.Builder
	require.NoError(t, r.Run(context.Background(), pty.Spec{
		Command:   "ssh",
		Listeners: []pty.Listener{pty.Tee(&buf)},
	}))
	assert.Equal(t, "streamed\n", buf.String())
}

func TestTailKeepsLastBytes(t *testing.T) {
	r, _ := fakeRunner(script(ptytesting.NewScript().Emit("0123456789").Emit("abcdef")))

	tail := pty.NewTail(8)
	require.NoError(t, r.Run(context.Background(), pty.Spec{
		Command:   "ssh",
		Listeners: []pty.Listener{tail.Listener()},
	}))
	assert.Equal(t, "89abcdef", tail.String())
}

func TestTailWrite(t *testing.T) {
	tests := []struct {
		name   string
		limit  int
		writes []string
		want   string
	}{
		{"under the limit", 16, []string{"abc", "def"}, "abcdef"},
		{"trims the front", 5, []string{"hello ", "world"}, "world"},
		{"single large write", 4, []string{"bash: go: command not found"}, "ound"},
		{"nothing written", 8, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tail := pty.NewTail(tt.limit)
			for _, w := range tt.writes {
				n, err := tail.Write([]byte(w))
				require.NoError(t, err)
				assert.Equal(t, len(w), n)
			}
			assert.Equal(t, tt.want, tail.String())
		})
	}
}
