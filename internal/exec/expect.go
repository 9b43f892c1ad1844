package exec

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rileyhilliard/sshwrap/internal/errors"
	"github.com/rileyhilliard/sshwrap/internal/login"
	"github.com/rileyhilliard/sshwrap/internal/pty"
)

// PromptPattern matches the end of a typical interactive shell prompt.
var PromptPattern = regexp.MustCompile(`[$#%>]\s*$`)

// Step is one expect/send pair of a scripted conversation.
type Step struct {
	Expect string
	Send   string
	Repeat int
}

// ParseStep parses "expect=>send".
func ParseStep(s string) (Step, error) {
	expect, send, ok := strings.Cut(s, "=>")
	if !ok || expect == "" {
		return Step{}, errors.New(errors.ErrConfig,
			fmt.Sprintf("Invalid expect step %q", s),
			"Write steps as 'pattern=>response', e.g. --step 'Continue\\?=>y'.")
	}
	return Step{Expect: expect, Send: send}, nil
}

// BuildQueue compiles cmd and steps into the conversation run by Expect:
// the command at the first prompt, the steps in order, then exit at the
// next prompt. Responses get a trailing newline.
func BuildQueue(cmd string, steps []Step) (*login.Queue, error) {
	q := login.NewQueue(login.Expectation{Pattern: PromptPattern, Response: cmd + "\n"})
	for _, st := range steps {
		re, err := regexp.Compile(st.Expect)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("Invalid expect pattern %q", st.Expect),
				"Expect patterns are Go regular expressions; escape characters like ? and (.")
		}
		q.Push(login.Expectation{Pattern: re, Response: st.Send + "\n", Repeat: st.Repeat})
	}
	q.Push(login.Expectation{Pattern: PromptPattern, Response: "exit\n"})
	return q, nil
}

// Expect opens an interactive login shell, runs cmd and answers its prompts
// with steps. It returns the exit code of the shell, which is the status of
// the last command run.
func (e *Executor) Expect(ctx context.Context, cmd string, steps []Step, opts Options) (int, error) {
	if _, err := BuildQueue(cmd, steps); err != nil {
		return -1, err
	}

	d := e.session.Descriptor()
	args := e.session.SSHArgs(false)
	code, err := e.withRetry(ctx, func(ctx context.Context) (int, error) {
		q, _ := BuildQueue(cmd, steps)
		ls := []pty.Listener{login.QueueListener(q, e.log)}
		if opts.Output != nil {
			ls = append(ls, pty.Tee(opts.Output))
		}
		return e.attempt(ctx, args, opts.Timeout, ls)
	})
	if err != nil {
		return exitCode(err), errors.Annotate(err, d.ErrorContext(cmd))
	}
	return code, nil
}
