package login

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/rileyhilliard/sshwrap/internal/errors"
	"github.com/rileyhilliard/sshwrap/internal/logger"
	"github.com/rileyhilliard/sshwrap/internal/pty"
)

// Terminal is the side of a process the automaton writes to.
type Terminal interface {
	WriteString(s string) error
	Fail(err error)
	Context() context.Context
}

// Prompt identifies what the automaton recognized in a chunk.
type Prompt int

const (
	PromptNone Prompt = iota
	PromptHostKeyChanged
	PromptNewHost
	PromptPassword
	PromptPassphrase
)

func (p Prompt) String() string {
	switch p {
	case PromptHostKeyChanged:
		return "host key changed"
	case PromptNewHost:
		return "new host"
	case PromptPassword:
		return "password"
	case PromptPassphrase:
		return "passphrase"
	default:
		return "none"
	}
}

var (
	reHostKeyChanged = regexp.MustCompile(`REMOTE HOST IDENTIFICATION HAS CHANGED`)
	reNewHost        = regexp.MustCompile(`Are you sure you want to continue connecting`)
	rePassword       = regexp.MustCompile(`password:`)
	rePassphrase     = regexp.MustCompile(`Enter passphrase for key`)
	reKexClosed      = regexp.MustCompile(`kex_exchange_identification: Connection closed by remote host`)

	reOffendingKey = regexp.MustCompile(`Offending \S+ key (?:for IP )?in (\S+):(\d+)`)
	reChangedHost  = regexp.MustCompile(`Host key for (\S+) has changed`)
)

// Classify returns the highest-precedence prompt found in chunk.
func Classify(chunk string) Prompt {
	switch {
	case reHostKeyChanged.MatchString(chunk):
		return PromptHostKeyChanged
	case reNewHost.MatchString(chunk):
		return PromptNewHost
	case rePassword.MatchString(chunk):
		return PromptPassword
	case rePassphrase.MatchString(chunk):
		return PromptPassphrase
	default:
		return PromptNone
	}
}

// React answers the first prompt found in chunk. A returned error means the
// login cannot succeed and the process should be failed with it.
// Provider secrets resolve on their own goroutine; a rejection fails term.
func React(chunk string, term Terminal, audit logger.Logger, creds Credentials) (Prompt, error) {
	prompt := Classify(chunk)
	switch prompt {
	case PromptHostKeyChanged:
		return prompt, hostKeyMismatch(chunk)
	case PromptNewHost:
		audit.Debug("send yes")
		return prompt, term.WriteString("yes\n")
	case PromptPassword:
		return prompt, answer(term, audit, creds.Password, "password")
	case PromptPassphrase:
		return prompt, answer(term, audit, creds.Passphrase, "passphrase")
	}
	return prompt, nil
}

func answer(term Terminal, audit logger.Logger, s Secret, what string) error {
	if s.IsZero() {
		return &errors.SessionError{
			Kind:  errors.KindLoginFailed,
			Cause: fmt.Errorf("%s prompt received but no %s is configured", what, what),
		}
	}

	if !s.IsProvider() {
		audit.Debug("use given %s", what)
		v, _ := s.Resolve(term.Context())
		return term.WriteString(v + "\n")
	}

	audit.Debug("call %s provider", what)
	go func() {
		v, err := s.Resolve(term.Context())
		if err != nil {
			term.Fail(&errors.SessionError{
				Kind:  errors.KindLoginFailed,
				Cause: fmt.Errorf("%s provider: %w", what, err),
			})
			return
		}
		if err := term.WriteString(v + "\n"); err != nil {
			audit.Debug("write %s: %v", what, err)
		}
	}()
	return nil
}

func hostKeyMismatch(chunk string) error {
	se := errors.NewSessionError(errors.KindHostKeyMismatch, false)
	if m := reOffendingKey.FindStringSubmatch(chunk); m != nil {
		se.KnownHostsFile = m[1]
		se.KnownHostsLine, _ = strconv.Atoi(m[2])
	}
	if m := reChangedHost.FindStringSubmatch(chunk); m != nil {
		se.OffendingHost = m[1]
	}
	return se
}

// Listener attaches the automaton to a process. It also fails the process
// with a retryable error when the remote closes during key exchange.
func Listener(creds Credentials, audit logger.Logger) pty.Listener {
	if audit == nil {
		audit = logger.Noop()
	}
	return func(p *pty.Process, chunk string) {
		if _, err := React(chunk, p, audit, creds); err != nil {
			p.Fail(err)
			return
		}
		if reKexClosed.MatchString(chunk) {
			p.Fail(errors.NewSessionError(errors.KindKeyExchangeClosed, true))
		}
	}
}
