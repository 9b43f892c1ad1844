package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies a failure of a spawned ssh/rsync session.
type Kind int

const (
	KindUnknown Kind = iota
	KindHostKeyMismatch
	KindPermissionDenied
	KindHostnameUnresolvable
	KindBadPort
	KindConnectionTimedOut
	KindMuxBindFailed
	KindTimeoutExpired
	KindSignalReceived
	KindNonZeroExit
	KindKeyExchangeClosed
	KindLoginFailed
	KindMasterFailed
)

// String returns a human-readable description of the kind.
func (k Kind) String() string {
	switch k {
	case KindHostKeyMismatch:
		return "remote host identification has changed"
	case KindPermissionDenied:
		return "permission denied"
	case KindHostnameUnresolvable:
		return "could not resolve hostname"
	case KindBadPort:
		return "bad port"
	case KindConnectionTimedOut:
		return "connection timed out"
	case KindMuxBindFailed:
		return "control socket bind failed"
	case KindTimeoutExpired:
		return "watchdog timer expired"
	case KindSignalReceived:
		return "signal caught"
	case KindNonZeroExit:
		return "exit with non-zero"
	case KindKeyExchangeClosed:
		return "connection closed by remote host during key exchange"
	case KindLoginFailed:
		return "login failed"
	case KindMasterFailed:
		return "master connection failed"
	default:
		return "unknown error"
	}
}

// SessionError is the classified outcome of a failed session operation.
// Fields other than Kind are populated when they apply.
type SessionError struct {
	Kind      Kind
	Retryable bool

	ExitCode int
	Signal   int
	Timeout  time.Duration

	Host    string
	User    string
	Port    int
	Command string

	Attempts int
	MaxRetry int

	// Host key mismatch details parsed from ssh's warning banner.
	KnownHostsFile string
	KnownHostsLine int
	OffendingHost  string

	Cause error
}

// NewSessionError creates a SessionError of the given kind.
func NewSessionError(kind Kind, retryable bool) *SessionError {
	return &SessionError{Kind: kind, Retryable: retryable}
}

// NewTimeoutError creates a retryable TimeoutExpired error.
func NewTimeoutError(d time.Duration) *SessionError {
	return &SessionError{Kind: KindTimeoutExpired, Retryable: true, Timeout: d}
}

// NewExitCodeError creates a NonZeroExit error for the given code.
func NewExitCodeError(code int, retryable bool) *SessionError {
	return &SessionError{Kind: KindNonZeroExit, Retryable: retryable, ExitCode: code}
}

// NewSignalError creates a SignalReceived error.
func NewSignalError(signal int) *SessionError {
	return &SessionError{Kind: KindSignalReceived, Signal: signal}
}

func (e *SessionError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())

	switch e.Kind {
	case KindNonZeroExit:
		fmt.Fprintf(&b, " (%d)", e.ExitCode)
	case KindSignalReceived:
		fmt.Fprintf(&b, " (signal %d)", e.Signal)
	case KindTimeoutExpired:
		fmt.Fprintf(&b, " after %s", e.Timeout)
	case KindHostKeyMismatch:
		if e.OffendingHost != "" {
			fmt.Fprintf(&b, " for %s", e.OffendingHost)
		}
		if e.KnownHostsLine > 0 {
			fmt.Fprintf(&b, " (known_hosts line %d)", e.KnownHostsLine)
		}
	}

	if e.Host != "" {
		fmt.Fprintf(&b, " [%s]", e.target())
	}
	if e.Command != "" {
		fmt.Fprintf(&b, " cmd=%q", e.Command)
	}
	if e.Attempts > 0 {
		fmt.Fprintf(&b, " after %d attempt(s), max retry %d", e.Attempts, e.MaxRetry)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *SessionError) target() string {
	t := e.Host
	if e.User != "" {
		t = e.User + "@" + t
	}
	if e.Port > 0 {
		t = fmt.Sprintf("%s:%d", t, e.Port)
	}
	return t
}

// Unwrap returns the underlying cause.
func (e *SessionError) Unwrap() error {
	return e.Cause
}

// Suggestion returns an actionable hint for the failure kind.
func (e *SessionError) Suggestion() string {
	switch e.Kind {
	case KindHostKeyMismatch:
		return "The host key changed. Verify it out of band before removing the old entry from known_hosts."
	case KindPermissionDenied:
		return "Check the user name, password, passphrase or key file for this host."
	case KindHostnameUnresolvable:
		return "Check the host name or your DNS settings."
	case KindBadPort:
		return "Port must be a number between 1 and 65535."
	case KindConnectionTimedOut:
		return "Host might be offline or blocked by a firewall."
	case KindMuxBindFailed:
		return "Another master may own the control socket. Run 'sshwrap disconnect' and retry."
	case KindTimeoutExpired:
		return "Increase the timeout or check that the remote command terminates."
	case KindKeyExchangeClosed:
		return "The remote closed the connection early, often due to MaxStartups. Try again shortly."
	case KindLoginFailed:
		return "Check the configured password or passphrase source."
	default:
		return ""
	}
}

// Context holds the host/command details attached to a SessionError.
type Context struct {
	Host    string
	User    string
	Port    int
	Command string
}

// Annotate fills in missing context on a SessionError found in err's chain.
// Errors that are not SessionErrors are returned unchanged.
func Annotate(err error, c Context) error {
	var se *SessionError
	if !errors.As(err, &se) {
		return err
	}
	if se.Host == "" {
		se.Host = c.Host
		se.User = c.User
		se.Port = c.Port
	}
	if se.Command == "" {
		se.Command = c.Command
	}
	return err
}

// KindOf returns the Kind of the first SessionError in err's chain.
func KindOf(err error) Kind {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err is a SessionError marked retryable.
func IsRetryable(err error) bool {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// ExitCodeOf returns the exit code of a NonZeroExit SessionError.
func ExitCodeOf(err error) (int, bool) {
	var se *SessionError
	if errors.As(err, &se) && se.Kind == KindNonZeroExit {
		return se.ExitCode, true
	}
	return 0, false
}
