package host

import (
	"regexp"

	"github.com/rileyhilliard/sshwrap/internal/errors"
)

// fatalPattern maps a line ssh prints to the failure it means.
type fatalPattern struct {
	re   *regexp.Regexp
	kind errors.Kind
}

// Order matters: the first matching pattern decides the kind.
var fatalPatterns = []fatalPattern{
	{regexp.MustCompile(`Permission denied \(`), errors.KindPermissionDenied},
	{regexp.MustCompile(`Could not resolve hostname`), errors.KindHostnameUnresolvable},
	{regexp.MustCompile(`Bad port`), errors.KindBadPort},
	{regexp.MustCompile(`(?:Operation|Connection) timed out`), errors.KindConnectionTimedOut},
	{regexp.MustCompile(`(?:unix_listener|muxserver_listen).*bind`), errors.KindMuxBindFailed},
}

var reNoControlSocket = regexp.MustCompile(`Control socket connect.*: No such file or directory`)

// ClassifyOutput reports the fatal failure named in ssh output, if any.
func ClassifyOutput(output string) (errors.Kind, bool) {
	for _, p := range fatalPatterns {
		if p.re.MatchString(output) {
			return p.kind, true
		}
	}
	return errors.KindUnknown, false
}

// FatalError builds the non-retryable error for output, or nil when output
// holds no recognized failure.
func FatalError(output string) error {
	kind, ok := ClassifyOutput(output)
	if !ok {
		return nil
	}
	return errors.NewSessionError(kind, false)
}

// NoControlSocket reports whether ssh said no master socket exists.
func NoControlSocket(output string) bool {
	return reNoControlSocket.MatchString(output)
}
