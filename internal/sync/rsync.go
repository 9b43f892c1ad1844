package sync

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rileyhilliard/sshwrap/internal/errors"
	"github.com/rileyhilliard/sshwrap/internal/pty"
)

// versionProbeTimeout bounds `rsync --version`.
const versionProbeTimeout = 3 * time.Second

var versionPattern = regexp.MustCompile(`(?m)^rsync\s+version\s+v?(\d+)\.(\d+)\.(\d+)`)

// oldArgsSince is the first rsync release that changed remote argument
// splitting. Newer clients need --old-args for space separated remote sources.
var oldArgsSince = Version{Major: 3, Minor: 2, Patch: 4}

// Version is a parsed rsync release number.
type Version struct {
	Major, Minor, Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// AtLeast reports whether v is o or newer.
func (v Version) AtLeast(o Version) bool {
	if v.Major != o.Major {
		return v.Major > o.Major
	}
	if v.Minor != o.Minor {
		return v.Minor > o.Minor
	}
	return v.Patch >= o.Patch
}

// NeedsOldArgs reports whether recv has to pass --old-args.
func (v Version) NeedsOldArgs() bool {
	return v.AtLeast(oldArgsSince)
}

// ParseVersion extracts the release from `rsync --version` output.
// The first line typically reads "rsync  version 3.2.7  protocol version 31".
func ParseVersion(output string) (Version, bool) {
	m := versionPattern.FindStringSubmatch(output)
	if m == nil {
		return Version{}, false
	}
	return parseTriplet(m[1] + "." + m[2] + "." + m[3])
}

func parseTriplet(s string) (Version, bool) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, false
	}
	var n [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, false
		}
		n[i] = v
	}
	return Version{Major: n[0], Minor: n[1], Patch: n[2]}, true
}

// FindRsync locates the rsync binary on the local system.
// Returns the full path to rsync or an error if not found.
func FindRsync() (string, error) {
	path, err := exec.LookPath("rsync")
	if err != nil {
		return "", errors.New(errors.ErrSync,
			"rsync isn't installed locally",
			"Grab it with: brew install rsync (macOS) or apt install rsync (Linux)")
	}
	return path, nil
}

// LocalVersion returns the local rsync release, probing it once per session.
func (s *Syncer) LocalVersion(ctx context.Context) (Version, error) {
	if cached, ok := s.session.CachedRsyncVersion(); ok {
		if v, ok := parseTriplet(cached); ok {
			return v, nil
		}
	}

	var out pty.Collector
	err := s.session.Runner().Run(ctx, pty.Spec{
		Command:   s.rsync,
		Args:      []string{"--version"},
		Timeout:   versionProbeTimeout,
		Listeners: []pty.Listener{out.Listener()},
	})
	if err != nil {
		return Version{}, errors.WrapWithCode(err, errors.ErrSync,
			"Couldn't get rsync version",
			"Make sure rsync is installed correctly.")
	}

	v, ok := ParseVersion(out.String())
	if !ok {
		return Version{}, errors.New(errors.ErrSync,
			"Couldn't parse the rsync version output",
			"Try running 'rsync --version' to check your installation.")
	}
	s.session.SetRsyncVersion(v.String())
	return v, nil
}

// CheckRemote verifies that rsync is available on the remote host.
func (s *Syncer) CheckRemote(ctx context.Context, timeout time.Duration) error {
	d := s.session.Descriptor()
	code, err := s.exec.Exec(ctx, "command -v rsync", execOptions(timeout))
	if _, nonZero := errors.ExitCodeOf(err); err != nil && !nonZero {
		return errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to check for rsync on remote",
			"Check your SSH connection")
	}
	if code != 0 {
		return errors.New(errors.ErrSync,
			fmt.Sprintf("rsync isn't installed on %s", d.Host),
			"Install it on the remote: apt install rsync (Debian/Ubuntu) or yum install rsync (RHEL)")
	}
	return nil
}
