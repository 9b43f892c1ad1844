// Package sshutil builds command-line options for the OpenSSH client and reads
// the user's ssh_config and known_hosts files.
package sshutil

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ControlPersistDirEnv overrides the directory holding ControlMaster sockets.
const ControlPersistDirEnv = "SSH_CONTROL_PERSIST_DIR"

// DefaultControlPersist is how long an idle master stays up.
const DefaultControlPersist = 180 * time.Second

// Options are the inputs to the ssh option vector.
type Options struct {
	Host    string
	User    string
	Port    int
	KeyFile string

	NoStrictHostKeyChecking bool

	// ControlPath is the socket path template; see ControlPath.
	ControlPath    string
	ControlPersist time.Duration
	ConnectTimeout time.Duration

	// Extra options are appended verbatim.
	Extra []string
}

// Args returns the ssh arguments. The destination comes first unless
// withoutDestination is set, which is what rsync's -e wants.
func (o Options) Args(withoutDestination bool) []string {
	var args []string
	if !withoutDestination {
		args = append(args, o.Host)
	}
	if o.User != "" {
		args = append(args, "-l", o.User)
	}
	if o.Port > 0 {
		args = append(args, "-p", strconv.Itoa(o.Port))
	}
	if IsRegularFile(o.KeyFile) {
		args = append(args, "-i", expandPath(o.KeyFile))
	}
	if o.NoStrictHostKeyChecking {
		args = append(args, "-oStrictHostKeyChecking=no")
	}

	persist := o.ControlPersist
	if persist <= 0 {
		persist = DefaultControlPersist
	}
	controlPath := o.ControlPath
	if controlPath == "" {
		controlPath = ControlPath("", "")
	}
	args = append(args,
		"-oControlMaster=auto",
		"-oControlPath="+controlPath,
		"-oControlPersist="+seconds(persist),
	)
	if o.ConnectTimeout > 0 {
		args = append(args, "-oConnectTimeout="+seconds(o.ConnectTimeout))
	}
	return append(args, o.Extra...)
}

// Destination returns the rsync-style remote prefix, [user@]host.
func (o Options) Destination() string {
	if o.User != "" {
		return o.User + "@" + o.Host
	}
	return o.Host
}

// DefaultNamespace prefixes control socket names.
const DefaultNamespace = "sshwrap"

// ControlPath returns <dir>/<namespace>-%r@%h:%p. An empty dir falls back to
// $SSH_CONTROL_PERSIST_DIR, then ~/.ssh.
func ControlPath(dir, namespace string) string {
	if dir == "" {
		dir = os.Getenv(ControlPersistDirEnv)
	}
	if dir == "" {
		dir = filepath.Join(homeDir(), ".ssh")
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return strings.TrimSuffix(dir, "/") + "/" + namespace + "-%r@%h:%p"
}

// IsRegularFile reports whether path names an existing regular file.
func IsRegularFile(path string) bool {
	if path == "" {
		return false
	}
	fi, err := os.Stat(expandPath(path))
	return err == nil && fi.Mode().IsRegular()
}

func seconds(d time.Duration) string {
	s := int64(d / time.Second)
	if s < 1 {
		s = 1
	}
	return strconv.FormatInt(s, 10)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}
