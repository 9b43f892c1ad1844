// Package host describes remote hosts and manages the persistent ssh master
// connection multiplexed for each of them.
package host

import (
	"strings"
	"time"

	"github.com/rileyhilliard/sshwrap/internal/errors"
	"github.com/rileyhilliard/sshwrap/internal/login"
	"github.com/rileyhilliard/sshwrap/internal/retry"
	"github.com/rileyhilliard/sshwrap/internal/util"
	"github.com/rileyhilliard/sshwrap/pkg/sshutil"
)

// Descriptor is the immutable description of one remote host.
// Runtime state lives in Session.
type Descriptor struct {
	Host    string
	User    string
	Port    int
	KeyFile string

	Password   login.Secret
	Passphrase login.Secret

	NoStrictHostKeyChecking bool
	// ControlPersist defaults to 180s.
	ControlPersist time.Duration
	// ControlPersistDir defaults to $SSH_CONTROL_PERSIST_DIR, then ~/.ssh.
	ControlPersistDir string
	ControlNamespace  string
	ConnectTimeout    time.Duration

	MaxRetry        int
	RetryDuration   time.Duration
	RetryMinTimeout time.Duration
	RetryMaxTimeout time.Duration

	// RCFile is sourced and PrependCmd run before every remote command.
	RCFile     string
	PrependCmd string

	// SSHOpt are extra raw ssh options.
	SSHOpt []string
}

// Sanitize normalizes d. Blank strings and blank SSHOpt members are removed,
// negative numbers fall back to their defaults. The port is deliberately
// not range-checked; ssh reports a bad one itself.
func Sanitize(d Descriptor) (Descriptor, error) {
	if d.Host == "" {
		return d, errors.New(errors.ErrConfig,
			"host is required",
			"Set a host name or ssh_config alias for this connection.")
	}
	d.Host = strings.TrimSpace(d.Host)
	if d.Host == "" {
		return d, errors.New(errors.ErrConfig,
			"empty host is not allowed",
			"The host name contains only whitespace. Check your config.")
	}

	d.User = strings.TrimSpace(d.User)
	d.KeyFile = strings.TrimSpace(d.KeyFile)
	d.ControlPersistDir = strings.TrimSpace(d.ControlPersistDir)
	d.ControlNamespace = strings.TrimSpace(d.ControlNamespace)
	d.RCFile = strings.TrimSpace(d.RCFile)
	d.PrependCmd = strings.TrimSpace(d.PrependCmd)
	d.SSHOpt = util.CompactStrings(d.SSHOpt)

	if d.Port < 0 {
		d.Port = 0
	}
	for _, v := range []*time.Duration{&d.ControlPersist, &d.ConnectTimeout, &d.RetryDuration, &d.RetryMinTimeout, &d.RetryMaxTimeout} {
		if *v < 0 {
			*v = 0
		}
	}
	if d.MaxRetry < 0 {
		d.MaxRetry = 0
	}
	return d, nil
}

// SSHOptions returns the ssh option inputs for d.
func (d Descriptor) SSHOptions() sshutil.Options {
	return sshutil.Options{
		Host:                    d.Host,
		User:                    d.User,
		Port:                    d.Port,
		KeyFile:                 d.KeyFile,
		NoStrictHostKeyChecking: d.NoStrictHostKeyChecking,
		ControlPath:             sshutil.ControlPath(d.ControlPersistDir, d.ControlNamespace),
		ControlPersist:          d.ControlPersist,
		ConnectTimeout:          d.ConnectTimeout,
		Extra:                   d.SSHOpt,
	}
}

// Credentials returns the secrets offered to login prompts.
func (d Descriptor) Credentials() login.Credentials {
	return login.Credentials{Password: d.Password, Passphrase: d.Passphrase}
}

// RetryPolicy returns the retry policy configured for d.
func (d Descriptor) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxRetry: d.MaxRetry,
		Duration: d.RetryDuration,
		Min:      d.RetryMinTimeout,
		Max:      d.RetryMaxTimeout,
	}
}

// ErrorContext returns the context attached to errors about d.
func (d Descriptor) ErrorContext(command string) errors.Context {
	return errors.Context{Host: d.Host, User: d.User, Port: d.Port, Command: command}
}
