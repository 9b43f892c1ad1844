package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rileyhilliard/sshwrap/internal/errors"
	"github.com/rileyhilliard/sshwrap/internal/exec"
	"github.com/rileyhilliard/sshwrap/internal/host"
	"github.com/rileyhilliard/sshwrap/internal/login"
	"github.com/rileyhilliard/sshwrap/internal/util"
	"github.com/rileyhilliard/sshwrap/pkg/sshutil"
)

// Prompter asks the user for a secret. title names what is being asked for.
type Prompter func(ctx context.Context, title string) (string, error)

// ResolveOptions controls how a host name becomes a descriptor.
type ResolveOptions struct {
	// Prompt answers password_prompt and passphrase_prompt. Hosts that ask
	// for a prompt fail to resolve when it is nil.
	Prompt Prompter
}

// Resolved is a host ready to connect to, plus the defaults its commands run
// with.
type Resolved struct {
	// Name is the config entry, ssh_config alias, or raw destination used.
	Name       string
	Descriptor host.Descriptor
	// Source is "config", "ssh_config" or "raw".
	Source string

	Dir string
	Env map[string]string

	cfg *Config
}

// ExecOptions returns exec options carrying the host's dir, env and the
// configured default timeout.
func (r Resolved) ExecOptions() exec.Options {
	opts := exec.Options{Dir: r.Dir, Env: r.Env}
	if r.cfg != nil {
		opts.Timeout = r.cfg.Timeout
	}
	return opts
}

// Resolve turns a host name into a descriptor. An empty name picks the
// default host, or the only one configured. Names that aren't configured
// fall back to an ssh_config alias, then to a raw [user@]host[:port]
// destination. A bare name close to a configured one is rejected as a typo.
func Resolve(cfg *Config, name string, opts ResolveOptions) (Resolved, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	name = strings.TrimSpace(name)

	if name == "" {
		picked, err := defaultHost(cfg)
		if err != nil {
			return Resolved{}, err
		}
		name = picked
	}

	if h, ok := lookupConfigured(cfg, name); ok {
		return fromHost(cfg, name, h, opts)
	}

	d := rawDescriptor(name)
	entry, found, _, err := sshutil.LookupHost(sshConfigPath(cfg), d.Host)
	if err != nil {
		return Resolved{}, errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't read ssh config",
			"Check "+sshConfigPath(cfg)+" is readable, or set ssh_config in .sshwrap.yaml.")
	}
	if found {
		// ssh applies the alias itself; the port is only needed to name the
		// control socket the way ssh would.
		if d.Port == 0 {
			d.Port = entry.PortNumber()
		}
		return Resolved{Name: name, Source: "ssh_config", Descriptor: d, cfg: cfg}, nil
	}

	if looksLikeName(name) {
		if similar := util.SuggestSimilar(name, cfg.HostNames(), 3); len(similar) > 0 {
			return Resolved{}, errors.New(errors.ErrConfig,
				fmt.Sprintf("Host '%s' isn't configured", name),
				fmt.Sprintf("Did you mean: %s? Use user@%s to connect to it directly.", strings.Join(similar, ", "), name))
		}
	}

	return Resolved{Name: name, Source: "raw", Descriptor: d, cfg: cfg}, nil
}

// looksLikeName reports whether s reads as a config entry name rather than
// an explicit destination.
func looksLikeName(s string) bool {
	return !strings.ContainsAny(s, "@.:")
}

// lookupConfigured finds a host entry. viper lowercases map keys, so names
// are matched case-insensitively.
func lookupConfigured(cfg *Config, name string) (Host, bool) {
	if h, ok := cfg.Hosts[name]; ok {
		return h, true
	}
	h, ok := cfg.Hosts[strings.ToLower(name)]
	return h, ok
}

func defaultHost(cfg *Config) (string, error) {
	if cfg.Default != "" {
		return cfg.Default, nil
	}
	names := cfg.HostNames()
	switch len(names) {
	case 1:
		return names[0], nil
	case 0:
		return "", errors.New(errors.ErrConfig,
			"No host given",
			"Pass --host user@machine, or add a host to .sshwrap.yaml.")
	default:
		return "", errors.New(errors.ErrConfig,
			"No host given and no default set",
			fmt.Sprintf("Pass --host, or set 'default' to one of: %s", util.JoinOrNone(names)))
	}
}

func fromHost(cfg *Config, name string, h Host, opts ResolveOptions) (Resolved, error) {
	d := host.Descriptor{
		Host:                    h.Host,
		User:                    h.User,
		Port:                    h.Port,
		KeyFile:                 h.KeyFile,
		NoStrictHostKeyChecking: h.NoStrictHostKeyChecking,
		ControlPersist:          h.ControlPersist,
		ControlPersistDir:       h.ControlPersistDir,
		ConnectTimeout:          h.ConnectTimeout,
		MaxRetry:                h.MaxRetry,
		RetryDuration:           h.RetryDuration,
		RetryMinTimeout:         h.RetryMinTimeout,
		RetryMaxTimeout:         h.RetryMaxTimeout,
		RCFile:                  h.RCFile,
		PrependCmd:              h.PrependCmd,
		SSHOpt:                  h.SSHOpt,
	}
	if d.Host == "" {
		d.Host = name
	}

	var err error
	if d.Password, err = secretFor(name, "password", h.PasswordEnv, h.PasswordPrompt, opts.Prompt); err != nil {
		return Resolved{}, err
	}
	if d.Passphrase, err = secretFor(name, "passphrase", h.PassphraseEnv, h.PassphrasePrompt, opts.Prompt); err != nil {
		return Resolved{}, err
	}

	return Resolved{
		Name:       name,
		Source:     "config",
		Descriptor: d,
		Dir:        h.Dir,
		Env:        h.Env,
		cfg:        cfg,
	}, nil
}

// secretFor builds the login secret for one kind of prompt.
func secretFor(name, kind, envVar string, prompt bool, p Prompter) (login.Secret, error) {
	switch {
	case envVar != "":
		value, ok := os.LookupEnv(envVar)
		if !ok {
			return login.Secret{}, errors.New(errors.ErrConfig,
				fmt.Sprintf("%s_env for host '%s' names %s, which isn't set", kind, name, envVar),
				fmt.Sprintf("Export %s, or switch to %s_prompt.", envVar, kind))
		}
		return login.Fixed(value), nil
	case prompt:
		if p == nil {
			return login.Secret{}, errors.New(errors.ErrConfig,
				fmt.Sprintf("Host '%s' asks for a %s prompt but there's no terminal to ask on", name, kind),
				fmt.Sprintf("Run interactively, or set %s_env instead.", kind))
		}
		title := fmt.Sprintf("%s for %s", strings.ToUpper(kind[:1])+kind[1:], name)
		return login.FromProvider(func(ctx context.Context) (string, error) {
			return p(ctx, title)
		}), nil
	default:
		return login.Secret{}, nil
	}
}

// rawDescriptor splits a [user@]host[:port] destination.
func rawDescriptor(dest string) host.Descriptor {
	var d host.Descriptor
	if at := strings.LastIndex(dest, "@"); at > 0 {
		d.User = dest[:at]
		dest = dest[at+1:]
	}
	if colon := strings.LastIndex(dest, ":"); colon > 0 && !strings.Contains(dest[:colon], ":") {
		if port, err := strconv.Atoi(dest[colon+1:]); err == nil && port > 0 {
			d.Port = port
			dest = dest[:colon]
		}
	}
	d.Host = dest
	return d
}

func sshConfigPath(cfg *Config) string {
	if cfg.SSHConfig != "" {
		return cfg.SSHConfig
	}
	return sshutil.DefaultConfigPath()
}
