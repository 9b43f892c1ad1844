package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/sshwrap/internal/errors"
	"github.com/rileyhilliard/sshwrap/internal/util"
)

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try reloading the configuration.")
	}

	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but sshwrap only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade sshwrap to a newer release.")
	}

	if cfg.Default != "" {
		if _, ok := cfg.Hosts[cfg.Default]; !ok {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Default host '%s' isn't defined under 'hosts'", cfg.Default),
				hostHint(cfg, cfg.Default))
		}
	}

	if cfg.Timeout < 0 {
		return errors.New(errors.ErrConfig,
			"timeout can't be negative",
			"Use 0 for no timeout, or a duration like 30s.")
	}

	for _, name := range cfg.HostNames() {
		if err := validateHost(name, cfg.Hosts[name]); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, err.Error(),
				fmt.Sprintf("Check hosts.%s in your .sshwrap.yaml.", name))
		}
	}

	if err := validateOutput(cfg.Output); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'output' section in your .sshwrap.yaml.")
	}

	return nil
}

// validateHost checks one host entry. The port is not range-checked; ssh
// reports "Bad port" itself and that surfaces as a typed error.
func validateHost(name string, h Host) error {
	if strings.ContainsAny(name, "/ ") {
		return fmt.Errorf("host name '%s' can't contain spaces or slashes", name)
	}
	if h.Host != "" && strings.TrimSpace(h.Host) == "" {
		return fmt.Errorf("host '%s' has an empty 'host' value", name)
	}
	if h.PasswordEnv != "" && h.PasswordPrompt {
		return fmt.Errorf("host '%s' sets both password_env and password_prompt - pick one", name)
	}
	if h.PassphraseEnv != "" && h.PassphrasePrompt {
		return fmt.Errorf("host '%s' sets both passphrase_env and passphrase_prompt - pick one", name)
	}
	if h.MaxRetry < 0 {
		return fmt.Errorf("host '%s' has a negative max_retry", name)
	}

	durations := []struct {
		field string
		value time.Duration
	}{
		{"control_persist", h.ControlPersist},
		{"connect_timeout", h.ConnectTimeout},
		{"retry_duration", h.RetryDuration},
		{"retry_min_timeout", h.RetryMinTimeout},
		{"retry_max_timeout", h.RetryMaxTimeout},
	}
	for _, d := range durations {
		if d.value < 0 {
			return fmt.Errorf("host '%s' has a negative %s", name, d.field)
		}
	}
	if (h.RetryMinTimeout > 0) != (h.RetryMaxTimeout > 0) {
		return fmt.Errorf("host '%s' needs both retry_min_timeout and retry_max_timeout for exponential backoff", name)
	}
	if h.RetryMinTimeout > h.RetryMaxTimeout {
		return fmt.Errorf("host '%s' has retry_min_timeout above retry_max_timeout", name)
	}

	// Remote paths keep ~ for the remote shell; ${VAR} must already be expanded.
	for field, p := range map[string]string{"dir": h.Dir, "rc_file": h.RCFile} {
		if strings.Contains(p, "${") {
			return fmt.Errorf("host '%s' has an unexpanded variable in %s: %s", name, field, p)
		}
	}
	return nil
}

// validateOutput checks output configuration.
func validateOutput(out OutputConfig) error {
	validColors := map[string]bool{"auto": true, "always": true, "never": true, "": true}
	if !validColors[out.Color] {
		return fmt.Errorf("output.color '%s' isn't valid - use 'auto', 'always', or 'never'", out.Color)
	}
	return nil
}

// hostHint lists close matches for a mistyped host name.
func hostHint(cfg *Config, name string) string {
	names := cfg.HostNames()
	if similar := util.SuggestSimilar(name, names, 3); len(similar) > 0 {
		return fmt.Sprintf("Did you mean: %s?", strings.Join(similar, ", "))
	}
	return fmt.Sprintf("Available hosts: %s", util.JoinOrNone(names))
}
