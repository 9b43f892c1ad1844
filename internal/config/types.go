package config

import (
	"slices"
	"time"
)

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the complete .sshwrap.yaml configuration file.
type Config struct {
	Version int             `yaml:"version" mapstructure:"version"`
	Default string          `yaml:"default,omitempty" mapstructure:"default"`
	Hosts   map[string]Host `yaml:"hosts" mapstructure:"hosts"`

	// Timeout is the default watchdog for a single remote command. Zero
	// means no timeout.
	Timeout time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`

	// RsyncPath is the local rsync binary.
	RsyncPath string `yaml:"rsync_path,omitempty" mapstructure:"rsync_path"`

	// SSHConfig is the ssh_config consulted for hosts not listed here.
	SSHConfig string `yaml:"ssh_config,omitempty" mapstructure:"ssh_config"`

	Output OutputConfig `yaml:"output" mapstructure:"output"`
}

// Host defines a remote machine and its connection settings.
type Host struct {
	// Host is the destination passed to ssh. Defaults to the entry's name,
	// so ssh_config aliases work as-is.
	Host string `yaml:"host,omitempty" mapstructure:"host"`
	User string `yaml:"user,omitempty" mapstructure:"user"`
	Port int    `yaml:"port,omitempty" mapstructure:"port"`

	KeyFile string `yaml:"key_file,omitempty" mapstructure:"key_file"`

	// PasswordEnv and PassphraseEnv name environment variables holding the
	// secret. The prompt flags ask on the terminal when ssh wants one.
	PasswordEnv      string `yaml:"password_env,omitempty" mapstructure:"password_env"`
	PassphraseEnv    string `yaml:"passphrase_env,omitempty" mapstructure:"passphrase_env"`
	PasswordPrompt   bool   `yaml:"password_prompt,omitempty" mapstructure:"password_prompt"`
	PassphrasePrompt bool   `yaml:"passphrase_prompt,omitempty" mapstructure:"passphrase_prompt"`

	NoStrictHostKeyChecking bool          `yaml:"no_strict_host_key_checking,omitempty" mapstructure:"no_strict_host_key_checking"`
	ControlPersist          time.Duration `yaml:"control_persist,omitempty" mapstructure:"control_persist"`
	ControlPersistDir       string        `yaml:"control_persist_dir,omitempty" mapstructure:"control_persist_dir"`
	ConnectTimeout          time.Duration `yaml:"connect_timeout,omitempty" mapstructure:"connect_timeout"`

	MaxRetry        int           `yaml:"max_retry,omitempty" mapstructure:"max_retry"`
	RetryDuration   time.Duration `yaml:"retry_duration,omitempty" mapstructure:"retry_duration"`
	RetryMinTimeout time.Duration `yaml:"retry_min_timeout,omitempty" mapstructure:"retry_min_timeout"`
	RetryMaxTimeout time.Duration `yaml:"retry_max_timeout,omitempty" mapstructure:"retry_max_timeout"`

	RCFile     string   `yaml:"rc_file,omitempty" mapstructure:"rc_file"`
	PrependCmd string   `yaml:"prepend_cmd,omitempty" mapstructure:"prepend_cmd"`
	SSHOpt     []string `yaml:"ssh_opt,omitempty" mapstructure:"ssh_opt"`

	// Dir is the remote working directory for commands.
	// Supports variable expansion: ${PROJECT}, ${USER}, ${HOME}.
	Dir string `yaml:"dir,omitempty" mapstructure:"dir"`

	// Env contains environment variables exported before every command.
	Env map[string]string `yaml:"env,omitempty" mapstructure:"env"`

	// Tags for filtering hosts in the listing.
	Tags []string `yaml:"tags,omitempty" mapstructure:"tags"`
}

// OutputConfig controls terminal output formatting.
type OutputConfig struct {
	// Color mode: "auto", "always", or "never".
	// "auto" disables color when output is piped.
	Color string `yaml:"color" mapstructure:"color"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version:   CurrentConfigVersion,
		Hosts:     make(map[string]Host),
		RsyncPath: "rsync",
		Output: OutputConfig{
			Color: "auto",
		},
	}
}

// HostNames returns the configured host names, sorted.
func (c *Config) HostNames() []string {
	names := make([]string, 0, len(c.Hosts))
	for name := range c.Hosts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
