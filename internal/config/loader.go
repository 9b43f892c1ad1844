package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/sshwrap/internal/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = ".sshwrap.yaml"
	// GlobalConfigDir is the directory for global config.
	GlobalConfigDir = ".config/sshwrap"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes environment overrides, e.g. SSHWRAP_DEFAULT.
	EnvPrefix = "SSHWRAP"
)

// Load reads config from the specified path.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Create a .sshwrap.yaml, or specify one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	cfg, err := parseConfig(v, path)
	if err != nil {
		return nil, err
	}
	if err := restoreKeyCase(path, cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+path)
	}
	return cfg, nil
}

// restoreKeyCase undoes viper's key lowercasing where case matters: host
// names and the env variable names exported to the remote.
func restoreKeyCase(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var raw struct {
		Hosts map[string]struct {
			Env map[string]string `yaml:"env"`
		} `yaml:"hosts"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}

	for name, rh := range raw.Hosts {
		lower := strings.ToLower(name)
		h, ok := cfg.Hosts[lower]
		if !ok {
			continue
		}
		if rh.Env != nil {
			env := make(map[string]string, len(rh.Env))
			for k := range rh.Env {
				env[k] = h.Env[strings.ToLower(k)]
			}
			h.Env = env
		}
		delete(cfg.Hosts, lower)
		cfg.Hosts[name] = h
	}
	if cfg.Default != "" {
		for name := range raw.Hosts {
			if strings.EqualFold(name, cfg.Default) {
				cfg.Default = name
			}
		}
	}
	return nil
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. .sshwrap.yaml in current directory
// 3. .sshwrap.yaml in parent directories (stops at git root or home)
// 4. ~/.config/sshwrap/config.yaml (global defaults)
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	// 1. Explicit path takes precedence
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	// 2. Current directory
	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	localConfig := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(localConfig); err == nil {
		return localConfig, nil
	}

	// 3. Walk up to parent directories
	home, _ := os.UserHomeDir()
	dir := cwd
	for !isGitRoot(dir) {
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		if home != "" && parent == home {
			// Don't go above home directory
			break
		}
		dir = parent

		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}
	}

	// 4. Global config
	if home != "" {
		globalConfig := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
		if _, err := os.Stat(globalConfig); err == nil {
			return globalConfig, nil
		}
	}

	return "", nil
}

// LoadOrDefault loads config from the found path, or returns defaults with
// environment overrides applied if none exists. It also returns the path
// that was loaded, which is empty in the latter case.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}

	if path == "" {
		cfg, err := parseConfig(newViper(), "environment")
		return cfg, "", err
	}

	cfg, err := Load(path)
	return cfg, path, err
}

// newViper returns a viper instance with defaults and SSHWRAP_ environment
// overrides registered.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := DefaultConfig()
	v.SetDefault("version", def.Version)
	v.SetDefault("default", "")
	v.SetDefault("timeout", "0s")
	v.SetDefault("rsync_path", def.RsyncPath)
	v.SetDefault("ssh_config", "")
	v.SetDefault("output.color", def.Output.Color)
	return v
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()

	// viper decodes weakly, so "22" becomes a port and "10s" a duration.
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+path)
	}
	if cfg.Hosts == nil {
		cfg.Hosts = make(map[string]Host)
	}

	for name, h := range cfg.Hosts {
		cfg.Hosts[name] = ExpandHost(h)
	}
	cfg.SSHConfig = ExpandTilde(cfg.SSHConfig)

	return cfg, nil
}

// isGitRoot checks if a directory is a git repository root.
func isGitRoot(dir string) bool {
	gitPath := filepath.Join(dir, ".git")
	info, err := os.Stat(gitPath)
	if err != nil {
		return false
	}
	return info.IsDir()
}
