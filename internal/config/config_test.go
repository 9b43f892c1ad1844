package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, CurrentConfigVersion, cfg.Version)
	assert.NotNil(t, cfg.Hosts)
	assert.Empty(t, cfg.Hosts)
	assert.Equal(t, "rsync", cfg.RsyncPath)
	assert.Equal(t, "auto", cfg.Output.Color)
	assert.Zero(t, cfg.Timeout)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
version: 1
default: build01
timeout: 45s
rsync_path: /opt/homebrew/bin/rsync
hosts:
  build01:
    host: build01.internal
    user: deploy
    port: "2222"
    key_file: ~/.ssh/build_ed25519
    password_env: BUILD_PASSWORD
    control_persist: 10m
    connect_timeout: 5s
    max_retry: 4
    retry_duration: 2s
    ssh_opt:
      - -oServerAliveInterval=30
    dir: ${HOME}/work
    env:
      GOFLAGS: -mod=mod
    tags: [linux, amd64]
  gpu:
    user: ml
    passphrase_prompt: true
    retry_min_timeout: 1s
    retry_max_timeout: 30s
output:
  color: never
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "build01", cfg.Default)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, "/opt/homebrew/bin/rsync", cfg.RsyncPath)
	assert.Equal(t, "never", cfg.Output.Color)
	assert.Equal(t, []string{"build01", "gpu"}, cfg.HostNames())

	b := cfg.Hosts["build01"]
	assert.Equal(t, "build01.internal", b.Host)
	assert.Equal(t, "deploy", b.User)
	assert.Equal(t, 2222, b.Port)
	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, ".ssh", "build_ed25519"), b.KeyFile)
	assert.Equal(t, "BUILD_PASSWORD", b.PasswordEnv)
	assert.Equal(t, 10*time.Minute, b.ControlPersist)
	assert.Equal(t, 5*time.Second, b.ConnectTimeout)
	assert.Equal(t, 4, b.MaxRetry)
	assert.Equal(t, 2*time.Second, b.RetryDuration)
	assert.Equal(t, []string{"-oServerAliveInterval=30"}, b.SSHOpt)
	assert.Equal(t, "~/work", b.Dir, "remote dirs keep ~ for the remote shell")
	assert.Equal(t, map[string]string{"GOFLAGS": "-mod=mod"}, b.Env)
	assert.Equal(t, []string{"linux", "amd64"}, b.Tags)

	g := cfg.Hosts["gpu"]
	assert.True(t, g.PassphrasePrompt)
	assert.Equal(t, time.Second, g.RetryMinTimeout)
	assert.Equal(t, 30*time.Second, g.RetryMaxTimeout)

	require.NoError(t, Validate(cfg))
}

func TestLoad_KeepsHostNameCase(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
default: MacMini
hosts:
  MacMini:
    user: me
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"MacMini"}, cfg.HostNames())
	assert.Equal(t, "MacMini", cfg.Default)
	require.NoError(t, Validate(cfg))
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
default: a
hosts:
  a:
    user: x
  b:
    user: y
`)
	t.Setenv("SSHWRAP_DEFAULT", "b")
	t.Setenv("SSHWRAP_TIMEOUT", "2m")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "b", cfg.Default)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		_, err := Load("/nonexistent/path/.sshwrap.yaml")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "Config file not found")
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "hosts: [unclosed\n"))
		assert.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		_, err := Load(writeConfig(t, "timeout: soon\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid config format")
	})
}

func TestFind(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) string
		wantErr bool
	}{
		{
			name: "explicit path exists",
			setup: func(t *testing.T) string {
				return writeConfig(t, "version: 1")
			},
		},
		{
			name: "explicit path not found",
			setup: func(t *testing.T) string {
				return "/nonexistent/config.yaml"
			},
			wantErr: true,
		},
		{
			name: "current directory has config",
			setup: func(t *testing.T) string {
				path := writeConfig(t, "version: 1")
				t.Chdir(filepath.Dir(path))
				return ""
			},
		},
		{
			name: "parent directory has config",
			setup: func(t *testing.T) string {
				path := writeConfig(t, "version: 1")
				child := filepath.Join(filepath.Dir(path), "a", "b")
				require.NoError(t, os.MkdirAll(child, 0755))
				t.Chdir(child)
				return ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			explicit := tt.setup(t)

			path, err := Find(explicit)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if explicit != "" {
				assert.Equal(t, explicit, path)
			} else {
				assert.Equal(t, ConfigFileName, filepath.Base(path))
			}
		})
	}
}

func TestFind_StopsAtGitRoot(t *testing.T) {
	outer := filepath.Dir(writeConfig(t, "version: 1"))
	repo := filepath.Join(outer, "repo")
	require.NoError(t, os.MkdirAll(filepath.Join(repo, ".git"), 0755))
	t.Chdir(repo)
	t.Setenv("HOME", t.TempDir())

	path, err := Find("")
	require.NoError(t, err)
	assert.Empty(t, path, "configs above the repository root are ignored")
}

func TestLoadOrDefault(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, path, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Empty(t, path)
	require.NotNil(t, cfg)
	assert.Equal(t, CurrentConfigVersion, cfg.Version)
	assert.Equal(t, "rsync", cfg.RsyncPath)
	assert.Empty(t, cfg.Hosts)
}

func TestLoadOrDefault_Global(t *testing.T) {
	t.Chdir(t.TempDir())
	home := t.TempDir()
	t.Setenv("HOME", home)
	global := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(global), 0755))
	require.NoError(t, os.WriteFile(global, []byte("default: gpu\nhosts:\n  gpu:\n    user: ml\n"), 0644))

	cfg, path, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, global, path)
	assert.Equal(t, "gpu", cfg.Default)
}
