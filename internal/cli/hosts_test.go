package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rileyhilliard/sshwrap/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeHostsFixture writes a config with two hosts and an ssh_config with one
// alias that isn't configured, and points --config at it.
func writeHostsFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	sshConfig := filepath.Join(dir, "ssh_config")
	require.NoError(t, os.WriteFile(sshConfig, []byte(`Host jump
  HostName jump.example.com
  User ops
  Port 2201
  IdentityFile ~/.ssh/jump_ed25519

Host build01
  HostName 10.0.0.7
`), 0644))

	path := filepath.Join(dir, config.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(`version: 1
default: build01
ssh_config: `+sshConfig+`
hosts:
  build01:
    host: build01.internal
    user: deploy
    dir: ~/src
    tags: [linux]
  gpu:
    user: ml
    port: 2222
`), 0644))
	setFlag(t, &cfgFile, path)
	setFlag(t, &noColor, true)
	return path
}

func TestHostsList(t *testing.T) {
	writeHostsFixture(t)

	var buf bytes.Buffer
	require.NoError(t, hostsList(&buf, false))
	out := buf.String()

	assert.Contains(t, out, "build01 *")
	assert.Contains(t, out, "deploy@build01.internal")
	assert.Contains(t, out, "ml@gpu:2222")
	assert.Contains(t, out, "ops@jump.example.com:2201 (ssh config)")
	assert.Contains(t, out, "linux")
}

func TestHostsList_YAML(t *testing.T) {
	writeHostsFixture(t)

	var buf bytes.Buffer
	require.NoError(t, hostsList(&buf, true))
	out := buf.String()

	assert.Contains(t, out, "hosts:")
	assert.Contains(t, out, "jump:")
	assert.Contains(t, out, "user: ops")
	assert.Contains(t, out, "port: 2201")
	assert.NotContains(t, out, "build01", "configured hosts are not exported again")
}

func TestHostAdd(t *testing.T) {
	path := writeHostsFixture(t)

	var buf bytes.Buffer
	err := hostAdd(&buf, HostAddOptions{Name: "mini", Host: config.Host{Host: "mini.local", User: "me"}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Added host 'mini'")
	assert.NotContains(t, buf.String(), "default host", "the default is kept")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "build01", cfg.Default)
	assert.Equal(t, "me", cfg.Hosts["mini"].User)

	err = hostAdd(&buf, HostAddOptions{Name: "gpu"})
	assert.ErrorContains(t, err, "already exists")

	err = hostAdd(&buf, HostAddOptions{Name: "has space"})
	assert.ErrorContains(t, err, "can't be used as a host name")
}

func TestHostAdd_FirstHostBecomesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.yaml")
	setFlag(t, &cfgFile, path)

	var buf bytes.Buffer
	require.NoError(t, hostAdd(&buf, HostAddOptions{Name: "build01", Host: config.Host{User: "deploy"}}))
	assert.Contains(t, buf.String(), "build01 is now the default host")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "build01", cfg.Default)
	assert.Equal(t, []string{"build01"}, cfg.HostNames())
}

func TestHostDefault(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		wantErr string
	}{
		{name: "existing host", host: "gpu"},
		{name: "typo", host: "gpv", wantErr: "Did you mean: gpu?"},
		{name: "unknown", host: "warehouse", wantErr: "Available hosts: build01, gpu"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeHostsFixture(t)

			var buf bytes.Buffer
			err := hostDefault(&buf, tt.host)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)

			cfg, err := config.Load(path)
			require.NoError(t, err)
			assert.Equal(t, tt.host, cfg.Default)
		})
	}
}

func TestHostRemove(t *testing.T) {
	path := writeHostsFixture(t)

	var buf bytes.Buffer
	require.NoError(t, hostRemove(&buf, "build01", true))
	assert.Contains(t, buf.String(), "Removed host 'build01'")
	assert.Contains(t, buf.String(), "gpu is now the default host")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"gpu"}, cfg.HostNames())
	assert.Equal(t, "gpu", cfg.Default)

	assert.ErrorContains(t, hostRemove(&buf, "build01", true), "not found")
}

func TestHostDestination(t *testing.T) {
	tests := []struct {
		name string
		host config.Host
		want string
	}{
		{name: "name only", want: "box"},
		{name: "user", host: config.Host{User: "me"}, want: "me@box"},
		{name: "address and port", host: config.Host{Host: "10.0.0.1", User: "me", Port: 2222}, want: "me@10.0.0.1:2222"},
		{name: "default port hidden", host: config.Host{Port: 22}, want: "box"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hostDestination("box", tt.host))
		})
	}
}
