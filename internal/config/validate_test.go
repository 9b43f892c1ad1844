package config

import (
	"testing"
	"time"

	"github.com/rileyhilliard/sshwrap/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr string
	}{
		{
			name:    "nil config",
			config:  nil,
			wantErr: "Config is nil",
		},
		{
			name:   "empty config is valid",
			config: DefaultConfig(),
		},
		{
			name: "valid config",
			config: &Config{
				Version: 1,
				Default: "build01",
				Hosts: map[string]Host{
					"build01": {Host: "build01.internal", User: "deploy", MaxRetry: 3},
				},
				Output: OutputConfig{Color: "always"},
			},
		},
		{
			name:    "future version",
			config:  &Config{Version: CurrentConfigVersion + 1},
			wantErr: "from the future",
		},
		{
			name: "missing default host",
			config: &Config{
				Default: "build02",
				Hosts:   map[string]Host{"build01": {}},
			},
			wantErr: "Default host 'build02' isn't defined",
		},
		{
			name:    "negative timeout",
			config:  &Config{Timeout: -time.Second},
			wantErr: "timeout can't be negative",
		},
		{
			name: "bad host",
			config: &Config{
				Hosts: map[string]Host{"gpu": {MaxRetry: -1}},
			},
			wantErr: "negative max_retry",
		},
		{
			name:    "bad color",
			config:  &Config{Output: OutputConfig{Color: "rainbow"}},
			wantErr: "output.color 'rainbow' isn't valid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.config)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, errors.IsCode(err, errors.ErrConfig))
		})
	}
}

func TestValidate_DefaultHostSuggestion(t *testing.T) {
	err := Validate(&Config{
		Default: "buidl01",
		Hosts:   map[string]Host{"build01": {}, "gpu": {}},
	})
	require.Error(t, err)

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Contains(t, e.Suggestion, "Did you mean: build01?")
}

func TestValidateHost(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		h       Host
		wantErr string
	}{
		{name: "zero value", host: "a", h: Host{}},
		{name: "full", host: "a", h: Host{
			Host: "a.example.com", User: "u", Port: 2222, PasswordEnv: "PW",
			PassphrasePrompt: true, RetryMinTimeout: time.Second, RetryMaxTimeout: time.Minute,
			Dir: "~/src",
		}},
		{name: "port is not range checked", host: "a", h: Host{Port: 70000}},
		{name: "space in name", host: "my host", wantErr: "can't contain spaces or slashes"},
		{name: "slash in name", host: "a/b", wantErr: "can't contain spaces or slashes"},
		{name: "blank host value", host: "a", h: Host{Host: "   "}, wantErr: "empty 'host' value"},
		{name: "password env and prompt", host: "a", h: Host{PasswordEnv: "PW", PasswordPrompt: true}, wantErr: "password_env and password_prompt"},
		{name: "passphrase env and prompt", host: "a", h: Host{PassphraseEnv: "PP", PassphrasePrompt: true}, wantErr: "passphrase_env and passphrase_prompt"},
		{name: "negative retry", host: "a", h: Host{MaxRetry: -2}, wantErr: "negative max_retry"},
		{name: "negative duration", host: "a", h: Host{ConnectTimeout: -time.Second}, wantErr: "negative connect_timeout"},
		{name: "min without max", host: "a", h: Host{RetryMinTimeout: time.Second}, wantErr: "needs both"},
		{name: "min above max", host: "a", h: Host{RetryMinTimeout: time.Minute, RetryMaxTimeout: time.Second}, wantErr: "above retry_max_timeout"},
		{name: "unexpanded dir", host: "a", h: Host{Dir: "${FOO}/x"}, wantErr: "unexpanded variable in dir"},
		{name: "unexpanded rc_file", host: "a", h: Host{RCFile: "${FOO}/rc"}, wantErr: "unexpanded variable in rc_file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateHost(tt.host, tt.h)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateOutput(t *testing.T) {
	for _, color := range []string{"", "auto", "always", "never"} {
		assert.NoError(t, validateOutput(OutputConfig{Color: color}), color)
	}
	assert.Error(t, validateOutput(OutputConfig{Color: "sometimes"}))
}
