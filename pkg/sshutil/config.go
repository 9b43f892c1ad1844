package sshutil

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// SSHHostEntry represents a parsed host entry from SSH config.
type SSHHostEntry struct {
	Alias        string // The Host pattern (alias)
	Hostname     string // The HostName value (actual host to connect to)
	User         string
	Port         string
	IdentityFile string
}

// Description returns a user-friendly description of the host.
func (h SSHHostEntry) Description() string {
	parts := []string{}

	if h.Hostname != "" && h.Hostname != h.Alias {
		parts = append(parts, h.Hostname)
	}
	if h.User != "" {
		parts = append(parts, "user: "+h.User)
	}
	if h.Port != "" && h.Port != "22" {
		parts = append(parts, "port: "+h.Port)
	}

	if len(parts) == 0 {
		return h.Alias
	}
	return strings.Join(parts, ", ")
}

// PortNumber returns Port as an int, 0 when unset or malformed.
func (h SSHHostEntry) PortNumber() int {
	p, err := strconv.Atoi(h.Port)
	if err != nil {
		return 0
	}
	return p
}

// DefaultConfigPath returns ~/.ssh/config.
func DefaultConfigPath() string {
	return filepath.Join(homeDir(), ".ssh", "config")
}

// ParseSSHConfig parses ~/.ssh/config and returns all concrete host entries.
func ParseSSHConfig() ([]SSHHostEntry, error) {
	return ParseSSHConfigFile(DefaultConfigPath())
}

// ParseSSHConfigFile parses the specified SSH config file.
// Wildcard patterns are skipped; entries are sorted by alias.
func ParseSSHConfigFile(configPath string) ([]SSHHostEntry, error) {
	cfg, _, err := decodeConfig(configPath)
	if err != nil || cfg == nil {
		return nil, err
	}

	var hosts []SSHHostEntry
	seen := make(map[string]bool)

	for _, host := range cfg.Hosts {
		for _, pattern := range host.Patterns {
			alias := pattern.String()
			if strings.ContainsAny(alias, "*?") || seen[alias] {
				continue
			}
			seen[alias] = true
			hosts = append(hosts, entryFor(cfg, alias))
		}
	}

	sort.Slice(hosts, func(i, j int) bool {
		return hosts[i].Alias < hosts[j].Alias
	})
	return hosts, nil
}

// LookupHost resolves alias against the config file, wildcard blocks included.
// found is false when the file sets nothing for the alias. matchLine is the
// first Match directive, which hides later entries from the parser.
func LookupHost(configPath, alias string) (entry SSHHostEntry, found bool, matchLine int, err error) {
	cfg, matchLine, err := decodeConfig(configPath)
	if err != nil || cfg == nil {
		return SSHHostEntry{Alias: alias}, false, matchLine, err
	}

	entry = entryFor(cfg, alias)
	found = entry.Hostname != "" || entry.User != "" || entry.Port != "" || entry.IdentityFile != ""
	return entry, found, matchLine, nil
}

func entryFor(cfg *ssh_config.Config, alias string) SSHHostEntry {
	entry := SSHHostEntry{Alias: alias}
	if hostname, _ := cfg.Get(alias, "HostName"); hostname != "" {
		entry.Hostname = hostname
	}
	if user, _ := cfg.Get(alias, "User"); user != "" {
		entry.User = user
	}
	if port, _ := cfg.Get(alias, "Port"); port != "" {
		entry.Port = port
	}
	if identity, _ := cfg.Get(alias, "IdentityFile"); identity != "" {
		entry.IdentityFile = expandPath(identity)
	}
	return entry
}

// decodeConfig returns a nil config without error when the file is missing.
func decodeConfig(configPath string) (*ssh_config.Config, int, error) {
	content, matchLine, err := preprocessSSHConfig(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, err
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, matchLine, err
	}
	return cfg, matchLine, nil
}

// preprocessSSHConfig returns content up to the first Match directive, which
// kevinburke/ssh_config cannot parse, and that directive's 1-indexed line.
func preprocessSSHConfig(configPath string) ([]byte, int, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	var result []string
	matchLine := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), "match ") {
			matchLine = i + 1
			break
		}
		result = append(result, line)
	}

	return []byte(strings.Join(result, "\n")), matchLine, nil
}
