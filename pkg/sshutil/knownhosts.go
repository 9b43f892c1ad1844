package sshutil

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rileyhilliard/sshwrap/internal/util"
	"golang.org/x/crypto/ssh/knownhosts"
)

// DefaultKnownHostsPath returns ~/.ssh/known_hosts.
func DefaultKnownHostsPath() string {
	return filepath.Join(homeDir(), ".ssh", "known_hosts")
}

// KnownHostsAddress renders host and port the way known_hosts stores them,
// e.g. "[example.com]:2222" for a non-default port.
func KnownHostsAddress(host string, port int) string {
	if port <= 0 {
		port = 22
	}
	return knownhosts.Normalize(net.JoinHostPort(host, strconv.Itoa(port)))
}

// RemoveHostKeyCommand returns the ssh-keygen invocation that deletes the
// stored key for host. file may be empty for the default known_hosts.
func RemoveHostKeyCommand(host string, port int, file string) string {
	cmd := "ssh-keygen -R " + util.QuoteIfNeeded(KnownHostsAddress(host, port))
	if file != "" && file != DefaultKnownHostsPath() {
		cmd += " -f " + util.QuoteIfNeeded(file)
	}
	return cmd
}

// KnownHostsLine returns line n (1-indexed) of a known_hosts file.
func KnownHostsLine(file string, n int) (string, error) {
	f, err := os.Open(expandPath(file))
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for i := 1; sc.Scan(); i++ {
		if i == n {
			return sc.Text(), nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("%s has fewer than %d lines", file, n)
}
