package config

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ExpandTilde replaces ~ or ~/path with the user's home directory.
// Does not support ~username syntax. Use this for LOCAL paths only; remote
// paths keep ~ for the remote shell.
func ExpandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}

// Expand replaces variables in a local string:
//   - ${PROJECT} - git repo name or directory name
//   - ${USER}    - current username
//   - ${HOME}    - local home directory
//   - ${BRANCH}  - current git branch, sanitized for filesystem safety
//
// It does not expand ~; see ExpandTilde.
func Expand(s string) string {
	return expandVars(s, getHome)
}

// ExpandRemote is Expand for paths on the remote host: ${HOME} becomes ~ so
// the remote shell expands it, and ~ is left alone.
func ExpandRemote(s string) string {
	return expandVars(s, func() string { return "~" })
}

// expandVars substitutes the variables present in s, computing each value
// only when needed.
func expandVars(s string, home func() string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	vars := []struct {
		name  string
		value func() string
	}{
		{"${PROJECT}", getProject},
		{"${USER}", getUser},
		{"${HOME}", home},
		{"${BRANCH}", getBranch},
	}
	for _, v := range vars {
		if strings.Contains(s, v.name) {
			s = strings.ReplaceAll(s, v.name, v.value())
		}
	}
	return s
}

// ExpandHost expands variables in a Host configuration.
// Dir and RCFile are remote paths; KeyFile and ControlPersistDir are local.
func ExpandHost(h Host) Host {
	h.Dir = ExpandRemote(h.Dir)
	h.RCFile = ExpandRemote(h.RCFile)
	h.KeyFile = ExpandTilde(Expand(h.KeyFile))
	h.ControlPersistDir = ExpandTilde(Expand(h.ControlPersistDir))
	return h
}

// getProject returns the git repo name, falling back to the directory name.
func getProject() string {
	if name := gitOutput("remote", "get-url", "origin"); name != "" {
		return extractRepoName(name)
	}
	if top := gitOutput("rev-parse", "--show-toplevel"); top != "" {
		return filepath.Base(top)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "project"
	}
	return filepath.Base(cwd)
}

// extractRepoName parses the repo name from git@host:user/repo.git or
// https://host/user/repo.git style URLs.
func extractRepoName(url string) string {
	if i := strings.LastIndex(url, ":"); i >= 0 && !strings.Contains(url, "://") {
		url = url[i+1:]
	}
	return strings.TrimSuffix(filepath.Base(url), ".git")
}

func getUser() string {
	for _, key := range []string{"USER", "LOGNAME", "USERNAME"} {
		if u := os.Getenv(key); u != "" {
			return u
		}
	}
	return "user"
}

func getHome() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "~"
}

// getBranch returns the current git branch, or HEAD when detached or outside
// a repository.
func getBranch() string {
	branch := gitOutput("rev-parse", "--abbrev-ref", "HEAD")
	if branch == "" {
		return "HEAD"
	}
	return sanitizeBranch(branch)
}

func gitOutput(args ...string) string {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// sanitizeBranch replaces characters unsafe for filesystems with hyphens.
func sanitizeBranch(branch string) string {
	return strings.NewReplacer(
		"/", "-", "\\", "-", ":", "-", "*", "-", "?", "-",
		"\"", "-", "<", "-", ">", "-", "|", "-",
	).Replace(branch)
}
