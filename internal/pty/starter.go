package pty

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
)

// Child is a started process attached to a terminal.
type Child interface {
	io.ReadWriter
	// Wait blocks until the process exits. A process terminated by a signal
	// reports that signal with code -1.
	Wait() (code int, signal int, err error)
	// Kill terminates the process immediately.
	Kill() error
	// Close releases the terminal.
	Close() error
}

// Starter spawns children on a terminal.
type Starter interface {
	Start(ctx context.Context, name string, args []string, env []string) (Child, error)
}

// DefaultStarter spawns real processes on a pseudo-terminal.
type DefaultStarter struct {
	Rows uint16
	Cols uint16
}

// Start implements Starter. env entries are appended to the current environment.
func (s DefaultStarter) Start(_ context.Context, name string, args []string, env []string) (Child, error) {
	cmd := exec.Command(name, args...)
	cmd.Env = append(os.Environ(), env...)

	rows, cols := s.Rows, s.Cols
	if rows == 0 {
		rows = 40
	}
	if cols == 0 {
		cols = 120
	}

	f, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: rows, Cols: cols})
	if err != nil {
		return nil, fmt.Errorf("start pty for %s: %w", name, err)
	}
	return &ptyChild{cmd: cmd, f: f}, nil
}

type ptyChild struct {
	cmd *exec.Cmd
	f   *os.File
}

func (c *ptyChild) Read(b []byte) (int, error) {
	n, err := c.f.Read(b)
	// Linux reports EIO on the master once the slave side is gone.
	if errors.Is(err, syscall.EIO) {
		err = io.EOF
	}
	return n, err
}

func (c *ptyChild) Write(b []byte) (int, error) {
	return c.f.Write(b)
}

func (c *ptyChild) Wait() (int, int, error) {
	err := c.cmd.Wait()
	if err == nil {
		return 0, 0, nil
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return -1, 0, err
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -1, int(ws.Signal()), nil
	}
	return exitErr.ExitCode(), 0, nil
}

func (c *ptyChild) Kill() error {
	if c.cmd.Process == nil {
		return nil
	}
	err := c.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (c *ptyChild) Close() error {
	return c.f.Close()
}

// Shell returns the user's default shell, falling back to /bin/sh.
func Shell() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}
