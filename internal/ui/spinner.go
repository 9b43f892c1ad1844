package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// SpinnerState is where a spinner is in its life.
type SpinnerState int

const (
	SpinnerPending SpinnerState = iota
	SpinnerInProgress
	SpinnerSuccess
	SpinnerFailed
	SpinnerSkipped
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

const spinnerTick = 80 * time.Millisecond

// Spinner animates one line on stderr while a connection or transfer runs,
// then replaces it with a status symbol and the elapsed time.
type Spinner struct {
	mu      sync.Mutex
	label   string
	detail  string
	state   SpinnerState
	frame   int
	started time.Time
	write   func(string)
	drawn   int // runes on the current line

	stop chan struct{}
	done chan struct{}
}

// NewSpinner returns a pending spinner that draws on stderr, leaving stdout
// to the remote command.
func NewSpinner(label string) *Spinner {
	return NewSpinnerTo(label, os.Stderr)
}

// NewSpinnerTo returns a pending spinner that draws on w.
func NewSpinnerTo(label string, w io.Writer) *Spinner {
	return &Spinner{
		label: label,
		write: func(s string) { _, _ = io.WriteString(w, s) },
	}
}

// SetOutput replaces where the spinner draws.
func (s *Spinner) SetOutput(fn func(string)) {
	s.mu.Lock()
	s.write = fn
	s.mu.Unlock()
}

// Start begins animating. Starting a running spinner does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return
	}
	s.state = SpinnerInProgress
	s.started = time.Now()
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.drawLocked()
	stop, done := s.stop, s.done
	s.mu.Unlock()

	go s.loop(stop, done)
}

func (s *Spinner) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	tick := time.NewTicker(spinnerTick)
	defer tick.Stop()

	for {
		select {
		case <-stop:
			return
		case <-tick.C:
			s.mu.Lock()
			s.frame = (s.frame + 1) % len(spinnerFrames)
			s.drawLocked()
			s.mu.Unlock()
		}
	}
}

// Stop halts the animation and leaves the state alone.
func (s *Spinner) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop = nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Success finishes with a check mark.
func (s *Spinner) Success() { s.finish(SpinnerSuccess) }

// SuccessWith finishes with a check mark and detail after the label.
func (s *Spinner) SuccessWith(detail string) {
	s.mu.Lock()
	s.detail = detail
	s.mu.Unlock()
	s.finish(SpinnerSuccess)
}

// Fail finishes with a cross.
func (s *Spinner) Fail() { s.finish(SpinnerFailed) }

// Skip finishes with the skipped symbol.
func (s *Spinner) Skip() { s.finish(SpinnerSkipped) }

func (s *Spinner) finish(state SpinnerState) {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state

	symbol, color := SymbolPending, ColorMuted
	switch state {
	case SpinnerSuccess:
		symbol, color = SymbolComplete, ColorSuccess
	case SpinnerFailed:
		symbol, color = SymbolFail, ColorError
	case SpinnerSkipped:
		symbol, color = SymbolSkipped, ColorWarning
	}

	label := s.label
	if s.detail != "" {
		label += " " + lipgloss.NewStyle().Foreground(ColorSecondary).Render(s.detail)
	}
	muted := lipgloss.NewStyle().Foreground(ColorMuted)

	s.clearLocked()
	s.write(fmt.Sprintf("%s %s %s\n",
		lipgloss.NewStyle().Foreground(color).Render(symbol),
		label,
		muted.Render(formatDuration(time.Since(s.started)))))
}

func (s *Spinner) drawLocked() {
	color := GradientColors[(s.frame/2)%len(GradientColors)]
	line := fmt.Sprintf("%s %s...", lipgloss.NewStyle().Foreground(color).Render(spinnerFrames[s.frame]), s.label)

	s.clearLocked()
	s.write("\r" + line)
	s.drawn = len([]rune(line))
}

func (s *Spinner) clearLocked() {
	if s.drawn > 0 {
		s.write("\r" + strings.Repeat(" ", s.drawn) + "\r")
		s.drawn = 0
	}
}

// State returns the current state.
func (s *Spinner) State() SpinnerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Elapsed is the time since Start, or zero before it.
func (s *Spinner) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started.IsZero() {
		return 0
	}
	return time.Since(s.started)
}

func (s *Spinner) Label() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.label
}

func (s *Spinner) SetLabel(label string) {
	s.mu.Lock()
	s.label = label
	s.mu.Unlock()
}

// formatDuration renders d as "0.05s" under a tenth of a second, else "1.2s".
func formatDuration(d time.Duration) string {
	if secs := d.Seconds(); secs >= 0.1 {
		return fmt.Sprintf("%.1fs", secs)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}
