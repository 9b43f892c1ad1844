// Package logger provides a simple logging interface for sshwrap components.
// It allows packages to log debug, info, warn, and error messages without
// being coupled to a specific logging implementation.
//
// Loggers are namespaced ("sshwrap:debug:host", "sshwrap:verbose:pty",
// "sshwrap:audit"). Debug output for a namespace is enabled through the
// SSHWRAP_DEBUG environment variable, a comma-separated list of namespace
// patterns. A pattern matches its exact namespace, any namespace below it,
// or everything when it ends in "*".
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DebugEnv is the environment variable that enables debug namespaces.
const DebugEnv = "SSHWRAP_DEBUG"

// Logger defines the interface for logging operations.
// All methods accept a format string and arguments, similar to fmt.Printf.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

var (
	outputMu sync.RWMutex
	output   io.Writer = os.Stderr
)

// SetOutput redirects all env loggers created afterwards and returns the
// previous writer.
func SetOutput(w io.Writer) io.Writer {
	outputMu.Lock()
	defer outputMu.Unlock()
	prev := output
	output = w
	return prev
}

func currentOutput() io.Writer {
	outputMu.RLock()
	defer outputMu.RUnlock()
	return output
}

// envLogger implements Logger on top of a zerolog console writer.
// Debug messages are only printed when the namespace is enabled in SSHWRAP_DEBUG.
type envLogger struct {
	namespace string
	zl        zerolog.Logger
}

// NewEnvLogger creates a logger for the given namespace (e.g. "sshwrap:debug:host").
func NewEnvLogger(namespace string) Logger {
	w := zerolog.ConsoleWriter{
		Out:        currentOutput(),
		TimeFormat: time.RFC3339,
		NoColor:    true,
	}
	ctx := zerolog.New(w).With().Timestamp()
	if namespace != "" {
		ctx = ctx.Str("ns", namespace)
	}
	return &envLogger{namespace: namespace, zl: ctx.Logger()}
}

// Debugger returns the debug logger for a component.
func Debugger(component string) Logger {
	return NewEnvLogger("sshwrap:debug:" + component)
}

// Verbose returns the logger that traces raw child output for a component.
func Verbose(component string) Logger {
	return NewEnvLogger("sshwrap:verbose:" + component)
}

// Audit returns the logger that records login automation markers.
func Audit() Logger {
	return NewEnvLogger("sshwrap:audit")
}

func (l *envLogger) Debug(format string, args ...interface{}) {
	if Enabled(l.namespace) {
		l.zl.Debug().Msgf(format, args...)
	}
}

func (l *envLogger) Info(format string, args ...interface{}) {
	l.zl.Info().Msgf(format, args...)
}

func (l *envLogger) Warn(format string, args ...interface{}) {
	l.zl.Warn().Msgf(format, args...)
}

func (l *envLogger) Error(format string, args ...interface{}) {
	l.zl.Error().Msgf(format, args...)
}

// Enabled reports whether debug output is switched on for namespace.
func Enabled(namespace string) bool {
	env := os.Getenv(DebugEnv)
	if env == "" {
		return false
	}
	for _, p := range strings.Split(env, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if matchNamespace(p, namespace) {
			return true
		}
	}
	return false
}

func matchNamespace(pattern, namespace string) bool {
	if pattern == "*" || pattern == "1" || pattern == "true" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(namespace, strings.TrimSuffix(pattern, "*"))
	}
	return namespace == pattern || strings.HasPrefix(namespace, pattern+":")
}

// noopLogger implements Logger but discards all messages.
// Useful for testing or when logging is not desired.
type noopLogger struct{}

// Noop returns a logger that discards all messages.
func Noop() Logger {
	return &noopLogger{}
}

func (l *noopLogger) Debug(format string, args ...interface{}) {}
func (l *noopLogger) Info(format string, args ...interface{})  {}
func (l *noopLogger) Warn(format string, args ...interface{})  {}
func (l *noopLogger) Error(format string, args ...interface{}) {}

// LogMessage represents a captured log message.
type LogMessage struct {
	Level   string
	Message string
}

// BufferLogger captures log messages for testing.
// It is safe for use from the pty reader goroutine and test goroutines at once.
type BufferLogger struct {
	mu       sync.Mutex
	Messages []LogMessage
}

// NewBufferLogger creates a logger that captures messages for inspection.
func NewBufferLogger() *BufferLogger {
	return &BufferLogger{
		Messages: make([]LogMessage, 0),
	}
}

func (l *BufferLogger) add(level, format string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, LogMessage{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (l *BufferLogger) Debug(format string, args ...interface{}) { l.add("debug", format, args) }
func (l *BufferLogger) Info(format string, args ...interface{})  { l.add("info", format, args) }
func (l *BufferLogger) Warn(format string, args ...interface{})  { l.add("warn", format, args) }
func (l *BufferLogger) Error(format string, args ...interface{}) { l.add("error", format, args) }

// HasLevel returns true if any message was logged at the given level.
func (l *BufferLogger) HasLevel(level string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.Messages {
		if m.Level == level {
			return true
		}
	}
	return false
}

// Contains returns true if any captured message contains substr.
func (l *BufferLogger) Contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.Messages {
		if strings.Contains(m.Message, substr) {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the captured messages.
func (l *BufferLogger) Snapshot() []LogMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogMessage, len(l.Messages))
	copy(out, l.Messages)
	return out
}

// Clear removes all captured messages.
func (l *BufferLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = l.Messages[:0]
}

// defaultLogger is the package-level default logger.
var defaultLogger = NewEnvLogger("sshwrap")

// Default returns the default logger for the package.
func Default() Logger {
	return defaultLogger
}

// SetDefault sets the default logger for the package.
// This is useful for testing or to configure logging globally.
func SetDefault(l Logger) {
	defaultLogger = l
}
