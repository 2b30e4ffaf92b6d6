package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Level represents log level
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

var (
	globalLevel             = LevelInfo
	globalColored           = stderrIsTerminal()
	globalOut     io.Writer = os.Stderr
	globalMu      sync.RWMutex
)

var (
	styleTrace = lipgloss.NewStyle().Foreground(lipgloss.Color("#7F8C8D"))
	styleDebug = lipgloss.NewStyle().Foreground(lipgloss.Color("#5DADE2"))
	styleInfo  = lipgloss.NewStyle().Foreground(lipgloss.Color("#58D68D"))
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F4D03F"))
	styleError = lipgloss.NewStyle().Foreground(lipgloss.Color("#EC7063"))
	styleFaint = lipgloss.NewStyle().Faint(true)
)

func stderrIsTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd())) //nolint:gosec // Fd() fits in int on all supported platforms
}

// Logger provides leveled logging
type Logger struct {
	prefix string
}

// New creates a new logger with the given prefix
func New(prefix string) *Logger {
	return &Logger{prefix: prefix}
}

// Named returns a child logger whose prefix is "parent/name".
func (l *Logger) Named(name string) *Logger {
	return &Logger{prefix: l.prefix + "/" + name}
}

// SetGlobalLevel sets the global log level
func SetGlobalLevel(level Level) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLevel = level
}

// ParseLevel converts a string to a Level, returning an error if unrecognized.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q (valid: trace, debug, info, warn, error)", s)
}

// SetGlobalLevelFromString sets log level from string
func SetGlobalLevelFromString(level string) {
	if l, err := ParseLevel(level); err == nil {
		SetGlobalLevel(l)
	}
}

// SetColored enables or disables colored output
func SetColored(colored bool) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalColored = colored
}

// SetOutput redirects all loggers. It returns the previous writer so tests
// can restore it.
func SetOutput(w io.Writer) io.Writer {
	globalMu.Lock()
	defer globalMu.Unlock()
	prev := globalOut
	globalOut = w
	return prev
}

// Enabled reports whether messages at level would be written.
func Enabled(level Level) bool {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return level >= globalLevel
}

func (l *Logger) log(level Level, levelStr string, style lipgloss.Style, format string, args ...any) {
	globalMu.RLock()
	if level < globalLevel {
		globalMu.RUnlock()
		return
	}
	colored := globalColored
	out := globalOut
	globalMu.RUnlock()

	timestamp := time.Now().Format("15:04:05")
	msg := fmt.Sprintf(format, args...)

	if colored {
		label := style.Render("[" + levelStr + "]")
		fmt.Fprintf(out, "%s %s %s %s\n",
			styleFaint.Render(timestamp), label, styleFaint.Render("["+l.prefix+"]"), msg)
	} else {
		fmt.Fprintf(out, "%s [%s] [%s] %s\n",
			timestamp, levelStr, l.prefix, msg)
	}
}

// Trace logs a trace message (most verbose)
func (l *Logger) Trace(format string, args ...any) {
	l.log(LevelTrace, "TRACE", styleTrace, format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...any) {
	l.log(LevelDebug, "DEBUG", styleDebug, format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, "INFO", styleInfo, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, "WARN", styleWarn, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, "ERROR", styleError, format, args...)
}
