// Package types defines common type-safe enums used across the codebase.
package types

import "strings"

// LogLevel is a configured log verbosity.
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Valid returns true if the LogLevel is a known valid value.
func (l LogLevel) Valid() bool {
	switch l {
	case LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	}
	return false
}

// Phase groups task operations the way the catalog numbers them:
// A-codes are data chores, B-codes are business automations.
type Phase string

const (
	PhaseA       Phase = "A"
	PhaseB       Phase = "B"
	PhaseUnknown Phase = ""
)

// PhaseOf returns the phase of an operation code such as "A3" or "b10".
func PhaseOf(operation string) Phase {
	op := strings.ToUpper(strings.TrimSpace(operation))
	switch {
	case strings.HasPrefix(op, "A"):
		return PhaseA
	case strings.HasPrefix(op, "B"):
		return PhaseB
	}
	return PhaseUnknown
}

// Verb is the declared action of a task.
type Verb string

// Verbs used by the operation catalog.
const (
	VerbRead     Verb = "read"
	VerbWrite    Verb = "write"
	VerbFetch    Verb = "fetch"
	VerbQuery    Verb = "query"
	VerbConvert  Verb = "convert"
	VerbClone    Verb = "clone"
	VerbPrettify Verb = "prettify"
)

// IsWrite reports whether the verb produces output files.
func (v Verb) IsWrite() bool {
	return v != VerbRead && v != ""
}
