package dispatch

import (
	"errors"
	"fmt"
)

// Kind classifies a non-authorization task failure.
type Kind string

const (
	// KindValidation is a malformed task record or parameter.
	KindValidation Kind = "validation"
	// KindUnsupported is an unknown or deliberately unimplemented operation.
	KindUnsupported Kind = "unsupported"
	// KindNotFound is a missing input inside the sandbox.
	KindNotFound Kind = "not_found"
	// KindExecution is a handler failure after authorization.
	KindExecution Kind = "execution"
)

// TaskError is returned for every task failure that is not a deny.
type TaskError struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *TaskError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Kind, msg)
}

func (e *TaskError) Unwrap() error { return e.Err }

// Validation returns a KindValidation error.
func Validation(op, format string, args ...any) error {
	return &TaskError{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Unsupported returns a KindUnsupported error.
func Unsupported(op, format string, args ...any) error {
	return &TaskError{Kind: KindUnsupported, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// NotFound returns a KindNotFound error naming a sandbox-relative path.
func NotFound(op, rel string) error {
	return &TaskError{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf("%s does not exist", rel)}
}

// Execution wraps err as a KindExecution error.
func Execution(op, msg string, err error) error {
	return &TaskError{Kind: KindExecution, Op: op, Msg: msg, Err: err}
}

// KindOf returns the kind of err, or "" when err is not a TaskError.
func KindOf(err error) Kind {
	var te *TaskError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}
