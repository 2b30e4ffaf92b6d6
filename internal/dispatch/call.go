package dispatch

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/AgentShepherd/dataworks/internal/guard"
	"github.com/AgentShepherd/dataworks/internal/types"
)

// Call is what a handler receives: the task, and the canonical form of every
// path the dispatcher authorized for it.
type Call struct {
	RequestID string
	Task      *Task

	// Text is the original task description; empty for direct executions.
	Text string

	paths map[string]string
	d     *Dispatcher
}

// Path returns the canonical path bound to role, or "" if none was bound.
func (c *Call) Path(role string) string {
	return c.paths[role]
}

// Rel renders a canonical path relative to the sandbox root for messages.
func (c *Call) Rel(canonical string) string {
	return c.d.auth.Relative(canonical)
}

// MaxFileSize returns the byte ceiling every read and write is held to.
func (c *Call) MaxFileSize() int64 {
	return c.d.auth.MaxFileSize()
}

// Resolve authorizes paths discovered while the handler runs, such as the
// results of a directory listing. It returns their canonical forms or the
// deny as an error.
func (c *Call) Resolve(ctx context.Context, verb types.Verb, paths ...string) ([]string, error) {
	req := guard.Request{Paths: paths, Verb: string(verb)}
	dec := c.d.authorize(ctx, c.RequestID, c.Task.Operation, req)
	if !dec.Allowed {
		return nil, dec.Err()
	}
	return dec.Resolved, nil
}

// RequireExisting returns a NotFound error when the path bound to role does
// not exist.
func (c *Call) RequireExisting(role string) (string, error) {
	p := c.paths[role]
	if p == "" {
		return "", Validation(c.Task.Operation, "no %s path", role)
	}
	if _, err := os.Lstat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", NotFound(c.Task.Operation, c.Rel(p))
		}
		return "", Execution(c.Task.Operation, "stat "+c.Rel(p), err)
	}
	return p, nil
}
