// Package guard is the authorization boundary of the agent. Every task
// handler reaches the filesystem or runs a verb only after an Authorizer has
// produced an Allow decision for the exact paths and verb involved.
//
// The package performs filesystem metadata lookups (lstat, readlink) and
// nothing else: it never opens, reads, or writes file contents.
package guard

import "fmt"

// Reason identifies why a request was denied. The set is closed: callers may
// switch over AllReasons exhaustively.
type Reason string

const (
	// ReasonInvalidPath covers empty, malformed, and unresolvable paths,
	// including permission and other I/O errors during canonicalization.
	ReasonInvalidPath Reason = "invalid_path"
	// ReasonOutsideSandbox means the canonical path is not under the root.
	ReasonOutsideSandbox Reason = "outside_sandbox"
	// ReasonDisallowedExtension means a file's suffix is not in the allow-list.
	ReasonDisallowedExtension Reason = "disallowed_extension"
	// ReasonRestrictedOperation means the verb or task text matched a
	// restricted token.
	ReasonRestrictedOperation Reason = "restricted_operation"
	// ReasonFileTooLarge means the existing or planned size exceeds the ceiling.
	ReasonFileTooLarge Reason = "file_too_large"
)

// AllReasons lists every Reason a Deny can carry.
func AllReasons() []Reason {
	return []Reason{
		ReasonInvalidPath,
		ReasonOutsideSandbox,
		ReasonDisallowedExtension,
		ReasonRestrictedOperation,
		ReasonFileTooLarge,
	}
}

// Valid returns true if r is one of AllReasons.
func (r Reason) Valid() bool {
	switch r {
	case ReasonInvalidPath, ReasonOutsideSandbox, ReasonDisallowedExtension,
		ReasonRestrictedOperation, ReasonFileTooLarge:
		return true
	}
	return false
}

// Decision is the outcome of an authorization check.
//
// Detail is safe to show to an untrusted caller: it never contains absolute
// host paths. Resolved holds the canonical form of every authorized path, in
// request order, and is only set on Allow. Handlers must operate on Resolved,
// never on the raw candidates.
type Decision struct {
	Allowed  bool     `json:"allowed"`
	Reason   Reason   `json:"reason,omitempty"`
	Detail   string   `json:"detail,omitempty"`
	Resolved []string `json:"-"`
}

// Allow returns an Allow decision.
func Allow(resolved ...string) Decision {
	return Decision{Allowed: true, Resolved: resolved}
}

// Deny returns a Deny decision.
func Deny(reason Reason, format string, args ...any) Decision {
	return Decision{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Err returns nil for Allow and a *DenyError otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &DenyError{Reason: d.Reason, Detail: d.Detail}
}

func (d Decision) String() string {
	if d.Allowed {
		return "allow"
	}
	return fmt.Sprintf("deny(%s): %s", d.Reason, d.Detail)
}

// DenyError is the error form of a Deny decision.
type DenyError struct {
	Reason Reason
	Detail string
}

func (e *DenyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}
