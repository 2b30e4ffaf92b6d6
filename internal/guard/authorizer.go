package guard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AgentShepherd/dataworks/internal/logger"
)

var log = logger.New("guard")

// Config is the complete input of an Authorizer. It is read once by New and
// never consulted again, so later changes to the caller's copy have no effect.
type Config struct {
	Root                 string
	AllowedExtensions    []string
	RestrictedOperations []string
	MaxFileSize          int64
}

// Request is one authorization query.
type Request struct {
	// Paths are the candidate paths, absolute or relative to the root.
	Paths []string
	// Verb is the declared action, e.g. "read" or "write".
	Verb string
	// TaskText is the raw, untrusted task description.
	TaskText string
	// PlannedWriteSize is the known size of an upcoming write; <= 0 if unknown.
	PlannedWriteSize int64
}

// Authorizer composes the operation, path and size guards. It holds no
// mutable state and is safe for concurrent use.
type Authorizer struct {
	cfg  Config
	path PathGuard
	op   OperationGuard
	size SizeGuard
}

// New validates cfg and canonicalizes the root, which must be an existing
// directory.
func New(cfg Config) (*Authorizer, error) {
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, errors.New("guard: sandbox root is empty")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("guard: sandbox root: %w", err)
	}
	root, err = canonicalize(root)
	if err != nil {
		return nil, fmt.Errorf("guard: sandbox root: %w", err)
	}
	fi, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("guard: sandbox root: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("guard: sandbox root %s is not a directory", root)
	}

	if len(cfg.AllowedExtensions) == 0 {
		return nil, errors.New("guard: no allowed extensions")
	}
	exts := make([]string, 0, len(cfg.AllowedExtensions))
	for _, e := range cfg.AllowedExtensions {
		if len(e) < 2 || e[0] != '.' || strings.ContainsAny(e[1:], `./\`) {
			return nil, fmt.Errorf("guard: invalid extension %q (want a leading dot, e.g. \".txt\")", e)
		}
		exts = append(exts, e)
	}

	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("guard: max file size must be positive, got %d", cfg.MaxFileSize)
	}

	if hasBlank(cfg.RestrictedOperations) {
		return nil, errors.New("guard: restricted operations contain an empty token")
	}
	op := NewOperationGuard(cfg.RestrictedOperations)

	a := &Authorizer{
		cfg: Config{
			Root:                 root,
			AllowedExtensions:    exts,
			RestrictedOperations: op.Tokens(),
			MaxFileSize:          cfg.MaxFileSize,
		},
		path: NewPathGuard(root, exts),
		op:   op,
		size: NewSizeGuard(cfg.MaxFileSize),
	}
	log.Debug("sandbox root %s, %d extensions, %d restricted tokens, max %d bytes",
		root, len(exts), len(op.tokens), cfg.MaxFileSize)
	return a, nil
}

// Authorize evaluates req. The operation check runs first, then PathGuard
// and SizeGuard for each path in order. The first Deny is returned.
// On Allow, Resolved holds the canonical form of every path in req.Paths.
func (a *Authorizer) Authorize(req Request) Decision {
	if d := a.op.Check(req.TaskText, req.Verb); !d.Allowed {
		return a.deny(req, d)
	}

	resolved := make([]string, 0, len(req.Paths))
	for _, p := range req.Paths {
		d := a.path.Check(p)
		if !d.Allowed {
			return a.deny(req, d)
		}
		canon := d.Resolved[0]
		if d = a.size.Check(canon, req.PlannedWriteSize); !d.Allowed {
			d.Detail = a.Relative(canon) + ": " + d.Detail
			return a.deny(req, d)
		}
		resolved = append(resolved, canon)
	}

	if logger.Enabled(logger.LevelDebug) {
		log.Debug("allow verb=%q paths=%v", req.Verb, resolved)
	}
	return Allow(resolved...)
}

func (a *Authorizer) deny(req Request, d Decision) Decision {
	log.Warn("deny verb=%q reason=%s: %s", req.Verb, d.Reason, d.Detail)
	return d
}

// Root returns the canonical sandbox root.
func (a *Authorizer) Root() string { return a.cfg.Root }

// MaxFileSize returns the byte ceiling.
func (a *Authorizer) MaxFileSize() int64 { return a.cfg.MaxFileSize }

// Config returns a copy of the effective configuration.
func (a *Authorizer) Config() Config {
	c := a.cfg
	c.AllowedExtensions = append([]string(nil), c.AllowedExtensions...)
	c.RestrictedOperations = append([]string(nil), c.RestrictedOperations...)
	return c
}

// Relative renders a canonical path for display: relative to the root when
// contained, otherwise just its base name.
func (a *Authorizer) Relative(canonical string) string {
	if canonical == a.cfg.Root {
		return "."
	}
	if !a.path.within(canonical) {
		return filepath.Base(canonical)
	}
	return a.path.rel(canonical)
}

func hasBlank(ss []string) bool {
	for _, s := range ss {
		if strings.TrimSpace(foldText(s)) == "" {
			return true
		}
	}
	return false
}
