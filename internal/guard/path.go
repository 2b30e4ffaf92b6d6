package guard

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// PathGuard confines candidate paths to a sandbox root and an extension
// allow-list.
type PathGuard struct {
	root string
	exts map[string]struct{}
}

// NewPathGuard returns a PathGuard for an already canonical root.
func NewPathGuard(root string, extensions []string) PathGuard {
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		exts[e] = struct{}{}
	}
	return PathGuard{root: root, exts: exts}
}

// Check canonicalizes candidate and decides whether it may be touched.
// On Allow, Resolved holds exactly one element: the canonical path.
//
// Relative candidates are anchored at the sandbox root. A candidate that
// does not exist yet is judged on its resolved parent chain; a trailing
// separator marks it as a directory to be created.
func (g PathGuard) Check(candidate string) Decision {
	if strings.TrimSpace(candidate) == "" {
		return Deny(ReasonInvalidPath, "empty path")
	}
	if strings.IndexByte(candidate, 0) >= 0 {
		return Deny(ReasonInvalidPath, "path contains a NUL byte")
	}
	if !utf8.ValidString(candidate) {
		return Deny(ReasonInvalidPath, "path is not valid UTF-8")
	}
	if hasInvisible(candidate) {
		return Deny(ReasonInvalidPath, "path contains invisible formatting characters")
	}

	sep := string(filepath.Separator)
	wantDir := strings.HasSuffix(candidate, sep)

	abs := candidate
	if !filepath.IsAbs(abs) {
		// Joined by hand: filepath.Join would Clean "link/.." lexically.
		abs = g.root + sep + abs
	}

	canon, err := canonicalize(abs)
	if err != nil {
		log.Debug("canonicalize failed: %v", err)
		return Deny(ReasonInvalidPath, "path could not be resolved")
	}
	if !g.within(canon) {
		log.Debug("outside sandbox: %s", canon)
		return Deny(ReasonOutsideSandbox, "path resolves outside the sandbox")
	}
	if canon == g.root {
		return Allow(canon)
	}

	rel := g.rel(canon)
	fi, err := os.Lstat(canon)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if wantDir {
			return Allow(canon)
		}
	case err != nil:
		log.Debug("lstat %s: %v", canon, err)
		return Deny(ReasonInvalidPath, "%s could not be inspected", rel)
	case fi.IsDir():
		return Allow(canon)
	case !fi.Mode().IsRegular():
		return Deny(ReasonInvalidPath, "%s is not a regular file", rel)
	}

	if _, ok := g.exts[filepath.Ext(canon)]; !ok {
		return Deny(ReasonDisallowedExtension, "%s does not have an allowed extension", rel)
	}
	return Allow(canon)
}

// within reports whether the canonical path p is the root or beneath it.
func (g PathGuard) within(p string) bool {
	if p == g.root {
		return true
	}
	prefix := g.root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(p, prefix)
}

// rel renders a contained canonical path relative to the root.
func (g PathGuard) rel(p string) string {
	r, err := filepath.Rel(g.root, p)
	if err != nil {
		return filepath.Base(p)
	}
	return r
}
