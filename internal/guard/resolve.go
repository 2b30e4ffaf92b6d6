package guard

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// maxLinkHops bounds symlink expansion within one canonicalization.
const maxLinkHops = 255

var errTooManyLinks = errors.New("too many levels of symbolic links")

// canonicalize returns the absolute, symlink-free, dot-free form of p.
//
// Components are walked left to right against the real filesystem:
//   - "." is dropped
//   - ".." pops the resolved prefix, which is already symlink-free, so
//     "link/.." lands where the kernel would put it rather than where a
//     lexical Clean would
//   - a symlink (dangling or not) is replaced by its target and walking
//     continues through the target's components
//   - a missing component is kept as-is; later components are still looked
//     up, so a ".." that climbs back into an existing tree resumes real
//     resolution
//
// Non-existence is not an error. Permission and other lookup failures are,
// as is descending through a non-directory.
func canonicalize(p string) (string, error) {
	if !filepath.IsAbs(p) {
		return "", fmt.Errorf("path %q is not absolute", p)
	}

	sep := string(filepath.Separator)
	pending := splitPath(p)
	resolved := sep
	hops := 0
	leafIsFile := false

	for len(pending) > 0 {
		comp := pending[0]
		pending = pending[1:]
		if comp == "" {
			continue
		}
		if leafIsFile {
			return "", &fs.PathError{Op: "lstat", Path: filepath.Join(resolved, comp), Err: syscall.ENOTDIR}
		}
		switch comp {
		case ".":
			continue
		case "..":
			resolved = filepath.Dir(resolved)
			continue
		}

		next := filepath.Join(resolved, comp)
		fi, err := os.Lstat(next)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				resolved = next
				continue
			}
			return "", err
		}

		if fi.Mode()&fs.ModeSymlink == 0 {
			resolved = next
			leafIsFile = !fi.IsDir()
			continue
		}

		hops++
		if hops > maxLinkHops {
			return "", &fs.PathError{Op: "readlink", Path: next, Err: errTooManyLinks}
		}
		target, err := os.Readlink(next)
		if err != nil {
			return "", err
		}
		if filepath.IsAbs(target) {
			resolved = sep
		}
		pending = append(splitPath(target), pending...)
	}

	return resolved, nil
}

func splitPath(p string) []string {
	return strings.Split(filepath.ToSlash(p), "/")
}
