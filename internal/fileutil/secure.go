// Package fileutil provides the only file operations task handlers use on
// authorized paths.
//
// Opens refuse to follow a symlink in the final component, so a link planted
// between authorization and use cannot redirect the access. Writes go to a
// temp file in the target directory and are renamed into place once
// complete, and every write is capped: content over the limit is discarded
// before the target is touched.
package fileutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrTooLarge is returned when content exceeds the caller's size limit.
var ErrTooLarge = errors.New("content exceeds size limit")

// ErrNotRegular is returned when an open resolves to something other than
// a regular file.
var ErrNotRegular = errors.New("not a regular file")

// OpenRead opens path for reading without following a final symlink and
// rejects anything but regular files.
func OpenRead(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|oNoFollow, 0)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrNotRegular)
	}
	return f, nil
}

// ReadFileLimited reads the whole file at path, failing with ErrTooLarge if it
// holds more than max bytes.
func ReadFileLimited(path string, max int64) ([]byte, error) {
	f, err := OpenRead(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, ErrTooLarge
	}
	return data, nil
}

// WriteFileLimited streams r into path and returns the number of bytes
// written. If r yields more than max bytes nothing is written and
// ErrTooLarge is returned. Missing parent directories are created.
func WriteFileLimited(path string, r io.Reader, max int64) (n int64, err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	n, err = io.Copy(tmp, io.LimitReader(r, max+1))
	if err != nil {
		return 0, err
	}
	if n > max {
		return 0, ErrTooLarge
	}
	if err = tmp.Chmod(0o644); err != nil {
		return 0, err
	}
	if err = tmp.Sync(); err != nil {
		return 0, err
	}
	if err = tmp.Close(); err != nil {
		return 0, err
	}
	// rename(2) replaces a symlink at path instead of writing through it.
	if err = os.Rename(tmp.Name(), path); err != nil {
		return 0, err
	}
	return n, nil
}

// WriteFile is WriteFileLimited for in-memory content.
func WriteFile(path string, data []byte, max int64) error {
	if int64(len(data)) > max {
		return ErrTooLarge
	}
	_, err := WriteFileLimited(path, bytes.NewReader(data), max)
	return err
}

// MkdirAll creates an output directory tree inside the sandbox.
func MkdirAll(path string) error {
	return os.MkdirAll(path, 0o755)
}

// SecureMkdirAll creates a directory tree with owner-only permissions (0700).
// Used for state the service keeps for itself, such as the audit database.
func SecureMkdirAll(path string) error {
	return os.MkdirAll(path, 0o700)
}

// SecureOpenFile opens a file the service owns (PID file, daemon log) with
// owner-only permissions, refusing to follow a final symlink.
func SecureOpenFile(path string, flag int) (*os.File, error) {
	return os.OpenFile(path, flag|oNoFollow, 0o600)
}
