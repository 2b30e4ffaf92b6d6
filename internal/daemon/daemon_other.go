//go:build !unix

package daemon

import (
	"errors"
	"time"
)

// ErrNotRunning is returned by Stop when no server holds the PID file.
var ErrNotRunning = errors.New("dataworks is not running")

var errUnsupported = errors.New("background mode is only supported on unix")

// WritePID is a no-op; PID locking needs flock.
func WritePID() error { return nil }

// CleanupPID is a no-op.
func CleanupPID() {}

// IsRunning always reports false.
func IsRunning() (bool, int) { return false, 0 }

// Stop is unsupported.
func Stop(time.Duration) error { return errUnsupported }

// Daemonize is unsupported.
func Daemonize([]string) (int, error) { return 0, errUnsupported }
