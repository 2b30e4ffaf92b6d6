// Package daemon manages the background server process: its data directory,
// PID lock and log file.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AgentShepherd/dataworks/internal/fileutil"
)

const (
	pidFileName = "dataworks.pid"
	logFileName = "dataworks.log"

	// HomeEnv overrides the data directory.
	HomeEnv = "DATAWORKS_HOME"
	// ChildEnv is set in the environment of a backgrounded server.
	ChildEnv = "DATAWORKS_DAEMON"
)

// DataDir returns the dataworks data directory and creates it if needed
func DataDir() string {
	dir := os.Getenv(HomeEnv)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = os.TempDir()
		}
		dir = filepath.Join(home, ".dataworks")
	}
	_ = fileutil.SecureMkdirAll(dir) //nolint:errcheck // best effort - dir may exist
	return dir
}

// pidFile returns the path to the PID file
func pidFile() string {
	return filepath.Join(DataDir(), pidFileName)
}

// LogFile returns the path to the log file
func LogFile() string {
	return filepath.Join(DataDir(), logFileName)
}

// LogFileDisplay returns a display-friendly log path using ~ for the home directory.
func LogFileDisplay() string {
	p := LogFile()
	if home, err := os.UserHomeDir(); err == nil {
		if rel, err := filepath.Rel(home, p); err == nil && !filepath.IsAbs(rel) && !strings.HasPrefix(rel, "..") {
			return "~/" + rel
		}
	}
	return p
}

// ReadPID reads the PID from the PID file
func ReadPID() (int, error) {
	data, err := os.ReadFile(pidFile())
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file content: %w", err)
	}

	// Linux caps PIDs at 2^22
	if pid < 1 || pid > 4194304 {
		return 0, fmt.Errorf("invalid PID value: %d", pid)
	}

	return pid, nil
}

// RemovePID removes the PID file
func RemovePID() error {
	return os.Remove(pidFile())
}

// IsChild reports whether this process was started by Daemonize.
func IsChild() bool {
	return os.Getenv(ChildEnv) == "1"
}
