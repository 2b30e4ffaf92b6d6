//go:build unix

package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/AgentShepherd/dataworks/internal/fileutil"
)

// ErrNotRunning is returned by Stop when no server holds the PID file.
var ErrNotRunning = errors.New("dataworks is not running")

// pidLockFile holds the open PID file to maintain the flock advisory lock.
// The lock is held for the lifetime of the server process.
var pidLockFile *os.File

// WritePID writes the current process ID to the PID file with an exclusive
// advisory lock (flock), so two servers cannot share a data directory. Call
// CleanupPID on shutdown.
func WritePID() error {
	path := pidFile()
	f, err := fileutil.SecureOpenFile(path, os.O_CREATE|os.O_WRONLY)
	if err != nil {
		return fmt.Errorf("open PID file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil { //nolint:gosec // Fd() fits in int on all supported platforms
		f.Close()
		return fmt.Errorf("another instance is running (flock %s): %w", path, err)
	}
	if err := f.Truncate(0); err != nil {
		f.Close()
		return fmt.Errorf("truncate PID file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d", os.Getpid()); err != nil {
		f.Close()
		return fmt.Errorf("write PID file: %w", err)
	}
	pidLockFile = f
	return nil
}

// CleanupPID releases the flock and removes the PID file.
func CleanupPID() {
	if pidLockFile != nil {
		pidLockFile.Close()
		pidLockFile = nil
	}
	_ = os.Remove(pidFile())
}

// IsRunning checks if the server is running by sending signal 0.
func IsRunning() (bool, int) {
	pid, err := ReadPID()
	if err != nil {
		return false, 0
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}

	if err := process.Signal(syscall.Signal(0)); err != nil {
		// Stale PID file
		_ = RemovePID() //nolint:errcheck // cleanup best effort
		return false, 0
	}

	return true, pid
}

// Stop stops the running server with SIGTERM, falling back to SIGKILL once
// timeout passes.
func Stop(timeout time.Duration) error {
	running, pid := IsRunning()
	if !running {
		return ErrNotRunning
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop dataworks: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
		if running, _ := IsRunning(); !running {
			return nil
		}
	}

	_ = process.Signal(syscall.SIGKILL)
	_ = RemovePID() //nolint:errcheck // cleanup best effort

	return nil
}

// forwardedEnv lists the variables a backgrounded server inherits: secrets,
// deployment overrides and outbound proxy settings.
var forwardedEnv = []string{
	"AIPROXY_TOKEN", "LLM_API_KEY", "DB_KEY",
	"DATA_DIR", "MODEL_NAME", "LLM_ENDPOINT", "PORT", "DEBUG",
	HomeEnv,
	"HTTP_PROXY", "http_proxy",
	"HTTPS_PROXY", "https_proxy",
	"NO_PROXY", "no_proxy",
}

// Daemonize re-executes the program with args in a new session, with output
// appended to LogFile, and returns the child's PID.
func Daemonize(args []string) (int, error) {
	logFile, err := fileutil.SecureOpenFile(LogFile(), os.O_CREATE|os.O_WRONLY|os.O_APPEND)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	executable, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("failed to get executable path: %w", err)
	}
	if !filepath.IsAbs(executable) {
		return 0, fmt.Errorf("executable path must be absolute: %s", executable)
	}

	cmd := exec.CommandContext(context.Background(), executable, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = nil

	// Minimal environment; git and npx need PATH and HOME
	cmd.Env = []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + os.Getenv("HOME"),
		"USER=" + os.Getenv("USER"),
		ChildEnv + "=1",
	}
	for _, key := range forwardedEnv {
		if v, ok := os.LookupEnv(key); ok {
			cmd.Env = append(cmd.Env, key+"="+v)
		}
	}

	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon: %w", err)
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}
