//go:build unix

package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestWritePID_ExclusiveLock(t *testing.T) {
	// The flock logic directly; WritePID holds process-global state.
	path := filepath.Join(t.TempDir(), "test.pid")

	f1, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f1.Close()

	if err := unix.Flock(int(f1.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		t.Fatalf("first flock: %v", err)
	}

	f2, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatalf("open second: %v", err)
	}
	defer f2.Close()

	if err := unix.Flock(int(f2.Fd()), unix.LOCK_EX|unix.LOCK_NB); err == nil {
		t.Fatal("second flock should fail when first holds lock")
	}

	unix.Flock(int(f1.Fd()), unix.LOCK_UN)

	if err := unix.Flock(int(f2.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		t.Fatalf("flock after release should succeed: %v", err)
	}
}

func TestWritePID_Lifecycle(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())

	if running, _ := IsRunning(); running {
		t.Fatal("IsRunning before WritePID")
	}
	if err := Stop(time.Second); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Stop = %v, want ErrNotRunning", err)
	}

	if err := WritePID(); err != nil {
		t.Fatalf("WritePID: %v", err)
	}
	pid, err := ReadPID()
	if err != nil || pid != os.Getpid() {
		t.Fatalf("ReadPID = %d, %v", pid, err)
	}
	if running, got := IsRunning(); !running || got != os.Getpid() {
		t.Errorf("IsRunning = %v, %d", running, got)
	}
	info, err := os.Stat(pidFile())
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		t.Errorf("PID file mode = %o", info.Mode().Perm())
	}

	CleanupPID()
	if _, err := os.Stat(pidFile()); !os.IsNotExist(err) {
		t.Errorf("PID file left behind: %v", err)
	}
}

func TestReadPID_Invalid(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())

	tests := []struct {
		name    string
		content string
	}{
		{"garbage", "abc"},
		{"zero", "0"},
		{"negative", "-5"},
		{"too large", strconv.Itoa(1 << 23)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := os.WriteFile(pidFile(), []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := ReadPID(); err == nil {
				t.Errorf("ReadPID(%q) succeeded", tt.content)
			}
		})
	}
}

func TestDataDir_Override(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	t.Setenv(HomeEnv, dir)

	if got := DataDir(); got != dir {
		t.Errorf("DataDir = %q, want %q", got, dir)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("DataDir not created: %v", err)
	}
	if got := LogFile(); got != filepath.Join(dir, logFileName) {
		t.Errorf("LogFile = %q", got)
	}
}
