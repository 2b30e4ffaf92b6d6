package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"trace", LevelTrace, false},
		{"debug", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"", LevelInfo, false},       // empty defaults to info
		{"TRACE", LevelTrace, false}, // case-insensitive
		{"Debug", LevelDebug, false},
		{"invalid", 0, true},
		{"fatal", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseLevel(%q) should return error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseLevel(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func captureOutput(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	SetColored(false)
	SetGlobalLevel(level)
	t.Cleanup(func() {
		SetOutput(prev)
		SetGlobalLevel(LevelInfo)
	})
	return &buf
}

func TestLoggerLevelFiltering(t *testing.T) {
	buf := captureOutput(t, LevelWarn)
	l := New("guard")

	l.Info("hidden %d", 1)
	l.Warn("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "[WARN] [guard] shown 2") {
		t.Errorf("warn message missing or malformed: %q", out)
	}
}

func TestLoggerNamed(t *testing.T) {
	buf := captureOutput(t, LevelDebug)
	New("api").Named("run").Debug("ok")

	if !strings.Contains(buf.String(), "[api/run] ok") {
		t.Errorf("named prefix missing: %q", buf.String())
	}
}

func TestEnabled(t *testing.T) {
	captureOutput(t, LevelInfo)
	if Enabled(LevelDebug) {
		t.Error("debug should be disabled at info level")
	}
	if !Enabled(LevelError) {
		t.Error("error should be enabled at info level")
	}
}
