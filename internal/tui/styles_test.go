package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

// These tests modify global state (plainMode, stdout) and must not run in parallel.

func enablePlainMode(t *testing.T) {
	t.Helper()
	SetPlainMode(true)
	t.Cleanup(func() { SetPlainMode(false) })
}

func captureStdout(t *testing.T) (out, errOut *bytes.Buffer) {
	t.Helper()
	out, errOut = &bytes.Buffer{}, &bytes.Buffer{}
	prevOut, prevErr := stdout, stderr
	stdout, stderr = out, errOut
	t.Cleanup(func() { stdout, stderr = prevOut, prevErr })
	return out, errOut
}

func TestPrefix_PlainMode(t *testing.T) {
	enablePlainMode(t)
	if got := Prefix(); got != "[dataworks]" {
		t.Errorf("Prefix() = %q", got)
	}
}

func TestDecisionBadge_PlainMode(t *testing.T) {
	enablePlainMode(t)

	tests := []struct {
		allowed bool
		reason  string
		want    string
	}{
		{true, "", "[ALLOW]"},
		{false, "outside_sandbox", "[DENY outside_sandbox]"},
		{false, "file_too_large", "[DENY file_too_large]"},
	}
	for _, tt := range tests {
		if got := DecisionBadge(tt.allowed, tt.reason); got != tt.want {
			t.Errorf("DecisionBadge(%v, %q) = %q, want %q", tt.allowed, tt.reason, got, tt.want)
		}
	}
}

func TestSeparator_PlainMode(t *testing.T) {
	enablePlainMode(t)

	if got := Separator(""); got != "---" {
		t.Errorf("Separator(\"\") = %q", got)
	}
	if got := Separator("Sandbox"); got != "--- Sandbox ---" {
		t.Errorf("Separator(\"Sandbox\") = %q", got)
	}
}

func TestFaint_PlainMode(t *testing.T) {
	enablePlainMode(t)
	if got := Faint("hello"); got != "hello" {
		t.Errorf("Faint = %q", got)
	}
}

func TestPrint_PlainMode(t *testing.T) {
	enablePlainMode(t)
	out, errOut := captureStdout(t)

	PrintSuccess("done")
	PrintWarning("careful")
	PrintInfo("note")
	PrintError("broken")

	want := "[dataworks] OK: done\n[dataworks] WARNING: careful\n[dataworks] note\n"
	if out.String() != want {
		t.Errorf("stdout = %q, want %q", out, want)
	}
	if errOut.String() != "[dataworks] ERROR: broken\n" {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestSetPlainMode_Overrides(t *testing.T) {
	SetPlainMode(false)
	if IsPlainMode() {
		t.Error("IsPlainMode after SetPlainMode(false)")
	}
	SetPlainMode(true)
	t.Cleanup(func() { SetPlainMode(false) })
	if !IsPlainMode() {
		t.Error("IsPlainMode after SetPlainMode(true)")
	}
	// Styles render without escape codes once the ASCII profile is set.
	if got := StyleError.Render("x"); got != "x" {
		t.Errorf("styled render in plain mode = %q", got)
	}
}

func TestAlignColumns(t *testing.T) {
	enablePlainMode(t)
	plain := lipgloss.NewStyle()

	got := AlignColumns([][2]string{
		{"root", "/data"},
		{"max_file_size", "100 MiB"},
	}, "  ", 2, plain, plain)

	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	if strings.Index(lines[0], "/data") != strings.Index(lines[1], "100 MiB") {
		t.Errorf("columns not aligned:\n%s", got)
	}
	if AlignColumns(nil, "", 1, plain, plain) != "" {
		t.Error("empty rows should render nothing")
	}
}
