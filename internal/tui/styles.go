// Package tui renders styled command-line output. Styling is dropped
// entirely in plain mode: NO_COLOR, --no-color, or a non-terminal stdout.
package tui

import (
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// plainMode disables all styling: no colors, no icons, no boxes.
var (
	plainMode bool
	plainOnce sync.Once
	plainMu   sync.RWMutex
)

// initPlainMode auto-detects plain mode from environment on first call.
// NO_COLOR wins over TTY detection.
func initPlainMode() {
	plainOnce.Do(func() {
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			setPlain(true)
			return
		}
		if !term.IsTerminal(int(os.Stdout.Fd())) { //nolint:gosec // Fd() fits in int on all supported platforms
			setPlain(true)
		}
	})
}

func setPlain(plain bool) {
	plainMode = plain
	if plain {
		lipgloss.SetColorProfile(termenv.Ascii)
	} else {
		lipgloss.SetColorProfile(termenv.EnvColorProfile())
	}
}

// SetPlainMode explicitly enables or disables plain mode.
// Call this early (e.g. when parsing --no-color) before any output.
func SetPlainMode(plain bool) {
	plainMu.Lock()
	defer plainMu.Unlock()
	setPlain(plain)
	// Mark as initialized so auto-detect doesn't override
	plainOnce.Do(func() {})
}

// IsPlainMode returns true if styling is disabled.
func IsPlainMode() bool {
	initPlainMode()
	plainMu.RLock()
	defer plainMu.RUnlock()
	return plainMode
}

// Color palette. Adapts to light and dark terminals.
var (
	ColorPrimary = lipgloss.AdaptiveColor{Light: "#1F6F8B", Dark: "#4FB3BF"} // Teal
	ColorAccent  = lipgloss.AdaptiveColor{Light: "#3E5C76", Dark: "#9CC3D5"} // Slate
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#81C784"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#E57373"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFD54F"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
)

// Reusable styles.
var (
	StyleTitle   = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning)
	StyleInfo    = lipgloss.NewStyle().Foreground(ColorAccent)
	StyleMuted   = lipgloss.NewStyle().Foreground(ColorMuted)
	StyleBold    = lipgloss.NewStyle().Bold(true)
	StyleCommand = lipgloss.NewStyle().Foreground(ColorPrimary)

	stylePrefix = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
)

// Prefix returns the branded [dataworks] prefix string.
func Prefix() string {
	if IsPlainMode() {
		return "[dataworks]"
	}
	return stylePrefix.Render("[dataworks]")
}

// DecisionBadge renders an authorization outcome: "ALLOW", or "DENY" with
// the reason code.
func DecisionBadge(allowed bool, reason string) string {
	label := "ALLOW"
	style, icon := StyleSuccess, IconCheck
	if !allowed {
		label = "DENY " + reason
		style, icon = StyleError, IconBlock
	}
	if IsPlainMode() {
		return "[" + label + "]"
	}
	return style.Render(icon + " " + label)
}

// Separator returns a section separator bar.
func Separator(title string) string {
	if IsPlainMode() {
		if title == "" {
			return "---"
		}
		return "--- " + title + " ---"
	}
	bar := StyleMuted.Render("━━━━━━━━━━━━━━━━━━━━━━━━")
	if title == "" {
		return bar
	}
	return StyleInfo.Render("▸▸ ") + StyleBold.Render(title) + " " + bar
}

var styleFaint = lipgloss.NewStyle().Faint(true)

// Faint returns text with faint/dim formatting.
func Faint(text string) string {
	if IsPlainMode() {
		return text
	}
	return styleFaint.Render(text)
}
