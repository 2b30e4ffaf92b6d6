package tui

import (
	"fmt"
	"io"
	"os"
)

// stdout and stderr are swapped out in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// PrintSuccess prints a styled success message with the [dataworks] prefix.
func PrintSuccess(msg string) {
	if IsPlainMode() {
		fmt.Fprintf(stdout, "[dataworks] OK: %s\n", msg)
		return
	}
	fmt.Fprintf(stdout, "%s %s %s\n", Prefix(), StyleSuccess.Render(IconCheck), msg)
}

// PrintError prints a styled error message to stderr.
func PrintError(msg string) {
	if IsPlainMode() {
		fmt.Fprintf(stderr, "[dataworks] ERROR: %s\n", msg)
		return
	}
	fmt.Fprintf(stderr, "%s %s %s\n", Prefix(), StyleError.Render(IconCross), msg)
}

// PrintWarning prints a styled warning message.
func PrintWarning(msg string) {
	if IsPlainMode() {
		fmt.Fprintf(stdout, "[dataworks] WARNING: %s\n", msg)
		return
	}
	fmt.Fprintf(stdout, "%s %s %s\n", Prefix(), StyleWarning.Render(IconWarning), msg)
}

// PrintInfo prints a styled info message.
func PrintInfo(msg string) {
	if IsPlainMode() {
		fmt.Fprintf(stdout, "[dataworks] %s\n", msg)
		return
	}
	fmt.Fprintf(stdout, "%s %s %s\n", Prefix(), StyleInfo.Render(IconInfo), msg)
}
