// Package completion provides CLI tab-completion for dataworks.
//
// The binary itself handles completions: when invoked with COMP_LINE set
// (by the shell), it outputs matching completions and exits.
// Works across bash, zsh, and fish with a one-time install.
package completion

import (
	"os"

	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/install"
	"github.com/posener/complete/v2/predict"
)

const binary = "dataworks"

// operationCodes lists every catalog code, for `run --op`.
var operationCodes = predict.Set{
	"A1", "A2", "A3", "A4", "A5", "A6", "A7", "A8", "A9", "A10",
	"B3", "B4", "B5", "B6", "B7", "B8", "B9", "B10",
}

var configFlag = predict.Files("*.yaml")

// command defines the full dataworks CLI completion tree.
var command = &complete.Command{
	Sub: map[string]*complete.Command{
		"serve": {
			Flags: map[string]complete.Predictor{
				"config":     configFlag,
				"data-dir":   predict.Dirs("*"),
				"host":       predict.Nothing,
				"port":       predict.Nothing,
				"log-level":  predict.Set{"trace", "debug", "info", "warn", "error"},
				"no-color":   predict.Nothing,
				"background": predict.Nothing,
			},
		},
		"check": {
			Flags: map[string]complete.Predictor{
				"config":   configFlag,
				"data-dir": predict.Dirs("*"),
				"verb":     predict.Set{"read", "write", "fetch", "query", "convert", "clone", "prettify"},
				"text":     predict.Nothing,
				"size":     predict.Nothing,
				"json":     predict.Nothing,
			},
			Args: predict.Files("*"),
		},
		"run": {
			Flags: map[string]complete.Predictor{
				"config":   configFlag,
				"data-dir": predict.Dirs("*"),
				"op":       operationCodes,
				"input":    predict.Files("*"),
				"output":   predict.Files("*"),
				"param":    predict.Something,
				"json":     predict.Nothing,
			},
		},
		"audit": {
			Flags: map[string]complete.Predictor{
				"config":  configFlag,
				"minutes": predict.Nothing,
				"limit":   predict.Nothing,
				"stats":   predict.Nothing,
				"json":    predict.Nothing,
			},
		},
		"operations": {Flags: map[string]complete.Predictor{"json": predict.Nothing}},
		"status":     {Flags: map[string]complete.Predictor{"json": predict.Nothing}},
		"stop":       {},
		"logs":       {Flags: map[string]complete.Predictor{"f": predict.Nothing, "n": predict.Nothing}},
		"version":    {Flags: map[string]complete.Predictor{"json": predict.Nothing}},
		"help":       {},
		"completion": {Flags: map[string]complete.Predictor{"install": predict.Nothing, "uninstall": predict.Nothing}},
	},
}

// Run checks if the binary was invoked for shell completion.
// If COMP_LINE is set, it outputs completions and returns true.
// Otherwise it returns false and the program continues normally.
func Run() bool {
	if os.Getenv("COMP_LINE") != "" || os.Getenv("COMP_INSTALL") != "" || os.Getenv("COMP_UNINSTALL") != "" {
		command.Complete(binary)
		return true
	}
	return false
}

// Subcommands returns the top-level command names.
func Subcommands() []string {
	out := make([]string, 0, len(command.Sub))
	for name := range command.Sub {
		out = append(out, name)
	}
	return out
}

// Install sets up shell completion for the detected shells.
// The caller handles user-facing output.
func Install() error {
	return install.Install(binary)
}

// Uninstall removes shell completion for the detected shells.
func Uninstall() error {
	return install.Uninstall(binary)
}

// IsInstalled reports whether shell completion is already set up.
func IsInstalled() bool {
	return install.IsInstalled(binary)
}
