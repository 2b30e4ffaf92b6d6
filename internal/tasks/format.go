package tasks

import (
	"context"
	"path/filepath"

	"github.com/AgentShepherd/dataworks/internal/dispatch"
	"github.com/AgentShepherd/dataworks/internal/types"
)

// prettierPackage is pinned so formatting output is reproducible.
const prettierPackage = "prettier@3.4.2"

func formatMarkdownOp(deps Deps) dispatch.Operation {
	return dispatch.Operation{
		Code:    "A2",
		Summary: "format a markdown file in place with prettier (default format.md)",
		Verb:    types.VerbPrettify,
		Bind: func(t *dispatch.Task) ([]dispatch.Binding, error) {
			return []dispatch.Binding{{Role: "input", Path: t.InputOr("format.md")}}, nil
		},
		Run: func(ctx context.Context, call *dispatch.Call) (any, error) {
			p, err := call.RequireExisting("input")
			if err != nil {
				return nil, err
			}
			if filepath.Ext(p) != ".md" {
				return nil, dispatch.Validation(call.Task.Operation, "%s is not a markdown file", call.Rel(p))
			}
			// Bare name from inside the file's directory; "--" ends options.
			_, err = deps.Runner.Run(ctx, filepath.Dir(p), "npx", "--yes", prettierPackage,
				"--parser", "markdown", "--write", "--", filepath.Base(p))
			if err != nil {
				return nil, dispatch.Execution(call.Task.Operation, "prettier", err)
			}
			return map[string]string{"formatted": call.Rel(p)}, nil
		},
	}
}
