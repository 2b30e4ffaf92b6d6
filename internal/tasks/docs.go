package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/AgentShepherd/dataworks/internal/dispatch"
	"github.com/AgentShepherd/dataworks/internal/guard"
	"github.com/AgentShepherd/dataworks/internal/types"
)

func docsIndexOp() dispatch.Operation {
	return dispatch.Operation{
		Code:    "A6",
		Summary: "index every docs/**/*.md file by its first '# ' heading into docs/index.json",
		Verb:    types.VerbWrite,
		Bind: func(t *dispatch.Task) ([]dispatch.Binding, error) {
			dir := t.ParamOr("dir", "docs")
			return []dispatch.Binding{
				{Role: "dir", Path: dirPath(dir)},
				{Role: "output", Path: t.OutputOr(strings.TrimSuffix(dir, "/") + "/index.json")},
			}, nil
		},
		Run: func(ctx context.Context, call *dispatch.Call) (any, error) {
			g, err := glob.Compile(call.Task.ParamOr("pattern", "**.md"), '/')
			if err != nil {
				return nil, dispatch.Validation(call.Task.Operation, "bad pattern: %v", err)
			}
			dir, err := call.RequireExisting("dir")
			if err != nil {
				return nil, err
			}
			index, err := buildDocsIndex(ctx, call, dir, g)
			if err != nil {
				return nil, err
			}
			out, err := json.MarshalIndent(index, "", "  ")
			if err != nil {
				return nil, dispatch.Execution(call.Task.Operation, "encode index", err)
			}
			if err := writeOutput(call, "output", append(out, '\n')); err != nil {
				return nil, err
			}
			return map[string]any{"output": call.Rel(call.Path("output")), "documents": len(index)}, nil
		},
	}
}

// buildDocsIndex maps each matching file, relative to dir with forward
// slashes, to its first level-one heading. Files without one are left out.
func buildDocsIndex(ctx context.Context, call *dispatch.Call, dir string, g glob.Glob) (map[string]string, error) {
	index := make(map[string]string)
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !g.Match(rel) {
			return nil
		}
		resolved, err := call.Resolve(ctx, types.VerbRead, p)
		if err != nil {
			var de *guard.DenyError
			if errors.As(err, &de) {
				log.Debug("[%s] skipping %s: %s", call.RequestID, rel, de.Reason)
				return nil
			}
			return err
		}
		title, err := firstLine(resolved[0], heading)
		if err != nil {
			log.Debug("[%s] skipping %s: %v", call.RequestID, rel, err)
			return nil
		}
		if title != "" {
			index[rel] = title
		}
		return nil
	})
	if err != nil {
		return nil, dispatch.Execution(call.Task.Operation, "walk "+call.Rel(dir), err)
	}
	return index, nil
}

func heading(line string) (string, bool) {
	if !strings.HasPrefix(line, "# ") {
		return "", false
	}
	return strings.TrimSpace(line[2:]), true
}
