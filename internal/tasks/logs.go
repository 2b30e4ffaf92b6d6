package tasks

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/AgentShepherd/dataworks/internal/dispatch"
	"github.com/AgentShepherd/dataworks/internal/fileutil"
	"github.com/AgentShepherd/dataworks/internal/guard"
	"github.com/AgentShepherd/dataworks/internal/types"
)

// maxLineBytes bounds a single line read from a log or markdown file.
const maxLineBytes = 1 << 20

func recentLogsOp() dispatch.Operation {
	return dispatch.Operation{
		Code:    "A5",
		Summary: "write the first line of the 10 most recent logs/*.log files, newest first, to logs-recent.txt (parameters: count, pattern)",
		Verb:    types.VerbWrite,
		Bind: func(t *dispatch.Task) ([]dispatch.Binding, error) {
			return []dispatch.Binding{
				{Role: "dir", Path: dirPath(t.ParamOr("dir", "logs"))},
				{Role: "output", Path: t.OutputOr("logs-recent.txt")},
			}, nil
		},
		Run: func(ctx context.Context, call *dispatch.Call) (any, error) {
			count, err := call.Task.IntParam("count", 10)
			if err != nil {
				return nil, err
			}
			if count < 1 || count > 1000 {
				return nil, dispatch.Validation(call.Task.Operation, "count must be between 1 and 1000")
			}
			g, err := glob.Compile(call.Task.ParamOr("pattern", "*.log"))
			if err != nil {
				return nil, dispatch.Validation(call.Task.Operation, "bad pattern: %v", err)
			}
			dir, err := call.RequireExisting("dir")
			if err != nil {
				return nil, err
			}

			files, err := matchingFiles(ctx, call, dir, g)
			if err != nil {
				return nil, err
			}
			sort.Slice(files, func(i, j int) bool {
				if !files[i].mod.Equal(files[j].mod) {
					return files[i].mod.After(files[j].mod)
				}
				return files[i].path < files[j].path
			})
			if len(files) > count {
				files = files[:count]
			}

			var b strings.Builder
			for _, f := range files {
				line, err := firstLine(f.path, nil)
				if err != nil {
					return nil, dispatch.Execution(call.Task.Operation, "read "+call.Rel(f.path), err)
				}
				b.WriteString(line)
				b.WriteByte('\n')
			}
			if err := writeOutput(call, "output", []byte(b.String())); err != nil {
				return nil, err
			}
			return map[string]any{"output": call.Rel(call.Path("output")), "files": len(files)}, nil
		},
	}
}

type datedFile struct {
	path string
	mod  time.Time
}

// matchingFiles lists the direct children of dir whose names match g and
// authorizes each one. Entries the guard refuses are skipped.
func matchingFiles(ctx context.Context, call *dispatch.Call, dir string, g glob.Glob) ([]datedFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, dispatch.Execution(call.Task.Operation, "list "+call.Rel(dir), err)
	}
	var out []datedFile
	for _, e := range entries {
		if e.IsDir() || !g.Match(e.Name()) {
			continue
		}
		resolved, err := call.Resolve(ctx, types.VerbRead, filepath.Join(dir, e.Name()))
		if err != nil {
			var de *guard.DenyError
			if errors.As(err, &de) {
				log.Debug("[%s] skipping %s: %s", call.RequestID, e.Name(), de.Reason)
				continue
			}
			return nil, err
		}
		fi, err := os.Stat(resolved[0])
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		out = append(out, datedFile{path: resolved[0], mod: fi.ModTime()})
	}
	return out, nil
}

// firstLine returns the first line of the file at p, trimmed. When match is
// set, it returns the first line for which match reports true instead, or
// "" if none does.
func firstLine(p string, match func(string) (string, bool)) (string, error) {
	f, err := fileutil.OpenRead(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	for sc.Scan() {
		if match == nil {
			return strings.TrimSpace(sc.Text()), nil
		}
		if s, ok := match(sc.Text()); ok {
			return s, nil
		}
	}
	return "", sc.Err()
}

// dirPath marks p as a directory so a missing one is not mistaken for an
// extensionless file.
func dirPath(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}
