package tasks

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/AgentShepherd/dataworks/internal/dispatch"
	"github.com/AgentShepherd/dataworks/internal/fileutil"
	"github.com/AgentShepherd/dataworks/internal/types"
)

func gitCommitOp(deps Deps) dispatch.Operation {
	return dispatch.Operation{
		Code:    "B4",
		Summary: "clone the repo_url parameter into repo/ (parameter repo_dir) if missing, then optionally write content to file_path inside it and commit with commit_message",
		Verb:    types.VerbClone,
		Bind: func(t *dispatch.Task) ([]dispatch.Binding, error) {
			dir := strings.TrimSuffix(t.ParamOr("repo_dir", "repo"), "/")
			bs := []dispatch.Binding{{Role: "repo", Path: dir + "/"}}
			if f := t.Param("file_path"); f != "" {
				if filepath.IsAbs(f) {
					return nil, dispatch.Validation(t.Operation, "file_path must be relative to the repository")
				}
				bs = append(bs, dispatch.Binding{Role: "file", Path: dir + "/" + f})
			}
			return bs, nil
		},
		WriteSize: func(t *dispatch.Task) int64 { return int64(len(t.Param("content"))) },
		Run: func(ctx context.Context, call *dispatch.Call) (any, error) {
			return runGit(ctx, deps, call)
		},
	}
}

func runGit(ctx context.Context, deps Deps, call *dispatch.Call) (any, error) {
	op := call.Task.Operation
	repo := call.Path("repo")
	result := map[string]any{"repo": call.Rel(repo), "cloned": false, "committed": false}

	fi, err := os.Lstat(repo)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		remote, err := cloneURL(call.Task)
		if err != nil {
			return nil, err
		}
		if err := fileutil.MkdirAll(filepath.Dir(repo)); err != nil {
			return nil, dispatch.Execution(op, "create parent directory", err)
		}
		if _, err := deps.Runner.Run(ctx, filepath.Dir(repo), "git", "clone", "--depth", "1", "--", remote, repo); err != nil {
			return nil, dispatch.Execution(op, "git clone", err)
		}
		result["cloned"] = true
	case err != nil:
		return nil, dispatch.Execution(op, "stat "+call.Rel(repo), err)
	case !fi.IsDir():
		return nil, dispatch.Validation(op, "%s exists and is not a directory", call.Rel(repo))
	}

	if call.Path("file") == "" {
		return result, nil
	}

	// The clone may have planted links since the task was authorized, so the
	// file is resolved again and must still land inside the repository.
	resolved, err := call.Resolve(ctx, types.VerbWrite, call.Path("file"))
	if err != nil {
		return nil, err
	}
	file := resolved[0]
	rel, err := filepath.Rel(repo, file)
	if err != nil || rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return nil, dispatch.Validation(op, "file_path resolves outside the repository")
	}
	if strings.HasPrefix(filepath.ToSlash(rel), ".git/") {
		return nil, dispatch.Validation(op, "file_path points into .git")
	}

	content := call.Task.Param("content")
	if err := fileutil.WriteFile(file, []byte(content), call.MaxFileSize()); err != nil {
		return nil, dispatch.Execution(op, "write "+call.Rel(file), err)
	}
	msg := call.Task.ParamOr("commit_message", "Update "+filepath.ToSlash(rel))
	if _, err := deps.Runner.Run(ctx, repo, "git", "add", "--", rel); err != nil {
		return nil, dispatch.Execution(op, "git add", err)
	}
	if _, err := deps.Runner.Run(ctx, repo, "git",
		"-c", "user.name=dataworks", "-c", "user.email=dataworks@localhost",
		"commit", "--no-verify", "-m", msg); err != nil {
		return nil, dispatch.Execution(op, "git commit", err)
	}
	result["committed"] = true
	result["file"] = call.Rel(file)
	return result, nil
}

// cloneURL accepts only http and https remotes; file://, ext:: and scp-style
// remotes are refused.
func cloneURL(t *dispatch.Task) (string, error) {
	raw := t.Param("repo_url")
	if raw == "" {
		return "", dispatch.Validation(t.Operation, "parameter repo_url is required to clone")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return "", dispatch.Validation(t.Operation, "repo_url must be an http or https URL")
	}
	return u.String(), nil
}
