// Package tasks is the operation catalog: one handler per task code.
//
// Handlers receive canonical, already authorized paths through
// dispatch.Call and never build paths of their own except through
// Call.Resolve. All file I/O goes through fileutil.
package tasks

import (
	"context"
	"net/http"
	"time"

	"github.com/AgentShepherd/dataworks/internal/dispatch"
	"github.com/AgentShepherd/dataworks/internal/fileutil"
	"github.com/AgentShepherd/dataworks/internal/logger"
)

var log = logger.New("tasks")

// LLM is the slice of the model client the handlers use.
type LLM interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Embed(ctx context.Context, inputs []string) ([][]float64, error)
}

// Deps are the external services handlers reach.
type Deps struct {
	LLM       LLM
	HTTP      *http.Client
	UserAgent string
	Runner    Runner
}

func (d *Deps) defaults() {
	if d.HTTP == nil {
		d.HTTP = &http.Client{Timeout: 30 * time.Second}
	}
	if d.UserAgent == "" {
		d.UserAgent = "dataworks"
	}
	if d.Runner == nil {
		d.Runner = ExecRunner{Timeout: 2 * time.Minute}
	}
}

// Register adds every catalog operation to reg.
func Register(reg *dispatch.Registry, deps Deps) error {
	deps.defaults()
	ops := []dispatch.Operation{
		generateDataOp(),
		formatMarkdownOp(deps),
		countWeekdaysOp(),
		sortContactsOp(),
		recentLogsOp(),
		docsIndexOp(),
		emailSenderOp(deps),
		cardNumberOp(),
		similarCommentsOp(deps),
		ticketSalesOp(),
		fetchAPIOp(deps),
		gitCommitOp(deps),
		sqlQueryOp(),
		scrapeOp(deps),
		imageOp(),
		transcribeOp(),
		markdownOp(),
		filterCSVOp(),
	}
	for _, op := range ops {
		if err := reg.Register(op); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding the full catalog.
func NewRegistry(deps Deps) (*dispatch.Registry, error) {
	reg := dispatch.NewRegistry()
	if err := Register(reg, deps); err != nil {
		return nil, err
	}
	return reg, nil
}

// inOut binds the task's input and output, falling back to the given
// defaults. An empty default makes the path required.
func inOut(code, defIn, defOut string) func(t *dispatch.Task) ([]dispatch.Binding, error) {
	return func(t *dispatch.Task) ([]dispatch.Binding, error) {
		in, out := t.InputOr(defIn), t.OutputOr(defOut)
		if in == "" {
			return nil, dispatch.Validation(code, "input_path is required")
		}
		if out == "" {
			return nil, dispatch.Validation(code, "output_path is required")
		}
		return []dispatch.Binding{{Role: "input", Path: in}, {Role: "output", Path: out}}, nil
	}
}

// readInput reads the existing file bound to role under the size ceiling.
func readInput(call *dispatch.Call, role string) ([]byte, error) {
	p, err := call.RequireExisting(role)
	if err != nil {
		return nil, err
	}
	return readCanonical(call, p)
}

func readCanonical(call *dispatch.Call, p string) ([]byte, error) {
	data, err := fileutil.ReadFileLimited(p, call.MaxFileSize())
	if err != nil {
		return nil, dispatch.Execution(call.Task.Operation, "read "+call.Rel(p), err)
	}
	return data, nil
}

// writeOutput replaces the file bound to role with data.
func writeOutput(call *dispatch.Call, role string, data []byte) error {
	p := call.Path(role)
	if err := fileutil.WriteFile(p, data, call.MaxFileSize()); err != nil {
		return dispatch.Execution(call.Task.Operation, "write "+call.Rel(p), err)
	}
	log.Debug("[%s] wrote %d bytes to %s", call.RequestID, len(data), call.Rel(p))
	return nil
}

// written is the result most handlers return.
type written struct {
	Output string `json:"output"`
	Bytes  int    `json:"bytes"`
}

func wrote(call *dispatch.Call, role string, n int) written {
	return written{Output: call.Rel(call.Path(role)), Bytes: n}
}
