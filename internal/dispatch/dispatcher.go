package dispatch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AgentShepherd/dataworks/internal/audit"
	"github.com/AgentShepherd/dataworks/internal/guard"
	"github.com/AgentShepherd/dataworks/internal/logger"
	"github.com/AgentShepherd/dataworks/internal/types"
)

var log = logger.New("dispatch")

// Parser turns a free-text task description into a task record.
type Parser interface {
	Parse(ctx context.Context, text string) (*Task, error)
}

// Recorder persists authorization decisions. *audit.Manager implements it.
type Recorder interface {
	Record(ctx context.Context, e audit.Entry) error
}

// Options configures a Dispatcher. Every field is optional.
type Options struct {
	Parser  Parser
	Audit   Recorder
	Metrics *Metrics
}

// Dispatcher authorizes and runs tasks.
type Dispatcher struct {
	auth    *guard.Authorizer
	reg     *Registry
	parser  Parser
	audit   Recorder
	metrics *Metrics
}

// Result is the outcome of a successful task.
type Result struct {
	RequestID string `json:"request_id"`
	Operation string `json:"operation"`
	Status    string `json:"status"`
	Output    any    `json:"result,omitempty"`
}

// New returns a Dispatcher over auth and reg.
func New(auth *guard.Authorizer, reg *Registry, opts Options) *Dispatcher {
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	return &Dispatcher{
		auth:    auth,
		reg:     reg,
		parser:  opts.Parser,
		audit:   opts.Audit,
		metrics: opts.Metrics,
	}
}

// Metrics returns the dispatcher's counters.
func (d *Dispatcher) Metrics() *Metrics { return d.metrics }

// Registry returns the operation catalog.
func (d *Dispatcher) Registry() *Registry { return d.reg }

// Authorizer returns the guard the dispatcher enforces.
func (d *Dispatcher) Authorizer() *guard.Authorizer { return d.auth }

// Run parses text into a task and executes it. The task text is screened
// for restricted operations before the parser sees it.
func (d *Dispatcher) Run(ctx context.Context, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, Validation("", "task description is empty")
	}
	id := requestID(ctx)
	if dec := d.authorize(ctx, id, "", guard.Request{TaskText: text}); !dec.Allowed {
		return nil, dec.Err()
	}
	if d.parser == nil {
		return nil, Unsupported("", "no task parser configured")
	}
	task, err := d.parser.Parse(ctx, text)
	if err != nil {
		d.metrics.Failed.Add(1)
		if KindOf(err) != "" {
			return nil, err
		}
		return nil, Execution("", "parse task", err)
	}
	return d.Execute(WithRequestID(ctx, id), text, task)
}

// Execute authorizes task and, on Allow, runs its handler with the
// canonical paths.
func (d *Dispatcher) Execute(ctx context.Context, text string, task *Task) (*Result, error) {
	id := requestID(ctx)
	if task == nil {
		return nil, Validation("", "task record is empty")
	}
	task.Normalize()
	if err := task.Validate(); err != nil {
		d.metrics.Failed.Add(1)
		return nil, err
	}

	op, ok := d.reg.Lookup(task.Operation)
	if !ok {
		d.metrics.Failed.Add(1)
		return nil, Unsupported(task.Operation, "unknown operation")
	}
	if op.Run == nil {
		d.metrics.Failed.Add(1)
		return nil, Unsupported(task.Operation, "%s", op.Unsupported)
	}

	bindings, err := d.bindings(op, task)
	if err != nil {
		d.metrics.Failed.Add(1)
		return nil, err
	}

	req := guard.Request{
		Paths:    make([]string, len(bindings)),
		Verb:     task.Verb,
		TaskText: text,
	}
	if req.Verb == "" {
		req.Verb = string(op.Verb)
	}
	for i, b := range bindings {
		req.Paths[i] = b.Path
	}
	if op.Screen != nil {
		if extra := op.Screen(task); extra != "" {
			req.TaskText = strings.TrimSpace(text + "\n" + extra)
		}
	}
	if op.WriteSize != nil {
		req.PlannedWriteSize = op.WriteSize(task)
	}

	dec := d.authorize(ctx, id, task.Operation, req)
	if !dec.Allowed {
		return nil, dec.Err()
	}

	call := &Call{
		RequestID: id,
		Task:      task,
		Text:      text,
		paths:     make(map[string]string, len(bindings)),
		d:         d,
	}
	for i, b := range bindings {
		call.paths[b.Role] = dec.Resolved[i]
	}

	start := time.Now()
	out, err := op.Run(ctx, call)
	if err != nil {
		d.metrics.Failed.Add(1)
		err = classify(task.Operation, err)
		log.Warn("[%s] %s failed after %s: %v", id, task.Operation, time.Since(start).Round(time.Millisecond), err)
		return nil, err
	}
	d.metrics.Succeeded.Add(1)
	log.Info("[%s] %s done in %s", id, task.Operation, time.Since(start).Round(time.Millisecond))
	return &Result{RequestID: id, Operation: task.Operation, Status: "success", Output: out}, nil
}

// AuthorizeRead gates a direct read of path and returns its canonical form.
func (d *Dispatcher) AuthorizeRead(ctx context.Context, path string) (string, error) {
	dec := d.authorize(ctx, requestID(ctx), "read", guard.Request{
		Paths: []string{path},
		Verb:  string(types.VerbRead),
	})
	if !dec.Allowed {
		return "", dec.Err()
	}
	return dec.Resolved[0], nil
}

// bindings returns the paths op declares for task. Without a Bind func the
// task's input and output are bound. A role may be bound once.
func (d *Dispatcher) bindings(op *Operation, task *Task) ([]Binding, error) {
	var bs []Binding
	if op.Bind != nil {
		var err error
		if bs, err = op.Bind(task); err != nil {
			return nil, err
		}
	} else {
		if task.InputPath != "" {
			bs = append(bs, Binding{Role: "input", Path: task.InputPath})
		}
		if task.OutputPath != "" {
			bs = append(bs, Binding{Role: "output", Path: task.OutputPath})
		}
	}
	roles := make(map[string]bool, len(bs))
	for _, b := range bs {
		if b.Path == "" {
			return nil, Validation(task.Operation, "missing %s path", b.Role)
		}
		if roles[b.Role] {
			return nil, Validation(task.Operation, "%s path bound twice", b.Role)
		}
		roles[b.Role] = true
	}
	return bs, nil
}

// authorize is the single gate every path and verb passes through. The
// decision is counted, logged and written to the audit trail.
func (d *Dispatcher) authorize(ctx context.Context, id, op string, req guard.Request) guard.Decision {
	start := time.Now()
	dec := d.auth.Authorize(req)
	d.metrics.observe(dec)

	if d.audit != nil {
		e := audit.Entry{
			Timestamp:  start,
			RequestID:  id,
			Operation:  op,
			Verb:       req.Verb,
			Paths:      d.displayPaths(req, dec),
			Allowed:    dec.Allowed,
			Reason:     string(dec.Reason),
			Detail:     dec.Detail,
			Status:     HTTPStatus(dec.Err()),
			DurationMs: time.Since(start).Milliseconds(),
		}
		if err := d.audit.Record(ctx, e); err != nil {
			log.Warn("[%s] audit record failed: %v", id, err)
		}
	}
	return dec
}

// displayPaths returns sandbox-relative paths for the audit trail. Denied
// requests keep only base names, since their candidates may be absolute
// host paths.
func (d *Dispatcher) displayPaths(req guard.Request, dec guard.Decision) []string {
	out := make([]string, 0, len(req.Paths))
	if dec.Allowed {
		for _, p := range dec.Resolved {
			out = append(out, d.auth.Relative(p))
		}
		return out
	}
	for _, p := range req.Paths {
		out = append(out, displayName(p))
	}
	return out
}

func displayName(p string) string {
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		p = p[i+1:]
	}
	if p == "" {
		return "."
	}
	return p
}

// classify keeps typed errors and wraps anything else as an execution error.
func classify(op string, err error) error {
	var de *guard.DenyError
	if errors.As(err, &de) || KindOf(err) != "" {
		return err
	}
	return Execution(op, "", err)
}

type requestIDKey struct{}

// WithRequestID attaches a request id to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id attached to ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestID(ctx context.Context) string {
	if id := RequestID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}
