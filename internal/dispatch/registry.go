package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/AgentShepherd/dataworks/internal/types"
)

// Handler runs an authorized task. It must touch only the paths in call.
type Handler func(ctx context.Context, call *Call) (any, error)

// Binding names one path an operation touches. Role is how the handler
// looks the canonical path up again.
type Binding struct {
	Role string
	Path string
}

// Operation is one entry of the task catalog.
type Operation struct {
	Code    string
	Summary string
	Verb    types.Verb

	// Bind returns the paths the operation will touch for t, in
	// authorization order. Nil means the task's input and output only.
	Bind func(t *Task) ([]Binding, error)

	// Screen returns extra untrusted text (a SQL query, say) that is checked
	// against the restricted operations together with the task text.
	Screen func(t *Task) string

	// WriteSize returns the size of a write known before the handler runs,
	// or 0.
	WriteSize func(t *Task) int64

	// Run is nil for operations that are catalogued but not supported;
	// Unsupported then says why.
	Run         Handler
	Unsupported string
}

// Registry holds the operation catalog. It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]*Operation
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]*Operation)}
}

// Register adds op. Codes must be unique and well formed.
func (r *Registry) Register(op Operation) error {
	if !operationCode.MatchString(op.Code) {
		return fmt.Errorf("dispatch: invalid operation code %q", op.Code)
	}
	if op.Run == nil && op.Unsupported == "" {
		return fmt.Errorf("dispatch: operation %s has no handler and no reason", op.Code)
	}
	if op.Run != nil && op.Verb == "" {
		return fmt.Errorf("dispatch: operation %s has no verb", op.Code)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.ops[op.Code]; dup {
		return fmt.Errorf("dispatch: operation %s registered twice", op.Code)
	}
	r.ops[op.Code] = &op
	return nil
}

// Lookup returns the operation for code.
func (r *Registry) Lookup(code string) (*Operation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[code]
	return op, ok
}

// Operations returns the catalog ordered A1..A10, B3..B10.
func (r *Registry) Operations() []*Operation {
	r.mu.RLock()
	out := make([]*Operation, 0, len(r.ops))
	for _, op := range r.ops {
		out = append(out, op)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].Code[0], out[j].Code[0]
		if pi != pj {
			return pi < pj
		}
		ni, _ := strconv.Atoi(out[i].Code[1:])
		nj, _ := strconv.Atoi(out[j].Code[1:])
		return ni < nj
	})
	return out
}
