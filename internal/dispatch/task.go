// Package dispatch turns a task record into an authorized handler call.
//
// The dispatcher is the only caller of task handlers. It builds one
// guard.Request per task from the operation's declared bindings, and a
// handler runs only after that request is allowed, receiving the canonical
// paths instead of the raw ones.
package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AgentShepherd/dataworks/internal/types"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var operationCode = regexp.MustCompile(`^[AB][0-9]{1,2}$`)

// Task is a structured task record, usually produced by the LLM parser.
type Task struct {
	Operation  string         `json:"operation" validate:"required,max=8"`
	InputPath  string         `json:"input_path,omitempty" validate:"max=4096"`
	OutputPath string         `json:"output_path,omitempty" validate:"max=4096"`
	Verb       string         `json:"verb,omitempty" validate:"max=64"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ParseTask decodes a JSON task record. Unknown keys (the parser sometimes
// adds "phase") are ignored.
func ParseTask(data []byte) (*Task, error) {
	var t Task
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&t); err != nil {
		return nil, Validation("", "task record is not valid JSON: %v", err)
	}
	return &t, nil
}

// Normalize trims whitespace and upper-cases the operation code.
func (t *Task) Normalize() {
	t.Operation = strings.ToUpper(strings.TrimSpace(t.Operation))
	t.InputPath = strings.TrimSpace(t.InputPath)
	t.OutputPath = strings.TrimSpace(t.OutputPath)
	t.Verb = strings.ToLower(strings.TrimSpace(t.Verb))
}

// Validate checks field shapes. It does not look the operation up.
func (t *Task) Validate() error {
	if err := validate.Struct(t); err != nil {
		return Validation(t.Operation, "invalid task record: %v", err)
	}
	if !operationCode.MatchString(t.Operation) {
		return Validation(t.Operation, "operation %q is not a task code like A3 or B10", t.Operation)
	}
	return nil
}

// Phase returns the catalog phase of the operation.
func (t *Task) Phase() types.Phase {
	return types.PhaseOf(t.Operation)
}

// Param returns parameter key rendered as a string, or "" when absent.
func (t *Task) Param(key string) string {
	v, ok := t.Parameters[key]
	if !ok || v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}

// ParamOr returns Param(key), or def when it is empty.
func (t *Task) ParamOr(key, def string) string {
	if s := t.Param(key); s != "" {
		return s
	}
	return def
}

// IntParam returns parameter key as an int, or def when absent.
func (t *Task) IntParam(key string, def int) (int, error) {
	s := t.Param(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, Validation(t.Operation, "parameter %s must be an integer, got %q", key, s)
	}
	return int(f), nil
}

// IntPairParam reads a two-element numeric list such as "resize": [640, 480].
func (t *Task) IntPairParam(key string) (a, b int, ok bool, err error) {
	v, present := t.Parameters[key]
	if !present || v == nil {
		return 0, 0, false, nil
	}
	list, isList := v.([]any)
	if !isList || len(list) != 2 {
		return 0, 0, false, Validation(t.Operation, "parameter %s must be a [width, height] pair", key)
	}
	var out [2]int
	for i, e := range list {
		n, err := strconv.ParseFloat(fmt.Sprint(e), 64)
		if err != nil || n != float64(int(n)) {
			return 0, 0, false, Validation(t.Operation, "parameter %s must hold integers", key)
		}
		out[i] = int(n)
	}
	return out[0], out[1], true, nil
}

// InputOr returns the task's input path, or def when unset.
func (t *Task) InputOr(def string) string {
	if t.InputPath != "" {
		return t.InputPath
	}
	return def
}

// OutputOr returns the task's output path, or def when unset.
func (t *Task) OutputOr(def string) string {
	if t.OutputPath != "" {
		return t.OutputPath
	}
	return def
}
