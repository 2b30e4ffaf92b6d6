package tasks

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/AgentShepherd/dataworks/internal/dispatch"
	"github.com/AgentShepherd/dataworks/internal/fileutil"
	"github.com/AgentShepherd/dataworks/internal/types"
)

// ErrUnknownColumn is returned by FilterCSV when the header lacks the column.
var ErrUnknownColumn = errors.New("unknown column")

func filterCSVOp() dispatch.Operation {
	return dispatch.Operation{
		Code:    "B10",
		Summary: "filter a CSV file (file_path or input_path) to rows where column equals value; saved as JSON to output_path when given, otherwise returned",
		Verb:    types.VerbRead,
		Bind: func(t *dispatch.Task) ([]dispatch.Binding, error) {
			in := t.ParamOr("file_path", t.InputPath)
			if in == "" {
				return nil, dispatch.Validation(t.Operation, "file_path is required")
			}
			bs := []dispatch.Binding{{Role: "input", Path: in}}
			if t.OutputPath != "" {
				bs = append(bs, dispatch.Binding{Role: "output", Path: t.OutputPath})
			}
			return bs, nil
		},
		Run: func(_ context.Context, call *dispatch.Call) (any, error) {
			op := call.Task.Operation
			column, value := call.Task.Param("column"), call.Task.Param("value")
			if column == "" {
				return nil, dispatch.Validation(op, "parameter column is required")
			}
			in, err := call.RequireExisting("input")
			if err != nil {
				return nil, err
			}
			rows, err := FilterCSV(in, column, value, call.MaxFileSize())
			if err != nil {
				if errors.Is(err, ErrUnknownColumn) {
					return nil, dispatch.Validation(op, "%v", err)
				}
				return nil, dispatch.Execution(op, "filter "+call.Rel(in), err)
			}
			if call.Path("output") == "" {
				return rows, nil
			}
			data, err := json.MarshalIndent(rows, "", "  ")
			if err != nil {
				return nil, dispatch.Execution(op, "encode", err)
			}
			if err := writeOutput(call, "output", data); err != nil {
				return nil, err
			}
			return map[string]any{"output": call.Rel(call.Path("output")), "rows": len(rows)}, nil
		},
	}
}

// FilterCSV returns the records of the CSV file at canonical path p whose
// column equals value exactly, keyed by header name. Files over max bytes
// fail with fileutil.ErrTooLarge.
func FilterCSV(p, column, value string, max int64) ([]map[string]string, error) {
	f, err := fileutil.OpenRead(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if fi, err := f.Stat(); err == nil && fi.Size() > max {
		return nil, fileutil.ErrTooLarge
	}

	r := csv.NewReader(io.LimitReader(f, max))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w %q: file is empty", ErrUnknownColumn, column)
		}
		return nil, err
	}
	idx := -1
	for i, h := range header {
		if h == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w %q", ErrUnknownColumn, column)
	}

	out := []map[string]string{}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if idx >= len(rec) || rec[idx] != value {
			continue
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			}
		}
		out = append(out, row)
	}
	return out, nil
}
