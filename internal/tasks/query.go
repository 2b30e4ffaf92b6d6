package tasks

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/AgentShepherd/dataworks/internal/dispatch"
	"github.com/AgentShepherd/dataworks/internal/fileutil"
	"github.com/AgentShepherd/dataworks/internal/types"
)

func sqlQueryOp() dispatch.Operation {
	return dispatch.Operation{
		Code:    "B5",
		Summary: "run the read-only SQL query parameter against the SQLite database db_path and save the rows to output_path as CSV (or JSON for .json)",
		Verb:    types.VerbQuery,
		Bind: func(t *dispatch.Task) ([]dispatch.Binding, error) {
			db := t.ParamOr("db_path", t.InputPath)
			if db == "" {
				return nil, dispatch.Validation(t.Operation, "parameter db_path is required")
			}
			if filepath.Ext(db) != ".db" {
				return nil, dispatch.Validation(t.Operation, "only SQLite .db files can be queried")
			}
			if t.OutputPath == "" {
				return nil, dispatch.Validation(t.Operation, "output_path is required")
			}
			return []dispatch.Binding{{Role: "db", Path: db}, {Role: "output", Path: t.OutputPath}}, nil
		},
		Screen: func(t *dispatch.Task) string { return t.Param("query") },
		Run: func(ctx context.Context, call *dispatch.Call) (any, error) {
			op := call.Task.Operation
			query := call.Task.Param("query")
			if query == "" {
				return nil, dispatch.Validation(op, "parameter query is required")
			}
			if kw := forbiddenSQL(query); kw != "" {
				return nil, dispatch.Validation(op, "%s is not allowed in queries", kw)
			}
			p, err := call.RequireExisting("db")
			if err != nil {
				return nil, err
			}
			db, err := openReadOnly(ctx, p)
			if err != nil {
				return nil, dispatch.Execution(op, "open "+call.Rel(p), err)
			}
			defer db.Close()

			cols, rows, err := queryRows(ctx, db, query)
			if err != nil {
				return nil, dispatch.Validation(op, "query failed: %v", err)
			}

			out := call.Path("output")
			var data []byte
			if filepath.Ext(out) == ".json" {
				data, err = rowsJSON(cols, rows)
			} else {
				data, err = rowsCSV(cols, rows)
			}
			if err != nil {
				return nil, dispatch.Execution(op, "encode rows", err)
			}
			if int64(len(data)) > call.MaxFileSize() {
				return nil, dispatch.Execution(op, "", fileutil.ErrTooLarge)
			}
			if err := writeOutput(call, "output", data); err != nil {
				return nil, err
			}
			return map[string]any{"output": call.Rel(out), "rows": len(rows), "columns": cols}, nil
		},
	}
}

// forbiddenSQL returns the first keyword in query that could reach another
// database file or reveal host paths, ignoring string literals and comments.
// Identifiers are checked even when quoted, since SQLite resolves them the
// same way.
func forbiddenSQL(query string) string {
	var word strings.Builder
	flush := func() string {
		w := strings.ToLower(word.String())
		word.Reset()
		switch {
		case w == "attach", w == "detach", w == "vacuum", w == "pragma", w == "load_extension":
			return strings.ToUpper(w)
		case strings.HasPrefix(w, "pragma_"):
			return w
		}
		return ""
	}
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
			word.WriteByte(c)
			continue
		case c == '\'':
			// '' inside a literal is an escaped quote; both halves are skipped.
			for i++; i < len(query) && query[i] != '\''; i++ {
			}
		case c == '-' && i+1 < len(query) && query[i+1] == '-':
			for i < len(query) && query[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(query) && query[i+1] == '*':
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				i = len(query)
			} else {
				i += end + 3
			}
		}
		if kw := flush(); kw != "" {
			return kw
		}
	}
	return flush()
}

// maxQueryRows bounds how many rows one query may return.
const maxQueryRows = 1_000_000

func queryRows(ctx context.Context, db *sql.DB, query string) ([]string, [][]any, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var out [][]any
	for rows.Next() {
		if len(out) >= maxQueryRows {
			return nil, nil, fmt.Errorf("more than %d rows", maxQueryRows)
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		out = append(out, vals)
	}
	return cols, out, rows.Err()
}

func rowsCSV(cols []string, rows [][]any) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(cols); err != nil {
		return nil, err
	}
	rec := make([]string, len(cols))
	for _, row := range rows {
		for i, v := range row {
			rec[i] = cellString(v)
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func rowsJSON(cols []string, rows [][]any) ([]byte, error) {
	objs := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		obj := make(map[string]any, len(cols))
		for i, c := range cols {
			obj[c] = row[i]
		}
		objs = append(objs, obj)
	}
	return json.MarshalIndent(objs, "", "  ")
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
