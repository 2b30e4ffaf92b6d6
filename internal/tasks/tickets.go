package tasks

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/AgentShepherd/dataworks/internal/dispatch"
	"github.com/AgentShepherd/dataworks/internal/types"
)

func ticketSalesOp() dispatch.Operation {
	return dispatch.Operation{
		Code:    "A10",
		Summary: "total sales (units * price) of one ticket type (default Gold) in ticket-sales.db, written to ticket-sales-gold.txt",
		Verb:    types.VerbQuery,
		Bind:    inOut("A10", "ticket-sales.db", "ticket-sales-gold.txt"),
		Run: func(ctx context.Context, call *dispatch.Call) (any, error) {
			p, err := call.RequireExisting("input")
			if err != nil {
				return nil, err
			}
			ticketType := call.Task.ParamOr("type", "Gold")

			db, err := openReadOnly(ctx, p)
			if err != nil {
				return nil, dispatch.Execution(call.Task.Operation, "open "+call.Rel(p), err)
			}
			defer db.Close()

			var total sql.NullFloat64
			err = db.QueryRowContext(ctx,
				"SELECT SUM(units * price) FROM tickets WHERE type = ?", ticketType).Scan(&total)
			if err != nil {
				return nil, dispatch.Execution(call.Task.Operation, "query tickets", err)
			}
			s := strconv.FormatFloat(total.Float64, 'f', -1, 64)
			if err := writeOutput(call, "output", []byte(s)); err != nil {
				return nil, err
			}
			return map[string]any{"output": call.Rel(call.Path("output")), "type": ticketType, "total": total.Float64}, nil
		},
	}
}
