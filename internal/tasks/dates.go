package tasks

import (
	"bufio"
	"bytes"
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/AgentShepherd/dataworks/internal/dispatch"
	"github.com/AgentShepherd/dataworks/internal/types"
)

// dateLayouts are tried in order for each line of a dates file.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006/01/02 15:04:05",
	"2006-01-02 15:04:05",
	"Jan 2, 2006",
	"Jan 02, 2006",
	"02-Jan-2006",
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday,
	"friday": time.Friday, "saturday": time.Saturday,
}

func countWeekdaysOp() dispatch.Operation {
	return dispatch.Operation{
		Code:    "A3",
		Summary: "count the dates in a file (default dates.txt) that fall on a weekday parameter (Monday=0 .. Sunday=6 or a name, default Wednesday) and write the count",
		Verb:    types.VerbWrite,
		Bind:    inOut("A3", "dates.txt", ""),
		Run: func(_ context.Context, call *dispatch.Call) (any, error) {
			day, err := parseWeekday(call.Task)
			if err != nil {
				return nil, err
			}
			data, err := readInput(call, "input")
			if err != nil {
				return nil, err
			}
			n := countWeekday(data, day)
			if err := writeOutput(call, "output", []byte(strconv.Itoa(n))); err != nil {
				return nil, err
			}
			return map[string]any{"weekday": day.String(), "count": n}, nil
		},
	}
}

// parseWeekday reads the weekday parameter. Numbers count from Monday=0.
func parseWeekday(t *dispatch.Task) (time.Weekday, error) {
	s := strings.ToLower(t.ParamOr("weekday", "wednesday"))
	if d, ok := weekdayNames[s]; ok {
		return d, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 6 {
		return 0, dispatch.Validation(t.Operation, "weekday %q is not a day name or 0-6", s)
	}
	return time.Weekday((n + 1) % 7), nil
}

// countWeekday counts lines that parse as a date falling on day. Lines that
// are not dates are skipped.
func countWeekday(data []byte, day time.Weekday) int {
	n := 0
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		for _, layout := range dateLayouts {
			if d, err := time.Parse(layout, line); err == nil {
				if d.Weekday() == day {
					n++
				}
				break
			}
		}
	}
	return n
}
