package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/AgentShepherd/dataworks/internal/dispatch"
	"github.com/AgentShepherd/dataworks/internal/types"
)

func sortContactsOp() dispatch.Operation {
	return dispatch.Operation{
		Code:    "A4",
		Summary: "sort contacts (default contacts.json) by last_name then first_name into contacts-sorted.json",
		Verb:    types.VerbWrite,
		Bind:    inOut("A4", "contacts.json", "contacts-sorted.json"),
		Run: func(_ context.Context, call *dispatch.Call) (any, error) {
			data, err := readInput(call, "input")
			if err != nil {
				return nil, err
			}
			out, n, err := sortContacts(data)
			if err != nil {
				return nil, dispatch.Validation(call.Task.Operation, "%v", err)
			}
			if err := writeOutput(call, "output", out); err != nil {
				return nil, err
			}
			return map[string]any{"output": call.Rel(call.Path("output")), "contacts": n}, nil
		},
	}
}

// sortContacts accepts {"contacts": [...]} or a bare array and returns the
// same shape, sorted. Fields other than the two names are kept as they are.
func sortContacts(data []byte) ([]byte, int, error) {
	var contacts []map[string]any
	var wrapped struct {
		Contacts []map[string]any `json:"contacts"`
	}
	bare := len(bytes.TrimSpace(data)) > 0 && bytes.TrimSpace(data)[0] == '['
	if bare {
		if err := json.Unmarshal(data, &contacts); err != nil {
			return nil, 0, fmt.Errorf("contacts: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, 0, fmt.Errorf("contacts: %w", err)
		}
		if wrapped.Contacts == nil {
			return nil, 0, fmt.Errorf(`contacts: no "contacts" list`)
		}
		contacts = wrapped.Contacts
	}

	sort.SliceStable(contacts, func(i, j int) bool {
		li, lj := nameField(contacts[i], "last_name"), nameField(contacts[j], "last_name")
		if li != lj {
			return li < lj
		}
		return nameField(contacts[i], "first_name") < nameField(contacts[j], "first_name")
	})

	var v any = map[string]any{"contacts": contacts}
	if bare {
		v = contacts
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, 0, err
	}
	return append(out, '\n'), len(contacts), nil
}

func nameField(c map[string]any, key string) string {
	s, _ := c[key].(string)
	return s
}
