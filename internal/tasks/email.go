package tasks

import (
	"context"
	"net/mail"
	"regexp"
	"strings"

	"github.com/AgentShepherd/dataworks/internal/dispatch"
	"github.com/AgentShepherd/dataworks/internal/types"
)

const senderPrompt = "Extract the sender's email address from the email content. Reply with the address only."

var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

func emailSenderOp(deps Deps) dispatch.Operation {
	return dispatch.Operation{
		Code:    "A7",
		Summary: "extract the sender's email address from email.txt into email-sender.txt",
		Verb:    types.VerbWrite,
		Bind:    inOut("A7", "email.txt", "email-sender.txt"),
		Run: func(ctx context.Context, call *dispatch.Call) (any, error) {
			if deps.LLM == nil {
				return nil, dispatch.Unsupported(call.Task.Operation, "no language model configured")
			}
			data, err := readInput(call, "input")
			if err != nil {
				return nil, err
			}
			reply, err := deps.LLM.Complete(ctx, senderPrompt, string(data))
			if err != nil {
				return nil, dispatch.Execution(call.Task.Operation, "llm", err)
			}
			addr, ok := extractAddress(reply)
			if !ok {
				return nil, dispatch.Execution(call.Task.Operation, "model reply holds no email address", nil)
			}
			if err := writeOutput(call, "output", []byte(addr)); err != nil {
				return nil, err
			}
			return map[string]string{"output": call.Rel(call.Path("output")), "sender": addr}, nil
		},
	}
}

// extractAddress pulls a bare address out of a model reply such as
// "Sender: Jane Doe <jane@example.com>".
func extractAddress(reply string) (string, bool) {
	reply = strings.Trim(strings.TrimSpace(reply), "`\"'")
	if a, err := mail.ParseAddress(reply); err == nil {
		return a.Address, true
	}
	if m := emailPattern.FindString(reply); m != "" {
		return m, true
	}
	return "", false
}
