package dispatch

import (
	"context"
	"fmt"
	"strings"
)

// JSONCompleter is the slice of the LLM client the parser needs.
type JSONCompleter interface {
	CompleteJSON(ctx context.Context, system, prompt string) ([]byte, error)
}

// LLMParser asks a chat model to turn a task description into a Task.
type LLMParser struct {
	llm    JSONCompleter
	system string
}

// NewLLMParser returns a parser whose prompt lists the operations in reg.
func NewLLMParser(llm JSONCompleter, reg *Registry) *LLMParser {
	return &LLMParser{llm: llm, system: parserPrompt(reg)}
}

// Parse implements Parser.
func (p *LLMParser) Parse(ctx context.Context, text string) (*Task, error) {
	raw, err := p.llm.CompleteJSON(ctx, p.system, "Task: "+text)
	if err != nil {
		return nil, fmt.Errorf("parse task: %w", err)
	}
	return ParseTask(raw)
}

func parserPrompt(reg *Registry) string {
	var b strings.Builder
	b.WriteString(`Parse the task into a JSON object with these keys:
- operation: the task code from the list below
- input_path: input file path relative to the data directory, or ""
- output_path: output file path relative to the data directory, or ""
- parameters: an object with any other values the task names

Operations:
`)
	for _, op := range reg.Operations() {
		fmt.Fprintf(&b, "- %s: %s\n", op.Code, op.Summary)
	}
	b.WriteString("\nReply with the JSON object only.")
	return b.String()
}
