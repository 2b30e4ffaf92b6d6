package tasks

import (
	"bytes"
	"context"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/AgentShepherd/dataworks/internal/dispatch"
	"github.com/AgentShepherd/dataworks/internal/types"
)

// Raw HTML in the source is dropped (goldmark's default, unsafe mode off).
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

func markdownOp() dispatch.Operation {
	return dispatch.Operation{
		Code:    "B9",
		Summary: "convert a markdown file at input_path to HTML at output_path",
		Verb:    types.VerbConvert,
		Bind:    inOut("B9", "", ""),
		Run: func(_ context.Context, call *dispatch.Call) (any, error) {
			src, err := readInput(call, "input")
			if err != nil {
				return nil, err
			}
			var buf bytes.Buffer
			if err := markdown.Convert(src, &buf); err != nil {
				return nil, dispatch.Execution(call.Task.Operation, "convert", err)
			}
			if err := writeOutput(call, "output", buf.Bytes()); err != nil {
				return nil, err
			}
			return wrote(call, "output", buf.Len()), nil
		},
	}
}
