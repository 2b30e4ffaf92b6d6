package tasks

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/AgentShepherd/dataworks/internal/dispatch"
	"github.com/AgentShepherd/dataworks/internal/types"
)

// embedBatch is the largest number of inputs sent in one embeddings call.
const embedBatch = 512

func similarCommentsOp(deps Deps) dispatch.Operation {
	return dispatch.Operation{
		Code:    "A9",
		Summary: "find the most similar pair of lines in comments.txt using embeddings and write them to comments-similar.txt",
		Verb:    types.VerbWrite,
		Bind:    inOut("A9", "comments.txt", "comments-similar.txt"),
		Run: func(ctx context.Context, call *dispatch.Call) (any, error) {
			if deps.LLM == nil {
				return nil, dispatch.Unsupported(call.Task.Operation, "no language model configured")
			}
			data, err := readInput(call, "input")
			if err != nil {
				return nil, err
			}
			comments := nonEmptyLines(string(data))
			if len(comments) < 2 {
				return nil, dispatch.Validation(call.Task.Operation, "need at least two comments, found %d", len(comments))
			}

			vecs, err := embedAll(ctx, deps.LLM, comments)
			if err != nil {
				return nil, dispatch.Execution(call.Task.Operation, "embeddings", err)
			}
			i, j, score := mostSimilar(vecs)
			if i < 0 {
				return nil, dispatch.Execution(call.Task.Operation, "no comparable embeddings", nil)
			}
			out := comments[i] + "\n" + comments[j]
			if err := writeOutput(call, "output", []byte(out)); err != nil {
				return nil, err
			}
			return map[string]any{
				"output":     call.Rel(call.Path("output")),
				"similarity": math.Round(score*1e4) / 1e4,
			}, nil
		},
	}
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func embedAll(ctx context.Context, llm LLM, inputs []string) ([][]float64, error) {
	out := make([][]float64, 0, len(inputs))
	for start := 0; start < len(inputs); start += embedBatch {
		end := min(start+embedBatch, len(inputs))
		vecs, err := llm.Embed(ctx, inputs[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("got %d embeddings for %d inputs", len(vecs), end-start)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// mostSimilar returns the indices i < j of the pair with the highest cosine
// similarity, or -1, -1 when no pair has comparable non-zero vectors.
func mostSimilar(vecs [][]float64) (int, int, float64) {
	norms := make([]float64, len(vecs))
	for i, v := range vecs {
		norms[i] = math.Sqrt(dot(v, v))
	}
	bi, bj, best := -1, -1, math.Inf(-1)
	for i := range vecs {
		for j := i + 1; j < len(vecs); j++ {
			if norms[i] == 0 || norms[j] == 0 || len(vecs[i]) != len(vecs[j]) {
				continue
			}
			if s := dot(vecs[i], vecs[j]) / (norms[i] * norms[j]); s > best {
				bi, bj, best = i, j, s
			}
		}
	}
	return bi, bj, best
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
