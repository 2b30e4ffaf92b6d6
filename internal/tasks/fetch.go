package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/AgentShepherd/dataworks/internal/dispatch"
	"github.com/AgentShepherd/dataworks/internal/fileutil"
	"github.com/AgentShepherd/dataworks/internal/types"
)

func fetchAPIOp(deps Deps) dispatch.Operation {
	return dispatch.Operation{
		Code:    "B3",
		Summary: "fetch data from the api_url parameter and save it to output_path",
		Verb:    types.VerbFetch,
		Bind:    outputOnly("B3"),
		Run: func(ctx context.Context, call *dispatch.Call) (any, error) {
			u, err := fetchURL(call.Task, "api_url", "url")
			if err != nil {
				return nil, err
			}
			resp, err := get(ctx, deps, u)
			if err != nil {
				return nil, dispatch.Execution(call.Task.Operation, "fetch", err)
			}
			defer resp.Body.Close()

			out := call.Path("output")
			n, err := fileutil.WriteFileLimited(out, resp.Body, call.MaxFileSize())
			if err != nil {
				return nil, dispatch.Execution(call.Task.Operation, "save response", err)
			}
			return written{Output: call.Rel(out), Bytes: int(n)}, nil
		},
	}
}

func scrapeOp(deps Deps) dispatch.Operation {
	return dispatch.Operation{
		Code:    "B6",
		Summary: "scrape the url parameter into output_path; with a tag parameter, save the text of those elements as a JSON array",
		Verb:    types.VerbFetch,
		Bind:    outputOnly("B6"),
		Run: func(ctx context.Context, call *dispatch.Call) (any, error) {
			u, err := fetchURL(call.Task, "url", "api_url")
			if err != nil {
				return nil, err
			}
			resp, err := get(ctx, deps, u)
			if err != nil {
				return nil, dispatch.Execution(call.Task.Operation, "fetch", err)
			}
			defer resp.Body.Close()

			tag := strings.ToLower(call.Task.Param("tag"))
			out := call.Path("output")
			if tag == "" {
				n, err := fileutil.WriteFileLimited(out, resp.Body, call.MaxFileSize())
				if err != nil {
					return nil, dispatch.Execution(call.Task.Operation, "save page", err)
				}
				return written{Output: call.Rel(out), Bytes: int(n)}, nil
			}

			texts, err := elementTexts(io.LimitReader(resp.Body, call.MaxFileSize()), tag)
			if err != nil {
				return nil, dispatch.Execution(call.Task.Operation, "parse page", err)
			}
			data, err := json.MarshalIndent(texts, "", "  ")
			if err != nil {
				return nil, dispatch.Execution(call.Task.Operation, "encode", err)
			}
			if err := writeOutput(call, "output", data); err != nil {
				return nil, err
			}
			return map[string]any{"output": call.Rel(out), "elements": len(texts)}, nil
		},
	}
}

func outputOnly(code string) func(t *dispatch.Task) ([]dispatch.Binding, error) {
	return func(t *dispatch.Task) ([]dispatch.Binding, error) {
		if t.OutputPath == "" {
			return nil, dispatch.Validation(code, "output_path is required")
		}
		return []dispatch.Binding{{Role: "output", Path: t.OutputPath}}, nil
	}
}

// fetchURL reads the first present parameter among keys and requires an
// absolute http or https URL.
func fetchURL(t *dispatch.Task, keys ...string) (string, error) {
	var raw string
	for _, k := range keys {
		if raw = t.Param(k); raw != "" {
			break
		}
	}
	if raw == "" {
		return "", dispatch.Validation(t.Operation, "parameter %s is required", keys[0])
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", dispatch.Validation(t.Operation, "%q is not an absolute URL", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", dispatch.Validation(t.Operation, "scheme %q is not allowed, use http or https", u.Scheme)
	}
	return u.String(), nil
}

// get issues a GET and fails on any non-2xx status. The returned body is
// already content-decoded.
func get(ctx context.Context, deps Deps, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", deps.UserAgent)
	req.Header.Set("Accept-Encoding", acceptEncoding)
	resp, err := deps.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", u, resp.Status)
	}
	if err := decodeBody(resp); err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	return resp, nil
}

// elementTexts returns the whitespace-collapsed text of every element named
// tag, in document order.
func elementTexts(r io.Reader, tag string) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	texts := []string{}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			var b strings.Builder
			collectText(n, &b)
			if s := strings.Join(strings.Fields(b.String()), " "); s != "" {
				texts = append(texts, s)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return texts, nil
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	}
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}
