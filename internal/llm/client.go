// Package llm is a small client for OpenAI-compatible chat-completion and
// embedding endpoints.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AgentShepherd/dataworks/internal/logger"
)

var log = logger.New("llm")

// maxResponseBytes caps how much of an upstream reply is read.
const maxResponseBytes = 4 << 20

// ErrNoAPIKey is returned by every call when the client has no key.
var ErrNoAPIKey = errors.New("llm: API key is not set (AIPROXY_TOKEN or LLM_API_KEY)")

// Config configures a Client.
type Config struct {
	Endpoint       string // base URL, e.g. https://api.openai.com/v1
	APIKey         string
	Model          string
	EmbeddingModel string
	MaxTokens      int
	Temperature    float64
	Timeout        time.Duration
}

// Client talks to one OpenAI-compatible endpoint.
type Client struct {
	cfg  Config
	http *http.Client
}

// New returns a Client. A zero Timeout means 30 seconds.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Complete sends one system+user exchange and returns the reply text.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	return c.chat(ctx, system, prompt, false)
}

// CompleteJSON is Complete with the endpoint asked for a JSON object reply.
// Markdown code fences around the object are removed.
func (c *Client) CompleteJSON(ctx context.Context, system, prompt string) ([]byte, error) {
	out, err := c.chat(ctx, system, prompt, true)
	if err != nil {
		return nil, err
	}
	out = stripFences(out)
	if !json.Valid([]byte(out)) {
		return nil, fmt.Errorf("llm: reply is not valid JSON")
	}
	return []byte(out), nil
}

func (c *Client) chat(ctx context.Context, system, prompt string, jsonReply bool) (string, error) {
	msgs := make([]chatMessage, 0, 2)
	if system != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: system})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: prompt})

	payload := chatRequest{
		Model:       c.cfg.Model,
		Messages:    msgs,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}
	if jsonReply {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var out chatResponse
	if err := c.post(ctx, "/chat/completions", payload, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.New("llm: empty response")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// Embed returns one vector per input, in input order.
func (c *Client) Embed(ctx context.Context, inputs []string) ([][]float64, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	var out embeddingResponse
	if err := c.post(ctx, "/embeddings", embeddingRequest{Model: c.cfg.EmbeddingModel, Input: inputs}, &out); err != nil {
		return nil, err
	}
	if len(out.Data) != len(inputs) {
		return nil, fmt.Errorf("llm: got %d embeddings for %d inputs", len(out.Data), len(inputs))
	}
	vecs := make([][]float64, len(inputs))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("llm: embedding index %d out of range", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	if c.cfg.APIKey == "" {
		return ErrNoAPIKey
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()
	log.Debug("POST %s -> %d (%s)", path, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("llm: reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(data))
		if len(msg) > 300 {
			msg = msg[:300] + "..."
		}
		return &StatusError{Code: resp.StatusCode, Body: msg}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("llm: decoding response: %w", err)
	}
	return nil
}

// StatusError is a non-2xx reply from the endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm: endpoint returned %d: %s", e.Code, e.Body)
}

// stripFences removes a surrounding ```json ... ``` block if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
