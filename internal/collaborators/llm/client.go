// Package llm adapts an OpenAI-compatible chat completions endpoint to the
// classifier and extractor ports.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"docverify/internal/collaborators"
)

// Client is a minimal chat completions client. It is shared by Classifier
// and Extractor, each of which carries its own Guard.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

type Option func(*Client)

func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

func New(baseURL, model string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("llm base url is required")
	}
	if model == "" {
		return nil, errors.New("llm model is required")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    collaborators.NewHTTPClient(90 * time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type completionRequest struct {
	Model          string         `json:"model"`
	Messages       []message      `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type completionReply struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// complete sends one system and one user message and returns the content of
// the first choice. name labels errors with the calling collaborator.
func (c *Client) complete(ctx context.Context, name, system, user string) (string, error) {
	payload, err := json.Marshal(completionRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	raw, err := collaborators.Send(c.http, req, name)
	if err != nil {
		return "", err
	}

	var r completionReply
	if err := json.Unmarshal(raw, &r); err != nil {
		return "", collaborators.NewCallError(collaborators.CategoryBadData, name, "parse completion", err)
	}
	if len(r.Choices) == 0 {
		return "", collaborators.NewCallError(collaborators.CategoryBadData, name, "completion has no choices", nil)
	}
	return r.Choices[0].Message.Content, nil
}

// jsonObject extracts the JSON object from a model reply. Replies wrapped
// in ``` fences or surrounded by prose are tolerated.
func jsonObject(content string) (string, bool) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}
