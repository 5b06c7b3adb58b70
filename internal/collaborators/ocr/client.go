// Package ocr adapts the text-recognition service to ports.Recognizer.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"docverify/internal/collaborators"
	"docverify/internal/verification/models"
)

// Name identifies the recognizer in breakers, metrics and logs.
const Name = "ocr"

// Client posts the file as multipart form field "file" and expects
// {"pages":[{"text":"..."}]}.
type Client struct {
	endpoint string
	http     *http.Client
	guard    *collaborators.Guard
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

func New(endpoint string, guard *collaborators.Guard, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("ocr endpoint is required")
	}
	if guard == nil {
		return nil, errors.New("guard is required")
	}
	c := &Client{
		endpoint: endpoint,
		http:     collaborators.NewHTTPClient(60 * time.Second),
		guard:    guard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type reply struct {
	Pages []struct {
		Text string `json:"text"`
	} `json:"pages"`
}

func (c *Client) Recognize(ctx context.Context, src models.Source) (*models.OCRResult, error) {
	return collaborators.Call(ctx, c.guard, func(ctx context.Context) (*models.OCRResult, error) {
		return c.recognize(ctx, src)
	})
}

func (c *Client) recognize(ctx context.Context, src models.Source) (*models.OCRResult, error) {
	body, contentType, err := encodeFile(src)
	if err != nil {
		return nil, fmt.Errorf("encode upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	raw, err := collaborators.Send(c.http, req, Name)
	if err != nil {
		return nil, err
	}

	var r reply
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, collaborators.NewCallError(collaborators.CategoryBadData, Name, "parse reply", err)
	}
	if r.Pages == nil {
		return nil, collaborators.NewCallError(collaborators.CategoryBadData, Name, "reply has no pages field", nil)
	}

	out := &models.OCRResult{Pages: make([]string, len(r.Pages))}
	for i, p := range r.Pages {
		out.Pages[i] = p.Text
	}
	return out, nil
}

func encodeFile(src models.Source) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	filename := src.Filename
	if filename == "" {
		filename = "document"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if src.ContentType != "" {
		h.Set("Content-Type", src.ContentType)
	} else {
		h.Set("Content-Type", "application/octet-stream")
	}

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(src.Data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
