package collaborators

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxReplyBytes bounds how much of a collaborator reply is read.
const maxReplyBytes = 16 << 20

// NewHTTPClient returns a client with pooled connections suitable for a
// single collaborator host.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Send performs req and returns the body of a 2xx reply. Failures come back
// as *CallError, except cancellation of the request context.
func Send(client *http.Client, req *http.Request, collaborator string) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, transportError(req.Context(), collaborator, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, NewCallError(CategoryOutage, collaborator, "read reply", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewCallError(statusCategory(resp.StatusCode), collaborator,
			fmt.Sprintf("http %d: %s", resp.StatusCode, snippet(body)), nil)
	}
	return body, nil
}

func snippet(body []byte) string {
	r := []rune(strings.TrimSpace(string(body)))
	if len(r) > 200 {
		return string(r[:200]) + "..."
	}
	return string(r)
}
