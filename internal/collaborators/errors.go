// Package collaborators holds the HTTP adapters for the external recognition
// and language-model services, and the retry and breaker guard every call to
// them goes through.
package collaborators

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"docverify/internal/verification/ports"
)

// Category is the normalized failure taxonomy for collaborator calls.
type Category string

const (
	// CategoryTimeout: the collaborator took too long to respond
	CategoryTimeout Category = "timeout"

	// CategoryBadData: the reply could not be parsed or violated its schema
	CategoryBadData Category = "bad_data"

	// CategoryAuthentication: credentials were rejected
	CategoryAuthentication Category = "authentication"

	// CategoryOutage: the collaborator is unreachable or answered 5xx
	CategoryOutage Category = "outage"

	// CategoryRateLimited: the collaborator answered 429
	CategoryRateLimited Category = "rate_limited"

	// CategoryRejected: the collaborator refused the request (other 4xx)
	CategoryRejected Category = "rejected"
)

// CallError wraps a failed collaborator call with its category.
type CallError struct {
	Category     Category
	Collaborator string
	Message      string
	Underlying   error
	Retryable    bool
}

func (e *CallError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Collaborator, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Collaborator, e.Category, e.Message)
}

func (e *CallError) Unwrap() error {
	return e.Underlying
}

// Is lets bad-data failures match ports.ErrMalformedResponse.
func (e *CallError) Is(target error) bool {
	return target == ports.ErrMalformedResponse && e.Category == CategoryBadData
}

func NewCallError(category Category, collaborator, message string, underlying error) *CallError {
	retryable := category == CategoryTimeout ||
		category == CategoryOutage ||
		category == CategoryRateLimited

	return &CallError{
		Category:     category,
		Collaborator: collaborator,
		Message:      message,
		Underlying:   underlying,
		Retryable:    retryable,
	}
}

// IsRetryable reports whether err is a transient collaborator failure.
func IsRetryable(err error) bool {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// CategoryOf extracts the category, or "" for errors that are not CallErrors.
func CategoryOf(err error) Category {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Category
	}
	return ""
}

// statusCategory maps a non-2xx HTTP status to a category.
func statusCategory(status int) Category {
	switch {
	case status == http.StatusTooManyRequests:
		return CategoryRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return CategoryAuthentication
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return CategoryTimeout
	case status >= 500:
		return CategoryOutage
	default:
		return CategoryRejected
	}
}

// transportError classifies an error from http.Client.Do. Cancellation of
// the caller's context is returned as is so it never counts as an outage.
func transportError(ctx context.Context, collaborator string, err error) error {
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return ctx.Err()
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return NewCallError(CategoryTimeout, collaborator, "request timed out", err)
	}
	return NewCallError(CategoryOutage, collaborator, "request failed", err)
}
