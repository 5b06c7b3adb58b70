// Package httputil renders JSON responses and maps errors to RFC 7807
// problem details using the domain error registry.
package httputil

import (
	"encoding/json"
	"net/http"
	"strings"

	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/requestcontext"
)

const problemContentType = "application/problem+json"

// Problem is the error body for every non-business failure.
type Problem struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Code      string `json:"code"`
	Category  string `json:"category"`
	Retryable bool   `json:"retryable"`
	TraceID   string `json:"trace_id,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// NewProblem builds the problem body for err. Internal failures never expose
// their detail.
func NewProblem(r *http.Request, err error) Problem {
	spec := dErrors.SpecOf(err)
	status := spec.HTTPStatus
	if status < 400 {
		// Business codes are reported inside a 200 run result; reaching here
		// means one escaped as a plain error.
		status = http.StatusUnprocessableEntity
	}

	p := Problem{
		Type:      "/errors/" + strings.ToLower(string(spec.Code)),
		Title:     spec.Message,
		Status:    status,
		Code:      string(spec.Code),
		Category:  string(spec.Category),
		Retryable: spec.Retryable,
	}
	if r != nil {
		p.TraceID = requestcontext.TraceID(r.Context())
	}
	if spec.Code != dErrors.CodeInternal && spec.Code != dErrors.CodeUnknown {
		if msg := dErrors.MessageOf(err); msg != spec.Message {
			p.Detail = msg
		}
	}
	return p
}

// WriteError maps err to a problem response.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	WriteProblem(w, NewProblem(r, err))
}

func WriteProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", problemContentType)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
