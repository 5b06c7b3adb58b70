package testutil

import (
	"net/http"
	"time"

	"docverify/pkg/requestcontext"
)

// WithSubject marks the request as authenticated for subject, the way the
// bearer-token middleware would.
func WithSubject(req *http.Request, subject string) *http.Request {
	return req.WithContext(requestcontext.WithSubject(req.Context(), subject))
}

// WithRequestID attaches a request ID without going through the middleware.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithTime pins the request time so date-sensitive validation is
// deterministic.
func WithTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
