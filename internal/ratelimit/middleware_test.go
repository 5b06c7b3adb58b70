package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docverify/internal/platform/metrics"
	"docverify/pkg/platform/middleware/metadata"
	"docverify/pkg/requestcontext"
)

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (Result, error) {
	return Result{}, errors.New("redis down")
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func request(ip, subject string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/verifications", nil)
	ctx := metadata.WithClientMetadata(req.Context(), ip, "test")
	if subject != "" {
		ctx = requestcontext.WithSubject(ctx, subject)
	}
	return req.WithContext(ctx)
}

func TestMiddlewareRefusesOverLimit(t *testing.T) {
	m := metrics.NewWith(prometheus.NewRegistry())
	mw := NewMiddleware(NewInMemoryStore(), Policy{Limit: 2, Window: time.Minute},
		WithLogger(slog.New(slog.DiscardHandler)), WithMetrics(m))
	h := mw.Handler(okHandler)

	for i := range 2 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, request("10.0.0.1", ""))
		require.Equal(t, http.StatusNoContent, rec.Code, "request %d", i+1)
		assert.Equal(t, "2", rec.Header().Get(HeaderLimit))
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request("10.0.0.1", ""))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get(HeaderRemaining))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"RATE_LIMITED"`)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request("10.0.0.2", ""))
	assert.Equal(t, http.StatusNoContent, rec.Code, "other clients keep their own budget")
}

func TestMiddlewareKeysBySubject(t *testing.T) {
	mw := NewMiddleware(NewInMemoryStore(), Policy{Limit: 1, Window: time.Minute},
		WithLogger(slog.New(slog.DiscardHandler)))
	h := mw.Handler(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request("10.0.0.1", "alice"))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request("10.0.0.1", "bob"))
	assert.Equal(t, http.StatusNoContent, rec.Code, "same IP, different subject")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request("10.0.0.9", "alice"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "same subject, different IP")
}

func TestMiddlewareFailsOpen(t *testing.T) {
	mw := NewMiddleware(failingStore{}, Policy{Limit: 1, Window: time.Minute},
		WithLogger(slog.New(slog.DiscardHandler)))
	rec := httptest.NewRecorder()
	mw.Handler(okHandler).ServeHTTP(rec, request("10.0.0.1", ""))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMiddlewareDisabled(t *testing.T) {
	mw := NewMiddleware(failingStore{}, Policy{})
	rec := httptest.NewRecorder()
	mw.Handler(okHandler).ServeHTTP(rec, request("10.0.0.1", ""))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get(HeaderLimit))
}
