package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"docverify/internal/platform/metrics"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/httputil"
	"docverify/pkg/platform/middleware/metadata"
	"docverify/pkg/requestcontext"
)

const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// Middleware applies one Policy per caller. Authenticated callers are keyed
// by token subject, anonymous ones by client IP.
type Middleware struct {
	store   Store
	policy  Policy
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Middleware)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Middleware) { m.logger = logger }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) { m.metrics = mt }
}

func NewMiddleware(store Store, policy Policy, opts ...Option) *Middleware {
	m := &Middleware{
		store:  store,
		policy: policy,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func callerKey(r *http.Request) string {
	ctx := r.Context()
	if subject := requestcontext.Subject(ctx); subject != "" {
		return "sub:" + subject
	}
	if ip := metadata.GetClientIP(ctx); ip != "" {
		return "ip:" + ip
	}
	return "ip:" + metadata.ClientIPFromRequest(r)
}

// Handler enforces the policy. When the store fails the request is let
// through and the failure logged.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	if m == nil || !m.policy.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := callerKey(r)

		res, err := m.store.Allow(ctx, key, m.policy.Limit, m.policy.Window)
		if err != nil {
			m.logger.ErrorContext(ctx, "rate limit check failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set(HeaderLimit, strconv.Itoa(res.Limit))
		h.Set(HeaderRemaining, strconv.Itoa(res.Remaining))
		h.Set(HeaderReset, strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.Allowed {
			m.metrics.IncrementRateLimited()
			m.logger.WarnContext(ctx, "rate limit exceeded",
				"request_id", requestcontext.RequestID(ctx),
				"caller", key,
			)
			h.Set("Retry-After", strconv.Itoa(int(res.RetryAfter(m.now()).Seconds())))
			httputil.WriteError(w, r, dErrors.New(dErrors.CodeRateLimited, "too many requests, retry later"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
