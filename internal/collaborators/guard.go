package collaborators

import (
	"context"
	"log/slog"
	"time"

	"docverify/internal/platform/metrics"
	"docverify/pkg/platform/circuit"
	"docverify/pkg/platform/retry"
)

// Guard protects calls to one collaborator. Retry is the outer layer and the
// breaker the inner one, so every attempt is counted by the breaker and an
// open breaker ends the retry loop at once.
type Guard struct {
	name    string
	breaker *circuit.Breaker
	retrier *retry.Retrier
}

// GuardConfig configures NewGuard.
type GuardConfig struct {
	Retry            retry.Config
	FailureThreshold int
	SuccessThreshold int
	BreakerTimeout   time.Duration
}

type GuardOption func(*guardOptions)

type guardOptions struct {
	logger   *slog.Logger
	metrics  *metrics.Metrics
	registry *circuit.Registry
	breaker  []circuit.Option
	retry    []retry.Option
}

func WithGuardLogger(logger *slog.Logger) GuardOption {
	return func(o *guardOptions) { o.logger = logger }
}

func WithGuardMetrics(m *metrics.Metrics) GuardOption {
	return func(o *guardOptions) { o.metrics = m }
}

// WithRegistry registers the guard's breaker so operators can inspect and
// reset it.
func WithRegistry(r *circuit.Registry) GuardOption {
	return func(o *guardOptions) { o.registry = r }
}

// WithBreakerOptions passes extra options to circuit.New, e.g. a test clock.
func WithBreakerOptions(opts ...circuit.Option) GuardOption {
	return func(o *guardOptions) { o.breaker = append(o.breaker, opts...) }
}

// WithRetryOptions passes extra options to retry.New, e.g. a test timer.
func WithRetryOptions(opts ...retry.Option) GuardOption {
	return func(o *guardOptions) { o.retry = append(o.retry, opts...) }
}

// NewGuard builds the breaker and retrier for the named collaborator. Only
// transient CallErrors are retried.
func NewGuard(name string, cfg GuardConfig, opts ...GuardOption) *Guard {
	o := guardOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	breakerOpts := []circuit.Option{
		circuit.WithFailurePredicate(countsAsOutage),
		circuit.WithStateChangeHook(func(c circuit.StateChange) {
			o.logger.Warn("collaborator breaker changed state",
				"breaker", c.Name,
				"from", c.From.String(),
				"to", c.To.String(),
			)
			o.metrics.ObserveBreaker(c.Name, c.To.String(), int(c.To))
		}),
	}
	if cfg.FailureThreshold > 0 {
		breakerOpts = append(breakerOpts, circuit.WithFailureThreshold(cfg.FailureThreshold))
	}
	if cfg.SuccessThreshold > 0 {
		breakerOpts = append(breakerOpts, circuit.WithSuccessThreshold(cfg.SuccessThreshold))
	}
	if cfg.BreakerTimeout > 0 {
		breakerOpts = append(breakerOpts, circuit.WithTimeout(cfg.BreakerTimeout))
	}
	b := circuit.New(name, append(breakerOpts, o.breaker...)...)
	if o.registry != nil {
		b = o.registry.Register(b)
	}

	retryOpts := []retry.Option{
		retry.WithNotify(func(attempt int, err error, wait time.Duration) {
			o.logger.Info("retrying collaborator call",
				"collaborator", name,
				"attempt", attempt,
				"wait_ms", wait.Milliseconds(),
				"error", err,
			)
			o.metrics.IncrementRetry(name)
		}),
	}
	r := retry.New(cfg.Retry, IsRetryable, append(retryOpts, o.retry...)...)

	return &Guard{name: name, breaker: b, retrier: r}
}

// countsAsOutage keeps replies that prove the collaborator is up, even if
// unusable, from opening the breaker.
func countsAsOutage(err error) bool {
	if !circuit.DefaultFailurePredicate(err) {
		return false
	}
	switch CategoryOf(err) {
	case CategoryBadData, CategoryRejected:
		return false
	}
	return true
}

func (g *Guard) Name() string { return g.name }

func (g *Guard) Breaker() *circuit.Breaker { return g.breaker }

// Call runs fn under g.
func Call[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	return retry.Do(ctx, g.retrier, func(ctx context.Context) (T, error) {
		return circuit.Call(ctx, g.breaker, fn)
	})
}
