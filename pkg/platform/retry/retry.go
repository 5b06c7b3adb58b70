// Package retry runs an operation repeatedly with exponential backoff, but
// only for errors the caller has whitelisted as transient.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"

	dErrors "docverify/pkg/domain-errors"
)

// Config is the retry policy. The delay before attempt k (k >= 2) is
// min(MaxDelay, InitialDelay * ExponentialBase^(k-2)). With Jitter the actual
// wait is uniform in [0.5*delay, 1.5*delay].
type Config struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	Jitter          bool
}

// DefaultConfig is used by the collaborator adapters unless overridden.
var DefaultConfig = Config{
	MaxAttempts:     3,
	InitialDelay:    1 * time.Second,
	MaxDelay:        10 * time.Second,
	ExponentialBase: 2.0,
	Jitter:          true,
}

// Classifier reports whether err is worth another attempt.
type Classifier func(err error) bool

// OnErrors retries errors matching any target via errors.Is.
func OnErrors(targets ...error) Classifier {
	return func(err error) bool {
		for _, t := range targets {
			if errors.Is(err, t) {
				return true
			}
		}
		return false
	}
}

// OnCodes retries coded errors carrying any of codes.
func OnCodes(codes ...dErrors.Code) Classifier {
	return func(err error) bool {
		for _, c := range codes {
			if dErrors.HasCode(err, c) {
				return true
			}
		}
		return false
	}
}

// Any combines classifiers; an error is retryable if one of them says so.
func Any(classifiers ...Classifier) Classifier {
	return func(err error) bool {
		for _, c := range classifiers {
			if c != nil && c(err) {
				return true
			}
		}
		return false
	}
}

// Retrier is immutable and safe for concurrent use.
type Retrier struct {
	cfg       Config
	retryable Classifier
	notify    func(attempt int, err error, wait time.Duration)
	newTimer  func() backoff.Timer
}

type Option func(*Retrier)

// WithNotify is called before every wait with the number of the attempt that
// just failed.
func WithNotify(fn func(attempt int, err error, wait time.Duration)) Option {
	return func(r *Retrier) {
		r.notify = fn
	}
}

// WithTimer replaces the wall-clock timer, for tests.
func WithTimer(newTimer func() backoff.Timer) Option {
	return func(r *Retrier) {
		r.newTimer = newTimer
	}
}

// New builds a Retrier. A nil classifier retries nothing.
func New(cfg Config, retryable Classifier, opts ...Option) *Retrier {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.ExponentialBase <= 0 {
		cfg.ExponentialBase = 1
	}
	if retryable == nil {
		retryable = func(error) bool { return false }
	}
	r := &Retrier{cfg: cfg, retryable: retryable}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Retrier) Config() Config { return r.cfg }

// Do invokes fn until it succeeds, returns a non-retryable error, the
// attempts are exhausted, or ctx is done. The error returned is the one fn
// produced, never a wrapper around it.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempt := 0
	op := func() error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !r.retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var b backoff.BackOff = &exponential{cfg: r.cfg}
	b = backoff.WithMaxRetries(b, uint64(r.cfg.MaxAttempts-1))
	bctx := backoff.WithContext(b, ctx)

	notify := func(err error, wait time.Duration) {
		if r.notify != nil {
			r.notify(attempt, err, wait)
		}
	}
	if r.newTimer != nil {
		return backoff.RetryNotifyWithTimer(op, bctx, notify, r.newTimer())
	}
	return backoff.RetryNotify(op, bctx, notify)
}

// Do is the value-returning form of Retrier.Do.
func Do[T any](ctx context.Context, r *Retrier, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Delay returns the un-jittered wait before attempt k (k >= 2).
func (c Config) Delay(k int) time.Duration {
	if k < 2 {
		return 0
	}
	d := float64(c.InitialDelay) * math.Pow(c.ExponentialBase, float64(k-2))
	if d > float64(c.MaxDelay) || math.IsInf(d, 0) {
		return c.MaxDelay
	}
	return time.Duration(d)
}

// exponential implements backoff.BackOff with the Config delay law.
type exponential struct {
	cfg  Config
	next int
}

func (e *exponential) Reset() { e.next = 2 }

func (e *exponential) NextBackOff() time.Duration {
	if e.next < 2 {
		e.next = 2
	}
	d := e.cfg.Delay(e.next)
	e.next++
	if e.cfg.Jitter {
		d = time.Duration(float64(d) * (0.5 + rand.Float64()))
	}
	return d
}
