// Package circuit implements a three-state circuit breaker that guards calls
// to flaky external dependencies.
//
// A breaker starts CLOSED. Consecutive failures open it; while OPEN calls are
// rejected without invoking the guarded function. Once the timeout since the
// last failure has elapsed, the next call moves it to HALF_OPEN and is let
// through as a probe. Enough consecutive probe successes close it again, and
// any probe failure reopens it.
package circuit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrOpen matches every rejection produced by an open breaker.
var ErrOpen = errors.New("circuit open")

// OpenError is returned when a call is rejected without being attempted.
type OpenError struct {
	Name       string
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("service unavailable, retry after %d seconds", int(e.RetryAfter.Seconds()))
}

func (e *OpenError) Is(target error) bool {
	return target == ErrOpen
}

// StateChange describes a transition, passed to the state-change hook.
type StateChange struct {
	Name string
	From State
	To   State
}

// Snapshot is a point-in-time copy of the breaker counters.
type Snapshot struct {
	Name                 string    `json:"name"`
	State                string    `json:"state"`
	ConsecutiveFailures  int       `json:"consecutive_failures"`
	ConsecutiveSuccesses int       `json:"consecutive_successes"`
	LastFailure          time.Time `json:"last_failure,omitzero"`
}

const (
	defaultFailureThreshold = 5
	defaultSuccessThreshold = 2
	defaultTimeout          = 60 * time.Second
)

// Breaker is safe for concurrent use. State is mutated only under mu and the
// guarded function always runs without holding it.
type Breaker struct {
	name             string
	failureThreshold int
	successThreshold int
	timeout          time.Duration
	now              func() time.Time
	isFailure        func(error) bool
	onStateChange    func(StateChange)

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	lastFailure time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithFailureThreshold sets how many consecutive failures open the breaker.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets how many consecutive HALF_OPEN successes close it.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

// WithTimeout sets how long the breaker stays OPEN after the last failure.
func WithTimeout(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// WithFailurePredicate decides which errors count against the dependency.
// Errors for which it returns false leave the counters untouched.
func WithFailurePredicate(fn func(error) bool) Option {
	return func(b *Breaker) {
		if fn != nil {
			b.isFailure = fn
		}
	}
}

// WithStateChangeHook registers fn to be called after every transition.
// It runs outside the breaker lock.
func WithStateChangeHook(fn func(StateChange)) Option {
	return func(b *Breaker) {
		b.onStateChange = fn
	}
}

// DefaultFailurePredicate treats everything except caller cancellation as a
// dependency failure.
func DefaultFailurePredicate(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// New creates a CLOSED breaker.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: defaultFailureThreshold,
		successThreshold: defaultSuccessThreshold,
		timeout:          defaultTimeout,
		now:              time.Now,
		isFailure:        DefaultFailurePredicate,
		state:            StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Breaker) Name() string { return b.name }

// State returns the stored state. An OPEN breaker whose timeout has elapsed
// still reports OPEN until a call is attempted.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) IsOpen() bool {
	return b.State() == StateOpen
}

func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Name:                 b.name,
		State:                b.state.String(),
		ConsecutiveFailures:  b.failures,
		ConsecutiveSuccesses: b.successes,
		LastFailure:          b.lastFailure,
	}
}

// Reset forces the breaker CLOSED and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	change, changed := b.transitionLocked(StateClosed)
	b.failures = 0
	b.successes = 0
	b.mu.Unlock()
	b.notify(change, changed)
}

// Execute runs fn through the breaker. When the breaker rejects the call fn
// is not invoked and an *OpenError is returned.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn(ctx)
	b.after(err)
	return err
}

// Call is Execute for functions that produce a value.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := b.Execute(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	if b.state != StateOpen {
		b.mu.Unlock()
		return nil
	}
	elapsed := b.now().Sub(b.lastFailure)
	if elapsed > b.timeout {
		b.successes = 0
		change, changed := b.transitionLocked(StateHalfOpen)
		b.mu.Unlock()
		b.notify(change, changed)
		return nil
	}
	retryAfter := max(b.timeout-elapsed, 0)
	b.mu.Unlock()
	return &OpenError{Name: b.name, RetryAfter: retryAfter}
}

func (b *Breaker) after(err error) {
	if err != nil && !b.isFailure(err) {
		return
	}

	b.mu.Lock()
	var (
		change  StateChange
		changed bool
	)
	if err == nil {
		change, changed = b.onSuccessLocked()
	} else {
		change, changed = b.onFailureLocked()
	}
	b.mu.Unlock()
	b.notify(change, changed)
}

func (b *Breaker) onSuccessLocked() (StateChange, bool) {
	switch b.state {
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.successThreshold {
			b.failures = 0
			b.successes = 0
			return b.transitionLocked(StateClosed)
		}
	case StateClosed:
		b.failures = 0
	}
	return StateChange{}, false
}

func (b *Breaker) onFailureLocked() (StateChange, bool) {
	b.lastFailure = b.now()
	switch b.state {
	case StateHalfOpen:
		b.successes = 0
		return b.transitionLocked(StateOpen)
	case StateClosed:
		b.failures++
		if b.failures >= b.failureThreshold {
			return b.transitionLocked(StateOpen)
		}
	case StateOpen:
		// A call admitted before the breaker opened finished late.
		b.failures++
	}
	return StateChange{}, false
}

func (b *Breaker) transitionLocked(to State) (StateChange, bool) {
	if b.state == to {
		return StateChange{}, false
	}
	change := StateChange{Name: b.name, From: b.state, To: to}
	b.state = to
	return change, true
}

func (b *Breaker) notify(change StateChange, changed bool) {
	if changed && b.onStateChange != nil {
		b.onStateChange(change)
	}
}
