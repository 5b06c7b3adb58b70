package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "docverify/pkg/domain-errors"
)

var (
	errTransient = errors.New("transient")
	errFatal     = errors.New("fatal")
)

// instantTimer fires immediately and records the requested waits.
type instantTimer struct {
	waits []time.Duration
	c     chan time.Time
}

func newInstantTimer() *instantTimer {
	return &instantTimer{c: make(chan time.Time, 1)}
}

func (t *instantTimer) Start(d time.Duration) {
	t.waits = append(t.waits, d)
	t.c <- time.Now()
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time { return t.c }

func (t *instantTimer) factory() backoff.Timer { return t }

func noJitter() Config {
	return Config{
		MaxAttempts:     4,
		InitialDelay:    100 * time.Millisecond,
		MaxDelay:        250 * time.Millisecond,
		ExponentialBase: 2,
	}
}

func TestRetrier_SucceedsAfterMaxMinusOneFailures(t *testing.T) {
	timer := newInstantTimer()
	r := New(noJitter(), OnErrors(errTransient), WithTimer(timer.factory))

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 4 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		250 * time.Millisecond,
	}, timer.waits)
}

func TestRetrier_ExhaustionReturnsOriginalError(t *testing.T) {
	timer := newInstantTimer()
	r := New(noJitter(), OnErrors(errTransient), WithTimer(timer.factory))

	calls := 0
	last := errors.New("third")
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 4 {
			return errors.Join(errTransient, last)
		}
		return errTransient
	})

	assert.Equal(t, 4, calls)
	require.ErrorIs(t, err, last)
	assert.Len(t, timer.waits, 3)
}

func TestRetrier_ExhaustionDoesNotWrap(t *testing.T) {
	timer := newInstantTimer()
	r := New(noJitter(), OnErrors(errTransient), WithTimer(timer.factory))

	err := r.Do(context.Background(), func(context.Context) error { return errTransient })
	assert.Same(t, errTransient, err)
}

func TestRetrier_NonRetryablePropagatesImmediately(t *testing.T) {
	timer := newInstantTimer()
	r := New(noJitter(), OnErrors(errTransient), WithTimer(timer.factory))

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return errFatal
	})

	assert.Same(t, errFatal, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, timer.waits)
}

func TestRetrier_OnCodes(t *testing.T) {
	timer := newInstantTimer()
	r := New(noJitter(), OnCodes(dErrors.CodeServiceUnavailable), WithTimer(timer.factory))

	calls := 0
	_, err := Do(context.Background(), r, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", dErrors.New(dErrors.CodeServiceUnavailable, "later")
		}
		return "", dErrors.New(dErrors.CodeBadRequest, "no")
	})

	assert.Equal(t, 2, calls)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestRetrier_NotifyCountsAttempts(t *testing.T) {
	timer := newInstantTimer()
	var attempts []int
	r := New(noJitter(), OnErrors(errTransient),
		WithTimer(timer.factory),
		WithNotify(func(attempt int, _ error, _ time.Duration) { attempts = append(attempts, attempt) }),
	)

	_ = r.Do(context.Background(), func(context.Context) error { return errTransient })
	assert.Equal(t, []int{1, 2, 3}, attempts)
}

func TestRetrier_ContextCancelStopsWaiting(t *testing.T) {
	cfg := Config{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour, ExponentialBase: 2}
	r := New(cfg, OnErrors(errTransient))

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- r.Do(ctx, func(context.Context) error {
			calls++
			return errTransient
		})
	}()
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	case <-time.After(5 * time.Second):
		t.Fatal("retry did not observe cancellation")
	}
}

func TestRetrier_SingleAttempt(t *testing.T) {
	r := New(Config{}, OnErrors(errTransient))
	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})
	assert.Same(t, errTransient, err)
	assert.Equal(t, 1, calls)
}

func TestConfig_Delay(t *testing.T) {
	cfg := Config{InitialDelay: time.Second, MaxDelay: 10 * time.Second, ExponentialBase: 3}
	assert.Equal(t, time.Duration(0), cfg.Delay(1))
	assert.Equal(t, time.Second, cfg.Delay(2))
	assert.Equal(t, 3*time.Second, cfg.Delay(3))
	assert.Equal(t, 9*time.Second, cfg.Delay(4))
	assert.Equal(t, 10*time.Second, cfg.Delay(5))
	assert.Equal(t, 10*time.Second, cfg.Delay(500))
}

func TestJitterBounds(t *testing.T) {
	cfg := Config{InitialDelay: time.Second, MaxDelay: time.Second, ExponentialBase: 2, Jitter: true}
	b := &exponential{cfg: cfg}
	b.Reset()
	for range 200 {
		d := b.NextBackOff()
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, 1500*time.Millisecond)
	}
}

func TestAny(t *testing.T) {
	c := Any(OnErrors(errTransient), OnCodes(dErrors.CodeTimeout))
	assert.True(t, c(errTransient))
	assert.True(t, c(dErrors.New(dErrors.CodeTimeout, "slow")))
	assert.False(t, c(errFatal))
}
