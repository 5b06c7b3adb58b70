package circuit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docverify/pkg/platform/sentinel"
)

var errDependency = errors.New("dependency down")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func fail(context.Context) error    { return errDependency }
func succeed(context.Context) error { return nil }

func TestBreaker_InitialState(t *testing.T) {
	b := New("test")
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "test", b.Name())
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	ctx := context.Background()
	b := New("ocr", WithFailureThreshold(3))

	for range 2 {
		require.ErrorIs(t, b.Execute(ctx, fail), errDependency)
		assert.Equal(t, StateClosed, b.State())
	}

	require.ErrorIs(t, b.Execute(ctx, fail), errDependency)
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrOpen)
	assert.False(t, called, "open breaker must not invoke the function")
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	ctx := context.Background()
	b := New("test", WithFailureThreshold(3))

	_ = b.Execute(ctx, fail)
	_ = b.Execute(ctx, fail)
	require.NoError(t, b.Execute(ctx, succeed))

	_ = b.Execute(ctx, fail)
	_ = b.Execute(ctx, fail)
	assert.False(t, b.IsOpen())

	_ = b.Execute(ctx, fail)
	assert.True(t, b.IsOpen())
}

func TestBreaker_RejectionMessage(t *testing.T) {
	clock := newFakeClock()
	b := New("llm", WithFailureThreshold(1), WithTimeout(30*time.Second), WithClock(clock.Now))

	_ = b.Execute(context.Background(), fail)
	clock.Advance(10 * time.Second)

	err := b.Execute(context.Background(), succeed)
	var openErr *OpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, "llm", openErr.Name)
	assert.Equal(t, 20*time.Second, openErr.RetryAfter)
	assert.Equal(t, "service unavailable, retry after 20 seconds", err.Error())
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	ctx := context.Background()

	t.Run("probe is admitted only after the timeout", func(t *testing.T) {
		clock := newFakeClock()
		b := New("ocr", WithFailureThreshold(1), WithSuccessThreshold(2), WithTimeout(time.Minute), WithClock(clock.Now))
		_ = b.Execute(ctx, fail)

		clock.Advance(time.Minute)
		require.ErrorIs(t, b.Execute(ctx, succeed), ErrOpen, "elapsed must exceed the timeout")

		clock.Advance(time.Second)
		assert.Equal(t, StateOpen, b.State(), "transition is lazy")
		require.NoError(t, b.Execute(ctx, succeed))
		assert.Equal(t, StateHalfOpen, b.State())
	})

	t.Run("success threshold closes", func(t *testing.T) {
		clock := newFakeClock()
		b := New("ocr", WithFailureThreshold(1), WithSuccessThreshold(2), WithTimeout(time.Minute), WithClock(clock.Now))
		_ = b.Execute(ctx, fail)
		clock.Advance(2 * time.Minute)

		require.NoError(t, b.Execute(ctx, succeed))
		require.NoError(t, b.Execute(ctx, succeed))
		assert.Equal(t, StateClosed, b.State())
		snap := b.Snapshot()
		assert.Zero(t, snap.ConsecutiveFailures)
		assert.Zero(t, snap.ConsecutiveSuccesses)
	})

	t.Run("failure reopens and resets successes", func(t *testing.T) {
		clock := newFakeClock()
		b := New("ocr", WithFailureThreshold(1), WithSuccessThreshold(3), WithTimeout(time.Minute), WithClock(clock.Now))
		_ = b.Execute(ctx, fail)
		clock.Advance(2 * time.Minute)

		require.NoError(t, b.Execute(ctx, succeed))
		require.ErrorIs(t, b.Execute(ctx, fail), errDependency)
		assert.Equal(t, StateOpen, b.State())
		assert.Zero(t, b.Snapshot().ConsecutiveSuccesses)

		require.ErrorIs(t, b.Execute(ctx, succeed), ErrOpen, "timeout restarts from the probe failure")
	})
}

func TestBreaker_CancellationIsNotAFailure(t *testing.T) {
	b := New("llm", WithFailureThreshold(1))
	err := b.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_Reset(t *testing.T) {
	b := New("test", WithFailureThreshold(1))
	_ = b.Execute(context.Background(), fail)
	require.True(t, b.IsOpen())

	b.Reset()
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_StateChangeHook(t *testing.T) {
	clock := newFakeClock()
	var changes []StateChange
	b := New("ocr",
		WithFailureThreshold(1),
		WithSuccessThreshold(1),
		WithTimeout(time.Second),
		WithClock(clock.Now),
		WithStateChangeHook(func(c StateChange) { changes = append(changes, c) }),
	)

	_ = b.Execute(context.Background(), fail)
	clock.Advance(2 * time.Second)
	_ = b.Execute(context.Background(), succeed)

	require.Len(t, changes, 3)
	assert.Equal(t, StateChange{Name: "ocr", From: StateClosed, To: StateOpen}, changes[0])
	assert.Equal(t, StateChange{Name: "ocr", From: StateOpen, To: StateHalfOpen}, changes[1])
	assert.Equal(t, StateChange{Name: "ocr", From: StateHalfOpen, To: StateClosed}, changes[2])
}

func TestCall(t *testing.T) {
	b := New("llm")
	got, err := Call(context.Background(), b, func(context.Context) (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestBreaker_ConcurrentUse(t *testing.T) {
	b := New("ocr", WithFailureThreshold(1000))
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_ = b.Execute(context.Background(), fail)
				return
			}
			_ = b.Execute(context.Background(), succeed)
		}()
	}
	wg.Wait()
	assert.Equal(t, StateClosed, b.State())
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(New("ocr", WithFailureThreshold(1)))
	reg.Register(New("llm"))

	_ = reg.Get("ocr").Execute(context.Background(), fail)

	snaps := reg.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, "llm", snaps[0].Name)
	assert.Equal(t, "OPEN", snaps[1].State)

	require.NoError(t, reg.Reset("ocr"))
	assert.Equal(t, StateClosed, reg.Get("ocr").State())

	err := reg.Reset("missing")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}
