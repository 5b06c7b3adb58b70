package collaborators

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docverify/internal/verification/ports"
	"docverify/pkg/platform/circuit"
	"docverify/pkg/platform/retry"
)

type instantTimer struct{ c chan time.Time }

func (t *instantTimer) Start(time.Duration) { t.c <- time.Time{} }
func (t *instantTimer) Stop()               {}
func (t *instantTimer) C() <-chan time.Time { return t.c }

func newInstantTimer() backoff.Timer { return &instantTimer{c: make(chan time.Time, 1)} }

func testGuard(reg *circuit.Registry) *Guard {
	return NewGuard("ocr", GuardConfig{
		Retry:            retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, ExponentialBase: 2},
		FailureThreshold: 3,
		SuccessThreshold: 1,
		BreakerTimeout:   time.Minute,
	},
		WithGuardLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRegistry(reg),
		WithRetryOptions(retry.WithTimer(newInstantTimer)),
	)
}

func TestGuardRetriesTransientFailures(t *testing.T) {
	g := testGuard(circuit.NewRegistry())
	calls := 0

	out, err := Call(context.Background(), g, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewCallError(CategoryOutage, "ocr", "http 503", nil)
		}
		return "text", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "text", out)
	assert.Equal(t, 3, calls)
	assert.Equal(t, circuit.StateClosed, g.Breaker().State())
}

func TestGuardDoesNotRetryBadData(t *testing.T) {
	g := testGuard(circuit.NewRegistry())
	calls := 0

	_, err := Call(context.Background(), g, func(context.Context) (string, error) {
		calls++
		return "", NewCallError(CategoryBadData, "ocr", "parse reply", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, ports.ErrMalformedResponse)
	assert.Equal(t, 0, g.Breaker().Snapshot().ConsecutiveFailures)
}

func TestGuardStopsRetryingWhenBreakerOpens(t *testing.T) {
	reg := circuit.NewRegistry()
	g := testGuard(reg)
	calls := 0
	outage := func(context.Context) (string, error) {
		calls++
		return "", NewCallError(CategoryOutage, "ocr", "connection refused", nil)
	}

	_, err := Call(context.Background(), g, outage)
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, g.Breaker().IsOpen())
	assert.Same(t, g.Breaker(), reg.Get("ocr"))

	_, err = Call(context.Background(), g, outage)
	require.Error(t, err)
	assert.ErrorIs(t, err, circuit.ErrOpen)
	assert.Equal(t, 3, calls, "open breaker must not invoke the call")
}

func TestCountsAsOutage(t *testing.T) {
	assert.True(t, countsAsOutage(NewCallError(CategoryTimeout, "x", "slow", nil)))
	assert.True(t, countsAsOutage(errors.New("plain")))
	assert.False(t, countsAsOutage(NewCallError(CategoryRejected, "x", "http 400", nil)))
	assert.False(t, countsAsOutage(context.Canceled))
}

func TestStatusCategory(t *testing.T) {
	assert.Equal(t, CategoryRateLimited, statusCategory(429))
	assert.Equal(t, CategoryAuthentication, statusCategory(401))
	assert.Equal(t, CategoryTimeout, statusCategory(504))
	assert.Equal(t, CategoryOutage, statusCategory(502))
	assert.Equal(t, CategoryRejected, statusCategory(422))
	assert.True(t, IsRetryable(NewCallError(statusCategory(503), "x", "", nil)))
	assert.False(t, IsRetryable(NewCallError(statusCategory(400), "x", "", nil)))
}
