package jobs

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docverify/pkg/platform/sentinel"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	t.Run("get missing", func(t *testing.T) {
		_, err := NewInMemoryStore(time.Hour).Get(ctx, "nope")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("set overwrites and returns copies", func(t *testing.T) {
		s := NewInMemoryStore(time.Hour)
		job := &Job{ID: "a", Status: StatusQueued, SubmittedAt: base}
		require.NoError(t, s.Set(ctx, job))
		job.Status = StatusRunning

		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, StatusQueued, got.Status)

		require.NoError(t, s.Set(ctx, job))
		got, err = s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, StatusRunning, got.Status)
	})

	t.Run("list newest first", func(t *testing.T) {
		s := NewInMemoryStore(time.Hour)
		for i := range 20 {
			require.NoError(t, s.Set(ctx, &Job{
				ID:          fmt.Sprintf("job-%02d", i),
				Status:      StatusQueued,
				SubmittedAt: base.Add(time.Duration(i) * time.Second),
			}))
		}
		jobs, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, jobs, 20)
		assert.Equal(t, "job-19", jobs[0].ID)
		assert.Equal(t, "job-00", jobs[19].ID)
	})

	t.Run("finished jobs expire", func(t *testing.T) {
		now := base
		s := NewInMemoryStore(time.Minute, WithMemoryClock(func() time.Time { return now }))
		finished := base
		require.NoError(t, s.Set(ctx, &Job{ID: "done", Status: StatusCompleted, SubmittedAt: base, FinishedAt: &finished}))
		require.NoError(t, s.Set(ctx, &Job{ID: "waiting", Status: StatusQueued, SubmittedAt: base}))

		now = base.Add(2 * time.Minute)
		_, err := s.Get(ctx, "done")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)

		jobs, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, "waiting", jobs[0].ID)
	})

	t.Run("expired jobs are evicted, not just hidden", func(t *testing.T) {
		now := base
		s := NewInMemoryStore(time.Minute, WithMemoryClock(func() time.Time { return now }))
		finished := base
		for i := range 10 {
			require.NoError(t, s.Set(ctx, &Job{ID: fmt.Sprintf("done-%d", i), Status: StatusCompleted, SubmittedAt: base, FinishedAt: &finished}))
		}
		require.NoError(t, s.Set(ctx, &Job{ID: "running", Status: StatusRunning, SubmittedAt: base}))
		require.Equal(t, 11, s.size())

		now = base.Add(2 * time.Minute)
		jobs, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, 1, s.size())
	})

	t.Run("sweep removes expired jobs", func(t *testing.T) {
		now := base
		s := NewInMemoryStore(time.Minute, WithMemoryClock(func() time.Time { return now }))
		finished := base
		require.NoError(t, s.Set(ctx, &Job{ID: "done", Status: StatusFailed, SubmittedAt: base, FinishedAt: &finished}))
		require.NoError(t, s.Set(ctx, &Job{ID: "waiting", Status: StatusQueued, SubmittedAt: base}))

		assert.Zero(t, s.Sweep(ctx))
		now = base.Add(time.Minute + time.Second)
		assert.Equal(t, 1, s.Sweep(ctx))
		assert.Equal(t, 1, s.size())
		assert.Zero(t, NewInMemoryStore(0).Sweep(ctx))
	})

	t.Run("concurrent writers", func(t *testing.T) {
		s := NewInMemoryStore(0)
		var wg sync.WaitGroup
		for i := range 64 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id := fmt.Sprintf("job-%d", i)
				assert.NoError(t, s.Set(ctx, &Job{ID: id, Status: StatusQueued, SubmittedAt: base}))
				_, err := s.Get(ctx, id)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		jobs, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, jobs, 64)
	})
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusQueued.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
}

// size counts stored entries, expired or not.
func (s *InMemoryStore) size() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.jobs)
		sh.mu.RUnlock()
	}
	return n
}
