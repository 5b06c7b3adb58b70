package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"docverify/internal/platform/metrics"
	"docverify/internal/verification"
	"docverify/internal/verification/models"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/requestcontext"
)

type executorFunc func(ctx context.Context, req verification.RunRequest) (*verification.RunResult, error)

func (f executorFunc) Run(ctx context.Context, req verification.RunRequest) (*verification.RunResult, error) {
	return f(ctx, req)
}

type RunnerSuite struct {
	suite.Suite
	store   *InMemoryStore
	metrics *metrics.Metrics
	ids     atomic.Int64
}

func TestRunnerSuite(t *testing.T) {
	suite.Run(t, new(RunnerSuite))
}

func (s *RunnerSuite) SetupTest() {
	s.store = NewInMemoryStore(time.Hour)
	s.metrics = metrics.NewWith(prometheus.NewRegistry())
	s.ids.Store(0)
}

func (s *RunnerSuite) newRunner(exec Executor, opts ...RunnerOption) *Runner {
	opts = append([]RunnerOption{
		WithRunnerMetrics(s.metrics),
		WithJobIDGenerator(func() string {
			return fmt.Sprintf("job-%d", s.ids.Add(1))
		}),
	}, opts...)
	r, err := NewRunner(context.Background(), exec, s.store, opts...)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = r.Close(context.Background()) })
	return r
}

func (s *RunnerSuite) waitFor(id string, status Status) *Job {
	var job *Job
	s.Require().Eventually(func() bool {
		j, err := s.store.Get(context.Background(), id)
		if err != nil {
			return false
		}
		job = j
		return j.Status == status
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func (s *RunnerSuite) TestCompletedJobCarriesSummary() {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	var seen verification.RunRequest
	var seenNow time.Time
	var seenRequestID string
	r := s.newRunner(executorFunc(func(ctx context.Context, req verification.RunRequest) (*verification.RunResult, error) {
		seen = req
		seenNow = requestcontext.Now(ctx)
		seenRequestID = requestcontext.RequestID(ctx)
		return &verification.RunResult{
			RunID:   req.RunID,
			Verdict: false,
			Errors:  []models.ErrorRecord{{Code: dErrors.CodeFIOMismatch}},
		}, nil
	}))

	ctx := requestcontext.WithTime(requestcontext.WithRequestID(context.Background(), "req-1"), now)
	job, err := r.Submit(ctx, verification.RunRequest{ClaimedFIO: "Иванов И.И."})
	s.Require().NoError(err)
	s.Equal(StatusQueued, job.Status)

	done := s.waitFor(job.ID, StatusCompleted)
	s.Require().NotNil(done.Result)
	s.Equal(job.ID, done.Result.RunID)
	s.False(done.Result.Verdict)
	s.Equal(dErrors.CodeFIOMismatch, done.Result.Errors[0].Code)
	s.Nil(done.Error)
	s.NotNil(done.StartedAt)
	s.NotNil(done.FinishedAt)

	s.Equal(job.ID, seen.RunID)
	s.Equal("Иванов И.И.", seen.ClaimedFIO)
	s.True(now.Equal(seenNow))
	s.Equal("req-1", seenRequestID)

	s.Require().Eventually(func() bool {
		return testutil.ToFloat64(s.metrics.Jobs.WithLabelValues(string(StatusCompleted))) == 1
	}, time.Second, 5*time.Millisecond)
	s.Equal(0.0, testutil.ToFloat64(s.metrics.Jobs.WithLabelValues(string(StatusRunning))))
}

func (s *RunnerSuite) TestRunErrorFailsJob() {
	r := s.newRunner(executorFunc(func(context.Context, verification.RunRequest) (*verification.RunResult, error) {
		return nil, dErrors.Wrap(errors.New("disk full"), dErrors.CodeArtifactWriteFailed, "run artifact could not be stored")
	}))

	job, err := r.Submit(context.Background(), verification.RunRequest{})
	s.Require().NoError(err)

	done := s.waitFor(job.ID, StatusFailed)
	s.Require().NotNil(done.Error)
	s.Equal(dErrors.CodeArtifactWriteFailed, done.Error.Code)
	s.Equal("run artifact could not be stored", done.Error.Message)
	s.Nil(done.Result)
}

func (s *RunnerSuite) TestWorkersAreBounded() {
	var (
		mu      sync.Mutex
		running int
		peak    int
	)
	release := make(chan struct{})
	r := s.newRunner(executorFunc(func(_ context.Context, req verification.RunRequest) (*verification.RunResult, error) {
		mu.Lock()
		running++
		peak = max(peak, running)
		mu.Unlock()
		<-release
		mu.Lock()
		running--
		mu.Unlock()
		return &verification.RunResult{RunID: req.RunID, Verdict: true}, nil
	}), WithWorkers(2))

	var ids []string
	for range 5 {
		job, err := r.Submit(context.Background(), verification.RunRequest{})
		s.Require().NoError(err)
		ids = append(ids, job.ID)
	}
	s.Require().Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return running == 2
	}, time.Second, 5*time.Millisecond)
	close(release)

	for _, id := range ids {
		s.waitFor(id, StatusCompleted)
	}
	s.Equal(2, peak)
}

func (s *RunnerSuite) TestFullQueueRejects() {
	block := make(chan struct{})
	defer close(block)
	r := s.newRunner(executorFunc(func(_ context.Context, req verification.RunRequest) (*verification.RunResult, error) {
		<-block
		return &verification.RunResult{RunID: req.RunID}, nil
	}), WithWorkers(1), WithQueueSize(1))

	var rejected error
	for range 5 {
		if _, err := r.Submit(context.Background(), verification.RunRequest{}); err != nil {
			rejected = err
			break
		}
	}
	s.Require().Error(rejected)
	s.True(dErrors.HasCode(rejected, dErrors.CodeServiceUnavailable))
}

func (s *RunnerSuite) TestSubmitAfterClose() {
	r := s.newRunner(executorFunc(func(_ context.Context, req verification.RunRequest) (*verification.RunResult, error) {
		return &verification.RunResult{RunID: req.RunID}, nil
	}))
	s.Require().NoError(r.Close(context.Background()))

	_, err := r.Submit(context.Background(), verification.RunRequest{})
	s.True(dErrors.HasCode(err, dErrors.CodeServiceUnavailable))
}

func (s *RunnerSuite) TestCloseDrainsQueuedJobs() {
	r, err := NewRunner(context.Background(), executorFunc(func(_ context.Context, req verification.RunRequest) (*verification.RunResult, error) {
		time.Sleep(10 * time.Millisecond)
		return &verification.RunResult{RunID: req.RunID, Verdict: true}, nil
	}), s.store, WithWorkers(1))
	s.Require().NoError(err)

	var ids []string
	for range 3 {
		job, err := r.Submit(context.Background(), verification.RunRequest{})
		s.Require().NoError(err)
		ids = append(ids, job.ID)
	}
	s.Require().NoError(r.Close(context.Background()))

	for _, id := range ids {
		j, err := s.store.Get(context.Background(), id)
		s.Require().NoError(err)
		s.Equal(StatusCompleted, j.Status)
	}
}

func TestNewRunnerValidates(t *testing.T) {
	_, err := NewRunner(context.Background(), nil, NewInMemoryStore(0))
	require.Error(t, err)
	_, err = NewRunner(context.Background(), executorFunc(nil), nil)
	require.Error(t, err)
	_, err = NewRunner(context.Background(), executorFunc(nil), NewInMemoryStore(0), WithWorkers(0))
	assert.Error(t, err)
}

func (s *RunnerSuite) TestSweepEvictsFinishedJobs() {
	var mu sync.Mutex
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	s.store = NewInMemoryStore(time.Minute, WithMemoryClock(clock))
	finished := now
	s.Require().NoError(s.store.Set(context.Background(), &Job{ID: "old", Status: StatusCompleted, SubmittedAt: now, FinishedAt: &finished}))

	s.newRunner(executorFunc(func(context.Context, verification.RunRequest) (*verification.RunResult, error) {
		return nil, errors.New("unused")
	}), WithSweepInterval(5*time.Millisecond))

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	s.Eventually(func() bool { return s.store.size() == 0 }, 2*time.Second, 5*time.Millisecond)
}
