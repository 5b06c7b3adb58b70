package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"docverify/internal/platform/metrics"
	"docverify/internal/verification"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/sentinel"
	"docverify/pkg/requestcontext"
)

// Executor runs one verification.
type Executor interface {
	Run(ctx context.Context, req verification.RunRequest) (*verification.RunResult, error)
}

// Sweeper is implemented by stores that must evict finished jobs themselves.
// Stores with native expiry, such as Redis, do not need it.
type Sweeper interface {
	Sweep(ctx context.Context) int
}

// Runner queues submitted verifications and executes them on a bounded
// worker pool. Jobs outlive the request that submitted them; they stop only
// when the runner's context is cancelled.
type Runner struct {
	exec    Executor
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	clock   func() time.Time
	newID   func() string

	queue  chan task
	group  *errgroup.Group
	ctx    context.Context
	done   chan struct{}
	stop   chan struct{}
	mu     sync.RWMutex
	closed bool
}

type task struct {
	job       Job
	req       verification.RunRequest
	now       time.Time
	requestID string
}

type RunnerOption func(*runnerConfig)

type runnerConfig struct {
	workers       int
	queueSize     int
	sweepInterval time.Duration
	logger        *slog.Logger
	metrics       *metrics.Metrics
	clock         func() time.Time
	newID         func() string
}

// WithWorkers caps the number of concurrently running jobs.
func WithWorkers(n int) RunnerOption {
	return func(c *runnerConfig) { c.workers = n }
}

// WithQueueSize bounds the number of jobs waiting for a worker.
func WithQueueSize(n int) RunnerOption {
	return func(c *runnerConfig) { c.queueSize = n }
}

// WithSweepInterval sets how often expired jobs are evicted from a store
// that implements Sweeper. Zero disables the sweep.
func WithSweepInterval(d time.Duration) RunnerOption {
	return func(c *runnerConfig) { c.sweepInterval = d }
}

func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(c *runnerConfig) { c.logger = logger }
}

func WithRunnerMetrics(m *metrics.Metrics) RunnerOption {
	return func(c *runnerConfig) { c.metrics = m }
}

func WithRunnerClock(clock func() time.Time) RunnerOption {
	return func(c *runnerConfig) { c.clock = clock }
}

func WithJobIDGenerator(fn func() string) RunnerOption {
	return func(c *runnerConfig) { c.newID = fn }
}

// NewRunner starts the dispatcher. Call Close to drain it.
func NewRunner(ctx context.Context, exec Executor, store Store, opts ...RunnerOption) (*Runner, error) {
	switch {
	case exec == nil:
		return nil, errors.New("executor is required")
	case store == nil:
		return nil, errors.New("job store is required")
	}
	cfg := runnerConfig{
		workers:       4,
		queueSize:     256,
		sweepInterval: time.Minute,
		logger:        slog.Default(),
		clock:         time.Now,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.workers < 1 {
		return nil, fmt.Errorf("workers must be positive, got %d", cfg.workers)
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(cfg.workers)

	r := &Runner{
		exec:    exec,
		store:   store,
		logger:  cfg.logger,
		metrics: cfg.metrics,
		clock:   cfg.clock,
		newID:   cfg.newID,
		queue:   make(chan task, cfg.queueSize),
		group:   group,
		ctx:     gctx,
		done:    make(chan struct{}),
		stop:    make(chan struct{}),
	}
	go r.dispatch()
	if sw, ok := store.(Sweeper); ok && cfg.sweepInterval > 0 {
		go r.sweep(sw, cfg.sweepInterval)
	}
	return r, nil
}

// sweep evicts expired jobs until the runner is closed or its context ends.
func (r *Runner) sweep(sw Sweeper, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := sw.Sweep(r.ctx); n > 0 {
				r.logger.DebugContext(r.ctx, "expired jobs evicted", "count", n)
			}
		case <-r.stop:
			return
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Runner) dispatch() {
	defer close(r.done)
	for t := range r.queue {
		r.group.Go(func() error {
			r.execute(t)
			return nil
		})
	}
}

// Submit records a queued job and hands it to the worker pool. The request
// ID and request time of ctx are carried into the background run.
func (r *Runner) Submit(ctx context.Context, req verification.RunRequest) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, dErrors.Wrap(sentinel.ErrUnavailable, dErrors.CodeServiceUnavailable, "job runner is shutting down")
	}

	job := Job{
		ID:          r.newID(),
		Status:      StatusQueued,
		SubmittedAt: r.clock(),
	}
	req.RunID = job.ID
	if err := r.store.Set(ctx, &job); err != nil {
		return nil, fmt.Errorf("store queued job: %w", err)
	}

	t := task{
		job:       job,
		req:       req,
		now:       requestcontext.Now(ctx),
		requestID: requestcontext.RequestID(ctx),
	}
	r.metrics.MoveJob("", string(StatusQueued))
	select {
	case r.queue <- t:
	default:
		r.finish(ctx, &job, nil, dErrors.New(dErrors.CodeServiceUnavailable, "job queue is full"))
		r.metrics.MoveJob(string(StatusQueued), string(StatusFailed))
		return nil, dErrors.Wrap(sentinel.ErrUnavailable, dErrors.CodeServiceUnavailable, "job queue is full")
	}

	r.logger.InfoContext(ctx, "verification job queued", "job_id", job.ID)
	return &job, nil
}

func (r *Runner) execute(t task) {
	ctx := requestcontext.WithRequestID(r.ctx, t.requestID)
	ctx = requestcontext.WithTime(ctx, t.now)

	job := t.job
	started := r.clock()
	job.Status = StatusRunning
	job.StartedAt = &started
	if err := r.store.Set(ctx, &job); err != nil {
		r.logger.ErrorContext(ctx, "failed to mark job running", "job_id", job.ID, "error", err)
	}
	r.metrics.MoveJob(string(StatusQueued), string(StatusRunning))

	res, err := r.exec.Run(ctx, t.req)
	if err == nil {
		err = res.Failure()
	}
	r.finish(context.WithoutCancel(ctx), &job, res, err)
	r.metrics.MoveJob(string(StatusRunning), string(job.Status))
}

// finish records the terminal state of job.
func (r *Runner) finish(ctx context.Context, job *Job, res *verification.RunResult, err error) {
	finished := r.clock()
	job.FinishedAt = &finished
	job.Status = StatusCompleted
	if res != nil {
		job.Result = &Summary{
			RunID:                 res.RunID,
			Verdict:               res.Verdict,
			Errors:                res.Errors,
			ProcessingTimeSeconds: res.ProcessingTimeSeconds,
			TraceID:               res.TraceID,
		}
	}
	if err != nil {
		job.Status = StatusFailed
		job.Error = &JobError{Code: dErrors.CodeOf(err), Message: dErrors.MessageOf(err)}
	}

	if serr := r.store.Set(ctx, job); serr != nil {
		r.logger.ErrorContext(ctx, "failed to store job result", "job_id", job.ID, "error", serr)
		return
	}
	attrs := []any{"job_id", job.ID, "status", job.Status}
	if job.Error != nil {
		attrs = append(attrs, "code", job.Error.Code)
	}
	r.logger.InfoContext(ctx, "verification job finished", attrs...)
}

// Get returns a job's current status.
func (r *Runner) Get(ctx context.Context, id string) (*Job, error) {
	return r.store.Get(ctx, id)
}

// List returns all known jobs, newest first.
func (r *Runner) List(ctx context.Context) ([]*Job, error) {
	return r.store.List(ctx)
}

// Close stops accepting jobs and waits for queued and running ones to
// finish, or for ctx to expire.
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
		close(r.stop)
	}
	r.mu.Unlock()

	waited := make(chan error, 1)
	go func() {
		<-r.done
		waited <- r.group.Wait()
	}()
	select {
	case err := <-waited:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
