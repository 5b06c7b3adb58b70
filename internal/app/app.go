// Package app builds the verification service from configuration. Both the
// server and the CLI use it so they run the same pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"docverify/internal/collaborators"
	"docverify/internal/collaborators/llm"
	"docverify/internal/collaborators/ocr"
	"docverify/internal/doctype"
	"docverify/internal/events"
	"docverify/internal/identity/namematch"
	"docverify/internal/jobs"
	"docverify/internal/platform/config"
	"docverify/internal/platform/metrics"
	"docverify/internal/platform/objectstore"
	"docverify/internal/platform/postgres"
	"docverify/internal/platform/redis"
	"docverify/internal/ratelimit"
	"docverify/internal/storage/results"
	"docverify/internal/storage/source"
	"docverify/internal/validation"
	"docverify/internal/verification"
	vmetrics "docverify/internal/verification/metrics"
	"docverify/internal/verification/ports"
	"docverify/pkg/platform/circuit"
	"docverify/pkg/platform/retry"
)

// App holds the wired components and the resources to release on Close.
type App struct {
	Config       config.Config
	Logger       *slog.Logger
	Catalog      *doctype.Catalog
	Breakers     *circuit.Registry
	Orchestrator *verification.Orchestrator
	Results      ports.ResultStore
	Jobs         *jobs.Runner
	RateLimit    *ratelimit.Middleware
	HealthChecks map[string]func(ctx context.Context) error

	redis   *redis.Client
	closers []func(ctx context.Context) error
}

type options struct {
	registerer prometheus.Registerer
	withJobs   bool
}

type Option func(*options)

// WithRegisterer sends metrics to reg instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithoutJobs skips the background job runner, for one-shot CLI runs.
func WithoutJobs() Option {
	return func(o *options) { o.withJobs = false }
}

// Build wires every component selected by cfg. ctx bounds startup work and
// is the parent of background jobs.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (a *App, err error) {
	o := options{registerer: prometheus.DefaultRegisterer, withJobs: true}
	for _, opt := range opts {
		opt(&o)
	}

	a = &App{
		Config:       cfg,
		Logger:       logger,
		Breakers:     circuit.NewRegistry(),
		HealthChecks: make(map[string]func(ctx context.Context) error),
	}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	if a.Catalog, err = LoadCatalog(cfg); err != nil {
		return nil, err
	}

	platformMetrics := metrics.NewWith(o.registerer)
	pipelineMetrics := vmetrics.NewWith(o.registerer)

	recognizer, classifier, extractor, err := a.buildCollaborators(platformMetrics)
	if err != nil {
		return nil, err
	}

	sources, err := a.buildSourceStore(ctx)
	if err != nil {
		return nil, err
	}
	if a.Results, err = a.buildResultStore(ctx); err != nil {
		return nil, err
	}
	publisher, err := a.buildPublisher(ctx)
	if err != nil {
		return nil, err
	}

	matcher := namematch.New(
		namematch.WithFuzzy(cfg.Matcher.Fuzzy),
		namematch.WithThreshold(cfg.Matcher.Threshold),
	)
	limits := verification.DefaultLimits
	limits.MaxFileBytes = cfg.Limits.MaxFileBytes
	limits.MaxPDFPages = cfg.Limits.MaxPDFPages

	a.Orchestrator, err = verification.New(verification.Deps{
		Sources:    sources,
		Recognizer: recognizer,
		Classifier: classifier,
		Extractor:  extractor,
		Results:    a.Results,
		Catalog:    a.Catalog,
		Validator:  validation.New(matcher, a.Catalog, a.Catalog.ValidityEngine()),
	},
		verification.WithLogger(logger),
		verification.WithMetrics(pipelineMetrics),
		verification.WithEventPublisher(publisher),
		verification.WithLimits(limits),
	)
	if err != nil {
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}

	if o.withJobs {
		if err := a.buildJobs(ctx, platformMetrics); err != nil {
			return nil, err
		}
		if err := a.buildRateLimit(ctx, platformMetrics); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// LoadCatalog reads the reference data file, or the built-in types when none
// is configured.
func LoadCatalog(cfg config.Config) (*doctype.Catalog, error) {
	if cfg.ReferenceDataFile == "" {
		return doctype.NewCatalog(doctype.DefaultTypes, cfg.DefaultValidityDays), nil
	}
	catalog, err := doctype.LoadFile(cfg.ReferenceDataFile)
	if err != nil {
		return nil, fmt.Errorf("load reference data: %w", err)
	}
	return catalog, nil
}

func (a *App) guard(name string, m *metrics.Metrics) *collaborators.Guard {
	cfg := a.Config
	return collaborators.NewGuard(name, collaborators.GuardConfig{
		Retry: retry.Config{
			MaxAttempts:     cfg.Retry.MaxAttempts,
			InitialDelay:    cfg.Retry.InitialDelay,
			MaxDelay:        cfg.Retry.MaxDelay,
			ExponentialBase: cfg.Retry.ExponentialBase,
			Jitter:          cfg.Retry.Jitter,
		},
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		BreakerTimeout:   cfg.Breaker.Timeout,
	},
		collaborators.WithGuardLogger(a.Logger),
		collaborators.WithGuardMetrics(m),
		collaborators.WithRegistry(a.Breakers),
	)
}

func (a *App) buildCollaborators(m *metrics.Metrics) (ports.Recognizer, ports.Classifier, ports.Extractor, error) {
	cfg := a.Config

	recognizer, err := ocr.New(cfg.OCR.URL, a.guard(ocr.Name, m),
		ocr.WithHTTPClient(collaborators.NewHTTPClient(cfg.OCR.Timeout)))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build ocr client: %w", err)
	}

	client, err := llm.New(cfg.LLM.URL, cfg.LLM.Model,
		llm.WithAPIKey(cfg.LLM.APIKey),
		llm.WithHTTPClient(collaborators.NewHTTPClient(cfg.LLM.Timeout)))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build llm client: %w", err)
	}

	types := a.Catalog.Types()
	codes := make([]string, len(types))
	for i, t := range types {
		codes[i] = t.Code
	}
	classifier, err := llm.NewClassifier(client, a.guard(llm.ClassifierName, m), codes)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build classifier: %w", err)
	}
	extractor, err := llm.NewExtractor(client, a.guard(llm.ExtractorName, m))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build extractor: %w", err)
	}
	return recognizer, classifier, extractor, nil
}

func (a *App) buildSourceStore(ctx context.Context) (ports.SourceStore, error) {
	cfg := a.Config
	switch cfg.Storage.SourceBackend {
	case "minio":
		client, err := objectstore.NewClient(cfg.MinIO)
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		if err := objectstore.EnsureBucket(ctx, client, cfg.MinIO.Bucket, cfg.MinIO.Region); err != nil {
			return nil, err
		}
		a.HealthChecks["minio"] = func(ctx context.Context) error {
			_, err := client.BucketExists(ctx, cfg.MinIO.Bucket)
			return err
		}
		store, err := source.NewObjectStore(client, cfg.MinIO.Bucket)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		store, err := source.NewFSStore(cfg.Storage.SourceDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

func (a *App) buildResultStore(ctx context.Context) (ports.ResultStore, error) {
	cfg := a.Config
	switch cfg.Storage.ResultBackend {
	case "postgres":
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })
		if err := results.Migrate(db.DB); err != nil {
			return nil, err
		}
		a.HealthChecks["postgres"] = db.PingContext
		return results.NewPostgresStore(db), nil
	default:
		store, err := results.NewFSStore(cfg.Storage.ResultDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

func (a *App) buildPublisher(ctx context.Context) (ports.EventPublisher, error) {
	cfg := a.Config
	if len(cfg.Kafka.Brokers) == 0 {
		return events.NewLogPublisher(a.Logger), nil
	}
	pub, err := events.NewKafkaPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, events.WithKafkaLogger(a.Logger))
	if err != nil {
		return nil, fmt.Errorf("kafka: %w", err)
	}
	a.closers = append(a.closers, pub.Close)
	return pub, nil
}

func (a *App) buildJobs(ctx context.Context, m *metrics.Metrics) error {
	cfg := a.Config
	var store jobs.Store
	switch cfg.Jobs.Backend {
	case "redis":
		client, err := a.redisClient(ctx)
		if err != nil {
			return err
		}
		if client == nil {
			return errors.New("JOB_BACKEND=redis requires REDIS_URL")
		}
		if store, err = jobs.NewRedisStore(client.Client, cfg.Jobs.TTL); err != nil {
			return err
		}
	default:
		store = jobs.NewInMemoryStore(cfg.Jobs.TTL)
	}

	runner, err := jobs.NewRunner(ctx, a.Orchestrator, store,
		jobs.WithWorkers(cfg.Jobs.Workers),
		jobs.WithRunnerLogger(a.Logger),
		jobs.WithRunnerMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("job runner: %w", err)
	}
	a.Jobs = runner
	a.closers = append(a.closers, runner.Close)
	return nil
}

// redisClient connects on first use and shares the client between the job
// store and the rate limiter. It returns nil when Redis is not configured.
func (a *App) redisClient(ctx context.Context) (*redis.Client, error) {
	if a.redis != nil || a.Config.Redis.URL == "" {
		return a.redis, nil
	}
	client, err := redis.New(ctx, a.Config.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	a.redis = client
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	a.HealthChecks["redis"] = client.Health
	return client, nil
}

func (a *App) buildRateLimit(ctx context.Context, m *metrics.Metrics) error {
	cfg := a.Config.RateLimit
	policy := ratelimit.Policy{Limit: cfg.Requests, Window: cfg.Window}
	if !policy.Enabled() {
		return nil
	}

	var store ratelimit.Store = ratelimit.NewInMemoryStore()
	client, err := a.redisClient(ctx)
	if err != nil {
		return err
	}
	if client != nil {
		if store, err = ratelimit.NewRedisStore(client.Client); err != nil {
			return err
		}
	}
	a.RateLimit = ratelimit.NewMiddleware(store, policy,
		ratelimit.WithLogger(a.Logger),
		ratelimit.WithMetrics(m),
	)
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
