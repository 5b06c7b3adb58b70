// Package verification runs uploaded documents through the verification
// pipeline: Acquire, Recognize, Classify, Extract and Validate, strictly in
// that order. The first stage that aborts ends the run. Whatever happens,
// exactly one final artifact is written per run.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docverify/internal/verification/metrics"
	"docverify/internal/verification/models"
	"docverify/internal/verification/ports"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/requestcontext"
)

// RunRequest is the input of one run. RunID is optional; background jobs
// pre-allocate it so the job and the artifact share an identifier.
type RunRequest struct {
	RunID      string
	ClaimedFIO string
	Source     models.Source
	Metadata   map[string]string
}

// RunResult summarizes a finished run for the caller.
type RunResult struct {
	RunID                 string
	Verdict               bool
	Errors                []models.ErrorRecord
	ProcessingTimeSeconds float64
	TraceID               string
	Artifact              *models.Artifact

	abort *StageError
}

// Aborted reports whether a stage ended the run early.
func (r *RunResult) Aborted() bool { return r.abort != nil }

// Failure returns the abort as a coded error when it is an infrastructure
// failure. Business outcomes, including business aborts such as
// MULTIPLE_DOCUMENTS, return nil: they are reported in the result itself.
func (r *RunResult) Failure() error {
	if r.abort == nil {
		return nil
	}
	if spec, ok := dErrors.Lookup(r.abort.Code); ok && spec.IsBusiness() {
		return nil
	}
	return dErrors.Wrap(r.abort.Err, r.abort.Code, r.abort.Details)
}

// Deps are the collaborators and stores the pipeline needs.
type Deps struct {
	Sources    ports.SourceStore
	Recognizer ports.Recognizer
	Classifier ports.Classifier
	Extractor  ports.Extractor
	Results    ports.ResultStore
	Catalog    TypeCanonicalizer
	Validator  RuleValidator
}

// Orchestrator holds no per-run state and is safe for concurrent use.
type Orchestrator struct {
	stages  []Stage
	results ports.ResultStore
	events  ports.EventPublisher
	limits  Limits
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	clock   func() time.Time
	newID   func() string
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = t
	}
}

// WithEventPublisher announces every stored artifact. Publishing failures
// are logged and do not fail the run.
func WithEventPublisher(p ports.EventPublisher) Option {
	return func(o *Orchestrator) {
		o.events = p
	}
}

func WithLimits(l Limits) Option {
	return func(o *Orchestrator) {
		o.limits = l
	}
}

// WithClock replaces time.Now for timings and timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) {
		o.clock = clock
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) {
		o.newID = fn
	}
}

// New validates deps and assembles the five stages.
func New(deps Deps, opts ...Option) (*Orchestrator, error) {
	switch {
	case deps.Sources == nil:
		return nil, errors.New("source store is required")
	case deps.Recognizer == nil:
		return nil, errors.New("recognizer is required")
	case deps.Classifier == nil:
		return nil, errors.New("classifier is required")
	case deps.Extractor == nil:
		return nil, errors.New("extractor is required")
	case deps.Results == nil:
		return nil, errors.New("result store is required")
	case deps.Catalog == nil:
		return nil, errors.New("document type catalog is required")
	case deps.Validator == nil:
		return nil, errors.New("validator is required")
	}

	o := &Orchestrator{
		results: deps.Results,
		limits:  DefaultLimits,
		logger:  slog.Default(),
		tracer:  otel.Tracer("docverify/verification"),
		clock:   time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.stages = []Stage{
		&acquireStage{store: deps.Sources, limits: o.limits},
		&recognizeStage{recognizer: deps.Recognizer},
		&classifyStage{classifier: deps.Classifier, catalog: deps.Catalog},
		&extractStage{extractor: deps.Extractor},
		&validateStage{validator: deps.Validator},
	}
	return o, nil
}

// Run executes the pipeline and stores the final artifact. It returns an
// error only when the artifact could not be written; stage aborts are
// reported through the RunResult.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	runID := req.RunID
	if runID == "" {
		runID = o.newID()
	}
	createdAt := o.clock()
	rc := newRunContext(runID, req, requestcontext.Now(ctx), createdAt)

	ctx, span := o.tracer.Start(ctx, "verification.run", trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()
	traceID := traceIDFrom(ctx, span)

	for _, st := range o.stages {
		out := o.runStage(ctx, rc, st)
		if out.Aborted() {
			se := out.StageError()
			rc.abort = se
			rc.addError(models.ErrorRecord{Code: se.Code, Stage: st.Name(), Details: se.Details})
			break
		}
	}

	completedAt := o.clock()
	artifact := rc.finalize(completedAt, traceID)
	o.observe(ctx, rc, artifact, completedAt.Sub(createdAt))

	if err := o.results.Save(ctx, artifact); err != nil {
		o.metrics.IncrementArtifactWriteFailure()
		o.logger.ErrorContext(ctx, "failed to store run artifact",
			"run_id", runID,
			"error", err,
		)
		span.SetStatus(codes.Error, "artifact write failed")
		return nil, dErrors.Wrap(err, dErrors.CodeArtifactWriteFailed, "run artifact could not be stored")
	}

	if o.events != nil {
		if err := o.events.PublishRunCompleted(ctx, models.NewRunCompleted(artifact)); err != nil {
			o.logger.WarnContext(ctx, "failed to publish run completed event",
				"run_id", runID,
				"error", err,
			)
		}
	}

	return &RunResult{
		RunID:                 runID,
		Verdict:               artifact.Verdict,
		Errors:                artifact.Errors,
		ProcessingTimeSeconds: artifact.ProcessingTimeSeconds,
		TraceID:               traceID,
		Artifact:              artifact,
		abort:                 rc.abort,
	}, nil
}

// runStage times st, records its artifacts and converts anything other than
// a clean Outcome into an Abort. A panic inside a stage becomes
// UNKNOWN_ERROR.
func (o *Orchestrator) runStage(ctx context.Context, rc *RunContext, st Stage) (out Outcome) {
	name := st.Name()
	ctx, span := o.tracer.Start(ctx, "verification.stage."+name)
	start := o.clock()
	label := "continue"

	defer func() {
		if r := recover(); r != nil {
			label = "panic"
			o.logger.ErrorContext(ctx, "stage panicked",
				"run_id", rc.RunID,
				"stage", name,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			out = Abort(&StageError{Code: dErrors.CodeUnknown, Details: fmt.Sprintf("stage %s failed unexpectedly", name)})
		}
		if out.Aborted() {
			if label != "panic" {
				label = "abort"
			}
			span.SetStatus(codes.Error, string(out.StageError().Code))
			span.SetAttributes(attribute.String("error.code", string(out.StageError().Code)))
		} else {
			rc.mergeArtifacts(out.Artifacts())
		}
		elapsed := o.clock().Sub(start)
		rc.recordTiming(name, elapsed)
		o.metrics.ObserveStage(name, label, elapsed)
		span.End()
	}()

	res, err := st.Run(ctx, rc)
	if err != nil {
		var se *StageError
		if errors.As(err, &se) {
			return Abort(se)
		}
		o.logger.ErrorContext(ctx, "stage returned unexpected error",
			"run_id", rc.RunID,
			"stage", name,
			"error", err,
		)
		return Abort(&StageError{Code: dErrors.CodeUnknown, Details: fmt.Sprintf("stage %s failed unexpectedly", name), Err: err})
	}
	return res
}

func (o *Orchestrator) observe(ctx context.Context, rc *RunContext, a *models.Artifact, d time.Duration) {
	outcome := "pass"
	switch {
	case rc.abort != nil:
		outcome = "abort"
	case !a.Verdict:
		outcome = "fail"
	}
	o.metrics.IncrementOutcome(outcome)
	o.metrics.ObserveRun(d)
	for _, e := range a.Errors {
		o.metrics.IncrementErrorCode(string(e.Code))
	}

	o.logger.InfoContext(ctx, "verification run completed",
		"run_id", rc.RunID,
		"request_id", requestcontext.RequestID(ctx),
		"outcome", outcome,
		"verdict", a.Verdict,
		"errors", a.ErrorCodes(),
		"duration_ms", d.Milliseconds(),
	)
}

// traceIDFrom prefers the active span's trace ID. Without a tracer provider
// it falls back to the request-scoped trace ID, then the request ID.
func traceIDFrom(ctx context.Context, span trace.Span) string {
	if sc := span.SpanContext(); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	if id := requestcontext.TraceID(ctx); id != "" {
		return id
	}
	return requestcontext.RequestID(ctx)
}
