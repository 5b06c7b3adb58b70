// Package handler exposes the verification pipeline over HTTP.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"docverify/internal/jobs"
	"docverify/internal/verification"
	"docverify/internal/verification/models"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/httputil"
	"docverify/pkg/platform/middleware/device"
	"docverify/pkg/platform/sentinel"
	"docverify/pkg/requestcontext"
)

const (
	// formOverhead is the room left for multipart framing and text fields
	// above the file size limit.
	formOverhead = 1 << 20
	formMemory   = 8 << 20

	metadataPrefix = "metadata."
)

// Verifier runs one verification synchronously.
type Verifier interface {
	Run(ctx context.Context, req verification.RunRequest) (*verification.RunResult, error)
}

// JobQueue runs verifications in the background.
type JobQueue interface {
	Submit(ctx context.Context, req verification.RunRequest) (*jobs.Job, error)
	Get(ctx context.Context, id string) (*jobs.Job, error)
	List(ctx context.Context) ([]*jobs.Job, error)
}

// ArtifactReader reads stored run artifacts.
type ArtifactReader interface {
	Get(ctx context.Context, runID string) (*models.Artifact, error)
}

// Handler wires the verification endpoints to the pipeline.
type Handler struct {
	verifier  Verifier
	queue     JobQueue
	artifacts ArtifactReader
	logger    *slog.Logger
	maxUpload int64
}

// New constructs the handler. maxFileBytes is the pipeline's file size
// limit; bodies far above it are refused before a run starts.
func New(verifier Verifier, queue JobQueue, artifacts ArtifactReader, logger *slog.Logger, maxFileBytes int64) *Handler {
	return &Handler{
		verifier:  verifier,
		queue:     queue,
		artifacts: artifacts,
		logger:    logger,
		maxUpload: maxFileBytes + formOverhead,
	}
}

// Register mounts the verification endpoints on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/verifications", h.HandleVerify)
	r.Post("/jobs", h.HandleSubmitJob)
	r.Get("/jobs", h.HandleListJobs)
	r.Get("/jobs/{id}", h.HandleGetJob)
	r.Get("/runs/{id}", h.HandleGetRun)
}

// HandleVerify handles POST /verifications.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, cleanup, err := h.parseRunRequest(w, r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid verification request",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, r, err)
		return
	}
	defer cleanup()

	res, err := h.verifier.Run(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "verification failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, r, err)
		return
	}

	if failure := res.Failure(); failure != nil {
		r = r.WithContext(requestcontext.WithTraceID(ctx, res.TraceID))
		httputil.WriteError(w, r, failure)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromResult(res))
}

// HandleSubmitJob handles POST /jobs.
func (h *Handler) HandleSubmitJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.queue == nil {
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeServiceUnavailable, "background jobs are disabled"))
		return
	}

	req, cleanup, err := h.parseRunRequest(w, r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	defer cleanup()

	job, err := h.queue.Submit(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "job submission failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/jobs/"+job.ID)
	httputil.WriteJSON(w, http.StatusAccepted, JobAccepted{JobID: job.ID, Status: job.Status})
}

// HandleListJobs handles GET /jobs.
func (h *Handler) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		httputil.WriteJSON(w, http.StatusOK, JobList{Jobs: []*jobs.Job{}})
		return
	}
	list, err := h.queue.List(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if list == nil {
		list = []*jobs.Job{}
	}
	httputil.WriteJSON(w, http.StatusOK, JobList{Jobs: list})
}

// HandleGetJob handles GET /jobs/{id}.
func (h *Handler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.queue == nil {
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeNotFound, "job not found"))
		return
	}
	job, err := h.queue.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, translateStoreError(err, "job not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, job)
}

// HandleGetRun handles GET /runs/{id}.
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	artifact, err := h.artifacts.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, translateStoreError(err, "run not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, artifact)
}

func translateStoreError(err error, notFound string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, notFound)
	}
	return err
}

// parseRunRequest reads the multipart form: "file", "fio" and any
// "metadata.<key>" fields. The returned cleanup removes spooled parts.
func (h *Handler) parseRunRequest(w http.ResponseWriter, r *http.Request) (verification.RunRequest, func(), error) {
	noop := func() {}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return verification.RunRequest{}, noop, dErrors.Wrap(err, dErrors.CodeFileTooLarge, "upload exceeds the size limit")
		}
		return verification.RunRequest{}, noop, dErrors.Wrap(err, dErrors.CodeBadRequest, "request must be multipart/form-data")
	}
	form := r.MultipartForm
	cleanup := func() { _ = form.RemoveAll() }

	fio := strings.TrimSpace(firstValue(form, "fio"))
	if fio == "" {
		cleanup()
		return verification.RunRequest{}, noop, dErrors.New(dErrors.CodeValidation, "fio is required")
	}

	files := form.File["file"]
	if len(files) == 0 {
		cleanup()
		return verification.RunRequest{}, noop, dErrors.New(dErrors.CodeValidation, "file is required")
	}
	src, err := readSource(files[0])
	if err != nil {
		cleanup()
		return verification.RunRequest{}, noop, dErrors.Wrap(err, dErrors.CodeBadRequest, "uploaded file could not be read")
	}

	metadata := make(map[string]string)
	for key, values := range form.Value {
		name, ok := strings.CutPrefix(key, metadataPrefix)
		if ok && name != "" && len(values) > 0 {
			metadata[name] = values[0]
		}
	}
	metadata["received_at"] = requestcontext.Now(r.Context()).Format(time.RFC3339)
	if subject := requestcontext.Subject(r.Context()); subject != "" {
		metadata["submitted_by"] = subject
	}
	if ua := r.UserAgent(); ua != "" {
		metadata["client_device"] = device.Describe(ua)
	}

	return verification.RunRequest{
		ClaimedFIO: fio,
		Source:     src,
		Metadata:   metadata,
	}, cleanup, nil
}

func readSource(fh *multipart.FileHeader) (models.Source, error) {
	f, err := fh.Open()
	if err != nil {
		return models.Source{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return models.Source{}, err
	}
	return models.Source{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func firstValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}
