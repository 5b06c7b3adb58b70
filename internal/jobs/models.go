// Package jobs runs verifications in the background and tracks their status.
package jobs

import (
	"context"
	"time"

	"docverify/internal/verification/models"
	dErrors "docverify/pkg/domain-errors"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the job has finished.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is the status record of one background verification. Its ID is also
// the run ID of the artifact it produces.
type Job struct {
	ID          string     `json:"job_id"`
	Status      Status     `json:"status"`
	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Result      *Summary   `json:"result,omitempty"`
	Error       *JobError  `json:"error,omitempty"`
}

// Summary mirrors the synchronous verification response.
type Summary struct {
	RunID                 string               `json:"run_id"`
	Verdict               bool                 `json:"verdict"`
	Errors                []models.ErrorRecord `json:"errors"`
	ProcessingTimeSeconds float64              `json:"processing_time_seconds"`
	TraceID               string               `json:"trace_id,omitempty"`
}

// JobError describes why a job failed.
type JobError struct {
	Code    dErrors.Code `json:"code"`
	Message string       `json:"message"`
}

// Store holds job records. Get returns sentinel.ErrNotFound for unknown or
// expired jobs. List returns jobs newest first.
type Store interface {
	Get(ctx context.Context, id string) (*Job, error)
	Set(ctx context.Context, job *Job) error
	List(ctx context.Context) ([]*Job, error)
}
