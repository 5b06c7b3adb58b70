// Package models holds the data exchanged between the verification pipeline,
// its collaborators and its stores.
package models

import (
	"time"

	"docverify/internal/validation"
	dErrors "docverify/pkg/domain-errors"
)

// Stage names, in execution order.
const (
	StageAcquire   = "acquire"
	StageRecognize = "recognize"
	StageClassify  = "classify"
	StageExtract   = "extract"
	StageValidate  = "validate"
)

// Source is an uploaded file held in memory. Its size is bounded by the
// Acquire limits before anything else reads it.
type Source struct {
	Filename    string
	ContentType string
	Data        []byte
}

// OCRResult is the recognized text, one entry per page.
type OCRResult struct {
	Pages []string
}

// ExtractedFields are the fields read from the document. Nil means the
// extractor reported the field as absent.
type ExtractedFields struct {
	FIO     *string `json:"fio"`
	DocDate *string `json:"doc_date"`
}

// ErrorRecord is one entry of a run's error list.
type ErrorRecord struct {
	Code    dErrors.Code `json:"code"`
	Stage   string       `json:"stage,omitempty"`
	Details string       `json:"details,omitempty"`
}

// Artifact is the immutable final record of a run. Exactly one is written per
// run whatever the outcome.
type Artifact struct {
	RunID                 string                `json:"run_id"`
	Verdict               bool                  `json:"verdict"`
	Errors                []ErrorRecord         `json:"errors"`
	ExtractedFIO          *string               `json:"extracted_fio"`
	ExtractedDocDate      *string               `json:"extracted_doc_date"`
	ExtractedDocType      *string               `json:"extracted_doc_type"`
	RuleChecks            validation.RuleChecks `json:"rule_checks"`
	CreatedAt             time.Time             `json:"created_at"`
	CompletedAt           time.Time             `json:"completed_at"`
	ProcessingTimeSeconds float64               `json:"processing_time_seconds"`
	StageTimings          map[string]float64    `json:"stage_timings"`
	Artifacts             map[string]any        `json:"artifacts"`
	Metadata              map[string]string     `json:"metadata,omitempty"`
	TraceID               string                `json:"trace_id,omitempty"`
}

// ErrorCodes returns the codes of the artifact's errors in order.
func (a *Artifact) ErrorCodes() []string {
	out := make([]string, len(a.Errors))
	for i, e := range a.Errors {
		out[i] = string(e.Code)
	}
	return out
}

// RunCompleted is the event emitted after an artifact has been stored.
type RunCompleted struct {
	RunID                 string    `json:"run_id"`
	Verdict               bool      `json:"verdict"`
	ErrorCodes            []string  `json:"error_codes"`
	DocType               string    `json:"doc_type,omitempty"`
	ProcessingTimeSeconds float64   `json:"processing_time_seconds"`
	CompletedAt           time.Time `json:"completed_at"`
}

// NewRunCompleted summarizes an artifact as an event.
func NewRunCompleted(a *Artifact) RunCompleted {
	ev := RunCompleted{
		RunID:                 a.RunID,
		Verdict:               a.Verdict,
		ErrorCodes:            a.ErrorCodes(),
		ProcessingTimeSeconds: a.ProcessingTimeSeconds,
		CompletedAt:           a.CompletedAt,
	}
	if a.ExtractedDocType != nil {
		ev.DocType = *a.ExtractedDocType
	}
	return ev
}
