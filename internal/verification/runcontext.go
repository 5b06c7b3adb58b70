package verification

import (
	"maps"
	"time"

	"docverify/internal/validation"
	"docverify/internal/verification/models"
	dErrors "docverify/pkg/domain-errors"
)

// RunContext is the state of one run. It is owned by a single Run call and
// never shared between goroutines.
type RunContext struct {
	RunID      string
	ClaimedFIO string
	Source     models.Source
	Metadata   map[string]string
	Now        time.Time
	CreatedAt  time.Time

	timings   map[string]float64
	errors    []models.ErrorRecord
	artifacts map[string]any

	// Products handed from one stage to the next.
	text       string
	docType    *string
	fields     *models.ExtractedFields
	validation *validation.Outcome
	abort      *StageError
}

func newRunContext(runID string, req RunRequest, now, createdAt time.Time) *RunContext {
	return &RunContext{
		RunID:      runID,
		ClaimedFIO: req.ClaimedFIO,
		Source:     req.Source,
		Metadata:   req.Metadata,
		Now:        now,
		CreatedAt:  createdAt,
		timings:    make(map[string]float64),
		artifacts:  make(map[string]any),
	}
}

// addError appends to the error list. Entries are never removed or reordered.
func (rc *RunContext) addError(rec models.ErrorRecord) {
	rc.errors = append(rc.errors, rec)
}

// Errors returns a copy of the error list.
func (rc *RunContext) Errors() []models.ErrorRecord {
	out := make([]models.ErrorRecord, len(rc.errors))
	copy(out, rc.errors)
	return out
}

func (rc *RunContext) recordTiming(stage string, d time.Duration) {
	rc.timings[stage] = d.Seconds()
}

func (rc *RunContext) mergeArtifacts(a Artifacts) {
	maps.Copy(rc.artifacts, a)
}

// DocType is the type chosen by Classify: a canonical code, the first
// unrecognized label when nothing matched the catalog, or "" when the
// classifier returned no labels.
func (rc *RunContext) DocType() string {
	if rc.docType == nil {
		return ""
	}
	return *rc.docType
}

// Artifact returns a named stage artifact.
func (rc *RunContext) Artifact(name string) (any, bool) {
	v, ok := rc.artifacts[name]
	return v, ok
}

func (rc *RunContext) ruleChecks() validation.RuleChecks {
	if rc.validation != nil {
		return rc.validation.Checks
	}
	if rc.abort != nil && rc.abort.Code == dErrors.CodeMultipleDocuments {
		single := false
		return validation.RuleChecks{SingleDocType: &single}
	}
	return validation.RuleChecks{}
}

// finalize builds the immutable run record.
func (rc *RunContext) finalize(completedAt time.Time, traceID string) *models.Artifact {
	a := &models.Artifact{
		RunID:                 rc.RunID,
		Errors:                rc.Errors(),
		ExtractedDocType:      rc.docType,
		RuleChecks:            rc.ruleChecks(),
		CreatedAt:             rc.CreatedAt,
		CompletedAt:           completedAt,
		ProcessingTimeSeconds: completedAt.Sub(rc.CreatedAt).Seconds(),
		StageTimings:          maps.Clone(rc.timings),
		Artifacts:             maps.Clone(rc.artifacts),
		Metadata:              maps.Clone(rc.Metadata),
		TraceID:               traceID,
	}
	if rc.fields != nil {
		a.ExtractedFIO = rc.fields.FIO
		a.ExtractedDocDate = rc.fields.DocDate
	}
	a.Verdict = rc.validation != nil && rc.abort == nil && len(a.Errors) == 0
	return a
}
