package handler

import (
	"docverify/internal/jobs"
	"docverify/internal/verification"
)

// ErrorResponse is one entry of a verification's error list.
type ErrorResponse struct {
	Code string `json:"code"`
}

// VerificationResponse is returned for every run that reaches a business
// outcome, passing or failing.
type VerificationResponse struct {
	RunID                 string          `json:"run_id"`
	Verdict               bool            `json:"verdict"`
	Errors                []ErrorResponse `json:"errors"`
	ProcessingTimeSeconds float64         `json:"processing_time_seconds"`
	TraceID               string          `json:"trace_id"`
}

func FromResult(res *verification.RunResult) VerificationResponse {
	errs := make([]ErrorResponse, len(res.Errors))
	for i, e := range res.Errors {
		errs[i] = ErrorResponse{Code: string(e.Code)}
	}
	return VerificationResponse{
		RunID:                 res.RunID,
		Verdict:               res.Verdict,
		Errors:                errs,
		ProcessingTimeSeconds: res.ProcessingTimeSeconds,
		TraceID:               res.TraceID,
	}
}

// JobAccepted is the 202 body of a job submission.
type JobAccepted struct {
	JobID  string      `json:"job_id"`
	Status jobs.Status `json:"status"`
}

type JobList struct {
	Jobs []*jobs.Job `json:"jobs"`
}
