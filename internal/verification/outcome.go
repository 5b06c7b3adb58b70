package verification

import (
	"fmt"

	dErrors "docverify/pkg/domain-errors"
)

// StageError aborts a run. It becomes the run's final error record and is
// never persisted on its own.
type StageError struct {
	Code    dErrors.Code
	Details string
	Err     error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Details, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Details)
}

func (e *StageError) Unwrap() error { return e.Err }

// Artifacts are named values a stage contributes to the run record.
type Artifacts map[string]any

// Outcome is the tagged result of a stage: either Continue with the stage's
// artifacts, or Abort with a StageError. The zero value continues with none.
type Outcome struct {
	artifacts Artifacts
	abort     *StageError
}

func Continue(artifacts Artifacts) Outcome {
	return Outcome{artifacts: artifacts}
}

func Abort(err *StageError) Outcome {
	return Outcome{abort: err}
}

// Fail is shorthand for aborting with a code and details.
func Fail(code dErrors.Code, format string, args ...any) Outcome {
	return Abort(&StageError{Code: code, Details: fmt.Sprintf(format, args...)})
}

func (o Outcome) Aborted() bool { return o.abort != nil }

// StageError returns the abort reason, or nil when the outcome continues.
func (o Outcome) StageError() *StageError { return o.abort }

func (o Outcome) Artifacts() Artifacts { return o.artifacts }
