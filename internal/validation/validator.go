// Package validation evaluates the business rules a verified document must
// satisfy. Every rule runs; each failure contributes one error code and the
// verdict is positive only when none failed.
package validation

import (
	"strings"
	"time"

	"docverify/internal/identity/namematch"
	"docverify/internal/validity"
	dErrors "docverify/pkg/domain-errors"
)

// NameMatcher compares the applicant's name with the extracted one.
type NameMatcher interface {
	Match(claimed, extracted string) namematch.Result
}

// TypeCatalog answers whether a canonical type is on the reference list.
type TypeCatalog interface {
	Known(code string) bool
}

// ValidityPolicy derives the deadline for a document.
type ValidityPolicy interface {
	ComputeValidUntil(docType, issueDate string) validity.Validity
}

// Input is everything the rules need. Nil pointers mean the extractor did
// not find the field.
type Input struct {
	ClaimedFIO       string
	ExtractedFIO     *string
	ExtractedDocDate *string
	DocType          string
	Now              time.Time
}

// RuleChecks holds one entry per rule; nil means the rule could not be
// decided.
type RuleChecks struct {
	FIOMatch      *bool `json:"fio_match"`
	DocDateValid  *bool `json:"doc_date_valid"`
	DocTypeKnown  *bool `json:"doc_type_known"`
	SingleDocType *bool `json:"single_doc_type"`
}

// Outcome is the result of Validate.
type Outcome struct {
	Verdict   bool
	Errors    []dErrors.Code
	Checks    RuleChecks
	NameMatch *namematch.Result
	Validity  validity.Validity
}

type Validator struct {
	matcher  NameMatcher
	catalog  TypeCatalog
	validity ValidityPolicy
}

func New(matcher NameMatcher, catalog TypeCatalog, policy ValidityPolicy) *Validator {
	return &Validator{matcher: matcher, catalog: catalog, validity: policy}
}

// Validate never fails; rule failures are reported in the Outcome.
func (v *Validator) Validate(in Input) Outcome {
	out := Outcome{Checks: RuleChecks{SingleDocType: boolPtr(true)}}

	if in.ExtractedFIO == nil || strings.TrimSpace(*in.ExtractedFIO) == "" {
		out.Checks.FIOMatch = boolPtr(false)
		out.Errors = append(out.Errors, dErrors.CodeFIOMissing)
	} else {
		res := v.matcher.Match(in.ClaimedFIO, *in.ExtractedFIO)
		out.NameMatch = &res
		out.Checks.FIOMatch = boolPtr(res.Matched)
		if !res.Matched {
			out.Errors = append(out.Errors, dErrors.CodeFIOMismatch)
		}
	}

	issueDate := ""
	if in.ExtractedDocDate != nil {
		issueDate = *in.ExtractedDocDate
	}
	out.Validity = v.validity.ComputeValidUntil(in.DocType, issueDate)
	out.Checks.DocDateValid = validity.IsWithinValidity(out.Validity.Deadline, in.Now)
	switch {
	case out.Checks.DocDateValid == nil:
		out.Errors = append(out.Errors, dErrors.CodeDocDateMissing)
	case !*out.Checks.DocDateValid:
		out.Errors = append(out.Errors, dErrors.CodeDocDateTooOld)
	}

	known := in.DocType != "" && v.catalog.Known(in.DocType)
	out.Checks.DocTypeKnown = boolPtr(known)
	if !known {
		out.Errors = append(out.Errors, dErrors.CodeDocTypeUnknown)
	}

	out.Verdict = len(out.Errors) == 0
	return out
}

func boolPtr(b bool) *bool { return &b }
