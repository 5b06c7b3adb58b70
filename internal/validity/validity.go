// Package validity computes how long a document stays current after its
// issue date and whether it is still current at a given moment.
package validity

import (
	"errors"
	"strings"
	"time"
)

// PolicyKind names how a deadline is derived. Only fixed windows exist.
type PolicyKind string

const PolicyFixedWindow PolicyKind = "fixed_window"

// DefaultWindowDays applies to document types without an override.
const DefaultWindowDays = 40

// Zone is the fixed offset every issue date and deadline is expressed in.
var Zone = time.FixedZone("UTC+05:00", 5*60*60)

// ErrDateInvalid is reported when the issue date is absent or does not parse.
var ErrDateInvalid = errors.New("date missing or invalid")

// DateLayouts are the accepted issue-date formats, tried in order.
var DateLayouts = []string{"2006-01-02", "02.01.2006"}

type Policy struct {
	Kind       PolicyKind `json:"kind" yaml:"kind"`
	WindowDays int        `json:"window_days" yaml:"window_days"`
}

// Validity is the outcome of ComputeValidUntil. Deadline is nil exactly when
// Err is set.
type Validity struct {
	Deadline   *time.Time
	Policy     PolicyKind
	WindowDays int
	Err        error
}

// Engine is immutable after construction.
type Engine struct {
	overrides map[string]Policy
	fallback  Policy
}

type Option func(*Engine)

// WithDefaultWindow changes the window used for types without an override.
func WithDefaultWindow(days int) Option {
	return func(e *Engine) {
		if days > 0 {
			e.fallback.WindowDays = days
		}
	}
}

// NewEngine builds an engine from per-type overrides keyed by canonical
// document type. Overrides with a non-positive window are ignored.
func NewEngine(overrides map[string]Policy, opts ...Option) *Engine {
	e := &Engine{
		overrides: make(map[string]Policy, len(overrides)),
		fallback:  Policy{Kind: PolicyFixedWindow, WindowDays: DefaultWindowDays},
	}
	for docType, p := range overrides {
		if p.WindowDays <= 0 {
			continue
		}
		if p.Kind == "" {
			p.Kind = PolicyFixedWindow
		}
		e.overrides[docType] = p
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PolicyFor returns the override for docType or the default policy.
func (e *Engine) PolicyFor(docType string) Policy {
	if p, ok := e.overrides[docType]; ok {
		return p
	}
	return e.fallback
}

// ComputeValidUntil derives the deadline for a document of docType issued on
// issueDate.
func (e *Engine) ComputeValidUntil(docType, issueDate string) Validity {
	p := e.PolicyFor(docType)
	v := Validity{Policy: p.Kind, WindowDays: p.WindowDays}

	issued, err := ParseDate(issueDate)
	if err != nil {
		v.Err = err
		return v
	}
	deadline := issued.AddDate(0, 0, p.WindowDays)
	v.Deadline = &deadline
	return v
}

// ParseDate parses s strictly in one of DateLayouts, in Zone.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrDateInvalid
	}
	for _, layout := range DateLayouts {
		if t, err := time.ParseInLocation(layout, s, Zone); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrDateInvalid
}

// IsWithinValidity reports whether now is on or before deadline. It returns
// nil when there is no deadline: the answer is unknown, not false.
func IsWithinValidity(deadline *time.Time, now time.Time) *bool {
	if deadline == nil {
		return nil
	}
	ok := !now.After(*deadline)
	return &ok
}
