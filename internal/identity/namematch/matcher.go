// Package namematch decides whether a full name read from a document refers
// to the same person as the name an applicant typed in.
//
// Both names are normalized and parsed into surname, given name and
// patronymic. The shape of the extracted name (full, surname with initials,
// surname only and so on) selects the one rendering that is compared, so a
// document that abbreviates "Иванов Иван Иванович" to "Иванов И.И." still
// matches. Optional token-sort fuzzy matching absorbs OCR noise.
package namematch

// Strategy records which rule produced the decision.
type Strategy string

const (
	StrategyExactVariant Strategy = "exact_variant"
	StrategyLastInitial  Strategy = "last_initial"
	StrategyFuzzyVariant Strategy = "fuzzy_variant"
	StrategyFuzzyFull    Strategy = "fuzzy_full"
	StrategyNone         Strategy = "none"
)

// DefaultFuzzyThreshold is the token-sort score a fuzzy match must reach.
const DefaultFuzzyThreshold = 85.0

// Diagnostics explains a match decision.
type Diagnostics struct {
	Strategy            Strategy  `json:"strategy"`
	Variant             Variant   `json:"variant,omitempty"`
	Score               float64   `json:"score"`
	NormalizedExtracted string    `json:"normalized_extracted"`
	ClaimParts          NameParts `json:"claim_parts"`
}

type Result struct {
	Matched     bool        `json:"matched"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// Matcher is stateless and safe for concurrent use.
type Matcher struct {
	fuzzy     bool
	threshold float64
}

type Option func(*Matcher)

// WithFuzzy toggles both fuzzy fallbacks.
func WithFuzzy(enabled bool) Option {
	return func(m *Matcher) {
		m.fuzzy = enabled
	}
}

// WithThreshold sets the minimum token-sort score (0-100) for a fuzzy match.
// The same threshold applies to the variant and full-string fallbacks.
func WithThreshold(threshold float64) Option {
	return func(m *Matcher) {
		if threshold > 0 && threshold <= 100 {
			m.threshold = threshold
		}
	}
}

func New(opts ...Option) *Matcher {
	m := &Matcher{fuzzy: true, threshold: DefaultFuzzyThreshold}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Matcher) Threshold() float64 { return m.threshold }

// Match compares the applicant's claimed name with the extracted one.
func (m *Matcher) Match(claimed, extracted string) Result {
	normClaim := Normalize(claimed)
	normExtracted := Normalize(extracted)
	claimParts := Parse(normClaim)
	extractedParts := Parse(normExtracted)

	diag := Diagnostics{
		Strategy:            StrategyNone,
		NormalizedExtracted: normExtracted,
		ClaimParts:          claimParts,
	}

	shape, ok := Shape(extractedParts)
	if !ok || claimParts.IsZero() {
		return Result{Diagnostics: diag}
	}
	diag.Variant = shape

	claimVariants := Variants(claimParts)
	extractedVariants := Variants(extractedParts)
	claimV, haveClaim := claimVariants[shape]
	extractedV := extractedVariants[shape]

	if haveClaim && initialsEqual(claimV, extractedV) {
		diag.Strategy = StrategyExactVariant
		diag.Score = 100
		return Result{Matched: true, Diagnostics: diag}
	}

	claimComplete := claimParts.Surname != "" && claimParts.Given != "" && claimParts.Patronymic != ""

	// "Иванов ИИ": a bare two-letter given name may be undotted initials.
	if alt, ok := undottedInitials(extractedParts); ok && claimComplete {
		if initialsEqual(claimVariants[VariantLastTwoInitials], Variants(alt)[VariantLastTwoInitials]) {
			diag.Strategy = StrategyExactVariant
			diag.Variant = VariantLastTwoInitials
			diag.Score = 100
			return Result{Matched: true, Diagnostics: diag}
		}
	}

	if shape == VariantLastTwoInitials && claimComplete {
		if initialsEqual(claimVariants[VariantLastInitial], extractedVariants[VariantLastInitial]) {
			diag.Strategy = StrategyLastInitial
			diag.Variant = VariantLastInitial
			diag.Score = 100
			return Result{Matched: true, Diagnostics: diag}
		}
	}

	if !m.fuzzy {
		return Result{Diagnostics: diag}
	}

	if haveClaim {
		score := TokenSortRatio(claimV, extractedV)
		diag.Score = score
		if score >= m.threshold {
			diag.Strategy = StrategyFuzzyVariant
			return Result{Matched: true, Diagnostics: diag}
		}
	}

	score := TokenSortRatio(normClaim, normExtracted)
	if score > diag.Score {
		diag.Score = score
	}
	if score >= m.threshold {
		diag.Strategy = StrategyFuzzyFull
		diag.Score = score
		return Result{Matched: true, Diagnostics: diag}
	}
	return Result{Diagnostics: diag}
}

func undottedInitials(p NameParts) (NameParts, bool) {
	if p.Surname == "" || p.Patronymic != "" {
		return NameParts{}, false
	}
	letters := []rune(p.Given)
	if len(letters) != 2 {
		return NameParts{}, false
	}
	return NameParts{
		Surname:    p.Surname,
		Given:      string(letters[0]) + ".",
		Patronymic: string(letters[1]) + ".",
	}, true
}
