// Package score converts raw similarity metrics into bounded, tiered
// confidence values. Confidence is intentionally compressed relative to raw
// similarity: even near-exact fuzzy matches need human adjudication.
package score

// Fixed confidences for the non-fuzzy strategies.
const (
	// ConfidenceExactHash is certainty: identical binary content.
	ConfidenceExactHash = 1.0
	// ConfidenceExactString is below 1.0 because normalization can conflate
	// distinct-but-superficially-identical values.
	ConfidenceExactString = 0.95
	// ConfidenceDegradedExact caps exact-string matches where either side was
	// produced by a degraded normalization fallback.
	ConfidenceDegradedExact = 0.85
)

// Scorer maps fuzzy similarity to confidence tiers. The zero value is ready
// to use; a Scorer holds only configuration and is safe for concurrent use.
type Scorer struct{}

// NewScorer creates a confidence scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Confidence maps a raw fuzzy similarity s to its tier:
//
//	s >= 0.90         -> 0.9
//	0.80 <= s < 0.90  -> 0.7 + (s-0.80) * 2.0
//	0.70 <= s < 0.80  -> 0.5 + (s-0.70) * 2.0
//	s < 0.70          -> 0.5 (filtered upstream unless threshold lowered)
//
// The mapping is monotonic non-decreasing with output in [0.5, 0.9].
func (sc *Scorer) Confidence(s float64) float64 {
	switch {
	case s >= 0.90:
		return 0.9
	case s >= 0.80:
		return 0.7 + (s-0.80)*2.0
	case s >= 0.70:
		return 0.5 + (s-0.70)*2.0
	default:
		return 0.5
	}
}

// ExactStringConfidence returns the exact-string tier, capped when degraded
// normalization produced either compared value.
func (sc *Scorer) ExactStringConfidence(degraded bool) float64 {
	if degraded {
		return ConfidenceDegradedExact
	}
	return ConfidenceExactString
}
