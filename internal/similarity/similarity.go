// Package similarity implements the fuzzy string comparison strategies used
// for partial matching. All functions are pure and return scores in [0,1].
package similarity

import (
	"math"
	"strings"

	"github.com/agnivade/levenshtein"

	"entity-graph/backend/internal/model"
)

// Func scores the similarity of two normalized strings.
type Func func(a, b string) float64

// ForType selects the strategy for a semantic type: prefix-weighted edit
// similarity for names, order-independent token overlap for addresses, and
// normalized edit distance as the general fallback.
func ForType(t model.SemanticType) (model.MatchStrategy, Func) {
	switch t {
	case model.SemanticTypeName:
		return model.MatchStrategyJaroWinkler, JaroWinkler
	case model.SemanticTypeAddress:
		return model.MatchStrategyTokenSet, TokenSet
	default:
		return model.MatchStrategyLevenshtein, Levenshtein
	}
}

// Levenshtein converts edit distance to a similarity in [0,1].
func Levenshtein(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := math.Max(float64(len(a)), float64(len(b)))
	if maxLen == 0 {
		return 1.0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(distance)/maxLen
}

// TokenSet computes Jaccard similarity over whitespace-separated tokens,
// tolerant of word reordering.
func TokenSet(a, b string) float64 {
	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)
	if len(tokensA) == 0 && len(tokensB) == 0 {
		return 1.0
	}
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0.0
	}

	setA := make(map[string]bool, len(tokensA))
	for _, tok := range tokensA {
		setA[tok] = true
	}
	setB := make(map[string]bool, len(tokensB))
	for _, tok := range tokensB {
		setB[tok] = true
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// JaroWinkler computes Jaro similarity with the Winkler common-prefix bonus,
// tolerant of short transpositions and typos.
func JaroWinkler(a, b string) float64 {
	if a == b {
		return 1.0
	}

	lenA, lenB := len(a), len(b)
	if lenA == 0 || lenB == 0 {
		return 0.0
	}

	matchWindow := max(lenA, lenB)/2 - 1
	if matchWindow < 0 {
		matchWindow = 0
	}

	matchesA := make([]bool, lenA)
	matchesB := make([]bool, lenB)

	matches := 0
	for i := 0; i < lenA; i++ {
		start := max(0, i-matchWindow)
		end := min(lenB, i+matchWindow+1)
		for j := start; j < end; j++ {
			if matchesB[j] || a[i] != b[j] {
				continue
			}
			matchesA[i] = true
			matchesB[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	transpositions := 0
	k := 0
	for i := 0; i < lenA; i++ {
		if !matchesA[i] {
			continue
		}
		for !matchesB[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	jaro := (m/float64(lenA) + m/float64(lenB) + (m-float64(transpositions)/2)/m) / 3.0

	prefix := 0
	for i := 0; i < min(min(lenA, lenB), 4); i++ {
		if a[i] != b[i] {
			break
		}
		prefix++
	}

	return jaro + 0.1*float64(prefix)*(1.0-jaro)
}
