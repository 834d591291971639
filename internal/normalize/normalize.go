// Package normalize maps raw field values to canonical comparison forms.
// All normalization is pure and total: malformed input degrades to a
// best-effort form with a warning flag instead of failing.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"entity-graph/backend/internal/model"
)

// Result is the outcome of normalizing a single value. Degraded marks values
// that could not be parsed into their expected canonical form and fell back
// to a low-trust representation; downstream scoring reads this flag.
type Result struct {
	Value    string
	Degraded bool
	Warning  string
}

// Normalizer holds locale configuration for normalization. It carries no
// mutable state and is safe for concurrent use.
type Normalizer struct {
	defaultRegion string
}

// New creates a normalizer. defaultRegion is the ISO 3166-1 region hint used
// when parsing phone numbers without an international prefix (e.g. "US").
func New(defaultRegion string) *Normalizer {
	if defaultRegion == "" {
		defaultRegion = "US"
	}
	return &Normalizer{defaultRegion: defaultRegion}
}

// Normalize returns the canonical comparison form of raw for the given
// semantic type.
func (n *Normalizer) Normalize(raw string, t model.SemanticType) Result {
	switch t {
	case model.SemanticTypeEmail:
		return Result{Value: normalizeEmail(raw)}
	case model.SemanticTypePhone:
		return n.normalizePhone(raw)
	case model.SemanticTypeAddress:
		return Result{Value: normalizeAddress(raw)}
	case model.SemanticTypeName:
		return Result{Value: normalizeName(raw)}
	case model.SemanticTypeUsername, model.SemanticTypeDomain, model.SemanticTypeIP:
		return Result{Value: strings.ToLower(strings.TrimSpace(raw))}
	case model.SemanticTypeCryptoAddress, model.SemanticTypeURL:
		// Case is semantically significant for these types; trim only.
		return Result{Value: strings.TrimSpace(raw)}
	default:
		return Result{Value: strings.TrimSpace(raw)}
	}
}

// HashContent returns the hex-encoded SHA-256 digest of binary content,
// independent of any textual normalization.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// normalizeEmail lowercases and trims. Plus-addressing segments are
// preserved: distinct aliases stay distinct.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var nonDigitRegex = regexp.MustCompile(`\D`)

// normalizePhone parses with the configured region hint and reformats to
// E.164. On parse failure it strips to digits with a leading + as a degraded
// fallback.
func (n *Normalizer) normalizePhone(phone string) Result {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return Result{}
	}

	parsed, err := phonenumbers.Parse(phone, n.defaultRegion)
	if err == nil && phonenumbers.IsPossibleNumber(parsed) {
		return Result{Value: phonenumbers.Format(parsed, phonenumbers.E164)}
	}

	digits := nonDigitRegex.ReplaceAllString(phone, "")
	if digits == "" {
		return Result{Degraded: true, Warning: "phone has no digits"}
	}
	return Result{
		Value:    "+" + digits,
		Degraded: true,
		Warning:  "phone did not parse; digits-only fallback",
	}
}

// addressAbbreviations is the fixed expansion table applied token-by-token.
var addressAbbreviations = map[string]string{
	"street":    "st",
	"avenue":    "ave",
	"boulevard": "blvd",
	"apartment": "apt",
	"suite":     "ste",
	"road":      "rd",
	"drive":     "dr",
	"lane":      "ln",
	"court":     "ct",
	"place":     "pl",
	"north":     "n",
	"south":     "s",
	"east":      "e",
	"west":      "w",
}

func normalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	addr = stripDiacritics(addr)
	addr = stripPunctuation(addr)

	tokens := strings.Fields(addr)
	for i, tok := range tokens {
		if expanded, ok := addressAbbreviations[tok]; ok {
			tokens[i] = expanded
		}
	}
	return strings.Join(tokens, " ")
}

// normalizeName lowercases, strips diacritics, and drops single-letter
// middle-initial tokens. Hyphenated compound tokens survive intact.
func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = stripDiacritics(name)

	tokens := strings.Fields(name)
	kept := tokens[:0]
	for _, tok := range tokens {
		trimmed := strings.TrimSuffix(tok, ".")
		if len([]rune(trimmed)) == 1 && len(tokens) > 1 {
			continue
		}
		kept = append(kept, stripPunctuation(tok))
	}
	return strings.Join(kept, " ")
}

var diacriticRemover = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func stripDiacritics(s string) string {
	out, _, err := transform.String(diacriticRemover, s)
	if err != nil {
		return s
	}
	return out
}

// stripPunctuation removes punctuation except hyphens that sit between
// alphanumeric runes.
func stripPunctuation(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range runes {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
			continue
		}
		if r == '-' && i > 0 && i < len(runes)-1 &&
			isAlphanumeric(runes[i-1]) && isAlphanumeric(runes[i+1]) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isAlphanumeric(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
