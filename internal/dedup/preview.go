package dedup

import (
	"fmt"
	"sort"
	"time"

	"entity-graph/backend/internal/model"
)

// Conflict is one field whose non-null values differ across the merged
// profiles.
type Conflict struct {
	Section    string     `json:"section"`
	Field      string     `json:"field"`
	Primary    []string   `json:"primary,omitempty"`
	Duplicates [][]string `json:"duplicates,omitempty"`
	Winner     []string   `json:"winner,omitempty"`
	Unresolved bool       `json:"unresolved"`
}

// MergePreview is the computed outcome of a merge before execution. Nothing
// in the store is mutated while previewing.
type MergePreview struct {
	Profile    model.Profile          `json:"profile"`
	Conflicts  []Conflict             `json:"conflicts"`
	Discarded  []model.DiscardedValue `json:"discarded"`
	Strategy   model.MergeStrategy    `json:"-"`
	Unresolved int                    `json:"unresolved"`
}

// FieldKey addresses a profile field for manual resolutions.
func FieldKey(section, field string) string {
	return section + "." + field
}

type fieldCandidate struct {
	fv      model.FieldValue
	primary bool
	order   int
}

// buildPreview resolves every field across the primary and duplicate
// profiles per the strategy. resolutions maps FieldKey -> chosen values and
// is consulted only for the manual strategy.
func buildPreview(primary model.Profile, duplicates []model.Profile, strategy model.MergeStrategy, resolutions map[string][]string) *MergePreview {
	preview := &MergePreview{
		Profile:  model.Profile{},
		Strategy: strategy,
	}

	for _, key := range allFieldKeys(primary, duplicates) {
		section, field := key[0], key[1]
		candidates := collectCandidates(primary, duplicates, section, field)
		if len(candidates) == 0 {
			continue
		}

		distinct := distinctValueSets(candidates)
		if len(distinct) == 1 {
			// No conflict: single agreed value set.
			preview.Profile.Set(section, field, cloneField(candidates[0].fv))
			continue
		}

		winner, discarded, unresolved := resolveConflict(candidates, strategy, resolutions[FieldKey(section, field)])
		conflict := Conflict{
			Section:    section,
			Field:      field,
			Unresolved: unresolved,
		}
		for _, c := range candidates {
			if c.primary {
				conflict.Primary = c.fv.Values
			} else {
				conflict.Duplicates = append(conflict.Duplicates, c.fv.Values)
			}
		}
		if !unresolved {
			conflict.Winner = winner.Values
			preview.Profile.Set(section, field, cloneField(winner))
			if len(discarded) > 0 {
				preview.Discarded = append(preview.Discarded, model.DiscardedValue{
					Section: section,
					Field:   field,
					Values:  discarded,
				})
			}
		} else {
			preview.Unresolved++
		}
		preview.Conflicts = append(preview.Conflicts, conflict)
	}

	return preview
}

// resolveConflict picks the winning field value for one conflicting field.
// The switch over MergeStrategy is exhaustive; adding a strategy without
// handling it here is a compile-visible omission in tests.
func resolveConflict(candidates []fieldCandidate, strategy model.MergeStrategy, manual []string) (winner model.FieldValue, discarded []string, unresolved bool) {
	primaryIdx := 0
	for i, c := range candidates {
		if c.primary {
			primaryIdx = i
			break
		}
	}

	pick := func(idx int) (model.FieldValue, []string, bool) {
		var lost []string
		for i, c := range candidates {
			if i == idx {
				continue
			}
			lost = appendMissing(lost, c.fv.Values, candidates[idx].fv.Values)
		}
		return candidates[idx].fv, lost, false
	}

	switch strategy {
	case model.MergeKeepPrimary:
		return pick(primaryIdx)

	case model.MergeKeepDuplicate:
		for i, c := range candidates {
			if !c.primary {
				return pick(i)
			}
		}
		return pick(primaryIdx)

	case model.MergeKeepNewest:
		best := primaryIdx
		for i, c := range candidates {
			if c.fv.UpdatedAt.After(candidates[best].fv.UpdatedAt) {
				best = i
			}
		}
		return pick(best)

	case model.MergeKeepOldest:
		best := primaryIdx
		for i, c := range candidates {
			if olderThan(c.fv.UpdatedAt, candidates[best].fv.UpdatedAt) {
				best = i
			}
		}
		return pick(best)

	case model.MergeKeepLongest:
		best := primaryIdx
		for i, c := range candidates {
			if longestValue(c.fv.Values) > longestValue(candidates[best].fv.Values) {
				best = i
			}
		}
		return pick(best)

	case model.MergeKeepAll:
		if isMultiValued(candidates) {
			var union []string
			seen := make(map[string]bool)
			updated := time.Time{}
			for _, c := range candidates {
				for _, v := range c.fv.Values {
					if v == "" || seen[v] {
						continue
					}
					seen[v] = true
					union = append(union, v)
				}
				if c.fv.UpdatedAt.After(updated) {
					updated = c.fv.UpdatedAt
				}
			}
			return model.FieldValue{Values: union, UpdatedAt: updated}, nil, false
		}
		// Single-valued: behaves like keep-primary but the discarded values
		// are recorded in the preview.
		return pick(primaryIdx)

	case model.MergeManual:
		if len(manual) == 0 {
			return model.FieldValue{}, nil, true
		}
		var lost []string
		for _, c := range candidates {
			lost = appendMissing(lost, c.fv.Values, manual)
		}
		return model.FieldValue{Values: manual, UpdatedAt: time.Now().UTC()}, lost, false
	}

	// Unknown strategies are rejected by validation before preview.
	return candidates[primaryIdx].fv, nil, false
}

func allFieldKeys(primary model.Profile, duplicates []model.Profile) [][2]string {
	seen := make(map[[2]string]bool)
	var keys [][2]string
	add := func(p model.Profile) {
		for section, fields := range p {
			for field := range fields {
				k := [2]string{section, field}
				if !seen[k] {
					seen[k] = true
					keys = append(keys, k)
				}
			}
		}
	}
	add(primary)
	for _, d := range duplicates {
		add(d)
	}
	// Deterministic preview ordering.
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})
	return keys
}

func collectCandidates(primary model.Profile, duplicates []model.Profile, section, field string) []fieldCandidate {
	var out []fieldCandidate
	if fv, ok := primary.Get(section, field); ok && len(fv.Values) > 0 {
		out = append(out, fieldCandidate{fv: fv, primary: true})
	}
	for i, d := range duplicates {
		if fv, ok := d.Get(section, field); ok && len(fv.Values) > 0 {
			out = append(out, fieldCandidate{fv: fv, order: i + 1})
		}
	}
	return out
}

func distinctValueSets(candidates []fieldCandidate) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range candidates {
		key := fmt.Sprintf("%q", c.fv.Values)
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}

func isMultiValued(candidates []fieldCandidate) bool {
	for _, c := range candidates {
		if len(c.fv.Values) > 1 {
			return true
		}
	}
	return false
}

func longestValue(values []string) int {
	longest := 0
	for _, v := range values {
		if len(v) > longest {
			longest = len(v)
		}
	}
	return longest
}

func olderThan(a, b time.Time) bool {
	return a.Before(b)
}

func cloneField(fv model.FieldValue) model.FieldValue {
	return model.FieldValue{
		Values:    append([]string(nil), fv.Values...),
		UpdatedAt: fv.UpdatedAt,
	}
}

func appendMissing(dst, values, winner []string) []string {
	keep := make(map[string]bool, len(winner))
	for _, v := range winner {
		keep[v] = true
	}
	for _, v := range values {
		if !keep[v] {
			dst = append(dst, v)
		}
	}
	return dst
}
