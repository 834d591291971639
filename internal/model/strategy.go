package model

import "fmt"

// MergeStrategy is a closed set of conflict resolution strategies. Exhaustive
// switches over this type make a missing strategy a compile-time concern
// rather than a runtime string lookup.
type MergeStrategy int

const (
	MergeKeepPrimary MergeStrategy = iota
	MergeKeepDuplicate
	MergeKeepNewest
	MergeKeepOldest
	MergeKeepLongest
	MergeKeepAll
	MergeManual
)

var mergeStrategyNames = map[MergeStrategy]string{
	MergeKeepPrimary:   "keep_primary",
	MergeKeepDuplicate: "keep_duplicate",
	MergeKeepNewest:    "keep_newest",
	MergeKeepOldest:    "keep_oldest",
	MergeKeepLongest:   "keep_longest",
	MergeKeepAll:       "keep_all",
	MergeManual:        "manual",
}

func (s MergeStrategy) String() string {
	if name, ok := mergeStrategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("merge_strategy(%d)", int(s))
}

// ParseMergeStrategy converts a wire name to a MergeStrategy.
func ParseMergeStrategy(name string) (MergeStrategy, error) {
	for s, n := range mergeStrategyNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown merge strategy %q", name)
}

// Valid reports whether s is a known strategy.
func (s MergeStrategy) Valid() bool {
	_, ok := mergeStrategyNames[s]
	return ok
}
