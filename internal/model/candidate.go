package model

import (
	"time"

	"github.com/google/uuid"
)

// MatchStrategy identifies how a candidate was found.
type MatchStrategy string

const (
	MatchStrategyExactHash   MatchStrategy = "exact_hash"
	MatchStrategyExactString MatchStrategy = "exact_string"
	MatchStrategyJaroWinkler MatchStrategy = "jaro_winkler"
	MatchStrategyTokenSet    MatchStrategy = "token_set"
	MatchStrategyLevenshtein MatchStrategy = "levenshtein"
)

// MatchCandidate is an ephemeral match result. Candidates are recomputed from
// current store state on demand and never persisted as first-class records.
type MatchCandidate struct {
	SourceItemID  uuid.UUID     `json:"source_item_id"`
	TargetItemID  uuid.UUID     `json:"target_item_id"`
	TargetOwner   Owner         `json:"target_owner"`
	Strategy      MatchStrategy `json:"strategy"`
	Similarity    float64       `json:"similarity"`
	Confidence    float64       `json:"confidence"`
	Reason        string        `json:"reason"`
	TargetCreated time.Time     `json:"target_created"`
}

// DuplicateCandidate aggregates all supporting matches against one target
// entity, ranked by its strongest match.
type DuplicateCandidate struct {
	TargetEntityID uuid.UUID        `json:"target_entity_id"`
	Confidence     float64          `json:"confidence"`
	BestMatch      MatchCandidate   `json:"best_match"`
	Supporting     []MatchCandidate `json:"supporting"`
}

// Dismissal permanently suppresses suggestions for an (entity, target) pair
// for one user. Append-only; cleared only by explicit request.
type Dismissal struct {
	UserID    string    `json:"user_id"`
	EntityID  uuid.UUID `json:"entity_id"`
	TargetID  uuid.UUID `json:"target_id"`
	CreatedAt time.Time `json:"created_at"`
}
