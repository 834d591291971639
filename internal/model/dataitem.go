package model

import (
	"time"

	"github.com/google/uuid"
)

// OwnerKind discriminates the ownership state of a DataItem.
type OwnerKind string

const (
	OwnerKindEntity OwnerKind = "entity"
	OwnerKindOrphan OwnerKind = "orphan"
	OwnerKindNone   OwnerKind = "none"
)

// Owner is the single ownership slot of a DataItem. Exactly one of the three
// states holds at any time; dual ownership is unrepresentable.
type Owner struct {
	Kind OwnerKind `json:"kind"`
	ID   uuid.UUID `json:"id,omitempty"`
}

// EntityOwner returns an owner pointing at an entity.
func EntityOwner(id uuid.UUID) Owner {
	return Owner{Kind: OwnerKindEntity, ID: id}
}

// OrphanOwner returns an owner pointing at an orphan group.
func OrphanOwner(id uuid.UUID) Owner {
	return Owner{Kind: OwnerKindOrphan, ID: id}
}

// NoOwner returns the unowned state.
func NoOwner() Owner {
	return Owner{Kind: OwnerKindNone}
}

// IsEntity reports whether the owner is an entity.
func (o Owner) IsEntity() bool { return o.Kind == OwnerKindEntity }

// IsOrphan reports whether the owner is an orphan.
func (o Owner) IsOrphan() bool { return o.Kind == OwnerKindOrphan }

// DataItem is one atomic piece of evidence: a string value or a reference to
// binary content, owned by at most one entity or orphan.
type DataItem struct {
	ID              uuid.UUID    `json:"id"`
	Type            SemanticType `json:"type"`
	RawValue        string       `json:"raw_value,omitempty"`
	ContentRef      string       `json:"content_ref,omitempty"`
	ContentHash     string       `json:"content_hash,omitempty"`
	NormalizedValue string       `json:"normalized_value,omitempty"`
	Degraded        bool         `json:"degraded,omitempty"`
	Owner           Owner        `json:"owner"`
	Source          string       `json:"source,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// OrphanData is a group of data items with no resolved entity owner. It is
// retained after resolution for audit lineage.
type OrphanData struct {
	ID               uuid.UUID  `json:"id"`
	Resolved         bool       `json:"resolved"`
	ResolvedEntityID *uuid.UUID `json:"resolved_entity_id,omitempty"`
	ResolutionReason *string    `json:"resolution_reason,omitempty"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}
