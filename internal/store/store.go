// Package store defines the narrow interface the resolution core consumes
// from the graph storage backend. Persistence of nodes and edges lives behind
// this boundary; the core only requires the operations named here plus an
// atomic multi-step transaction for merge execution.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"entity-graph/backend/internal/model"
)

// Common store errors
var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrTxFailed is returned when the underlying store failed mid-mutation.
	// The core treats this as fatal to the operation.
	ErrTxFailed = errors.New("store transaction failed")
)

// AuditFilter selects linking history records. Zero fields match everything.
type AuditFilter struct {
	EntityID   *uuid.UUID
	ActionType *model.ActionType
	Limit      int
}

// Store is the graph storage collaborator. Implementations must guarantee
// exclusive writes for the duration of RunInTx.
type Store interface {
	// Entities
	CreateEntity(ctx context.Context, e *model.Entity) error
	GetEntity(ctx context.Context, id uuid.UUID) (*model.Entity, error)
	UpdateEntityProfile(ctx context.Context, id uuid.UUID, p model.Profile) error
	TombstoneEntity(ctx context.Context, id, mergedInto uuid.UUID, reason string, at time.Time) error

	// Orphans
	CreateOrphan(ctx context.Context, o *model.OrphanData) error
	GetOrphan(ctx context.Context, id uuid.UUID) (*model.OrphanData, error)
	ResolveOrphan(ctx context.Context, id, entityID uuid.UUID, reason string, at time.Time) error

	// Data items
	CreateDataItem(ctx context.Context, item *model.DataItem) error
	GetDataItem(ctx context.Context, id uuid.UUID) (*model.DataItem, error)
	GetDataItems(ctx context.Context, owner model.Owner) ([]model.DataItem, error)
	MoveDataItem(ctx context.Context, id uuid.UUID, newOwner model.Owner) error
	QueryByTypeAndNormalizedValue(ctx context.Context, t model.SemanticType, value string) ([]model.DataItem, error)
	QueryByType(ctx context.Context, t model.SemanticType) ([]model.DataItem, error)
	QueryByHash(ctx context.Context, hash string) ([]model.DataItem, error)

	// Item links (symmetric, reversible)
	LinkItems(ctx context.Context, a, b uuid.UUID) error
	UnlinkItems(ctx context.Context, a, b uuid.UUID) error
	ItemsLinked(ctx context.Context, a, b uuid.UUID) (bool, error)

	// Relationships
	CreateRelationship(ctx context.Context, rel *model.Relationship) error
	GetRelationships(ctx context.Context, entityID uuid.UUID) ([]model.Relationship, error)
	MoveRelationships(ctx context.Context, from, to uuid.UUID) (int, error)

	// Audit trail (append-only)
	AppendAuditRecord(ctx context.Context, action *model.LinkingAction) error
	ListAuditRecords(ctx context.Context, filter AuditFilter) ([]model.LinkingAction, error)

	// Dismissals
	AddDismissal(ctx context.Context, d model.Dismissal) error
	ListDismissals(ctx context.Context, userID string, entityID uuid.UUID) ([]model.Dismissal, error)
	RemoveDismissal(ctx context.Context, userID string, entityID, targetID uuid.UUID) error

	// RunInTx executes fn atomically: either every mutation made through tx
	// is applied, or none are.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
