// Package linking executes the mutating decisions of entity resolution:
// item links, entity merges, relationships, orphan resolution, and
// suggestion dismissal. Every operation requires a human-supplied reason and
// writes exactly one audit record inside the same store transaction; audit
// failure rolls the whole operation back.
package linking

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"entity-graph/backend/internal/logger"
	"entity-graph/backend/internal/model"
	"entity-graph/backend/internal/notify"
	"entity-graph/backend/internal/store"
	"entity-graph/backend/internal/suggest"
)

// Executor runs linking operations against the store. Merge execution is
// serialized per entity pair; there is no cancellation once a merge begins.
type Executor struct {
	store    store.Store
	cache    *suggest.Cache
	notifier notify.Notifier
	locks    *entityLocks
	now      func() time.Time
}

// NewExecutor creates a linking executor.
func NewExecutor(st store.Store, cache *suggest.Cache, notifier notify.Notifier) *Executor {
	return &Executor{
		store:    st,
		cache:    cache,
		notifier: notifier,
		locks:    newEntityLocks(),
		now:      time.Now,
	}
}

func requireReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ValidationError{Field: "reason", Message: "a non-empty reason is required"}
	}
	return nil
}

// LinkItemsRequest links two data items symmetrically.
type LinkItemsRequest struct {
	ItemA  uuid.UUID
	ItemB  uuid.UUID
	Actor  string
	Reason string
}

// LinkDataItems creates a symmetric "linked" relation between two data
// items. Non-destructive: ownership is unchanged and the relation can be
// removed later.
func (x *Executor) LinkDataItems(ctx context.Context, req LinkItemsRequest) (*model.LinkingAction, error) {
	if err := requireReason(req.Reason); err != nil {
		return nil, err
	}
	if req.ItemA == req.ItemB {
		return nil, ValidationError{Field: "item_b", Message: "cannot link an item to itself"}
	}

	action := x.newAction(model.ActionLinkDataItems, req.Actor, req.Reason, nil,
		model.LinkDataItemsDetails{ItemA: req.ItemA, ItemB: req.ItemB})

	var owners []model.Owner
	err := x.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		a, err := tx.GetDataItem(ctx, req.ItemA)
		if err != nil {
			return err
		}
		b, err := tx.GetDataItem(ctx, req.ItemB)
		if err != nil {
			return err
		}
		owners = []model.Owner{a.Owner, b.Owner}
		if err := tx.LinkItems(ctx, req.ItemA, req.ItemB); err != nil {
			return err
		}
		return tx.AppendAuditRecord(ctx, action)
	})
	if err != nil {
		return nil, err
	}

	for _, o := range owners {
		if o.IsEntity() {
			x.cache.Invalidate(o.ID)
		}
	}
	x.notifier.Notify(ctx, notify.EventDataLinked, map[string]any{
		"item_a": req.ItemA.String(),
		"item_b": req.ItemB.String(),
	})
	return action, nil
}

// MergeRequest merges one duplicate entity into a primary entity.
type MergeRequest struct {
	PrimaryID   uuid.UUID
	DuplicateID uuid.UUID
	Actor       string
	Reason      string
	Strategy    model.MergeStrategy
	// MergedProfile, when non-nil, is the previewed and resolved profile to
	// apply. When nil the default merge is used: union and deduplicate lists,
	// primary values win scalar conflicts.
	MergedProfile model.Profile
	Discarded     []model.DiscardedValue
	Confidence    *float64
}

// MergeResult reports what a completed merge moved.
type MergeResult struct {
	ItemsMoved         int                  `json:"items_moved"`
	RelationshipsMoved int                  `json:"relationships_moved"`
	Action             *model.LinkingAction `json:"action"`
}

// MergeEntities irreversibly merges the duplicate into the primary: every
// data item and relationship moves to the primary, profiles merge, and the
// duplicate is tombstoned with a pointer to the primary. The whole sequence
// is one atomic operation; partial application is a correctness violation.
func (x *Executor) MergeEntities(ctx context.Context, req MergeRequest) (*MergeResult, error) {
	if err := requireReason(req.Reason); err != nil {
		return nil, err
	}
	if req.PrimaryID == req.DuplicateID {
		return nil, ValidationError{Field: "duplicate_id", Message: "cannot merge an entity into itself"}
	}
	if !req.Strategy.Valid() {
		return nil, ValidationError{Field: "strategy", Message: "unknown merge strategy"}
	}

	unlock := x.locks.lockPair(req.PrimaryID, req.DuplicateID)
	defer unlock()

	result := &MergeResult{}
	err := x.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		primary, err := tx.GetEntity(ctx, req.PrimaryID)
		if err != nil {
			return err
		}
		duplicate, err := tx.GetEntity(ctx, req.DuplicateID)
		if err != nil {
			return err
		}
		if primary.IsTombstoned() {
			return ValidationError{Field: "primary_id", Message: "primary entity was already merged away"}
		}
		if duplicate.IsTombstoned() {
			return ValidationError{Field: "duplicate_id", Message: "duplicate entity was already merged away"}
		}

		items, err := tx.GetDataItems(ctx, model.EntityOwner(req.DuplicateID))
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := tx.MoveDataItem(ctx, item.ID, model.EntityOwner(req.PrimaryID)); err != nil {
				return err
			}
		}
		result.ItemsMoved = len(items)

		moved, err := tx.MoveRelationships(ctx, req.DuplicateID, req.PrimaryID)
		if err != nil {
			return err
		}
		result.RelationshipsMoved = moved

		merged := req.MergedProfile
		if merged == nil {
			merged = defaultMergeProfiles(primary.Profile, duplicate.Profile)
		}
		if err := tx.UpdateEntityProfile(ctx, req.PrimaryID, merged); err != nil {
			return err
		}

		now := x.now().UTC()
		if err := tx.TombstoneEntity(ctx, req.DuplicateID, req.PrimaryID, req.Reason, now); err != nil {
			return err
		}

		action := x.newAction(model.ActionMergeEntities, req.Actor, req.Reason, req.Confidence,
			model.MergeEntitiesDetails{
				PrimaryID:          req.PrimaryID,
				MergedID:           req.DuplicateID,
				Strategy:           req.Strategy.String(),
				ItemsMoved:         result.ItemsMoved,
				RelationshipsMoved: result.RelationshipsMoved,
				DiscardedValues:    req.Discarded,
			})
		result.Action = action
		return tx.AppendAuditRecord(ctx, action)
	})
	if err != nil {
		return nil, err
	}

	x.cache.Invalidate(req.PrimaryID)
	x.cache.Invalidate(req.DuplicateID)
	x.notifier.Notify(ctx, notify.EventEntityMerged, map[string]any{
		"primary_id":   req.PrimaryID.String(),
		"duplicate_id": req.DuplicateID.String(),
		"items_moved":  result.ItemsMoved,
	})
	logger.Info().
		Str("primary_id", req.PrimaryID.String()).
		Str("duplicate_id", req.DuplicateID.String()).
		Int("items_moved", result.ItemsMoved).
		Int("relationships_moved", result.RelationshipsMoved).
		Msg("entities merged")
	return result, nil
}

// RelationshipRequest creates a typed relationship from a match decision.
type RelationshipRequest struct {
	FromID           uuid.UUID
	ToID             uuid.UUID
	RelationshipType string
	Actor            string
	Reason           string
	Confidence       *float64
}

// CreateRelationshipFromMatch adds a typed, directed relationship between
// two entities without merging them. Symmetric types get the inverse edge in
// the same transaction.
func (x *Executor) CreateRelationshipFromMatch(ctx context.Context, req RelationshipRequest) (*model.LinkingAction, error) {
	if err := requireReason(req.Reason); err != nil {
		return nil, err
	}
	if req.FromID == req.ToID {
		return nil, ValidationError{Field: "to_id", Message: "cannot relate an entity to itself"}
	}
	if strings.TrimSpace(req.RelationshipType) == "" {
		return nil, ValidationError{Field: "relationship_type", Message: "relationship type is required"}
	}

	symmetric := model.IsSymmetricRelationship(req.RelationshipType)
	action := x.newAction(model.ActionCreateRelationship, req.Actor, req.Reason, req.Confidence,
		model.CreateRelationshipDetails{
			FromID:           req.FromID,
			ToID:             req.ToID,
			RelationshipType: req.RelationshipType,
			Symmetric:        symmetric,
		})

	err := x.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := tx.GetEntity(ctx, req.FromID); err != nil {
			return err
		}
		if _, err := tx.GetEntity(ctx, req.ToID); err != nil {
			return err
		}

		now := x.now().UTC()
		rel := &model.Relationship{
			ID:         uuid.New(),
			Type:       req.RelationshipType,
			FromID:     req.FromID,
			ToID:       req.ToID,
			Confidence: req.Confidence,
			Reason:     &req.Reason,
			CreatedAt:  now,
		}
		if err := tx.CreateRelationship(ctx, rel); err != nil {
			return err
		}
		if symmetric {
			inverse := &model.Relationship{
				ID:         uuid.New(),
				Type:       req.RelationshipType,
				FromID:     req.ToID,
				ToID:       req.FromID,
				Confidence: req.Confidence,
				Reason:     &req.Reason,
				CreatedAt:  now,
			}
			if err := tx.CreateRelationship(ctx, inverse); err != nil {
				return err
			}
		}
		return tx.AppendAuditRecord(ctx, action)
	})
	if err != nil {
		return nil, err
	}
	return action, nil
}

// OrphanRequest links an orphan's data items to an entity.
type OrphanRequest struct {
	OrphanID uuid.UUID
	EntityID uuid.UUID
	Actor    string
	Reason   string
}

// LinkOrphanToEntity moves every data item owned by the orphan to the entity
// and marks the orphan resolved. The orphan record is retained for audit
// lineage; resolution is one-directional.
func (x *Executor) LinkOrphanToEntity(ctx context.Context, req OrphanRequest) (*model.LinkingAction, error) {
	if err := requireReason(req.Reason); err != nil {
		return nil, err
	}

	unlock := x.locks.lockOne(req.EntityID)
	defer unlock()

	var action *model.LinkingAction
	err := x.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		orphan, err := tx.GetOrphan(ctx, req.OrphanID)
		if err != nil {
			return err
		}
		if orphan.Resolved {
			return ValidationError{Field: "orphan_id", Message: "orphan was already resolved"}
		}
		entity, err := tx.GetEntity(ctx, req.EntityID)
		if err != nil {
			return err
		}
		if entity.IsTombstoned() {
			return ValidationError{Field: "entity_id", Message: "entity was merged away"}
		}

		items, err := tx.GetDataItems(ctx, model.OrphanOwner(req.OrphanID))
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := tx.MoveDataItem(ctx, item.ID, model.EntityOwner(req.EntityID)); err != nil {
				return err
			}
		}

		now := x.now().UTC()
		if err := tx.ResolveOrphan(ctx, req.OrphanID, req.EntityID, req.Reason, now); err != nil {
			return err
		}

		action = x.newAction(model.ActionLinkOrphan, req.Actor, req.Reason, nil,
			model.LinkOrphanDetails{
				OrphanID:   req.OrphanID,
				EntityID:   req.EntityID,
				ItemsMoved: len(items),
			})
		return tx.AppendAuditRecord(ctx, action)
	})
	if err != nil {
		return nil, err
	}

	x.cache.Invalidate(req.EntityID)
	x.notifier.Notify(ctx, notify.EventOrphanLinked, map[string]any{
		"orphan_id": req.OrphanID.String(),
		"entity_id": req.EntityID.String(),
	})
	return action, nil
}

// DismissRequest rejects a suggestion pair for a user.
type DismissRequest struct {
	EntityID uuid.UUID
	TargetID uuid.UUID
	Actor    string
	Reason   string
}

// DismissSuggestion records a durable dismissal between an entity and a
// target. No owned data is mutated.
func (x *Executor) DismissSuggestion(ctx context.Context, req DismissRequest) (*model.LinkingAction, error) {
	if err := requireReason(req.Reason); err != nil {
		return nil, err
	}
	if req.EntityID == req.TargetID {
		return nil, ValidationError{Field: "target_id", Message: "cannot dismiss an entity against itself"}
	}

	action := x.newAction(model.ActionDismissSuggestion, req.Actor, req.Reason, nil,
		model.DismissSuggestionDetails{
			EntityID: req.EntityID,
			TargetID: req.TargetID,
			UserID:   req.Actor,
		})

	err := x.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := tx.GetEntity(ctx, req.EntityID); err != nil {
			return err
		}
		d := model.Dismissal{
			UserID:    req.Actor,
			EntityID:  req.EntityID,
			TargetID:  req.TargetID,
			CreatedAt: x.now().UTC(),
		}
		if err := tx.AddDismissal(ctx, d); err != nil {
			return err
		}
		return tx.AppendAuditRecord(ctx, action)
	})
	if err != nil {
		return nil, err
	}

	x.cache.Invalidate(req.EntityID)
	x.notifier.Notify(ctx, notify.EventSuggestionDismissed, map[string]any{
		"entity_id": req.EntityID.String(),
		"target_id": req.TargetID.String(),
	})
	return action, nil
}

// GetLinkingHistory returns audit records, newest first, optionally filtered
// by entity and action type.
func (x *Executor) GetLinkingHistory(ctx context.Context, filter store.AuditFilter) ([]model.LinkingAction, error) {
	return x.store.ListAuditRecords(ctx, filter)
}

func (x *Executor) newAction(t model.ActionType, actor, reason string, confidence *float64, details model.ActionDetails) *model.LinkingAction {
	return &model.LinkingAction{
		ID:         uuid.New(),
		Type:       t,
		Actor:      actor,
		Reason:     reason,
		Confidence: confidence,
		Details:    details,
		CreatedAt:  x.now().UTC(),
	}
}

// defaultMergeProfiles unions list values, deduplicates, and lets primary
// values win scalar conflicts.
func defaultMergeProfiles(primary, duplicate model.Profile) model.Profile {
	out := primary.Clone()
	for section, fields := range duplicate {
		for name, dupFV := range fields {
			existing, ok := out.Get(section, name)
			if !ok || len(existing.Values) == 0 {
				out.Set(section, name, model.FieldValue{
					Values:    append([]string(nil), dupFV.Values...),
					UpdatedAt: dupFV.UpdatedAt,
				})
				continue
			}
			if len(existing.Values) > 1 || len(dupFV.Values) > 1 {
				merged := unionValues(existing.Values, dupFV.Values)
				updated := existing.UpdatedAt
				if dupFV.UpdatedAt.After(updated) {
					updated = dupFV.UpdatedAt
				}
				out.Set(section, name, model.FieldValue{Values: merged, UpdatedAt: updated})
			}
			// Scalar conflict: primary wins, duplicate value discarded.
		}
	}
	return out
}

func unionValues(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, v := range append(append([]string(nil), a...), b...) {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
