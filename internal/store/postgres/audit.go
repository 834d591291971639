package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"entity-graph/backend/internal/model"
	"entity-graph/backend/internal/store"
)

// detailRefs lists the record ids an action's details mention, denormalized
// into a text[] column so history can be filtered by entity without parsing
// JSONB.
func detailRefs(d model.ActionDetails) []string {
	var ids []uuid.UUID
	switch v := d.(type) {
	case model.LinkDataItemsDetails:
		ids = []uuid.UUID{v.ItemA, v.ItemB}
	case model.MergeEntitiesDetails:
		ids = []uuid.UUID{v.PrimaryID, v.MergedID}
	case model.CreateRelationshipDetails:
		ids = []uuid.UUID{v.FromID, v.ToID}
	case model.LinkOrphanDetails:
		ids = []uuid.UUID{v.OrphanID, v.EntityID}
	case model.DismissSuggestionDetails:
		ids = []uuid.UUID{v.EntityID, v.TargetID}
	}
	refs := make([]string, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, id.String())
	}
	return refs
}

func (s *Store) AppendAuditRecord(ctx context.Context, action *model.LinkingAction) error {
	detailsJSON, err := model.EncodeDetails(action.Details)
	if err != nil {
		return fmt.Errorf("failed to encode action details: %w", err)
	}

	query := `
		INSERT INTO linking_actions (id, action_type, actor, reason, confidence, details, referenced_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = s.db.Exec(ctx, query,
		toPgUUID(action.ID), action.Type, action.Actor, action.Reason,
		toPgFloat(action.Confidence), detailsJSON, detailRefs(action.Details), action.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

func (s *Store) ListAuditRecords(ctx context.Context, filter store.AuditFilter) ([]model.LinkingAction, error) {
	query := `
		SELECT id, action_type, actor, reason, confidence, details, created_at
		FROM linking_actions
		WHERE ($1::text IS NULL OR action_type = $1)
		AND ($2::text IS NULL OR $2 = ANY(referenced_ids))
		ORDER BY created_at DESC, id ASC`

	var actionType *string
	if filter.ActionType != nil {
		v := string(*filter.ActionType)
		actionType = &v
	}
	var entityRef *string
	if filter.EntityID != nil {
		v := filter.EntityID.String()
		entityRef = &v
	}

	args := []any{actionType, entityRef}
	if filter.Limit > 0 {
		query += ` LIMIT $3`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var actions []model.LinkingAction
	for rows.Next() {
		var (
			a           model.LinkingAction
			id          pgtype.UUID
			confidence  pgtype.Float8
			detailsJSON []byte
		)
		if err := rows.Scan(&id, &a.Type, &a.Actor, &a.Reason, &confidence, &detailsJSON, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		a.ID = fromPgUUID(id)
		a.Confidence = fromPgFloat(confidence)
		a.Details, err = model.DecodeDetails(a.Type, detailsJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to decode audit record %s: %w", a.ID, err)
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit records: %w", err)
	}
	return actions, nil
}

// Dismissals

func (s *Store) AddDismissal(ctx context.Context, d model.Dismissal) error {
	query := `
		INSERT INTO dismissals (user_id, entity_id, target_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, entity_id, target_id) DO NOTHING`

	_, err := s.db.Exec(ctx, query, d.UserID, toPgUUID(d.EntityID), toPgUUID(d.TargetID), d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add dismissal: %w", err)
	}
	return nil
}

func (s *Store) ListDismissals(ctx context.Context, userID string, entityID uuid.UUID) ([]model.Dismissal, error) {
	query := `
		SELECT user_id, entity_id, target_id, created_at
		FROM dismissals
		WHERE user_id = $1 AND entity_id = $2
		ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, userID, toPgUUID(entityID))
	if err != nil {
		return nil, fmt.Errorf("failed to query dismissals: %w", err)
	}
	defer rows.Close()

	var out []model.Dismissal
	for rows.Next() {
		var (
			d   model.Dismissal
			eid pgtype.UUID
			tid pgtype.UUID
		)
		if err := rows.Scan(&d.UserID, &eid, &tid, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dismissal: %w", err)
		}
		d.EntityID = fromPgUUID(eid)
		d.TargetID = fromPgUUID(tid)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dismissals: %w", err)
	}
	return out, nil
}

func (s *Store) RemoveDismissal(ctx context.Context, userID string, entityID, targetID uuid.UUID) error {
	query := `DELETE FROM dismissals WHERE user_id = $1 AND entity_id = $2 AND target_id = $3`

	tag, err := s.db.Exec(ctx, query, userID, toPgUUID(entityID), toPgUUID(targetID))
	if err != nil {
		return fmt.Errorf("failed to remove dismissal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
