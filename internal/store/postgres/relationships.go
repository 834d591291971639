package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"entity-graph/backend/internal/model"
)

func (s *Store) CreateRelationship(ctx context.Context, rel *model.Relationship) error {
	query := `
		INSERT INTO relationships (id, type, from_id, to_id, confidence, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.Exec(ctx, query,
		toPgUUID(rel.ID), rel.Type, toPgUUID(rel.FromID), toPgUUID(rel.ToID),
		toPgFloat(rel.Confidence), toPgText(rel.Reason), rel.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create relationship: %w", err)
	}
	return nil
}

func (s *Store) GetRelationships(ctx context.Context, entityID uuid.UUID) ([]model.Relationship, error) {
	query := `
		SELECT id, type, from_id, to_id, confidence, reason, created_at
		FROM relationships
		WHERE from_id = $1 OR to_id = $1
		ORDER BY created_at DESC, id ASC`

	rows, err := s.db.Query(ctx, query, toPgUUID(entityID))
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	defer rows.Close()

	var rels []model.Relationship
	for rows.Next() {
		var (
			rel        model.Relationship
			id         pgtype.UUID
			fromID     pgtype.UUID
			toID       pgtype.UUID
			confidence pgtype.Float8
			reason     pgtype.Text
		)
		if err := rows.Scan(&id, &rel.Type, &fromID, &toID, &confidence, &reason, &rel.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}
		rel.ID = fromPgUUID(id)
		rel.FromID = fromPgUUID(fromID)
		rel.ToID = fromPgUUID(toID)
		rel.Confidence = fromPgFloat(confidence)
		rel.Reason = fromPgText(reason)
		rels = append(rels, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read relationships: %w", err)
	}
	return rels, nil
}

// MoveRelationships repoints every edge touching from so it touches to
// instead, dropping edges that would become self-referential. Returns the
// number of edges retargeted.
func (s *Store) MoveRelationships(ctx context.Context, from, to uuid.UUID) (int, error) {
	dropQuery := `
		DELETE FROM relationships
		WHERE (from_id = $1 AND to_id = $2) OR (from_id = $2 AND to_id = $1)`
	if _, err := s.db.Exec(ctx, dropQuery, toPgUUID(from), toPgUUID(to)); err != nil {
		return 0, fmt.Errorf("failed to drop self-referential relationships: %w", err)
	}

	moved := 0
	fromQuery := `UPDATE relationships SET from_id = $2 WHERE from_id = $1`
	tag, err := s.db.Exec(ctx, fromQuery, toPgUUID(from), toPgUUID(to))
	if err != nil {
		return 0, fmt.Errorf("failed to move outbound relationships: %w", err)
	}
	moved += int(tag.RowsAffected())

	toQuery := `UPDATE relationships SET to_id = $2 WHERE to_id = $1`
	tag, err = s.db.Exec(ctx, toQuery, toPgUUID(from), toPgUUID(to))
	if err != nil {
		return 0, fmt.Errorf("failed to move inbound relationships: %w", err)
	}
	moved += int(tag.RowsAffected())

	return moved, nil
}
