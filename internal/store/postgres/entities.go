package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"entity-graph/backend/internal/model"
	"entity-graph/backend/internal/store"
)

const entityColumns = `id, type, profile, merged_into, merged_at, merge_reason, created_at, updated_at`

func scanEntity(row pgx.Row) (*model.Entity, error) {
	var (
		e           model.Entity
		id          pgtype.UUID
		profileJSON []byte
		mergedInto  pgtype.UUID
		mergedAt    pgtype.Timestamptz
		mergeReason pgtype.Text
	)

	err := row.Scan(&id, &e.Type, &profileJSON, &mergedInto, &mergedAt, &mergeReason, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan entity: %w", err)
	}

	e.ID = fromPgUUID(id)
	e.MergedInto = fromPgUUIDPtr(mergedInto)
	e.MergeReason = fromPgText(mergeReason)
	if mergedAt.Valid {
		t := mergedAt.Time
		e.MergedAt = &t
	}
	if len(profileJSON) > 0 {
		if err := json.Unmarshal(profileJSON, &e.Profile); err != nil {
			return nil, fmt.Errorf("failed to decode entity profile: %w", err)
		}
	}
	return &e, nil
}

func (s *Store) CreateEntity(ctx context.Context, e *model.Entity) error {
	profileJSON, err := json.Marshal(e.Profile)
	if err != nil {
		return fmt.Errorf("failed to encode entity profile: %w", err)
	}

	query := `
		INSERT INTO entities (id, type, profile, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = s.db.Exec(ctx, query, toPgUUID(e.ID), e.Type, profileJSON, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create entity: %w", err)
	}
	return nil
}

func (s *Store) GetEntity(ctx context.Context, id uuid.UUID) (*model.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE id = $1`
	return scanEntity(s.db.QueryRow(ctx, query, toPgUUID(id)))
}

func (s *Store) UpdateEntityProfile(ctx context.Context, id uuid.UUID, profile model.Profile) error {
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode entity profile: %w", err)
	}

	query := `UPDATE entities SET profile = $2, updated_at = now() WHERE id = $1`
	tag, err := s.db.Exec(ctx, query, toPgUUID(id), profileJSON)
	if err != nil {
		return fmt.Errorf("failed to update entity profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) TombstoneEntity(ctx context.Context, id, mergedInto uuid.UUID, reason string, at time.Time) error {
	query := `
		UPDATE entities
		SET merged_into = $2, merged_at = $4, merge_reason = $3, updated_at = $4
		WHERE id = $1 AND merged_into IS NULL`

	tag, err := s.db.Exec(ctx, query, toPgUUID(id), toPgUUID(mergedInto), reason, at)
	if err != nil {
		return fmt.Errorf("failed to tombstone entity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateOrphan(ctx context.Context, o *model.OrphanData) error {
	query := `
		INSERT INTO orphans (id, resolved, created_at)
		VALUES ($1, $2, $3)`

	_, err := s.db.Exec(ctx, query, toPgUUID(o.ID), o.Resolved, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create orphan: %w", err)
	}
	return nil
}

func (s *Store) GetOrphan(ctx context.Context, id uuid.UUID) (*model.OrphanData, error) {
	query := `
		SELECT id, resolved, resolved_entity_id, resolution_reason, resolved_at, created_at
		FROM orphans WHERE id = $1`

	var (
		o          model.OrphanData
		oid        pgtype.UUID
		resolvedTo pgtype.UUID
		reason     pgtype.Text
		resolvedAt pgtype.Timestamptz
	)
	err := s.db.QueryRow(ctx, query, toPgUUID(id)).
		Scan(&oid, &o.Resolved, &resolvedTo, &reason, &resolvedAt, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get orphan: %w", err)
	}

	o.ID = fromPgUUID(oid)
	o.ResolvedEntityID = fromPgUUIDPtr(resolvedTo)
	o.ResolutionReason = fromPgText(reason)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		o.ResolvedAt = &t
	}
	return &o, nil
}

func (s *Store) ResolveOrphan(ctx context.Context, id, entityID uuid.UUID, reason string, at time.Time) error {
	query := `
		UPDATE orphans
		SET resolved = true, resolved_entity_id = $2, resolution_reason = $3, resolved_at = $4
		WHERE id = $1 AND resolved = false`

	tag, err := s.db.Exec(ctx, query, toPgUUID(id), toPgUUID(entityID), reason, at)
	if err != nil {
		return fmt.Errorf("failed to resolve orphan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
