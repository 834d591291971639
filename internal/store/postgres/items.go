package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"entity-graph/backend/internal/model"
	"entity-graph/backend/internal/store"
)

const dataItemColumns = `id, type, raw_value, content_ref, content_hash, normalized_value, degraded, owner_kind, owner_id, source, created_at`

func scanDataItem(row pgx.Row) (*model.DataItem, error) {
	var (
		item    model.DataItem
		id      pgtype.UUID
		ownerID pgtype.UUID
	)

	err := row.Scan(&id, &item.Type, &item.RawValue, &item.ContentRef, &item.ContentHash,
		&item.NormalizedValue, &item.Degraded, &item.Owner.Kind, &ownerID, &item.Source, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan data item: %w", err)
	}

	item.ID = fromPgUUID(id)
	item.Owner.ID = fromPgUUID(ownerID)
	return &item, nil
}

func (s *Store) queryDataItems(ctx context.Context, query string, args ...any) ([]model.DataItem, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query data items: %w", err)
	}
	defer rows.Close()

	var items []model.DataItem
	for rows.Next() {
		item, err := scanDataItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read data items: %w", err)
	}
	return items, nil
}

func (s *Store) CreateDataItem(ctx context.Context, item *model.DataItem) error {
	query := `
		INSERT INTO data_items (id, type, raw_value, content_ref, content_hash, normalized_value, degraded, owner_kind, owner_id, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	var ownerID pgtype.UUID
	if item.Owner.Kind != model.OwnerKindNone {
		ownerID = toPgUUID(item.Owner.ID)
	}

	_, err := s.db.Exec(ctx, query,
		toPgUUID(item.ID), item.Type, item.RawValue, item.ContentRef, item.ContentHash,
		item.NormalizedValue, item.Degraded, item.Owner.Kind, ownerID, item.Source, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create data item: %w", err)
	}
	return nil
}

func (s *Store) GetDataItem(ctx context.Context, id uuid.UUID) (*model.DataItem, error) {
	query := `SELECT ` + dataItemColumns + ` FROM data_items WHERE id = $1`
	return scanDataItem(s.db.QueryRow(ctx, query, toPgUUID(id)))
}

func (s *Store) GetDataItems(ctx context.Context, owner model.Owner) ([]model.DataItem, error) {
	query := `
		SELECT ` + dataItemColumns + ` FROM data_items
		WHERE owner_kind = $1 AND owner_id = $2
		ORDER BY created_at DESC, id ASC`
	return s.queryDataItems(ctx, query, owner.Kind, toPgUUID(owner.ID))
}

func (s *Store) MoveDataItem(ctx context.Context, id uuid.UUID, newOwner model.Owner) error {
	query := `UPDATE data_items SET owner_kind = $2, owner_id = $3 WHERE id = $1`

	var ownerID pgtype.UUID
	if newOwner.Kind != model.OwnerKindNone {
		ownerID = toPgUUID(newOwner.ID)
	}

	tag, err := s.db.Exec(ctx, query, toPgUUID(id), newOwner.Kind, ownerID)
	if err != nil {
		return fmt.Errorf("failed to move data item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) QueryByTypeAndNormalizedValue(ctx context.Context, t model.SemanticType, value string) ([]model.DataItem, error) {
	query := `
		SELECT ` + dataItemColumns + ` FROM data_items
		WHERE type = $1 AND normalized_value = $2
		ORDER BY created_at DESC, id ASC`
	return s.queryDataItems(ctx, query, t, value)
}

func (s *Store) QueryByType(ctx context.Context, t model.SemanticType) ([]model.DataItem, error) {
	query := `
		SELECT ` + dataItemColumns + ` FROM data_items
		WHERE type = $1
		ORDER BY created_at DESC, id ASC`
	return s.queryDataItems(ctx, query, t)
}

func (s *Store) QueryByHash(ctx context.Context, hash string) ([]model.DataItem, error) {
	query := `
		SELECT ` + dataItemColumns + ` FROM data_items
		WHERE content_hash = $1
		ORDER BY created_at DESC, id ASC`
	return s.queryDataItems(ctx, query, hash)
}

// Item links are stored with the pair ordered by id so the symmetric link is
// a single row.

func orderPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}

func (s *Store) LinkItems(ctx context.Context, a, b uuid.UUID) error {
	lo, hi := orderPair(a, b)
	query := `
		INSERT INTO item_links (item_a, item_b, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT DO NOTHING`

	_, err := s.db.Exec(ctx, query, toPgUUID(lo), toPgUUID(hi))
	if err != nil {
		return fmt.Errorf("failed to link items: %w", err)
	}
	return nil
}

func (s *Store) UnlinkItems(ctx context.Context, a, b uuid.UUID) error {
	lo, hi := orderPair(a, b)
	query := `DELETE FROM item_links WHERE item_a = $1 AND item_b = $2`

	tag, err := s.db.Exec(ctx, query, toPgUUID(lo), toPgUUID(hi))
	if err != nil {
		return fmt.Errorf("failed to unlink items: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ItemsLinked(ctx context.Context, a, b uuid.UUID) (bool, error) {
	lo, hi := orderPair(a, b)
	query := `SELECT EXISTS(SELECT 1 FROM item_links WHERE item_a = $1 AND item_b = $2)`

	var linked bool
	if err := s.db.QueryRow(ctx, query, toPgUUID(lo), toPgUUID(hi)).Scan(&linked); err != nil {
		return false, fmt.Errorf("failed to check item link: %w", err)
	}
	return linked, nil
}
