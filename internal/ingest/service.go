// Package ingest admits raw values into the graph. Every data item is
// normalized and content-hashed on the way in, so the matching engine only
// ever sees canonical forms.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"

	"entity-graph/backend/internal/linking"
	"entity-graph/backend/internal/logger"
	"entity-graph/backend/internal/model"
	"entity-graph/backend/internal/normalize"
	"entity-graph/backend/internal/store"
	"entity-graph/backend/internal/suggest"
	"entity-graph/backend/internal/verify"
)

// Service creates entities, orphan groups and data items.
type Service struct {
	store      store.Store
	normalizer *normalize.Normalizer
	cache      *suggest.Cache
	verifier   verify.Verifier
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithVerifier attaches an external plausibility check to admission.
// Verification is advisory: an implausible or unverifiable value is still
// admitted, with a warning.
func WithVerifier(v verify.Verifier) Option {
	return func(s *Service) { s.verifier = v }
}

// NewService creates an ingest service. Admitting an item changes the
// owner's data set, so the suggestion cache is invalidated on every
// successful entity-owned admission.
func NewService(st store.Store, n *normalize.Normalizer, cache *suggest.Cache, opts ...Option) *Service {
	s := &Service{store: st, normalizer: n, cache: cache, verifier: verify.NopVerifier{}, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ItemInput is one raw value to admit.
type ItemInput struct {
	Type       model.SemanticType
	RawValue   string
	ContentRef string
	Source     string
}

// CreateEntity creates an empty entity of the given type.
func (s *Service) CreateEntity(ctx context.Context, entityType model.EntityType) (*model.Entity, error) {
	now := s.now().UTC()
	e := &model.Entity{
		ID:        uuid.New(),
		Type:      entityType,
		Profile:   model.Profile{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateEntity(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// AddItem normalizes and hashes one raw value, then attaches it to owner.
// The owner must exist; unowned items are allowed with NoOwner.
func (s *Service) AddItem(ctx context.Context, owner model.Owner, in ItemInput) (*model.DataItem, error) {
	if in.RawValue == "" && in.ContentRef == "" {
		return nil, linking.ValidationError{Field: "raw_value", Message: "a raw value or content reference is required"}
	}

	switch owner.Kind {
	case model.OwnerKindEntity:
		entity, err := s.store.GetEntity(ctx, owner.ID)
		if err != nil {
			return nil, err
		}
		if entity.IsTombstoned() {
			return nil, linking.ValidationError{Field: "owner", Message: "cannot attach items to a merged entity"}
		}
	case model.OwnerKindOrphan:
		if _, err := s.store.GetOrphan(ctx, owner.ID); err != nil {
			return nil, err
		}
	}

	item := &model.DataItem{
		ID:         uuid.New(),
		Type:       in.Type,
		RawValue:   in.RawValue,
		ContentRef: in.ContentRef,
		Owner:      owner,
		Source:     in.Source,
		CreatedAt:  s.now().UTC(),
	}

	if in.Type.IsBinary() {
		item.ContentHash = normalize.HashContent([]byte(in.RawValue))
	} else {
		result := s.normalizer.Normalize(in.RawValue, in.Type)
		item.NormalizedValue = result.Value
		item.Degraded = result.Degraded
		item.ContentHash = normalize.HashContent([]byte(result.Value))
		if result.Degraded {
			logger.Warn().
				Str("item_id", item.ID.String()).
				Str("type", string(in.Type)).
				Str("warning", result.Warning).
				Msg("value admitted in degraded form")
		}

		if sig, err := s.verifier.Verify(ctx, item.NormalizedValue, in.Type); err == nil && sig != nil && !sig.Plausible {
			logger.Warn().
				Str("item_id", item.ID.String()).
				Str("type", string(in.Type)).
				Msg("value admitted despite failed external verification")
		}
	}

	if err := s.store.CreateDataItem(ctx, item); err != nil {
		return nil, err
	}
	if owner.Kind == model.OwnerKindEntity {
		s.cache.Invalidate(owner.ID)
	}
	return item, nil
}

// CreateOrphan creates an orphan group holding the given raw values.
func (s *Service) CreateOrphan(ctx context.Context, items []ItemInput) (*model.OrphanData, []model.DataItem, error) {
	orphan := &model.OrphanData{
		ID:        uuid.New(),
		CreatedAt: s.now().UTC(),
	}

	var created []model.DataItem
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.CreateOrphan(ctx, orphan); err != nil {
			return err
		}
		owner := model.OrphanOwner(orphan.ID)
		inner := &Service{store: tx, normalizer: s.normalizer, cache: s.cache, verifier: s.verifier, now: s.now}
		for _, in := range items {
			item, err := inner.AddItem(ctx, owner, in)
			if err != nil {
				return err
			}
			created = append(created, *item)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return orphan, created, nil
}
