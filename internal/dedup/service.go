// Package dedup orchestrates duplicate-candidate discovery across whole
// entities and computes merge previews under a selectable strategy.
package dedup

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	"entity-graph/backend/internal/linking"
	"entity-graph/backend/internal/logger"
	"entity-graph/backend/internal/match"
	"entity-graph/backend/internal/model"
	"entity-graph/backend/internal/notify"
	"entity-graph/backend/internal/store"
	"entity-graph/backend/internal/suggest"
)

// Service finds duplicate candidates and previews/executes merges. It holds
// only configuration and collaborator handles; no process-wide state.
type Service struct {
	store    store.Store
	engine   *match.Engine
	cache    *suggest.Cache
	executor *linking.Executor
	notifier notify.Notifier
}

// NewService creates a deduplication service.
func NewService(st store.Store, engine *match.Engine, cache *suggest.Cache, executor *linking.Executor, notifier notify.Notifier) *Service {
	return &Service{
		store:    st,
		engine:   engine,
		cache:    cache,
		executor: executor,
		notifier: notifier,
	}
}

// FindDuplicates runs combined matching over every data item the entity
// owns, excluding same-entity targets, and returns one ranked candidate per
// target entity. The cache holds the unfiltered set; the caller's dismissals
// are applied on every read, cache hit or not, so one user's dismissals
// never leak into (or out of) another user's view. Store failures during
// matching degrade to an empty list with a logged warning; only a missing
// entity is an error.
func (s *Service) FindDuplicates(ctx context.Context, userID string, entityID uuid.UUID) ([]model.DuplicateCandidate, error) {
	entity, err := s.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if entity.IsTombstoned() {
		return nil, linking.ValidationError{Field: "entity_id", Message: "entity was merged away"}
	}

	dismissed, err := s.cache.Dismissed(ctx, userID, entityID)
	if err != nil {
		logger.Warn().Err(err).Str("entity_id", entityID.String()).Msg("dismissal lookup failed; suggestions degraded to empty")
		return []model.DuplicateCandidate{}, nil
	}

	if cached, ok := s.cache.Get(entityID); ok {
		return filterDismissed(cached, dismissed), nil
	}

	items, err := s.store.GetDataItems(ctx, model.EntityOwner(entityID))
	if err != nil {
		logger.Warn().Err(err).Str("entity_id", entityID.String()).Msg("item retrieval failed; suggestions degraded to empty")
		return []model.DuplicateCandidate{}, nil
	}

	grouped := make(map[uuid.UUID]*model.DuplicateCandidate)
	for _, item := range items {
		candidates, err := s.engine.MatchCombined(ctx, match.Input{
			ItemID:     item.ID,
			Type:       item.Type,
			Normalized: item.NormalizedValue,
			Hash:       item.ContentHash,
			Degraded:   item.Degraded,
		})
		if err != nil {
			logger.Warn().Err(err).Str("item_id", item.ID.String()).Msg("matching failed; suggestions degraded to empty")
			return []model.DuplicateCandidate{}, nil
		}

		for _, c := range candidates {
			if !c.TargetOwner.IsEntity() || c.TargetOwner.ID == entityID {
				continue
			}
			agg, ok := grouped[c.TargetOwner.ID]
			if !ok {
				agg = &model.DuplicateCandidate{
					TargetEntityID: c.TargetOwner.ID,
					BestMatch:      c,
					Confidence:     c.Confidence,
				}
				grouped[c.TargetOwner.ID] = agg
			}
			agg.Supporting = append(agg.Supporting, c)
			if c.Confidence > agg.Confidence {
				agg.Confidence = c.Confidence
				agg.BestMatch = c
			}
		}
	}

	out := make([]model.DuplicateCandidate, 0, len(grouped))
	for _, agg := range grouped {
		out = append(out, *agg)
	}
	rankCandidates(out)

	s.cache.Put(entityID, out)

	visible := filterDismissed(out, dismissed)
	if len(visible) > 0 {
		s.notifier.Notify(ctx, notify.EventSuggestionGenerated, map[string]any{
			"entity_id":  entityID.String(),
			"candidates": len(visible),
		})
	}
	return visible, nil
}

// filterDismissed drops candidates the user has dismissed, either by target
// entity or per supporting item, recomputing the best match when only some
// supporting items were dismissed. The input is never mutated: cached sets
// are shared across callers.
func filterDismissed(candidates []model.DuplicateCandidate, dismissed map[uuid.UUID]bool) []model.DuplicateCandidate {
	out := make([]model.DuplicateCandidate, 0, len(candidates))
	for _, c := range candidates {
		if dismissed[c.TargetEntityID] {
			continue
		}
		kept := make([]model.MatchCandidate, 0, len(c.Supporting))
		for _, m := range c.Supporting {
			if dismissed[m.TargetItemID] {
				continue
			}
			kept = append(kept, m)
		}
		if len(kept) == 0 {
			continue
		}
		best := kept[0]
		for _, m := range kept[1:] {
			if m.Confidence > best.Confidence {
				best = m
			}
		}
		out = append(out, model.DuplicateCandidate{
			TargetEntityID: c.TargetEntityID,
			Confidence:     best.Confidence,
			BestMatch:      best,
			Supporting:     kept,
		})
	}
	rankCandidates(out)
	return out
}

// rankCandidates orders candidates by confidence descending; ties break by
// most recent target creation, then target id, for reproducible output.
func rankCandidates(out []model.DuplicateCandidate) {
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if !a.BestMatch.TargetCreated.Equal(b.BestMatch.TargetCreated) {
			return a.BestMatch.TargetCreated.After(b.BestMatch.TargetCreated)
		}
		return a.TargetEntityID.String() < b.TargetEntityID.String()
	})
}

// PreviewMerge computes the merged profile, conflicts, and discarded values
// for merging the duplicates into the primary under the given strategy,
// without mutating the store. Manual strategy requires a resolution for
// every conflicting field before execution is allowed.
func (s *Service) PreviewMerge(ctx context.Context, primaryID uuid.UUID, duplicateIDs []uuid.UUID, strategy model.MergeStrategy, resolutions map[string][]string) (*MergePreview, error) {
	if !strategy.Valid() {
		return nil, linking.ValidationError{Field: "strategy", Message: "unknown merge strategy"}
	}
	if len(duplicateIDs) == 0 {
		return nil, linking.ValidationError{Field: "duplicate_ids", Message: "at least one duplicate is required"}
	}

	primary, err := s.store.GetEntity(ctx, primaryID)
	if err != nil {
		return nil, err
	}

	var duplicateProfiles []model.Profile
	for _, id := range duplicateIDs {
		if id == primaryID {
			return nil, linking.ValidationError{Field: "duplicate_ids", Message: "cannot merge an entity into itself"}
		}
		dup, err := s.store.GetEntity(ctx, id)
		if err != nil {
			return nil, err
		}
		if dup.IsTombstoned() {
			return nil, linking.ValidationError{Field: "duplicate_ids", Message: "duplicate entity was already merged away"}
		}
		duplicateProfiles = append(duplicateProfiles, dup.Profile)
	}

	return buildPreview(primary.Profile, duplicateProfiles, strategy, resolutions), nil
}

// MergeRequest executes a previewed merge of duplicates into the primary.
type MergeRequest struct {
	PrimaryID    uuid.UUID
	DuplicateIDs []uuid.UUID
	Strategy     model.MergeStrategy
	Resolutions  map[string][]string
	Actor        string
	Reason       string
	Confidence   *float64
}

// MergeEntities validates the preview (no unresolved manual conflicts) and
// delegates execution to the linking executor, one audit record per merged
// duplicate.
func (s *Service) MergeEntities(ctx context.Context, req MergeRequest) (*linking.MergeResult, error) {
	preview, err := s.PreviewMerge(ctx, req.PrimaryID, req.DuplicateIDs, req.Strategy, req.Resolutions)
	if err != nil {
		return nil, err
	}
	if preview.Unresolved > 0 {
		return nil, linking.ValidationError{
			Field:   "resolutions",
			Message: "manual strategy requires a resolution for every conflicting field",
		}
	}

	total := &linking.MergeResult{}
	for _, dupID := range req.DuplicateIDs {
		result, err := s.executor.MergeEntities(ctx, linking.MergeRequest{
			PrimaryID:     req.PrimaryID,
			DuplicateID:   dupID,
			Actor:         req.Actor,
			Reason:        req.Reason,
			Strategy:      req.Strategy,
			MergedProfile: preview.Profile,
			Discarded:     preview.Discarded,
			Confidence:    req.Confidence,
		})
		if err != nil {
			return nil, err
		}
		total.ItemsMoved += result.ItemsMoved
		total.RelationshipsMoved += result.RelationshipsMoved
		total.Action = result.Action
	}
	return total, nil
}

// IsNotFound reports whether err means a referenced record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
