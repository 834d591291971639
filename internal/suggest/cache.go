// Package suggest memoizes computed duplicate-candidate sets per entity for
// a short TTL and tracks per-user dismissals that permanently suppress
// rejected suggestions.
package suggest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"entity-graph/backend/internal/model"
)

// DefaultTTL bounds how long a computed candidate set may be served before
// recomputation.
const DefaultTTL = 5 * time.Minute

// DismissalStore is the slice of the store that persists dismissals.
type DismissalStore interface {
	AddDismissal(ctx context.Context, d model.Dismissal) error
	ListDismissals(ctx context.Context, userID string, entityID uuid.UUID) ([]model.Dismissal, error)
	RemoveDismissal(ctx context.Context, userID string, entityID, targetID uuid.UUID) error
}

type entry struct {
	candidates []model.DuplicateCandidate
	expires    time.Time
}

// Cache is the suggestion cache. Candidate sets live in memory with a TTL
// and are invalidated eagerly when an entity's item set changes; dismissals
// are durable and survive recomputation.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[uuid.UUID]entry
	store   DismissalStore
	now     func() time.Time
}

// New creates a suggestion cache. ttl <= 0 uses DefaultTTL.
func New(store DismissalStore, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[uuid.UUID]entry),
		store:   store,
		now:     time.Now,
	}
}

// Get returns the cached candidate set for an entity if it has not expired.
func (c *Cache) Get(entityID uuid.UUID) ([]model.DuplicateCandidate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[entityID]
	if !ok || c.now().After(e.expires) {
		delete(c.entries, entityID)
		return nil, false
	}
	return e.candidates, true
}

// Put stores a computed candidate set.
func (c *Cache) Put(entityID uuid.UUID, candidates []model.DuplicateCandidate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entityID] = entry{candidates: candidates, expires: c.now().Add(c.ttl)}
}

// Invalidate drops the cached set for an entity. Called whenever the
// entity's data item set changes.
func (c *Cache) Invalidate(entityID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, entityID)
}

// Sweep removes every expired entry and returns how many were dropped.
// Expiry is otherwise lazy (checked on Get); the sweep keeps the map from
// accumulating entries for entities nobody asks about again.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	dropped := 0
	for id, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, id)
			dropped++
		}
	}
	return dropped
}

// Dismissed returns the set of target ids the user has dismissed for this
// entity.
func (c *Cache) Dismissed(ctx context.Context, userID string, entityID uuid.UUID) (map[uuid.UUID]bool, error) {
	dismissals, err := c.store.ListDismissals(ctx, userID, entityID)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]bool, len(dismissals))
	for _, d := range dismissals {
		out[d.TargetID] = true
	}
	return out, nil
}

// Dismiss records a durable dismissal and drops the cached set so the pair
// disappears immediately.
func (c *Cache) Dismiss(ctx context.Context, userID string, entityID, targetID uuid.UUID) error {
	err := c.store.AddDismissal(ctx, model.Dismissal{
		UserID:    userID,
		EntityID:  entityID,
		TargetID:  targetID,
		CreatedAt: c.now().UTC(),
	})
	if err != nil {
		return err
	}
	c.Invalidate(entityID)
	return nil
}

// ClearDismissal removes a dismissal so the pair may be suggested again.
func (c *Cache) ClearDismissal(ctx context.Context, userID string, entityID, targetID uuid.UUID) error {
	if err := c.store.RemoveDismissal(ctx, userID, entityID, targetID); err != nil {
		return err
	}
	c.Invalidate(entityID)
	return nil
}
