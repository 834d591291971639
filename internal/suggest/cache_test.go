package suggest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entity-graph/backend/internal/model"
	"entity-graph/backend/internal/store/memstore"
)

func candidates(n int) []model.DuplicateCandidate {
	out := make([]model.DuplicateCandidate, n)
	for i := range out {
		out[i] = model.DuplicateCandidate{TargetEntityID: uuid.New(), Confidence: 0.9}
	}
	return out
}

func TestCacheGetPut(t *testing.T) {
	c := New(memstore.New(), time.Minute)
	entityID := uuid.New()

	_, ok := c.Get(entityID)
	assert.False(t, ok)

	set := candidates(2)
	c.Put(entityID, set)

	got, ok := c.Get(entityID)
	require.True(t, ok)
	assert.Equal(t, set, got)
}

func TestCacheExpiry(t *testing.T) {
	c := New(memstore.New(), time.Minute)
	entityID := uuid.New()

	current := time.Now()
	c.now = func() time.Time { return current }

	c.Put(entityID, candidates(1))

	current = current.Add(59 * time.Second)
	_, ok := c.Get(entityID)
	assert.True(t, ok, "entry is fresh before the TTL")

	current = current.Add(2 * time.Second)
	_, ok = c.Get(entityID)
	assert.False(t, ok, "entry expires after the TTL")
}

func TestCacheInvalidate(t *testing.T) {
	c := New(memstore.New(), time.Minute)
	entityID := uuid.New()

	c.Put(entityID, candidates(1))
	c.Invalidate(entityID)

	_, ok := c.Get(entityID)
	assert.False(t, ok)
}

func TestCacheSweep(t *testing.T) {
	c := New(memstore.New(), time.Minute)

	current := time.Now()
	c.now = func() time.Time { return current }

	fresh := uuid.New()
	stale := uuid.New()
	c.Put(stale, candidates(1))
	current = current.Add(30 * time.Second)
	c.Put(fresh, candidates(1))

	current = current.Add(45 * time.Second)
	assert.Equal(t, 1, c.Sweep(), "only the expired entry is dropped")

	_, ok := c.Get(fresh)
	assert.True(t, ok)
	_, ok = c.Get(stale)
	assert.False(t, ok)

	assert.Zero(t, c.Sweep(), "nothing left to drop")
}

func TestCacheDefaultTTL(t *testing.T) {
	c := New(memstore.New(), 0)
	assert.Equal(t, DefaultTTL, c.ttl)
}

func TestDismissIsDurableAndInvalidates(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	c := New(st, time.Minute)

	entityID := uuid.New()
	targetID := uuid.New()
	c.Put(entityID, candidates(1))

	require.NoError(t, c.Dismiss(ctx, "reviewer", entityID, targetID))

	_, ok := c.Get(entityID)
	assert.False(t, ok, "dismissing drops the cached set")

	dismissed, err := c.Dismissed(ctx, "reviewer", entityID)
	require.NoError(t, err)
	assert.True(t, dismissed[targetID])

	// Dismissals outlive any cache churn.
	c.Put(entityID, candidates(3))
	c.Invalidate(entityID)
	dismissed, err = c.Dismissed(ctx, "reviewer", entityID)
	require.NoError(t, err)
	assert.True(t, dismissed[targetID])

	// Other users are unaffected.
	other, err := c.Dismissed(ctx, "someone-else", entityID)
	require.NoError(t, err)
	assert.False(t, other[targetID])
}

func TestClearDismissal(t *testing.T) {
	ctx := context.Background()
	c := New(memstore.New(), time.Minute)

	entityID := uuid.New()
	targetID := uuid.New()

	require.NoError(t, c.Dismiss(ctx, "reviewer", entityID, targetID))
	require.NoError(t, c.ClearDismissal(ctx, "reviewer", entityID, targetID))

	dismissed, err := c.Dismissed(ctx, "reviewer", entityID)
	require.NoError(t, err)
	assert.False(t, dismissed[targetID])
}
