package linking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entity-graph/backend/internal/model"
	"entity-graph/backend/internal/notify"
	"entity-graph/backend/internal/store"
	"entity-graph/backend/internal/store/memstore"
	"entity-graph/backend/internal/suggest"
)

func newTestExecutor(t *testing.T) (*Executor, *memstore.Store, *suggest.Cache) {
	t.Helper()
	st := memstore.New()
	cache := suggest.New(st, time.Minute)
	return NewExecutor(st, cache, notify.NopNotifier{}), st, cache
}

func mkEntity(t *testing.T, st *memstore.Store, profile model.Profile) *model.Entity {
	t.Helper()
	if profile == nil {
		profile = model.Profile{}
	}
	e := &model.Entity{
		ID: uuid.New(), Type: "person", Profile: profile,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, st.CreateEntity(context.Background(), e))
	return e
}

func mkItem(t *testing.T, st *memstore.Store, owner model.Owner, normalized string) *model.DataItem {
	t.Helper()
	item := &model.DataItem{
		ID: uuid.New(), Type: model.SemanticTypeEmail,
		RawValue: normalized, NormalizedValue: normalized,
		Owner: owner, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, st.CreateDataItem(context.Background(), item))
	return item
}

func auditRecords(t *testing.T, st *memstore.Store) []model.LinkingAction {
	t.Helper()
	records, err := st.ListAuditRecords(context.Background(), store.AuditFilter{})
	require.NoError(t, err)
	return records
}

func TestLinkDataItems(t *testing.T) {
	x, st, _ := newTestExecutor(t)
	ctx := context.Background()

	e := mkEntity(t, st, nil)
	a := mkItem(t, st, model.EntityOwner(e.ID), "a@example.com")
	b := mkItem(t, st, model.NoOwner(), "b@example.com")

	action, err := x.LinkDataItems(ctx, LinkItemsRequest{
		ItemA: a.ID, ItemB: b.ID, Actor: "reviewer", Reason: "same person evidence",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ActionLinkDataItems, action.Type)

	linked, err := st.ItemsLinked(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, linked)

	// Ownership is untouched.
	gotA, err := st.GetDataItem(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EntityOwner(e.ID), gotA.Owner)

	records := auditRecords(t, st)
	require.Len(t, records, 1)
	assert.Equal(t, model.LinkDataItemsDetails{ItemA: a.ID, ItemB: b.ID}, records[0].Details)
}

func TestLinkDataItemsValidation(t *testing.T) {
	x, st, _ := newTestExecutor(t)
	ctx := context.Background()

	a := mkItem(t, st, model.NoOwner(), "a@example.com")

	_, err := x.LinkDataItems(ctx, LinkItemsRequest{ItemA: a.ID, ItemB: a.ID, Actor: "r", Reason: "x"})
	assert.True(t, IsValidation(err), "self-link must be rejected")

	_, err = x.LinkDataItems(ctx, LinkItemsRequest{ItemA: a.ID, ItemB: uuid.New(), Actor: "r", Reason: "  "})
	assert.True(t, IsValidation(err), "blank reason must be rejected")

	_, err = x.LinkDataItems(ctx, LinkItemsRequest{ItemA: a.ID, ItemB: uuid.New(), Actor: "r", Reason: "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.Empty(t, auditRecords(t, st), "failed operations leave no audit record")
}

func TestMergeEntities(t *testing.T) {
	x, st, _ := newTestExecutor(t)
	ctx := context.Background()

	primaryProfile := model.Profile{}
	primaryProfile.Set("contact", "name", model.FieldValue{Values: []string{"Jane Doe"}})
	dupProfile := model.Profile{}
	dupProfile.Set("contact", "name", model.FieldValue{Values: []string{"J. Doe"}})
	dupProfile.Set("contact", "city", model.FieldValue{Values: []string{"Oakland"}})

	primary := mkEntity(t, st, primaryProfile)
	dup := mkEntity(t, st, dupProfile)
	third := mkEntity(t, st, nil)

	mkItem(t, st, model.EntityOwner(dup.ID), "dup1@example.com")
	mkItem(t, st, model.EntityOwner(dup.ID), "dup2@example.com")
	require.NoError(t, st.CreateRelationship(ctx, &model.Relationship{
		ID: uuid.New(), Type: "associate_of", FromID: dup.ID, ToID: third.ID, CreatedAt: time.Now().UTC(),
	}))

	result, err := x.MergeEntities(ctx, MergeRequest{
		PrimaryID: primary.ID, DuplicateID: dup.ID,
		Actor: "reviewer", Reason: "confirmed duplicate", Strategy: model.MergeKeepPrimary,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.ItemsMoved)
	assert.Equal(t, 1, result.RelationshipsMoved)

	// Duplicate is tombstoned, pointing at the primary.
	gotDup, err := st.GetEntity(ctx, dup.ID)
	require.NoError(t, err)
	require.True(t, gotDup.IsTombstoned())
	assert.Equal(t, primary.ID, *gotDup.MergedInto)

	// All items now belong to the primary.
	items, err := st.GetDataItems(ctx, model.EntityOwner(primary.ID))
	require.NoError(t, err)
	assert.Len(t, items, 2)
	orphaned, err := st.GetDataItems(ctx, model.EntityOwner(dup.ID))
	require.NoError(t, err)
	assert.Empty(t, orphaned)

	// Default merge: scalar conflict keeps primary, new field carried over.
	gotPrimary, err := st.GetEntity(ctx, primary.ID)
	require.NoError(t, err)
	name, _ := gotPrimary.Profile.Get("contact", "name")
	assert.Equal(t, []string{"Jane Doe"}, name.Values)
	city, ok := gotPrimary.Profile.Get("contact", "city")
	require.True(t, ok)
	assert.Equal(t, []string{"Oakland"}, city.Values)

	// Exactly one audit record referencing both entities.
	records := auditRecords(t, st)
	require.Len(t, records, 1)
	details, ok := records[0].Details.(model.MergeEntitiesDetails)
	require.True(t, ok)
	assert.Equal(t, primary.ID, details.PrimaryID)
	assert.Equal(t, dup.ID, details.MergedID)
	assert.Equal(t, "keep_primary", details.Strategy)
	assert.Equal(t, 2, details.ItemsMoved)
}

func TestMergeEntitiesValidation(t *testing.T) {
	x, st, _ := newTestExecutor(t)
	ctx := context.Background()

	a := mkEntity(t, st, nil)
	b := mkEntity(t, st, nil)

	_, err := x.MergeEntities(ctx, MergeRequest{PrimaryID: a.ID, DuplicateID: a.ID, Actor: "r", Reason: "x", Strategy: model.MergeKeepPrimary})
	assert.True(t, IsValidation(err), "self-merge must be rejected")

	_, err = x.MergeEntities(ctx, MergeRequest{PrimaryID: a.ID, DuplicateID: b.ID, Actor: "r", Reason: "x", Strategy: model.MergeStrategy(99)})
	assert.True(t, IsValidation(err), "unknown strategy must be rejected")

	// Tombstoned participants are rejected.
	require.NoError(t, st.TombstoneEntity(ctx, b.ID, a.ID, "gone", time.Now().UTC()))
	_, err = x.MergeEntities(ctx, MergeRequest{PrimaryID: a.ID, DuplicateID: b.ID, Actor: "r", Reason: "x", Strategy: model.MergeKeepPrimary})
	assert.True(t, IsValidation(err))
	_, err = x.MergeEntities(ctx, MergeRequest{PrimaryID: b.ID, DuplicateID: a.ID, Actor: "r", Reason: "x", Strategy: model.MergeKeepPrimary})
	assert.True(t, IsValidation(err))
}

func TestMergeEntitiesAtomicRollback(t *testing.T) {
	x, st, _ := newTestExecutor(t)
	ctx := context.Background()

	primary := mkEntity(t, st, nil)
	dup := mkEntity(t, st, nil)
	item := mkItem(t, st, model.EntityOwner(dup.ID), "dup@example.com")

	// Fail at the final audit append, after items moved and tombstone set.
	st.FailOn = func(op string) error {
		if op == "append_audit" {
			return errors.New("disk full")
		}
		return nil
	}

	_, err := x.MergeEntities(ctx, MergeRequest{
		PrimaryID: primary.ID, DuplicateID: dup.ID,
		Actor: "reviewer", Reason: "dup", Strategy: model.MergeKeepPrimary,
	})
	require.ErrorIs(t, err, store.ErrTxFailed)

	// Every mutation was rolled back.
	gotDup, err := st.GetEntity(ctx, dup.ID)
	require.NoError(t, err)
	assert.False(t, gotDup.IsTombstoned())

	gotItem, err := st.GetDataItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EntityOwner(dup.ID), gotItem.Owner)

	assert.Empty(t, auditRecords(t, st))
}

func TestMergeEntitiesAppliesPreviewedProfile(t *testing.T) {
	x, st, _ := newTestExecutor(t)
	ctx := context.Background()

	primary := mkEntity(t, st, nil)
	dup := mkEntity(t, st, nil)

	resolved := model.Profile{}
	resolved.Set("contact", "name", model.FieldValue{Values: []string{"Chosen Name"}})
	discarded := []model.DiscardedValue{{Section: "contact", Field: "name", Values: []string{"Other Name"}}}

	result, err := x.MergeEntities(ctx, MergeRequest{
		PrimaryID: primary.ID, DuplicateID: dup.ID,
		Actor: "reviewer", Reason: "adjudicated", Strategy: model.MergeManual,
		MergedProfile: resolved, Discarded: discarded,
	})
	require.NoError(t, err)

	got, err := st.GetEntity(ctx, primary.ID)
	require.NoError(t, err)
	name, _ := got.Profile.Get("contact", "name")
	assert.Equal(t, []string{"Chosen Name"}, name.Values)

	details := result.Action.Details.(model.MergeEntitiesDetails)
	assert.Equal(t, discarded, details.DiscardedValues, "discarded values are retained in the audit record")
}

func TestCreateRelationshipFromMatch(t *testing.T) {
	x, st, _ := newTestExecutor(t)
	ctx := context.Background()

	a := mkEntity(t, st, nil)
	b := mkEntity(t, st, nil)
	conf := 0.8

	action, err := x.CreateRelationshipFromMatch(ctx, RelationshipRequest{
		FromID: a.ID, ToID: b.ID, RelationshipType: "same_household",
		Actor: "reviewer", Reason: "shared address", Confidence: &conf,
	})
	require.NoError(t, err)

	details := action.Details.(model.CreateRelationshipDetails)
	assert.True(t, details.Symmetric)

	// Symmetric type: an inverse edge exists too.
	rels, err := st.GetRelationships(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, rels, 2)
	assert.NotEqual(t, rels[0].FromID, rels[1].FromID)
}

func TestCreateRelationshipDirectional(t *testing.T) {
	x, st, _ := newTestExecutor(t)
	ctx := context.Background()

	a := mkEntity(t, st, nil)
	b := mkEntity(t, st, nil)

	_, err := x.CreateRelationshipFromMatch(ctx, RelationshipRequest{
		FromID: a.ID, ToID: b.ID, RelationshipType: "employer_of",
		Actor: "reviewer", Reason: "payroll record",
	})
	require.NoError(t, err)

	rels, err := st.GetRelationships(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, rels, 1, "directional types get a single edge")
	assert.Equal(t, a.ID, rels[0].FromID)
	assert.Equal(t, b.ID, rels[0].ToID)
}

func TestLinkOrphanToEntity(t *testing.T) {
	x, st, _ := newTestExecutor(t)
	ctx := context.Background()

	e := mkEntity(t, st, nil)
	orphan := &model.OrphanData{ID: uuid.New(), CreatedAt: time.Now().UTC()}
	require.NoError(t, st.CreateOrphan(ctx, orphan))
	mkItem(t, st, model.OrphanOwner(orphan.ID), "found@example.com")

	action, err := x.LinkOrphanToEntity(ctx, OrphanRequest{
		OrphanID: orphan.ID, EntityID: e.ID, Actor: "reviewer", Reason: "matched by email",
	})
	require.NoError(t, err)

	details := action.Details.(model.LinkOrphanDetails)
	assert.Equal(t, 1, details.ItemsMoved)

	items, err := st.GetDataItems(ctx, model.EntityOwner(e.ID))
	require.NoError(t, err)
	assert.Len(t, items, 1)

	gotOrphan, err := st.GetOrphan(ctx, orphan.ID)
	require.NoError(t, err)
	assert.True(t, gotOrphan.Resolved, "orphan record survives resolution for lineage")

	// Resolving twice is rejected.
	_, err = x.LinkOrphanToEntity(ctx, OrphanRequest{
		OrphanID: orphan.ID, EntityID: e.ID, Actor: "reviewer", Reason: "again",
	})
	assert.True(t, IsValidation(err))
}

func TestDismissSuggestion(t *testing.T) {
	x, st, cache := newTestExecutor(t)
	ctx := context.Background()

	e := mkEntity(t, st, nil)
	target := uuid.New()

	_, err := x.DismissSuggestion(ctx, DismissRequest{
		EntityID: e.ID, TargetID: target, Actor: "reviewer", Reason: "different people",
	})
	require.NoError(t, err)

	dismissed, err := cache.Dismissed(ctx, "reviewer", e.ID)
	require.NoError(t, err)
	assert.True(t, dismissed[target])

	records := auditRecords(t, st)
	require.Len(t, records, 1)
	assert.Equal(t, model.ActionDismissSuggestion, records[0].Type)

	_, err = x.DismissSuggestion(ctx, DismissRequest{
		EntityID: e.ID, TargetID: e.ID, Actor: "reviewer", Reason: "x",
	})
	assert.True(t, IsValidation(err))
}

func TestGetLinkingHistoryFilters(t *testing.T) {
	x, st, _ := newTestExecutor(t)
	ctx := context.Background()

	a := mkEntity(t, st, nil)
	b := mkEntity(t, st, nil)
	c := mkEntity(t, st, nil)

	_, err := x.MergeEntities(ctx, MergeRequest{
		PrimaryID: a.ID, DuplicateID: b.ID, Actor: "r", Reason: "dup", Strategy: model.MergeKeepPrimary,
	})
	require.NoError(t, err)
	_, err = x.DismissSuggestion(ctx, DismissRequest{EntityID: c.ID, TargetID: uuid.New(), Actor: "r", Reason: "no"})
	require.NoError(t, err)

	all, err := x.GetLinkingHistory(ctx, store.AuditFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byEntity, err := x.GetLinkingHistory(ctx, store.AuditFilter{EntityID: &b.ID})
	require.NoError(t, err)
	require.Len(t, byEntity, 1)
	assert.Equal(t, model.ActionMergeEntities, byEntity[0].Type)
}

func TestDefaultMergeProfilesUnionsMultiValued(t *testing.T) {
	primary := model.Profile{}
	primary.Set("contact", "emails", model.FieldValue{Values: []string{"a@example.com", "b@example.com"}})
	dup := model.Profile{}
	dup.Set("contact", "emails", model.FieldValue{Values: []string{"b@example.com", "c@example.com"}})

	merged := defaultMergeProfiles(primary, dup)
	fv, ok := merged.Get("contact", "emails")
	require.True(t, ok)
	assert.Equal(t, []string{"a@example.com", "b@example.com", "c@example.com"}, fv.Values)
}
