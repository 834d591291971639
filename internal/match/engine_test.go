package match

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entity-graph/backend/internal/model"
	"entity-graph/backend/internal/score"
)

type fakeSource struct {
	byHash  []model.DataItem
	byValue []model.DataItem
	byType  []model.DataItem
	err     error
}

func (f *fakeSource) QueryByHash(ctx context.Context, hash string) ([]model.DataItem, error) {
	return f.byHash, f.err
}

func (f *fakeSource) QueryByTypeAndNormalizedValue(ctx context.Context, t model.SemanticType, value string) ([]model.DataItem, error) {
	return f.byValue, f.err
}

func (f *fakeSource) QueryByType(ctx context.Context, t model.SemanticType) ([]model.DataItem, error) {
	return f.byType, f.err
}

func item(semType model.SemanticType, normalized string, created time.Time) model.DataItem {
	return model.DataItem{
		ID:              uuid.New(),
		Type:            semType,
		NormalizedValue: normalized,
		Owner:           model.EntityOwner(uuid.New()),
		CreatedAt:       created,
	}
}

func TestMatchByHash(t *testing.T) {
	now := time.Now().UTC()
	self := item(model.SemanticTypeImage, "", now)
	other := item(model.SemanticTypeImage, "", now)
	src := &fakeSource{byHash: []model.DataItem{self, other}}
	engine := NewEngine(src, score.NewScorer())

	got, err := engine.MatchByHash(context.Background(), Input{
		ItemID: self.ID, Type: model.SemanticTypeImage, Hash: "abc",
	})
	require.NoError(t, err)
	require.Len(t, got, 1, "the item itself is excluded")
	assert.Equal(t, other.ID, got[0].TargetItemID)
	assert.Equal(t, model.MatchStrategyExactHash, got[0].Strategy)
	assert.Equal(t, 1.0, got[0].Confidence)
}

func TestMatchByHashEmptyHash(t *testing.T) {
	engine := NewEngine(&fakeSource{}, score.NewScorer())

	got, err := engine.MatchByHash(context.Background(), Input{Type: model.SemanticTypeImage})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMatchByValue(t *testing.T) {
	now := time.Now().UTC()
	clean := item(model.SemanticTypeEmail, "jane@example.com", now)
	src := &fakeSource{byValue: []model.DataItem{clean}}
	engine := NewEngine(src, score.NewScorer())

	got, err := engine.MatchByValue(context.Background(), Input{
		ItemID: uuid.New(), Type: model.SemanticTypeEmail, Normalized: "jane@example.com",
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, score.ConfidenceExactString, got[0].Confidence)
	assert.Equal(t, model.MatchStrategyExactString, got[0].Strategy)
}

func TestMatchByValueDegradedCapsConfidence(t *testing.T) {
	now := time.Now().UTC()
	degradedTarget := item(model.SemanticTypePhone, "+12", now)
	degradedTarget.Degraded = true
	src := &fakeSource{byValue: []model.DataItem{degradedTarget}}
	engine := NewEngine(src, score.NewScorer())

	// Degraded target side.
	got, err := engine.MatchByValue(context.Background(), Input{
		ItemID: uuid.New(), Type: model.SemanticTypePhone, Normalized: "+12",
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, score.ConfidenceDegradedExact, got[0].Confidence)

	// Degraded input side.
	cleanTarget := item(model.SemanticTypePhone, "+12", now)
	src.byValue = []model.DataItem{cleanTarget}
	got, err = engine.MatchByValue(context.Background(), Input{
		ItemID: uuid.New(), Type: model.SemanticTypePhone, Normalized: "+12", Degraded: true,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, score.ConfidenceDegradedExact, got[0].Confidence)
}

func TestMatchFuzzy(t *testing.T) {
	now := time.Now().UTC()
	near := item(model.SemanticTypeName, "jane doe", now)
	far := item(model.SemanticTypeName, "完全に違う名前", now)
	empty := item(model.SemanticTypeName, "", now)
	src := &fakeSource{byType: []model.DataItem{near, far, empty}}
	engine := NewEngine(src, score.NewScorer())

	got, err := engine.MatchFuzzy(context.Background(), Input{
		ItemID: uuid.New(), Type: model.SemanticTypeName, Normalized: "jane does",
	})
	require.NoError(t, err)
	require.Len(t, got, 1, "below-threshold and empty candidates are discarded")
	assert.Equal(t, near.ID, got[0].TargetItemID)
	assert.Equal(t, model.MatchStrategyJaroWinkler, got[0].Strategy)
	assert.GreaterOrEqual(t, got[0].Similarity, DefaultFuzzyThreshold)
	assert.LessOrEqual(t, got[0].Confidence, 0.9)
}

func TestMatchFuzzySkipsBinaryTypes(t *testing.T) {
	src := &fakeSource{byType: []model.DataItem{item(model.SemanticTypeImage, "x", time.Now())}}
	engine := NewEngine(src, score.NewScorer())

	got, err := engine.MatchFuzzy(context.Background(), Input{
		ItemID: uuid.New(), Type: model.SemanticTypeImage, Normalized: "x",
	})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMatchFuzzyThresholdOption(t *testing.T) {
	now := time.Now().UTC()
	target := item(model.SemanticTypeName, "jane smith", now)
	src := &fakeSource{byType: []model.DataItem{target}}

	strict := NewEngine(src, score.NewScorer(), WithThreshold(0.99))
	got, err := strict.MatchFuzzy(context.Background(), Input{
		ItemID: uuid.New(), Type: model.SemanticTypeName, Normalized: "jane smyth",
	})
	require.NoError(t, err)
	assert.Empty(t, got)

	lenient := NewEngine(src, score.NewScorer(), WithThreshold(0.5))
	got, err = lenient.MatchFuzzy(context.Background(), Input{
		ItemID: uuid.New(), Type: model.SemanticTypeName, Normalized: "jane smyth",
	})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMatchFuzzyManyCandidates(t *testing.T) {
	// Exercise the worker pool with more candidates than workers.
	now := time.Now().UTC()
	var items []model.DataItem
	for i := 0; i < 100; i++ {
		items = append(items, item(model.SemanticTypeName, "jane doe", now))
	}
	src := &fakeSource{byType: items}
	engine := NewEngine(src, score.NewScorer(), WithWorkers(4))

	got, err := engine.MatchFuzzy(context.Background(), Input{
		ItemID: uuid.New(), Type: model.SemanticTypeName, Normalized: "jane doe",
	})
	require.NoError(t, err)
	assert.Len(t, got, 100)
}

func TestMatchCombined(t *testing.T) {
	now := time.Now().UTC()

	// The same target reachable by exact value and fuzzy: only the
	// highest-confidence result may survive.
	shared := item(model.SemanticTypeEmail, "jane@example.com", now)
	fuzzyOnly := item(model.SemanticTypeEmail, "jan@example.com", now.Add(-time.Hour))
	src := &fakeSource{
		byValue: []model.DataItem{shared},
		byType:  []model.DataItem{shared, fuzzyOnly},
	}
	engine := NewEngine(src, score.NewScorer())

	got, err := engine.MatchCombined(context.Background(), Input{
		ItemID: uuid.New(), Type: model.SemanticTypeEmail, Normalized: "jane@example.com",
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, shared.ID, got[0].TargetItemID)
	assert.Equal(t, model.MatchStrategyExactString, got[0].Strategy, "exact beats fuzzy for the same target")
	assert.Equal(t, score.ConfidenceExactString, got[0].Confidence)

	assert.Equal(t, fuzzyOnly.ID, got[1].TargetItemID)
	assert.Less(t, got[1].Confidence, got[0].Confidence)
}

func TestMatchCombinedRankingDeterministic(t *testing.T) {
	now := time.Now().UTC()
	older := item(model.SemanticTypeEmail, "jane@example.com", now.Add(-time.Hour))
	newer := item(model.SemanticTypeEmail, "jane@example.com", now)
	src := &fakeSource{byValue: []model.DataItem{older, newer}, byType: nil}
	engine := NewEngine(src, score.NewScorer())

	for i := 0; i < 5; i++ {
		got, err := engine.MatchCombined(context.Background(), Input{
			ItemID: uuid.New(), Type: model.SemanticTypeEmail, Normalized: "jane@example.com",
		})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, newer.ID, got[0].TargetItemID, "equal confidence ties break newest-first")
	}
}

func TestMatchSourceErrorPropagates(t *testing.T) {
	boom := errors.New("store down")
	engine := NewEngine(&fakeSource{err: boom}, score.NewScorer())

	_, err := engine.MatchCombined(context.Background(), Input{
		ItemID: uuid.New(), Type: model.SemanticTypeEmail, Normalized: "x@example.com", Hash: "h",
	})
	assert.ErrorIs(t, err, boom)
}
