// Package match finds candidate data items matching a normalized value, via
// exact content digests, exact normalized strings, and type-selected fuzzy
// similarity.
package match

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"entity-graph/backend/internal/model"
	"entity-graph/backend/internal/score"
	"entity-graph/backend/internal/similarity"
)

// DefaultFuzzyThreshold is the similarity floor below which fuzzy candidates
// are discarded.
const DefaultFuzzyThreshold = 0.70

// CandidateSource is the slice of the store the engine queries. Retrieval is
// the only blocking step of matching; scoring is pure.
type CandidateSource interface {
	QueryByHash(ctx context.Context, hash string) ([]model.DataItem, error)
	QueryByTypeAndNormalizedValue(ctx context.Context, t model.SemanticType, value string) ([]model.DataItem, error)
	QueryByType(ctx context.Context, t model.SemanticType) ([]model.DataItem, error)
}

// Input describes the value being matched. ItemID, when set, excludes the
// item itself from results.
type Input struct {
	ItemID     uuid.UUID
	Type       model.SemanticType
	Normalized string
	Hash       string
	Degraded   bool
}

// Engine runs the matching strategies. It holds only configuration and is
// safe for concurrent use.
type Engine struct {
	source    CandidateSource
	scorer    *score.Scorer
	threshold float64
	workers   int
}

// Option configures an Engine.
type Option func(*Engine)

// WithThreshold overrides the fuzzy similarity floor.
func WithThreshold(t float64) Option {
	return func(e *Engine) { e.threshold = t }
}

// WithWorkers sets the fuzzy scoring concurrency.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// NewEngine creates a matching engine backed by the given candidate source.
func NewEngine(source CandidateSource, scorer *score.Scorer, opts ...Option) *Engine {
	e := &Engine{
		source:    source,
		scorer:    scorer,
		threshold: DefaultFuzzyThreshold,
		workers:   runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MatchByHash returns items with an identical content digest. Identical
// binary content is certainty: confidence is fixed at 1.0.
func (e *Engine) MatchByHash(ctx context.Context, in Input) ([]model.MatchCandidate, error) {
	if in.Hash == "" {
		return nil, nil
	}
	items, err := e.source.QueryByHash(ctx, in.Hash)
	if err != nil {
		return nil, fmt.Errorf("query by hash: %w", err)
	}

	var out []model.MatchCandidate
	for _, item := range items {
		if item.ID == in.ItemID {
			continue
		}
		out = append(out, model.MatchCandidate{
			SourceItemID:  in.ItemID,
			TargetItemID:  item.ID,
			TargetOwner:   item.Owner,
			Strategy:      model.MatchStrategyExactHash,
			Similarity:    1.0,
			Confidence:    score.ConfidenceExactHash,
			Reason:        "identical content digest",
			TargetCreated: item.CreatedAt,
		})
	}
	rank(out)
	return out, nil
}

// MatchByValue returns same-type items whose normalized value is identical,
// across entity-owned and orphan-owned items. Confidence is fixed at 0.95
// (0.85 when either side came from a degraded normalization).
func (e *Engine) MatchByValue(ctx context.Context, in Input) ([]model.MatchCandidate, error) {
	if strings.TrimSpace(in.Normalized) == "" {
		return nil, nil
	}
	items, err := e.source.QueryByTypeAndNormalizedValue(ctx, in.Type, in.Normalized)
	if err != nil {
		return nil, fmt.Errorf("query by normalized value: %w", err)
	}

	var out []model.MatchCandidate
	for _, item := range items {
		if item.ID == in.ItemID {
			continue
		}
		conf := e.scorer.ExactStringConfidence(in.Degraded || item.Degraded)
		out = append(out, model.MatchCandidate{
			SourceItemID:  in.ItemID,
			TargetItemID:  item.ID,
			TargetOwner:   item.Owner,
			Strategy:      model.MatchStrategyExactString,
			Similarity:    1.0,
			Confidence:    conf,
			Reason:        fmt.Sprintf("exact normalized %s match", in.Type),
			TargetCreated: item.CreatedAt,
		})
	}
	rank(out)
	return out, nil
}

// MatchFuzzy retrieves all same-type candidates and scores them with the
// strategy selected by semantic type. Candidates below the threshold are
// discarded. Scoring runs across a bounded worker pool; independent
// comparisons have no ordering requirement.
func (e *Engine) MatchFuzzy(ctx context.Context, in Input) ([]model.MatchCandidate, error) {
	if strings.TrimSpace(in.Normalized) == "" || in.Type.IsBinary() {
		return nil, nil
	}
	items, err := e.source.QueryByType(ctx, in.Type)
	if err != nil {
		return nil, fmt.Errorf("query by type: %w", err)
	}

	strategy, simFunc := similarity.ForType(in.Type)
	out := e.scoreParallel(in, items, strategy, simFunc)
	rank(out)
	return out, nil
}

// scoreParallel fans candidate scoring out over e.workers goroutines.
func (e *Engine) scoreParallel(in Input, items []model.DataItem, strategy model.MatchStrategy, simFunc similarity.Func) []model.MatchCandidate {
	if len(items) == 0 {
		return nil
	}

	workers := e.workers
	if workers > len(items) {
		workers = len(items)
	}
	if workers < 1 {
		workers = 1
	}

	results := make(chan model.MatchCandidate, len(items))
	var wg sync.WaitGroup
	chunkSize := (len(items) + workers - 1) / workers

	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, len(items))
		if start >= end {
			break
		}
		wg.Add(1)
		go func(chunk []model.DataItem) {
			defer wg.Done()
			for _, item := range chunk {
				if item.ID == in.ItemID || strings.TrimSpace(item.NormalizedValue) == "" {
					continue
				}
				sim := simFunc(in.Normalized, item.NormalizedValue)
				if sim < e.threshold {
					continue
				}
				results <- model.MatchCandidate{
					SourceItemID:  in.ItemID,
					TargetItemID:  item.ID,
					TargetOwner:   item.Owner,
					Strategy:      strategy,
					Similarity:    sim,
					Confidence:    e.scorer.Confidence(sim),
					Reason:        fmt.Sprintf("%s similarity %.2f", in.Type, sim),
					TargetCreated: item.CreatedAt,
				}
			}
		}(items[start:end])
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var out []model.MatchCandidate
	for c := range results {
		out = append(out, c)
	}
	return out
}

// MatchCombined runs every applicable strategy for the input, keeps the
// highest-confidence result per target item, and returns one ranked list.
func (e *Engine) MatchCombined(ctx context.Context, in Input) ([]model.MatchCandidate, error) {
	var all []model.MatchCandidate

	if in.Hash != "" {
		byHash, err := e.MatchByHash(ctx, in)
		if err != nil {
			return nil, err
		}
		all = append(all, byHash...)
	}

	if strings.TrimSpace(in.Normalized) != "" && !in.Type.IsBinary() {
		byValue, err := e.MatchByValue(ctx, in)
		if err != nil {
			return nil, err
		}
		all = append(all, byValue...)

		fuzzy, err := e.MatchFuzzy(ctx, in)
		if err != nil {
			return nil, err
		}
		all = append(all, fuzzy...)
	}

	best := make(map[uuid.UUID]model.MatchCandidate, len(all))
	for _, c := range all {
		if existing, ok := best[c.TargetItemID]; !ok || c.Confidence > existing.Confidence {
			best[c.TargetItemID] = c
		}
	}

	out := make([]model.MatchCandidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	rank(out)
	return out, nil
}

// rank orders candidates by confidence descending; ties break by most recent
// target creation, then target id, for reproducible output.
func rank(candidates []model.MatchCandidate) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if !a.TargetCreated.Equal(b.TargetCreated) {
			return a.TargetCreated.After(b.TargetCreated)
		}
		return a.TargetItemID.String() < b.TargetItemID.String()
	})
}
