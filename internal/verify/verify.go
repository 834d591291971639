// Package verify defines the optional external verification collaborator.
// It may supply an independent plausibility signal per identifier; its
// unavailability never blocks matching.
package verify

import (
	"context"

	"entity-graph/backend/internal/model"
)

// Signal is an independent plausibility assessment of an identifier.
type Signal struct {
	Plausible  bool
	Confidence float64
}

// Verifier supplies plausibility signals. Implementations typically call a
// network service; errors are treated as "no signal".
type Verifier interface {
	Verify(ctx context.Context, value string, t model.SemanticType) (*Signal, error)
}

// NopVerifier never returns a signal. It is the default when no external
// verification service is configured.
type NopVerifier struct{}

func (NopVerifier) Verify(ctx context.Context, value string, t model.SemanticType) (*Signal, error) {
	return nil, nil
}
