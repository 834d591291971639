// Package notify emits fire-and-forget events after successful mutations.
// Delivery failure never fails the operation that produced the event.
package notify

import (
	"context"

	"entity-graph/backend/internal/logger"
)

// Event names emitted by the resolution core.
const (
	EventSuggestionGenerated = "suggestion_generated"
	EventEntityMerged        = "entity_merged"
	EventDataLinked          = "data_linked"
	EventOrphanLinked        = "orphan_linked"
	EventSuggestionDismissed = "suggestion_dismissed"
)

// Notifier delivers events to interested collaborators (webhooks, queues).
type Notifier interface {
	Notify(ctx context.Context, event string, payload map[string]any)
}

// LogNotifier writes events to the structured log. It is the default
// collaborator when no delivery backend is configured.
type LogNotifier struct{}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(ctx context.Context, event string, payload map[string]any) {
	logger.Info().
		Str("event", event).
		Interface("payload", payload).
		Msg("notification emitted")
}

// NopNotifier discards events; used in tests.
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, event string, payload map[string]any) {}
