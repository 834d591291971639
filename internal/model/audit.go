package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActionType identifies the kind of linking decision an audit record covers.
type ActionType string

const (
	ActionLinkDataItems      ActionType = "link_data_items"
	ActionMergeEntities      ActionType = "merge_entities"
	ActionCreateRelationship ActionType = "create_relationship"
	ActionLinkOrphan         ActionType = "link_orphan"
	ActionDismissSuggestion  ActionType = "dismiss_suggestion"
)

// ActionDetails is the structured payload of a LinkingAction. Each action
// type has its own record; JSON serialization happens only at the storage
// boundary via EncodeDetails/DecodeDetails.
type ActionDetails interface {
	ActionType() ActionType
}

// LinkDataItemsDetails records a symmetric link between two data items.
type LinkDataItemsDetails struct {
	ItemA uuid.UUID `json:"item_a"`
	ItemB uuid.UUID `json:"item_b"`
}

func (LinkDataItemsDetails) ActionType() ActionType { return ActionLinkDataItems }

// MergeEntitiesDetails records an entity merge with its move counts.
type MergeEntitiesDetails struct {
	PrimaryID          uuid.UUID        `json:"primary_id"`
	MergedID           uuid.UUID        `json:"merged_id"`
	Strategy           string           `json:"strategy"`
	ItemsMoved         int              `json:"items_moved"`
	RelationshipsMoved int              `json:"relationships_moved"`
	DiscardedValues    []DiscardedValue `json:"discarded_values,omitempty"`
}

func (MergeEntitiesDetails) ActionType() ActionType { return ActionMergeEntities }

// CreateRelationshipDetails records a relationship created from a match.
type CreateRelationshipDetails struct {
	FromID           uuid.UUID `json:"from_id"`
	ToID             uuid.UUID `json:"to_id"`
	RelationshipType string    `json:"relationship_type"`
	Symmetric        bool      `json:"symmetric"`
}

func (CreateRelationshipDetails) ActionType() ActionType { return ActionCreateRelationship }

// LinkOrphanDetails records resolution of an orphan into an entity.
type LinkOrphanDetails struct {
	OrphanID   uuid.UUID `json:"orphan_id"`
	EntityID   uuid.UUID `json:"entity_id"`
	ItemsMoved int       `json:"items_moved"`
}

func (LinkOrphanDetails) ActionType() ActionType { return ActionLinkOrphan }

// DismissSuggestionDetails records a dismissed suggestion pair.
type DismissSuggestionDetails struct {
	EntityID uuid.UUID `json:"entity_id"`
	TargetID uuid.UUID `json:"target_id"`
	UserID   string    `json:"user_id"`
}

func (DismissSuggestionDetails) ActionType() ActionType { return ActionDismissSuggestion }

// DiscardedValue is a profile value dropped during a merge, retained in the
// audit record so nothing is silently lost.
type DiscardedValue struct {
	Section string   `json:"section"`
	Field   string   `json:"field"`
	Values  []string `json:"values"`
}

// LinkingAction is an immutable, append-only audit record. Exactly one exists
// per completed mutating decision; none for failed operations.
type LinkingAction struct {
	ID         uuid.UUID     `json:"id"`
	Type       ActionType    `json:"type"`
	Actor      string        `json:"actor"`
	Reason     string        `json:"reason"`
	Confidence *float64      `json:"confidence,omitempty"`
	Details    ActionDetails `json:"details"`
	CreatedAt  time.Time     `json:"created_at"`
}

// EncodeDetails serializes action details for storage.
func EncodeDetails(d ActionDetails) ([]byte, error) {
	if d == nil {
		return nil, fmt.Errorf("action details are required")
	}
	return json.Marshal(d)
}

// DecodeDetails deserializes stored details into the record type matching
// the action type.
func DecodeDetails(t ActionType, raw []byte) (ActionDetails, error) {
	var d ActionDetails
	switch t {
	case ActionLinkDataItems:
		d = &LinkDataItemsDetails{}
	case ActionMergeEntities:
		d = &MergeEntitiesDetails{}
	case ActionCreateRelationship:
		d = &CreateRelationshipDetails{}
	case ActionLinkOrphan:
		d = &LinkOrphanDetails{}
	case ActionDismissSuggestion:
		d = &DismissSuggestionDetails{}
	default:
		return nil, fmt.Errorf("unknown action type %q", t)
	}
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, fmt.Errorf("decode %s details: %w", t, err)
	}
	switch v := d.(type) {
	case *LinkDataItemsDetails:
		return *v, nil
	case *MergeEntitiesDetails:
		return *v, nil
	case *CreateRelationshipDetails:
		return *v, nil
	case *LinkOrphanDetails:
		return *v, nil
	case *DismissSuggestionDetails:
		return *v, nil
	}
	return d, nil
}
