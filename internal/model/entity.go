package model

import (
	"time"

	"github.com/google/uuid"
)

// FieldValue holds the values of a single profile field. Multi-valued fields
// carry more than one entry; UpdatedAt tracks the last modification for
// newest/oldest merge resolution.
type FieldValue struct {
	Values    []string  `json:"values"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile is a nested section -> field -> value mapping.
type Profile map[string]map[string]FieldValue

// Clone returns a deep copy of the profile.
func (p Profile) Clone() Profile {
	out := make(Profile, len(p))
	for section, fields := range p {
		outFields := make(map[string]FieldValue, len(fields))
		for name, fv := range fields {
			values := make([]string, len(fv.Values))
			copy(values, fv.Values)
			outFields[name] = FieldValue{Values: values, UpdatedAt: fv.UpdatedAt}
		}
		out[section] = outFields
	}
	return out
}

// Get returns the field value for section/field, if present.
func (p Profile) Get(section, field string) (FieldValue, bool) {
	fields, ok := p[section]
	if !ok {
		return FieldValue{}, false
	}
	fv, ok := fields[field]
	return fv, ok
}

// Set stores a field value, creating the section if needed.
func (p Profile) Set(section, field string, fv FieldValue) {
	if p[section] == nil {
		p[section] = make(map[string]FieldValue)
	}
	p[section][field] = fv
}

// Entity is a resolved real-world subject. Entities are never hard-deleted:
// a merged-away entity is tombstoned with a pointer to its successor.
type Entity struct {
	ID          uuid.UUID  `json:"id"`
	Type        EntityType `json:"type"`
	Profile     Profile    `json:"profile"`
	MergedInto  *uuid.UUID `json:"merged_into,omitempty"`
	MergedAt    *time.Time `json:"merged_at,omitempty"`
	MergeReason *string    `json:"merge_reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsTombstoned reports whether this entity was merged into another.
func (e *Entity) IsTombstoned() bool {
	return e.MergedInto != nil
}

// Relationship is a typed, directed edge between two entities.
type Relationship struct {
	ID         uuid.UUID  `json:"id"`
	Type       string     `json:"type"`
	FromID     uuid.UUID  `json:"from_id"`
	ToID       uuid.UUID  `json:"to_id"`
	Confidence *float64   `json:"confidence,omitempty"`
	Reason     *string    `json:"reason,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// symmetricRelationshipTypes lists relationship types that imply their own
// inverse. Creating one creates the reverse edge in the same operation.
var symmetricRelationshipTypes = map[string]bool{
	"same_household": true,
	"associate_of":   true,
	"duplicate_of":   true,
	"linked":         true,
}

// IsSymmetricRelationship reports whether relType implies an inverse edge.
func IsSymmetricRelationship(relType string) bool {
	return symmetricRelationshipTypes[relType]
}
