// Package model defines the core records of the entity resolution domain:
// data items, entities, orphans, match candidates, and the audit trail.
package model

// SemanticType classifies what a DataItem's value represents. The type
// determines normalization rules and the fuzzy strategy used for matching.
type SemanticType string

const (
	SemanticTypeEmail         SemanticType = "email"
	SemanticTypePhone         SemanticType = "phone"
	SemanticTypeAddress       SemanticType = "address"
	SemanticTypeName          SemanticType = "name"
	SemanticTypeUsername      SemanticType = "username"
	SemanticTypeDomain        SemanticType = "domain"
	SemanticTypeURL           SemanticType = "url"
	SemanticTypeIP            SemanticType = "ip"
	SemanticTypeCryptoAddress SemanticType = "crypto_address"
	SemanticTypeImage         SemanticType = "image"
	SemanticTypeDocument      SemanticType = "document"
)

// IsBinary reports whether values of this type are binary content references
// (matched by content digest rather than normalized text).
func (t SemanticType) IsBinary() bool {
	return t == SemanticTypeImage || t == SemanticTypeDocument
}

// EntityType classifies the real-world subject an entity resolves to.
type EntityType string

const (
	EntityTypePerson       EntityType = "person"
	EntityTypeOrganization EntityType = "organization"
	EntityTypeDevice       EntityType = "device"
	EntityTypeLocation     EntityType = "location"
)
