// Package entities defines the domain model shared by sources, the
// normalization and verification services, and the aggregator: raw
// per-source records, the enums that classify them, and the merged
// entity produced by an aggregation pass.
package entities

import "slices"

// Type classifies what kind of real-world thing a record describes.
type Type string

// Known entity types.
const (
	TypeCharacter Type = "character"
	TypeCreator   Type = "creator"
	TypeLocation  Type = "location"
	TypeGadget    Type = "gadget"
	TypeTeam      Type = "team"
	TypeConcept   Type = "concept"
)

// Types returns all known entity types.
func Types() []Type {
	return []Type{
		TypeCharacter,
		TypeCreator,
		TypeLocation,
		TypeGadget,
		TypeTeam,
		TypeConcept,
	}
}

// IsValid returns true if the type is one of the defined constants.
func (t Type) IsValid() bool {
	return slices.Contains(Types(), t)
}

// String returns the string representation of an entity type.
func (t Type) String() string {
	return string(t)
}

// AttributeCategory classifies an entity attribute.
type AttributeCategory string

// Known attribute categories.
const (
	CategoryPower        AttributeCategory = "power"
	CategoryWeakness     AttributeCategory = "weakness"
	CategoryOrigin       AttributeCategory = "origin"
	CategoryDeath        AttributeCategory = "death"
	CategoryResurrection AttributeCategory = "resurrection"
	CategoryAbility      AttributeCategory = "ability"
	CategoryEquipment    AttributeCategory = "equipment"
)

// AttributeCategories returns all known attribute categories.
func AttributeCategories() []AttributeCategory {
	return []AttributeCategory{
		CategoryPower,
		CategoryWeakness,
		CategoryOrigin,
		CategoryDeath,
		CategoryResurrection,
		CategoryAbility,
		CategoryEquipment,
	}
}

// IsValid returns true if the category is one of the defined constants.
func (c AttributeCategory) IsValid() bool {
	return slices.Contains(AttributeCategories(), c)
}

// RelationshipType classifies how two entities relate.
type RelationshipType string

// Known relationship types.
const (
	RelationshipAlly      RelationshipType = "ally"
	RelationshipEnemy     RelationshipType = "enemy"
	RelationshipTeammate  RelationshipType = "teammate"
	RelationshipCreator   RelationshipType = "creator"
	RelationshipFamily    RelationshipType = "family"
	RelationshipRomantic  RelationshipType = "romantic"
	RelationshipSuccessor RelationshipType = "successor"
)
