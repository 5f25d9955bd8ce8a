package entities

import (
	"strings"

	"github.com/longboxhq/longbox/pkg/errors"
)

// RawRecord is one source's view of one entity. A record belongs to exactly
// one source call and is immutable once produced by an adapter.
type RawRecord struct {
	EntityID        string           `json:"entity_id" yaml:"entity_id"`
	EntityName      string           `json:"entity_name" yaml:"entity_name"`
	EntityType      Type             `json:"entity_type" yaml:"entity_type"`
	Publisher       string           `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	FirstAppearance *FirstAppearance `json:"first_appearance,omitempty" yaml:"first_appearance,omitempty"`
	Attributes      []Attribute      `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Relationships   []Relationship   `json:"relationships,omitempty" yaml:"relationships,omitempty"`
	Appearances     []Appearance     `json:"appearances,omitempty" yaml:"appearances,omitempty"`
	Source          SourceMeta       `json:"source" yaml:"source"`
}

// FirstAppearance records the comic in which an entity first appeared.
type FirstAppearance struct {
	ComicTitle string `json:"comic_title" yaml:"comic_title"`
	Issue      string `json:"issue,omitempty" yaml:"issue,omitempty"`
	Year       int    `json:"year,omitempty" yaml:"year,omitempty"`
	Month      string `json:"month,omitempty" yaml:"month,omitempty"`
	CoverURL   string `json:"cover_url,omitempty" yaml:"cover_url,omitempty"`
	Franchise  string `json:"franchise,omitempty" yaml:"franchise,omitempty"`
	Universe   string `json:"universe,omitempty" yaml:"universe,omitempty"`
}

// Completeness counts the populated optional fields. Used to pick the most
// complete value out of an agreeing consensus group.
func (f *FirstAppearance) Completeness() int {
	if f == nil {
		return 0
	}
	score := 0
	if f.Issue != "" {
		score++
	}
	if f.Year != 0 {
		score++
	}
	if f.Month != "" {
		score++
	}
	if f.CoverURL != "" {
		score++
	}
	if f.Franchise != "" {
		score++
	}
	if f.Universe != "" {
		score++
	}
	return score
}

// Attribute is a single claimed property of an entity (a power, weakness,
// origin detail, and so on).
type Attribute struct {
	Category    AttributeCategory `json:"category" yaml:"category"`
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Level       string            `json:"level,omitempty" yaml:"level,omitempty"`
	IsActive    *bool             `json:"is_active,omitempty" yaml:"is_active,omitempty"`
	OriginType  string            `json:"origin_type,omitempty" yaml:"origin_type,omitempty"`
}

// Active resolves the optional IsActive flag; attributes default to active.
func (a Attribute) Active() bool {
	return a.IsActive == nil || *a.IsActive
}

// Completeness counts the populated optional fields.
func (a Attribute) Completeness() int {
	score := 0
	if a.Description != "" {
		score++
	}
	if a.Level != "" {
		score++
	}
	if a.OriginType != "" {
		score++
	}
	return score
}

// Relationship is a claimed link from the record's entity to another named
// entity.
type Relationship struct {
	TargetEntityName string           `json:"target_entity_name" yaml:"target_entity_name"`
	TargetEntityType Type             `json:"target_entity_type" yaml:"target_entity_type"`
	RelationshipType RelationshipType `json:"relationship_type" yaml:"relationship_type"`
	Subtype          string           `json:"subtype,omitempty" yaml:"subtype,omitempty"`
	Strength         float64          `json:"strength,omitempty" yaml:"strength,omitempty"`
	IsActive         *bool            `json:"is_active,omitempty" yaml:"is_active,omitempty"`
}

// Active resolves the optional IsActive flag; relationships default to active.
func (r Relationship) Active() bool {
	return r.IsActive == nil || *r.IsActive
}

// Completeness counts the populated optional fields.
func (r Relationship) Completeness() int {
	score := 0
	if r.Subtype != "" {
		score++
	}
	if r.Strength > 0 {
		score++
	}
	return score
}

// Appearance is one comic issue the entity is claimed to appear in.
type Appearance struct {
	ComicTitle     string `json:"comic_title" yaml:"comic_title"`
	IssueNumber    string `json:"issue_number,omitempty" yaml:"issue_number,omitempty"`
	Year           int    `json:"year,omitempty" yaml:"year,omitempty"`
	Month          string `json:"month,omitempty" yaml:"month,omitempty"`
	AppearanceType string `json:"appearance_type,omitempty" yaml:"appearance_type,omitempty"`
	IsOnCover      bool   `json:"is_on_cover,omitempty" yaml:"is_on_cover,omitempty"`
}

// SourceMeta identifies the source call that produced a record and carries
// the source's self-declared trust weight.
type SourceMeta struct {
	SourceName     string  `json:"source_name" yaml:"source_name"`
	Reliability    float64 `json:"reliability" yaml:"reliability"`
	SourceEntityID string  `json:"source_entity_id" yaml:"source_entity_id"`
	SourceURL      string  `json:"source_url,omitempty" yaml:"source_url,omitempty"`
}

// Validate reports whether the record carries the identity fields every
// downstream stage depends on. Records failing validation are dropped during
// parsing rather than aborting a batch.
func (r *RawRecord) Validate() error {
	if strings.TrimSpace(r.EntityName) == "" {
		return &errors.ValidationError{Field: "entity_name", Message: "record has no entity name"}
	}
	if !r.EntityType.IsValid() {
		return &errors.ValidationError{Field: "entity_type", Value: string(r.EntityType), Message: "unknown entity type"}
	}
	if r.Source.SourceName == "" {
		return &errors.ValidationError{Field: "source.source_name", Message: "record has no source name"}
	}
	if r.Source.Reliability < 0 || r.Source.Reliability > 1 {
		return &errors.ValidationError{Field: "source.reliability", Value: r.Source.Reliability, Message: "reliability outside [0,1]"}
	}
	return nil
}
