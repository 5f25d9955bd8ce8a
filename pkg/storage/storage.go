// Package storage defines the repository contract the aggregator persists
// through. Every write is an idempotent upsert keyed by the row's natural
// key, so re-running a pass over unchanged sources leaves the store
// unchanged.
package storage

import (
	"context"
	"time"
)

// DataSourceRow is the provenance record for one (entity, source) pair: it
// says which source contributed to an entity and how complete that source's
// view was.
type DataSourceRow struct {
	EntityID       string
	EntityName     string
	EntityType     string
	Aliases        []string
	SourceName     string
	SourceEntityID string
	SourceURL      string
	Reliability    float64

	// Completeness flags describe what the source actually provided.
	HasFirstAppearance bool
	HasAttributes      bool
	HasRelationships   bool
	HasAppearances     bool
	Completeness       float64

	LastChecked time.Time
}

// Key returns the row's natural key.
func (r DataSourceRow) Key() string {
	return r.EntityID + "|" + r.SourceName
}

// FirstAppearanceRow is the verified or merged first appearance of an entity.
type FirstAppearanceRow struct {
	EntityID   string
	ComicTitle string
	Issue      string
	Year       int
	Month      string
	CoverURL   string
	Franchise  string
	Universe   string

	SourceName  string
	SourceCount int
	Verified    bool
	Confidence  float64
}

// Key returns the row's natural key. One first appearance per entity: a
// later pass with better consensus replaces the row rather than adding one.
func (r FirstAppearanceRow) Key() string {
	return r.EntityID
}

// AttributeRow is one merged attribute of an entity.
type AttributeRow struct {
	EntityID    string
	Category    string
	Name        string
	Description string
	Level       string
	IsActive    bool
	OriginType  string

	SourceName  string
	SourceCount int
	Verified    bool
	Confidence  float64
}

// Key returns the row's natural key.
func (r AttributeRow) Key() string {
	return r.EntityID + "|" + r.Category + "|" + r.Name
}

// RelationshipRow is one merged relationship from an entity to a named target.
type RelationshipRow struct {
	EntityID         string
	TargetEntityName string
	TargetEntityType string
	RelationshipType string
	Subtype          string
	Strength         float64
	IsActive         bool

	SourceName  string
	SourceCount int
	Verified    bool
	Confidence  float64
}

// Key returns the row's natural key.
func (r RelationshipRow) Key() string {
	return r.EntityID + "|" + r.RelationshipType + "|" + r.TargetEntityName
}

// AppearanceRow is one comic issue an entity appears in.
type AppearanceRow struct {
	EntityID       string
	ComicTitle     string
	IssueNumber    string
	Year           int
	Month          string
	AppearanceType string
	IsOnCover      bool
	SourceName     string
}

// Key returns the row's natural key.
func (r AppearanceRow) Key() string {
	return r.EntityID + "|" + r.ComicTitle + "|" + r.IssueNumber
}

// Repository persists aggregation output. Implementations must make every
// Upsert idempotent on the row's natural key and safe for concurrent use.
type Repository interface {
	UpsertDataSource(ctx context.Context, row DataSourceRow) error
	UpsertFirstAppearance(ctx context.Context, row FirstAppearanceRow) error
	UpsertAttribute(ctx context.Context, row AttributeRow) error
	UpsertRelationship(ctx context.Context, row RelationshipRow) error
	UpsertAppearance(ctx context.Context, row AppearanceRow) error

	// Close releases the underlying store.
	Close() error
}
