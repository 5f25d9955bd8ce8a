// Package sqlite implements the storage.Repository contract on a local
// SQLite database. CGo-free via modernc.org/sqlite, so the binary stays a
// single static artifact.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/longboxhq/longbox/pkg/errors"
	"github.com/longboxhq/longbox/pkg/storage"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump when the schema changes;
// there is no migration path, the database is a rebuildable cache of
// aggregation output.
const schemaVersion = 1

// Store is a SQLite-backed Repository.
type Store struct {
	db   *sql.DB
	path string
}

var _ storage.Repository = (*Store)(nil)

// Open initializes or connects to the database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.WrapStorage("open", "database", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, errors.WrapStorage("open", "database", path, fmt.Errorf("apply pragma %q: %w", pragma, execErr))
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return errors.WrapStorage("migrate", "schema", s.path, err)
	}

	if tableExists == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return errors.WrapStorage("migrate", "schema", s.path, err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return errors.WrapStorage("migrate", "schema", s.path, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return errors.WrapStorage("migrate", "schema", s.path, err)
		}
		if err := tx.Commit(); err != nil {
			return errors.WrapStorage("migrate", "schema", s.path, err)
		}
		return nil
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return errors.WrapStorage("migrate", "schema", s.path, err)
	}
	if version != schemaVersion {
		return errors.WrapStorage("migrate", "schema", s.path,
			fmt.Errorf("database has schema version %d, expected %d (delete %s to rebuild)", version, schemaVersion, s.path))
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// UpsertDataSource writes a provenance row, replacing the previous row for
// the same (entity, source) pair.
func (s *Store) UpsertDataSource(ctx context.Context, row storage.DataSourceRow) error {
	aliases, err := json.Marshal(row.Aliases)
	if err != nil {
		return errors.WrapStorage("upsert", "data_source", row.Key(), err)
	}
	if row.LastChecked.IsZero() {
		row.LastChecked = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entity_data_sources (
            entity_id, entity_name, entity_type, aliases, source_name,
            source_entity_id, source_url, reliability,
            has_first_appearance, has_attributes, has_relationships, has_appearances,
            completeness, last_checked
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (entity_id, source_name) DO UPDATE SET
            entity_name = excluded.entity_name,
            entity_type = excluded.entity_type,
            aliases = excluded.aliases,
            source_entity_id = excluded.source_entity_id,
            source_url = excluded.source_url,
            reliability = excluded.reliability,
            has_first_appearance = excluded.has_first_appearance,
            has_attributes = excluded.has_attributes,
            has_relationships = excluded.has_relationships,
            has_appearances = excluded.has_appearances,
            completeness = excluded.completeness,
            last_checked = excluded.last_checked`,
		row.EntityID, row.EntityName, row.EntityType, string(aliases), row.SourceName,
		row.SourceEntityID, row.SourceURL, row.Reliability,
		boolToInt(row.HasFirstAppearance), boolToInt(row.HasAttributes),
		boolToInt(row.HasRelationships), boolToInt(row.HasAppearances),
		row.Completeness, row.LastChecked.Format(time.RFC3339Nano),
	)
	return errors.WrapStorage("upsert", "data_source", row.Key(), err)
}

// UpsertFirstAppearance writes the entity's first appearance.
func (s *Store) UpsertFirstAppearance(ctx context.Context, row storage.FirstAppearanceRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO first_appearances (
            entity_id, comic_title, issue, year, month, cover_url, franchise,
            universe, source_name, source_count, verified, confidence
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (entity_id) DO UPDATE SET
            comic_title = excluded.comic_title,
            issue = excluded.issue,
            year = excluded.year,
            month = excluded.month,
            cover_url = excluded.cover_url,
            franchise = excluded.franchise,
            universe = excluded.universe,
            source_name = excluded.source_name,
            source_count = excluded.source_count,
            verified = excluded.verified,
            confidence = excluded.confidence`,
		row.EntityID, row.ComicTitle, row.Issue, row.Year, row.Month, row.CoverURL,
		row.Franchise, row.Universe, row.SourceName, row.SourceCount,
		boolToInt(row.Verified), row.Confidence,
	)
	return errors.WrapStorage("upsert", "first_appearance", row.Key(), err)
}

// UpsertAttribute writes one merged attribute row.
func (s *Store) UpsertAttribute(ctx context.Context, row storage.AttributeRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entity_attributes (
            entity_id, category, name, description, level, is_active,
            origin_type, source_name, source_count, verified, confidence
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (entity_id, category, name) DO UPDATE SET
            description = excluded.description,
            level = excluded.level,
            is_active = excluded.is_active,
            origin_type = excluded.origin_type,
            source_name = excluded.source_name,
            source_count = excluded.source_count,
            verified = excluded.verified,
            confidence = excluded.confidence`,
		row.EntityID, row.Category, row.Name, row.Description, row.Level,
		boolToInt(row.IsActive), row.OriginType, row.SourceName, row.SourceCount,
		boolToInt(row.Verified), row.Confidence,
	)
	return errors.WrapStorage("upsert", "attribute", row.Key(), err)
}

// UpsertRelationship writes one merged relationship row.
func (s *Store) UpsertRelationship(ctx context.Context, row storage.RelationshipRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entity_relationships (
            entity_id, target_entity_name, target_entity_type, relationship_type,
            subtype, strength, is_active, source_name, source_count, verified, confidence
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (entity_id, relationship_type, target_entity_name) DO UPDATE SET
            target_entity_type = excluded.target_entity_type,
            subtype = excluded.subtype,
            strength = excluded.strength,
            is_active = excluded.is_active,
            source_name = excluded.source_name,
            source_count = excluded.source_count,
            verified = excluded.verified,
            confidence = excluded.confidence`,
		row.EntityID, row.TargetEntityName, row.TargetEntityType, row.RelationshipType,
		row.Subtype, row.Strength, boolToInt(row.IsActive), row.SourceName,
		row.SourceCount, boolToInt(row.Verified), row.Confidence,
	)
	return errors.WrapStorage("upsert", "relationship", row.Key(), err)
}

// UpsertAppearance writes one appearance row.
func (s *Store) UpsertAppearance(ctx context.Context, row storage.AppearanceRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entity_appearances (
            entity_id, comic_title, issue_number, year, month, appearance_type,
            is_on_cover, source_name
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (entity_id, comic_title, issue_number) DO UPDATE SET
            year = excluded.year,
            month = excluded.month,
            appearance_type = excluded.appearance_type,
            is_on_cover = excluded.is_on_cover,
            source_name = excluded.source_name`,
		row.EntityID, row.ComicTitle, row.IssueNumber, row.Year, row.Month,
		row.AppearanceType, boolToInt(row.IsOnCover), row.SourceName,
	)
	return errors.WrapStorage("upsert", "appearance", row.Key(), err)
}

// Counts reports row counts per table, for diagnostics and tests.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	tables := []string{
		"entity_data_sources", "first_appearances", "entity_attributes",
		"entity_relationships", "entity_appearances",
	}
	counts := make(map[string]int, len(tables))
	for _, table := range tables {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM "+table).Scan(&n); err != nil {
			return nil, errors.WrapStorage("count", table, "", err)
		}
		counts[table] = n
	}
	return counts, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
