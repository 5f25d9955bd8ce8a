// Package localdex serves curated records from local YAML files, one file
// per batch. It backs development and test runs without touching the
// network, and its records carry the highest reliability weight since they
// are hand-checked.
package localdex

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/longboxhq/longbox/pkg/entities"
	"github.com/longboxhq/longbox/pkg/errors"
	"github.com/longboxhq/longbox/pkg/normalize"
	"github.com/longboxhq/longbox/pkg/sources"
)

const (
	// SourceName identifies this adapter in records and provenance rows.
	SourceName sources.Name = "localdex"

	// DefaultReliability reflects that localdex records are hand-curated.
	DefaultReliability = 0.95
)

// document is the YAML file shape: a flat list of records.
type document struct {
	Records []entities.RawRecord `yaml:"records"`
}

// Source is the localdex adapter.
type Source struct {
	name        sources.Name
	reliability float64
	dir         string
}

var _ sources.Source = (*Source)(nil)

// New creates a localdex adapter reading from dir.
func New(dir string, cfg sources.Config) *Source {
	name := SourceName
	if cfg.SourceName != "" {
		name = cfg.SourceName
	}
	reliability := DefaultReliability
	if cfg.Reliability > 0 {
		reliability = cfg.Reliability
	}
	return &Source{name: name, reliability: reliability, dir: dir}
}

// Name returns the adapter identifier.
func (s *Source) Name() sources.Name { return s.name }

// Reliability returns the adapter's trust weight.
func (s *Source) Reliability() float64 { return s.reliability }

// ListEntities loads every record of the given type from the directory.
func (s *Source) ListEntities(ctx context.Context, entityType entities.Type) ([]entities.RawRecord, error) {
	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	var out []entities.RawRecord
	for _, r := range records {
		if r.EntityType == entityType {
			out = append(out, r)
		}
	}
	return out, nil
}

// GetEntity finds a record by canonical name or alias.
func (s *Source) GetEntity(ctx context.Context, name string, entityType entities.Type) (*entities.RawRecord, error) {
	records, err := s.ListEntities(ctx, entityType)
	if err != nil {
		return nil, err
	}

	target := normalize.NewCanonicalEntity(name, entityType, "")
	for i := range records {
		candidate := normalize.NewCanonicalEntity(records[i].EntityName, entityType, "")
		if target.CanonicalName == candidate.CanonicalName {
			return &records[i], nil
		}
		for _, alias := range candidate.Aliases {
			if alias == target.CanonicalName {
				return &records[i], nil
			}
		}
	}
	return nil, &errors.SourceError{Source: s.name.String(), StatusCode: 404, Message: "no record named " + name, Err: errors.ErrNotFound}
}

// HasEntity reports whether the directory holds a record for the name.
func (s *Source) HasEntity(ctx context.Context, name string, entityType entities.Type) (bool, error) {
	_, err := s.GetEntity(ctx, name, entityType)
	if errors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// load parses every .yaml/.yml file in the directory, sorted by filename so
// record order is stable. Source metadata is stamped onto each record;
// fixtures only describe the entity.
func (s *Source) load(ctx context.Context) ([]entities.RawRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.WrapSource(s.name.String(), s.dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	var records []entities.RawRecord
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, errors.ErrCanceled
		}

		path := filepath.Join(s.dir, file)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapSource(s.name.String(), path, err)
		}

		var doc document
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.WrapParse("yaml", path, err)
		}

		for _, r := range doc.Records {
			r.Source = entities.SourceMeta{
				SourceName:     s.name.String(),
				Reliability:    s.reliability,
				SourceEntityID: r.EntityID,
				SourceURL:      "file://" + path,
			}
			if r.EntityID == "" {
				r.EntityID = "localdex-" + normalize.Canonicalize(r.EntityName)
				r.Source.SourceEntityID = r.EntityID
			}
			records = append(records, r)
		}
	}
	return records, nil
}
