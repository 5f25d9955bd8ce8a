package storage

import (
	"context"
	"sync"
)

// Memory is an in-process Repository. It backs tests and dry runs; the
// production sink is the sqlite implementation.
type Memory struct {
	mu sync.RWMutex

	dataSources      map[string]DataSourceRow
	firstAppearances map[string]FirstAppearanceRow
	attributes       map[string]AttributeRow
	relationships    map[string]RelationshipRow
	appearances      map[string]AppearanceRow
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		dataSources:      make(map[string]DataSourceRow),
		firstAppearances: make(map[string]FirstAppearanceRow),
		attributes:       make(map[string]AttributeRow),
		relationships:    make(map[string]RelationshipRow),
		appearances:      make(map[string]AppearanceRow),
	}
}

// UpsertDataSource stores a provenance row by its natural key.
func (m *Memory) UpsertDataSource(_ context.Context, row DataSourceRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataSources[row.Key()] = row
	return nil
}

// UpsertFirstAppearance stores a first-appearance row by its natural key.
func (m *Memory) UpsertFirstAppearance(_ context.Context, row FirstAppearanceRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.firstAppearances[row.Key()] = row
	return nil
}

// UpsertAttribute stores an attribute row by its natural key.
func (m *Memory) UpsertAttribute(_ context.Context, row AttributeRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attributes[row.Key()] = row
	return nil
}

// UpsertRelationship stores a relationship row by its natural key.
func (m *Memory) UpsertRelationship(_ context.Context, row RelationshipRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relationships[row.Key()] = row
	return nil
}

// UpsertAppearance stores an appearance row by its natural key.
func (m *Memory) UpsertAppearance(_ context.Context, row AppearanceRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appearances[row.Key()] = row
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}

// DataSources returns every stored provenance row.
func (m *Memory) DataSources() []DataSourceRow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]DataSourceRow, 0, len(m.dataSources))
	for _, row := range m.dataSources {
		out = append(out, row)
	}
	return out
}

// FirstAppearance returns the stored first appearance for an entity.
func (m *Memory) FirstAppearance(entityID string) (FirstAppearanceRow, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.firstAppearances[entityID]
	return row, ok
}

// Attributes returns every stored attribute row.
func (m *Memory) Attributes() []AttributeRow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]AttributeRow, 0, len(m.attributes))
	for _, row := range m.attributes {
		out = append(out, row)
	}
	return out
}

// Relationships returns every stored relationship row.
func (m *Memory) Relationships() []RelationshipRow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RelationshipRow, 0, len(m.relationships))
	for _, row := range m.relationships {
		out = append(out, row)
	}
	return out
}

// Appearances returns every stored appearance row.
func (m *Memory) Appearances() []AppearanceRow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]AppearanceRow, 0, len(m.appearances))
	for _, row := range m.appearances {
		out = append(out, row)
	}
	return out
}

// Counts reports row counts per table, for test assertions.
func (m *Memory) Counts() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]int{
		"data_sources":      len(m.dataSources),
		"first_appearances": len(m.firstAppearances),
		"attributes":        len(m.attributes),
		"relationships":     len(m.relationships),
		"appearances":       len(m.appearances),
	}
}
