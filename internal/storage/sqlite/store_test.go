package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longboxhq/longbox/pkg/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "longbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenCreatesSchema(t *testing.T) {
	store := openTestStore(t)

	counts, err := store.Counts(context.Background())
	require.NoError(t, err)
	assert.Len(t, counts, 5)
	for table, n := range counts {
		assert.Zero(t, n, "table %s should start empty", table)
	}
}

func TestOpenExistingDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "longbox.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.UpsertAppearance(context.Background(), storage.AppearanceRow{
		EntityID: "e1", ComicTitle: "Amazing Fantasy", IssueNumber: "15",
	}))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	counts, err := reopened.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts["entity_appearances"])
}

func TestUpsertIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	ds := storage.DataSourceRow{
		EntityID:      "e1",
		EntityName:    "Spider-Man",
		EntityType:    "character",
		Aliases:       []string{"spider-man", "peter-parker"},
		SourceName:    "metron",
		Reliability:   0.8,
		HasAttributes: true,
		Completeness:  0.4,
	}
	fa := storage.FirstAppearanceRow{
		EntityID: "e1", ComicTitle: "Amazing Fantasy", Issue: "15", Year: 1962,
		SourceCount: 3, Verified: true, Confidence: 0.85,
	}
	attr := storage.AttributeRow{
		EntityID: "e1", Category: "power", Name: "Web-Slinging", IsActive: true,
	}
	rel := storage.RelationshipRow{
		EntityID: "e1", RelationshipType: "enemy", TargetEntityName: "Green Goblin", IsActive: true,
	}
	app := storage.AppearanceRow{
		EntityID: "e1", ComicTitle: "Amazing Fantasy", IssueNumber: "15", Year: 1962,
	}

	for range 2 {
		require.NoError(t, store.UpsertDataSource(ctx, ds))
		require.NoError(t, store.UpsertFirstAppearance(ctx, fa))
		require.NoError(t, store.UpsertAttribute(ctx, attr))
		require.NoError(t, store.UpsertRelationship(ctx, rel))
		require.NoError(t, store.UpsertAppearance(ctx, app))
	}

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		"entity_data_sources":  1,
		"first_appearances":    1,
		"entity_attributes":    1,
		"entity_relationships": 1,
		"entity_appearances":   1,
	}, counts)
}

func TestUpsertUpdatesOnConflict(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertFirstAppearance(ctx, storage.FirstAppearanceRow{
		EntityID: "e1", ComicTitle: "Amazing Fantasy", Issue: "15",
	}))
	require.NoError(t, store.UpsertFirstAppearance(ctx, storage.FirstAppearanceRow{
		EntityID: "e1", ComicTitle: "Amazing Fantasy", Issue: "15", Year: 1962,
		SourceCount: 3, Verified: true, Confidence: 0.85,
	}))

	var year, verified, sourceCount int
	err := store.db.QueryRowContext(ctx,
		"SELECT year, verified, source_count FROM first_appearances WHERE entity_id = ?", "e1",
	).Scan(&year, &verified, &sourceCount)
	require.NoError(t, err)
	assert.Equal(t, 1962, year)
	assert.Equal(t, 1, verified)
	assert.Equal(t, 3, sourceCount)
}

func TestNaturalKeysSeparateRows(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertDataSource(ctx, storage.DataSourceRow{
		EntityID: "e1", EntityName: "Spider-Man", EntityType: "character", SourceName: "metron",
	}))
	require.NoError(t, store.UpsertDataSource(ctx, storage.DataSourceRow{
		EntityID: "e1", EntityName: "Spider-Man", EntityType: "character", SourceName: "superhero-api",
	}))

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts["entity_data_sources"])
}
