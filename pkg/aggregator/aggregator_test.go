package aggregator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longboxhq/longbox/pkg/entities"
	"github.com/longboxhq/longbox/pkg/errors"
	"github.com/longboxhq/longbox/pkg/sources"
	"github.com/longboxhq/longbox/pkg/storage"
)

// fakeSource is a canned adapter for orchestration tests.
type fakeSource struct {
	name        sources.Name
	reliability float64
	records     []entities.RawRecord
	err         error
	coverURL    string
}

func (f *fakeSource) Name() sources.Name   { return f.name }
func (f *fakeSource) Reliability() float64 { return f.reliability }

func (f *fakeSource) ListEntities(_ context.Context, _ entities.Type) ([]entities.RawRecord, error) {
	return f.records, f.err
}

func (f *fakeSource) GetEntity(_ context.Context, name string, _ entities.Type) (*entities.RawRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.records {
		if f.records[i].EntityName == name {
			return &f.records[i], nil
		}
	}
	return nil, &errors.SourceError{Source: f.name.String(), StatusCode: 404, Err: errors.ErrNotFound}
}

func (f *fakeSource) HasEntity(ctx context.Context, name string, entityType entities.Type) (bool, error) {
	_, err := f.GetEntity(ctx, name, entityType)
	if errors.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

func (f *fakeSource) FetchCoverURL(_ context.Context, _, _ string) (string, error) {
	return f.coverURL, nil
}

func spideyRecord(name string, source sources.Name, reliability float64) entities.RawRecord {
	return entities.RawRecord{
		EntityID:   "src-" + string(source),
		EntityName: name,
		EntityType: entities.TypeCharacter,
		Publisher:  "Marvel",
		FirstAppearance: &entities.FirstAppearance{
			ComicTitle: "Amazing Fantasy",
			Issue:      "15",
			Year:       1962,
		},
		Attributes: []entities.Attribute{
			{Category: entities.CategoryPower, Name: "Web-Slinging", Level: "high"},
		},
		Relationships: []entities.Relationship{
			{TargetEntityName: "Green Goblin", TargetEntityType: entities.TypeCharacter, RelationshipType: entities.RelationshipEnemy},
		},
		Source: entities.SourceMeta{
			SourceName:     string(source),
			Reliability:    reliability,
			SourceEntityID: "1",
		},
	}
}

func newTestAggregator(t *testing.T, repo storage.Repository, srcs ...sources.Source) *Aggregator {
	t.Helper()
	opts := []Option{WithRepository(repo)}
	for _, s := range srcs {
		opts = append(opts, WithSource(s))
	}
	agg, err := New(opts...)
	require.NoError(t, err)
	return agg
}

func TestNewRequiresSources(t *testing.T) {
	_, err := New()
	assert.Error(t, err)
}

func TestConsensusThresholdClamp(t *testing.T) {
	agg := newTestAggregator(t, storage.NewMemory(),
		&fakeSource{name: "a"},
		&fakeSource{name: "b"},
	)
	// Default threshold 3 clamps to the 2 registered sources.
	assert.Equal(t, 2, agg.ConsensusThreshold())

	agg = newTestAggregator(t, storage.NewMemory(), &fakeSource{name: "a"})
	assert.Equal(t, 1, agg.ConsensusThreshold())
}

func TestEntityIDDeterministic(t *testing.T) {
	assert.Equal(t, EntityID("character:spider-man"), EntityID("character:spider-man"))
	assert.NotEqual(t, EntityID("character:spider-man"), EntityID("character:green-goblin"))
}

func TestRunMergesNamingVariants(t *testing.T) {
	repo := storage.NewMemory()
	agg := newTestAggregator(t, repo,
		&fakeSource{name: "a", reliability: 0.9, records: []entities.RawRecord{spideyRecord("Spider-Man (Peter Parker)", "a", 0.9)}},
		&fakeSource{name: "b", reliability: 0.8, records: []entities.RawRecord{spideyRecord("The Amazing Spider-Man", "b", 0.8)}},
		&fakeSource{name: "c", reliability: 0.85, records: []entities.RawRecord{spideyRecord("Spiderman", "c", 0.85)}},
	)

	result, err := agg.Run(context.Background(), Query{EntityType: entities.TypeCharacter})
	require.NoError(t, err)

	assert.Equal(t, 3, result.SourcesQueried)
	assert.Equal(t, 3, result.RecordsFetched)
	assert.Equal(t, 1, result.EntitiesProcessed, "naming variants must collapse into one entity")
	assert.Equal(t, 1, result.ConsensusVerified)
	assert.False(t, result.HasIssues())

	require.Len(t, result.Entities, 1)
	merged := result.Entities[0]
	assert.Equal(t, "Spider-Man (Peter Parker)", merged.EntityName)
	assert.Contains(t, merged.Aliases, "peter-parker")
	assert.Equal(t, 3, merged.SourceCount)
	assert.True(t, merged.IsVerified)

	// One provenance row per contributing source, one merged row elsewhere.
	assert.Len(t, repo.DataSources(), 3)
	assert.Len(t, repo.Attributes(), 1)
	assert.Len(t, repo.Relationships(), 1)

	fa, ok := repo.FirstAppearance(EntityID("character:spider-man"))
	require.True(t, ok)
	assert.True(t, fa.Verified)
	assert.Equal(t, 3, fa.SourceCount)
	assert.InDelta(t, 0.85, fa.Confidence, 0.001)
}

func TestRunSourceFailureIsSoft(t *testing.T) {
	repo := storage.NewMemory()
	agg := newTestAggregator(t, repo,
		&fakeSource{name: "a", reliability: 0.9, records: []entities.RawRecord{spideyRecord("Spider-Man", "a", 0.9)}},
		&fakeSource{name: "b", err: &errors.SourceError{Source: "b", StatusCode: 503, Message: "down"}},
	)

	result, err := agg.Run(context.Background(), Query{EntityType: entities.TypeCharacter})
	require.NoError(t, err, "a failing source must not abort the pass")

	assert.Equal(t, 1, result.EntitiesProcessed)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "b", result.Issues[0].Source)
}

func TestRunDropsMalformedRecords(t *testing.T) {
	bad := spideyRecord("Spider-Man", "a", 0.9)
	bad.EntityName = ""

	agg := newTestAggregator(t, storage.NewMemory(),
		&fakeSource{name: "a", reliability: 0.9, records: []entities.RawRecord{bad, spideyRecord("Hulk", "a", 0.9)}},
	)

	result, err := agg.Run(context.Background(), Query{EntityType: entities.TypeCharacter})
	require.NoError(t, err)
	assert.Equal(t, 1, result.RecordsDropped)
	assert.Equal(t, 1, result.RecordsFetched)
	assert.Equal(t, 1, result.EntitiesProcessed)
}

func TestRunIdempotent(t *testing.T) {
	repo := storage.NewMemory()
	agg := newTestAggregator(t, repo,
		&fakeSource{name: "a", reliability: 0.9, records: []entities.RawRecord{spideyRecord("Spider-Man", "a", 0.9)}},
		&fakeSource{name: "b", reliability: 0.8, records: []entities.RawRecord{spideyRecord("Spider-Man", "b", 0.8)}},
	)

	_, err := agg.Run(context.Background(), Query{EntityType: entities.TypeCharacter})
	require.NoError(t, err)
	first := repo.Counts()

	_, err = agg.Run(context.Background(), Query{EntityType: entities.TypeCharacter})
	require.NoError(t, err)

	assert.Equal(t, first, repo.Counts(), "re-running an unchanged pass must not create rows")
}

func TestRunCoverBackfill(t *testing.T) {
	repo := storage.NewMemory()
	agg := newTestAggregator(t, repo,
		&fakeSource{name: "a", reliability: 0.9, records: []entities.RawRecord{spideyRecord("Spider-Man", "a", 0.9)},
			coverURL: "https://covers.example/af15.jpg"},
	)

	_, err := agg.Run(context.Background(), Query{EntityType: entities.TypeCharacter})
	require.NoError(t, err)

	fa, ok := repo.FirstAppearance(EntityID("character:spider-man"))
	require.True(t, ok)
	assert.Equal(t, "https://covers.example/af15.jpg", fa.CoverURL)
}

func TestRunBelowConsensusStoresUnverified(t *testing.T) {
	repo := storage.NewMemory()
	a := &fakeSource{name: "a", reliability: 0.9, records: []entities.RawRecord{spideyRecord("Spider-Man", "a", 0.9)}}
	b := &fakeSource{name: "b", reliability: 0.8}
	c := &fakeSource{name: "c", reliability: 0.8}
	agg := newTestAggregator(t, repo, a, b, c)
	require.Equal(t, 3, agg.ConsensusThreshold())

	_, err := agg.Run(context.Background(), Query{EntityType: entities.TypeCharacter})
	require.NoError(t, err)

	fa, ok := repo.FirstAppearance(EntityID("character:spider-man"))
	require.True(t, ok)
	assert.False(t, fa.Verified, "one claim against threshold 3 stays unverified")
	assert.Equal(t, 1, fa.SourceCount)
}

func TestRunVerifiesBySourceCountWithoutFirstAppearance(t *testing.T) {
	// Three sources corroborate the entity but none claims a first
	// appearance; corroboration alone verifies the entity.
	bare := func(source sources.Name, reliability float64) entities.RawRecord {
		r := spideyRecord("Spider-Man", source, reliability)
		r.FirstAppearance = nil
		return r
	}
	repo := storage.NewMemory()
	agg := newTestAggregator(t, repo,
		&fakeSource{name: "a", reliability: 0.9, records: []entities.RawRecord{bare("a", 0.9)}},
		&fakeSource{name: "b", reliability: 0.85, records: []entities.RawRecord{bare("b", 0.85)}},
		&fakeSource{name: "c", reliability: 0.8, records: []entities.RawRecord{bare("c", 0.8)}},
	)
	require.Equal(t, 3, agg.ConsensusThreshold())

	result, err := agg.Run(context.Background(), Query{EntityType: entities.TypeCharacter})
	require.NoError(t, err)

	require.Len(t, result.Entities, 1)
	merged := result.Entities[0]
	assert.Equal(t, 3, merged.SourceCount)
	assert.True(t, merged.IsVerified, "source count at threshold verifies the entity")
	assert.Equal(t, 1, result.ConsensusVerified)

	_, ok := repo.FirstAppearance(EntityID("character:spider-man"))
	assert.False(t, ok, "no first-appearance claim, no row")
}

func TestRunInvalidQuery(t *testing.T) {
	agg := newTestAggregator(t, storage.NewMemory(), &fakeSource{name: "a"})
	_, err := agg.Run(context.Background(), Query{EntityType: "starship"})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestVerifyPrecisionPath(t *testing.T) {
	agg := newTestAggregator(t, storage.NewMemory(),
		&fakeSource{name: "a", reliability: 0.9, records: []entities.RawRecord{spideyRecord("Spider-Man", "a", 0.9)}},
		&fakeSource{name: "b", reliability: 0.8, records: []entities.RawRecord{spideyRecord("Spider-Man", "b", 0.8)}},
		&fakeSource{name: "c", reliability: 0.85, records: []entities.RawRecord{spideyRecord("Spiderman", "c", 0.85)}},
	)

	result, err := agg.Verify(context.Background(), Query{EntityType: entities.TypeCharacter, Name: "Spider-Man"})
	require.NoError(t, err)

	require.NotNil(t, result.FirstAppearance)
	assert.True(t, result.FirstAppearance.IsConsensus)
	assert.Equal(t, 3, result.FirstAppearance.SourceCount)
	assert.InDelta(t, 0.85, result.FirstAppearance.Confidence, 0.001)

	require.Len(t, result.Attributes, 1)
	assert.True(t, result.Attributes[0].IsConsensus)
	assert.Greater(t, result.OverallConfidence, 0.0)
}

func TestVerifyRequiresName(t *testing.T) {
	agg := newTestAggregator(t, storage.NewMemory(), &fakeSource{name: "a"})
	_, err := agg.Verify(context.Background(), Query{EntityType: entities.TypeCharacter})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestVerifyUnknownEntity(t *testing.T) {
	agg := newTestAggregator(t, storage.NewMemory(),
		&fakeSource{name: "a", reliability: 0.9},
	)
	_, err := agg.Verify(context.Background(), Query{EntityType: entities.TypeCharacter, Name: "Nobody"})
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
