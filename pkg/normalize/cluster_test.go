package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longboxhq/longbox/pkg/entities"
)

func canonical(name string, entityType entities.Type, publisher string) CanonicalEntity {
	return NewCanonicalEntity(name, entityType, publisher)
}

func record(name string, entityType entities.Type, publisher, source string) entities.RawRecord {
	return entities.RawRecord{
		EntityID:   "test-" + Canonicalize(name),
		EntityName: name,
		EntityType: entityType,
		Publisher:  publisher,
		Source: entities.SourceMeta{
			SourceName:     source,
			Reliability:    0.8,
			SourceEntityID: "1",
		},
	}
}

func TestFuzzyMatchSymmetry(t *testing.T) {
	pairs := [][2]CanonicalEntity{
		{canonical("Spider-Man (Peter Parker)", entities.TypeCharacter, ""), canonical("Spiderman", entities.TypeCharacter, "")},
		{canonical("Green Lantern", entities.TypeCharacter, ""), canonical("Green Lantern Corps", entities.TypeCharacter, "")},
		{canonical("Batman", entities.TypeCharacter, "DC"), canonical("Batman", entities.TypeCharacter, "Marvel")},
		{canonical("Hulk", entities.TypeCharacter, ""), canonical("Hulk", entities.TypeTeam, "")},
	}

	for _, p := range pairs {
		assert.Equal(t,
			FuzzyMatch(p[0], p[1], DefaultThreshold),
			FuzzyMatch(p[1], p[0], DefaultThreshold),
			"fuzzy match not symmetric for %q / %q", p[0].CanonicalName, p[1].CanonicalName)
	}
}

func TestFuzzyMatchRules(t *testing.T) {
	t.Run("different types never match", func(t *testing.T) {
		a := canonical("Hulk", entities.TypeCharacter, "")
		b := canonical("Hulk", entities.TypeTeam, "")
		assert.False(t, FuzzyMatch(a, b, DefaultThreshold))
	})

	t.Run("no prefix collision", func(t *testing.T) {
		a := canonical("Green Lantern", entities.TypeCharacter, "")
		b := canonical("Green Lantern Corps", entities.TypeCharacter, "")
		assert.False(t, FuzzyMatch(a, b, DefaultThreshold))
	})

	t.Run("cross publisher requires exact name", func(t *testing.T) {
		dc := canonical("Captain Marvel", entities.TypeCharacter, "DC")
		marvel := canonical("Captain Marvel", entities.TypeCharacter, "Marvel")
		assert.True(t, FuzzyMatch(dc, marvel, DefaultThreshold), "identical canonical names match across publishers")

		dcVariant := canonical("Captain Marvell", entities.TypeCharacter, "DC")
		assert.False(t, FuzzyMatch(dcVariant, marvel, DefaultThreshold), "near-identical names must not fuzzy-merge across publishers")
	})

	t.Run("unknown publisher allows fuzzy", func(t *testing.T) {
		a := canonical("Spiderman", entities.TypeCharacter, "Unknown")
		b := canonical("Spider-Man", entities.TypeCharacter, "Marvel")
		assert.True(t, FuzzyMatch(a, b, DefaultThreshold))
	})

	t.Run("alias matches canonical", func(t *testing.T) {
		a := canonical("Spider-Man (Peter Parker)", entities.TypeCharacter, "")
		b := canonical("Peter Parker", entities.TypeCharacter, "")
		assert.True(t, FuzzyMatch(a, b, DefaultThreshold))
	})
}

func TestClusterRecordsSpiderMan(t *testing.T) {
	records := []entities.RawRecord{
		record("Spider-Man (Peter Parker)", entities.TypeCharacter, "", "source-a"),
		record("The Amazing Spider-Man", entities.TypeCharacter, "", "source-b"),
		record("Spiderman", entities.TypeCharacter, "", "source-c"),
		record("Green Goblin", entities.TypeCharacter, "", "source-a"),
	}

	clusters := ClusterRecords(records, DefaultThreshold)
	require.Len(t, clusters, 2)

	spidey := clusters[0]
	assert.Equal(t, "character:spider-man", spidey.Key)
	assert.Len(t, spidey.Records, 3)
	assert.ElementsMatch(t, []string{"source-a", "source-b", "source-c"}, spidey.Sources())
	assert.Contains(t, spidey.Aliases(), "peter-parker")

	assert.Len(t, clusters[1].Records, 1)
	assert.Equal(t, "character:green-goblin", clusters[1].Key)
}

func TestClusterRecordsDeterministic(t *testing.T) {
	records := []entities.RawRecord{
		record("Wolverine", entities.TypeCharacter, "", "a"),
		record("Wolverine (Logan)", entities.TypeCharacter, "", "b"),
		record("Storm", entities.TypeCharacter, "", "a"),
	}

	first := ClusterRecords(records, DefaultThreshold)
	second := ClusterRecords(records, DefaultThreshold)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Key, second[i].Key)
		assert.Equal(t, first[i].Names(), second[i].Names())
	}
}

func TestClusterRecordsEmpty(t *testing.T) {
	assert.Empty(t, ClusterRecords(nil, DefaultThreshold))
}
