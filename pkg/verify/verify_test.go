package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longboxhq/longbox/pkg/entities"
)

func record(source string, reliability float64, fa *entities.FirstAppearance) entities.RawRecord {
	return entities.RawRecord{
		EntityID:        "test-spider-man",
		EntityName:      "Spider-Man",
		EntityType:      entities.TypeCharacter,
		Publisher:       "Marvel",
		FirstAppearance: fa,
		Source: entities.SourceMeta{
			SourceName:     source,
			Reliability:    reliability,
			SourceEntityID: "1",
		},
	}
}

func TestFirstAppearanceConsensus(t *testing.T) {
	v := New(3)

	records := []entities.RawRecord{
		record("a", 0.9, &entities.FirstAppearance{ComicTitle: "Amazing Fantasy", Issue: "15", Year: 1962}),
		record("b", 0.8, &entities.FirstAppearance{ComicTitle: "Amazing Fantasy", Issue: "15"}),
		record("c", 0.85, &entities.FirstAppearance{ComicTitle: "amazing fantasy!", Issue: "15", Year: 1962, Month: "August"}),
		record("d", 0.7, &entities.FirstAppearance{ComicTitle: "Amazing Spider-Man", Issue: "1"}),
	}

	var conflicts []Conflict
	fact := v.FirstAppearance(records, &conflicts)
	require.NotNil(t, fact)

	assert.Equal(t, 3, fact.SourceCount)
	assert.True(t, fact.IsConsensus)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, fact.Sources)

	// Most complete value within the agreeing group wins.
	assert.Equal(t, "amazing fantasy!", fact.Value.ComicTitle)
	assert.Equal(t, "August", fact.Value.Month)

	// avg(0.9, 0.8, 0.85) × min(1, 3/3)
	assert.InDelta(t, 0.85, fact.Confidence, 0.001)

	// The minority claim is preserved, not discarded.
	require.Len(t, fact.Conflicts, 1)
	assert.Equal(t, "Amazing Spider-Man", fact.Conflicts[0].ComicTitle)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "first_appearance", conflicts[0].Fact)
	assert.Len(t, conflicts[0].Values, 2)
}

func TestFirstAppearanceBelowThresholdAbsent(t *testing.T) {
	v := New(3)

	records := []entities.RawRecord{
		record("a", 0.95, &entities.FirstAppearance{ComicTitle: "Amazing Fantasy", Issue: "15"}),
	}

	assert.Nil(t, v.FirstAppearance(records, nil), "a single source must not produce a verified value")
}

func TestFirstAppearanceNoClaims(t *testing.T) {
	v := New(3)
	assert.Nil(t, v.FirstAppearance([]entities.RawRecord{record("a", 0.9, nil)}, nil))
}

func TestConfidenceFormula(t *testing.T) {
	// Two of three required sources agreeing: 0.85 × 2/3.
	assert.InDelta(t, 0.567, Confidence(0.85, 2, 3), 0.001)
	// Saturates at the threshold.
	assert.InDelta(t, 0.85, Confidence(0.85, 3, 3), 0.001)
	assert.InDelta(t, 0.85, Confidence(0.85, 5, 3), 0.001)
	assert.Zero(t, Confidence(0.9, 0, 3))
}

func TestAttributesVariantDisagreement(t *testing.T) {
	v := New(3)

	webs := func(level string) entities.Attribute {
		return entities.Attribute{
			Category: entities.CategoryPower,
			Name:     "Web-Slinging",
			Level:    level,
		}
	}

	records := []entities.RawRecord{
		record("a", 0.9, nil),
		record("b", 0.8, nil),
		record("c", 0.85, nil),
	}
	records[0].Attributes = []entities.Attribute{webs("high")}
	records[1].Attributes = []entities.Attribute{webs("high")}
	records[2].Attributes = []entities.Attribute{webs("moderate")}

	var conflicts []Conflict
	facts := v.Attributes(records, &conflicts)
	require.Len(t, facts, 1)

	fact := facts[0]
	assert.Equal(t, "high", fact.Value.Level)
	assert.Equal(t, 2, fact.SourceCount, "only variant contributors count")
	assert.False(t, fact.IsConsensus)
	assert.ElementsMatch(t, []string{"a", "b"}, fact.Sources)
	// avg(0.9, 0.8) × 2/3
	assert.InDelta(t, 0.567, fact.Confidence, 0.001)

	require.Len(t, fact.Conflicts, 1)
	assert.Equal(t, "moderate", fact.Conflicts[0].Level)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "attribute:webslinging", conflicts[0].Fact)
}

func TestAttributesAgreementReachesConsensus(t *testing.T) {
	v := New(3)

	spider := entities.Attribute{Category: entities.CategoryPower, Name: "Spider-Sense"}
	records := []entities.RawRecord{
		record("a", 0.9, nil),
		record("b", 0.8, nil),
		record("c", 0.85, nil),
	}
	for i := range records {
		records[i].Attributes = []entities.Attribute{spider}
	}

	var conflicts []Conflict
	facts := v.Attributes(records, &conflicts)
	require.Len(t, facts, 1)
	assert.True(t, facts[0].IsConsensus)
	assert.InDelta(t, 0.85, facts[0].Confidence, 0.001)
	assert.Empty(t, conflicts)
}

func TestRelationshipsGroupedByTypeAndTarget(t *testing.T) {
	v := New(3)

	enemy := entities.Relationship{
		TargetEntityName: "Green Goblin",
		TargetEntityType: entities.TypeCharacter,
		RelationshipType: entities.RelationshipEnemy,
	}
	ally := entities.Relationship{
		TargetEntityName: "Green Goblin",
		TargetEntityType: entities.TypeCharacter,
		RelationshipType: entities.RelationshipAlly,
	}

	records := []entities.RawRecord{record("a", 0.9, nil), record("b", 0.8, nil)}
	records[0].Relationships = []entities.Relationship{enemy}
	records[1].Relationships = []entities.Relationship{enemy, ally}

	facts := v.Relationships(records, nil)
	require.Len(t, facts, 2, "same target under different relationship types stays separate")
	assert.Equal(t, 2, facts[0].SourceCount)
	assert.Equal(t, 1, facts[1].SourceCount)
}

func TestEntityOverallConfidence(t *testing.T) {
	v := New(3)

	records := []entities.RawRecord{
		record("a", 0.9, &entities.FirstAppearance{ComicTitle: "Amazing Fantasy", Issue: "15"}),
		record("b", 0.8, &entities.FirstAppearance{ComicTitle: "Amazing Fantasy", Issue: "15"}),
		record("c", 0.85, &entities.FirstAppearance{ComicTitle: "Amazing Fantasy", Issue: "15"}),
	}
	records[0].Attributes = []entities.Attribute{{Category: entities.CategoryPower, Name: "Wall-Crawling"}}

	result, err := v.Entity(records)
	require.NoError(t, err)

	assert.Equal(t, "character:spider-man", result.EntityKey)
	require.NotNil(t, result.FirstAppearance)
	assert.InDelta(t, 0.85, result.FirstAppearance.Confidence, 0.001)

	require.Len(t, result.Attributes, 1)
	assert.False(t, result.Attributes[0].IsConsensus)

	// Mean of the first-appearance and single-source attribute confidences.
	expected := (0.85 + 0.9/3) / 2
	assert.InDelta(t, expected, result.OverallConfidence, 0.001)
	assert.False(t, result.HasConflicts())
}

func TestEntityEmptyInput(t *testing.T) {
	_, err := New(3).Entity(nil)
	assert.Error(t, err)
}

func TestFilterByConfidence(t *testing.T) {
	result := &Result{
		EntityKey: "character:spider-man",
		FirstAppearance: &VerifiedFact[entities.FirstAppearance]{
			Value:      entities.FirstAppearance{ComicTitle: "Amazing Fantasy"},
			Confidence: 0.85,
		},
		Attributes: []VerifiedFact[entities.Attribute]{
			{Value: entities.Attribute{Name: "Spider-Sense"}, Confidence: 0.9},
			{Value: entities.Attribute{Name: "Luck"}, Confidence: 0.2},
		},
	}

	filtered := FilterByConfidence(result, 0.5)
	require.NotNil(t, filtered.FirstAppearance)
	require.Len(t, filtered.Attributes, 1)
	assert.Equal(t, "Spider-Sense", filtered.Attributes[0].Value.Name)

	filtered = FilterByConfidence(result, 0.95)
	assert.Nil(t, filtered.FirstAppearance)
	assert.Empty(t, filtered.Attributes)
}

func TestNewDefaultsThreshold(t *testing.T) {
	assert.Equal(t, DefaultConsensusThreshold, New(0).ConsensusThreshold)
	assert.Equal(t, 5, New(5).ConsensusThreshold)
}
