package localdex

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longboxhq/longbox/pkg/entities"
	"github.com/longboxhq/longbox/pkg/errors"
	"github.com/longboxhq/longbox/pkg/sources"
)

const fixture = `records:
  - entity_name: Spider-Man (Peter Parker)
    entity_type: character
    publisher: Marvel
    first_appearance:
      comic_title: Amazing Fantasy
      issue: "15"
      year: 1962
      month: August
    attributes:
      - category: power
        name: Web-Slinging
        level: high
    relationships:
      - target_entity_name: Green Goblin
        target_entity_type: character
        relationship_type: enemy
  - entity_name: Avengers
    entity_type: team
    publisher: Marvel
`

func newTestSource(t *testing.T) *Source {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marvel.yaml"), []byte(fixture), 0o644))
	return New(dir, sources.Config{})
}

func TestDefaults(t *testing.T) {
	s := New(t.TempDir(), sources.Config{})
	assert.Equal(t, SourceName, s.Name())
	assert.Equal(t, DefaultReliability, s.Reliability())
}

func TestListEntitiesFiltersByType(t *testing.T) {
	s := newTestSource(t)

	chars, err := s.ListEntities(context.Background(), entities.TypeCharacter)
	require.NoError(t, err)
	require.Len(t, chars, 1)
	assert.Equal(t, "Spider-Man (Peter Parker)", chars[0].EntityName)
	assert.Equal(t, "localdex", chars[0].Source.SourceName)
	assert.Equal(t, 0.95, chars[0].Source.Reliability)
	assert.Equal(t, "localdex-spider-man", chars[0].EntityID)
	require.NoError(t, chars[0].Validate())

	teams, err := s.ListEntities(context.Background(), entities.TypeTeam)
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, "Avengers", teams[0].EntityName)
}

func TestGetEntityByAlias(t *testing.T) {
	s := newTestSource(t)

	record, err := s.GetEntity(context.Background(), "Peter Parker", entities.TypeCharacter)
	require.NoError(t, err)
	assert.Equal(t, "Spider-Man (Peter Parker)", record.EntityName)

	record, err = s.GetEntity(context.Background(), "The Amazing Spider-Man", entities.TypeCharacter)
	require.NoError(t, err)
	assert.Equal(t, "Spider-Man (Peter Parker)", record.EntityName)
}

func TestGetEntityNotFound(t *testing.T) {
	s := newTestSource(t)
	_, err := s.GetEntity(context.Background(), "Batman", entities.TypeCharacter)
	assert.True(t, errors.IsNotFound(err))
}

func TestHasEntity(t *testing.T) {
	s := newTestSource(t)

	ok, err := s.HasEntity(context.Background(), "Avengers", entities.TypeTeam)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.HasEntity(context.Background(), "Avengers", entities.TypeCharacter)
	require.NoError(t, err)
	assert.False(t, ok, "type mismatch must not match")
}

func TestMissingDirectory(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope"), sources.Config{})
	_, err := s.ListEntities(context.Background(), entities.TypeCharacter)
	assert.Error(t, err)
}

func TestMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("records: [not: valid"), 0o644))

	_, err := New(dir, sources.Config{}).ListEntities(context.Background(), entities.TypeCharacter)
	var perr *errors.ParseError
	assert.ErrorAs(t, err, &perr)
}
