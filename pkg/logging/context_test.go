package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContextDefaults(t *testing.T) {
	assert.Equal(t, Default(), FromContext(context.Background()))
	assert.Equal(t, Default(), FromContext(nil)) //nolint:staticcheck // nil context is part of the contract
}

func TestWithLoggerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf)

	ctx := WithLogger(context.Background(), &logger)
	got := FromContext(ctx)
	require.NotNil(t, got)

	got.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestWithSourceAddsField(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf)

	ctx := WithLogger(context.Background(), &logger)
	ctx = WithSource(ctx, "metron")

	Ctx(ctx).Info().Msg("fetching")
	assert.Contains(t, buf.String(), `"source":"metron"`)
}

func TestWithEntityAddsField(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf)

	ctx := WithLogger(context.Background(), &logger)
	ctx = WithEntity(ctx, "character:spiderman")

	Ctx(ctx).Info().Msg("merging")
	assert.Contains(t, buf.String(), `"entity":"character:spiderman"`)
}
