package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/driftview/errors"
	"github.com/c360/driftview/fragment"
	"github.com/c360/driftview/pkg/embedding"
)

func TestSeedText(t *testing.T) {
	emb, err := embedding.NewBM25Embedder(embedding.BM25Config{Dimensions: 128})
	require.NoError(t, err)

	m := NewMemory()
	model := TextModel{
		ID: "support-bot",
		Features: []TextFeature{
			{
				Name:      "stable_topic",
				Primary:   []string{"reset my password", "password reset link"},
				Reference: []string{"reset my password", "password reset link"},
			},
			{
				Name:      "shifted_topic",
				Primary:   []string{"refund for damaged parcel", "parcel arrived broken"},
				Reference: []string{"reset my password", "forgot password help"},
			},
			{
				Name:    "no_reference",
				Primary: []string{"anything"},
			},
		},
	}
	require.NoError(t, SeedText(context.Background(), m, model, emb))

	page, err := newFetcher(t, m).Fetch(context.Background(), fragment.Request{ParentID: "support-bot"})
	require.NoError(t, err)
	require.Len(t, page.Edges, 3)

	stable, shifted := page.Edges[0].Node, page.Edges[1].Node
	assert.Equal(t, "support-bot-text-0", stable.ID)
	require.NotNil(t, stable.DriftMetric)
	require.NotNil(t, shifted.DriftMetric)
	assert.InDelta(t, 0, *stable.DriftMetric, 1e-9)
	assert.Greater(t, *shifted.DriftMetric, *stable.DriftMetric)
	assert.Nil(t, page.Edges[2].Node.DriftMetric)
}

func TestSeedText_Invalid(t *testing.T) {
	emb, err := embedding.NewBM25Embedder(embedding.BM25Config{})
	require.NoError(t, err)
	m := NewMemory()

	assert.True(t, errors.IsInvalid(SeedText(context.Background(), m, TextModel{}, emb)))
	assert.True(t, errors.IsInvalid(SeedText(context.Background(), m, TextModel{ID: "x"}, nil)))
}
