package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draven0x/wayfinder/api/schemas"
)

func TestHashingEmbedderDim(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 64, NewHashingEmbedder(64).Dim())
	assert.Equal(t, 128, NewHashingEmbedder(0).Dim())
	assert.Equal(t, 128, NewHashingEmbedder(-5).Dim())
}

func TestHashingEmbedderEmbedText(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	emb := NewHashingEmbedder(128)

	t.Run("deterministic across calls", func(t *testing.T) {
		a, err := emb.EmbedText(ctx, "view order details")
		require.NoError(t, err)
		b, err := emb.EmbedText(ctx, "view order details")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("case insensitive", func(t *testing.T) {
		a, err := emb.EmbedText(ctx, "View Order Details")
		require.NoError(t, err)
		b, err := emb.EmbedText(ctx, "view order details")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("unit length for non-empty text", func(t *testing.T) {
		vec, err := emb.EmbedText(ctx, "checkout cart payment")
		require.NoError(t, err)
		require.Len(t, vec, 128)

		var sum float64
		for _, x := range vec {
			sum += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
	})

	t.Run("empty text yields the zero vector", func(t *testing.T) {
		vec, err := emb.EmbedText(ctx, "   ")
		require.NoError(t, err)
		require.Len(t, vec, 128)
		for _, x := range vec {
			assert.Zero(t, x)
		}
	})

	t.Run("overlapping texts score higher than disjoint ones", func(t *testing.T) {
		base, err := emb.EmbedText(ctx, "order details page")
		require.NoError(t, err)
		near, err := emb.EmbedText(ctx, "order details view")
		require.NoError(t, err)
		far, err := emb.EmbedText(ctx, "weather forecast tomorrow")
		require.NoError(t, err)

		assert.Greater(t, cosine(base, near), cosine(base, far))
	})
}

func TestRenderObservation(t *testing.T) {
	t.Parallel()

	obs := schemas.UIObservation{
		Title: "Order Details",
		Widgets: []schemas.WidgetRef{
			{Type: schemas.WidgetButton, Text: "Refund"},
			{Type: schemas.WidgetInput},
		},
	}
	assert.Equal(t, "Order Details button Refund input", RenderObservation(obs))

	assert.Equal(t, "", RenderObservation(schemas.UIObservation{}))
	assert.Equal(t, "button Back", RenderObservation(schemas.UIObservation{
		Widgets: []schemas.WidgetRef{{Type: schemas.WidgetButton, Text: "Back"}},
	}))
}

func TestHashingEmbedderEmbedStructure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	emb := NewHashingEmbedder(128)

	obs := schemas.UIObservation{
		Title:   "Orders List",
		Widgets: []schemas.WidgetRef{{Type: schemas.WidgetList, Text: "orders"}},
	}
	structural, err := emb.EmbedStructure(ctx, obs)
	require.NoError(t, err)
	textual, err := emb.EmbedText(ctx, RenderObservation(obs))
	require.NoError(t, err)
	assert.Equal(t, textual, structural)
}

func cosine(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
