package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draven0x/wayfinder/api/schemas"
)

func TestMemoryIndexUpsert(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	idx := NewMemoryIndex()

	t.Run("rejects empty id", func(t *testing.T) {
		assert.Error(t, idx.Upsert(ctx, "", []float32{1}, schemas.VectorKindPage))
	})

	t.Run("rejects empty vector", func(t *testing.T) {
		assert.Error(t, idx.Upsert(ctx, "page-a", nil, schemas.VectorKindPage))
	})

	t.Run("replaces an existing entry", func(t *testing.T) {
		require.NoError(t, idx.Upsert(ctx, "page-a", []float32{1, 0}, schemas.VectorKindPage))
		require.NoError(t, idx.Upsert(ctx, "page-a", []float32{0, 1}, schemas.VectorKindPage))

		hits, err := idx.Query(ctx, []float32{0, 1}, schemas.VectorKindPage, 5)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	})
}

func TestMemoryIndexQuery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	idx := NewMemoryIndex()
	require.NoError(t, idx.Upsert(ctx, "page-a", []float32{1, 0, 0}, schemas.VectorKindPage))
	require.NoError(t, idx.Upsert(ctx, "page-b", []float32{1, 1, 0}, schemas.VectorKindPage))
	require.NoError(t, idx.Upsert(ctx, "page-c", []float32{0, 0, 1}, schemas.VectorKindPage))
	require.NoError(t, idx.Upsert(ctx, "intent-1", []float32{1, 0, 0}, schemas.VectorKindIntent))

	t.Run("ranks by cosine similarity descending", func(t *testing.T) {
		hits, err := idx.Query(ctx, []float32{2, 0, 0}, schemas.VectorKindPage, 10)
		require.NoError(t, err)
		require.Len(t, hits, 3)
		assert.Equal(t, "page-a", hits[0].ID)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
		assert.Equal(t, "page-b", hits[1].ID)
		assert.InDelta(t, 0.7071, hits[1].Score, 1e-3)
		assert.Equal(t, "page-c", hits[2].ID)
		assert.InDelta(t, 0.0, hits[2].Score, 1e-9)
	})

	t.Run("scores are scale invariant", func(t *testing.T) {
		small, err := idx.Query(ctx, []float32{0.001, 0.001, 0}, schemas.VectorKindPage, 1)
		require.NoError(t, err)
		big, err := idx.Query(ctx, []float32{100, 100, 0}, schemas.VectorKindPage, 1)
		require.NoError(t, err)
		require.Len(t, small, 1)
		require.Len(t, big, 1)
		assert.Equal(t, small[0].ID, big[0].ID)
		assert.InDelta(t, small[0].Score, big[0].Score, 1e-6)
	})

	t.Run("kinds are isolated", func(t *testing.T) {
		hits, err := idx.Query(ctx, []float32{1, 0, 0}, schemas.VectorKindIntent, 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "intent-1", hits[0].ID)
	})

	t.Run("topK truncates", func(t *testing.T) {
		hits, err := idx.Query(ctx, []float32{1, 1, 1}, schemas.VectorKindPage, 2)
		require.NoError(t, err)
		assert.Len(t, hits, 2)
	})

	t.Run("non-positive topK returns nothing", func(t *testing.T) {
		hits, err := idx.Query(ctx, []float32{1, 0, 0}, schemas.VectorKindPage, 0)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("equal scores break ties by id", func(t *testing.T) {
		tieIdx := NewMemoryIndex()
		require.NoError(t, tieIdx.Upsert(ctx, "page-z", []float32{1, 0}, schemas.VectorKindPage))
		require.NoError(t, tieIdx.Upsert(ctx, "page-a", []float32{1, 0}, schemas.VectorKindPage))

		hits, err := tieIdx.Query(ctx, []float32{1, 0}, schemas.VectorKindPage, 10)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "page-a", hits[0].ID)
		assert.Equal(t, "page-z", hits[1].ID)
	})

	t.Run("zero query vector scores everything at zero", func(t *testing.T) {
		hits, err := idx.Query(ctx, []float32{0, 0, 0}, schemas.VectorKindPage, 10)
		require.NoError(t, err)
		require.Len(t, hits, 3)
		for _, h := range hits {
			assert.Zero(t, h.Score)
		}
	})
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	out := normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, float64(out[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(out[1]), 1e-6)

	zero := normalize([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)

	orig := []float32{3, 4}
	_ = normalize(orig)
	assert.Equal(t, []float32{3, 4}, orig)
}
