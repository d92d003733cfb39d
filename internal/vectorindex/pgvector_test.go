package vectorindex

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draven0x/wayfinder/api/schemas"
)

func newMockIndex(t *testing.T, dim int) (*PgvectorIndex, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return NewPgvectorIndex(mockPool, dim), mockPool
}

func TestPgvectorIndexEnsureSchema(t *testing.T) {
	t.Parallel()
	idx, mockPool := newMockIndex(t, 3)

	mockPool.ExpectExec("CREATE EXTENSION IF NOT EXISTS vector").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mockPool.ExpectExec(`CREATE TABLE IF NOT EXISTS embeddings`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mockPool.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_embeddings_hnsw`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, idx.EnsureSchema(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgvectorIndexUpsert(t *testing.T) {
	t.Parallel()

	t.Run("stores under the id and kind key", func(t *testing.T) {
		idx, mockPool := newMockIndex(t, 3)
		vec := []float32{1, 0, 0}
		mockPool.ExpectExec("INSERT INTO embeddings").
			WithArgs("page-a", "page", pgvector.NewVector(vec)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, idx.Upsert(context.Background(), "page-a", vec, schemas.VectorKindPage))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("rejects a dimension mismatch without touching the pool", func(t *testing.T) {
		idx, mockPool := newMockIndex(t, 3)
		err := idx.Upsert(context.Background(), "page-a", []float32{1, 0}, schemas.VectorKindPage)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dimension 2")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("wraps pool failures", func(t *testing.T) {
		idx, mockPool := newMockIndex(t, 2)
		dbErr := errors.New("connection reset")
		mockPool.ExpectExec("INSERT INTO embeddings").
			WithArgs("page-a", "page", pgvector.NewVector([]float32{1, 0})).
			WillReturnError(dbErr)

		err := idx.Upsert(context.Background(), "page-a", []float32{1, 0}, schemas.VectorKindPage)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgvectorIndexQuery(t *testing.T) {
	t.Parallel()

	t.Run("ranks by similarity from cosine distance", func(t *testing.T) {
		idx, mockPool := newMockIndex(t, 3)
		query := []float32{1, 0, 0}
		mockPool.ExpectQuery(`1 - \(embedding <=> \$1\) AS score`).
			WithArgs(pgvector.NewVector(query), "page", 2).
			WillReturnRows(pgxmock.NewRows([]string{"id", "score"}).
				AddRow("page-a", 0.98).
				AddRow("page-b", 0.41))

		hits, err := idx.Query(context.Background(), query, schemas.VectorKindPage, 2)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, schemas.VectorHit{ID: "page-a", Score: 0.98}, hits[0])
		assert.Equal(t, schemas.VectorHit{ID: "page-b", Score: 0.41}, hits[1])
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("non-positive topK short-circuits", func(t *testing.T) {
		idx, mockPool := newMockIndex(t, 3)
		hits, err := idx.Query(context.Background(), []float32{1, 0, 0}, schemas.VectorKindPage, 0)
		require.NoError(t, err)
		assert.Nil(t, hits)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
