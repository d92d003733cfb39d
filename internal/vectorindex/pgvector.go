package vectorindex

import (
	"context"
	"fmt"

	"github.com/draven0x/wayfinder/api/schemas"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// DBPool abstracts the pgxpool.Pool so the adapter can be exercised with
// pgxmock in tests.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PgvectorIndex is the persistent VectorIndex backed by the pgvector
// extension. Cosine distance (<=>) is converted to similarity at query time.
type PgvectorIndex struct {
	pool DBPool
	dim  int
}

var _ schemas.VectorIndex = (*PgvectorIndex)(nil)

// NewPgvectorIndex wraps an existing pgx pool. dim is the fixed embedding
// width every stored vector must match.
func NewPgvectorIndex(pool DBPool, dim int) *PgvectorIndex {
	return &PgvectorIndex{pool: pool, dim: dim}
}

// EnsureSchema enables the extension and creates the embeddings table with an
// HNSW index over cosine distance.
func (p *PgvectorIndex) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS embeddings (
			id TEXT NOT NULL,
			kind TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			PRIMARY KEY (id, kind)
		)`, p.dim),
		`CREATE INDEX IF NOT EXISTS idx_embeddings_hnsw ON embeddings USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure embeddings schema: %w", err)
		}
	}
	return nil
}

// Upsert stores a vector under (id, kind), replacing any previous value.
func (p *PgvectorIndex) Upsert(ctx context.Context, id string, vector []float32, kind schemas.VectorKind) error {
	if len(vector) != p.dim {
		return fmt.Errorf("vector for %q has dimension %d, index expects %d", id, len(vector), p.dim)
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO embeddings (id, kind, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (id, kind) DO UPDATE SET embedding = EXCLUDED.embedding`,
		id, string(kind), pgvector.NewVector(vector))
	if err != nil {
		return fmt.Errorf("failed to upsert embedding for %q: %w", id, err)
	}
	return nil
}

// Query returns up to topK entries of the given kind ranked by cosine
// similarity, descending.
func (p *PgvectorIndex) Query(ctx context.Context, vector []float32, kind schemas.VectorKind, topK int) ([]schemas.VectorHit, error) {
	if topK <= 0 {
		return nil, nil
	}
	rows, err := p.pool.Query(ctx, `
		SELECT id, 1 - (embedding <=> $1) AS score
		FROM embeddings
		WHERE kind = $2
		ORDER BY embedding <=> $1
		LIMIT $3`,
		pgvector.NewVector(vector), string(kind), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	var hits []schemas.VectorHit
	for rows.Next() {
		var hit schemas.VectorHit
		if err := rows.Scan(&hit.ID, &hit.Score); err != nil {
			return nil, fmt.Errorf("failed to scan embedding hit: %w", err)
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}
