package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/draven0x/wayfinder/api/schemas"
)

// MemoryIndex is an in-process VectorIndex: vectors are L2-normalized on
// insert, so similarity reduces to a dot product. Suited to tests and graphs
// on the order of thousands of pages; larger deployments use PgvectorIndex.
type MemoryIndex struct {
	mu      sync.RWMutex
	vectors map[schemas.VectorKind]map[string][]float32
}

var _ schemas.VectorIndex = (*MemoryIndex)(nil)

// NewMemoryIndex creates an empty in-memory vector index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		vectors: make(map[schemas.VectorKind]map[string][]float32),
	}
}

// Upsert stores a vector under (id, kind), replacing any previous value.
func (m *MemoryIndex) Upsert(ctx context.Context, id string, vector []float32, kind schemas.VectorKind) error {
	if id == "" {
		return fmt.Errorf("vector id is empty")
	}
	if len(vector) == 0 {
		return fmt.Errorf("vector for %q is empty", id)
	}
	normalized := normalize(vector)

	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.vectors[kind]
	if !ok {
		bucket = make(map[string][]float32)
		m.vectors[kind] = bucket
	}
	bucket[id] = normalized
	return nil
}

// Query returns up to topK entries of the given kind ranked by cosine
// similarity, descending. Ties break by ID for determinism.
func (m *MemoryIndex) Query(ctx context.Context, vector []float32, kind schemas.VectorKind, topK int) ([]schemas.VectorHit, error) {
	if topK <= 0 {
		return nil, nil
	}
	query := normalize(vector)

	m.mu.RLock()
	bucket := m.vectors[kind]
	hits := make([]schemas.VectorHit, 0, len(bucket))
	for id, vec := range bucket {
		hits = append(hits, schemas.VectorHit{ID: id, Score: dot(query, vec)})
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	if norm == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
