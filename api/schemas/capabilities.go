package schemas

import "context"

// The engine consumes three external capabilities. Each is an interface so
// deployments can pair an in-process backend for tests with a database-backed
// one in production without touching the algorithms.

// GraphStore is the persistence capability for pages, transitions and
// intents. Implementations must treat puts as construct-then-publish: a
// record handed to Put must be fully formed, and readers must never observe a
// partially written one. Lookups wrap ErrNotFound for absent records.
type GraphStore interface {
	GetPage(ctx context.Context, id string) (Page, error)
	PutPage(ctx context.Context, page Page) error
	FindPageByName(ctx context.Context, appID, name string) (Page, error)
	AllPages(ctx context.Context, appID string) ([]Page, error)

	// GetTransition looks an edge up by its source page and action
	// signature, the multigraph key.
	GetTransition(ctx context.Context, sourcePageID, actionSig string) (Transition, error)
	PutTransition(ctx context.Context, t Transition) error
	Outgoing(ctx context.Context, pageID string) ([]Transition, error)

	GetIntent(ctx context.Context, id string) (Intent, error)
	PutIntent(ctx context.Context, intent Intent) error
	AllIntents(ctx context.Context, appID string) ([]Intent, error)

	Stats(ctx context.Context, appID string) (GraphStats, error)
	Export(ctx context.Context, appID string) (GraphExport, error)
}

// VectorKind namespaces entries inside the vector index.
type VectorKind string

const (
	VectorKindPage   VectorKind = "page"
	VectorKindIntent VectorKind = "intent"
)

// VectorHit is one ranked nearest-neighbor result.
type VectorHit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// VectorIndex is the similarity-search capability over fixed-length
// embeddings.
type VectorIndex interface {
	Upsert(ctx context.Context, id string, vector []float32, kind VectorKind) error
	Query(ctx context.Context, vector []float32, kind VectorKind, topK int) ([]VectorHit, error)
}

// Embedder turns text or UI structure into a fixed-length vector. Both
// methods must be deterministic for identical input.
type Embedder interface {
	EmbedText(ctx context.Context, s string) ([]float32, error)
	EmbedStructure(ctx context.Context, obs UIObservation) ([]float32, error)
}
