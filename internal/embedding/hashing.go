package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/draven0x/wayfinder/api/schemas"
)

// HashingEmbedder is a deterministic, model-free Embedder built on signed
// feature hashing: each lowercase token lands in a hash bucket with a
// hash-derived sign, and the result is L2-normalized. Identical texts always
// produce identical vectors and token overlap produces proportionally higher
// cosine similarity, which is exactly what tests and model-free deployments
// need from the capability.
type HashingEmbedder struct {
	dim int
}

var _ schemas.Embedder = (*HashingEmbedder)(nil)

// NewHashingEmbedder creates an embedder emitting vectors of the given width.
func NewHashingEmbedder(dim int) *HashingEmbedder {
	if dim <= 0 {
		dim = 128
	}
	return &HashingEmbedder{dim: dim}
}

// Dim returns the fixed embedding width.
func (h *HashingEmbedder) Dim() int {
	return h.dim
}

// EmbedText hashes the tokens of s into a normalized vector.
func (h *HashingEmbedder) EmbedText(ctx context.Context, s string) ([]float32, error) {
	vec := make([]float32, h.dim)
	for _, token := range strings.Fields(strings.ToLower(s)) {
		hasher := fnv.New64a()
		hasher.Write([]byte(token))
		sum := hasher.Sum64()
		bucket := int(sum % uint64(h.dim))
		sign := float32(1)
		if (sum>>32)&1 == 1 {
			sign = -1
		}
		vec[bucket] += sign
	}
	normalizeInPlace(vec)
	return vec, nil
}

// EmbedStructure embeds the textual rendering of the widget list.
func (h *HashingEmbedder) EmbedStructure(ctx context.Context, obs schemas.UIObservation) ([]float32, error) {
	return h.EmbedText(ctx, RenderObservation(obs))
}

// RenderObservation flattens an observation into the text form shared by all
// embedder implementations, title first, then "type text" widget pairs.
func RenderObservation(obs schemas.UIObservation) string {
	parts := make([]string, 0, len(obs.Widgets)+1)
	if obs.Title != "" {
		parts = append(parts, obs.Title)
	}
	for _, w := range obs.Widgets {
		if w.Text != "" {
			parts = append(parts, string(w.Type)+" "+w.Text)
		} else {
			parts = append(parts, string(w.Type))
		}
	}
	return strings.Join(parts, " ")
}

func normalizeInPlace(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
