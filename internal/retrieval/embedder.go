package retrieval

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Embedder converts text into a vector comparable with stored record embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// HashEmbedder is a deterministic, dependency-free embedder: each token is
// hashed into a fixed number of buckets and the bucket counts are normalized
// to a unit vector. It is no substitute for a learned embedding model, but it
// gives stable similarities for tests and for running without a gateway.
type HashEmbedder struct {
	Dims int
}

// NewHashEmbedder creates a hash embedder with the given dimensionality.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 128
	}
	return &HashEmbedder{Dims: dims}
}

// Embed implements Embedder.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.Dims)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%uint32(e.Dims)]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec, nil
}
