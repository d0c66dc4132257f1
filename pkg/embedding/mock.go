package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
)

// MockProvider produces deterministic unit-norm vectors derived from the
// text content. Used by tests and dry runs where no embedding service is
// available.
type MockProvider struct {
	dim int
}

// NewMockProvider creates a mock provider with the given dimension.
func NewMockProvider(dim int) *MockProvider {
	return &MockProvider{dim: dim}
}

// Embed returns one vector per text, seeded from an FNV hash of the text so
// identical inputs always embed identically.
func (p *MockProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		h := fnv.New64a()
		_, _ = h.Write([]byte(text))
		rng := rand.New(rand.NewSource(int64(h.Sum64())))

		vec := make([]float32, p.dim)
		var norm float64
		for j := range vec {
			v := rng.Float64()*2 - 1
			vec[j] = float32(v)
			norm += v * v
		}
		norm = math.Sqrt(norm)
		if norm > 0 {
			for j := range vec {
				vec[j] = float32(float64(vec[j]) / norm)
			}
		}
		out[i] = vec
	}
	return out, nil
}

// BatchSize reports a generous batch limit; the mock has no API constraint.
func (p *MockProvider) BatchSize() int { return 256 }

// Dimension reports the configured vector size.
func (p *MockProvider) Dimension() int { return p.dim }

// ModelName identifies the mock in metadata.
func (p *MockProvider) ModelName() string { return "mock" }
