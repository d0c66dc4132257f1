// Package embedding provides a uniform interface over text-to-vector
// services and the attachment step that writes vectors into Silver tables.
package embedding

import (
	"context"
	"fmt"

	"roofline/pkg/config"
	"roofline/pkg/embedding/gemini"
	"roofline/pkg/embedding/ollama"
	"roofline/pkg/embedding/openai"
	"roofline/pkg/embedding/voyage"
	"roofline/pkg/request"
)

// CanonicalDimension is the vector size every provider must produce. The
// graph sink creates its vector indexes with this dimension, so providers
// with a different native size are rejected at construction rather than
// truncated.
const CanonicalDimension = 1024

// Provider generates dense vectors for batches of text.
//
// Contracts: input length per Embed call must not exceed BatchSize(); the
// output has one vector per input text, each of Dimension() length.
// Providers surface failures without retrying; callers own the policy.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	BatchSize() int
	Dimension() int
	ModelName() string
}

// New builds the Provider named by embedding.provider. Missing credentials
// fail here, before any network call.
func New(cfg config.EmbeddingConfig, rc *request.Client) (Provider, error) {
	dim := cfg.Dimension
	if dim == 0 {
		dim = CanonicalDimension
	}
	if dim != CanonicalDimension {
		return nil, fmt.Errorf("embedding: dimension %d not supported, the pipeline is fixed at %d", dim, CanonicalDimension)
	}

	switch cfg.Provider {
	case "voyage":
		return voyage.NewClient(voyage.Options{
			Model:     cfg.Model,
			Key:       cfg.Key,
			BatchSize: cfg.BatchSize,
			Dimension: CanonicalDimension,
		}, rc)
	case "openai":
		return openai.NewClient(openai.Options{
			Model:     cfg.Model,
			Key:       cfg.Key,
			BatchSize: cfg.BatchSize,
			Dimension: CanonicalDimension,
		}, rc)
	case "gemini":
		return gemini.NewClient(gemini.Options{
			Model:     cfg.Model,
			Key:       cfg.Key,
			BatchSize: cfg.BatchSize,
			Dimension: CanonicalDimension,
		})
	case "ollama":
		return ollama.NewClient(ollama.Options{
			Model:     cfg.Model,
			Endpoint:  cfg.Endpoint,
			Dimension: CanonicalDimension,
		}, rc)
	case "mock":
		return NewMockProvider(CanonicalDimension), nil
	}
	return nil, fmt.Errorf("embedding: unknown provider %q", cfg.Provider)
}
