// Package llm defines the small language-model surface the retrieval core
// needs: structured JSON generation from a single prompt.
package llm

import (
	"context"
	"fmt"

	"roofline/pkg/config"
	"roofline/pkg/llm/gemini"
	"roofline/pkg/llm/openaicompat"
	"roofline/pkg/request"
)

// Provider generates a JSON response for a prompt and unmarshals it into
// the target struct. Implementations must not retry internally; callers
// own the retry policy.
type Provider interface {
	GenerateJSON(ctx context.Context, prompt string, target any) error
	Name() string
}

// New builds the Provider selected by retrieval.llm_provider. The "rules"
// provider is handled by the retrieval package itself and is rejected here.
func New(cfg config.RetrievalConfig, rc *request.Client) (Provider, error) {
	switch cfg.LLMProvider {
	case "gemini":
		return gemini.NewClient(cfg.LLMModel, cfg.Key)
	case "openai":
		return openaicompat.NewClient(openaicompat.Options{
			BaseURL: "https://api.openai.com/v1",
			Model:   cfg.LLMModel,
			Key:     cfg.Key,
		}, rc)
	}
	return nil, fmt.Errorf("llm: unknown provider %q", cfg.LLMProvider)
}
