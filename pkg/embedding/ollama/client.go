// Package ollama implements the embedding provider for a local Ollama
// server. Ollama embeds one prompt per request, so the batch size is 1.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"roofline/pkg/request"
)

const defaultEndpoint = "http://localhost:11434"

// Options configure the Ollama client.
type Options struct {
	Model     string
	Endpoint  string // server root, default http://localhost:11434
	Dimension int
}

// Client calls a local Ollama server's embeddings endpoint.
type Client struct {
	rc       *request.Client
	endpoint string
	model    string
	dim      int
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// NewClient validates the configuration. The configured model must produce
// vectors of the requested dimension; a mismatch surfaces on the first
// Embed call since Ollama has no dimension parameter.
func NewClient(opts Options, rc *request.Client) (*Client, error) {
	if opts.Model == "" {
		return nil, fmt.Errorf("ollama: embedding.model is required")
	}
	if opts.Endpoint == "" {
		opts.Endpoint = defaultEndpoint
	}
	return &Client{
		rc:       rc,
		endpoint: strings.TrimSuffix(opts.Endpoint, "/"),
		model:    opts.Model,
		dim:      opts.Dimension,
	}, nil
}

// Embed generates a vector for a single text.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) > 1 {
		return nil, fmt.Errorf("ollama: batch of %d exceeds limit 1", len(texts))
	}

	body, err := json.Marshal(embedRequest{Model: c.model, Prompt: texts[0]})
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal request: %w", err)
	}

	respBody, err := c.rc.PostJSON(ctx, c.endpoint+"/api/embeddings", nil, body)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}

	var resp embedResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("ollama: unmarshal response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("ollama: api error: %s", resp.Error)
	}
	if len(resp.Embedding) != c.dim {
		return nil, fmt.Errorf("ollama: model %s returned dimension %d, want %d", c.model, len(resp.Embedding), c.dim)
	}
	return [][]float32{resp.Embedding}, nil
}

// BatchSize reports the per-call input limit; Ollama embeds one at a time.
func (c *Client) BatchSize() int { return 1 }

// Dimension reports the vector size this client produces.
func (c *Client) Dimension() int { return c.dim }

// ModelName reports the configured model.
func (c *Client) ModelName() string { return c.model }
