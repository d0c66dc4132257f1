// Package voyage implements the embedding provider for the Voyage AI API.
package voyage

import (
	"context"
	"encoding/json"
	"fmt"

	"roofline/pkg/request"
)

const defaultEndpoint = "https://api.voyageai.com/v1/embeddings"

// Options configure the Voyage client.
type Options struct {
	Model     string
	Key       string
	BatchSize int // zero uses the provider default of 128
	Dimension int
	Endpoint  string // overridable for tests
}

// Client calls the Voyage embeddings endpoint. voyage-3 natively produces
// 1024-dimensional vectors, matching the pipeline's canonical dimension.
type Client struct {
	rc        *request.Client
	endpoint  string
	model     string
	key       string
	batchSize int
	dim       int
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// NewClient validates the configuration. A missing key fails here, before
// any network call.
func NewClient(opts Options, rc *request.Client) (*Client, error) {
	if opts.Key == "" {
		return nil, fmt.Errorf("voyage: missing API key (set VOYAGE_API_KEY)")
	}
	if opts.Model == "" {
		opts.Model = "voyage-3"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 128
	}
	if opts.Endpoint == "" {
		opts.Endpoint = defaultEndpoint
	}
	return &Client{
		rc:        rc,
		endpoint:  opts.Endpoint,
		model:     opts.Model,
		key:       opts.Key,
		batchSize: opts.BatchSize,
		dim:       opts.Dimension,
	}, nil
}

// Embed generates one vector per input text.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) > c.batchSize {
		return nil, fmt.Errorf("voyage: batch of %d exceeds limit %d", len(texts), c.batchSize)
	}

	body, err := json.Marshal(embedRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("voyage: marshal request: %w", err)
	}

	headers := map[string]string{"Authorization": "Bearer " + c.key}
	respBody, err := c.rc.PostJSON(ctx, c.endpoint, headers, body)
	if err != nil {
		return nil, fmt.Errorf("voyage: %w", err)
	}

	var resp embedResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("voyage: unmarshal response: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("voyage: got %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("voyage: embedding index %d out of range", d.Index)
		}
		if len(d.Embedding) != c.dim {
			return nil, fmt.Errorf("voyage: model %s returned dimension %d, want %d", c.model, len(d.Embedding), c.dim)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// BatchSize reports the per-call input limit.
func (c *Client) BatchSize() int { return c.batchSize }

// Dimension reports the vector size this client produces.
func (c *Client) Dimension() int { return c.dim }

// ModelName reports the configured model.
func (c *Client) ModelName() string { return c.model }
