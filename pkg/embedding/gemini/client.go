// Package gemini implements the embedding provider for the Gemini API.
package gemini

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// Options configure the Gemini client.
type Options struct {
	Model     string
	Key       string
	BatchSize int // zero uses the provider default of 100
	Dimension int
}

// Client calls the Gemini embedding models. gemini-embedding-001 accepts an
// output dimensionality parameter, which pins vectors to the pipeline's
// canonical size.
type Client struct {
	model     string
	key       string
	batchSize int
	dim       int

	mu     sync.Mutex
	client *genai.Client // created on first use
}

// NewClient validates the configuration. A missing key fails here, before
// any network call; the API client itself is created lazily.
func NewClient(opts Options) (*Client, error) {
	if opts.Key == "" {
		return nil, fmt.Errorf("gemini: missing API key (set GOOGLE_API_KEY)")
	}
	if opts.Model == "" {
		opts.Model = "gemini-embedding-001"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	return &Client{
		model:     opts.Model,
		key:       opts.Key,
		batchSize: opts.BatchSize,
		dim:       opts.Dimension,
	}, nil
}

func (c *Client) ensureClient(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: c.key})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	c.client = client
	return client, nil
}

// Embed generates one vector per input text.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) > c.batchSize {
		return nil, fmt.Errorf("gemini: batch of %d exceeds limit %d", len(texts), c.batchSize)
	}

	client, err := c.ensureClient(ctx)
	if err != nil {
		return nil, err
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.Text(t)...)
	}

	cfg := &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr(int32(c.dim)),
	}
	resp, err := client.Models.EmbedContent(ctx, c.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini: got %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if len(e.Values) != c.dim {
			return nil, fmt.Errorf("gemini: model %s returned dimension %d, want %d", c.model, len(e.Values), c.dim)
		}
		out[i] = e.Values
	}
	return out, nil
}

// BatchSize reports the per-call input limit.
func (c *Client) BatchSize() int { return c.batchSize }

// Dimension reports the vector size this client produces.
func (c *Client) Dimension() int { return c.dim }

// ModelName reports the configured model.
func (c *Client) ModelName() string { return c.model }
