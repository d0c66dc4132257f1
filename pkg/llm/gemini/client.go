// Package gemini implements the llm Provider on the Gemini API in JSON mode.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// Client calls Gemini with application/json response formatting.
type Client struct {
	model string
	key   string

	mu     sync.Mutex
	client *genai.Client // created on first use
}

// NewClient validates the configuration. The underlying API client is
// created lazily on the first generation call.
func NewClient(model, key string) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("gemini: missing API key (set GOOGLE_API_KEY)")
	}
	if model == "" {
		model = "gemini-2.5-flash-lite"
	}
	return &Client{model: model, key: key}, nil
}

// Name identifies the provider in logs and metadata.
func (c *Client) Name() string {
	return "gemini"
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

// GenerateJSON sends the prompt in JSON mode and unmarshals the response
// into target.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, target any) error {
	client, err := c.ensureClient(ctx)
	if err != nil {
		return err
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.1),
	}
	resp, err := client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
	if err != nil {
		return fmt.Errorf("gemini: generate: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return err
	}
	cleaned := cleanJSONBlock(text)
	if err := json.Unmarshal([]byte(cleaned), target); err != nil {
		return fmt.Errorf("gemini: bad JSON response: %w (raw: %s)", err, cleaned)
	}
	return nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini: no candidates returned")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}

// cleanJSONBlock strips a markdown code fence; JSON mode still occasionally
// wraps output in ```json fences.
func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimSuffix(text, "```")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
	}
	return strings.TrimSpace(text)
}
