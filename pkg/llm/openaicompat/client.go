// Package openaicompat implements the llm Provider against any
// OpenAI-compatible chat completions endpoint.
package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"roofline/pkg/request"
)

// Options configure the endpoint and model.
type Options struct {
	BaseURL string // endpoint root, e.g. https://api.openai.com/v1
	Model   string
	Key     string
}

// Client speaks the chat completions protocol in json_object mode.
type Client struct {
	rc      *request.Client
	baseURL string
	model   string
	key     string
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Temperature    float32         `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewClient validates the configuration.
func NewClient(opts Options, rc *request.Client) (*Client, error) {
	if opts.Key == "" {
		return nil, fmt.Errorf("openaicompat: missing API key (set OPENAI_API_KEY)")
	}
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("openaicompat: baseURL is required")
	}
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	return &Client{
		rc:      rc,
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		model:   opts.Model,
		key:     opts.Key,
	}, nil
}

// Name identifies the provider in logs and metadata.
func (c *Client) Name() string {
	return "openai"
}

// GenerateJSON sends the prompt in json_object mode and unmarshals the
// response into target.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, target any) error {
	// json_object mode requires the word "json" somewhere in the prompt.
	if !strings.Contains(strings.ToLower(prompt), "json") {
		prompt += " Respond in JSON."
	}

	body, err := json.Marshal(chatRequest{
		Model:          c.model,
		Messages:       []chatMessage{{Role: "user", Content: prompt}},
		ResponseFormat: &responseFormat{Type: "json_object"},
		Temperature:    0.1,
	})
	if err != nil {
		return fmt.Errorf("openaicompat: marshal request: %w", err)
	}

	headers := map[string]string{"Authorization": "Bearer " + c.key}
	respBody, err := c.rc.PostJSON(ctx, c.baseURL+"/chat/completions", headers, body)
	if err != nil {
		return fmt.Errorf("openaicompat: %w", err)
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("openaicompat: unmarshal response: %w", err)
	}
	if resp.Error != nil {
		return fmt.Errorf("openaicompat: api error: %s (%s)", resp.Error.Message, resp.Error.Type)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("openaicompat: api returned no choices")
	}

	cleaned := cleanJSONBlock(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(cleaned), target); err != nil {
		return fmt.Errorf("openaicompat: bad JSON response: %w (raw: %s)", err, cleaned)
	}
	return nil
}

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
