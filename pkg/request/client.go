// Package request is the shared HTTP layer for every external provider.
// Requests to the same host are serialized through a per-host queue so that
// rate-limited APIs see one in-flight call at a time, and failed calls are
// retried with exponential backoff.
package request

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"roofline/pkg/version"
)

var defaultUserAgent = fmt.Sprintf("roofline/%s", version.Version)

// ClientConfig tunes retries and timeouts.
type ClientConfig struct {
	Retries   int
	Timeout   time.Duration
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	return c
}

// Client handles HTTP requests with per-host queuing and retry.
type Client struct {
	httpClient *http.Client
	cfg        ClientConfig
	backoff    Backoff

	queues map[string]chan job
	mu     sync.Mutex
}

type job struct {
	req      *http.Request
	headers  map[string]string
	respChan chan jobResult
}

type jobResult struct {
	body []byte
	err  error
}

// New creates a Client.
func New(cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		backoff:    Backoff{Base: cfg.BaseDelay, Max: cfg.MaxDelay},
		queues:     make(map[string]chan job),
	}
}

// Get performs a GET request with custom headers.
func (c *Client) Get(ctx context.Context, u string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, headers)
}

// PostJSON performs a POST with a JSON body and custom headers.
func (c *Client) PostJSON(ctx context.Context, u string, headers map[string]string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	merged := map[string]string{"Content-Type": "application/json"}
	for k, v := range headers {
		merged[k] = v
	}
	return c.do(req, merged)
}

func (c *Client) do(req *http.Request, headers map[string]string) ([]byte, error) {
	parsed, err := url.Parse(req.URL.String())
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	respChan := make(chan jobResult, 1)
	c.dispatch(parsed.Host, job{req: req, headers: headers, respChan: respChan})

	select {
	case <-req.Context().Done():
		return nil, req.Context().Err()
	case res := <-respChan:
		return res.body, res.err
	}
}

// dispatch sends the job to the host's queue, creating the worker if needed.
func (c *Client) dispatch(host string, j job) {
	c.mu.Lock()
	q, ok := c.queues[host]
	if !ok {
		q = make(chan job, 100)
		c.queues[host] = q
		go c.worker(host, q)
	}
	c.mu.Unlock()

	select {
	case q <- j:
	case <-j.req.Context().Done():
		j.respChan <- jobResult{err: j.req.Context().Err()}
	}
}

// worker processes requests for one host sequentially.
func (c *Client) worker(host string, q <-chan job) {
	for j := range q {
		if err := j.req.Context().Err(); err != nil {
			j.respChan <- jobResult{err: err}
			continue
		}

		hasUA := false
		for k, v := range j.headers {
			j.req.Header.Set(k, v)
			if http.CanonicalHeaderKey(k) == "User-Agent" {
				hasUA = true
			}
		}
		if !hasUA {
			j.req.Header.Set("User-Agent", defaultUserAgent)
		}

		body, err := c.executeWithBackoff(j.req)
		if err != nil {
			slog.Debug("request failed", "host", host, "error", err)
		}
		j.respChan <- jobResult{body: body, err: err}
	}
}

// executeWithBackoff attempts the request, retrying transient failures.
func (c *Client) executeWithBackoff(req *http.Request) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.Retries; attempt++ {
		if err := req.Context().Err(); err != nil {
			return nil, err
		}
		if attempt > 0 {
			select {
			case <-time.After(c.backoff.Delay(attempt - 1)):
			case <-req.Context().Done():
				return nil, req.Context().Err()
			}
			// The body reader is consumed by earlier attempts.
			if req.GetBody != nil {
				fresh, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("failed to rewind request body: %w", err)
				}
				req.Body = fresh
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctxErr := req.Context().Err(); ctxErr != nil {
				return nil, ctxErr
			}
			slog.Warn("request failed, retrying", "url", req.URL, "attempt", attempt+1, "error", err)
			lastErr = err
			continue
		}

		if retryableStatus(resp.StatusCode) {
			snippet := readSnippet(resp.Body)
			resp.Body.Close()
			slog.Warn("provider backoff", "status", resp.StatusCode, "url", req.URL, "attempt", attempt+1)
			lastErr = &StatusError{Code: resp.StatusCode, Body: snippet}
			continue
		}

		if resp.StatusCode >= 400 {
			snippet := readSnippet(resp.Body)
			resp.Body.Close()
			return nil, &StatusError{Code: resp.StatusCode, Body: snippet}
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		return body, nil
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code < 600)
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return string(b)
}
