// Package search indexes the Gold layer into Elasticsearch and owns the
// index mappings shared with the retrieval front end.
package search

import (
	"fmt"
	"log/slog"

	"github.com/elastic/go-elasticsearch/v8"

	"roofline/pkg/config"
)

// Client wraps the Elasticsearch client with the sink configuration.
type Client struct {
	es        *elasticsearch.Client
	prefix    string
	batchSize int
	log       *slog.Logger
}

// NewClient builds the client and pings the cluster. An unreachable cluster
// fails here rather than mid-pipeline.
func NewClient(cfg config.SearchConfig) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("search: create client: %w", err)
	}
	res, err := es.Info()
	if err != nil {
		return nil, fmt.Errorf("search: cluster unreachable: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search: cluster info failed: %s", res.String())
	}

	batchSize := cfg.BulkBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Client{
		es:        es,
		prefix:    cfg.IndexPrefix,
		batchSize: batchSize,
		log:       slog.With("component", "search"),
	}, nil
}

// ES exposes the underlying client for the retrieval front end.
func (c *Client) ES() *elasticsearch.Client {
	return c.es
}

// IndexFor resolves the index name for an entity under a prefix.
func IndexFor(prefix, entity string) string {
	if prefix == "" {
		return entity
	}
	return prefix + entity
}

// Index resolves the index name for an entity under this client's prefix.
func (c *Client) Index(entity string) string {
	return IndexFor(c.prefix, entity)
}
