// Package graphdb writes the materialized graph tables into Neo4j with
// idempotent MERGE batches.
package graphdb

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"roofline/pkg/catalog"
	"roofline/pkg/config"
)

// Writer owns the driver connection and batch settings.
type Writer struct {
	driver    neo4j.DriverWithContext
	database  string
	batchSize int
	log       *slog.Logger
}

// NewWriter connects and verifies connectivity. An unreachable server fails
// here rather than mid-pipeline.
func NewWriter(ctx context.Context, cfg config.GraphConfig) (*Writer, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("graphdb: create driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("graphdb: server unreachable: %w", err)
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Writer{
		driver:    driver,
		database:  cfg.Database,
		batchSize: batchSize,
		log:       slog.With("component", "graphdb"),
	}, nil
}

// Close releases the driver.
func (w *Writer) Close(ctx context.Context) error {
	return w.driver.Close(ctx)
}

// vectorLabels carry an indexed embedding property.
var vectorLabels = []catalog.GraphLabel{
	catalog.LabelProperty, catalog.LabelNeighborhood, catalog.LabelWikipediaArticle,
}

// EnsureSchema creates the uniqueness constraints and vector indexes. All
// statements are IF NOT EXISTS, so re-runs are no-ops.
func (w *Writer) EnsureSchema(ctx context.Context) error {
	session := w.newSession(ctx)
	defer session.Close(ctx)

	var stmts []string
	for _, label := range catalog.GraphLabels() {
		stmt, err := constraintCypher(label)
		if err != nil {
			return err
		}
		stmts = append(stmts, stmt)
	}
	for _, label := range vectorLabels {
		stmt, err := vectorIndexCypher(label)
		if err != nil {
			return err
		}
		stmts = append(stmts, stmt)
	}

	for _, stmt := range stmts {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("graphdb: ensure schema: %w", err)
		}
	}
	w.log.Info("schema ensured", "constraints", len(catalog.GraphLabels()),
		"vector_indexes", len(vectorLabels))
	return nil
}

func (w *Writer) newSession(ctx context.Context) neo4j.SessionWithContext {
	return w.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: w.database})
}

// constraintCypher renders the per-label uniqueness constraint.
func constraintCypher(label catalog.GraphLabel) (string, error) {
	key, err := catalog.NodeKey(label)
	if err != nil {
		return "", err
	}
	prefix, err := catalog.NodeIDPrefix(label)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"CREATE CONSTRAINT %s_%s_unique IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE",
		prefix, key, label, key), nil
}

// vectorIndexCypher renders the per-label embedding index.
func vectorIndexCypher(label catalog.GraphLabel) (string, error) {
	prefix, err := catalog.NodeIDPrefix(label)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"CREATE VECTOR INDEX %s_embedding IF NOT EXISTS FOR (n:%s) ON (n.embedding) "+
			"OPTIONS {indexConfig: {`vector.dimensions`: 1024, `vector.similarity_function`: 'cosine'}}",
		prefix, label), nil
}
