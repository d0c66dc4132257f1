package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"roofline/pkg/catalog"
	"roofline/pkg/engine"
	"roofline/pkg/metadata"
	"roofline/pkg/request"
)

// batchTable is the scratch table each vector batch is staged through
// before the single UPDATE into the Silver table.
const batchTable = "embedding_batch_staging"

// Attacher reads embedding texts from a Silver table, embeds them in
// provider-sized batches and writes the vectors back. A failed batch leaves
// its rows with NULL vectors and the run continues; vectors are written
// all-or-nothing per batch.
type Attacher struct {
	eng      *engine.Engine
	provider Provider
	name     string
	delay    time.Duration
	retries  int
	backoff  request.Backoff
	log      *slog.Logger
}

// NewAttacher wires an attacher to the engine and a provider. name is the
// configuration tag of the provider ("voyage", "mock", ...); delay is the
// pause between provider calls.
func NewAttacher(eng *engine.Engine, provider Provider, name string, delay time.Duration) *Attacher {
	return &Attacher{
		eng:      eng,
		provider: provider,
		name:     name,
		delay:    delay,
		retries:  3,
		backoff:  request.Backoff{Base: time.Second, Max: 30 * time.Second},
		log:      slog.With("component", "embedding"),
	}
}

// Attach embeds every row of the entity's Silver table that has a non-empty
// embedding_text and a NULL vector, and reports what happened.
func (a *Attacher) Attach(ctx context.Context, entity catalog.Entity) (metadata.EmbeddingMetadata, error) {
	started := time.Now()

	table, err := catalog.TableFor(entity, catalog.Silver)
	if err != nil {
		return metadata.EmbeddingMetadata{}, err
	}
	pk, err := catalog.PrimaryKey(entity)
	if err != nil {
		return metadata.EmbeddingMetadata{}, err
	}

	ids, texts, err := a.pending(ctx, table, pk)
	if err != nil {
		return metadata.EmbeddingMetadata{}, err
	}
	a.log.Info("attaching embeddings", "entity", entity, "rows", len(ids),
		"provider", a.provider.ModelName(), "batch_size", a.provider.BatchSize())

	var embedded, failed int64
	var batches int
	size := a.provider.BatchSize()
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches++

		if batches > 1 && a.delay > 0 {
			select {
			case <-time.After(a.delay):
			case <-ctx.Done():
				return metadata.EmbeddingMetadata{}, ctx.Err()
			}
		}

		vectors, err := a.embedWithRetry(ctx, texts[start:end])
		if err != nil {
			a.log.Warn("embedding batch failed, rows keep NULL vectors",
				"entity", entity, "batch", batches, "rows", end-start, "error", err)
			failed += int64(end - start)
			continue
		}
		if err := a.writeBatch(ctx, table, pk, ids[start:end], vectors); err != nil {
			return metadata.EmbeddingMetadata{}, err
		}
		embedded += int64(end - start)
	}

	return metadata.NewEmbeddingMetadata(string(entity), a.name, a.provider.ModelName(),
		a.provider.Dimension(), int64(len(ids)), embedded, failed, batches, started, time.Now())
}

// pending lists rows that still need a vector.
func (a *Attacher) pending(ctx context.Context, table, pk string) (ids, texts []string, err error) {
	if err := engine.ValidateIdent(table); err != nil {
		return nil, nil, err
	}
	if err := engine.ValidateIdent(pk); err != nil {
		return nil, nil, err
	}
	query := fmt.Sprintf(
		"SELECT CAST(%s AS VARCHAR), embedding_text FROM %s WHERE embedding_text IS NOT NULL AND trim(embedding_text) <> '' AND embedding_vector IS NULL ORDER BY %s",
		pk, table, pk)
	rows, err := a.eng.Query(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, text string
		if err := rows.Scan(&id, &text); err != nil {
			return nil, nil, fmt.Errorf("embedding: scan %s: %w", table, err)
		}
		ids = append(ids, id)
		texts = append(texts, text)
	}
	return ids, texts, rows.Err()
}

func (a *Attacher) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < a.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(a.backoff.Delay(attempt - 1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		vectors, err := a.provider.Embed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if !request.IsRetryable(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("embedding: retries exhausted: %w", lastErr)
}

// writeBatch stages the vectors and applies them in one UPDATE, so a batch
// is either fully visible or not at all.
func (a *Attacher) writeBatch(ctx context.Context, table, pk string, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("embedding: %d ids for %d vectors", len(ids), len(vectors))
	}
	dim := a.provider.Dimension()

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE OR REPLACE TEMP TABLE %s (record_id VARCHAR, vec FLOAT[%d])", batchTable, dim)
	if err := a.eng.Exec(ctx, b.String()); err != nil {
		return err
	}

	b.Reset()
	fmt.Fprintf(&b, "INSERT INTO %s VALUES ", batchTable)
	for i, id := range ids {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		b.WriteString(engine.QuoteString(id))
		b.WriteString(", ")
		writeVectorLiteral(&b, vectors[i], dim)
		b.WriteString(")")
	}
	if err := a.eng.Exec(ctx, b.String()); err != nil {
		return err
	}

	update := fmt.Sprintf(
		"UPDATE %s SET embedding_vector = b.vec, embedding_generated_at = now() FROM %s b WHERE CAST(%s.%s AS VARCHAR) = b.record_id",
		table, batchTable, table, pk)
	if err := a.eng.Exec(ctx, update); err != nil {
		return err
	}
	return a.eng.DropTable(ctx, batchTable)
}

func writeVectorLiteral(b *strings.Builder, vec []float32, dim int) {
	b.WriteString("[")
	for i, v := range vec {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	fmt.Fprintf(b, "]::FLOAT[%d]", dim)
}
