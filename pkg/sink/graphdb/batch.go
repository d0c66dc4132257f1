package graphdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"roofline/pkg/catalog"
	"roofline/pkg/engine"
)

// WriteResult reports one label's or relationship type's run.
type WriteResult struct {
	Target  string
	Written int64
}

// WriteNodes merges every node table into the graph, one UNWIND batch per
// chunk.
func (w *Writer) WriteNodes(ctx context.Context, eng *engine.Engine) ([]WriteResult, error) {
	var out []WriteResult
	for _, label := range catalog.GraphLabels() {
		table, err := catalog.NodeTable(label)
		if err != nil {
			return out, err
		}
		exists, err := eng.TableExists(ctx, table)
		if err != nil {
			return out, err
		}
		if !exists {
			w.log.Warn("node table missing, skipping", "table", table)
			continue
		}
		rows, err := readRows(ctx, eng, "SELECT * FROM "+table)
		if err != nil {
			return out, err
		}
		key, err := catalog.NodeKey(label)
		if err != nil {
			return out, err
		}
		written, err := w.mergeNodes(ctx, label, key, rows)
		if err != nil {
			return out, fmt.Errorf("graphdb: write %s nodes: %w", label, err)
		}
		w.log.Info("nodes merged", "label", label, "count", written)
		out = append(out, WriteResult{Target: string(label), Written: written})
	}
	return out, nil
}

func nodeMergeCypher(label catalog.GraphLabel, key string) string {
	return fmt.Sprintf(
		"UNWIND $rows AS r MERGE (n:%s {%s: r.pk}) SET n += r.props RETURN count(*) AS merged",
		label, key)
}

func (w *Writer) mergeNodes(ctx context.Context, label catalog.GraphLabel, key string, rows []map[string]any) (int64, error) {
	cypher := nodeMergeCypher(label, key)

	var written int64
	for _, chunk := range chunked(rows, w.batchSize) {
		params := make([]map[string]any, 0, len(chunk))
		for _, row := range chunk {
			pk, ok := row[key]
			if !ok || pk == nil {
				continue
			}
			params = append(params, map[string]any{"pk": pk, "props": row})
		}
		if len(params) == 0 {
			continue
		}
		merged, err := w.runChunk(ctx, cypher, map[string]any{"rows": params})
		if err != nil {
			return written, err
		}
		written += merged
	}
	return written, nil
}

// levelEndpoints maps a geographic hierarchy level to its node label and key.
var levelEndpoints = map[string]struct {
	Label catalog.GraphLabel
	Key   string
}{
	"neighborhood": {catalog.LabelNeighborhood, "neighborhood_id"},
	"city":         {catalog.LabelCity, "id"},
	"county":       {catalog.LabelCounty, "id"},
	"state":        {catalog.LabelState, "id"},
}

// WriteRelationships merges every edge table. Endpoints are matched by
// primary key, so edges only land between nodes that were written.
func (w *Writer) WriteRelationships(ctx context.Context, eng *engine.Engine) ([]WriteResult, error) {
	var out []WriteResult
	for _, spec := range catalog.RelSpecs() {
		exists, err := eng.TableExists(ctx, spec.Table)
		if err != nil {
			return out, err
		}
		if !exists {
			w.log.Warn("edge table missing, skipping", "table", spec.Table)
			continue
		}
		rows, err := readRows(ctx, eng, "SELECT * FROM "+spec.Table)
		if err != nil {
			return out, err
		}

		var written int64
		if spec.Dynamic {
			written, err = w.mergeDynamicEdges(ctx, spec, rows)
		} else {
			written, err = w.mergeEdges(ctx, spec, rows)
		}
		if err != nil {
			return out, fmt.Errorf("graphdb: write %s edges: %w", spec.Type, err)
		}
		w.log.Info("relationships merged", "type", spec.Type, "count", written)
		out = append(out, WriteResult{Target: string(spec.Type), Written: written})
	}
	return out, nil
}

func edgeMergeCypher(rel catalog.RelType, from, to catalog.GraphLabel, fromKey, toKey string, weighted bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "UNWIND $rows AS r MATCH (a:%s {%s: r.from}) MATCH (b:%s {%s: r.to}) MERGE (a)-[e:%s]->(b)",
		from, fromKey, to, toKey, rel)
	if weighted {
		b.WriteString(" SET e.weight = r.weight")
	}
	b.WriteString(" RETURN count(*) AS merged")
	return b.String()
}

func (w *Writer) mergeEdges(ctx context.Context, spec catalog.RelSpec, rows []map[string]any) (int64, error) {
	fromKey, err := catalog.NodeKey(spec.From)
	if err != nil {
		return 0, err
	}
	toKey, err := catalog.NodeKey(spec.To)
	if err != nil {
		return 0, err
	}
	cypher := edgeMergeCypher(spec.Type, spec.From, spec.To, fromKey, toKey, spec.Weighted)

	var written int64
	for _, chunk := range chunked(rows, w.batchSize) {
		params := make([]map[string]any, 0, len(chunk))
		for _, row := range chunk {
			from, okFrom := nodeIDKey(row["from_id"])
			to, okTo := nodeIDKey(row["to_id"])
			if !okFrom || !okTo {
				continue
			}
			p := map[string]any{"from": from, "to": to}
			if spec.Weighted {
				p["weight"] = row["weight"]
			}
			params = append(params, p)
		}
		if len(params) == 0 {
			continue
		}
		merged, err := w.runChunk(ctx, cypher, map[string]any{"rows": params})
		if err != nil {
			return written, err
		}
		written += merged
	}
	return written, nil
}

// mergeDynamicEdges groups hierarchy rows by endpoint level pair, since each
// pair needs its own MATCH labels.
func (w *Writer) mergeDynamicEdges(ctx context.Context, spec catalog.RelSpec, rows []map[string]any) (int64, error) {
	type pair struct{ from, to string }
	grouped := map[pair][]map[string]any{}
	for _, row := range rows {
		fromLevel, _ := row["from_level"].(string)
		toLevel, _ := row["to_level"].(string)
		if _, ok := levelEndpoints[fromLevel]; !ok {
			continue
		}
		if _, ok := levelEndpoints[toLevel]; !ok {
			continue
		}
		grouped[pair{fromLevel, toLevel}] = append(grouped[pair{fromLevel, toLevel}], row)
	}

	var written int64
	for p, groupRows := range grouped {
		from := levelEndpoints[p.from]
		to := levelEndpoints[p.to]
		cypher := edgeMergeCypher(spec.Type, from.Label, to.Label, from.Key, to.Key, false)

		for _, chunk := range chunked(groupRows, w.batchSize) {
			params := make([]map[string]any, 0, len(chunk))
			for _, row := range chunk {
				fromID, okFrom := nodeIDKey(row["from_id"])
				toID, okTo := nodeIDKey(row["to_id"])
				if !okFrom || !okTo {
					continue
				}
				params = append(params, map[string]any{"from": fromID, "to": toID})
			}
			if len(params) == 0 {
				continue
			}
			merged, err := w.runChunk(ctx, cypher, map[string]any{"rows": params})
			if err != nil {
				return written, err
			}
			written += merged
		}
	}
	return written, nil
}

// runChunk executes one write transaction with a bounded transient retry on
// top of the driver's own routing retries. It returns the merge count the
// statement reports, so rows whose endpoint MATCH found nothing are not
// counted as written.
func (w *Writer) runChunk(ctx context.Context, cypher string, params map[string]any) (int64, error) {
	session := w.newSession(ctx)
	defer session.Close(ctx)

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		merged, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			res, err := tx.Run(ctx, cypher, params)
			if err != nil {
				return nil, err
			}
			rec, err := res.Single(ctx)
			if err != nil {
				return nil, err
			}
			v, _ := rec.Get("merged")
			n, _ := v.(int64)
			return n, nil
		})
		if err == nil {
			n, _ := merged.(int64)
			return n, nil
		}
		lastErr = err
		if !neo4j.IsRetryable(err) {
			return 0, err
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * time.Second):
		}
	}
	return 0, lastErr
}

// nodeIDKey strips the label prefix off a graph node ID, leaving the pk the
// MATCH clauses key on.
func nodeIDKey(v any) (string, bool) {
	id, ok := v.(string)
	if !ok || id == "" {
		return "", false
	}
	_, pk, found := strings.Cut(id, ":")
	if !found || pk == "" {
		return "", false
	}
	return pk, true
}

// chunked splits rows into batches of at most size.
func chunked(rows []map[string]any, size int) [][]map[string]any {
	if size <= 0 {
		size = 1
	}
	var out [][]map[string]any
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}

// readRows drains a query into generic property maps the driver can take as
// parameters. List values are normalized element-wise.
func readRows(ctx context.Context, eng *engine.Engine, query string) ([]map[string]any, error) {
	rows, err := eng.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("graphdb: scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if v := normalizeValue(vals[i]); v != nil {
				row[col] = v
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// normalizeValue converts engine values into types the driver serializes:
// list elements recurse, float32 widens, byte slices become strings.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(t)
	case float32:
		return float64(t)
	case []float32:
		out := make([]any, len(t))
		for i, f := range t {
			out[i] = float64(f)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}
