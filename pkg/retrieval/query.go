package retrieval

import "time"

// DefaultSize is the hit count when the query does not set one.
const DefaultSize = 10

// Filters narrow a search. Zero values mean "no constraint". Explicit
// filters win over extracted location intent.
type Filters struct {
	City         string
	State        string
	Neighborhood string
	ZipCode      string
	MinPrice     float64
	MaxPrice     float64
	MinBedrooms  int
	PropertyType string
}

// Query is one retrieval request.
type Query struct {
	Text    string
	Size    int
	Entity  string // index entity, default "properties"
	Filters Filters
}

func (q Query) size() int {
	if q.Size <= 0 {
		return DefaultSize
	}
	return q.Size
}

func (q Query) entity() string {
	if q.Entity == "" {
		return "properties"
	}
	return q.Entity
}

// Hit is one search result.
type Hit struct {
	ID     string
	Score  float64
	Source map[string]any
}

// Result is the response to one query. Took is the engine-reported query
// time; TotalTime is wall time including embedding, transport and retries.
type Result struct {
	Hits           []Hit
	Total          int64
	Took           time.Duration
	TotalTime      time.Duration
	EmbedTime      time.Duration
	Intent         LocationIntent
	RewrittenQuery string
}
