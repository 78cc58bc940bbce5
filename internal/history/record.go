// Package history records executed queries. Records flow through an async
// collector into a pluggable sink (file, Kafka, or PostgreSQL) so the query
// path never blocks on history I/O.
package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/crauzier/catalogsearch/internal/search/ranker"
)

// Metadata captures corpus-level counters at query time.
type Metadata struct {
	TotalDocuments    int `json:"total_documents"`
	FilteredDocuments int `json:"filtered_documents"`
}

// Record is one executed query with its ranked results.
type Record struct {
	ID        string          `json:"id"`
	Query     string          `json:"query"`
	Timestamp time.Time       `json:"timestamp"`
	LatencyMs int64           `json:"latency_ms"`
	Metadata  Metadata        `json:"metadata"`
	Results   []ranker.Result `json:"results"`
}

// NewRecord stamps a record with a fresh id and the current UTC time.
func NewRecord(query string, latency time.Duration, meta Metadata, results []ranker.Result) Record {
	return Record{
		ID:        uuid.NewString(),
		Query:     query,
		Timestamp: time.Now().UTC(),
		LatencyMs: latency.Milliseconds(),
		Metadata:  meta,
		Results:   results,
	}
}
