package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/crauzier/catalogsearch/pkg/postgres"
	"github.com/crauzier/catalogsearch/pkg/resilience"
)

// PostgresSink stores records in a `query_history` table:
//
//	CREATE TABLE query_history (
//	    id          UUID PRIMARY KEY,
//	    query       TEXT NOT NULL,
//	    executed_at TIMESTAMPTZ NOT NULL,
//	    latency_ms  BIGINT NOT NULL,
//	    metadata    JSONB NOT NULL,
//	    results     JSONB NOT NULL
//	);
type PostgresSink struct {
	db    *postgres.Client
	retry resilience.RetryConfig
}

// NewPostgresSink creates a sink over an open client. Writes are retried
// with backoff since transient connection drops are common on small pools.
func NewPostgresSink(db *postgres.Client) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Write(ctx context.Context, rec Record) error {
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling history metadata: %w", err)
	}
	results, err := json.Marshal(rec.Results)
	if err != nil {
		return fmt.Errorf("marshaling history results: %w", err)
	}
	return resilience.Retry(ctx, "history-insert", s.retry, func() error {
		_, err := s.db.DB.ExecContext(ctx,
			`INSERT INTO query_history (id, query, executed_at, latency_ms, metadata, results)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			rec.ID, rec.Query, rec.Timestamp, rec.LatencyMs, meta, results,
		)
		return err
	})
}

func (s *PostgresSink) Close() error {
	return s.db.Close()
}

// Recent returns the latest n records, newest first.
func (s *PostgresSink) Recent(ctx context.Context, n int) ([]Record, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, query, executed_at, latency_ms, metadata, results
		 FROM query_history ORDER BY executed_at DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var meta, results []byte
		if err := rows.Scan(&rec.ID, &rec.Query, &rec.Timestamp, &rec.LatencyMs, &meta, &results); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling history metadata: %w", err)
		}
		if err := json.Unmarshal(results, &rec.Results); err != nil {
			return nil, fmt.Errorf("unmarshaling history results: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
