package history

import "context"

// Sink persists query-history records.
type Sink interface {
	Write(ctx context.Context, rec Record) error
	Close() error
}

// NopSink discards every record. Used when history is disabled.
type NopSink struct{}

func (NopSink) Write(context.Context, Record) error { return nil }
func (NopSink) Close() error                        { return nil }
