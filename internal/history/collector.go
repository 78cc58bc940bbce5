package history

import (
	"context"
	"log/slog"

	"github.com/crauzier/catalogsearch/pkg/metrics"
)

// Collector decouples the query path from sink I/O. Track never blocks:
// when the buffer is full the record is dropped and counted.
type Collector struct {
	sink     Sink
	recordCh chan Record
	metrics  *metrics.Metrics
	logger   *slog.Logger
	done     chan struct{}
}

// NewCollector creates a Collector over the given sink.
func NewCollector(sink Sink, bufferSize int, m *metrics.Metrics) *Collector {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &Collector{
		sink:     sink,
		recordCh: make(chan Record, bufferSize),
		metrics:  m,
		logger:   slog.Default().With("component", "history-collector"),
		done:     make(chan struct{}),
	}
}

// Start launches the writer goroutine. Sink failures are logged and counted
// but never surfaced to the query path.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case rec, ok := <-c.recordCh:
				if !ok {
					return
				}
				c.write(ctx, rec)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("history collector started", "buffer_size", cap(c.recordCh))
}

// Track enqueues a record without blocking.
func (c *Collector) Track(rec Record) {
	select {
	case c.recordCh <- rec:
	default:
		c.logger.Warn("history record dropped (buffer full)", "query", rec.Query)
		if c.metrics != nil {
			c.metrics.HistoryRecordsTotal.WithLabelValues("dropped").Inc()
		}
	}
}

// Close stops accepting records, waits for the writer goroutine to drain
// the buffer, and closes the sink.
func (c *Collector) Close() error {
	close(c.recordCh)
	<-c.done
	return c.sink.Close()
}

func (c *Collector) write(ctx context.Context, rec Record) {
	if err := c.sink.Write(ctx, rec); err != nil {
		c.logger.Error("failed to write history record",
			"record_id", rec.ID,
			"error", err,
		)
		if c.metrics != nil {
			c.metrics.HistoryRecordsTotal.WithLabelValues("error").Inc()
		}
		return
	}
	if c.metrics != nil {
		c.metrics.HistoryRecordsTotal.WithLabelValues("written").Inc()
	}
}

func (c *Collector) drainRemaining() {
	for {
		select {
		case rec, ok := <-c.recordCh:
			if !ok {
				return
			}
			c.write(context.Background(), rec)
		default:
			return
		}
	}
}
