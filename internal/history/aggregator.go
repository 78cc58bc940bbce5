package history

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crauzier/catalogsearch/pkg/kafka"
)

// Stats is a point-in-time summary of consumed history records.
type Stats struct {
	TotalQueries      int64        `json:"total_queries"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

// QueryCount pairs a query string with how often it was seen.
type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator consumes history records from Kafka and maintains rolling
// query statistics in memory.
type Aggregator struct {
	mu                sync.RWMutex
	totalQueries      atomic.Int64
	zeroResults       atomic.Int64
	latencies         []int64
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time

	consumer *kafka.Consumer
	logger   *slog.Logger
}

// NewAggregator creates an Aggregator fed by the given consumer.
func NewAggregator(consumer *kafka.Consumer) *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 10000),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		consumer:          consumer,
		logger:            slog.Default().With("component", "history-aggregator"),
	}
}

// Start blocks consuming the history topic until ctx is cancelled.
func (a *Aggregator) Start(ctx context.Context) error {
	a.logger.Info("history aggregator starting")
	return a.consumer.Start(ctx)
}

// HandleRecord returns the Kafka handler that feeds an Aggregator. Decode
// failures are logged and the message is skipped, never redelivered.
func HandleRecord(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		rec, err := kafka.DecodeJSON[Record](value)
		if err != nil {
			agg.logger.Error("failed to decode history record", "error", err)
			return nil
		}
		agg.record(rec)
		return nil
	}
}

// Record folds one record into the stats directly, bypassing Kafka. Used
// when the sink is not Kafka-backed but stats are still wanted.
func (a *Aggregator) Record(rec Record) {
	a.record(rec)
}

func (a *Aggregator) record(rec Record) {
	a.totalQueries.Add(1)
	if len(rec.Results) == 0 {
		a.zeroResults.Add(1)
	}
	a.mu.Lock()
	a.latencies = append(a.latencies, rec.LatencyMs)
	a.queryCounts[rec.Query]++
	if len(rec.Results) == 0 {
		a.zeroResultQueries[rec.Query]++
	}
	a.mu.Unlock()
}

// Stats computes a snapshot of the aggregated counters.
func (a *Aggregator) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := Stats{
		TotalQueries:    a.totalQueries.Load(),
		ZeroResultCount: a.zeroResults.Load(),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
	}
	return stats
}

// StatsHandler serves the current stats snapshot as JSON.
func StatsHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(agg.Stats()); err != nil {
			agg.logger.Error("failed to encode stats", "error", err)
		}
	}
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
