package history

import (
	"context"

	"github.com/crauzier/catalogsearch/pkg/kafka"
	"github.com/crauzier/catalogsearch/pkg/resilience"
)

// KafkaSink publishes records to the query-history topic. A circuit breaker
// sheds writes while the broker is unreachable instead of stalling the
// collector goroutine on every record.
type KafkaSink struct {
	producer *kafka.Producer
	breaker  *resilience.CircuitBreaker
}

// NewKafkaSink wraps a producer with a circuit breaker.
func NewKafkaSink(producer *kafka.Producer) *KafkaSink {
	return &KafkaSink{
		producer: producer,
		breaker:  resilience.NewCircuitBreaker("history-kafka", resilience.CircuitBreakerConfig{}),
	}
}

func (s *KafkaSink) Write(ctx context.Context, rec Record) error {
	return s.breaker.Execute(func() error {
		return s.producer.Publish(ctx, kafka.Event{Key: rec.Query, Value: rec})
	})
}

func (s *KafkaSink) Close() error {
	return s.producer.Close()
}
