package outbox

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// Producer writes events to the activity event stream. All outbox rows go to
// one topic; partition keys keep per-club and per-activity ordering.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a Producer for the given brokers.
func NewProducer(brokers []string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        Topic,
			RequiredAcks: kafka.RequireAll,
			Compression:  kafka.Snappy,
			Async:        false,
		},
	}
}

// WriteMessages publishes the messages, blocking until acknowledged.
func (p *Producer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return p.writer.WriteMessages(ctx, msgs...)
}

// Close releases the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
