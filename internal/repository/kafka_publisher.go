package repository

import (
	"context"
	"fmt"

	"DWML/internal/domain/models"
	drepo "DWML/internal/domain/repository"
)

// messageWriter is the subset of pkg/kafka.Producer the publisher needs.
type messageWriter interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaPublisher implements Publisher for Kafka. Entries are keyed by symbol so the
// log of one symbol stays ordered within its partition.
type KafkaPublisher struct {
	producer messageWriter
	topic    string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishQueryLog(ctx context.Context, e *models.QueryLogEntry) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(e.Symbol), e); err != nil {
		return fmt.Errorf("publish query log %s: %w: %v", e.Symbol, models.ErrPersistence, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ drepo.Publisher = (*KafkaPublisher)(nil)
