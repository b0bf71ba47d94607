// Package kafka publishes domain events to Kafka.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
)

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes JSON events with a correlation id header.
// The topic is chosen per message, so one writer serves every event type.
type Publisher struct {
	writer messageWriter
	logger *common.Logger
}

// NewPublisher creates a publisher for the given brokers.
func NewPublisher(brokers []string, logger *common.Logger) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
		},
		logger: logger,
	}
}

func (p *Publisher) Publish(ctx context.Context, topic string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event for %s: %w", topic, err)
	}

	id := uuid.New().String()
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(id),
		Value: data,
		Headers: []kafka.Header{
			{Key: "correlation_id", Value: []byte(id)},
			{Key: "content_type", Value: []byte("application/json")},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.logger.Debug().Str("topic", topic).Str("correlation_id", id).Msg("Event published")
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Compile-time check
var _ interfaces.EventPublisher = (*Publisher)(nil)
