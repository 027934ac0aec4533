// Package kafka publishes outbox events to a Kafka topic.
package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"shopilent/pkg/logger"
)

// Config holds producer settings.
type Config struct {
	Brokers    []string
	Topic      string
	MaxRetries int
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes keyed messages to a single topic.
type Producer struct {
	writer messageWriter
	topic  string
}

// NewProducer creates a producer. Connections are opened lazily by the writer.
func NewProducer(cfg Config) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka producer requires at least one broker")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            cfg.MaxRetries,
		WriteBackoffMin:        100 * time.Millisecond,
		WriteBackoffMax:        time.Second,
		// the outbox relays one message per call
		BatchSize:    1,
		BatchTimeout: 5 * time.Millisecond,
	}

	logger.Info(context.Background(), "Kafka producer created", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return &Producer{writer: writer, topic: cfg.Topic}, nil
}

// Publish writes body keyed by key so events of one aggregate stay ordered.
// The message id and event type travel in headers.
func (p *Producer) Publish(ctx context.Context, id, eventType, key string, body []byte) error {
	msg := kafka.Message{
		Key:   []byte(key),
		Value: body,
		Headers: []kafka.Header{
			{Key: "message_id", Value: []byte(id)},
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		logger.Error(ctx, "Failed to send Kafka message", "topic", p.topic, "key", key, "error", err)
		return fmt.Errorf("failed to publish to kafka: %w", err)
	}

	logger.Debug(ctx, "Kafka message sent", "topic", p.topic, "key", key, "event_type", eventType)
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
