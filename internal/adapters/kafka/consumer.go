package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"exconnect/pkg/errors"
	"exconnect/pkg/logger"
)

// Consumer reads published envelopes, mainly for the CLI's stream mode.
type Consumer struct {
	reader *kafka.Reader
	log    *logger.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg ConsumerConfig) *Consumer {
	if cfg.MinBytes == 0 {
		cfg.MinBytes = 1
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 10e6 // 10MB
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		StartOffset: kafka.LastOffset,
	})

	return &Consumer{
		reader: reader,
		log:    logger.Get().With("component", "kafka_consumer", "topic", cfg.Topic),
	}
}

// EnvelopeHandler processes one decoded envelope.
type EnvelopeHandler func(ctx context.Context, env Envelope) error

// Consume reads until ctx is done. Undecodable messages and handler
// failures are logged and skipped.
func (c *Consumer) Consume(ctx context.Context, handler EnvelopeHandler) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warnw("Failed to read message", "error", err)
			continue
		}

		env, err := DecodeEnvelope(msg.Value)
		if err != nil {
			c.log.Warnw("Skipping message", "key", string(msg.Key), "error", err)
			continue
		}
		if err := handler(ctx, env); err != nil {
			c.log.Warnw("Failed to handle message", "key", string(msg.Key), "error", err)
		}
	}
}

// DecodeEnvelope parses a message value written by Producer.
func DecodeEnvelope(value []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return Envelope{}, errors.Wrap(err, "decode envelope")
	}
	if env.Exchange == "" || env.Kind == "" {
		return Envelope{}, errors.Wrap(errors.ErrInvalidInput, "envelope without exchange or kind")
	}
	return env, nil
}

// Close closes the consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
