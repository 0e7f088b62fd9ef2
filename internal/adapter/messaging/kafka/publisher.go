package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"p2p-exchange/config"
	"p2p-exchange/internal/core/domain"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafkago.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// TradePublisher implements ports.TradeEventPublisher over Kafka.
// Messages are keyed by offer id so all events of one offer land on one partition in order.
type TradePublisher struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
	log     zerolog.Logger
}

// NewTradePublisher creates a publisher writing to cfg.Topic.
func NewTradePublisher(cfg config.KafkaConfig, log zerolog.Logger) *TradePublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafkago.RequireAll,
		MaxAttempts:  3,
	}
	return newTradePublisher(w, cfg.Topic, cfg.WriteTimeout, log)
}

func newTradePublisher(w messageWriter, topic string, timeout time.Duration, log zerolog.Logger) *TradePublisher {
	return &TradePublisher{writer: w, topic: topic, timeout: timeout, log: log}
}

// Publish writes one trade event.
func (p *TradePublisher) Publish(ctx context.Context, event domain.TradeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal trade event: %w", err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	msg := kafkago.Message{
		Key:   []byte(event.OfferID.String()),
		Value: payload,
		Time:  event.OccurredAt,
		Headers: []kafkago.Header{
			{Key: "event-type", Value: []byte(event.Type)},
			{Key: "trade-id", Value: []byte(event.TradeID.String())},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write trade event to %s: %w", p.topic, err)
	}

	p.log.Debug().
		Str("topic", p.topic).
		Str("event_type", string(event.Type)).
		Str("trade_id", event.TradeID.String()).
		Msg("trade event published")
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *TradePublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops events. Used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, domain.TradeEvent) error { return nil }

func (NoopPublisher) Close() error { return nil }
