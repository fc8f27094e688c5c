package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"microfin-loans/internal/core/domain"

	kafkago "github.com/segmentio/kafka-go"
)

// KafkaPublisher writes domain events to a single Kafka topic. Events of the
// same loan share a key so they land on one partition in order.
type KafkaPublisher struct {
	writer *kafkago.Writer
	topic  string
}

// NewKafkaPublisher creates a publisher for topic on brokers
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafkago.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			WriteTimeout:           3 * time.Second,
			RequiredAcks:           kafkago.RequireAll,
			AllowAutoTopicCreation: true,
		},
		topic: topic,
	}
}

// Publish sends one event
func (p *KafkaPublisher) Publish(ctx context.Context, event domain.Event) error {
	msg, err := EncodeEvent(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// EncodeEvent converts an event to a Kafka message
func EncodeEvent(event domain.Event) (kafkago.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("encode event %s: %w", event.Type, err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.FormatUint(uint64(event.AggregateID), 10)),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID.String())},
		},
	}, nil
}

// LogPublisher prints events instead of sending them. Used when no brokers
// are configured.
type LogPublisher struct{}

// NewLogPublisher creates a log publisher
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

// Publish logs the event
func (LogPublisher) Publish(_ context.Context, event domain.Event) error {
	log.Printf("📨 Event %s [%s] aggregate=%d ref=%s", event.Type, event.ID, event.AggregateID, event.Reference)
	return nil
}

// Close is a no-op
func (LogPublisher) Close() error {
	return nil
}
