package events

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// Publisher emits message lifecycle events for downstream consumers
// (notification fan-out, analytics). Delivery of these events is
// best-effort; the relay never blocks a send on them.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
	Close() error
}

// Event types on the lifecycle topic.
const (
	TypeMessageSent      = "message_sent"
	TypeMessageDelivered = "message_delivered"
	TypeMessageSeen      = "message_seen"
)

type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
	At      string `json:"at"`
}

// KafkaPublisher writes lifecycle events to a single topic.
type KafkaPublisher struct {
	writer *kafkago.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
		Async:        false,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	b, err := json.Marshal(envelope{
		Type:    eventType,
		Payload: payload,
		At:      time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(eventType),
		Value: b,
		Time:  time.Now(),
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher is used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, any) error { return nil }
func (NoopPublisher) Close() error                               { return nil }
