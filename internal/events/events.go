// Package events publishes domain events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
)

// Event types.
const (
	OrderCreated       = "order.created"
	OrderStatusChanged = "order.status_changed"
)

// Message is a single event. Payload is encoded as JSON.
type Message struct {
	Key     string
	Type    string
	Payload any
}

// Publisher sends events.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Message) error { return nil }
func (Nop) Close() error                           { return nil }

// ParseBrokers splits a comma-separated broker list, dropping blanks.
func ParseBrokers(csv string) []string {
	var brokers []string
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// New returns a Kafka publisher for topic, or Nop when brokers is empty.
func New(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		return Nop{}
	}
	return NewKafka(brokers, topic)
}

// Kafka writes events to a single topic, keyed so that all events of one
// entity land in the same partition.
type Kafka struct {
	w   *kafka.Writer
	now func() time.Time
}

// NewKafka creates a Kafka publisher.
func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			// Each order emits a single event; waiting for a fuller batch
			// only adds latency.
			BatchTimeout: 10 * time.Millisecond,
		},
		now: time.Now,
	}
}

// Encode builds the Kafka message for msg. The event type travels in the
// "type" header.
func (k *Kafka) Encode(msg Message) (kafka.Message, error) {
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return kafka.Message{}, errors.Wrap(err, "marshal payload")
	}
	return kafka.Message{
		Key:   []byte(msg.Key),
		Value: data,
		Time:  k.now().UTC(),
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(msg.Type)},
		},
	}, nil
}

// Publish writes msg synchronously.
func (k *Kafka) Publish(ctx context.Context, msg Message) error {
	m, err := k.Encode(msg)
	if err != nil {
		return err
	}
	if err := k.w.WriteMessages(ctx, m); err != nil {
		return errors.Wrapf(err, "write %s", msg.Type)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return k.w.Close()
}
