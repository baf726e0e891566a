// Package kafka publishes Treasury domain events to Kafka topics.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/xraph/treasury/event"
)

var _ event.Dispatcher = (*Dispatcher)(nil)

// MessageWriter is the subset of *kafka.Writer the dispatcher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Dispatcher writes each event as a JSON message keyed by its partition key.
type Dispatcher struct {
	writer       MessageWriter
	defaultTopic string
	topicByType  map[event.Type]string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTopic routes events of type t to topic.
func WithTopic(t event.Type, topic string) Option {
	return func(d *Dispatcher) { d.topicByType[t] = topic }
}

// New creates a dispatcher writing to brokers. Events go to defaultTopic
// unless routed elsewhere with WithTopic.
func New(brokers []string, defaultTopic string, opts ...Option) (*Dispatcher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("treasury/kafka: at least one broker is required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
	}
	return NewWithWriter(w, defaultTopic, opts...), nil
}

// NewWithWriter creates a dispatcher over an existing writer.
func NewWithWriter(w MessageWriter, defaultTopic string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		writer:       w,
		defaultTopic: defaultTopic,
		topicByType:  make(map[event.Type]string),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch implements event.Dispatcher. All events are written in one batch.
func (d *Dispatcher) Dispatch(ctx context.Context, events ...event.Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("treasury/kafka: encode %s: %w", e.Type, err)
		}
		msgs = append(msgs, kafka.Message{
			Topic: d.topicFor(e.Type),
			Key:   []byte(e.Key()),
			Value: payload,
			Time:  e.OccurredAt,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(e.Type)},
				{Key: "event_id", Value: []byte(e.ID.String())},
			},
		})
	}
	if err := d.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("treasury/kafka: write: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (d *Dispatcher) Close() error {
	return d.writer.Close()
}

func (d *Dispatcher) topicFor(t event.Type) string {
	if topic, ok := d.topicByType[t]; ok && topic != "" {
		return topic
	}
	return d.defaultTopic
}
