// Package pubsub publishes Treasury domain events to a Google Cloud
// Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/xraph/treasury/event"
)

var _ event.Dispatcher = (*Dispatcher)(nil)

// Dispatcher publishes each event as a JSON message. Messages carry the
// event type and ID as attributes and use the event key for ordering.
type Dispatcher struct {
	topic *pubsub.Topic
}

// New returns a dispatcher publishing to the named topic on client.
func New(client *pubsub.Client, topic string) (*Dispatcher, error) {
	if client == nil {
		return nil, errors.New("treasury/pubsub: client is nil")
	}
	if topic == "" {
		return nil, errors.New("treasury/pubsub: topic is required")
	}
	t := client.Topic(topic)
	t.EnableMessageOrdering = true
	return &Dispatcher{topic: t}, nil
}

// Dispatch implements event.Dispatcher. It waits for every publish to be
// acknowledged and returns the joined failures.
func (d *Dispatcher) Dispatch(ctx context.Context, events ...event.Event) error {
	results := make([]*pubsub.PublishResult, 0, len(events))
	keys := make([]string, 0, len(events))
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("treasury/pubsub: encode %s: %w", e.Type, err)
		}
		results = append(results, d.topic.Publish(ctx, &pubsub.Message{
			Data:        data,
			OrderingKey: e.Key(),
			Attributes: map[string]string{
				"type":     string(e.Type),
				"event_id": e.ID.String(),
			},
		}))
		keys = append(keys, e.Key())
	}

	var errs []error
	for i, res := range results {
		if _, err := res.Get(ctx); err != nil {
			// A failed ordered publish pauses its key until resumed.
			d.topic.ResumePublish(keys[i])
			errs = append(errs, fmt.Errorf("treasury/pubsub: publish %s: %w", events[i].ID, err))
		}
	}
	return errors.Join(errs...)
}

// Close flushes pending messages and stops the topic's publish goroutines.
func (d *Dispatcher) Close() error {
	d.topic.Stop()
	return nil
}
