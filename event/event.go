// Package event defines the outbound domain events produced by Treasury
// operations. Operations return events as values; delivery is the job of
// a Dispatcher injected by the host, invoked only after the producing
// transaction has committed.
package event

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/xraph/treasury/id"
)

// Type names a domain event.
type Type string

const (
	TypeWalletCredited     Type = "WALLET_CREDITED"
	TypeReserveLocked      Type = "RESERVE_LOCKED"
	TypeReserveReleased    Type = "RESERVE_RELEASED"
	TypeCampaignAutoPaused Type = "CAMPAIGN_AUTO_PAUSED"
)

// Event is a single domain event. Only the identifiers relevant to the
// event type are set.
type Event struct {
	ID          id.EventID        `json:"id"`
	Type        Type              `json:"type"`
	OccurredAt  time.Time         `json:"occurred_at"`
	CampaignID  id.CampaignID     `json:"campaign_id,omitempty"`
	WalletID    id.WalletID       `json:"wallet_id,omitempty"`
	CreatorID   id.CreatorID      `json:"creator_id,omitempty"`
	PayoutID    id.PayoutID       `json:"payout_id,omitempty"`
	AmountCents int64             `json:"amount_cents"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// New creates an event of type t stamped at the given time.
func New(t Type, at time.Time) Event {
	return Event{
		ID:         id.NewEventID(),
		Type:       t,
		OccurredAt: at.UTC(),
	}
}

// Key returns the partitioning key for ordered transports: the campaign
// when set, otherwise the creator, otherwise the wallet.
func (e Event) Key() string {
	switch {
	case !e.CampaignID.IsNil():
		return e.CampaignID.String()
	case !e.CreatorID.IsNil():
		return e.CreatorID.String()
	default:
		return e.WalletID.String()
	}
}

// Dispatcher delivers events to an external bus.
type Dispatcher interface {
	Dispatch(ctx context.Context, events ...Event) error
}

// DispatcherFunc adapts a function to a Dispatcher.
type DispatcherFunc func(ctx context.Context, events ...Event) error

// Dispatch implements Dispatcher.
func (f DispatcherFunc) Dispatch(ctx context.Context, events ...Event) error {
	return f(ctx, events...)
}

// Multi fans events out to several dispatchers, joining their errors.
type Multi []Dispatcher

// Dispatch implements Dispatcher.
func (m Multi) Dispatch(ctx context.Context, events ...Event) error {
	var errs []error
	for _, d := range m {
		if err := d.Dispatch(ctx, events...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps dispatched events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Dispatch implements Dispatcher.
func (r *Recorder) Dispatch(_ context.Context, events ...Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
