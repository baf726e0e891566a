package payout

import (
	"context"
	"time"

	"github.com/xraph/treasury/id"
)

type Store interface {
	GetPayout(ctx context.Context, entryID id.PayoutID) (*Entry, error)
	ListPayouts(ctx context.Context, opts ListOpts) ([]*Entry, error)
	ListEligiblePayouts(ctx context.Context, now time.Time, after Cursor, limit int) ([]*Entry, error)
	GetCreatorBalance(ctx context.Context, creatorID id.CreatorID) (*Balance, error)
}

type ListOpts struct {
	CreatorID  id.CreatorID
	CampaignID id.CampaignID
	Status     Status
	Limit      int
	Offset     int
}

// Matches reports whether e passes the filters in opts.
func (o ListOpts) Matches(e *Entry) bool {
	if !o.CreatorID.IsNil() && e.CreatorID.String() != o.CreatorID.String() {
		return false
	}
	if !o.CampaignID.IsNil() && e.CampaignID.String() != o.CampaignID.String() {
		return false
	}
	if o.Status != "" && e.Status != o.Status {
		return false
	}
	return true
}

// Cursor is a position in the release order (eligible_at, then id).
// The zero Cursor sits before every entry.
type Cursor struct {
	EligibleAt time.Time
	ID         id.PayoutID
}

// CursorOf returns the position of e.
func CursorOf(e *Entry) Cursor {
	return Cursor{EligibleAt: e.EligibleAt, ID: e.ID}
}

// IsZero reports whether c is the starting position.
func (c Cursor) IsZero() bool {
	return c.EligibleAt.IsZero() && c.ID.IsNil()
}

// Precedes reports whether e sorts strictly after c.
func (c Cursor) Precedes(e *Entry) bool {
	if c.IsZero() {
		return true
	}
	if !e.EligibleAt.Equal(c.EligibleAt) {
		return e.EligibleAt.After(c.EligibleAt)
	}
	return e.ID.String() > c.ID.String()
}
