package journal

import (
	"context"
	"time"

	"github.com/xraph/treasury/id"
)

type Store interface {
	GetEntry(ctx context.Context, entryID id.JournalID) (*Entry, error)
	ListEntries(ctx context.Context, opts ListOpts) ([]*Entry, error)
	SumByCampaign(ctx context.Context, campaignID id.CampaignID, types ...Type) (int64, error)
	SumByCreator(ctx context.Context, creatorID id.CreatorID, types ...Type) (int64, error)
}

type ListOpts struct {
	CampaignID id.CampaignID
	CreatorID  id.CreatorID
	Types      []Type
	RefEventID string
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

// Matches reports whether e passes the filters in opts. Stores without a
// query language use it directly.
func (o ListOpts) Matches(e *Entry) bool {
	if !o.CampaignID.IsNil() && e.CampaignID.String() != o.CampaignID.String() {
		return false
	}
	if !o.CreatorID.IsNil() && e.CreatorID.String() != o.CreatorID.String() {
		return false
	}
	if len(o.Types) > 0 && !HasType(o.Types, e.Type) {
		return false
	}
	if o.RefEventID != "" && e.RefEventID != o.RefEventID {
		return false
	}
	if !o.From.IsZero() && e.CreatedAt.Before(o.From) {
		return false
	}
	if !o.To.IsZero() && !e.CreatedAt.Before(o.To) {
		return false
	}
	return true
}

// HasType reports whether t is in types. An empty list matches everything.
func HasType(types []Type, t Type) bool {
	if len(types) == 0 {
		return true
	}
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

// TypeStrings converts types for use as query arguments.
func TypeStrings(types []Type) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
