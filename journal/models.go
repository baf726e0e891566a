package journal

import (
	"time"

	"github.com/xraph/treasury/id"
)

// Type is the reason a monetary movement was journaled.
type Type string

const (
	TypeViewPayout       Type = "VIEW_PAYOUT"
	TypeConversionPayout Type = "CONVERSION_PAYOUT"
	TypePlatformFee      Type = "PLATFORM_FEE"
	TypeReversal         Type = "REVERSAL"
)

// Valid reports whether t is a known entry type.
func (t Type) Valid() bool {
	switch t {
	case TypeViewPayout, TypeConversionPayout, TypePlatformFee, TypeReversal:
		return true
	}
	return false
}

// IsCreatorCredit reports whether entries of this type are payable to a creator.
func (t Type) IsCreatorCredit() bool {
	return t == TypeViewPayout || t == TypeConversionPayout
}

// Entry is an immutable journal record. Entries are never updated; a
// REVERSAL entry with ReversesID set and the negated amount cancels the
// economic effect of an earlier one.
type Entry struct {
	ID          id.JournalID      `json:"id"`
	CampaignID  id.CampaignID     `json:"campaign_id"`
	CreatorID   id.CreatorID      `json:"creator_id"`
	Type        Type              `json:"type"`
	AmountCents int64             `json:"amount_cents"`
	RefEventID  string            `json:"ref_event_id,omitempty"`
	ReversesID  id.JournalID      `json:"reverses_id,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// IsReversal reports whether e reverses another entry.
func (e *Entry) IsReversal() bool { return e.Type == TypeReversal }

// ReversalOf builds the REVERSAL entry for e.
func ReversalOf(e *Entry, reason string, at time.Time) *Entry {
	return &Entry{
		ID:          id.NewJournalID(),
		CampaignID:  e.CampaignID,
		CreatorID:   e.CreatorID,
		Type:        TypeReversal,
		AmountCents: -e.AmountCents,
		ReversesID:  e.ID,
		Reason:      reason,
		CreatedAt:   at.UTC(),
	}
}
