// Package billing defines the billable events Treasury charges campaigns
// for and the outcome of charging one.
package billing

import (
	"fmt"
	"time"

	"github.com/xraph/treasury/budget"
	"github.com/xraph/treasury/event"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/journal"
	"github.com/xraph/treasury/pacing"
	"github.com/xraph/treasury/payout"
)

// Kind is the billable action.
type Kind string

const (
	KindView       Kind = "view"
	KindConversion Kind = "conversion"
)

// JournalType is the creator credit type a kind is journaled as.
func (k Kind) JournalType() journal.Type {
	if k == KindConversion {
		return journal.TypeConversionPayout
	}
	return journal.TypeViewPayout
}

// Event is a billable occurrence reported by the tracking layer.
type Event struct {
	// RefEventID identifies the occurrence upstream. An occurrence is
	// billed at most once per campaign.
	RefEventID string        `json:"ref_event_id"`
	CampaignID id.CampaignID `json:"campaign_id"`
	CreatorID  id.CreatorID  `json:"creator_id"`
	Kind       Kind          `json:"kind"`
	// Views is the number of views billed at the campaign's CPM.
	Views int64 `json:"views,omitempty"`
	// AmountCents is the gross value of a conversion.
	AmountCents  int64     `json:"amount_cents,omitempty"`
	CreatorTrust float64   `json:"creator_trust"`
	VelocityRisk float64   `json:"velocity_risk"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Validate checks the event's shape.
func (e Event) Validate() error {
	switch {
	case e.RefEventID == "":
		return fmt.Errorf("billing: ref_event_id is required")
	case e.CampaignID.IsNil():
		return fmt.Errorf("billing: campaign_id is required")
	case e.CreatorID.IsNil():
		return fmt.Errorf("billing: creator_id is required")
	}

	switch e.Kind {
	case KindView:
		if e.Views <= 0 {
			return fmt.Errorf("billing: views must be positive")
		}
	case KindConversion:
		if e.AmountCents <= 0 {
			return fmt.Errorf("billing: amount_cents must be positive")
		}
	default:
		return fmt.Errorf("billing: unknown kind %q", e.Kind)
	}
	return nil
}

// Result is the outcome of billing one event. When the pacing decision
// skips the event, Billed is false and nothing else is set.
type Result struct {
	Decision     pacing.Decision     `json:"decision"`
	Billed       bool                `json:"billed"`
	GrossCents   int64               `json:"gross_cents"`
	FeeCents     int64               `json:"fee_cents"`
	CreatorCents int64               `json:"creator_cents"`
	Spend        *budget.SpendResult `json:"spend,omitempty"`
	CreditEntry  *journal.Entry      `json:"credit_entry,omitempty"`
	FeeEntry     *journal.Entry      `json:"fee_entry,omitempty"`
	Payout       *payout.Entry       `json:"payout,omitempty"`
	Events       []event.Event       `json:"events,omitempty"`
}
