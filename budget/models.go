package budget

import (
	"github.com/xraph/treasury/campaign"
	"github.com/xraph/treasury/event"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/types"
)

// Lock holds the funds currently reserved from a wallet for one campaign.
type Lock struct {
	types.Entity
	ID          id.LockID     `json:"id"`
	CampaignID  id.CampaignID `json:"campaign_id"`
	WalletID    id.WalletID   `json:"wallet_id"`
	LockedCents int64         `json:"locked_cents"`
}

// Budget is the read-only projection of a campaign's budget.
type Budget struct {
	CampaignID         id.CampaignID `json:"campaign_id"`
	TotalBudgetCents   int64         `json:"total_budget_cents"`
	LockedCents        int64         `json:"locked_cents"`
	SpentCents         int64         `json:"spent_cents"`
	RemainingCents     int64         `json:"remaining_cents"`
	PayoutPerViewCents int64         `json:"payout_per_view_cents"`
}

// Project computes the Budget of c. A nil lock counts as zero locked.
func Project(c *campaign.Campaign, l *Lock) *Budget {
	var locked int64
	if l != nil {
		locked = l.LockedCents
	}
	return &Budget{
		CampaignID:         c.ID,
		TotalBudgetCents:   c.TotalBudgetCents,
		LockedCents:        locked,
		SpentCents:         c.SpentBudgetCents,
		RemainingCents:     max(0, c.TotalBudgetCents-c.SpentBudgetCents-locked),
		PayoutPerViewCents: types.PerMille(c.CPMCents),
	}
}

// LockResult is returned by lock and release.
type LockResult struct {
	CampaignID     id.CampaignID `json:"campaign_id"`
	MovedCents     int64         `json:"moved_cents"`
	LockedCents    int64         `json:"locked_cents"`
	AvailableCents int64         `json:"available_cents"`
	PendingCents   int64         `json:"pending_cents"`
	Events         []event.Event `json:"events,omitempty"`
}

// SpendResult is returned by spend.
type SpendResult struct {
	CampaignID   id.CampaignID `json:"campaign_id"`
	SpentCents   int64         `json:"spent_cents"`
	LockedCents  int64         `json:"locked_cents"`
	PendingCents int64         `json:"pending_cents"`
	AutoPaused   bool          `json:"auto_paused"`
	Events       []event.Event `json:"events,omitempty"`
}
