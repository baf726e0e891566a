package campaign

import (
	"time"

	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/types"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// PacingMode is the advertiser-configured delivery expectation.
type PacingMode string

const (
	PacingEven         PacingMode = "EVEN"
	PacingAccelerated  PacingMode = "ACCELERATED"
	PacingConservative PacingMode = "CONSERVATIVE"
)

// Valid reports whether m is one of the known pacing modes.
func (m PacingMode) Valid() bool {
	switch m {
	case PacingEven, PacingAccelerated, PacingConservative:
		return true
	}
	return false
}

// PauseReasonBudgetExhausted is recorded when spend consumes the last of the budget.
const PauseReasonBudgetExhausted = "budget_exhausted"

type Campaign struct {
	types.Entity
	ID               id.CampaignID     `json:"id"`
	WalletID         id.WalletID       `json:"wallet_id"`
	AdvertiserID     string            `json:"advertiser_id"`
	Name             string            `json:"name"`
	Status           Status            `json:"status"`
	TotalBudgetCents int64             `json:"total_budget_cents"`
	SpentBudgetCents int64             `json:"spent_budget_cents"`
	CPMCents         int64             `json:"cpm_cents"`
	StartDate        *time.Time        `json:"start_date,omitempty"`
	EndDate          *time.Time        `json:"end_date,omitempty"`
	PacingEnabled    bool              `json:"pacing_enabled"`
	PacingMode       PacingMode        `json:"pacing_mode"`
	Pacing           PacingMetrics     `json:"pacing"`
	AutoPausedAt     *time.Time        `json:"auto_paused_at,omitempty"`
	PauseReason      string            `json:"pause_reason,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// PacingMetrics is the last persisted pacing evaluation.
type PacingMetrics struct {
	DeliveryProgressPercent float64    `json:"delivery_progress_percent"`
	IsOverDelivering        bool       `json:"is_over_delivering"`
	IsUnderDelivering       bool       `json:"is_under_delivering"`
	LastPacingCheckAt       *time.Time `json:"last_pacing_check_at,omitempty"`
}

// IsActive reports whether the campaign may lock and spend budget.
func (c *Campaign) IsActive() bool { return c.Status == StatusActive }

// RemainingBudget is total minus spent, ignoring any lock.
func (c *Campaign) RemainingBudget() int64 {
	return max(0, c.TotalBudgetCents-c.SpentBudgetCents)
}

// Mode returns the pacing mode, defaulting to EVEN.
func (c *Campaign) Mode() PacingMode {
	if c.PacingMode == "" {
		return PacingEven
	}
	return c.PacingMode
}
