package payout

import (
	"time"

	"github.com/xraph/treasury/event"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/journal"
	"github.com/xraph/treasury/types"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusReleased  Status = "RELEASED"
	StatusCancelled Status = "CANCELLED"
	StatusFrozen    Status = "FROZEN"
)

// CanTransition reports whether an entry may move from one status to another.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusReleased || to == StatusCancelled || to == StatusFrozen
	case StatusFrozen:
		return to == StatusReleased || to == StatusCancelled
	default:
		return false
	}
}

// Entry is one creator payout awaiting its risk hold.
type Entry struct {
	types.Entity
	ID                 id.PayoutID   `json:"id"`
	CreatorID          id.CreatorID  `json:"creator_id"`
	CampaignID         id.CampaignID `json:"campaign_id"`
	JournalEntryID     id.JournalID  `json:"journal_entry_id,omitempty"`
	AmountCents        int64         `json:"amount_cents"`
	Type               journal.Type  `json:"type"`
	Status             Status        `json:"status"`
	EligibleAt         time.Time     `json:"eligible_at"`
	RiskSnapshotScore  float64       `json:"risk_snapshot_score"`
	RiskLevel          RiskLevel     `json:"risk_level"`
	ReservePercent     float64       `json:"reserve_percent"`
	ReserveAmountCents int64         `json:"reserve_amount_cents"`
	AppliedMultiplier  float64       `json:"applied_multiplier"`
	ReleasedAt         *time.Time    `json:"released_at,omitempty"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty"`
	FrozenAt           *time.Time    `json:"frozen_at,omitempty"`
	StatusReason       string        `json:"status_reason,omitempty"`
	ReserveReturnedAt  *time.Time    `json:"reserve_returned_at,omitempty"`
}

// NetCents is the amount credited on release, after the reserve.
func (e *Entry) NetCents() int64 { return e.AmountCents - e.ReserveAmountCents }

// IsHeld reports whether the entry still counts toward the creator's pending balance.
func (e *Entry) IsHeld() bool {
	return e.Status == StatusPending || e.Status == StatusFrozen
}

// Balance is a creator's payable balance together with the creator's
// current risk profile. The risk fields are maintained by the risk
// collaborator; the cent fields only by the payout queue.
type Balance struct {
	types.Entity
	CreatorID        id.CreatorID `json:"creator_id"`
	AvailableCents   int64        `json:"available_cents"`
	PendingCents     int64        `json:"pending_cents"`
	TotalEarnedCents int64        `json:"total_earned_cents"`
	ReservedCents    int64        `json:"reserved_cents"`
	RiskLevel        RiskLevel    `json:"risk_level"`
	TrustScore       float64      `json:"trust_score"`
	PayoutDelayDays  int          `json:"payout_delay_days"`
}

// Profile is the risk snapshot an entry is created against.
type Profile struct {
	CreatorID       id.CreatorID `json:"creator_id"`
	RiskLevel       RiskLevel    `json:"risk_level"`
	TrustScore      float64      `json:"trust_score"`
	PayoutDelayDays int          `json:"payout_delay_days"`
}

// Profile extracts the risk snapshot from b.
func (b *Balance) Profile() Profile {
	return Profile{
		CreatorID:       b.CreatorID,
		RiskLevel:       b.RiskLevel,
		TrustScore:      b.TrustScore,
		PayoutDelayDays: b.PayoutDelayDays,
	}
}

// EnqueueInput describes a creator credit to queue.
type EnqueueInput struct {
	CreatorID         id.CreatorID
	CampaignID        id.CampaignID
	AmountCents       int64
	Type              journal.Type
	JournalEntryID    id.JournalID
	AppliedMultiplier float64
}

// NewEntry builds a PENDING entry from the creator's profile at now. The
// hold period and reserve are fixed here and never recomputed.
func NewEntry(in EnqueueInput, profile Profile, policy Policy, now time.Time) *Entry {
	level := profile.RiskLevel
	if !level.Valid() {
		level = RiskMedium
	}
	delay := profile.PayoutDelayDays
	if delay <= 0 {
		delay = policy.DelayDays(level)
	}
	multiplier := in.AppliedMultiplier
	if multiplier == 0 {
		multiplier = 1
	}
	pct := policy.ReservePercent(level)
	now = now.UTC()

	return &Entry{
		Entity:             types.NewEntityAt(now),
		ID:                 id.NewPayoutID(),
		CreatorID:          in.CreatorID,
		CampaignID:         in.CampaignID,
		JournalEntryID:     in.JournalEntryID,
		AmountCents:        in.AmountCents,
		Type:               in.Type,
		Status:             StatusPending,
		EligibleAt:         now.AddDate(0, 0, delay),
		RiskSnapshotScore:  profile.TrustScore,
		RiskLevel:          level,
		ReservePercent:     pct,
		ReserveAmountCents: types.PercentOf(in.AmountCents, pct),
		AppliedMultiplier:  multiplier,
	}
}

// ReleaseReport summarises one ReleaseEligible run.
type ReleaseReport struct {
	Released []*Entry      `json:"released"`
	Skipped  int           `json:"skipped"`
	Failures []Failure     `json:"failures,omitempty"`
	Events   []event.Event `json:"events,omitempty"`
}

// Failure records a single entry that could not be released. EntryID is
// nil when a page after the first could not be listed.
type Failure struct {
	EntryID id.PayoutID `json:"entry_id"`
	Err     error       `json:"-"`
}

// ReleasedCents is the total net amount credited in the run.
func (r *ReleaseReport) ReleasedCents() int64 {
	var total int64
	for _, e := range r.Released {
		total += e.NetCents()
	}
	return total
}

// Result wraps an entry mutated by a single-entry operation and the
// events it produced.
type Result struct {
	Entry  *Entry        `json:"entry"`
	Events []event.Event `json:"events,omitempty"`
}
