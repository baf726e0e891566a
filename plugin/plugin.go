// Package plugin provides an extensible plugin system for Treasury.
// Plugins can hook into lifecycle events to observe money movements.
// Hooks run after the producing transaction has committed and can never
// change an operation's outcome.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/treasury/budget"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/journal"
	"github.com/xraph/treasury/pacing"
	"github.com/xraph/treasury/payout"
	"github.com/xraph/treasury/wallet"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts. t is the *treasury.Treasury.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, t any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Wallet & budget hooks
// ──────────────────────────────────────────────────

// OnWalletDeposited is called after external funds are credited.
type OnWalletDeposited interface {
	Plugin
	OnWalletDeposited(ctx context.Context, w *wallet.Wallet, amountCents int64) error
}

// OnBudgetLocked is called after funds move from a wallet into a campaign lock.
type OnBudgetLocked interface {
	Plugin
	OnBudgetLocked(ctx context.Context, r *budget.LockResult) error
}

// OnBudgetReleased is called after locked funds return to the wallet.
type OnBudgetReleased interface {
	Plugin
	OnBudgetReleased(ctx context.Context, r *budget.LockResult) error
}

// OnBudgetSpent is called after locked funds are consumed.
type OnBudgetSpent interface {
	Plugin
	OnBudgetSpent(ctx context.Context, r *budget.SpendResult) error
}

// OnCampaignAutoPaused is called when spend exhausts a campaign's budget.
type OnCampaignAutoPaused interface {
	Plugin
	OnCampaignAutoPaused(ctx context.Context, campaignID id.CampaignID) error
}

// ──────────────────────────────────────────────────
// Journal hooks
// ──────────────────────────────────────────────────

// OnJournalAppended is called for every committed journal entry,
// reversals included.
type OnJournalAppended interface {
	Plugin
	OnJournalAppended(ctx context.Context, e *journal.Entry) error
}

// ──────────────────────────────────────────────────
// Payout hooks
// ──────────────────────────────────────────────────

// OnPayoutEnqueued is called when a creator payout enters its hold.
type OnPayoutEnqueued interface {
	Plugin
	OnPayoutEnqueued(ctx context.Context, e *payout.Entry) error
}

// OnPayoutReleased is called when a payout is credited to the creator.
type OnPayoutReleased interface {
	Plugin
	OnPayoutReleased(ctx context.Context, e *payout.Entry) error
}

// OnPayoutCancelled is called when a held payout is cancelled.
type OnPayoutCancelled interface {
	Plugin
	OnPayoutCancelled(ctx context.Context, e *payout.Entry) error
}

// OnPayoutFrozen is called when a held payout is frozen.
type OnPayoutFrozen interface {
	Plugin
	OnPayoutFrozen(ctx context.Context, e *payout.Entry) error
}

// OnReleaseBatch is called after every ReleaseEligible run.
type OnReleaseBatch interface {
	Plugin
	OnReleaseBatch(ctx context.Context, released, failed int, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Pacing hooks
// ──────────────────────────────────────────────────

// OnThrottleDecision is called for every throttle decision.
type OnThrottleDecision interface {
	Plugin
	OnThrottleDecision(ctx context.Context, campaignID id.CampaignID, d pacing.Decision) error
}

// ──────────────────────────────────────────────────
// Failure hooks
// ──────────────────────────────────────────────────

// OnOperationFailed is called when an engine operation fails on
// infrastructure rather than a business rule.
type OnOperationFailed interface {
	Plugin
	OnOperationFailed(ctx context.Context, op string, err error) error
}
