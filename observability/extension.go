// Package observability provides a metrics extension for Treasury that
// records money-movement counts and amounts via a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/treasury/budget"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/journal"
	"github.com/xraph/treasury/pacing"
	"github.com/xraph/treasury/payout"
	"github.com/xraph/treasury/plugin"
	"github.com/xraph/treasury/wallet"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin               = (*MetricsExtension)(nil)
	_ plugin.OnInit               = (*MetricsExtension)(nil)
	_ plugin.OnWalletDeposited    = (*MetricsExtension)(nil)
	_ plugin.OnBudgetLocked       = (*MetricsExtension)(nil)
	_ plugin.OnBudgetReleased     = (*MetricsExtension)(nil)
	_ plugin.OnBudgetSpent        = (*MetricsExtension)(nil)
	_ plugin.OnCampaignAutoPaused = (*MetricsExtension)(nil)
	_ plugin.OnJournalAppended    = (*MetricsExtension)(nil)
	_ plugin.OnPayoutEnqueued     = (*MetricsExtension)(nil)
	_ plugin.OnPayoutReleased     = (*MetricsExtension)(nil)
	_ plugin.OnPayoutCancelled    = (*MetricsExtension)(nil)
	_ plugin.OnPayoutFrozen       = (*MetricsExtension)(nil)
	_ plugin.OnReleaseBatch       = (*MetricsExtension)(nil)
	_ plugin.OnThrottleDecision   = (*MetricsExtension)(nil)
	_ plugin.OnOperationFailed    = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide money-movement metrics.
// Register it as a Treasury plugin to track funding, spend and payouts.
type MetricsExtension struct {
	factory MetricFactory

	// Wallet & budget metrics
	WalletDeposits     Counter
	DepositedCents     Counter
	BudgetLocks        Counter
	LockedCents        Counter
	BudgetReleases     Counter
	ReleasedCents      Counter
	BudgetSpends       Counter
	SpentCents         Counter
	CampaignAutoPaused Counter

	// Journal metrics
	JournalEntries   Counter
	JournalReversals Counter
	CreatorCredits   Counter
	PlatformFees     Counter

	// Payout metrics
	PayoutsEnqueued  Counter
	PayoutsReleased  Counter
	PayoutsCancelled Counter
	PayoutsFrozen    Counter
	PayoutNetCents   Histogram
	ReleaseFailures  Counter
	ReleaseLatency   Histogram

	// Pacing metrics
	ThrottleAllowed Counter
	ThrottleDenied  Counter

	// Error metrics
	OperationErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions, or NewPrometheusFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Wallet & budget metrics
		WalletDeposits:     factory.Counter("treasury.wallet.deposits"),
		DepositedCents:     factory.Counter("treasury.wallet.deposited_cents"),
		BudgetLocks:        factory.Counter("treasury.budget.locks"),
		LockedCents:        factory.Counter("treasury.budget.locked_cents"),
		BudgetReleases:     factory.Counter("treasury.budget.releases"),
		ReleasedCents:      factory.Counter("treasury.budget.released_cents"),
		BudgetSpends:       factory.Counter("treasury.budget.spends"),
		SpentCents:         factory.Counter("treasury.budget.spent_cents"),
		CampaignAutoPaused: factory.Counter("treasury.campaign.auto_paused"),

		// Journal metrics
		JournalEntries:   factory.Counter("treasury.journal.entries"),
		JournalReversals: factory.Counter("treasury.journal.reversals"),
		CreatorCredits:   factory.Counter("treasury.journal.creator_credit_cents"),
		PlatformFees:     factory.Counter("treasury.journal.platform_fee_cents"),

		// Payout metrics
		PayoutsEnqueued:  factory.Counter("treasury.payout.enqueued"),
		PayoutsReleased:  factory.Counter("treasury.payout.released"),
		PayoutsCancelled: factory.Counter("treasury.payout.cancelled"),
		PayoutsFrozen:    factory.Counter("treasury.payout.frozen"),
		PayoutNetCents:   factory.Histogram("treasury.payout.net_cents"),
		ReleaseFailures:  factory.Counter("treasury.payout.release.failures"),
		ReleaseLatency:   factory.Histogram("treasury.payout.release.latency_ms"),

		// Pacing metrics
		ThrottleAllowed: factory.Counter("treasury.pacing.throttle.allowed"),
		ThrottleDenied:  factory.Counter("treasury.pacing.throttle.denied"),

		// Error metrics
		OperationErrors: factory.Counter("treasury.operation.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Wallet & budget hooks
// ──────────────────────────────────────────────────

// OnWalletDeposited implements plugin.OnWalletDeposited.
func (m *MetricsExtension) OnWalletDeposited(_ context.Context, _ *wallet.Wallet, amountCents int64) error {
	m.WalletDeposits.Inc()
	m.DepositedCents.Add(float64(amountCents))
	return nil
}

// OnBudgetLocked implements plugin.OnBudgetLocked.
func (m *MetricsExtension) OnBudgetLocked(_ context.Context, r *budget.LockResult) error {
	m.BudgetLocks.Inc()
	m.LockedCents.Add(float64(r.MovedCents))
	return nil
}

// OnBudgetReleased implements plugin.OnBudgetReleased.
func (m *MetricsExtension) OnBudgetReleased(_ context.Context, r *budget.LockResult) error {
	m.BudgetReleases.Inc()
	m.ReleasedCents.Add(float64(r.MovedCents))
	return nil
}

// OnBudgetSpent implements plugin.OnBudgetSpent.
func (m *MetricsExtension) OnBudgetSpent(_ context.Context, r *budget.SpendResult) error {
	m.BudgetSpends.Inc()
	m.SpentCents.Add(float64(r.SpentCents))
	return nil
}

// OnCampaignAutoPaused implements plugin.OnCampaignAutoPaused.
func (m *MetricsExtension) OnCampaignAutoPaused(_ context.Context, _ id.CampaignID) error {
	m.CampaignAutoPaused.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Journal hooks
// ──────────────────────────────────────────────────

// OnJournalAppended implements plugin.OnJournalAppended.
func (m *MetricsExtension) OnJournalAppended(_ context.Context, e *journal.Entry) error {
	m.JournalEntries.Inc()
	switch {
	case e.IsReversal():
		m.JournalReversals.Inc()
	case e.Type.IsCreatorCredit():
		m.CreatorCredits.Add(float64(e.AmountCents))
	case e.Type == journal.TypePlatformFee:
		m.PlatformFees.Add(float64(e.AmountCents))
	}
	return nil
}

// ──────────────────────────────────────────────────
// Payout hooks
// ──────────────────────────────────────────────────

// OnPayoutEnqueued implements plugin.OnPayoutEnqueued.
func (m *MetricsExtension) OnPayoutEnqueued(_ context.Context, _ *payout.Entry) error {
	m.PayoutsEnqueued.Inc()
	return nil
}

// OnPayoutReleased implements plugin.OnPayoutReleased.
func (m *MetricsExtension) OnPayoutReleased(_ context.Context, e *payout.Entry) error {
	m.PayoutsReleased.Inc()
	m.PayoutNetCents.Observe(float64(e.NetCents()))
	return nil
}

// OnPayoutCancelled implements plugin.OnPayoutCancelled.
func (m *MetricsExtension) OnPayoutCancelled(_ context.Context, _ *payout.Entry) error {
	m.PayoutsCancelled.Inc()
	return nil
}

// OnPayoutFrozen implements plugin.OnPayoutFrozen.
func (m *MetricsExtension) OnPayoutFrozen(_ context.Context, _ *payout.Entry) error {
	m.PayoutsFrozen.Inc()
	return nil
}

// OnReleaseBatch implements plugin.OnReleaseBatch.
func (m *MetricsExtension) OnReleaseBatch(_ context.Context, _, failed int, elapsed time.Duration) error {
	m.ReleaseFailures.Add(float64(failed))
	m.ReleaseLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// ──────────────────────────────────────────────────
// Pacing hooks
// ──────────────────────────────────────────────────

// OnThrottleDecision implements plugin.OnThrottleDecision.
func (m *MetricsExtension) OnThrottleDecision(_ context.Context, _ id.CampaignID, d pacing.Decision) error {
	if d.ShouldBill {
		m.ThrottleAllowed.Inc()
	} else {
		m.ThrottleDenied.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Failure hooks
// ──────────────────────────────────────────────────

// OnOperationFailed implements plugin.OnOperationFailed.
func (m *MetricsExtension) OnOperationFailed(_ context.Context, _ string, _ error) error {
	m.OperationErrors.Inc()
	return nil
}
