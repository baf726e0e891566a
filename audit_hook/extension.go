// Package audithook bridges Treasury money movements to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/treasury/budget"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/journal"
	"github.com/xraph/treasury/payout"
	"github.com/xraph/treasury/plugin"
	"github.com/xraph/treasury/wallet"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin               = (*Extension)(nil)
	_ plugin.OnWalletDeposited    = (*Extension)(nil)
	_ plugin.OnBudgetLocked       = (*Extension)(nil)
	_ plugin.OnBudgetReleased     = (*Extension)(nil)
	_ plugin.OnBudgetSpent        = (*Extension)(nil)
	_ plugin.OnCampaignAutoPaused = (*Extension)(nil)
	_ plugin.OnJournalAppended    = (*Extension)(nil)
	_ plugin.OnPayoutEnqueued     = (*Extension)(nil)
	_ plugin.OnPayoutReleased     = (*Extension)(nil)
	_ plugin.OnPayoutCancelled    = (*Extension)(nil)
	_ plugin.OnPayoutFrozen       = (*Extension)(nil)
	_ plugin.OnOperationFailed    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Treasury lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Wallet & budget hooks
// ──────────────────────────────────────────────────

// OnWalletDeposited implements plugin.OnWalletDeposited.
func (e *Extension) OnWalletDeposited(ctx context.Context, w *wallet.Wallet, amountCents int64) error {
	return e.record(ctx, ActionWalletDeposited, SeverityInfo, OutcomeSuccess,
		ResourceWallet, w.ID.String(), CategoryFunding, nil,
		"owner_id", w.OwnerID,
		"amount_cents", amountCents,
		"available_cents", w.AvailableCents,
	)
}

// OnBudgetLocked implements plugin.OnBudgetLocked.
func (e *Extension) OnBudgetLocked(ctx context.Context, r *budget.LockResult) error {
	return e.record(ctx, ActionBudgetLocked, SeverityInfo, OutcomeSuccess,
		ResourceCampaign, r.CampaignID.String(), CategoryBudget, nil,
		"moved_cents", r.MovedCents,
		"locked_cents", r.LockedCents,
	)
}

// OnBudgetReleased implements plugin.OnBudgetReleased.
func (e *Extension) OnBudgetReleased(ctx context.Context, r *budget.LockResult) error {
	return e.record(ctx, ActionBudgetReleased, SeverityInfo, OutcomeSuccess,
		ResourceCampaign, r.CampaignID.String(), CategoryBudget, nil,
		"moved_cents", r.MovedCents,
		"locked_cents", r.LockedCents,
	)
}

// OnBudgetSpent implements plugin.OnBudgetSpent.
func (e *Extension) OnBudgetSpent(ctx context.Context, r *budget.SpendResult) error {
	return e.record(ctx, ActionBudgetSpent, SeverityInfo, OutcomeSuccess,
		ResourceCampaign, r.CampaignID.String(), CategoryBudget, nil,
		"spent_cents", r.SpentCents,
		"locked_cents", r.LockedCents,
	)
}

// OnCampaignAutoPaused implements plugin.OnCampaignAutoPaused.
func (e *Extension) OnCampaignAutoPaused(ctx context.Context, campaignID id.CampaignID) error {
	return e.record(ctx, ActionCampaignAutoPaused, SeverityWarning, OutcomeSuccess,
		ResourceCampaign, campaignID.String(), CategoryBudget, nil,
		"reason", "budget_exhausted",
	)
}

// ──────────────────────────────────────────────────
// Journal hooks
// ──────────────────────────────────────────────────

// OnJournalAppended implements plugin.OnJournalAppended. Reversals are
// recorded under their own action at warning severity.
func (e *Extension) OnJournalAppended(ctx context.Context, entry *journal.Entry) error {
	action, severity := ActionJournalAppended, SeverityInfo
	kv := []any{
		"campaign_id", entry.CampaignID.String(),
		"type", string(entry.Type),
		"amount_cents", entry.AmountCents,
	}
	if !entry.CreatorID.IsNil() {
		kv = append(kv, "creator_id", entry.CreatorID.String())
	}
	if entry.IsReversal() {
		action, severity = ActionJournalReversed, SeverityWarning
		kv = append(kv, "reverses_id", entry.ReversesID.String(), "reversal_reason", entry.Reason)
	}
	return e.record(ctx, action, severity, OutcomeSuccess,
		ResourceJournal, entry.ID.String(), CategoryLedger, nil,
		kv...,
	)
}

// ──────────────────────────────────────────────────
// Payout hooks
// ──────────────────────────────────────────────────

// OnPayoutEnqueued implements plugin.OnPayoutEnqueued.
func (e *Extension) OnPayoutEnqueued(ctx context.Context, p *payout.Entry) error {
	return e.record(ctx, ActionPayoutEnqueued, SeverityInfo, OutcomeSuccess,
		ResourcePayout, p.ID.String(), CategoryPayout, nil,
		payoutFields(p, "eligible_at", p.EligibleAt)...,
	)
}

// OnPayoutReleased implements plugin.OnPayoutReleased.
func (e *Extension) OnPayoutReleased(ctx context.Context, p *payout.Entry) error {
	return e.record(ctx, ActionPayoutReleased, SeverityInfo, OutcomeSuccess,
		ResourcePayout, p.ID.String(), CategoryPayout, nil,
		payoutFields(p, "net_cents", p.NetCents())...,
	)
}

// OnPayoutCancelled implements plugin.OnPayoutCancelled.
func (e *Extension) OnPayoutCancelled(ctx context.Context, p *payout.Entry) error {
	return e.record(ctx, ActionPayoutCancelled, SeverityWarning, OutcomeSuccess,
		ResourcePayout, p.ID.String(), CategoryPayout, nil,
		payoutFields(p, "status_reason", p.StatusReason)...,
	)
}

// OnPayoutFrozen implements plugin.OnPayoutFrozen.
func (e *Extension) OnPayoutFrozen(ctx context.Context, p *payout.Entry) error {
	return e.record(ctx, ActionPayoutFrozen, SeverityWarning, OutcomeSuccess,
		ResourcePayout, p.ID.String(), CategoryPayout, nil,
		payoutFields(p, "status_reason", p.StatusReason)...,
	)
}

func payoutFields(p *payout.Entry, extra ...any) []any {
	return append([]any{
		"creator_id", p.CreatorID.String(),
		"campaign_id", p.CampaignID.String(),
		"amount_cents", p.AmountCents,
		"risk_level", p.RiskLevel.String(),
	}, extra...)
}

// ──────────────────────────────────────────────────
// Failure hooks
// ──────────────────────────────────────────────────

// OnOperationFailed implements plugin.OnOperationFailed.
func (e *Extension) OnOperationFailed(ctx context.Context, op string, err error) error {
	return e.record(ctx, ActionOperationFailed, SeverityError, OutcomeFailure,
		ResourceEngine, op, CategorySystem, err,
		"operation", op,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
