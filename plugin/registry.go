package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/treasury/budget"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/journal"
	"github.com/xraph/treasury/pacing"
	"github.com/xraph/treasury/payout"
	"github.com/xraph/treasury/wallet"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery so dispatch never type-asserts.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit               []OnInit
	onShutdown           []OnShutdown
	onWalletDeposited    []OnWalletDeposited
	onBudgetLocked       []OnBudgetLocked
	onBudgetReleased     []OnBudgetReleased
	onBudgetSpent        []OnBudgetSpent
	onCampaignAutoPaused []OnCampaignAutoPaused
	onJournalAppended    []OnJournalAppended
	onPayoutEnqueued     []OnPayoutEnqueued
	onPayoutReleased     []OnPayoutReleased
	onPayoutCancelled    []OnPayoutCancelled
	onPayoutFrozen       []OnPayoutFrozen
	onReleaseBatch       []OnReleaseBatch
	onThrottleDecision   []OnThrottleDecision
	onOperationFailed    []OnOperationFailed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	var hooks []string
	cache := func(name string, ok bool, add func()) {
		if ok {
			add()
			hooks = append(hooks, name)
		}
	}

	v1, ok := p.(OnInit)
	cache("OnInit", ok, func() { r.onInit = append(r.onInit, v1) })
	v2, ok := p.(OnShutdown)
	cache("OnShutdown", ok, func() { r.onShutdown = append(r.onShutdown, v2) })
	v3, ok := p.(OnWalletDeposited)
	cache("OnWalletDeposited", ok, func() { r.onWalletDeposited = append(r.onWalletDeposited, v3) })
	v4, ok := p.(OnBudgetLocked)
	cache("OnBudgetLocked", ok, func() { r.onBudgetLocked = append(r.onBudgetLocked, v4) })
	v5, ok := p.(OnBudgetReleased)
	cache("OnBudgetReleased", ok, func() { r.onBudgetReleased = append(r.onBudgetReleased, v5) })
	v6, ok := p.(OnBudgetSpent)
	cache("OnBudgetSpent", ok, func() { r.onBudgetSpent = append(r.onBudgetSpent, v6) })
	v7, ok := p.(OnCampaignAutoPaused)
	cache("OnCampaignAutoPaused", ok, func() { r.onCampaignAutoPaused = append(r.onCampaignAutoPaused, v7) })
	v8, ok := p.(OnJournalAppended)
	cache("OnJournalAppended", ok, func() { r.onJournalAppended = append(r.onJournalAppended, v8) })
	v9, ok := p.(OnPayoutEnqueued)
	cache("OnPayoutEnqueued", ok, func() { r.onPayoutEnqueued = append(r.onPayoutEnqueued, v9) })
	v10, ok := p.(OnPayoutReleased)
	cache("OnPayoutReleased", ok, func() { r.onPayoutReleased = append(r.onPayoutReleased, v10) })
	v11, ok := p.(OnPayoutCancelled)
	cache("OnPayoutCancelled", ok, func() { r.onPayoutCancelled = append(r.onPayoutCancelled, v11) })
	v12, ok := p.(OnPayoutFrozen)
	cache("OnPayoutFrozen", ok, func() { r.onPayoutFrozen = append(r.onPayoutFrozen, v12) })
	v13, ok := p.(OnReleaseBatch)
	cache("OnReleaseBatch", ok, func() { r.onReleaseBatch = append(r.onReleaseBatch, v13) })
	v14, ok := p.(OnThrottleDecision)
	cache("OnThrottleDecision", ok, func() { r.onThrottleDecision = append(r.onThrottleDecision, v14) })
	v15, ok := p.(OnOperationFailed)
	cache("OnOperationFailed", ok, func() { r.onOperationFailed = append(r.onOperationFailed, v15) })

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", hooks,
	)

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// emit snapshots a cached hook list and calls each plugin in turn.
func emit[T Plugin](ctx context.Context, r *Registry, hook string, list *[]T, call func(T) error) {
	r.mu.RLock()
	plugins := *list
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return call(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, t any) {
	emit(ctx, r, "OnInit", &r.onInit, func(p OnInit) error { return p.OnInit(ctx, t) })
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", &r.onShutdown, func(p OnShutdown) error { return p.OnShutdown(ctx) })
}

// EmitWalletDeposited emits a wallet deposit.
func (r *Registry) EmitWalletDeposited(ctx context.Context, w *wallet.Wallet, amountCents int64) {
	emit(ctx, r, "OnWalletDeposited", &r.onWalletDeposited, func(p OnWalletDeposited) error {
		return p.OnWalletDeposited(ctx, w, amountCents)
	})
}

// EmitBudgetLocked emits a budget lock.
func (r *Registry) EmitBudgetLocked(ctx context.Context, res *budget.LockResult) {
	emit(ctx, r, "OnBudgetLocked", &r.onBudgetLocked, func(p OnBudgetLocked) error {
		return p.OnBudgetLocked(ctx, res)
	})
}

// EmitBudgetReleased emits a budget release.
func (r *Registry) EmitBudgetReleased(ctx context.Context, res *budget.LockResult) {
	emit(ctx, r, "OnBudgetReleased", &r.onBudgetReleased, func(p OnBudgetReleased) error {
		return p.OnBudgetReleased(ctx, res)
	})
}

// EmitBudgetSpent emits a budget spend.
func (r *Registry) EmitBudgetSpent(ctx context.Context, res *budget.SpendResult) {
	emit(ctx, r, "OnBudgetSpent", &r.onBudgetSpent, func(p OnBudgetSpent) error {
		return p.OnBudgetSpent(ctx, res)
	})
}

// EmitCampaignAutoPaused emits an automatic campaign pause.
func (r *Registry) EmitCampaignAutoPaused(ctx context.Context, campaignID id.CampaignID) {
	emit(ctx, r, "OnCampaignAutoPaused", &r.onCampaignAutoPaused, func(p OnCampaignAutoPaused) error {
		return p.OnCampaignAutoPaused(ctx, campaignID)
	})
}

// EmitJournalAppended emits a committed journal entry.
func (r *Registry) EmitJournalAppended(ctx context.Context, e *journal.Entry) {
	emit(ctx, r, "OnJournalAppended", &r.onJournalAppended, func(p OnJournalAppended) error {
		return p.OnJournalAppended(ctx, e)
	})
}

// EmitPayoutEnqueued emits a newly held payout.
func (r *Registry) EmitPayoutEnqueued(ctx context.Context, e *payout.Entry) {
	emit(ctx, r, "OnPayoutEnqueued", &r.onPayoutEnqueued, func(p OnPayoutEnqueued) error {
		return p.OnPayoutEnqueued(ctx, e)
	})
}

// EmitPayoutReleased emits a released payout.
func (r *Registry) EmitPayoutReleased(ctx context.Context, e *payout.Entry) {
	emit(ctx, r, "OnPayoutReleased", &r.onPayoutReleased, func(p OnPayoutReleased) error {
		return p.OnPayoutReleased(ctx, e)
	})
}

// EmitPayoutCancelled emits a cancelled payout.
func (r *Registry) EmitPayoutCancelled(ctx context.Context, e *payout.Entry) {
	emit(ctx, r, "OnPayoutCancelled", &r.onPayoutCancelled, func(p OnPayoutCancelled) error {
		return p.OnPayoutCancelled(ctx, e)
	})
}

// EmitPayoutFrozen emits a frozen payout.
func (r *Registry) EmitPayoutFrozen(ctx context.Context, e *payout.Entry) {
	emit(ctx, r, "OnPayoutFrozen", &r.onPayoutFrozen, func(p OnPayoutFrozen) error {
		return p.OnPayoutFrozen(ctx, e)
	})
}

// EmitReleaseBatch emits the outcome of a release run.
func (r *Registry) EmitReleaseBatch(ctx context.Context, released, failed int, elapsed time.Duration) {
	emit(ctx, r, "OnReleaseBatch", &r.onReleaseBatch, func(p OnReleaseBatch) error {
		return p.OnReleaseBatch(ctx, released, failed, elapsed)
	})
}

// EmitThrottleDecision emits a pacing decision.
func (r *Registry) EmitThrottleDecision(ctx context.Context, campaignID id.CampaignID, d pacing.Decision) {
	emit(ctx, r, "OnThrottleDecision", &r.onThrottleDecision, func(p OnThrottleDecision) error {
		return p.OnThrottleDecision(ctx, campaignID, d)
	})
}

// EmitOperationFailed emits an infrastructure failure.
func (r *Registry) EmitOperationFailed(ctx context.Context, op string, err error) {
	emit(ctx, r, "OnOperationFailed", &r.onOperationFailed, func(p OnOperationFailed) error {
		return p.OnOperationFailed(ctx, op, err)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block money movement.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
