package treasury

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/treasury/budget"
	"github.com/xraph/treasury/campaign"
	"github.com/xraph/treasury/event"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/store"
	"github.com/xraph/treasury/types"
)

// ──────────────────────────────────────────────────
// Budget locking
// ──────────────────────────────────────────────────

// Lock moves amountCents from the campaign wallet's available
// balance into the campaign's budget lock. The campaign must be active and
// the lock may never exceed what is left of the campaign budget.
func (t *Treasury) Lock(ctx context.Context, campaignID id.CampaignID, amountCents int64) (*budget.LockResult, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}

	var res *budget.LockResult
	now := t.now()
	err := t.atomic(ctx, "lock budget", []string{campaignKey(campaignID.String())}, func(ctx context.Context, tx store.Tx) error {
		var err error
		res, err = lockTx(ctx, tx, campaignID, amountCents, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	t.logger.Debug("budget locked",
		"campaign_id", campaignID.String(),
		"amount_cents", amountCents,
		"locked_cents", res.LockedCents,
	)
	t.dispatch(ctx, res.Events)
	t.plugins.EmitBudgetLocked(ctx, res)

	return res, nil
}

func lockTx(ctx context.Context, tx store.Tx, campaignID id.CampaignID, amountCents int64, now time.Time) (*budget.LockResult, error) {
	c, err := tx.GetCampaignForUpdate(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !c.IsActive() {
		return nil, ErrCampaignNotActive
	}

	l, err := tx.GetLockForUpdate(ctx, campaignID)
	switch {
	case errors.Is(err, ErrNoBudgetLock):
		l = &budget.Lock{
			Entity:     types.NewEntityAt(now),
			ID:         id.NewLockID(),
			CampaignID: c.ID,
			WalletID:   c.WalletID,
		}
	case err != nil:
		return nil, err
	}

	if amountCents > c.TotalBudgetCents-c.SpentBudgetCents-l.LockedCents {
		return nil, ErrBudgetExceeded
	}

	w, err := tx.GetWalletForUpdate(ctx, c.WalletID)
	if err != nil {
		return nil, err
	}
	if w.AvailableCents < amountCents {
		return nil, ErrInsufficientFunds
	}

	w.AvailableCents -= amountCents
	w.PendingCents += amountCents
	w.TouchAt(now)
	if err := tx.UpdateWalletBalances(ctx, w); err != nil {
		return nil, err
	}

	l.LockedCents += amountCents
	l.TouchAt(now)
	if err := tx.SaveLock(ctx, l); err != nil {
		return nil, err
	}

	ev := event.New(event.TypeReserveLocked, now)
	ev.CampaignID = c.ID
	ev.WalletID = w.ID
	ev.AmountCents = amountCents

	return &budget.LockResult{
		CampaignID:     c.ID,
		MovedCents:     amountCents,
		LockedCents:    l.LockedCents,
		AvailableCents: w.AvailableCents,
		PendingCents:   w.PendingCents,
		Events:         []event.Event{ev},
	}, nil
}

// Release returns up to amountCents of unspent locked funds to the
// wallet. Releasing more than is locked releases what is there.
func (t *Treasury) Release(ctx context.Context, campaignID id.CampaignID, amountCents int64) (*budget.LockResult, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}

	var res *budget.LockResult
	now := t.now()
	err := t.atomic(ctx, "release budget", []string{campaignKey(campaignID.String())}, func(ctx context.Context, tx store.Tx) error {
		c, err := tx.GetCampaignForUpdate(ctx, campaignID)
		if err != nil {
			return err
		}
		l, err := tx.GetLockForUpdate(ctx, campaignID)
		if err != nil {
			return err
		}
		w, err := tx.GetWalletForUpdate(ctx, c.WalletID)
		if err != nil {
			return err
		}

		moved := min(amountCents, l.LockedCents)
		res = &budget.LockResult{CampaignID: c.ID}
		if moved > 0 {
			l.LockedCents -= moved
			l.TouchAt(now)
			if err := tx.SaveLock(ctx, l); err != nil {
				return err
			}

			w.PendingCents -= moved
			w.AvailableCents += moved
			w.TouchAt(now)
			if err := tx.UpdateWalletBalances(ctx, w); err != nil {
				return err
			}

			ev := event.New(event.TypeReserveReleased, now)
			ev.CampaignID = c.ID
			ev.WalletID = w.ID
			ev.AmountCents = moved
			res.Events = append(res.Events, ev)
		}

		res.MovedCents = moved
		res.LockedCents = l.LockedCents
		res.AvailableCents = w.AvailableCents
		res.PendingCents = w.PendingCents
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.dispatch(ctx, res.Events)
	t.plugins.EmitBudgetReleased(ctx, res)

	return res, nil
}

// ──────────────────────────────────────────────────
// Spending
// ──────────────────────────────────────────────────

// Spend consumes amountCents of locked budget. The wallet's pending
// balance shrinks by the same amount. A campaign whose budget is fully
// spent is paused automatically.
func (t *Treasury) Spend(ctx context.Context, campaignID id.CampaignID, amountCents int64) (*budget.SpendResult, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}

	var res *budget.SpendResult
	now := t.now()
	err := t.atomic(ctx, "spend", []string{campaignKey(campaignID.String())}, func(ctx context.Context, tx store.Tx) error {
		var err error
		res, err = spendTx(ctx, tx, campaignID, amountCents, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	t.afterSpend(ctx, res)
	return res, nil
}

func (t *Treasury) afterSpend(ctx context.Context, res *budget.SpendResult) {
	if res.AutoPaused {
		t.logger.Info("campaign auto-paused",
			"campaign_id", res.CampaignID.String(),
			"spent_cents", res.SpentCents,
		)
	}
	t.dispatch(ctx, res.Events)
	t.plugins.EmitBudgetSpent(ctx, res)
	if res.AutoPaused {
		t.plugins.EmitCampaignAutoPaused(ctx, res.CampaignID)
	}
}

func spendTx(ctx context.Context, tx store.Tx, campaignID id.CampaignID, amountCents int64, now time.Time) (*budget.SpendResult, error) {
	c, err := tx.GetCampaignForUpdate(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	l, err := tx.GetLockForUpdate(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if amountCents > l.LockedCents {
		return nil, ErrBudgetExceeded
	}
	w, err := tx.GetWalletForUpdate(ctx, c.WalletID)
	if err != nil {
		return nil, err
	}

	l.LockedCents -= amountCents
	l.TouchAt(now)
	if err := tx.SaveLock(ctx, l); err != nil {
		return nil, err
	}

	w.PendingCents -= amountCents
	w.TouchAt(now)
	if err := tx.UpdateWalletBalances(ctx, w); err != nil {
		return nil, err
	}

	res := &budget.SpendResult{CampaignID: c.ID}
	c.SpentBudgetCents += amountCents
	if c.RemainingBudget() <= 0 && c.IsActive() {
		at := now
		c.Status = campaign.StatusPaused
		c.AutoPausedAt = &at
		c.PauseReason = campaign.PauseReasonBudgetExhausted
		res.AutoPaused = true

		ev := event.New(event.TypeCampaignAutoPaused, now)
		ev.CampaignID = c.ID
		ev.WalletID = c.WalletID
		ev.Metadata = map[string]string{"reason": campaign.PauseReasonBudgetExhausted}
		res.Events = append(res.Events, ev)
	}
	c.TouchAt(now)
	if err := tx.UpdateCampaignState(ctx, c); err != nil {
		return nil, err
	}

	res.SpentCents = c.SpentBudgetCents
	res.LockedCents = l.LockedCents
	res.PendingCents = w.PendingCents
	return res, nil
}

// ComputeBudget projects the campaign's budget position.
func (t *Treasury) ComputeBudget(ctx context.Context, campaignID id.CampaignID) (*budget.Budget, error) {
	c, err := t.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, t.fail(ctx, "compute budget", err)
	}
	l, err := t.store.GetLock(ctx, campaignID)
	if err != nil && !errors.Is(err, ErrNoBudgetLock) {
		return nil, t.fail(ctx, "compute budget", err)
	}
	return budget.Project(c, l), nil
}
