package treasury

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/treasury/billing"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/journal"
	"github.com/xraph/treasury/payout"
	"github.com/xraph/treasury/store"
	"github.com/xraph/treasury/types"
)

// BillResult is the outcome of Bill.
type BillResult = billing.Result

// Bill charges a campaign for a billable event. An event already journaled
// for the campaign is rejected with ErrDuplicateEntry before the pacing
// decision is taken. When the event is billed, the spend, the creator
// credit and platform fee journal entries and the creator payout are
// written in one transaction.
func (t *Treasury) Bill(ctx context.Context, ev billing.Event) (*BillResult, error) {
	if err := ev.Validate(); err != nil {
		return nil, ValidationError{Field: "event", Message: err.Error()}
	}
	if err := ValidatePlatformFee(t.platformFeePercent); err != nil {
		return nil, err
	}

	creditType := ev.Kind.JournalType()

	// A replayed event fails the same way whatever the throttle draws.
	// The check inside the transaction below stays authoritative.
	seen, err := t.store.ListEntries(ctx, journal.ListOpts{
		CampaignID: ev.CampaignID,
		Types:      []journal.Type{creditType, journal.TypePlatformFee},
		RefEventID: ev.RefEventID,
		Limit:      1,
	})
	if err != nil {
		return nil, t.fail(ctx, "bill", err)
	}
	if len(seen) > 0 {
		return nil, ErrDuplicateEntry
	}

	res := &BillResult{
		Decision: t.Throttle(ctx, ev.CampaignID, ev.CreatorTrust, ev.VelocityRisk),
	}
	if !res.Decision.ShouldBill {
		t.logger.Debug("billing event throttled",
			"campaign_id", ev.CampaignID.String(),
			"ref_event_id", ev.RefEventID,
			"probability", res.Decision.Probability,
		)
		return res, nil
	}

	now := t.now()
	keys := []string{campaignKey(ev.CampaignID.String()), creatorKey(ev.CreatorID.String())}

	err = t.atomic(ctx, "bill", keys, func(ctx context.Context, tx store.Tx) error {
		c, err := tx.GetCampaignForUpdate(ctx, ev.CampaignID)
		if err != nil {
			return err
		}

		_, err = tx.FindEntryByRef(ctx, ev.CampaignID, creditType, ev.RefEventID)
		switch {
		case err == nil:
			return ErrDuplicateEntry
		case !errors.Is(err, ErrEntryNotFound):
			return err
		}

		gross := ev.AmountCents
		if ev.Kind == billing.KindView {
			gross = types.PerMille(c.CPMCents) * ev.Views
		}
		gross = types.Scale(gross, res.Decision.Multiplier)
		if gross <= 0 {
			return ErrInvalidAmount
		}

		spend, err := spendTx(ctx, tx, ev.CampaignID, gross, now)
		if err != nil {
			return err
		}

		fee := types.PercentOf(gross, t.platformFeePercent)
		creatorCents := gross - fee

		var credit, feeEntry *journal.Entry
		if creatorCents > 0 {
			credit = billingEntry(ev, creditType, creatorCents, now)
			if err := appendTx(ctx, tx, credit); err != nil {
				return err
			}
		}
		if fee > 0 {
			feeEntry = billingEntry(ev, journal.TypePlatformFee, fee, now)
			feeEntry.CreatorID = id.Nil
			if err := appendTx(ctx, tx, feeEntry); err != nil {
				return err
			}
		}

		var p *payout.Entry
		if credit != nil {
			p, err = t.enqueueTx(ctx, tx, payout.EnqueueInput{
				CreatorID:         ev.CreatorID,
				CampaignID:        ev.CampaignID,
				AmountCents:       creatorCents,
				Type:              creditType,
				JournalEntryID:    credit.ID,
				AppliedMultiplier: res.Decision.Multiplier,
			}, now)
			if err != nil {
				return err
			}
		}

		res.Billed = true
		res.GrossCents = gross
		res.FeeCents = fee
		res.CreatorCents = creatorCents
		res.Spend = spend
		res.CreditEntry = credit
		res.FeeEntry = feeEntry
		res.Payout = p
		res.Events = spend.Events
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.logger.Debug("billing event charged",
		"campaign_id", ev.CampaignID.String(),
		"creator_id", ev.CreatorID.String(),
		"ref_event_id", ev.RefEventID,
		"gross_cents", res.GrossCents,
		"fee_cents", res.FeeCents,
	)

	t.afterSpend(ctx, res.Spend)
	if res.CreditEntry != nil {
		t.plugins.EmitJournalAppended(ctx, res.CreditEntry)
	}
	if res.FeeEntry != nil {
		t.plugins.EmitJournalAppended(ctx, res.FeeEntry)
	}
	if res.Payout != nil {
		t.plugins.EmitPayoutEnqueued(ctx, res.Payout)
	}
	return res, nil
}

func billingEntry(ev billing.Event, typ journal.Type, amountCents int64, now time.Time) *journal.Entry {
	return &journal.Entry{
		ID:          id.NewJournalID(),
		CampaignID:  ev.CampaignID,
		CreatorID:   ev.CreatorID,
		Type:        typ,
		AmountCents: amountCents,
		RefEventID:  ev.RefEventID,
		CreatedAt:   now,
	}
}
