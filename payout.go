package treasury

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/treasury/event"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/payout"
	"github.com/xraph/treasury/store"
	"github.com/xraph/treasury/types"
)

// DefaultTrustScore is the trust score of a creator with no profile.
const DefaultTrustScore = 50.0

// ──────────────────────────────────────────────────
// Enqueue
// ──────────────────────────────────────────────────

// Enqueue holds a creator credit until its risk-based release date. The
// creator's current profile is snapshotted onto the entry and never
// re-read for it.
func (t *Treasury) Enqueue(ctx context.Context, in payout.EnqueueInput) (*payout.Entry, error) {
	if err := validateEnqueue(in); err != nil {
		return nil, err
	}

	var p *payout.Entry
	now := t.now()
	err := t.atomic(ctx, "enqueue payout", []string{creatorKey(in.CreatorID.String())}, func(ctx context.Context, tx store.Tx) error {
		var err error
		p, err = t.enqueueTx(ctx, tx, in, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	t.plugins.EmitPayoutEnqueued(ctx, p)
	return p, nil
}

func validateEnqueue(in payout.EnqueueInput) error {
	switch {
	case in.CreatorID.IsNil():
		return ValidationError{Field: "creator_id", Message: "is required"}
	case in.CampaignID.IsNil():
		return ValidationError{Field: "campaign_id", Message: "is required"}
	case !in.Type.IsCreatorCredit():
		return ValidationError{Field: "type", Message: "must be a creator payout type"}
	case in.AmountCents <= 0:
		return ErrInvalidAmount
	}
	return nil
}

func (t *Treasury) enqueueTx(ctx context.Context, tx store.Tx, in payout.EnqueueInput, now time.Time) (*payout.Entry, error) {
	b, err := tx.GetCreatorBalanceForUpdate(ctx, in.CreatorID)
	switch {
	case errors.Is(err, ErrCreatorNotFound):
		b = &payout.Balance{
			Entity:     types.NewEntityAt(now),
			CreatorID:  in.CreatorID,
			RiskLevel:  payout.RiskMedium,
			TrustScore: DefaultTrustScore,
		}
	case err != nil:
		return nil, err
	}

	p := payout.NewEntry(in, b.Profile(), t.policy, now)
	if err := tx.InsertPayout(ctx, p); err != nil {
		return nil, err
	}

	b.PendingCents += p.AmountCents
	b.TouchAt(now)
	if err := tx.SaveCreatorBalance(ctx, b); err != nil {
		return nil, err
	}
	return p, nil
}

// ──────────────────────────────────────────────────
// Release
// ──────────────────────────────────────────────────

// ReleaseEligible credits every pending entry whose hold has elapsed at
// now. Entries are read in pages of the release batch size, in
// (eligible_at, id) order, until a short page comes back. Each entry is
// released in its own transaction; a failed entry is recorded in the
// report and the run moves past it.
func (t *Treasury) ReleaseEligible(ctx context.Context, now time.Time) (*payout.ReleaseReport, error) {
	start := time.Now()
	now = now.UTC()

	report := &payout.ReleaseReport{}
	var (
		cursor payout.Cursor
		seen   int
	)
	for {
		page, err := t.store.ListEligiblePayouts(ctx, now, cursor, t.releaseBatchSize)
		if err != nil {
			if seen == 0 {
				return nil, t.fail(ctx, "list eligible payouts", err)
			}
			report.Failures = append(report.Failures, payout.Failure{Err: err})
			t.logger.Error("listing eligible payouts failed", "after_payout_id", cursor.ID.String(), "error", err)
			break
		}

		for _, candidate := range page {
			t.releaseOne(ctx, candidate, now, report)
		}
		seen += len(page)

		if len(page) == 0 || len(page) < t.releaseBatchSize || ctx.Err() != nil {
			break
		}
		cursor = payout.CursorOf(page[len(page)-1])
	}

	t.dispatch(ctx, report.Events)
	for _, p := range report.Released {
		t.plugins.EmitPayoutReleased(ctx, p)
	}
	t.plugins.EmitReleaseBatch(ctx, len(report.Released), len(report.Failures), time.Since(start))

	if seen > 0 {
		t.logger.Info("payout release run",
			"released", len(report.Released),
			"skipped", report.Skipped,
			"failed", len(report.Failures),
			"released_cents", report.ReleasedCents(),
		)
	}
	return report, nil
}

// releaseOne releases a single candidate and records the outcome in report.
func (t *Treasury) releaseOne(ctx context.Context, candidate *payout.Entry, now time.Time, report *payout.ReleaseReport) {
	if ctx.Err() != nil {
		report.Failures = append(report.Failures, payout.Failure{EntryID: candidate.ID, Err: ctx.Err()})
		return
	}

	var (
		p       *payout.Entry
		ev      event.Event
		skipped bool
	)
	err := t.atomic(ctx, "release payout", []string{creatorKey(candidate.CreatorID.String())}, func(ctx context.Context, tx store.Tx) error {
		var err error
		p, err = tx.GetPayoutForUpdate(ctx, candidate.ID)
		if err != nil {
			return err
		}
		if p.Status != payout.StatusPending || p.EligibleAt.After(now) {
			skipped = true
			return nil
		}
		ev, err = creditTx(ctx, tx, p, now)
		return err
	})
	switch {
	case err != nil:
		report.Failures = append(report.Failures, payout.Failure{EntryID: candidate.ID, Err: err})
		t.logger.Warn("payout release failed",
			"payout_id", candidate.ID.String(),
			"creator_id", candidate.CreatorID.String(),
			"error", err,
		)
	case skipped:
		report.Skipped++
		t.logger.Debug("payout skipped",
			"payout_id", candidate.ID.String(),
			"status", p.Status,
		)
	default:
		report.Released = append(report.Released, p)
		report.Events = append(report.Events, ev)
	}
}

// creditTx moves p to RELEASED and credits its net amount to the creator.
func creditTx(ctx context.Context, tx store.Tx, p *payout.Entry, now time.Time) (event.Event, error) {
	b, err := tx.GetCreatorBalanceForUpdate(ctx, p.CreatorID)
	if err != nil {
		return event.Event{}, err
	}

	at := now
	p.Status = payout.StatusReleased
	p.ReleasedAt = &at
	p.TouchAt(now)
	if err := tx.UpdatePayout(ctx, p); err != nil {
		return event.Event{}, err
	}

	net := p.NetCents()
	b.AvailableCents += net
	b.PendingCents -= p.AmountCents
	b.TotalEarnedCents += net
	b.ReservedCents += p.ReserveAmountCents
	b.TouchAt(now)
	if err := tx.SaveCreatorBalance(ctx, b); err != nil {
		return event.Event{}, err
	}

	ev := event.New(event.TypeWalletCredited, now)
	ev.CreatorID = p.CreatorID
	ev.CampaignID = p.CampaignID
	ev.PayoutID = p.ID
	ev.AmountCents = net
	return ev, nil
}

// ReleaseFrozen releases a frozen entry once the hold on it is lifted.
// The release date is not re-checked.
func (t *Treasury) ReleaseFrozen(ctx context.Context, entryID id.PayoutID) (*payout.Result, error) {
	res, err := t.transition(ctx, "release frozen payout", entryID, false, func(ctx context.Context, tx store.Tx, p *payout.Entry, now time.Time) ([]event.Event, error) {
		if p.Status != payout.StatusFrozen {
			return nil, ErrInvalidTransition
		}
		ev, err := creditTx(ctx, tx, p, now)
		if err != nil {
			return nil, err
		}
		return []event.Event{ev}, nil
	})
	if err != nil {
		return nil, err
	}

	t.plugins.EmitPayoutReleased(ctx, res.Entry)
	return res, nil
}

// ──────────────────────────────────────────────────
// Cancel and freeze
// ──────────────────────────────────────────────────

// Cancel voids a pending or frozen entry. The amount leaves the creator's
// pending balance without being credited, and the journal entry behind it
// is reversed unless it already was.
func (t *Treasury) Cancel(ctx context.Context, entryID id.PayoutID, reason string) (*payout.Entry, error) {
	res, err := t.transition(ctx, "cancel payout", entryID, true, func(ctx context.Context, tx store.Tx, p *payout.Entry, now time.Time) ([]event.Event, error) {
		if !payout.CanTransition(p.Status, payout.StatusCancelled) {
			return nil, ErrInvalidTransition
		}

		at := now
		p.Status = payout.StatusCancelled
		p.CancelledAt = &at
		p.StatusReason = reason
		p.TouchAt(now)
		if err := tx.UpdatePayout(ctx, p); err != nil {
			return nil, err
		}

		if !p.JournalEntryID.IsNil() {
			_, err := reverseTx(ctx, tx, p.JournalEntryID, reversalReason(reason), now)
			if err != nil && !errors.Is(err, ErrAlreadyReversed) {
				return nil, err
			}
		}

		b, err := tx.GetCreatorBalanceForUpdate(ctx, p.CreatorID)
		if err != nil {
			return nil, err
		}
		b.PendingCents -= p.AmountCents
		b.TouchAt(now)
		return nil, tx.SaveCreatorBalance(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	t.logger.Info("payout cancelled",
		"payout_id", entryID.String(),
		"amount_cents", res.Entry.AmountCents,
		"reason", reason,
	)
	t.plugins.EmitPayoutCancelled(ctx, res.Entry)
	return res.Entry, nil
}

func reversalReason(reason string) string {
	if reason == "" {
		return "payout cancelled"
	}
	return "payout cancelled: " + reason
}

// Freeze holds a pending entry indefinitely. Frozen entries stay in the
// creator's pending balance until released or cancelled.
func (t *Treasury) Freeze(ctx context.Context, entryID id.PayoutID, reason string) (*payout.Entry, error) {
	res, err := t.transition(ctx, "freeze payout", entryID, false, func(ctx context.Context, tx store.Tx, p *payout.Entry, now time.Time) ([]event.Event, error) {
		if p.Status != payout.StatusPending {
			return nil, ErrInvalidTransition
		}
		at := now
		p.Status = payout.StatusFrozen
		p.FrozenAt = &at
		p.StatusReason = reason
		p.TouchAt(now)
		return nil, tx.UpdatePayout(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	t.plugins.EmitPayoutFrozen(ctx, res.Entry)
	return res.Entry, nil
}

// ReturnReserve credits the reserve withheld from a released entry to the
// creator's available balance. A reserve is returned at most once.
func (t *Treasury) ReturnReserve(ctx context.Context, entryID id.PayoutID) (*payout.Result, error) {
	return t.transition(ctx, "return reserve", entryID, false, func(ctx context.Context, tx store.Tx, p *payout.Entry, now time.Time) ([]event.Event, error) {
		if p.Status != payout.StatusReleased {
			return nil, ErrInvalidTransition
		}
		if p.ReserveReturnedAt != nil {
			return nil, ErrReserveAlreadyReturned
		}

		at := now
		p.ReserveReturnedAt = &at
		p.TouchAt(now)
		if err := tx.UpdatePayout(ctx, p); err != nil {
			return nil, err
		}

		reserve := p.ReserveAmountCents
		if reserve == 0 {
			return nil, nil
		}

		b, err := tx.GetCreatorBalanceForUpdate(ctx, p.CreatorID)
		if err != nil {
			return nil, err
		}
		b.ReservedCents -= reserve
		b.AvailableCents += reserve
		b.TotalEarnedCents += reserve
		b.TouchAt(now)
		if err := tx.SaveCreatorBalance(ctx, b); err != nil {
			return nil, err
		}

		ev := event.New(event.TypeReserveReleased, now)
		ev.CreatorID = p.CreatorID
		ev.CampaignID = p.CampaignID
		ev.PayoutID = p.ID
		ev.AmountCents = reserve
		return []event.Event{ev}, nil
	})
}

type transitionFunc func(ctx context.Context, tx store.Tx, p *payout.Entry, now time.Time) ([]event.Event, error)

// transition runs fn against the locked payout row. withCampaign also
// takes the campaign guard, ahead of the creator guard.
func (t *Treasury) transition(ctx context.Context, op string, entryID id.PayoutID, withCampaign bool, fn transitionFunc) (*payout.Result, error) {
	cur, err := t.store.GetPayout(ctx, entryID)
	if err != nil {
		return nil, t.fail(ctx, op, err)
	}

	keys := []string{creatorKey(cur.CreatorID.String())}
	if withCampaign {
		keys = []string{campaignKey(cur.CampaignID.String()), keys[0]}
	}

	res := &payout.Result{}
	now := t.now()
	err = t.atomic(ctx, op, keys, func(ctx context.Context, tx store.Tx) error {
		p, err := tx.GetPayoutForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		events, err := fn(ctx, tx, p, now)
		if err != nil {
			return err
		}
		res.Entry = p
		res.Events = events
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.dispatch(ctx, res.Events)
	return res, nil
}

// ──────────────────────────────────────────────────
// Creators
// ──────────────────────────────────────────────────

// UpsertCreatorProfile records the creator's current risk profile. Entries
// already queued keep the profile they were created with.
func (t *Treasury) UpsertCreatorProfile(ctx context.Context, p payout.Profile) error {
	var errs MultiError
	if p.CreatorID.IsNil() {
		errs.Add(ValidationError{Field: "creator_id", Message: "is required"})
	}
	if !p.RiskLevel.Valid() {
		errs.Add(ValidationError{Field: "risk_level", Message: "must be LOW, MEDIUM or HIGH"})
	}
	if p.TrustScore < 0 || p.TrustScore > 100 {
		errs.Add(ValidationError{Field: "trust_score", Message: "must be between 0 and 100"})
	}
	if p.PayoutDelayDays < 0 {
		errs.Add(ValidationError{Field: "payout_delay_days", Message: "must not be negative"})
	}
	if errs.HasErrors() {
		return errs
	}

	if err := t.store.UpsertCreatorProfile(ctx, p); err != nil {
		return t.fail(ctx, "upsert creator profile", err)
	}
	return nil
}

// GetCreatorBalance retrieves a creator's balance and risk profile.
func (t *Treasury) GetCreatorBalance(ctx context.Context, creatorID id.CreatorID) (*payout.Balance, error) {
	b, err := t.store.GetCreatorBalance(ctx, creatorID)
	return b, t.fail(ctx, "get creator balance", err)
}

// GetPayout retrieves a payout entry by ID.
func (t *Treasury) GetPayout(ctx context.Context, entryID id.PayoutID) (*payout.Entry, error) {
	p, err := t.store.GetPayout(ctx, entryID)
	return p, t.fail(ctx, "get payout", err)
}

// ListPayouts lists payout entries matching opts.
func (t *Treasury) ListPayouts(ctx context.Context, opts payout.ListOpts) ([]*payout.Entry, error) {
	ps, err := t.store.ListPayouts(ctx, opts)
	return ps, t.fail(ctx, "list payouts", err)
}
