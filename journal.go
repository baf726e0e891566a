package treasury

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/journal"
	"github.com/xraph/treasury/store"
)

// ──────────────────────────────────────────────────
// Journal
// ──────────────────────────────────────────────────

// Append writes a payout or fee entry. The campaign's journal net may never
// exceed its total budget. Use Reverse to undo an entry.
func (t *Treasury) Append(ctx context.Context, e *journal.Entry) (*journal.Entry, error) {
	if err := validateEntry(e); err != nil {
		return nil, err
	}
	if e.ID.IsNil() {
		e.ID = id.NewJournalID()
	}
	e.CreatedAt = t.now()

	err := t.atomic(ctx, "append journal entry", []string{campaignKey(e.CampaignID.String())}, func(ctx context.Context, tx store.Tx) error {
		return appendTx(ctx, tx, e)
	})
	if err != nil {
		return nil, err
	}

	t.plugins.EmitJournalAppended(ctx, e)
	return e, nil
}

func validateEntry(e *journal.Entry) error {
	switch {
	case e.Type == journal.TypeReversal:
		return ValidationError{Field: "type", Message: "reversals are written with Reverse"}
	case !e.Type.Valid():
		return ValidationError{Field: "type", Message: "unknown entry type " + string(e.Type)}
	case e.CampaignID.IsNil():
		return ValidationError{Field: "campaign_id", Message: "is required"}
	case e.AmountCents <= 0:
		return ErrInvalidAmount
	}
	return nil
}

// appendTx enforces the campaign net bound and reference uniqueness, then
// writes e.
func appendTx(ctx context.Context, tx store.Tx, e *journal.Entry) error {
	c, err := tx.GetCampaignForUpdate(ctx, e.CampaignID)
	if err != nil {
		return err
	}

	if e.RefEventID != "" {
		_, err := tx.FindEntryByRef(ctx, e.CampaignID, e.Type, e.RefEventID)
		switch {
		case err == nil:
			return ErrDuplicateEntry
		case !errors.Is(err, ErrEntryNotFound):
			return err
		}
	}

	net, err := tx.NetByCampaign(ctx, e.CampaignID)
	if err != nil {
		return err
	}
	if net+e.AmountCents > c.TotalBudgetCents {
		return ErrBudgetExceeded
	}

	return tx.AppendEntry(ctx, e)
}

// Reverse appends a REVERSAL that cancels entryID. An entry can be
// reversed once; reversals themselves cannot be reversed.
func (t *Treasury) Reverse(ctx context.Context, entryID id.JournalID, reason string) (*journal.Entry, error) {
	orig, err := t.store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, t.fail(ctx, "reverse journal entry", err)
	}
	if orig.IsReversal() {
		return nil, ValidationError{Field: "entry_id", Message: "reversal entries cannot be reversed"}
	}

	var rev *journal.Entry
	now := t.now()
	err = t.atomic(ctx, "reverse journal entry", []string{campaignKey(orig.CampaignID.String())}, func(ctx context.Context, tx store.Tx) error {
		var err error
		rev, err = reverseTx(ctx, tx, entryID, reason, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	t.plugins.EmitJournalAppended(ctx, rev)
	return rev, nil
}

func reverseTx(ctx context.Context, tx store.Tx, entryID id.JournalID, reason string, now time.Time) (*journal.Entry, error) {
	orig, err := tx.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	// Holds the campaign row so reversals serialize with appends.
	if _, err := tx.GetCampaignForUpdate(ctx, orig.CampaignID); err != nil {
		return nil, err
	}

	_, err = tx.FindReversal(ctx, entryID)
	switch {
	case err == nil:
		return nil, ErrAlreadyReversed
	case !errors.Is(err, ErrEntryNotFound):
		return nil, err
	}

	rev := journal.ReversalOf(orig, reason, now)
	if err := tx.AppendEntry(ctx, rev); err != nil {
		return nil, err
	}
	return rev, nil
}

// GetEntry retrieves a journal entry by ID.
func (t *Treasury) GetEntry(ctx context.Context, entryID id.JournalID) (*journal.Entry, error) {
	e, err := t.store.GetEntry(ctx, entryID)
	return e, t.fail(ctx, "get journal entry", err)
}

// ListEntries lists journal entries matching opts in append order.
func (t *Treasury) ListEntries(ctx context.Context, opts journal.ListOpts) ([]*journal.Entry, error) {
	es, err := t.store.ListEntries(ctx, opts)
	return es, t.fail(ctx, "list journal entries", err)
}

// SumByCampaign returns the signed sum of the campaign's entries of the
// given types, or of all entries when no types are given.
func (t *Treasury) SumByCampaign(ctx context.Context, campaignID id.CampaignID, types ...journal.Type) (int64, error) {
	sum, err := t.store.SumByCampaign(ctx, campaignID, types...)
	return sum, t.fail(ctx, "sum journal by campaign", err)
}

// SumByCreator returns the signed sum of the creator's entries of the
// given types, or of all entries when no types are given.
func (t *Treasury) SumByCreator(ctx context.Context, creatorID id.CreatorID, types ...journal.Type) (int64, error) {
	sum, err := t.store.SumByCreator(ctx, creatorID, types...)
	return sum, t.fail(ctx, "sum journal by creator", err)
}
