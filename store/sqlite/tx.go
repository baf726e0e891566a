package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/treasury"
	"github.com/xraph/treasury/budget"
	"github.com/xraph/treasury/campaign"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/journal"
	"github.com/xraph/treasury/payout"
	"github.com/xraph/treasury/store"
	"github.com/xraph/treasury/wallet"
)

var _ store.Tx = (*tx)(nil)

// Atomic runs fn in a transaction while holding the store's write lock.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	stx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("treasury/sqlite: begin: %w", err)
	}

	if err := fn(ctx, &tx{tx: stx}); err != nil {
		if rbErr := stx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("treasury/sqlite: rollback: %w", rbErr))
		}
		return err
	}

	if err := stx.Commit(); err != nil {
		return fmt.Errorf("treasury/sqlite: commit: %w", err)
	}
	return nil
}

type tx struct {
	tx *sqlitedriver.SqliteTx
}

// ==================== Wallets ====================

func (t *tx) GetWalletForUpdate(ctx context.Context, walletID id.WalletID) (*wallet.Wallet, error) {
	m := new(walletModel)
	err := t.tx.NewSelect(m).
		Where("id = ?", walletID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, treasury.ErrWalletNotFound
		}
		return nil, err
	}
	return fromWalletModel(m)
}

func (t *tx) UpdateWalletBalances(ctx context.Context, w *wallet.Wallet) error {
	res, err := t.tx.NewUpdate((*walletModel)(nil)).
		Set("available_cents = ?", w.AvailableCents).
		Set("pending_cents = ?", w.PendingCents).
		Set("updated_at = ?", formatTime(w.UpdatedAt)).
		Where("id = ?", w.ID.String()).
		Exec(ctx)
	return expectRow(res, err, treasury.ErrWalletNotFound)
}

// ==================== Campaigns ====================

func (t *tx) GetCampaignForUpdate(ctx context.Context, campaignID id.CampaignID) (*campaign.Campaign, error) {
	m := new(campaignModel)
	err := t.tx.NewSelect(m).
		Where("id = ?", campaignID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, treasury.ErrCampaignNotFound
		}
		return nil, err
	}
	return fromCampaignModel(m)
}

func (t *tx) UpdateCampaignState(ctx context.Context, c *campaign.Campaign) error {
	res, err := t.tx.NewUpdate((*campaignModel)(nil)).
		Set("spent_budget_cents = ?", c.SpentBudgetCents).
		Set("status = ?", string(c.Status)).
		Set("auto_paused_at = ?", formatTimePtr(c.AutoPausedAt)).
		Set("pause_reason = ?", c.PauseReason).
		Set("updated_at = ?", formatTime(c.UpdatedAt)).
		Where("id = ?", c.ID.String()).
		Exec(ctx)
	return expectRow(res, err, treasury.ErrCampaignNotFound)
}

// ==================== Budget locks ====================

func (t *tx) GetLockForUpdate(ctx context.Context, campaignID id.CampaignID) (*budget.Lock, error) {
	m := new(lockModel)
	err := t.tx.NewSelect(m).
		Where("campaign_id = ?", campaignID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, treasury.ErrNoBudgetLock
		}
		return nil, err
	}
	return fromLockModel(m)
}

func (t *tx) SaveLock(ctx context.Context, l *budget.Lock) error {
	_, err := t.tx.NewInsert(toLockModel(l)).
		OnConflict("(campaign_id) DO UPDATE").
		Set("locked_cents = EXCLUDED.locked_cents").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// ==================== Journal ====================

func (t *tx) AppendEntry(ctx context.Context, e *journal.Entry) error {
	_, err := t.tx.NewInsert(toJournalModel(e)).Exec(ctx)
	if isUniqueViolation(err) {
		return treasury.ErrDuplicateEntry
	}
	return err
}

func (t *tx) GetEntry(ctx context.Context, entryID id.JournalID) (*journal.Entry, error) {
	m := new(journalModel)
	err := t.tx.NewSelect(m).
		Where("id = ?", entryID.String()).
		Scan(ctx)
	return entryResult(m, err)
}

func (t *tx) FindReversal(ctx context.Context, entryID id.JournalID) (*journal.Entry, error) {
	m := new(journalModel)
	err := t.tx.NewSelect(m).
		Where("reverses_id = ?", entryID.String()).
		Limit(1).
		Scan(ctx)
	return entryResult(m, err)
}

func (t *tx) FindEntryByRef(ctx context.Context, campaignID id.CampaignID, typ journal.Type, refEventID string) (*journal.Entry, error) {
	m := new(journalModel)
	err := t.tx.NewSelect(m).
		Where("campaign_id = ?", campaignID.String()).
		Where("type = ?", string(typ)).
		Where("ref_event_id = ?", refEventID).
		Limit(1).
		Scan(ctx)
	return entryResult(m, err)
}

func entryResult(m *journalModel, err error) (*journal.Entry, error) {
	if err != nil {
		if isNoRows(err) {
			return nil, treasury.ErrEntryNotFound
		}
		return nil, err
	}
	return fromJournalModel(m)
}

func (t *tx) NetByCampaign(ctx context.Context, campaignID id.CampaignID) (int64, error) {
	query, args := sumQuery("campaign_id", campaignID.String(), nil)
	var net int64
	if err := t.tx.NewRaw(query, args...).Scan(ctx, &net); err != nil {
		return 0, err
	}
	return net, nil
}

// ==================== Payouts ====================

func (t *tx) InsertPayout(ctx context.Context, p *payout.Entry) error {
	_, err := t.tx.NewInsert(toPayoutModel(p)).Exec(ctx)
	if isUniqueViolation(err) {
		return treasury.ErrAlreadyExists
	}
	return err
}

func (t *tx) GetPayoutForUpdate(ctx context.Context, entryID id.PayoutID) (*payout.Entry, error) {
	m := new(payoutModel)
	err := t.tx.NewSelect(m).
		Where("id = ?", entryID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, treasury.ErrPayoutNotFound
		}
		return nil, err
	}
	return fromPayoutModel(m)
}

func (t *tx) UpdatePayout(ctx context.Context, p *payout.Entry) error {
	res, err := t.tx.NewUpdate((*payoutModel)(nil)).
		Set("status = ?", string(p.Status)).
		Set("released_at = ?", formatTimePtr(p.ReleasedAt)).
		Set("cancelled_at = ?", formatTimePtr(p.CancelledAt)).
		Set("frozen_at = ?", formatTimePtr(p.FrozenAt)).
		Set("reserve_returned_at = ?", formatTimePtr(p.ReserveReturnedAt)).
		Set("status_reason = ?", p.StatusReason).
		Set("updated_at = ?", formatTime(p.UpdatedAt)).
		Where("id = ?", p.ID.String()).
		Exec(ctx)
	return expectRow(res, err, treasury.ErrPayoutNotFound)
}

// ==================== Creator balances ====================

func (t *tx) GetCreatorBalanceForUpdate(ctx context.Context, creatorID id.CreatorID) (*payout.Balance, error) {
	m := new(balanceModel)
	err := t.tx.NewSelect(m).
		Where("creator_id = ?", creatorID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, treasury.ErrCreatorNotFound
		}
		return nil, err
	}
	return fromBalanceModel(m)
}

func (t *tx) SaveCreatorBalance(ctx context.Context, b *payout.Balance) error {
	_, err := t.tx.NewInsert(toBalanceModel(b)).
		OnConflict("(creator_id) DO UPDATE").
		Set("available_cents = EXCLUDED.available_cents").
		Set("pending_cents = EXCLUDED.pending_cents").
		Set("total_earned_cents = EXCLUDED.total_earned_cents").
		Set("reserved_cents = EXCLUDED.reserved_cents").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}
