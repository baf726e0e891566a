package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/grove/driver"

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

// Atomic runs fn inside a READ COMMITTED transaction. Rows read through the
// ForUpdate methods stay locked until commit or rollback.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	dtx, err := s.pg.BeginTx(ctx, &driver.TxOptions{IsolationLevel: driver.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("treasury/postgres: begin: %w", err)
	}

	if err := fn(ctx, &tx{tx: dtx}); err != nil {
		if rbErr := dtx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("treasury/postgres: rollback: %w", rbErr))
		}
		return err
	}

	if err := dtx.Commit(); err != nil {
		return fmt.Errorf("treasury/postgres: commit: %w", err)
	}
	return nil
}

type tx struct {
	tx driver.Tx
}

// ==================== Wallets ====================

func (t *tx) GetWalletForUpdate(ctx context.Context, walletID id.WalletID) (*wallet.Wallet, error) {
	m := new(walletModel)
	err := t.tx.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM treasury_wallets WHERE id = $1 FOR UPDATE`,
		walletID.String(),
	).Scan(m.fields()...)
	if err != nil {
		if isNoRows(err) {
			return nil, treasury.ErrWalletNotFound
		}
		return nil, err
	}
	return fromWalletModel(m)
}

func (t *tx) UpdateWalletBalances(ctx context.Context, w *wallet.Wallet) error {
	res, err := t.tx.Exec(ctx,
		`UPDATE treasury_wallets SET available_cents = $1, pending_cents = $2, updated_at = $3 WHERE id = $4`,
		w.AvailableCents, w.PendingCents, w.UpdatedAt, w.ID.String(),
	)
	return expectRow(res, err, treasury.ErrWalletNotFound)
}

// ==================== Campaigns ====================

func (t *tx) GetCampaignForUpdate(ctx context.Context, campaignID id.CampaignID) (*campaign.Campaign, error) {
	m := new(campaignModel)
	err := t.tx.QueryRow(ctx,
		`SELECT `+campaignColumns+` FROM treasury_campaigns WHERE id = $1 FOR UPDATE`,
		campaignID.String(),
	).Scan(m.fields()...)
	if err != nil {
		if isNoRows(err) {
			return nil, treasury.ErrCampaignNotFound
		}
		return nil, err
	}
	return fromCampaignModel(m)
}

func (t *tx) UpdateCampaignState(ctx context.Context, c *campaign.Campaign) error {
	res, err := t.tx.Exec(ctx, `
UPDATE treasury_campaigns
SET spent_budget_cents = $1, status = $2, auto_paused_at = $3, pause_reason = $4, updated_at = $5
WHERE id = $6`,
		c.SpentBudgetCents, string(c.Status), c.AutoPausedAt, c.PauseReason, c.UpdatedAt, c.ID.String(),
	)
	return expectRow(res, err, treasury.ErrCampaignNotFound)
}

// ==================== Budget locks ====================

func (t *tx) GetLockForUpdate(ctx context.Context, campaignID id.CampaignID) (*budget.Lock, error) {
	m := new(lockModel)
	err := t.tx.QueryRow(ctx,
		`SELECT `+lockColumns+` FROM treasury_budget_locks WHERE campaign_id = $1 FOR UPDATE`,
		campaignID.String(),
	).Scan(m.fields()...)
	if err != nil {
		if isNoRows(err) {
			return nil, treasury.ErrNoBudgetLock
		}
		return nil, err
	}
	return fromLockModel(m)
}

func (t *tx) SaveLock(ctx context.Context, l *budget.Lock) error {
	_, err := t.tx.Exec(ctx, `
INSERT INTO treasury_budget_locks (`+lockColumns+`)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (campaign_id) DO UPDATE
SET locked_cents = EXCLUDED.locked_cents, updated_at = EXCLUDED.updated_at`,
		l.ID.String(), l.CampaignID.String(), l.WalletID.String(), l.LockedCents, l.CreatedAt, l.UpdatedAt,
	)
	return err
}

// ==================== Journal ====================

func (t *tx) AppendEntry(ctx context.Context, e *journal.Entry) error {
	m := toJournalModel(e)
	_, err := t.tx.Exec(ctx, `
INSERT INTO treasury_journal (`+journalColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.ID, m.CampaignID, m.CreatorID, m.Type, m.AmountCents, m.RefEventID, m.ReversesID, m.Reason, m.Metadata, m.CreatedAt,
	)
	if isUniqueViolation(err) {
		return treasury.ErrDuplicateEntry
	}
	return err
}

func (t *tx) GetEntry(ctx context.Context, entryID id.JournalID) (*journal.Entry, error) {
	return t.queryEntry(ctx, `WHERE id = $1`, entryID.String())
}

func (t *tx) FindReversal(ctx context.Context, entryID id.JournalID) (*journal.Entry, error) {
	return t.queryEntry(ctx, `WHERE reverses_id = $1`, entryID.String())
}

func (t *tx) FindEntryByRef(ctx context.Context, campaignID id.CampaignID, typ journal.Type, refEventID string) (*journal.Entry, error) {
	return t.queryEntry(ctx,
		`WHERE campaign_id = $1 AND type = $2 AND ref_event_id = $3`,
		campaignID.String(), string(typ), refEventID,
	)
}

func (t *tx) queryEntry(ctx context.Context, where string, args ...any) (*journal.Entry, error) {
	m := new(journalModel)
	err := t.tx.QueryRow(ctx, `SELECT `+journalColumns+` FROM treasury_journal `+where+` LIMIT 1`, args...).
		Scan(m.fields()...)
	if err != nil {
		if isNoRows(err) {
			return nil, treasury.ErrEntryNotFound
		}
		return nil, err
	}
	return fromJournalModel(m)
}

func (t *tx) NetByCampaign(ctx context.Context, campaignID id.CampaignID) (int64, error) {
	var net int64
	err := t.tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM treasury_journal WHERE campaign_id = $1`,
		campaignID.String(),
	).Scan(&net)
	return net, err
}

// ==================== Payouts ====================

func (t *tx) InsertPayout(ctx context.Context, p *payout.Entry) error {
	m := toPayoutModel(p)
	_, err := t.tx.Exec(ctx, `
INSERT INTO treasury_payouts (`+payoutColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		m.ID, m.CreatorID, m.CampaignID, m.JournalEntryID, m.AmountCents, m.Type, m.Status, m.EligibleAt,
		m.RiskSnapshotScore, m.RiskLevel, m.ReservePercent, m.ReserveAmountCents, m.AppliedMultiplier,
		m.ReleasedAt, m.CancelledAt, m.FrozenAt, m.StatusReason, m.ReserveReturnedAt, m.CreatedAt, m.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return treasury.ErrAlreadyExists
	}
	return err
}

func (t *tx) GetPayoutForUpdate(ctx context.Context, entryID id.PayoutID) (*payout.Entry, error) {
	m := new(payoutModel)
	err := t.tx.QueryRow(ctx,
		`SELECT `+payoutColumns+` FROM treasury_payouts WHERE id = $1 FOR UPDATE`,
		entryID.String(),
	).Scan(m.fields()...)
	if err != nil {
		if isNoRows(err) {
			return nil, treasury.ErrPayoutNotFound
		}
		return nil, err
	}
	return fromPayoutModel(m)
}

func (t *tx) UpdatePayout(ctx context.Context, p *payout.Entry) error {
	res, err := t.tx.Exec(ctx, `
UPDATE treasury_payouts
SET status = $1, released_at = $2, cancelled_at = $3, frozen_at = $4,
    reserve_returned_at = $5, status_reason = $6, updated_at = $7
WHERE id = $8`,
		string(p.Status), p.ReleasedAt, p.CancelledAt, p.FrozenAt,
		p.ReserveReturnedAt, p.StatusReason, p.UpdatedAt, p.ID.String(),
	)
	return expectRow(res, err, treasury.ErrPayoutNotFound)
}

// ==================== Creator balances ====================

func (t *tx) GetCreatorBalanceForUpdate(ctx context.Context, creatorID id.CreatorID) (*payout.Balance, error) {
	m := new(balanceModel)
	err := t.tx.QueryRow(ctx,
		`SELECT `+balanceColumns+` FROM treasury_creator_balances WHERE creator_id = $1 FOR UPDATE`,
		creatorID.String(),
	).Scan(m.fields()...)
	if err != nil {
		if isNoRows(err) {
			return nil, treasury.ErrCreatorNotFound
		}
		return nil, err
	}
	return fromBalanceModel(m)
}

func (t *tx) SaveCreatorBalance(ctx context.Context, b *payout.Balance) error {
	_, err := t.tx.Exec(ctx, `
INSERT INTO treasury_creator_balances (`+balanceColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (creator_id) DO UPDATE
SET available_cents = EXCLUDED.available_cents,
    pending_cents = EXCLUDED.pending_cents,
    total_earned_cents = EXCLUDED.total_earned_cents,
    reserved_cents = EXCLUDED.reserved_cents,
    updated_at = EXCLUDED.updated_at`,
		b.CreatorID.String(), b.AvailableCents, b.PendingCents, b.TotalEarnedCents, b.ReservedCents,
		riskText(b.RiskLevel), b.TrustScore, b.PayoutDelayDays, b.CreatedAt, b.UpdatedAt,
	)
	return err
}

// expectRow turns a zero-row update into notFound.
func expectRow(res driver.Result, err error, notFound error) error {
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
