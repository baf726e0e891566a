package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

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

// Atomic runs fn inside a multi-document transaction. The context handed to
// fn carries the session, so every query issued through it joins the
// transaction. Concurrent writers to the same document fail with a write
// conflict instead of blocking.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	sess, err := s.mdb.Client().StartSession()
	if err != nil {
		return fmt.Errorf("treasury/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	if err := sess.StartTransaction(); err != nil {
		return fmt.Errorf("treasury/mongo: begin: %w", err)
	}
	sctx := mongo.NewSessionContext(ctx, sess)

	if err := fn(sctx, &tx{s: s}); err != nil {
		if abortErr := sess.AbortTransaction(ctx); abortErr != nil {
			return errors.Join(err, fmt.Errorf("treasury/mongo: abort: %w", abortErr))
		}
		return err
	}

	if err := sess.CommitTransaction(sctx); err != nil {
		return fmt.Errorf("treasury/mongo: commit: %w", err)
	}
	return nil
}

// tx reuses the store's query builders; isolation comes from the session
// bound to ctx.
type tx struct {
	s *Store
}

// ==================== Wallets ====================

func (t *tx) GetWalletForUpdate(ctx context.Context, walletID id.WalletID) (*wallet.Wallet, error) {
	return t.s.GetWallet(ctx, walletID)
}

func (t *tx) UpdateWalletBalances(ctx context.Context, w *wallet.Wallet) error {
	res, err := t.s.mdb.NewUpdate((*walletModel)(nil)).
		Filter(bson.M{"_id": w.ID.String()}).
		Set("available_cents", w.AvailableCents).
		Set("pending_cents", w.PendingCents).
		Set("updated_at", w.UpdatedAt).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("treasury/mongo: update wallet balances: %w", err)
	}
	if res.MatchedCount() == 0 {
		return treasury.ErrWalletNotFound
	}
	return nil
}

// ==================== Campaigns ====================

func (t *tx) GetCampaignForUpdate(ctx context.Context, campaignID id.CampaignID) (*campaign.Campaign, error) {
	return t.s.GetCampaign(ctx, campaignID)
}

func (t *tx) UpdateCampaignState(ctx context.Context, c *campaign.Campaign) error {
	res, err := t.s.mdb.NewUpdate((*campaignModel)(nil)).
		Filter(bson.M{"_id": c.ID.String()}).
		Set("spent_budget_cents", c.SpentBudgetCents).
		Set("status", string(c.Status)).
		Set("auto_paused_at", c.AutoPausedAt).
		Set("pause_reason", c.PauseReason).
		Set("updated_at", c.UpdatedAt).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("treasury/mongo: update campaign state: %w", err)
	}
	if res.MatchedCount() == 0 {
		return treasury.ErrCampaignNotFound
	}
	return nil
}

// ==================== Budget locks ====================

func (t *tx) GetLockForUpdate(ctx context.Context, campaignID id.CampaignID) (*budget.Lock, error) {
	return t.s.GetLock(ctx, campaignID)
}

func (t *tx) SaveLock(ctx context.Context, l *budget.Lock) error {
	_, err := t.s.mdb.NewUpdate((*lockModel)(nil)).
		Filter(bson.M{"campaign_id": l.CampaignID.String()}).
		SetUpdate(bson.M{
			"$set": bson.M{
				"locked_cents": l.LockedCents,
				"updated_at":   l.UpdatedAt,
			},
			"$setOnInsert": bson.M{
				"_id":        l.ID.String(),
				"wallet_id":  l.WalletID.String(),
				"created_at": l.CreatedAt,
			},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("treasury/mongo: save lock: %w", err)
	}
	return nil
}

// ==================== Journal ====================

func (t *tx) AppendEntry(ctx context.Context, e *journal.Entry) error {
	_, err := t.s.mdb.NewInsert(toJournalModel(e)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return treasury.ErrDuplicateEntry
		}
		return fmt.Errorf("treasury/mongo: append entry: %w", err)
	}
	return nil
}

func (t *tx) GetEntry(ctx context.Context, entryID id.JournalID) (*journal.Entry, error) {
	return t.s.GetEntry(ctx, entryID)
}

func (t *tx) FindReversal(ctx context.Context, entryID id.JournalID) (*journal.Entry, error) {
	return t.s.findEntry(ctx, bson.M{"reverses_id": entryID.String()})
}

func (t *tx) FindEntryByRef(ctx context.Context, campaignID id.CampaignID, typ journal.Type, refEventID string) (*journal.Entry, error) {
	return t.s.findEntry(ctx, bson.M{
		"campaign_id":  campaignID.String(),
		"type":         string(typ),
		"ref_event_id": refEventID,
	})
}

func (t *tx) NetByCampaign(ctx context.Context, campaignID id.CampaignID) (int64, error) {
	return t.s.sumJournal(ctx, "campaign_id", campaignID.String(), nil)
}

// ==================== Payouts ====================

func (t *tx) InsertPayout(ctx context.Context, p *payout.Entry) error {
	_, err := t.s.mdb.NewInsert(toPayoutModel(p)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return treasury.ErrAlreadyExists
		}
		return fmt.Errorf("treasury/mongo: insert payout: %w", err)
	}
	return nil
}

func (t *tx) GetPayoutForUpdate(ctx context.Context, entryID id.PayoutID) (*payout.Entry, error) {
	return t.s.GetPayout(ctx, entryID)
}

func (t *tx) UpdatePayout(ctx context.Context, p *payout.Entry) error {
	res, err := t.s.mdb.NewUpdate((*payoutModel)(nil)).
		Filter(bson.M{"_id": p.ID.String()}).
		Set("status", string(p.Status)).
		Set("released_at", p.ReleasedAt).
		Set("cancelled_at", p.CancelledAt).
		Set("frozen_at", p.FrozenAt).
		Set("reserve_returned_at", p.ReserveReturnedAt).
		Set("status_reason", p.StatusReason).
		Set("updated_at", p.UpdatedAt).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("treasury/mongo: update payout: %w", err)
	}
	if res.MatchedCount() == 0 {
		return treasury.ErrPayoutNotFound
	}
	return nil
}

// ==================== Creator balances ====================

func (t *tx) GetCreatorBalanceForUpdate(ctx context.Context, creatorID id.CreatorID) (*payout.Balance, error) {
	return t.s.GetCreatorBalance(ctx, creatorID)
}

func (t *tx) SaveCreatorBalance(ctx context.Context, b *payout.Balance) error {
	_, err := t.s.mdb.NewUpdate((*balanceModel)(nil)).
		Filter(bson.M{"_id": b.CreatorID.String()}).
		SetUpdate(bson.M{
			"$set": bson.M{
				"available_cents":    b.AvailableCents,
				"pending_cents":      b.PendingCents,
				"total_earned_cents": b.TotalEarnedCents,
				"reserved_cents":     b.ReservedCents,
				"updated_at":         b.UpdatedAt,
			},
			"$setOnInsert": bson.M{
				"risk_level":        riskText(b.RiskLevel),
				"trust_score":       b.TrustScore,
				"payout_delay_days": b.PayoutDelayDays,
				"created_at":        b.CreatedAt,
			},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("treasury/mongo: save creator balance: %w", err)
	}
	return nil
}
