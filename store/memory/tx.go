package memory

import (
	"context"

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

// Atomic holds the store's write lock for the duration of fn.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{s: s}
	if err := fn(ctx, t); err != nil {
		t.rollback()
		return err
	}
	return nil
}

type tx struct {
	s    *Store
	undo []func()
}

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// remember records how to restore key in m to its current state.
func remember[V any](t *tx, m map[string]*V, key string) {
	prev, ok := m[key]
	if !ok {
		t.undo = append(t.undo, func() { delete(m, key) })
		return
	}
	cp := *prev
	t.undo = append(t.undo, func() { m[key] = &cp })
}

func (t *tx) GetWalletForUpdate(_ context.Context, walletID id.WalletID) (*wallet.Wallet, error) {
	if w, ok := t.s.wallets[walletID.String()]; ok {
		return cloneWallet(w), nil
	}
	return nil, treasury.ErrWalletNotFound
}

func (t *tx) UpdateWalletBalances(_ context.Context, w *wallet.Wallet) error {
	key := w.ID.String()
	cur, ok := t.s.wallets[key]
	if !ok {
		return treasury.ErrWalletNotFound
	}
	remember(t, t.s.wallets, key)
	next := *cur
	next.AvailableCents = w.AvailableCents
	next.PendingCents = w.PendingCents
	next.UpdatedAt = w.UpdatedAt
	t.s.wallets[key] = &next
	return nil
}

func (t *tx) GetCampaignForUpdate(_ context.Context, campaignID id.CampaignID) (*campaign.Campaign, error) {
	if c, ok := t.s.campaigns[campaignID.String()]; ok {
		return cloneCampaign(c), nil
	}
	return nil, treasury.ErrCampaignNotFound
}

func (t *tx) UpdateCampaignState(_ context.Context, c *campaign.Campaign) error {
	key := c.ID.String()
	cur, ok := t.s.campaigns[key]
	if !ok {
		return treasury.ErrCampaignNotFound
	}
	remember(t, t.s.campaigns, key)
	next := *cur
	next.SpentBudgetCents = c.SpentBudgetCents
	next.Status = c.Status
	next.AutoPausedAt = c.AutoPausedAt
	next.PauseReason = c.PauseReason
	next.UpdatedAt = c.UpdatedAt
	t.s.campaigns[key] = &next
	return nil
}

func (t *tx) GetLockForUpdate(_ context.Context, campaignID id.CampaignID) (*budget.Lock, error) {
	if l, ok := t.s.locks[campaignID.String()]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, treasury.ErrNoBudgetLock
}

func (t *tx) SaveLock(_ context.Context, l *budget.Lock) error {
	key := l.CampaignID.String()
	remember(t, t.s.locks, key)
	cp := *l
	t.s.locks[key] = &cp
	return nil
}

func (t *tx) AppendEntry(_ context.Context, e *journal.Entry) error {
	if _, exists := t.s.entryIdx[e.ID.String()]; exists {
		return treasury.ErrAlreadyExists
	}
	if e.RefEventID != "" {
		if _, err := t.findByRef(e.CampaignID, e.Type, e.RefEventID); err == nil {
			return treasury.ErrDuplicateEntry
		}
	}

	cp := *e
	n := len(t.s.entries)
	t.s.entries = append(t.s.entries, &cp)
	t.s.entryIdx[e.ID.String()] = n
	t.undo = append(t.undo, func() {
		t.s.entries = t.s.entries[:n]
		delete(t.s.entryIdx, cp.ID.String())
	})
	return nil
}

func (t *tx) GetEntry(_ context.Context, entryID id.JournalID) (*journal.Entry, error) {
	return t.s.getEntry(entryID)
}

func (t *tx) FindReversal(_ context.Context, entryID id.JournalID) (*journal.Entry, error) {
	for _, e := range t.s.entries {
		if e.IsReversal() && e.ReversesID.String() == entryID.String() {
			cp := *e
			return &cp, nil
		}
	}
	return nil, treasury.ErrEntryNotFound
}

func (t *tx) FindEntryByRef(_ context.Context, campaignID id.CampaignID, typ journal.Type, refEventID string) (*journal.Entry, error) {
	return t.findByRef(campaignID, typ, refEventID)
}

func (t *tx) findByRef(campaignID id.CampaignID, typ journal.Type, refEventID string) (*journal.Entry, error) {
	for _, e := range t.s.entries {
		if e.RefEventID == refEventID && e.Type == typ && e.CampaignID.String() == campaignID.String() {
			cp := *e
			return &cp, nil
		}
	}
	return nil, treasury.ErrEntryNotFound
}

func (t *tx) NetByCampaign(_ context.Context, campaignID id.CampaignID) (int64, error) {
	return t.s.sum(journal.ListOpts{CampaignID: campaignID}), nil
}

func (t *tx) InsertPayout(_ context.Context, p *payout.Entry) error {
	key := p.ID.String()
	if _, exists := t.s.payouts[key]; exists {
		return treasury.ErrAlreadyExists
	}
	remember(t, t.s.payouts, key)
	cp := *p
	t.s.payouts[key] = &cp
	return nil
}

func (t *tx) GetPayoutForUpdate(_ context.Context, entryID id.PayoutID) (*payout.Entry, error) {
	if p, ok := t.s.payouts[entryID.String()]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, treasury.ErrPayoutNotFound
}

func (t *tx) UpdatePayout(_ context.Context, p *payout.Entry) error {
	key := p.ID.String()
	cur, ok := t.s.payouts[key]
	if !ok {
		return treasury.ErrPayoutNotFound
	}
	remember(t, t.s.payouts, key)
	next := *cur
	next.Status = p.Status
	next.ReleasedAt = p.ReleasedAt
	next.CancelledAt = p.CancelledAt
	next.FrozenAt = p.FrozenAt
	next.ReserveReturnedAt = p.ReserveReturnedAt
	next.StatusReason = p.StatusReason
	next.UpdatedAt = p.UpdatedAt
	t.s.payouts[key] = &next
	return nil
}

func (t *tx) GetCreatorBalanceForUpdate(_ context.Context, creatorID id.CreatorID) (*payout.Balance, error) {
	if b, ok := t.s.balances[creatorID.String()]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, treasury.ErrCreatorNotFound
}

func (t *tx) SaveCreatorBalance(_ context.Context, b *payout.Balance) error {
	key := b.CreatorID.String()
	remember(t, t.s.balances, key)
	cur, ok := t.s.balances[key]
	if !ok {
		cp := *b
		t.s.balances[key] = &cp
		return nil
	}
	next := *cur
	next.AvailableCents = b.AvailableCents
	next.PendingCents = b.PendingCents
	next.TotalEarnedCents = b.TotalEarnedCents
	next.ReservedCents = b.ReservedCents
	next.UpdatedAt = b.UpdatedAt
	t.s.balances[key] = &next
	return nil
}
