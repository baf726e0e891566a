// Package storetest is a conformance suite for store.Store
// implementations. Backends call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/treasury"
	"github.com/xraph/treasury/budget"
	"github.com/xraph/treasury/campaign"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/journal"
	"github.com/xraph/treasury/payout"
	"github.com/xraph/treasury/store"
	"github.com/xraph/treasury/types"
	"github.com/xraph/treasury/wallet"
)

// Factory returns an empty, migrated store.
type Factory func(t *testing.T) store.Store

// Run executes every conformance test against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"Wallets", testWallets},
		{"Campaigns", testCampaigns},
		{"PacingMetricsIsolated", testPacingMetricsIsolated},
		{"LockLifecycle", testLockLifecycle},
		{"AtomicRollback", testAtomicRollback},
		{"JournalAppendAndSum", testJournal},
		{"JournalDuplicateRef", testJournalDuplicateRef},
		{"JournalReversalLookup", testJournalReversal},
		{"Payouts", testPayouts},
		{"EligiblePayouts", testEligiblePayouts},
		{"EligiblePayoutsCursorTies", testEligiblePayoutsCursorTies},
		{"CreatorProfile", testCreatorProfile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

// Fixtures

// Now is a fixed, second-truncated UTC instant; SQL backends do not keep
// monotonic readings or nanoseconds.
var Now = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func NewWallet(available int64) *wallet.Wallet {
	return &wallet.Wallet{
		Entity:         types.NewEntityAt(Now),
		ID:             id.NewWalletID(),
		OwnerID:        "adv_" + id.NewWalletID().String(),
		Currency:       "usd",
		AvailableCents: available,
	}
}

func NewCampaign(w *wallet.Wallet, total int64) *campaign.Campaign {
	return &campaign.Campaign{
		Entity:           types.NewEntityAt(Now),
		ID:               id.NewCampaignID(),
		WalletID:         w.ID,
		AdvertiserID:     w.OwnerID,
		Name:             "launch",
		Status:           campaign.StatusActive,
		TotalBudgetCents: total,
		CPMCents:         2500,
		PacingEnabled:    true,
		PacingMode:       campaign.PacingEven,
	}
}

func seed(t *testing.T, s store.Store, available, total int64) (*wallet.Wallet, *campaign.Campaign) {
	t.Helper()
	ctx := context.Background()
	w := NewWallet(available)
	require.NoError(t, s.CreateWallet(ctx, w))
	c := NewCampaign(w, total)
	require.NoError(t, s.CreateCampaign(ctx, c))
	return w, c
}

// Tests

func testWallets(t *testing.T, s store.Store) {
	ctx := context.Background()
	w := NewWallet(5000)
	require.NoError(t, s.CreateWallet(ctx, w))

	got, err := s.GetWallet(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.ID.String(), got.ID.String())
	assert.Equal(t, int64(5000), got.AvailableCents)
	assert.Equal(t, "usd", got.Currency)

	got, err = s.GetWalletByOwner(ctx, w.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, w.ID.String(), got.ID.String())

	_, err = s.GetWallet(ctx, id.NewWalletID())
	assert.ErrorIs(t, err, treasury.ErrWalletNotFound)
	_, err = s.GetWalletByOwner(ctx, "nobody")
	assert.ErrorIs(t, err, treasury.ErrWalletNotFound)
}

func testCampaigns(t *testing.T, s store.Store) {
	ctx := context.Background()
	w, c := seed(t, s, 0, 10000)

	got, err := s.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.WalletID.String(), got.WalletID.String())
	assert.Equal(t, int64(10000), got.TotalBudgetCents)
	assert.Equal(t, campaign.PacingEven, got.PacingMode)
	assert.True(t, got.PacingEnabled)

	paused := NewCampaign(w, 500)
	paused.Status = campaign.StatusPaused
	require.NoError(t, s.CreateCampaign(ctx, paused))

	active, err := s.ListCampaigns(ctx, campaign.ListOpts{Status: campaign.StatusActive})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, c.ID.String(), active[0].ID.String())

	all, err := s.ListCampaigns(ctx, campaign.ListOpts{WalletID: w.ID})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = s.GetCampaign(ctx, id.NewCampaignID())
	assert.ErrorIs(t, err, treasury.ErrCampaignNotFound)
}

func testPacingMetricsIsolated(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, c := seed(t, s, 0, 10000)

	require.NoError(t, s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		cur, err := tx.GetCampaignForUpdate(ctx, c.ID)
		if err != nil {
			return err
		}
		cur.SpentBudgetCents = 4000
		cur.TouchAt(Now)
		return tx.UpdateCampaignState(ctx, cur)
	}))

	at := Now.Add(time.Hour)
	require.NoError(t, s.UpdatePacingMetrics(ctx, c.ID, campaign.PacingMetrics{
		DeliveryProgressPercent: 40,
		IsOverDelivering:        true,
		LastPacingCheckAt:       &at,
	}))

	got, err := s.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), got.SpentBudgetCents)
	assert.InDelta(t, 40, got.Pacing.DeliveryProgressPercent, 1e-9)
	assert.True(t, got.Pacing.IsOverDelivering)
	require.NotNil(t, got.Pacing.LastPacingCheckAt)
	assert.True(t, at.Equal(*got.Pacing.LastPacingCheckAt))

	err = s.UpdatePacingMetrics(ctx, id.NewCampaignID(), campaign.PacingMetrics{})
	assert.ErrorIs(t, err, treasury.ErrCampaignNotFound)
}

func testLockLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	w, c := seed(t, s, 100000, 10000)

	_, err := s.GetLock(ctx, c.ID)
	assert.ErrorIs(t, err, treasury.ErrNoBudgetLock)

	err = s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetLockForUpdate(ctx, c.ID); !errors.Is(err, treasury.ErrNoBudgetLock) {
			return errors.New("expected missing lock")
		}
		l := &budget.Lock{
			Entity:      types.NewEntityAt(Now),
			ID:          id.NewLockID(),
			CampaignID:  c.ID,
			WalletID:    w.ID,
			LockedCents: 10000,
		}
		if err := tx.SaveLock(ctx, l); err != nil {
			return err
		}
		wl, err := tx.GetWalletForUpdate(ctx, w.ID)
		if err != nil {
			return err
		}
		wl.AvailableCents -= 10000
		wl.PendingCents += 10000
		return tx.UpdateWalletBalances(ctx, wl)
	})
	require.NoError(t, err)

	l, err := s.GetLock(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), l.LockedCents)

	got, err := s.GetWallet(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(90000), got.AvailableCents)
	assert.Equal(t, int64(10000), got.PendingCents)

	// Saving again updates the same row.
	require.NoError(t, s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		cur, err := tx.GetLockForUpdate(ctx, c.ID)
		if err != nil {
			return err
		}
		cur.LockedCents = 7000
		return tx.SaveLock(ctx, cur)
	}))
	l, err = s.GetLock(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7000), l.LockedCents)
}

func testAtomicRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	w, c := seed(t, s, 100000, 10000)
	boom := errors.New("boom")

	err := s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		wl, err := tx.GetWalletForUpdate(ctx, w.ID)
		if err != nil {
			return err
		}
		wl.AvailableCents = 1
		if err := tx.UpdateWalletBalances(ctx, wl); err != nil {
			return err
		}
		if err := tx.SaveLock(ctx, &budget.Lock{
			Entity:      types.NewEntityAt(Now),
			ID:          id.NewLockID(),
			CampaignID:  c.ID,
			WalletID:    w.ID,
			LockedCents: 99999,
		}); err != nil {
			return err
		}
		if err := tx.AppendEntry(ctx, &journal.Entry{
			ID:          id.NewJournalID(),
			CampaignID:  c.ID,
			CreatorID:   id.NewCreatorID(),
			Type:        journal.TypePlatformFee,
			AmountCents: 10,
			CreatedAt:   Now,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetWallet(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), got.AvailableCents)

	_, err = s.GetLock(ctx, c.ID)
	assert.ErrorIs(t, err, treasury.ErrNoBudgetLock)

	sum, err := s.SumByCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, sum)
}

func appendEntry(t *testing.T, s store.Store, e *journal.Entry) error {
	t.Helper()
	return s.Atomic(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.AppendEntry(ctx, e)
	})
}

func newEntry(c *campaign.Campaign, creator id.CreatorID, typ journal.Type, amount int64, at time.Time) *journal.Entry {
	return &journal.Entry{
		ID:          id.NewJournalID(),
		CampaignID:  c.ID,
		CreatorID:   creator,
		Type:        typ,
		AmountCents: amount,
		CreatedAt:   at,
	}
}

func testJournal(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, c := seed(t, s, 0, 10000)
	creator := id.NewCreatorID()

	view := newEntry(c, creator, journal.TypeViewPayout, 900, Now)
	view.RefEventID = "evt-1"
	view.Metadata = map[string]string{"views": "1000"}
	fee := newEntry(c, creator, journal.TypePlatformFee, 100, Now.Add(time.Minute))
	conv := newEntry(c, creator, journal.TypeConversionPayout, 500, Now.Add(2*time.Minute))
	for _, e := range []*journal.Entry{view, fee, conv} {
		require.NoError(t, appendEntry(t, s, e))
	}

	got, err := s.GetEntry(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, journal.TypeViewPayout, got.Type)
	assert.Equal(t, "evt-1", got.RefEventID)
	assert.Equal(t, "1000", got.Metadata["views"])
	assert.True(t, got.ReversesID.IsNil())

	total, err := s.SumByCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), total)

	credits, err := s.SumByCreator(ctx, creator, journal.TypeViewPayout, journal.TypeConversionPayout)
	require.NoError(t, err)
	assert.Equal(t, int64(1400), credits)

	list, err := s.ListEntries(ctx, journal.ListOpts{CampaignID: c.ID})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, view.ID.String(), list[0].ID.String())
	assert.Equal(t, conv.ID.String(), list[2].ID.String())

	list, err = s.ListEntries(ctx, journal.ListOpts{CampaignID: c.ID, Types: []journal.Type{journal.TypePlatformFee}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, fee.ID.String(), list[0].ID.String())

	list, err = s.ListEntries(ctx, journal.ListOpts{CreatorID: creator, From: Now.Add(time.Minute), Limit: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, fee.ID.String(), list[0].ID.String())

	_, err = s.GetEntry(ctx, id.NewJournalID())
	assert.ErrorIs(t, err, treasury.ErrEntryNotFound)
}

func testJournalDuplicateRef(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, c := seed(t, s, 0, 10000)
	creator := id.NewCreatorID()

	first := newEntry(c, creator, journal.TypeViewPayout, 100, Now)
	first.RefEventID = "evt-dup"
	require.NoError(t, appendEntry(t, s, first))

	again := newEntry(c, creator, journal.TypeViewPayout, 100, Now)
	again.RefEventID = "evt-dup"
	assert.ErrorIs(t, appendEntry(t, s, again), treasury.ErrDuplicateEntry)

	// Same reference under another type is a distinct movement.
	fee := newEntry(c, creator, journal.TypePlatformFee, 10, Now)
	fee.RefEventID = "evt-dup"
	require.NoError(t, appendEntry(t, s, fee))

	require.NoError(t, s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.FindEntryByRef(ctx, c.ID, journal.TypeViewPayout, "evt-dup")
		if err != nil {
			return err
		}
		assert.Equal(t, first.ID.String(), got.ID.String())

		_, err = tx.FindEntryByRef(ctx, c.ID, journal.TypeViewPayout, "evt-other")
		assert.ErrorIs(t, err, treasury.ErrEntryNotFound)
		return nil
	}))

	sum, err := s.SumByCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(110), sum)
}

func testJournalReversal(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, c := seed(t, s, 0, 10000)
	orig := newEntry(c, id.NewCreatorID(), journal.TypeViewPayout, 700, Now)
	require.NoError(t, appendEntry(t, s, orig))

	require.NoError(t, s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.FindReversal(ctx, orig.ID)
		assert.ErrorIs(t, err, treasury.ErrEntryNotFound)
		return tx.AppendEntry(ctx, journal.ReversalOf(orig, "fraud", Now.Add(time.Hour)))
	}))

	require.NoError(t, s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		rev, err := tx.FindReversal(ctx, orig.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, int64(-700), rev.AmountCents)
		assert.Equal(t, orig.ID.String(), rev.ReversesID.String())
		assert.Equal(t, "fraud", rev.Reason)

		net, err := tx.NetByCampaign(ctx, c.ID)
		if err != nil {
			return err
		}
		assert.Zero(t, net)
		return nil
	}))
}

func newPayout(creator id.CreatorID, c *campaign.Campaign, amount int64, eligible time.Time) *payout.Entry {
	e := payout.NewEntry(payout.EnqueueInput{
		CreatorID:   creator,
		CampaignID:  c.ID,
		AmountCents: amount,
		Type:        journal.TypeViewPayout,
	}, payout.Profile{CreatorID: creator, RiskLevel: payout.RiskMedium, TrustScore: 55}, payout.DefaultPolicy(), Now)
	e.EligibleAt = eligible
	return e
}

func insertPayout(t *testing.T, s store.Store, p *payout.Entry) {
	t.Helper()
	require.NoError(t, s.Atomic(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.InsertPayout(ctx, p)
	}))
}

func testPayouts(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, c := seed(t, s, 0, 10000)
	creator := id.NewCreatorID()

	p := newPayout(creator, c, 1000, Now.AddDate(0, 0, 7))
	insertPayout(t, s, p)

	got, err := s.GetPayout(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payout.StatusPending, got.Status)
	assert.Equal(t, payout.RiskMedium, got.RiskLevel)
	assert.Equal(t, int64(100), got.ReserveAmountCents)
	assert.InDelta(t, 10, got.ReservePercent, 1e-9)
	assert.InDelta(t, 55, got.RiskSnapshotScore, 1e-9)
	assert.True(t, p.EligibleAt.Equal(got.EligibleAt))
	assert.Nil(t, got.ReleasedAt)

	released := Now.Add(time.Hour)
	require.NoError(t, s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		cur, err := tx.GetPayoutForUpdate(ctx, p.ID)
		if err != nil {
			return err
		}
		cur.Status = payout.StatusReleased
		cur.ReleasedAt = &released
		cur.StatusReason = "eligible"
		cur.TouchAt(released)
		return tx.UpdatePayout(ctx, cur)
	}))

	got, err = s.GetPayout(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payout.StatusReleased, got.Status)
	require.NotNil(t, got.ReleasedAt)
	assert.True(t, released.Equal(*got.ReleasedAt))
	assert.Equal(t, "eligible", got.StatusReason)

	other := newPayout(id.NewCreatorID(), c, 50, Now)
	insertPayout(t, s, other)

	mine, err := s.ListPayouts(ctx, payout.ListOpts{CreatorID: creator})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, p.ID.String(), mine[0].ID.String())

	pending, err := s.ListPayouts(ctx, payout.ListOpts{CampaignID: c.ID, Status: payout.StatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, other.ID.String(), pending[0].ID.String())

	_, err = s.GetPayout(ctx, id.NewPayoutID())
	assert.ErrorIs(t, err, treasury.ErrPayoutNotFound)
}

func testEligiblePayouts(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, c := seed(t, s, 0, 10000)
	creator := id.NewCreatorID()

	late := newPayout(creator, c, 300, Now.Add(-time.Hour))
	early := newPayout(creator, c, 100, Now.Add(-48*time.Hour))
	future := newPayout(creator, c, 200, Now.Add(time.Hour))
	frozen := newPayout(creator, c, 400, Now.Add(-72*time.Hour))
	frozen.Status = payout.StatusFrozen
	for _, p := range []*payout.Entry{late, early, future, frozen} {
		insertPayout(t, s, p)
	}

	got, err := s.ListEligiblePayouts(ctx, Now, payout.Cursor{}, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, early.ID.String(), got[0].ID.String())
	assert.Equal(t, late.ID.String(), got[1].ID.String())

	got, err = s.ListEligiblePayouts(ctx, Now, payout.Cursor{}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, early.ID.String(), got[0].ID.String())

	got, err = s.ListEligiblePayouts(ctx, Now, payout.CursorOf(got[0]), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, late.ID.String(), got[0].ID.String())

	got, err = s.ListEligiblePayouts(ctx, Now, payout.CursorOf(got[0]), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testEligiblePayoutsCursorTies(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, c := seed(t, s, 0, 10000)
	creator := id.NewCreatorID()

	at := Now.Add(-24 * time.Hour)
	for range 3 {
		insertPayout(t, s, newPayout(creator, c, 100, at))
	}

	var (
		cursor payout.Cursor
		seen   []string
	)
	for {
		page, err := s.ListEligiblePayouts(ctx, Now, cursor, 2)
		require.NoError(t, err)
		for _, p := range page {
			if p.CampaignID.String() == c.ID.String() {
				seen = append(seen, p.ID.String())
			}
		}
		if len(page) < 2 {
			break
		}
		cursor = payout.CursorOf(page[len(page)-1])
	}

	require.Len(t, seen, 3)
	assert.IsIncreasing(t, seen)
}

func testCreatorProfile(t *testing.T, s store.Store) {
	ctx := context.Background()
	creator := id.NewCreatorID()

	_, err := s.GetCreatorBalance(ctx, creator)
	assert.ErrorIs(t, err, treasury.ErrCreatorNotFound)

	require.NoError(t, s.UpsertCreatorProfile(ctx, payout.Profile{
		CreatorID:       creator,
		RiskLevel:       payout.RiskHigh,
		TrustScore:      20,
		PayoutDelayDays: 21,
	}))

	require.NoError(t, s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		b, err := tx.GetCreatorBalanceForUpdate(ctx, creator)
		if err != nil {
			return err
		}
		b.PendingCents = 1000
		b.AvailableCents = 750
		b.TotalEarnedCents = 750
		b.ReservedCents = 250
		b.TouchAt(Now)
		return tx.SaveCreatorBalance(ctx, b)
	}))

	// A profile refresh never touches the cent fields.
	require.NoError(t, s.UpsertCreatorProfile(ctx, payout.Profile{
		CreatorID:  creator,
		RiskLevel:  payout.RiskLow,
		TrustScore: 90,
	}))

	b, err := s.GetCreatorBalance(ctx, creator)
	require.NoError(t, err)
	assert.Equal(t, payout.RiskLow, b.RiskLevel)
	assert.InDelta(t, 90, b.TrustScore, 1e-9)
	assert.Zero(t, b.PayoutDelayDays)
	assert.Equal(t, int64(1000), b.PendingCents)
	assert.Equal(t, int64(750), b.AvailableCents)
	assert.Equal(t, int64(750), b.TotalEarnedCents)
	assert.Equal(t, int64(250), b.ReservedCents)

	// SaveCreatorBalance creates rows for creators without a profile.
	fresh := id.NewCreatorID()
	require.NoError(t, s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.SaveCreatorBalance(ctx, &payout.Balance{
			Entity:       types.NewEntityAt(Now),
			CreatorID:    fresh,
			PendingCents: 300,
			RiskLevel:    payout.RiskMedium,
		})
	}))
	b, err = s.GetCreatorBalance(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, int64(300), b.PendingCents)
	assert.Equal(t, payout.RiskMedium, b.RiskLevel)
}
