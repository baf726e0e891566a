package treasury_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/treasury"
	"github.com/xraph/treasury/event"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/journal"
	"github.com/xraph/treasury/pacing"
	"github.com/xraph/treasury/payout"
	"github.com/xraph/treasury/store"
	"github.com/xraph/treasury/store/memory"
)

const day = 24 * time.Hour

func enqueue(t *testing.T, h *harness, creator id.CreatorID, amount int64) *payout.Entry {
	t.Helper()
	p, err := h.Enqueue(context.Background(), payout.EnqueueInput{
		CreatorID:   creator,
		CampaignID:  id.NewCampaignID(),
		AmountCents: amount,
		Type:        journal.TypeViewPayout,
	})
	require.NoError(t, err)
	return p
}

func TestEnqueueAppliesRiskTier(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		profile     *payout.Profile
		wantLevel   payout.RiskLevel
		wantDelay   int
		wantReserve int64
	}{
		{"no profile", nil, payout.RiskMedium, 7, 1000},
		{"low", &payout.Profile{RiskLevel: payout.RiskLow, TrustScore: 90}, payout.RiskLow, 3, 0},
		{"medium", &payout.Profile{RiskLevel: payout.RiskMedium, TrustScore: 60}, payout.RiskMedium, 7, 1000},
		{"high", &payout.Profile{RiskLevel: payout.RiskHigh, TrustScore: 20}, payout.RiskHigh, 14, 2500},
		{"explicit delay", &payout.Profile{RiskLevel: payout.RiskHigh, TrustScore: 20, PayoutDelayDays: 30}, payout.RiskHigh, 30, 2500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creator := id.NewCreatorID()
			if tt.profile != nil {
				prof := *tt.profile
				prof.CreatorID = creator
				require.NoError(t, h.UpsertCreatorProfile(ctx, prof))
			}

			p := enqueue(t, h, creator, 10000)
			assert.Equal(t, payout.StatusPending, p.Status)
			assert.Equal(t, tt.wantLevel, p.RiskLevel)
			assert.Equal(t, testStart.AddDate(0, 0, tt.wantDelay), p.EligibleAt)
			assert.Equal(t, tt.wantReserve, p.ReserveAmountCents)
			assert.Equal(t, 1.0, p.AppliedMultiplier)

			b, err := h.GetCreatorBalance(ctx, creator)
			require.NoError(t, err)
			assert.Equal(t, int64(10000), b.PendingCents)
			assert.Zero(t, b.AvailableCents)
		})
	}
}

func TestEnqueueValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	valid := payout.EnqueueInput{
		CreatorID:   id.NewCreatorID(),
		CampaignID:  id.NewCampaignID(),
		AmountCents: 100,
		Type:        journal.TypeConversionPayout,
	}

	fee := valid
	fee.Type = journal.TypePlatformFee
	_, err := h.Enqueue(ctx, fee)
	assert.ErrorIs(t, err, treasury.ErrInvalidInput)

	zero := valid
	zero.AmountCents = 0
	_, err = h.Enqueue(ctx, zero)
	assert.ErrorIs(t, err, treasury.ErrInvalidAmount)

	noCreator := valid
	noCreator.CreatorID = id.Nil
	_, err = h.Enqueue(ctx, noCreator)
	assert.ErrorIs(t, err, treasury.ErrInvalidInput)
}

func TestRiskSnapshotIsImmutable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	creator := id.NewCreatorID()

	require.NoError(t, h.UpsertCreatorProfile(ctx, payout.Profile{
		CreatorID: creator, RiskLevel: payout.RiskLow, TrustScore: 85,
	}))
	first := enqueue(t, h, creator, 10000)

	require.NoError(t, h.UpsertCreatorProfile(ctx, payout.Profile{
		CreatorID: creator, RiskLevel: payout.RiskHigh, TrustScore: 15,
	}))
	second := enqueue(t, h, creator, 10000)

	stored, err := h.GetPayout(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, payout.RiskLow, stored.RiskLevel)
	assert.Equal(t, 85.0, stored.RiskSnapshotScore)
	assert.Equal(t, testStart.AddDate(0, 0, 3), stored.EligibleAt)
	assert.Zero(t, stored.ReserveAmountCents)

	assert.Equal(t, payout.RiskHigh, second.RiskLevel)
	assert.Equal(t, testStart.AddDate(0, 0, 14), second.EligibleAt)
	assert.Equal(t, int64(2500), second.ReserveAmountCents)
}

func TestReleaseEligible(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	creator := id.NewCreatorID()

	p := enqueue(t, h, creator, 10000)

	report, err := h.ReleaseEligible(ctx, h.clock.Now())
	require.NoError(t, err)
	assert.Empty(t, report.Released, "nothing is due before the hold ends")

	h.clock.Advance(7 * day)
	report, err = h.ReleaseEligible(ctx, h.clock.Now())
	require.NoError(t, err)
	require.Len(t, report.Released, 1)
	assert.Empty(t, report.Failures)
	assert.Equal(t, int64(9000), report.ReleasedCents())

	released, err := h.GetPayout(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payout.StatusReleased, released.Status)
	require.NotNil(t, released.ReleasedAt)

	b, err := h.GetCreatorBalance(ctx, creator)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), b.AvailableCents)
	assert.Zero(t, b.PendingCents)
	assert.Equal(t, int64(9000), b.TotalEarnedCents)
	assert.Equal(t, int64(1000), b.ReservedCents)

	credited := h.events.OfType(event.TypeWalletCredited)
	require.NotEmpty(t, credited)
	last := credited[len(credited)-1]
	assert.Equal(t, p.ID.String(), last.PayoutID.String())
	assert.Equal(t, int64(9000), last.AmountCents)

	again, err := h.ReleaseEligible(ctx, h.clock.Now())
	require.NoError(t, err)
	assert.Empty(t, again.Released)

	b, err = h.GetCreatorBalance(ctx, creator)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), b.AvailableCents, "a released entry is credited once")
}

func TestConcurrentReleaseCreditsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	creator := id.NewCreatorID()

	for range 20 {
		enqueue(t, h, creator, 1000)
	}
	h.clock.Advance(8 * day)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := h.ReleaseEligible(ctx, h.clock.Now())
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			total += len(report.Released)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, total)

	b, err := h.GetCreatorBalance(ctx, creator)
	require.NoError(t, err)
	assert.Equal(t, int64(20*900), b.AvailableCents)
	assert.Equal(t, int64(20*100), b.ReservedCents)
	assert.Zero(t, b.PendingCents)
}

func TestCancelReversesJournalEntry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, c := h.fundedCampaign(t, 0, 10000)
	creator := id.NewCreatorID()

	credit, err := h.Append(ctx, &journal.Entry{
		CampaignID:  c.ID,
		CreatorID:   creator,
		Type:        journal.TypeViewPayout,
		AmountCents: 4000,
	})
	require.NoError(t, err)

	p, err := h.Enqueue(ctx, payout.EnqueueInput{
		CreatorID:      creator,
		CampaignID:     c.ID,
		AmountCents:    4000,
		Type:           journal.TypeViewPayout,
		JournalEntryID: credit.ID,
	})
	require.NoError(t, err)

	cancelled, err := h.Cancel(ctx, p.ID, "chargeback")
	require.NoError(t, err)
	assert.Equal(t, payout.StatusCancelled, cancelled.Status)
	assert.Equal(t, "chargeback", cancelled.StatusReason)
	require.NotNil(t, cancelled.CancelledAt)

	b, err := h.GetCreatorBalance(ctx, creator)
	require.NoError(t, err)
	assert.Zero(t, b.PendingCents)
	assert.Zero(t, b.AvailableCents)
	assert.Zero(t, b.TotalEarnedCents)

	net, err := h.SumByCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, net)

	reversals, err := h.ListEntries(ctx, journal.ListOpts{
		CampaignID: c.ID,
		Types:      []journal.Type{journal.TypeReversal},
	})
	require.NoError(t, err)
	require.Len(t, reversals, 1)
	assert.Equal(t, credit.ID.String(), reversals[0].ReversesID.String())

	_, err = h.Cancel(ctx, p.ID, "again")
	assert.ErrorIs(t, err, treasury.ErrInvalidTransition)
}

func TestCancelSkipsAlreadyReversedEntry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, c := h.fundedCampaign(t, 0, 10000)
	creator := id.NewCreatorID()

	credit, err := h.Append(ctx, &journal.Entry{
		CampaignID:  c.ID,
		CreatorID:   creator,
		Type:        journal.TypeViewPayout,
		AmountCents: 4000,
	})
	require.NoError(t, err)
	p, err := h.Enqueue(ctx, payout.EnqueueInput{
		CreatorID:      creator,
		CampaignID:     c.ID,
		AmountCents:    4000,
		Type:           journal.TypeViewPayout,
		JournalEntryID: credit.ID,
	})
	require.NoError(t, err)

	_, err = h.Reverse(ctx, credit.ID, "manual correction")
	require.NoError(t, err)

	_, err = h.Cancel(ctx, p.ID, "")
	require.NoError(t, err)

	reversals, err := h.ListEntries(ctx, journal.ListOpts{
		CampaignID: c.ID,
		Types:      []journal.Type{journal.TypeReversal},
	})
	require.NoError(t, err)
	assert.Len(t, reversals, 1)
}

func TestCancelReleasedPayoutFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := enqueue(t, h, id.NewCreatorID(), 1000)

	h.clock.Advance(7 * day)
	_, err := h.ReleaseEligible(ctx, h.clock.Now())
	require.NoError(t, err)

	_, err = h.Cancel(ctx, p.ID, "too late")
	assert.ErrorIs(t, err, treasury.ErrInvalidTransition)

	_, err = h.Cancel(ctx, id.NewPayoutID(), "")
	assert.ErrorIs(t, err, treasury.ErrPayoutNotFound)
}

func TestFreezeAndReleaseFrozen(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	creator := id.NewCreatorID()
	p := enqueue(t, h, creator, 10000)

	frozen, err := h.Freeze(ctx, p.ID, "velocity alert")
	require.NoError(t, err)
	assert.Equal(t, payout.StatusFrozen, frozen.Status)
	require.NotNil(t, frozen.FrozenAt)

	h.clock.Advance(30 * day)
	report, err := h.ReleaseEligible(ctx, h.clock.Now())
	require.NoError(t, err)
	assert.Empty(t, report.Released, "frozen entries are not released by the queue")

	b, err := h.GetCreatorBalance(ctx, creator)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), b.PendingCents)

	_, err = h.Freeze(ctx, p.ID, "twice")
	assert.ErrorIs(t, err, treasury.ErrInvalidTransition)

	res, err := h.ReleaseFrozen(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payout.StatusReleased, res.Entry.Status)
	require.Len(t, res.Events, 1)
	assert.Equal(t, event.TypeWalletCredited, res.Events[0].Type)

	b, err = h.GetCreatorBalance(ctx, creator)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), b.AvailableCents)
	assert.Zero(t, b.PendingCents)

	_, err = h.ReleaseFrozen(ctx, p.ID)
	assert.ErrorIs(t, err, treasury.ErrInvalidTransition)
}

func TestReturnReserve(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	creator := id.NewCreatorID()
	p := enqueue(t, h, creator, 10000)

	_, err := h.ReturnReserve(ctx, p.ID)
	assert.ErrorIs(t, err, treasury.ErrInvalidTransition, "reserve is held until release")

	h.clock.Advance(7 * day)
	_, err = h.ReleaseEligible(ctx, h.clock.Now())
	require.NoError(t, err)

	res, err := h.ReturnReserve(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Entry.ReserveReturnedAt)
	require.Len(t, res.Events, 1)
	assert.Equal(t, event.TypeReserveReleased, res.Events[0].Type)
	assert.Equal(t, int64(1000), res.Events[0].AmountCents)

	b, err := h.GetCreatorBalance(ctx, creator)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), b.AvailableCents)
	assert.Equal(t, int64(10000), b.TotalEarnedCents)
	assert.Zero(t, b.ReservedCents)

	_, err = h.ReturnReserve(ctx, p.ID)
	assert.ErrorIs(t, err, treasury.ErrReserveAlreadyReturned)
}

func TestUpsertCreatorProfileValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	err := h.UpsertCreatorProfile(ctx, payout.Profile{
		CreatorID:       id.NewCreatorID(),
		RiskLevel:       payout.RiskLevel(9),
		TrustScore:      120,
		PayoutDelayDays: -1,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, treasury.ErrInvalidInput)

	var multi treasury.MultiError
	require.ErrorAs(t, err, &multi)
	assert.Len(t, multi.Errors, 3)

	_, err = h.GetCreatorBalance(ctx, id.NewCreatorID())
	assert.ErrorIs(t, err, treasury.ErrCreatorNotFound)
}

func TestReleaseEligiblePagesPastBatchSize(t *testing.T) {
	h := newHarness(t, treasury.WithReleaseBatchSize(2))
	ctx := context.Background()
	creator := id.NewCreatorID()

	for range 5 {
		enqueue(t, h, creator, 1000)
	}

	report, err := h.ReleaseEligible(ctx, h.clock.Now().Add(7*day))
	require.NoError(t, err)
	assert.Len(t, report.Released, 5)
	assert.Empty(t, report.Failures)

	pending, err := h.ListPayouts(ctx, payout.ListOpts{CreatorID: creator, Status: payout.StatusPending})
	require.NoError(t, err)
	assert.Empty(t, pending)

	b, err := h.GetCreatorBalance(ctx, creator)
	require.NoError(t, err)
	assert.Equal(t, int64(4500), b.AvailableCents)
	assert.Zero(t, b.PendingCents)
}

var errPayoutWrite = errors.New("payout write rejected")

// rejectingStore fails the release write for the payouts in reject.
type rejectingStore struct {
	*memory.Store
	reject map[string]bool
}

func (s *rejectingStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return s.Store.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, rejectingTx{Tx: tx, reject: s.reject})
	})
}

type rejectingTx struct {
	store.Tx
	reject map[string]bool
}

func (tx rejectingTx) UpdatePayout(ctx context.Context, p *payout.Entry) error {
	if p.Status == payout.StatusReleased && tx.reject[p.ID.String()] {
		return errPayoutWrite
	}
	return tx.Tx.UpdatePayout(ctx, p)
}

func TestReleaseEligibleMovesPastFailures(t *testing.T) {
	ctx := context.Background()
	s := &rejectingStore{Store: memory.New(), reject: map[string]bool{}}
	clock := &testClock{now: testStart}
	tr := treasury.New(s,
		treasury.WithClock(clock.Now),
		treasury.WithRandSource(pacing.Fixed(0)),
		treasury.WithReleaseBatchSize(2),
	)
	creator := id.NewCreatorID()

	entries := make([]*payout.Entry, 0, 5)
	for range 5 {
		p, err := tr.Enqueue(ctx, payout.EnqueueInput{
			CreatorID:   creator,
			CampaignID:  id.NewCampaignID(),
			AmountCents: 1000,
			Type:        journal.TypeViewPayout,
		})
		require.NoError(t, err)
		entries = append(entries, p)
	}
	sort.Slice(entries, func(i, j int) bool {
		return payout.CursorOf(entries[i]).Precedes(entries[j])
	})

	// The first full page fails on every run.
	s.reject[entries[0].ID.String()] = true
	s.reject[entries[1].ID.String()] = true

	report, err := tr.ReleaseEligible(ctx, testStart.Add(7*day))
	require.NoError(t, err)
	assert.Len(t, report.Released, 3)
	require.Len(t, report.Failures, 2)
	for _, f := range report.Failures {
		assert.ErrorIs(t, f.Err, errPayoutWrite)
		assert.True(t, s.reject[f.EntryID.String()])
	}

	for _, p := range entries[2:] {
		got, err := tr.GetPayout(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, payout.StatusReleased, got.Status)
	}
	for _, p := range entries[:2] {
		got, err := tr.GetPayout(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, payout.StatusPending, got.Status)
	}
}
