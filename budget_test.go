package treasury_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/treasury"
	"github.com/xraph/treasury/campaign"
	"github.com/xraph/treasury/event"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/store"
)

func TestLockMovesFundsIntoCampaign(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	w, c := h.fundedCampaign(t, 100000, 50000)

	res, err := h.Lock(ctx, c.ID, 10000)
	require.NoError(t, err)

	assert.Equal(t, int64(10000), res.LockedCents)
	assert.Equal(t, int64(90000), res.AvailableCents)
	assert.Equal(t, int64(10000), res.PendingCents)

	w, err = h.GetWallet(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(90000), w.AvailableCents)
	assert.Equal(t, int64(10000), w.PendingCents)

	locked := h.events.OfType(event.TypeReserveLocked)
	require.Len(t, locked, 1)
	assert.Equal(t, c.ID.String(), locked[0].CampaignID.String())
	assert.Equal(t, int64(10000), locked[0].AmountCents)
}

func TestLockRejectsAmountAboveRemainingBudget(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	w, c := h.fundedCampaign(t, 100000, 10000)

	_, err := h.Lock(ctx, c.ID, 5000)
	require.NoError(t, err)
	_, err = h.Spend(ctx, c.ID, 5000)
	require.NoError(t, err)

	_, err = h.Lock(ctx, c.ID, 10000)
	assert.ErrorIs(t, err, treasury.ErrBudgetExceeded)

	w, err = h.GetWallet(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(95000), w.AvailableCents, "failed lock must not move funds")
	assert.Zero(t, w.PendingCents)
}

func TestLockBoundCountsExistingLock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, c := h.fundedCampaign(t, 100000, 10000)

	_, err := h.Lock(ctx, c.ID, 6000)
	require.NoError(t, err)

	_, err = h.Lock(ctx, c.ID, 5000)
	assert.ErrorIs(t, err, treasury.ErrBudgetExceeded)

	res, err := h.Lock(ctx, c.ID, 4000)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), res.LockedCents)
}

func TestLockRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, active := h.fundedCampaign(t, 1000, 50000)

	_, paused := h.fundedCampaign(t, 100000, 50000)
	_, err := h.PauseCampaign(ctx, paused.ID, "creative review")
	require.NoError(t, err)

	tests := []struct {
		name       string
		campaignID id.CampaignID
		amount     int64
		want       error
	}{
		{"zero amount", active.ID, 0, treasury.ErrInvalidAmount},
		{"negative amount", active.ID, -10, treasury.ErrInvalidAmount},
		{"unknown campaign", id.NewCampaignID(), 100, treasury.ErrCampaignNotFound},
		{"paused campaign", paused.ID, 100, treasury.ErrCampaignNotActive},
		{"insufficient funds", active.ID, 5000, treasury.ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Lock(ctx, tt.campaignID, tt.amount)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, treasury.IsBusinessError(err))
		})
	}
}

func TestReleaseWithoutLock(t *testing.T) {
	h := newHarness(t)
	_, c := h.fundedCampaign(t, 100000, 50000)

	_, err := h.Release(context.Background(), c.ID, 5000)
	assert.ErrorIs(t, err, treasury.ErrNoBudgetLock)
}

func TestReleaseClampsToLockedAmount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	w, c := h.fundedCampaign(t, 100000, 50000)

	_, err := h.Lock(ctx, c.ID, 5000)
	require.NoError(t, err)

	res, err := h.Release(ctx, c.ID, 8000)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), res.MovedCents)
	assert.Zero(t, res.LockedCents)

	again, err := h.Release(ctx, c.ID, 5000)
	require.NoError(t, err)
	assert.Zero(t, again.MovedCents, "a second release moves nothing")
	assert.Empty(t, again.Events)

	w, err = h.GetWallet(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), w.AvailableCents)
	assert.Zero(t, w.PendingCents)
	assert.Len(t, h.events.OfType(event.TypeReserveReleased), 1)
}

func TestSpendConsumesLock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	w, c := h.fundedCampaign(t, 100000, 50000)

	_, err := h.Lock(ctx, c.ID, 10000)
	require.NoError(t, err)

	res, err := h.Spend(ctx, c.ID, 3000)
	require.NoError(t, err)
	assert.Equal(t, int64(7000), res.LockedCents)
	assert.Equal(t, int64(3000), res.SpentCents)
	assert.Equal(t, int64(7000), res.PendingCents)
	assert.False(t, res.AutoPaused)

	c, err = h.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), c.SpentBudgetCents)

	w, err = h.GetWallet(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(90000), w.AvailableCents)
	assert.Equal(t, int64(7000), w.PendingCents)
}

func TestSpendRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, c := h.fundedCampaign(t, 100000, 50000)

	_, err := h.Spend(ctx, c.ID, 100)
	assert.ErrorIs(t, err, treasury.ErrNoBudgetLock)

	_, err = h.Lock(ctx, c.ID, 1000)
	require.NoError(t, err)

	_, err = h.Spend(ctx, c.ID, 1001)
	assert.ErrorIs(t, err, treasury.ErrBudgetExceeded)

	_, err = h.Spend(ctx, c.ID, 0)
	assert.ErrorIs(t, err, treasury.ErrInvalidAmount)
}

func TestSpendAutoPausesExhaustedCampaign(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, c := h.fundedCampaign(t, 100000, 10000)

	_, err := h.Lock(ctx, c.ID, 10000)
	require.NoError(t, err)

	res, err := h.Spend(ctx, c.ID, 10000)
	require.NoError(t, err)
	assert.True(t, res.AutoPaused)

	c, err = h.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, campaign.StatusPaused, c.Status)
	assert.Equal(t, campaign.PauseReasonBudgetExhausted, c.PauseReason)
	require.NotNil(t, c.AutoPausedAt)
	assert.Equal(t, testStart, *c.AutoPausedAt)

	paused := h.events.OfType(event.TypeCampaignAutoPaused)
	require.Len(t, paused, 1)
	assert.Equal(t, c.ID.String(), paused[0].CampaignID.String())

	_, err = h.Lock(ctx, c.ID, 1)
	assert.ErrorIs(t, err, treasury.ErrCampaignNotActive)

	_, err = h.ActivateCampaign(ctx, c.ID)
	assert.ErrorIs(t, err, treasury.ErrBudgetExceeded)
}

func TestMoneyIsConserved(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	w, c := h.fundedCampaign(t, 60000, 40000)

	steps := []struct {
		op     string
		amount int64
	}{
		{"lock", 15000},
		{"spend", 4000},
		{"release", 2000},
		{"lock", 20000},
		{"spend", 12000},
		{"lock", 30000}, // exceeds remaining budget
		{"release", 100000},
		{"lock", 5000},
		{"spend", 5000},
	}

	deposited := int64(60000)
	for _, step := range steps {
		var err error
		switch step.op {
		case "lock":
			_, err = h.Lock(ctx, c.ID, step.amount)
		case "spend":
			_, err = h.Spend(ctx, c.ID, step.amount)
		case "release":
			_, err = h.Release(ctx, c.ID, step.amount)
		}
		if err != nil {
			require.True(t, treasury.IsBusinessError(err), "%s %d: %v", step.op, step.amount, err)
		}

		cur, err := h.GetWallet(ctx, w.ID)
		require.NoError(t, err)
		b, err := h.ComputeBudget(ctx, c.ID)
		require.NoError(t, err)

		assert.Equal(t, deposited, cur.AvailableCents+cur.PendingCents+b.SpentCents,
			"after %s %d", step.op, step.amount)
		assert.Equal(t, cur.PendingCents, b.LockedCents)
		assert.LessOrEqual(t, b.LockedCents+b.SpentCents, b.TotalBudgetCents)
	}
}

func TestConcurrentLocksNeverOverCommit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, c := h.fundedCampaign(t, 100000, 10000)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.Lock(ctx, c.ID, 300)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, treasury.ErrBudgetExceeded):
				fail++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 33, ok)
	assert.Equal(t, 17, fail)

	b, err := h.ComputeBudget(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9900), b.LockedCents)
}

func TestComputeBudget(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, c := h.fundedCampaign(t, 100000, 20000)

	b, err := h.ComputeBudget(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, b.LockedCents)
	assert.Equal(t, int64(20000), b.RemainingCents)
	assert.Equal(t, int64(5), b.PayoutPerViewCents)

	_, err = h.Lock(ctx, c.ID, 8000)
	require.NoError(t, err)
	_, err = h.Spend(ctx, c.ID, 3000)
	require.NoError(t, err)

	b, err = h.ComputeBudget(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), b.LockedCents)
	assert.Equal(t, int64(3000), b.SpentCents)
	assert.Equal(t, int64(12000), b.RemainingCents)

	_, err = h.ComputeBudget(ctx, id.NewCampaignID())
	assert.ErrorIs(t, err, treasury.ErrCampaignNotFound)
}

// brokenStore fails every transaction.
type brokenStore struct {
	store.Store
	err error
}

func (s brokenStore) Atomic(context.Context, func(context.Context, store.Tx) error) error {
	return s.err
}

func TestStorageFailureIsOpaque(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, c := h.fundedCampaign(t, 100000, 50000)

	cause := errors.New("connection reset by peer")
	broken := treasury.New(brokenStore{Store: h.store, err: cause})

	_, err := broken.Lock(ctx, c.ID, 1000)
	require.Error(t, err)
	assert.ErrorIs(t, err, treasury.ErrOperationFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "treasury: lock budget: operation failed", err.Error())
	assert.False(t, treasury.IsBusinessError(err))

	var opErr *treasury.OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "lock budget", opErr.Op)
}
