package treasury_test

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/treasury"
	"github.com/xraph/treasury/budget"
	"github.com/xraph/treasury/campaign"
	"github.com/xraph/treasury/event"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/journal"
	"github.com/xraph/treasury/pacing"
	"github.com/xraph/treasury/payout"
	"github.com/xraph/treasury/wallet"
)

type recordingPlugin struct {
	mu       sync.Mutex
	locked   []int64
	paused   []string
	batches  int
	inits    int
	failures []string
}

func (p *recordingPlugin) Name() string { return "recording" }

func (p *recordingPlugin) OnInit(context.Context, any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inits++
	return nil
}

func (p *recordingPlugin) OnBudgetLocked(_ context.Context, r *budget.LockResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locked = append(p.locked, r.MovedCents)
	return nil
}

func (p *recordingPlugin) OnCampaignAutoPaused(_ context.Context, campaignID id.CampaignID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = append(p.paused, campaignID.String())
	return nil
}

func (p *recordingPlugin) OnReleaseBatch(context.Context, int, int, time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches++
	return nil
}

func (p *recordingPlugin) OnOperationFailed(_ context.Context, op string, _ error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = append(p.failures, op)
	return nil
}

func TestPluginsReceiveHooks(t *testing.T) {
	rec := &recordingPlugin{}
	h := newHarness(t, treasury.WithPlugin(rec))
	ctx := context.Background()
	_, c := h.fundedCampaign(t, 100000, 5000)

	_, err := h.Lock(ctx, c.ID, 5000)
	require.NoError(t, err)
	_, err = h.Spend(ctx, c.ID, 5000)
	require.NoError(t, err)
	_, err = h.ReleaseEligible(ctx, h.clock.Now())
	require.NoError(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []int64{5000}, rec.locked)
	assert.Equal(t, []string{c.ID.String()}, rec.paused)
	assert.Equal(t, 1, rec.batches)
	assert.Empty(t, rec.failures)
}

func TestStartRunsReleaseWorker(t *testing.T) {
	rec := &recordingPlugin{}
	h := newHarness(t,
		treasury.WithPlugin(rec),
		treasury.WithReleaseInterval(5*time.Millisecond),
	)
	ctx := context.Background()
	creator := id.NewCreatorID()

	_, err := h.Enqueue(ctx, payout.EnqueueInput{
		CreatorID:   creator,
		CampaignID:  id.NewCampaignID(),
		AmountCents: 2000,
		Type:        journal.TypeViewPayout,
	})
	require.NoError(t, err)
	h.clock.Advance(8 * day)

	require.NoError(t, h.Start(ctx))

	require.Eventually(t, func() bool {
		b, err := h.GetCreatorBalance(ctx, creator)
		return err == nil && b.AvailableCents == 1800
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, h.Stop())
	require.NoError(t, h.Stop(), "Stop is idempotent")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.inits)
}

func TestStartRejectsInvalidPolicy(t *testing.T) {
	policy := payout.DefaultPolicy()
	policy.ReservePercentHigh = 140
	h := newHarness(t, treasury.WithPolicy(policy))

	assert.Error(t, h.Start(context.Background()))
}

func TestStartRejectsInvalidPlatformFee(t *testing.T) {
	for _, pct := range []float64{-50, 140, math.NaN()} {
		h := newHarness(t, treasury.WithPlatformFeePercent(pct))
		err := h.Start(context.Background())
		assert.ErrorIs(t, err, treasury.ErrInvalidInput, "fee %v", pct)
	}

	for _, pct := range []float64{0, 100} {
		h := newHarness(t, treasury.WithPlatformFeePercent(pct))
		require.NoError(t, h.Start(context.Background()))
		require.NoError(t, h.Stop())
	}
}

func TestWalletLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	w := &wallet.Wallet{OwnerID: "adv_acme", Currency: "EUR"}
	require.NoError(t, h.CreateWallet(ctx, w))
	assert.Equal(t, id.PrefixWallet, w.ID.Prefix())
	assert.Equal(t, "eur", w.Currency)

	err := h.CreateWallet(ctx, &wallet.Wallet{OwnerID: "adv_acme"})
	assert.ErrorIs(t, err, treasury.ErrAlreadyExists)

	err = h.CreateWallet(ctx, &wallet.Wallet{})
	assert.ErrorIs(t, err, treasury.ErrInvalidInput)

	w, err = h.Deposit(ctx, w.ID, 2500)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), w.AvailableCents)
	assert.Equal(t, "€25.00", w.Available().String())

	_, err = h.Deposit(ctx, w.ID, 0)
	assert.ErrorIs(t, err, treasury.ErrInvalidAmount)

	_, err = h.Deposit(ctx, id.NewWalletID(), 100)
	assert.ErrorIs(t, err, treasury.ErrWalletNotFound)

	byOwner, err := h.GetWalletByOwner(ctx, "adv_acme")
	require.NoError(t, err)
	assert.Equal(t, w.ID.String(), byOwner.ID.String())

	credited := h.events.OfType(event.TypeWalletCredited)
	require.Len(t, credited, 1)
	assert.Equal(t, w.ID.String(), credited[0].WalletID.String())
}

func TestCampaignLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	w := &wallet.Wallet{OwnerID: "adv_lifecycle"}
	require.NoError(t, h.CreateWallet(ctx, w))

	err := h.CreateCampaign(ctx, &campaign.Campaign{WalletID: w.ID})
	assert.ErrorIs(t, err, treasury.ErrInvalidInput)

	err = h.CreateCampaign(ctx, &campaign.Campaign{WalletID: id.NewWalletID(), TotalBudgetCents: 100})
	assert.ErrorIs(t, err, treasury.ErrWalletNotFound)

	c := &campaign.Campaign{WalletID: w.ID, Name: "autumn", TotalBudgetCents: 10000}
	require.NoError(t, h.CreateCampaign(ctx, c))
	assert.Equal(t, campaign.StatusDraft, c.Status)
	assert.Equal(t, campaign.PacingEven, c.PacingMode)

	_, err = h.PauseCampaign(ctx, c.ID, "")
	assert.ErrorIs(t, err, treasury.ErrCampaignNotActive)

	c, err = h.ActivateCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, c.IsActive())

	c, err = h.PauseCampaign(ctx, c.ID, "brand safety")
	require.NoError(t, err)
	assert.Equal(t, campaign.StatusPaused, c.Status)
	assert.Equal(t, "brand safety", c.PauseReason)

	active, err := h.ListCampaigns(ctx, campaign.ListOpts{Status: campaign.StatusActive})
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestThrottleFailsOpen(t *testing.T) {
	h := newHarness(t)

	d := h.Throttle(context.Background(), id.NewCampaignID(), 90, 10)
	assert.True(t, d.ShouldBill)
	assert.Equal(t, 1.0, d.Probability)
	assert.Equal(t, 1.0, d.Multiplier)
	assert.Equal(t, pacing.ReasonDataUnavailable, d.Reason)
}

func TestThrottleEvenOverDelivering(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, c := h.fundedCampaign(t, 100000, 10000, overDeliveringCampaign(campaign.PacingEven))

	_, err := h.Lock(ctx, c.ID, 5000)
	require.NoError(t, err)
	_, err = h.Spend(ctx, c.ID, 5000)
	require.NoError(t, err)

	d := h.Throttle(ctx, c.ID, 60, 10)
	assert.True(t, d.ShouldBill)
	assert.InDelta(t, 0.85, d.Multiplier, 1e-9)
	require.NotNil(t, d.Status)
	assert.True(t, d.Status.IsOverDelivering)
	assert.Equal(t, pacing.ActionReduce, d.Status.RecommendedAction)
}

func TestUpdatePacingMetrics(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, over := h.fundedCampaign(t, 100000, 10000, overDeliveringCampaign(campaign.PacingEven))
	_, onTrack := h.fundedCampaign(t, 100000, 10000)

	_, err := h.Lock(ctx, over.ID, 5000)
	require.NoError(t, err)
	_, err = h.Spend(ctx, over.ID, 5000)
	require.NoError(t, err)

	st, err := h.PacingStatus(ctx, over.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, st.DeliveryProgressPercent)

	n, err := h.UpdateAllPacingMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := h.GetCampaign(ctx, over.ID)
	require.NoError(t, err)
	assert.True(t, got.Pacing.IsOverDelivering)
	assert.Equal(t, 50.0, got.Pacing.DeliveryProgressPercent)
	require.NotNil(t, got.Pacing.LastPacingCheckAt)
	assert.Equal(t, testStart, *got.Pacing.LastPacingCheckAt)
	assert.Equal(t, int64(5000), got.SpentBudgetCents, "metrics refresh leaves money fields alone")

	got, err = h.GetCampaign(ctx, onTrack.ID)
	require.NoError(t, err)
	assert.False(t, got.Pacing.IsOverDelivering)
	assert.False(t, got.Pacing.IsUnderDelivering)

	_, err = h.UpdatePacingMetrics(ctx, id.NewCampaignID())
	assert.ErrorIs(t, err, treasury.ErrCampaignNotFound)
}
