package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/treasury/budget"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/journal"
	"github.com/xraph/treasury/pacing"
	"github.com/xraph/treasury/payout"
)

func newExtension(t *testing.T) (*MetricsExtension, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewMetricsExtension(NewPrometheusFactory(reg)), reg
}

func TestPrometheusFactoryReusesCollectors(t *testing.T) {
	f := NewPrometheusFactory(prometheus.NewRegistry())

	a := f.Counter("treasury.budget.locks")
	b := f.Counter("treasury.budget.locks")
	a.Inc()
	b.Add(2)

	assert.Equal(t, float64(3), testutil.ToFloat64(a.(prometheus.Counter)))
}

func TestMetricNamesAreUnderscored(t *testing.T) {
	_, reg := newExtension(t)

	count, err := testutil.GatherAndCount(reg, "treasury_payout_released", "treasury_budget_spent_cents")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestBudgetAndJournalHooks(t *testing.T) {
	m, _ := newExtension(t)
	ctx := context.Background()
	campaignID := id.NewCampaignID()

	require.NoError(t, m.OnBudgetLocked(ctx, &budget.LockResult{CampaignID: campaignID, MovedCents: 5000}))
	require.NoError(t, m.OnBudgetSpent(ctx, &budget.SpendResult{CampaignID: campaignID, SpentCents: 1200}))
	require.NoError(t, m.OnBudgetSpent(ctx, &budget.SpendResult{CampaignID: campaignID, SpentCents: 300}))

	view := &journal.Entry{ID: id.NewJournalID(), CampaignID: campaignID, Type: journal.TypeViewPayout, AmountCents: 900}
	fee := &journal.Entry{ID: id.NewJournalID(), CampaignID: campaignID, Type: journal.TypePlatformFee, AmountCents: 100}
	require.NoError(t, m.OnJournalAppended(ctx, view))
	require.NoError(t, m.OnJournalAppended(ctx, fee))
	require.NoError(t, m.OnJournalAppended(ctx, journal.ReversalOf(view, "fraud", time.Now())))

	assert.Equal(t, float64(5000), testutil.ToFloat64(m.LockedCents.(prometheus.Counter)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.BudgetSpends.(prometheus.Counter)))
	assert.Equal(t, float64(1500), testutil.ToFloat64(m.SpentCents.(prometheus.Counter)))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.JournalEntries.(prometheus.Counter)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.JournalReversals.(prometheus.Counter)))
	assert.Equal(t, float64(900), testutil.ToFloat64(m.CreatorCredits.(prometheus.Counter)))
	assert.Equal(t, float64(100), testutil.ToFloat64(m.PlatformFees.(prometheus.Counter)))
}

func TestPayoutAndPacingHooks(t *testing.T) {
	m, _ := newExtension(t)
	ctx := context.Background()

	p := &payout.Entry{ID: id.NewPayoutID(), AmountCents: 1000, ReserveAmountCents: 100}
	require.NoError(t, m.OnPayoutEnqueued(ctx, p))
	require.NoError(t, m.OnPayoutReleased(ctx, p))
	require.NoError(t, m.OnReleaseBatch(ctx, 1, 2, 40*time.Millisecond))

	require.NoError(t, m.OnThrottleDecision(ctx, id.NewCampaignID(), pacing.Decision{ShouldBill: true}))
	require.NoError(t, m.OnThrottleDecision(ctx, id.NewCampaignID(), pacing.Decision{ShouldBill: false}))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.PayoutsEnqueued.(prometheus.Counter)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PayoutsReleased.(prometheus.Counter)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ReleaseFailures.(prometheus.Counter)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ThrottleAllowed.(prometheus.Counter)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ThrottleDenied.(prometheus.Counter)))
}
