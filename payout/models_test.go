package payout_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/journal"
	"github.com/xraph/treasury/payout"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to payout.Status
		want     bool
	}{
		{payout.StatusPending, payout.StatusReleased, true},
		{payout.StatusPending, payout.StatusCancelled, true},
		{payout.StatusPending, payout.StatusFrozen, true},
		{payout.StatusFrozen, payout.StatusReleased, true},
		{payout.StatusFrozen, payout.StatusCancelled, true},
		{payout.StatusFrozen, payout.StatusPending, false},
		{payout.StatusReleased, payout.StatusCancelled, false},
		{payout.StatusCancelled, payout.StatusReleased, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, payout.CanTransition(tt.from, tt.to))
		})
	}
}

func TestNewEntrySnapshotsProfile(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	in := payout.EnqueueInput{
		CreatorID:   id.NewCreatorID(),
		CampaignID:  id.NewCampaignID(),
		AmountCents: 999,
		Type:        journal.TypeViewPayout,
	}

	tests := []struct {
		name        string
		profile     payout.Profile
		wantLevel   payout.RiskLevel
		wantEligble time.Time
		wantReserve int64
	}{
		{"low", payout.Profile{RiskLevel: payout.RiskLow}, payout.RiskLow, now.AddDate(0, 0, 3), 0},
		{"medium floors reserve", payout.Profile{RiskLevel: payout.RiskMedium}, payout.RiskMedium, now.AddDate(0, 0, 7), 99},
		{"high", payout.Profile{RiskLevel: payout.RiskHigh}, payout.RiskHigh, now.AddDate(0, 0, 14), 249},
		{"override delay", payout.Profile{RiskLevel: payout.RiskLow, PayoutDelayDays: 1}, payout.RiskLow, now.AddDate(0, 0, 1), 0},
		{"invalid level is medium", payout.Profile{}, payout.RiskMedium, now.AddDate(0, 0, 7), 99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := payout.NewEntry(in, tt.profile, payout.DefaultPolicy(), now)
			assert.Equal(t, payout.StatusPending, e.Status)
			assert.Equal(t, tt.wantLevel, e.RiskLevel)
			assert.Equal(t, tt.wantEligble, e.EligibleAt)
			assert.Equal(t, tt.wantReserve, e.ReserveAmountCents)
			assert.Equal(t, in.AmountCents-tt.wantReserve, e.NetCents())
			assert.Equal(t, 1.0, e.AppliedMultiplier)
			assert.True(t, e.IsHeld())
		})
	}
}

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, payout.DefaultPolicy().Validate())

	p := payout.DefaultPolicy()
	p.ReservePercentLow = -1
	assert.Error(t, p.Validate())

	p = payout.DefaultPolicy()
	p.DelayDaysHigh = -3
	assert.Error(t, p.Validate())
}

func TestRiskLevelText(t *testing.T) {
	for _, level := range []payout.RiskLevel{payout.RiskLow, payout.RiskMedium, payout.RiskHigh} {
		parsed, err := payout.ParseRiskLevel(level.String())
		require.NoError(t, err)
		assert.Equal(t, level, parsed)
	}

	_, err := payout.ParseRiskLevel("EXTREME")
	assert.Error(t, err)

	data, err := json.Marshal(payout.Profile{RiskLevel: payout.RiskHigh})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"risk_level":"HIGH"`)

	_, err = json.Marshal(payout.Profile{})
	assert.Error(t, err, "the zero level has no text form")
}

func TestReleaseReportCents(t *testing.T) {
	r := payout.ReleaseReport{Released: []*payout.Entry{
		{AmountCents: 1000, ReserveAmountCents: 100},
		{AmountCents: 500},
	}}
	assert.Equal(t, int64(1400), r.ReleasedCents())
}
