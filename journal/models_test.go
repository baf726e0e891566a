package journal_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/journal"
)

func TestTypeClassification(t *testing.T) {
	assert.True(t, journal.TypeViewPayout.IsCreatorCredit())
	assert.True(t, journal.TypeConversionPayout.IsCreatorCredit())
	assert.False(t, journal.TypePlatformFee.IsCreatorCredit())
	assert.False(t, journal.TypeReversal.IsCreatorCredit())

	assert.True(t, journal.TypeReversal.Valid())
	assert.False(t, journal.Type("BONUS").Valid())
}

func TestReversalOf(t *testing.T) {
	orig := &journal.Entry{
		ID:          id.NewJournalID(),
		CampaignID:  id.NewCampaignID(),
		CreatorID:   id.NewCreatorID(),
		Type:        journal.TypeViewPayout,
		AmountCents: 4200,
		RefEventID:  "views-1",
	}
	at := time.Date(2026, 4, 2, 8, 0, 0, 0, time.FixedZone("CET", 3600))

	rev := journal.ReversalOf(orig, "chargeback", at)
	assert.True(t, rev.IsReversal())
	assert.Equal(t, int64(-4200), rev.AmountCents)
	assert.Equal(t, orig.ID.String(), rev.ReversesID.String())
	assert.Equal(t, orig.CampaignID.String(), rev.CampaignID.String())
	assert.Equal(t, orig.CreatorID.String(), rev.CreatorID.String())
	assert.Empty(t, rev.RefEventID)
	assert.Equal(t, time.UTC, rev.CreatedAt.Location())
	assert.NotEqual(t, orig.ID.String(), rev.ID.String())
}

func TestListOptsMatches(t *testing.T) {
	campaignID := id.NewCampaignID()
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	e := &journal.Entry{
		CampaignID: campaignID,
		CreatorID:  id.NewCreatorID(),
		Type:       journal.TypePlatformFee,
		CreatedAt:  base.Add(time.Hour),
	}

	tests := []struct {
		name string
		opts journal.ListOpts
		want bool
	}{
		{"empty", journal.ListOpts{}, true},
		{"campaign", journal.ListOpts{CampaignID: campaignID}, true},
		{"other campaign", journal.ListOpts{CampaignID: id.NewCampaignID()}, false},
		{"other creator", journal.ListOpts{CreatorID: id.NewCreatorID()}, false},
		{"type", journal.ListOpts{Types: []journal.Type{journal.TypeViewPayout, journal.TypePlatformFee}}, true},
		{"other type", journal.ListOpts{Types: []journal.Type{journal.TypeReversal}}, false},
		{"in range", journal.ListOpts{From: base, To: base.Add(2 * time.Hour)}, true},
		{"to is exclusive", journal.ListOpts{To: base.Add(time.Hour)}, false},
		{"before from", journal.ListOpts{From: base.Add(2 * time.Hour)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.opts.Matches(e))
		})
	}
}
