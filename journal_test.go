package treasury_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/treasury"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/journal"
)

func TestJournalAppendAndReverse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, c := h.fundedCampaign(t, 0, 10000)
	creator := id.NewCreatorID()

	e, err := h.Append(ctx, &journal.Entry{
		CampaignID:  c.ID,
		CreatorID:   creator,
		Type:        journal.TypeViewPayout,
		AmountCents: 6000,
		RefEventID:  "views-1",
	})
	require.NoError(t, err)
	assert.False(t, e.ID.IsNil())
	assert.Equal(t, testStart, e.CreatedAt)

	_, err = h.Append(ctx, &journal.Entry{
		CampaignID:  c.ID,
		Type:        journal.TypePlatformFee,
		AmountCents: 5000,
	})
	assert.ErrorIs(t, err, treasury.ErrBudgetExceeded, "net may not exceed the campaign budget")

	rev, err := h.Reverse(ctx, e.ID, "fraudulent traffic")
	require.NoError(t, err)
	assert.Equal(t, journal.TypeReversal, rev.Type)
	assert.Equal(t, int64(-6000), rev.AmountCents)
	assert.Equal(t, e.ID.String(), rev.ReversesID.String())
	assert.Equal(t, creator.String(), rev.CreatorID.String())

	_, err = h.Reverse(ctx, e.ID, "again")
	assert.ErrorIs(t, err, treasury.ErrAlreadyReversed)

	_, err = h.Reverse(ctx, rev.ID, "undo the undo")
	assert.ErrorIs(t, err, treasury.ErrInvalidInput)

	_, err = h.Append(ctx, &journal.Entry{
		CampaignID:  c.ID,
		Type:        journal.TypePlatformFee,
		AmountCents: 5000,
	})
	require.NoError(t, err, "the reversal frees the budget again")

	sum, err := h.SumByCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), sum)

	sum, err = h.SumByCreator(ctx, creator)
	require.NoError(t, err)
	assert.Zero(t, sum)

	sum, err = h.SumByCreator(ctx, creator, journal.TypeViewPayout)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), sum)

	entries, err := h.ListEntries(ctx, journal.ListOpts{CampaignID: c.ID})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, e.ID.String(), entries[0].ID.String())
	assert.Equal(t, rev.ID.String(), entries[1].ID.String())
}

func TestJournalAppendValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, c := h.fundedCampaign(t, 0, 10000)

	tests := []struct {
		name  string
		entry journal.Entry
		want  error
	}{
		{"reversal", journal.Entry{CampaignID: c.ID, Type: journal.TypeReversal, AmountCents: -10}, treasury.ErrInvalidInput},
		{"unknown type", journal.Entry{CampaignID: c.ID, Type: "BONUS", AmountCents: 10}, treasury.ErrInvalidInput},
		{"missing campaign", journal.Entry{Type: journal.TypeViewPayout, AmountCents: 10}, treasury.ErrInvalidInput},
		{"zero amount", journal.Entry{CampaignID: c.ID, Type: journal.TypeViewPayout}, treasury.ErrInvalidAmount},
		{"negative amount", journal.Entry{CampaignID: c.ID, Type: journal.TypePlatformFee, AmountCents: -1}, treasury.ErrInvalidAmount},
		{"unknown campaign", journal.Entry{CampaignID: id.NewCampaignID(), Type: journal.TypeViewPayout, AmountCents: 10}, treasury.ErrCampaignNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.entry
			_, err := h.Append(ctx, &e)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestJournalDuplicateReference(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, c := h.fundedCampaign(t, 0, 10000)

	entry := func() *journal.Entry {
		return &journal.Entry{
			CampaignID:  c.ID,
			CreatorID:   id.NewCreatorID(),
			Type:        journal.TypeConversionPayout,
			AmountCents: 100,
			RefEventID:  "order-991",
		}
	}

	_, err := h.Append(ctx, entry())
	require.NoError(t, err)

	_, err = h.Append(ctx, entry())
	assert.ErrorIs(t, err, treasury.ErrDuplicateEntry)

	fee := entry()
	fee.Type = journal.TypePlatformFee
	_, err = h.Append(ctx, fee)
	assert.NoError(t, err, "the same reference may appear once per entry type")
}

func TestReverseUnknownEntry(t *testing.T) {
	h := newHarness(t)
	_, err := h.Reverse(context.Background(), id.NewJournalID(), "")
	assert.ErrorIs(t, err, treasury.ErrEntryNotFound)
}
