package audithook

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/journal"
	"github.com/xraph/treasury/payout"
)

type captured struct {
	events []*AuditEvent
}

func (c *captured) recorder() Recorder {
	return RecorderFunc(func(_ context.Context, e *AuditEvent) error {
		c.events = append(c.events, e)
		return nil
	})
}

func TestJournalReversalRecordedSeparately(t *testing.T) {
	c := &captured{}
	ext := New(c.recorder())
	ctx := context.Background()

	orig := &journal.Entry{
		ID:          id.NewJournalID(),
		CampaignID:  id.NewCampaignID(),
		CreatorID:   id.NewCreatorID(),
		Type:        journal.TypeViewPayout,
		AmountCents: 700,
		CreatedAt:   time.Now(),
	}
	require.NoError(t, ext.OnJournalAppended(ctx, orig))
	require.NoError(t, ext.OnJournalAppended(ctx, journal.ReversalOf(orig, "fraud", time.Now())))

	require.Len(t, c.events, 2)
	assert.Equal(t, ActionJournalAppended, c.events[0].Action)
	assert.Equal(t, orig.ID.String(), c.events[0].ResourceID)
	assert.Equal(t, int64(700), c.events[0].Metadata["amount_cents"])

	assert.Equal(t, ActionJournalReversed, c.events[1].Action)
	assert.Equal(t, SeverityWarning, c.events[1].Severity)
	assert.Equal(t, orig.ID.String(), c.events[1].Metadata["reverses_id"])
	assert.Equal(t, "fraud", c.events[1].Metadata["reversal_reason"])
}

func TestOperationFailedCarriesReason(t *testing.T) {
	c := &captured{}
	ext := New(c.recorder())

	require.NoError(t, ext.OnOperationFailed(context.Background(), "spend", errors.New("connection reset")))

	require.Len(t, c.events, 1)
	assert.Equal(t, OutcomeFailure, c.events[0].Outcome)
	assert.Equal(t, "connection reset", c.events[0].Reason)
	assert.Equal(t, "spend", c.events[0].ResourceID)
}

func TestDisabledActionsAreSkipped(t *testing.T) {
	c := &captured{}
	ext := New(c.recorder(), WithDisabledActions(ActionPayoutEnqueued))
	ctx := context.Background()

	p := &payout.Entry{
		ID:          id.NewPayoutID(),
		CreatorID:   id.NewCreatorID(),
		CampaignID:  id.NewCampaignID(),
		AmountCents: 1000,
		RiskLevel:   payout.RiskLow,
		Status:      payout.StatusFrozen,
	}
	require.NoError(t, ext.OnPayoutEnqueued(ctx, p))
	require.NoError(t, ext.OnPayoutFrozen(ctx, p))

	require.Len(t, c.events, 1)
	assert.Equal(t, ActionPayoutFrozen, c.events[0].Action)
	assert.Equal(t, "LOW", c.events[0].Metadata["risk_level"])
}

func TestRecorderErrorsAreSwallowed(t *testing.T) {
	ext := New(RecorderFunc(func(context.Context, *AuditEvent) error {
		return errors.New("backend down")
	}))
	assert.NoError(t, ext.OnCampaignAutoPaused(context.Background(), id.NewCampaignID()))
}
