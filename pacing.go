package treasury

import (
	"context"

	"github.com/xraph/treasury/campaign"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/pacing"
)

// ──────────────────────────────────────────────────
// Pacing
// ──────────────────────────────────────────────────

// PacingStatus reports how the campaign's delivery compares with its
// schedule at the current time.
func (t *Treasury) PacingStatus(ctx context.Context, campaignID id.CampaignID) (*pacing.Status, error) {
	c, err := t.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, t.fail(ctx, "pacing status", err)
	}
	st := t.pacing.Status(c, t.now())
	return &st, nil
}

// Throttle decides whether a billable event for the campaign should be
// billed and at what multiplier. It never fails: when the campaign cannot
// be loaded the event is billed at face value.
func (t *Treasury) Throttle(ctx context.Context, campaignID id.CampaignID, creatorTrust, velocityRisk float64) pacing.Decision {
	c, err := t.store.GetCampaign(ctx, campaignID)
	if err != nil {
		t.logger.Warn("pacing data unavailable, billing unthrottled",
			"campaign_id", campaignID.String(),
			"error", err,
		)
		d := pacing.FailOpen()
		t.plugins.EmitThrottleDecision(ctx, campaignID, d)
		return d
	}
	return t.throttle(ctx, c, creatorTrust, velocityRisk)
}

func (t *Treasury) throttle(ctx context.Context, c *campaign.Campaign, creatorTrust, velocityRisk float64) pacing.Decision {
	d := t.pacing.Throttle(c, t.now(), creatorTrust, velocityRisk)
	t.plugins.EmitThrottleDecision(ctx, c.ID, d)
	return d
}

// UpdatePacingMetrics recomputes and stores the campaign's pacing flags.
func (t *Treasury) UpdatePacingMetrics(ctx context.Context, campaignID id.CampaignID) (*pacing.Status, error) {
	c, err := t.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, t.fail(ctx, "update pacing metrics", err)
	}
	return t.updatePacing(ctx, c)
}

func (t *Treasury) updatePacing(ctx context.Context, c *campaign.Campaign) (*pacing.Status, error) {
	now := t.now()
	st := t.pacing.Status(c, now)
	if err := t.store.UpdatePacingMetrics(ctx, c.ID, st.Metrics(now)); err != nil {
		return nil, t.fail(ctx, "update pacing metrics", err)
	}
	return &st, nil
}

// UpdateAllPacingMetrics refreshes pacing metrics for every active
// campaign. It returns the number updated; per-campaign failures are
// collected and do not stop the run.
func (t *Treasury) UpdateAllPacingMetrics(ctx context.Context) (int, error) {
	const page = 200

	var (
		updated int
		errs    MultiError
	)
	for offset := 0; ; offset += page {
		cs, err := t.store.ListCampaigns(ctx, campaign.ListOpts{
			Status: campaign.StatusActive,
			Limit:  page,
			Offset: offset,
		})
		if err != nil {
			return updated, t.fail(ctx, "list campaigns", err)
		}

		for _, c := range cs {
			if _, err := t.updatePacing(ctx, c); err != nil {
				errs.Add(err)
				continue
			}
			updated++
		}

		if len(cs) < page {
			break
		}
	}

	t.logger.Debug("pacing metrics updated", "campaigns", updated, "failed", len(errs.Errors))
	if errs.HasErrors() {
		return updated, errs
	}
	return updated, nil
}
