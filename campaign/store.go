package campaign

import (
	"context"

	"github.com/xraph/treasury/id"
)

type Store interface {
	CreateCampaign(ctx context.Context, c *Campaign) error
	GetCampaign(ctx context.Context, campaignID id.CampaignID) (*Campaign, error)
	ListCampaigns(ctx context.Context, opts ListOpts) ([]*Campaign, error)
	UpdatePacingMetrics(ctx context.Context, campaignID id.CampaignID, m PacingMetrics) error
}

type ListOpts struct {
	Status   Status
	WalletID id.WalletID
	Limit    int
	Offset   int
}
