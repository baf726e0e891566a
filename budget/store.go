package budget

import (
	"context"

	"github.com/xraph/treasury/id"
)

type Store interface {
	GetLock(ctx context.Context, campaignID id.CampaignID) (*Lock, error)
}
