package budget_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xraph/treasury/budget"
	"github.com/xraph/treasury/campaign"
	"github.com/xraph/treasury/id"
)

func TestProject(t *testing.T) {
	tests := []struct {
		name          string
		total, spent  int64
		cpm           int64
		lock          *budget.Lock
		wantRemaining int64
		wantPerView   int64
	}{
		{"no lock", 10000, 2000, 2500, nil, 8000, 2},
		{"with lock", 10000, 2000, 2500, &budget.Lock{LockedCents: 3000}, 5000, 2},
		{"over committed floors at zero", 10000, 8000, 999, &budget.Lock{LockedCents: 5000}, 0, 0},
		{"fully spent", 5000, 5000, 1000, &budget.Lock{}, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &campaign.Campaign{
				ID:               id.NewCampaignID(),
				TotalBudgetCents: tt.total,
				SpentBudgetCents: tt.spent,
				CPMCents:         tt.cpm,
			}
			b := budget.Project(c, tt.lock)
			assert.Equal(t, c.ID, b.CampaignID)
			assert.Equal(t, tt.total, b.TotalBudgetCents)
			assert.Equal(t, tt.spent, b.SpentCents)
			assert.Equal(t, tt.wantRemaining, b.RemainingCents)
			assert.Equal(t, tt.wantPerView, b.PayoutPerViewCents)
		})
	}
}
