package treasury_test

import (
	"context"
	"log"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/treasury"
	"github.com/xraph/treasury/billing"
	"github.com/xraph/treasury/campaign"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/payout"
	"github.com/xraph/treasury/store/memory"
	"github.com/xraph/treasury/types"
	"github.com/xraph/treasury/wallet"
)

// TestDocumentationExamples verifies that the package documentation examples work.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		tr := treasury.New(store,
			treasury.WithLogger(slog.Default()),
			treasury.WithReleaseInterval(time.Minute),
			treasury.WithPacingInterval(15*time.Minute),
		)

		ctx := context.Background()
		if err := tr.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer tr.Stop()

		// Fund an advertiser
		w := &wallet.Wallet{OwnerID: "adv_acme", Currency: "usd"}
		if err := tr.CreateWallet(ctx, w); err != nil {
			t.Fatal(err)
		}
		if _, err := tr.Deposit(ctx, w.ID, 250000); err != nil {
			t.Fatal(err)
		}

		// Launch a campaign at a $20 CPM
		c := &campaign.Campaign{
			WalletID:         w.ID,
			Name:             "Launch week",
			TotalBudgetCents: 100000,
			CPMCents:         2000,
			PacingEnabled:    true,
			PacingMode:       campaign.PacingEven,
		}
		if err := tr.CreateCampaign(ctx, c); err != nil {
			t.Fatal(err)
		}
		if _, err := tr.ActivateCampaign(ctx, c.ID); err != nil {
			t.Fatal(err)
		}
		if _, err := tr.Lock(ctx, c.ID, 25000); err != nil {
			t.Fatal(err)
		}

		// Tell the payout queue how much the creator is trusted
		creator := id.NewCreatorID()
		if err := tr.UpsertCreatorProfile(ctx, payout.Profile{
			CreatorID:  creator,
			RiskLevel:  payout.RiskLow,
			TrustScore: 80,
		}); err != nil {
			t.Fatal(err)
		}

		// Bill a batch of views
		res, err := tr.Bill(ctx, billing.Event{
			RefEventID:   "view-batch-42",
			CampaignID:   c.ID,
			CreatorID:    creator,
			Kind:         billing.KindView,
			Views:        1000,
			CreatorTrust: 80,
		})
		if err != nil {
			t.Fatal(err)
		}

		if res.Billed {
			log.Printf("billed %s, creator earns %s after %s\n",
				types.USD(res.GrossCents), types.USD(res.CreatorCents), res.Payout.EligibleAt.Format(time.DateOnly))
		} else {
			log.Printf("throttled: %s\n", res.Decision.Reason)
		}
	})

	t.Run("MoneyExamples", func(t *testing.T) {
		// Constructors
		_ = types.USD(4900)   // $49.00
		_ = types.EUR(9900)   // €99.00
		_ = types.Zero("usd") // $0.00

		// Arithmetic
		m := types.USD(1999)
		_ = m.Add(types.USD(1)) // $20.00
		_ = m.Percent(10)       // $1.99, floored
		_ = m.Scale(0.85)       // $16.99, floored

		// Formatting
		_ = m.String()      // "$19.99"
		_ = m.FormatMajor() // "19.99"
	})
}
