// Package treasury is the financial consistency core of a creator/advertiser
// marketplace.
//
// Treasury is designed as a library, not a service. Import it directly into
// your Go application. It provides:
//
//   - Advertiser wallets with available and pending balances
//   - Atomic budget locks that reserve wallet funds for a campaign
//   - An append-only journal of creator payouts, platform fees and reversals
//   - A payout queue that holds creator credits for a risk-based period
//   - A pacing controller that throttles billing against the campaign schedule
//   - Domain events delivered to Kafka or Pub/Sub after commit
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/treasury"
//	    "github.com/xraph/treasury/store/postgres"
//	)
//
//	store := postgres.New(db)
//
//	t := treasury.New(store,
//	    treasury.WithReleaseInterval(time.Minute),
//	    treasury.WithPacingInterval(15*time.Minute),
//	)
//	if err := t.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer t.Stop()
//
// # Money flow
//
// An advertiser funds a wallet with Deposit. Lock moves funds from the
// wallet's available balance into a campaign's budget lock, where they
// count as pending. Spend consumes locked funds. Bill composes the whole
// charge for one billable event:
//
//	res, err := t.Bill(ctx, billing.Event{
//	    RefEventID: "view-batch-42",
//	    CampaignID: campaignID,
//	    CreatorID:  creatorID,
//	    Kind:       billing.KindView,
//	    Views:      1000,
//	})
//
// The spend, the creator credit, the platform fee and the creator payout
// commit together. The payout is released by ReleaseEligible once its hold
// period, fixed from the creator's risk profile at enqueue time, elapses.
//
// All amounts are integer cents. Percentages and pacing multipliers are
// applied with exact decimal arithmetic and floored to whole cents.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	cmp_01h2xcejqtf2nbrexx3vqjhp41  // Campaign ID
//	pyt_01h2xcejqtf2nbrexx3vqjhp41  // Payout ID
//	jrn_01h455vb4pex5vsknk084sn02q  // Journal entry ID
package treasury
