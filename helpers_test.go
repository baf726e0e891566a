package treasury_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xraph/treasury"
	"github.com/xraph/treasury/campaign"
	"github.com/xraph/treasury/event"
	"github.com/xraph/treasury/pacing"
	"github.com/xraph/treasury/store/memory"
	"github.com/xraph/treasury/wallet"
)

var testStart = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	*treasury.Treasury
	store  *memory.Store
	events *event.Recorder
	clock  *testClock
	owners atomic.Int64
}

func newHarness(t *testing.T, opts ...treasury.Option) *harness {
	t.Helper()

	h := &harness{
		store:  memory.New(),
		events: &event.Recorder{},
		clock:  &testClock{now: testStart},
	}
	base := []treasury.Option{
		treasury.WithDispatcher(h.events),
		treasury.WithClock(h.clock.Now),
		treasury.WithRandSource(pacing.Fixed(0)),
	}
	h.Treasury = treasury.New(h.store, append(base, opts...)...)
	return h
}

// fundedCampaign creates a wallet holding available cents and an active
// campaign with the given total budget drawing on it.
func (h *harness) fundedCampaign(t *testing.T, available, total int64, mods ...func(*campaign.Campaign)) (*wallet.Wallet, *campaign.Campaign) {
	t.Helper()
	ctx := context.Background()

	w := &wallet.Wallet{OwnerID: fmt.Sprintf("adv_%d", h.owners.Add(1)), Currency: "USD"}
	require.NoError(t, h.CreateWallet(ctx, w))
	if available > 0 {
		_, err := h.Deposit(ctx, w.ID, available)
		require.NoError(t, err)
	}

	c := &campaign.Campaign{
		WalletID:         w.ID,
		AdvertiserID:     w.OwnerID,
		Name:             "spring launch",
		TotalBudgetCents: total,
		CPMCents:         5000,
	}
	for _, mod := range mods {
		mod(c)
	}
	require.NoError(t, h.CreateCampaign(ctx, c))

	c, err := h.ActivateCampaign(ctx, c.ID)
	require.NoError(t, err)

	w, err = h.GetWallet(ctx, w.ID)
	require.NoError(t, err)
	return w, c
}
