package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"

	"github.com/xraph/treasury/store"
	"github.com/xraph/treasury/store/postgres"
	"github.com/xraph/treasury/store/storetest"
)

// TREASURY_POSTGRES_DSN points at a scratch database; every run truncates
// the treasury tables.
func newStore(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()

	pgdb := pgdriver.New()
	require.NoError(t, pgdb.Open(ctx, os.Getenv("TREASURY_POSTGRES_DSN")))
	db, err := grove.Open(pgdb)
	require.NoError(t, err)

	s := postgres.New(db)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))

	_, err = pgdb.Exec(ctx, `TRUNCATE treasury_journal, treasury_payouts, treasury_creator_balances,
		treasury_budget_locks, treasury_campaigns, treasury_wallets`)
	require.NoError(t, err)
	return s
}

func TestConformance(t *testing.T) {
	if os.Getenv("TREASURY_POSTGRES_DSN") == "" {
		t.Skip("TREASURY_POSTGRES_DSN not set")
	}
	storetest.Run(t, newStore)
}
