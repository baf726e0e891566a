package mongo_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/treasury/store"
	"github.com/xraph/treasury/store/mongo"
	"github.com/xraph/treasury/store/storetest"
)

// TREASURY_MONGO_URI must point at a replica set; each run drops the
// treasury_test database.
func newStore(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()

	mdb := mongodriver.New()
	require.NoError(t, mdb.Open(ctx, os.Getenv("TREASURY_MONGO_URI"), mongodriver.WithDatabase("treasury_test")))
	db, err := grove.Open(mdb)
	require.NoError(t, err)
	require.NoError(t, mdb.Database().Drop(ctx))

	s := mongo.New(db)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestConformance(t *testing.T) {
	if os.Getenv("TREASURY_MONGO_URI") == "" {
		t.Skip("TREASURY_MONGO_URI not set")
	}
	storetest.Run(t, newStore)
}
