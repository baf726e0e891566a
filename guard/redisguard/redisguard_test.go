package redisguard

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/treasury/guard"
	"github.com/xraph/treasury/id"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TREASURY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TREASURY_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, rdb.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestLockExcludesSecondHolder(t *testing.T) {
	l := New(newRedis(t), WithTTL(time.Second), WithBackoff(10*time.Millisecond))
	key := id.NewCampaignID().String()

	unlock, err := l.Lock(context.Background(), key)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, key)
	assert.ErrorIs(t, err, guard.ErrNotObtained)

	unlock()

	unlock2, err := l.Lock(context.Background(), key)
	require.NoError(t, err)
	unlock2()
}
