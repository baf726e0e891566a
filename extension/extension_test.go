package extension

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/treasury/payout"
	"github.com/xraph/treasury/store/memory"
	"github.com/xraph/treasury/store/sqlite"
)

func TestMergeWithDefaults(t *testing.T) {
	e := New()
	cfg := e.mergeWithDefaults(Config{ReleaseBatchSize: 50})

	assert.Equal(t, 50, cfg.ReleaseBatchSize)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, time.Minute, cfg.ReleaseInterval)
	assert.Equal(t, 30*24*time.Hour, cfg.SyntheticWindow)
	require.NotNil(t, cfg.PlatformFeePercent)
	assert.Equal(t, 10.0, cfg.FeePercent())
	assert.Equal(t, payout.DefaultPolicy(), cfg.Policy)
	assert.Equal(t, "treasury.events", cfg.KafkaTopic)
}

func TestMergeConfigurationsPrefersYAML(t *testing.T) {
	e := New()
	custom := payout.Policy{ReservePercentHigh: 40, DelayDaysLow: 1, DelayDaysMedium: 2, DelayDaysHigh: 30}

	yaml := Config{
		StoreDriver:     DriverSQLite,
		StoreDSN:        "file:yaml.db",
		ReleaseInterval: 10 * time.Second,
	}
	programmatic := Config{
		StoreDriver:      DriverPostgres,
		PacingInterval:   time.Minute,
		DisableMigrate:   true,
		EnablePrometheus: true,
		KafkaBrokers:     []string{"localhost:9092"},
		Policy:           custom,
	}

	cfg := e.mergeConfigurations(yaml, programmatic)

	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "file:yaml.db", cfg.StoreDSN)
	assert.Equal(t, 10*time.Second, cfg.ReleaseInterval)
	assert.Equal(t, time.Minute, cfg.PacingInterval)
	assert.True(t, cfg.DisableMigrate)
	assert.True(t, cfg.EnablePrometheus)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, custom, cfg.Policy)
	assert.Equal(t, 500, cfg.ReleaseBatchSize)
}

func TestZeroPlatformFeeSurvivesMerge(t *testing.T) {
	e := New()

	cfg := e.mergeWithDefaults(Config{PlatformFeePercent: feePercent(0)})
	assert.Zero(t, cfg.FeePercent())

	yaml := Config{PlatformFeePercent: feePercent(0)}
	programmatic := Config{PlatformFeePercent: feePercent(15)}
	cfg = e.mergeConfigurations(yaml, programmatic)
	assert.Zero(t, cfg.FeePercent(), "an explicit YAML zero is not a gap")

	cfg = e.mergeConfigurations(Config{}, programmatic)
	assert.Equal(t, 15.0, cfg.FeePercent())

	cfg = e.mergeConfigurations(Config{}, Config{})
	assert.Equal(t, 10.0, cfg.FeePercent())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero fee", func(c *Config) { c.PlatformFeePercent = feePercent(0) }, false},
		{"full fee", func(c *Config) { c.PlatformFeePercent = feePercent(100) }, false},
		{"negative fee", func(c *Config) { c.PlatformFeePercent = feePercent(-50) }, true},
		{"fee above 100", func(c *Config) { c.PlatformFeePercent = feePercent(120) }, true},
		{"reserve above 100", func(c *Config) { c.ReservePercentHigh = 140 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory by default", func(t *testing.T) {
		s, err := openStore(ctx, "", "")
		require.NoError(t, err)
		assert.IsType(t, &memory.Store{}, s)
	})

	t.Run("sqlite", func(t *testing.T) {
		s, err := openStore(ctx, DriverSQLite, "file:"+filepath.Join(t.TempDir(), "treasury.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		assert.IsType(t, &sqlite.Store{}, s)
		require.NoError(t, s.Migrate(ctx))
		require.NoError(t, s.Ping(ctx))
	})

	t.Run("missing dsn", func(t *testing.T) {
		_, err := openStore(ctx, DriverPostgres, "")
		assert.ErrorContains(t, err, "store_dsn is required")
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := openStore(ctx, "cassandra", "x")
		assert.ErrorContains(t, err, "unknown store driver")
	})
}

func TestBuildTreasuryOptsWithoutBackends(t *testing.T) {
	e := New(WithConfig(DefaultConfig()), WithReleaseInterval(-1))
	opts, err := e.buildTreasuryOpts(context.Background())
	require.NoError(t, err)
	assert.Len(t, opts, 6)
	assert.Empty(t, e.closers)
}
