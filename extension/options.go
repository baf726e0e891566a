package extension

import (
	"time"

	"github.com/xraph/treasury"
	"github.com/xraph/treasury/payout"
	"github.com/xraph/treasury/plugin"
	"github.com/xraph/treasury/store"
)

// Option configures the Treasury Forge extension.
type Option func(*Extension)

// WithStore sets the store for the treasury engine. It takes precedence
// over StoreDriver.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithTreasuryOption passes a treasury.Option through to the underlying engine.
func WithTreasuryOption(opt treasury.Option) Option {
	return func(e *Extension) {
		e.treasuryOpts = append(e.treasuryOpts, opt)
	}
}

// WithPlugin registers a treasury plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.treasuryOpts = append(e.treasuryOpts, treasury.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithStoreDriver selects the grove backend and its connection string.
func WithStoreDriver(driver, dsn string) Option {
	return func(e *Extension) {
		e.config.StoreDriver = driver
		e.config.StoreDSN = dsn
	}
}

// WithReleaseInterval sets how often eligible payouts are released.
func WithReleaseInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.ReleaseInterval = d }
}

// WithReleaseBatchSize caps the payouts considered per release run.
func WithReleaseBatchSize(n int) Option {
	return func(e *Extension) { e.config.ReleaseBatchSize = n }
}

// WithPacingInterval sets how often pacing metrics are refreshed.
func WithPacingInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.PacingInterval = d }
}

// WithPolicy sets the payout reserve and hold policy.
func WithPolicy(p payout.Policy) Option {
	return func(e *Extension) { e.config.Policy = p }
}

// WithPlatformFeePercent sets the platform's cut of each billed event.
func WithPlatformFeePercent(pct float64) Option {
	return func(e *Extension) { e.config.PlatformFeePercent = feePercent(pct) }
}

// WithRedis enables the distributed guard against addr.
func WithRedis(addr string, ttl time.Duration) Option {
	return func(e *Extension) {
		e.config.RedisAddr = addr
		e.config.RedisLockTTL = ttl
	}
}

// WithKafka enables the Kafka event dispatcher.
func WithKafka(topic string, brokers ...string) Option {
	return func(e *Extension) {
		e.config.KafkaTopic = topic
		e.config.KafkaBrokers = brokers
	}
}

// WithPubSub enables the Google Cloud Pub/Sub event dispatcher.
func WithPubSub(project, topic string) Option {
	return func(e *Extension) {
		e.config.PubSubProject = project
		e.config.PubSubTopic = topic
	}
}

// WithPrometheus registers the Prometheus-backed metrics plugin.
func WithPrometheus() Option {
	return func(e *Extension) { e.config.EnablePrometheus = true }
}
