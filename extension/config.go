package extension

import (
	"time"

	"github.com/xraph/treasury"
	"github.com/xraph/treasury/payout"
)

// Store driver names accepted by Config.StoreDriver.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Config holds the Treasury extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.treasury" or "treasury" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// StoreDriver selects the backend opened when no store was provided
	// programmatically: memory, postgres, sqlite or mongo (default: memory).
	StoreDriver string `json:"store_driver" mapstructure:"store_driver" yaml:"store_driver"`

	// StoreDSN is the connection string handed to the grove driver.
	StoreDSN string `json:"store_dsn" mapstructure:"store_dsn" yaml:"store_dsn"`

	// ReleaseInterval is how often held payouts past their eligibility
	// date are released (default: 1m). Negative disables the worker.
	ReleaseInterval time.Duration `json:"release_interval" mapstructure:"release_interval" yaml:"release_interval"`

	// ReleaseBatchSize caps the payouts considered per release run (default: 500).
	ReleaseBatchSize int `json:"release_batch_size" mapstructure:"release_batch_size" yaml:"release_batch_size"`

	// PacingInterval is how often pacing metrics are refreshed for active
	// campaigns (default: 5m). Negative disables the worker.
	PacingInterval time.Duration `json:"pacing_interval" mapstructure:"pacing_interval" yaml:"pacing_interval"`

	// SyntheticWindow is the delivery window assumed for campaigns with
	// no end date (default: 720h).
	SyntheticWindow time.Duration `json:"synthetic_window" mapstructure:"synthetic_window" yaml:"synthetic_window"`

	// PlatformFeePercent is the platform's cut of each billed event, in
	// [0, 100] (default: 10). Nil means unset, so an explicit 0 is kept.
	PlatformFeePercent *float64 `json:"platform_fee_percent" mapstructure:"platform_fee_percent" yaml:"platform_fee_percent"`

	// Policy holds the per-risk-tier reserve percentages and hold days.
	// Zero tiers fall back to payout.DefaultPolicy.
	payout.Policy `mapstructure:",squash" yaml:",inline"`

	// RedisAddr enables the distributed guard when set.
	RedisAddr string `json:"redis_addr" mapstructure:"redis_addr" yaml:"redis_addr"`

	// RedisLockTTL is the lease on each distributed lock (default: 30s).
	RedisLockTTL time.Duration `json:"redis_lock_ttl" mapstructure:"redis_lock_ttl" yaml:"redis_lock_ttl"`

	// KafkaBrokers enables the Kafka event dispatcher when non-empty.
	KafkaBrokers []string `json:"kafka_brokers" mapstructure:"kafka_brokers" yaml:"kafka_brokers"`

	// KafkaTopic is the default topic for domain events (default: "treasury.events").
	KafkaTopic string `json:"kafka_topic" mapstructure:"kafka_topic" yaml:"kafka_topic"`

	// PubSubProject enables the Google Cloud Pub/Sub dispatcher when set.
	PubSubProject string `json:"pubsub_project" mapstructure:"pubsub_project" yaml:"pubsub_project"`

	// PubSubTopic is the Pub/Sub topic for domain events (default: "treasury-events").
	PubSubTopic string `json:"pubsub_topic" mapstructure:"pubsub_topic" yaml:"pubsub_topic"`

	// EnablePrometheus registers the metrics plugin on the default
	// Prometheus registerer.
	EnablePrometheus bool `json:"enable_prometheus" mapstructure:"enable_prometheus" yaml:"enable_prometheus"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		StoreDriver:        DriverMemory,
		ReleaseInterval:    time.Minute,
		ReleaseBatchSize:   500,
		PacingInterval:     5 * time.Minute,
		SyntheticWindow:    30 * 24 * time.Hour,
		PlatformFeePercent: feePercent(treasury.DefaultPlatformFeePercent),
		Policy:             payout.DefaultPolicy(),
		RedisLockTTL:       30 * time.Second,
		KafkaTopic:         "treasury.events",
		PubSubTopic:        "treasury-events",
	}
}

// FeePercent returns the configured platform fee, or the default when unset.
func (c Config) FeePercent() float64 {
	if c.PlatformFeePercent == nil {
		return treasury.DefaultPlatformFeePercent
	}
	return *c.PlatformFeePercent
}

// Validate rejects a policy or platform fee the engine cannot apply.
func (c Config) Validate() error {
	if err := c.Policy.Validate(); err != nil {
		return err
	}
	return treasury.ValidatePlatformFee(c.FeePercent())
}

func feePercent(pct float64) *float64 { return &pct }
