// Package extension provides the Forge extension adapter for Treasury.
//
// It implements the forge.Extension interface to integrate Treasury
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.treasury" or "treasury" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	gpubsub "cloud.google.com/go/pubsub"
	"github.com/redis/go-redis/v9"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/vessel"

	"github.com/xraph/treasury"
	"github.com/xraph/treasury/event"
	"github.com/xraph/treasury/event/kafka"
	"github.com/xraph/treasury/event/pubsub"
	"github.com/xraph/treasury/guard/redisguard"
	"github.com/xraph/treasury/observability"
	"github.com/xraph/treasury/payout"
	"github.com/xraph/treasury/store"
	"github.com/xraph/treasury/store/memory"
	"github.com/xraph/treasury/store/mongo"
	"github.com/xraph/treasury/store/postgres"
	"github.com/xraph/treasury/store/sqlite"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "treasury"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Ad-spend escrow, creator payout and pacing engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Treasury as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config       Config
	engine       *treasury.Treasury
	store        store.Store
	treasuryOpts []treasury.Option

	// closers release the dispatchers and clients opened from config.
	closers []func() error
}

// New creates a new Treasury Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Treasury instance.
// This is nil until Register is called.
func (e *Extension) Engine() *treasury.Treasury { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the treasury engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	ctx := context.Background()

	if e.store == nil {
		s, err := openStore(ctx, e.config.StoreDriver, e.config.StoreDSN)
		if err != nil {
			return err
		}
		e.store = s
	}

	opts, err := e.buildTreasuryOpts(ctx)
	if err != nil {
		return errors.Join(err, e.closeAll())
	}

	e.engine = treasury.New(e.store, opts...)

	return vessel.Provide(fapp.Container(), func() (*treasury.Treasury, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("treasury: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	var errs []error
	if e.engine != nil {
		errs = append(errs, e.engine.Stop())
	}
	errs = append(errs, e.closeAll())
	e.MarkStopped()
	return errors.Join(errs...)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("treasury: store not initialized")
	}
	return e.store.Ping(ctx)
}

func (e *Extension) closeAll() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	e.closers = nil
	return errors.Join(errs...)
}

// buildTreasuryOpts constructs treasury.Option values from the resolved
// config, opening the redis guard and event dispatchers it names.
func (e *Extension) buildTreasuryOpts(ctx context.Context) ([]treasury.Option, error) {
	cfg := e.config
	opts := make([]treasury.Option, 0, len(e.treasuryOpts)+10)

	opts = append(opts,
		treasury.WithAutoMigrate(!cfg.DisableMigrate),
		treasury.WithPolicy(cfg.Policy),
		treasury.WithPlatformFeePercent(cfg.FeePercent()),
		treasury.WithSyntheticWindow(cfg.SyntheticWindow),
		treasury.WithReleaseBatchSize(cfg.ReleaseBatchSize),
	)
	if cfg.ReleaseInterval > 0 {
		opts = append(opts, treasury.WithReleaseInterval(cfg.ReleaseInterval))
	}
	if cfg.PacingInterval > 0 {
		opts = append(opts, treasury.WithPacingInterval(cfg.PacingInterval))
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		e.closers = append(e.closers, rdb.Close)
		opts = append(opts, treasury.WithGuard(redisguard.New(rdb, redisguard.WithTTL(cfg.RedisLockTTL))))
	}

	var dispatchers event.Multi
	if len(cfg.KafkaBrokers) > 0 {
		d, err := kafka.New(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, d.Close)
		dispatchers = append(dispatchers, d)
	}
	if cfg.PubSubProject != "" {
		client, err := gpubsub.NewClient(ctx, cfg.PubSubProject)
		if err != nil {
			return nil, fmt.Errorf("treasury: pubsub client: %w", err)
		}
		e.closers = append(e.closers, client.Close)
		d, err := pubsub.New(client, cfg.PubSubTopic)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, d.Close)
		dispatchers = append(dispatchers, d)
	}
	switch len(dispatchers) {
	case 0:
	case 1:
		opts = append(opts, treasury.WithDispatcher(dispatchers[0]))
	default:
		opts = append(opts, treasury.WithDispatcher(dispatchers))
	}

	if cfg.EnablePrometheus {
		factory := observability.NewPrometheusFactory(nil)
		opts = append(opts, treasury.WithPlugin(observability.NewMetricsExtension(factory)))
	}

	// Pass-through options come last so they override config.
	opts = append(opts, e.treasuryOpts...)

	return opts, nil
}

// openStore opens the grove database for driver and wraps it in the
// matching store backend.
func openStore(ctx context.Context, driver, dsn string) (store.Store, error) {
	if driver == "" || driver == DriverMemory {
		return memory.New(), nil
	}
	if dsn == "" {
		return nil, fmt.Errorf("treasury: store_dsn is required for driver %q", driver)
	}

	switch driver {
	case DriverPostgres:
		pgdb := pgdriver.New()
		if err := pgdb.Open(ctx, dsn); err != nil {
			return nil, fmt.Errorf("treasury: open postgres: %w", err)
		}
		db, err := grove.Open(pgdb)
		if err != nil {
			return nil, err
		}
		return postgres.New(db), nil

	case DriverSQLite:
		sdb := sqlitedriver.New()
		if err := sdb.Open(ctx, dsn); err != nil {
			return nil, fmt.Errorf("treasury: open sqlite: %w", err)
		}
		db, err := grove.Open(sdb)
		if err != nil {
			return nil, err
		}
		return sqlite.New(db), nil

	case DriverMongo:
		mdb := mongodriver.New()
		if err := mdb.Open(ctx, dsn); err != nil {
			return nil, fmt.Errorf("treasury: open mongo: %w", err)
		}
		db, err := grove.Open(mdb)
		if err != nil {
			return nil, err
		}
		return mongo.New(db), nil

	default:
		return nil, fmt.Errorf("treasury: unknown store driver %q", driver)
	}
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("treasury: configuration is required but not found in config files; " +
				"ensure 'extensions.treasury' or 'treasury' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	if err := e.config.Validate(); err != nil {
		return fmt.Errorf("treasury: invalid configuration: %w", err)
	}

	e.Logger().Debug("treasury: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("store_driver", e.config.StoreDriver),
		forge.F("release_interval", e.config.ReleaseInterval),
		forge.F("release_batch_size", e.config.ReleaseBatchSize),
		forge.F("pacing_interval", e.config.PacingInterval),
		forge.F("platform_fee_percent", e.config.FeePercent()),
		forge.F("redis_guard", e.config.RedisAddr != ""),
		forge.F("kafka_brokers", len(e.config.KafkaBrokers)),
		forge.F("pubsub_project", e.config.PubSubProject),
		forge.F("enable_prometheus", e.config.EnablePrometheus),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.treasury" first (namespaced pattern).
	if cm.IsSet("extensions.treasury") {
		if err := cm.Bind("extensions.treasury", &cfg); err == nil {
			e.Logger().Debug("treasury: loaded config from file",
				forge.F("key", "extensions.treasury"),
			)
			return cfg, true
		}
		e.Logger().Warn("treasury: failed to bind extensions.treasury config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "treasury" key.
	if cm.IsSet("treasury") {
		if err := cm.Bind("treasury", &cfg); err == nil {
			e.Logger().Debug("treasury: loaded config from file",
				forge.F("key", "treasury"),
			)
			return cfg, true
		}
		e.Logger().Warn("treasury: failed to bind treasury config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = defaults.StoreDriver
	}
	if cfg.ReleaseInterval == 0 {
		cfg.ReleaseInterval = defaults.ReleaseInterval
	}
	if cfg.ReleaseBatchSize == 0 {
		cfg.ReleaseBatchSize = defaults.ReleaseBatchSize
	}
	if cfg.PacingInterval == 0 {
		cfg.PacingInterval = defaults.PacingInterval
	}
	if cfg.SyntheticWindow == 0 {
		cfg.SyntheticWindow = defaults.SyntheticWindow
	}
	if cfg.PlatformFeePercent == nil {
		cfg.PlatformFeePercent = defaults.PlatformFeePercent
	}
	if cfg.Policy == (payout.Policy{}) {
		cfg.Policy = defaults.Policy
	}
	if cfg.RedisLockTTL == 0 {
		cfg.RedisLockTTL = defaults.RedisLockTTL
	}
	if cfg.KafkaTopic == "" {
		cfg.KafkaTopic = defaults.KafkaTopic
	}
	if cfg.PubSubTopic == "" {
		cfg.PubSubTopic = defaults.PubSubTopic
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.EnablePrometheus {
		yamlConfig.EnablePrometheus = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.StoreDriver == "" && programmaticConfig.StoreDriver != "" {
		yamlConfig.StoreDriver = programmaticConfig.StoreDriver
	}
	if yamlConfig.StoreDSN == "" && programmaticConfig.StoreDSN != "" {
		yamlConfig.StoreDSN = programmaticConfig.StoreDSN
	}
	if yamlConfig.RedisAddr == "" && programmaticConfig.RedisAddr != "" {
		yamlConfig.RedisAddr = programmaticConfig.RedisAddr
	}
	if yamlConfig.KafkaTopic == "" && programmaticConfig.KafkaTopic != "" {
		yamlConfig.KafkaTopic = programmaticConfig.KafkaTopic
	}
	if len(yamlConfig.KafkaBrokers) == 0 && len(programmaticConfig.KafkaBrokers) > 0 {
		yamlConfig.KafkaBrokers = programmaticConfig.KafkaBrokers
	}
	if yamlConfig.PubSubProject == "" && programmaticConfig.PubSubProject != "" {
		yamlConfig.PubSubProject = programmaticConfig.PubSubProject
	}
	if yamlConfig.PubSubTopic == "" && programmaticConfig.PubSubTopic != "" {
		yamlConfig.PubSubTopic = programmaticConfig.PubSubTopic
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.ReleaseInterval == 0 && programmaticConfig.ReleaseInterval != 0 {
		yamlConfig.ReleaseInterval = programmaticConfig.ReleaseInterval
	}
	if yamlConfig.ReleaseBatchSize == 0 && programmaticConfig.ReleaseBatchSize != 0 {
		yamlConfig.ReleaseBatchSize = programmaticConfig.ReleaseBatchSize
	}
	if yamlConfig.PacingInterval == 0 && programmaticConfig.PacingInterval != 0 {
		yamlConfig.PacingInterval = programmaticConfig.PacingInterval
	}
	if yamlConfig.SyntheticWindow == 0 && programmaticConfig.SyntheticWindow != 0 {
		yamlConfig.SyntheticWindow = programmaticConfig.SyntheticWindow
	}
	if yamlConfig.PlatformFeePercent == nil && programmaticConfig.PlatformFeePercent != nil {
		yamlConfig.PlatformFeePercent = programmaticConfig.PlatformFeePercent
	}
	if yamlConfig.RedisLockTTL == 0 && programmaticConfig.RedisLockTTL != 0 {
		yamlConfig.RedisLockTTL = programmaticConfig.RedisLockTTL
	}
	if yamlConfig.Policy == (payout.Policy{}) {
		yamlConfig.Policy = programmaticConfig.Policy
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
