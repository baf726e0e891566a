package treasury

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/treasury/event"
	"github.com/xraph/treasury/guard"
	"github.com/xraph/treasury/pacing"
	"github.com/xraph/treasury/payout"
	"github.com/xraph/treasury/plugin"
	"github.com/xraph/treasury/store"
)

// Defaults.
const (
	DefaultReleaseBatchSize   = 500
	DefaultPlatformFeePercent = 10.0
)

// Treasury is the marketplace money engine. It moves funds between
// advertiser wallets, campaign budget locks and creator payout balances.
type Treasury struct {
	store      store.Store
	plugins    *plugin.Registry
	logger     *slog.Logger
	dispatcher event.Dispatcher
	guard      guard.Locker
	policy     payout.Policy
	pacing     *pacing.Controller
	clock      func() time.Time

	// Configuration
	autoMigrate        bool
	platformFeePercent float64
	pacingOpts         []pacing.Option
	releaseInterval    time.Duration
	releaseBatchSize   int
	pacingInterval     time.Duration

	// Background workers
	cancel   context.CancelFunc
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a new Treasury instance.
func New(s store.Store, opts ...Option) *Treasury {
	t := &Treasury{
		store:              s,
		plugins:            plugin.NewRegistry(),
		logger:             slog.Default(),
		guard:              guard.NewLocal(),
		policy:             payout.DefaultPolicy(),
		clock:              time.Now,
		autoMigrate:        true,
		platformFeePercent: DefaultPlatformFeePercent,
		releaseBatchSize:   DefaultReleaseBatchSize,
	}

	for _, opt := range opts {
		opt(t)
	}

	t.pacing = pacing.New(t.pacingOpts...)
	return t
}

// Option configures a Treasury instance.
type Option func(*Treasury)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Treasury) {
		t.logger = logger
		t.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(t *Treasury) {
		_ = t.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithDispatcher sets where domain events are delivered after commit.
func WithDispatcher(d event.Dispatcher) Option {
	return func(t *Treasury) { t.dispatcher = d }
}

// WithGuard sets the advisory locker taken around every transaction.
// Defaults to an in-process keyed mutex.
func WithGuard(g guard.Locker) Option {
	return func(t *Treasury) {
		if g != nil {
			t.guard = g
		}
	}
}

// WithPolicy sets the reserve and hold policy applied at enqueue.
func WithPolicy(p payout.Policy) Option {
	return func(t *Treasury) { t.policy = p }
}

// WithPlatformFeePercent sets the platform's cut of each billed event.
func WithPlatformFeePercent(pct float64) Option {
	return func(t *Treasury) { t.platformFeePercent = pct }
}

// WithRandSource sets the random source used by the pacing throttle.
func WithRandSource(r pacing.RandSource) Option {
	return func(t *Treasury) { t.pacingOpts = append(t.pacingOpts, pacing.WithRand(r)) }
}

// WithSyntheticWindow sets the pacing window for campaigns without an end date.
func WithSyntheticWindow(d time.Duration) Option {
	return func(t *Treasury) { t.pacingOpts = append(t.pacingOpts, pacing.WithSyntheticWindow(d)) }
}

// WithReleaseInterval enables the background payout release worker.
func WithReleaseInterval(d time.Duration) Option {
	return func(t *Treasury) { t.releaseInterval = d }
}

// WithReleaseBatchSize caps how many payouts one release run considers.
func WithReleaseBatchSize(n int) Option {
	return func(t *Treasury) {
		if n > 0 {
			t.releaseBatchSize = n
		}
	}
}

// WithPacingInterval enables the background pacing metrics worker.
func WithPacingInterval(d time.Duration) Option {
	return func(t *Treasury) { t.pacingInterval = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Treasury) {
		if now != nil {
			t.clock = now
		}
	}
}

// WithAutoMigrate controls whether Start runs store migrations.
func WithAutoMigrate(enabled bool) Option {
	return func(t *Treasury) { t.autoMigrate = enabled }
}

// Store returns the underlying store.
func (t *Treasury) Store() store.Store { return t.store }

// Plugins returns the plugin registry.
func (t *Treasury) Plugins() *plugin.Registry { return t.plugins }

// Policy returns the active payout policy.
func (t *Treasury) Policy() payout.Policy { return t.policy }

// ValidatePlatformFee checks that pct is a percentage in [0, 100].
func ValidatePlatformFee(pct float64) error {
	if pct >= 0 && pct <= 100 {
		return nil
	}
	return ValidationError{
		Field:   "platform_fee_percent",
		Message: fmt.Sprintf("%v is outside [0, 100]", pct),
	}
}

// Start begins background workers.
func (t *Treasury) Start(ctx context.Context) error {
	if err := t.policy.Validate(); err != nil {
		return err
	}
	if err := ValidatePlatformFee(t.platformFeePercent); err != nil {
		return err
	}

	if t.autoMigrate {
		if err := t.store.Migrate(ctx); err != nil {
			return errors.Join(ErrMigrationFailed, err)
		}
	}

	// Initialize plugins
	t.plugins.EmitInit(ctx, t)

	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t.cancel = cancel

	if t.releaseInterval > 0 {
		t.wg.Add(1)
		go t.runWorker(workerCtx, "payout release", t.releaseInterval, func(ctx context.Context) {
			if _, err := t.ReleaseEligible(ctx, t.now()); err != nil {
				t.logger.Error("payout release run failed", "error", err)
			}
		})
	}

	if t.pacingInterval > 0 {
		t.wg.Add(1)
		go t.runWorker(workerCtx, "pacing metrics", t.pacingInterval, func(ctx context.Context) {
			if _, err := t.UpdateAllPacingMetrics(ctx); err != nil {
				t.logger.Error("pacing metrics run failed", "error", err)
			}
		})
	}

	t.logger.Info("treasury started",
		"release_interval", t.releaseInterval,
		"release_batch_size", t.releaseBatchSize,
		"pacing_interval", t.pacingInterval,
		"platform_fee_percent", t.platformFeePercent,
	)

	return nil
}

// Stop shuts down the Treasury.
func (t *Treasury) Stop() error {
	var err error
	t.stopOnce.Do(func() {
		if t.cancel != nil {
			t.cancel()
		}
		t.wg.Wait()

		ctx := context.Background()
		t.plugins.EmitShutdown(ctx)

		err = t.store.Close()
	})
	return err
}

func (t *Treasury) runWorker(ctx context.Context, name string, every time.Duration, run func(context.Context)) {
	defer t.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Debug("worker stopped", "worker", name)
			return
		case <-ticker.C:
			run(ctx)
		}
	}
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func (t *Treasury) now() time.Time { return t.clock().UTC() }

// atomic takes the advisory locks for keys in order, then runs fn in one
// store transaction.
func (t *Treasury) atomic(ctx context.Context, op string, keys []string, fn func(ctx context.Context, tx store.Tx) error) error {
	for _, key := range keys {
		unlock, err := t.guard.Lock(ctx, key)
		if err != nil {
			return t.fail(ctx, op, err)
		}
		defer unlock()
	}

	if err := t.store.Atomic(ctx, fn); err != nil {
		return t.fail(ctx, op, err)
	}
	return nil
}

// fail classifies err for op. Infrastructure failures are logged, reported
// to plugins and wrapped in an OpError.
func (t *Treasury) fail(ctx context.Context, op string, err error) error {
	var already *OpError
	if errors.As(err, &already) {
		return err
	}
	wrapped := opError(op, err)
	if _, ok := wrapped.(*OpError); ok {
		t.logger.Error("treasury operation failed",
			"op", op,
			"error", err,
		)
		t.plugins.EmitOperationFailed(ctx, op, err)
	}
	return wrapped
}

// dispatch forwards committed events. Delivery failures never change the
// outcome of the operation that produced them.
func (t *Treasury) dispatch(ctx context.Context, events []event.Event) {
	if t.dispatcher == nil || len(events) == 0 {
		return
	}
	if err := t.dispatcher.Dispatch(context.WithoutCancel(ctx), events...); err != nil {
		t.logger.Warn("event dispatch failed",
			"events", len(events),
			"first_type", events[0].Type,
			"error", err,
		)
	}
}

func campaignKey(s string) string { return "campaign:" + s }
func creatorKey(s string) string  { return "creator:" + s }
