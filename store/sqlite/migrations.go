package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Treasury store (SQLite).
var Migrations = migrate.NewGroup("treasury")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_treasury_wallets",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS treasury_wallets (
    id              TEXT PRIMARY KEY,
    owner_id        TEXT NOT NULL,
    currency        TEXT NOT NULL DEFAULT 'usd',
    available_cents INTEGER NOT NULL DEFAULT 0 CHECK (available_cents >= 0),
    pending_cents   INTEGER NOT NULL DEFAULT 0 CHECK (pending_cents >= 0),
    metadata        TEXT NOT NULL DEFAULT '{}',
    created_at      TEXT NOT NULL,
    updated_at      TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_treasury_wallets_owner ON treasury_wallets (owner_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS treasury_wallets`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_treasury_campaigns",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS treasury_campaigns (
    id                        TEXT PRIMARY KEY,
    wallet_id                 TEXT NOT NULL REFERENCES treasury_wallets (id),
    advertiser_id             TEXT NOT NULL DEFAULT '',
    name                      TEXT NOT NULL DEFAULT '',
    status                    TEXT NOT NULL DEFAULT 'draft',
    total_budget_cents        INTEGER NOT NULL DEFAULT 0,
    spent_budget_cents        INTEGER NOT NULL DEFAULT 0 CHECK (spent_budget_cents >= 0),
    cpm_cents                 INTEGER NOT NULL DEFAULT 0,
    start_date                TEXT,
    end_date                  TEXT,
    pacing_enabled            INTEGER NOT NULL DEFAULT 0,
    pacing_mode               TEXT NOT NULL DEFAULT 'EVEN',
    delivery_progress_percent REAL NOT NULL DEFAULT 0,
    is_over_delivering        INTEGER NOT NULL DEFAULT 0,
    is_under_delivering       INTEGER NOT NULL DEFAULT 0,
    last_pacing_check_at      TEXT,
    auto_paused_at            TEXT,
    pause_reason              TEXT NOT NULL DEFAULT '',
    metadata                  TEXT NOT NULL DEFAULT '{}',
    created_at                TEXT NOT NULL,
    updated_at                TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_treasury_campaigns_wallet ON treasury_campaigns (wallet_id);
CREATE INDEX IF NOT EXISTS idx_treasury_campaigns_status ON treasury_campaigns (status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS treasury_campaigns`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_treasury_budget_locks",
			Version: "20260101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS treasury_budget_locks (
    id           TEXT PRIMARY KEY,
    campaign_id  TEXT NOT NULL REFERENCES treasury_campaigns (id),
    wallet_id    TEXT NOT NULL REFERENCES treasury_wallets (id),
    locked_cents INTEGER NOT NULL DEFAULT 0 CHECK (locked_cents >= 0),
    created_at   TEXT NOT NULL,
    updated_at   TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_treasury_budget_locks_campaign ON treasury_budget_locks (campaign_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS treasury_budget_locks`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_treasury_journal",
			Version: "20260101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS treasury_journal (
    id           TEXT PRIMARY KEY,
    campaign_id  TEXT NOT NULL,
    creator_id   TEXT NOT NULL DEFAULT '',
    type         TEXT NOT NULL,
    amount_cents INTEGER NOT NULL,
    ref_event_id TEXT NOT NULL DEFAULT '',
    reverses_id  TEXT NOT NULL DEFAULT '',
    reason       TEXT NOT NULL DEFAULT '',
    metadata     TEXT NOT NULL DEFAULT '{}',
    created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_treasury_journal_campaign ON treasury_journal (campaign_id, created_at);
CREATE INDEX IF NOT EXISTS idx_treasury_journal_creator ON treasury_journal (creator_id, created_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_treasury_journal_ref ON treasury_journal (campaign_id, type, ref_event_id) WHERE ref_event_id != '';
CREATE UNIQUE INDEX IF NOT EXISTS idx_treasury_journal_reverses ON treasury_journal (reverses_id) WHERE reverses_id != '';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS treasury_journal`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_treasury_payouts",
			Version: "20260101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS treasury_payouts (
    id                   TEXT PRIMARY KEY,
    creator_id           TEXT NOT NULL,
    campaign_id          TEXT NOT NULL,
    journal_entry_id     TEXT NOT NULL DEFAULT '',
    amount_cents         INTEGER NOT NULL CHECK (amount_cents > 0),
    type                 TEXT NOT NULL,
    status               TEXT NOT NULL DEFAULT 'PENDING',
    eligible_at          TEXT NOT NULL,
    risk_snapshot_score  REAL NOT NULL DEFAULT 0,
    risk_level           TEXT NOT NULL,
    reserve_percent      REAL NOT NULL DEFAULT 0,
    reserve_amount_cents INTEGER NOT NULL DEFAULT 0,
    applied_multiplier   REAL NOT NULL DEFAULT 1,
    released_at          TEXT,
    cancelled_at         TEXT,
    frozen_at            TEXT,
    status_reason        TEXT NOT NULL DEFAULT '',
    reserve_returned_at  TEXT,
    created_at           TEXT NOT NULL,
    updated_at           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_treasury_payouts_eligible ON treasury_payouts (status, eligible_at);
CREATE INDEX IF NOT EXISTS idx_treasury_payouts_creator ON treasury_payouts (creator_id, status);
CREATE INDEX IF NOT EXISTS idx_treasury_payouts_campaign ON treasury_payouts (campaign_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS treasury_payouts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_treasury_creator_balances",
			Version: "20260101000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS treasury_creator_balances (
    creator_id         TEXT PRIMARY KEY,
    available_cents    INTEGER NOT NULL DEFAULT 0,
    pending_cents      INTEGER NOT NULL DEFAULT 0,
    total_earned_cents INTEGER NOT NULL DEFAULT 0,
    reserved_cents     INTEGER NOT NULL DEFAULT 0,
    risk_level         TEXT NOT NULL DEFAULT 'MEDIUM',
    trust_score        REAL NOT NULL DEFAULT 0,
    payout_delay_days  INTEGER NOT NULL DEFAULT 0,
    created_at         TEXT NOT NULL,
    updated_at         TEXT NOT NULL
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS treasury_creator_balances`)
				return err
			},
		},
	)
}
