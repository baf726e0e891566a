package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate" // registers the sqlite migration executor
	"github.com/xraph/grove/migrate"

	"github.com/xraph/treasury"
	"github.com/xraph/treasury/budget"
	"github.com/xraph/treasury/campaign"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/journal"
	"github.com/xraph/treasury/payout"
	"github.com/xraph/treasury/store"
	"github.com/xraph/treasury/wallet"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM. SQLite has a
// single writer, so Atomic serializes transactions in-process instead of
// relying on row locks.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB

	writeMu sync.Mutex
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("treasury/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("treasury/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Wallet Store ====================

func (s *Store) CreateWallet(ctx context.Context, w *wallet.Wallet) error {
	_, err := s.sdb.NewInsert(toWalletModel(w)).Exec(ctx)
	if isUniqueViolation(err) {
		return treasury.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetWallet(ctx context.Context, walletID id.WalletID) (*wallet.Wallet, error) {
	m := new(walletModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", walletID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, treasury.ErrWalletNotFound
		}
		return nil, err
	}
	return fromWalletModel(m)
}

func (s *Store) GetWalletByOwner(ctx context.Context, ownerID string) (*wallet.Wallet, error) {
	m := new(walletModel)
	err := s.sdb.NewSelect(m).
		Where("owner_id = ?", ownerID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, treasury.ErrWalletNotFound
		}
		return nil, err
	}
	return fromWalletModel(m)
}

// ==================== Campaign Store ====================

func (s *Store) CreateCampaign(ctx context.Context, c *campaign.Campaign) error {
	_, err := s.sdb.NewInsert(toCampaignModel(c)).Exec(ctx)
	if isUniqueViolation(err) {
		return treasury.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetCampaign(ctx context.Context, campaignID id.CampaignID) (*campaign.Campaign, error) {
	m := new(campaignModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", campaignID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, treasury.ErrCampaignNotFound
		}
		return nil, err
	}
	return fromCampaignModel(m)
}

func (s *Store) ListCampaigns(ctx context.Context, opts campaign.ListOpts) ([]*campaign.Campaign, error) {
	var models []campaignModel
	q := s.sdb.NewSelect(&models)

	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if !opts.WalletID.IsNil() {
		q = q.Where("wallet_id = ?", opts.WalletID.String())
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*campaign.Campaign, len(models))
	for i := range models {
		c, err := fromCampaignModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = c
	}
	return result, nil
}

func (s *Store) UpdatePacingMetrics(ctx context.Context, campaignID id.CampaignID, m campaign.PacingMetrics) error {
	res, err := s.sdb.NewUpdate((*campaignModel)(nil)).
		Set("delivery_progress_percent = ?", m.DeliveryProgressPercent).
		Set("is_over_delivering = ?", m.IsOverDelivering).
		Set("is_under_delivering = ?", m.IsUnderDelivering).
		Set("last_pacing_check_at = ?", formatTimePtr(m.LastPacingCheckAt)).
		Where("id = ?", campaignID.String()).
		Exec(ctx)
	return expectRow(res, err, treasury.ErrCampaignNotFound)
}

// ==================== Budget Lock Store ====================

func (s *Store) GetLock(ctx context.Context, campaignID id.CampaignID) (*budget.Lock, error) {
	m := new(lockModel)
	err := s.sdb.NewSelect(m).
		Where("campaign_id = ?", campaignID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, treasury.ErrNoBudgetLock
		}
		return nil, err
	}
	return fromLockModel(m)
}

// ==================== Journal Store ====================

func (s *Store) GetEntry(ctx context.Context, entryID id.JournalID) (*journal.Entry, error) {
	m := new(journalModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", entryID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, treasury.ErrEntryNotFound
		}
		return nil, err
	}
	return fromJournalModel(m)
}

func (s *Store) ListEntries(ctx context.Context, opts journal.ListOpts) ([]*journal.Entry, error) {
	var models []journalModel
	q := s.sdb.NewSelect(&models)

	if !opts.CampaignID.IsNil() {
		q = q.Where("campaign_id = ?", opts.CampaignID.String())
	}
	if !opts.CreatorID.IsNil() {
		q = q.Where("creator_id = ?", opts.CreatorID.String())
	}
	if len(opts.Types) > 0 {
		q = q.Where("type IN ("+placeholders(len(opts.Types))+")", typeArgs(opts.Types)...)
	}
	if opts.RefEventID != "" {
		q = q.Where("ref_event_id = ?", opts.RefEventID)
	}
	if !opts.From.IsZero() {
		q = q.Where("created_at >= ?", formatTime(opts.From))
	}
	if !opts.To.IsZero() {
		q = q.Where("created_at < ?", formatTime(opts.To))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*journal.Entry, len(models))
	for i := range models {
		e, err := fromJournalModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

func (s *Store) SumByCampaign(ctx context.Context, campaignID id.CampaignID, types ...journal.Type) (int64, error) {
	query, args := sumQuery("campaign_id", campaignID.String(), types)
	var total int64
	if err := s.sdb.NewRaw(query, args...).Scan(ctx, &total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) SumByCreator(ctx context.Context, creatorID id.CreatorID, types ...journal.Type) (int64, error) {
	query, args := sumQuery("creator_id", creatorID.String(), types)
	var total int64
	if err := s.sdb.NewRaw(query, args...).Scan(ctx, &total); err != nil {
		return 0, err
	}
	return total, nil
}

// ==================== Payout Store ====================

func (s *Store) GetPayout(ctx context.Context, entryID id.PayoutID) (*payout.Entry, error) {
	m := new(payoutModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", entryID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, treasury.ErrPayoutNotFound
		}
		return nil, err
	}
	return fromPayoutModel(m)
}

func (s *Store) ListPayouts(ctx context.Context, opts payout.ListOpts) ([]*payout.Entry, error) {
	var models []payoutModel
	q := s.sdb.NewSelect(&models)

	if !opts.CreatorID.IsNil() {
		q = q.Where("creator_id = ?", opts.CreatorID.String())
	}
	if !opts.CampaignID.IsNil() {
		q = q.Where("campaign_id = ?", opts.CampaignID.String())
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return fromPayoutModels(models)
}

func (s *Store) ListEligiblePayouts(ctx context.Context, now time.Time, after payout.Cursor, limit int) ([]*payout.Entry, error) {
	var models []payoutModel
	q := s.sdb.NewSelect(&models).
		Where("status = ?", string(payout.StatusPending)).
		Where("eligible_at <= ?", formatTime(now))
	if !after.IsZero() {
		q = q.Where("(eligible_at, id) > (?, ?)", formatTime(after.EligibleAt), after.ID.String())
	}
	q = q.OrderExpr("eligible_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return fromPayoutModels(models)
}

func (s *Store) GetCreatorBalance(ctx context.Context, creatorID id.CreatorID) (*payout.Balance, error) {
	m := new(balanceModel)
	err := s.sdb.NewSelect(m).
		Where("creator_id = ?", creatorID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, treasury.ErrCreatorNotFound
		}
		return nil, err
	}
	return fromBalanceModel(m)
}

func (s *Store) UpsertCreatorProfile(ctx context.Context, p payout.Profile) error {
	t := formatTime(now())
	m := &balanceModel{
		CreatorID:       p.CreatorID.String(),
		RiskLevel:       riskText(p.RiskLevel),
		TrustScore:      p.TrustScore,
		PayoutDelayDays: p.PayoutDelayDays,
		CreatedAt:       t,
		UpdatedAt:       t,
	}
	_, err := s.sdb.NewInsert(m).
		OnConflict("(creator_id) DO UPDATE").
		Set("risk_level = EXCLUDED.risk_level").
		Set("trust_score = EXCLUDED.trust_score").
		Set("payout_delay_days = EXCLUDED.payout_delay_days").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

func fromPayoutModels(models []payoutModel) ([]*payout.Entry, error) {
	result := make([]*payout.Entry, len(models))
	for i := range models {
		p, err := fromPayoutModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func sumQuery(column, value string, types []journal.Type) (string, []any) {
	query := `SELECT COALESCE(SUM(amount_cents), 0) FROM treasury_journal WHERE ` + column + ` = ?`
	args := []any{value}
	if len(types) > 0 {
		query += ` AND type IN (` + placeholders(len(types)) + `)`
		args = append(args, typeArgs(types)...)
	}
	return query, args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func typeArgs(types []journal.Type) []any {
	args := make([]any, len(types))
	for i, t := range types {
		args[i] = string(t)
	}
	return args
}

type rowsAffected interface {
	RowsAffected() (int64, error)
}

// expectRow turns a zero-row update into notFound.
func expectRow(res rowsAffected, err error, notFound error) error {
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isUniqueViolation matches SQLite's constraint message; the driver does
// not export a typed error for it.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
