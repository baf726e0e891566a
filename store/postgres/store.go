package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate" // registers the pg migration executor
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

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("treasury/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("treasury/postgres: migration failed: %w", err)
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
	_, err := s.pg.NewInsert(toWalletModel(w)).Exec(ctx)
	if isUniqueViolation(err) {
		return treasury.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetWallet(ctx context.Context, walletID id.WalletID) (*wallet.Wallet, error) {
	m := new(walletModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", walletID.String()).
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
	err := s.pg.NewSelect(m).
		Where("owner_id = $1", ownerID).
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
	_, err := s.pg.NewInsert(toCampaignModel(c)).Exec(ctx)
	if isUniqueViolation(err) {
		return treasury.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetCampaign(ctx context.Context, campaignID id.CampaignID) (*campaign.Campaign, error) {
	m := new(campaignModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", campaignID.String()).
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
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
	}
	if !opts.WalletID.IsNil() {
		argIdx++
		q = q.Where(fmt.Sprintf("wallet_id = $%d", argIdx), opts.WalletID.String())
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
	res, err := s.pg.NewUpdate((*campaignModel)(nil)).
		Set("delivery_progress_percent = $1", m.DeliveryProgressPercent).
		Set("is_over_delivering = $2", m.IsOverDelivering).
		Set("is_under_delivering = $3", m.IsUnderDelivering).
		Set("last_pacing_check_at = $4", m.LastPacingCheckAt).
		Where("id = $5", campaignID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return treasury.ErrCampaignNotFound
	}
	return nil
}

// ==================== Budget Lock Store ====================

func (s *Store) GetLock(ctx context.Context, campaignID id.CampaignID) (*budget.Lock, error) {
	m := new(lockModel)
	err := s.pg.NewSelect(m).
		Where("campaign_id = $1", campaignID.String()).
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
	err := s.pg.NewSelect(m).
		Where("id = $1", entryID.String()).
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
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if !opts.CampaignID.IsNil() {
		argIdx++
		q = q.Where(fmt.Sprintf("campaign_id = $%d", argIdx), opts.CampaignID.String())
	}
	if !opts.CreatorID.IsNil() {
		argIdx++
		q = q.Where(fmt.Sprintf("creator_id = $%d", argIdx), opts.CreatorID.String())
	}
	if len(opts.Types) > 0 {
		argIdx++
		q = q.Where(fmt.Sprintf("type = ANY($%d)", argIdx), journal.TypeStrings(opts.Types))
	}
	if opts.RefEventID != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("ref_event_id = $%d", argIdx), opts.RefEventID)
	}
	if !opts.From.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("created_at >= $%d", argIdx), opts.From)
	}
	if !opts.To.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("created_at < $%d", argIdx), opts.To)
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
	return s.sumJournal(ctx, "campaign_id", campaignID.String(), types)
}

func (s *Store) SumByCreator(ctx context.Context, creatorID id.CreatorID, types ...journal.Type) (int64, error) {
	return s.sumJournal(ctx, "creator_id", creatorID.String(), types)
}

func (s *Store) sumJournal(ctx context.Context, column, value string, types []journal.Type) (int64, error) {
	query := `SELECT COALESCE(SUM(amount_cents), 0) FROM treasury_journal WHERE ` + column + ` = $1`
	args := []any{value}
	if len(types) > 0 {
		query += ` AND type = ANY($2)`
		args = append(args, journal.TypeStrings(types))
	}

	var total int64
	if err := s.pg.NewRaw(query, args...).Scan(ctx, &total); err != nil {
		return 0, err
	}
	return total, nil
}

// ==================== Payout Store ====================

func (s *Store) GetPayout(ctx context.Context, entryID id.PayoutID) (*payout.Entry, error) {
	m := new(payoutModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", entryID.String()).
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
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if !opts.CreatorID.IsNil() {
		argIdx++
		q = q.Where(fmt.Sprintf("creator_id = $%d", argIdx), opts.CreatorID.String())
	}
	if !opts.CampaignID.IsNil() {
		argIdx++
		q = q.Where(fmt.Sprintf("campaign_id = $%d", argIdx), opts.CampaignID.String())
	}
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
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
	q := s.pg.NewSelect(&models).
		Where("status = $1", string(payout.StatusPending)).
		Where("eligible_at <= $2", now)
	if !after.IsZero() {
		q = q.Where("(eligible_at, id) > ($3, $4)", after.EligibleAt.UTC(), after.ID.String())
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
	err := s.pg.NewSelect(m).
		Where("creator_id = $1", creatorID.String()).
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
	t := now()
	m := &balanceModel{
		CreatorID:       p.CreatorID.String(),
		RiskLevel:       riskText(p.RiskLevel),
		TrustScore:      p.TrustScore,
		PayoutDelayDays: p.PayoutDelayDays,
		CreatedAt:       t,
		UpdatedAt:       t,
	}
	_, err := s.pg.NewInsert(m).
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

// riskText stores unset levels as MEDIUM, the tier new creators start in.
func riskText(level payout.RiskLevel) string {
	if !level.Valid() {
		return payout.RiskMedium.String()
	}
	return level.String()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isUniqueViolation reports a 23505 unique_violation from PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
