package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/treasury"
	"github.com/xraph/treasury/budget"
	"github.com/xraph/treasury/campaign"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/journal"
	"github.com/xraph/treasury/payout"
	"github.com/xraph/treasury/store"
	"github.com/xraph/treasury/wallet"
)

// Collection names for all treasury MongoDB collections.
const (
	colWallets         = "treasury_wallets"
	colCampaigns       = "treasury_campaigns"
	colBudgetLocks     = "treasury_budget_locks"
	colJournal         = "treasury_journal"
	colPayouts         = "treasury_payouts"
	colCreatorBalances = "treasury_creator_balances"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
//
// Atomic requires a replica set or sharded cluster; standalone servers
// reject multi-document transactions.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all treasury collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("treasury/mongo: migrate %s indexes: %w", col, err)
		}
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
	_, err := s.mdb.NewInsert(toWalletModel(w)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return treasury.ErrAlreadyExists
		}
		return fmt.Errorf("treasury/mongo: create wallet: %w", err)
	}
	return nil
}

func (s *Store) GetWallet(ctx context.Context, walletID id.WalletID) (*wallet.Wallet, error) {
	return s.findWallet(ctx, bson.M{"_id": walletID.String()})
}

func (s *Store) GetWalletByOwner(ctx context.Context, ownerID string) (*wallet.Wallet, error) {
	return s.findWallet(ctx, bson.M{"owner_id": ownerID})
}

func (s *Store) findWallet(ctx context.Context, filter bson.M) (*wallet.Wallet, error) {
	var m walletModel
	err := s.mdb.NewFind(&m).Filter(filter).Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, treasury.ErrWalletNotFound
		}
		return nil, fmt.Errorf("treasury/mongo: get wallet: %w", err)
	}
	return fromWalletModel(&m)
}

// ==================== Campaign Store ====================

func (s *Store) CreateCampaign(ctx context.Context, c *campaign.Campaign) error {
	_, err := s.mdb.NewInsert(toCampaignModel(c)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return treasury.ErrAlreadyExists
		}
		return fmt.Errorf("treasury/mongo: create campaign: %w", err)
	}
	return nil
}

func (s *Store) GetCampaign(ctx context.Context, campaignID id.CampaignID) (*campaign.Campaign, error) {
	var m campaignModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": campaignID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, treasury.ErrCampaignNotFound
		}
		return nil, fmt.Errorf("treasury/mongo: get campaign: %w", err)
	}
	return fromCampaignModel(&m)
}

func (s *Store) ListCampaigns(ctx context.Context, opts campaign.ListOpts) ([]*campaign.Campaign, error) {
	var models []campaignModel

	filter := bson.M{}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	if !opts.WalletID.IsNil() {
		filter["wallet_id"] = opts.WalletID.String()
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("treasury/mongo: list campaigns: %w", err)
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
	res, err := s.mdb.NewUpdate((*campaignModel)(nil)).
		Filter(bson.M{"_id": campaignID.String()}).
		Set("pacing", toPacingModel(m)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("treasury/mongo: update pacing metrics: %w", err)
	}
	if res.MatchedCount() == 0 {
		return treasury.ErrCampaignNotFound
	}
	return nil
}

// ==================== Budget Lock Store ====================

func (s *Store) GetLock(ctx context.Context, campaignID id.CampaignID) (*budget.Lock, error) {
	var m lockModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"campaign_id": campaignID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, treasury.ErrNoBudgetLock
		}
		return nil, fmt.Errorf("treasury/mongo: get lock: %w", err)
	}
	return fromLockModel(&m)
}

// ==================== Journal Store ====================

func (s *Store) GetEntry(ctx context.Context, entryID id.JournalID) (*journal.Entry, error) {
	return s.findEntry(ctx, bson.M{"_id": entryID.String()})
}

func (s *Store) findEntry(ctx context.Context, filter bson.M) (*journal.Entry, error) {
	var m journalModel
	err := s.mdb.NewFind(&m).Filter(filter).Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, treasury.ErrEntryNotFound
		}
		return nil, fmt.Errorf("treasury/mongo: get entry: %w", err)
	}
	return fromJournalModel(&m)
}

func (s *Store) ListEntries(ctx context.Context, opts journal.ListOpts) ([]*journal.Entry, error) {
	var models []journalModel

	filter := bson.M{}
	if !opts.CampaignID.IsNil() {
		filter["campaign_id"] = opts.CampaignID.String()
	}
	if !opts.CreatorID.IsNil() {
		filter["creator_id"] = opts.CreatorID.String()
	}
	if len(opts.Types) > 0 {
		filter["type"] = bson.M{"$in": journal.TypeStrings(opts.Types)}
	}
	if opts.RefEventID != "" {
		filter["ref_event_id"] = opts.RefEventID
	}
	if !opts.From.IsZero() || !opts.To.IsZero() {
		window := bson.M{}
		if !opts.From.IsZero() {
			window["$gte"] = opts.From
		}
		if !opts.To.IsZero() {
			window["$lt"] = opts.To
		}
		filter["created_at"] = window
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("treasury/mongo: list entries: %w", err)
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

func (s *Store) sumJournal(ctx context.Context, field, value string, types []journal.Type) (int64, error) {
	match := bson.M{field: value}
	if len(types) > 0 {
		match["type"] = bson.M{"$in": journal.TypeStrings(types)}
	}

	pipeline := bson.A{
		bson.M{"$match": match},
		bson.M{
			"$group": bson.M{
				"_id":   nil,
				"total": bson.M{"$sum": "$amount_cents"},
			},
		},
	}

	cursor, err := s.mdb.Collection(colJournal).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("treasury/mongo: sum journal: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, fmt.Errorf("treasury/mongo: sum journal decode: %w", err)
	}

	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}

// ==================== Payout Store ====================

func (s *Store) GetPayout(ctx context.Context, entryID id.PayoutID) (*payout.Entry, error) {
	var m payoutModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": entryID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, treasury.ErrPayoutNotFound
		}
		return nil, fmt.Errorf("treasury/mongo: get payout: %w", err)
	}
	return fromPayoutModel(&m)
}

func (s *Store) ListPayouts(ctx context.Context, opts payout.ListOpts) ([]*payout.Entry, error) {
	var models []payoutModel

	filter := bson.M{}
	if !opts.CreatorID.IsNil() {
		filter["creator_id"] = opts.CreatorID.String()
	}
	if !opts.CampaignID.IsNil() {
		filter["campaign_id"] = opts.CampaignID.String()
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("treasury/mongo: list payouts: %w", err)
	}
	return fromPayoutModels(models)
}

func (s *Store) ListEligiblePayouts(ctx context.Context, now time.Time, after payout.Cursor, limit int) ([]*payout.Entry, error) {
	var models []payoutModel

	filter := bson.M{
		"status":      string(payout.StatusPending),
		"eligible_at": bson.M{"$lte": now},
	}
	if !after.IsZero() {
		filter["$or"] = bson.A{
			bson.M{"eligible_at": bson.M{"$gt": after.EligibleAt}},
			bson.M{"eligible_at": after.EligibleAt, "_id": bson.M{"$gt": after.ID.String()}},
		}
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "eligible_at", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		q = q.Limit(int64(limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("treasury/mongo: list eligible payouts: %w", err)
	}
	return fromPayoutModels(models)
}

func (s *Store) GetCreatorBalance(ctx context.Context, creatorID id.CreatorID) (*payout.Balance, error) {
	var m balanceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": creatorID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, treasury.ErrCreatorNotFound
		}
		return nil, fmt.Errorf("treasury/mongo: get creator balance: %w", err)
	}
	return fromBalanceModel(&m)
}

func (s *Store) UpsertCreatorProfile(ctx context.Context, p payout.Profile) error {
	t := now()
	_, err := s.mdb.NewUpdate((*balanceModel)(nil)).
		Filter(bson.M{"_id": p.CreatorID.String()}).
		SetUpdate(bson.M{
			"$set": bson.M{
				"risk_level":        riskText(p.RiskLevel),
				"trust_score":       p.TrustScore,
				"payout_delay_days": p.PayoutDelayDays,
				"updated_at":        t,
			},
			"$setOnInsert": bson.M{
				"available_cents":    int64(0),
				"pending_cents":      int64(0),
				"total_earned_cents": int64(0),
				"reserved_cents":     int64(0),
				"created_at":         t,
			},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("treasury/mongo: upsert creator profile: %w", err)
	}
	return nil
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

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// nonEmpty limits a partial index to documents whose field holds a
// non-empty string.
func nonEmpty(field string) bson.M {
	return bson.M{field: bson.M{"$gt": ""}}
}

// migrationIndexes returns the index definitions for all treasury collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colWallets: {
			{
				Keys:    bson.D{{Key: "owner_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colCampaigns: {
			{Keys: bson.D{{Key: "wallet_id", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		colBudgetLocks: {
			{
				Keys:    bson.D{{Key: "campaign_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colJournal: {
			{Keys: bson.D{{Key: "campaign_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "creator_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{
				Keys: bson.D{{Key: "campaign_id", Value: 1}, {Key: "type", Value: 1}, {Key: "ref_event_id", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(nonEmpty("ref_event_id")),
			},
			{
				Keys: bson.D{{Key: "reverses_id", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(nonEmpty("reverses_id")),
			},
		},
		colPayouts: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "eligible_at", Value: 1}}},
			{Keys: bson.D{{Key: "creator_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "campaign_id", Value: 1}}},
		},
		colCreatorBalances: {
			{Keys: bson.D{{Key: "risk_level", Value: 1}}},
		},
	}
}
