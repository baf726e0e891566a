package store

import (
	"context"
	"time"

	"github.com/xraph/treasury/budget"
	"github.com/xraph/treasury/campaign"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/journal"
	"github.com/xraph/treasury/payout"
	"github.com/xraph/treasury/wallet"
)

// Store is the unified storage interface for all Treasury entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
//
// Reads outside Atomic see committed state only. Every balance mutation
// goes through Atomic.
type Store interface {
	// Wallet methods
	CreateWallet(ctx context.Context, w *wallet.Wallet) error
	GetWallet(ctx context.Context, walletID id.WalletID) (*wallet.Wallet, error)
	GetWalletByOwner(ctx context.Context, ownerID string) (*wallet.Wallet, error)

	// Campaign methods
	CreateCampaign(ctx context.Context, c *campaign.Campaign) error
	GetCampaign(ctx context.Context, campaignID id.CampaignID) (*campaign.Campaign, error)
	ListCampaigns(ctx context.Context, opts campaign.ListOpts) ([]*campaign.Campaign, error)
	UpdatePacingMetrics(ctx context.Context, campaignID id.CampaignID, m campaign.PacingMetrics) error

	// Budget lock methods
	GetLock(ctx context.Context, campaignID id.CampaignID) (*budget.Lock, error)

	// Journal methods
	GetEntry(ctx context.Context, entryID id.JournalID) (*journal.Entry, error)
	ListEntries(ctx context.Context, opts journal.ListOpts) ([]*journal.Entry, error)
	SumByCampaign(ctx context.Context, campaignID id.CampaignID, types ...journal.Type) (int64, error)
	SumByCreator(ctx context.Context, creatorID id.CreatorID, types ...journal.Type) (int64, error)

	// Payout methods
	GetPayout(ctx context.Context, entryID id.PayoutID) (*payout.Entry, error)
	ListPayouts(ctx context.Context, opts payout.ListOpts) ([]*payout.Entry, error)
	ListEligiblePayouts(ctx context.Context, now time.Time, after payout.Cursor, limit int) ([]*payout.Entry, error)
	GetCreatorBalance(ctx context.Context, creatorID id.CreatorID) (*payout.Balance, error)
	UpsertCreatorProfile(ctx context.Context, p payout.Profile) error

	// Atomic runs fn in a single transaction. fn's changes commit when it
	// returns nil and roll back otherwise. fn must not call Atomic again.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Tx is the transactional unit handed to Atomic callbacks. The ForUpdate
// reads take row locks where the backend supports them; the writes only
// touch the columns each method names, so they never clobber concurrent
// non-transactional updates such as pacing metrics or risk profiles.
type Tx interface {
	// GetWalletForUpdate returns treasury.ErrWalletNotFound when absent.
	GetWalletForUpdate(ctx context.Context, walletID id.WalletID) (*wallet.Wallet, error)
	// UpdateWalletBalances writes available and pending cents.
	UpdateWalletBalances(ctx context.Context, w *wallet.Wallet) error

	// GetCampaignForUpdate returns treasury.ErrCampaignNotFound when absent.
	GetCampaignForUpdate(ctx context.Context, campaignID id.CampaignID) (*campaign.Campaign, error)
	// UpdateCampaignState writes spent budget, status and the auto-pause fields.
	UpdateCampaignState(ctx context.Context, c *campaign.Campaign) error

	// GetLockForUpdate returns treasury.ErrNoBudgetLock when absent.
	GetLockForUpdate(ctx context.Context, campaignID id.CampaignID) (*budget.Lock, error)
	// SaveLock inserts or updates the campaign's lock row.
	SaveLock(ctx context.Context, l *budget.Lock) error

	// AppendEntry returns treasury.ErrDuplicateEntry when the reference
	// event was already journaled for the campaign and type.
	AppendEntry(ctx context.Context, e *journal.Entry) error
	GetEntry(ctx context.Context, entryID id.JournalID) (*journal.Entry, error)
	// FindReversal returns the reversal of entryID, or treasury.ErrEntryNotFound.
	FindReversal(ctx context.Context, entryID id.JournalID) (*journal.Entry, error)
	// FindEntryByRef returns treasury.ErrEntryNotFound when no entry matches.
	FindEntryByRef(ctx context.Context, campaignID id.CampaignID, t journal.Type, refEventID string) (*journal.Entry, error)
	// NetByCampaign is the signed sum of every entry for the campaign.
	NetByCampaign(ctx context.Context, campaignID id.CampaignID) (int64, error)

	InsertPayout(ctx context.Context, p *payout.Entry) error
	// GetPayoutForUpdate returns treasury.ErrPayoutNotFound when absent.
	GetPayoutForUpdate(ctx context.Context, entryID id.PayoutID) (*payout.Entry, error)
	// UpdatePayout writes status, the lifecycle timestamps and the reason.
	UpdatePayout(ctx context.Context, p *payout.Entry) error

	// GetCreatorBalanceForUpdate returns treasury.ErrCreatorNotFound when absent.
	GetCreatorBalanceForUpdate(ctx context.Context, creatorID id.CreatorID) (*payout.Balance, error)
	// SaveCreatorBalance inserts the balance or updates its cent fields.
	SaveCreatorBalance(ctx context.Context, b *payout.Balance) error
}
