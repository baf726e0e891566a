// Package memory is an in-process Store used by tests and single-node
// embeddings. A store-wide mutex serializes transactions, and an undo log
// restores prior state when a transaction fails.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/treasury"
	"github.com/xraph/treasury/budget"
	"github.com/xraph/treasury/campaign"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/journal"
	"github.com/xraph/treasury/payout"
	"github.com/xraph/treasury/store"
	"github.com/xraph/treasury/wallet"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	wallets   map[string]*wallet.Wallet
	campaigns map[string]*campaign.Campaign
	locks     map[string]*budget.Lock // keyed by campaign ID
	entries   []*journal.Entry
	entryIdx  map[string]int
	payouts   map[string]*payout.Entry
	balances  map[string]*payout.Balance
}

func New() *Store {
	return &Store{
		wallets:   make(map[string]*wallet.Wallet),
		campaigns: make(map[string]*campaign.Campaign),
		locks:     make(map[string]*budget.Lock),
		entries:   make([]*journal.Entry, 0),
		entryIdx:  make(map[string]int),
		payouts:   make(map[string]*payout.Entry),
		balances:  make(map[string]*payout.Balance),
	}
}

// ──────────────────────────────────────────────────
// Wallets
// ──────────────────────────────────────────────────

func (s *Store) CreateWallet(_ context.Context, w *wallet.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.wallets[w.ID.String()]; exists {
		return treasury.ErrAlreadyExists
	}
	for _, existing := range s.wallets {
		if existing.OwnerID == w.OwnerID {
			return treasury.ErrAlreadyExists
		}
	}
	s.wallets[w.ID.String()] = cloneWallet(w)
	return nil
}

func (s *Store) GetWallet(_ context.Context, walletID id.WalletID) (*wallet.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if w, ok := s.wallets[walletID.String()]; ok {
		return cloneWallet(w), nil
	}
	return nil, treasury.ErrWalletNotFound
}

func (s *Store) GetWalletByOwner(_ context.Context, ownerID string) (*wallet.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, w := range s.wallets {
		if w.OwnerID == ownerID {
			return cloneWallet(w), nil
		}
	}
	return nil, treasury.ErrWalletNotFound
}

// ──────────────────────────────────────────────────
// Campaigns
// ──────────────────────────────────────────────────

func (s *Store) CreateCampaign(_ context.Context, c *campaign.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.campaigns[c.ID.String()]; exists {
		return treasury.ErrAlreadyExists
	}
	s.campaigns[c.ID.String()] = cloneCampaign(c)
	return nil
}

func (s *Store) GetCampaign(_ context.Context, campaignID id.CampaignID) (*campaign.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.campaigns[campaignID.String()]; ok {
		return cloneCampaign(c), nil
	}
	return nil, treasury.ErrCampaignNotFound
}

func (s *Store) ListCampaigns(_ context.Context, opts campaign.ListOpts) ([]*campaign.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*campaign.Campaign, 0)
	for _, c := range s.campaigns {
		if opts.Status != "" && c.Status != opts.Status {
			continue
		}
		if !opts.WalletID.IsNil() && c.WalletID.String() != opts.WalletID.String() {
			continue
		}
		result = append(result, cloneCampaign(c))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.String() < result[j].ID.String()
	})
	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdatePacingMetrics(_ context.Context, campaignID id.CampaignID, m campaign.PacingMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[campaignID.String()]
	if !ok {
		return treasury.ErrCampaignNotFound
	}
	c.Pacing = m
	return nil
}

// ──────────────────────────────────────────────────
// Budget locks
// ──────────────────────────────────────────────────

func (s *Store) GetLock(_ context.Context, campaignID id.CampaignID) (*budget.Lock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if l, ok := s.locks[campaignID.String()]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, treasury.ErrNoBudgetLock
}

// ──────────────────────────────────────────────────
// Journal
// ──────────────────────────────────────────────────

func (s *Store) GetEntry(_ context.Context, entryID id.JournalID) (*journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getEntry(entryID)
}

func (s *Store) ListEntries(_ context.Context, opts journal.ListOpts) ([]*journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*journal.Entry, 0)
	for _, e := range s.entries {
		if opts.Matches(e) {
			cp := *e
			result = append(result, &cp)
		}
	}
	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) SumByCampaign(_ context.Context, campaignID id.CampaignID, types ...journal.Type) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sum(journal.ListOpts{CampaignID: campaignID, Types: types}), nil
}

func (s *Store) SumByCreator(_ context.Context, creatorID id.CreatorID, types ...journal.Type) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sum(journal.ListOpts{CreatorID: creatorID, Types: types}), nil
}

func (s *Store) getEntry(entryID id.JournalID) (*journal.Entry, error) {
	if i, ok := s.entryIdx[entryID.String()]; ok {
		cp := *s.entries[i]
		return &cp, nil
	}
	return nil, treasury.ErrEntryNotFound
}

func (s *Store) sum(opts journal.ListOpts) int64 {
	var total int64
	for _, e := range s.entries {
		if opts.Matches(e) {
			total += e.AmountCents
		}
	}
	return total
}

// ──────────────────────────────────────────────────
// Payouts
// ──────────────────────────────────────────────────

func (s *Store) GetPayout(_ context.Context, entryID id.PayoutID) (*payout.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.payouts[entryID.String()]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, treasury.ErrPayoutNotFound
}

func (s *Store) ListPayouts(_ context.Context, opts payout.ListOpts) ([]*payout.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*payout.Entry, 0)
	for _, p := range s.payouts {
		if opts.Matches(p) {
			cp := *p
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.String() < result[j].ID.String()
	})
	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) ListEligiblePayouts(_ context.Context, now time.Time, after payout.Cursor, limit int) ([]*payout.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*payout.Entry, 0)
	for _, p := range s.payouts {
		if p.Status == payout.StatusPending && !p.EligibleAt.After(now) && after.Precedes(p) {
			cp := *p
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].EligibleAt.Equal(result[j].EligibleAt) {
			return result[i].ID.String() < result[j].ID.String()
		}
		return result[i].EligibleAt.Before(result[j].EligibleAt)
	})
	return paginate(result, 0, limit), nil
}

func (s *Store) GetCreatorBalance(_ context.Context, creatorID id.CreatorID) (*payout.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b, ok := s.balances[creatorID.String()]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, treasury.ErrCreatorNotFound
}

func (s *Store) UpsertCreatorProfile(_ context.Context, p payout.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	b, ok := s.balances[p.CreatorID.String()]
	if !ok {
		b = &payout.Balance{CreatorID: p.CreatorID}
		b.CreatedAt = now
		s.balances[p.CreatorID.String()] = b
	}
	b.RiskLevel = p.RiskLevel
	b.TrustScore = p.TrustScore
	b.PayoutDelayDays = p.PayoutDelayDays
	b.UpdatedAt = now
	return nil
}

// Store management
func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}

// Helper functions
func paginate[T any](items []T, offset, limit int) []T {
	start := min(offset, len(items))
	end := len(items)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return items[start:end]
}

func cloneWallet(w *wallet.Wallet) *wallet.Wallet {
	cp := *w
	return &cp
}

func cloneCampaign(c *campaign.Campaign) *campaign.Campaign {
	cp := *c
	return &cp
}
