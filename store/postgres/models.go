package postgres

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/treasury/budget"
	"github.com/xraph/treasury/campaign"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/journal"
	"github.com/xraph/treasury/payout"
	"github.com/xraph/treasury/types"
	"github.com/xraph/treasury/wallet"
)

// ==================== Wallet models ====================

type walletModel struct {
	grove.BaseModel `grove:"table:treasury_wallets"`

	ID             string            `grove:"id,pk"`
	OwnerID        string            `grove:"owner_id"`
	Currency       string            `grove:"currency"`
	AvailableCents int64             `grove:"available_cents"`
	PendingCents   int64             `grove:"pending_cents"`
	Metadata       map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt      time.Time         `grove:"created_at"`
	UpdatedAt      time.Time         `grove:"updated_at"`
}

const walletColumns = `id, owner_id, currency, available_cents, pending_cents, metadata, created_at, updated_at`

func (m *walletModel) fields() []any {
	return []any{&m.ID, &m.OwnerID, &m.Currency, &m.AvailableCents, &m.PendingCents, &m.Metadata, &m.CreatedAt, &m.UpdatedAt}
}

func toWalletModel(w *wallet.Wallet) *walletModel {
	return &walletModel{
		ID:             w.ID.String(),
		OwnerID:        w.OwnerID,
		Currency:       w.Currency,
		AvailableCents: w.AvailableCents,
		PendingCents:   w.PendingCents,
		Metadata:       metadata(w.Metadata),
		CreatedAt:      w.CreatedAt,
		UpdatedAt:      w.UpdatedAt,
	}
}

func fromWalletModel(m *walletModel) (*wallet.Wallet, error) {
	walletID, err := id.ParseWalletID(m.ID)
	if err != nil {
		return nil, err
	}
	return &wallet.Wallet{
		Entity:         types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:             walletID,
		OwnerID:        m.OwnerID,
		Currency:       m.Currency,
		AvailableCents: m.AvailableCents,
		PendingCents:   m.PendingCents,
		Metadata:       m.Metadata,
	}, nil
}

// ==================== Campaign models ====================

type campaignModel struct {
	grove.BaseModel `grove:"table:treasury_campaigns"`

	ID                      string            `grove:"id,pk"`
	WalletID                string            `grove:"wallet_id"`
	AdvertiserID            string            `grove:"advertiser_id"`
	Name                    string            `grove:"name"`
	Status                  string            `grove:"status"`
	TotalBudgetCents        int64             `grove:"total_budget_cents"`
	SpentBudgetCents        int64             `grove:"spent_budget_cents"`
	CPMCents                int64             `grove:"cpm_cents"`
	StartDate               *time.Time        `grove:"start_date"`
	EndDate                 *time.Time        `grove:"end_date"`
	PacingEnabled           bool              `grove:"pacing_enabled"`
	PacingMode              string            `grove:"pacing_mode"`
	DeliveryProgressPercent float64           `grove:"delivery_progress_percent"`
	IsOverDelivering        bool              `grove:"is_over_delivering"`
	IsUnderDelivering       bool              `grove:"is_under_delivering"`
	LastPacingCheckAt       *time.Time        `grove:"last_pacing_check_at"`
	AutoPausedAt            *time.Time        `grove:"auto_paused_at"`
	PauseReason             string            `grove:"pause_reason"`
	Metadata                map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt               time.Time         `grove:"created_at"`
	UpdatedAt               time.Time         `grove:"updated_at"`
}

const campaignColumns = `id, wallet_id, advertiser_id, name, status, total_budget_cents, spent_budget_cents,
	cpm_cents, start_date, end_date, pacing_enabled, pacing_mode, delivery_progress_percent,
	is_over_delivering, is_under_delivering, last_pacing_check_at, auto_paused_at, pause_reason,
	metadata, created_at, updated_at`

func (m *campaignModel) fields() []any {
	return []any{
		&m.ID, &m.WalletID, &m.AdvertiserID, &m.Name, &m.Status, &m.TotalBudgetCents, &m.SpentBudgetCents,
		&m.CPMCents, &m.StartDate, &m.EndDate, &m.PacingEnabled, &m.PacingMode, &m.DeliveryProgressPercent,
		&m.IsOverDelivering, &m.IsUnderDelivering, &m.LastPacingCheckAt, &m.AutoPausedAt, &m.PauseReason,
		&m.Metadata, &m.CreatedAt, &m.UpdatedAt,
	}
}

func toCampaignModel(c *campaign.Campaign) *campaignModel {
	return &campaignModel{
		ID:                      c.ID.String(),
		WalletID:                c.WalletID.String(),
		AdvertiserID:            c.AdvertiserID,
		Name:                    c.Name,
		Status:                  string(c.Status),
		TotalBudgetCents:        c.TotalBudgetCents,
		SpentBudgetCents:        c.SpentBudgetCents,
		CPMCents:                c.CPMCents,
		StartDate:               c.StartDate,
		EndDate:                 c.EndDate,
		PacingEnabled:           c.PacingEnabled,
		PacingMode:              string(c.Mode()),
		DeliveryProgressPercent: c.Pacing.DeliveryProgressPercent,
		IsOverDelivering:        c.Pacing.IsOverDelivering,
		IsUnderDelivering:       c.Pacing.IsUnderDelivering,
		LastPacingCheckAt:       c.Pacing.LastPacingCheckAt,
		AutoPausedAt:            c.AutoPausedAt,
		PauseReason:             c.PauseReason,
		Metadata:                metadata(c.Metadata),
		CreatedAt:               c.CreatedAt,
		UpdatedAt:               c.UpdatedAt,
	}
}

func fromCampaignModel(m *campaignModel) (*campaign.Campaign, error) {
	campaignID, err := id.ParseCampaignID(m.ID)
	if err != nil {
		return nil, err
	}
	walletID, err := id.ParseWalletID(m.WalletID)
	if err != nil {
		return nil, err
	}
	return &campaign.Campaign{
		Entity:           types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:               campaignID,
		WalletID:         walletID,
		AdvertiserID:     m.AdvertiserID,
		Name:             m.Name,
		Status:           campaign.Status(m.Status),
		TotalBudgetCents: m.TotalBudgetCents,
		SpentBudgetCents: m.SpentBudgetCents,
		CPMCents:         m.CPMCents,
		StartDate:        m.StartDate,
		EndDate:          m.EndDate,
		PacingEnabled:    m.PacingEnabled,
		PacingMode:       campaign.PacingMode(m.PacingMode),
		Pacing: campaign.PacingMetrics{
			DeliveryProgressPercent: m.DeliveryProgressPercent,
			IsOverDelivering:        m.IsOverDelivering,
			IsUnderDelivering:       m.IsUnderDelivering,
			LastPacingCheckAt:       m.LastPacingCheckAt,
		},
		AutoPausedAt: m.AutoPausedAt,
		PauseReason:  m.PauseReason,
		Metadata:     m.Metadata,
	}, nil
}

// ==================== Budget lock models ====================

type lockModel struct {
	grove.BaseModel `grove:"table:treasury_budget_locks"`

	ID          string    `grove:"id,pk"`
	CampaignID  string    `grove:"campaign_id"`
	WalletID    string    `grove:"wallet_id"`
	LockedCents int64     `grove:"locked_cents"`
	CreatedAt   time.Time `grove:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"`
}

const lockColumns = `id, campaign_id, wallet_id, locked_cents, created_at, updated_at`

func (m *lockModel) fields() []any {
	return []any{&m.ID, &m.CampaignID, &m.WalletID, &m.LockedCents, &m.CreatedAt, &m.UpdatedAt}
}

func fromLockModel(m *lockModel) (*budget.Lock, error) {
	lockID, err := id.ParseLockID(m.ID)
	if err != nil {
		return nil, err
	}
	campaignID, err := id.ParseCampaignID(m.CampaignID)
	if err != nil {
		return nil, err
	}
	walletID, err := id.ParseWalletID(m.WalletID)
	if err != nil {
		return nil, err
	}
	return &budget.Lock{
		Entity:      types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:          lockID,
		CampaignID:  campaignID,
		WalletID:    walletID,
		LockedCents: m.LockedCents,
	}, nil
}

// ==================== Journal models ====================

type journalModel struct {
	grove.BaseModel `grove:"table:treasury_journal"`

	ID          string            `grove:"id,pk"`
	CampaignID  string            `grove:"campaign_id"`
	CreatorID   string            `grove:"creator_id"`
	Type        string            `grove:"type"`
	AmountCents int64             `grove:"amount_cents"`
	RefEventID  string            `grove:"ref_event_id"`
	ReversesID  string            `grove:"reverses_id"`
	Reason      string            `grove:"reason"`
	Metadata    map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt   time.Time         `grove:"created_at"`
}

const journalColumns = `id, campaign_id, creator_id, type, amount_cents, ref_event_id, reverses_id, reason, metadata, created_at`

func (m *journalModel) fields() []any {
	return []any{&m.ID, &m.CampaignID, &m.CreatorID, &m.Type, &m.AmountCents, &m.RefEventID, &m.ReversesID, &m.Reason, &m.Metadata, &m.CreatedAt}
}

func toJournalModel(e *journal.Entry) *journalModel {
	return &journalModel{
		ID:          e.ID.String(),
		CampaignID:  e.CampaignID.String(),
		CreatorID:   e.CreatorID.String(),
		Type:        string(e.Type),
		AmountCents: e.AmountCents,
		RefEventID:  e.RefEventID,
		ReversesID:  e.ReversesID.String(),
		Reason:      e.Reason,
		Metadata:    metadata(e.Metadata),
		CreatedAt:   e.CreatedAt,
	}
}

func fromJournalModel(m *journalModel) (*journal.Entry, error) {
	entryID, err := id.ParseJournalID(m.ID)
	if err != nil {
		return nil, err
	}
	campaignID, err := id.ParseCampaignID(m.CampaignID)
	if err != nil {
		return nil, err
	}
	creatorID, err := id.ParseOptional(m.CreatorID)
	if err != nil {
		return nil, err
	}
	reversesID, err := id.ParseOptional(m.ReversesID)
	if err != nil {
		return nil, err
	}
	return &journal.Entry{
		ID:          entryID,
		CampaignID:  campaignID,
		CreatorID:   creatorID,
		Type:        journal.Type(m.Type),
		AmountCents: m.AmountCents,
		RefEventID:  m.RefEventID,
		ReversesID:  reversesID,
		Reason:      m.Reason,
		Metadata:    m.Metadata,
		CreatedAt:   m.CreatedAt,
	}, nil
}

// ==================== Payout models ====================

type payoutModel struct {
	grove.BaseModel `grove:"table:treasury_payouts"`

	ID                 string     `grove:"id,pk"`
	CreatorID          string     `grove:"creator_id"`
	CampaignID         string     `grove:"campaign_id"`
	JournalEntryID     string     `grove:"journal_entry_id"`
	AmountCents        int64      `grove:"amount_cents"`
	Type               string     `grove:"type"`
	Status             string     `grove:"status"`
	EligibleAt         time.Time  `grove:"eligible_at"`
	RiskSnapshotScore  float64    `grove:"risk_snapshot_score"`
	RiskLevel          string     `grove:"risk_level"`
	ReservePercent     float64    `grove:"reserve_percent"`
	ReserveAmountCents int64      `grove:"reserve_amount_cents"`
	AppliedMultiplier  float64    `grove:"applied_multiplier"`
	ReleasedAt         *time.Time `grove:"released_at"`
	CancelledAt        *time.Time `grove:"cancelled_at"`
	FrozenAt           *time.Time `grove:"frozen_at"`
	StatusReason       string     `grove:"status_reason"`
	ReserveReturnedAt  *time.Time `grove:"reserve_returned_at"`
	CreatedAt          time.Time  `grove:"created_at"`
	UpdatedAt          time.Time  `grove:"updated_at"`
}

const payoutColumns = `id, creator_id, campaign_id, journal_entry_id, amount_cents, type, status, eligible_at,
	risk_snapshot_score, risk_level, reserve_percent, reserve_amount_cents, applied_multiplier,
	released_at, cancelled_at, frozen_at, status_reason, reserve_returned_at, created_at, updated_at`

func (m *payoutModel) fields() []any {
	return []any{
		&m.ID, &m.CreatorID, &m.CampaignID, &m.JournalEntryID, &m.AmountCents, &m.Type, &m.Status, &m.EligibleAt,
		&m.RiskSnapshotScore, &m.RiskLevel, &m.ReservePercent, &m.ReserveAmountCents, &m.AppliedMultiplier,
		&m.ReleasedAt, &m.CancelledAt, &m.FrozenAt, &m.StatusReason, &m.ReserveReturnedAt, &m.CreatedAt, &m.UpdatedAt,
	}
}

func toPayoutModel(p *payout.Entry) *payoutModel {
	return &payoutModel{
		ID:                 p.ID.String(),
		CreatorID:          p.CreatorID.String(),
		CampaignID:         p.CampaignID.String(),
		JournalEntryID:     p.JournalEntryID.String(),
		AmountCents:        p.AmountCents,
		Type:               string(p.Type),
		Status:             string(p.Status),
		EligibleAt:         p.EligibleAt,
		RiskSnapshotScore:  p.RiskSnapshotScore,
		RiskLevel:          riskText(p.RiskLevel),
		ReservePercent:     p.ReservePercent,
		ReserveAmountCents: p.ReserveAmountCents,
		AppliedMultiplier:  p.AppliedMultiplier,
		ReleasedAt:         p.ReleasedAt,
		CancelledAt:        p.CancelledAt,
		FrozenAt:           p.FrozenAt,
		StatusReason:       p.StatusReason,
		ReserveReturnedAt:  p.ReserveReturnedAt,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func fromPayoutModel(m *payoutModel) (*payout.Entry, error) {
	entryID, err := id.ParsePayoutID(m.ID)
	if err != nil {
		return nil, err
	}
	creatorID, err := id.ParseCreatorID(m.CreatorID)
	if err != nil {
		return nil, err
	}
	campaignID, err := id.ParseCampaignID(m.CampaignID)
	if err != nil {
		return nil, err
	}
	journalID, err := id.ParseOptional(m.JournalEntryID)
	if err != nil {
		return nil, err
	}
	level, err := payout.ParseRiskLevel(m.RiskLevel)
	if err != nil {
		return nil, err
	}
	return &payout.Entry{
		Entity:             types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:                 entryID,
		CreatorID:          creatorID,
		CampaignID:         campaignID,
		JournalEntryID:     journalID,
		AmountCents:        m.AmountCents,
		Type:               journal.Type(m.Type),
		Status:             payout.Status(m.Status),
		EligibleAt:         m.EligibleAt,
		RiskSnapshotScore:  m.RiskSnapshotScore,
		RiskLevel:          level,
		ReservePercent:     m.ReservePercent,
		ReserveAmountCents: m.ReserveAmountCents,
		AppliedMultiplier:  m.AppliedMultiplier,
		ReleasedAt:         m.ReleasedAt,
		CancelledAt:        m.CancelledAt,
		FrozenAt:           m.FrozenAt,
		StatusReason:       m.StatusReason,
		ReserveReturnedAt:  m.ReserveReturnedAt,
	}, nil
}

// ==================== Creator balance models ====================

type balanceModel struct {
	grove.BaseModel `grove:"table:treasury_creator_balances"`

	CreatorID        string    `grove:"creator_id,pk"`
	AvailableCents   int64     `grove:"available_cents"`
	PendingCents     int64     `grove:"pending_cents"`
	TotalEarnedCents int64     `grove:"total_earned_cents"`
	ReservedCents    int64     `grove:"reserved_cents"`
	RiskLevel        string    `grove:"risk_level"`
	TrustScore       float64   `grove:"trust_score"`
	PayoutDelayDays  int       `grove:"payout_delay_days"`
	CreatedAt        time.Time `grove:"created_at"`
	UpdatedAt        time.Time `grove:"updated_at"`
}

const balanceColumns = `creator_id, available_cents, pending_cents, total_earned_cents, reserved_cents,
	risk_level, trust_score, payout_delay_days, created_at, updated_at`

func (m *balanceModel) fields() []any {
	return []any{
		&m.CreatorID, &m.AvailableCents, &m.PendingCents, &m.TotalEarnedCents, &m.ReservedCents,
		&m.RiskLevel, &m.TrustScore, &m.PayoutDelayDays, &m.CreatedAt, &m.UpdatedAt,
	}
}

func fromBalanceModel(m *balanceModel) (*payout.Balance, error) {
	creatorID, err := id.ParseCreatorID(m.CreatorID)
	if err != nil {
		return nil, err
	}
	level, err := payout.ParseRiskLevel(m.RiskLevel)
	if err != nil {
		return nil, err
	}
	return &payout.Balance{
		Entity:           types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		CreatorID:        creatorID,
		AvailableCents:   m.AvailableCents,
		PendingCents:     m.PendingCents,
		TotalEarnedCents: m.TotalEarnedCents,
		ReservedCents:    m.ReservedCents,
		RiskLevel:        level,
		TrustScore:       m.TrustScore,
		PayoutDelayDays:  m.PayoutDelayDays,
	}, nil
}

// metadata keeps JSONB columns non-null.
func metadata(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
