package mongo

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

	ID             string            `grove:"id,pk"           bson:"_id"`
	OwnerID        string            `grove:"owner_id"        bson:"owner_id"`
	Currency       string            `grove:"currency"        bson:"currency"`
	AvailableCents int64             `grove:"available_cents" bson:"available_cents"`
	PendingCents   int64             `grove:"pending_cents"   bson:"pending_cents"`
	Metadata       map[string]string `grove:"metadata"        bson:"metadata,omitempty"`
	CreatedAt      time.Time         `grove:"created_at"      bson:"created_at"`
	UpdatedAt      time.Time         `grove:"updated_at"      bson:"updated_at"`
}

func toWalletModel(w *wallet.Wallet) *walletModel {
	return &walletModel{
		ID:             w.ID.String(),
		OwnerID:        w.OwnerID,
		Currency:       w.Currency,
		AvailableCents: w.AvailableCents,
		PendingCents:   w.PendingCents,
		Metadata:       w.Metadata,
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

	ID               string            `grove:"id,pk"              bson:"_id"`
	WalletID         string            `grove:"wallet_id"          bson:"wallet_id"`
	AdvertiserID     string            `grove:"advertiser_id"      bson:"advertiser_id"`
	Name             string            `grove:"name"               bson:"name"`
	Status           string            `grove:"status"             bson:"status"`
	TotalBudgetCents int64             `grove:"total_budget_cents" bson:"total_budget_cents"`
	SpentBudgetCents int64             `grove:"spent_budget_cents" bson:"spent_budget_cents"`
	CPMCents         int64             `grove:"cpm_cents"          bson:"cpm_cents"`
	StartDate        *time.Time        `grove:"start_date"         bson:"start_date,omitempty"`
	EndDate          *time.Time        `grove:"end_date"           bson:"end_date,omitempty"`
	PacingEnabled    bool              `grove:"pacing_enabled"     bson:"pacing_enabled"`
	PacingMode       string            `grove:"pacing_mode"        bson:"pacing_mode"`
	Pacing           pacingModel       `grove:"pacing"             bson:"pacing"`
	AutoPausedAt     *time.Time        `grove:"auto_paused_at"     bson:"auto_paused_at,omitempty"`
	PauseReason      string            `grove:"pause_reason"       bson:"pause_reason"`
	Metadata         map[string]string `grove:"metadata"           bson:"metadata,omitempty"`
	CreatedAt        time.Time         `grove:"created_at"         bson:"created_at"`
	UpdatedAt        time.Time         `grove:"updated_at"         bson:"updated_at"`
}

// pacingModel is embedded in the campaign document so metric refreshes
// replace a single sub-document.
type pacingModel struct {
	DeliveryProgressPercent float64    `bson:"delivery_progress_percent"`
	IsOverDelivering        bool       `bson:"is_over_delivering"`
	IsUnderDelivering       bool       `bson:"is_under_delivering"`
	LastPacingCheckAt       *time.Time `bson:"last_pacing_check_at,omitempty"`
}

func toPacingModel(p campaign.PacingMetrics) pacingModel {
	return pacingModel{
		DeliveryProgressPercent: p.DeliveryProgressPercent,
		IsOverDelivering:        p.IsOverDelivering,
		IsUnderDelivering:       p.IsUnderDelivering,
		LastPacingCheckAt:       p.LastPacingCheckAt,
	}
}

func toCampaignModel(c *campaign.Campaign) *campaignModel {
	return &campaignModel{
		ID:               c.ID.String(),
		WalletID:         c.WalletID.String(),
		AdvertiserID:     c.AdvertiserID,
		Name:             c.Name,
		Status:           string(c.Status),
		TotalBudgetCents: c.TotalBudgetCents,
		SpentBudgetCents: c.SpentBudgetCents,
		CPMCents:         c.CPMCents,
		StartDate:        c.StartDate,
		EndDate:          c.EndDate,
		PacingEnabled:    c.PacingEnabled,
		PacingMode:       string(c.Mode()),
		Pacing:           toPacingModel(c.Pacing),
		AutoPausedAt:     c.AutoPausedAt,
		PauseReason:      c.PauseReason,
		Metadata:         c.Metadata,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
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
			DeliveryProgressPercent: m.Pacing.DeliveryProgressPercent,
			IsOverDelivering:        m.Pacing.IsOverDelivering,
			IsUnderDelivering:       m.Pacing.IsUnderDelivering,
			LastPacingCheckAt:       m.Pacing.LastPacingCheckAt,
		},
		AutoPausedAt: m.AutoPausedAt,
		PauseReason:  m.PauseReason,
		Metadata:     m.Metadata,
	}, nil
}

// ==================== Budget lock models ====================

type lockModel struct {
	grove.BaseModel `grove:"table:treasury_budget_locks"`

	ID          string    `grove:"id,pk"        bson:"_id"`
	CampaignID  string    `grove:"campaign_id"  bson:"campaign_id"`
	WalletID    string    `grove:"wallet_id"    bson:"wallet_id"`
	LockedCents int64     `grove:"locked_cents" bson:"locked_cents"`
	CreatedAt   time.Time `grove:"created_at"   bson:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"   bson:"updated_at"`
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

	ID          string            `grove:"id,pk"        bson:"_id"`
	CampaignID  string            `grove:"campaign_id"  bson:"campaign_id"`
	CreatorID   string            `grove:"creator_id"   bson:"creator_id"`
	Type        string            `grove:"type"         bson:"type"`
	AmountCents int64             `grove:"amount_cents" bson:"amount_cents"`
	RefEventID  string            `grove:"ref_event_id" bson:"ref_event_id"`
	ReversesID  string            `grove:"reverses_id"  bson:"reverses_id"`
	Reason      string            `grove:"reason"       bson:"reason"`
	Metadata    map[string]string `grove:"metadata"     bson:"metadata,omitempty"`
	CreatedAt   time.Time         `grove:"created_at"   bson:"created_at"`
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
		Metadata:    e.Metadata,
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

	ID                 string     `grove:"id,pk"                bson:"_id"`
	CreatorID          string     `grove:"creator_id"           bson:"creator_id"`
	CampaignID         string     `grove:"campaign_id"          bson:"campaign_id"`
	JournalEntryID     string     `grove:"journal_entry_id"     bson:"journal_entry_id"`
	AmountCents        int64      `grove:"amount_cents"         bson:"amount_cents"`
	Type               string     `grove:"type"                 bson:"type"`
	Status             string     `grove:"status"               bson:"status"`
	EligibleAt         time.Time  `grove:"eligible_at"          bson:"eligible_at"`
	RiskSnapshotScore  float64    `grove:"risk_snapshot_score"  bson:"risk_snapshot_score"`
	RiskLevel          string     `grove:"risk_level"           bson:"risk_level"`
	ReservePercent     float64    `grove:"reserve_percent"      bson:"reserve_percent"`
	ReserveAmountCents int64      `grove:"reserve_amount_cents" bson:"reserve_amount_cents"`
	AppliedMultiplier  float64    `grove:"applied_multiplier"   bson:"applied_multiplier"`
	ReleasedAt         *time.Time `grove:"released_at"          bson:"released_at,omitempty"`
	CancelledAt        *time.Time `grove:"cancelled_at"         bson:"cancelled_at,omitempty"`
	FrozenAt           *time.Time `grove:"frozen_at"            bson:"frozen_at,omitempty"`
	StatusReason       string     `grove:"status_reason"        bson:"status_reason"`
	ReserveReturnedAt  *time.Time `grove:"reserve_returned_at"  bson:"reserve_returned_at,omitempty"`
	CreatedAt          time.Time  `grove:"created_at"           bson:"created_at"`
	UpdatedAt          time.Time  `grove:"updated_at"           bson:"updated_at"`
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

	CreatorID        string    `grove:"creator_id,pk"      bson:"_id"`
	AvailableCents   int64     `grove:"available_cents"    bson:"available_cents"`
	PendingCents     int64     `grove:"pending_cents"      bson:"pending_cents"`
	TotalEarnedCents int64     `grove:"total_earned_cents" bson:"total_earned_cents"`
	ReservedCents    int64     `grove:"reserved_cents"     bson:"reserved_cents"`
	RiskLevel        string    `grove:"risk_level"         bson:"risk_level"`
	TrustScore       float64   `grove:"trust_score"        bson:"trust_score"`
	PayoutDelayDays  int       `grove:"payout_delay_days"  bson:"payout_delay_days"`
	CreatedAt        time.Time `grove:"created_at"         bson:"created_at"`
	UpdatedAt        time.Time `grove:"updated_at"         bson:"updated_at"`
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
