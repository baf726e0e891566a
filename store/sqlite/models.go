package sqlite

import (
	"encoding/json"
	"fmt"
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

// Timestamps are fixed-width UTC text so string comparison orders them.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ==================== Wallet models ====================

type walletModel struct {
	grove.BaseModel `grove:"table:treasury_wallets"`

	ID             string `grove:"id,pk"`
	OwnerID        string `grove:"owner_id"`
	Currency       string `grove:"currency"`
	AvailableCents int64  `grove:"available_cents"`
	PendingCents   int64  `grove:"pending_cents"`
	Metadata       string `grove:"metadata"`
	CreatedAt      string `grove:"created_at"`
	UpdatedAt      string `grove:"updated_at"`
}

func toWalletModel(w *wallet.Wallet) *walletModel {
	return &walletModel{
		ID:             w.ID.String(),
		OwnerID:        w.OwnerID,
		Currency:       w.Currency,
		AvailableCents: w.AvailableCents,
		PendingCents:   w.PendingCents,
		Metadata:       encodeMetadata(w.Metadata),
		CreatedAt:      formatTime(w.CreatedAt),
		UpdatedAt:      formatTime(w.UpdatedAt),
	}
}

func fromWalletModel(m *walletModel) (*wallet.Wallet, error) {
	walletID, err := id.ParseWalletID(m.ID)
	if err != nil {
		return nil, err
	}
	entity, err := parseEntity(m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &wallet.Wallet{
		Entity:         entity,
		ID:             walletID,
		OwnerID:        m.OwnerID,
		Currency:       m.Currency,
		AvailableCents: m.AvailableCents,
		PendingCents:   m.PendingCents,
		Metadata:       decodeMetadata(m.Metadata),
	}, nil
}

// ==================== Campaign models ====================

type campaignModel struct {
	grove.BaseModel `grove:"table:treasury_campaigns"`

	ID                      string  `grove:"id,pk"`
	WalletID                string  `grove:"wallet_id"`
	AdvertiserID            string  `grove:"advertiser_id"`
	Name                    string  `grove:"name"`
	Status                  string  `grove:"status"`
	TotalBudgetCents        int64   `grove:"total_budget_cents"`
	SpentBudgetCents        int64   `grove:"spent_budget_cents"`
	CPMCents                int64   `grove:"cpm_cents"`
	StartDate               *string `grove:"start_date"`
	EndDate                 *string `grove:"end_date"`
	PacingEnabled           bool    `grove:"pacing_enabled"`
	PacingMode              string  `grove:"pacing_mode"`
	DeliveryProgressPercent float64 `grove:"delivery_progress_percent"`
	IsOverDelivering        bool    `grove:"is_over_delivering"`
	IsUnderDelivering       bool    `grove:"is_under_delivering"`
	LastPacingCheckAt       *string `grove:"last_pacing_check_at"`
	AutoPausedAt            *string `grove:"auto_paused_at"`
	PauseReason             string  `grove:"pause_reason"`
	Metadata                string  `grove:"metadata"`
	CreatedAt               string  `grove:"created_at"`
	UpdatedAt               string  `grove:"updated_at"`
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
		StartDate:               formatTimePtr(c.StartDate),
		EndDate:                 formatTimePtr(c.EndDate),
		PacingEnabled:           c.PacingEnabled,
		PacingMode:              string(c.Mode()),
		DeliveryProgressPercent: c.Pacing.DeliveryProgressPercent,
		IsOverDelivering:        c.Pacing.IsOverDelivering,
		IsUnderDelivering:       c.Pacing.IsUnderDelivering,
		LastPacingCheckAt:       formatTimePtr(c.Pacing.LastPacingCheckAt),
		AutoPausedAt:            formatTimePtr(c.AutoPausedAt),
		PauseReason:             c.PauseReason,
		Metadata:                encodeMetadata(c.Metadata),
		CreatedAt:               formatTime(c.CreatedAt),
		UpdatedAt:               formatTime(c.UpdatedAt),
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
	entity, err := parseEntity(m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return nil, err
	}

	var p timeParser
	c := &campaign.Campaign{
		Entity:           entity,
		ID:               campaignID,
		WalletID:         walletID,
		AdvertiserID:     m.AdvertiserID,
		Name:             m.Name,
		Status:           campaign.Status(m.Status),
		TotalBudgetCents: m.TotalBudgetCents,
		SpentBudgetCents: m.SpentBudgetCents,
		CPMCents:         m.CPMCents,
		StartDate:        p.ptr(m.StartDate),
		EndDate:          p.ptr(m.EndDate),
		PacingEnabled:    m.PacingEnabled,
		PacingMode:       campaign.PacingMode(m.PacingMode),
		Pacing: campaign.PacingMetrics{
			DeliveryProgressPercent: m.DeliveryProgressPercent,
			IsOverDelivering:        m.IsOverDelivering,
			IsUnderDelivering:       m.IsUnderDelivering,
			LastPacingCheckAt:       p.ptr(m.LastPacingCheckAt),
		},
		AutoPausedAt: p.ptr(m.AutoPausedAt),
		PauseReason:  m.PauseReason,
		Metadata:     decodeMetadata(m.Metadata),
	}
	if p.err != nil {
		return nil, p.err
	}
	return c, nil
}

// ==================== Budget lock models ====================

type lockModel struct {
	grove.BaseModel `grove:"table:treasury_budget_locks"`

	ID          string `grove:"id,pk"`
	CampaignID  string `grove:"campaign_id"`
	WalletID    string `grove:"wallet_id"`
	LockedCents int64  `grove:"locked_cents"`
	CreatedAt   string `grove:"created_at"`
	UpdatedAt   string `grove:"updated_at"`
}

func toLockModel(l *budget.Lock) *lockModel {
	return &lockModel{
		ID:          l.ID.String(),
		CampaignID:  l.CampaignID.String(),
		WalletID:    l.WalletID.String(),
		LockedCents: l.LockedCents,
		CreatedAt:   formatTime(l.CreatedAt),
		UpdatedAt:   formatTime(l.UpdatedAt),
	}
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
	entity, err := parseEntity(m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &budget.Lock{
		Entity:      entity,
		ID:          lockID,
		CampaignID:  campaignID,
		WalletID:    walletID,
		LockedCents: m.LockedCents,
	}, nil
}

// ==================== Journal models ====================

type journalModel struct {
	grove.BaseModel `grove:"table:treasury_journal"`

	ID          string `grove:"id,pk"`
	CampaignID  string `grove:"campaign_id"`
	CreatorID   string `grove:"creator_id"`
	Type        string `grove:"type"`
	AmountCents int64  `grove:"amount_cents"`
	RefEventID  string `grove:"ref_event_id"`
	ReversesID  string `grove:"reverses_id"`
	Reason      string `grove:"reason"`
	Metadata    string `grove:"metadata"`
	CreatedAt   string `grove:"created_at"`
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
		Metadata:    encodeMetadata(e.Metadata),
		CreatedAt:   formatTime(e.CreatedAt),
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
	createdAt, err := parseTime(m.CreatedAt)
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
		Metadata:    decodeMetadata(m.Metadata),
		CreatedAt:   createdAt,
	}, nil
}

// ==================== Payout models ====================

type payoutModel struct {
	grove.BaseModel `grove:"table:treasury_payouts"`

	ID                 string  `grove:"id,pk"`
	CreatorID          string  `grove:"creator_id"`
	CampaignID         string  `grove:"campaign_id"`
	JournalEntryID     string  `grove:"journal_entry_id"`
	AmountCents        int64   `grove:"amount_cents"`
	Type               string  `grove:"type"`
	Status             string  `grove:"status"`
	EligibleAt         string  `grove:"eligible_at"`
	RiskSnapshotScore  float64 `grove:"risk_snapshot_score"`
	RiskLevel          string  `grove:"risk_level"`
	ReservePercent     float64 `grove:"reserve_percent"`
	ReserveAmountCents int64   `grove:"reserve_amount_cents"`
	AppliedMultiplier  float64 `grove:"applied_multiplier"`
	ReleasedAt         *string `grove:"released_at"`
	CancelledAt        *string `grove:"cancelled_at"`
	FrozenAt           *string `grove:"frozen_at"`
	StatusReason       string  `grove:"status_reason"`
	ReserveReturnedAt  *string `grove:"reserve_returned_at"`
	CreatedAt          string  `grove:"created_at"`
	UpdatedAt          string  `grove:"updated_at"`
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
		EligibleAt:         formatTime(p.EligibleAt),
		RiskSnapshotScore:  p.RiskSnapshotScore,
		RiskLevel:          riskText(p.RiskLevel),
		ReservePercent:     p.ReservePercent,
		ReserveAmountCents: p.ReserveAmountCents,
		AppliedMultiplier:  p.AppliedMultiplier,
		ReleasedAt:         formatTimePtr(p.ReleasedAt),
		CancelledAt:        formatTimePtr(p.CancelledAt),
		FrozenAt:           formatTimePtr(p.FrozenAt),
		StatusReason:       p.StatusReason,
		ReserveReturnedAt:  formatTimePtr(p.ReserveReturnedAt),
		CreatedAt:          formatTime(p.CreatedAt),
		UpdatedAt:          formatTime(p.UpdatedAt),
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
	entity, err := parseEntity(m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	eligibleAt, err := parseTime(m.EligibleAt)
	if err != nil {
		return nil, err
	}

	var p timeParser
	e := &payout.Entry{
		Entity:             entity,
		ID:                 entryID,
		CreatorID:          creatorID,
		CampaignID:         campaignID,
		JournalEntryID:     journalID,
		AmountCents:        m.AmountCents,
		Type:               journal.Type(m.Type),
		Status:             payout.Status(m.Status),
		EligibleAt:         eligibleAt,
		RiskSnapshotScore:  m.RiskSnapshotScore,
		RiskLevel:          level,
		ReservePercent:     m.ReservePercent,
		ReserveAmountCents: m.ReserveAmountCents,
		AppliedMultiplier:  m.AppliedMultiplier,
		ReleasedAt:         p.ptr(m.ReleasedAt),
		CancelledAt:        p.ptr(m.CancelledAt),
		FrozenAt:           p.ptr(m.FrozenAt),
		StatusReason:       m.StatusReason,
		ReserveReturnedAt:  p.ptr(m.ReserveReturnedAt),
	}
	if p.err != nil {
		return nil, p.err
	}
	return e, nil
}

// ==================== Creator balance models ====================

type balanceModel struct {
	grove.BaseModel `grove:"table:treasury_creator_balances"`

	CreatorID        string  `grove:"creator_id,pk"`
	AvailableCents   int64   `grove:"available_cents"`
	PendingCents     int64   `grove:"pending_cents"`
	TotalEarnedCents int64   `grove:"total_earned_cents"`
	ReservedCents    int64   `grove:"reserved_cents"`
	RiskLevel        string  `grove:"risk_level"`
	TrustScore       float64 `grove:"trust_score"`
	PayoutDelayDays  int     `grove:"payout_delay_days"`
	CreatedAt        string  `grove:"created_at"`
	UpdatedAt        string  `grove:"updated_at"`
}

func toBalanceModel(b *payout.Balance) *balanceModel {
	return &balanceModel{
		CreatorID:        b.CreatorID.String(),
		AvailableCents:   b.AvailableCents,
		PendingCents:     b.PendingCents,
		TotalEarnedCents: b.TotalEarnedCents,
		ReservedCents:    b.ReservedCents,
		RiskLevel:        riskText(b.RiskLevel),
		TrustScore:       b.TrustScore,
		PayoutDelayDays:  b.PayoutDelayDays,
		CreatedAt:        formatTime(b.CreatedAt),
		UpdatedAt:        formatTime(b.UpdatedAt),
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
	entity, err := parseEntity(m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &payout.Balance{
		Entity:           entity,
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

// ==================== Conversions ====================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("treasury/sqlite: parse time %q: %w", s, err)
	}
	return t, nil
}

func parseEntity(created, updated string) (types.Entity, error) {
	c, err := parseTime(created)
	if err != nil {
		return types.Entity{}, err
	}
	u, err := parseTime(updated)
	if err != nil {
		return types.Entity{}, err
	}
	return types.Entity{CreatedAt: c, UpdatedAt: u}, nil
}

// timeParser parses optional columns and keeps the first error.
type timeParser struct {
	err error
}

func (p *timeParser) ptr(s *string) *time.Time {
	if s == nil || p.err != nil {
		return nil
	}
	t, err := parseTime(*s)
	if err != nil {
		p.err = err
		return nil
	}
	return &t
}

func encodeMetadata(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}
	data, _ := json.Marshal(m) //nolint:errcheck // map[string]string always marshals
	return string(data)
}

func decodeMetadata(s string) map[string]string {
	if s == "" || s == "{}" {
		return nil
	}
	var m map[string]string
	_ = json.Unmarshal([]byte(s), &m) //nolint:errcheck // best-effort
	return m
}

// riskText stores unset levels as MEDIUM, the tier new creators start in.
func riskText(level payout.RiskLevel) string {
	if !level.Valid() {
		return payout.RiskMedium.String()
	}
	return level.String()
}
