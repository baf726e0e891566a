package treasury

import (
	"context"
	"strings"

	"github.com/xraph/treasury/campaign"
	"github.com/xraph/treasury/event"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/store"
	"github.com/xraph/treasury/types"
	"github.com/xraph/treasury/wallet"
)

// ──────────────────────────────────────────────────
// Wallets
// ──────────────────────────────────────────────────

// CreateWallet registers an advertiser wallet. Balances start at zero;
// fund it with Deposit.
func (t *Treasury) CreateWallet(ctx context.Context, w *wallet.Wallet) error {
	if w.OwnerID == "" {
		return ValidationError{Field: "owner_id", Message: "is required"}
	}
	if w.ID.IsNil() {
		w.ID = id.NewWalletID()
	}
	if w.Currency == "" {
		w.Currency = "usd"
	}
	w.Currency = strings.ToLower(w.Currency)
	w.AvailableCents = 0
	w.PendingCents = 0
	w.Entity = types.NewEntityAt(t.now())

	if err := t.store.CreateWallet(ctx, w); err != nil {
		return t.fail(ctx, "create wallet", err)
	}
	return nil
}

// GetWallet retrieves a wallet by ID.
func (t *Treasury) GetWallet(ctx context.Context, walletID id.WalletID) (*wallet.Wallet, error) {
	w, err := t.store.GetWallet(ctx, walletID)
	return w, t.fail(ctx, "get wallet", err)
}

// GetWalletByOwner retrieves the wallet of an advertiser.
func (t *Treasury) GetWalletByOwner(ctx context.Context, ownerID string) (*wallet.Wallet, error) {
	w, err := t.store.GetWalletByOwner(ctx, ownerID)
	return w, t.fail(ctx, "get wallet by owner", err)
}

// Deposit credits external funds to a wallet's available balance.
func (t *Treasury) Deposit(ctx context.Context, walletID id.WalletID, amountCents int64) (*wallet.Wallet, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}

	var w *wallet.Wallet
	now := t.now()
	err := t.atomic(ctx, "deposit", []string{"wallet:" + walletID.String()}, func(ctx context.Context, tx store.Tx) error {
		var err error
		w, err = tx.GetWalletForUpdate(ctx, walletID)
		if err != nil {
			return err
		}
		w.AvailableCents += amountCents
		w.TouchAt(now)
		return tx.UpdateWalletBalances(ctx, w)
	})
	if err != nil {
		return nil, err
	}

	ev := event.New(event.TypeWalletCredited, now)
	ev.WalletID = w.ID
	ev.AmountCents = amountCents
	t.dispatch(ctx, []event.Event{ev})
	t.plugins.EmitWalletDeposited(ctx, w, amountCents)

	return w, nil
}

// ──────────────────────────────────────────────────
// Campaigns
// ──────────────────────────────────────────────────

// CreateCampaign registers a campaign against an existing wallet. New
// campaigns start in draft with nothing spent.
func (t *Treasury) CreateCampaign(ctx context.Context, c *campaign.Campaign) error {
	if err := validateCampaign(c); err != nil {
		return err
	}
	if _, err := t.store.GetWallet(ctx, c.WalletID); err != nil {
		return t.fail(ctx, "create campaign", err)
	}

	if c.ID.IsNil() {
		c.ID = id.NewCampaignID()
	}
	if c.Status == "" {
		c.Status = campaign.StatusDraft
	}
	if c.PacingMode == "" {
		c.PacingMode = campaign.PacingEven
	}
	c.SpentBudgetCents = 0
	c.AutoPausedAt = nil
	c.PauseReason = ""
	c.Entity = types.NewEntityAt(t.now())

	if err := t.store.CreateCampaign(ctx, c); err != nil {
		return t.fail(ctx, "create campaign", err)
	}
	return nil
}

func validateCampaign(c *campaign.Campaign) error {
	var errs MultiError
	if c.WalletID.IsNil() {
		errs.Add(ValidationError{Field: "wallet_id", Message: "is required"})
	}
	if c.TotalBudgetCents <= 0 {
		errs.Add(ValidationError{Field: "total_budget_cents", Message: "must be positive"})
	}
	if c.CPMCents < 0 {
		errs.Add(ValidationError{Field: "cpm_cents", Message: "must not be negative"})
	}
	if c.PacingMode != "" && !c.PacingMode.Valid() {
		errs.Add(ValidationError{Field: "pacing_mode", Message: "unknown mode " + string(c.PacingMode)})
	}
	if c.StartDate != nil && c.EndDate != nil && !c.EndDate.After(*c.StartDate) {
		errs.Add(ValidationError{Field: "end_date", Message: "must be after start_date"})
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// GetCampaign retrieves a campaign by ID.
func (t *Treasury) GetCampaign(ctx context.Context, campaignID id.CampaignID) (*campaign.Campaign, error) {
	c, err := t.store.GetCampaign(ctx, campaignID)
	return c, t.fail(ctx, "get campaign", err)
}

// ListCampaigns lists campaigns matching opts.
func (t *Treasury) ListCampaigns(ctx context.Context, opts campaign.ListOpts) ([]*campaign.Campaign, error) {
	cs, err := t.store.ListCampaigns(ctx, opts)
	return cs, t.fail(ctx, "list campaigns", err)
}

// ActivateCampaign moves a draft or paused campaign to active. A campaign
// with no remaining budget cannot be activated.
func (t *Treasury) ActivateCampaign(ctx context.Context, campaignID id.CampaignID) (*campaign.Campaign, error) {
	return t.setCampaignStatus(ctx, "activate campaign", campaignID, func(c *campaign.Campaign) error {
		switch c.Status {
		case campaign.StatusActive:
			return nil
		case campaign.StatusDraft, campaign.StatusPaused:
		default:
			return ErrCampaignNotActive
		}
		if c.RemainingBudget() <= 0 {
			return ErrBudgetExceeded
		}
		c.Status = campaign.StatusActive
		c.AutoPausedAt = nil
		c.PauseReason = ""
		return nil
	})
}

// PauseCampaign stops an active campaign from locking budget. Funds
// already locked stay locked.
func (t *Treasury) PauseCampaign(ctx context.Context, campaignID id.CampaignID, reason string) (*campaign.Campaign, error) {
	return t.setCampaignStatus(ctx, "pause campaign", campaignID, func(c *campaign.Campaign) error {
		if c.Status != campaign.StatusActive {
			return ErrCampaignNotActive
		}
		c.Status = campaign.StatusPaused
		c.PauseReason = reason
		return nil
	})
}

func (t *Treasury) setCampaignStatus(ctx context.Context, op string, campaignID id.CampaignID, apply func(*campaign.Campaign) error) (*campaign.Campaign, error) {
	var c *campaign.Campaign
	now := t.now()
	err := t.atomic(ctx, op, []string{campaignKey(campaignID.String())}, func(ctx context.Context, tx store.Tx) error {
		var err error
		c, err = tx.GetCampaignForUpdate(ctx, campaignID)
		if err != nil {
			return err
		}
		if err := apply(c); err != nil {
			return err
		}
		c.TouchAt(now)
		return tx.UpdateCampaignState(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
