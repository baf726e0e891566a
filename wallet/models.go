package wallet

import (
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/types"
)

type Wallet struct {
	types.Entity
	ID             id.WalletID       `json:"id"`
	OwnerID        string            `json:"owner_id"`
	Currency       string            `json:"currency"`
	AvailableCents int64             `json:"available_cents"`
	PendingCents   int64             `json:"pending_cents"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Available returns the spendable balance as Money.
func (w *Wallet) Available() types.Money { return types.Cents(w.AvailableCents, w.Currency) }

// Pending returns the balance locked against campaigns as Money.
func (w *Wallet) Pending() types.Money { return types.Cents(w.PendingCents, w.Currency) }

// Total is available plus pending. Lock and release never change it.
func (w *Wallet) Total() int64 { return w.AvailableCents + w.PendingCents }
