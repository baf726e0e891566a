package wallet

import (
	"context"

	"github.com/xraph/treasury/id"
)

type Store interface {
	CreateWallet(ctx context.Context, w *Wallet) error
	GetWallet(ctx context.Context, walletID id.WalletID) (*Wallet, error)
	GetWalletByOwner(ctx context.Context, ownerID string) (*Wallet, error)
}
