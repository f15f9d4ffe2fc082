package tx

import (
	"context"

	"github.com/bitfsorg/libwit-go/network"
	"github.com/bitfsorg/libwit-go/wallet"
	"github.com/bitfsorg/libwit-go/wit"
)

// Ledger is the view of a wallet that payloads cover and sign against.
// *wallet.Ledger implements it.
type Ledger interface {
	Network() wit.Network
	Provider() network.Provider
	// Address is the default signer's address, used for change and
	// withdrawals.
	Address() string
	Signer(addr string) *wallet.Signer
	AddUtxos(utxos ...wit.Utxo) (included, excluded []wit.Utxo)
	ConsumeUtxos(utxos ...wit.Utxo) []wit.Utxo
	SelectUtxos(ctx context.Context, value wit.Nanowits, reload bool) ([]wit.Utxo, error)
	LockCovering() (unlock func())
}

var _ Ledger = (*wallet.Ledger)(nil)
