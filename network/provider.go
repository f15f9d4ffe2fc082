package network

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bitfsorg/libwit-go/wit"
)

// Provider is the node-facing boundary used by signers and transmitters.
type Provider interface {
	// Network reports which chain the provider is connected to.
	Network() wit.Network

	// GetUtxos returns the outputs held by address.
	GetUtxos(ctx context.Context, address string) ([]wit.Utxo, error)

	// GetBalance returns the balance breakdown of address.
	GetBalance(ctx context.Context, address string) (*Balance, error)

	// Priorities returns the current fee-per-weight-unit table.
	Priorities(ctx context.Context) (Priorities, error)

	// SendRawTransaction submits a signed transaction and reports whether the
	// node accepted it.
	SendRawTransaction(ctx context.Context, tx RawTransaction) (bool, error)

	// GetTransaction returns the inclusion report of hash, or ErrTxNotFound.
	GetTransaction(ctx context.Context, hash wit.Hash) (*TransactionReport, error)

	// GetBlock returns the block identified by hash.
	GetBlock(ctx context.Context, hash wit.Hash) (*Block, error)

	// Stakes lists stake entries matching query.
	Stakes(ctx context.Context, query StakesQuery) ([]StakeEntry, error)
}

// RawTransaction is a signed transaction ready for submission. JSON is the
// tagged form accepted by the node, Bytes the canonical wire encoding.
type RawTransaction struct {
	Hash  wit.Hash
	Bytes []byte
	JSON  json.RawMessage
}

// Balance is the balance breakdown of an address.
type Balance struct {
	Locked   wit.Nanowits `json:"locked"`
	Staked   wit.Nanowits `json:"staked"`
	Unlocked wit.Nanowits `json:"unlocked"`
}

// Total sums every component of the balance.
func (b Balance) Total() wit.Nanowits {
	return b.Locked + b.Staked + b.Unlocked
}

// TransactionReport describes where a transaction stands on chain. A zero
// BlockHash means the transaction is still in the mempool.
type TransactionReport struct {
	BlockHash      wit.Hash `json:"blockHash"`
	BlockEpoch     uint32   `json:"blockEpoch"`
	BlockTimestamp int64    `json:"blockTimestamp"`
	Confirmations  uint32   `json:"confirmations"`
	Confirmed      bool     `json:"confirmed"`
}

// ProtoPublicKey is the node's JSON rendering of a public key.
type ProtoPublicKey struct {
	Compressed uint8 `json:"compressed"`
	Bytes      []int `json:"bytes"`
}

// Key converts p into a compressed public key.
func (p ProtoPublicKey) Key() (wit.PublicKey, error) {
	raw := make([]byte, 0, 33)
	raw = append(raw, p.Compressed)
	for _, b := range p.Bytes {
		if b < 0 || b > 255 {
			return wit.PublicKey{}, fmt.Errorf("%w: public key byte %d", ErrInvalidResponse, b)
		}
		raw = append(raw, byte(b))
	}
	return wit.PublicKeyFromBytes(raw)
}

// Block carries the subset of block fields the client needs.
type Block struct {
	BlockSig struct {
		PublicKey ProtoPublicKey `json:"public_key"`
	} `json:"block_sig"`
}

// MinerAddress derives the address of the block's signer.
func (b *Block) MinerAddress(n wit.Network) (string, error) {
	pk, err := b.BlockSig.PublicKey.Key()
	if err != nil {
		return "", err
	}
	return pk.Address(n), nil
}

// StakesOrder sorts stake query results.
type StakesOrder struct {
	By      string `json:"by"`
	Reverse bool   `json:"reverse,omitempty"`
}

// StakesQuery filters stake entries by validator and/or withdrawer.
type StakesQuery struct {
	Validator  string       `json:"-"`
	Withdrawer string       `json:"-"`
	Order      *StakesOrder `json:"-"`
}

// StakeEntry is one (validator, withdrawer) stake.
type StakeEntry struct {
	Key struct {
		Validator  string `json:"validator"`
		Withdrawer string `json:"withdrawer"`
	} `json:"key"`
	Value struct {
		Coins wit.Nanowits `json:"coins"`
		Nonce uint64       `json:"nonce"`
	} `json:"value"`
}
