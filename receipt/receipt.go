package receipt

import (
	"encoding/json"
	"fmt"

	"github.com/bitfsorg/libwit-go/tx"
	"github.com/bitfsorg/libwit-go/wit"
)

// Status is the settlement stage of a transaction.
type Status string

const (
	Signed    Status = "signed"
	Pending   Status = "pending"
	Relayed   Status = "relayed"
	Mined     Status = "mined"
	Confirmed Status = "confirmed"
	Finalized Status = "finalized"
	Removed   Status = "removed"
)

// ParseStatus maps a status name to a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case Signed, Pending, Relayed, Mined, Confirmed, Finalized, Removed:
		return true
	}
	return false
}

// Submitted reports whether the node has been handed the transaction.
func (s Status) Submitted() bool {
	return s.Valid() && s != Signed
}

// Terminal reports whether no further transition is expected.
func (s Status) Terminal() bool {
	return s == Confirmed || s == Finalized || s == Removed
}

// Settled reports whether the transaction made it into a block for good.
func (s Status) Settled() bool {
	return s == Confirmed || s == Finalized
}

// Receipt is the record of one signed transaction.
type Receipt struct {
	Hash   wit.Hash        `json:"hash"`
	Type   tx.Kind         `json:"type"`
	Status Status          `json:"status"`
	Tx     json.RawMessage `json:"tx,omitempty"`

	Fees   wit.Nanowits `json:"fees"`
	Value  wit.Nanowits `json:"value"`
	Change wit.Nanowits `json:"change"`
	Weight uint64       `json:"weight"`

	From    []string                  `json:"from,omitempty"`
	Inputs  []wit.Utxo                `json:"inputs,omitempty"`
	Outputs []wit.ValueTransferOutput `json:"outputs,omitempty"`

	BlockHash      *wit.Hash `json:"blockHash,omitempty"`
	BlockEpoch     uint32    `json:"blockEpoch,omitempty"`
	BlockTimestamp int64     `json:"blockTimestamp,omitempty"`
	BlockMiner     string    `json:"blockMiner,omitempty"`
	Confirmations  uint32    `json:"confirmations,omitempty"`

	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`

	Extra map[string]interface{} `json:"extra,omitempty"`
}

// Clone returns a copy that shares no slices or maps with r.
func (r *Receipt) Clone() *Receipt {
	if r == nil {
		return nil
	}
	c := *r
	c.Tx = append(json.RawMessage(nil), r.Tx...)
	c.From = append([]string(nil), r.From...)
	c.Inputs = append([]wit.Utxo(nil), r.Inputs...)
	c.Outputs = append([]wit.ValueTransferOutput(nil), r.Outputs...)
	if r.BlockHash != nil {
		h := *r.BlockHash
		c.BlockHash = &h
	}
	if r.Extra != nil {
		c.Extra = make(map[string]interface{}, len(r.Extra))
		for k, v := range r.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

// ClearBlock drops every block-related field.
func (r *Receipt) ClearBlock() {
	r.BlockHash = nil
	r.BlockEpoch = 0
	r.BlockTimestamp = 0
	r.BlockMiner = ""
	r.Confirmations = 0
}

// OwnedOutputs returns the outputs paid to one of owners, as pointers into
// this transaction. A withdrawal's lock is relative to its block.
func (r *Receipt) OwnedOutputs(owners map[string]bool) []wit.Utxo {
	var out []wit.Utxo
	for i, o := range r.Outputs {
		if !owners[o.PKH] {
			continue
		}
		lock := int64(o.TimeLock)
		if r.Type == tx.KindStakeWithdrawal && lock > 0 {
			lock += r.BlockTimestamp
		}
		out = append(out, wit.Utxo{
			OutputPointer: wit.OutputPointer{TxID: r.Hash, Index: uint32(i)},
			Value:         o.Value,
			Timelock:      lock,
			Mature:        true,
			Signer:        o.PKH,
		})
	}
	return out
}
