package wit

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Hash is a 32-byte SHA-256 digest.
type Hash [32]byte

// ParseHash decodes a 64-character hex string.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(h) {
		return h, fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}
	copy(h[:], b)
	return h, nil
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*h = Hash{}
		return nil
	}
	parsed, err := ParseHash(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// OutputPointer references a transaction output as "<txid>:<index>".
type OutputPointer struct {
	TxID  Hash
	Index uint32
}

// ParseOutputPointer parses the "<txid>:<index>" form.
func ParseOutputPointer(s string) (OutputPointer, error) {
	var op OutputPointer
	txid, idx, ok := strings.Cut(s, ":")
	if !ok {
		return op, fmt.Errorf("%w: %q", ErrInvalidOutputPointer, s)
	}
	h, err := ParseHash(txid)
	if err != nil {
		return op, fmt.Errorf("%w: %q", ErrInvalidOutputPointer, s)
	}
	n, err := strconv.ParseUint(idx, 10, 32)
	if err != nil {
		return op, fmt.Errorf("%w: %q", ErrInvalidOutputPointer, s)
	}
	op.TxID = h
	op.Index = uint32(n)
	return op, nil
}

func (op OutputPointer) String() string {
	return op.TxID.String() + ":" + strconv.FormatUint(uint64(op.Index), 10)
}

// Less orders pointers by txid bytes, then index.
func (op OutputPointer) Less(other OutputPointer) bool {
	if c := strings.Compare(string(op.TxID[:]), string(other.TxID[:])); c != 0 {
		return c < 0
	}
	return op.Index < other.Index
}

func (op OutputPointer) MarshalJSON() ([]byte, error) {
	return json.Marshal(op.String())
}

func (op *OutputPointer) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseOutputPointer(s)
	if err != nil {
		return err
	}
	*op = parsed
	return nil
}

// Utxo is an unspent output held by Signer.
type Utxo struct {
	OutputPointer OutputPointer `json:"output_pointer"`
	Value         Nanowits      `json:"value"`
	Timelock      int64         `json:"timelock"` // unix seconds, 0 if unlocked
	Mature        bool          `json:"utxo_mature"`
	Signer        string        `json:"signer"` // owning address
}

// Spendable reports whether u may be used as an input at time now.
func (u Utxo) Spendable(now time.Time) bool {
	return u.Mature && (u.Timelock == 0 || u.Timelock <= now.Unix())
}

// Locked reports whether u carries a timelock still in the future at now.
func (u Utxo) Locked(now time.Time) bool {
	return u.Timelock > now.Unix()
}

// SumValues totals the value of utxos.
func SumValues(utxos []Utxo) Nanowits {
	var total Nanowits
	for _, u := range utxos {
		total += u.Value
	}
	return total
}

// ValueTransferOutput pays Value to PKH, optionally locked until TimeLock.
type ValueTransferOutput struct {
	PKH      string   `json:"pkh"` // bech32 address
	Value    Nanowits `json:"value"`
	TimeLock uint64   `json:"time_lock"`
}
