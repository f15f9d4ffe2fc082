package network

import (
	"fmt"

	"github.com/bitfsorg/libwit-go/wit"
	"github.com/shopspring/decimal"
)

// Priority is a fee tier.
type Priority string

const (
	Stinky  Priority = "stinky"
	Low     Priority = "low"
	Medium  Priority = "medium"
	High    Priority = "high"
	Opulent Priority = "opulent"
)

// Valid reports whether p names a known tier.
func (p Priority) Valid() bool {
	switch p {
	case Stinky, Low, Medium, High, Opulent:
		return true
	}
	return false
}

// Transaction kind prefixes used as priority table keys.
const (
	PrefixDataRequest   = "drt"
	PrefixValueTransfer = "vtt"
)

// PriorityEstimate is the fee rate of one tier and its expected delay.
type PriorityEstimate struct {
	Priority    float64 `json:"priority"` // nanowits per weight unit
	TimeToBlock uint64  `json:"time_to_block"`
}

// Priorities maps "<prefix>_<tier>" to its estimate.
type Priorities map[string]PriorityEstimate

// Fee returns floor(rate * weight) for the given prefix and tier.
func (p Priorities) Fee(prefix string, tier Priority, weight uint64) (wit.Nanowits, error) {
	key := prefix + "_" + string(tier)
	est, ok := p[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownPriority, key)
	}
	fee := decimal.NewFromFloat(est.Priority).
		Mul(decimal.NewFromInt(int64(weight))).
		Floor()
	if fee.IsNegative() {
		return 0, fmt.Errorf("%w: negative rate for %s", ErrInvalidResponse, key)
	}
	return wit.Nanowits(fee.BigInt().Uint64()), nil
}
