package wit

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// NanowitsPerWit is the number of nanowits in one wit.
const NanowitsPerWit = 1_000_000_000

// Nanowits is an amount in the smallest currency unit.
type Nanowits uint64

// Wits returns the amount in wits with nine decimals of precision.
func (n Nanowits) Wits() decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(n)), -9)
}

// String renders the amount as "<wits> WIT".
func (n Nanowits) String() string {
	return n.Wits().StringFixed(9) + " WIT"
}

// ParseWits parses a decimal wit amount such as "12.5" into nanowits.
func ParseWits(s string) (Nanowits, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: negative amount %s", ErrInvalidAmount, s)
	}
	nano := d.Shift(9)
	if !nano.Equal(nano.Truncate(0)) {
		return 0, fmt.Errorf("%w: more than 9 decimals in %s", ErrInvalidAmount, s)
	}
	if nano.GreaterThan(decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)) {
		return 0, fmt.Errorf("%w: %s overflows", ErrInvalidAmount, s)
	}
	return Nanowits(nano.BigInt().Uint64()), nil
}
