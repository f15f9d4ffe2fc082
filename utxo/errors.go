package utxo

import (
	"errors"
	"fmt"

	"github.com/bitfsorg/libwit-go/wit"
)

var (
	// ErrInsufficientFunds indicates no subset of the candidates covers the target.
	ErrInsufficientFunds = errors.New("utxo: insufficient funds")

	// ErrUnknownStrategy indicates an unrecognized selection strategy name.
	ErrUnknownStrategy = errors.New("utxo: unknown selection strategy")
)

// InsufficientFundsError carries the amounts behind a failed selection.
type InsufficientFundsError struct {
	Need wit.Nanowits
	Have wit.Nanowits
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("%s: need %d nanowits, have %d expendable", ErrInsufficientFunds, e.Need, e.Have)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}
