package transmit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bitfsorg/libwit-go/receipt"
	"github.com/bitfsorg/libwit-go/tx"
	"github.com/bitfsorg/libwit-go/utxo"
	"github.com/bitfsorg/libwit-go/wallet"
	"github.com/bitfsorg/libwit-go/wit"
)

// ErrorKind classifies a transmitter failure.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindInsufficientFunds
	KindWeightExceeded
	KindSigning
	KindTransmission
	KindTimeout
	KindMempool
)

var (
	// ErrValidation indicates a malformed or incomplete spend target.
	ErrValidation = errors.New("transmit: invalid target")

	// ErrInsufficientFunds indicates the ledger cannot cover value plus fees.
	ErrInsufficientFunds = errors.New("transmit: insufficient funds")

	// ErrWeightExceeded indicates the transaction is heavier than its kind allows.
	ErrWeightExceeded = errors.New("transmit: weight exceeds limit")

	// ErrSigning indicates a signature could not be produced.
	ErrSigning = errors.New("transmit: signing failed")

	// ErrTransmission indicates the node rejected or never answered a submission.
	ErrTransmission = errors.New("transmit: transmission failed")

	// ErrTimeout indicates the confirmation deadline passed.
	ErrTimeout = errors.New("transmit: confirmation timed out")

	// ErrMempool indicates a relayed transaction was dropped from the mempool.
	ErrMempool = errors.New("transmit: removed from mempool")
)

var (
	// ErrInFlight indicates a submission of the current transaction is still outstanding.
	ErrInFlight = errors.New("transmit: transaction in flight")

	// ErrNotSubmitted indicates confirmation was requested for a transaction never handed to the node.
	ErrNotSubmitted = errors.New("transmit: transaction not submitted")

	// ErrUnknownChangeAddress indicates the change address has no signer in the ledger.
	ErrUnknownChangeAddress = errors.New("transmit: change address not held by ledger")
)

var kindErrors = map[ErrorKind]error{
	KindValidation:        ErrValidation,
	KindInsufficientFunds: ErrInsufficientFunds,
	KindWeightExceeded:    ErrWeightExceeded,
	KindSigning:           ErrSigning,
	KindTransmission:      ErrTransmission,
	KindTimeout:           ErrTimeout,
	KindMempool:           ErrMempool,
}

func (k ErrorKind) String() string {
	if err, ok := kindErrors[k]; ok {
		return strings.TrimPrefix(err.Error(), "transmit: ")
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is a classified transmitter failure. Only the fields relevant to
// Kind are set.
type Error struct {
	Kind    ErrorKind
	Hash    wit.Hash
	Address string

	// InsufficientFunds
	Need wit.Nanowits
	Have wit.Nanowits

	// WeightExceeded
	Weight    uint64
	MaxWeight uint64

	// Transmission: the attempted wire encoding.
	Bytes []byte

	// Timeout
	Elapsed time.Duration

	// Timeout and Mempool: the last known receipt.
	Receipt *receipt.Receipt

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(kindErrors[e.Kind].Error())
	if !e.Hash.IsZero() {
		fmt.Fprintf(&b, " %s", e.Hash)
	}
	switch e.Kind {
	case KindInsufficientFunds:
		fmt.Fprintf(&b, " on %s: need %d, have %d", e.Address, e.Need, e.Have)
	case KindWeightExceeded:
		fmt.Fprintf(&b, ": %d > %d", e.Weight, e.MaxWeight)
	case KindTimeout:
		fmt.Fprintf(&b, " after %s", e.Elapsed.Round(time.Second))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return kindErrors[e.Kind] == target
}

func (e *Error) Unwrap() error { return e.Err }

// classify wraps an error raised while preparing a transaction. Errors that
// fit no kind are returned unchanged.
func classify(err error, address string) error {
	var te *Error
	if err == nil || errors.As(err, &te) {
		return err
	}
	switch {
	case errors.Is(err, tx.ErrInvalidTarget),
		errors.Is(err, tx.ErrNoTarget),
		errors.Is(err, tx.ErrUnsupported),
		errors.Is(err, tx.ErrCollateralTooLow),
		errors.Is(err, tx.ErrNoChange):
		return &Error{Kind: KindValidation, Address: address, Err: err}

	case errors.Is(err, utxo.ErrInsufficientFunds):
		e := &Error{Kind: KindInsufficientFunds, Address: address, Err: err}
		var ife *utxo.InsufficientFundsError
		if errors.As(err, &ife) {
			e.Need, e.Have = ife.Need, ife.Have
		}
		return e

	case errors.Is(err, wallet.ErrNoPrivateKey),
		errors.Is(err, wallet.ErrInvalidDigest),
		errors.Is(err, wallet.ErrSigningFailed),
		errors.Is(err, tx.ErrUnknownSigner):
		return &Error{Kind: KindSigning, Address: address, Err: err}
	}
	return err
}
