package tx

import "errors"

var (
	// ErrInvalidTarget indicates a spend target is malformed or incomplete.
	ErrInvalidTarget = errors.New("tx: invalid target")

	// ErrNoTarget indicates an operation needs a target but none was installed.
	ErrNoTarget = errors.New("tx: no target set")

	// ErrUnsupported indicates a request the payload cannot express yet.
	ErrUnsupported = errors.New("tx: unsupported target")

	// ErrCollateralTooLow indicates the witnessing collateral implied by the fee is under the minimum.
	ErrCollateralTooLow = errors.New("tx: witnessing collateral too low")

	// ErrNotPrepared indicates hashing or encoding was attempted before covering completed.
	ErrNotPrepared = errors.New("tx: payload not prepared")

	// ErrFeeNotConverged indicates the covering loop hit its round limit.
	ErrFeeNotConverged = errors.New("tx: fee estimate did not converge")

	// ErrNoChange indicates a withdrawal whose value does not exceed its fee.
	ErrNoChange = errors.New("tx: value does not cover fee")

	// ErrUtxoNotHeld indicates a selected output vanished from its pool before it was consumed.
	ErrUtxoNotHeld = errors.New("tx: selected utxo not held by ledger")

	// ErrInvalidWire indicates a malformed protobuf encoding.
	ErrInvalidWire = errors.New("tx: invalid wire encoding")

	// ErrUnknownKind indicates an unrecognized transaction kind.
	ErrUnknownKind = errors.New("tx: unknown transaction kind")
)

// ErrUnknownSigner indicates an input owned by an address the ledger holds no key for.
var ErrUnknownSigner = errors.New("tx: no signer for input owner")
