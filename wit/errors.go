package wit

import "errors"

var (
	// ErrInvalidAddress indicates an address failed bech32 decoding or has the wrong shape.
	ErrInvalidAddress = errors.New("wit: invalid address")

	// ErrUnknownNetwork indicates an unrecognized network name or address prefix.
	ErrUnknownNetwork = errors.New("wit: unknown network")

	// ErrInvalidHash indicates a hash string is not 32 hex-encoded bytes.
	ErrInvalidHash = errors.New("wit: invalid hash")

	// ErrInvalidOutputPointer indicates an output pointer is not "<txid>:<index>".
	ErrInvalidOutputPointer = errors.New("wit: invalid output pointer")

	// ErrInvalidAmount indicates an amount string cannot be parsed as wits.
	ErrInvalidAmount = errors.New("wit: invalid amount")

	// ErrInvalidPublicKey indicates a public key is not 33 compressed bytes.
	ErrInvalidPublicKey = errors.New("wit: invalid public key")
)
