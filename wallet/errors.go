package wallet

import "errors"

var (
	// ErrInvalidMnemonic indicates the mnemonic fails BIP39 validation.
	ErrInvalidMnemonic = errors.New("wallet: invalid BIP39 mnemonic")

	// ErrInvalidEntropy indicates entropy bits is not 128 or 256.
	ErrInvalidEntropy = errors.New("wallet: entropy bits must be 128 or 256")

	// ErrIndexOutOfRange indicates an account or address index reaches the hardened range.
	ErrIndexOutOfRange = errors.New("wallet: index exceeds maximum (2^31-1)")

	// ErrDecryptionFailed indicates wrong password or corrupted seed data.
	ErrDecryptionFailed = errors.New("wallet: seed decryption failed (wrong password or corrupted data)")

	// ErrChecksumMismatch indicates seed checksum verification failed after decryption.
	ErrChecksumMismatch = errors.New("wallet: seed checksum mismatch")

	// ErrInvalidSeed indicates the seed is empty or invalid.
	ErrInvalidSeed = errors.New("wallet: invalid seed")

	// ErrDerivationFailed indicates BIP32 key derivation failed.
	ErrDerivationFailed = errors.New("wallet: key derivation failed")

	// ErrNilKey indicates a signer was created without a public key.
	ErrNilKey = errors.New("wallet: key pair has no public key")

	// ErrNoPrivateKey indicates the signer holds no private material.
	ErrNoPrivateKey = errors.New("wallet: no private key available")

	// ErrInvalidDigest indicates a digest to sign is not exactly 32 bytes.
	ErrInvalidDigest = errors.New("wallet: digest must be 32 bytes")

	// ErrSigningFailed indicates the ECDSA signing operation failed.
	ErrSigningFailed = errors.New("wallet: signing failed")

	// ErrNoStakeEntry indicates no stake exists for a validator and withdrawer pair.
	ErrNoStakeEntry = errors.New("wallet: no stake entry found")

	// ErrNoSigners indicates a ledger was created without signers.
	ErrNoSigners = errors.New("wallet: ledger needs at least one signer")

	// ErrDuplicateSigner indicates two signers share an address.
	ErrDuplicateSigner = errors.New("wallet: duplicate signer address")

	// ErrNetworkMismatch indicates signers or providers on different networks.
	ErrNetworkMismatch = errors.New("wallet: network mismatch")
)
