package wit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// Network identifies the chain an address or client belongs to.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
)

// HRP returns the bech32 human-readable part used for addresses on n.
func (n Network) HRP() string {
	if n == Testnet {
		return "twit"
	}
	return "wit"
}

// ParseNetwork maps a network name to a Network.
func ParseNetwork(s string) (Network, error) {
	switch Network(s) {
	case Mainnet, Testnet:
		return Network(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownNetwork, s)
}

// PublicKeyHash identifies the owner of an output.
type PublicKeyHash [20]byte

// Address encodes the hash as a bech32 address for the given network.
func (p PublicKeyHash) Address(n Network) string {
	conv, err := bech32.ConvertBits(p[:], 8, 5, true)
	if err != nil {
		return ""
	}
	addr, err := bech32.Encode(n.HRP(), conv)
	if err != nil {
		return ""
	}
	return addr
}

// String returns the hex form of the hash.
func (p PublicKeyHash) String() string {
	return hex.EncodeToString(p[:])
}

// IsZero reports whether p is the all-zero hash.
func (p PublicKeyHash) IsZero() bool {
	return p == PublicKeyHash{}
}

// ParseAddress decodes a bech32 address into its public key hash and network.
func ParseAddress(addr string) (PublicKeyHash, Network, error) {
	var pkh PublicKeyHash
	hrp, data, err := bech32.Decode(addr)
	if err != nil {
		return pkh, "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	var network Network
	switch hrp {
	case Mainnet.HRP():
		network = Mainnet
	case Testnet.HRP():
		network = Testnet
	default:
		return pkh, "", fmt.Errorf("%w: prefix %q", ErrUnknownNetwork, hrp)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return pkh, "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != len(pkh) {
		return pkh, "", fmt.Errorf("%w: payload is %d bytes", ErrInvalidAddress, len(raw))
	}
	copy(pkh[:], raw)
	return pkh, network, nil
}

// PublicKey is a compressed secp256k1 public key.
type PublicKey [33]byte

// PublicKeyFromBytes validates and copies a 33-byte compressed key.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != len(pk) || (b[0] != 0x02 && b[0] != 0x03) {
		return pk, fmt.Errorf("%w: %d bytes", ErrInvalidPublicKey, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// PKH derives the public key hash: the first 20 bytes of SHA-256 over the
// compressed key.
func (pk PublicKey) PKH() PublicKeyHash {
	sum := sha256.Sum256(pk[:])
	var pkh PublicKeyHash
	copy(pkh[:], sum[:20])
	return pkh
}

// Address is shorthand for pk.PKH().Address(n).
func (pk PublicKey) Address(n Network) string {
	return pk.PKH().Address(n)
}

func (pk PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(pk[:]))
}

func (pk *PublicKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	parsed, err := PublicKeyFromBytes(b)
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}

// KeyedSignature pairs a DER-encoded ECDSA signature with the key that made it.
type KeyedSignature struct {
	PublicKey PublicKey `json:"public_key"`
	Signature []byte    `json:"signature"`
}
