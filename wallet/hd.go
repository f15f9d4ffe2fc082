package wallet

import (
	"fmt"

	bip32 "github.com/bsv-blockchain/go-sdk/compat/bip32"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	chaincfg "github.com/bsv-blockchain/go-sdk/transaction/chaincfg"

	"github.com/bitfsorg/libwit-go/wit"
)

const (
	// Key path constants: m/3'/4919'/account'/chain/index.
	PurposeWitnet  = 3
	CoinTypeWitnet = 4919
	DefaultAccount = 0

	// Chain indices.
	ExternalChain = 0 // Receive addresses
	InternalChain = 1 // Change addresses

	// BIP32 hardened offset.
	Hardened = 0x80000000
)

// Wallet derives Witnet keys from a BIP39 seed.
type Wallet struct {
	masterKey *bip32.ExtendedKey
	network   wit.Network
}

// KeyPair holds a derived public/private key pair. A nil PrivateKey makes a
// watch-only pair.
type KeyPair struct {
	PrivateKey *ec.PrivateKey `json:"-"`
	PublicKey  *ec.PublicKey  `json:"public_key"`
	Path       string         `json:"path"` // Human-readable derivation path
}

// NewWallet creates a Wallet from a BIP39 seed.
func NewWallet(seed []byte, network wit.Network) (*Wallet, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}
	if network == "" {
		network = wit.Mainnet
	}

	// Extended-key version bytes are irrelevant to Witnet; only the private
	// derivation is used.
	masterKey, err := bip32.NewMaster(seed, &chaincfg.MainNet)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}
	return &Wallet{masterKey: masterKey, network: network}, nil
}

// NewWalletFromMnemonic derives the seed from mnemonic and passphrase first.
func NewWalletFromMnemonic(mnemonic, passphrase string, network wit.Network) (*Wallet, error) {
	seed, err := SeedFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	return NewWallet(seed, network)
}

// Network returns the network addresses are rendered for.
func (w *Wallet) Network() wit.Network {
	return w.network
}

// DeriveKey derives m/3'/4919'/account'/chain/index.
func (w *Wallet) DeriveKey(account, chain, index uint32) (*KeyPair, error) {
	if account >= Hardened || index >= Hardened {
		return nil, ErrIndexOutOfRange
	}

	steps := []struct {
		name  string
		child uint32
	}{
		{"purpose", PurposeWitnet + Hardened},
		{"coin type", CoinTypeWitnet + Hardened},
		{"account", account + Hardened},
		{"chain", chain},
		{"index", index},
	}

	current := w.masterKey
	for _, step := range steps {
		next, err := current.Child(step.child)
		if err != nil {
			return nil, fmt.Errorf("%w: %s derivation: %w", ErrDerivationFailed, step.name, err)
		}
		current = next
	}

	path := fmt.Sprintf("m/%d'/%d'/%d'/%d/%d", PurposeWitnet, CoinTypeWitnet, account, chain, index)
	return extKeyToKeyPair(current, path)
}

// DeriveAddress derives the key at (account, chain, index) and renders its address.
func (w *Wallet) DeriveAddress(account, chain, index uint32) (string, error) {
	kp, err := w.DeriveKey(account, chain, index)
	if err != nil {
		return "", err
	}
	pk, err := wit.PublicKeyFromBytes(kp.PublicKey.Compressed())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}
	return pk.Address(w.network), nil
}

// KeyPairFromBytes builds a KeyPair from a raw 32-byte private key.
func KeyPairFromBytes(raw []byte) (*KeyPair, error) {
	if len(raw) != 32 {
		return nil, fmt.Errorf("%w: private key must be 32 bytes", ErrInvalidSeed)
	}
	priv, pub := ec.PrivateKeyFromBytes(raw)
	if priv == nil || pub == nil {
		return nil, fmt.Errorf("%w: invalid private key", ErrDerivationFailed)
	}
	return &KeyPair{PrivateKey: priv, PublicKey: pub}, nil
}

// extKeyToKeyPair converts a BIP32 extended key to a KeyPair.
func extKeyToKeyPair(extKey *bip32.ExtendedKey, path string) (*KeyPair, error) {
	privKey, err := extKey.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to extract EC private key: %w", ErrDerivationFailed, err)
	}

	pubKey := privKey.PubKey()
	if pubKey == nil {
		return nil, fmt.Errorf("%w: failed to derive public key", ErrDerivationFailed)
	}

	return &KeyPair{
		PrivateKey: privKey,
		PublicKey:  pubKey,
		Path:       path,
	}, nil
}
