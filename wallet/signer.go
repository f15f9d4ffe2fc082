package wallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/lightningnetwork/lnd/clock"
	"go.uber.org/zap"

	"github.com/bitfsorg/libwit-go/network"
	"github.com/bitfsorg/libwit-go/utxo"
	"github.com/bitfsorg/libwit-go/wit"
)

// Signer owns one key and the pool of outputs addressed to it.
type Signer struct {
	key      *KeyPair
	pub      wit.PublicKey
	address  string
	provider network.Provider
	pool     *utxo.Pool
	strategy utxo.Strategy
	clock    clock.Clock
	logger   *zap.Logger

	// coverMu serializes covering loops that draw from this pool.
	coverMu sync.Mutex

	loadMu sync.Mutex
	loaded bool
}

// SignerOption configures a Signer.
type SignerOption func(*Signer)

// WithStrategy sets the default selection strategy.
func WithStrategy(s utxo.Strategy) SignerOption {
	return func(sg *Signer) { sg.strategy = s }
}

// WithClock sets the clock used for timelock checks.
func WithClock(c clock.Clock) SignerOption {
	return func(sg *Signer) { sg.clock = c }
}

// WithLogger sets the signer's logger.
func WithLogger(l *zap.Logger) SignerOption {
	return func(sg *Signer) { sg.logger = l }
}

// NewSigner creates a Signer for key, fetching outputs through provider.
func NewSigner(key *KeyPair, provider network.Provider, opts ...SignerOption) (*Signer, error) {
	if key == nil || key.PublicKey == nil {
		return nil, ErrNilKey
	}
	if provider == nil {
		return nil, fmt.Errorf("wallet: signer needs a provider")
	}
	pub, err := wit.PublicKeyFromBytes(key.PublicKey.Compressed())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNilKey, err)
	}

	s := &Signer{
		key:      key,
		pub:      pub,
		address:  pub.Address(provider.Network()),
		provider: provider,
		strategy: utxo.SlimFit,
		clock:    clock.NewDefaultClock(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.pool = utxo.NewPool(s.address)
	s.logger = s.logger.With(zap.String("signer", s.address))
	return s, nil
}

// Address returns the bech32 address of the signer's key.
func (s *Signer) Address() string { return s.address }

// PKH returns the public key hash of the signer's key.
func (s *Signer) PKH() wit.PublicKeyHash { return s.pub.PKH() }

// PublicKey returns the signer's compressed public key.
func (s *Signer) PublicKey() wit.PublicKey { return s.pub }

// Network returns the network of the signer's provider.
func (s *Signer) Network() wit.Network { return s.provider.Network() }

// Provider returns the signer's network provider.
func (s *Signer) Provider() network.Provider { return s.provider }

// Strategy returns the default selection strategy.
func (s *Signer) Strategy() utxo.Strategy { return s.strategy }

// Clock returns the clock used for timelock checks.
func (s *Signer) Clock() clock.Clock { return s.clock }

// AddUtxos inserts owned outputs not already in the pool.
func (s *Signer) AddUtxos(utxos ...wit.Utxo) (included, excluded []wit.Utxo) {
	return s.pool.Add(utxos...)
}

// ConsumeUtxos removes outputs from the pool, returning those it did not hold.
func (s *Signer) ConsumeUtxos(utxos ...wit.Utxo) []wit.Utxo {
	return s.pool.Consume(utxos...)
}

// Utxos returns the pool contents, fetching them from the provider on first
// use or when reload is set.
func (s *Signer) Utxos(ctx context.Context, reload bool) ([]wit.Utxo, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	if reload || !s.loaded {
		fetched, err := s.provider.GetUtxos(ctx, s.address)
		if err != nil {
			return nil, fmt.Errorf("wallet: fetch utxos of %s: %w", s.address, err)
		}
		for i := range fetched {
			fetched[i].Signer = s.address
		}
		included, excluded := s.pool.Replace(fetched)
		s.loaded = true
		s.logger.Debug("utxos loaded",
			zap.Int("included", len(included)),
			zap.Int("excluded", len(excluded)))
	}
	return s.pool.Snapshot(), nil
}

// SelectUtxos picks outputs covering value without consuming them.
func (s *Signer) SelectUtxos(ctx context.Context, value wit.Nanowits, reload bool, strategy utxo.Strategy) ([]wit.Utxo, error) {
	utxos, err := s.Utxos(ctx, reload)
	if err != nil {
		return nil, err
	}
	return utxo.Select(utxos, value, strategy, s.clock.Now())
}

// CacheInfo summarizes the pool at the signer's current time.
func (s *Signer) CacheInfo() utxo.Info {
	return s.pool.CacheInfo(s.clock.Now())
}

// Balance asks the provider for the signer's balance.
func (s *Signer) Balance(ctx context.Context) (*network.Balance, error) {
	return s.provider.GetBalance(ctx, s.address)
}

// Delegatees lists the stakes withdrawable by this signer.
func (s *Signer) Delegatees(ctx context.Context, order *network.StakesOrder) ([]network.StakeEntry, error) {
	return s.provider.Stakes(ctx, network.StakesQuery{Withdrawer: s.address, Order: order})
}

// StakeEntryNonce returns the nonce of the stake this signer holds on validator.
func (s *Signer) StakeEntryNonce(ctx context.Context, validator string) (uint64, error) {
	entries, err := s.provider.Stakes(ctx, network.StakesQuery{Validator: validator, Withdrawer: s.address})
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, fmt.Errorf("%w: validator %s, withdrawer %s", ErrNoStakeEntry, validator, s.address)
	}
	return entries[0].Value.Nonce, nil
}

// SignHash signs a 32-byte digest, returning a DER signature and the public key.
func (s *Signer) SignHash(digest []byte) (wit.KeyedSignature, error) {
	if len(digest) != 32 {
		return wit.KeyedSignature{}, fmt.Errorf("%w: got %d", ErrInvalidDigest, len(digest))
	}
	if s.key.PrivateKey == nil {
		return wit.KeyedSignature{}, fmt.Errorf("%w: %s", ErrNoPrivateKey, s.address)
	}
	sig, err := s.key.PrivateKey.Sign(digest)
	if err != nil {
		return wit.KeyedSignature{}, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}
	return wit.KeyedSignature{PublicKey: s.pub, Signature: sig.Serialize()}, nil
}
