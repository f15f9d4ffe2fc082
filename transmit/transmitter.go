package transmit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
	"go.uber.org/zap"

	"github.com/bitfsorg/libwit-go/network"
	"github.com/bitfsorg/libwit-go/receipt"
	"github.com/bitfsorg/libwit-go/tx"
	"github.com/bitfsorg/libwit-go/wit"
)

const (
	// DefaultPollInterval is the pause between confirmation polls.
	DefaultPollInterval = 10 * time.Second
	// DefaultPollTimeout bounds a single confirmation poll.
	DefaultPollTimeout = 5 * time.Second
	// DefaultConfirmTimeout bounds a whole confirmation wait.
	DefaultConfirmTimeout = 600 * time.Second
)

// Transmitter signs, sends and confirms transactions of one payload against
// one ledger. Receipts go to a store shared with other transmitters.
//
// SignTransaction and SendTransaction are serialized per transmitter.
// ConfirmTransaction may run concurrently with them.
type Transmitter struct {
	payload tx.Payload
	ledger  tx.Ledger
	store   *receipt.Store

	changeAddress string
	clock         clock.Clock
	newTicker     func(time.Duration) ticker.Ticker
	pollInterval  time.Duration
	pollTimeout   time.Duration
	confirmWait   time.Duration
	logger        *zap.Logger
	metrics       *Metrics

	mu       sync.Mutex
	current  *network.RawTransaction
	released bool
	history  []wit.Hash

	// last is the newest receipt seen for current. It answers for current
	// once the store has evicted it.
	last atomic.Pointer[receipt.Receipt]
}

// Option configures a Transmitter.
type Option func(*Transmitter)

// WithChangeAddress sends change to addr instead of the ledger's default
// signer. The ledger must hold a signer for addr.
func WithChangeAddress(addr string) Option {
	return func(t *Transmitter) { t.changeAddress = addr }
}

// WithLogger sets the transmitter's logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Transmitter) { t.logger = l }
}

// WithClock sets the clock used for receipt timestamps and deadlines.
func WithClock(c clock.Clock) Option {
	return func(t *Transmitter) { t.clock = c }
}

// WithTicker replaces the ticker driving confirmation polls.
func WithTicker(fn func(interval time.Duration) ticker.Ticker) Option {
	return func(t *Transmitter) { t.newTicker = fn }
}

// WithPollInterval sets the pause between confirmation polls.
func WithPollInterval(d time.Duration) Option {
	return func(t *Transmitter) { t.pollInterval = d }
}

// WithPollTimeout bounds each confirmation poll.
func WithPollTimeout(d time.Duration) Option {
	return func(t *Transmitter) { t.pollTimeout = d }
}

// WithConfirmTimeout sets the default confirmation deadline.
func WithConfirmTimeout(d time.Duration) Option {
	return func(t *Transmitter) { t.confirmWait = d }
}

// WithMetrics records outcomes in m.
func WithMetrics(m *Metrics) Option {
	return func(t *Transmitter) { t.metrics = m }
}

// New creates a Transmitter for payload.
func New(payload tx.Payload, ledger tx.Ledger, store *receipt.Store, opts ...Option) (*Transmitter, error) {
	if payload == nil || ledger == nil || store == nil {
		return nil, errors.New("transmit: payload, ledger and store are required")
	}
	t := &Transmitter{
		payload:      payload,
		ledger:       ledger,
		store:        store,
		clock:        clock.NewDefaultClock(),
		newTicker:    func(d time.Duration) ticker.Ticker { return ticker.New(d) },
		pollInterval: DefaultPollInterval,
		pollTimeout:  DefaultPollTimeout,
		confirmWait:  DefaultConfirmTimeout,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.changeAddress == "" {
		t.changeAddress = ledger.Address()
	} else if ledger.Signer(t.changeAddress) == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChangeAddress, t.changeAddress)
	}
	t.logger = t.logger.Named("transmit").With(zap.Stringer("kind", payload.Kind()))
	return t, nil
}

// NewValueTransfers creates a Transmitter of value transfers.
func NewValueTransfers(ledger tx.Ledger, store *receipt.Store, opts ...Option) (*Transmitter, error) {
	return New(tx.NewValueTransfer(), ledger, store, opts...)
}

// NewStakeWithdrawals creates a Transmitter of stake withdrawals.
func NewStakeWithdrawals(ledger tx.Ledger, store *receipt.Store, opts ...Option) (*Transmitter, error) {
	return New(tx.NewStakeWithdrawal(), ledger, store, opts...)
}

// NewDataRequests creates a Transmitter of data requests for a fixed Radon
// request.
func NewDataRequests(req tx.RadonRequest, ledger tx.Ledger, store *receipt.Store, opts ...Option) (*Transmitter, error) {
	return New(tx.NewDataRequest(req), ledger, store, opts...)
}

// NewDataRequestTemplates creates a Transmitter of data requests whose Radon
// request is built from each target's arguments.
func NewDataRequestTemplates(tmpl tx.RadonTemplate, ledger tx.Ledger, store *receipt.Store, opts ...Option) (*Transmitter, error) {
	return New(tx.NewDataRequestTemplate(tmpl), ledger, store, opts...)
}

// Kind returns the kind of transaction the transmitter handles.
func (t *Transmitter) Kind() tx.Kind { return t.payload.Kind() }

// Transactions lists the hashes signed by this transmitter, oldest first.
func (t *Transmitter) Transactions() []wit.Hash {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]wit.Hash(nil), t.history...)
}

// inflight returns the receipt of the current signed transaction, if any.
// Callers hold t.mu.
func (t *Transmitter) inflight() (*receipt.Receipt, bool) {
	if t.current == nil {
		return nil, false
	}
	if r, ok := t.store.Get(t.current.Hash); ok {
		return r, true
	}
	if last := t.last.Load(); last != nil && last.Hash == t.current.Hash {
		return last.Clone(), true
	}
	return nil, false
}

// track records r as the newest receipt of the current transaction.
func (t *Transmitter) track(r *receipt.Receipt) {
	t.last.Store(r.Clone())
}

// remember records r if it belongs to the tracked transaction. It is safe
// to call without t.mu.
func (t *Transmitter) remember(r *receipt.Receipt) {
	c := r.Clone()
	for {
		prev := t.last.Load()
		if prev == nil || prev.Hash != r.Hash || t.last.CompareAndSwap(prev, c) {
			return
		}
	}
}

// SignTransaction covers and signs a transaction for target, replacing the
// transmitter's current one. A nil target re-signs the last target. With
// reload every signer's pool is refreshed from the node before covering.
func (t *Transmitter) SignTransaction(ctx context.Context, target tx.Target, reload bool) (*receipt.Receipt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sign(ctx, target, reload)
}

func (t *Transmitter) sign(ctx context.Context, target tx.Target, reload bool) (*receipt.Receipt, error) {
	if target == nil {
		target = t.payload.Target()
	}
	if target == nil {
		return nil, classify(tx.ErrNoTarget, t.ledger.Address())
	}
	if err := t.payload.Validate(target); err != nil {
		return nil, classify(err, t.ledger.Address())
	}

	if r, ok := t.inflight(); ok {
		switch {
		case r.Status == receipt.Signed:
			t.returnInputs()
			if err := t.store.Delete(r.Hash); err != nil {
				t.logger.Warn("drop superseded receipt", zap.Stringer("hash", r.Hash), zap.Error(err))
			}
		case r.Status == receipt.Pending && r.Error == "":
			return nil, fmt.Errorf("%w: %s", ErrInFlight, r.Hash)
		}
	}
	t.current = nil
	t.last.Store(nil)
	t.released = false

	if err := t.payload.Reset(target); err != nil {
		return nil, classify(err, t.ledger.Address())
	}
	if w, limit := t.payload.Weight(), t.payload.MaxWeight(); w > limit {
		return nil, &Error{Kind: KindWeightExceeded, Address: t.ledger.Address(), Weight: w, MaxWeight: limit}
	}

	err := t.payload.Cover(ctx, t.ledger, tx.CoverOptions{Reload: reload, ChangeAddress: t.changeAddress})
	if err != nil {
		return nil, classify(err, t.ledger.Address())
	}
	if !t.payload.Prepared() {
		t.abandon(target)
		return nil, &Error{Kind: KindInsufficientFunds, Address: t.ledger.Address(), Err: tx.ErrNotPrepared}
	}
	if w, limit := t.payload.Weight(), t.payload.MaxWeight(); w > limit {
		t.abandon(target)
		return nil, &Error{Kind: KindWeightExceeded, Address: t.ledger.Address(), Weight: w, MaxWeight: limit}
	}

	raw, r, err := t.signPayload()
	if err != nil {
		t.abandon(target)
		return nil, err
	}
	if err := t.store.Upsert(r); err != nil {
		t.abandon(target)
		return nil, err
	}
	t.current = raw
	t.track(r)
	if n := len(t.history); n == 0 || t.history[n-1] != raw.Hash {
		t.history = append(t.history, raw.Hash)
	}
	t.metrics.observe(evSigned, t.payload.Kind())
	t.logger.Debug("signed",
		zap.Stringer("hash", raw.Hash),
		zap.Int("inputs", len(r.Inputs)),
		zap.Stringer("fees", r.Fees),
		zap.Uint64("weight", r.Weight))
	return r, nil
}

// abandon hands the payload's inputs back and clears it.
func (t *Transmitter) abandon(target tx.Target) {
	t.returnInputs()
	_ = t.payload.Reset(target)
}

func (t *Transmitter) returnInputs() {
	inputs := t.payload.Inputs()
	if len(inputs) == 0 {
		return
	}
	if _, excluded := t.ledger.AddUtxos(inputs...); len(excluded) > 0 {
		t.logger.Debug("inputs not returned", zap.Int("count", len(excluded)))
	}
}

// signPayload signs the prepared payload and builds its first receipt.
func (t *Transmitter) signPayload() (*network.RawTransaction, *receipt.Receipt, error) {
	p := t.payload
	sigs, err := tx.Sign(p, t.ledger)
	if err != nil {
		return nil, nil, classify(err, t.ledger.Address())
	}
	hash, err := p.Hash()
	if err != nil {
		return nil, nil, err
	}
	bytes, err := tx.SignedBytes(p, sigs)
	if err != nil {
		return nil, nil, err
	}
	plain, err := tx.SignedJSON(p, sigs, false)
	if err != nil {
		return nil, nil, err
	}
	human, err := tx.SignedJSON(p, sigs, true)
	if err != nil {
		return nil, nil, err
	}

	r := &receipt.Receipt{
		Hash:      hash,
		Type:      p.Kind(),
		Status:    receipt.Signed,
		Tx:        human,
		Fees:      p.Fees(),
		Value:     p.Value(),
		Change:    p.Change(),
		Weight:    p.Weight(),
		From:      signerAddresses(sigs, t.ledger.Network()),
		Inputs:    p.Inputs(),
		Outputs:   p.Outputs(),
		Timestamp: t.clock.Now().UnixMilli(),
		Extra:     p.ReceiptFields(),
	}
	return &network.RawTransaction{Hash: hash, Bytes: bytes, JSON: plain}, r, nil
}

func signerAddresses(sigs []wit.KeyedSignature, n wit.Network) []string {
	seen := make(map[wit.PublicKey]bool, len(sigs))
	var out []string
	for _, s := range sigs {
		if seen[s.PublicKey] {
			continue
		}
		seen[s.PublicKey] = true
		out = append(out, s.PublicKey.Address(n))
	}
	return out
}

// SendTransaction hands the current transaction to the node, signing it
// first when nothing is in flight or a target is given. A transaction the
// node already holds is returned as is.
//
// On rejection the error is recorded on the receipt and the inputs go back
// to their owners; a later call retries the same transaction.
func (t *Transmitter) SendTransaction(ctx context.Context, target tx.Target) (*receipt.Receipt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.inflight()
	if !ok || target != nil {
		var err error
		if r, err = t.sign(ctx, target, false); err != nil {
			return nil, err
		}
	}
	if r.Status == receipt.Removed {
		return r, &Error{Kind: KindMempool, Hash: r.Hash, Receipt: r}
	}
	// Only a fresh signature or a failed submission is sent.
	if r.Status != receipt.Signed && !(r.Status == receipt.Pending && r.Error != "") {
		return r, nil
	}

	if t.released {
		if err := t.reserveInputs(ctx); err != nil {
			return nil, err
		}
		if r, ok = t.inflight(); !ok {
			return nil, fmt.Errorf("%w: %s", receipt.ErrNotFound, t.current.Hash)
		}
	}

	raw := *t.current
	r, err := t.store.Update(raw.Hash, func(r *receipt.Receipt) error {
		r.Status = receipt.Pending
		r.Error = ""
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.track(r)

	accepted, err := t.ledger.Provider().SendRawTransaction(ctx, raw)
	if err == nil && !accepted {
		err = network.ErrBroadcastRejected
	}
	if err != nil {
		return nil, t.rejected(raw, err)
	}

	r, err = t.store.Update(raw.Hash, func(r *receipt.Receipt) error {
		r.Status = receipt.Relayed
		r.Timestamp = t.clock.Now().UnixMilli()
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.track(r)
	t.metrics.observe(evSent, t.payload.Kind())
	t.logger.Info("relayed", zap.Stringer("hash", raw.Hash))
	return r, nil
}

// rejected records a failed submission and returns the inputs.
func (t *Transmitter) rejected(raw network.RawTransaction, cause error) error {
	terr := &Error{
		Kind:    KindTransmission,
		Hash:    raw.Hash,
		Address: t.ledger.Address(),
		Bytes:   raw.Bytes,
		Err:     cause,
	}
	r, err := t.store.Update(raw.Hash, func(r *receipt.Receipt) error {
		r.Error = terr.Error()
		return nil
	})
	if err != nil {
		t.logger.Warn("record rejection", zap.Stringer("hash", raw.Hash), zap.Error(err))
	} else {
		t.track(r)
	}
	t.returnInputs()
	t.released = true
	t.metrics.observe(evRejected, t.payload.Kind())
	t.logger.Info("rejected", zap.Stringer("hash", raw.Hash), zap.Error(cause))
	return terr
}

// reserveInputs takes back the inputs handed out after a rejection. If any
// was spent meanwhile the transaction is signed again from its target.
func (t *Transmitter) reserveInputs(ctx context.Context) error {
	unlock := t.ledger.LockCovering()
	inputs := t.payload.Inputs()
	unmatched := t.ledger.ConsumeUtxos(inputs...)
	if len(unmatched) > 0 && len(unmatched) < len(inputs) {
		t.ledger.AddUtxos(subtract(inputs, unmatched)...)
	}
	unlock()

	if len(unmatched) == 0 {
		t.released = false
		return nil
	}
	t.logger.Debug("inputs spent since rejection, signing again",
		zap.Stringer("hash", t.current.Hash),
		zap.Int("missing", len(unmatched)))
	t.current = nil
	_, err := t.sign(ctx, nil, false)
	return err
}

func subtract(all, drop []wit.Utxo) []wit.Utxo {
	skip := make(map[wit.OutputPointer]bool, len(drop))
	for _, u := range drop {
		skip[u.OutputPointer] = true
	}
	var out []wit.Utxo
	for _, u := range all {
		if !skip[u.OutputPointer] {
			out = append(out, u)
		}
	}
	return out
}
