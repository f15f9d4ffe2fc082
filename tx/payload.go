package tx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bitfsorg/libwit-go/network"
	"github.com/bitfsorg/libwit-go/wit"
)

// maxCoverRounds bounds the fee convergence loop.
const maxCoverRounds = 16

// CoverOptions tunes a Cover call.
type CoverOptions struct {
	// Reload refreshes every signer's pool from the provider before the
	// first selection.
	Reload bool
	// ChangeAddress receives change. Empty means the ledger's default signer.
	ChangeAddress string
}

// Payload is one transaction under construction. A payload moves from empty
// to target-set through Reset, to prepared through Cover, and is hashed once
// prepared. Implementations are not safe for concurrent use.
type Payload interface {
	Kind() Kind
	// Target returns the installed target, or nil.
	Target() Target
	// Validate checks t without touching payload state.
	Validate(t Target) error
	// Reset clears every derived field and then installs t after validating
	// it. A payload that fails validation is left empty.
	Reset(t Target) error
	// Cover funds the payload from the ledger, iterating until the fee
	// estimate stops growing. Inputs consumed by an earlier Cover are
	// returned to their owners first.
	Cover(ctx context.Context, l Ledger, opts CoverOptions) error
	Covered() bool
	Prepared() bool

	Inputs() []wit.Utxo
	Outputs() []wit.ValueTransferOutput
	Fees() wit.Nanowits
	Change() wit.Nanowits
	// Value is the amount the payload spends besides fees and change.
	Value() wit.Nanowits
	Weight() uint64
	MaxWeight() uint64

	Hash() (wit.Hash, error)
	Body() (Body, error)
	MarshalBody() ([]byte, error)
	// JSON renders the body. The node accepts the plain form; humanize is
	// for receipts and logs.
	JSON(humanize bool) (json.RawMessage, error)
	// ReceiptFields are kind-specific fields copied onto the receipt.
	ReceiptFields() map[string]interface{}
	// MultiSig reports whether the payload carries one signature per input.
	MultiSig() bool

	isPayload()
}

// New returns an empty payload of the given kind. Data requests need their
// Radon script and are built with NewDataRequest instead.
func New(kind Kind) (Payload, error) {
	switch kind {
	case KindValueTransfer:
		return NewValueTransfer(), nil
	case KindStakeWithdrawal:
		return NewStakeWithdrawal(), nil
	case KindDataRequest:
		return nil, fmt.Errorf("%w: data requests need a radon request", ErrUnsupported)
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
}

// base holds the state every input-spending payload derives while covering.
type base struct {
	inputs  []wit.Utxo
	outputs []wit.ValueTransferOutput
	fees    wit.Nanowits
	change  wit.Nanowits
	covered bool
}

func (b *base) clear() { *b = base{} }

func (b *base) Inputs() []wit.Utxo { return append([]wit.Utxo(nil), b.inputs...) }

func (b *base) Outputs() []wit.ValueTransferOutput {
	return append([]wit.ValueTransferOutput(nil), b.outputs...)
}

func (b *base) Fees() wit.Nanowits   { return b.fees }
func (b *base) Change() wit.Nanowits { return b.change }
func (b *base) Covered() bool        { return b.covered }

func (b *base) inputPointers() []wit.OutputPointer {
	ops := make([]wit.OutputPointer, len(b.inputs))
	for i, u := range b.inputs {
		ops[i] = u.OutputPointer
	}
	return ops
}

// release hands inputs back to their owners and clears derived state.
func (b *base) release(l Ledger) {
	if len(b.inputs) > 0 {
		l.AddUtxos(b.inputs...)
	}
	b.clear()
}

// spend describes what a payload needs funded.
type spend interface {
	Kind() Kind
	feeSpec() FeeSpec
	// fixedOutputs are the outputs present regardless of change.
	fixedOutputs() []wit.ValueTransferOutput
	// spendValue is the value to fund for a given fee.
	spendValue(fee wit.Nanowits) wit.Nanowits
	weightFor(inputs, outputs int) uint64
}

// feeEstimator prices a weight, fetching the fee table at most once.
type feeEstimator struct {
	ctx      context.Context
	provider network.Provider
	kind     Kind
	spec     FeeSpec
	table    network.Priorities
}

func (e *feeEstimator) estimate(weight uint64) (wit.Nanowits, error) {
	if e.spec.Explicit() {
		return e.spec.Amount, nil
	}
	if e.table == nil {
		table, err := e.provider.Priorities(e.ctx)
		if err != nil {
			return 0, err
		}
		e.table = table
	}
	return e.table.Fee(e.kind.priorityPrefix(), e.spec.Priority, weight)
}

// cover runs the fee convergence loop for s, leaving the result in b. On any
// error every consumed input is returned and b is cleared.
func cover(ctx context.Context, l Ledger, b *base, s spend, opts CoverOptions) error {
	unlock := l.LockCovering()
	defer unlock()

	b.release(l)

	changeAddr := opts.ChangeAddress
	if changeAddr == "" {
		changeAddr = l.Address()
	}
	fixed := s.fixedOutputs()
	est := &feeEstimator{ctx: ctx, provider: l.Provider(), kind: s.Kind(), spec: s.feeSpec()}

	fee, err := est.estimate(s.weightFor(0, len(fixed)))
	if err != nil {
		return err
	}

	for round := 0; round < maxCoverRounds; round++ {
		// 1. Return what the previous round took.
		b.release(l)

		// 2. Select and reserve value + fee.
		need := s.spendValue(fee) + fee
		selected, err := l.SelectUtxos(ctx, need, opts.Reload && round == 0)
		if err != nil {
			return err
		}
		if unmatched := l.ConsumeUtxos(selected...); len(unmatched) > 0 {
			l.AddUtxos(subtract(selected, unmatched)...)
			return fmt.Errorf("%w: %s", ErrUtxoNotHeld, unmatched[0].OutputPointer)
		}

		// 3. Derive change and outputs.
		b.inputs = selected
		b.fees = fee
		b.change = wit.SumValues(selected) - need
		b.outputs = append(b.outputs, fixed...)
		if b.change > 0 {
			b.outputs = append(b.outputs, wit.ValueTransferOutput{PKH: changeAddr, Value: b.change})
		}

		// 4. Re-price at the resulting weight.
		next, err := est.estimate(s.weightFor(len(b.inputs), len(b.outputs)))
		if err != nil {
			b.release(l)
			return err
		}
		if next <= fee {
			b.covered = true
			return nil
		}
		fee = next
	}
	b.release(l)
	return fmt.Errorf("%w: after %d rounds", ErrFeeNotConverged, maxCoverRounds)
}

func subtract(all, drop []wit.Utxo) []wit.Utxo {
	skip := make(map[wit.OutputPointer]struct{}, len(drop))
	for _, u := range drop {
		skip[u.OutputPointer] = struct{}{}
	}
	var out []wit.Utxo
	for _, u := range all {
		if _, ok := skip[u.OutputPointer]; !ok {
			out = append(out, u)
		}
	}
	return out
}

// wireOutputs converts outputs to wire form, checking each address.
func wireOutputs(outputs []wit.ValueTransferOutput) ([]Output, error) {
	out := make([]Output, len(outputs))
	for i, o := range outputs {
		pkh, _, err := wit.ParseAddress(o.PKH)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		out[i] = Output{PKH: pkh, Value: o.Value, TimeLock: o.TimeLock}
	}
	return out, nil
}

// validateOutputs checks value transfer outputs against the ledger network
// when one is given.
func validateOutputs(outputs []wit.ValueTransferOutput, net wit.Network) error {
	for i, o := range outputs {
		if o.Value == 0 {
			return fmt.Errorf("%w: output %d has zero value", ErrInvalidTarget, i)
		}
		_, n, err := wit.ParseAddress(o.PKH)
		if err != nil {
			return fmt.Errorf("%w: output %d: %w", ErrInvalidTarget, i, err)
		}
		if net != "" && n != net {
			return fmt.Errorf("%w: output %d is on %s, ledger on %s", ErrInvalidTarget, i, n, net)
		}
	}
	return nil
}

// amount renders a value for JSON: nanowits for the node, wits for people.
func amount(n wit.Nanowits, humanize bool) interface{} {
	if humanize {
		return n.Wits()
	}
	return uint64(n)
}

type outputJSON struct {
	PKH      string      `json:"pkh"`
	Value    interface{} `json:"value"`
	TimeLock uint64      `json:"time_lock"`
}

type inputJSON struct {
	OutputPointer string `json:"output_pointer"`
}

func inputsJSON(inputs []wit.Utxo) []inputJSON {
	out := make([]inputJSON, len(inputs))
	for i, u := range inputs {
		out[i] = inputJSON{OutputPointer: u.OutputPointer.String()}
	}
	return out
}

func outputsJSON(outputs []wit.ValueTransferOutput, humanize bool) []outputJSON {
	out := make([]outputJSON, len(outputs))
	for i, o := range outputs {
		out[i] = outputJSON{PKH: o.PKH, Value: amount(o.Value, humanize), TimeLock: o.TimeLock}
	}
	return out
}

// Sign produces the signatures p needs from the ledger: one per input, made
// by the input's owner, or a single default-signer signature for payloads
// without inputs.
func Sign(p Payload, l Ledger) ([]wit.KeyedSignature, error) {
	hash, err := p.Hash()
	if err != nil {
		return nil, err
	}
	if !p.MultiSig() {
		s := l.Signer("")
		if s == nil {
			return nil, fmt.Errorf("%w: default", ErrUnknownSigner)
		}
		sig, err := s.SignHash(hash[:])
		if err != nil {
			return nil, err
		}
		return []wit.KeyedSignature{sig}, nil
	}

	byOwner := make(map[string]wit.KeyedSignature)
	sigs := make([]wit.KeyedSignature, 0, len(p.Inputs()))
	for _, in := range p.Inputs() {
		sig, ok := byOwner[in.Signer]
		if !ok {
			s := l.Signer(in.Signer)
			if s == nil || in.Signer == "" {
				return nil, fmt.Errorf("%w: %q", ErrUnknownSigner, in.Signer)
			}
			if sig, err = s.SignHash(hash[:]); err != nil {
				return nil, err
			}
			byOwner[in.Signer] = sig
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}
