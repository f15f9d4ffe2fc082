package tx

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/bitfsorg/libwit-go/network"
	"github.com/bitfsorg/libwit-go/wit"
)

const (
	// WithdrawalWeight is the fixed weight of a stake withdrawal, which is
	// also its maximum.
	WithdrawalWeight = 153
	// WithdrawalTimelock locks withdrawn value for two weeks, in seconds.
	WithdrawalTimelock = 1_209_600
)

// StakeWithdrawal withdraws staked value back to the ledger's default
// signer. It spends no inputs and carries a single signature.
type StakeWithdrawal struct {
	target     *StakeWithdrawalTarget
	fees       wit.Nanowits
	change     wit.Nanowits
	nonce      uint64
	withdrawer string
	outputs    []wit.ValueTransferOutput
}

var _ Payload = (*StakeWithdrawal)(nil)

// NewStakeWithdrawal returns an empty withdrawal payload.
func NewStakeWithdrawal() *StakeWithdrawal { return &StakeWithdrawal{} }

func (s *StakeWithdrawal) Kind() Kind { return KindStakeWithdrawal }
func (s *StakeWithdrawal) isPayload() {}

func (s *StakeWithdrawal) Target() Target {
	if s.target == nil {
		return nil
	}
	return *s.target
}

func stakeWithdrawalTarget(t Target) (StakeWithdrawalTarget, error) {
	switch v := t.(type) {
	case StakeWithdrawalTarget:
		return v, nil
	case *StakeWithdrawalTarget:
		if v != nil {
			return *v, nil
		}
	}
	return StakeWithdrawalTarget{}, fmt.Errorf("%w: want a stake withdrawal target, got %T", ErrInvalidTarget, t)
}

func (s *StakeWithdrawal) Validate(t Target) error {
	_, err := s.check(t)
	return err
}

func (s *StakeWithdrawal) check(t Target) (StakeWithdrawalTarget, error) {
	target, err := stakeWithdrawalTarget(t)
	if err != nil {
		return target, err
	}
	if target.Fees.IsZero() {
		target.Fees = Priority(network.Medium)
	}
	if err := target.Fees.validate(); err != nil {
		return target, err
	}
	if target.Value == 0 {
		return target, fmt.Errorf("%w: value must be positive", ErrInvalidTarget)
	}
	if _, _, err := wit.ParseAddress(target.Validator); err != nil {
		return target, fmt.Errorf("%w: validator: %w", ErrInvalidTarget, err)
	}
	if target.Nonce != nil {
		if *target.Nonce == 0 {
			return target, fmt.Errorf("%w: nonce must be positive", ErrInvalidTarget)
		}
		n := *target.Nonce
		target.Nonce = &n
	}
	if target.Fees.Explicit() && target.Value <= target.Fees.Amount {
		return target, fmt.Errorf("%w: value %d, fee %d", ErrNoChange, target.Value, target.Fees.Amount)
	}
	return target, nil
}

func (s *StakeWithdrawal) clear() {
	*s = StakeWithdrawal{}
}

func (s *StakeWithdrawal) Reset(t Target) error {
	s.clear()
	target, err := s.check(t)
	if err != nil {
		return err
	}
	s.target = &target
	return nil
}

// Cover prices the withdrawal and resolves its nonce. Reload and change
// address do not apply: nothing is selected and the withdrawal always pays
// the default signer.
func (s *StakeWithdrawal) Cover(ctx context.Context, l Ledger, _ CoverOptions) error {
	if s.target == nil {
		return ErrNoTarget
	}
	target := *s.target
	s.clear()
	s.target = &target

	_, net, err := wit.ParseAddress(target.Validator)
	if err != nil {
		return fmt.Errorf("%w: validator: %w", ErrInvalidTarget, err)
	}
	if net != l.Network() {
		return fmt.Errorf("%w: validator on %s, ledger on %s", ErrInvalidTarget, net, l.Network())
	}

	est := &feeEstimator{ctx: ctx, provider: l.Provider(), kind: KindStakeWithdrawal, spec: target.Fees}
	fee, err := est.estimate(WithdrawalWeight)
	if err != nil {
		return err
	}
	if target.Value <= fee {
		return fmt.Errorf("%w: value %d, fee %d", ErrNoChange, target.Value, fee)
	}

	nonce := uint64(0)
	if target.Nonce != nil {
		nonce = *target.Nonce
	} else {
		signer := l.Signer("")
		if signer == nil {
			return fmt.Errorf("%w: default", ErrUnknownSigner)
		}
		if nonce, err = signer.StakeEntryNonce(ctx, target.Validator); err != nil {
			return err
		}
	}

	s.fees = fee
	s.change = target.Value - fee
	s.nonce = nonce
	s.withdrawer = l.Address()
	s.outputs = []wit.ValueTransferOutput{{
		PKH:      s.withdrawer,
		Value:    s.change,
		TimeLock: WithdrawalTimelock,
	}}
	return nil
}

func (s *StakeWithdrawal) Covered() bool  { return len(s.outputs) > 0 }
func (s *StakeWithdrawal) Prepared() bool { return s.target != nil && len(s.outputs) > 0 }

func (s *StakeWithdrawal) Inputs() []wit.Utxo { return nil }

func (s *StakeWithdrawal) Outputs() []wit.ValueTransferOutput {
	return append([]wit.ValueTransferOutput(nil), s.outputs...)
}

func (s *StakeWithdrawal) Fees() wit.Nanowits   { return s.fees }
func (s *StakeWithdrawal) Change() wit.Nanowits { return s.change }

// Value is the amount taken from the stake, fee included.
func (s *StakeWithdrawal) Value() wit.Nanowits {
	if s.target == nil {
		return 0
	}
	return s.target.Value
}

// Nonce is the stake entry nonce the withdrawal was built against.
func (s *StakeWithdrawal) Nonce() uint64 { return s.nonce }

func (s *StakeWithdrawal) Weight() uint64    { return WithdrawalWeight }
func (s *StakeWithdrawal) MaxWeight() uint64 { return WithdrawalWeight }
func (s *StakeWithdrawal) MultiSig() bool    { return false }

func (s *StakeWithdrawal) Body() (Body, error) {
	if !s.Prepared() {
		return nil, ErrNotPrepared
	}
	operator, _, err := wit.ParseAddress(s.target.Validator)
	if err != nil {
		return nil, err
	}
	outputs, err := wireOutputs(s.outputs)
	if err != nil {
		return nil, err
	}
	return UnstakeBody{
		Operator:   operator,
		Withdrawal: outputs[0],
		Fee:        s.fees,
		Nonce:      s.nonce,
	}, nil
}

func (s *StakeWithdrawal) MarshalBody() ([]byte, error) {
	body, err := s.Body()
	if err != nil {
		return nil, err
	}
	return body.Marshal(), nil
}

func (s *StakeWithdrawal) Hash() (wit.Hash, error) {
	raw, err := s.MarshalBody()
	if err != nil {
		return wit.Hash{}, err
	}
	return sha256.Sum256(raw), nil
}

func (s *StakeWithdrawal) JSON(humanize bool) (json.RawMessage, error) {
	if !s.Prepared() {
		return nil, ErrNotPrepared
	}
	return json.Marshal(struct {
		Operator   string      `json:"operator"`
		Withdrawal outputJSON  `json:"withdrawal"`
		Fee        interface{} `json:"fee"`
		Nonce      uint64      `json:"nonce"`
	}{
		Operator:   s.target.Validator,
		Withdrawal: outputsJSON(s.outputs, humanize)[0],
		Fee:        amount(s.fees, humanize),
		Nonce:      s.nonce,
	})
}

func (s *StakeWithdrawal) ReceiptFields() map[string]interface{} {
	if !s.Prepared() {
		return nil
	}
	return map[string]interface{}{
		"nonce":      s.nonce,
		"outputLock": uint64(WithdrawalTimelock),
		"validator":  s.target.Validator,
		"withdrawer": s.withdrawer,
	}
}
