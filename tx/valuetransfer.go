package tx

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/bitfsorg/libwit-go/network"
	"github.com/bitfsorg/libwit-go/wit"
)

// ValueTransferMaxWeight is the largest value transfer the node accepts.
const ValueTransferMaxWeight = 20_000

// ValueTransfer pays a set of outputs from any number of inputs.
type ValueTransfer struct {
	base
	target *ValueTransferTarget
}

var _ Payload = (*ValueTransfer)(nil)

// NewValueTransfer returns an empty value transfer payload.
func NewValueTransfer() *ValueTransfer { return &ValueTransfer{} }

func (v *ValueTransfer) Kind() Kind { return KindValueTransfer }
func (v *ValueTransfer) isPayload() {}

func (v *ValueTransfer) Target() Target {
	if v.target == nil {
		return nil
	}
	return *v.target
}

func valueTransferTarget(t Target) (ValueTransferTarget, error) {
	switch vt := t.(type) {
	case ValueTransferTarget:
		return vt, nil
	case *ValueTransferTarget:
		if vt != nil {
			return *vt, nil
		}
	}
	return ValueTransferTarget{}, fmt.Errorf("%w: want a value transfer target, got %T", ErrInvalidTarget, t)
}

func (v *ValueTransfer) Validate(t Target) error {
	_, err := v.check(t)
	return err
}

func (v *ValueTransfer) check(t Target) (ValueTransferTarget, error) {
	target, err := valueTransferTarget(t)
	if err != nil {
		return target, err
	}
	if target.Fees.IsZero() {
		target.Fees = Priority(network.Medium)
	}
	if err := target.Fees.validate(); err != nil {
		return target, err
	}
	if len(target.Outputs) == 0 {
		return target, fmt.Errorf("%w: no outputs", ErrInvalidTarget)
	}
	if err := validateOutputs(target.Outputs, ""); err != nil {
		return target, err
	}
	target.Outputs = append([]wit.ValueTransferOutput(nil), target.Outputs...)
	return target, nil
}

func (v *ValueTransfer) Reset(t Target) error {
	v.base.clear()
	v.target = nil

	target, err := v.check(t)
	if err != nil {
		return err
	}
	v.target = &target
	return nil
}

func (v *ValueTransfer) Cover(ctx context.Context, l Ledger, opts CoverOptions) error {
	if v.target == nil {
		return ErrNoTarget
	}
	if err := validateOutputs(v.target.Outputs, l.Network()); err != nil {
		return err
	}
	return cover(ctx, l, &v.base, v, opts)
}

func (v *ValueTransfer) feeSpec() FeeSpec { return v.target.Fees }

func (v *ValueTransfer) fixedOutputs() []wit.ValueTransferOutput { return v.target.Outputs }

func (v *ValueTransfer) spendValue(wit.Nanowits) wit.Nanowits {
	return v.Value()
}

func (v *ValueTransfer) weightFor(inputs, outputs int) uint64 {
	return inputWeight*uint64(inputs) + outputWeight*uint64(outputs)
}

func (v *ValueTransfer) Prepared() bool { return v.target != nil && v.covered }

// Value is the total paid to the target outputs.
func (v *ValueTransfer) Value() wit.Nanowits {
	if v.target == nil {
		return 0
	}
	var total wit.Nanowits
	for _, o := range v.target.Outputs {
		total += o.Value
	}
	return total
}

func (v *ValueTransfer) Weight() uint64 {
	outputs := len(v.outputs)
	if !v.covered && v.target != nil {
		outputs = len(v.target.Outputs)
	}
	return v.weightFor(len(v.inputs), outputs)
}

func (v *ValueTransfer) MaxWeight() uint64 { return ValueTransferMaxWeight }
func (v *ValueTransfer) MultiSig() bool    { return true }

func (v *ValueTransfer) Body() (Body, error) {
	if !v.Prepared() {
		return nil, ErrNotPrepared
	}
	outputs, err := wireOutputs(v.outputs)
	if err != nil {
		return nil, err
	}
	return VTBody{Inputs: v.inputPointers(), Outputs: outputs}, nil
}

func (v *ValueTransfer) MarshalBody() ([]byte, error) {
	body, err := v.Body()
	if err != nil {
		return nil, err
	}
	return body.Marshal(), nil
}

func (v *ValueTransfer) Hash() (wit.Hash, error) {
	raw, err := v.MarshalBody()
	if err != nil {
		return wit.Hash{}, err
	}
	return sha256.Sum256(raw), nil
}

func (v *ValueTransfer) JSON(humanize bool) (json.RawMessage, error) {
	if !v.Prepared() {
		return nil, ErrNotPrepared
	}
	return json.Marshal(struct {
		Inputs  []inputJSON  `json:"inputs"`
		Outputs []outputJSON `json:"outputs"`
	}{inputsJSON(v.inputs), outputsJSON(v.outputs, humanize)})
}

func (v *ValueTransfer) ReceiptFields() map[string]interface{} {
	if !v.Prepared() {
		return nil
	}
	return map[string]interface{}{"recipients": len(v.target.Outputs)}
}
