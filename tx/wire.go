package tx

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/bitfsorg/libwit-go/wit"
)

// Canonical binary form of transaction bodies. Field numbers follow the
// node's protobuf schema. Zero scalars are omitted, embedded messages are
// always written.

// Output is the wire form of a value transfer output.
type Output struct {
	PKH      wit.PublicKeyHash
	Value    wit.Nanowits
	TimeLock uint64
}

// DROutput is the wire form of a data request's output descriptor.
type DROutput struct {
	DataRequest            []byte
	WitnessReward          wit.Nanowits
	Witnesses              uint16
	CommitAndRevealFee     wit.Nanowits
	MinConsensusPercentage uint32
	Collateral             wit.Nanowits
}

// Body is a typed transaction body.
type Body interface {
	Kind() Kind
	Marshal() []byte
}

// DRBody is the body of a data request transaction.
type DRBody struct {
	Inputs   []wit.OutputPointer
	Outputs  []Output
	DROutput DROutput
}

// VTBody is the body of a value transfer transaction.
type VTBody struct {
	Inputs  []wit.OutputPointer
	Outputs []Output
}

// UnstakeBody is the body of a stake withdrawal transaction.
type UnstakeBody struct {
	Operator   wit.PublicKeyHash
	Withdrawal Output
	Fee        wit.Nanowits
	Nonce      uint64
}

func (DRBody) Kind() Kind      { return KindDataRequest }
func (VTBody) Kind() Kind      { return KindValueTransfer }
func (UnstakeBody) Kind() Kind { return KindStakeWithdrawal }

func (b DRBody) Marshal() []byte {
	var out []byte
	out = appendInputs(out, 1, b.Inputs)
	out = appendOutputs(out, 2, b.Outputs)
	return appendMessage(out, 3, b.DROutput.Marshal())
}

func (b VTBody) Marshal() []byte {
	var out []byte
	out = appendInputs(out, 1, b.Inputs)
	return appendOutputs(out, 2, b.Outputs)
}

func (b UnstakeBody) Marshal() []byte {
	var out []byte
	out = appendMessage(out, 1, marshalPKH(b.Operator))
	out = appendMessage(out, 2, b.Withdrawal.Marshal())
	out = appendFixed64(out, 3, uint64(b.Fee))
	return appendFixed64(out, 4, b.Nonce)
}

func (o Output) Marshal() []byte {
	var out []byte
	out = appendMessage(out, 1, marshalPKH(o.PKH))
	out = appendFixed64(out, 2, uint64(o.Value))
	return appendFixed64(out, 3, o.TimeLock)
}

func (d DROutput) Marshal() []byte {
	var out []byte
	out = appendBytes(out, 1, d.DataRequest)
	out = appendFixed64(out, 2, uint64(d.WitnessReward))
	out = appendVarint(out, 3, uint64(d.Witnesses))
	out = appendFixed64(out, 4, uint64(d.CommitAndRevealFee))
	out = appendVarint(out, 5, uint64(d.MinConsensusPercentage))
	return appendFixed64(out, 6, uint64(d.Collateral))
}

// MarshalSigned encodes a signed transaction. Withdrawals carry exactly one
// signature, the other kinds one per input.
func MarshalSigned(body Body, sigs []wit.KeyedSignature) ([]byte, error) {
	out := appendMessage(nil, 1, body.Marshal())
	if body.Kind() == KindStakeWithdrawal {
		if len(sigs) != 1 {
			return nil, fmt.Errorf("%w: withdrawal needs one signature, got %d", ErrInvalidWire, len(sigs))
		}
		return appendMessage(out, 2, marshalKeyedSignature(sigs[0])), nil
	}
	for _, sig := range sigs {
		out = appendMessage(out, 2, marshalKeyedSignature(sig))
	}
	return out, nil
}

func marshalPKH(pkh wit.PublicKeyHash) []byte {
	return appendBytes(nil, 1, pkh[:])
}

func marshalOutputPointer(op wit.OutputPointer) []byte {
	hash := appendBytes(nil, 1, op.TxID[:])
	out := appendMessage(nil, 1, hash)
	return appendFixed32(out, 2, op.Index)
}

func marshalKeyedSignature(ks wit.KeyedSignature) []byte {
	der := appendBytes(nil, 1, ks.Signature)
	sig := appendMessage(nil, 1, der)
	out := appendMessage(nil, 1, sig)
	return appendMessage(out, 2, appendBytes(nil, 1, ks.PublicKey[:]))
}

func appendInputs(b []byte, num protowire.Number, inputs []wit.OutputPointer) []byte {
	for _, op := range inputs {
		b = appendMessage(b, num, appendMessage(nil, 1, marshalOutputPointer(op)))
	}
	return b
}

func appendOutputs(b []byte, num protowire.Number, outputs []Output) []byte {
	for _, o := range outputs {
		b = appendMessage(b, num, o.Marshal())
	}
	return b
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	return appendMessage(b, num, v)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendFixed32(b []byte, num protowire.Number, v uint32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, v)
}

func appendFixed64(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, v)
}

// --- decoding ---

type field struct {
	num    protowire.Number
	typ    protowire.Type
	scalar uint64
	bytes  []byte
}

// fields splits one message level into its fields. Unknown wire types are
// rejected; groups never appear in this schema.
func fields(b []byte) ([]field, error) {
	var out []field
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidWire, protowire.ParseError(n))
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.scalar, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.scalar = uint64(v)
		case protowire.Fixed64Type:
			f.scalar, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			return nil, fmt.Errorf("%w: field %d has wire type %d", ErrInvalidWire, num, typ)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: field %d: %v", ErrInvalidWire, num, protowire.ParseError(n))
		}
		b = b[n:]
		out = append(out, f)
	}
	return out, nil
}

// DecodeBody parses the binary body of a transaction of the given kind.
func DecodeBody(kind Kind, data []byte) (Body, error) {
	switch kind {
	case KindDataRequest:
		return decodeDRBody(data)
	case KindValueTransfer:
		return decodeVTBody(data)
	case KindStakeWithdrawal:
		return decodeUnstakeBody(data)
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
}

func decodeDRBody(data []byte) (DRBody, error) {
	var body DRBody
	fs, err := fields(data)
	if err != nil {
		return body, err
	}
	for _, f := range fs {
		switch f.num {
		case 1:
			op, err := decodeInput(f.bytes)
			if err != nil {
				return body, err
			}
			body.Inputs = append(body.Inputs, op)
		case 2:
			o, err := decodeOutput(f.bytes)
			if err != nil {
				return body, err
			}
			body.Outputs = append(body.Outputs, o)
		case 3:
			if body.DROutput, err = decodeDROutput(f.bytes); err != nil {
				return body, err
			}
		}
	}
	return body, nil
}

func decodeVTBody(data []byte) (VTBody, error) {
	var body VTBody
	fs, err := fields(data)
	if err != nil {
		return body, err
	}
	for _, f := range fs {
		switch f.num {
		case 1:
			op, err := decodeInput(f.bytes)
			if err != nil {
				return body, err
			}
			body.Inputs = append(body.Inputs, op)
		case 2:
			o, err := decodeOutput(f.bytes)
			if err != nil {
				return body, err
			}
			body.Outputs = append(body.Outputs, o)
		}
	}
	return body, nil
}

func decodeUnstakeBody(data []byte) (UnstakeBody, error) {
	var body UnstakeBody
	fs, err := fields(data)
	if err != nil {
		return body, err
	}
	for _, f := range fs {
		switch f.num {
		case 1:
			if body.Operator, err = decodePKH(f.bytes); err != nil {
				return body, err
			}
		case 2:
			if body.Withdrawal, err = decodeOutput(f.bytes); err != nil {
				return body, err
			}
		case 3:
			body.Fee = wit.Nanowits(f.scalar)
		case 4:
			body.Nonce = f.scalar
		}
	}
	return body, nil
}

func decodeOutput(data []byte) (Output, error) {
	var o Output
	fs, err := fields(data)
	if err != nil {
		return o, err
	}
	for _, f := range fs {
		switch f.num {
		case 1:
			if o.PKH, err = decodePKH(f.bytes); err != nil {
				return o, err
			}
		case 2:
			o.Value = wit.Nanowits(f.scalar)
		case 3:
			o.TimeLock = f.scalar
		}
	}
	return o, nil
}

func decodeDROutput(data []byte) (DROutput, error) {
	var d DROutput
	fs, err := fields(data)
	if err != nil {
		return d, err
	}
	for _, f := range fs {
		switch f.num {
		case 1:
			d.DataRequest = append([]byte(nil), f.bytes...)
		case 2:
			d.WitnessReward = wit.Nanowits(f.scalar)
		case 3:
			d.Witnesses = uint16(f.scalar)
		case 4:
			d.CommitAndRevealFee = wit.Nanowits(f.scalar)
		case 5:
			d.MinConsensusPercentage = uint32(f.scalar)
		case 6:
			d.Collateral = wit.Nanowits(f.scalar)
		}
	}
	return d, nil
}

func decodeInput(data []byte) (wit.OutputPointer, error) {
	fs, err := fields(data)
	if err != nil {
		return wit.OutputPointer{}, err
	}
	for _, f := range fs {
		if f.num == 1 {
			return decodeOutputPointer(f.bytes)
		}
	}
	return wit.OutputPointer{}, fmt.Errorf("%w: input without output pointer", ErrInvalidWire)
}

func decodeOutputPointer(data []byte) (wit.OutputPointer, error) {
	var op wit.OutputPointer
	fs, err := fields(data)
	if err != nil {
		return op, err
	}
	for _, f := range fs {
		switch f.num {
		case 1:
			inner, err := fields(f.bytes)
			if err != nil {
				return op, err
			}
			for _, h := range inner {
				if h.num == 1 {
					if len(h.bytes) != len(op.TxID) {
						return op, fmt.Errorf("%w: hash of %d bytes", ErrInvalidWire, len(h.bytes))
					}
					copy(op.TxID[:], h.bytes)
				}
			}
		case 2:
			op.Index = uint32(f.scalar)
		}
	}
	return op, nil
}

func decodePKH(data []byte) (wit.PublicKeyHash, error) {
	var pkh wit.PublicKeyHash
	fs, err := fields(data)
	if err != nil {
		return pkh, err
	}
	for _, f := range fs {
		if f.num == 1 {
			if len(f.bytes) != len(pkh) {
				return pkh, fmt.Errorf("%w: pkh of %d bytes", ErrInvalidWire, len(f.bytes))
			}
			copy(pkh[:], f.bytes)
		}
	}
	return pkh, nil
}
