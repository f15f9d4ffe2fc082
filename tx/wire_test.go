package tx

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libwit-go/wit"
)

func TestOutputMarshal_Layout(t *testing.T) {
	var pkh wit.PublicKeyHash
	for i := range pkh {
		pkh[i] = byte(i + 1)
	}
	got := Output{PKH: pkh, Value: 1}.Marshal()

	want := []byte{0x0a, 22, 0x0a, 20}
	want = append(want, pkh[:]...)
	want = append(want, 0x11, 1, 0, 0, 0, 0, 0, 0, 0)
	assert.Equal(t, want, got)

	locked := Output{PKH: pkh, Value: 1, TimeLock: 2}.Marshal()
	assert.Equal(t, append(append([]byte(nil), want...), 0x19, 2, 0, 0, 0, 0, 0, 0, 0), locked)
}

func TestOutputPointerMarshal(t *testing.T) {
	op := wit.OutputPointer{Index: 3}
	op.TxID[0] = 0xaa

	got := marshalOutputPointer(op)
	want := []byte{0x0a, 34, 0x0a, 32}
	want = append(want, op.TxID[:]...)
	want = append(want, 0x15, 3, 0, 0, 0)
	assert.Equal(t, want, got)

	back, err := decodeOutputPointer(got)
	require.NoError(t, err)
	assert.Equal(t, op, back)

	zero := marshalOutputPointer(wit.OutputPointer{TxID: op.TxID})
	assert.Len(t, zero, 36, "zero index omitted")
}

func TestDROutput_RoundTrip(t *testing.T) {
	d := DROutput{
		DataRequest:            []byte{1, 2, 3},
		WitnessReward:          200,
		Witnesses:              2,
		CommitAndRevealFee:     100,
		MinConsensusPercentage: 51,
		Collateral:             25_000,
	}
	back, err := decodeDROutput(d.Marshal())
	require.NoError(t, err)
	assert.Equal(t, d, back)

	assert.True(t, bytes.HasPrefix(d.Marshal(), []byte{0x0a, 3, 1, 2, 3}))
}

func TestMarshalSigned(t *testing.T) {
	var pub wit.PublicKey
	pub[0] = 0x02
	sig := wit.KeyedSignature{PublicKey: pub, Signature: []byte{0x30, 0x01}}
	body := VTBody{Outputs: []Output{{Value: 5}}}

	raw, err := MarshalSigned(body, []wit.KeyedSignature{sig, sig})
	require.NoError(t, err)
	fs, err := fields(raw)
	require.NoError(t, err)
	require.Len(t, fs, 3)
	assert.Equal(t, body.Marshal(), fs[0].bytes)
	assert.Equal(t, fs[1].bytes, fs[2].bytes)

	ks, err := fields(fs[1].bytes)
	require.NoError(t, err)
	require.Len(t, ks, 2)
	assert.Equal(t, appendBytes(nil, 1, pub[:]), ks[1].bytes)

	_, err = MarshalSigned(UnstakeBody{}, []wit.KeyedSignature{sig, sig})
	assert.ErrorIs(t, err, ErrInvalidWire)
	one, err := MarshalSigned(UnstakeBody{}, []wit.KeyedSignature{sig})
	require.NoError(t, err)
	assert.NotEmpty(t, one)
}

func TestDecodeBody_Errors(t *testing.T) {
	_, err := DecodeBody(KindValueTransfer, []byte{0x0a, 0x05, 0x01})
	assert.ErrorIs(t, err, ErrInvalidWire)

	_, err = DecodeBody(KindValueTransfer, []byte{0x0b})
	assert.ErrorIs(t, err, ErrInvalidWire)

	_, err = DecodeBody(KindStakeWithdrawal, appendMessage(nil, 1, appendBytes(nil, 1, []byte{1, 2})))
	assert.ErrorIs(t, err, ErrInvalidWire)

	_, err = DecodeBody(Kind(0), nil)
	assert.ErrorIs(t, err, ErrUnknownKind)

	empty, err := DecodeBody(KindValueTransfer, nil)
	require.NoError(t, err)
	assert.Equal(t, VTBody{}, empty)
}

func TestCompiledRequest(t *testing.T) {
	_, err := NewCompiledRequest(nil, json.RawMessage(`{}`), nil)
	assert.ErrorIs(t, err, ErrInvalidTarget)
	_, err = NewCompiledRequest([]byte{1}, json.RawMessage(`{`), nil)
	assert.ErrorIs(t, err, ErrInvalidTarget)

	req, err := NewCompiledRequest([]byte{1, 2, 3}, json.RawMessage(`{"a":1}`), json.RawMessage(`{"a":"one"}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), req.Weight())
	assert.Equal(t, []byte{1, 2, 3}, req.Bytecode())
	assert.Equal(t, json.RawMessage(`{"a":"one"}`), req.JSON(true))
	assert.Equal(t, json.RawMessage(`{"a":1}`), req.JSON(false))
}
