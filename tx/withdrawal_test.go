package tx

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libwit-go/network"
	"github.com/bitfsorg/libwit-go/wit"
)

func withStakes(f *fixture, nonce uint64, err error) *[]network.StakesQuery {
	var queries []network.StakesQuery
	f.mock.StakesFn = func(_ context.Context, q network.StakesQuery) ([]network.StakeEntry, error) {
		queries = append(queries, q)
		if err != nil {
			return nil, err
		}
		var e network.StakeEntry
		e.Key.Validator = q.Validator
		e.Key.Withdrawer = q.Withdrawer
		e.Value.Nonce = nonce
		return []network.StakeEntry{e}, nil
	}
	return &queries
}

func TestStakeWithdrawal_Validate(t *testing.T) {
	sw := NewStakeWithdrawal()
	validator := testAddress(t, 5)
	zero, three := uint64(0), uint64(3)

	tests := []struct {
		name   string
		target StakeWithdrawalTarget
		err    error
	}{
		{"default fee", StakeWithdrawalTarget{Value: 1000, Validator: validator}, nil},
		{"explicit nonce", StakeWithdrawalTarget{Value: 1000, Validator: validator, Nonce: &three}, nil},
		{"zero nonce", StakeWithdrawalTarget{Value: 1000, Validator: validator, Nonce: &zero}, ErrInvalidTarget},
		{"zero value", StakeWithdrawalTarget{Validator: validator}, ErrInvalidTarget},
		{"bad validator", StakeWithdrawalTarget{Value: 1000, Validator: "wit1zzz"}, ErrInvalidTarget},
		{"fee exceeds value", StakeWithdrawalTarget{Fees: Amount(1000), Value: 1000, Validator: validator}, ErrNoChange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sw.Validate(tt.target)
			if tt.err == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestStakeWithdrawal_Cover(t *testing.T) {
	f := newFixture(t, testRates(10, 1), nil)
	queries := withStakes(f, 7, nil)
	validator := testAddress(t, 5)

	sw := NewStakeWithdrawal()
	require.NoError(t, sw.Reset(StakeWithdrawalTarget{Value: 1_000_000, Validator: validator}))
	assert.False(t, sw.Prepared())
	assert.Equal(t, uint64(WithdrawalWeight), sw.Weight())
	assert.Equal(t, sw.Weight(), sw.MaxWeight())

	require.NoError(t, sw.Cover(context.Background(), f.ledger, CoverOptions{}))
	assert.True(t, sw.Prepared())
	assert.Equal(t, wit.Nanowits(1530), sw.Fees())
	assert.Equal(t, wit.Nanowits(998_470), sw.Change())
	assert.Equal(t, uint64(7), sw.Nonce())
	assert.Empty(t, sw.Inputs())
	assert.False(t, sw.MultiSig())

	require.Len(t, *queries, 1)
	assert.Equal(t, validator, (*queries)[0].Validator)
	assert.Equal(t, f.ledger.Address(), (*queries)[0].Withdrawer)

	require.Len(t, sw.Outputs(), 1)
	out := sw.Outputs()[0]
	assert.Equal(t, f.ledger.Address(), out.PKH)
	assert.Equal(t, wit.Nanowits(998_470), out.Value)
	assert.Equal(t, uint64(WithdrawalTimelock), out.TimeLock)

	raw, err := sw.MarshalBody()
	require.NoError(t, err)
	hash, err := sw.Hash()
	require.NoError(t, err)
	assert.Equal(t, wit.Hash(sha256.Sum256(raw)), hash)

	decoded, err := DecodeBody(KindStakeWithdrawal, raw)
	require.NoError(t, err)
	body := decoded.(UnstakeBody)
	validatorPKH, _, err := wit.ParseAddress(validator)
	require.NoError(t, err)
	assert.Equal(t, validatorPKH, body.Operator)
	assert.Equal(t, uint64(7), body.Nonce)
	assert.Equal(t, wit.Nanowits(1530), body.Fee)

	fields := sw.ReceiptFields()
	assert.Equal(t, uint64(7), fields["nonce"])
	assert.Equal(t, validator, fields["validator"])
	assert.Equal(t, f.ledger.Address(), fields["withdrawer"])
	assert.Equal(t, uint64(WithdrawalTimelock), fields["outputLock"])
}

func TestStakeWithdrawal_ExplicitNonceSkipsLookup(t *testing.T) {
	f := newFixture(t, testRates(10, 1), nil)
	queries := withStakes(f, 7, nil)
	nonce := uint64(42)

	sw := NewStakeWithdrawal()
	require.NoError(t, sw.Reset(StakeWithdrawalTarget{Fees: Amount(500), Value: 10_000, Validator: testAddress(t, 5), Nonce: &nonce}))
	require.NoError(t, sw.Cover(context.Background(), f.ledger, CoverOptions{}))
	assert.Equal(t, uint64(42), sw.Nonce())
	assert.Equal(t, wit.Nanowits(9500), sw.Change())
	assert.Empty(t, *queries)
}

func TestStakeWithdrawal_CoverErrors(t *testing.T) {
	validator := testAddress(t, 5)

	t.Run("fee above value", func(t *testing.T) {
		f := newFixture(t, testRates(10, 1), nil)
		withStakes(f, 1, nil)
		sw := NewStakeWithdrawal()
		require.NoError(t, sw.Reset(StakeWithdrawalTarget{Value: 1000, Validator: validator}))
		assert.ErrorIs(t, sw.Cover(context.Background(), f.ledger, CoverOptions{}), ErrNoChange)
		assert.False(t, sw.Prepared())
	})

	t.Run("stake lookup fails", func(t *testing.T) {
		f := newFixture(t, testRates(10, 1), nil)
		boom := errors.New("node down")
		withStakes(f, 0, boom)
		sw := NewStakeWithdrawal()
		require.NoError(t, sw.Reset(StakeWithdrawalTarget{Value: 1_000_000, Validator: validator}))
		assert.ErrorIs(t, sw.Cover(context.Background(), f.ledger, CoverOptions{}), boom)
	})

	t.Run("no target", func(t *testing.T) {
		f := newFixture(t, testRates(10, 1), nil)
		assert.ErrorIs(t, NewStakeWithdrawal().Cover(context.Background(), f.ledger, CoverOptions{}), ErrNoTarget)
	})
}

func TestStakeWithdrawal_SignedJSON(t *testing.T) {
	f := newFixture(t, testRates(10, 1), nil)
	withStakes(f, 7, nil)

	sw := NewStakeWithdrawal()
	require.NoError(t, sw.Reset(StakeWithdrawalTarget{Value: 1_000_000, Validator: testAddress(t, 5)}))
	require.NoError(t, sw.Cover(context.Background(), f.ledger, CoverOptions{}))

	sigs, err := Sign(sw, f.ledger)
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, f.signers[0].PublicKey(), sigs[0].PublicKey)

	signed, err := SignedJSON(sw, sigs, false)
	require.NoError(t, err)
	var decoded map[string]map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(signed, &decoded))
	require.Contains(t, decoded, "Unstake")
	assert.Contains(t, decoded["Unstake"], "signature")
	assert.NotContains(t, decoded["Unstake"], "signatures")

	var sig keyedSignatureJSON
	require.NoError(t, json.Unmarshal(decoded["Unstake"]["signature"], &sig))
	assert.Equal(t, int(sigs[0].PublicKey[0]), int(sig.PublicKey.Compressed))
	assert.Len(t, sig.PublicKey.Bytes, 32)
	assert.Len(t, sig.Signature.Secp256k1.Der, len(sigs[0].Signature))

	_, err = SignedJSON(sw, append(sigs, sigs[0]), false)
	assert.ErrorIs(t, err, ErrInvalidWire)
	_, err = SignedBytes(sw, nil)
	assert.ErrorIs(t, err, ErrInvalidWire)
}
