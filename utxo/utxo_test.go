package utxo

import (
	"testing"
	"time"

	"github.com/bitfsorg/libwit-go/wit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner = "wit1owner"

var testNow = time.Unix(1_700_000_000, 0)

func mkUtxo(id byte, index uint32, value wit.Nanowits) wit.Utxo {
	var h wit.Hash
	h[0] = id
	return wit.Utxo{
		OutputPointer: wit.OutputPointer{TxID: h, Index: index},
		Value:         value,
		Mature:        true,
		Signer:        owner,
	}
}

func values(utxos []wit.Utxo) []wit.Nanowits {
	out := make([]wit.Nanowits, len(utxos))
	for i, u := range utxos {
		out[i] = u.Value
	}
	return out
}

func TestPoolAdd(t *testing.T) {
	p := NewPool(owner)

	a, b := mkUtxo(1, 0, 10), mkUtxo(2, 0, 20)
	foreign := mkUtxo(3, 0, 30)
	foreign.Signer = "wit1other"

	included, excluded := p.Add(a, b, foreign, a)
	assert.Equal(t, []wit.Utxo{a, b}, included)
	assert.Equal(t, []wit.Utxo{foreign, a}, excluded)
	assert.Equal(t, 2, p.Len())

	included, excluded = p.Add(b)
	assert.Empty(t, included)
	assert.Equal(t, []wit.Utxo{b}, excluded)
	assert.Equal(t, 2, p.Len())
}

func TestPoolConsume(t *testing.T) {
	p := NewPool(owner)
	a, b, c := mkUtxo(1, 0, 10), mkUtxo(2, 0, 20), mkUtxo(3, 0, 30)
	p.Add(a, b)

	unmatched := p.Consume(a, c)
	assert.Equal(t, []wit.Utxo{c}, unmatched)
	assert.False(t, p.Has(a.OutputPointer))
	assert.True(t, p.Has(b.OutputPointer))
	assert.Equal(t, 1, p.Len())
}

func TestPoolReplaceAndSnapshot(t *testing.T) {
	p := NewPool(owner)
	p.Add(mkUtxo(9, 0, 1))

	a, b := mkUtxo(2, 1, 20), mkUtxo(2, 0, 10)
	p.Replace([]wit.Utxo{a, b})

	snap := p.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, b, snap[0])
	assert.Equal(t, a, snap[1])
}

func TestPoolReplaceKeepsReservationsOut(t *testing.T) {
	p := NewPool(owner)
	a, b, c := mkUtxo(1, 0, 10), mkUtxo(2, 0, 20), mkUtxo(3, 0, 30)
	p.Add(a, b, c)

	require.Empty(t, p.Consume(a, b))
	assert.True(t, p.Reserved(a.OutputPointer))

	// The node still lists a and b until their spender is mined.
	included, excluded := p.Replace([]wit.Utxo{a, b, c})
	assert.Equal(t, []wit.Utxo{c}, included)
	assert.ElementsMatch(t, []wit.Utxo{a, b}, excluded)
	assert.False(t, p.Has(a.OutputPointer))

	// Handing a back releases it.
	included, _ = p.Add(a)
	assert.Equal(t, []wit.Utxo{a}, included)
	assert.False(t, p.Reserved(a.OutputPointer))

	// b is gone from the node's view: spent, so no longer reserved.
	p.Replace([]wit.Utxo{a, c})
	assert.False(t, p.Reserved(b.OutputPointer))
	assert.Equal(t, 2, p.Len())
	p.Replace([]wit.Utxo{a, b, c})
	assert.True(t, p.Has(b.OutputPointer))
}

func TestPoolCacheInfo(t *testing.T) {
	p := NewPool(owner)
	assert.Equal(t, Info{}, p.CacheInfo(testNow))

	locked1 := mkUtxo(1, 0, 100)
	locked1.Timelock = testNow.Unix() + 500
	locked2 := mkUtxo(2, 0, 50)
	locked2.Timelock = testNow.Unix() + 100
	unlocked := mkUtxo(3, 0, 7)
	unlocked.Timelock = testNow.Unix() - 1
	immature := mkUtxo(4, 0, 1000)
	immature.Mature = false

	p.Add(locked1, locked2, unlocked, immature, mkUtxo(5, 0, 3))

	info := p.CacheInfo(testNow)
	assert.Equal(t, wit.Nanowits(10), info.Expendable)
	assert.Equal(t, wit.Nanowits(150), info.Locked)
	assert.Equal(t, 5, info.Size)
	assert.Equal(t, testNow.Unix()+100, info.Timelock)
}

func TestSelectStrategies(t *testing.T) {
	pool := []wit.Utxo{
		mkUtxo(1, 0, 5),
		mkUtxo(2, 0, 50),
		mkUtxo(3, 0, 20),
		mkUtxo(4, 0, 1),
		mkUtxo(5, 0, 30),
	}

	tests := []struct {
		name     string
		strategy Strategy
		target   wit.Nanowits
		want     []wit.Nanowits
	}{
		{"big first", BigFirst, 60, []wit.Nanowits{50, 30}},
		{"small first trims redundant", SmallFirst, 50, []wit.Nanowits{20, 30}},
		{"small first", SmallFirst, 25, []wit.Nanowits{5, 20}},
		{"slim fit single", SlimFit, 25, []wit.Nanowits{30}},
		{"slim fit exact", SlimFit, 20, []wit.Nanowits{20}},
		{"slim fit fallback", SlimFit, 70, []wit.Nanowits{50, 30}},
		{"whole pool", BigFirst, 106, []wit.Nanowits{50, 30, 20, 5, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Select(pool, tt.target, tt.strategy, testNow)
			require.NoError(t, err)
			assert.Equal(t, tt.want, values(got))
			assert.GreaterOrEqual(t, wit.SumValues(got), tt.target)
		})
	}
}

func TestSelectDeterministicTies(t *testing.T) {
	a, b, c := mkUtxo(3, 0, 10), mkUtxo(1, 0, 10), mkUtxo(2, 0, 10)

	first, err := Select([]wit.Utxo{a, b, c}, 15, BigFirst, testNow)
	require.NoError(t, err)
	second, err := Select([]wit.Utxo{c, a, b}, 15, BigFirst, testNow)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, []wit.Utxo{b, c}, first)
}

func TestSelectExcludesLockedAndImmature(t *testing.T) {
	locked := mkUtxo(1, 0, 100)
	locked.Timelock = testNow.Unix() + 1
	immature := mkUtxo(2, 0, 100)
	immature.Mature = false
	free := mkUtxo(3, 0, 10)

	got, err := Select([]wit.Utxo{locked, immature, free}, 10, BigFirst, testNow)
	require.NoError(t, err)
	assert.Equal(t, []wit.Utxo{free}, got)

	_, err = Select([]wit.Utxo{locked, immature, free}, 11, BigFirst, testNow)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	var insufficient *InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, wit.Nanowits(11), insufficient.Need)
	assert.Equal(t, wit.Nanowits(10), insufficient.Have)
}

func TestSelectLeavesCandidatesUntouched(t *testing.T) {
	pool := []wit.Utxo{mkUtxo(2, 0, 1), mkUtxo(1, 0, 2)}
	before := append([]wit.Utxo(nil), pool...)

	_, err := Select(pool, 3, SmallFirst, testNow)
	require.NoError(t, err)
	assert.Equal(t, before, pool)

	_, err = Select(pool, 4, SmallFirst, testNow)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, before, pool)
}

func TestSelectZeroTarget(t *testing.T) {
	got, err := Select(nil, 0, SlimFit, testNow)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []Strategy{SlimFit, BigFirst, SmallFirst} {
		parsed, err := ParseStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	_, err := ParseStrategy("random")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}
