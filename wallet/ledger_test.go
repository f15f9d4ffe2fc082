package wallet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libwit-go/network"
	"github.com/bitfsorg/libwit-go/utxo"
	"github.com/bitfsorg/libwit-go/wit"
)

func newTestLedger(t *testing.T, values map[uint32][]wit.Nanowits) (*Ledger, []*Signer) {
	t.Helper()
	var signers []*Signer
	for i := uint32(0); i < uint32(len(values)); i++ {
		vals := values[i]
		base := byte(i * 16)
		s, _ := newTestSigner(t, i, func(addr string) []wit.Utxo {
			out := make([]wit.Utxo, len(vals))
			for j, v := range vals {
				out[j] = mkUtxo(addr, base+byte(j)+1, v)
			}
			return out
		})
		signers = append(signers, s)
	}
	l, err := NewLedger(signers...)
	require.NoError(t, err)
	return l, signers
}

func TestNewLedgerValidation(t *testing.T) {
	_, err := NewLedger()
	assert.ErrorIs(t, err, ErrNoSigners)

	s, _ := newTestSigner(t, 0, func(string) []wit.Utxo { return nil })
	_, err = NewLedger(s, s)
	assert.ErrorIs(t, err, ErrDuplicateSigner)

	testnet := &network.MockProvider{NetworkFn: func() wit.Network { return wit.Testnet }}
	other, err := NewSigner(testKey(t, 1), testnet)
	require.NoError(t, err)
	_, err = NewLedger(s, other)
	assert.ErrorIs(t, err, ErrNetworkMismatch)
}

func TestLedgerRouting(t *testing.T) {
	l, signers := newTestLedger(t, map[uint32][]wit.Nanowits{0: nil, 1: nil})

	assert.Same(t, signers[0], l.Signer(""))
	assert.Same(t, signers[1], l.Signer(signers[1].Address()))
	assert.Nil(t, l.Signer("wit1unknown"))
	assert.Equal(t, signers[0].Address(), l.Address())

	a := mkUtxo(signers[0].Address(), 1, 10)
	b := mkUtxo(signers[1].Address(), 2, 20)
	c := mkUtxo("wit1unknown", 3, 30)

	included, excluded := l.AddUtxos(a, b, c)
	assert.ElementsMatch(t, []wit.Utxo{a, b}, included)
	assert.ElementsMatch(t, []wit.Utxo{c}, excluded)
	assert.Equal(t, 1, signers[0].CacheInfo().Size)
	assert.Equal(t, 1, signers[1].CacheInfo().Size)

	unmatched := l.ConsumeUtxos(b, c)
	assert.ElementsMatch(t, []wit.Utxo{c}, unmatched)
	assert.Equal(t, 0, signers[1].CacheInfo().Size)
}

func TestLedgerSelectAcrossSigners(t *testing.T) {
	l, signers := newTestLedger(t, map[uint32][]wit.Nanowits{
		0: {30},
		1: {50},
	})

	got, err := l.SelectUtxos(context.Background(), 70, false)
	require.NoError(t, err)
	require.Len(t, got, 2)

	owners := map[string]bool{}
	for _, u := range got {
		owners[u.Signer] = true
	}
	assert.True(t, owners[signers[0].Address()])
	assert.True(t, owners[signers[1].Address()])

	_, err = l.SelectUtxos(context.Background(), 81, false)
	assert.ErrorIs(t, err, utxo.ErrInsufficientFunds)

	info := l.CacheInfo()
	assert.Equal(t, wit.Nanowits(80), info.Expendable)
	assert.Equal(t, 2, info.Size)
}

func TestLedgerLockCovering(t *testing.T) {
	l, signers := newTestLedger(t, map[uint32][]wit.Nanowits{0: nil, 1: nil})
	other, err := NewLedger(signers[1], signers[0])
	require.NoError(t, err)

	unlock := l.LockCovering()

	acquired := make(chan struct{})
	go func() {
		release := other.LockCovering()
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("overlapping ledger acquired the covering lock while held")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("covering lock was not released")
	}
}

func TestLedgerConcurrentLoad(t *testing.T) {
	l, _ := newTestLedger(t, map[uint32][]wit.Nanowits{0: {1, 2}, 1: {3}, 2: {4}})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			all, err := l.Utxos(context.Background(), false)
			assert.NoError(t, err)
			assert.Len(t, all, 4)
		}()
	}
	wg.Wait()
}
