package tx

import (
	"context"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libwit-go/network"
	"github.com/bitfsorg/libwit-go/wallet"
	"github.com/bitfsorg/libwit-go/wit"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

var testNow = time.Unix(1_700_000_000, 0)

// testRates prices every tier of both tables at the same rate.
func testRates(vtt, drt float64) network.Priorities {
	p := network.Priorities{}
	for _, tier := range []network.Priority{network.Stinky, network.Low, network.Medium, network.High, network.Opulent} {
		p[network.PrefixValueTransfer+"_"+string(tier)] = network.PriorityEstimate{Priority: vtt}
		p[network.PrefixDataRequest+"_"+string(tier)] = network.PriorityEstimate{Priority: drt}
	}
	return p
}

type fixture struct {
	ledger  *wallet.Ledger
	signers []*wallet.Signer
	mock    *network.MockProvider
	remote  map[string][]wit.Utxo
}

func testKeyPair(t *testing.T, index uint32) *wallet.KeyPair {
	t.Helper()
	w, err := wallet.NewWalletFromMnemonic(testMnemonic, "", wit.Mainnet)
	require.NoError(t, err)
	kp, err := w.DeriveKey(wallet.DefaultAccount, wallet.ExternalChain, index)
	require.NoError(t, err)
	return kp
}

// testAddress returns a mainnet address no fixture signer owns.
func testAddress(t *testing.T, index uint32) string {
	t.Helper()
	pub, err := wit.PublicKeyFromBytes(testKeyPair(t, 100+index).PublicKey.Compressed())
	require.NoError(t, err)
	return pub.Address(wit.Mainnet)
}

// newFixture builds a ledger with one signer per entry of funds, each
// holding mature outputs of the listed values.
func newFixture(t *testing.T, rates network.Priorities, funds ...[]wit.Nanowits) *fixture {
	t.Helper()
	f := &fixture{remote: map[string][]wit.Utxo{}}
	f.mock = &network.MockProvider{
		GetUtxosFn: func(_ context.Context, addr string) ([]wit.Utxo, error) {
			return f.remote[addr], nil
		},
		PrioritiesFn: func(context.Context) (network.Priorities, error) {
			return rates, nil
		},
	}
	for i, values := range funds {
		s, err := wallet.NewSigner(testKeyPair(t, uint32(i)), f.mock, wallet.WithClock(clock.NewTestClock(testNow)))
		require.NoError(t, err)
		for j, v := range values {
			var h wit.Hash
			h[0] = byte(i + 1)
			h[1] = byte(j)
			f.remote[s.Address()] = append(f.remote[s.Address()], wit.Utxo{
				OutputPointer: wit.OutputPointer{TxID: h},
				Value:         v,
				Mature:        true,
				Signer:        s.Address(),
			})
		}
		f.signers = append(f.signers, s)
	}
	l, err := wallet.NewLedger(f.signers...)
	require.NoError(t, err)
	f.ledger = l
	return f
}

// held is the number of outputs currently pooled across all signers.
func (f *fixture) held() int {
	return f.ledger.CacheInfo().Size
}

func testRequest(t *testing.T, size int) *CompiledRequest {
	t.Helper()
	bytecode := make([]byte, size)
	for i := range bytecode {
		bytecode[i] = byte(i)
	}
	req, err := NewCompiledRequest(bytecode, []byte(`{"retrieve":[]}`), nil)
	require.NoError(t, err)
	return req
}
