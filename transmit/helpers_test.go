package transmit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bitfsorg/libwit-go/network"
	"github.com/bitfsorg/libwit-go/receipt"
	"github.com/bitfsorg/libwit-go/tx"
	"github.com/bitfsorg/libwit-go/wallet"
	"github.com/bitfsorg/libwit-go/wit"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

var testNow = time.Unix(1_700_000_000, 0)

func testRates(vtt float64) network.Priorities {
	p := network.Priorities{}
	for _, tier := range []network.Priority{network.Stinky, network.Low, network.Medium, network.High, network.Opulent} {
		p[network.PrefixValueTransfer+"_"+string(tier)] = network.PriorityEstimate{Priority: vtt}
		p[network.PrefixDataRequest+"_"+string(tier)] = network.PriorityEstimate{Priority: vtt}
	}
	return p
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

// step is one scripted answer to GetTransaction.
type step struct {
	report *network.TransactionReport
	err    error
}

func inMempool() step { return step{report: &network.TransactionReport{}} }

func inBlock(block wit.Hash, confirmations uint32, final bool) step {
	return step{report: &network.TransactionReport{
		BlockHash:      block,
		BlockEpoch:     42,
		BlockTimestamp: testNow.Unix() + 60,
		Confirmations:  confirmations,
		Confirmed:      final,
	}}
}

func failing(err error) step { return step{err: err} }

type fixture struct {
	ledger  *wallet.Ledger
	signers []*wallet.Signer
	mock    *network.MockProvider
	store   *receipt.Store
	clock   *clock.TestClock
	tickers chan *ticker.Force
	miner   *wallet.KeyPair

	mu     sync.Mutex
	remote map[string][]wit.Utxo
	sent   []network.RawTransaction
	accept []bool
	script []step
	polls  int
	blocks int
}

// newFixture builds a ledger with one signer per entry of funds. The node
// accepts every submission and reports every transaction as in the mempool
// until scripted otherwise.
func newFixture(t *testing.T, rates network.Priorities, funds ...[]wit.Nanowits) *fixture {
	t.Helper()
	f := &fixture{
		remote:  map[string][]wit.Utxo{},
		store:   receipt.NewStore(),
		clock:   clock.NewTestClock(testNow),
		tickers: make(chan *ticker.Force, 16),
		miner:   testKeyPair(t, 77),
	}
	f.mock = &network.MockProvider{
		GetUtxosFn: func(_ context.Context, addr string) ([]wit.Utxo, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			return append([]wit.Utxo(nil), f.remote[addr]...), nil
		},
		PrioritiesFn: func(context.Context) (network.Priorities, error) {
			return rates, nil
		},
		SendRawTransactionFn: func(_ context.Context, raw network.RawTransaction) (bool, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.sent = append(f.sent, raw)
			if len(f.accept) == 0 {
				return true, nil
			}
			ok := f.accept[0]
			f.accept = f.accept[1:]
			return ok, nil
		},
		GetTransactionFn: func(context.Context, wit.Hash) (*network.TransactionReport, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			if len(f.script) == 0 {
				return &network.TransactionReport{}, nil
			}
			i := f.polls
			if i >= len(f.script) {
				i = len(f.script) - 1
			}
			f.polls++
			return f.script[i].report, f.script[i].err
		},
		GetBlockFn: func(context.Context, wit.Hash) (*network.Block, error) {
			f.mu.Lock()
			f.blocks++
			f.mu.Unlock()
			pub := f.miner.PublicKey.Compressed()
			var b network.Block
			b.BlockSig.PublicKey.Compressed = pub[0]
			for _, c := range pub[1:] {
				b.BlockSig.PublicKey.Bytes = append(b.BlockSig.PublicKey.Bytes, int(c))
			}
			return &b, nil
		},
	}

	for i, values := range funds {
		s, err := wallet.NewSigner(testKeyPair(t, uint32(i)), f.mock, wallet.WithClock(clock.NewTestClock(testNow)))
		require.NoError(t, err)
		f.fund(s.Address(), byte(i+1), values...)
		f.signers = append(f.signers, s)
	}
	l, err := wallet.NewLedger(f.signers...)
	require.NoError(t, err)
	f.ledger = l
	return f
}

func (f *fixture) fund(addr string, tag byte, values ...wit.Nanowits) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for j, v := range values {
		var h wit.Hash
		h[0] = tag
		h[1] = byte(j)
		f.remote[addr] = append(f.remote[addr], wit.Utxo{
			OutputPointer: wit.OutputPointer{TxID: h},
			Value:         v,
			Mature:        true,
			Signer:        addr,
		})
	}
}

// transmitter builds a Transmitter over p driven by the fixture's clock and
// force-fed tickers.
func (f *fixture) transmitter(t *testing.T, p tx.Payload, opts ...Option) *Transmitter {
	t.Helper()
	base := []Option{
		WithClock(f.clock),
		WithLogger(zaptest.NewLogger(t)),
		WithTicker(func(time.Duration) ticker.Ticker {
			tk := ticker.NewForce(time.Hour)
			f.tickers <- tk
			return tk
		}),
	}
	tr, err := New(p, f.ledger, f.store, append(base, opts...)...)
	require.NoError(t, err)
	return tr
}

func (f *fixture) setScript(steps ...step) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script = steps
	f.polls = 0
}

func (f *fixture) rejectNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < n; i++ {
		f.accept = append(f.accept, false)
	}
}

func (f *fixture) submissions() []network.RawTransaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]network.RawTransaction(nil), f.sent...)
}

// held is the number of outputs pooled across all signers.
func (f *fixture) held() int {
	return f.ledger.CacheInfo().Size
}

// load fills every signer's pool from the node.
func (f *fixture) load(t *testing.T) {
	t.Helper()
	_, err := f.ledger.Utxos(context.Background(), true)
	require.NoError(t, err)
}

// confirm runs ConfirmTransaction, feeding poll ticks until it returns.
func (f *fixture) confirm(t *testing.T, tr *Transmitter, hash wit.Hash, opts ConfirmOptions) (*receipt.Receipt, error) {
	t.Helper()
	type result struct {
		r   *receipt.Receipt
		err error
	}
	out := make(chan result, 1)
	go func() {
		r, err := tr.ConfirmTransaction(context.Background(), hash, opts)
		out <- result{r, err}
	}()

	var tk *ticker.Force
	for {
		if tk == nil {
			select {
			case tk = <-f.tickers:
			case res := <-out:
				return res.r, res.err
			case <-time.After(5 * time.Second):
				t.Fatal("confirmation never started polling")
			}
			continue
		}
		select {
		case tk.Force <- f.clock.Now():
		case res := <-out:
			return res.r, res.err
		case <-time.After(5 * time.Second):
			t.Fatal("confirmation did not finish")
		}
	}
}

// vtTarget pays each value to a distinct foreign address.
func vtTarget(t *testing.T, fee tx.FeeSpec, values ...wit.Nanowits) tx.ValueTransferTarget {
	t.Helper()
	target := tx.ValueTransferTarget{Fees: fee}
	for i, v := range values {
		target.Outputs = append(target.Outputs, wit.ValueTransferOutput{PKH: testAddress(t, uint32(i)), Value: v})
	}
	return target
}

// mustSend signs and submits target, failing the test on error.
func mustSend(t *testing.T, tr *Transmitter, target tx.Target) *receipt.Receipt {
	t.Helper()
	r, err := tr.SendTransaction(context.Background(), target)
	require.NoError(t, err)
	require.Equal(t, receipt.Relayed, r.Status)
	return r
}
