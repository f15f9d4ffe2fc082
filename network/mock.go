package network

import (
	"context"

	"github.com/bitfsorg/libwit-go/wit"
)

// MockProvider is a test double for Provider. Every function field must be
// set before the corresponding method is called, except NetworkFn which
// defaults to mainnet.
type MockProvider struct {
	NetworkFn            func() wit.Network
	GetUtxosFn           func(ctx context.Context, address string) ([]wit.Utxo, error)
	GetBalanceFn         func(ctx context.Context, address string) (*Balance, error)
	PrioritiesFn         func(ctx context.Context) (Priorities, error)
	SendRawTransactionFn func(ctx context.Context, tx RawTransaction) (bool, error)
	GetTransactionFn     func(ctx context.Context, hash wit.Hash) (*TransactionReport, error)
	GetBlockFn           func(ctx context.Context, hash wit.Hash) (*Block, error)
	StakesFn             func(ctx context.Context, query StakesQuery) ([]StakeEntry, error)
}

var _ Provider = (*MockProvider)(nil)

func (m *MockProvider) Network() wit.Network {
	if m.NetworkFn == nil {
		return wit.Mainnet
	}
	return m.NetworkFn()
}
func (m *MockProvider) GetUtxos(ctx context.Context, address string) ([]wit.Utxo, error) {
	return m.GetUtxosFn(ctx, address)
}
func (m *MockProvider) GetBalance(ctx context.Context, address string) (*Balance, error) {
	return m.GetBalanceFn(ctx, address)
}
func (m *MockProvider) Priorities(ctx context.Context) (Priorities, error) {
	return m.PrioritiesFn(ctx)
}
func (m *MockProvider) SendRawTransaction(ctx context.Context, tx RawTransaction) (bool, error) {
	return m.SendRawTransactionFn(ctx, tx)
}
func (m *MockProvider) GetTransaction(ctx context.Context, hash wit.Hash) (*TransactionReport, error) {
	return m.GetTransactionFn(ctx, hash)
}
func (m *MockProvider) GetBlock(ctx context.Context, hash wit.Hash) (*Block, error) {
	return m.GetBlockFn(ctx, hash)
}
func (m *MockProvider) Stakes(ctx context.Context, query StakesQuery) ([]StakeEntry, error) {
	return m.StakesFn(ctx, query)
}
