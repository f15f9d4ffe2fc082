package network

import (
	"context"
	"fmt"

	"github.com/bitfsorg/libwit-go/wit"
)

// Compile-time interface check.
var _ Provider = (*RPCClient)(nil)

// Network reports the chain this client was configured for.
func (c *RPCClient) Network() wit.Network {
	return c.network
}

// utxoInfoResult maps the JSON returned by getUtxoInfo.
type utxoInfoResult struct {
	CollateralMin uint64     `json:"collateral_min"`
	Utxos         []wit.Utxo `json:"utxos"`
}

// GetUtxos returns the outputs held by address, each tagged with it as signer.
func (c *RPCClient) GetUtxos(ctx context.Context, address string) ([]wit.Utxo, error) {
	var result utxoInfoResult
	if err := c.Call(ctx, "getUtxoInfo", []interface{}{address}, &result); err != nil {
		return nil, err
	}
	for i := range result.Utxos {
		result.Utxos[i].Signer = address
	}
	return result.Utxos, nil
}

// GetBalance returns the balance of address.
func (c *RPCClient) GetBalance(ctx context.Context, address string) (*Balance, error) {
	var balance Balance
	params := map[string]interface{}{"pkh": address}
	if err := c.Call(ctx, "getBalance2", params, &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}

// Priorities fetches the fee table. Concurrent callers share one request.
func (c *RPCClient) Priorities(ctx context.Context) (Priorities, error) {
	v, err, _ := c.group.Do("priority", func() (interface{}, error) {
		var table Priorities
		if err := c.Call(ctx, "priority", nil, &table); err != nil {
			return nil, err
		}
		if len(table) == 0 {
			return nil, fmt.Errorf("%w: empty priority table", ErrInvalidResponse)
		}
		return table, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Priorities), nil
}

// SendRawTransaction submits tx through the inventory method.
func (c *RPCClient) SendRawTransaction(ctx context.Context, tx RawTransaction) (bool, error) {
	if len(tx.JSON) == 0 {
		return false, fmt.Errorf("%w: empty transaction", ErrBroadcastRejected)
	}
	params := map[string]interface{}{"transaction": tx.JSON}
	var accepted bool
	if err := c.Call(ctx, "inventory", params, &accepted); err != nil {
		return false, err
	}
	return accepted, nil
}

// GetTransaction returns the inclusion report of hash.
func (c *RPCClient) GetTransaction(ctx context.Context, hash wit.Hash) (*TransactionReport, error) {
	var report TransactionReport
	if err := c.Call(ctx, "getTransaction", []interface{}{hash.String()}, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// GetBlock returns the block identified by hash.
func (c *RPCClient) GetBlock(ctx context.Context, hash wit.Hash) (*Block, error) {
	var block Block
	if err := c.Call(ctx, "getBlock", []interface{}{hash.String()}, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// Stakes lists stake entries matching query.
func (c *RPCClient) Stakes(ctx context.Context, query StakesQuery) ([]StakeEntry, error) {
	filter := map[string]string{}
	if query.Validator != "" {
		filter["validator"] = query.Validator
	}
	if query.Withdrawer != "" {
		filter["withdrawer"] = query.Withdrawer
	}
	params := map[string]interface{}{"filter": filter}
	if query.Order != nil {
		params["params"] = map[string]interface{}{"order": query.Order}
	}
	var entries []StakeEntry
	if err := c.Call(ctx, "queryStakes", params, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
