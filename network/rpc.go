package network

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bitfsorg/libwit-go/wit"
	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"
)

// RPCClient is a JSON-RPC 2.0 client for a Witnet node's HTTP endpoint.
// All Provider methods are built on top of Call.
type RPCClient struct {
	url     string
	cli     *resty.Client
	network wit.Network
	nextID  atomic.Int64
	group   singleflight.Group
}

// rpcRequest represents a JSON-RPC 2.0 request payload.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response payload.
type rpcResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// rpcError represents an error returned by the JSON-RPC server.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewRPCClient creates a client for the node described by cfg. Basic auth is
// used when User is non-empty.
func NewRPCClient(cfg RPCConfig) *RPCClient {
	cli := resty.New().
		SetTimeout(30*time.Second).
		SetHeader("Content-Type", "application/json")
	if cfg.User != "" {
		cli.SetBasicAuth(cfg.User, cfg.Password)
	}
	network := cfg.Network
	if network == "" {
		network = wit.Mainnet
	}
	return &RPCClient{url: cfg.URL, cli: cli, network: network}
}

// Call invokes a JSON-RPC method and decodes the result into result, which
// may be nil to discard it.
//
// Call returns ErrConnectionFailed if the HTTP exchange fails, ErrInvalidResponse
// if the response cannot be decoded, and ErrRPC wrapping the server's message
// for JSON-RPC errors. Errors mentioning an unknown item also match ErrTxNotFound.
func (c *RPCClient) Call(ctx context.Context, method string, params interface{}, result interface{}) error {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}

	resp, err := c.cli.R().
		SetContext(ctx).
		SetBody(req).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(resp.Body(), &rpcResp); err != nil {
		if resp.IsError() {
			return fmt.Errorf("%w: HTTP %d: %s", ErrConnectionFailed, resp.StatusCode(), truncate(resp.String(), 1024))
		}
		return fmt.Errorf("%w: decode response: %w", ErrInvalidResponse, err)
	}

	if rpcResp.Error != nil {
		if strings.Contains(strings.ToLower(rpcResp.Error.Message), "not found") {
			return fmt.Errorf("%w: %w: %s", ErrTxNotFound, ErrRPC, rpcResp.Error.Message)
		}
		return fmt.Errorf("%w %d: %s", ErrRPC, rpcResp.Error.Code, rpcResp.Error.Message)
	}

	if rpcResp.ID != req.ID {
		return fmt.Errorf("%w: response ID mismatch: expected %d, got %d",
			ErrInvalidResponse, req.ID, rpcResp.ID)
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("%w: unmarshal result: %w", ErrInvalidResponse, err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
