package network

import "errors"

var (
	// ErrConnectionFailed indicates the client could not reach the node.
	ErrConnectionFailed = errors.New("network: connection failed")

	// ErrTxNotFound indicates the node does not know the requested transaction.
	ErrTxNotFound = errors.New("network: transaction not found")

	// ErrBroadcastRejected indicates the node refused a submitted transaction.
	ErrBroadcastRejected = errors.New("network: broadcast rejected")

	// ErrInvalidResponse indicates the node returned a malformed or unexpected response.
	ErrInvalidResponse = errors.New("network: invalid response")

	// ErrRPC indicates the node answered with a JSON-RPC error object.
	ErrRPC = errors.New("network: rpc error")

	// ErrUnknownPriority indicates the priority table has no entry for a kind and tier.
	ErrUnknownPriority = errors.New("network: unknown priority")
)
