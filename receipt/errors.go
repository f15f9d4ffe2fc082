package receipt

import "errors"

var (
	// ErrNotFound indicates no receipt is held for the hash.
	ErrNotFound = errors.New("receipt: not found")

	// ErrNilReceipt indicates a nil receipt was passed.
	ErrNilReceipt = errors.New("receipt: nil receipt")

	// ErrInvalidStatus indicates an unrecognized status name.
	ErrInvalidStatus = errors.New("receipt: invalid status")

	// ErrClosed indicates the backend was used after Close.
	ErrClosed = errors.New("receipt: store closed")
)
