package storage

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrStorage       = errors.New("storage operation failed")
	ErrUnknownDriver = errors.New("unknown storage driver")
	ErrClosed        = errors.New("storage closed")
)
