package request

import "errors"

// Sentinel kinds for request errors.
var (
	ErrUnknownKind = errors.New("unknown request kind")
)
