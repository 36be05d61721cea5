package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotFound = errors.New("course not found")

	errNotObject = errors.New("score snapshot is not a JSON object")
)
