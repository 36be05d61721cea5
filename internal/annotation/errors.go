package annotation

import "errors"

// Sentinel kinds for annotation errors.
var (
	ErrNoScoredElements  = errors.New("no scored elements")
	ErrInvalidAnnotation = errors.New("invalid annotation")
	ErrUnknownKind       = errors.New("unknown annotation kind")
)
