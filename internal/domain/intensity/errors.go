package intensity

import "errors"

// ErrOutOfRange reports a score or intensity outside its closed range.
var ErrOutOfRange = errors.New("score out of range")
