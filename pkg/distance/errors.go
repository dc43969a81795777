package distance

import "errors"

// ErrUnknownMethod indicates an unsupported distance transform method.
var ErrUnknownMethod = errors.New("distance: unknown transform method")
