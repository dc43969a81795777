package faces

import "errors"

// ErrInvalidRadius indicates a negative dilation radius.
var ErrInvalidRadius = errors.New("faces: dilation radius must be non-negative")
