package veengine

import "errors"

var (
	ErrLengthMismatch = errors.New("veengine: input arrays must share the same length")
	ErrEmptyInputs    = errors.New("veengine: inputs must contain at least one sample")
)
