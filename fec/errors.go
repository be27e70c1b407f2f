package fec

import "errors"

var (
	// ErrShapeMismatch is returned when an input block or LLR vector does
	// not match the dimensions of the configured code.
	ErrShapeMismatch = errors.New("fec: input length does not match code dimensions")

	// ErrSingularMatrix is returned when a parity-check matrix cannot be
	// put into systematic form, so no systematic encoder exists for it.
	ErrSingularMatrix = errors.New("fec: parity-check matrix is not systematic-encodable")

	// ErrNumericOverflow is returned when a non-finite value is found in
	// decoder input. NaN must not be allowed into the message-passing loop:
	// it spreads through every edge and can masquerade as a converged
	// result.
	ErrNumericOverflow = errors.New("fec: non-finite value in decoder input")
)
