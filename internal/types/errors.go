package types

import "errors"

// Sentinel errors for the indicator engine.
var (
	// Input validation errors
	ErrInvalidBar       = errors.New("invalid bar")
	ErrNonChronological = errors.New("bars not in chronological order")
	ErrEmptySeries      = errors.New("empty bar series")

	// Computation errors
	ErrInvalidParameters = errors.New("invalid indicator parameters")
	ErrSuperseded        = errors.New("computation superseded by a newer request")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
)
