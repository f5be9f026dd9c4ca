package fixtures

import "errors"

// Sentinel errors for fixture handling.
var (
	ErrParse         = errors.New("parse fixture")
	ErrInvalidLeague = errors.New("invalid league shape")
)
