package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateGame = errors.New("game already recorded")
	ErrUnknownDriver = errors.New("unknown store driver")
)
