package service

import (
	"errors"

	"github.com/okian/riichi/internal/adapters/repository"
)

// Sentinel kinds for service errors.
var (
	ErrNotFound   = repository.ErrNotFound
	ErrNotStarted = errors.New("service not started")
	ErrQueueFull  = errors.New("game queue full")
	ErrStopped    = errors.New("service stopped")
)
