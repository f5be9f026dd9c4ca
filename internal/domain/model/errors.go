package model

import (
	"errors"
	"fmt"
)

// Sentinel kinds for domain errors. Typed errors below match them with errors.Is.
var (
	ErrUnresolved    = errors.New("participant not resolvable")
	ErrMalformedGame = errors.New("malformed game")
	ErrStoreAccess   = errors.New("store access failed")
)

// ResolutionError reports a game participant that matches no team (Kind
// "team") or no directory entry (Kind "player").
type ResolutionError struct {
	Kind     string
	GameID   string
	PlayerID string
}

func (e *ResolutionError) Error() string {
	if e.GameID == "" {
		return fmt.Sprintf("player %s has no %s entry", e.PlayerID, e.Kind)
	}
	return fmt.Sprintf("game %s: player %s has no %s entry", e.GameID, e.PlayerID, e.Kind)
}

// Is matches ErrUnresolved.
func (e *ResolutionError) Is(target error) bool { return target == ErrUnresolved }

// MalformedGameError reports a game that does not carry exactly four seats.
type MalformedGameError struct {
	GameID  string
	Players int
	Scores  int
	Reason  string
}

func (e *MalformedGameError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("game %s is malformed: %s", e.GameID, e.Reason)
	}
	return fmt.Sprintf("game %s is malformed: %d players, %d scores, want %d", e.GameID, e.Players, e.Scores, SeatCount)
}

// Is matches ErrMalformedGame.
func (e *MalformedGameError) Is(target error) bool { return target == ErrMalformedGame }

// StoreError wraps a failed collaborator fetch. The cause stays reachable
// through errors.Is/As.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is matches ErrStoreAccess.
func (e *StoreError) Is(target error) bool { return target == ErrStoreAccess }

// WrapStore wraps err as a StoreError unless it is nil or already one.
func WrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
