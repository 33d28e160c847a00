package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every domain error wraps exactly one of these so callers can
// tell a bad input apart from a lifecycle violation or a broken invariant.
var (
	ErrValidation = errors.New("validation error")
	ErrState      = errors.New("state error")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
)

// Domain errors
var (
	ErrEmptyGuess         = fmt.Errorf("%w: enter at least one of song, artist or year", ErrValidation)
	ErrGameEnded          = fmt.Errorf("%w: game has ended", ErrValidation)
	ErrInvalidDifficulty  = fmt.Errorf("%w: difficulty must be easy, hard or extreme", ErrValidation)
	ErrPlayerNameRequired = fmt.Errorf("%w: player name is required", ErrValidation)
	ErrInvalidDelay       = fmt.Errorf("%w: delay must not be negative", ErrValidation)
	ErrNoOpenRound        = fmt.Errorf("%w: no open round", ErrState)
	ErrStaleRound         = fmt.Errorf("%w: round is no longer open", ErrState)
	ErrGameNotRunning     = fmt.Errorf("%w: game is ended, resume or reset first", ErrState)
	ErrRoundAlreadyOpen   = fmt.Errorf("%w: there is already an open round, close it first", ErrConflict)
	ErrPlayerNameTaken    = fmt.Errorf("%w: player name already taken", ErrConflict)
	ErrDifficultyLocked   = fmt.Errorf("%w: difficulty is locked after the first round is created", ErrConflict)
	ErrPlayerNotFound     = fmt.Errorf("%w: player", ErrNotFound)
	ErrRoundNotFound      = fmt.Errorf("%w: round", ErrNotFound)
	ErrInvalidRequest     = fmt.Errorf("%w: invalid request", ErrValidation)
	ErrInternalError      = errors.New("internal server error")
)

// IsValidationError reports whether err is malformed or empty user input
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsStateError reports whether err is an action invalid for the current lifecycle state
func IsStateError(err error) bool {
	return errors.Is(err, ErrState)
}

// IsConflictError reports whether err violates a uniqueness or singleton invariant
func IsConflictError(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
