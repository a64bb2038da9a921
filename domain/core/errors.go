package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound           = errors.New("resource not found")
	ErrStudyNotFound      = fmt.Errorf("%w: study", ErrNotFound)
	ErrIndividualNotFound = fmt.Errorf("%w: individual", ErrNotFound)
	ErrTableNotFound      = fmt.Errorf("%w: result table", ErrNotFound)

	// Configuration errors - reject the run before any computation
	ErrInvalidNeighbors  = errors.New("neighbor count out of range")
	ErrInvalidAlpha      = errors.New("alpha outside (0, 1)")
	ErrInvalidShuffles   = errors.New("permutation shuffle count below 1")
	ErrInvalidCorrection = errors.New("unknown correction method")

	// Integrity errors - malformed input that validation should have caught
	ErrDataGap    = errors.New("no residence interval covers date")
	ErrDanglingID = errors.New("interval references unknown individual")
	ErrEmptyStudy = errors.New("study has no individuals")

	// Determinism errors
	ErrSeedMismatch = errors.New("seed mismatch")
)

// NewDataGapError reports an individual whose own boundaries produced an
// axis date that none of its intervals cover.
func NewDataGapError(id IndividualID, d Date) error {
	return fmt.Errorf("%w: individual %s on %s", ErrDataGap, id, d)
}

// NewNotFoundError builds a not-found error with resource context.
func NewNotFoundError(resource, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// IsNotFoundError checks whether err is any not-found error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConfigError checks whether err is a configuration rejection.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidNeighbors) ||
		errors.Is(err, ErrInvalidAlpha) ||
		errors.Is(err, ErrInvalidShuffles) ||
		errors.Is(err, ErrInvalidCorrection)
}

// IsIntegrityError checks whether err indicates malformed validated input.
func IsIntegrityError(err error) bool {
	return errors.Is(err, ErrDataGap) ||
		errors.Is(err, ErrDanglingID) ||
		errors.Is(err, ErrEmptyStudy)
}
