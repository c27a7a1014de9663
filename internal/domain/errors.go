package domain

import (
	"errors"
	"fmt"
)

var (
	ErrReferencePriceUnavailable = errors.New("reference price unavailable")
	ErrDuplicateStrikeCollision  = errors.New("duplicate strike collision")
	ErrOrderRejected             = errors.New("order rejected")
	ErrRateLimited               = errors.New("rate limited")
	ErrVenueUnavailable          = errors.New("venue unavailable")
	ErrAuthFailure               = errors.New("authentication failed")
	ErrOperationInFlight         = errors.New("operation already in flight")
	ErrInstanceTerminal          = errors.New("instance is terminal")
	ErrInstanceNotFound          = errors.New("instance not found")
	ErrLockHeld                  = errors.New("lock already held")
)

// Fatal reports whether an error must abort supervision for all instances
// rather than being contained to the failing cycle.
func Fatal(err error) bool {
	return errors.Is(err, ErrAuthFailure) || errors.Is(err, ErrVenueUnavailable)
}

// CompensationResult records one compensating close attempt made after a
// partial placement failure.
type CompensationResult struct {
	InstrumentID string
	Side         Side
	Quantity     int
	OrderID      string
	Attempts     int
	Err          error
}

// PlacementFailure reports a multi-leg placement that could not be completed.
// ConfirmedLegs is how many legs the venue accepted before the failure;
// Compensations holds one entry per confirmed leg, in the order the
// compensating closes were attempted.
type PlacementFailure struct {
	InstanceID    string
	FailedLeg     string
	ConfirmedLegs int
	Cause         error
	Compensations []CompensationResult
}

func (e *PlacementFailure) Error() string {
	return fmt.Sprintf("placement failed for instance %s at leg %s after %d confirmed legs: %v",
		e.InstanceID, e.FailedLeg, e.ConfirmedLegs, e.Cause)
}

func (e *PlacementFailure) Unwrap() error { return e.Cause }

// CompensationFailed reports whether any compensating close did not go
// through. Such legs remain open at the venue and need manual attention.
func (e *PlacementFailure) CompensationFailed() bool {
	for _, c := range e.Compensations {
		if c.Err != nil {
			return true
		}
	}
	return false
}

// Mismatch is one divergence between engine-believed and venue-reported leg
// state.
type Mismatch struct {
	InstrumentID string
	ExpectedQty  int
	ReportedQty  int
}

// MismatchError is returned by reconciliation when the venue reports zero
// quantity for legs the instance believes are active. It is non-fatal: the
// snapshot it accompanies is still valid, and the engine does not attempt to
// auto-resolve the ambiguity (the leg may have been closed out-of-band or
// never filled).
type MismatchError struct {
	InstanceID string
	Mismatches []Mismatch
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("reconciliation mismatch for instance %s: %d legs diverge from venue state",
		e.InstanceID, len(e.Mismatches))
}
