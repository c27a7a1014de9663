package domain

import (
	"fmt"
	"sync"
	"time"
)

// InstanceStatus tracks the lifecycle of a strategy instance. Transitions are
// monotonic forward, except that Placing may fall to Failed after an
// attempted compensation. Closed and Failed are terminal.
type InstanceStatus string

const (
	StatusPending InstanceStatus = "pending"
	StatusPlacing InstanceStatus = "placing"
	StatusActive  InstanceStatus = "active"
	StatusExiting InstanceStatus = "exiting"
	StatusClosed  InstanceStatus = "closed"
	StatusFailed  InstanceStatus = "failed"
)

// Terminal reports whether no further orchestration or reconciliation may run
// against an instance in this status.
func (s InstanceStatus) Terminal() bool {
	return s == StatusClosed || s == StatusFailed
}

// validTransitions enumerates every permitted status edge.
var validTransitions = map[InstanceStatus][]InstanceStatus{
	StatusPending: {StatusPlacing},
	StatusPlacing: {StatusActive, StatusFailed},
	StatusActive:  {StatusExiting},
	StatusExiting: {StatusClosed},
}

// Leg is one concrete order slot of a strategy instance. Legs are owned
// exclusively by their instance and never shared.
type Leg struct {
	InstrumentID      string
	Kind              InstrumentKind
	Strike            int // 0 for futures legs
	Side              Side
	TargetQuantity    int
	ConfirmedQuantity int
	OrderID           string
}

// SignedQuantity returns the confirmed quantity with buy positive and sell
// negative.
func (l Leg) SignedQuantity() int {
	return l.ConfirmedQuantity * l.Side.Sign()
}

// StrategyInstance is one live execution of a blueprint. The blueprint is
// shared and read-only; everything else is mutated only by the engine
// components while holding the instance's operation gate or from the single
// supervision goroutine that owns the instance.
type StrategyInstance struct {
	ID        string
	Blueprint *StrategyBlueprint
	Legs      []Leg
	Status    InstanceStatus
	EntryTime time.Time
	// ReferencePrice is the underlying price the legs were resolved against.
	ReferencePrice float64
	RealizedPnL    float64
	UnrealizedPnL  float64

	opMu       sync.Mutex
	inFlightOp string
}

// BeginOp acquires the instance's single-flight gate for the named operation
// (e.g. "place", "unwind"). It returns ErrOperationInFlight without blocking
// when another orchestration is already running for this instance.
func (si *StrategyInstance) BeginOp(op string) error {
	if !si.opMu.TryLock() {
		return fmt.Errorf("%w: instance %s (%s)", ErrOperationInFlight, si.ID, op)
	}
	si.inFlightOp = op
	return nil
}

// EndOp releases the single-flight gate acquired by BeginOp.
func (si *StrategyInstance) EndOp() {
	si.inFlightOp = ""
	si.opMu.Unlock()
}

// Transition moves the instance to the given status, enforcing the forward
// lifecycle. It returns an error for any edge not in the lifecycle graph.
func (si *StrategyInstance) Transition(to InstanceStatus) error {
	if si.Status.Terminal() {
		return fmt.Errorf("%w: instance %s is %s", ErrInstanceTerminal, si.ID, si.Status)
	}
	for _, next := range validTransitions[si.Status] {
		if next == to {
			si.Status = to
			return nil
		}
	}
	return fmt.Errorf("instance %s: invalid status transition %s -> %s", si.ID, si.Status, to)
}

// LegByInstrument returns a pointer to the leg holding the given instrument
// id, or nil when the instance has no such leg.
func (si *StrategyInstance) LegByInstrument(instrumentID string) *Leg {
	for i := range si.Legs {
		if si.Legs[i].InstrumentID == instrumentID {
			return &si.Legs[i]
		}
	}
	return nil
}

// InstrumentIDs returns the instrument ids of all legs in declaration order.
func (si *StrategyInstance) InstrumentIDs() []string {
	ids := make([]string, len(si.Legs))
	for i, leg := range si.Legs {
		ids[i] = leg.InstrumentID
	}
	return ids
}

// Elapsed returns the time the instance has been alive relative to now.
func (si *StrategyInstance) Elapsed(now time.Time) time.Duration {
	if si.EntryTime.IsZero() {
		return 0
	}
	return now.Sub(si.EntryTime)
}
