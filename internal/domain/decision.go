package domain

import "time"

// ExitAction is the closed set of actions the exit policy can request.
type ExitAction string

const (
	ActionContinue  ExitAction = "continue"
	ActionClose     ExitAction = "close"
	ActionRebalance ExitAction = "rebalance"
)

// CloseReason explains why a close was requested.
type CloseReason string

const (
	CloseTargetHit   CloseReason = "target_hit"
	CloseStopHit     CloseReason = "stop_hit"
	CloseTimeExpired CloseReason = "time_expired"
	CloseManual      CloseReason = "manual"
)

// ExitDecision is the tagged result of one exit policy evaluation. Reason is
// set only for close decisions; the hedge fields only for rebalances.
type ExitDecision struct {
	Action ExitAction
	Reason CloseReason

	HedgeInstrument string
	HedgeQuantity   int // lots
	HedgeSide       Side
}

// Continue is the zero-action decision.
func Continue() ExitDecision {
	return ExitDecision{Action: ActionContinue}
}

// Close builds a close decision with the given reason.
func Close(reason CloseReason) ExitDecision {
	return ExitDecision{Action: ActionClose, Reason: reason}
}

// Rebalance builds a hedge decision.
func Rebalance(instrument string, lots int, side Side) ExitDecision {
	return ExitDecision{
		Action:          ActionRebalance,
		HedgeInstrument: instrument,
		HedgeQuantity:   lots,
		HedgeSide:       side,
	}
}

// Thresholds are the exit policy inputs that do not change per cycle. They
// are derived from configuration when the instance is submitted.
type Thresholds struct {
	TargetProfit   float64
	MaxLoss        float64
	TargetDelta    float64
	DeltaTolerance float64
	// ExpiryHorizon is the time from entry until contract expiry; DTEExit is
	// how long before the horizon the instance must be closed.
	ExpiryHorizon time.Duration
	DTEExit       time.Duration
	LotSize       int
}
