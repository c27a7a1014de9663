package domain

import "time"

// PositionLine is the venue-reported state of a single instrument, restricted
// to the fields the engine needs.
type PositionLine struct {
	Quantity      int // net quantity as reported by the venue (signed)
	AveragePrice  float64
	LastPrice     float64
	RealizedPnL   float64
	UnrealizedPnL float64 // computed per leg, not venue-reported
}

// PositionSnapshot is the normalized venue state for one strategy instance,
// sourced fresh from the venue each reconciliation cycle and never cached
// across cycles.
type PositionSnapshot struct {
	InstanceID string
	TakenAt    time.Time
	Lines      map[string]PositionLine // keyed by instrument id

	AggregateUnrealized float64
	AggregateRealized   float64
	// AggregateDelta is the estimated net delta of the instance in underlying
	// units, produced by the configured DeltaEstimator.
	AggregateDelta float64
}

// Flat reports whether every instrument in the snapshot has zero net
// quantity. The unwind path uses it to confirm a close against venue state
// rather than trusting order acknowledgements.
func (ps PositionSnapshot) Flat() bool {
	for _, line := range ps.Lines {
		if line.Quantity != 0 {
			return false
		}
	}
	return true
}
