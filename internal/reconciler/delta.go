package reconciler

import (
	"math"

	"github.com/tradeweave/optengine/internal/domain"
)

// DeltaEstimator estimates the per-unit delta of a long position in one
// instrument. It is an injectable strategy: the default banded estimator is a
// coarse heuristic, and callers needing real pricing can supply their own
// model without touching the engine.
type DeltaEstimator interface {
	Estimate(kind domain.InstrumentKind, strike int, spot float64) float64
}

// BandedEstimator assigns deltas by moneyness band rather than pricing the
// option. This is a documented precision trade-off carried over from the
// engine's origins, not a defect.
type BandedEstimator struct {
	// ATMBand is the relative distance from spot within which a strike counts
	// as at-the-money; DeepBand is where it counts as deep in/out.
	ATMBand  float64
	DeepBand float64
}

// NewBandedEstimator returns the default banded estimator (1% ATM band, 5%
// deep band).
func NewBandedEstimator() *BandedEstimator {
	return &BandedEstimator{ATMBand: 0.01, DeepBand: 0.05}
}

// Estimate returns the banded delta. Futures are always 1. Calls are
// positive, puts negative via the put-call identity put = call - 1.
func (e *BandedEstimator) Estimate(kind domain.InstrumentKind, strike int, spot float64) float64 {
	if kind == domain.KindFuture {
		return 1
	}
	if spot <= 0 || strike <= 0 {
		return 0
	}

	// Moneyness from a call's perspective: positive means ITM.
	m := (spot - float64(strike)) / spot
	var call float64
	switch {
	case math.Abs(m) <= e.ATMBand:
		call = 0.5
	case m >= e.DeepBand:
		call = 0.9
	case m > 0:
		call = 0.7
	case m <= -e.DeepBand:
		call = 0.1
	default:
		call = 0.3
	}

	if kind == domain.KindPut {
		return call - 1
	}
	return call
}

var _ DeltaEstimator = (*BandedEstimator)(nil)
