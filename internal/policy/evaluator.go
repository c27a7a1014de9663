// Package policy holds the exit policy evaluator. Evaluation is a pure
// function of its inputs: identical inputs always yield the identical
// decision, with no clock or randomness beyond the supplied elapsed time.
package policy

import (
	"math"
	"time"

	"github.com/tradeweave/optengine/internal/domain"
)

// Input is everything one evaluation depends on.
type Input struct {
	AggregatePnL   float64
	AggregateDelta float64
	Elapsed        time.Duration
	Thresholds     domain.Thresholds
	// HedgeInstrument is the symbol a rebalance order would be placed on,
	// typically a future on the instance's underlying.
	HedgeInstrument string
	// CloseRequested is set when an operator asked for a manual exit.
	CloseRequested bool
}

// Evaluate applies the fixed-priority exit rules: stop-loss, profit target,
// time exit, manual request, then delta rebalance. The first matching rule
// wins regardless of input order.
func Evaluate(in Input) domain.ExitDecision {
	th := in.Thresholds

	if in.AggregatePnL <= -th.MaxLoss {
		return domain.Close(domain.CloseStopHit)
	}
	if in.AggregatePnL >= th.TargetProfit {
		return domain.Close(domain.CloseTargetHit)
	}
	if th.ExpiryHorizon > 0 && in.Elapsed >= th.ExpiryHorizon-th.DTEExit {
		return domain.Close(domain.CloseTimeExpired)
	}
	if in.CloseRequested {
		return domain.Close(domain.CloseManual)
	}

	drift := in.AggregateDelta - th.TargetDelta
	if math.Abs(drift) > th.DeltaTolerance && th.LotSize > 0 {
		lots := int(math.Round(math.Abs(drift) / float64(th.LotSize)))
		if lots == 0 {
			// Drift breaches tolerance but rounds below one lot; a zero
			// quantity order would be rejected, so hold instead.
			return domain.Continue()
		}
		side := domain.SideBuy
		if drift > 0 {
			side = domain.SideSell
		}
		return domain.Rebalance(in.HedgeInstrument, lots, side)
	}

	return domain.Continue()
}
