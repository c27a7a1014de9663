package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tradeweave/optengine/internal/domain"
)

func baseThresholds() domain.Thresholds {
	return domain.Thresholds{
		TargetProfit:   2000,
		MaxLoss:        5000,
		TargetDelta:    0,
		DeltaTolerance: 10,
		ExpiryHorizon:  7 * 24 * time.Hour,
		DTEExit:        24 * time.Hour,
		LotSize:        25,
	}
}

func TestEvaluateStopHit(t *testing.T) {
	dec := Evaluate(Input{
		AggregatePnL: -5000,
		Thresholds:   baseThresholds(),
	})
	assert.Equal(t, domain.ActionClose, dec.Action)
	assert.Equal(t, domain.CloseStopHit, dec.Reason)
}

func TestEvaluateTargetHit(t *testing.T) {
	dec := Evaluate(Input{
		AggregatePnL: 2500,
		Thresholds:   baseThresholds(),
	})
	assert.Equal(t, domain.ActionClose, dec.Action)
	assert.Equal(t, domain.CloseTargetHit, dec.Reason)
}

func TestEvaluateStopBeatsTarget(t *testing.T) {
	// Degenerate thresholds where both rules fire at once: stop wins.
	th := baseThresholds()
	th.MaxLoss = 1000
	th.TargetProfit = -2000

	dec := Evaluate(Input{AggregatePnL: -1500, Thresholds: th})
	assert.Equal(t, domain.CloseStopHit, dec.Reason)
}

func TestEvaluateTimeExpired(t *testing.T) {
	th := baseThresholds()

	dec := Evaluate(Input{
		AggregatePnL: 100,
		Elapsed:      6*24*time.Hour + time.Minute,
		Thresholds:   th,
	})
	assert.Equal(t, domain.ActionClose, dec.Action)
	assert.Equal(t, domain.CloseTimeExpired, dec.Reason)

	dec = Evaluate(Input{
		AggregatePnL: 100,
		Elapsed:      5 * 24 * time.Hour,
		Thresholds:   th,
	})
	assert.Equal(t, domain.ActionContinue, dec.Action)
}

func TestEvaluateTimeRuleDisabledWithoutHorizon(t *testing.T) {
	th := baseThresholds()
	th.ExpiryHorizon = 0
	th.DTEExit = 0

	dec := Evaluate(Input{
		AggregatePnL: 100,
		Elapsed:      365 * 24 * time.Hour,
		Thresholds:   th,
	})
	assert.Equal(t, domain.ActionContinue, dec.Action)
}

func TestEvaluateManualClose(t *testing.T) {
	dec := Evaluate(Input{
		AggregatePnL:   100,
		Thresholds:     baseThresholds(),
		CloseRequested: true,
	})
	assert.Equal(t, domain.ActionClose, dec.Action)
	assert.Equal(t, domain.CloseManual, dec.Reason)
}

func TestEvaluateRebalanceSellWhenDeltaHigh(t *testing.T) {
	dec := Evaluate(Input{
		AggregatePnL:    100,
		AggregateDelta:  35,
		Thresholds:      baseThresholds(),
		HedgeInstrument: "NIFTY30JAN25FUT",
	})
	assert.Equal(t, domain.ActionRebalance, dec.Action)
	assert.Equal(t, "NIFTY30JAN25FUT", dec.HedgeInstrument)
	assert.Equal(t, 1, dec.HedgeQuantity)
	assert.Equal(t, domain.SideSell, dec.HedgeSide)
}

func TestEvaluateRebalanceBuyWhenDeltaLow(t *testing.T) {
	dec := Evaluate(Input{
		AggregatePnL:    100,
		AggregateDelta:  -60,
		Thresholds:      baseThresholds(),
		HedgeInstrument: "NIFTY30JAN25FUT",
	})
	assert.Equal(t, domain.ActionRebalance, dec.Action)
	assert.Equal(t, 2, dec.HedgeQuantity)
	assert.Equal(t, domain.SideBuy, dec.HedgeSide)
}

func TestEvaluateDriftWithinToleranceContinues(t *testing.T) {
	dec := Evaluate(Input{
		AggregatePnL:   100,
		AggregateDelta: 9.5,
		Thresholds:     baseThresholds(),
	})
	assert.Equal(t, domain.ActionContinue, dec.Action)
}

func TestEvaluateSubLotDriftHolds(t *testing.T) {
	// Drift breaches tolerance but rounds below one lot; a zero quantity
	// order would be rejected, so the policy holds.
	th := baseThresholds()
	th.DeltaTolerance = 5
	th.LotSize = 75

	dec := Evaluate(Input{
		AggregatePnL:   100,
		AggregateDelta: 12,
		Thresholds:     th,
	})
	assert.Equal(t, domain.ActionContinue, dec.Action)
}

func TestEvaluateCloseBeatsRebalance(t *testing.T) {
	dec := Evaluate(Input{
		AggregatePnL:   -9000,
		AggregateDelta: 120,
		Thresholds:     baseThresholds(),
	})
	assert.Equal(t, domain.ActionClose, dec.Action)
	assert.Equal(t, domain.CloseStopHit, dec.Reason)
}

func TestRebalanceNeverIncreasesDrift(t *testing.T) {
	// Applying the hedge on a static snapshot moves aggregate delta by
	// lots*lot_size against the drift; nearest-multiple rounding guarantees
	// the residual drift never exceeds the original.
	th := baseThresholds()
	for _, lot := range []int{25, 50, 75} {
		th.LotSize = lot
		for drift := -300.0; drift <= 300.0; drift += 7.3 {
			dec := Evaluate(Input{
				AggregatePnL:    0,
				AggregateDelta:  th.TargetDelta + drift,
				Thresholds:      th,
				HedgeInstrument: "NIFTY30JAN25FUT",
			})
			if dec.Action != domain.ActionRebalance {
				continue
			}
			hedge := float64(dec.HedgeQuantity * lot)
			if dec.HedgeSide == domain.SideSell {
				hedge = -hedge
			}
			residual := drift + hedge
			assert.LessOrEqual(t, absf(residual), absf(drift),
				"drift %.1f lot %d", drift, lot)
		}
	}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestEvaluateDeterministic(t *testing.T) {
	in := Input{
		AggregatePnL:    -123.45,
		AggregateDelta:  41,
		Elapsed:         3 * 24 * time.Hour,
		Thresholds:      baseThresholds(),
		HedgeInstrument: "NIFTY30JAN25FUT",
	}
	first := Evaluate(in)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Evaluate(in))
	}
}
