package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBlueprint() StrategyBlueprint {
	off := func(n int) *int { return &n }
	return StrategyBlueprint{
		Name:            "short-strangle",
		Underlying:      "NIFTY",
		Exchange:        "NSE_INDEX",
		OptionsExchange: "NFO",
		Expiry:          "30JAN25",
		LotSize:         75,
		StrikeStep:      50,
		Legs: []LegTemplate{
			{Side: SideSell, Kind: KindCall, StrikeOffset: off(200), Ratio: 1},
			{Side: SideSell, Kind: KindPut, StrikeOffset: off(-200), Ratio: 1},
		},
	}
}

func TestBlueprintValidate(t *testing.T) {
	require.NoError(t, validBlueprint().Validate())
}

func TestBlueprintValidateRejections(t *testing.T) {
	off := func(n int) *int { return &n }

	cases := map[string]func(*StrategyBlueprint){
		"missing underlying":   func(b *StrategyBlueprint) { b.Underlying = "" },
		"missing expiry":       func(b *StrategyBlueprint) { b.Expiry = "" },
		"no legs":              func(b *StrategyBlueprint) { b.Legs = nil },
		"zero lot size":        func(b *StrategyBlueprint) { b.LotSize = 0 },
		"zero strike step":     func(b *StrategyBlueprint) { b.StrikeStep = 0 },
		"bad side":             func(b *StrategyBlueprint) { b.Legs[0].Side = "hold" },
		"zero ratio":           func(b *StrategyBlueprint) { b.Legs[0].Ratio = 0 },
		"bad kind":             func(b *StrategyBlueprint) { b.Legs[0].Kind = "warrant" },
		"option without strike": func(b *StrategyBlueprint) { b.Legs[0].StrikeOffset = nil },
		"future with strike": func(b *StrategyBlueprint) {
			b.Legs[0] = LegTemplate{Side: SideBuy, Kind: KindFuture, StrikeOffset: off(100), Ratio: 1}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			bp := validBlueprint()
			mutate(&bp)
			assert.Error(t, bp.Validate())
		})
	}
}

func TestPlacementFailureReport(t *testing.T) {
	cause := ErrOrderRejected
	pf := &PlacementFailure{
		InstanceID:    "inst-1",
		FailedLeg:     "NIFTY30JAN2520800PE",
		ConfirmedLegs: 2,
		Cause:         cause,
		Compensations: []CompensationResult{
			{InstrumentID: "NIFTY30JAN2521200CE", Side: SideBuy, Quantity: 75, OrderID: "c1", Attempts: 1},
			{InstrumentID: "NIFTY30JAN2521300CE", Side: SideSell, Quantity: 75, Attempts: 3, Err: ErrVenueUnavailable},
		},
	}

	assert.ErrorIs(t, pf, ErrOrderRejected)
	assert.True(t, pf.CompensationFailed())
	assert.Contains(t, pf.Error(), "inst-1")
	assert.Contains(t, pf.Error(), "2 confirmed legs")

	pf.Compensations[1].Err = nil
	assert.False(t, pf.CompensationFailed())
}

func TestSnapshotFlat(t *testing.T) {
	snap := PositionSnapshot{Lines: map[string]PositionLine{
		"A": {Quantity: 0},
		"B": {Quantity: 0},
	}}
	assert.True(t, snap.Flat())

	snap.Lines["B"] = PositionLine{Quantity: -75}
	assert.False(t, snap.Flat())

	assert.True(t, PositionSnapshot{}.Flat())
}

func TestFatal(t *testing.T) {
	assert.True(t, Fatal(ErrAuthFailure))
	assert.True(t, Fatal(ErrVenueUnavailable))
	assert.False(t, Fatal(ErrOrderRejected))
	assert.False(t, Fatal(ErrRateLimited))
	assert.False(t, Fatal(nil))
}
