package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingInstance() *StrategyInstance {
	return &StrategyInstance{
		ID:     "inst-1",
		Status: StatusPending,
		Legs: []Leg{
			{InstrumentID: "NIFTY30JAN2521200CE", Side: SideSell, TargetQuantity: 75},
			{InstrumentID: "NIFTY30JAN2521300CE", Side: SideBuy, TargetQuantity: 75},
		},
	}
}

func TestTransitionLifecycle(t *testing.T) {
	inst := pendingInstance()

	require.NoError(t, inst.Transition(StatusPlacing))
	require.NoError(t, inst.Transition(StatusActive))
	require.NoError(t, inst.Transition(StatusExiting))
	require.NoError(t, inst.Transition(StatusClosed))
	assert.True(t, inst.Status.Terminal())
}

func TestTransitionPlacingMayFail(t *testing.T) {
	inst := pendingInstance()
	require.NoError(t, inst.Transition(StatusPlacing))
	require.NoError(t, inst.Transition(StatusFailed))
	assert.True(t, inst.Status.Terminal())
}

func TestTransitionRejectsSkips(t *testing.T) {
	inst := pendingInstance()
	assert.Error(t, inst.Transition(StatusActive))
	assert.Error(t, inst.Transition(StatusClosed))
	assert.Equal(t, StatusPending, inst.Status)
}

func TestTransitionRejectsBackwards(t *testing.T) {
	inst := pendingInstance()
	require.NoError(t, inst.Transition(StatusPlacing))
	require.NoError(t, inst.Transition(StatusActive))
	assert.Error(t, inst.Transition(StatusPlacing))
}

func TestTransitionTerminalIsFinal(t *testing.T) {
	inst := pendingInstance()
	require.NoError(t, inst.Transition(StatusPlacing))
	require.NoError(t, inst.Transition(StatusFailed))

	err := inst.Transition(StatusActive)
	assert.ErrorIs(t, err, ErrInstanceTerminal)
}

func TestBeginOpSingleFlight(t *testing.T) {
	inst := pendingInstance()

	require.NoError(t, inst.BeginOp("place"))
	err := inst.BeginOp("unwind")
	assert.ErrorIs(t, err, ErrOperationInFlight)

	inst.EndOp()
	assert.NoError(t, inst.BeginOp("unwind"))
	inst.EndOp()
}

func TestLegByInstrument(t *testing.T) {
	inst := pendingInstance()

	leg := inst.LegByInstrument("NIFTY30JAN2521300CE")
	require.NotNil(t, leg)
	assert.Equal(t, SideBuy, leg.Side)

	// The returned pointer aliases instance state.
	leg.ConfirmedQuantity = 75
	assert.Equal(t, 75, inst.Legs[1].ConfirmedQuantity)

	assert.Nil(t, inst.LegByInstrument("NIFTY30JAN25FUT"))
}

func TestSignedQuantity(t *testing.T) {
	buy := Leg{Side: SideBuy, ConfirmedQuantity: 75}
	sell := Leg{Side: SideSell, ConfirmedQuantity: 75}
	assert.Equal(t, 75, buy.SignedQuantity())
	assert.Equal(t, -75, sell.SignedQuantity())
}

func TestElapsed(t *testing.T) {
	inst := pendingInstance()
	now := time.Now().UTC()
	assert.Zero(t, inst.Elapsed(now))

	inst.EntryTime = now.Add(-3 * time.Hour)
	assert.Equal(t, 3*time.Hour, inst.Elapsed(now))
}

func TestSideFlipAndSign(t *testing.T) {
	assert.Equal(t, SideSell, SideBuy.Flip())
	assert.Equal(t, SideBuy, SideSell.Flip())
	assert.Equal(t, 1, SideBuy.Sign())
	assert.Equal(t, -1, SideSell.Sign())
}
