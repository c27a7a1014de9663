package instrument

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeweave/optengine/internal/domain"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "NIFTY30JAN2521200CE", Format("NIFTY", "30JAN25", 21200, domain.KindCall))
	assert.Equal(t, "NIFTY30JAN2520800PE", Format("NIFTY", "30JAN25", 20800, domain.KindPut))
	assert.Equal(t, "NIFTY30JAN25FUT", Format("NIFTY", "30JAN25", 0, domain.KindFuture))
	assert.Equal(t, "BANKNIFTY05FEB25FUT", FormatFuture("BANKNIFTY", "05FEB25"))
}

func TestParseRoundTrip(t *testing.T) {
	cases := []struct {
		underlying string
		expiry     string
		strike     int
		kind       domain.InstrumentKind
	}{
		{"NIFTY", "30JAN25", 21200, domain.KindCall},
		{"NIFTY", "30JAN25", 20700, domain.KindPut},
		{"BANKNIFTY", "05FEB25", 48500, domain.KindCall},
		{"NIFTY", "30JAN25", 0, domain.KindFuture},
	}
	for _, tc := range cases {
		symbol := Format(tc.underlying, tc.expiry, tc.strike, tc.kind)
		underlying, expiry, strike, kind, err := Parse(symbol)
		require.NoError(t, err, symbol)
		assert.Equal(t, tc.underlying, underlying)
		assert.Equal(t, tc.expiry, expiry)
		assert.Equal(t, tc.strike, strike)
		assert.Equal(t, tc.kind, kind)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, symbol := range []string{"", "NIFTY", "NIFTY30JAN25", "NIFTY30JAN2521200XX", "30JAN2521200CE"} {
		_, _, _, _, err := Parse(symbol)
		assert.Error(t, err, symbol)
	}
}

func TestAtmStrike(t *testing.T) {
	assert.Equal(t, 21000, AtmStrike(21000, 50))
	assert.Equal(t, 21000, AtmStrike(21012.35, 50))
	assert.Equal(t, 21050, AtmStrike(21025, 50))
	assert.Equal(t, 21000, AtmStrike(20980.5, 50))
	assert.Equal(t, 48500, AtmStrike(48473.2, 100))
}

func TestNextWeeklyExpiry(t *testing.T) {
	// 2025-01-27 is a Monday; the coming Thursday is the 30th.
	monday := time.Date(2025, time.January, 27, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "30JAN25", NextWeeklyExpiry(monday))

	// On a Thursday the engine rolls to the following week.
	thursday := time.Date(2025, time.January, 30, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "06FEB25", NextWeeklyExpiry(thursday))

	friday := time.Date(2025, time.January, 31, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "06FEB25", NextWeeklyExpiry(friday))
}
