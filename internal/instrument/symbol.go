// Package instrument resolves strategy blueprints into concrete, venue-valid
// instruments and provides the symbol codec for the venue's naming scheme.
package instrument

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/tradeweave/optengine/internal/domain"
)

// Venue symbols look like NIFTY30JAN2521200CE: underlying, DDMMMYY expiry,
// strike, and a CE/PE/FUT suffix. Futures carry no strike.
var symbolRe = regexp.MustCompile(`^([A-Z][A-Z0-9]*?)(\d{2}[A-Z]{3}\d{2})(?:(\d+)(CE|PE)|FUT)$`)

func kindSuffix(kind domain.InstrumentKind) string {
	switch kind {
	case domain.KindCall:
		return "CE"
	case domain.KindPut:
		return "PE"
	default:
		return "FUT"
	}
}

// Format builds the venue symbol for an option contract.
func Format(underlying, expiry string, strike int, kind domain.InstrumentKind) string {
	if kind == domain.KindFuture {
		return FormatFuture(underlying, expiry)
	}
	return fmt.Sprintf("%s%s%d%s", underlying, expiry, strike, kindSuffix(kind))
}

// FormatFuture builds the venue symbol for a futures contract on the
// underlying.
func FormatFuture(underlying, expiry string) string {
	return fmt.Sprintf("%s%sFUT", underlying, expiry)
}

// Parse decomposes a venue symbol back into its parts. It is the inverse of
// Format: Parse(Format(u, e, k, kind)) yields the same tuple.
func Parse(symbol string) (underlying, expiry string, strike int, kind domain.InstrumentKind, err error) {
	m := symbolRe.FindStringSubmatch(symbol)
	if m == nil {
		return "", "", 0, "", fmt.Errorf("instrument: unparseable symbol %q", symbol)
	}
	underlying, expiry = m[1], m[2]
	if m[4] == "" {
		return underlying, expiry, 0, domain.KindFuture, nil
	}
	strike, err = strconv.Atoi(m[3])
	if err != nil {
		return "", "", 0, "", fmt.Errorf("instrument: symbol %q: bad strike: %w", symbol, err)
	}
	if m[4] == "CE" {
		kind = domain.KindCall
	} else {
		kind = domain.KindPut
	}
	return underlying, expiry, strike, kind, nil
}
