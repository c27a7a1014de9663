package domain

import "fmt"

// Side indicates whether a leg buys or sells.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Flip returns the opposite side. It is used when building compensating and
// closing orders.
func (s Side) Flip() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Sign returns +1 for buy legs and -1 for sell legs.
func (s Side) Sign() int {
	if s == SideBuy {
		return 1
	}
	return -1
}

// InstrumentKind identifies the contract type of a leg.
type InstrumentKind string

const (
	KindCall   InstrumentKind = "call"
	KindPut    InstrumentKind = "put"
	KindFuture InstrumentKind = "future"
)

// LegTemplate describes one leg of a strategy relative to the underlying's
// reference price. StrikeOffset is nil for futures legs, which have no strike.
type LegTemplate struct {
	Side         Side
	Kind         InstrumentKind
	StrikeOffset *int
	Ratio        int
}

// StrategyBlueprint is the abstract description of a multi-leg strategy.
// It is immutable once a StrategyInstance has been created from it.
type StrategyBlueprint struct {
	Name            string
	Underlying      string
	Exchange        string // exchange quoting the underlying, e.g. NSE_INDEX
	OptionsExchange string // exchange carrying the derivative legs, e.g. NFO
	Expiry          string // venue expiry tag, DDMMMYY
	Legs            []LegTemplate
	LotSize         int
	StrikeStep      int
}

// Validate checks structural blueprint invariants before an instance is
// created from it.
func (b StrategyBlueprint) Validate() error {
	if b.Underlying == "" {
		return fmt.Errorf("blueprint: underlying is required")
	}
	if b.Expiry == "" {
		return fmt.Errorf("blueprint: expiry is required")
	}
	if len(b.Legs) == 0 {
		return fmt.Errorf("blueprint: at least one leg is required")
	}
	if b.LotSize <= 0 {
		return fmt.Errorf("blueprint: lot size must be positive, got %d", b.LotSize)
	}
	if b.StrikeStep <= 0 {
		return fmt.Errorf("blueprint: strike step must be positive, got %d", b.StrikeStep)
	}
	for i, leg := range b.Legs {
		if leg.Side != SideBuy && leg.Side != SideSell {
			return fmt.Errorf("blueprint: leg %d: invalid side %q", i, leg.Side)
		}
		if leg.Ratio <= 0 {
			return fmt.Errorf("blueprint: leg %d: ratio must be positive, got %d", i, leg.Ratio)
		}
		switch leg.Kind {
		case KindCall, KindPut:
			if leg.StrikeOffset == nil {
				return fmt.Errorf("blueprint: leg %d: option leg requires a strike offset", i)
			}
		case KindFuture:
			if leg.StrikeOffset != nil {
				return fmt.Errorf("blueprint: leg %d: futures leg cannot carry a strike offset", i)
			}
		default:
			return fmt.Errorf("blueprint: leg %d: invalid kind %q", i, leg.Kind)
		}
	}
	return nil
}
