package instrument

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/tradeweave/optengine/internal/domain"
)

// QuoteGetter is the slice of the venue contract the resolver needs.
type QuoteGetter interface {
	GetQuote(ctx context.Context, symbol, exchange string) (domain.Quote, error)
}

// Resolver maps a strategy blueprint plus a live reference price into
// concrete venue instruments and quantities.
type Resolver struct {
	quotes QuoteGetter
	logger *slog.Logger
}

// NewResolver creates a Resolver that reads reference prices through quotes.
func NewResolver(quotes QuoteGetter, logger *slog.Logger) *Resolver {
	return &Resolver{
		quotes: quotes,
		logger: logger.With(slog.String("component", "instrument_resolver")),
	}
}

// AtmStrike snaps a reference price onto the strike grid.
func AtmStrike(referencePrice float64, strikeStep int) int {
	return int(math.Round(referencePrice/float64(strikeStep))) * strikeStep
}

// Resolve produces one Leg per blueprint leg template. It fails with
// domain.ErrReferencePriceUnavailable when the quote collaborator returns no
// usable price, and with domain.ErrDuplicateStrikeCollision when two legs of
// opposite sides resolve to the same instrument (a blueprint configuration
// error, never retried).
func (r *Resolver) Resolve(ctx context.Context, bp *domain.StrategyBlueprint) ([]domain.Leg, float64, error) {
	quote, err := r.quotes.GetQuote(ctx, bp.Underlying, bp.Exchange)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s on %s: %v",
			domain.ErrReferencePriceUnavailable, bp.Underlying, bp.Exchange, err)
	}
	if quote.LastPrice <= 0 {
		return nil, 0, fmt.Errorf("%w: %s on %s reported last price %v",
			domain.ErrReferencePriceUnavailable, bp.Underlying, bp.Exchange, quote.LastPrice)
	}

	atm := AtmStrike(quote.LastPrice, bp.StrikeStep)
	legs := make([]domain.Leg, 0, len(bp.Legs))
	for _, tpl := range bp.Legs {
		strike := 0
		if tpl.Kind != domain.KindFuture {
			strike = atm + *tpl.StrikeOffset
		}
		legs = append(legs, domain.Leg{
			InstrumentID:   Format(bp.Underlying, bp.Expiry, strike, tpl.Kind),
			Kind:           tpl.Kind,
			Strike:         strike,
			Side:           tpl.Side,
			TargetQuantity: tpl.Ratio * bp.LotSize,
		})
	}

	// Two legs landing on the same instrument with opposite sides would
	// cancel each other at the venue; that is a blueprint error.
	for i := range legs {
		for j := i + 1; j < len(legs); j++ {
			if legs[i].InstrumentID == legs[j].InstrumentID && legs[i].Side != legs[j].Side {
				return nil, 0, fmt.Errorf("%w: legs %d and %d both resolve to %s",
					domain.ErrDuplicateStrikeCollision, i, j, legs[i].InstrumentID)
			}
		}
	}

	r.logger.Debug("blueprint resolved",
		slog.String("underlying", bp.Underlying),
		slog.Float64("reference_price", quote.LastPrice),
		slog.Int("atm_strike", atm),
		slog.Int("legs", len(legs)),
	)
	return legs, quote.LastPrice, nil
}
