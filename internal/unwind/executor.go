// Package unwind issues the venue orders implied by close and rebalance
// decisions. All orders go through the same shared rate budget as initial
// placement.
package unwind

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tradeweave/optengine/internal/domain"
	"github.com/tradeweave/optengine/internal/ratelimit"
)

// Executor drives instance teardown and delta hedging.
type Executor struct {
	broker  domain.Broker
	limiter *ratelimit.Limiter
	journal domain.Journal
	logger  *slog.Logger

	strategyTag string
}

// New creates an unwind Executor.
func New(broker domain.Broker, limiter *ratelimit.Limiter, journal domain.Journal, strategyTag string, logger *slog.Logger) *Executor {
	return &Executor{
		broker:      broker,
		limiter:     limiter,
		journal:     journal,
		logger:      logger.With(slog.String("component", "unwind")),
		strategyTag: strategyTag,
	}
}

// Close issues one flipped order per leg with nonzero confirmed quantity and
// moves the instance ACTIVE -> EXITING. It does not mark the instance closed:
// closure is confirmed against venue state by ConfirmClosed on a later
// reconciliation pass, never assumed from order acknowledgements. Close is
// single-flight per instance.
func (e *Executor) Close(ctx context.Context, inst *domain.StrategyInstance, reason domain.CloseReason) error {
	if err := inst.BeginOp("unwind"); err != nil {
		return err
	}
	defer inst.EndOp()

	if err := inst.Transition(domain.StatusExiting); err != nil {
		return err
	}
	e.record(ctx, "status_transition", map[string]any{
		"instance_id": inst.ID,
		"from":        string(domain.StatusActive),
		"to":          string(domain.StatusExiting),
		"reason":      string(reason),
	})

	for i := range inst.Legs {
		leg := &inst.Legs[i]
		if leg.ConfirmedQuantity == 0 {
			continue
		}
		if err := e.limiter.Acquire(ctx, ratelimit.KindRegular); err != nil {
			return err
		}
		res, err := e.broker.PlaceOrder(ctx, domain.OrderRequest{
			StrategyTag: e.strategyTag,
			Symbol:      leg.InstrumentID,
			Exchange:    inst.Blueprint.OptionsExchange,
			Side:        leg.Side.Flip(),
			Product:     domain.ProductIntraday,
			OrderType:   domain.OrderTypeMarket,
			Quantity:    leg.ConfirmedQuantity,
		})
		if err != nil {
			// Leave the instance EXITING: the next supervision cycle sees the
			// still-open legs and the operator gets a journaled failure.
			e.record(ctx, "close_leg_failed", map[string]any{
				"instance_id": inst.ID,
				"instrument":  leg.InstrumentID,
				"error":       err.Error(),
			})
			return fmt.Errorf("unwind: close leg %s: %w", leg.InstrumentID, err)
		}
		e.record(ctx, "close_leg_placed", map[string]any{
			"instance_id": inst.ID,
			"instrument":  leg.InstrumentID,
			"side":        string(leg.Side.Flip()),
			"quantity":    leg.ConfirmedQuantity,
			"order_id":    res.OrderID,
		})
	}

	e.logger.Info("close orders placed",
		slog.String("instance_id", inst.ID),
		slog.String("reason", string(reason)),
	)
	return nil
}

// ConfirmClosed checks a fresh snapshot for an EXITING instance and, when the
// venue reports zero net quantity on every leg, finalizes the instance as
// CLOSED. It returns true once the instance is terminal.
func (e *Executor) ConfirmClosed(ctx context.Context, inst *domain.StrategyInstance, snap domain.PositionSnapshot) (bool, error) {
	if inst.Status != domain.StatusExiting {
		return inst.Status == domain.StatusClosed, nil
	}
	if !snap.Flat() {
		return false, nil
	}
	for i := range inst.Legs {
		inst.Legs[i].ConfirmedQuantity = 0
	}
	if err := inst.Transition(domain.StatusClosed); err != nil {
		return false, err
	}
	e.record(ctx, "status_transition", map[string]any{
		"instance_id":  inst.ID,
		"from":         string(domain.StatusExiting),
		"to":           string(domain.StatusClosed),
		"realized_pnl": inst.RealizedPnL,
	})
	e.logger.Info("instance closed, venue confirmed flat",
		slog.String("instance_id", inst.ID),
		slog.Float64("realized_pnl", inst.RealizedPnL),
	)
	return true, nil
}

// Rebalance issues exactly one hedge order from the decision. The hedge is
// recorded as an extra instance leg so later reconciliation tracks it and a
// later close flattens it; the instance stays ACTIVE throughout.
func (e *Executor) Rebalance(ctx context.Context, inst *domain.StrategyInstance, dec domain.ExitDecision) error {
	if dec.Action != domain.ActionRebalance || dec.HedgeQuantity <= 0 {
		return fmt.Errorf("unwind: rebalance called with non-rebalance decision %s", dec.Action)
	}
	if err := inst.BeginOp("rebalance"); err != nil {
		return err
	}
	defer inst.EndOp()

	qty := dec.HedgeQuantity * inst.Blueprint.LotSize
	if err := e.limiter.Acquire(ctx, ratelimit.KindSmart); err != nil {
		return err
	}
	res, err := e.broker.PlaceOrder(ctx, domain.OrderRequest{
		StrategyTag: e.strategyTag,
		Symbol:      dec.HedgeInstrument,
		Exchange:    inst.Blueprint.OptionsExchange,
		Side:        dec.HedgeSide,
		Product:     domain.ProductIntraday,
		OrderType:   domain.OrderTypeMarket,
		Quantity:    qty,
	})
	if err != nil {
		e.record(ctx, "rebalance_failed", map[string]any{
			"instance_id": inst.ID,
			"instrument":  dec.HedgeInstrument,
			"error":       err.Error(),
		})
		return fmt.Errorf("unwind: rebalance %s: %w", dec.HedgeInstrument, err)
	}

	// Fold the hedge into an existing same-side hedge leg if one exists,
	// otherwise append a new leg.
	if leg := inst.LegByInstrument(dec.HedgeInstrument); leg != nil && leg.Side == dec.HedgeSide {
		leg.ConfirmedQuantity += qty
		leg.TargetQuantity += qty
	} else {
		inst.Legs = append(inst.Legs, domain.Leg{
			InstrumentID:      dec.HedgeInstrument,
			Kind:              domain.KindFuture,
			Side:              dec.HedgeSide,
			TargetQuantity:    qty,
			ConfirmedQuantity: qty,
			OrderID:           res.OrderID,
		})
	}

	e.record(ctx, "rebalance_placed", map[string]any{
		"instance_id": inst.ID,
		"instrument":  dec.HedgeInstrument,
		"side":        string(dec.HedgeSide),
		"lots":        dec.HedgeQuantity,
		"quantity":    qty,
		"order_id":    res.OrderID,
	})
	return nil
}

func (e *Executor) record(ctx context.Context, event string, detail map[string]any) {
	if e.journal == nil {
		return
	}
	if err := e.journal.Record(ctx, event, detail); err != nil {
		e.logger.Warn("journal write failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
