// Package orchestrator turns a resolved strategy instance into venue orders,
// placing legs in blueprint order under the shared rate budget and
// compensating already-confirmed legs when a later leg fails.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tradeweave/optengine/internal/domain"
	"github.com/tradeweave/optengine/internal/instrument"
	"github.com/tradeweave/optengine/internal/ratelimit"
)

const defaultCompensationRetries = 2

// Orchestrator owns instance creation and the multi-leg placement protocol.
type Orchestrator struct {
	broker   domain.Broker
	resolver *instrument.Resolver
	limiter  *ratelimit.Limiter
	journal  domain.Journal
	logger   *slog.Logger

	strategyTag         string
	compensationRetries int
}

// New creates an Orchestrator. strategyTag is attached to every order so
// venue reports can be traced back to this engine.
func New(
	broker domain.Broker,
	resolver *instrument.Resolver,
	limiter *ratelimit.Limiter,
	journal domain.Journal,
	strategyTag string,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		broker:              broker,
		resolver:            resolver,
		limiter:             limiter,
		journal:             journal,
		logger:              logger.With(slog.String("component", "orchestrator")),
		strategyTag:         strategyTag,
		compensationRetries: defaultCompensationRetries,
	}
}

// SetCompensationRetries bounds how often a single compensating close is
// retried. Must be called before Place.
func (o *Orchestrator) SetCompensationRetries(n int) {
	if n >= 0 {
		o.compensationRetries = n
	}
}

// NewInstance resolves the blueprint against the current reference price and
// returns a pending StrategyInstance. The blueprint is not mutated and is
// shared read-only by the instance.
func (o *Orchestrator) NewInstance(ctx context.Context, bp *domain.StrategyBlueprint) (*domain.StrategyInstance, error) {
	if err := bp.Validate(); err != nil {
		return nil, fmt.Errorf("orchestrator: new instance: %w", err)
	}
	legs, refPrice, err := o.resolver.Resolve(ctx, bp)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: new instance: %w", err)
	}

	inst := &domain.StrategyInstance{
		ID:             uuid.New().String(),
		Blueprint:      bp,
		Legs:           legs,
		Status:         domain.StatusPending,
		ReferencePrice: refPrice,
	}
	o.record(ctx, "instance_created", map[string]any{
		"instance_id":     inst.ID,
		"blueprint":       bp.Name,
		"underlying":      bp.Underlying,
		"expiry":          bp.Expiry,
		"reference_price": refPrice,
		"legs":            inst.InstrumentIDs(),
	})
	return inst, nil
}

// Place submits the instance's legs in declared order. On success the
// instance is ACTIVE with every leg confirmed and its order id recorded. If a
// leg fails after k legs were confirmed, compensating closes are attempted
// for those k legs, the instance is FAILED, and the returned
// *domain.PlacementFailure describes what happened to each leg. Place is
// single-flight per instance.
func (o *Orchestrator) Place(ctx context.Context, inst *domain.StrategyInstance) error {
	if err := inst.BeginOp("place"); err != nil {
		return err
	}
	defer inst.EndOp()

	if err := inst.Transition(domain.StatusPlacing); err != nil {
		return err
	}
	o.transitionRecord(ctx, inst, domain.StatusPending)

	for i := range inst.Legs {
		leg := &inst.Legs[i]
		if err := o.placeLeg(ctx, inst, leg); err != nil {
			return o.fail(ctx, inst, leg, i, err)
		}
		leg.ConfirmedQuantity = leg.TargetQuantity
		o.record(ctx, "leg_placed", map[string]any{
			"instance_id": inst.ID,
			"instrument":  leg.InstrumentID,
			"side":        string(leg.Side),
			"quantity":    leg.TargetQuantity,
			"order_id":    leg.OrderID,
		})
	}

	inst.EntryTime = time.Now().UTC()
	if err := inst.Transition(domain.StatusActive); err != nil {
		return err
	}
	o.transitionRecord(ctx, inst, domain.StatusPlacing)
	o.logger.Info("instance placed",
		slog.String("instance_id", inst.ID),
		slog.Int("legs", len(inst.Legs)),
	)
	return nil
}

// placeLeg submits one leg order under the shared rate budget. On an
// ambiguous failure (timeout with unknown outcome) it checks the venue
// position book before declaring the leg unplaced; it never blindly
// resubmits.
func (o *Orchestrator) placeLeg(ctx context.Context, inst *domain.StrategyInstance, leg *domain.Leg) error {
	if err := o.limiter.Acquire(ctx, ratelimit.KindRegular); err != nil {
		return err
	}

	res, err := o.broker.PlaceOrder(ctx, domain.OrderRequest{
		StrategyTag: o.strategyTag,
		Symbol:      leg.InstrumentID,
		Exchange:    inst.Blueprint.OptionsExchange,
		Side:        leg.Side,
		Product:     domain.ProductIntraday,
		OrderType:   domain.OrderTypeMarket,
		Quantity:    leg.TargetQuantity,
	})
	if err == nil {
		leg.OrderID = res.OrderID
		return nil
	}

	if ambiguous(err) {
		if placed, vErr := o.verifyPlaced(ctx, leg); vErr == nil && placed {
			o.logger.Warn("order timed out but venue reports the position, keeping leg",
				slog.String("instance_id", inst.ID),
				slog.String("instrument", leg.InstrumentID),
			)
			return nil
		}
	}
	return err
}

// ambiguous reports whether a placement error leaves the order outcome
// unknown.
func ambiguous(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrVenueUnavailable)
}

// verifyPlaced is the idempotency check for ambiguous placement failures: it
// asks the venue whether the leg's instrument now shows net quantity in the
// leg's direction.
func (o *Orchestrator) verifyPlaced(ctx context.Context, leg *domain.Leg) (bool, error) {
	positions, err := o.broker.GetPositions(ctx)
	if err != nil {
		return false, err
	}
	for _, pos := range positions {
		if pos.Symbol == leg.InstrumentID && pos.NetQuantity*leg.Side.Sign() > 0 {
			return true, nil
		}
	}
	return false, nil
}

// fail compensates every already-confirmed leg, marks the instance FAILED,
// and builds the PlacementFailure report.
func (o *Orchestrator) fail(ctx context.Context, inst *domain.StrategyInstance, failed *domain.Leg, failedIdx int, cause error) error {
	o.logger.Error("leg placement failed, compensating confirmed legs",
		slog.String("instance_id", inst.ID),
		slog.String("instrument", failed.InstrumentID),
		slog.Int("confirmed_legs", failedIdx),
		slog.String("error", cause.Error()),
	)

	pf := &domain.PlacementFailure{
		InstanceID:    inst.ID,
		FailedLeg:     failed.InstrumentID,
		ConfirmedLegs: failedIdx,
		Cause:         cause,
	}
	for i := 0; i < failedIdx; i++ {
		pf.Compensations = append(pf.Compensations, o.compensate(ctx, inst, &inst.Legs[i]))
	}

	if err := inst.Transition(domain.StatusFailed); err != nil {
		o.logger.Error("failed-state transition rejected", slog.String("error", err.Error()))
	}
	o.transitionRecord(ctx, inst, domain.StatusPlacing)
	return pf
}

// compensate issues a closing order for one confirmed leg with the side
// flipped and the same quantity. Retries are bounded: an order that cannot be
// placed after the configured attempts is reported, not retried forever,
// because unbounded resubmission risks duplicate fills.
func (o *Orchestrator) compensate(ctx context.Context, inst *domain.StrategyInstance, leg *domain.Leg) domain.CompensationResult {
	comp := domain.CompensationResult{
		InstrumentID: leg.InstrumentID,
		Side:         leg.Side.Flip(),
		Quantity:     leg.ConfirmedQuantity,
	}

	for attempt := 1; attempt <= 1+o.compensationRetries; attempt++ {
		comp.Attempts = attempt
		if err := o.limiter.Acquire(ctx, ratelimit.KindRegular); err != nil {
			comp.Err = err
			break
		}
		res, err := o.broker.PlaceOrder(ctx, domain.OrderRequest{
			StrategyTag: o.strategyTag,
			Symbol:      leg.InstrumentID,
			Exchange:    inst.Blueprint.OptionsExchange,
			Side:        comp.Side,
			Product:     domain.ProductIntraday,
			OrderType:   domain.OrderTypeMarket,
			Quantity:    comp.Quantity,
		})
		if err == nil {
			comp.OrderID = res.OrderID
			comp.Err = nil
			leg.ConfirmedQuantity = 0
			break
		}
		comp.Err = err
	}

	detail := map[string]any{
		"instance_id": inst.ID,
		"instrument":  comp.InstrumentID,
		"side":        string(comp.Side),
		"quantity":    comp.Quantity,
		"attempts":    comp.Attempts,
	}
	if comp.Err != nil {
		detail["error"] = comp.Err.Error()
		o.logger.Error("compensation failed, manual intervention required",
			slog.String("instance_id", inst.ID),
			slog.String("instrument", comp.InstrumentID),
			slog.Int("attempts", comp.Attempts),
			slog.String("error", comp.Err.Error()),
		)
	}
	o.record(ctx, "compensation_attempt", detail)
	return comp
}

func (o *Orchestrator) transitionRecord(ctx context.Context, inst *domain.StrategyInstance, from domain.InstanceStatus) {
	o.record(ctx, "status_transition", map[string]any{
		"instance_id": inst.ID,
		"from":        string(from),
		"to":          string(inst.Status),
	})
}

// record writes a journal entry. Journal failures are logged, never allowed
// to interfere with orchestration.
func (o *Orchestrator) record(ctx context.Context, event string, detail map[string]any) {
	if o.journal == nil {
		return
	}
	if err := o.journal.Record(ctx, event, detail); err != nil {
		o.logger.Warn("journal write failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
