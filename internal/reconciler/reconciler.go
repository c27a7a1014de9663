// Package reconciler polls venue state and produces normalized position
// snapshots for strategy instances. Every snapshot is sourced fresh from the
// venue; nothing is cached across cycles.
package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/tradeweave/optengine/internal/domain"
)

const defaultReadRetries = 3

// Reconciler reads the venue position book and quotes, restricted to the
// instruments of one strategy instance per call.
type Reconciler struct {
	broker    domain.Broker
	estimator DeltaEstimator
	logger    *slog.Logger

	readRetries int
}

// New creates a Reconciler. A nil estimator falls back to the banded default.
func New(broker domain.Broker, estimator DeltaEstimator, logger *slog.Logger) *Reconciler {
	if estimator == nil {
		estimator = NewBandedEstimator()
	}
	return &Reconciler{
		broker:      broker,
		estimator:   estimator,
		logger:      logger.With(slog.String("component", "reconciler")),
		readRetries: defaultReadRetries,
	}
}

// Reconcile polls the venue and returns the instance's position snapshot. It
// also refreshes the instance's realized/unrealized P&L. A
// *domain.MismatchError is returned together with a valid snapshot when the
// venue reports zero quantity for legs the instance believes are active; that
// error is non-fatal and requires manual review, not automatic resolution.
func (r *Reconciler) Reconcile(ctx context.Context, inst *domain.StrategyInstance) (domain.PositionSnapshot, error) {
	if inst.Status.Terminal() {
		return domain.PositionSnapshot{}, domain.ErrInstanceTerminal
	}

	var positions []domain.BrokerPosition
	err := r.retryRead(ctx, func() error {
		var rErr error
		positions, rErr = r.broker.GetPositions(ctx)
		return rErr
	})
	if err != nil {
		return domain.PositionSnapshot{}, err
	}

	var spotQuote domain.Quote
	err = r.retryRead(ctx, func() error {
		var qErr error
		spotQuote, qErr = r.broker.GetQuote(ctx, inst.Blueprint.Underlying, inst.Blueprint.Exchange)
		return qErr
	})
	if err != nil {
		return domain.PositionSnapshot{}, err
	}

	byInstrument := make(map[string]domain.BrokerPosition, len(positions))
	for _, pos := range positions {
		byInstrument[pos.Symbol] = pos
	}

	snap := domain.PositionSnapshot{
		InstanceID: inst.ID,
		TakenAt:    time.Now().UTC(),
		Lines:      make(map[string]domain.PositionLine, len(inst.Legs)),
	}

	var mismatches []domain.Mismatch
	for _, leg := range inst.Legs {
		pos, reported := byInstrument[leg.InstrumentID]

		line := domain.PositionLine{
			Quantity:     pos.NetQuantity,
			AveragePrice: pos.AveragePrice,
			LastPrice:    pos.LastPrice,
			RealizedPnL:  pos.RealizedPnL,
		}
		// Net quantity is signed, so this is (last - avg) * qty * sign(side).
		line.UnrealizedPnL = (pos.LastPrice - pos.AveragePrice) * float64(pos.NetQuantity)
		snap.Lines[leg.InstrumentID] = line

		snap.AggregateUnrealized += line.UnrealizedPnL
		snap.AggregateRealized += line.RealizedPnL
		snap.AggregateDelta += r.estimator.Estimate(leg.Kind, leg.Strike, spotQuote.LastPrice) * float64(pos.NetQuantity)

		if inst.Status == domain.StatusActive && leg.ConfirmedQuantity != 0 && (!reported || pos.NetQuantity == 0) {
			mismatches = append(mismatches, domain.Mismatch{
				InstrumentID: leg.InstrumentID,
				ExpectedQty:  leg.SignedQuantity(),
				ReportedQty:  pos.NetQuantity,
			})
		}
	}

	inst.UnrealizedPnL = snap.AggregateUnrealized
	inst.RealizedPnL = snap.AggregateRealized

	if len(mismatches) > 0 {
		r.logger.Warn("venue state diverges from instance state",
			slog.String("instance_id", inst.ID),
			slog.Int("mismatched_legs", len(mismatches)),
		)
		return snap, &domain.MismatchError{InstanceID: inst.ID, Mismatches: mismatches}
	}
	return snap, nil
}

// retryRead runs a venue read with bounded exponential backoff. Auth failures
// are never retried; transient venue errors are retried up to readRetries
// times before the last error is returned.
func (r *Reconciler) retryRead(ctx context.Context, read func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second

	var err error
	for attempt := 0; attempt <= r.readRetries; attempt++ {
		if err = read(); err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrAuthFailure) || ctx.Err() != nil {
			return err
		}
		if attempt == r.readRetries {
			break
		}
		sleep := bo.NextBackOff()
		r.logger.Debug("venue read failed, backing off",
			slog.Int("attempt", attempt+1),
			slog.Duration("sleep", sleep),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
	return err
}
