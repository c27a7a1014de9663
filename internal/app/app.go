// Package app wires the engine components together and runs the configured
// strategy blueprint until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tradeweave/optengine/internal/config"
	"github.com/tradeweave/optengine/internal/domain"
	"github.com/tradeweave/optengine/internal/instrument"
	"github.com/tradeweave/optengine/internal/orchestrator"
	"github.com/tradeweave/optengine/internal/ratelimit"
	"github.com/tradeweave/optengine/internal/reconciler"
	"github.com/tradeweave/optengine/internal/supervisor"
	"github.com/tradeweave/optengine/internal/unwind"
)

// App is the root application object.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New creates an App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires dependencies, submits the configured blueprint, and supervises it
// until the context is cancelled or the instance reaches a terminal status.
func (a *App) Run(ctx context.Context) error {
	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	defer cleanup()

	limiter := ratelimit.New(
		a.cfg.Engine.OrdersPerSecondBudget,
		a.cfg.Engine.SmartOrdersPerSecondBudget,
	)
	resolver := instrument.NewResolver(deps.Broker, a.logger)

	strategyTag := a.cfg.Strategy.Name
	if strategyTag == "" {
		strategyTag = "optengine"
	}

	orch := orchestrator.New(deps.Broker, resolver, limiter, deps.Journal, strategyTag, a.logger)
	orch.SetCompensationRetries(a.cfg.Engine.CompensationRetries)
	recon := reconciler.New(deps.Broker, nil, a.logger)
	unwinder := unwind.New(deps.Broker, limiter, deps.Journal, strategyTag, a.logger)

	sup := supervisor.New(orch, recon, unwinder, deps.Locks, deps.Journal, supervisor.Config{
		PollInterval:    a.cfg.Engine.PollInterval(),
		ErrorBackoffMax: time.Duration(a.cfg.Engine.ErrorBackoffMaxSeconds) * time.Second,
	}, a.logger)

	bp := a.blueprint()
	th := a.thresholds()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sup.Run(gctx)
	})
	g.Go(func() error {
		// Give Run a moment to install its task group before submitting.
		select {
		case <-gctx.Done():
			return gctx.Err()
		case <-time.After(100 * time.Millisecond):
		}

		inst, err := sup.Submit(gctx, bp, th)
		if err != nil {
			var pf *domain.PlacementFailure
			if errors.As(err, &pf) {
				a.logger.Error("placement failed",
					slog.String("instance_id", pf.InstanceID),
					slog.String("failed_leg", pf.FailedLeg),
					slog.Int("confirmed_legs", pf.ConfirmedLegs),
					slog.Bool("compensation_failed", pf.CompensationFailed()),
				)
			}
			return err
		}
		a.logger.Info("instance submitted", slog.String("instance_id", inst.ID))
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// blueprint builds the strategy blueprint from configuration, defaulting the
// expiry to the coming weekly expiry.
func (a *App) blueprint() *domain.StrategyBlueprint {
	sc := a.cfg.Strategy

	expiry := sc.Expiry
	if expiry == "" {
		expiry = instrument.NextWeeklyExpiry(time.Now())
	}

	legs := make([]domain.LegTemplate, 0, len(sc.Legs))
	for _, lc := range sc.Legs {
		legs = append(legs, domain.LegTemplate{
			Side:         domain.Side(lc.Side),
			Kind:         domain.InstrumentKind(lc.Kind),
			StrikeOffset: lc.StrikeOffset,
			Ratio:        lc.Ratio,
		})
	}

	return &domain.StrategyBlueprint{
		Name:            sc.Name,
		Underlying:      sc.Underlying,
		Exchange:        sc.Exchange,
		OptionsExchange: sc.OptionsExchange,
		Expiry:          expiry,
		Legs:            legs,
		LotSize:         sc.LotSize,
		StrikeStep:      sc.StrikeStep,
	}
}

func (a *App) thresholds() domain.Thresholds {
	ec := a.cfg.Exit
	return domain.Thresholds{
		TargetProfit:   ec.TargetProfit,
		MaxLoss:        ec.MaxLoss,
		TargetDelta:    ec.TargetDelta,
		DeltaTolerance: ec.DeltaTolerance,
		ExpiryHorizon:  time.Duration(ec.ExpiryHorizonDays) * 24 * time.Hour,
		DTEExit:        time.Duration(ec.DTEExitDays) * 24 * time.Hour,
		LotSize:        a.cfg.Strategy.LotSize,
	}
}
