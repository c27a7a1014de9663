// Package supervisor owns the active instance set and drives the periodic
// reconcile/evaluate/act cycle for each strategy instance.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/tradeweave/optengine/internal/domain"
	"github.com/tradeweave/optengine/internal/instrument"
	"github.com/tradeweave/optengine/internal/orchestrator"
	"github.com/tradeweave/optengine/internal/policy"
	"github.com/tradeweave/optengine/internal/reconciler"
	"github.com/tradeweave/optengine/internal/unwind"
)

const lockTTL = 2 * time.Minute

// Config tunes the supervision cycle.
type Config struct {
	PollInterval time.Duration
	// ErrorBackoffMax caps the delay inserted after a failing cycle.
	ErrorBackoffMax time.Duration
}

// Supervisor runs one cancellable task per active strategy instance. It is
// the sole owner of the instance map; legs are owned by their instance and
// never aliased across instances.
type Supervisor struct {
	orch     *orchestrator.Orchestrator
	recon    *reconciler.Reconciler
	unwinder *unwind.Executor
	locks    domain.LockManager // optional cross-process duplicate-orchestration guard
	journal  domain.Journal
	logger   *slog.Logger
	cfg      Config

	mu             sync.Mutex
	instances      map[string]*domain.StrategyInstance
	closeRequested map[string]bool

	g    *errgroup.Group
	gctx context.Context
}

// New creates a Supervisor. locks and journal may be nil.
func New(
	orch *orchestrator.Orchestrator,
	recon *reconciler.Reconciler,
	unwinder *unwind.Executor,
	locks domain.LockManager,
	journal domain.Journal,
	cfg Config,
	logger *slog.Logger,
) *Supervisor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 60 * time.Second
	}
	if cfg.ErrorBackoffMax <= 0 {
		cfg.ErrorBackoffMax = 30 * time.Second
	}
	return &Supervisor{
		orch:           orch,
		recon:          recon,
		unwinder:       unwinder,
		locks:          locks,
		journal:        journal,
		logger:         logger.With(slog.String("component", "supervisor")),
		cfg:            cfg,
		instances:      make(map[string]*domain.StrategyInstance),
		closeRequested: make(map[string]bool),
	}
}

// Run blocks until the context is cancelled or a fatal venue error surfaces
// from any instance task. It must be called before Submit.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	s.g, s.gctx = errgroup.WithContext(ctx)
	g, gctx := s.g, s.gctx
	s.mu.Unlock()

	s.logger.Info("supervisor started", slog.Duration("poll_interval", s.cfg.PollInterval))
	defer s.logger.Info("supervisor stopped")

	// Wake on external cancellation or on the first fatal instance error,
	// whichever happens first.
	select {
	case <-ctx.Done():
	case <-gctx.Done():
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ctx.Err()
}

// Submit resolves and places a new instance from the blueprint and, on
// success, registers it and starts its supervision task. The thresholds are
// fixed for the instance's lifetime.
func (s *Supervisor) Submit(ctx context.Context, bp *domain.StrategyBlueprint, th domain.Thresholds) (*domain.StrategyInstance, error) {
	inst, err := s.orch.NewInstance(ctx, bp)
	if err != nil {
		return nil, err
	}

	unlock, err := s.acquireLock(ctx, inst.ID)
	if err != nil {
		return nil, err
	}
	err = s.orch.Place(ctx, inst)
	unlock()
	if err != nil {
		// Compensation has already been attempted; the caller gets the full
		// PlacementFailure report.
		return inst, err
	}

	s.mu.Lock()
	if s.g == nil {
		s.mu.Unlock()
		return inst, fmt.Errorf("supervisor: not running")
	}
	s.instances[inst.ID] = inst
	g := s.g
	gctx := s.gctx
	s.mu.Unlock()

	g.Go(func() error {
		return s.supervise(gctx, inst, th)
	})
	return inst, nil
}

// RequestClose arms a manual close for the instance; the next supervision
// cycle turns it into CLOSE(Manual).
func (s *Supervisor) RequestClose(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, id)
	}
	s.closeRequested[id] = true
	return nil
}

// Active returns the ids of all currently supervised instances.
func (s *Supervisor) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.instances))
	for id := range s.instances {
		ids = append(ids, id)
	}
	return ids
}

// Instance returns the supervised instance with the given id.
func (s *Supervisor) Instance(id string) (*domain.StrategyInstance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[id]
	return inst, ok
}

// supervise is the per-instance loop: sleep, reconcile, evaluate, act. Cycle
// errors are contained with exponential backoff; only fatal venue errors
// propagate and tear down the whole group.
func (s *Supervisor) supervise(ctx context.Context, inst *domain.StrategyInstance, th domain.Thresholds) error {
	log := s.logger.With(slog.String("instance_id", inst.ID))
	log.Info("supervision started", slog.String("underlying", inst.Blueprint.Underlying))

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = s.cfg.ErrorBackoffMax

	defer s.remove(inst.ID)

	for {
		if err := s.sleep(ctx, s.cfg.PollInterval); err != nil {
			return err
		}

		done, err := s.cycle(ctx, inst, th, log)
		if err != nil {
			if domain.Fatal(err) {
				log.Error("fatal venue error, aborting supervision", slog.String("error", err.Error()))
				return err
			}
			sleep := bo.NextBackOff()
			log.Warn("cycle failed, backing off",
				slog.Duration("backoff", sleep),
				slog.String("error", err.Error()),
			)
			if err := s.sleep(ctx, sleep); err != nil {
				return err
			}
			continue
		}
		bo.Reset()

		if done {
			log.Info("instance reached terminal status", slog.String("status", string(inst.Status)))
			return nil
		}
	}
}

// cycle runs one reconcile/evaluate/act pass. It returns done=true once the
// instance is terminal.
func (s *Supervisor) cycle(ctx context.Context, inst *domain.StrategyInstance, th domain.Thresholds, log *slog.Logger) (bool, error) {
	snap, err := s.recon.Reconcile(ctx, inst)
	if err != nil {
		var mismatch *domain.MismatchError
		if !errors.As(err, &mismatch) {
			return false, err
		}
		// Mismatches are surfaced for manual review; the instance keeps its
		// status and the cycle continues on the snapshot we did get.
		s.record(ctx, "reconciliation_mismatch", map[string]any{
			"instance_id": inst.ID,
			"mismatches":  len(mismatch.Mismatches),
		})
	}

	if inst.Status == domain.StatusExiting {
		closed, err := s.unwinder.ConfirmClosed(ctx, inst, snap)
		if err != nil {
			return false, err
		}
		return closed, nil
	}

	dec := policy.Evaluate(policy.Input{
		AggregatePnL:    snap.AggregateUnrealized + snap.AggregateRealized,
		AggregateDelta:  snap.AggregateDelta,
		Elapsed:         inst.Elapsed(time.Now().UTC()),
		Thresholds:      th,
		HedgeInstrument: instrument.FormatFuture(inst.Blueprint.Underlying, inst.Blueprint.Expiry),
		CloseRequested:  s.isCloseRequested(inst.ID),
	})

	switch dec.Action {
	case domain.ActionClose:
		log.Info("close decision",
			slog.String("reason", string(dec.Reason)),
			slog.Float64("aggregate_pnl", snap.AggregateUnrealized+snap.AggregateRealized),
		)
		unlock, err := s.acquireLock(ctx, inst.ID)
		if err != nil {
			return false, err
		}
		err = s.unwinder.Close(ctx, inst, dec.Reason)
		unlock()
		if err != nil {
			return false, err
		}

	case domain.ActionRebalance:
		log.Info("rebalance decision",
			slog.String("hedge_instrument", dec.HedgeInstrument),
			slog.Int("lots", dec.HedgeQuantity),
			slog.String("side", string(dec.HedgeSide)),
		)
		if err := s.unwinder.Rebalance(ctx, inst, dec); err != nil {
			return false, err
		}
	}

	return inst.Status.Terminal(), nil
}

// sleep waits for d or until the context is cancelled, whichever comes first.
// The supervision loop must never wait out a full interval after a stop
// signal.
func (s *Supervisor) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Supervisor) isCloseRequested(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeRequested[id]
}

func (s *Supervisor) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.instances, id)
	delete(s.closeRequested, id)
}

// acquireLock takes the distributed per-instance lock when a lock manager is
// configured; otherwise it is a no-op. The instance's in-process op gate
// still applies either way.
func (s *Supervisor) acquireLock(ctx context.Context, id string) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}
	unlock, err := s.locks.Acquire(ctx, "instance:"+id, lockTTL)
	if err != nil {
		return nil, fmt.Errorf("supervisor: instance %s: %w", id, err)
	}
	return unlock, nil
}

func (s *Supervisor) record(ctx context.Context, event string, detail map[string]any) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Record(ctx, event, detail); err != nil {
		s.logger.Warn("journal write failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
