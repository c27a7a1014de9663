package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tradeweave/optengine/internal/cache/redis"
	"github.com/tradeweave/optengine/internal/config"
	"github.com/tradeweave/optengine/internal/domain"
	"github.com/tradeweave/optengine/internal/journal"
	"github.com/tradeweave/optengine/internal/store/postgres"
	"github.com/tradeweave/optengine/internal/venue/openalgo"
)

// Dependencies bundles the infrastructure the engine components need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Broker  domain.Broker
	Journal domain.Journal
	// Locks is nil when Redis is not configured; the supervisor then relies
	// on the in-process per-instance gate alone.
	Locks domain.LockManager
}

// Wire constructs concrete dependency implementations from the configuration
// and returns them with a cleanup function to be called on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Broker: openalgo.NewClient(
			cfg.Venue.Host,
			cfg.Venue.APIKey,
			time.Duration(cfg.Venue.TimeoutSeconds)*time.Second,
		),
	}

	// Journal sinks: logs always, postgres and the redis event bus when
	// configured.
	sinks := journal.Multi{journal.NewLogJournal(logger)}

	if cfg.Postgres.Enabled() {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.MaxConns,
			MinConns: cfg.Postgres.MinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if err := pgClient.EnsureSchema(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres schema: %w", err)
		}
		sinks = append(sinks, postgres.NewJournalStore(pgClient.Pool()))
	}

	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Locks = redis.NewLockManager(redisClient)
		sinks = append(sinks, journal.NewBusJournal(redis.NewEventBus(redisClient), "events"))
	}

	deps.Journal = sinks
	return deps, cleanup, nil
}
