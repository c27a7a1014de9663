package domain

import (
	"context"
	"time"
)

// Journal is the audit sink for everything the engine does to venue state:
// status transitions, placements, compensation attempts, mismatches, and exit
// decisions. Entries must carry enough detail (instance id, leg, reason) to
// reconstruct the engine's actions without venue support.
type Journal interface {
	Record(ctx context.Context, event string, detail map[string]any) error
}

// EventBus publishes engine events for external consumers (dashboards,
// alerting). Publish failures are reported by implementations but are never
// allowed to affect orchestration.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// LockManager hands out distributed per-instance locks so that a second
// process cannot start a duplicate orchestration for the same instance id.
// Acquire returns ErrLockHeld when the lock is taken; the returned unlock
// function is safe to call more than once.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
