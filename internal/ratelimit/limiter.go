// Package ratelimit provides the shared order-rate budget. It is the only
// cross-instance shared mutable resource in the engine.
package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// OrderKind selects which budget an order draws from. Most orders use the
// regular budget; venue "smart orders" (e.g. basket or AMO routing) are
// throttled separately and slower.
type OrderKind int

const (
	KindRegular OrderKind = iota
	KindSmart
)

// Limiter wraps two token buckets, one per order kind. All order-placing
// components share a single Limiter instance.
type Limiter struct {
	regular *rate.Limiter
	smart   *rate.Limiter
}

// New creates a Limiter with the given per-second budgets. Burst is fixed at
// one so orders queue rather than spike.
func New(ordersPerSec, smartOrdersPerSec float64) *Limiter {
	if ordersPerSec <= 0 {
		ordersPerSec = 1
	}
	if smartOrdersPerSec <= 0 {
		smartOrdersPerSec = ordersPerSec / 10
	}
	return &Limiter{
		regular: rate.NewLimiter(rate.Limit(ordersPerSec), 1),
		smart:   rate.NewLimiter(rate.Limit(smartOrdersPerSec), 1),
	}
}

// Acquire blocks until a slot for the given kind is available or the context
// is cancelled.
func (l *Limiter) Acquire(ctx context.Context, kind OrderKind) error {
	bucket := l.regular
	if kind == KindSmart {
		bucket = l.smart
	}
	if err := bucket.Wait(ctx); err != nil {
		return fmt.Errorf("ratelimit: acquire: %w", err)
	}
	return nil
}
