// Package journal provides domain.Journal implementations that do not need
// external infrastructure, plus combinators for fanning entries out to
// several sinks.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tradeweave/optengine/internal/domain"
)

// LogJournal writes every entry to structured logs. It is the fallback sink
// when no database is configured, so engine actions stay auditable from logs
// alone.
type LogJournal struct {
	logger *slog.Logger
}

// NewLogJournal creates a LogJournal.
func NewLogJournal(logger *slog.Logger) *LogJournal {
	return &LogJournal{logger: logger.With(slog.String("component", "journal"))}
}

// Record logs the event with its detail map.
func (j *LogJournal) Record(_ context.Context, event string, detail map[string]any) error {
	j.logger.Info(event, slog.Any("detail", detail))
	return nil
}

// BusJournal publishes every entry as JSON on an event bus channel so
// external consumers can follow engine activity live.
type BusJournal struct {
	bus     domain.EventBus
	channel string
}

// NewBusJournal creates a BusJournal publishing on the given channel.
func NewBusJournal(bus domain.EventBus, channel string) *BusJournal {
	return &BusJournal{bus: bus, channel: channel}
}

// Record publishes the entry.
func (j *BusJournal) Record(ctx context.Context, event string, detail map[string]any) error {
	payload, err := json.Marshal(map[string]any{
		"event":  event,
		"detail": detail,
		"at":     time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("journal: marshal event %s: %w", event, err)
	}
	return j.bus.Publish(ctx, j.channel, payload)
}

// Multi fans one entry out to every sink. The first error is returned after
// all sinks have been attempted.
type Multi []domain.Journal

// Record writes the entry to every sink.
func (m Multi) Record(ctx context.Context, event string, detail map[string]any) error {
	var firstErr error
	for _, j := range m {
		if err := j.Record(ctx, event, detail); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var (
	_ domain.Journal = (*LogJournal)(nil)
	_ domain.Journal = (*BusJournal)(nil)
	_ domain.Journal = (Multi)(nil)
)
