package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradeweave/optengine/internal/domain"
)

// JournalStore implements domain.Journal using PostgreSQL. The detail map is
// stored as JSONB so individual audit fields stay queryable.
type JournalStore struct {
	pool *pgxpool.Pool
}

// NewJournalStore creates a JournalStore backed by the given connection pool.
func NewJournalStore(pool *pgxpool.Pool) *JournalStore {
	return &JournalStore{pool: pool}
}

// Record appends a journal entry for the given event.
func (s *JournalStore) Record(ctx context.Context, event string, detail map[string]any) error {
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("postgres: marshal journal detail: %w", err)
	}

	const query = `INSERT INTO engine_journal (event, detail) VALUES ($1, $2)`
	if _, err := s.pool.Exec(ctx, query, event, detailJSON); err != nil {
		return fmt.Errorf("postgres: record journal event %s: %w", event, err)
	}
	return nil
}

// Entry is one persisted journal row.
type Entry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// ListOpts filters and pages journal queries.
type ListOpts struct {
	InstanceID string
	Since      *time.Time
	Limit      int
}

// List returns journal entries, newest first, optionally restricted to one
// instance id.
func (s *JournalStore) List(ctx context.Context, opts ListOpts) ([]Entry, error) {
	query := `SELECT id, event, detail, created_at FROM engine_journal WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.InstanceID != "" {
		query += fmt.Sprintf(" AND detail->>'instance_id' = $%d", argIdx)
		args = append(args, opts.InstanceID)
		argIdx++
	}
	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list journal entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var detailJSON []byte
		if err := rows.Scan(&e.ID, &e.Event, &detailJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan journal entry: %w", err)
		}
		if detailJSON != nil {
			if err := json.Unmarshal(detailJSON, &e.Detail); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal journal detail: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list journal entries rows: %w", err)
	}
	return entries, nil
}

// Compile-time interface check.
var _ domain.Journal = (*JournalStore)(nil)
