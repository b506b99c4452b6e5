package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx so outbox rows can be
// written in the same transaction as the state change they describe.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// OutboxEntry represents a pending event.
type OutboxEntry struct {
	ID        uuid.UUID
	Key       string
	Type      string
	Payload   json.RawMessage
	Attempts  int
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e OutboxEntry) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("events: decode %s payload: %w", e.Type, err)
	}
	return nil
}

// OutboxStore persists events for reliable delivery.
type OutboxStore struct {
	pool Querier
}

func NewOutboxStore(pool Querier) *OutboxStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &OutboxStore{pool: pool}
}

// Append inserts messages using q, or the store's pool when q is nil.
func (s *OutboxStore) Append(ctx context.Context, q Querier, msgs ...Message) ([]OutboxEntry, error) {
	if q == nil {
		q = s.pool
	}
	entries := make([]OutboxEntry, 0, len(msgs))
	for _, msg := range msgs {
		entry, err := newEntry(msg, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		query := `
			INSERT INTO outbox (id, aggregate_key, type, payload, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`
		if _, err := q.Exec(ctx, query, entry.ID, entry.Key, entry.Type, []byte(entry.Payload), entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("events: insert outbox: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *OutboxStore) FetchPending(ctx context.Context, limit int32, maxAttempts int) ([]OutboxEntry, error) {
	query := `
		SELECT id, aggregate_key, type, payload, attempts, created_at
		FROM outbox
		WHERE delivered_at IS NULL AND attempts < $2
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("events: fetch pending: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var entry OutboxEntry
		var payload []byte
		if err := rows.Scan(&entry.ID, &entry.Key, &entry.Type, &payload, &entry.Attempts, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("events: scan outbox: %w", err)
		}
		entry.Payload = append([]byte(nil), payload...)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *OutboxStore) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE outbox
		SET delivered_at = now()
		WHERE id = $1 AND delivered_at IS NULL
	`
	ct, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("events: mark delivered: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE outbox
		SET attempts = attempts + 1, last_error = $2
		WHERE id = $1 AND delivered_at IS NULL
	`
	if _, err := s.pool.Exec(ctx, query, id, reason); err != nil {
		return fmt.Errorf("events: mark failed: %w", err)
	}
	return nil
}

func newEntry(msg Message, now time.Time) (OutboxEntry, error) {
	if msg.Type == "" {
		return OutboxEntry{}, fmt.Errorf("events: message type required")
	}
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return OutboxEntry{}, fmt.Errorf("events: marshal payload: %w", err)
	}
	return OutboxEntry{
		ID:        uuid.New(),
		Key:       msg.Key,
		Type:      msg.Type,
		Payload:   data,
		CreatedAt: now,
	}, nil
}
