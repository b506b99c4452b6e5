package waitlist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/telehealth-coordination/internal/events"
)

// PgxPool is satisfied by *pgxpool.Pool.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

const entryColumns = `id, patient_id, specialty, COALESCE(language, ''), COALESCE(time_zone, ''), preferred_times,
	urgency_score, max_wait_days, status, matches, match_score, matched_at, expires_at, created_at`

type PostgresStore struct {
	pool   PgxPool
	outbox *events.OutboxStore
}

func NewPostgresStore(pool PgxPool, outbox *events.OutboxStore) *PostgresStore {
	if pool == nil || outbox == nil {
		panic("waitlist: pool and outbox required")
	}
	return &PostgresStore{pool: pool, outbox: outbox}
}

func (s *PostgresStore) Create(ctx context.Context, e Entry) error {
	prefs, err := json.Marshal(e.PreferredTimes)
	if err != nil {
		return fmt.Errorf("waitlist: marshal preferred times: %w", err)
	}
	var language, tz *string
	if e.Language != "" {
		language = &e.Language
	}
	if e.TimeZone != "" {
		tz = &e.TimeZone
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO waitlist_entries (id, patient_id, specialty, language, time_zone, preferred_times,
			urgency_score, max_wait_days, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`,
		e.ID, e.PatientID, e.Specialty, language, tz, prefs,
		e.UrgencyScore, e.MaxWaitDays, string(e.Status), e.ExpiresAt, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("waitlist: create entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+entryColumns+` FROM waitlist_entries WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("waitlist: get entry: %w", err)
	}
	defer rows.Close()
	list, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return &list[0], nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM waitlist_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("waitlist: delete entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListActive(ctx context.Context, specialty string) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+entryColumns+` FROM waitlist_entries
		WHERE status = 'active' AND ($1 = '' OR lower(specialty) = lower($1))
		ORDER BY urgency_score DESC, created_at, id`, specialty)
	if err != nil {
		return nil, fmt.Errorf("waitlist: list active: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PostgresStore) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE waitlist_entries SET status = 'expired', updated_at = $1
		WHERE status = 'active' AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("waitlist: expire entries: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) MarkMatched(ctx context.Context, u MatchUpdate) (bool, []events.OutboxEntry, error) {
	matches, err := json.Marshal(u.Matches)
	if err != nil {
		return false, nil, fmt.Errorf("waitlist: marshal matches: %w", err)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("waitlist: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE waitlist_entries
		SET status = 'matched', matches = $2, match_score = $3, matched_at = $4, updated_at = $4
		WHERE id = $1 AND status = 'active'`, u.EntryID, matches, u.Score, u.MatchedAt)
	if err != nil {
		return false, nil, fmt.Errorf("waitlist: mark matched: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil, nil
	}
	entries, err := s.outbox.Append(ctx, tx, u.Message)
	if err != nil {
		return false, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, nil, fmt.Errorf("waitlist: commit match: %w", err)
	}
	return true, entries, nil
}

func (s *PostgresStore) Reactivate(ctx context.Context, id uuid.UUID, now time.Time) (*Entry, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE waitlist_entries
		SET status = 'active', matches = NULL, match_score = NULL, matched_at = NULL, updated_at = $2
		WHERE id = $1 AND status = 'matched' AND expires_at > $2
		RETURNING `+entryColumns, id, now)
	if err != nil {
		return nil, fmt.Errorf("waitlist: reactivate: %w", err)
	}
	list, err := scanEntries(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(list) == 1 {
		return &list[0], nil
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM waitlist_entries WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("waitlist: reactivate lookup: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, ErrNotMatched
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	out := make([]Entry, 0)
	for rows.Next() {
		var (
			e       Entry
			status  string
			prefs   []byte
			matches []byte
		)
		if err := rows.Scan(&e.ID, &e.PatientID, &e.Specialty, &e.Language, &e.TimeZone, &prefs,
			&e.UrgencyScore, &e.MaxWaitDays, &status, &matches, &e.MatchScore, &e.MatchedAt,
			&e.ExpiresAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("waitlist: scan entry: %w", err)
		}
		e.Status = Status(status)
		if err := decodeJSON(prefs, &e.PreferredTimes); err != nil {
			return nil, err
		}
		if err := decodeJSON(matches, &e.Matches); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func decodeJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("waitlist: decode json column: %w", err)
	}
	return nil
}
