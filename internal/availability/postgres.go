package availability

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgxPool adds transactions to Querier.
type PgxPool interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

const windowColumns = `id, provider_id, kind, day_of_week, start_date, end_date, start_time, end_time,
	time_zone, active, COALESCE(location_override, ''), source, assignment_id, shift_override, created_at`

// PostgresStore persists windows in availability_windows.
type PostgresStore struct {
	pool PgxPool
}

func NewPostgresStore(pool PgxPool) *PostgresStore {
	if pool == nil {
		panic("availability: pgx pool required")
	}
	return &PostgresStore{pool: pool}
}

// LockProvider serializes ledger writes for one provider until the
// surrounding transaction ends.
func LockProvider(ctx context.Context, q Querier, providerID string) error {
	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "availability:"+providerID); err != nil {
		return fmt.Errorf("availability: lock provider: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, providerID string) ([]Window, error) {
	return s.ListWith(ctx, nil, providerID)
}

// ListWith lists a provider's windows using q, or the pool when q is nil.
func (s *PostgresStore) ListWith(ctx context.Context, q Querier, providerID string) ([]Window, error) {
	if q == nil {
		q = s.pool
	}
	rows, err := q.Query(ctx, `SELECT `+windowColumns+` FROM availability_windows WHERE provider_id = $1 ORDER BY created_at, id`, providerID)
	if err != nil {
		return nil, fmt.Errorf("availability: list windows: %w", err)
	}
	defer rows.Close()
	return scanWindows(rows)
}

func (s *PostgresStore) ListForProviders(ctx context.Context, providerIDs []string) (map[string][]Window, error) {
	out := make(map[string][]Window, len(providerIDs))
	if len(providerIDs) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+windowColumns+` FROM availability_windows WHERE provider_id = ANY($1) AND active ORDER BY created_at, id`, providerIDs)
	if err != nil {
		return nil, fmt.Errorf("availability: list windows for providers: %w", err)
	}
	defer rows.Close()
	windows, err := scanWindows(rows)
	if err != nil {
		return nil, err
	}
	for _, w := range windows {
		out[w.ProviderID] = append(out[w.ProviderID], w)
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Window, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+windowColumns+` FROM availability_windows WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("availability: get window: %w", err)
	}
	defer rows.Close()
	windows, err := scanWindows(rows)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, ErrNotFound
	}
	return &windows[0], nil
}

func (s *PostgresStore) InsertManual(ctx context.Context, w Window, check func([]Window) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("availability: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := LockProvider(ctx, tx, w.ProviderID); err != nil {
		return err
	}
	if check != nil {
		existing, err := s.ListWith(ctx, tx, w.ProviderID)
		if err != nil {
			return err
		}
		if err := check(existing); err != nil {
			return err
		}
	}
	if err := s.InsertWindows(ctx, tx, w); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("availability: commit: %w", err)
	}
	return nil
}

// DeleteManual removes a manual row. The source guard lives in the WHERE
// clause so a shift row can never be removed through this path.
func (s *PostgresStore) DeleteManual(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM availability_windows WHERE id = $1 AND source = 'manual'`, id)
	if err != nil {
		return fmt.Errorf("availability: delete window: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var source string
	err = s.pool.QueryRow(ctx, `SELECT source FROM availability_windows WHERE id = $1`, id).Scan(&source)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("availability: delete window: %w", err)
	}
	return ErrShiftOwned
}

// InsertWindows writes rows using q so shift writes share the caller's transaction.
func (s *PostgresStore) InsertWindows(ctx context.Context, q Querier, windows ...Window) error {
	if q == nil {
		q = s.pool
	}
	for _, w := range windows {
		var location *string
		if w.LocationOverride != "" {
			location = &w.LocationOverride
		}
		_, err := q.Exec(ctx, `
			INSERT INTO availability_windows (id, provider_id, kind, day_of_week, start_date, end_date, start_time, end_time,
				time_zone, active, location_override, source, assignment_id, shift_override, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			w.ID, w.ProviderID, string(w.Kind), w.DayOfWeek, w.StartDate, w.EndDate, w.StartTime, w.EndTime,
			w.TimeZone, w.Active, location, string(w.Source), w.AssignmentID, w.ShiftOverride, w.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("availability: insert window: %w", err)
		}
	}
	return nil
}

// DeleteAssignmentWindows removes only rows tagged with assignmentID.
func (s *PostgresStore) DeleteAssignmentWindows(ctx context.Context, q Querier, assignmentID uuid.UUID) (int64, error) {
	if q == nil {
		q = s.pool
	}
	tag, err := q.Exec(ctx, `DELETE FROM availability_windows WHERE source = 'shift' AND assignment_id = $1`, assignmentID)
	if err != nil {
		return 0, fmt.Errorf("availability: delete assignment windows: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanWindows(rows pgx.Rows) ([]Window, error) {
	out := make([]Window, 0)
	for rows.Next() {
		var w Window
		var kind, source string
		if err := rows.Scan(&w.ID, &w.ProviderID, &kind, &w.DayOfWeek, &w.StartDate, &w.EndDate,
			&w.StartTime, &w.EndTime, &w.TimeZone, &w.Active, &w.LocationOverride, &source,
			&w.AssignmentID, &w.ShiftOverride, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("availability: scan window: %w", err)
		}
		w.Kind = Kind(kind)
		w.Source = Source(source)
		out = append(out, w)
	}
	return out, rows.Err()
}
