package shifts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/telehealth-coordination/internal/availability"
	"github.com/wolfman30/telehealth-coordination/internal/events"
)

// PgxPool is satisfied by *pgxpool.Pool.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

const listingColumns = `id, clinic_id, specialty, shift_date, start_time, end_time, time_zone,
	COALESCE(location, ''), status, filled_assignment_id, auto_accept, urgent,
	COALESCE(required_language, ''), bookable_during_shift, created_at`

const assignmentColumns = `id, listing_id, specialist_id, status, score, confirmed_at, cancelled_at, completed_at, created_at`

// PostgresRepository keeps listings and assignments in Postgres. Ledger rows
// and outbox messages are written in the same transaction as the status change.
type PostgresRepository struct {
	pool   PgxPool
	ledger *availability.PostgresStore
	outbox *events.OutboxStore
}

func NewPostgresRepository(pool PgxPool, ledger *availability.PostgresStore, outbox *events.OutboxStore) *PostgresRepository {
	if pool == nil || ledger == nil || outbox == nil {
		panic("shifts: pool, ledger and outbox required")
	}
	return &PostgresRepository{pool: pool, ledger: ledger, outbox: outbox}
}

func (r *PostgresRepository) CreateListing(ctx context.Context, l Listing) error {
	var location, language *string
	if l.Location != "" {
		location = &l.Location
	}
	if l.RequiredLanguage != "" {
		language = &l.RequiredLanguage
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO shift_listings (id, clinic_id, specialty, shift_date, start_time, end_time, time_zone,
			location, status, auto_accept, urgent, required_language, bookable_during_shift, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)`,
		l.ID, l.ClinicID, l.Specialty, l.Date, l.StartTime, l.EndTime, l.TimeZone,
		location, string(l.Status), l.AutoAccept, l.Urgent, language, l.BookableDuringShift, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("shifts: create listing: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetListing(ctx context.Context, id uuid.UUID) (*Listing, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM shift_listings WHERE id = $1`, id)
	l, err := scanListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("shifts: get listing: %w", err)
	}
	return l, nil
}

func (r *PostgresRepository) GetAssignment(ctx context.Context, id uuid.UUID) (*Assignment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+assignmentColumns+` FROM shift_assignments WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("shifts: get assignment: %w", err)
	}
	defer rows.Close()
	list, err := scanAssignments(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return &list[0], nil
}

func (r *PostgresRepository) FindAssignment(ctx context.Context, listingID uuid.UUID, specialistID string) (*Assignment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+assignmentColumns+` FROM shift_assignments
		WHERE listing_id = $1 AND specialist_id = $2 AND status <> 'cancelled'
		ORDER BY created_at DESC LIMIT 1`, listingID, specialistID)
	if err != nil {
		return nil, fmt.Errorf("shifts: find assignment: %w", err)
	}
	defer rows.Close()
	list, err := scanAssignments(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return &list[0], nil
}

func (r *PostgresRepository) ListAssignments(ctx context.Context, listingID uuid.UUID) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+assignmentColumns+` FROM shift_assignments
		WHERE listing_id = $1 ORDER BY score DESC, created_at`, listingID)
	if err != nil {
		return nil, fmt.Errorf("shifts: list assignments: %w", err)
	}
	defer rows.Close()
	return scanAssignments(rows)
}

// CreateApplication relies on the partial unique index over
// (listing_id, specialist_id) for non-cancelled rows.
func (r *PostgresRepository) CreateApplication(ctx context.Context, a Assignment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO shift_assignments (id, listing_id, specialist_id, status, score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.ListingID, a.SpecialistID, string(a.Status), a.Score, a.CreatedAt)
	if isUniqueViolation(err) {
		return ErrAlreadyApplied
	}
	if err != nil {
		return fmt.Errorf("shifts: create application: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Confirm(ctx context.Context, in ConfirmInput) (*Assignment, []events.OutboxEntry, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("shifts: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	a := in.Assignment
	tag, err := tx.Exec(ctx, `
		UPDATE shift_listings SET status = 'filled', filled_assignment_id = $2, updated_at = $3
		WHERE id = $1 AND status = 'open'`, in.Listing.ID, a.ID, *a.ConfirmedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("shifts: claim listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, nil, ErrListingUnavailable
	}

	if err := availability.LockProvider(ctx, tx, a.SpecialistID); err != nil {
		return nil, nil, err
	}
	existing, err := r.ledger.ListWith(ctx, tx, a.SpecialistID)
	if err != nil {
		return nil, nil, err
	}
	if overlapsShiftBlock(existing, in.ShiftStart, in.ShiftEnd) {
		return nil, nil, ErrDoubleBooked
	}

	if in.Existing {
		tag, err = tx.Exec(ctx, `
			UPDATE shift_assignments SET status = 'confirmed', confirmed_at = $2
			WHERE id = $1 AND status IN ('pending', 'auto_approved')`, a.ID, *a.ConfirmedAt)
		if err != nil {
			return nil, nil, fmt.Errorf("shifts: confirm assignment: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, nil, ErrAssignmentNotActive
		}
	} else {
		_, err = tx.Exec(ctx, `
			INSERT INTO shift_assignments (id, listing_id, specialist_id, status, score, confirmed_at, created_at)
			VALUES ($1, $2, $3, 'confirmed', $4, $5, $6)`,
			a.ID, a.ListingID, a.SpecialistID, a.Score, *a.ConfirmedAt, a.CreatedAt)
		if isUniqueViolation(err) {
			return nil, nil, ErrListingUnavailable
		}
		if err != nil {
			return nil, nil, fmt.Errorf("shifts: insert assignment: %w", err)
		}
	}

	if err := r.ledger.InsertWindows(ctx, tx, in.Windows...); err != nil {
		return nil, nil, err
	}
	entries, err := r.outbox.Append(ctx, tx, in.Messages...)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("shifts: commit confirm: %w", err)
	}
	return &a, entries, nil
}

func (r *PostgresRepository) Cancel(ctx context.Context, in CancelInput) (*CancelOutcome, []events.OutboxEntry, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("shifts: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		UPDATE shift_assignments SET status = 'cancelled', cancelled_at = $3
		WHERE listing_id = $1 AND specialist_id = $2 AND status = 'confirmed'
		RETURNING `+assignmentColumns, in.ListingID, in.SpecialistID, in.CancelledAt)
	if err != nil {
		return nil, nil, fmt.Errorf("shifts: cancel assignment: %w", err)
	}
	cancelled, err := scanAssignments(rows)
	rows.Close()
	if err != nil {
		return nil, nil, err
	}
	if len(cancelled) == 0 {
		return nil, nil, ErrAssignmentNotActive
	}
	a := cancelled[0]

	removed, err := r.ledger.DeleteAssignmentWindows(ctx, tx, a.ID)
	if err != nil {
		return nil, nil, err
	}
	tag, err := tx.Exec(ctx, `
		UPDATE shift_listings SET status = 'open', filled_assignment_id = NULL, updated_at = $3
		WHERE id = $1 AND filled_assignment_id = $2`, in.ListingID, a.ID, in.CancelledAt)
	if err != nil {
		return nil, nil, fmt.Errorf("shifts: reopen listing: %w", err)
	}
	reopened := tag.RowsAffected() == 1

	var entries []events.OutboxEntry
	if in.Messages != nil {
		entries, err = r.outbox.Append(ctx, tx, in.Messages(a, reopened)...)
		if err != nil {
			return nil, nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("shifts: commit cancel: %w", err)
	}
	return &CancelOutcome{Assignment: a, Reopened: reopened, WindowsRemoved: removed}, entries, nil
}

func (r *PostgresRepository) Complete(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE shift_assignments SET status = 'completed', completed_at = $2
		WHERE id = $1 AND status = 'confirmed'`, id, at)
	if err != nil {
		return fmt.Errorf("shifts: complete assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAssignmentNotActive
	}
	return nil
}

func scanListing(row pgx.Row) (*Listing, error) {
	var l Listing
	var status string
	if err := row.Scan(&l.ID, &l.ClinicID, &l.Specialty, &l.Date, &l.StartTime, &l.EndTime, &l.TimeZone,
		&l.Location, &status, &l.FilledAssignmentID, &l.AutoAccept, &l.Urgent,
		&l.RequiredLanguage, &l.BookableDuringShift, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.Status = ListingStatus(status)
	return &l, nil
}

func scanAssignments(rows pgx.Rows) ([]Assignment, error) {
	out := make([]Assignment, 0)
	for rows.Next() {
		var a Assignment
		var status string
		if err := rows.Scan(&a.ID, &a.ListingID, &a.SpecialistID, &status, &a.Score,
			&a.ConfirmedAt, &a.CancelledAt, &a.CompletedAt, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("shifts: scan assignment: %w", err)
		}
		a.Status = AssignmentStatus(status)
		out = append(out, a)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
