package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

const selectProviders = `
	SELECT id, name, specialties, conditions, rating, review_count, languages,
	       modalities, time_zone, consultation_fee, accepts_insurance,
	       accepting_new_patients, verification_status
	FROM providers`

// SQLDirectory reads the provider table, typically from a read replica.
type SQLDirectory struct {
	db *sql.DB
}

func NewSQLDirectory(db *sql.DB) *SQLDirectory {
	if db == nil {
		panic("directory: sql db required")
	}
	return &SQLDirectory{db: db}
}

func (d *SQLDirectory) Find(ctx context.Context, q Query) ([]ProviderCandidate, error) {
	query, args := buildFindQuery(q)
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("find", err)
	}
	defer rows.Close()

	out := make([]ProviderCandidate, 0)
	for rows.Next() {
		var p ProviderCandidate
		var tz sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, pq.Array(&p.Specialties), pq.Array(&p.Conditions),
			&p.Rating, &p.ReviewCount, pq.Array(&p.Languages), pq.Array(&p.Modalities), &tz,
			&p.ConsultationFee, &p.AcceptsInsurance, &p.AcceptingNewPatients, &p.VerificationStatus); err != nil {
			return nil, fmt.Errorf("directory: scan provider: %w", err)
		}
		p.TimeZone = tz.String
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate", err)
	}
	return out, nil
}

// Get loads one provider. Missing rows return (nil, nil).
func (d *SQLDirectory) Get(ctx context.Context, id string) (*ProviderCandidate, error) {
	var p ProviderCandidate
	var tz sql.NullString
	err := d.db.QueryRowContext(ctx, selectProviders+` WHERE id = $1`, id).Scan(
		&p.ID, &p.Name, pq.Array(&p.Specialties), pq.Array(&p.Conditions),
		&p.Rating, &p.ReviewCount, pq.Array(&p.Languages), pq.Array(&p.Modalities), &tz,
		&p.ConsultationFee, &p.AcceptsInsurance, &p.AcceptingNewPatients, &p.VerificationStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get", err)
	}
	p.TimeZone = tz.String
	return &p, nil
}

func buildFindQuery(q Query) (string, []any) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Specialty != "" {
		where = append(where, "EXISTS (SELECT 1 FROM unnest(specialties) s WHERE lower(s) = lower("+arg(strings.TrimSpace(q.Specialty))+"))")
	}
	if q.VerifiedOnly {
		where = append(where, "verification_status = 'verified'")
	}
	if q.AcceptingOnly {
		where = append(where, "accepting_new_patients")
	}
	if q.Language != "" {
		where = append(where, "EXISTS (SELECT 1 FROM unnest(languages) l WHERE lower(l) = lower("+arg(strings.TrimSpace(q.Language))+"))")
	}
	if q.Condition != "" {
		where = append(where, "EXISTS (SELECT 1 FROM unnest(conditions) c WHERE lower(c) = lower("+arg(strings.TrimSpace(q.Condition))+"))")
	}
	if q.TimeZone != "" {
		where = append(where, "lower(time_zone) = lower("+arg(q.TimeZone)+")")
	}
	if q.ConsultationType != "" {
		where = append(where, "EXISTS (SELECT 1 FROM unnest(modalities) m WHERE lower(m) = lower("+arg(strings.TrimSpace(q.ConsultationType))+"))")
	}
	if q.MinFee != nil {
		where = append(where, "consultation_fee >= "+arg(*q.MinFee))
	}
	if q.MaxFee != nil {
		where = append(where, "consultation_fee <= "+arg(*q.MaxFee))
	}
	if q.AcceptsInsurance != nil && *q.AcceptsInsurance {
		where = append(where, "accepts_insurance")
	}
	if q.MinRating != nil {
		where = append(where, "rating >= "+arg(*q.MinRating))
	}

	var b strings.Builder
	b.WriteString(selectProviders)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY rating DESC, review_count DESC, id")
	if q.Limit > 0 {
		b.WriteString(" LIMIT " + arg(q.Limit))
	}
	return b.String(), args
}

func unavailable(op string, err error) error {
	return fmt.Errorf("directory: %s: %w: %w", op, ErrUnavailable, err)
}
