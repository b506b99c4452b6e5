// Package availability holds provider availability windows and expands
// them into concrete open intervals.
package availability

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidWindow = errors.New("availability: invalid window")
	ErrOverlap       = errors.New("availability: window overlaps an existing window")
	ErrShiftOwned    = errors.New("availability: window is owned by a shift assignment")
	ErrNotFound      = errors.New("availability: window not found")
)

type Kind string

const (
	KindAvailable Kind = "available"
	KindBlocked   Kind = "blocked"
)

type Source string

const (
	SourceManual Source = "manual"
	SourceShift  Source = "shift"
)

const dateLayout = "2006-01-02"

// Window is either recurring (DayOfWeek set, 0 = Sunday) or dated
// (StartDate..EndDate inclusive). Times are HH:MM wall clock in TimeZone.
type Window struct {
	ID               uuid.UUID  `json:"id"`
	ProviderID       string     `json:"provider_id"`
	Kind             Kind       `json:"kind"`
	DayOfWeek        *int       `json:"day_of_week,omitempty"`
	StartDate        *time.Time `json:"start_date,omitempty"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	StartTime        string     `json:"start_time"`
	EndTime          string     `json:"end_time"`
	TimeZone         string     `json:"time_zone"`
	Active           bool       `json:"active"`
	LocationOverride string     `json:"location_override,omitempty"`
	Source           Source     `json:"source"`
	AssignmentID     *uuid.UUID `json:"assignment_id,omitempty"`
	ShiftOverride    bool       `json:"shift_override"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Validate checks shape only. Overlap is checked against the ledger.
func (w Window) Validate() error {
	if strings.TrimSpace(w.ProviderID) == "" {
		return fmt.Errorf("%w: provider_id required", ErrInvalidWindow)
	}
	if w.Kind != KindAvailable && w.Kind != KindBlocked {
		return fmt.Errorf("%w: kind must be available or blocked", ErrInvalidWindow)
	}
	recurring := w.DayOfWeek != nil
	dated := w.StartDate != nil
	if recurring == dated {
		return fmt.Errorf("%w: exactly one of day_of_week or start_date required", ErrInvalidWindow)
	}
	if recurring && (*w.DayOfWeek < 0 || *w.DayOfWeek > 6) {
		return fmt.Errorf("%w: day_of_week must be 0-6", ErrInvalidWindow)
	}
	if dated && w.EndDate != nil && dateOnly(*w.EndDate).Before(dateOnly(*w.StartDate)) {
		return fmt.Errorf("%w: end_date before start_date", ErrInvalidWindow)
	}
	start, err := ParseClock(w.StartTime)
	if err != nil {
		return err
	}
	end, err := ParseClock(w.EndTime)
	if err != nil {
		return err
	}
	if end <= start {
		return fmt.Errorf("%w: end_time must be after start_time", ErrInvalidWindow)
	}
	if _, err := w.location(); err != nil {
		return fmt.Errorf("%w: time_zone: %v", ErrInvalidWindow, err)
	}
	if w.Source == SourceShift && w.AssignmentID == nil {
		return fmt.Errorf("%w: shift windows require assignment_id", ErrInvalidWindow)
	}
	return nil
}

// ParseClock parses HH:MM into minutes after midnight. "24:00" is accepted
// as an end of day.
func ParseClock(v string) (int, error) {
	parts := strings.Split(strings.TrimSpace(v), ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("%w: time %q must be HH:MM", ErrInvalidWindow, v)
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("%w: time %q out of range", ErrInvalidWindow, v)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes after midnight as HH:MM.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseDate parses YYYY-MM-DD as a UTC midnight.
func ParseDate(v string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(v))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidWindow, v)
	}
	return t, nil
}

func (w Window) location() (*time.Location, error) {
	if strings.TrimSpace(w.TimeZone) == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(w.TimeZone)
}

// appliesOn reports whether the window covers the civil date d (UTC midnight).
func (w Window) appliesOn(d time.Time) bool {
	if w.DayOfWeek != nil {
		return int(d.Weekday()) == *w.DayOfWeek
	}
	if w.StartDate == nil {
		return false
	}
	start := dateOnly(*w.StartDate)
	end := start
	if w.EndDate != nil {
		end = dateOnly(*w.EndDate)
	}
	return !d.Before(start) && !d.After(end)
}

// Covers reports whether the window has an occurrence intersecting [from, to).
func (w Window) Covers(from, to time.Time) bool {
	return w.Active && len(occurrences(w, from, to)) > 0
}

func (w Window) clockRange() (int, int) {
	start, _ := ParseClock(w.StartTime)
	end, _ := ParseClock(w.EndTime)
	return start, end
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
