// Package waitlist queues unmet searches and re-matches them against open slots.
package waitlist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/telehealth-coordination/internal/availability"
	"github.com/wolfman30/telehealth-coordination/internal/events"
)

var (
	ErrInvalidEntry = errors.New("waitlist: invalid entry")
	ErrNotFound     = errors.New("waitlist: entry not found")
	ErrNotMatched   = errors.New("waitlist: entry is not matched")
)

type Status string

const (
	StatusActive  Status = "active"
	StatusMatched Status = "matched"
	StatusExpired Status = "expired"
)

// UrgentThreshold is the urgency score from which an entry counts as urgent.
const UrgentThreshold = 7

// PreferredTime is a wall-clock range the patient would like, optionally
// limited to one weekday.
type PreferredTime struct {
	DayOfWeek *int   `json:"day_of_week,omitempty"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

func (p PreferredTime) validate() error {
	if p.DayOfWeek != nil && (*p.DayOfWeek < 0 || *p.DayOfWeek > 6) {
		return fmt.Errorf("%w: preferred day_of_week must be 0-6", ErrInvalidEntry)
	}
	start, err := availability.ParseClock(p.Start)
	if err != nil {
		return fmt.Errorf("%w: preferred start: %v", ErrInvalidEntry, err)
	}
	end, err := availability.ParseClock(p.End)
	if err != nil {
		return fmt.Errorf("%w: preferred end: %v", ErrInvalidEntry, err)
	}
	if end <= start {
		return fmt.Errorf("%w: preferred end must be after start", ErrInvalidEntry)
	}
	return nil
}

// contains reports whether t, read in loc, starts inside the range.
func (p PreferredTime) contains(t time.Time, loc *time.Location) bool {
	local := t.In(loc)
	if p.DayOfWeek != nil && int(local.Weekday()) != *p.DayOfWeek {
		return false
	}
	start, _ := availability.ParseClock(p.Start)
	end, _ := availability.ParseClock(p.End)
	minute := local.Hour()*60 + local.Minute()
	return minute >= start && minute < end
}

// Match is one scored (provider, slot) pair kept on an entry.
type Match struct {
	ProviderID string    `json:"provider_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Location   string    `json:"location,omitempty"`
	Score      float64   `json:"score"`
}

// Entry is a queued request.
type Entry struct {
	ID             uuid.UUID       `json:"id"`
	PatientID      string          `json:"patient_id"`
	Specialty      string          `json:"specialty"`
	Language       string          `json:"language,omitempty"`
	TimeZone       string          `json:"time_zone,omitempty"`
	PreferredTimes []PreferredTime `json:"preferred_times,omitempty"`
	UrgencyScore   int             `json:"urgency_score"`
	MaxWaitDays    int             `json:"max_wait_days"`
	Status         Status          `json:"status"`
	Matches        []Match         `json:"matches,omitempty"`
	MatchScore     *float64        `json:"match_score,omitempty"`
	MatchedAt      *time.Time      `json:"matched_at,omitempty"`
	ExpiresAt      time.Time       `json:"expires_at"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (e Entry) Validate() error {
	if strings.TrimSpace(e.PatientID) == "" {
		return fmt.Errorf("%w: patient_id required", ErrInvalidEntry)
	}
	if strings.TrimSpace(e.Specialty) == "" {
		return fmt.Errorf("%w: specialty required", ErrInvalidEntry)
	}
	if e.UrgencyScore < 0 || e.UrgencyScore > 10 {
		return fmt.Errorf("%w: urgency_score must be 0-10", ErrInvalidEntry)
	}
	if e.MaxWaitDays <= 0 {
		return fmt.Errorf("%w: max_wait_days must be positive", ErrInvalidEntry)
	}
	if _, err := e.location(); err != nil {
		return fmt.Errorf("%w: time_zone: %v", ErrInvalidEntry, err)
	}
	for _, p := range e.PreferredTimes {
		if err := p.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (e Entry) Urgent() bool { return e.UrgencyScore >= UrgentThreshold }

func (e Entry) location() (*time.Location, error) {
	if strings.TrimSpace(e.TimeZone) == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(e.TimeZone)
}

// prefers reports whether any preferred range contains t. An entry with no
// preferences never reports a hit; the component is then not scored.
func (e Entry) prefers(t time.Time) bool {
	loc, err := e.location()
	if err != nil {
		loc = time.UTC
	}
	for _, p := range e.PreferredTimes {
		if p.contains(t, loc) {
			return true
		}
	}
	return false
}

// MatchUpdate is written atomically with its notification.
type MatchUpdate struct {
	EntryID   uuid.UUID
	Matches   []Match
	Score     float64
	MatchedAt time.Time
	Message   events.Message
}

// Store persists entries. Status changes are compare-and-swap updates.
type Store interface {
	Create(ctx context.Context, e Entry) error
	Get(ctx context.Context, id uuid.UUID) (*Entry, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListActive(ctx context.Context, specialty string) ([]Entry, error)
	// ExpireDue moves active entries with expires_at <= now to expired.
	ExpireDue(ctx context.Context, now time.Time) (int, error)
	// MarkMatched moves an active entry to matched and enqueues the
	// notification in the same transaction. It returns false when the entry
	// was no longer active.
	MarkMatched(ctx context.Context, u MatchUpdate) (bool, []events.OutboxEntry, error)
	// Reactivate moves a matched, unexpired entry back to active.
	Reactivate(ctx context.Context, id uuid.UUID, now time.Time) (*Entry, error)
}
