// Package shifts reconciles ad-hoc shift commitments with the availability
// ledger and external calendars.
package shifts

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
	ErrListingUnavailable  = errors.New("shifts: listing no longer available")
	ErrDoubleBooked        = errors.New("shifts: specialist already holds an overlapping shift")
	ErrAssignmentNotActive = errors.New("shifts: no active assignment")
	ErrAlreadyApplied      = errors.New("shifts: specialist already applied")
	ErrInvalidAction       = errors.New("shifts: invalid action")
	ErrInvalidListing      = errors.New("shifts: invalid listing")
	ErrInvalidTransition   = errors.New("shifts: transition not allowed")
	ErrNotFound            = errors.New("shifts: not found")
)

// CodeListingUnavailable is the client-facing code for a lost race on a listing.
const CodeListingUnavailable = "listing_no_longer_available"

type ListingStatus string

const (
	ListingOpen   ListingStatus = "open"
	ListingFilled ListingStatus = "filled"
)

type AssignmentStatus string

const (
	StatusPending      AssignmentStatus = "pending"
	StatusAutoApproved AssignmentStatus = "auto_approved"
	StatusConfirmed    AssignmentStatus = "confirmed"
	StatusCompleted    AssignmentStatus = "completed"
	StatusCancelled    AssignmentStatus = "cancelled"
)

// Listing is a clinic's shift posting. Date is a civil date at UTC midnight
// and the HH:MM times are wall clock in TimeZone.
type Listing struct {
	ID                  uuid.UUID     `json:"id"`
	ClinicID            string        `json:"clinic_id"`
	Specialty           string        `json:"specialty"`
	Date                time.Time     `json:"date"`
	StartTime           string        `json:"start_time"`
	EndTime             string        `json:"end_time"`
	TimeZone            string        `json:"time_zone"`
	Location            string        `json:"location,omitempty"`
	Status              ListingStatus `json:"status"`
	FilledAssignmentID  *uuid.UUID    `json:"filled_assignment_id,omitempty"`
	AutoAccept          bool          `json:"auto_accept"`
	Urgent              bool          `json:"urgent"`
	RequiredLanguage    string        `json:"required_language,omitempty"`
	BookableDuringShift bool          `json:"bookable_during_shift"`
	CreatedAt           time.Time     `json:"created_at"`
}

func (l Listing) Validate() error {
	if strings.TrimSpace(l.ClinicID) == "" || strings.TrimSpace(l.Specialty) == "" {
		return fmt.Errorf("%w: clinic_id and specialty required", ErrInvalidListing)
	}
	if l.Date.IsZero() {
		return fmt.Errorf("%w: date required", ErrInvalidListing)
	}
	if _, _, err := l.Window(); err != nil {
		return err
	}
	return nil
}

// Window returns the shift's concrete start and end instants.
func (l Listing) Window() (time.Time, time.Time, error) {
	loc := time.UTC
	if l.TimeZone != "" {
		var err error
		if loc, err = time.LoadLocation(l.TimeZone); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: time_zone: %v", ErrInvalidListing, err)
		}
	}
	start, err := availability.ParseClock(l.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidListing, err)
	}
	end, err := availability.ParseClock(l.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidListing, err)
	}
	if end <= start {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end_time must be after start_time", ErrInvalidListing)
	}
	y, m, d := l.Date.Date()
	return time.Date(y, m, d, start/60, start%60, 0, 0, loc), time.Date(y, m, d, end/60, end%60, 0, 0, loc), nil
}

// Assignment links a specialist to a listing.
type Assignment struct {
	ID           uuid.UUID        `json:"id"`
	ListingID    uuid.UUID        `json:"listing_id"`
	SpecialistID string           `json:"specialist_id"`
	Status       AssignmentStatus `json:"status"`
	Score        float64          `json:"score"`
	ConfirmedAt  *time.Time       `json:"confirmed_at,omitempty"`
	CancelledAt  *time.Time       `json:"cancelled_at,omitempty"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// ConfirmInput is everything a repository writes in one atomic confirm.
// When Existing is true the assignment row already exists as an open
// application and is moved to confirmed; otherwise it is inserted.
type ConfirmInput struct {
	Listing    Listing
	Assignment Assignment
	Existing   bool
	ShiftStart time.Time
	ShiftEnd   time.Time
	Windows    []availability.Window
	Messages   []events.Message
}

// CancelInput describes one atomic cancellation. Messages is called inside
// the transaction with the cancelled assignment and whether the listing reopened.
type CancelInput struct {
	ListingID    uuid.UUID
	SpecialistID string
	CancelledAt  time.Time
	Messages     func(a Assignment, reopened bool) []events.Message
}

// CancelOutcome reports what a cancellation changed.
type CancelOutcome struct {
	Assignment     Assignment
	Reopened       bool
	WindowsRemoved int64
}

// Repository performs each state change atomically, including the ledger
// rows and outbox messages that accompany it.
type Repository interface {
	CreateListing(ctx context.Context, l Listing) error
	GetListing(ctx context.Context, id uuid.UUID) (*Listing, error)
	GetAssignment(ctx context.Context, id uuid.UUID) (*Assignment, error)
	FindAssignment(ctx context.Context, listingID uuid.UUID, specialistID string) (*Assignment, error)
	ListAssignments(ctx context.Context, listingID uuid.UUID) ([]Assignment, error)
	CreateApplication(ctx context.Context, a Assignment) error
	Confirm(ctx context.Context, in ConfirmInput) (*Assignment, []events.OutboxEntry, error)
	Cancel(ctx context.Context, in CancelInput) (*CancelOutcome, []events.OutboxEntry, error)
	Complete(ctx context.Context, id uuid.UUID, at time.Time) error
}

// overlapsShiftBlock reports whether any active shift-derived block in
// windows intersects [start, end).
func overlapsShiftBlock(windows []availability.Window, start, end time.Time) bool {
	for _, w := range windows {
		if w.Source == availability.SourceShift && w.Kind == availability.KindBlocked && w.Covers(start, end) {
			return true
		}
	}
	return false
}
