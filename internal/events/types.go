package events

import (
	"errors"
	"time"
)

// Event types carried through the outbox.
const (
	TypeShiftConfirmed        = "shift.confirmed.v1"
	TypeShiftCancelled        = "shift.cancelled.v1"
	TypeCalendarMirror        = "calendar.mirror.v1"
	TypeSlotFreed             = "slot.freed.v1"
	TypeNotificationRequested = "notification.requested.v1"
)

// ErrNoHandler is returned by Router when no handler is registered for an event type.
var ErrNoHandler = errors.New("events: no handler for event type")

// Message is an event waiting to be written to the outbox. Key groups
// messages for the same aggregate (assignment id, waitlist entry id).
type Message struct {
	Type    string
	Key     string
	Payload any
}

type ShiftConfirmedV1 struct {
	EventID      string    `json:"event_id"`
	ListingID    string    `json:"listing_id"`
	AssignmentID string    `json:"assignment_id"`
	SpecialistID string    `json:"specialist_id"`
	ClinicID     string    `json:"clinic_id"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
	AutoApproved bool      `json:"auto_approved"`
	ConfirmedAt  time.Time `json:"confirmed_at"`
}

type ShiftCancelledV1 struct {
	EventID         string    `json:"event_id"`
	ListingID       string    `json:"listing_id"`
	AssignmentID    string    `json:"assignment_id"`
	SpecialistID    string    `json:"specialist_id"`
	ListingReopened bool      `json:"listing_reopened"`
	CancelledAt     time.Time `json:"cancelled_at"`
}

// Calendar mirror actions.
const (
	MirrorCreate = "create"
	MirrorDelete = "delete"
)

type CalendarMirrorV1 struct {
	EventID      string    `json:"event_id"`
	Action       string    `json:"action"`
	AssignmentID string    `json:"assignment_id"`
	ProviderID   string    `json:"provider_id"`
	Summary      string    `json:"summary,omitempty"`
	Location     string    `json:"location,omitempty"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
	TimeZone     string    `json:"time_zone,omitempty"`
}

type SlotFreedV1 struct {
	EventID     string    `json:"event_id"`
	ProviderID  string    `json:"provider_id"`
	Specialties []string  `json:"specialties,omitempty"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	FreedAt     time.Time `json:"freed_at"`
}

type NotificationRequestedV1 struct {
	EventID     string         `json:"event_id"`
	UserID      string         `json:"user_id"`
	Message     string         `json:"message"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	RequestedAt time.Time      `json:"requested_at"`
}
