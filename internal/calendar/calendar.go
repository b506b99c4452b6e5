// Package calendar mirrors confirmed shifts into providers' external calendars.
package calendar

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

var (
	ErrNotConnected = errors.New("calendar: provider has no calendar connection")
	ErrTokenExpired = errors.New("calendar: access token expired")
)

// Event is the calendar entry written for one assignment.
type Event struct {
	ID       string
	Summary  string
	Location string
	Start    time.Time
	End      time.Time
	TimeZone string
}

// Connection is a provider's linked calendar. Tokens are refreshed by a
// separate process; this package only reads them.
type Connection struct {
	ProviderID string
	CalendarID string
	Token      *oauth2.Token
}

// TokenProvider returns the calendar connection for a provider, or
// ErrNotConnected.
type TokenProvider interface {
	Connection(ctx context.Context, providerID string) (*Connection, error)
}

// EventsAPI creates and deletes events. Both calls are idempotent: creating
// an existing id and deleting a missing one succeed.
type EventsAPI interface {
	Insert(ctx context.Context, conn Connection, ev Event) error
	Delete(ctx context.Context, conn Connection, eventID string) error
}

// AssignmentStatus tells the mirror whether a shift still stands.
type AssignmentStatus interface {
	AssignmentLive(ctx context.Context, assignmentID string) (bool, error)
}

// EventID derives a stable event id from an assignment id so retries and
// the later delete address the same event. Google accepts lowercase hex.
func EventID(assignmentID string) string {
	if id, err := uuid.Parse(assignmentID); err == nil {
		return "shift" + strings.ReplaceAll(id.String(), "-", "")
	}
	return "shift" + strings.ToLower(strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'v') || (r >= 'A' && r <= 'V') {
			return r
		}
		return -1
	}, assignmentID))
}
