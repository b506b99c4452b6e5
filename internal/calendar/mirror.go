package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/telehealth-coordination/internal/events"
	"github.com/wolfman30/telehealth-coordination/pkg/logging"
)

// Mirror applies calendar.mirror.v1 outbox entries to the provider's calendar.
// It is registered on the outbox router and also used for the inline attempt
// made right after a shift transition commits.
type Mirror struct {
	api         EventsAPI
	tokens      TokenProvider
	assignments AssignmentStatus
	logger      *logging.Logger
	now         func() time.Time
}

func NewMirror(api EventsAPI, tokens TokenProvider, logger *logging.Logger) *Mirror {
	if logger == nil {
		logger = logging.Default()
	}
	return &Mirror{api: api, tokens: tokens, logger: logger, now: time.Now}
}

// WithAssignments makes creates check the assignment first. A create that
// arrives after the shift was cancelled is dropped, since the matching delete
// may already have run.
func (m *Mirror) WithAssignments(a AssignmentStatus) *Mirror {
	m.assignments = a
	return m
}

func (m *Mirror) Handle(ctx context.Context, entry events.OutboxEntry) error {
	var msg events.CalendarMirrorV1
	if err := entry.Decode(&msg); err != nil {
		return err
	}
	conn, err := m.tokens.Connection(ctx, msg.ProviderID)
	if errors.Is(err, ErrNotConnected) {
		m.logger.Debug("calendar mirror skipped, provider not connected", "provider_id", msg.ProviderID)
		return nil
	}
	if err != nil {
		return err
	}
	if conn.Token != nil && !conn.Token.Expiry.IsZero() && conn.Token.Expiry.Before(m.now()) {
		return fmt.Errorf("%w: provider %s", ErrTokenExpired, msg.ProviderID)
	}

	id := EventID(msg.AssignmentID)
	switch msg.Action {
	case events.MirrorCreate:
		if m.assignments != nil {
			live, err := m.assignments.AssignmentLive(ctx, msg.AssignmentID)
			if err != nil {
				return fmt.Errorf("calendar: check assignment: %w", err)
			}
			if !live {
				m.logger.Info("calendar create dropped, assignment no longer live", "provider_id", msg.ProviderID, "assignment_id", msg.AssignmentID)
				return nil
			}
		}
		err = m.api.Insert(ctx, *conn, Event{
			ID:       id,
			Summary:  msg.Summary,
			Location: msg.Location,
			Start:    msg.StartsAt,
			End:      msg.EndsAt,
			TimeZone: msg.TimeZone,
		})
	case events.MirrorDelete:
		err = m.api.Delete(ctx, *conn, id)
	default:
		return fmt.Errorf("calendar: unknown mirror action %q", msg.Action)
	}
	if err != nil {
		return err
	}
	m.logger.Info("calendar mirrored", "provider_id", msg.ProviderID, "assignment_id", msg.AssignmentID, "action", msg.Action)
	return nil
}
