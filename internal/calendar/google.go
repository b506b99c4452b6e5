package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleEvents implements EventsAPI on the Google Calendar v3 API.
type GoogleEvents struct {
	endpoint string
}

func NewGoogleEvents() *GoogleEvents {
	return &GoogleEvents{}
}

// WithEndpoint points the client at a different base URL.
func (g *GoogleEvents) WithEndpoint(endpoint string) *GoogleEvents {
	g.endpoint = endpoint
	return g
}

func (g *GoogleEvents) service(ctx context.Context, conn Connection) (*gcal.Service, error) {
	if conn.Token == nil || conn.Token.AccessToken == "" {
		return nil, fmt.Errorf("calendar: %s: %w", conn.ProviderID, ErrNotConnected)
	}
	opts := []option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(conn.Token))}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: create google client: %w", err)
	}
	return svc, nil
}

func (g *GoogleEvents) Insert(ctx context.Context, conn Connection, ev Event) error {
	svc, err := g.service(ctx, conn)
	if err != nil {
		return err
	}
	_, err = svc.Events.Insert(calendarID(conn), &gcal.Event{
		Id:       ev.ID,
		Summary:  ev.Summary,
		Location: ev.Location,
		Start:    &gcal.EventDateTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: ev.TimeZone},
		End:      &gcal.EventDateTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: ev.TimeZone},
	}).Context(ctx).Do()
	if hasStatus(err, http.StatusConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("calendar: insert event: %w", err)
	}
	return nil
}

func (g *GoogleEvents) Delete(ctx context.Context, conn Connection, eventID string) error {
	svc, err := g.service(ctx, conn)
	if err != nil {
		return err
	}
	err = svc.Events.Delete(calendarID(conn), eventID).Context(ctx).Do()
	if hasStatus(err, http.StatusNotFound, http.StatusGone) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("calendar: delete event: %w", err)
	}
	return nil
}

func calendarID(conn Connection) string {
	if conn.CalendarID == "" {
		return "primary"
	}
	return conn.CalendarID
}

func hasStatus(err error, codes ...int) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	for _, c := range codes {
		if gerr.Code == c {
			return true
		}
	}
	return false
}
