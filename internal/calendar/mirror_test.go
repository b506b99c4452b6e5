package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/wolfman30/telehealth-coordination/internal/events"
)

type fakeEvents struct {
	inserted map[string]Event
	deleted  []string
	err      error
}

func newFakeEvents() *fakeEvents { return &fakeEvents{inserted: make(map[string]Event)} }

func (f *fakeEvents) Insert(_ context.Context, _ Connection, ev Event) error {
	if f.err != nil {
		return f.err
	}
	f.inserted[ev.ID] = ev
	return nil
}

func (f *fakeEvents) Delete(_ context.Context, _ Connection, id string) error {
	if f.err != nil {
		return f.err
	}
	delete(f.inserted, id)
	f.deleted = append(f.deleted, id)
	return nil
}

var mirrorNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func mirrorEntry(t *testing.T, msg events.CalendarMirrorV1) events.OutboxEntry {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return events.OutboxEntry{ID: uuid.New(), Type: events.TypeCalendarMirror, Payload: data}
}

func newTestMirror(api EventsAPI, conns ...Connection) *Mirror {
	m := NewMirror(api, NewMemoryTokenStore(conns...), nil)
	m.now = func() time.Time { return mirrorNow }
	return m
}

func TestMirrorCreateThenDeleteUsesStableID(t *testing.T) {
	api := newFakeEvents()
	m := newTestMirror(api, Connection{ProviderID: "dr-ada", Token: &oauth2.Token{AccessToken: "tok", Expiry: mirrorNow.Add(time.Hour)}})
	asg := uuid.New().String()
	start := time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC)

	create := mirrorEntry(t, events.CalendarMirrorV1{Action: events.MirrorCreate, AssignmentID: asg, ProviderID: "dr-ada",
		Summary: "Cardiology shift", StartsAt: start, EndsAt: start.Add(8 * time.Hour), TimeZone: "UTC"})
	require.NoError(t, m.Handle(context.Background(), create))
	require.NoError(t, m.Handle(context.Background(), create))
	require.Len(t, api.inserted, 1)
	ev := api.inserted[EventID(asg)]
	assert.Equal(t, "Cardiology shift", ev.Summary)
	assert.Equal(t, start, ev.Start)

	remove := mirrorEntry(t, events.CalendarMirrorV1{Action: events.MirrorDelete, AssignmentID: asg, ProviderID: "dr-ada"})
	require.NoError(t, m.Handle(context.Background(), remove))
	assert.Empty(t, api.inserted)
	assert.Equal(t, []string{EventID(asg)}, api.deleted)
}

func TestMirrorSkipsUnconnectedProvider(t *testing.T) {
	api := newFakeEvents()
	m := newTestMirror(api)

	err := m.Handle(context.Background(), mirrorEntry(t, events.CalendarMirrorV1{Action: events.MirrorCreate, AssignmentID: uuid.NewString(), ProviderID: "dr-ben"}))
	assert.NoError(t, err)
	assert.Empty(t, api.inserted)
}

func TestMirrorExpiredTokenIsRetryable(t *testing.T) {
	api := newFakeEvents()
	m := newTestMirror(api, Connection{ProviderID: "dr-ada", Token: &oauth2.Token{AccessToken: "tok", Expiry: mirrorNow.Add(-time.Minute)}})

	err := m.Handle(context.Background(), mirrorEntry(t, events.CalendarMirrorV1{Action: events.MirrorCreate, AssignmentID: uuid.NewString(), ProviderID: "dr-ada"}))
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestMirrorPropagatesAPIErrors(t *testing.T) {
	api := newFakeEvents()
	api.err = errors.New("boom")
	m := newTestMirror(api, Connection{ProviderID: "dr-ada", Token: &oauth2.Token{AccessToken: "tok"}})

	err := m.Handle(context.Background(), mirrorEntry(t, events.CalendarMirrorV1{Action: events.MirrorCreate, AssignmentID: uuid.NewString(), ProviderID: "dr-ada"}))
	assert.Error(t, err)

	err = m.Handle(context.Background(), mirrorEntry(t, events.CalendarMirrorV1{Action: "move", ProviderID: "dr-ada"}))
	assert.Error(t, err)
}

func TestEventID(t *testing.T) {
	id := uuid.MustParse("6f1c2a9e-3b4d-4e5f-8a7b-9c0d1e2f3a4b")
	assert.Equal(t, "shift6f1c2a9e3b4d4e5f8a7b9c0d1e2f3a4b", EventID(id.String()))
	assert.Equal(t, "shiftab12", EventID("AB-12-xyz"))
}

type fakeAssignments map[string]bool

func (f fakeAssignments) AssignmentLive(_ context.Context, id string) (bool, error) {
	return f[id], nil
}

func TestMirrorDropsCreateRetriedAfterCancel(t *testing.T) {
	api := newFakeEvents()
	asg := uuid.NewString()
	status := fakeAssignments{asg: true}
	m := newTestMirror(api, Connection{ProviderID: "dr-ada", Token: &oauth2.Token{AccessToken: "tok"}}).WithAssignments(status)
	ctx := context.Background()

	create := mirrorEntry(t, events.CalendarMirrorV1{Action: events.MirrorCreate, AssignmentID: asg, ProviderID: "dr-ada"})
	api.err = errors.New("calendar unavailable")
	require.Error(t, m.Handle(ctx, create))

	// The shift is cancelled and its delete lands while the create is pending.
	api.err = nil
	status[asg] = false
	require.NoError(t, m.Handle(ctx, mirrorEntry(t, events.CalendarMirrorV1{Action: events.MirrorDelete, AssignmentID: asg, ProviderID: "dr-ada"})))

	require.NoError(t, m.Handle(ctx, create))
	assert.Empty(t, api.inserted)
}
