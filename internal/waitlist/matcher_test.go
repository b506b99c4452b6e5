package waitlist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/telehealth-coordination/internal/availability"
	"github.com/wolfman30/telehealth-coordination/internal/directory"
	"github.com/wolfman30/telehealth-coordination/internal/events"
)

var testNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

type harness struct {
	matcher *Matcher
	service *Service
	store   *MemoryStore
	outbox  *events.MemoryOutbox
	ledger  *availability.Ledger
	dir     *directory.InMemoryDirectory
}

func newHarness(t *testing.T, cfg MatcherConfig) *harness {
	t.Helper()
	outbox := events.NewMemoryOutbox()
	store := NewMemoryStore(outbox)
	ledger := availability.NewLedger(availability.NewMemoryStore(), nil)
	dir := directory.NewInMemoryDirectory(
		provider("dr-ada", 5.0, "English"),
		provider("dr-ben", 1.0),
	)
	svc := NewService(store, nil, nil)
	svc.now = func() time.Time { return testNow }
	return &harness{
		matcher: NewMatcher(store, dir, ledger, cfg, nil, WithMatcherClock(func() time.Time { return testNow })),
		service: svc,
		store:   store,
		outbox:  outbox,
		ledger:  ledger,
		dir:     dir,
	}
}

func provider(id string, rating float64, languages ...string) directory.ProviderCandidate {
	return directory.ProviderCandidate{
		ID:                   id,
		Specialties:          []string{"Cardiology"},
		Rating:               rating,
		Languages:            languages,
		AcceptingNewPatients: true,
		VerificationStatus:   directory.VerificationVerified,
	}
}

func (h *harness) open(t *testing.T, providerID string, day int, start, end string) {
	t.Helper()
	date := time.Date(2026, 10, day, 0, 0, 0, 0, time.UTC)
	_, err := h.ledger.AddWindow(context.Background(), availability.Window{
		ProviderID: providerID,
		Kind:       availability.KindAvailable,
		StartDate:  &date,
		EndDate:    &date,
		StartTime:  start,
		EndTime:    end,
		TimeZone:   "UTC",
		Active:     true,
	})
	require.NoError(t, err)
}

func (h *harness) entry(t *testing.T, in CreateInput) *Entry {
	t.Helper()
	if in.PatientID == "" {
		in.PatientID = "patient-1"
	}
	if in.Specialty == "" {
		in.Specialty = "Cardiology"
	}
	e, err := h.service.Create(context.Background(), in)
	require.NoError(t, err)
	return e
}

func strongRequest() CreateInput {
	return CreateInput{
		Language:       "English",
		PreferredTimes: []PreferredTime{{Start: "09:00", End: "12:00"}},
		UrgencyScore:   8,
		MaxWaitDays:    7,
	}
}

func TestRunMatchesAndNotifiesOnce(t *testing.T) {
	h := newHarness(t, DefaultMatcherConfig())
	h.open(t, "dr-ada", 15, "09:00", "10:00")
	e := h.entry(t, strongRequest())

	res, err := h.matcher.Run(context.Background(), Trigger{Reason: "schedule"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Evaluated)
	require.Len(t, res.Matched, 1)

	got, err := h.store.Get(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusMatched, got.Status)
	require.Len(t, got.Matches, 2)
	assert.Equal(t, time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC), got.Matches[0].Start)
	assert.Equal(t, 100.0, *got.MatchScore)

	notes := h.outbox.Entries(events.TypeNotificationRequested)
	require.Len(t, notes, 1)
	var msg events.NotificationRequestedV1
	require.NoError(t, notes[0].Decode(&msg))
	assert.Equal(t, "patient-1", msg.UserID)
	assert.Equal(t, 100.0, msg.Metadata["match_score"])

	res, err = h.matcher.Run(context.Background(), Trigger{Reason: "schedule"})
	require.NoError(t, err)
	assert.Empty(t, res.Matched)
	assert.Len(t, h.outbox.Entries(events.TypeNotificationRequested), 1)
}

func TestReactivatedEntryIsNotifiedAgain(t *testing.T) {
	h := newHarness(t, DefaultMatcherConfig())
	h.open(t, "dr-ada", 15, "09:00", "10:00")
	e := h.entry(t, strongRequest())

	_, err := h.matcher.Run(context.Background(), Trigger{})
	require.NoError(t, err)

	back, err := h.service.Reactivate(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, back.Status)
	assert.Nil(t, back.MatchScore)

	_, err = h.service.Reactivate(context.Background(), e.ID)
	assert.ErrorIs(t, err, ErrNotMatched)

	_, err = h.matcher.Run(context.Background(), Trigger{})
	require.NoError(t, err)
	assert.Len(t, h.outbox.Entries(events.TypeNotificationRequested), 2)
}

func TestRunLeavesWeakMatchesActive(t *testing.T) {
	h := newHarness(t, DefaultMatcherConfig())
	h.open(t, "dr-ben", 20, "15:00", "16:00")
	e := h.entry(t, CreateInput{Language: "Spanish", MaxWaitDays: 10})

	res, err := h.matcher.Run(context.Background(), Trigger{})
	require.NoError(t, err)
	assert.Empty(t, res.Matched)

	got, err := h.store.Get(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)
	assert.Empty(t, h.outbox.Entries(events.TypeNotificationRequested))
}

func TestRunIgnoresSlotsBeyondWait(t *testing.T) {
	h := newHarness(t, DefaultMatcherConfig())
	h.open(t, "dr-ada", 25, "09:00", "10:00")
	h.entry(t, CreateInput{Language: "English", UrgencyScore: 2, MaxWaitDays: 3})

	res, err := h.matcher.Run(context.Background(), Trigger{})
	require.NoError(t, err)
	assert.Empty(t, res.Matched)
}

func TestRunExpiresStaleEntries(t *testing.T) {
	h := newHarness(t, DefaultMatcherConfig())
	h.open(t, "dr-ada", 15, "09:00", "10:00")
	e := h.entry(t, strongRequest())

	stale := *e
	stale.ExpiresAt = testNow.Add(-time.Minute)
	require.NoError(t, h.store.Create(context.Background(), stale))

	res, err := h.matcher.Run(context.Background(), Trigger{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Expired)
	assert.Equal(t, 0, res.Evaluated)

	got, err := h.store.Get(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)
}

func TestRunKeepsTopN(t *testing.T) {
	cfg := DefaultMatcherConfig()
	cfg.TopN = 2
	h := newHarness(t, cfg)
	h.open(t, "dr-ada", 15, "09:00", "12:00")
	h.open(t, "dr-ben", 15, "09:00", "12:00")
	e := h.entry(t, strongRequest())

	_, err := h.matcher.Run(context.Background(), Trigger{})
	require.NoError(t, err)

	got, err := h.store.Get(context.Background(), e.ID)
	require.NoError(t, err)
	require.Len(t, got.Matches, 2)
	for _, m := range got.Matches {
		assert.Equal(t, "dr-ada", m.ProviderID)
	}
	assert.True(t, got.Matches[0].Start.Before(got.Matches[1].Start))
}

func TestRunProviderTriggerNarrowsCandidates(t *testing.T) {
	h := newHarness(t, DefaultMatcherConfig())
	h.open(t, "dr-ada", 15, "09:00", "10:00")
	h.entry(t, strongRequest())

	res, err := h.matcher.Run(context.Background(), Trigger{Specialty: "Cardiology", ProviderID: "dr-ben"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Evaluated)
	assert.Empty(t, res.Matched)

	res, err = h.matcher.Run(context.Background(), Trigger{Specialty: "Dermatology"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Evaluated)
}

func TestRunDirectoryUnavailable(t *testing.T) {
	h := newHarness(t, DefaultMatcherConfig())
	h.entry(t, strongRequest())
	h.dir.SetError(directory.ErrUnavailable)

	_, err := h.matcher.Run(context.Background(), Trigger{})
	assert.True(t, errors.Is(err, directory.ErrUnavailable))
}

func TestSlotFreedHandlerRunsMatcher(t *testing.T) {
	h := newHarness(t, DefaultMatcherConfig())
	h.open(t, "dr-ada", 15, "09:00", "10:00")
	e := h.entry(t, strongRequest())

	source := events.NewMemoryOutbox()
	appended, err := source.Append(context.Background(), events.Message{
		Type:    events.TypeSlotFreed,
		Payload: events.SlotFreedV1{ProviderID: "dr-ada", Specialties: []string{"Cardiology"}},
	})
	require.NoError(t, err)

	require.NoError(t, NewSlotFreedHandler(h.matcher).Handle(context.Background(), appended[0]))
	got, err := h.store.Get(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusMatched, got.Status)
}

func TestRunOffersEachSlotToOneEntry(t *testing.T) {
	h := newHarness(t, DefaultMatcherConfig())
	h.open(t, "dr-ada", 15, "09:00", "10:00")
	first := strongRequest()
	first.PatientID = "patient-1"
	second := strongRequest()
	second.PatientID = "patient-2"
	a := h.entry(t, first)
	b := h.entry(t, second)

	res, err := h.matcher.Run(context.Background(), Trigger{})
	require.NoError(t, err)
	require.Len(t, res.Matched, 2)

	gotA, err := h.store.Get(context.Background(), a.ID)
	require.NoError(t, err)
	gotB, err := h.store.Get(context.Background(), b.ID)
	require.NoError(t, err)
	require.NotEmpty(t, gotA.Matches)
	require.NotEmpty(t, gotB.Matches)
	assert.False(t, gotA.Matches[0].Start.Equal(gotB.Matches[0].Start))
	assert.Len(t, h.outbox.Entries(events.TypeNotificationRequested), 2)
}
