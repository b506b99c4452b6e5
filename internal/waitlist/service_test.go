package waitlist

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDefaultsAndValidation(t *testing.T) {
	h := newHarness(t, DefaultMatcherConfig())

	e := h.entry(t, CreateInput{})
	assert.Equal(t, StatusActive, e.Status)
	assert.Equal(t, DefaultMaxWaitDays, e.MaxWaitDays)
	assert.Equal(t, testNow.AddDate(0, 0, DefaultMaxWaitDays), e.ExpiresAt)

	bad := []CreateInput{
		{Specialty: "Cardiology"},
		{PatientID: "p", Specialty: ""},
		{PatientID: "p", Specialty: "Cardiology", UrgencyScore: 11},
		{PatientID: "p", Specialty: "Cardiology", MaxWaitDays: -1},
		{PatientID: "p", Specialty: "Cardiology", TimeZone: "Mars/Olympus"},
		{PatientID: "p", Specialty: "Cardiology", PreferredTimes: []PreferredTime{{Start: "12:00", End: "09:00"}}},
	}
	for _, in := range bad {
		_, err := h.service.Create(context.Background(), in)
		assert.ErrorIs(t, err, ErrInvalidEntry, "%+v", in)
	}
}

func TestFulfillDeletes(t *testing.T) {
	h := newHarness(t, DefaultMatcherConfig())
	e := h.entry(t, CreateInput{})

	require.NoError(t, h.service.Fulfill(context.Background(), e.ID))
	_, err := h.service.Get(context.Background(), e.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, h.service.Fulfill(context.Background(), uuid.New()), ErrNotFound)
}

func TestPreferredTimeUsesEntryZone(t *testing.T) {
	monday := 1
	e := Entry{
		TimeZone:       "America/New_York",
		PreferredTimes: []PreferredTime{{DayOfWeek: &monday, Start: "09:00", End: "11:00"}},
	}
	// 13:30 UTC on Monday 2026-10-12 is 09:30 EDT.
	assert.True(t, e.prefers(testNow.AddDate(0, 0, -2).Add(90*time.Minute)))
	assert.False(t, e.prefers(testNow))
}
