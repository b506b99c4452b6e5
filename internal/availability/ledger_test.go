package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerAddWindowRejectsOverlap(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger(NewMemoryStore(), nil)

	first, err := ledger.AddWindow(ctx, weekly("p1", 1, "09:00", "12:00"))
	require.NoError(t, err)
	assert.Equal(t, SourceManual, first.Source)

	_, err = ledger.AddWindow(ctx, weekly("p1", 1, "11:00", "14:00"))
	assert.ErrorIs(t, err, ErrOverlap)

	_, err = ledger.AddWindow(ctx, weekly("p1", 1, "12:00", "14:00"))
	assert.NoError(t, err)

	windows, err := ledger.Windows(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, windows, 2)
}

func TestLedgerAddWindowForcesManualSource(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger(NewMemoryStore(), nil)

	asg := uuid.New()
	w := weekly("p1", 2, "09:00", "10:00")
	w.Source, w.AssignmentID, w.ShiftOverride = SourceShift, &asg, true
	got, err := ledger.AddWindow(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, SourceManual, got.Source)
	assert.Nil(t, got.AssignmentID)
	assert.False(t, got.ShiftOverride)
}

func TestLedgerAddWindowUsesClockAndZones(t *testing.T) {
	ctx := context.Background()
	clock := func() time.Time { return monday.Add(8 * time.Hour) }
	ledger := NewLedger(NewMemoryStore(), nil, WithClock(clock))

	east := weekly("p1", 1, "09:00", "10:00")
	east.TimeZone = "America/New_York"
	got, err := ledger.AddWindow(ctx, east)
	require.NoError(t, err)
	assert.Equal(t, clock().UTC(), got.CreatedAt)

	west := weekly("p1", 1, "06:00", "07:00")
	west.TimeZone = "America/Los_Angeles"
	_, err = ledger.AddWindow(ctx, west)
	assert.ErrorIs(t, err, ErrOverlap)

	west.StartTime, west.EndTime = "09:00", "10:00"
	_, err = ledger.AddWindow(ctx, west)
	require.NoError(t, err)
}

func TestLedgerRemoveWindowProtectsShiftRows(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	ledger := NewLedger(store, nil)

	asg := uuid.New()
	block := dated("p1", KindBlocked, datePtr(2026, 10, 12), "08:00", "18:00")
	block.Source, block.AssignmentID = SourceShift, &asg
	require.NoError(t, store.InsertAssignmentWindows(ctx, block))

	assert.ErrorIs(t, ledger.RemoveWindow(ctx, block.ID), ErrShiftOwned)
	assert.ErrorIs(t, ledger.RemoveWindow(ctx, uuid.New()), ErrNotFound)

	manual, err := ledger.AddWindow(ctx, weekly("p1", 1, "09:00", "12:00"))
	require.NoError(t, err)
	require.NoError(t, ledger.RemoveWindow(ctx, manual.ID))
}

func TestMemoryStoreDeleteAssignmentWindowsOnlyTouchesTaggedRows(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	ledger := NewLedger(store, nil)
	manual, err := ledger.AddWindow(ctx, weekly("p1", 1, "09:00", "12:00"))
	require.NoError(t, err)

	mine, other := uuid.New(), uuid.New()
	a := dated("p1", KindBlocked, datePtr(2026, 10, 12), "13:00", "14:00")
	a.Source, a.AssignmentID = SourceShift, &mine
	b := dated("p1", KindBlocked, datePtr(2026, 10, 13), "13:00", "14:00")
	b.Source, b.AssignmentID = SourceShift, &other
	require.NoError(t, store.InsertAssignmentWindows(ctx, a, b))

	n, err := store.DeleteAssignmentWindows(ctx, mine)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	left, err := store.List(ctx, "p1")
	require.NoError(t, err)
	ids := []uuid.UUID{}
	for _, w := range left {
		ids = append(ids, w.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{manual.ID, b.ID}, ids)
}

func TestLedgerDaysUntilAvailable(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger(NewMemoryStore(), nil, WithHorizon(7*24*time.Hour))
	_, err := ledger.AddWindow(ctx, weekly("p1", 3, "09:00", "17:00")) // Wednesday
	require.NoError(t, err)

	days, err := ledger.DaysUntilAvailable(ctx, []string{"p1", "p2"}, at(9, 0))
	require.NoError(t, err)
	require.NotNil(t, days["p1"])
	assert.InDelta(t, 2.0, *days["p1"], 0.0001)
	assert.Nil(t, days["p2"])

	next, err := ledger.NextAvailable(ctx, "p1", at(9, 0))
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, time.Wednesday, next.Weekday())

	slots, err := ledger.OpenSlots(ctx, "p1", monday, monday.AddDate(0, 0, 7), time.Hour)
	require.NoError(t, err)
	assert.Len(t, slots, 8)
}
