package shifts

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/telehealth-coordination/internal/availability"
	"github.com/wolfman30/telehealth-coordination/internal/events"
)

// MemoryRepository applies the same compare-and-swap rules as the Postgres
// repository under a single mutex.
type MemoryRepository struct {
	mu          sync.Mutex
	listings    map[uuid.UUID]Listing
	assignments map[uuid.UUID]Assignment
	ledger      *availability.MemoryStore
	outbox      *events.MemoryOutbox
}

func NewMemoryRepository(ledger *availability.MemoryStore, outbox *events.MemoryOutbox) *MemoryRepository {
	if ledger == nil {
		ledger = availability.NewMemoryStore()
	}
	if outbox == nil {
		outbox = events.NewMemoryOutbox()
	}
	return &MemoryRepository{
		listings:    make(map[uuid.UUID]Listing),
		assignments: make(map[uuid.UUID]Assignment),
		ledger:      ledger,
		outbox:      outbox,
	}
}

func (r *MemoryRepository) CreateListing(_ context.Context, l Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listings[l.ID] = l
	return nil
}

func (r *MemoryRepository) GetListing(_ context.Context, id uuid.UUID) (*Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &l, nil
}

func (r *MemoryRepository) GetAssignment(_ context.Context, id uuid.UUID) (*Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) FindAssignment(_ context.Context, listingID uuid.UUID, specialistID string) (*Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a := r.findLocked(listingID, specialistID); a != nil {
		return a, nil
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) ListAssignments(_ context.Context, listingID uuid.UUID) ([]Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Assignment, 0)
	for _, a := range r.assignments {
		if a.ListingID == listingID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *MemoryRepository) CreateApplication(_ context.Context, a Assignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findLocked(a.ListingID, a.SpecialistID) != nil {
		return ErrAlreadyApplied
	}
	r.assignments[a.ID] = a
	return nil
}

func (r *MemoryRepository) Confirm(ctx context.Context, in ConfirmInput) (*Assignment, []events.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	listing, ok := r.listings[in.Listing.ID]
	if !ok || listing.Status != ListingOpen {
		return nil, nil, ErrListingUnavailable
	}
	windows, err := r.ledger.List(ctx, in.Assignment.SpecialistID)
	if err != nil {
		return nil, nil, err
	}
	if overlapsShiftBlock(windows, in.ShiftStart, in.ShiftEnd) {
		return nil, nil, ErrDoubleBooked
	}
	if in.Existing {
		cur, ok := r.assignments[in.Assignment.ID]
		if !ok || !IsOpenApplication(cur.Status) {
			return nil, nil, ErrAssignmentNotActive
		}
	}
	if err := r.ledger.InsertAssignmentWindows(ctx, in.Windows...); err != nil {
		return nil, nil, err
	}
	entries, err := r.outbox.Append(ctx, in.Messages...)
	if err != nil {
		_, _ = r.ledger.DeleteAssignmentWindows(ctx, in.Assignment.ID)
		return nil, nil, err
	}

	id := in.Assignment.ID
	listing.Status = ListingFilled
	listing.FilledAssignmentID = &id
	r.listings[listing.ID] = listing
	r.assignments[id] = in.Assignment
	a := in.Assignment
	return &a, entries, nil
}

func (r *MemoryRepository) Cancel(ctx context.Context, in CancelInput) (*CancelOutcome, []events.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var target *Assignment
	for _, a := range r.assignments {
		if a.ListingID == in.ListingID && a.SpecialistID == in.SpecialistID && a.Status == StatusConfirmed {
			a := a
			target = &a
			break
		}
	}
	if target == nil {
		return nil, nil, ErrAssignmentNotActive
	}

	removed, err := r.ledger.DeleteAssignmentWindows(ctx, target.ID)
	if err != nil {
		return nil, nil, err
	}
	cancelledAt := in.CancelledAt
	target.Status = StatusCancelled
	target.CancelledAt = &cancelledAt
	r.assignments[target.ID] = *target

	reopened := false
	if listing, ok := r.listings[in.ListingID]; ok && listing.FilledAssignmentID != nil && *listing.FilledAssignmentID == target.ID {
		listing.Status = ListingOpen
		listing.FilledAssignmentID = nil
		r.listings[listing.ID] = listing
		reopened = true
	}

	var entries []events.OutboxEntry
	if in.Messages != nil {
		entries, err = r.outbox.Append(ctx, in.Messages(*target, reopened)...)
		if err != nil {
			return nil, nil, err
		}
	}
	return &CancelOutcome{Assignment: *target, Reopened: reopened, WindowsRemoved: int64(removed)}, entries, nil
}

func (r *MemoryRepository) Complete(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[id]
	if !ok || a.Status != StatusConfirmed {
		return ErrAssignmentNotActive
	}
	a.Status = StatusCompleted
	a.CompletedAt = &at
	r.assignments[id] = a
	return nil
}

// findLocked returns the specialist's non-cancelled assignment on a listing.
func (r *MemoryRepository) findLocked(listingID uuid.UUID, specialistID string) *Assignment {
	for _, a := range r.assignments {
		if a.ListingID == listingID && a.SpecialistID == specialistID && a.Status != StatusCancelled {
			found := a
			return &found
		}
	}
	return nil
}
