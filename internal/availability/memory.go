package availability

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps windows in process. Shift writers use the assignment
// methods directly.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[uuid.UUID]Window
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[uuid.UUID]Window)}
}

func (s *MemoryStore) List(_ context.Context, providerID string) ([]Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(providerID), nil
}

func (s *MemoryStore) ListForProviders(_ context.Context, providerIDs []string) (map[string][]Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]Window, len(providerIDs))
	for _, id := range providerIDs {
		out[id] = s.listLocked(id)
	}
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &w, nil
}

func (s *MemoryStore) InsertManual(_ context.Context, w Window, check func([]Window) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if check != nil {
		if err := check(s.listLocked(w.ProviderID)); err != nil {
			return err
		}
	}
	s.windows[w.ID] = w
	return nil
}

func (s *MemoryStore) DeleteManual(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[id]
	if !ok {
		return ErrNotFound
	}
	if w.Source == SourceShift {
		return ErrShiftOwned
	}
	delete(s.windows, id)
	return nil
}

// InsertAssignmentWindows stores shift-derived rows.
func (s *MemoryStore) InsertAssignmentWindows(_ context.Context, windows ...Window) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range windows {
		if err := w.Validate(); err != nil {
			return err
		}
		s.windows[w.ID] = w
	}
	return nil
}

// DeleteAssignmentWindows removes only rows tagged with assignmentID and
// returns how many were removed.
func (s *MemoryStore) DeleteAssignmentWindows(_ context.Context, assignmentID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, w := range s.windows {
		if w.Source == SourceShift && w.AssignmentID != nil && *w.AssignmentID == assignmentID {
			delete(s.windows, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) listLocked(providerID string) []Window {
	out := make([]Window, 0)
	for _, w := range s.windows {
		if w.ProviderID == providerID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}
