package waitlist

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/telehealth-coordination/internal/events"
)

// MemoryStore keeps entries in process. The outbox append happens under the
// same lock as the status change.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]Entry
	outbox  *events.MemoryOutbox
}

func NewMemoryStore(outbox *events.MemoryOutbox) *MemoryStore {
	if outbox == nil {
		outbox = events.NewMemoryOutbox()
	}
	return &MemoryStore{entries: make(map[uuid.UUID]Entry), outbox: outbox}
}

func (s *MemoryStore) Create(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.ID] = e
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *MemoryStore) ListActive(_ context.Context, specialty string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0)
	for _, e := range s.entries {
		if e.Status != StatusActive {
			continue
		}
		if specialty != "" && !strings.EqualFold(e.Specialty, specialty) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UrgencyScore != out[j].UrgencyScore {
			return out[i].UrgencyScore > out[j].UrgencyScore
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *MemoryStore) ExpireDue(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.entries {
		if e.Status == StatusActive && !e.ExpiresAt.After(now) {
			e.Status = StatusExpired
			s.entries[id] = e
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) MarkMatched(ctx context.Context, u MatchUpdate) (bool, []events.OutboxEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[u.EntryID]
	if !ok || e.Status != StatusActive {
		return false, nil, nil
	}
	entries, err := s.outbox.Append(ctx, u.Message)
	if err != nil {
		return false, nil, err
	}
	score, at := u.Score, u.MatchedAt
	e.Status = StatusMatched
	e.Matches = append([]Match(nil), u.Matches...)
	e.MatchScore = &score
	e.MatchedAt = &at
	s.entries[e.ID] = e
	return true, entries, nil
}

func (s *MemoryStore) Reactivate(_ context.Context, id uuid.UUID, now time.Time) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if e.Status != StatusMatched || !e.ExpiresAt.After(now) {
		return nil, ErrNotMatched
	}
	e.Status = StatusActive
	e.Matches = nil
	e.MatchScore = nil
	e.MatchedAt = nil
	s.entries[id] = e
	return &e, nil
}
