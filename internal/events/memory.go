package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryOutbox is an in-process outbox used by the in-memory repositories
// and tests. Callers that need atomicity with their own state hold their
// lock while calling Append.
type MemoryOutbox struct {
	mu        sync.Mutex
	entries   []OutboxEntry
	delivered map[uuid.UUID]bool
	errors    map[uuid.UUID]string
}

func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{
		delivered: make(map[uuid.UUID]bool),
		errors:    make(map[uuid.UUID]string),
	}
}

func (o *MemoryOutbox) Append(_ context.Context, msgs ...Message) ([]OutboxEntry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]OutboxEntry, 0, len(msgs))
	for _, msg := range msgs {
		entry, err := newEntry(msg, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		o.entries = append(o.entries, entry)
		out = append(out, entry)
	}
	return out, nil
}

func (o *MemoryOutbox) FetchPending(_ context.Context, limit int32, maxAttempts int) ([]OutboxEntry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []OutboxEntry
	for _, e := range o.entries {
		if o.delivered[e.ID] || (maxAttempts > 0 && e.Attempts >= maxAttempts) {
			continue
		}
		out = append(out, e)
		if limit > 0 && int32(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (o *MemoryOutbox) MarkDelivered(_ context.Context, id uuid.UUID) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.delivered[id] {
		return false, nil
	}
	for _, e := range o.entries {
		if e.ID == id {
			o.delivered[id] = true
			return true, nil
		}
	}
	return false, nil
}

func (o *MemoryOutbox) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.entries {
		if o.entries[i].ID == id {
			o.entries[i].Attempts++
			o.errors[id] = reason
		}
	}
	return nil
}

// Entries returns a snapshot of every appended entry, filtered by type when
// types are given.
func (o *MemoryOutbox) Entries(types ...string) []OutboxEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []OutboxEntry
	for _, e := range o.entries {
		if len(types) == 0 || contains(types, e.Type) {
			out = append(out, e)
		}
	}
	return out
}

// Delivered reports whether the entry was marked delivered.
func (o *MemoryOutbox) Delivered(id uuid.UUID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.delivered[id]
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
