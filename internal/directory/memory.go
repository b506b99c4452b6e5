package directory

import (
	"context"
	"sort"
	"sync"
)

// InMemoryDirectory serves a fixed provider set. Used for local runs and tests.
type InMemoryDirectory struct {
	mu        sync.RWMutex
	providers []ProviderCandidate
	err       error
}

func NewInMemoryDirectory(providers ...ProviderCandidate) *InMemoryDirectory {
	return &InMemoryDirectory{providers: append([]ProviderCandidate(nil), providers...)}
}

// Put adds or replaces a provider by id.
func (d *InMemoryDirectory) Put(p ProviderCandidate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.providers {
		if d.providers[i].ID == p.ID {
			d.providers[i] = p
			return
		}
	}
	d.providers = append(d.providers, p)
}

// Get returns a provider by id, or (nil, nil) when unknown.
func (d *InMemoryDirectory) Get(_ context.Context, id string) (*ProviderCandidate, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.err != nil {
		return nil, d.err
	}
	for _, p := range d.providers {
		if p.ID == id {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

// SetError makes every Find fail with err until cleared with nil.
func (d *InMemoryDirectory) SetError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *InMemoryDirectory) Find(_ context.Context, q Query) ([]ProviderCandidate, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.err != nil {
		return nil, d.err
	}
	out := make([]ProviderCandidate, 0)
	for _, p := range d.providers {
		if q.Matches(p) {
			out = append(out, p)
		}
	}
	sortCandidates(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func sortCandidates(list []ProviderCandidate) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Rating != list[j].Rating {
			return list[i].Rating > list[j].Rating
		}
		if list[i].ReviewCount != list[j].ReviewCount {
			return list[i].ReviewCount > list[j].ReviewCount
		}
		return list[i].ID < list[j].ID
	})
}
