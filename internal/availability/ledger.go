package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/telehealth-coordination/pkg/logging"
)

// Store persists windows. InsertManual runs check against the provider's
// current windows and inserts atomically with respect to other writers.
type Store interface {
	List(ctx context.Context, providerID string) ([]Window, error)
	ListForProviders(ctx context.Context, providerIDs []string) (map[string][]Window, error)
	Get(ctx context.Context, id uuid.UUID) (*Window, error)
	InsertManual(ctx context.Context, w Window, check func(existing []Window) error) error
	DeleteManual(ctx context.Context, id uuid.UUID) error
}

// Ledger is the read and manual-write surface over a Store.
type Ledger struct {
	store   Store
	logger  *logging.Logger
	horizon time.Duration
	minOpen time.Duration
	now     func() time.Time
}

type LedgerOption func(*Ledger)

// WithHorizon bounds how far ahead next-available lookups search.
func WithHorizon(d time.Duration) LedgerOption {
	return func(l *Ledger) {
		if d > 0 {
			l.horizon = d
		}
	}
}

// WithMinOpen sets the shortest interval considered bookable.
func WithMinOpen(d time.Duration) LedgerOption {
	return func(l *Ledger) {
		if d > 0 {
			l.minOpen = d
		}
	}
}

// WithClock overrides the ledger's notion of now.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

func NewLedger(store Store, logger *logging.Logger, opts ...LedgerOption) *Ledger {
	if store == nil {
		panic("availability: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	l := &Ledger{store: store, logger: logger, horizon: 14 * 24 * time.Hour, minOpen: 30 * time.Minute, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddWindow validates and stores a provider-authored window. Source and
// shift fields are forced to manual values.
func (l *Ledger) AddWindow(ctx context.Context, w Window) (Window, error) {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	w.Source = SourceManual
	w.AssignmentID = nil
	w.ShiftOverride = false
	now := l.now().UTC()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	err := l.store.InsertManual(ctx, w, func(existing []Window) error {
		return CheckOverlap(w, existing, now)
	})
	if err != nil {
		return Window{}, err
	}
	l.logger.Info("availability window added", "provider_id", w.ProviderID, "window_id", w.ID, "kind", w.Kind)
	return w, nil
}

// RemoveWindow deletes a manual window. Shift-owned rows return ErrShiftOwned.
func (l *Ledger) RemoveWindow(ctx context.Context, id uuid.UUID) error {
	if err := l.store.DeleteManual(ctx, id); err != nil {
		return err
	}
	l.logger.Info("availability window removed", "window_id", id)
	return nil
}

func (l *Ledger) Windows(ctx context.Context, providerID string) ([]Window, error) {
	return l.store.List(ctx, providerID)
}

// OpenIntervals expands a provider's windows over [from, to).
func (l *Ledger) OpenIntervals(ctx context.Context, providerID string, from, to time.Time) ([]Interval, error) {
	windows, err := l.store.List(ctx, providerID)
	if err != nil {
		return nil, err
	}
	return Expand(windows, from, to), nil
}

// OpenSlots lists fixed-length open slots over [from, to).
func (l *Ledger) OpenSlots(ctx context.Context, providerID string, from, to time.Time, length time.Duration) ([]Slot, error) {
	windows, err := l.store.List(ctx, providerID)
	if err != nil {
		return nil, err
	}
	return Slots(providerID, windows, from, to, length), nil
}

// NextAvailable returns the next bookable instant within the horizon, or nil.
func (l *Ledger) NextAvailable(ctx context.Context, providerID string, now time.Time) (*time.Time, error) {
	windows, err := l.store.List(ctx, providerID)
	if err != nil {
		return nil, err
	}
	return NextOpen(windows, now, l.horizon, l.minOpen), nil
}

// DaysUntilAvailable maps each provider to fractional days until its next
// bookable instant. Providers with nothing inside the horizon map to nil.
func (l *Ledger) DaysUntilAvailable(ctx context.Context, providerIDs []string, now time.Time) (map[string]*float64, error) {
	out := make(map[string]*float64, len(providerIDs))
	if len(providerIDs) == 0 {
		return out, nil
	}
	byProvider, err := l.store.ListForProviders(ctx, providerIDs)
	if err != nil {
		return nil, fmt.Errorf("availability: days until available: %w", err)
	}
	for _, id := range providerIDs {
		next := NextOpen(byProvider[id], now, l.horizon, l.minOpen)
		if next == nil {
			out[id] = nil
			continue
		}
		days := next.Sub(now).Hours() / 24
		out[id] = &days
	}
	return out, nil
}
