package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/telehealth-coordination/internal/observability/metrics"
	"github.com/wolfman30/telehealth-coordination/pkg/logging"
)

// DeliveryHandler emits events to downstream transports.
type DeliveryHandler interface {
	Handle(ctx context.Context, entry OutboxEntry) error
}

// HandlerFunc adapts a function to DeliveryHandler.
type HandlerFunc func(ctx context.Context, entry OutboxEntry) error

func (f HandlerFunc) Handle(ctx context.Context, entry OutboxEntry) error { return f(ctx, entry) }

// Chain runs handlers in order and stops at the first error. Handlers must
// tolerate redelivery since an earlier one may already have succeeded.
func Chain(handlers ...DeliveryHandler) DeliveryHandler {
	return HandlerFunc(func(ctx context.Context, entry OutboxEntry) error {
		for _, h := range handlers {
			if h == nil {
				continue
			}
			if err := h.Handle(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// Source is the outbox surface the deliverer drains. Both OutboxStore and
// MemoryOutbox satisfy it.
type Source interface {
	FetchPending(ctx context.Context, limit int32, maxAttempts int) ([]OutboxEntry, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// Router dispatches entries to a handler registered for their type.
type Router struct {
	handlers map[string]DeliveryHandler
	fallback DeliveryHandler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[string]DeliveryHandler)}
}

func (r *Router) Register(eventType string, h DeliveryHandler) *Router {
	if h != nil {
		r.handlers[eventType] = h
	}
	return r
}

// WithFallback sets the handler used for types with no registration.
func (r *Router) WithFallback(h DeliveryHandler) *Router {
	r.fallback = h
	return r
}

func (r *Router) Handle(ctx context.Context, entry OutboxEntry) error {
	if h, ok := r.handlers[entry.Type]; ok {
		return h.Handle(ctx, entry)
	}
	if r.fallback != nil {
		return r.fallback.Handle(ctx, entry)
	}
	return fmt.Errorf("%w: %s", ErrNoHandler, entry.Type)
}

// Deliverer polls the outbox and invokes the handler.
type Deliverer struct {
	store       Source
	handler     DeliveryHandler
	logger      *logging.Logger
	metrics     *metrics.OutboxMetrics
	batchSize   int32
	maxAttempts int
	interval    time.Duration
}

func NewDeliverer(store Source, handler DeliveryHandler, logger *logging.Logger) *Deliverer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Deliverer{
		store:       store,
		handler:     handler,
		logger:      logger,
		batchSize:   25,
		maxAttempts: 8,
		interval:    2 * time.Second,
	}
}

func (d *Deliverer) WithBatchSize(size int32) *Deliverer {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

func (d *Deliverer) WithInterval(interval time.Duration) *Deliverer {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

func (d *Deliverer) WithMaxAttempts(n int) *Deliverer {
	if n > 0 {
		d.maxAttempts = n
	}
	return d
}

func (d *Deliverer) WithMetrics(m *metrics.OutboxMetrics) *Deliverer {
	d.metrics = m
	return d
}

func (d *Deliverer) Start(ctx context.Context) {
	if d.store == nil || d.handler == nil {
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Drain(ctx)
		}
	}
}

// Drain delivers one batch of pending entries and returns how many succeeded.
func (d *Deliverer) Drain(ctx context.Context) int {
	entries, err := d.store.FetchPending(ctx, d.batchSize, d.maxAttempts)
	if err != nil {
		d.logger.Error("outbox fetch failed", "error", err)
		return 0
	}
	delivered := 0
	for _, entry := range entries {
		if err := d.Deliver(ctx, entry); err == nil {
			delivered++
		}
	}
	return delivered
}

// Deliver hands a single entry to the handler and records the outcome.
// A failed entry stays pending until maxAttempts is reached.
func (d *Deliverer) Deliver(ctx context.Context, entry OutboxEntry) error {
	if err := d.handler.Handle(ctx, entry); err != nil {
		d.metrics.ObserveDelivery(entry.Type, false)
		d.logger.Warn("outbox delivery failed", "error", err, "event_id", entry.ID, "type", entry.Type, "attempts", entry.Attempts+1)
		if markErr := d.store.MarkFailed(ctx, entry.ID, err.Error()); markErr != nil {
			d.logger.Error("failed to record outbox failure", "error", markErr, "event_id", entry.ID)
		}
		return err
	}
	d.metrics.ObserveDelivery(entry.Type, true)
	if ok, err := d.store.MarkDelivered(ctx, entry.ID); err != nil {
		d.logger.Error("failed to mark outbox delivered", "error", err, "event_id", entry.ID)
	} else if ok {
		d.logger.Debug("outbox delivered", "event_id", entry.ID, "type", entry.Type)
	}
	return nil
}
