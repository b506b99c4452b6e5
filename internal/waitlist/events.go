package waitlist

import (
	"context"

	"github.com/wolfman30/telehealth-coordination/internal/events"
)

// SlotFreedHandler runs the matcher for the freed provider's specialties
// when a slot.freed.v1 entry is delivered.
type SlotFreedHandler struct {
	matcher *Matcher
}

func NewSlotFreedHandler(m *Matcher) *SlotFreedHandler {
	return &SlotFreedHandler{matcher: m}
}

func (h *SlotFreedHandler) Handle(ctx context.Context, entry events.OutboxEntry) error {
	var msg events.SlotFreedV1
	if err := entry.Decode(&msg); err != nil {
		return err
	}
	specialties := msg.Specialties
	if len(specialties) == 0 {
		specialties = []string{""}
	}
	for _, sp := range specialties {
		if _, err := h.matcher.Run(ctx, Trigger{Specialty: sp, ProviderID: msg.ProviderID, Reason: "slot_freed"}); err != nil {
			return err
		}
	}
	return nil
}
