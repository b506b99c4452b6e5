package shifts

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Liveness reports whether an assignment still holds its shift. The calendar
// mirror consults it so a create retried after a cancel is dropped.
type Liveness struct {
	repo Repository
}

func NewLiveness(repo Repository) *Liveness {
	if repo == nil {
		panic("shifts: repository required")
	}
	return &Liveness{repo: repo}
}

// AssignmentLive is true for confirmed and completed assignments. Unknown ids
// are not live.
func (l *Liveness) AssignmentLive(ctx context.Context, assignmentID string) (bool, error) {
	id, err := uuid.Parse(assignmentID)
	if err != nil {
		return false, nil
	}
	a, err := l.repo.GetAssignment(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return a.Status == StatusConfirmed || a.Status == StatusCompleted, nil
}
