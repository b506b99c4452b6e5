package shifts

import "fmt"

// Assignment lifecycle:
//
//	pending ──► auto_approved ──► confirmed ──► completed
//	   │               │              │
//	   └───────────────┴──────────────┴──► cancelled
//
// A pending application may also be confirmed directly. completed and
// cancelled are terminal.
var validTransitions = map[AssignmentStatus][]AssignmentStatus{
	StatusPending:      {StatusAutoApproved, StatusConfirmed, StatusCancelled},
	StatusAutoApproved: {StatusConfirmed, StatusCancelled},
	StatusConfirmed:    {StatusCompleted, StatusCancelled},
}

// ParseAssignmentStatus converts a raw string, rejecting unknown values.
func ParseAssignmentStatus(s string) (AssignmentStatus, error) {
	st := AssignmentStatus(s)
	switch st {
	case StatusPending, StatusAutoApproved, StatusConfirmed, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("shifts: unknown assignment status %q", s)
}

// IsTransitionAllowed reports whether from → to is permitted.
func IsTransitionAllowed(from, to AssignmentStatus) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsOpenApplication is true for applications still awaiting a decision.
func IsOpenApplication(s AssignmentStatus) bool {
	return s == StatusPending || s == StatusAutoApproved
}
