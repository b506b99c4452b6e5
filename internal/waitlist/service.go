package waitlist

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/telehealth-coordination/internal/observability/metrics"
	"github.com/wolfman30/telehealth-coordination/pkg/logging"
)

// DefaultMaxWaitDays applies when a request omits max_wait_days.
const DefaultMaxWaitDays = 14

// CreateInput is a patient's request to be queued.
type CreateInput struct {
	PatientID      string          `json:"patient_id"`
	Specialty      string          `json:"specialty"`
	Language       string          `json:"language,omitempty"`
	TimeZone       string          `json:"time_zone,omitempty"`
	PreferredTimes []PreferredTime `json:"preferred_times,omitempty"`
	UrgencyScore   int             `json:"urgency_score"`
	MaxWaitDays    int             `json:"max_wait_days,omitempty"`
}

// Service owns the entry lifecycle outside of matching.
type Service struct {
	store   Store
	metrics *metrics.WaitlistMetrics
	logger  *logging.Logger
	now     func() time.Time
}

func NewService(store Store, m *metrics.WaitlistMetrics, logger *logging.Logger) *Service {
	if store == nil {
		panic("waitlist: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, metrics: m, logger: logger, now: time.Now}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Entry, error) {
	now := s.now().UTC()
	if in.MaxWaitDays == 0 {
		in.MaxWaitDays = DefaultMaxWaitDays
	}
	e := Entry{
		ID:             uuid.New(),
		PatientID:      in.PatientID,
		Specialty:      in.Specialty,
		Language:       in.Language,
		TimeZone:       in.TimeZone,
		PreferredTimes: in.PreferredTimes,
		UrgencyScore:   in.UrgencyScore,
		MaxWaitDays:    in.MaxWaitDays,
		Status:         StatusActive,
		ExpiresAt:      now.AddDate(0, 0, in.MaxWaitDays),
		CreatedAt:      now,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, e); err != nil {
		return nil, err
	}
	s.metrics.ObserveTransition(string(StatusActive), 1)
	s.logger.Info("waitlist entry created", "entry_id", e.ID, "specialty", e.Specialty, "expires_at", e.ExpiresAt)
	return &e, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.store.Get(ctx, id)
}

// Fulfill removes an entry once the patient has booked.
func (s *Service) Fulfill(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("waitlist entry fulfilled", "entry_id", id)
	return nil
}

// Reactivate returns a matched entry to the queue so a later run may match
// and notify it again.
func (s *Service) Reactivate(ctx context.Context, id uuid.UUID) (*Entry, error) {
	e, err := s.store.Reactivate(ctx, id, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveTransition(string(StatusActive), 1)
	s.logger.Info("waitlist entry reactivated", "entry_id", id)
	return e, nil
}
