package shifts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/telehealth-coordination/internal/availability"
	"github.com/wolfman30/telehealth-coordination/internal/directory"
	"github.com/wolfman30/telehealth-coordination/internal/events"
	"github.com/wolfman30/telehealth-coordination/internal/observability/metrics"
	"github.com/wolfman30/telehealth-coordination/internal/scoring"
	"github.com/wolfman30/telehealth-coordination/pkg/logging"
)

var tracer = otel.Tracer("telehealth.internal.shifts")

// Action is a specialist-initiated shift action.
type Action string

const (
	ActionAccept Action = "accept"
	ActionCancel Action = "cancel"
)

// InlineDeliverer makes one immediate delivery attempt for an outbox entry.
// events.Deliverer satisfies it.
type InlineDeliverer interface {
	Deliver(ctx context.Context, entry events.OutboxEntry) error
}

// WindowLister reads a provider's ledger rows.
type WindowLister interface {
	Windows(ctx context.Context, providerID string) ([]availability.Window, error)
}

type Config struct {
	AutoApproveMinScore  float64
	AutoApproveMinRating float64
	Weights              scoring.Weights
}

func DefaultConfig() Config {
	return Config{AutoApproveMinScore: 80, AutoApproveMinRating: 4.5, Weights: scoring.ShiftApplicationWeights}
}

// TimeRange is a concrete interval reported back to the caller.
type TimeRange struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Location string    `json:"location,omitempty"`
}

// ActionResult is the outcome of accept or cancel.
type ActionResult struct {
	Success           bool       `json:"success"`
	Message           string     `json:"message"`
	AssignmentID      uuid.UUID  `json:"assignment_id"`
	BlockedTime       *TimeRange `json:"blocked_time,omitempty"`
	AvailabilityAdded *TimeRange `json:"availability_added,omitempty"`
	ListingReopened   *bool      `json:"listing_reopened,omitempty"`
	CalendarSynced    *bool      `json:"calendar_synced,omitempty"`
	Warnings          []string   `json:"warnings,omitempty"`
}

// ApplyResult is the outcome of an application.
type ApplyResult struct {
	Assignment   Assignment    `json:"assignment"`
	AutoApproved bool          `json:"auto_approved"`
	Accepted     *ActionResult `json:"accepted,omitempty"`
}

// Synchronizer owns the shift state machine.
type Synchronizer struct {
	repo      Repository
	providers directory.Lookup
	ledger    WindowLister
	mirror    InlineDeliverer
	cfg       Config
	metrics   *metrics.ShiftMetrics
	logger    *logging.Logger
	now       func() time.Time
}

type Option func(*Synchronizer)

func WithProviders(p directory.Lookup) Option { return func(s *Synchronizer) { s.providers = p } }

func WithLedger(l WindowLister) Option { return func(s *Synchronizer) { s.ledger = l } }

func WithInlineDelivery(d InlineDeliverer) Option { return func(s *Synchronizer) { s.mirror = d } }

func WithMetrics(m *metrics.ShiftMetrics) Option { return func(s *Synchronizer) { s.metrics = m } }

func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSynchronizer(repo Repository, cfg Config, logger *logging.Logger, opts ...Option) *Synchronizer {
	if repo == nil {
		panic("shifts: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Weights == (scoring.Weights{}) {
		cfg.Weights = scoring.ShiftApplicationWeights
	}
	s := &Synchronizer{repo: repo, cfg: cfg, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateListing posts a new open shift.
func (s *Synchronizer) CreateListing(ctx context.Context, l Listing) (*Listing, error) {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	l.Status = ListingOpen
	l.FilledAssignmentID = nil
	l.CreatedAt = s.now().UTC()
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.CreateListing(ctx, l); err != nil {
		return nil, err
	}
	s.logger.Info("shift listing created", "listing_id", l.ID, "clinic_id", l.ClinicID, "specialty", l.Specialty)
	return &l, nil
}

// Perform dispatches accept or cancel.
func (s *Synchronizer) Perform(ctx context.Context, listingID uuid.UUID, specialistID string, action Action) (*ActionResult, error) {
	switch action {
	case ActionAccept:
		return s.Accept(ctx, listingID, specialistID)
	case ActionCancel:
		return s.Cancel(ctx, listingID, specialistID)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
}

// Accept fills an open listing for the specialist. The listing status
// compare-and-swap decides races: exactly one concurrent caller wins and
// every other caller gets ErrListingUnavailable with nothing written.
func (s *Synchronizer) Accept(ctx context.Context, listingID uuid.UUID, specialistID string) (*ActionResult, error) {
	ctx, span := tracer.Start(ctx, "shifts.accept")
	defer span.End()
	span.SetAttributes(attribute.String("shift.listing_id", listingID.String()), attribute.String("shift.specialist_id", specialistID))

	res, err := s.accept(ctx, listingID, specialistID, nil)
	s.observe(string(ActionAccept), err)
	if err != nil {
		span.RecordError(err)
	}
	return res, err
}

func (s *Synchronizer) accept(ctx context.Context, listingID uuid.UUID, specialistID string, existing *Assignment) (*ActionResult, error) {
	if specialistID == "" {
		return nil, fmt.Errorf("%w: specialist id required", ErrInvalidAction)
	}
	listing, err := s.repo.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != ListingOpen {
		return nil, ErrListingUnavailable
	}
	start, end, err := listing.Window()
	if err != nil {
		return nil, err
	}

	if existing == nil {
		found, err := s.repo.FindAssignment(ctx, listingID, specialistID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if found != nil && IsOpenApplication(found.Status) {
			existing = found
		}
	}

	now := s.now().UTC()
	assignment := Assignment{
		ID:           uuid.New(),
		ListingID:    listing.ID,
		SpecialistID: specialistID,
		CreatedAt:    now,
	}
	if existing != nil {
		if !IsTransitionAllowed(existing.Status, StatusConfirmed) {
			return nil, ErrInvalidTransition
		}
		assignment = *existing
	}
	assignment.Status = StatusConfirmed
	assignment.ConfirmedAt = &now

	windows := shiftWindows(*listing, assignment.ID, specialistID, now)
	in := ConfirmInput{
		Listing:    *listing,
		Assignment: assignment,
		Existing:   existing != nil,
		ShiftStart: start,
		ShiftEnd:   end,
		Windows:    windows,
		Messages: []events.Message{
			{Type: events.TypeShiftConfirmed, Key: assignment.ID.String(), Payload: events.ShiftConfirmedV1{
				EventID:      uuid.NewString(),
				ListingID:    listing.ID.String(),
				AssignmentID: assignment.ID.String(),
				SpecialistID: specialistID,
				ClinicID:     listing.ClinicID,
				StartsAt:     start,
				EndsAt:       end,
				AutoApproved: existing != nil && existing.Status == StatusAutoApproved,
				ConfirmedAt:  now,
			}},
			{Type: events.TypeCalendarMirror, Key: assignment.ID.String(), Payload: events.CalendarMirrorV1{
				EventID:      uuid.NewString(),
				Action:       events.MirrorCreate,
				AssignmentID: assignment.ID.String(),
				ProviderID:   specialistID,
				Summary:      fmt.Sprintf("%s shift", listing.Specialty),
				Location:     listing.Location,
				StartsAt:     start,
				EndsAt:       end,
				TimeZone:     listing.TimeZone,
			}},
		},
	}

	confirmed, entries, err := s.repo.Confirm(ctx, in)
	if err != nil {
		return nil, err
	}
	s.logger.Info("shift accepted", "listing_id", listing.ID, "assignment_id", confirmed.ID, "specialist_id", specialistID)

	result := &ActionResult{
		Success:      true,
		Message:      "Shift accepted. Your availability has been blocked for this time.",
		AssignmentID: confirmed.ID,
		BlockedTime:  &TimeRange{Start: start, End: end},
	}
	if listing.BookableDuringShift {
		result.AvailabilityAdded = &TimeRange{Start: start, End: end, Location: listing.Location}
	}
	s.mirrorInline(ctx, entries, result)
	return result, nil
}

// Cancel reverts a confirmed assignment. Only ledger rows tagged with the
// assignment are removed and the listing reopens only if it still points
// at this assignment.
func (s *Synchronizer) Cancel(ctx context.Context, listingID uuid.UUID, specialistID string) (*ActionResult, error) {
	ctx, span := tracer.Start(ctx, "shifts.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("shift.listing_id", listingID.String()), attribute.String("shift.specialist_id", specialistID))

	res, err := s.cancel(ctx, listingID, specialistID)
	s.observe(string(ActionCancel), err)
	if err != nil {
		span.RecordError(err)
	}
	return res, err
}

func (s *Synchronizer) cancel(ctx context.Context, listingID uuid.UUID, specialistID string) (*ActionResult, error) {
	if specialistID == "" {
		return nil, fmt.Errorf("%w: specialist id required", ErrInvalidAction)
	}
	listing, err := s.repo.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	start, end, err := listing.Window()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()

	outcome, entries, err := s.repo.Cancel(ctx, CancelInput{
		ListingID:    listingID,
		SpecialistID: specialistID,
		CancelledAt:  now,
		Messages: func(a Assignment, reopened bool) []events.Message {
			key := a.ID.String()
			return []events.Message{
				{Type: events.TypeShiftCancelled, Key: key, Payload: events.ShiftCancelledV1{
					EventID:         uuid.NewString(),
					ListingID:       listingID.String(),
					AssignmentID:    key,
					SpecialistID:    specialistID,
					ListingReopened: reopened,
					CancelledAt:     now,
				}},
				{Type: events.TypeCalendarMirror, Key: key, Payload: events.CalendarMirrorV1{
					EventID:      uuid.NewString(),
					Action:       events.MirrorDelete,
					AssignmentID: key,
					ProviderID:   specialistID,
					StartsAt:     start,
					EndsAt:       end,
					TimeZone:     listing.TimeZone,
				}},
				{Type: events.TypeSlotFreed, Key: key, Payload: events.SlotFreedV1{
					EventID:     uuid.NewString(),
					ProviderID:  specialistID,
					Specialties: []string{listing.Specialty},
					StartsAt:    start,
					EndsAt:      end,
					FreedAt:     now,
				}},
			}
		},
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("shift cancelled", "listing_id", listingID, "assignment_id", outcome.Assignment.ID,
		"specialist_id", specialistID, "reopened", outcome.Reopened, "windows_removed", outcome.WindowsRemoved)

	reopened := outcome.Reopened
	result := &ActionResult{
		Success:         true,
		Message:         "Shift cancelled. Your availability has been restored.",
		AssignmentID:    outcome.Assignment.ID,
		ListingReopened: &reopened,
	}
	s.mirrorInline(ctx, entries, result)
	return result, nil
}

// Apply records an application. Listings marked auto_accept confirm the
// applicant immediately when their score and rating clear the thresholds.
func (s *Synchronizer) Apply(ctx context.Context, listingID uuid.UUID, specialistID string) (*ApplyResult, error) {
	ctx, span := tracer.Start(ctx, "shifts.apply")
	defer span.End()

	res, err := s.apply(ctx, listingID, specialistID)
	s.observe("apply", err)
	if err != nil {
		span.RecordError(err)
	}
	return res, err
}

func (s *Synchronizer) apply(ctx context.Context, listingID uuid.UUID, specialistID string) (*ApplyResult, error) {
	if specialistID == "" {
		return nil, fmt.Errorf("%w: specialist id required", ErrInvalidAction)
	}
	if s.providers == nil {
		return nil, fmt.Errorf("shifts: apply: provider lookup not configured")
	}
	listing, err := s.repo.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != ListingOpen {
		return nil, ErrListingUnavailable
	}
	start, end, err := listing.Window()
	if err != nil {
		return nil, err
	}
	candidate, err := s.providers.Get(ctx, specialistID)
	if err != nil {
		return nil, fmt.Errorf("shifts: apply: load specialist: %w", err)
	}
	if candidate == nil {
		return nil, fmt.Errorf("%w: specialist %s", ErrNotFound, specialistID)
	}

	// A specialist already committed elsewhere cannot take this shift.
	if s.ledger != nil {
		windows, err := s.ledger.Windows(ctx, specialistID)
		if err != nil {
			return nil, fmt.Errorf("shifts: apply: read ledger: %w", err)
		}
		if overlapsShiftBlock(windows, start, end) {
			return nil, ErrDoubleBooked
		}
	}
	free := 0.0

	score := scoring.Score(scoring.Factors{
		CandidateID:        specialistID,
		SpecialtyMatch:     candidate.HasSpecialty(listing.Specialty),
		Rating:             candidate.Rating,
		LanguageRequested:  listing.RequiredLanguage != "",
		LanguageMatch:      listing.RequiredLanguage != "" && candidate.SpeaksLanguage(listing.RequiredLanguage),
		DaysUntilAvailable: &free,
		Urgent:             listing.Urgent,
	}, s.cfg.Weights)

	now := s.now().UTC()
	app := Assignment{
		ID:           uuid.New(),
		ListingID:    listing.ID,
		SpecialistID: specialistID,
		Status:       StatusPending,
		Score:        score.Score,
		CreatedAt:    now,
	}
	auto := listing.AutoAccept && score.Score >= s.cfg.AutoApproveMinScore && candidate.Rating >= s.cfg.AutoApproveMinRating
	if auto {
		app.Status = StatusAutoApproved
	}
	if err := s.repo.CreateApplication(ctx, app); err != nil {
		return nil, err
	}
	s.logger.Info("shift application recorded", "listing_id", listing.ID, "specialist_id", specialistID,
		"score", score.Score, "status", app.Status)

	out := &ApplyResult{Assignment: app, AutoApproved: auto}
	if !auto {
		return out, nil
	}
	accepted, err := s.accept(ctx, listing.ID, specialistID, &app)
	if err != nil {
		return nil, err
	}
	out.Accepted = accepted
	out.Assignment.Status = StatusConfirmed
	out.Assignment.ConfirmedAt = &now
	return out, nil
}

// Applications lists open applications for a listing, best score first.
func (s *Synchronizer) Applications(ctx context.Context, listingID uuid.UUID) ([]Assignment, error) {
	all, err := s.repo.ListAssignments(ctx, listingID)
	if err != nil {
		return nil, err
	}
	out := make([]Assignment, 0, len(all))
	for _, a := range all {
		if IsOpenApplication(a.Status) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].SpecialistID < out[j].SpecialistID
	})
	return out, nil
}

// Complete marks a confirmed assignment as worked.
func (s *Synchronizer) Complete(ctx context.Context, assignmentID uuid.UUID) (*Assignment, error) {
	a, err := s.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if !IsTransitionAllowed(a.Status, StatusCompleted) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, StatusCompleted)
	}
	now := s.now().UTC()
	if err := s.repo.Complete(ctx, assignmentID, now); err != nil {
		s.observe("complete", err)
		return nil, err
	}
	s.observe("complete", nil)
	a.Status = StatusCompleted
	a.CompletedAt = &now
	return a, nil
}

// mirrorInline makes the single best-effort calendar attempt after commit.
// Failures stay in the outbox for the worker and surface as warnings.
func (s *Synchronizer) mirrorInline(ctx context.Context, entries []events.OutboxEntry, result *ActionResult) {
	synced := false
	attempted := false
	for _, e := range entries {
		if e.Type != events.TypeCalendarMirror {
			continue
		}
		if s.mirror == nil {
			break
		}
		attempted = true
		if err := s.mirror.Deliver(ctx, e); err != nil {
			s.logger.Warn("calendar mirror failed, queued for retry", "error", err, "event_id", e.ID)
			break
		}
		synced = true
	}
	if !attempted {
		result.Warnings = append(result.Warnings, "calendar sync queued")
	} else if !synced {
		result.Warnings = append(result.Warnings, "calendar sync failed; it will be retried")
	}
	s.metrics.ObserveMirror(synced)
	result.CalendarSynced = &synced
}

func (s *Synchronizer) observe(action string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrListingUnavailable):
		result = "conflict"
	case errors.Is(err, ErrDoubleBooked):
		result = "double_booked"
	default:
		result = "error"
	}
	s.metrics.ObserveTransition(action, result)
}

// shiftWindows builds the ledger rows written for an assignment: a block
// over the shift and, when bookable, an override at the clinic location.
func shiftWindows(l Listing, assignmentID uuid.UUID, specialistID string, now time.Time) []availability.Window {
	date := l.Date
	asg := assignmentID
	block := availability.Window{
		ID:           uuid.New(),
		ProviderID:   specialistID,
		Kind:         availability.KindBlocked,
		StartDate:    &date,
		EndDate:      &date,
		StartTime:    l.StartTime,
		EndTime:      l.EndTime,
		TimeZone:     l.TimeZone,
		Active:       true,
		Source:       availability.SourceShift,
		AssignmentID: &asg,
		CreatedAt:    now,
	}
	out := []availability.Window{block}
	if l.BookableDuringShift {
		override := block
		override.ID = uuid.New()
		override.Kind = availability.KindAvailable
		override.ShiftOverride = true
		override.LocationOverride = l.Location
		out = append(out, override)
	}
	return out
}
