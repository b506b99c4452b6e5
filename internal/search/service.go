package search

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/telehealth-coordination/internal/directory"
	"github.com/wolfman30/telehealth-coordination/internal/observability/metrics"
	"github.com/wolfman30/telehealth-coordination/internal/scoring"
	"github.com/wolfman30/telehealth-coordination/pkg/logging"
)

var tracer = otel.Tracer("telehealth.internal.search")

// AvailabilityReader reports days until each provider's next open slot.
type AvailabilityReader interface {
	DaysUntilAvailable(ctx context.Context, providerIDs []string, now time.Time) (map[string]*float64, error)
}

// Response is the search endpoint payload.
type Response struct {
	Success            bool                          `json:"success"`
	Specialists        []directory.ProviderCandidate `json:"specialists"`
	Scores             []scoring.MatchScore          `json:"scores"`
	ConstraintLevel    Level                         `json:"constraint_level"`
	RelaxationsApplied []Relaxation                  `json:"relaxations_applied"`
	Message            string                        `json:"message,omitempty"`
	TotalCount         int                           `json:"total_count"`
	WaitlistSuggested  bool                          `json:"waitlist_suggested,omitempty"`
	Cached             bool                          `json:"cached"`
}

// Service ranks planner results and caches responses.
type Service struct {
	planner      *Planner
	availability AvailabilityReader
	cache        Cache
	weights      scoring.Weights
	metrics      *metrics.SearchMetrics
	logger       *logging.Logger
	now          func() time.Time
}

type Option func(*Service)

func WithCache(c Cache) Option { return func(s *Service) { s.cache = c } }

func WithAvailability(a AvailabilityReader) Option { return func(s *Service) { s.availability = a } }

func WithMetrics(m *metrics.SearchMetrics) Option { return func(s *Service) { s.metrics = m } }

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithWeights(w scoring.Weights) Option { return func(s *Service) { s.weights = w } }

func NewService(planner *Planner, logger *logging.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{planner: planner, logger: logger, weights: scoring.SearchWeights, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Search(ctx context.Context, req Request) (*Response, error) {
	ctx, span := tracer.Start(ctx, "search.specialists")
	defer span.End()
	span.SetAttributes(attribute.String("search.specialty", req.Specialty))

	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := s.now()

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, req, now)
		if err != nil {
			s.logger.Warn("search cache read failed", "error", err)
		}
		s.metrics.ObserveCache(ok)
		if ok {
			cached.Cached = true
			span.SetAttributes(attribute.Bool("search.cached", true))
			return cached, nil
		}
	}

	start := time.Now()
	result, err := s.planner.Search(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("search.level", string(result.Level)))

	resp := s.rank(ctx, req.normalized(), result, now)
	s.metrics.ObserveSearch(string(result.Level), time.Since(start).Seconds())

	if s.cache != nil {
		if err := s.cache.Set(ctx, req, resp, now); err != nil {
			s.logger.Warn("search cache write failed", "error", err)
		}
	}
	return resp, nil
}

func (s *Service) rank(ctx context.Context, req Request, result *Result, now time.Time) *Response {
	days := map[string]*float64{}
	if s.availability != nil && len(result.Candidates) > 0 {
		ids := make([]string, len(result.Candidates))
		for i, c := range result.Candidates {
			ids[i] = c.ID
		}
		d, err := s.availability.DaysUntilAvailable(ctx, ids, now)
		if err != nil {
			s.logger.Warn("availability lookup failed, ranking without it", "error", err)
		} else {
			days = d
		}
	}

	byID := make(map[string]directory.ProviderCandidate, len(result.Candidates))
	ranked := make([]scoring.Ranked, 0, len(result.Candidates))
	for _, c := range result.Candidates {
		byID[c.ID] = c
		score := scoring.Score(scoring.Factors{
			CandidateID:        c.ID,
			SpecialtyMatch:     c.HasSpecialty(req.Specialty),
			Rating:             c.Rating,
			LanguageRequested:  req.Language != "",
			LanguageMatch:      req.Language != "" && c.SpeaksLanguage(req.Language),
			DaysUntilAvailable: days[c.ID],
			Urgent:             req.Urgent,
		}, s.weights)
		ranked = append(ranked, scoring.Ranked{MatchScore: score, Rating: c.Rating, DaysUntilAvailable: days[c.ID]})
	}
	scoring.Rank(ranked)

	resp := &Response{
		Success:            true,
		Specialists:        make([]directory.ProviderCandidate, 0, len(ranked)),
		Scores:             make([]scoring.MatchScore, 0, len(ranked)),
		ConstraintLevel:    result.Level,
		RelaxationsApplied: result.Relaxations,
		Message:            levelMessage(result),
		TotalCount:         len(ranked),
		WaitlistSuggested:  result.WaitlistSuggested,
	}
	for _, r := range ranked {
		resp.Specialists = append(resp.Specialists, byID[r.CandidateID])
		resp.Scores = append(resp.Scores, r.MatchScore)
	}
	return resp
}

func levelMessage(r *Result) string {
	switch r.Level {
	case LevelRelaxedRating:
		for _, rel := range r.Relaxations {
			if rel.Field == "minRating" {
				return fmt.Sprintf("No exact matches found. Showing specialists rated %v or higher instead of %v.", rel.To, rel.From)
			}
		}
		return "No exact matches found. Showing specialists with a lower minimum rating."
	case LevelMaxRelaxation:
		return "No close matches found. Showing the nearest available specialists with optional filters removed."
	case LevelNone:
		return "No specialists are available right now. Join the waitlist to be notified when one opens up."
	default:
		return ""
	}
}
