package search

import (
	"context"
	"fmt"
	"math"

	"github.com/wolfman30/telehealth-coordination/internal/directory"
	"github.com/wolfman30/telehealth-coordination/pkg/logging"
)

type Level string

const (
	LevelExact         Level = "exact"
	LevelRelaxedRating Level = "relaxed_rating"
	LevelMaxRelaxation Level = "max_relaxation"
	LevelNone          Level = "none"
)

// Relaxation records one loosened filter. To is nil when the filter was dropped.
type Relaxation struct {
	Field string `json:"field"`
	From  any    `json:"from"`
	To    any    `json:"to"`
}

// Result is the planner outcome for one request.
type Result struct {
	Level             Level                         `json:"constraint_level"`
	Relaxations       []Relaxation                  `json:"relaxations_applied"`
	Candidates        []directory.ProviderCandidate `json:"candidates"`
	WaitlistSuggested bool                          `json:"waitlist_suggested"`
}

type PlannerConfig struct {
	RatingStep         float64
	RatingFloor        float64
	ExactLimit         int
	MaxRelaxationLimit int
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{RatingStep: 0.5, RatingFloor: 3.0, ExactLimit: 50, MaxRelaxationLimit: 10}
}

// transform derives the next query from the previous one. ok is false when
// the transform would leave the query unchanged, in which case the level is skipped.
type transform func(prev directory.Query, cfg PlannerConfig) (next directory.Query, relaxed []Relaxation, ok bool)

type rung struct {
	level Level
	apply transform
}

// ladder is evaluated in order; each rung only loosens the previous query.
var ladder = []rung{
	{LevelRelaxedRating, relaxRating},
	{LevelMaxRelaxation, maxRelaxation},
}

// Planner runs the relaxation ladder against a directory.
type Planner struct {
	dir    directory.Directory
	cfg    PlannerConfig
	logger *logging.Logger
}

func NewPlanner(dir directory.Directory, cfg PlannerConfig, logger *logging.Logger) *Planner {
	if dir == nil {
		panic("search: directory required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	def := DefaultPlannerConfig()
	if cfg.RatingStep <= 0 {
		cfg.RatingStep = def.RatingStep
	}
	if cfg.RatingFloor < 0 {
		cfg.RatingFloor = def.RatingFloor
	}
	if cfg.ExactLimit <= 0 {
		cfg.ExactLimit = def.ExactLimit
	}
	if cfg.MaxRelaxationLimit <= 0 {
		cfg.MaxRelaxationLimit = def.MaxRelaxationLimit
	}
	return &Planner{dir: dir, cfg: cfg, logger: logger}
}

// Search stops at the first level that yields candidates. A missing
// specialty fails before the directory is touched.
func (p *Planner) Search(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req = req.normalized()

	query := req.baseQuery(p.cfg.ExactLimit)
	found, err := p.dir.Find(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search: exact: %w", err)
	}
	if len(found) > 0 {
		return &Result{Level: LevelExact, Relaxations: []Relaxation{}, Candidates: found}, nil
	}

	applied := []Relaxation{}
	for _, r := range ladder {
		next, relaxed, ok := r.apply(query, p.cfg)
		if !ok {
			continue
		}
		query = next
		applied = append(applied, relaxed...)
		found, err = p.dir.Find(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("search: %s: %w", r.level, err)
		}
		if len(found) > 0 {
			p.logger.Debug("search relaxed", "specialty", req.Specialty, "level", r.level, "relaxations", len(applied))
			return &Result{Level: r.level, Relaxations: applied, Candidates: found}, nil
		}
	}
	return &Result{
		Level:             LevelNone,
		Relaxations:       applied,
		Candidates:        []directory.ProviderCandidate{},
		WaitlistSuggested: true,
	}, nil
}

func relaxRating(prev directory.Query, cfg PlannerConfig) (directory.Query, []Relaxation, bool) {
	if prev.MinRating == nil || *prev.MinRating <= cfg.RatingFloor {
		return prev, nil, false
	}
	from := *prev.MinRating
	to := math.Max(cfg.RatingFloor, roundRating(from-cfg.RatingStep))
	if to >= from {
		return prev, nil, false
	}
	next := prev
	next.MinRating = &to
	return next, []Relaxation{{Field: "minRating", From: from, To: to}}, true
}

func maxRelaxation(prev directory.Query, cfg PlannerConfig) (directory.Query, []Relaxation, bool) {
	var relaxed []Relaxation
	drop := func(field string, from any, present bool) {
		if present {
			relaxed = append(relaxed, Relaxation{Field: field, From: from, To: nil})
		}
	}
	drop("minRating", deref(prev.MinRating), prev.MinRating != nil)
	drop("language", prev.Language, prev.Language != "")
	drop("acceptsInsurance", derefBool(prev.AcceptsInsurance), prev.AcceptsInsurance != nil)
	drop("condition", prev.Condition, prev.Condition != "")
	drop("timeZone", prev.TimeZone, prev.TimeZone != "")
	drop("consultationType", prev.ConsultationType, prev.ConsultationType != "")
	drop("minFee", deref(prev.MinFee), prev.MinFee != nil)
	drop("maxFee", deref(prev.MaxFee), prev.MaxFee != nil)
	if len(relaxed) == 0 {
		return prev, nil, false
	}
	next := directory.Query{
		Specialty:     prev.Specialty,
		VerifiedOnly:  true,
		AcceptingOnly: true,
		Limit:         cfg.MaxRelaxationLimit,
	}
	return next, relaxed, true
}

func roundRating(v float64) float64 {
	return math.Round(v*100) / 100
}

func deref(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func derefBool(v *bool) any {
	if v == nil {
		return nil
	}
	return *v
}
