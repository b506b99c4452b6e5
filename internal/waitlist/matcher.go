package waitlist

import (
	"context"
	"fmt"
	"sort"
	"strings"
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

var tracer = otel.Tracer("telehealth.internal.waitlist")

// SlotSource lists open slots from the availability ledger.
type SlotSource interface {
	OpenSlots(ctx context.Context, providerID string, from, to time.Time, length time.Duration) ([]availability.Slot, error)
}

type MatcherConfig struct {
	TopN          int
	MinScore      float64
	SlotLength    time.Duration
	ProviderLimit int
	Weights       scoring.Weights
}

func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		TopN:          5,
		MinScore:      60,
		SlotLength:    30 * time.Minute,
		ProviderLimit: 50,
		Weights:       scoring.WaitlistWeights,
	}
}

// Trigger narrows a run. A zero Trigger sweeps every active entry; a freed
// slot sets Specialty and ProviderID.
type Trigger struct {
	Specialty  string `json:"specialty,omitempty"`
	ProviderID string `json:"provider_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// RunResult summarizes one invocation.
type RunResult struct {
	Expired   int         `json:"expired"`
	Evaluated int         `json:"evaluated"`
	Matched   []uuid.UUID `json:"matched"`
}

// Matcher is stateless between runs; every invocation reloads its inputs.
type Matcher struct {
	store     Store
	directory directory.Directory
	slots     SlotSource
	cfg       MatcherConfig
	metrics   *metrics.WaitlistMetrics
	logger    *logging.Logger
	now       func() time.Time
}

type MatcherOption func(*Matcher)

func WithMatcherMetrics(m *metrics.WaitlistMetrics) MatcherOption {
	return func(mt *Matcher) { mt.metrics = m }
}

func WithMatcherClock(now func() time.Time) MatcherOption {
	return func(mt *Matcher) {
		if now != nil {
			mt.now = now
		}
	}
}

func NewMatcher(store Store, dir directory.Directory, slots SlotSource, cfg MatcherConfig, logger *logging.Logger, opts ...MatcherOption) *Matcher {
	if store == nil || dir == nil || slots == nil {
		panic("waitlist: store, directory and slot source required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	def := DefaultMatcherConfig()
	if cfg.TopN <= 0 {
		cfg.TopN = def.TopN
	}
	if cfg.SlotLength <= 0 {
		cfg.SlotLength = def.SlotLength
	}
	if cfg.ProviderLimit <= 0 {
		cfg.ProviderLimit = def.ProviderLimit
	}
	if cfg.Weights == (scoring.Weights{}) {
		cfg.Weights = def.Weights
	}
	m := &Matcher{store: store, directory: dir, slots: slots, cfg: cfg, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run expires stale entries and then tries to match every remaining active
// entry in scope. An entry is notified only by the run that moves it from
// active to matched.
func (m *Matcher) Run(ctx context.Context, trig Trigger) (*RunResult, error) {
	ctx, span := tracer.Start(ctx, "waitlist.run")
	defer span.End()
	span.SetAttributes(attribute.String("waitlist.specialty", trig.Specialty), attribute.String("waitlist.reason", trig.Reason))

	now := m.now().UTC()
	res := &RunResult{Matched: []uuid.UUID{}}

	expired, err := m.store.ExpireDue(ctx, now)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	res.Expired = expired
	m.metrics.ObserveTransition(string(StatusExpired), expired)

	entries, err := m.store.ListActive(ctx, trig.Specialty)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	run := &runState{
		providers: make(map[string][]directory.ProviderCandidate),
		slots:     make(map[string][]availability.Slot),
		claimed:   make(map[slotKey]bool),
		until:     now,
	}
	for _, e := range entries {
		if end := waitUntil(e, now); end.After(run.until) {
			run.until = end
		}
	}
	for _, e := range entries {
		res.Evaluated++
		matches, err := m.rank(ctx, run, e, trig, now)
		if err != nil {
			span.RecordError(err)
			return res, err
		}
		if len(matches) == 0 || matches[0].Score < m.cfg.MinScore {
			continue
		}
		ok, queued, err := m.store.MarkMatched(ctx, MatchUpdate{
			EntryID:   e.ID,
			Matches:   matches,
			Score:     matches[0].Score,
			MatchedAt: now,
			Message:   notification(e, matches[0], now),
		})
		if err != nil {
			span.RecordError(err)
			return res, err
		}
		if !ok {
			continue
		}
		run.claim(matches[0])
		res.Matched = append(res.Matched, e.ID)
		m.logger.Info("waitlist entry matched", "entry_id", e.ID, "provider_id", matches[0].ProviderID,
			"match_score", matches[0].Score, "notifications", len(queued))
	}
	m.metrics.ObserveTransition(string(StatusMatched), len(res.Matched))
	m.logger.Info("waitlist run complete", "reason", trig.Reason, "expired", res.Expired,
		"evaluated", res.Evaluated, "matched", len(res.Matched))
	return res, nil
}

// runState caches directory and ledger reads for one run. Slots are read
// once per provider up to the longest wait in scope. A slot offered as the
// best match to one entry is claimed and not offered to later entries in
// the same run.
type runState struct {
	providers map[string][]directory.ProviderCandidate
	slots     map[string][]availability.Slot
	claimed   map[slotKey]bool
	until     time.Time
}

type slotKey struct {
	providerID string
	start      int64
}

func (r *runState) claim(m Match) {
	r.claimed[slotKey{m.ProviderID, m.Start.Unix()}] = true
}

func (r *runState) isClaimed(providerID string, start time.Time) bool {
	return r.claimed[slotKey{providerID, start.Unix()}]
}

type scored struct {
	Match
	rating float64
}

// rank scores every (provider, open slot) pair inside the entry's wait
// window and keeps the best TopN.
func (m *Matcher) rank(ctx context.Context, run *runState, e Entry, trig Trigger, now time.Time) ([]Match, error) {
	providers, err := m.providersFor(ctx, run, e.Specialty)
	if err != nil {
		return nil, err
	}
	end := waitUntil(e, now)

	var pairs []scored
	for _, p := range providers {
		if trig.ProviderID != "" && p.ID != trig.ProviderID {
			continue
		}
		slots, err := m.slotsFor(ctx, run, p.ID, now)
		if err != nil {
			m.logger.Warn("waitlist: ledger read failed, skipping provider", "provider_id", p.ID, "error", err)
			continue
		}
		for _, slot := range slots {
			if slot.Start.Before(now) || slot.Start.After(end) || run.isClaimed(p.ID, slot.Start) {
				continue
			}
			days := slot.Start.Sub(now).Hours() / 24
			score := scoring.Score(scoring.Factors{
				CandidateID:         p.ID,
				SpecialtyMatch:      p.HasSpecialty(e.Specialty),
				Rating:              p.Rating,
				LanguageRequested:   e.Language != "",
				LanguageMatch:       e.Language != "" && p.SpeaksLanguage(e.Language),
				DaysUntilAvailable:  &days,
				PreferenceRequested: len(e.PreferredTimes) > 0,
				PreferenceMatch:     e.prefers(slot.Start),
				Urgent:              e.Urgent(),
			}, m.cfg.Weights)
			pairs = append(pairs, scored{
				Match:  Match{ProviderID: p.ID, Start: slot.Start, End: slot.End, Location: slot.Location, Score: score.Score},
				rating: p.Rating,
			})
		}
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		a, b := pairs[i], pairs[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.rating != b.rating {
			return a.rating > b.rating
		}
		return a.ProviderID < b.ProviderID
	})
	if len(pairs) > m.cfg.TopN {
		pairs = pairs[:m.cfg.TopN]
	}
	out := make([]Match, len(pairs))
	for i, p := range pairs {
		out[i] = p.Match
	}
	return out, nil
}

func (m *Matcher) providersFor(ctx context.Context, run *runState, specialty string) ([]directory.ProviderCandidate, error) {
	key := strings.ToLower(specialty)
	if list, ok := run.providers[key]; ok {
		return list, nil
	}
	list, err := m.directory.Find(ctx, directory.Query{
		Specialty:     specialty,
		VerifiedOnly:  true,
		AcceptingOnly: true,
		Limit:         m.cfg.ProviderLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("waitlist: load providers: %w", err)
	}
	run.providers[key] = list
	return list, nil
}

func (m *Matcher) slotsFor(ctx context.Context, run *runState, providerID string, from time.Time) ([]availability.Slot, error) {
	if cached, ok := run.slots[providerID]; ok {
		return cached, nil
	}
	slots, err := m.slots.OpenSlots(ctx, providerID, from, run.until, m.cfg.SlotLength)
	if err != nil {
		return nil, err
	}
	run.slots[providerID] = slots
	return slots, nil
}

// waitUntil is the latest slot start the entry will accept.
func waitUntil(e Entry, now time.Time) time.Time {
	end := now.AddDate(0, 0, e.MaxWaitDays)
	if e.ExpiresAt.Before(end) {
		end = e.ExpiresAt
	}
	return end
}

func notification(e Entry, best Match, now time.Time) events.Message {
	loc, err := e.location()
	if err != nil {
		loc = time.UTC
	}
	when := best.Start.In(loc).Format("Mon Jan 2 15:04 MST")
	return events.Message{
		Type: events.TypeNotificationRequested,
		Key:  e.ID.String(),
		Payload: events.NotificationRequestedV1{
			EventID: uuid.NewString(),
			UserID:  e.PatientID,
			Message: fmt.Sprintf("A %s appointment is available on %s.", e.Specialty, when),
			Metadata: map[string]any{
				"waitlist_entry_id": e.ID.String(),
				"provider_id":       best.ProviderID,
				"slot_start":        best.Start.Format(time.RFC3339),
				"match_score":       best.Score,
			},
			RequestedAt: now,
		},
	}
}
