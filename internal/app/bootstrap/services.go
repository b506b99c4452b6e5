package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/telehealth-coordination/internal/availability"
	"github.com/wolfman30/telehealth-coordination/internal/calendar"
	appconfig "github.com/wolfman30/telehealth-coordination/internal/config"
	"github.com/wolfman30/telehealth-coordination/internal/directory"
	"github.com/wolfman30/telehealth-coordination/internal/events"
	"github.com/wolfman30/telehealth-coordination/internal/notify"
	"github.com/wolfman30/telehealth-coordination/internal/observability/metrics"
	"github.com/wolfman30/telehealth-coordination/internal/scoring"
	"github.com/wolfman30/telehealth-coordination/internal/search"
	"github.com/wolfman30/telehealth-coordination/internal/shifts"
	"github.com/wolfman30/telehealth-coordination/internal/waitlist"
	"github.com/wolfman30/telehealth-coordination/pkg/logging"
)

// SQSSender is the subset of *sqs.Client the outbox handlers need.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// ProviderDirectory is both the search and the single-provider read API.
type ProviderDirectory interface {
	directory.Directory
	directory.Lookup
}

// Infra carries the connections a binary opened. Nil fields select the
// in-memory or log-only fallback for that concern.
type Infra struct {
	Pool        *pgxpool.Pool
	DirectoryDB *sql.DB
	Redis       *redis.Client
	SQS         SQSSender
	Registerer  prometheus.Registerer

	// Directory and Calendar override the defaults, mainly for tests.
	Directory ProviderDirectory
	Calendar  calendar.EventsAPI
	Tokens    calendar.TokenProvider
}

// Services is the wired object graph shared by the binaries.
type Services struct {
	Directory ProviderDirectory
	Ledger    *availability.Ledger
	Search    *search.Service
	Shifts    *shifts.Synchronizer
	Waitlist  *waitlist.Service
	Matcher   *waitlist.Matcher
	Mirror    *calendar.Mirror
	Events    *events.Router
	Deliverer *events.Deliverer

	// InMemory is true when no database pool was supplied. The outbox then
	// lives in process and the API must drain it itself.
	InMemory bool
}

// Build wires every service from cfg and infra.
func Build(cfg *appconfig.Config, infra Infra, logger *logging.Logger) (*Services, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	reg := infra.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	dir := infra.Directory
	switch {
	case dir != nil:
	case infra.DirectoryDB != nil:
		dir = directory.NewSQLDirectory(infra.DirectoryDB)
	default:
		logger.Warn("no directory database configured, using empty in-memory directory")
		dir = directory.NewInMemoryDirectory()
	}

	var (
		outbox     events.Source
		ledgerRepo availability.Store
		shiftRepo  shifts.Repository
		waitStore  waitlist.Store
		tokens     calendar.TokenProvider
	)
	if infra.Pool != nil {
		store := events.NewOutboxStore(infra.Pool)
		ledgerStore := availability.NewPostgresStore(infra.Pool)
		outbox = store
		ledgerRepo = ledgerStore
		shiftRepo = shifts.NewPostgresRepository(infra.Pool, ledgerStore, store)
		waitStore = waitlist.NewPostgresStore(infra.Pool, store)
		tokens = calendar.NewPostgresTokenStore(infra.Pool)
	} else {
		mem := events.NewMemoryOutbox()
		ledgerStore := availability.NewMemoryStore()
		outbox = mem
		ledgerRepo = ledgerStore
		shiftRepo = shifts.NewMemoryRepository(ledgerStore, mem)
		waitStore = waitlist.NewMemoryStore(mem)
		tokens = calendar.NewMemoryTokenStore()
	}
	if infra.Tokens != nil {
		tokens = infra.Tokens
	}

	horizon := time.Duration(cfg.SearchAvailabilityHorizonDays) * 24 * time.Hour
	ledger := availability.NewLedger(ledgerRepo, logger.Component("availability"), availability.WithHorizon(horizon))

	planner := search.NewPlanner(dir, planConfig(cfg), logger.Component("search"))
	searchOpts := []search.Option{
		search.WithAvailability(ledger),
		search.WithMetrics(metrics.NewSearchMetrics(reg)),
	}
	if infra.Redis != nil {
		searchOpts = append(searchOpts, search.WithCache(search.NewRedisCache(infra.Redis, cfg.SearchCacheTTL)))
	}
	searchSvc := search.NewService(planner, logger.Component("search"), searchOpts...)

	api := infra.Calendar
	if api == nil {
		api = calendar.NewGoogleEvents()
	}
	mirror := calendar.NewMirror(api, tokens, logger.Component("calendar")).
		WithAssignments(shifts.NewLiveness(shiftRepo))

	waitMetrics := metrics.NewWaitlistMetrics(reg)
	matcher := waitlist.NewMatcher(waitStore, dir, ledger, matcherConfig(cfg), logger.Component("waitlist"),
		waitlist.WithMatcherMetrics(waitMetrics))
	waitSvc := waitlist.NewService(waitStore, waitMetrics, logger.Component("waitlist"))

	router := eventRouter(cfg, infra.SQS, mirror, matcher, logger)
	deliverer := events.NewDeliverer(outbox, router, logger.Component("outbox")).
		WithBatchSize(int32(cfg.OutboxBatchSize)).
		WithInterval(cfg.OutboxInterval).
		WithMaxAttempts(cfg.OutboxMaxAttempts).
		WithMetrics(metrics.NewOutboxMetrics(reg))

	sync := shifts.NewSynchronizer(shiftRepo, shifts.Config{
		AutoApproveMinScore:  cfg.ShiftAutoApproveMinScore,
		AutoApproveMinRating: cfg.ShiftAutoApproveMinRating,
		Weights:              scoring.ShiftApplicationWeights,
	}, logger.Component("shifts"),
		shifts.WithProviders(dir),
		shifts.WithLedger(ledger),
		shifts.WithInlineDelivery(deliverer),
		shifts.WithMetrics(metrics.NewShiftMetrics(reg)),
	)

	return &Services{
		Directory: dir,
		Ledger:    ledger,
		Search:    searchSvc,
		Shifts:    sync,
		Waitlist:  waitSvc,
		Matcher:   matcher,
		Mirror:    mirror,
		Events:    router,
		Deliverer: deliverer,
		InMemory:  infra.Pool == nil,
	}, nil
}

func planConfig(cfg *appconfig.Config) search.PlannerConfig {
	pc := search.DefaultPlannerConfig()
	if cfg.SearchRatingStep > 0 {
		pc.RatingStep = cfg.SearchRatingStep
	}
	if cfg.SearchRatingFloor > 0 {
		pc.RatingFloor = cfg.SearchRatingFloor
	}
	if cfg.SearchExactLimit > 0 {
		pc.ExactLimit = cfg.SearchExactLimit
	}
	if cfg.SearchMaxRelaxationLimit > 0 {
		pc.MaxRelaxationLimit = cfg.SearchMaxRelaxationLimit
	}
	return pc
}

func matcherConfig(cfg *appconfig.Config) waitlist.MatcherConfig {
	mc := waitlist.DefaultMatcherConfig()
	if cfg.WaitlistTopN > 0 {
		mc.TopN = cfg.WaitlistTopN
	}
	if cfg.WaitlistMinScore > 0 {
		mc.MinScore = cfg.WaitlistMinScore
	}
	if cfg.WaitlistSlotMinutes > 0 {
		mc.SlotLength = time.Duration(cfg.WaitlistSlotMinutes) * time.Minute
	}
	return mc
}

// eventRouter maps every outbox type to its downstream. Without a queue
// the notification dispatcher logs and domain events are dropped after a
// debug line, so entries do not pile up as failures.
func eventRouter(cfg *appconfig.Config, client SQSSender, mirror *calendar.Mirror, matcher *waitlist.Matcher, logger *logging.Logger) *events.Router {
	var dispatcher notify.Dispatcher = notify.NewLogDispatcher(logger.Component("notify"))
	if client != nil && strings.TrimSpace(cfg.NotificationQueueURL) != "" {
		dispatcher = notify.NewSQSDispatcher(client, cfg.NotificationQueueURL)
	}

	var publish events.DeliveryHandler = events.HandlerFunc(func(_ context.Context, entry events.OutboxEntry) error {
		logger.Debug("domain event queue not configured, dropping", "event_id", entry.ID, "type", entry.Type)
		return nil
	})
	if client != nil && strings.TrimSpace(cfg.DomainEventsQueueURL) != "" {
		publish = notify.NewEventPublisher(client, cfg.DomainEventsQueueURL)
	}

	return events.NewRouter().
		Register(events.TypeCalendarMirror, mirror).
		Register(events.TypeNotificationRequested, notify.NewNotificationHandler(dispatcher)).
		Register(events.TypeShiftConfirmed, publish).
		Register(events.TypeShiftCancelled, publish).
		Register(events.TypeSlotFreed, events.Chain(publish, waitlist.NewSlotFreedHandler(matcher)))
}
