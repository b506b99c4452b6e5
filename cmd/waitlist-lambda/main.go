package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/telehealth-coordination/cmd/mainconfig"
	"github.com/wolfman30/telehealth-coordination/internal/app/bootstrap"
	appconfig "github.com/wolfman30/telehealth-coordination/internal/config"
	"github.com/wolfman30/telehealth-coordination/internal/waitlist"
	"github.com/wolfman30/telehealth-coordination/pkg/logging"
)

// runner is the part of the matcher the handler needs.
type runner interface {
	Run(ctx context.Context, trig waitlist.Trigger) (*waitlist.RunResult, error)
}

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel).Component("waitlist-lambda")
	if cfg.DatabaseURL == "" {
		logger.Error("waitlist lambda requires DATABASE_URL")
		os.Exit(1)
	}

	ctx := context.Background()
	infra, closeInfra, err := mainconfig.OpenInfra(ctx, cfg, prometheus.NewRegistry(), logger)
	if err != nil {
		logger.Error("failed to connect backends", "error", err)
		os.Exit(1)
	}
	defer closeInfra()

	svc, err := bootstrap.Build(cfg, infra, logger)
	if err != nil {
		logger.Error("failed to wire services", "error", err)
		os.Exit(1)
	}

	lambda.Start(func(ctx context.Context, evt awsevents.CloudWatchEvent) (*waitlist.RunResult, error) {
		return handle(ctx, svc.Matcher, evt, logger)
	})
}

// handle runs one sweep. The rule's detail may narrow it with the same
// fields as the HTTP trigger.
func handle(ctx context.Context, m runner, evt awsevents.CloudWatchEvent, logger *logging.Logger) (*waitlist.RunResult, error) {
	var trig waitlist.Trigger
	if len(evt.Detail) > 0 && string(evt.Detail) != "null" {
		if err := json.Unmarshal(evt.Detail, &trig); err != nil {
			return nil, fmt.Errorf("invalid event detail: %w", err)
		}
	}
	if trig.Reason == "" {
		trig.Reason = "scheduled"
	}

	res, err := m.Run(ctx, trig)
	if err != nil {
		logger.Error("waitlist sweep failed", "error", err, "event_id", evt.ID)
		return nil, err
	}
	logger.Info("waitlist sweep complete",
		"event_id", evt.ID,
		"expired", res.Expired,
		"evaluated", res.Evaluated,
		"matched", len(res.Matched),
	)
	return res, nil
}
