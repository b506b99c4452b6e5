package mainconfig

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/telehealth-coordination/internal/app/bootstrap"
	appconfig "github.com/wolfman30/telehealth-coordination/internal/config"
	"github.com/wolfman30/telehealth-coordination/pkg/logging"
)

// OpenInfra connects every configured backend. The returned func closes
// whatever was opened.
func OpenInfra(ctx context.Context, cfg *appconfig.Config, reg prometheus.Registerer, logger *logging.Logger) (bootstrap.Infra, func(), error) {
	infra := bootstrap.Infra{Registerer: reg}
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	pool, err := bootstrap.ConnectPostgres(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return infra, closeAll, err
	}
	if pool != nil {
		infra.Pool = pool
		closers = append(closers, pool.Close)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
	}

	db, err := bootstrap.OpenDirectoryDB(ctx, bootstrap.DirectoryURL(cfg))
	if err != nil {
		closeAll()
		return infra, func() {}, err
	}
	if db != nil {
		infra.DirectoryDB = db
		closers = append(closers, func() { _ = db.Close() })
	}

	if client := bootstrap.BuildRedisClient(ctx, cfg, logger, true); client != nil {
		infra.Redis = client
		closers = append(closers, func() { _ = client.Close() })
	}

	if QueuesConfigured(cfg) {
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			closeAll()
			return infra, func() {}, fmt.Errorf("load aws config: %w", err)
		}
		infra.SQS = NewSQSClient(awsCfg, cfg)
	}
	return infra, closeAll, nil
}
