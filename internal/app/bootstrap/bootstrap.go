package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	assignmentengine "crowdlabel/contexts/crowd-labeling/assignment-engine"
	postgresadapter "crowdlabel/contexts/crowd-labeling/assignment-engine/adapters/postgres"
	redisadapter "crowdlabel/contexts/crowd-labeling/assignment-engine/adapters/redis"
	"crowdlabel/contexts/crowd-labeling/assignment-engine/application/workers"
	"crowdlabel/internal/platform/config"
	"crowdlabel/internal/platform/db"
	"crowdlabel/internal/platform/messaging"
	"crowdlabel/internal/shared/events"

	"github.com/go-redis/redis/v8"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type WorkerApp struct {
	postgres     *db.Postgres
	redis        *redis.Client
	bus          *messaging.Kafka
	engine       assignmentengine.Module
	enabled      bool
	pollInterval time.Duration
	logger       *slog.Logger
}

func NewLogger(cfg config.Config, process string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	return slog.New(handler).With("service", cfg.ServiceName, "process", process)
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := NewLogger(cfg, "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN, db.PoolConfig{
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		return nil, err
	}

	rdb, err := db.ConnectRedis(db.RedisConfig{
		Address:  cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		_ = pg.Close()
		_ = rdb.Close()
		return nil, err
	}

	engine := assignmentengine.NewModule(assignmentengine.Dependencies{
		Votes:                postgresadapter.NewRepository(pg.DB, logger),
		Projection:           redisadapter.NewTallyProjection(rdb, cfg.TallyProjectionTTL, logger),
		Publisher:            kafka,
		Clock:                postgresadapter.SystemClock{},
		IDGen:                postgresadapter.UUIDGenerator{},
		PrioritizeLeastVoted: cfg.PrioritizeLeastVoted,
		Logger:               logger,
	})

	return &WorkerApp{
		postgres:     pg,
		redis:        rdb,
		bus:          kafka,
		engine:       engine,
		enabled:      cfg.EnableTallyRefresher,
		pollInterval: cfg.TallyRefreshInterval,
		logger:       logger,
	}, nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if !w.enabled {
		w.logger.Info("tally refresher disabled",
			"event", "bootstrap_worker_refresher_disabled",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		return nil
	}

	if err := w.bus.Subscribe(ctx, workers.EventConsensusReady, "assignment-engine-audit-cg", w.logConsensusReady); err != nil {
		return err
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		// A failed cycle is retried on the next tick; only shutdown ends the loop.
		if err := w.engine.Refresher.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("tally refresh cycle failed",
				"event", "bootstrap_worker_refresh_failed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) logConsensusReady(_ context.Context, event events.Envelope) error {
	w.logger.Info("consensus ready for finalization",
		"event", "bootstrap_worker_consensus_ready",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"event_id", event.EventID,
		"job_id", event.PartitionKey,
	)
	return nil
}

func (w *WorkerApp) Close() error {
	var errs []error
	if w.redis != nil {
		errs = append(errs, w.redis.Close())
	}
	if w.postgres != nil {
		errs = append(errs, w.postgres.Close())
	}
	return errors.Join(errs...)
}
