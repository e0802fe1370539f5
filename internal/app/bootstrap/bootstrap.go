package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	questionservice "delphi/contexts/knowledge-market/question-service"
	"delphi/contexts/knowledge-market/question-service/adapters/memory"
	postgresadapter "delphi/contexts/knowledge-market/question-service/adapters/postgres"
	redisadapter "delphi/contexts/knowledge-market/question-service/adapters/redis"
	tigerbeetleadapter "delphi/contexts/knowledge-market/question-service/adapters/tigerbeetle"
	workerapp "delphi/contexts/knowledge-market/question-service/application/workers"
	"delphi/contexts/knowledge-market/question-service/ports"
	"delphi/internal/platform/config"
	"delphi/internal/platform/db"
	"delphi/internal/platform/httpserver"
	"delphi/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	closers  []func()
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres      *db.Postgres
	outboxRelay   workerapp.OutboxRelay
	refundWatcher workerapp.RefundWindowWatcher
	relayEnabled  bool
	watchEnabled  bool
	pollInterval  time.Duration
	logger        *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	var closers []func()

	var idempotency ports.IdempotencyStore = repo
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		idempotency = redisadapter.NewIdempotencyStore(client)
		closers = append(closers, func() { _ = client.Close() })
	}

	var ledger ports.TokenLedger = memory.NewLedger()
	if len(cfg.TigerBeetleAddresses) > 0 {
		tbLedger, err := tigerbeetleadapter.NewLedger(cfg.TigerBeetleClusterID, cfg.TigerBeetleAddresses, logger)
		if err != nil {
			_ = pg.Close()
			return nil, err
		}
		ledger = tbLedger
		closers = append(closers, tbLedger.Close)
	}

	module := questionservice.NewModule(questionservice.Dependencies{
		Questions:      repo,
		Ledger:         ledger,
		Idempotency:    idempotency,
		Clock:          postgresadapter.SystemClock{},
		IDGen:          postgresadapter.UUIDGenerator{},
		IdempotencyTTL: cfg.IdempotencyTTL,
		Logger:         logger,
	})

	server := httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		closers:  closers,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	return &WorkerApp{
		postgres: pg,
		outboxRelay: workerapp.OutboxRelay{
			Outbox:    repo,
			Publisher: kafka,
			Clock:     postgresadapter.SystemClock{},
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		refundWatcher: workerapp.RefundWindowWatcher{
			Questions: repo,
			Outbox:    repo,
			Clock:     postgresadapter.SystemClock{},
			IDGen:     postgresadapter.UUIDGenerator{},
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		relayEnabled: cfg.EnableOutboxRelay,
		watchEnabled: cfg.EnableRefundWindowWatcher,
		pollInterval: cfg.WorkerPollInterval,
		logger:       logger,
	}, nil
}

// MigrateDatabase creates or updates the service tables.
func MigrateDatabase(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return errors.New("POSTGRES_DSN is required")
	}
	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer func() { _ = pg.Close() }()

	logger := slog.Default().With("service", cfg.ServiceName, "process", "migrate")
	repo := postgresadapter.NewRepository(pg.DB, logger)
	return repo.Migrate(ctx)
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	for _, closer := range a.closers {
		closer()
	}
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"outbox_relay", w.relayEnabled,
		"refund_watcher", w.watchEnabled,
	)

	group, ctx := errgroup.WithContext(ctx)
	if w.relayEnabled {
		group.Go(func() error {
			return w.loop(ctx, w.outboxRelay.RunOnce)
		})
	}
	if w.watchEnabled {
		group.Go(func() error {
			return w.loop(ctx, w.refundWatcher.RunOnce)
		})
	}
	return group.Wait()
}

func (w *WorkerApp) loop(ctx context.Context, runOnce func(context.Context) error) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		if err := runOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
