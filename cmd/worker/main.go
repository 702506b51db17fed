package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/clubward/clubward/internal/app"
	"github.com/clubward/clubward/internal/billing"
	"github.com/clubward/clubward/internal/observability"
	"github.com/clubward/clubward/internal/platform/cache"
	"github.com/clubward/clubward/internal/platform/db"
	"github.com/clubward/clubward/internal/runlog"
	"github.com/clubward/clubward/jobs"
)

type runSink struct {
	store *runlog.Store
}

func (s runSink) RecordRun(ctx context.Context, run billing.GenerationResult) error {
	return s.store.Record(ctx, runlog.Run{
		Operator:             run.Operator,
		ProcessedEnrollments: run.ProcessedEnrollments,
		CreatedDues:          run.CreatedDues,
		Notes:                run.Notes,
		StartedAt:            run.StartedAt,
		FinishedAt:           run.FinishedAt,
	})
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, snapshot cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	runStore := runlog.NewStore(pool)
	snapshots := billing.NewSnapshotCache(redisClient, cfg.SnapshotTTL)

	billingRepo := billing.NewRepository(pool)
	billingService := billing.NewService(billingRepo, cfg, logger, runSink{store: runStore}, snapshots, metrics)
	generateJob := billing.NewGenerateDuesJob(billingService, logger)

	cronTask, err := jobs.NewGenerateDuesTask(jobs.GenerateDuesPayload{Operator: "scheduler"})
	if err != nil {
		logger.Error("build cron task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeGenerateDues, Handler: generateJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.DuesCronSpec, Task: cronTask, Options: []asynq.Option{asynq.Queue(jobs.QueueDefault)}},
		},
	})
	if err != nil {
		logger.Error("configure worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker starting",
		slog.String("queue", jobs.QueueDefault),
		slog.String("cron", cfg.DuesCronSpec))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
