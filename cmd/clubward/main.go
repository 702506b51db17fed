package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/clubward/clubward/internal/app"
	"github.com/clubward/clubward/internal/billing"
	"github.com/clubward/clubward/internal/members"
	"github.com/clubward/clubward/internal/observability"
	"github.com/clubward/clubward/internal/platform/cache"
	"github.com/clubward/clubward/internal/platform/db"
	"github.com/clubward/clubward/internal/runlog"
	"github.com/clubward/clubward/jobs"
)

// runSink bridges the billing engine's run records into the run log store.
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
		slog.Default().Info("test mode detected, skipping runtime startup")
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
	billingHandler := billing.NewHandler(logger, billingService)

	membersRepo := members.NewRepository(pool)
	membersService := members.NewService(membersRepo, billingService)
	membersHandler := members.NewHandler(logger, membersService)

	runsHandler := runlog.NewHandler(runStore, logger)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(jobClient, inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Config:         cfg,
		Metrics:        metrics,
		BillingHandler: billingHandler,
		MembersHandler: membersHandler,
		RunsHandler:    runsHandler,
		JobsHandler:    jobsHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
