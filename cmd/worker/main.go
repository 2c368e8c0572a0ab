package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/argus-vms/argus-cloud/internal/app"
	"github.com/argus-vms/argus-cloud/internal/edges"
	"github.com/argus-vms/argus-cloud/internal/license"
	"github.com/argus-vms/argus-cloud/internal/shared"
	"github.com/argus-vms/argus-cloud/jobs"
)

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

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	auditLogger := shared.NewAuditLogger(pool)

	licenseRepo := license.NewRepository(pool)
	licenseService := license.NewService(licenseRepo, auditLogger, logger, cfg.LicenseGracePeriodDays)

	edgesRepo := edges.NewRepository(pool)
	edgesService := edges.NewService(edgesRepo, license.NewEdgeDirectory(licenseRepo), auditLogger, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLicenseExpireSweep, Handler: jobs.NewLicenseSweepHandler(licenseService, logger)},
			{Type: jobs.TaskEdgeOfflineScan, Handler: jobs.NewEdgeOfflineHandler(edgesService, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: jobs.LicenseSweepCronSpec, Task: jobs.NewLicenseExpireSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: jobs.EdgeOfflineCronSpec, Task: jobs.NewEdgeOfflineScanTask()},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
