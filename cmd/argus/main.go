package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/argus-vms/argus-cloud/cmd/argus/cli"
	"github.com/argus-vms/argus-cloud/internal/app"
	"github.com/argus-vms/argus-cloud/internal/auth"
	"github.com/argus-vms/argus-cloud/internal/authz"
	"github.com/argus-vms/argus-cloud/internal/cameras"
	"github.com/argus-vms/argus-cloud/internal/edgeauth"
	"github.com/argus-vms/argus-cloud/internal/edges"
	"github.com/argus-vms/argus-cloud/internal/license"
	"github.com/argus-vms/argus-cloud/internal/observability"
	"github.com/argus-vms/argus-cloud/internal/organizations"
	"github.com/argus-vms/argus-cloud/internal/roles"
	"github.com/argus-vms/argus-cloud/internal/shared"
	"github.com/argus-vms/argus-cloud/internal/users"
	"github.com/argus-vms/argus-cloud/jobs"
)

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

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := runJobsCommand(ctx, cfg, os.Args[2:]); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "argus_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())

	auditLogger := shared.NewAuditLogger(dbpool)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager)
	authMiddleware := auth.Middleware{Service: authService, Logger: logger}
	authzMiddleware := authz.Middleware{Logger: logger}

	licenseRepo := license.NewRepository(dbpool)
	licenseService := license.NewService(licenseRepo, auditLogger, logger, cfg.LicenseGracePeriodDays)
	licenseHandler := license.NewHandler(logger, licenseService)
	licenseMiddleware := license.Middleware{Service: licenseService, Logger: logger}

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, auditLogger, logger)
	usersHandler := users.NewHandler(logger, usersService)

	orgsRepo := organizations.NewRepository(dbpool)
	orgsService := organizations.NewService(orgsRepo, auditLogger, logger)
	orgsHandler := organizations.NewHandler(logger, orgsService)

	rolesHandler := roles.NewHandler(logger)

	camerasRepo := cameras.NewRepository(dbpool)
	camerasService := cameras.NewService(camerasRepo, licenseService, auditLogger, logger)
	camerasHandler := cameras.NewHandler(logger, camerasService)

	edgesRepo := edges.NewRepository(dbpool)
	edgesService := edges.NewService(edgesRepo, license.NewEdgeDirectory(licenseRepo), auditLogger, logger)
	edgesHandler := edges.NewHandler(logger, edgesService)

	edgeVerifier := edgeauth.NewVerifier(edgesRepo, logger)
	edgeAuthMiddleware := edgeauth.Middleware{Verifier: edgeVerifier, Logger: logger}

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		SessionManager:       sessionManager,
		AuthHandler:          authHandler,
		AuthMiddleware:       authMiddleware,
		AuthzMiddleware:      authzMiddleware,
		LicenseHandler:       licenseHandler,
		LicenseMiddleware:    licenseMiddleware,
		UsersHandler:         usersHandler,
		OrganizationsHandler: orgsHandler,
		RolesHandler:         rolesHandler,
		CamerasHandler:       camerasHandler,
		EdgesHandler:         edgesHandler,
		EdgeAuthMiddleware:   edgeAuthMiddleware,
		JobsHandler:          jobsHandler,
		Metrics:              metrics,
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

func runJobsCommand(ctx context.Context, cfg *app.Config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: argus jobs <trigger TASK|stats>")
	}
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() { _ = jobsCLI.Close() }()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return fmt.Errorf("usage: argus jobs trigger TASK")
		}
		info, err := jobsCLI.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", args[1], info.ID, info.Queue)
		return nil
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return nil
	default:
		return fmt.Errorf("jobs: unknown subcommand %s", args[0])
	}
}
