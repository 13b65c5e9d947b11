package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/SAP-F-2025/course-progression-service/internal/cache"
	"github.com/SAP-F-2025/course-progression-service/internal/config"
	"github.com/SAP-F-2025/course-progression-service/internal/grading"
	"github.com/SAP-F-2025/course-progression-service/internal/handlers"
	"github.com/SAP-F-2025/course-progression-service/internal/metrics"
	"github.com/SAP-F-2025/course-progression-service/internal/repositories"
	"github.com/SAP-F-2025/course-progression-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/course-progression-service/internal/services"
	"github.com/SAP-F-2025/course-progression-service/internal/utils"
	"github.com/SAP-F-2025/course-progression-service/internal/validator"
	"github.com/SAP-F-2025/course-progression-service/pkg"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const (
	evictionInterval = time.Minute
	shutdownTimeout  = 15 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, closer, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer closer.Close()

		migrate, _ := cmd.Flags().GetBool("migrate")
		return serve(cmd.Context(), cfg, logger, migrate)
	},
}

func init() {
	serveCmd.Flags().Bool("migrate", false, "Run schema migration before serving")
}

func serve(parent context.Context, cfg *config.Config, logger *slog.Logger, migrate bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return err
	}
	if migrate {
		if err := postgres.AutoMigrate(db); err != nil {
			return err
		}
		logger.Info("Migration complete")
	}

	repo := postgres.NewPostgresRepository(db)

	var redisClient *redis.Client
	if cfg.CacheTTL > 0 {
		redisClient, err = pkg.NewRedisClient(ctx, cfg)
		if err != nil {
			logger.Warn("Redis unavailable, serving course definitions without cache", "error", err)
		} else {
			defer redisClient.Close()
			course := repositories.NewCachedCourseRepository(repo.Course(), cache.NewRedisCache(redisClient, logger), cfg.CacheTTL, logger)
			repo = repositories.NewRepository(course, repo.Progress(), repo.Attempt(), repo.Certificate())
		}
	}

	publisher, err := cfg.Events.CreateEventPublisher(logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	m := metrics.New()
	v := validator.New()

	deps := &services.Dependencies{
		Repo:                    repo,
		Publisher:               publisher,
		Metrics:                 m,
		Logger:                  logger,
		Clock:                   services.NewRealClock(),
		Validator:               v,
		FinalTestDefaultSeconds: cfg.FinalTestDefaultSeconds,
	}
	if cfg.TextGrading {
		deps.Grader = grading.TextGrader{}
	}

	registry := services.NewSessionRegistry(deps, cfg.SessionIdleTimeout)
	defer registry.CloseAll()
	go registry.Run(ctx, evictionInterval)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ContextLogger(logger))
	router.Use(utils.LoggerMiddleware(logger))
	router.Use(m.MetricsMiddleware())

	hm := handlers.NewHandlerManager(
		registry,
		services.NewReportService(repo, logger),
		v,
		handlers.AuthMiddleware(handlers.NewCasdoorParser(cfg.Casdoor), handlers.NewRoleMapper(cfg.Casdoor)),
		m,
		logger,
	)
	hm.SetupRoutes(router)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
		return err
	}
	return nil
}
