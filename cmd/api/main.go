// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/carterperez-dev/templates/notes-api/internal/auth"
	"github.com/carterperez-dev/templates/notes-api/internal/config"
	"github.com/carterperez-dev/templates/notes-api/internal/core"
	"github.com/carterperez-dev/templates/notes-api/internal/health"
	"github.com/carterperez-dev/templates/notes-api/internal/maintenance"
	"github.com/carterperez-dev/templates/notes-api/internal/middleware"
	"github.com/carterperez-dev/templates/notes-api/internal/note"
	"github.com/carterperez-dev/templates/notes-api/internal/ops"
	"github.com/carterperez-dev/templates/notes-api/internal/server"
	"github.com/carterperez-dev/templates/notes-api/internal/user"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var (
		telemetry *core.Telemetry
		tracer    trace.Tracer = noop.NewTracerProvider().Tracer("")
	)
	tel, err := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
	if err != nil {
		logger.Warn("failed to initialize telemetry", "error", err)
	} else {
		telemetry = tel
		tracer = tel.Tracer
		if cfg.Otel.Enabled {
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, logger); err != nil {
			return err
		}
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "HS256",
		"key_id", jwtManager.GetKeyID(),
	)

	revocations, err := newRevocationStore(cfg.Auth, db, redis)
	if err != nil {
		return err
	}
	logger.Info("revocation registry initialized",
		"store", cfg.Auth.RevocationStore,
	)

	userRepo := user.NewRepository(db.DB)
	userSvc := user.NewService(userRepo)
	userHandler := user.NewHandler(userSvc)

	authRepo := auth.NewRepository(db.DB)
	authSvc := auth.NewService(
		authRepo,
		revocations,
		jwtManager,
		userSvc,
		logger,
		cfg.Auth.RefreshRetention,
	)
	authHandler := auth.NewHandler(authSvc)

	noteRepo := note.NewRepository(db.DB)
	noteSvc := note.NewService(noteRepo)
	noteHandler := note.NewHandler(noteSvc)

	healthHandler := health.NewHandler(db, redis, cfg.App.Name, cfg.App.Version)

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Tracing(tracer))
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.Limit(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
				cfg.RateLimit.Window,
			),
			FailOpen:   true,
			BypassFunc: isHealthCheck,
			Logger:     logger,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	authenticator := middleware.Authenticator(authSvc, authSvc)
	authLimiter := middleware.NewAuthRateLimiter(
		redis.Client,
		middleware.Limit(
			cfg.RateLimit.AuthRequests,
			cfg.RateLimit.AuthBurst,
			cfg.RateLimit.Window,
		),
	).Handler

	authHandler.RegisterRoutes(router, authenticator, authLimiter)
	userHandler.RegisterRoutes(router, authenticator)
	noteHandler.RegisterRoutes(router, authenticator)

	if !cfg.IsProduction() {
		ops.NewHandler(ops.HandlerConfig{
			DBStats:    db.Stats,
			RedisStats: redis.PoolStats,
			DBPing:     db.Ping,
			RedisPing:  redis.Ping,
		}).RegisterRoutes(router, authenticator)
	}

	var scheduler *maintenance.Scheduler
	if cfg.Maintenance.Enabled {
		scheduler, err = maintenance.NewScheduler(
			cfg.Maintenance,
			logger,
			maintenance.PurgeTasks(authSvc)...,
		)
		if err != nil {
			return err
		}
		scheduler.Start()
	}

	healthHandler.SetReady(true)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func isHealthCheck(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/livez", "/readyz":
		return true
	}
	return false
}

func newRevocationStore(
	cfg config.AuthConfig,
	db *core.Database,
	redis *core.Redis,
) (auth.RevocationStore, error) {
	switch cfg.RevocationStore {
	case config.RevocationStoreRedis:
		return auth.NewRedisRevocationStore(redis.Client), nil
	case config.RevocationStorePostgres:
		gdb, err := db.Gorm()
		if err != nil {
			return nil, err
		}
		return auth.NewGormRevocationStore(gdb), nil
	default:
		return nil, fmt.Errorf("unknown revocation store %q", cfg.RevocationStore)
	}
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
