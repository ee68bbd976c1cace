package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/migo/backend/internal/cache"
	"github.com/anonto42/migo/backend/internal/events"
	"github.com/anonto42/migo/backend/internal/handlers"
	"github.com/anonto42/migo/backend/internal/middleware"
	"github.com/anonto42/migo/backend/internal/repositories"
	"github.com/anonto42/migo/backend/internal/repositories/memory"
	"github.com/anonto42/migo/backend/internal/router"
	"github.com/anonto42/migo/backend/internal/services"
	"github.com/anonto42/migo/backend/internal/validators"
	"github.com/anonto42/migo/backend/pkg/config"
	"github.com/anonto42/migo/backend/pkg/firebase"
	"github.com/anonto42/migo/backend/pkg/logger"
	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("Server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Env,
		}); err != nil {
			zl.Error("Sentry init failed", zap.Error(err))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Initialize storage
	var stores router.Stores
	switch cfg.Store {
	case config.StoreMemory:
		zl.Warn("Using in-memory store; data is lost on restart")
		stores = router.MemoryStores(memory.New())
	default:
		db, err := config.InitDB(ctx, cfg, zl)
		if err != nil {
			return fmt.Errorf("failed to initialize databases: %w", err)
		}
		defer db.CloseDB()

		if err := repositories.AutoMigrate(db.Postgres); err != nil {
			return fmt.Errorf("failed to auto migrate models: %w", err)
		}
		mongoDB := db.Mongo.Database(cfg.MongoDatabase)
		if err := repositories.EnsurePostIndexes(ctx, mongoDB); err != nil {
			return fmt.Errorf("failed to create post indexes: %w", err)
		}
		zl.Info("Migrations completed")
		stores = router.PostgresStores(db.Postgres, mongoDB)
	}

	// Identity cache is optional
	var identityCache services.IdentityCache
	redisClient, err := config.InitRedis(ctx, cfg, zl)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		identityCache = cache.NewIdentityCache(redisClient, cfg.IdentityCacheTTL)
	}

	// Event bus
	var (
		publisher events.Publisher
		natsBus   *events.NATSBus
	)
	if cfg.EventBus == config.EventBusNATS {
		conn, err := config.InitNATS(cfg, zl)
		if err != nil {
			return err
		}
		defer conn.Drain()
		natsBus = events.NewNATSBus(conn, events.DefaultSubjectPrefix, zl)
		publisher = natsBus
	}

	svc := router.NewServices(stores, identityCache, publisher, zl)
	if natsBus != nil {
		if _, err := natsBus.Subscribe(svc.Notifications.HandleEvent); err != nil {
			return err
		}
	}

	// Authentication
	var auth echo.MiddlewareFunc
	switch cfg.AuthProvider {
	case config.AuthFirebase:
		app, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, zl)
		if err != nil {
			return fmt.Errorf("failed to initialize Firebase: %w", err)
		}
		auth = middleware.FirebaseAuthMiddleware(app.AuthClient, svc.Identity)
	default:
		auth = middleware.JWTAuthMiddleware(cfg.JWTSecret)
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()
	e.HTTPErrorHandler = handlers.HTTPErrorHandler(zl)
	config.SetupMiddleware(e, zl)
	router.SetupRoutes(e, svc, auth)

	// Start server
	errCh := make(chan error, 1)
	go func() {
		zl.Info("Server starting", zap.String("port", cfg.Port), zap.String("store", cfg.Store), zap.String("event_bus", cfg.EventBus))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zl.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
