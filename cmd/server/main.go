package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maktaba-app/maktaba/internal"
	"github.com/maktaba-app/maktaba/internal/catalog"
	"github.com/maktaba-app/maktaba/internal/entitlement"
	"github.com/maktaba-app/maktaba/internal/handler"
	"github.com/maktaba-app/maktaba/internal/metrics"
	"github.com/maktaba-app/maktaba/internal/middleware"
	"github.com/maktaba-app/maktaba/internal/promo"
	"github.com/maktaba-app/maktaba/internal/repository"
	"github.com/maktaba-app/maktaba/internal/service"
	"github.com/maktaba-app/maktaba/internal/storage"
	"github.com/maktaba-app/maktaba/internal/telegram"
	"github.com/maktaba-app/maktaba/internal/worker"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize repository
	repo := repository.New(db)

	// Tier settings: Postgres source behind a cache. Redis is shared
	// across replicas; the in-process cache suits a single instance.
	tierStore := catalog.NewPGStore(repo, logger)
	if err := tierStore.EnsureDefaults(ctx); err != nil {
		return fmt.Errorf("tier settings seed failed: %w", err)
	}

	var tierSource catalog.Source
	var tierCache catalog.Clearer
	if cfg.RedisAddr != "" {
		client := catalog.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		redisCache := catalog.NewRedisCache(client, tierStore, cfg.TierCacheTTL, logger)
		tierSource, tierCache = redisCache, redisCache
		logger.Info("Tier settings cache: redis", "addr", cfg.RedisAddr)
	} else {
		memCache := catalog.NewCache(tierStore, catalog.WithFreshness(cfg.TierCacheTTL))
		tierSource, tierCache = memCache, memCache
		logger.Info("Tier settings cache: in-process")
	}

	// Initialize object storage
	var store storage.Storage
	switch cfg.StorageProvider {
	case storage.ProviderR2:
		store, err = storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
	default:
		store, err = storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
	}
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	// Initialize services
	tgValidator := telegram.NewValidator(cfg.TelegramBotToken, cfg.TelegramInitDataAge)
	promoValidator := promo.New(cfg.PromoCodesEnabled, cfg.ValidPromoCodes)

	userService := service.NewUserService(repo, tgValidator, logger)
	usageService := service.NewUsageService(repo, logger)
	subscriptionService := service.NewSubscriptionService(repo, tierCache, promoValidator, logger)
	contentService := service.NewContentService(repo, store, service.NewImagingProcessor(), logger)

	evaluator := entitlement.NewEvaluator(tierSource, usageService, logger)
	locker := entitlement.NewLocker()
	libraryService := service.NewLibraryService(repo, evaluator, usageService, locker, logger)

	// Provision the bootstrap admin account
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := userService.EnsureAdminUser(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return fmt.Errorf("admin bootstrap failed: %w", err)
		}
	}

	// Initialize middleware
	authMw := middleware.NewAuthMiddleware(userService, logger, cfg.SecureCookies)
	logMw := middleware.NewRequestLoggingMiddleware(logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(cfg.SecureCookies)
	authLimiter := middleware.NewAuthRateLimiter(logger)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(userService, logger, cfg.SecureCookies)
	contentHandler := handler.NewContentHandler(contentService, evaluator, logger)
	libraryHandler := handler.NewLibraryHandler(libraryService, evaluator, logger)
	subscriptionHandler := handler.NewSubscriptionHandler(subscriptionService, userService, tierStore, logger)
	adminHandler := handler.NewAdminHandler(contentService, subscriptionService, tierStore, tierCache, logger)
	healthHandler := handler.NewHealthHandler(db, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check and metrics
	mux.HandleFunc("GET /health", healthHandler.Health)

	metricsHandler := http.Handler(promhttp.Handler())
	if cfg.MetricsUsername != "" || cfg.MetricsPassword != "" {
		basicAuth := middleware.NewBasicAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
		metricsHandler = basicAuth.Handler(metricsHandler)
	} else {
		logger.Warn("Metrics endpoint is unprotected, set METRICS_USERNAME and METRICS_PASSWORD")
	}
	mux.Handle("GET /metrics", metricsHandler)

	// Local storage serves media straight from disk in development
	if cfg.StorageProvider == storage.ProviderLocal {
		filesFS := http.FileServer(http.Dir(cfg.LocalStoragePath))
		mux.Handle("GET /files/", http.StripPrefix("/files/", filesFS))
	}

	// Middleware stacks
	withUser := middleware.Stack(authMw.WithUser)
	requireUser := middleware.Stack(authMw.WithUser, authMw.RequireUser)
	requireAdmin := middleware.Stack(authMw.WithUser, authMw.RequireUser, authMw.RequireAdmin)

	route := func(pattern string, stack func(http.Handler) http.Handler, fn http.HandlerFunc) {
		mux.Handle(pattern, stack(fn))
	}

	// Auth routes (login endpoints are rate limited per client IP)
	mux.Handle("POST /api/auth/telegram", authLimiter.LimitLogin(http.HandlerFunc(authHandler.TelegramLogin)))
	mux.Handle("POST /api/admin/login", authLimiter.LimitLogin(http.HandlerFunc(authHandler.AdminLogin)))
	route("POST /api/auth/logout", withUser, authHandler.Logout)
	route("GET /api/me", requireUser, authHandler.Me)
	route("GET /api/me/limits", requireUser, libraryHandler.Limits)

	// Public catalog
	route("GET /api/tiers", withUser, subscriptionHandler.Tiers)
	route("GET /api/books", withUser, contentHandler.ListBooks)
	route("GET /api/books/{id}", withUser, contentHandler.GetBook)
	route("GET /api/nashids", withUser, contentHandler.ListNashids)
	route("GET /api/nashids/{id}", withUser, contentHandler.GetNashid)

	// Gated media access
	route("GET /api/books/{id}/file", requireUser, contentHandler.BookFile)
	route("GET /api/nashids/{id}/audio", requireUser, contentHandler.NashidAudio)

	// Trial activation
	mux.Handle("POST /api/trial", requireUser(authLimiter.LimitTrial(http.HandlerFunc(subscriptionHandler.ActivateTrial))))

	// Personal library
	route("POST /api/library/{type}/{id}/favorite", requireUser, libraryHandler.AddFavorite)
	route("DELETE /api/library/{type}/{id}/favorite", requireUser, libraryHandler.RemoveFavorite)
	route("GET /api/library/{type}/favorites", requireUser, libraryHandler.ListFavorites)
	route("POST /api/library/{type}/{id}/offline", requireUser, libraryHandler.AddOffline)
	route("DELETE /api/library/{type}/{id}/offline", requireUser, libraryHandler.RemoveOffline)
	route("GET /api/library/{type}/offline", requireUser, libraryHandler.ListOffline)

	// Admin surface
	route("GET /api/admin/tiers", requireAdmin, adminHandler.ListTiers)
	route("PUT /api/admin/tiers/{tier}", requireAdmin, adminHandler.UpdateTier)
	route("POST /api/admin/users/{id}/tier", requireAdmin, adminHandler.AssignTier)
	route("GET /api/admin/users/{id}/history", requireAdmin, adminHandler.SubscriptionHistory)

	route("POST /api/admin/books", requireAdmin, adminHandler.CreateBook)
	route("PUT /api/admin/books/{id}", requireAdmin, adminHandler.UpdateBook)
	route("DELETE /api/admin/books/{id}", requireAdmin, adminHandler.DeleteBook)
	route("POST /api/admin/books/{id}/cover", requireAdmin, adminHandler.UploadBookCover)
	route("POST /api/admin/books/{id}/file", requireAdmin, adminHandler.UploadBookFile)

	route("POST /api/admin/nashids", requireAdmin, adminHandler.CreateNashid)
	route("PUT /api/admin/nashids/{id}", requireAdmin, adminHandler.UpdateNashid)
	route("DELETE /api/admin/nashids/{id}", requireAdmin, adminHandler.DeleteNashid)
	route("POST /api/admin/nashids/{id}/cover", requireAdmin, adminHandler.UploadNashidCover)
	route("POST /api/admin/nashids/{id}/audio", requireAdmin, adminHandler.UploadNashidAudio)

	// Outer middleware: security headers, then logging, then metrics
	root := securityMw.Handler(logMw.Handler(metrics.Middleware(mux)))

	// ==========================================================================
	// Start background worker
	// ==========================================================================

	if cfg.WorkerEnabled {
		workerCfg := worker.DefaultConfig()
		workerCfg.Concurrency = cfg.WorkerConcurrency
		workerCfg.PollInterval = cfg.WorkerPollInterval
		workerCfg.JobTimeout = cfg.WorkerJobTimeout

		w, err := worker.New(db, repo, workerCfg, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		w.Register(worker.NewUsageResetJob(usageService, logger))
		w.Register(worker.NewSessionCleanupJob(userService, logger))
		w.Register(worker.NewSubscriptionExpiryJob(subscriptionService, logger))
		w.Start(ctx)
		defer w.Stop()

		if cfg.WorkerScheduleEnable {
			scheduler := worker.NewScheduler(repo, workerCfg, logger)
			scheduler.Start(ctx)
			defer scheduler.Stop()
		}
	}

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: root,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
