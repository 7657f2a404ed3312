// Package entrypoint wires configuration, storage, background workers and the
// HTTP router into a running server.
package entrypoint

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"librarium/internal/audit"
	"librarium/internal/auth"
	"librarium/internal/config"
	"librarium/internal/database"
	auditdb "librarium/internal/database/audit"
	"librarium/internal/database/authors"
	"librarium/internal/database/books"
	"librarium/internal/database/librarians"
	"librarium/internal/database/libraries"
	"librarium/internal/database/users"
	"librarium/internal/demo"
	http_controllers "librarium/internal/http"
	"librarium/internal/logger"
	"librarium/internal/scheduler"
	"librarium/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the HTTP server until SIGINT or SIGTERM, then shuts down
// gracefully within the configured timeout. When TLS cert and key files are
// configured the server terminates HTTPS itself; otherwise it expects a
// reverse proxy to do so.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	useTLS := cfg.HTTP.TLSCertFile != "" && cfg.HTTP.TLSKeyFile != ""

	go func() {
		logger.Get().Info().
			Str("addr", srv.Addr).
			Bool("tls", useTLS).
			Msg("server starting")

		var err error
		if useTLS {
			err = srv.ListenAndServeTLS(cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Get().Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Get().Info().Dur("timeout", timeout).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop background work before closing the listener so in-flight
	// requests can still reach the task queue.
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Get().Fatal().Err(err).Msg("forced shutdown")
	}

	logger.Get().Info().Msg("server stopped")
}

// Run assembles the application from configuration and serves it.
func Run(cfg *config.Config, version string) {
	logger.Init(logger.Options{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	logger.Get().Info().Str("version", version).Msg("starting librarium")

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		logger.Get().Fatal().Err(err).Msg("failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Get().Error().Err(err).Msg("error closing database")
		}
	}()

	bookRepo := books.NewRepository(db.DB)
	authorRepo := authors.NewRepository(db.DB)
	libraryRepo := libraries.NewRepository(db.DB)
	librarianRepo := librarians.NewRepository(db.DB)
	userRepo := users.NewRepository(db.DB)

	auditor := audit.NewService(auditdb.NewRepository(db.DB))

	// Task queue for retention and orphan cleanup
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.Config{
			Workers:         cfg.Tasks.Workers,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
		})
		if err != nil {
			logger.Get().Fatal().Err(err).Msg("failed to initialize task queue")
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				logger.Get().Error().Err(err).Msg("error closing task client")
			}
		}()

		taskClient.Register(
			tasks.NewCleanupAuditQueue(auditor),
			tasks.NewCleanupAuthorsQueue(authorRepo),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	}

	// Nightly audit retention job
	retention := scheduler.NewRetentionScheduler(taskClient,
		cfg.Audit.CleanupSchedule, cfg.Audit.RetentionDays)
	if err := retention.Start(context.Background()); err != nil {
		logger.Get().Fatal().Err(err).Msg("failed to start retention scheduler")
	}

	// Authentication
	var authService *auth.Service
	var authMiddleware *auth.Middleware
	var sessionManager *auth.SessionManager
	var loginLimiter *auth.RateLimiter
	var csrfSecret []byte

	if cfg.Auth.Mode == config.AuthModeLocal {
		logger.Get().Info().Msg("authentication mode: local")

		authService = auth.NewService(db.DB, cfg.Auth)

		sqlDB, err := db.DB.DB()
		if err != nil {
			logger.Get().Fatal().Err(err).Msg("failed to get SQL DB for sessions")
		}

		sessionManager, err = auth.NewSessionManager(sqlDB, cfg.Auth)
		if err != nil {
			logger.Get().Fatal().Err(err).Msg("failed to initialize session manager")
		}

		authMiddleware = auth.NewMiddleware(authService, sessionManager, cfg.Auth)

		loginLimiter = auth.NewRateLimiter(auth.RateLimitConfig{
			MaxAttempts:     cfg.Auth.MaxLoginAttempts,
			WindowDuration:  cfg.Auth.RateLimitWindow,
			LockoutDuration: cfg.Auth.LockoutDuration,
		})
		defer loginLimiter.Stop()

		if cfg.Auth.SessionSecret != "" {
			csrfSecret, err = hex.DecodeString(cfg.Auth.SessionSecret)
			if err != nil {
				// Not hex, use as raw bytes
				csrfSecret = []byte(cfg.Auth.SessionSecret)
			}
		} else {
			secret, err := auth.GenerateSessionSecret()
			if err != nil {
				logger.Get().Fatal().Err(err).Msg("failed to generate CSRF secret")
			}
			csrfSecret, _ = hex.DecodeString(secret)
			logger.Get().Warn().Msg("generated session secret (set AUTH_SESSION_SECRET to persist)")
		}

		hasUsers, _ := authService.HasUsers()
		if !hasUsers {
			logger.Get().Info().Msg("no users found, visit /setup to create an administrator account")
		}
	} else {
		logger.Get().Info().Msg("authentication mode: none (no authentication required)")
	}

	// Global per-IP request budget
	var requestLimiter *http_controllers.RequestRateLimiter
	if cfg.RateLimit.Enabled {
		requestLimiter = http_controllers.NewRequestRateLimiter(
			cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
		defer requestLimiter.Stop()
	}

	var demoMiddleware *demo.Middleware
	if cfg.Demo.Enabled {
		demoMiddleware = demo.NewMiddleware(true)
		logger.Get().Info().Msg("demo mode enabled - write operations will be blocked")
	}

	routerCfg := http_controllers.RouterConfig{
		Database:           db,
		Auditor:            auditor,
		BookRepo:           bookRepo,
		AuthorRepo:         authorRepo,
		LibraryRepo:        libraryRepo,
		LibrarianRepo:      librarianRepo,
		UserRepo:           userRepo,
		AuthService:        authService,
		SessionManager:     sessionManager,
		AuthMiddleware:     authMiddleware,
		AuthConfig:         cfg.Auth,
		CSRFSecret:         csrfSecret,
		SecureCookies:      cfg.Auth.SecureCookies,
		LoginLimiter:       loginLimiter,
		ForceHTTPS:         cfg.HTTP.ForceHTTPS,
		HSTSSeconds:        cfg.HTTP.HSTSSeconds,
		RequestLimiter:     requestLimiter,
		DemoMiddleware:     demoMiddleware,
		TaskClient:         taskClient,
		AuditRetentionDays: cfg.Audit.RetentionDays,
		TemplatesPath:      cfg.UI.TemplatesPath,
		StaticPath:         cfg.UI.StaticPath,
		Version:            version,
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		retention.Stop()
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}
