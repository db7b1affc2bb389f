package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nordvik-media/blog-api/docs"
	"github.com/nordvik-media/blog-api/internal/auth"
	"github.com/nordvik-media/blog-api/internal/config"
	"github.com/nordvik-media/blog-api/internal/database"
	"github.com/nordvik-media/blog-api/internal/http/handler"
	"github.com/nordvik-media/blog-api/internal/http/middleware"
	"github.com/nordvik-media/blog-api/internal/http/router"
	"github.com/nordvik-media/blog-api/internal/logger"
	"github.com/nordvik-media/blog-api/internal/repository"
	"github.com/nordvik-media/blog-api/internal/service"
	"github.com/nordvik-media/blog-api/internal/storage"
	"go.uber.org/zap"
)

// @title Nordvik Blog API
// @version 1.0
// @description Blog API with local and Microsoft federated login, and image attachments in Azure Blob Storage

// @contact.name API Support
// @contact.email support@nordvik.media

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey SessionCookie
// @in cookie
// @name blog_session
// @description Server-side session cookie set by the login endpoints

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	// Configure Swagger host based on environment
	switch basicCfg.App.Environment {
	case "staging":
		docs.SwaggerInfo.Host = "blog-api-staging.nordvik.media"
	case "production":
		docs.SwaggerInfo.Host = "blog-api.nordvik.media"
	default:
		docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)
	}

	// Load full configuration with secrets
	// In development: uses environment variables
	// In staging/production: fetches from Azure Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	// Connect to database
	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// Initialize storage
	imageStorage, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)

	// Session store and identity provider client
	sessions := auth.NewSessionStore(cfg.Session.TTL(), cfg.Session.RememberTTL())
	oidcClient := auth.NewOIDCClient(&cfg.EntraID, cfg.EntraID.RedirectURL(cfg.App.BaseURL))
	verifier := auth.NewIDTokenVerifier(&cfg.EntraID)

	// Initialize services
	postService := service.NewPostService(postRepo, imageStorage, log)
	authService := service.NewAuthService(userRepo, oidcClient, verifier, log)

	// Initialize middleware
	authMiddleware := auth.NewMiddleware(sessions, userRepo, cfg.Session.CookieName, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	// Initialize handlers
	postHandler := handler.NewPostHandler(postService, cfg.Storage.MaxUploadSizeMB, log)
	authHandler := handler.NewAuthHandler(authService, sessions, cfg, log)

	// Setup router
	rt := router.NewRouter(
		cfg,
		log,
		db,
		authMiddleware,
		rateLimiter,
		postHandler,
		authHandler,
	)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}
