package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"land-registry/verification-portal/verification-portal-backend/internal/auth"
	"land-registry/verification-portal/verification-portal-backend/internal/config"
	"land-registry/verification-portal/verification-portal-backend/internal/land"
	"land-registry/verification-portal/verification-portal-backend/internal/notifications"
	"land-registry/verification-portal/verification-portal-backend/internal/scoring"
	"land-registry/verification-portal/verification-portal-backend/internal/sla"
	"land-registry/verification-portal/verification-portal-backend/internal/verification"
	"land-registry/verification-portal/verification-portal-backend/pkg/clock"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.GetDatabaseURL()), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(
		&verification.Verification{},
		&verification.AuditEntry{},
		&notifications.Intent{},
	); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Wire the verification engine
	repo := verification.NewRepository(db)
	lands := land.NewLookup(db)
	scorer := scoring.NewEngine()
	service := verification.NewService(repo, lands, scorer, clock.System(), logger)
	handler := verification.NewHandler(service, logger)

	// Background workers
	dispatcher := notifications.NewDispatcher(db, notifications.NewLogSink(logger), logger, cfg.Notifications.DispatchInterval)
	dispatcher.Start()
	defer dispatcher.Stop()

	sweeper := sla.NewSweeper(service, cfg.SLA.SweepSchedule, logger)
	if err := sweeper.Start(context.Background()); err != nil {
		logger.Fatal("Failed to start SLA sweeper", zap.Error(err))
	}
	defer sweeper.Stop()

	// Setup Router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	api := router.Group("/api/v1")
	api.Use(auth.Middleware(cfg.Security.JWTSecret))
	{
		handler.RegisterRoutes(api)
	}

	// Start Server
	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()
	logger.Info("Server started", zap.String("addr", srv.Addr))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func buildLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if level != "" {
		parsed, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		zcfg.Level = parsed
	}
	return zcfg.Build()
}
