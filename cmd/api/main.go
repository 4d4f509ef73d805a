package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aspirant2018/niqatech-backend/internal/api"
	"github.com/aspirant2018/niqatech-backend/internal/auth"
	"github.com/aspirant2018/niqatech-backend/internal/config"
	"github.com/aspirant2018/niqatech-backend/internal/db"
	"github.com/aspirant2018/niqatech-backend/internal/excel"
	"github.com/aspirant2018/niqatech-backend/internal/grades"
	"github.com/aspirant2018/niqatech-backend/internal/lock"
	"github.com/aspirant2018/niqatech-backend/internal/logger"
	"github.com/aspirant2018/niqatech-backend/internal/queue"
	"github.com/aspirant2018/niqatech-backend/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log := logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	log.Info().Str("version", cfg.App.Version).Msg("Starting API server")

	// Initialize database
	database, err := db.NewConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := db.Migrate(ctx, database)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to migrate database")
		}
	}

	// Initialize repository
	repo := db.NewRepository(database)

	// Initialize storage
	store, err := storage.New(cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage")
	}

	// Redis carries the write-back queue and the cross-process file lock.
	// A single API process on local storage runs without it.
	var (
		locks    lock.Locker = lock.NewKeyedMutex()
		producer grades.Enqueuer
	)
	if cfg.Grades.Writeback == config.WritebackQueue || cfg.Storage.Driver == config.StorageS3 {
		redisClient, err := queue.NewRedisClient(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()

		locks = lock.NewRedisLocker(redisClient.Client(), cfg.Redis.LockPrefix, cfg.Redis.LockTTL, 50*time.Millisecond, log)
		producer = queue.NewProducer(redisClient, cfg.Redis)
	}

	// Initialize services
	tmpl := excel.TemplateFromConfig(cfg.Template)
	strategy := excel.NewExcelStrategy(excel.NewParser(tmpl, log), excel.NewValidator(tmpl))
	rewriter := excel.NewRewriter(tmpl, lock.NewKeyedMutex(), log)
	gradeService := grades.NewService(repo, store, rewriter, locks, producer, cfg.Grades.Writeback, log)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authService := auth.NewService(repo, tokens, auth.NewGoogleVerifier(cfg.Auth.GoogleClientID), log)

	// Initialize API handler
	handler := api.NewHandler(repo, store, strategy, authService, gradeService, cfg, log)

	// Setup Gin router
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = cfg.Upload.MaxSize
	router.Use(api.CORSMiddleware(cfg.Server.AllowedOrigins))
	router.Use(api.LoggingMiddleware(log))
	router.Use(api.RecoveryMiddleware(log))

	// Setup routes
	api.SetupRoutes(router, handler, tokens)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
