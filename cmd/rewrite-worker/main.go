package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aspirant2018/niqatech-backend/internal/config"
	"github.com/aspirant2018/niqatech-backend/internal/db"
	"github.com/aspirant2018/niqatech-backend/internal/excel"
	"github.com/aspirant2018/niqatech-backend/internal/grades"
	"github.com/aspirant2018/niqatech-backend/internal/lock"
	"github.com/aspirant2018/niqatech-backend/internal/logger"
	"github.com/aspirant2018/niqatech-backend/internal/queue"
	"github.com/aspirant2018/niqatech-backend/internal/storage"
	"github.com/aspirant2018/niqatech-backend/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log := logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	log.Info().Str("version", cfg.App.Version).Msg("Starting rewrite worker")

	// Initialize database
	database, err := db.NewConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	// Initialize repository
	repo := db.NewRepository(database)

	// Initialize Redis client
	redisClient, err := queue.NewRedisClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	// Initialize storage
	store, err := storage.New(cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage")
	}

	// Initialize grade service
	tmpl := excel.TemplateFromConfig(cfg.Template)
	locks := lock.NewRedisLocker(redisClient.Client(), cfg.Redis.LockPrefix, cfg.Redis.LockTTL, 50*time.Millisecond, log)
	rewriter := excel.NewRewriter(tmpl, lock.NewKeyedMutex(), log)
	gradeService := grades.NewService(repo, store, rewriter, locks, nil, config.WritebackSync, log)

	// Create rewrite worker
	rewriteWorker := worker.NewRewriteWorker(cfg, gradeService, redisClient, log)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start worker
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		if err := rewriteWorker.Start(ctx); err != nil && ctx.Err() == nil {
			log.Fatal().Err(err).Msg("Rewrite worker failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down rewrite worker...")

	// Stop consuming, then let the pool finish the jobs it accepted
	cancel()
	<-consumed
	rewriteWorker.Stop()

	log.Info().Msg("Rewrite worker exited")
}
