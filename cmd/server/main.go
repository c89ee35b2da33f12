package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nexora-labs/instgate/internal/config"
	"github.com/nexora-labs/instgate/internal/credstore"
	"github.com/nexora-labs/instgate/internal/executor"
	"github.com/nexora-labs/instgate/internal/handler"
	"github.com/nexora-labs/instgate/internal/pkg/logger"
	"github.com/nexora-labs/instgate/internal/ratelimit"
	"github.com/nexora-labs/instgate/internal/repository"
	"github.com/nexora-labs/instgate/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)

	// Persistence: Postgres when configured, in-memory otherwise.
	var (
		clientRepo  service.ClientRepo
		credRepo    credstore.CredentialRepo
		feeRepo     service.FeeTierRepo
		channelRepo service.SupportChannelRepo
	)
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		logger.Info("connected to PostgreSQL")
		clientRepo = repository.NewPostgresClientRepo(db)
		credRepo = repository.NewPostgresCredentialRepo(db)
		feeRepo = repository.NewPostgresFeeTierRepo(db)
		channelRepo = repository.NewPostgresSupportChannelRepo(db)
	} else {
		logger.Warn("no database configured, client records are in-memory only")
		clientRepo = repository.NewMemoryClientRepo()
		credRepo = repository.NewMemoryCredentialRepo()
		feeRepo = repository.NewMemoryFeeTierRepo()
		channelRepo = repository.NewMemorySupportChannelRepo()
	}

	// Volume accounting: Redis when configured, in-memory otherwise.
	var volumes repository.VolumeStore
	var redisVolumes *repository.RedisVolumeStore
	if cfg.Redis.Addr != "" {
		redisVolumes, err = repository.NewRedisVolumeStore(cfg)
		if err != nil {
			logger.Error("failed to connect to Redis, falling back to memory", "error", err)
		} else {
			logger.Info("connected to Redis")
			volumes = redisVolumes
		}
	}
	if volumes == nil {
		volumes = repository.NewMemoryVolumeStore()
	}

	// Core services.
	creds := credstore.New(credRepo)
	fees := service.NewFeeEngine(feeRepo)
	limiter := ratelimit.New(time.Duration(cfg.Gateway.SweepIntervalSeconds) * time.Second)

	exec := executor.NewHTTPExecutor(cfg)

	var stream *executor.ReportStream
	if cfg.Executor.StreamEnabled && cfg.Executor.StreamURL != "" {
		stream = executor.NewReportStream(cfg.Executor.StreamURL, volumes)
		stream.Start()
	}

	onboarding := service.NewOnboardingService(clientRepo, channelRepo, creds, fees)
	trading := service.NewTradingService(exec, fees, volumes, cfg.Gateway.ChunkSize)
	analytics := service.NewAnalyticsService(clientRepo, volumes, fees, nil)

	instHandler := handler.NewInstitutionalHandler(onboarding, trading, analytics, creds)
	router := handler.NewRouter(cfg, instHandler, creds, clientRepo, limiter)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Info("instgate started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	limiter.Stop()
	if stream != nil {
		stream.Stop()
	}
	if redisVolumes != nil {
		defer redisVolumes.Close()
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	logger.Info("server exiting")
}
