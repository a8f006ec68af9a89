package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinic-records/config"
	"clinic-records/consumer"
	"clinic-records/handlers"
	"clinic-records/middleware"
	"clinic-records/models"
	"clinic-records/monitoring"
	"clinic-records/utils"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "clinic-records"

func main() {
	cfg := config.Load()

	logger, err := utils.NewLogger(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.Sentry.DSN != "" {
		if err := utils.InitSentry(cfg.Sentry.DSN, cfg.Sentry.Environment, cfg.Sentry.Release); err != nil {
			logger.Warn("Sentry initialization failed", zap.Error(err))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	monitoring.Init()
	if cfg.Sentry.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := models.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	repo := models.NewRepository(db)
	defer repo.Close()

	services := handlers.Services{
		Repo:     repo,
		CacheTTL: cfg.CacheTTL,
		Logger:   logger,
	}

	// Пытаемся подключиться к Redis с ретраями
	if cfg.Redis.Addr != "" {
		services.Redis = connectRedis(cfg, logger)
		defer services.Redis.Close()
	}

	if cfg.KafkaBroker != "" {
		producer, err := utils.NewKafkaProducer(cfg.KafkaBroker)
		if err != nil {
			logger.Warn("Kafka unavailable, record events disabled", zap.Error(err))
		} else {
			defer producer.Close()
			services.Events = handlers.NewEventPublisher(producer, logger)
			defer services.Events.Close()
		}
	}

	if cfg.ElasticsearchURL != "" {
		es, err := utils.NewElasticsearchClient(cfg.ElasticsearchURL)
		if err != nil {
			logger.Warn("Elasticsearch unavailable, suggestions disabled", zap.Error(err))
		} else {
			services.Search = es
			defer es.Close()
		}
	}

	switch {
	case cfg.StaticToken != "":
		logger.Warn("Using the static development session token")
		services.Sessions = middleware.StaticToken(cfg.StaticToken)
	case services.Redis != nil:
		services.Sessions = middleware.NewRedisSessions(services.Redis)
	default:
		logger.Fatal("No session verifier: set REDIS_HOST or AUTH_STATIC_TOKEN")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if services.Events != nil && services.Search != nil {
		indexer := consumer.NewRecordConsumer(cfg.KafkaBroker, services.Search, logger)
		indexer.Start(ctx)
		defer indexer.Stop()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server is running", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

func connectRedis(cfg *config.Config, logger *zap.Logger) utils.RedisClient {
	const maxRetries = 5
	const retryDelay = 3 * time.Second

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		client, err := utils.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password)
		if err == nil {
			return client
		}
		lastErr = err
		logger.Warn("Failed to connect to Redis", zap.Int("attempt", i+1), zap.Error(err))
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	logger.Fatal("Failed to initialize Redis", zap.Int("attempts", maxRetries), zap.Error(lastErr))
	return nil
}
