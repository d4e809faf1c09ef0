package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SergeiKhy/lead-attribution/internal/capi"
	"github.com/SergeiKhy/lead-attribution/internal/config"
	"github.com/SergeiKhy/lead-attribution/internal/evolution"
	"github.com/SergeiKhy/lead-attribution/internal/geoip"
	"github.com/SergeiKhy/lead-attribution/internal/handler"
	"github.com/SergeiKhy/lead-attribution/internal/middleware"
	"github.com/SergeiKhy/lead-attribution/internal/repository"
	"github.com/SergeiKhy/lead-attribution/internal/service"
)

func main() {
	// Загрузка конфига
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Подключение к БД (postgres)
	db, err := repository.NewPostgresDB(cfg.DB)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	// Подключение к Redis
	redis, err := repository.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()
	logger.Info("Connected to Redis")

	// Инициализация репозиториев
	clickRepo := repository.NewClickRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	channelRepo := repository.NewChannelRepository(db)
	leadRepo := repository.NewLeadRepository(db)
	pendingRepo := repository.NewPendingLeadRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	cacheRepo := repository.NewCacheRepository(redis)

	// Внешние клиенты
	geoClient := geoip.NewClient(cfg.GeoIP)
	capiClient := capi.NewClient(cfg.Conversions)
	evolutionClient := evolution.NewClient(cfg.Evolution)

	// Инициализация сервисов
	redirectService := service.NewRedirectService(
		campaignRepo, clickRepo, sessionRepo,
		geoClient, capiClient, cfg.Attribution, logger,
	)
	attributionService := service.NewAttributionService(
		clickRepo, campaignRepo, channelRepo, cacheRepo,
		cfg.Attribution, cfg.Cache, logger,
	)
	converterService := service.NewConverterService(
		pendingRepo, leadRepo, sessionRepo, cfg.Attribution, logger,
	)
	messageService := service.NewMessageService(
		attributionService, converterService,
		leadRepo, messageRepo, sessionRepo, campaignRepo,
		evolutionClient, capiClient, logger,
	)

	// Инициализация middleware
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		CleanupInterval:   time.Minute,
	}, logger)

	var webhookAuth gin.HandlerFunc
	if len(cfg.Auth.APIKeys) > 0 {
		webhookAuth = middleware.RequireAPIKey(cfg.Auth.APIKeys)
		logger.Info("Webhook authentication enabled", zap.Int("keys_count", len(cfg.Auth.APIKeys)))
	}

	// Настройка роутера
	router := handler.NewRouter(redirectService, messageService, rateLimiter, webhookAuth, logger)

	// Запуск сервера
	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск в горутине
	go func() {
		logger.Info("Server starting", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
