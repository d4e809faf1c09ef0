package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SergeiKhy/lead-attribution/internal/middleware"
	"github.com/SergeiKhy/lead-attribution/internal/service"
)

func NewRouter(
	redirectService service.RedirectService,
	messageService service.MessageService,
	rateLimiter *middleware.RateLimiter,
	webhookAuth gin.HandlerFunc,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.Default()

	// Middleware для логгирования
	router.Use(func(c *gin.Context) {
		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("ip", c.ClientIP()),
		)
		c.Next()
	})

	redirectHandler := NewRedirectHandler(redirectService, logger)
	webhookHandler := NewWebhookHandler(messageService, logger)

	// API v.1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", HealthCheck)
	}

	// Редирект по рекламной ссылке: rate limit по IP посетителя
	router.GET("/ir", rateLimiter.Middleware(), redirectHandler.Redirect)

	// Вебхук провайдера: rate limit по имени инстанса, затем ключ
	webhook := router.Group("/webhook")
	webhook.Use(rateLimiter.MiddlewareWithKey(instanceKey))
	if webhookAuth != nil {
		webhook.Use(webhookAuth)
	}
	webhook.POST("/evolution", webhookHandler.HandleEvolution)

	return router
}

// instanceKey достаёт имя инстанса из query для rate limiting.
// Пустой ключ деградирует в лимит по IP.
func instanceKey(c *gin.Context) string {
	return c.Query("instance")
}
