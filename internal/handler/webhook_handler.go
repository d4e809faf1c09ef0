package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SergeiKhy/lead-attribution/internal/models"
	"github.com/SergeiKhy/lead-attribution/internal/security"
	"github.com/SergeiKhy/lead-attribution/internal/service"
)

type WebhookHandler struct {
	service service.MessageService
	logger  *zap.Logger
}

func NewWebhookHandler(messageService service.MessageService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: messageService,
		logger:  logger,
	}
}

// HandleEvolution принимает вебхуки Evolution API. Порядок проверок
// фиксирован: форма payload → санитизация → группы → маршрутизация.
// Провайдеру всегда отвечаем 200, кроме явно некорректного запроса.
func (h *WebhookHandler) HandleEvolution(c *gin.Context) {
	var event models.WebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_payload",
			Message: "Некорректное тело вебхука",
		})
		return
	}

	// Статусы доставки привязываются по внешнему id сообщения
	if event.Event == models.EventMessagesUpdate {
		h.handleStatusUpdate(c, &event)
		return
	}

	// Интересует только сообщение; остальные события подтверждаем молча
	if event.Event != models.EventMessagesUpsert || event.Data == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	// Групповые чаты не трекаем
	if security.IsGroupJID(event.Data.Key.RemoteJID) {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	msg, err := h.sanitize(&event)
	if err != nil {
		// Подделка имени инстанса — попытка перехватить чужой канал
		severity := security.SeverityMedium
		if errors.Is(err, security.ErrInvalidInstance) {
			severity = security.SeverityHigh
		}
		security.LogEvent(h.logger, severity, "webhook_rejected",
			zap.String("instance", event.Instance),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_payload",
			Message: err.Error(),
		})
		return
	}

	if msg.FromMe {
		err = h.service.HandleOutbound(c.Request.Context(), msg)
	} else {
		err = h.service.HandleInbound(c.Request.Context(), msg)
	}

	// Сбой обработки не транслируем провайдеру: не-2xx ответ запускает
	// у него ретраи, а повторная доставка сообщения ничего не исправит.
	if err != nil {
		h.logger.Error("webhook processing failed",
			zap.String("instance", msg.InstanceName),
			zap.Bool("from_me", msg.FromMe),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleStatusUpdate обновляет статус доставки журналированного сообщения.
func (h *WebhookHandler) handleStatusUpdate(c *gin.Context, event *models.WebhookEvent) {
	if event.Data == nil || event.Data.Key.ID == "" || event.Data.Status == "" {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if err := h.service.HandleStatusUpdate(c.Request.Context(), event.Data.Key.ID, event.Data.Status); err != nil {
		h.logger.Error("delivery status update failed",
			zap.String("external_id", event.Data.Key.ID),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// sanitize переводит сырое событие в проверенный DTO.
func (h *WebhookHandler) sanitize(event *models.WebhookEvent) (*models.InboundMessage, error) {
	phone, err := security.SanitizePhone(event.Data.Key.RemoteJID)
	if err != nil {
		return nil, err
	}

	text, err := security.SanitizeMessage(event.Data.Text())
	if err != nil {
		return nil, err
	}

	instance, err := security.SanitizeInstance(event.Instance)
	if err != nil {
		return nil, err
	}

	return &models.InboundMessage{
		Phone:        phone,
		Text:         text,
		ExternalID:   event.Data.Key.ID,
		Status:       event.Data.Status,
		ContactName:  event.Data.PushName,
		InstanceName: instance,
		FromMe:       event.Data.Key.FromMe,
	}, nil
}
