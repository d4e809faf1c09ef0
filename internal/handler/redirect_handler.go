package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SergeiKhy/lead-attribution/internal/service"
)

type RedirectHandler struct {
	service service.RedirectService
	logger  *zap.Logger
}

func NewRedirectHandler(redirectService service.RedirectService, logger *zap.Logger) *RedirectHandler {
	return &RedirectHandler{
		service: redirectService,
		logger:  logger,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Redirect обрабатывает переход по рекламной ссылке: пишет клик и
// уводит посетителя в WhatsApp с невидимым токеном в тексте.
func (h *RedirectHandler) Redirect(c *gin.Context) {
	// Без явного source_url страницей-источником считается Referer
	sourceURL := c.Query("source_url")
	if sourceURL == "" {
		sourceURL = c.Request.Referer()
	}

	input := &service.RedirectInput{
		CampaignID:         c.Query("id"),
		Phone:              c.Query("phone"),
		UTMSource:          c.Query("utm_source"),
		UTMMedium:          c.Query("utm_medium"),
		UTMCampaign:        c.Query("utm_campaign"),
		UTMContent:         c.Query("utm_content"),
		UTMTerm:            c.Query("utm_term"),
		FBClid:             c.Query("fbclid"),
		GClid:              c.Query("gclid"),
		CTWAClid:           c.Query("ctwa_clid"),
		FacebookAdID:       c.Query("ad_id"),
		FacebookAdsetID:    c.Query("adset_id"),
		FacebookCampaignID: c.Query("campaign_id"),
		SourceURL:          sourceURL,
		SourceID:           c.Query("source_id"),
		IPAddress:          c.ClientIP(),
		UserAgent:          c.Request.UserAgent(),
	}

	deepLink, err := h.service.ProcessRedirect(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCampaignMissing):
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "campaign_not_found",
				Message: "Кампания не найдена",
			})
		case errors.Is(err, service.ErrCampaignInactive):
			c.JSON(http.StatusGone, ErrorResponse{
				Error:   "campaign_inactive",
				Message: "Кампания остановлена",
			})
		default:
			h.logger.Error("redirect failed",
				zap.String("campaign_id", input.CampaignID),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "internal_error",
				Message: "Не удалось обработать переход",
			})
		}
		return
	}

	c.Redirect(http.StatusFound, deepLink)
}
