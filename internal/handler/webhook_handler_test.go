package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/SergeiKhy/lead-attribution/internal/config"
	"github.com/SergeiKhy/lead-attribution/internal/handler"
	"github.com/SergeiKhy/lead-attribution/internal/middleware"
	"github.com/SergeiKhy/lead-attribution/internal/models"
	"github.com/SergeiKhy/lead-attribution/internal/service"
	"github.com/SergeiKhy/lead-attribution/internal/service/mocks"
	"github.com/SergeiKhy/lead-attribution/internal/token"
)

var testCacheConfig = config.CacheConfig{
	ChannelTTL:  5 * time.Minute,
	CampaignTTL: time.Minute,
}

type webhookEnv struct {
	router    *gin.Engine
	leads     *mocks.MockLeadRepository
	messages  *mocks.MockMessageRepository
	clicks    *mocks.MockClickRepository
	campaigns *mocks.MockCampaignRepository
}

func setupWebhookRouter(t *testing.T, rps float64, burst int) *webhookEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.AttributionConfig{
		RecentClickWindow:     30 * time.Minute,
		PendingWindow:         time.Hour,
		PendingCampaignWindow: 24 * time.Hour,
		PendingSessionWindow:  7 * 24 * time.Hour,
		DefaultGreeting:       "Olá!",
	}

	clicks := mocks.NewMockClickRepository()
	campaigns := mocks.NewMockCampaignRepository()
	channels := mocks.NewMockChannelRepository()
	cache := mocks.NewMockCacheRepository()
	leads := mocks.NewMockLeadRepository()
	pendings := mocks.NewMockPendingLeadRepository()
	messages := mocks.NewMockMessageRepository()
	sessions := mocks.NewMockSessionRepository()
	logger := zap.NewNop()

	attribution := service.NewAttributionService(
		clicks, campaigns, channels, cache, cfg, testCacheConfig, logger,
	)
	converter := service.NewConverterService(pendings, leads, sessions, cfg, logger)
	messageService := service.NewMessageService(
		attribution, converter, leads, messages, sessions, campaigns,
		mocks.NewMockEvolutionClient(), mocks.NewMockCAPIClient(), logger,
	)
	redirectService := service.NewRedirectService(
		campaigns, clicks, sessions,
		mocks.NewMockGeoIPClient(), mocks.NewMockCAPIClient(), cfg, logger,
	)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: rps,
		BurstSize:         burst,
		CleanupInterval:   time.Minute,
	}, logger)

	router := handler.NewRouter(redirectService, messageService, rateLimiter, nil, logger)

	return &webhookEnv{
		router:    router,
		leads:     leads,
		messages:  messages,
		clicks:    clicks,
		campaigns: campaigns,
	}
}

func webhookPayload(remoteJID, text string, fromMe bool) []byte {
	event := models.WebhookEvent{
		Event:    models.EventMessagesUpsert,
		Instance: "main",
		Data: &models.MessageData{
			Key: models.MessageKey{
				RemoteJID: remoteJID,
				FromMe:    fromMe,
				ID:        "msg-1",
			},
			Message: models.MessageContent{
				Conversation: text,
			},
			PushName: "Maria",
		},
	}
	body, _ := json.Marshal(event)
	return body
}

func postWebhook(router *gin.Engine, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/webhook/evolution", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

// TestWebhook_InboundMessage_CreatesLead: happy path вебхука
func TestWebhook_InboundMessage_CreatesLead(t *testing.T) {
	env := setupWebhookRouter(t, 100, 100)

	w := postWebhook(env.router, webhookPayload("5585999998888@s.whatsapp.net", "oi, vi o anúncio", false))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, env.leads.All(), 1)
}

// TestWebhook_MalformedPayload отклоняется с 400
func TestWebhook_MalformedPayload(t *testing.T) {
	env := setupWebhookRouter(t, 100, 100)

	w := postWebhook(env.router, []byte(`{not json`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestWebhook_InvalidPhone: номер из мусора отклоняется с 400
func TestWebhook_InvalidPhone(t *testing.T) {
	env := setupWebhookRouter(t, 100, 100)

	w := postWebhook(env.router, webhookPayload("abc@s.whatsapp.net", "oi", false))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.leads.All())
}

// TestWebhook_GroupMessage_Dropped: группы подтверждаются 200 и не обрабатываются
func TestWebhook_GroupMessage_Dropped(t *testing.T) {
	env := setupWebhookRouter(t, 100, 100)

	w := postWebhook(env.router, webhookPayload("123456789-987654@g.us", "oi", false))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, env.leads.All())
}

// TestWebhook_OtherEvent_Ignored: не-messages.upsert события подтверждаются молча
func TestWebhook_OtherEvent_Ignored(t *testing.T) {
	env := setupWebhookRouter(t, 100, 100)

	event := models.WebhookEvent{Event: "connection.update", Instance: "main"}
	body, _ := json.Marshal(event)

	w := postWebhook(env.router, body)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, env.leads.All())
}

// TestWebhook_RateLimited: превышение лимита отвечает 429
func TestWebhook_RateLimited(t *testing.T) {
	env := setupWebhookRouter(t, 1, 2)

	body := webhookPayload("5585999998888@s.whatsapp.net", "oi", false)
	postWebhook(env.router, body)
	postWebhook(env.router, body)

	w := postWebhook(env.router, body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

// TestWebhook_OutboundWithoutLead: эхо без лида подтверждается 200
func TestWebhook_OutboundWithoutLead(t *testing.T) {
	env := setupWebhookRouter(t, 100, 100)

	w := postWebhook(env.router, webhookPayload("5585999998888@s.whatsapp.net", "resposta do vendedor", true))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, env.leads.All())
}

// failingMessageService имитирует отказ хранилища на пути обработки
type failingMessageService struct{}

func (failingMessageService) HandleInbound(ctx context.Context, msg *models.InboundMessage) error {
	return errors.New("failed to upsert lead: connection refused")
}

func (failingMessageService) HandleOutbound(ctx context.Context, msg *models.InboundMessage) error {
	return errors.New("failed to append lead message: connection refused")
}

func (failingMessageService) HandleStatusUpdate(ctx context.Context, externalID, status string) error {
	return errors.New("failed to update message status: connection refused")
}

// TestWebhook_PersistenceFailure_StillAcked: сбой записи подтверждается 200,
// иначе провайдер зациклится на повторных доставках того же сообщения
func TestWebhook_PersistenceFailure_StillAcked(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	cfg := config.AttributionConfig{DefaultGreeting: "Olá!"}
	redirectService := service.NewRedirectService(
		mocks.NewMockCampaignRepository(), mocks.NewMockClickRepository(),
		mocks.NewMockSessionRepository(),
		mocks.NewMockGeoIPClient(), mocks.NewMockCAPIClient(), cfg, logger,
	)
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: 100,
		BurstSize:         100,
		CleanupInterval:   time.Minute,
	}, logger)
	router := handler.NewRouter(redirectService, failingMessageService{}, rateLimiter, nil, logger)

	w := postWebhook(router, webhookPayload("5585999998888@s.whatsapp.net", "oi", false))

	assert.Equal(t, http.StatusOK, w.Code)
}

func statusUpdatePayload(externalID, status string) []byte {
	event := models.WebhookEvent{
		Event:    models.EventMessagesUpdate,
		Instance: "main",
		Data: &models.MessageData{
			Key: models.MessageKey{
				RemoteJID: "5585999998888@s.whatsapp.net",
				ID:        externalID,
			},
			Status: status,
		},
	}
	body, _ := json.Marshal(event)
	return body
}

// TestWebhook_StatusUpdate: messages.update проставляет статус доставки
// журналированного сообщения по внешнему id
func TestWebhook_StatusUpdate(t *testing.T) {
	env := setupWebhookRouter(t, 100, 100)

	postWebhook(env.router, webhookPayload("5585999998888@s.whatsapp.net", "oi", false))
	require.Len(t, env.messages.All(), 1)

	w := postWebhook(env.router, statusUpdatePayload("msg-1", "READ"))

	assert.Equal(t, http.StatusOK, w.Code)
	messages := env.messages.All()
	require.Len(t, messages, 1)
	assert.Equal(t, "READ", messages[0].DeliveryStatus)
}

// TestWebhook_StatusUpdate_WithoutID: неполное событие подтверждается молча
func TestWebhook_StatusUpdate_WithoutID(t *testing.T) {
	env := setupWebhookRouter(t, 100, 100)

	w := postWebhook(env.router, statusUpdatePayload("", "READ"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, env.messages.All())
}

// TestWebhook_InvalidInstance_HighSeverity: подделка имени инстанса —
// событие безопасности высокой серьёзности
func TestWebhook_InvalidInstance_HighSeverity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)

	h := handler.NewWebhookHandler(failingMessageService{}, zap.New(core))

	event := models.WebhookEvent{
		Event:    models.EventMessagesUpsert,
		Instance: "../etc/passwd",
		Data: &models.MessageData{
			Key:     models.MessageKey{RemoteJID: "5585999998888@s.whatsapp.net", ID: "msg-1"},
			Message: models.MessageContent{Conversation: "oi"},
		},
	}
	body, _ := json.Marshal(event)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("POST", "/webhook/evolution", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	h.HandleEvolution(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	entries := logs.FilterField(zap.String("severity", "high")).All()
	require.Len(t, entries, 1)
}

// TestRedirect_RefererFallback: без source_url источником клика становится
// страница из заголовка Referer
func TestRedirect_RefererFallback(t *testing.T) {
	env := setupWebhookRouter(t, 100, 100)

	env.campaigns.Add(&models.Campaign{
		ID:           "camp-1",
		UserID:       "user-1",
		Name:         "Promo",
		Active:       true,
		RedirectType: "whatsapp",
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/ir?id=camp-1", nil)
	req.Header.Set("Referer", "https://landing.example.com/promo")
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code)

	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	code, ok := token.Decode(location.Query().Get("text"))
	require.True(t, ok)

	click, err := env.clicks.GetUnconvertedByToken(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, "https://landing.example.com/promo", click.SourceURL)
}

// TestHealthCheck: liveness-проба отвечает именем сервиса
func TestHealthCheck(t *testing.T) {
	env := setupWebhookRouter(t, 100, 100)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/health", nil)
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "lead-attribution")
}
