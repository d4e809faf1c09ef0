package service_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SergeiKhy/lead-attribution/internal/geoip"
	"github.com/SergeiKhy/lead-attribution/internal/service"
	"github.com/SergeiKhy/lead-attribution/internal/service/mocks"
	"github.com/SergeiKhy/lead-attribution/internal/token"
)

type redirectEnv struct {
	service   service.RedirectService
	clicks    *mocks.MockClickRepository
	campaigns *mocks.MockCampaignRepository
	sessions  *mocks.MockSessionRepository
	geo       *mocks.MockGeoIPClient
	capi      *mocks.MockCAPIClient
}

func setupRedirect() *redirectEnv {
	clicks := mocks.NewMockClickRepository()
	campaigns := mocks.NewMockCampaignRepository()
	sessions := mocks.NewMockSessionRepository()
	geo := mocks.NewMockGeoIPClient()
	capiClient := mocks.NewMockCAPIClient()
	logger, _ := zap.NewDevelopment()

	svc := service.NewRedirectService(
		campaigns, clicks, sessions,
		geo, capiClient, testAttrConfig, logger,
	)

	return &redirectEnv{
		service:   svc,
		clicks:    clicks,
		campaigns: campaigns,
		sessions:  sessions,
		geo:       geo,
		capi:      capiClient,
	}
}

func redirectInput(campaignID string) *service.RedirectInput {
	return &service.RedirectInput{
		CampaignID: campaignID,
		UTMSource:  "insta",
		UTMMedium:  "ad",
		IPAddress:  "203.0.113.10",
		UserAgent:  "Mozilla/5.0",
		SourceURL:  "https://landing.example.com/promo",
	}
}

// TestRedirect_RecordsClickAndBuildsDeepLink: базовый сценарий перехода
func TestRedirect_RecordsClickAndBuildsDeepLink(t *testing.T) {
	env := setupRedirect()
	ctx := context.Background()

	campaign := testCampaign("camp-1", "user-1")
	campaign.WhatsAppNumber = "5585988887777"
	campaign.CustomMessage = "Quero saber mais"
	env.campaigns.Add(campaign)

	deepLink, err := env.service.ProcessRedirect(ctx, redirectInput("camp-1"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(deepLink, "https://api.whatsapp.com/send?phone=5585988887777&text="))

	// Текст содержит невидимый токен перед видимым сообщением
	parsed, err := url.Parse(deepLink)
	require.NoError(t, err)
	text := parsed.Query().Get("text")
	code, ok := token.Decode(text)
	require.True(t, ok)
	assert.Len(t, code, token.CodeLength)
	assert.Equal(t, "Quero saber mais", token.Strip(text))

	// Клик записан: токен диплинка находится по базе
	click, err := env.clicks.GetUnconvertedByToken(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "insta", click.UTMSource)
	assert.Equal(t, "ad", click.UTMMedium)
	assert.Equal(t, "camp-1", click.CampaignID)
	assert.False(t, click.Converted)
}

// TestRedirect_DefaultGreeting: без кастомного сообщения берётся дефолтное
func TestRedirect_DefaultGreeting(t *testing.T) {
	env := setupRedirect()
	ctx := context.Background()

	campaign := testCampaign("camp-1", "user-1")
	campaign.WhatsAppNumber = "5585988887777"
	env.campaigns.Add(campaign)

	deepLink, err := env.service.ProcessRedirect(ctx, redirectInput("camp-1"))
	require.NoError(t, err)

	parsed, err := url.Parse(deepLink)
	require.NoError(t, err)
	assert.Equal(t, testAttrConfig.DefaultGreeting, token.Strip(parsed.Query().Get("text")))
}

// TestRedirect_UTMDefaultsFromCampaign: пустые query-параметры добираются
// из дефолтов кампании
func TestRedirect_UTMDefaultsFromCampaign(t *testing.T) {
	env := setupRedirect()
	ctx := context.Background()

	campaign := testCampaign("camp-1", "user-1")
	env.campaigns.Add(campaign)

	input := redirectInput("camp-1")
	input.UTMSource = "" // кампания подставит facebook

	_, err := env.service.ProcessRedirect(ctx, input)
	require.NoError(t, err)

	sessions, err := env.sessions.GetValidSessions(ctx, testAttrConfig.PendingSessionWindow)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "facebook", sessions[0].UTMSource)
	assert.Equal(t, "ad", sessions[0].UTMMedium)
}

// TestRedirect_GeoLookupApplied: геоданные попадают в клик
func TestRedirect_GeoLookupApplied(t *testing.T) {
	env := setupRedirect()
	ctx := context.Background()

	env.campaigns.Add(testCampaign("camp-1", "user-1"))
	env.geo.Location = &geoip.Location{City: "Fortaleza", Region: "Ceará", Country: "Brazil", ISP: "Vivo"}

	deepLink, err := env.service.ProcessRedirect(ctx, redirectInput("camp-1"))
	require.NoError(t, err)

	parsed, _ := url.Parse(deepLink)
	code, _ := token.Decode(parsed.Query().Get("text"))
	click, err := env.clicks.GetUnconvertedByToken(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "Fortaleza", click.City)
	assert.Equal(t, "Brazil", click.Country)
}

// TestRedirect_GeoFailureNonFatal: недоступный geoip не ломает переход
func TestRedirect_GeoFailureNonFatal(t *testing.T) {
	env := setupRedirect()
	ctx := context.Background()

	env.campaigns.Add(testCampaign("camp-1", "user-1"))
	env.geo.Err = errors.New("timeout")

	deepLink, err := env.service.ProcessRedirect(ctx, redirectInput("camp-1"))

	require.NoError(t, err)
	assert.NotEmpty(t, deepLink)
}

// TestRedirect_ConversionsEvent: при включённом CAPI уходит PageView
func TestRedirect_ConversionsEvent(t *testing.T) {
	env := setupRedirect()
	ctx := context.Background()

	campaign := testCampaign("camp-1", "user-1")
	campaign.ConversionAPIEnabled = true
	campaign.PixelID = "px-1"
	campaign.AccessToken = "secret"
	env.campaigns.Add(campaign)

	_, err := env.service.ProcessRedirect(ctx, redirectInput("camp-1"))
	require.NoError(t, err)

	require.Len(t, env.capi.Events, 1)
	assert.Equal(t, "PageView", env.capi.Events[0].EventName)
	assert.Equal(t, "px-1", env.capi.Events[0].PixelID)
}

// TestRedirect_ConversionsFailureNonFatal: сбой CAPI не ломает редирект
func TestRedirect_ConversionsFailureNonFatal(t *testing.T) {
	env := setupRedirect()
	ctx := context.Background()

	campaign := testCampaign("camp-1", "user-1")
	campaign.ConversionAPIEnabled = true
	campaign.PixelID = "px-1"
	campaign.AccessToken = "secret"
	env.campaigns.Add(campaign)
	env.capi.Err = errors.New("graph api down")

	deepLink, err := env.service.ProcessRedirect(ctx, redirectInput("camp-1"))

	require.NoError(t, err)
	assert.NotEmpty(t, deepLink)
}

// TestRedirect_UnknownCampaign возвращает типизированную ошибку
func TestRedirect_UnknownCampaign(t *testing.T) {
	env := setupRedirect()

	_, err := env.service.ProcessRedirect(context.Background(), redirectInput("missing"))

	assert.ErrorIs(t, err, service.ErrCampaignMissing)
}

// TestRedirect_InactiveCampaign: остановленная кампания не редиректит
func TestRedirect_InactiveCampaign(t *testing.T) {
	env := setupRedirect()

	campaign := testCampaign("camp-1", "user-1")
	campaign.Active = false
	env.campaigns.Add(campaign)

	_, err := env.service.ProcessRedirect(context.Background(), redirectInput("camp-1"))

	assert.ErrorIs(t, err, service.ErrCampaignInactive)
}
