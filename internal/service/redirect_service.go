package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/SergeiKhy/lead-attribution/internal/capi"
	"github.com/SergeiKhy/lead-attribution/internal/config"
	"github.com/SergeiKhy/lead-attribution/internal/geoip"
	"github.com/SergeiKhy/lead-attribution/internal/models"
	"github.com/SergeiKhy/lead-attribution/internal/repository"
	"github.com/SergeiKhy/lead-attribution/internal/token"
)

// Ошибки сервиса
var (
	ErrCampaignInactive = errors.New("кампания неактивна")
	ErrCampaignMissing  = errors.New("кампания не найдена")
)

// RedirectInput — параметры перехода, собранные хэндлером из query-строки.
type RedirectInput struct {
	CampaignID         string
	Phone              string
	UTMSource          string
	UTMMedium          string
	UTMCampaign        string
	UTMContent         string
	UTMTerm            string
	FBClid             string
	GClid              string
	CTWAClid           string
	FacebookAdID       string
	FacebookAdsetID    string
	FacebookCampaignID string
	SourceURL          string
	SourceID           string
	IPAddress          string
	UserAgent          string
}

// RedirectService записывает клик и строит WhatsApp-диплинк с невидимым токеном.
type RedirectService interface {
	ProcessRedirect(ctx context.Context, input *RedirectInput) (string, error)
}

type redirectService struct {
	campaignRepo repository.CampaignRepository
	clickRepo    repository.ClickRepository
	sessionRepo  repository.SessionRepository
	geo          geoip.Client
	conversions  capi.Client
	cfg          config.AttributionConfig
	logger       *zap.Logger
}

func NewRedirectService(
	campaignRepo repository.CampaignRepository,
	clickRepo repository.ClickRepository,
	sessionRepo repository.SessionRepository,
	geo geoip.Client,
	conversions capi.Client,
	cfg config.AttributionConfig,
	logger *zap.Logger,
) RedirectService {
	return &redirectService{
		campaignRepo: campaignRepo,
		clickRepo:    clickRepo,
		sessionRepo:  sessionRepo,
		geo:          geo,
		conversions:  conversions,
		cfg:          cfg,
		logger:       logger,
	}
}

// ProcessRedirect обрабатывает переход: запись клика, геолокация,
// conversions-событие и итоговый диплинк. Сбой записи клика не ломает
// редирект — посетитель важнее статистики.
func (s *redirectService) ProcessRedirect(ctx context.Context, input *RedirectInput) (string, error) {
	campaign, err := s.getCampaign(ctx, input.CampaignID)
	if err != nil {
		return "", err
	}
	if !campaign.Active {
		return "", ErrCampaignInactive
	}

	code, err := s.generateTrackingCode()
	if err != nil {
		return "", fmt.Errorf("failed to generate tracking code: %w", err)
	}

	click := s.buildClick(campaign, input, code)

	// Геолокация best-effort: короткий таймаут, ошибка не фатальна
	if input.IPAddress != "" {
		if loc, err := s.geo.Lookup(ctx, input.IPAddress); err != nil {
			s.logger.Debug("geoip lookup failed", zap.String("ip", input.IPAddress), zap.Error(err))
		} else {
			click.City = loc.City
			click.Region = loc.Region
			click.Country = loc.Country
			click.ISP = loc.ISP
		}
	}

	if err := s.clickRepo.Create(ctx, click); err != nil {
		s.logger.Error("failed to record click",
			zap.String("campaign_id", campaign.ID),
			zap.Error(err),
		)
	} else {
		s.saveSession(ctx, click)
	}

	if campaign.ConversionAPIEnabled && campaign.PixelID != "" && campaign.AccessToken != "" {
		event := capi.Event{
			PixelID:     campaign.PixelID,
			AccessToken: campaign.AccessToken,
			EventName:   capi.EventPageView,
			EventTime:   time.Now(),
			SourceURL:   input.SourceURL,
			ClientIP:    input.IPAddress,
			UserAgent:   input.UserAgent,
			FBClid:      input.FBClid,
		}
		if err := s.conversions.Send(ctx, event); err != nil {
			s.logger.Warn("conversions event failed",
				zap.String("campaign_id", campaign.ID),
				zap.Error(err),
			)
		}
	}

	return s.buildDeepLink(campaign, code), nil
}

func (s *redirectService) getCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	if id == "" {
		return nil, ErrCampaignMissing
	}

	campaign, err := s.campaignRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return nil, ErrCampaignMissing
		}
		return nil, err
	}

	return campaign, nil
}

func (s *redirectService) buildClick(campaign *models.Campaign, input *RedirectInput, code string) *models.Click {
	utm := models.UTMSet{
		Source:   input.UTMSource,
		Medium:   input.UTMMedium,
		Campaign: input.UTMCampaign,
		Content:  input.UTMContent,
		Term:     input.UTMTerm,
	}
	// Пустые параметры берём из дефолтов кампании
	utm = utm.Merge(campaign.UTM())

	return &models.Click{
		TrackingID:         code,
		Token:              code,
		CampaignID:         campaign.ID,
		Phone:              input.Phone,
		UTMSource:          utm.Source,
		UTMMedium:          utm.Medium,
		UTMCampaign:        utm.Campaign,
		UTMContent:         utm.Content,
		UTMTerm:            utm.Term,
		FBClid:             input.FBClid,
		GClid:              input.GClid,
		CTWAClid:           input.CTWAClid,
		FacebookAdID:       input.FacebookAdID,
		FacebookAdsetID:    input.FacebookAdsetID,
		FacebookCampaignID: input.FacebookCampaignID,
		IPAddress:          input.IPAddress,
		UserAgent:          input.UserAgent,
		SourceURL:          input.SourceURL,
		SourceID:           input.SourceID,
		ClickedAt:          time.Now(),
	}
}

// saveSession сохраняет UTM-сессию для низкоуровневой корреляции
// отложенных заявок.
func (s *redirectService) saveSession(ctx context.Context, click *models.Click) {
	session := &models.UTMSession{
		SessionID:   click.TrackingID,
		CampaignID:  click.CampaignID,
		UTMSource:   click.UTMSource,
		UTMMedium:   click.UTMMedium,
		UTMCampaign: click.UTMCampaign,
		UTMContent:  click.UTMContent,
		UTMTerm:     click.UTMTerm,
		CreatedAt:   click.ClickedAt,
		ExpiresAt:   click.ClickedAt.Add(s.cfg.PendingSessionWindow),
	}

	if err := s.sessionRepo.SaveSession(ctx, session); err != nil {
		s.logger.Warn("failed to save utm session", zap.Error(err))
	}
}

func (s *redirectService) buildDeepLink(campaign *models.Campaign, code string) string {
	message := campaign.CustomMessage
	if message == "" {
		message = s.cfg.DefaultGreeting
	}

	// Невидимый токен перед видимым текстом
	text := token.Encode(code) + message

	return fmt.Sprintf(
		"https://api.whatsapp.com/send?phone=%s&text=%s",
		campaign.WhatsAppNumber,
		url.QueryEscape(text),
	)
}

// generateTrackingCode генерирует 6-символьный код из алфавита,
// который гарантированно выдерживает цикл encode/decode.
func (s *redirectService) generateTrackingCode() (string, error) {
	result := make([]byte, token.CodeLength)
	for i := 0; i < token.CodeLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(token.CodeAlphabet))))
		if err != nil {
			return "", err
		}
		result[i] = token.CodeAlphabet[num.Int64()]
	}
	return string(result), nil
}
