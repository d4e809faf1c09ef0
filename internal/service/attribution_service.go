package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/SergeiKhy/lead-attribution/internal/config"
	"github.com/SergeiKhy/lead-attribution/internal/models"
	"github.com/SergeiKhy/lead-attribution/internal/repository"
	"github.com/SergeiKhy/lead-attribution/internal/security"
	"github.com/SergeiKhy/lead-attribution/internal/token"
)

// AttributionService сводит входящее сообщение к источнику: кампания,
// UTM-набор, владелец и метод трекинга. Resolve тотален — каскад всегда
// опускается до органики и никогда не возвращает ошибку наружу.
type AttributionService interface {
	Resolve(ctx context.Context, msg *models.InboundMessage) *models.Attribution
	ResolveOwner(ctx context.Context, instanceName string) string
	MarkConverted(ctx context.Context, click *models.Click, leadID string)
}

type attributionService struct {
	clickRepo    repository.ClickRepository
	campaignRepo repository.CampaignRepository
	channelRepo  repository.ChannelRepository
	cacheRepo    repository.CacheRepository
	cfg          config.AttributionConfig
	cacheCfg     config.CacheConfig
	strategies   []resolveStrategy
	logger       *zap.Logger
}

// resolveContext — разделяемое состояние одного прогона каскада.
type resolveContext struct {
	msg        *models.InboundMessage
	variations []string
	ownerID    string
}

// resolveStrategy — один ярус каскада. nil-результат без ошибки означает
// "ярус не сработал, пробуем следующий".
type resolveStrategy func(ctx context.Context, rc *resolveContext) (*models.Attribution, error)

func NewAttributionService(
	clickRepo repository.ClickRepository,
	campaignRepo repository.CampaignRepository,
	channelRepo repository.ChannelRepository,
	cacheRepo repository.CacheRepository,
	cfg config.AttributionConfig,
	cacheCfg config.CacheConfig,
	logger *zap.Logger,
) AttributionService {
	s := &attributionService{
		clickRepo:    clickRepo,
		campaignRepo: campaignRepo,
		channelRepo:  channelRepo,
		cacheRepo:    cacheRepo,
		cfg:          cfg,
		cacheCfg:     cacheCfg,
		logger:       logger,
	}

	// Порядок ярусов фиксирован: от самого достоверного к органике
	s.strategies = []resolveStrategy{
		s.resolveByToken,
		s.resolveByRecentClick,
		s.resolveByActiveCampaign,
	}

	return s
}

func (s *attributionService) Resolve(ctx context.Context, msg *models.InboundMessage) *models.Attribution {
	rc := &resolveContext{
		msg:        msg,
		variations: security.PhoneVariations(msg.Phone),
		ownerID:    s.ResolveOwner(ctx, msg.InstanceName),
	}

	for _, strategy := range s.strategies {
		attr, err := strategy(ctx, rc)
		if err != nil {
			s.logger.Warn("attribution tier failed",
				zap.String("phone", msg.Phone),
				zap.Error(err),
			)
			continue
		}
		if attr != nil {
			return attr
		}
	}

	return s.organicFallback(rc)
}

// MarkConverted помечает клик сконвертированным и привязывает лид.
// Единственный побочный эффект резолвинга; ошибка только логируется.
func (s *attributionService) MarkConverted(ctx context.Context, click *models.Click, leadID string) {
	if click == nil {
		return
	}

	if err := s.clickRepo.MarkConverted(ctx, click.ID, leadID); err != nil {
		if !errors.Is(err, repository.ErrClickNotFound) {
			s.logger.Error("failed to mark click converted",
				zap.Int64("click_id", click.ID),
				zap.String("lead_id", leadID),
				zap.Error(err),
			)
		}
	}
}

// Ярус 1: невидимый токен в тексте сообщения.
func (s *attributionService) resolveByToken(ctx context.Context, rc *resolveContext) (*models.Attribution, error) {
	code, ok := token.Decode(rc.msg.Text)
	if !ok {
		return nil, nil
	}

	click, err := s.clickRepo.GetUnconvertedByToken(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrClickNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return s.attributionFromClick(ctx, rc, click, models.TrackingMethodToken), nil
}

// Ярус 2: недавний неконвертированный клик по вариациям номера.
func (s *attributionService) resolveByRecentClick(ctx context.Context, rc *resolveContext) (*models.Attribution, error) {
	click, err := s.clickRepo.GetRecentByPhone(ctx, rc.variations, s.cfg.RecentClickWindow)
	if err != nil {
		if errors.Is(err, repository.ErrClickNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return s.attributionFromClick(ctx, rc, click, models.TrackingMethodRecent), nil
}

// Ярус 3: у владельца ровно одна активная WhatsApp-кампания.
func (s *attributionService) resolveByActiveCampaign(ctx context.Context, rc *resolveContext) (*models.Attribution, error) {
	if rc.ownerID == "" {
		return nil, nil
	}

	count, err := s.campaignRepo.CountActiveWhatsApp(ctx, rc.ownerID)
	if err != nil {
		return nil, err
	}
	if count != 1 {
		return nil, nil
	}

	campaign, err := s.campaignRepo.GetActiveWhatsApp(ctx, rc.ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &models.Attribution{
		Campaign:       campaign,
		UTM:            campaign.UTM(),
		UserID:         campaign.UserID,
		TrackingMethod: models.TrackingMethodCampaign,
	}, nil
}

// Последний ярус: синтетическая органика с владельцем канала,
// что бы ни случилось выше.
func (s *attributionService) organicFallback(rc *resolveContext) *models.Attribution {
	return &models.Attribution{
		UTM: models.UTMSet{
			Source:   "whatsapp",
			Medium:   "organic",
			Campaign: "organic",
			Content:  "instance:" + rc.msg.InstanceName,
		},
		UserID:         rc.ownerID,
		TrackingMethod: models.TrackingMethodDirect,
	}
}

func (s *attributionService) attributionFromClick(ctx context.Context, rc *resolveContext, click *models.Click, method string) *models.Attribution {
	attr := &models.Attribution{
		Click:          click,
		UTM:            click.UTM(),
		TrackingID:     click.TrackingID,
		UserID:         rc.ownerID,
		TrackingMethod: method,
	}

	if click.CampaignID != "" {
		campaign, err := s.getCampaign(ctx, click.CampaignID)
		if err != nil {
			s.logger.Warn("failed to load click campaign",
				zap.String("campaign_id", click.CampaignID),
				zap.Error(err),
			)
		} else {
			attr.Campaign = campaign
			attr.UserID = campaign.UserID
		}
	}

	return attr
}

// ResolveOwner находит владельца по имени инстанса, через кэш.
// Контакт без владельца — операционная аномалия, её стоит увидеть.
func (s *attributionService) ResolveOwner(ctx context.Context, instanceName string) string {
	if channel, err := s.cacheRepo.GetChannel(ctx, instanceName); err == nil {
		return channel.UserID
	}

	channel, err := s.channelRepo.GetByInstance(ctx, instanceName)
	if err != nil {
		security.LogEvent(s.logger, security.SeverityHigh, "owner_resolution_failed",
			zap.String("instance", instanceName),
			zap.Error(err),
		)
		return ""
	}

	if err := s.cacheRepo.SetChannel(ctx, channel, s.cacheCfg.ChannelTTL); err != nil {
		s.logger.Debug("failed to cache channel", zap.Error(err))
	}

	return channel.UserID
}

func (s *attributionService) getCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	if campaign, err := s.cacheRepo.GetCampaign(ctx, id); err == nil {
		return campaign, nil
	}

	campaign, err := s.campaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.cacheRepo.SetCampaign(ctx, campaign, s.cacheCfg.CampaignTTL); err != nil {
		s.logger.Debug("failed to cache campaign", zap.Error(err))
	}

	return campaign, nil
}
