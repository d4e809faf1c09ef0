package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SergeiKhy/lead-attribution/internal/capi"
	"github.com/SergeiKhy/lead-attribution/internal/evolution"
	"github.com/SergeiKhy/lead-attribution/internal/models"
	"github.com/SergeiKhy/lead-attribution/internal/repository"
	"github.com/SergeiKhy/lead-attribution/internal/security"
	"github.com/SergeiKhy/lead-attribution/internal/token"
)

// MessageService — оркестратор вебхук-пути: атрибуция, конверсия заявки,
// создание либо обновление лида, журнал переписки.
type MessageService interface {
	HandleInbound(ctx context.Context, msg *models.InboundMessage) error
	HandleOutbound(ctx context.Context, msg *models.InboundMessage) error
	HandleStatusUpdate(ctx context.Context, externalID, status string) error
}

type messageService struct {
	attribution  AttributionService
	converter    ConverterService
	leadRepo     repository.LeadRepository
	messageRepo  repository.MessageRepository
	sessionRepo  repository.SessionRepository
	campaignRepo repository.CampaignRepository
	evolution    evolution.Client
	conversions  capi.Client
	logger       *zap.Logger
}

func NewMessageService(
	attribution AttributionService,
	converter ConverterService,
	leadRepo repository.LeadRepository,
	messageRepo repository.MessageRepository,
	sessionRepo repository.SessionRepository,
	campaignRepo repository.CampaignRepository,
	evolutionClient evolution.Client,
	conversions capi.Client,
	logger *zap.Logger,
) MessageService {
	return &messageService{
		attribution:  attribution,
		converter:    converter,
		leadRepo:     leadRepo,
		messageRepo:  messageRepo,
		sessionRepo:  sessionRepo,
		campaignRepo: campaignRepo,
		evolution:    evolutionClient,
		conversions:  conversions,
		logger:       logger,
	}
}

// HandleInbound обрабатывает сообщение клиента. Порядок фиксирован:
// атрибуция → конверсия отложенной заявки → существующий лид → органика.
func (s *messageService) HandleInbound(ctx context.Context, msg *models.InboundMessage) error {
	attr := s.attribution.Resolve(ctx, msg)
	variations := security.PhoneVariations(msg.Phone)
	text := token.Strip(msg.Text)

	lead, converted := s.converter.Convert(ctx, msg, attr)

	if !converted {
		existing, err := s.leadRepo.GetByPhone(ctx, attr.UserID, variations)
		switch {
		case err == nil:
			lead = existing
			if err := s.updateExisting(ctx, existing, text); err != nil {
				return err
			}
		case errors.Is(err, repository.ErrLeadNotFound):
			lead, err = s.createOrganic(ctx, msg, attr, text, variations)
			if err != nil {
				return err
			}
		default:
			return err
		}
	}

	s.attribution.MarkConverted(ctx, attr.Click, lead.ID)
	s.sendConversionEvent(ctx, attr.Click, msg.Phone)

	return s.appendMessage(ctx, lead.ID, msg, text, false)
}

// sendConversionEvent отправляет серверное событие Contact по конверсии
// клика. Кампания грузится из базы: в кэше access token не хранится.
func (s *messageService) sendConversionEvent(ctx context.Context, click *models.Click, phone string) {
	if click == nil || click.CampaignID == "" {
		return
	}

	campaign, err := s.campaignRepo.GetByID(ctx, click.CampaignID)
	if err != nil {
		s.logger.Warn("failed to load campaign for conversion event",
			zap.String("campaign_id", click.CampaignID),
			zap.Error(err),
		)
		return
	}

	if !campaign.ConversionAPIEnabled || campaign.PixelID == "" || campaign.AccessToken == "" {
		return
	}

	event := capi.Event{
		PixelID:     campaign.PixelID,
		AccessToken: campaign.AccessToken,
		EventName:   capi.EventContact,
		EventTime:   time.Now(),
		SourceURL:   click.SourceURL,
		ClientIP:    click.IPAddress,
		UserAgent:   click.UserAgent,
		FBClid:      click.FBClid,
		Phone:       phone,
	}
	if err := s.conversions.Send(ctx, event); err != nil {
		s.logger.Warn("conversions event failed",
			zap.String("campaign_id", campaign.ID),
			zap.Error(err),
		)
	}
}

// HandleOutbound обрабатывает исходящее (коммерческое) сообщение:
// сканирование ключевых слов и журнал. last_message и initial_message
// не трогаем — это слова клиента, не наши.
func (s *messageService) HandleOutbound(ctx context.Context, msg *models.InboundMessage) error {
	ownerID := s.attribution.ResolveOwner(ctx, msg.InstanceName)
	variations := security.PhoneVariations(msg.Phone)

	lead, err := s.leadRepo.GetByPhone(ctx, ownerID, variations)
	if err != nil {
		if errors.Is(err, repository.ErrLeadNotFound) {
			// Исходящее без лида — не наша переписка
			return nil
		}
		return err
	}

	text := token.Strip(msg.Text)

	if status, matched := s.scanKeywords(ctx, lead, text); matched {
		if err := s.leadRepo.UpdateStatus(ctx, lead.ID, status); err != nil {
			s.logger.Error("failed to update lead status",
				zap.String("lead_id", lead.ID),
				zap.String("status", status),
				zap.Error(err),
			)
		} else {
			s.logger.Info("lead status transition",
				zap.String("lead_id", lead.ID),
				zap.String("status", status),
			)
		}
	}

	if err := s.leadRepo.TouchLastContact(ctx, lead.ID); err != nil {
		s.logger.Warn("failed to touch lead", zap.String("lead_id", lead.ID), zap.Error(err))
	}

	return s.appendMessage(ctx, lead.ID, msg, text, true)
}

// HandleStatusUpdate обновляет статус доставки по внешнему id сообщения.
// Сообщения, которых нет в журнале, молча пропускаются.
func (s *messageService) HandleStatusUpdate(ctx context.Context, externalID, status string) error {
	return s.messageRepo.UpdateStatusByExternalID(ctx, externalID, status)
}

// updateExisting — входящее по существующему лиду: контактные поля,
// initial_message только при первом входящем, new → lead.
func (s *messageService) updateExisting(ctx context.Context, lead *models.Lead, text string) error {
	var initial *string
	if lead.InitialMessage == "" {
		initial = &text
	}

	status := lead.Status
	if status == models.LeadStatusNew {
		status = models.LeadStatusLead
	}

	return s.leadRepo.UpdateContact(ctx, lead.ID, text, initial, status)
}

// createOrganic создаёт лид из результата атрибуции: без заявки,
// лучшая доступная достоверность.
func (s *messageService) createOrganic(ctx context.Context, msg *models.InboundMessage, attr *models.Attribution, text string, variations []string) (*models.Lead, error) {
	now := time.Now()

	lead := &models.Lead{
		ID:             uuid.NewString(),
		UserID:         attr.UserID,
		CampaignID:     attr.CampaignID(),
		Campaign:       attr.CampaignName(),
		Name:           msg.ContactName,
		Phone:          msg.Phone,
		Status:         models.LeadStatusNew,
		TrackingID:     attr.TrackingID,
		TrackingMethod: attr.TrackingMethod,
		InitialMessage: text,
		LastMessage:    text,
		FirstContact:   &now,
		LastContact:    &now,
		CreatedAt:      now,
	}
	lead.SetUTM(attr.UTM)

	// Аватарка best-effort: недоступный Evolution API не мешает созданию
	if url, err := s.evolution.FetchProfilePicture(ctx, msg.InstanceName, msg.Phone); err != nil {
		s.logger.Debug("profile picture lookup failed",
			zap.String("phone", msg.Phone),
			zap.Error(err),
		)
	} else {
		lead.ProfilePictureURL = url
	}

	s.applyDeviceData(ctx, lead, variations)

	if err := s.leadRepo.Upsert(ctx, lead); err != nil {
		return nil, err
	}

	s.logger.Info("lead created",
		zap.String("lead_id", lead.ID),
		zap.String("tracking_method", attr.TrackingMethod),
		zap.String("campaign", lead.Campaign),
	)

	return lead, nil
}

func (s *messageService) applyDeviceData(ctx context.Context, lead *models.Lead, variations []string) {
	data, err := s.sessionRepo.GetDeviceDataByPhone(ctx, variations)
	if err != nil {
		if !errors.Is(err, repository.ErrDeviceDataNotFound) {
			s.logger.Debug("device data lookup failed", zap.Error(err))
		}
		return
	}

	lead.Location = data.Location
	lead.Browser = data.Browser
	lead.OS = data.OS
	lead.DeviceType = data.DeviceType
	lead.DeviceModel = data.DeviceModel
}

// scanKeywords ищет ключевые слова кампании в исходящем тексте.
// Терминальные лиды не трогаем.
func (s *messageService) scanKeywords(ctx context.Context, lead *models.Lead, text string) (string, bool) {
	if lead.Terminal() || lead.CampaignID == nil {
		return "", false
	}

	campaign, err := s.campaignRepo.GetByID(ctx, *lead.CampaignID)
	if err != nil {
		s.logger.Warn("failed to load campaign for keyword scan",
			zap.String("campaign_id", *lead.CampaignID),
			zap.Error(err),
		)
		return "", false
	}

	lower := strings.ToLower(text)

	for _, kw := range campaign.ConversionKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return models.LeadStatusConverted, true
		}
	}
	for _, kw := range campaign.CancellationKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return models.LeadStatusCancelled, true
		}
	}

	return "", false
}

func (s *messageService) appendMessage(ctx context.Context, leadID string, msg *models.InboundMessage, text string, fromMe bool) error {
	message := &models.LeadMessage{
		LeadID:         leadID,
		Text:           text,
		IsFromMe:       fromMe,
		ExternalID:     msg.ExternalID,
		DeliveryStatus: msg.Status,
		InstanceName:   msg.InstanceName,
		CreatedAt:      time.Now(),
	}

	if err := s.messageRepo.Append(ctx, message); err != nil {
		s.logger.Error("failed to append lead message",
			zap.String("lead_id", leadID),
			zap.Error(err),
		)
		return err
	}

	return nil
}
