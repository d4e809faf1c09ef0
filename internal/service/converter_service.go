package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SergeiKhy/lead-attribution/internal/config"
	"github.com/SergeiKhy/lead-attribution/internal/models"
	"github.com/SergeiKhy/lead-attribution/internal/repository"
	"github.com/SergeiKhy/lead-attribution/internal/security"
	"github.com/SergeiKhy/lead-attribution/internal/token"
)

// ConverterService сопоставляет входящее сообщение с отложенной заявкой
// (форма отправлена раньше, чем пришло сообщение) и промоутит её в лид
// ровно один раз.
type ConverterService interface {
	Convert(ctx context.Context, msg *models.InboundMessage, attr *models.Attribution) (*models.Lead, bool)
}

type converterService struct {
	pendingRepo repository.PendingLeadRepository
	leadRepo    repository.LeadRepository
	sessionRepo repository.SessionRepository
	cfg         config.AttributionConfig
	logger      *zap.Logger
}

func NewConverterService(
	pendingRepo repository.PendingLeadRepository,
	leadRepo repository.LeadRepository,
	sessionRepo repository.SessionRepository,
	cfg config.AttributionConfig,
	logger *zap.Logger,
) ConverterService {
	return &converterService{
		pendingRepo: pendingRepo,
		leadRepo:    leadRepo,
		sessionRepo: sessionRepo,
		cfg:         cfg,
		logger:      logger,
	}
}

// Convert возвращает (lead, true) при успешной конверсии заявки.
// (nil, false) означает "заявки нет, идём по органическому пути".
func (s *converterService) Convert(ctx context.Context, msg *models.InboundMessage, attr *models.Attribution) (*models.Lead, bool) {
	pending := s.match(ctx, msg, attr)
	if pending == nil {
		return nil, false
	}

	// Условный UPDATE решает гонку: проигравший (или повторная доставка
	// вебхука) получает false и уходит в обычный merge-путь
	converted, err := s.pendingRepo.MarkConverted(ctx, pending.ID)
	if err != nil {
		s.logger.Error("failed to mark pending lead converted",
			zap.String("pending_id", pending.ID),
			zap.Error(err),
		)
		return nil, false
	}
	if !converted {
		return nil, false
	}

	lead, err := s.promote(ctx, msg, attr, pending)
	if err != nil {
		s.logger.Error("failed to promote pending lead",
			zap.String("pending_id", pending.ID),
			zap.Error(err),
		)
		return nil, false
	}

	s.logger.Info("pending lead converted",
		zap.String("pending_id", pending.ID),
		zap.String("lead_id", lead.ID),
		zap.String("tracking_method", attr.TrackingMethod),
	)

	return lead, true
}

// match прогоняет ярусы сопоставления: код, точный номер, плейсхолдер,
// кампания, UTM-сессии. Каждый следующий только после провала предыдущего.
func (s *converterService) match(ctx context.Context, msg *models.InboundMessage, attr *models.Attribution) *models.PendingLead {
	variations := security.PhoneVariations(msg.Phone)

	if attr.TrackingID != "" {
		if pending := s.lookup(s.pendingRepo.GetPendingByTrackingID(ctx, attr.TrackingID)); pending != nil {
			return pending
		}
	}

	if pending := s.lookup(s.pendingRepo.GetPendingByPhone(ctx, variations, s.cfg.PendingWindow)); pending != nil {
		return pending
	}

	if pending := s.lookup(s.pendingRepo.GetPendingPlaceholder(ctx, s.cfg.PendingWindow)); pending != nil {
		return pending
	}

	if campaignID := attr.CampaignID(); campaignID != nil {
		if pending := s.lookup(s.pendingRepo.GetPendingByCampaign(ctx, *campaignID, s.cfg.PendingCampaignWindow)); pending != nil {
			return pending
		}
	}

	return s.matchBySession(ctx)
}

// matchBySession — ярус наименьшей достоверности: персистентные UTM-сессии
// указывают на кампанию, заявки которой ещё могут ждать контакта.
func (s *converterService) matchBySession(ctx context.Context) *models.PendingLead {
	sessions, err := s.sessionRepo.GetValidSessions(ctx, s.cfg.PendingSessionWindow)
	if err != nil {
		s.logger.Warn("failed to load utm sessions", zap.Error(err))
		return nil
	}

	for _, session := range sessions {
		if session.CampaignID == "" {
			continue
		}
		if pending := s.lookup(s.pendingRepo.GetPendingByCampaign(ctx, session.CampaignID, s.cfg.PendingSessionWindow)); pending != nil {
			return pending
		}
	}

	return nil
}

func (s *converterService) lookup(pending *models.PendingLead, err error) *models.PendingLead {
	if err != nil {
		if !errors.Is(err, repository.ErrPendingNotFound) {
			s.logger.Warn("pending lead lookup failed", zap.Error(err))
		}
		return nil
	}
	return pending
}

// promote строит лид из заявки и апсертит его: для нового номера это
// вставка, для существующего — merge, где UTM заполняются только там,
// где были пустыми.
func (s *converterService) promote(ctx context.Context, msg *models.InboundMessage, attr *models.Attribution, pending *models.PendingLead) (*models.Lead, error) {
	now := time.Now()
	text := token.Strip(msg.Text)

	name := pending.Name
	if name == "" {
		name = msg.ContactName
	}

	utm := pending.UTM().Merge(attr.UTM)

	lead := &models.Lead{
		ID:             uuid.NewString(),
		UserID:         attr.UserID,
		CampaignID:     pending.CampaignID,
		Campaign:       pending.CampaignName,
		Name:           name,
		Phone:          msg.Phone,
		Status:         models.LeadStatusLead,
		TrackingID:     pending.TrackingID,
		TrackingMethod: attr.TrackingMethod,
		InitialMessage: text,
		LastMessage:    text,
		FirstContact:   &now,
		LastContact:    &now,
		CreatedAt:      now,
	}
	lead.SetUTM(utm)

	s.applyDeviceData(ctx, lead, security.PhoneVariations(msg.Phone))

	if err := s.leadRepo.Upsert(ctx, lead); err != nil {
		return nil, err
	}

	return lead, nil
}

func (s *converterService) applyDeviceData(ctx context.Context, lead *models.Lead, variations []string) {
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
