package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SergeiKhy/lead-attribution/internal/models"
	"github.com/jackc/pgx/v5"
)

var (
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrChannelNotFound  = errors.New("channel not found")
)

type CampaignRepository interface {
	GetByID(ctx context.Context, id string) (*models.Campaign, error)
	GetActiveWhatsApp(ctx context.Context, userID string) (*models.Campaign, error)
	CountActiveWhatsApp(ctx context.Context, userID string) (int, error)
}

type ChannelRepository interface {
	GetByInstance(ctx context.Context, instanceName string) (*models.Channel, error)
}

type campaignRepository struct {
	db *PostgresDB
}

func NewCampaignRepository(db *PostgresDB) CampaignRepository {
	return &campaignRepository{db: db}
}

const campaignColumns = `
	id, user_id, name, active, redirect_type,
	whatsapp_number, custom_message,
	utm_source, utm_medium, utm_campaign, utm_content, utm_term,
	conversion_api_enabled, pixel_id, access_token,
	conversion_keywords, cancellation_keywords
`

func (r *campaignRepository) GetByID(ctx context.Context, id string) (*models.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE id = $1
	`

	return r.scanCampaign(r.db.Pool.QueryRow(ctx, query, id))
}

// GetActiveWhatsApp возвращает единственную активную WhatsApp-кампанию
// пользователя. Если их несколько, выбор неоднозначен и ярус не срабатывает —
// вызывающий обязан сначала проверить CountActiveWhatsApp.
func (r *campaignRepository) GetActiveWhatsApp(ctx context.Context, userID string) (*models.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE user_id = $1 AND active = true AND redirect_type = 'whatsapp'
		ORDER BY created_at DESC
		LIMIT 1
	`

	return r.scanCampaign(r.db.Pool.QueryRow(ctx, query, userID))
}

func (r *campaignRepository) CountActiveWhatsApp(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM campaigns
		WHERE user_id = $1 AND active = true AND redirect_type = 'whatsapp'
	`

	var count int
	if err := r.db.Pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count campaigns: %w", err)
	}

	return count, nil
}

func (r *campaignRepository) scanCampaign(row pgx.Row) (*models.Campaign, error) {
	campaign := &models.Campaign{}
	err := row.Scan(
		&campaign.ID,
		&campaign.UserID,
		&campaign.Name,
		&campaign.Active,
		&campaign.RedirectType,
		&campaign.WhatsAppNumber,
		&campaign.CustomMessage,
		&campaign.UTMSource,
		&campaign.UTMMedium,
		&campaign.UTMCampaign,
		&campaign.UTMContent,
		&campaign.UTMTerm,
		&campaign.ConversionAPIEnabled,
		&campaign.PixelID,
		&campaign.AccessToken,
		&campaign.ConversionKeywords,
		&campaign.CancellationKeywords,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	return campaign, nil
}

type channelRepository struct {
	db *PostgresDB
}

func NewChannelRepository(db *PostgresDB) ChannelRepository {
	return &channelRepository{db: db}
}

func (r *channelRepository) GetByInstance(ctx context.Context, instanceName string) (*models.Channel, error) {
	query := `
		SELECT instance_name, base_url, user_id, status
		FROM whatsapp_instances
		WHERE instance_name = $1
	`

	return r.scanChannel(r.db.Pool.QueryRow(ctx, query, instanceName))
}

func (r *channelRepository) scanChannel(row pgx.Row) (*models.Channel, error) {
	channel := &models.Channel{}
	err := row.Scan(
		&channel.InstanceName,
		&channel.BaseURL,
		&channel.UserID,
		&channel.Status,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChannelNotFound
		}
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}

	return channel, nil
}
