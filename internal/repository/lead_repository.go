package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SergeiKhy/lead-attribution/internal/models"
	"github.com/jackc/pgx/v5"
)

var ErrLeadNotFound = errors.New("lead not found")

type LeadRepository interface {
	GetByPhone(ctx context.Context, userID string, phones []string) (*models.Lead, error)
	Upsert(ctx context.Context, lead *models.Lead) error
	UpdateContact(ctx context.Context, leadID, lastMessage string, initialMessage *string, status string) error
	TouchLastContact(ctx context.Context, leadID string) error
	UpdateStatus(ctx context.Context, leadID, status string) error
}

type leadRepository struct {
	db *PostgresDB
}

func NewLeadRepository(db *PostgresDB) LeadRepository {
	return &leadRepository{db: db}
}

const leadColumns = `
	id, user_id, campaign_id, campaign, name, phone, status,
	tracking_id, tracking_method,
	utm_source, utm_medium, utm_campaign, utm_content, utm_term,
	profile_picture_url, initial_message, last_message,
	external_message_id, external_status,
	location, browser, os, device_type, device_model,
	first_contact, last_contact, created_at
`

func (r *leadRepository) GetByPhone(ctx context.Context, userID string, phones []string) (*models.Lead, error) {
	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE user_id = $1 AND phone = ANY($2)
		ORDER BY created_at DESC
		LIMIT 1
	`

	return r.scanLead(r.db.Pool.QueryRow(ctx, query, userID, phones))
}

// Upsert вставляет лид или дополняет существующий по ключу (user_id, phone).
// При конфликте UTM-поля заполняются только там, где они пустые — повторная
// доставка вебхука не перетирает исходную атрибуцию.
func (r *leadRepository) Upsert(ctx context.Context, lead *models.Lead) error {
	query := `
		INSERT INTO leads (
			id, user_id, campaign_id, campaign, name, phone, status,
			tracking_id, tracking_method,
			utm_source, utm_medium, utm_campaign, utm_content, utm_term,
			profile_picture_url, initial_message, last_message,
			location, browser, os, device_type, device_model,
			first_contact, last_contact, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
		ON CONFLICT (user_id, phone) DO UPDATE SET
			name = COALESCE(NULLIF(leads.name, ''), EXCLUDED.name),
			campaign_id = COALESCE(leads.campaign_id, EXCLUDED.campaign_id),
			campaign = COALESCE(NULLIF(leads.campaign, ''), EXCLUDED.campaign),
			utm_source = COALESCE(NULLIF(leads.utm_source, ''), EXCLUDED.utm_source),
			utm_medium = COALESCE(NULLIF(leads.utm_medium, ''), EXCLUDED.utm_medium),
			utm_campaign = COALESCE(NULLIF(leads.utm_campaign, ''), EXCLUDED.utm_campaign),
			utm_content = COALESCE(NULLIF(leads.utm_content, ''), EXCLUDED.utm_content),
			utm_term = COALESCE(NULLIF(leads.utm_term, ''), EXCLUDED.utm_term),
			last_message = EXCLUDED.last_message,
			last_contact = EXCLUDED.last_contact
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		lead.ID,
		lead.UserID,
		lead.CampaignID,
		lead.Campaign,
		lead.Name,
		lead.Phone,
		lead.Status,
		lead.TrackingID,
		lead.TrackingMethod,
		lead.UTMSource,
		lead.UTMMedium,
		lead.UTMCampaign,
		lead.UTMContent,
		lead.UTMTerm,
		lead.ProfilePictureURL,
		lead.InitialMessage,
		lead.LastMessage,
		lead.Location,
		lead.Browser,
		lead.OS,
		lead.DeviceType,
		lead.DeviceModel,
		lead.FirstContact,
		lead.LastContact,
		lead.CreatedAt,
	).Scan(&lead.ID, &lead.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert lead: %w", err)
	}

	return nil
}

// UpdateContact обновляет контактные поля по входящему сообщению.
// initial_message выставляется только если передан (первое входящее).
func (r *leadRepository) UpdateContact(ctx context.Context, leadID, lastMessage string, initialMessage *string, status string) error {
	query := `
		UPDATE leads
		SET last_message = $2,
			initial_message = COALESCE($3, initial_message),
			status = $4,
			last_contact = NOW(),
			first_contact = COALESCE(first_contact, NOW())
		WHERE id = $1
	`

	result, err := r.db.Pool.Exec(ctx, query, leadID, lastMessage, initialMessage, status)
	if err != nil {
		return fmt.Errorf("failed to update lead contact: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLeadNotFound
	}

	return nil
}

func (r *leadRepository) TouchLastContact(ctx context.Context, leadID string) error {
	query := `UPDATE leads SET last_contact = NOW() WHERE id = $1`

	result, err := r.db.Pool.Exec(ctx, query, leadID)
	if err != nil {
		return fmt.Errorf("failed to touch lead: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLeadNotFound
	}

	return nil
}

func (r *leadRepository) UpdateStatus(ctx context.Context, leadID, status string) error {
	query := `UPDATE leads SET status = $2 WHERE id = $1`

	result, err := r.db.Pool.Exec(ctx, query, leadID, status)
	if err != nil {
		return fmt.Errorf("failed to update lead status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLeadNotFound
	}

	return nil
}

func (r *leadRepository) scanLead(row pgx.Row) (*models.Lead, error) {
	lead := &models.Lead{}
	err := row.Scan(
		&lead.ID,
		&lead.UserID,
		&lead.CampaignID,
		&lead.Campaign,
		&lead.Name,
		&lead.Phone,
		&lead.Status,
		&lead.TrackingID,
		&lead.TrackingMethod,
		&lead.UTMSource,
		&lead.UTMMedium,
		&lead.UTMCampaign,
		&lead.UTMContent,
		&lead.UTMTerm,
		&lead.ProfilePictureURL,
		&lead.InitialMessage,
		&lead.LastMessage,
		&lead.ExternalMessageID,
		&lead.ExternalStatus,
		&lead.Location,
		&lead.Browser,
		&lead.OS,
		&lead.DeviceType,
		&lead.DeviceModel,
		&lead.FirstContact,
		&lead.LastContact,
		&lead.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}

	return lead, nil
}
