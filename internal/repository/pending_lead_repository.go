package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/lead-attribution/internal/models"
	"github.com/jackc/pgx/v5"
)

var ErrPendingNotFound = errors.New("pending lead not found")

type PendingLeadRepository interface {
	Create(ctx context.Context, pending *models.PendingLead) error
	GetPendingByTrackingID(ctx context.Context, trackingID string) (*models.PendingLead, error)
	GetPendingByPhone(ctx context.Context, phones []string, window time.Duration) (*models.PendingLead, error)
	GetPendingPlaceholder(ctx context.Context, window time.Duration) (*models.PendingLead, error)
	GetPendingByCampaign(ctx context.Context, campaignID string, window time.Duration) (*models.PendingLead, error)
	MarkConverted(ctx context.Context, pendingID string) (bool, error)
}

type pendingLeadRepository struct {
	db *PostgresDB
}

func NewPendingLeadRepository(db *PostgresDB) PendingLeadRepository {
	return &pendingLeadRepository{db: db}
}

const pendingColumns = `
	id, tracking_id, campaign_id, campaign_name, name, phone,
	utm_source, utm_medium, utm_campaign, utm_content, utm_term,
	payload, status, created_at
`

func (r *pendingLeadRepository) Create(ctx context.Context, pending *models.PendingLead) error {
	query := `
		INSERT INTO pending_leads (
			id, tracking_id, campaign_id, campaign_name, name, phone,
			utm_source, utm_medium, utm_campaign, utm_content, utm_term,
			payload, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		pending.ID,
		pending.TrackingID,
		pending.CampaignID,
		pending.CampaignName,
		pending.Name,
		pending.Phone,
		pending.UTMSource,
		pending.UTMMedium,
		pending.UTMCampaign,
		pending.UTMContent,
		pending.UTMTerm,
		pending.Payload,
		pending.Status,
		pending.CreatedAt,
	).Scan(&pending.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateRecord
		}
		return fmt.Errorf("failed to create pending lead: %w", err)
	}

	return nil
}

func (r *pendingLeadRepository) GetPendingByTrackingID(ctx context.Context, trackingID string) (*models.PendingLead, error) {
	query := `
		SELECT ` + pendingColumns + `
		FROM pending_leads
		WHERE tracking_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	return r.scanPending(r.db.Pool.QueryRow(ctx, query, trackingID, models.PendingStatusPending))
}

func (r *pendingLeadRepository) GetPendingByPhone(ctx context.Context, phones []string, window time.Duration) (*models.PendingLead, error) {
	query := `
		SELECT ` + pendingColumns + `
		FROM pending_leads
		WHERE phone = ANY($1)
			AND status = $2
			AND created_at >= NOW() - $3::interval
		ORDER BY created_at DESC
		LIMIT 1
	`

	return r.scanPending(r.db.Pool.QueryRow(ctx, query, phones, models.PendingStatusPending, window.String()))
}

// GetPendingPlaceholder ищет заявку, у которой номер ещё не известен.
func (r *pendingLeadRepository) GetPendingPlaceholder(ctx context.Context, window time.Duration) (*models.PendingLead, error) {
	query := `
		SELECT ` + pendingColumns + `
		FROM pending_leads
		WHERE phone = $1
			AND status = $2
			AND created_at >= NOW() - $3::interval
		ORDER BY created_at DESC
		LIMIT 1
	`

	return r.scanPending(r.db.Pool.QueryRow(ctx, query, models.PlaceholderPhone, models.PendingStatusPending, window.String()))
}

func (r *pendingLeadRepository) GetPendingByCampaign(ctx context.Context, campaignID string, window time.Duration) (*models.PendingLead, error) {
	query := `
		SELECT ` + pendingColumns + `
		FROM pending_leads
		WHERE campaign_id = $1
			AND status = $2
			AND created_at >= NOW() - $3::interval
		ORDER BY created_at DESC
		LIMIT 1
	`

	return r.scanPending(r.db.Pool.QueryRow(ctx, query, campaignID, models.PendingStatusPending, window.String()))
}

// MarkConverted атомарно переводит заявку в converted. Возвращает false,
// если заявка уже была сконвертирована кем-то другим: это штатный исход
// при повторной доставке вебхука, а не ошибка.
func (r *pendingLeadRepository) MarkConverted(ctx context.Context, pendingID string) (bool, error) {
	query := `
		UPDATE pending_leads
		SET status = $2, converted_at = NOW()
		WHERE id = $1 AND status = $3
	`

	result, err := r.db.Pool.Exec(ctx, query, pendingID, models.PendingStatusConverted, models.PendingStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to mark pending lead converted: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *pendingLeadRepository) scanPending(row pgx.Row) (*models.PendingLead, error) {
	pending := &models.PendingLead{}
	err := row.Scan(
		&pending.ID,
		&pending.TrackingID,
		&pending.CampaignID,
		&pending.CampaignName,
		&pending.Name,
		&pending.Phone,
		&pending.UTMSource,
		&pending.UTMMedium,
		&pending.UTMCampaign,
		&pending.UTMContent,
		&pending.UTMTerm,
		&pending.Payload,
		&pending.Status,
		&pending.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPendingNotFound
		}
		return nil, fmt.Errorf("failed to get pending lead: %w", err)
	}

	return pending, nil
}
