package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/lead-attribution/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrClickNotFound   = errors.New("click not found")
	ErrDuplicateRecord = errors.New("record already exists")
)

type ClickRepository interface {
	Create(ctx context.Context, click *models.Click) error
	GetUnconvertedByToken(ctx context.Context, token string) (*models.Click, error)
	GetRecentByPhone(ctx context.Context, phones []string, window time.Duration) (*models.Click, error)
	MarkConverted(ctx context.Context, clickID int64, leadID string) error
}

type clickRepository struct {
	db *PostgresDB
}

func NewClickRepository(db *PostgresDB) ClickRepository {
	return &clickRepository{db: db}
}

const clickColumns = `
	id, tracking_id, token, campaign_id, phone,
	utm_source, utm_medium, utm_campaign, utm_content, utm_term,
	fbclid, gclid, ctwa_clid,
	facebook_ad_id, facebook_adset_id, facebook_campaign_id,
	ip_address, user_agent, source_url, source_id,
	city, region, country, isp,
	converted, converted_at, lead_id, clicked_at
`

func (r *clickRepository) Create(ctx context.Context, click *models.Click) error {
	query := `
		INSERT INTO campaign_clicks (
			tracking_id, token, campaign_id, phone,
			utm_source, utm_medium, utm_campaign, utm_content, utm_term,
			fbclid, gclid, ctwa_clid,
			facebook_ad_id, facebook_adset_id, facebook_campaign_id,
			ip_address, user_agent, source_url, source_id,
			city, region, country, isp,
			clicked_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		RETURNING id, clicked_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		click.TrackingID,
		click.Token,
		click.CampaignID,
		click.Phone,
		click.UTMSource,
		click.UTMMedium,
		click.UTMCampaign,
		click.UTMContent,
		click.UTMTerm,
		click.FBClid,
		click.GClid,
		click.CTWAClid,
		click.FacebookAdID,
		click.FacebookAdsetID,
		click.FacebookCampaignID,
		click.IPAddress,
		click.UserAgent,
		click.SourceURL,
		click.SourceID,
		click.City,
		click.Region,
		click.Country,
		click.ISP,
		click.ClickedAt,
	).Scan(&click.ID, &click.ClickedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateRecord
		}
		return fmt.Errorf("failed to create click: %w", err)
	}

	return nil
}

func (r *clickRepository) GetUnconvertedByToken(ctx context.Context, token string) (*models.Click, error) {
	query := `
		SELECT ` + clickColumns + `
		FROM campaign_clicks
		WHERE token = $1 AND converted = false
		ORDER BY clicked_at DESC
		LIMIT 1
	`

	return r.scanClick(r.db.Pool.QueryRow(ctx, query, token))
}

// GetRecentByPhone ищет последний неконвертированный клик по любому из
// вариантов номера внутри заданного окна.
func (r *clickRepository) GetRecentByPhone(ctx context.Context, phones []string, window time.Duration) (*models.Click, error) {
	query := `
		SELECT ` + clickColumns + `
		FROM campaign_clicks
		WHERE phone = ANY($1)
			AND converted = false
			AND clicked_at >= NOW() - $2::interval
		ORDER BY clicked_at DESC
		LIMIT 1
	`

	return r.scanClick(r.db.Pool.QueryRow(ctx, query, phones, window.String()))
}

func (r *clickRepository) MarkConverted(ctx context.Context, clickID int64, leadID string) error {
	query := `
		UPDATE campaign_clicks
		SET converted = true, converted_at = NOW(), lead_id = $2
		WHERE id = $1 AND converted = false
	`

	result, err := r.db.Pool.Exec(ctx, query, clickID, leadID)
	if err != nil {
		return fmt.Errorf("failed to mark click converted: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrClickNotFound
	}

	return nil
}

func (r *clickRepository) scanClick(row pgx.Row) (*models.Click, error) {
	click := &models.Click{}
	err := row.Scan(
		&click.ID,
		&click.TrackingID,
		&click.Token,
		&click.CampaignID,
		&click.Phone,
		&click.UTMSource,
		&click.UTMMedium,
		&click.UTMCampaign,
		&click.UTMContent,
		&click.UTMTerm,
		&click.FBClid,
		&click.GClid,
		&click.CTWAClid,
		&click.FacebookAdID,
		&click.FacebookAdsetID,
		&click.FacebookCampaignID,
		&click.IPAddress,
		&click.UserAgent,
		&click.SourceURL,
		&click.SourceID,
		&click.City,
		&click.Region,
		&click.Country,
		&click.ISP,
		&click.Converted,
		&click.ConvertedAt,
		&click.LeadID,
		&click.ClickedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClickNotFound
		}
		return nil, fmt.Errorf("failed to get click: %w", err)
	}

	return click, nil
}

// Проверка на уникальность через код ошибки Postgres
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
