package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/lead-attribution/internal/models"
	"github.com/jackc/pgx/v5"
)

var ErrDeviceDataNotFound = errors.New("device data not found")

type SessionRepository interface {
	SaveSession(ctx context.Context, session *models.UTMSession) error
	GetValidSessions(ctx context.Context, window time.Duration) ([]models.UTMSession, error)
	SaveDeviceData(ctx context.Context, data *models.DeviceData) error
	GetDeviceDataByPhone(ctx context.Context, phones []string) (*models.DeviceData, error)
}

type sessionRepository struct {
	db *PostgresDB
}

func NewSessionRepository(db *PostgresDB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) SaveSession(ctx context.Context, session *models.UTMSession) error {
	query := `
		INSERT INTO utm_sessions (
			session_id, campaign_id,
			utm_source, utm_medium, utm_campaign, utm_content, utm_term,
			created_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id) DO UPDATE SET expires_at = EXCLUDED.expires_at
	`

	_, err := r.db.Pool.Exec(ctx, query,
		session.SessionID,
		session.CampaignID,
		session.UTMSource,
		session.UTMMedium,
		session.UTMCampaign,
		session.UTMContent,
		session.UTMTerm,
		session.CreatedAt,
		session.ExpiresAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save utm session: %w", err)
	}

	return nil
}

// GetValidSessions возвращает непросроченные сессии внутри окна, новые первыми.
func (r *sessionRepository) GetValidSessions(ctx context.Context, window time.Duration) ([]models.UTMSession, error) {
	query := `
		SELECT session_id, campaign_id,
			utm_source, utm_medium, utm_campaign, utm_content, utm_term,
			created_at, expires_at
		FROM utm_sessions
		WHERE expires_at > NOW() AND created_at >= NOW() - $1::interval
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, window.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get utm sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.UTMSession
	for rows.Next() {
		var s models.UTMSession
		if err := rows.Scan(
			&s.SessionID,
			&s.CampaignID,
			&s.UTMSource,
			&s.UTMMedium,
			&s.UTMCampaign,
			&s.UTMContent,
			&s.UTMTerm,
			&s.CreatedAt,
			&s.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan utm session: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating utm sessions: %w", err)
	}

	return sessions, nil
}

func (r *sessionRepository) SaveDeviceData(ctx context.Context, data *models.DeviceData) error {
	query := `
		INSERT INTO device_data (
			phone, location, ip_address, browser, os,
			device_type, device_model, country, city,
			screen_resolution, timezone, language
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (phone) DO UPDATE SET
			location = EXCLUDED.location,
			ip_address = EXCLUDED.ip_address,
			browser = EXCLUDED.browser,
			os = EXCLUDED.os,
			device_type = EXCLUDED.device_type,
			device_model = EXCLUDED.device_model,
			country = EXCLUDED.country,
			city = EXCLUDED.city,
			screen_resolution = EXCLUDED.screen_resolution,
			timezone = EXCLUDED.timezone,
			language = EXCLUDED.language
	`

	_, err := r.db.Pool.Exec(ctx, query,
		data.Phone,
		data.Location,
		data.IPAddress,
		data.Browser,
		data.OS,
		data.DeviceType,
		data.DeviceModel,
		data.Country,
		data.City,
		data.ScreenResolution,
		data.Timezone,
		data.Language,
	)

	if err != nil {
		return fmt.Errorf("failed to save device data: %w", err)
	}

	return nil
}

func (r *sessionRepository) GetDeviceDataByPhone(ctx context.Context, phones []string) (*models.DeviceData, error) {
	query := `
		SELECT phone, location, ip_address, browser, os,
			device_type, device_model, country, city,
			screen_resolution, timezone, language
		FROM device_data
		WHERE phone = ANY($1)
		LIMIT 1
	`

	data := &models.DeviceData{}
	err := r.db.Pool.QueryRow(ctx, query, phones).Scan(
		&data.Phone,
		&data.Location,
		&data.IPAddress,
		&data.Browser,
		&data.OS,
		&data.DeviceType,
		&data.DeviceModel,
		&data.Country,
		&data.City,
		&data.ScreenResolution,
		&data.Timezone,
		&data.Language,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeviceDataNotFound
		}
		return nil, fmt.Errorf("failed to get device data: %w", err)
	}

	return data, nil
}
