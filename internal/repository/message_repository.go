package repository

import (
	"context"
	"fmt"

	"github.com/SergeiKhy/lead-attribution/internal/models"
)

type MessageRepository interface {
	Append(ctx context.Context, msg *models.LeadMessage) error
	UpdateStatusByExternalID(ctx context.Context, externalID, status string) error
}

type messageRepository struct {
	db *PostgresDB
}

func NewMessageRepository(db *PostgresDB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Append(ctx context.Context, msg *models.LeadMessage) error {
	query := `
		INSERT INTO lead_messages (
			lead_id, text, is_from_me, external_id,
			delivery_status, instance_name, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query,
		msg.LeadID,
		msg.Text,
		msg.IsFromMe,
		msg.ExternalID,
		msg.DeliveryStatus,
		msg.InstanceName,
		msg.CreatedAt,
	).Scan(&msg.ID)

	if err != nil {
		return fmt.Errorf("failed to append lead message: %w", err)
	}

	return nil
}

func (r *messageRepository) UpdateStatusByExternalID(ctx context.Context, externalID, status string) error {
	query := `
		UPDATE lead_messages
		SET delivery_status = $2
		WHERE external_id = $1
	`

	if _, err := r.db.Pool.Exec(ctx, query, externalID, status); err != nil {
		return fmt.Errorf("failed to update message status: %w", err)
	}

	return nil
}
