package db

import (
	"context"
	"errors"
	"fmt"

	"dispatch-bot/internal/models"

	"github.com/jackc/pgx/v4"
)

func (db *PostgresDB) GetPendingAction(ctx context.Context, telegramID int64) (*models.PendingAction, error) {
	query := `
        SELECT telegram_id, action_type, COALESCE(related_message_id, 0),
               COALESCE(action_data, '{}'), created_at
        FROM pending_actions
        WHERE telegram_id = $1
    `

	var action models.PendingAction
	err := db.pool.QueryRow(ctx, query, telegramID).Scan(
		&action.TelegramID, &action.ActionType, &action.RelatedMessageID,
		&action.ActionData, &action.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending action: %w", err)
	}

	return &action, nil
}

// SetPendingAction upserts the single continuation row for the user.
// A concurrent set for the same user is last-write-wins.
func (db *PostgresDB) SetPendingAction(ctx context.Context, action *models.PendingAction) error {
	query := `
        INSERT INTO pending_actions (telegram_id, action_type, related_message_id, action_data)
        VALUES ($1, $2, NULLIF($3, 0), $4)
        ON CONFLICT (telegram_id) DO UPDATE
        SET action_type = $2, related_message_id = NULLIF($3, 0),
            action_data = $4, created_at = NOW()
    `

	_, err := db.pool.Exec(ctx, query,
		action.TelegramID, action.ActionType, action.RelatedMessageID, action.ActionData,
	)
	if err != nil {
		return fmt.Errorf("failed to set pending action: %w", err)
	}

	return nil
}

func (db *PostgresDB) ClearPendingAction(ctx context.Context, telegramID int64) error {
	query := `DELETE FROM pending_actions WHERE telegram_id = $1`

	_, err := db.pool.Exec(ctx, query, telegramID)
	if err != nil {
		return fmt.Errorf("failed to clear pending action: %w", err)
	}

	return nil
}
