package db

import (
	"context"
	"errors"
	"fmt"

	"dispatch-bot/internal/models"

	"github.com/jackc/pgx/v4"
)

const ticketColumns = `
        id, telegram_id, question, status,
        COALESCE(operator_message_id, 0), COALESCE(user_message_id, 0),
        created_at, closed_at`

// OpenTicketByUser returns the user's unresolved ticket, if any. A ticket
// that has been answered but not closed still blocks a new /ask.
func (db *PostgresDB) OpenTicketByUser(ctx context.Context, telegramID int64) (*models.SupportTicket, error) {
	query := `
        SELECT` + ticketColumns + `
        FROM support_tickets
        WHERE telegram_id = $1 AND status IN ('open', 'answered')
    `

	return db.scanTicket(db.pool.QueryRow(ctx, query, telegramID))
}

// OpenTicketByOperatorMessage correlates an operator reply back to its
// ticket via the relay message id. Closed tickets never match.
func (db *PostgresDB) OpenTicketByOperatorMessage(ctx context.Context, messageID int) (*models.SupportTicket, error) {
	query := `
        SELECT` + ticketColumns + `
        FROM support_tickets
        WHERE operator_message_id = $1 AND status IN ('open', 'answered')
    `

	return db.scanTicket(db.pool.QueryRow(ctx, query, messageID))
}

func (db *PostgresDB) scanTicket(row pgx.Row) (*models.SupportTicket, error) {
	var t models.SupportTicket
	err := row.Scan(
		&t.ID, &t.TelegramID, &t.Question, &t.Status,
		&t.OperatorMessageID, &t.UserMessageID,
		&t.CreatedAt, &t.ClosedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get support ticket: %w", err)
	}

	return &t, nil
}

func (db *PostgresDB) CreateTicket(ctx context.Context, ticket *models.SupportTicket) error {
	query := `
        INSERT INTO support_tickets (telegram_id, question, status, operator_message_id, user_message_id)
        VALUES ($1, $2, $3, NULLIF($4, 0), NULLIF($5, 0))
        RETURNING id
    `

	err := db.pool.QueryRow(ctx, query,
		ticket.TelegramID, ticket.Question, ticket.Status,
		ticket.OperatorMessageID, ticket.UserMessageID,
	).Scan(&ticket.ID)
	if err != nil {
		return fmt.Errorf("failed to create support ticket: %w", err)
	}

	return nil
}

func (db *PostgresDB) UpdateTicketStatus(ctx context.Context, ticketID int64, status models.TicketStatus) error {
	query := `
        UPDATE support_tickets
        SET status = $2,
            closed_at = CASE WHEN $2::text = 'closed' THEN NOW() ELSE closed_at END
        WHERE id = $1
    `

	_, err := db.pool.Exec(ctx, query, ticketID, status)
	if err != nil {
		return fmt.Errorf("failed to update ticket status: %w", err)
	}

	return nil
}

func (db *PostgresDB) AppendTicketMessage(ctx context.Context, message *models.TicketMessage) error {
	query := `
        INSERT INTO ticket_messages (ticket_id, direction, text)
        VALUES ($1, $2, $3)
        RETURNING id
    `

	err := db.pool.QueryRow(ctx, query,
		message.TicketID, message.Direction, message.Text,
	).Scan(&message.ID)
	if err != nil {
		return fmt.Errorf("failed to append ticket message: %w", err)
	}

	return nil
}
