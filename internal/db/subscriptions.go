package db

import (
	"context"
	"fmt"
	"time"

	"dispatch-bot/internal/models"
)

const subscriptionColumns = `
        id, telegram_id, chat_id, trip_identifier,
        interval_minutes, last_sent_at, is_active`

func (db *PostgresDB) ActiveSubscriptionsByTrip(ctx context.Context, tripIdentifier string) ([]models.TripSubscription, error) {
	query := `
        SELECT` + subscriptionColumns + `
        FROM trip_subscriptions
        WHERE trip_identifier = $1 AND is_active
    `

	return db.querySubscriptions(ctx, query, tripIdentifier)
}

func (db *PostgresDB) ActiveSubscriptions(ctx context.Context) ([]models.TripSubscription, error) {
	query := `
        SELECT` + subscriptionColumns + `
        FROM trip_subscriptions
        WHERE is_active
    `

	return db.querySubscriptions(ctx, query)
}

func (db *PostgresDB) querySubscriptions(ctx context.Context, query string, args ...interface{}) ([]models.TripSubscription, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []models.TripSubscription
	for rows.Next() {
		var s models.TripSubscription
		err := rows.Scan(
			&s.ID, &s.TelegramID, &s.ChatID, &s.TripIdentifier,
			&s.IntervalMinutes, &s.LastSentAt, &s.IsActive,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, s)
	}

	return subs, rows.Err()
}

func (db *PostgresDB) MarkSubscriptionSent(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE trip_subscriptions SET last_sent_at = $2 WHERE id = $1`

	_, err := db.pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark subscription sent: %w", err)
	}

	return nil
}

// DeactivateSubscription is the one-way switch flipped after the final
// "trip completed" notice. Reactivation requires a new explicit subscribe.
func (db *PostgresDB) DeactivateSubscription(ctx context.Context, id int64) error {
	query := `UPDATE trip_subscriptions SET is_active = false WHERE id = $1`

	_, err := db.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate subscription: %w", err)
	}

	return nil
}
