package db

import (
	"context"
	"fmt"
	"time"

	"dispatch-bot/internal/models"
)

// ConfirmDispatchByTrip marks every pending dispatch message for the
// (phone, trip) pair as confirmed. The response_status guard makes a
// duplicate delivery a no-op; the affected row count is returned so the
// caller can tell.
func (db *PostgresDB) ConfirmDispatchByTrip(ctx context.Context, phone, tripIdentifier string, at time.Time) (int64, error) {
	query := `
        UPDATE trip_messages
        SET response_status = 'confirmed', response_at = $3
        WHERE phone = $1 AND trip_identifier = $2 AND response_status = 'pending'
    `

	tag, err := db.pool.Exec(ctx, query, phone, tripIdentifier, at)
	if err != nil {
		return 0, fmt.Errorf("failed to confirm dispatch: %w", err)
	}

	return tag.RowsAffected(), nil
}

// RejectDispatchByTrip marks every pending dispatch message for the
// (phone, trip) pair as rejected with the driver's comment.
func (db *PostgresDB) RejectDispatchByTrip(ctx context.Context, phone, tripIdentifier, comment string, at time.Time) (int64, error) {
	query := `
        UPDATE trip_messages
        SET response_status = 'rejected', response_comment = $3, response_at = $4
        WHERE phone = $1 AND trip_identifier = $2 AND response_status = 'pending'
    `

	tag, err := db.pool.Exec(ctx, query, phone, tripIdentifier, comment, at)
	if err != nil {
		return 0, fmt.Errorf("failed to reject dispatch: %w", err)
	}

	return tag.RowsAffected(), nil
}

// PendingDispatchByPhone lists delivered messages still awaiting the
// driver's response.
func (db *PostgresDB) PendingDispatchByPhone(ctx context.Context, phone string) ([]models.DispatchMessage, error) {
	query := `
        SELECT id, trip_identifier, phone, COALESCE(vehicle_number, ''),
               loading_time, COALESCE(comment, ''), COALESCE(message_id, 0),
               status, response_status, COALESCE(response_comment, ''),
               sent_at, response_at
        FROM trip_messages
        WHERE phone = $1 AND status = 'sent' AND response_status = 'pending'
        ORDER BY loading_time
    `

	rows, err := db.pool.Query(ctx, query, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending dispatches: %w", err)
	}
	defer rows.Close()

	var result []models.DispatchMessage
	for rows.Next() {
		var m models.DispatchMessage
		err := rows.Scan(
			&m.ID, &m.TripIdentifier, &m.Phone, &m.VehicleNumber,
			&m.LoadingTime, &m.Comment, &m.MessageID,
			&m.Status, &m.ResponseStatus, &m.ResponseComment,
			&m.SentAt, &m.ResponseAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dispatch message: %w", err)
		}
		result = append(result, m)
	}

	return result, rows.Err()
}

// TripStatsByIdentifier recomputes the aggregate response counts for one trip.
func (db *PostgresDB) TripStatsByIdentifier(ctx context.Context, tripIdentifier string) (*models.TripStats, error) {
	query := `
        SELECT COUNT(*) FILTER (WHERE status = 'sent'),
               COUNT(*) FILTER (WHERE status = 'sent' AND response_status = 'confirmed'),
               COUNT(*) FILTER (WHERE status = 'sent' AND response_status = 'rejected'),
               COUNT(*) FILTER (WHERE status = 'sent' AND response_status = 'pending')
        FROM trip_messages
        WHERE trip_identifier = $1
    `

	stats := models.TripStats{TripIdentifier: tripIdentifier}
	err := db.pool.QueryRow(ctx, query, tripIdentifier).Scan(
		&stats.Sent, &stats.Confirmed, &stats.Rejected, &stats.Pending,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute trip stats: %w", err)
	}

	return &stats, nil
}
