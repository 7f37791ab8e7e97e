package db

import (
	"context"
	"errors"
	"fmt"

	"dispatch-bot/internal/models"

	"github.com/jackc/pgx/v4"
)

func (db *PostgresDB) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	query := `
        SELECT id, telegram_id, chat_id, COALESCE(phone, ''),
               COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(full_name, ''),
               COALESCE(temp_first_name, ''), COALESCE(temp_last_name, ''),
               COALESCE(carpark, ''), registration_state, verified, role,
               created_at, updated_at
        FROM users
        WHERE telegram_id = $1
    `

	var user models.User
	err := db.pool.QueryRow(ctx, query, telegramID).Scan(
		&user.ID, &user.TelegramID, &user.ChatID, &user.Phone,
		&user.FirstName, &user.LastName, &user.FullName,
		&user.TempFirstName, &user.TempLastName,
		&user.Carpark, &user.RegistrationState, &user.Verified, &user.Role,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// CreateUser inserts the user on first contact. A repeated insert for the
// same telegram_id only refreshes the chat id.
func (db *PostgresDB) CreateUser(ctx context.Context, user *models.User) error {
	query := `
        INSERT INTO users (telegram_id, chat_id, registration_state, role)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (telegram_id) DO UPDATE
        SET chat_id = $2, updated_at = NOW()
        RETURNING id
    `

	err := db.pool.QueryRow(ctx, query,
		user.TelegramID, user.ChatID, user.RegistrationState, user.Role,
	).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// UpdateUser writes the mutable registration fields back by telegram_id.
func (db *PostgresDB) UpdateUser(ctx context.Context, user *models.User) error {
	query := `
        UPDATE users
        SET chat_id = $2,
            phone = NULLIF($3, ''),
            temp_first_name = NULLIF($4, ''),
            temp_last_name = NULLIF($5, ''),
            registration_state = $6,
            updated_at = NOW()
        WHERE telegram_id = $1
    `

	_, err := db.pool.Exec(ctx, query,
		user.TelegramID, user.ChatID, user.Phone,
		user.TempFirstName, user.TempLastName, user.RegistrationState,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	return nil
}

// CompleteRegistration atomically promotes the staged name fields into the
// canonical ones, sets the carpark and marks the registration completed.
// Guarded on awaiting_carpark so a replayed button press is a no-op.
func (db *PostgresDB) CompleteRegistration(ctx context.Context, telegramID int64, carpark string) (*models.User, error) {
	query := `
        UPDATE users
        SET first_name = temp_first_name,
            last_name = temp_last_name,
            full_name = temp_first_name || ' ' || temp_last_name,
            temp_first_name = NULL,
            temp_last_name = NULL,
            carpark = $2,
            registration_state = 'completed',
            updated_at = NOW()
        WHERE telegram_id = $1 AND registration_state = 'awaiting_carpark'
        RETURNING id, telegram_id, chat_id, COALESCE(phone, ''),
                  first_name, last_name, full_name, carpark,
                  registration_state, verified, role
    `

	var user models.User
	err := db.pool.QueryRow(ctx, query, telegramID, carpark).Scan(
		&user.ID, &user.TelegramID, &user.ChatID, &user.Phone,
		&user.FirstName, &user.LastName, &user.FullName, &user.Carpark,
		&user.RegistrationState, &user.Verified, &user.Role,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to complete registration: %w", err)
	}

	return &user, nil
}
