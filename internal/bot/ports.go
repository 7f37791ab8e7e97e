package bot

import (
	"context"
	"time"

	"dispatch-bot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// The workflows depend on these narrow interfaces rather than the concrete
// Postgres client, so tests substitute in-memory fakes. *db.PostgresDB
// satisfies all of the repository interfaces.

type UserRepo interface {
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error
	CompleteRegistration(ctx context.Context, telegramID int64, carpark string) (*models.User, error)
}

type PendingActionRepo interface {
	GetPendingAction(ctx context.Context, telegramID int64) (*models.PendingAction, error)
	SetPendingAction(ctx context.Context, action *models.PendingAction) error
	ClearPendingAction(ctx context.Context, telegramID int64) error
}

type DispatchRepo interface {
	ConfirmDispatchByTrip(ctx context.Context, phone, tripIdentifier string, at time.Time) (int64, error)
	RejectDispatchByTrip(ctx context.Context, phone, tripIdentifier, comment string, at time.Time) (int64, error)
	PendingDispatchByPhone(ctx context.Context, phone string) ([]models.DispatchMessage, error)
	TripStatsByIdentifier(ctx context.Context, tripIdentifier string) (*models.TripStats, error)
}

type PointRepo interface {
	ListPoints(ctx context.Context) ([]models.Point, error)
	PointsByIDs(ctx context.Context, ids []int64) ([]models.Point, error)
}

type TicketRepo interface {
	OpenTicketByUser(ctx context.Context, telegramID int64) (*models.SupportTicket, error)
	OpenTicketByOperatorMessage(ctx context.Context, messageID int) (*models.SupportTicket, error)
	CreateTicket(ctx context.Context, ticket *models.SupportTicket) error
	UpdateTicketStatus(ctx context.Context, ticketID int64, status models.TicketStatus) error
	AppendTicketMessage(ctx context.Context, message *models.TicketMessage) error
}

type SubscriptionRepo interface {
	ActiveSubscriptionsByTrip(ctx context.Context, tripIdentifier string) ([]models.TripSubscription, error)
	ActiveSubscriptions(ctx context.Context) ([]models.TripSubscription, error)
	MarkSubscriptionSent(ctx context.Context, id int64, at time.Time) error
	DeactivateSubscription(ctx context.Context, id int64) error
}

// Messenger wraps the outbound half of the chat transport. Single attempt,
// no retries; callers log and surface failures.
type Messenger interface {
	Send(chatID int64, text string) (int, error)
	Reply(chatID int64, replyTo int, text string) (int, error)
	SendInlineKeyboard(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) (int, error)
	EditMessageKeyboard(chatID int64, messageID int, text string, markup tgbotapi.InlineKeyboardMarkup) error
	StripInlineKeyboard(chatID int64, messageID int) error
	RequestContact(chatID int64, text string) error
	RemoveReplyKeyboard(chatID int64, text string) error
	AnswerCallback(callbackID, text string) error
}
