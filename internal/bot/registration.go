package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"dispatch-bot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Registration: awaiting_phone → awaiting_first_name → awaiting_last_name →
// awaiting_carpark → completed. Name fields are staged in temp columns and
// promoted in one atomic update on the carpark press, so nobody ever
// observes a completed user with stale data.

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.users.GetUserByTelegramID(ctx, msg.From.ID)
	if errors.Is(err, models.ErrNotFound) {
		user = &models.User{
			TelegramID:        msg.From.ID,
			ChatID:            msg.Chat.ID,
			RegistrationState: models.RegAwaitingPhone,
			Role:              models.RoleDriver,
		}
		if err := b.users.CreateUser(ctx, user); err != nil {
			return err
		}
		return b.msg.RequestContact(msg.Chat.ID, msgWelcome)
	}
	if err != nil {
		return err
	}

	if user.RegistrationState == models.RegCompleted {
		// Defensive reset: a stray continuation must not survive /start.
		if err := b.pending.ClearPendingAction(ctx, user.TelegramID); err != nil {
			return err
		}
		_, err := b.msg.Send(msg.Chat.ID, msgAlreadyRegistered)
		return err
	}

	return b.promptRegistrationStep(user, msg.Chat.ID)
}

// promptRegistrationStep repeats the prompt for whatever step the user is on.
func (b *Bot) promptRegistrationStep(user *models.User, chatID int64) error {
	switch user.RegistrationState {
	case models.RegAwaitingPhone:
		return b.msg.RequestContact(chatID, msgWelcome)
	case models.RegAwaitingFirstName:
		_, err := b.msg.Send(chatID, msgAskFirstName)
		return err
	case models.RegAwaitingLastName:
		_, err := b.msg.Send(chatID, msgAskLastName)
		return err
	case models.RegAwaitingCarpark:
		_, err := b.msg.SendInlineKeyboard(chatID, msgChooseCarpark, b.carparkKeyboard())
		return err
	}
	return nil
}

func (b *Bot) handleContact(ctx context.Context, msg *tgbotapi.Message) error {
	phone := strings.TrimPrefix(strings.TrimSpace(msg.Contact.PhoneNumber), "+")

	user, err := b.users.GetUserByTelegramID(ctx, msg.From.ID)
	if errors.Is(err, models.ErrNotFound) {
		user = &models.User{
			TelegramID:        msg.From.ID,
			ChatID:            msg.Chat.ID,
			RegistrationState: models.RegAwaitingPhone,
			Role:              models.RoleDriver,
		}
		if err := b.users.CreateUser(ctx, user); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	user.ChatID = msg.Chat.ID
	user.Phone = phone

	// A completed user sharing contact again only refreshes the phone;
	// it does not restart registration.
	if user.RegistrationState == models.RegCompleted {
		if err := b.users.UpdateUser(ctx, user); err != nil {
			return err
		}
		return b.msg.RemoveReplyKeyboard(msg.Chat.ID, msgPhoneUpdated)
	}

	user.RegistrationState = models.RegAwaitingFirstName
	if err := b.users.UpdateUser(ctx, user); err != nil {
		return err
	}

	return b.msg.RemoveReplyKeyboard(msg.Chat.ID, msgAskFirstName)
}

// advanceRegistration consumes one free-text step of the flow.
func (b *Bot) advanceRegistration(ctx context.Context, user *models.User, msg *tgbotapi.Message) error {
	switch user.RegistrationState {
	case models.RegAwaitingPhone:
		return b.msg.RequestContact(msg.Chat.ID, msgWelcome)

	case models.RegAwaitingFirstName:
		return b.stageFirstName(ctx, user, msg)

	case models.RegAwaitingLastName:
		return b.stageLastName(ctx, user, msg)

	case models.RegAwaitingCarpark:
		_, err := b.msg.SendInlineKeyboard(msg.Chat.ID, msgChooseCarpark, b.carparkKeyboard())
		return err
	}
	return nil
}

// stageFirstName expects first name plus patronymic: at least two tokens.
func (b *Bot) stageFirstName(ctx context.Context, user *models.User, msg *tgbotapi.Message) error {
	text := strings.TrimSpace(msg.Text)
	if len(strings.Fields(text)) < 2 {
		_, err := b.msg.Send(msg.Chat.ID, msgFirstNameRetry)
		return err
	}

	user.TempFirstName = text
	user.RegistrationState = models.RegAwaitingLastName
	if err := b.users.UpdateUser(ctx, user); err != nil {
		return err
	}

	_, err := b.msg.Send(msg.Chat.ID, msgAskLastName)
	return err
}

func (b *Bot) stageLastName(ctx context.Context, user *models.User, msg *tgbotapi.Message) error {
	text := strings.TrimSpace(msg.Text)
	if utf8.RuneCountInString(text) < 2 {
		_, err := b.msg.Send(msg.Chat.ID, msgLastNameRetry)
		return err
	}

	user.TempLastName = text
	user.RegistrationState = models.RegAwaitingCarpark
	if err := b.users.UpdateUser(ctx, user); err != nil {
		return err
	}

	_, err := b.msg.SendInlineKeyboard(msg.Chat.ID, msgChooseCarpark, b.carparkKeyboard())
	return err
}

// selectCarpark is the commit point of the whole flow: the guarded update
// promotes the staged names and marks the user completed in one statement.
func (b *Bot) selectCarpark(ctx context.Context, q *tgbotapi.CallbackQuery, c SelectCarpark) (string, error) {
	user, err := b.users.CompleteRegistration(ctx, q.From.ID, c.Name)
	if errors.Is(err, models.ErrNotFound) {
		// Not awaiting a carpark choice: stale keyboard or replayed press.
		return "", nil
	}
	if err != nil {
		return "", err
	}

	if q.Message != nil {
		if err := b.msg.StripInlineKeyboard(callbackChatID(q), q.Message.MessageID); err != nil {
			b.log.Error("Failed to strip carpark keyboard", "error", err)
		}
	}

	if _, err := b.msg.Send(user.ChatID, fmt.Sprintf(msgRegistered, user.FullName)); err != nil {
		b.log.Error("Failed to send registration notice", "error", err)
	}

	return "Готово", nil
}

func (b *Bot) carparkKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(b.carparks))
	for _, name := range b.carparks {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(name, prefixCarpark+name),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
