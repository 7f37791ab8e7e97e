package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"dispatch-bot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// rejectionDraft is the payload of an awaiting_rejection_reason action.
type rejectionDraft struct {
	TripIdentifier string `json:"trip_identifier"`
}

// confirmTrip commits the driver's confirmation in one guarded update.
// Matching runs by (phone, trip identifier) because one press can cover
// several co-dispatched trips.
func (b *Bot) confirmTrip(ctx context.Context, q *tgbotapi.CallbackQuery, c ConfirmTrip) (string, error) {
	user, err := b.users.GetUserByTelegramID(ctx, q.From.ID)
	if errors.Is(err, models.ErrNotFound) {
		return msgPleaseRegister, nil
	}
	if err != nil {
		return "", err
	}

	affected, err := b.dispatch.ConfirmDispatchByTrip(ctx, user.Phone, c.TripIdentifier, b.now())
	if err != nil {
		return "", err
	}
	if affected == 0 {
		// Terminal status already set; a duplicate delivery is a no-op.
		return msgResponseExists, nil
	}

	if q.Message != nil {
		if err := b.msg.StripInlineKeyboard(callbackChatID(q), q.Message.MessageID); err != nil {
			b.log.Error("Failed to strip dispatch keyboard", "error", err)
		}
		if _, err := b.msg.Reply(callbackChatID(q), q.Message.MessageID, fmt.Sprintf(msgTripConfirmed, c.TripIdentifier)); err != nil {
			b.log.Error("Failed to send confirmation notice", "error", err)
		}
	}

	// The status change is committed; let subscribers know.
	b.notifier.OnResponseChange(ctx, c.TripIdentifier)

	return "Рейс подтверждён", nil
}

// rejectTrip does not touch the dispatch status yet. It parks an
// awaiting_rejection_reason continuation and asks for the reason; the next
// free-text message completes the rejection.
func (b *Bot) rejectTrip(ctx context.Context, q *tgbotapi.CallbackQuery, c RejectTrip) (string, error) {
	user, err := b.users.GetUserByTelegramID(ctx, q.From.ID)
	if errors.Is(err, models.ErrNotFound) {
		return msgPleaseRegister, nil
	}
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(rejectionDraft{TripIdentifier: c.TripIdentifier})
	if err != nil {
		return "", fmt.Errorf("failed to encode rejection draft: %w", err)
	}

	action := &models.PendingAction{
		TelegramID: user.TelegramID,
		ActionType: models.ActionAwaitingRejectionReason,
		ActionData: data,
	}
	if q.Message != nil {
		action.RelatedMessageID = q.Message.MessageID
	}
	if err := b.pending.SetPendingAction(ctx, action); err != nil {
		return "", err
	}

	if q.Message != nil {
		if err := b.msg.StripInlineKeyboard(callbackChatID(q), q.Message.MessageID); err != nil {
			b.log.Error("Failed to strip dispatch keyboard", "error", err)
		}
	}

	if _, err := b.msg.Send(callbackChatID(q), msgAskRejectionReason); err != nil {
		b.log.Error("Failed to ask for rejection reason", "error", err)
	}

	return "Укажите причину отказа", nil
}

// completeRejection finishes the two-step rejection with the driver's
// free-text reason. The comment must be non-empty.
func (b *Bot) completeRejection(ctx context.Context, user *models.User, action *models.PendingAction, msg *tgbotapi.Message) error {
	reason := strings.TrimSpace(msg.Text)
	if reason == "" {
		_, err := b.msg.Send(msg.Chat.ID, msgAskRejectionReason)
		return err
	}

	var draft rejectionDraft
	if err := json.Unmarshal(action.ActionData, &draft); err != nil || draft.TripIdentifier == "" {
		b.log.Error("Corrupt rejection draft", "data", string(action.ActionData), "error", err)
		if err := b.pending.ClearPendingAction(ctx, user.TelegramID); err != nil {
			return err
		}
		_, err := b.msg.Send(msg.Chat.ID, msgInternalError)
		return err
	}

	affected, err := b.dispatch.RejectDispatchByTrip(ctx, user.Phone, draft.TripIdentifier, reason, b.now())
	if err != nil {
		return err
	}

	if err := b.pending.ClearPendingAction(ctx, user.TelegramID); err != nil {
		return err
	}

	if affected == 0 {
		_, err := b.msg.Send(msg.Chat.ID, msgResponseExists)
		return err
	}

	notice := fmt.Sprintf(msgTripRejected, draft.TripIdentifier)
	if action.RelatedMessageID != 0 {
		if _, err := b.msg.Reply(msg.Chat.ID, action.RelatedMessageID, notice); err != nil {
			b.log.Error("Failed to send rejection notice", "error", err)
		}
	} else if _, err := b.msg.Send(msg.Chat.ID, notice); err != nil {
		b.log.Error("Failed to send rejection notice", "error", err)
	}

	b.notifier.OnResponseChange(ctx, draft.TripIdentifier)

	return nil
}

// handleStatus answers /status with the driver's registration state, the
// dispatches still awaiting a response and the open ticket, if any.
func (b *Bot) handleStatus(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.users.GetUserByTelegramID(ctx, msg.From.ID)
	if errors.Is(err, models.ErrNotFound) {
		_, err := b.msg.Send(msg.Chat.ID, msgPleaseRegister)
		return err
	}
	if err != nil {
		return err
	}

	var sb strings.Builder

	if user.RegistrationState != models.RegCompleted {
		sb.WriteString("Регистрация не завершена — используйте /start.\n")
	} else if user.Verified {
		sb.WriteString(fmt.Sprintf("👤 %s, колонна %s. Доступ подтверждён.\n", user.FullName, user.Carpark))
	} else {
		sb.WriteString(fmt.Sprintf("👤 %s, колонна %s. Ожидается проверка диспетчером.\n", user.FullName, user.Carpark))
	}

	if user.Phone != "" {
		dispatches, err := b.dispatch.PendingDispatchByPhone(ctx, user.Phone)
		if err != nil {
			return err
		}
		if len(dispatches) == 0 {
			sb.WriteString("\nРейсов без ответа нет.")
		} else {
			sb.WriteString("\nРейсы, ожидающие вашего ответа:")
			for _, d := range dispatches {
				sb.WriteString(fmt.Sprintf("\n• %s, а/м %s, погрузка %s",
					d.TripIdentifier, d.VehicleNumber, d.LoadingTime.Format("02.01 15:04")))
			}
		}
	}

	if ticket, err := b.tickets.OpenTicketByUser(ctx, user.TelegramID); err == nil {
		sb.WriteString(fmt.Sprintf("\n\nОткрытый вопрос оператору от %s.", ticket.CreatedAt.Format("02.01 15:04")))
	} else if !errors.Is(err, models.ErrNotFound) {
		return err
	}

	_, err = b.msg.Send(msg.Chat.ID, sb.String())
	return err
}
