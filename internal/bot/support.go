package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dispatch-bot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const closeDirective = "/close"

// handleAsk opens the user→operator direction. Preconditions: completed and
// verified registration, no unresolved ticket.
func (b *Bot) handleAsk(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.users.GetUserByTelegramID(ctx, msg.From.ID)
	if errors.Is(err, models.ErrNotFound) {
		_, err := b.msg.Send(msg.Chat.ID, msgPleaseRegister)
		return err
	}
	if err != nil {
		return err
	}

	if user.RegistrationState != models.RegCompleted || !user.Verified {
		_, err := b.msg.Send(msg.Chat.ID, msgAskRequiresVerified)
		return err
	}

	if _, err := b.tickets.OpenTicketByUser(ctx, user.TelegramID); err == nil {
		_, err := b.msg.Send(msg.Chat.ID, msgTicketAlreadyOpen)
		return err
	} else if !errors.Is(err, models.ErrNotFound) {
		return err
	}

	action := &models.PendingAction{
		TelegramID: user.TelegramID,
		ActionType: models.ActionAwaitingSupportQuestion,
	}
	if err := b.pending.SetPendingAction(ctx, action); err != nil {
		return err
	}

	_, err = b.msg.Send(msg.Chat.ID, msgAskQuestion)
	return err
}

// submitQuestion turns the next free-text message into an open ticket. The
// question is relayed first: the ticket row is only written once the
// operator channel actually holds a message to reply to, which keeps the
// relay id correlation a single insert.
func (b *Bot) submitQuestion(ctx context.Context, user *models.User, msg *tgbotapi.Message) error {
	question := strings.TrimSpace(msg.Text)
	if question == "" {
		_, err := b.msg.Send(msg.Chat.ID, msgAskQuestion)
		return err
	}

	relayID, err := b.msg.Send(b.operatorChatID, formatTicketRelay(user, question))
	if err != nil {
		b.log.Error("Failed to relay question to operators", "error", err)
		if _, err := b.msg.Send(msg.Chat.ID, msgRelayFailed); err != nil {
			b.log.Error("Failed to send relay failure notice", "error", err)
		}
		return nil
	}

	ticket := &models.SupportTicket{
		TelegramID:        user.TelegramID,
		Question:          question,
		Status:            models.TicketOpen,
		OperatorMessageID: relayID,
		UserMessageID:     msg.MessageID,
	}
	if err := b.tickets.CreateTicket(ctx, ticket); err != nil {
		return err
	}

	if err := b.appendHistory(ctx, ticket.ID, models.DirectionUser, question); err != nil {
		b.log.Error("Failed to append ticket history", "error", err)
	}

	if err := b.pending.ClearPendingAction(ctx, user.TelegramID); err != nil {
		return err
	}

	_, err = b.msg.Send(user.ChatID, msgQuestionSent)
	return err
}

// relayFollowUp forwards further user messages on an unresolved ticket
// without opening a second one. A follow-up on an answered ticket reopens it.
func (b *Bot) relayFollowUp(ctx context.Context, user *models.User, ticket *models.SupportTicket, msg *tgbotapi.Message) error {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil
	}

	relay := fmt.Sprintf("💬 %s:\n%s", user.FullName, text)
	if _, err := b.msg.Reply(b.operatorChatID, ticket.OperatorMessageID, relay); err != nil {
		b.log.Error("Failed to relay follow-up to operators", "error", err)
		_, err := b.msg.Send(msg.Chat.ID, msgRelayFailed)
		return err
	}

	if err := b.appendHistory(ctx, ticket.ID, models.DirectionUser, text); err != nil {
		b.log.Error("Failed to append ticket history", "error", err)
	}

	if ticket.Status == models.TicketAnswered {
		if err := b.tickets.UpdateTicketStatus(ctx, ticket.ID, models.TicketOpen); err != nil {
			return err
		}
	}

	_, err := b.msg.Send(msg.Chat.ID, msgFollowUpSent)
	return err
}

// handleOperatorReply resolves the operator→user direction. The replied-to
// message id identifies the ticket; the replier must be a verified operator
// or admin, otherwise the event is dropped with a rejection notice and the
// ticket stays untouched.
func (b *Bot) handleOperatorReply(ctx context.Context, msg *tgbotapi.Message) error {
	ticket, err := b.tickets.OpenTicketByOperatorMessage(ctx, msg.ReplyToMessage.MessageID)
	if errors.Is(err, models.ErrNotFound) {
		// Reply to something that is not an unresolved relay; ignore.
		return nil
	}
	if err != nil {
		return err
	}

	if msg.From == nil {
		return nil
	}
	replier, err := b.users.GetUserByTelegramID(ctx, msg.From.ID)
	if errors.Is(err, models.ErrNotFound) || (err == nil && !(replier.Verified && replier.Role.IsOperator())) {
		_, err := b.msg.Reply(b.operatorChatID, msg.MessageID, msgOperatorUnauthorized)
		return err
	}
	if err != nil {
		return err
	}

	text := strings.TrimSpace(msg.Text)
	closing := strings.HasPrefix(text, closeDirective)
	replyText := strings.TrimSpace(strings.TrimPrefix(text, closeDirective))
	if replyText == "" {
		if !closing {
			return nil
		}
		replyText = msgTicketClosedByOperator
	}

	asker, err := b.users.GetUserByTelegramID(ctx, ticket.TelegramID)
	if err != nil {
		return err
	}

	if _, err := b.msg.Reply(asker.ChatID, ticket.UserMessageID, "💬 Ответ оператора:\n"+replyText); err != nil {
		// Not swallowed silently: the operator channel is told.
		b.log.Error("Failed to relay operator reply", "error", err)
		if _, err := b.msg.Reply(b.operatorChatID, msg.MessageID, msgUserRelayFailed); err != nil {
			b.log.Error("Failed to send relay failure notice", "error", err)
		}
		return nil
	}

	if err := b.appendHistory(ctx, ticket.ID, models.DirectionOperator, replyText); err != nil {
		b.log.Error("Failed to append ticket history", "error", err)
	}

	status := models.TicketAnswered
	if closing {
		status = models.TicketClosed
	}
	return b.tickets.UpdateTicketStatus(ctx, ticket.ID, status)
}

// handleClose lets the user close their own ticket.
func (b *Bot) handleClose(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.users.GetUserByTelegramID(ctx, msg.From.ID)
	if errors.Is(err, models.ErrNotFound) {
		_, err := b.msg.Send(msg.Chat.ID, msgPleaseRegister)
		return err
	}
	if err != nil {
		return err
	}

	ticket, err := b.tickets.OpenTicketByUser(ctx, user.TelegramID)
	if errors.Is(err, models.ErrNotFound) {
		_, err := b.msg.Send(msg.Chat.ID, msgNoOpenTicket)
		return err
	}
	if err != nil {
		return err
	}

	if err := b.tickets.UpdateTicketStatus(ctx, ticket.ID, models.TicketClosed); err != nil {
		return err
	}

	if ticket.OperatorMessageID != 0 {
		if _, err := b.msg.Reply(b.operatorChatID, ticket.OperatorMessageID, msgClosedByUserNotice); err != nil {
			b.log.Error("Failed to notify operators about close", "error", err)
		}
	}

	_, err = b.msg.Send(msg.Chat.ID, msgTicketClosed)
	return err
}

func (b *Bot) appendHistory(ctx context.Context, ticketID int64, direction models.TicketDirection, text string) error {
	return b.tickets.AppendTicketMessage(ctx, &models.TicketMessage{
		TicketID:  ticketID,
		Direction: direction,
		Text:      text,
	})
}

func formatTicketRelay(user *models.User, question string) string {
	return fmt.Sprintf("❓ Вопрос от водителя\nИмя: %s\nТелефон: +%s\nКолонна: %s\nРоль: %s\n\n%s",
		user.FullName, user.Phone, user.Carpark, user.Role, question)
}
