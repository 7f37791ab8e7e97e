package bot

import (
	"context"
	"errors"
	"time"

	"dispatch-bot/internal/models"
	"dispatch-bot/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot routes one inbound update at a time to the workflow that owns it.
// It keeps no state between updates; every decision is re-derived from the
// store, so a restart mid-flow is safe.
type Bot struct {
	msg      Messenger
	users    UserRepo
	pending  PendingActionRepo
	dispatch DispatchRepo
	points   PointRepo
	tickets  TicketRepo
	notifier *Notifier

	operatorChatID int64
	carparks       []string
	log            *logger.Logger
	now            func() time.Time
}

type Deps struct {
	Messenger      Messenger
	Users          UserRepo
	Pending        PendingActionRepo
	Dispatch       DispatchRepo
	Points         PointRepo
	Tickets        TicketRepo
	Notifier       *Notifier
	OperatorChatID int64
	Carparks       []string
	Logger         *logger.Logger
}

func New(d Deps) *Bot {
	return &Bot{
		msg:            d.Messenger,
		users:          d.Users,
		pending:        d.Pending,
		dispatch:       d.Dispatch,
		points:         d.Points,
		tickets:        d.Tickets,
		notifier:       d.Notifier,
		operatorChatID: d.OperatorChatID,
		carparks:       d.Carparks,
		log:            d.Logger,
		now:            time.Now,
	}
}

// HandleUpdate classifies and executes exactly one inbound event. It never
// lets an error escape: the returned outcome tag is all the transport sees,
// and the webhook layer acknowledges with HTTP 200 regardless.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) (outcome string) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Recovered from panic while processing update", "panic", r, "update_id", update.UpdateID)
			outcome = "error"
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		return b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		return b.handleMessage(ctx, update.Message)
	default:
		return "ignored"
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) string {
	// Priority 1: the operator channel. A reply there is always an
	// operator reply, never a normal user event; anything else in that
	// chat is channel chatter.
	if msg.Chat != nil && msg.Chat.ID == b.operatorChatID {
		if msg.ReplyToMessage == nil {
			return "ignored"
		}
		if err := b.handleOperatorReply(ctx, msg); err != nil {
			b.log.Error("Operator reply handling failed", "error", err)
			return "error"
		}
		return "ok"
	}

	if msg.From == nil || msg.Chat == nil {
		return "ignored"
	}

	if msg.IsCommand() {
		return b.handleCommand(ctx, msg)
	}

	// Contact payloads always advance registration, ahead of generic text.
	if msg.Contact != nil {
		if err := b.handleContact(ctx, msg); err != nil {
			b.apologize(msg.Chat.ID, err, "contact")
			return "error"
		}
		return "ok"
	}

	return b.handleText(ctx, msg)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) string {
	command := msg.Command()
	b.log.Info("Handling command", "command", command, "user_id", msg.From.ID)

	var err error
	switch command {
	case "start":
		err = b.handleStart(ctx, msg)
	case "route":
		err = b.startRoute(ctx, msg)
	case "ask":
		err = b.handleAsk(ctx, msg)
	case "close":
		err = b.handleClose(ctx, msg)
	case "status":
		err = b.handleStatus(ctx, msg)
	case "help":
		_, err = b.msg.Send(msg.Chat.ID, msgHelp)
	default:
		_, err = b.msg.Send(msg.Chat.ID, msgUnknownCommand)
	}

	if err != nil {
		b.apologize(msg.Chat.ID, err, command)
		return "error"
	}
	return "ok"
}

// handleText dispatches free text: first by the user's pending action, then
// by an unfinished registration, then as a ticket follow-up, and finally to
// the fallback.
func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) string {
	user, err := b.users.GetUserByTelegramID(ctx, msg.From.ID)
	if errors.Is(err, models.ErrNotFound) {
		if _, err := b.msg.Send(msg.Chat.ID, msgPleaseRegister); err != nil {
			b.log.Error("Failed to send registration prompt", "error", err)
		}
		return "ok"
	}
	if err != nil {
		b.apologize(msg.Chat.ID, err, "text")
		return "error"
	}

	action, err := b.pending.GetPendingAction(ctx, user.TelegramID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		b.apologize(msg.Chat.ID, err, "text")
		return "error"
	}

	if action != nil {
		switch action.ActionType {
		case models.ActionAwaitingSupportQuestion:
			err = b.submitQuestion(ctx, user, msg)
		case models.ActionAwaitingRejectionReason:
			err = b.completeRejection(ctx, user, action, msg)
		case models.ActionBuildingRouteStart, models.ActionBuildingRouteContinue:
			_, err = b.msg.Send(msg.Chat.ID, msgRouteUseButtons)
		default:
			// Unknown continuation type; drop it rather than wedge the user.
			err = b.pending.ClearPendingAction(ctx, user.TelegramID)
		}
		if err != nil {
			b.apologize(msg.Chat.ID, err, string(action.ActionType))
			return "error"
		}
		return "ok"
	}

	// Registration steps are keyed off the user row, not a pending action.
	switch user.RegistrationState {
	case models.RegAwaitingPhone, models.RegAwaitingFirstName, models.RegAwaitingLastName, models.RegAwaitingCarpark:
		if err := b.advanceRegistration(ctx, user, msg); err != nil {
			b.apologize(msg.Chat.ID, err, "registration")
			return "error"
		}
		return "ok"
	}

	// Free text with an unresolved ticket and no other continuation is a
	// follow-up, not a new question.
	ticket, err := b.tickets.OpenTicketByUser(ctx, user.TelegramID)
	if err == nil {
		if err := b.relayFollowUp(ctx, user, ticket, msg); err != nil {
			b.apologize(msg.Chat.ID, err, "follow_up")
			return "error"
		}
		return "ok"
	}
	if !errors.Is(err, models.ErrNotFound) {
		b.apologize(msg.Chat.ID, err, "follow_up")
		return "error"
	}

	if _, err := b.msg.Send(msg.Chat.ID, msgFallback); err != nil {
		b.log.Error("Failed to send fallback message", "error", err)
	}
	return "ok"
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) string {
	b.log.Info("Received callback query", "from", q.From.ID, "data", q.Data)

	cmd, ok := ParseCallback(q.Data)
	if !ok {
		b.log.Warn("Unrecognized callback data", "data", q.Data)
		b.answer(q.ID, "")
		return "ignored"
	}

	var toast string
	var err error
	switch c := cmd.(type) {
	case SelectCarpark:
		toast, err = b.selectCarpark(ctx, q, c)
	case ConfirmTrip:
		toast, err = b.confirmTrip(ctx, q, c)
	case RejectTrip:
		toast, err = b.rejectTrip(ctx, q, c)
	case SelectRoutePoint:
		toast, err = b.selectRoutePoint(ctx, q, c)
	case FinishRoute:
		toast, err = b.finishRoute(ctx, q)
	case CancelRoute:
		toast, err = b.cancelRoute(ctx, q)
	}

	outcome := "ok"
	if err != nil {
		b.log.Error("Callback handling failed", "data", q.Data, "error", err)
		toast = msgInternalError
		outcome = "error"
	}

	// Exactly one acknowledgement per button press.
	b.answer(q.ID, toast)
	return outcome
}

func (b *Bot) answer(callbackID, text string) {
	if err := b.msg.AnswerCallback(callbackID, text); err != nil {
		b.log.Error("Failed to answer callback", "error", err)
	}
}

// apologize logs the failure and sends the generic error notice. Workflow
// errors stop here; they are never re-thrown past the router.
func (b *Bot) apologize(chatID int64, err error, step string) {
	b.log.Error("Workflow step failed", "step", step, "error", err)
	if _, sendErr := b.msg.Send(chatID, msgInternalError); sendErr != nil {
		b.log.Error("Failed to send error notice", "error", sendErr)
	}
}

// callbackChatID resolves the chat a button press came from. Private chats
// share the user's id, which covers presses on messages Telegram no longer
// attaches to the query.
func callbackChatID(q *tgbotapi.CallbackQuery) int64 {
	if q.Message != nil && q.Message.Chat != nil {
		return q.Message.Chat.ID
	}
	return q.From.ID
}
