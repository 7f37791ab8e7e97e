package bot

import (
	"context"
	"strings"
	"time"

	"dispatch-bot/internal/models"
	"dispatch-bot/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// In-memory fakes of the port interfaces plus a recording Messenger. They
// mirror the store's semantics: single row per user for pending actions,
// guarded status transitions for dispatch messages.

const operatorChat int64 = -100500

type sentMessage struct {
	ChatID  int64
	Text    string
	ReplyTo int
	Markup  *tgbotapi.InlineKeyboardMarkup
}

type recorderMessenger struct {
	nextID   int
	Sent     []sentMessage
	Edits    []sentMessage
	Stripped []int
	Contacts []int64
	Answers  []string
	SendErr  error
}

func (r *recorderMessenger) record(chatID int64, text string, replyTo int, markup *tgbotapi.InlineKeyboardMarkup) (int, error) {
	if r.SendErr != nil {
		return 0, r.SendErr
	}
	r.nextID++
	r.Sent = append(r.Sent, sentMessage{ChatID: chatID, Text: text, ReplyTo: replyTo, Markup: markup})
	return r.nextID, nil
}

func (r *recorderMessenger) Send(chatID int64, text string) (int, error) {
	return r.record(chatID, text, 0, nil)
}

func (r *recorderMessenger) Reply(chatID int64, replyTo int, text string) (int, error) {
	return r.record(chatID, text, replyTo, nil)
}

func (r *recorderMessenger) SendInlineKeyboard(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) (int, error) {
	return r.record(chatID, text, 0, &markup)
}

func (r *recorderMessenger) EditMessageKeyboard(chatID int64, messageID int, text string, markup tgbotapi.InlineKeyboardMarkup) error {
	r.Edits = append(r.Edits, sentMessage{ChatID: chatID, Text: text, ReplyTo: messageID, Markup: &markup})
	return nil
}

func (r *recorderMessenger) StripInlineKeyboard(chatID int64, messageID int) error {
	r.Stripped = append(r.Stripped, messageID)
	return nil
}

func (r *recorderMessenger) RequestContact(chatID int64, text string) error {
	r.Contacts = append(r.Contacts, chatID)
	return nil
}

func (r *recorderMessenger) RemoveReplyKeyboard(chatID int64, text string) error {
	_, err := r.record(chatID, text, 0, nil)
	return err
}

func (r *recorderMessenger) AnswerCallback(callbackID, text string) error {
	r.Answers = append(r.Answers, text)
	return nil
}

func (r *recorderMessenger) textsFor(chatID int64) []string {
	var texts []string
	for _, m := range r.Sent {
		if m.ChatID == chatID {
			texts = append(texts, m.Text)
		}
	}
	return texts
}

func (r *recorderMessenger) lastTextFor(chatID int64) string {
	texts := r.textsFor(chatID)
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func (r *recorderMessenger) lastAnswer() string {
	if len(r.Answers) == 0 {
		return ""
	}
	return r.Answers[len(r.Answers)-1]
}

type memUsers struct {
	byID   map[int64]*models.User
	getErr error
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[int64]*models.User)}
}

func (m *memUsers) GetUserByTelegramID(_ context.Context, telegramID int64) (*models.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	u, ok := m.byID[telegramID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) CreateUser(_ context.Context, user *models.User) error {
	if existing, ok := m.byID[user.TelegramID]; ok {
		existing.ChatID = user.ChatID
		user.ID = existing.ID
		return nil
	}
	user.ID = int64(len(m.byID) + 1)
	cp := *user
	m.byID[user.TelegramID] = &cp
	return nil
}

func (m *memUsers) UpdateUser(_ context.Context, user *models.User) error {
	existing, ok := m.byID[user.TelegramID]
	if !ok {
		return models.ErrNotFound
	}
	existing.ChatID = user.ChatID
	existing.Phone = user.Phone
	existing.TempFirstName = user.TempFirstName
	existing.TempLastName = user.TempLastName
	existing.RegistrationState = user.RegistrationState
	return nil
}

func (m *memUsers) CompleteRegistration(_ context.Context, telegramID int64, carpark string) (*models.User, error) {
	u, ok := m.byID[telegramID]
	if !ok || u.RegistrationState != models.RegAwaitingCarpark {
		return nil, models.ErrNotFound
	}
	u.FirstName = u.TempFirstName
	u.LastName = u.TempLastName
	u.FullName = u.TempFirstName + " " + u.TempLastName
	u.TempFirstName = ""
	u.TempLastName = ""
	u.Carpark = carpark
	u.RegistrationState = models.RegCompleted
	cp := *u
	return &cp, nil
}

type memPending struct {
	byUser map[int64]*models.PendingAction
}

func newMemPending() *memPending {
	return &memPending{byUser: make(map[int64]*models.PendingAction)}
}

func (m *memPending) GetPendingAction(_ context.Context, telegramID int64) (*models.PendingAction, error) {
	a, ok := m.byUser[telegramID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memPending) SetPendingAction(_ context.Context, action *models.PendingAction) error {
	cp := *action
	cp.CreatedAt = time.Now()
	m.byUser[action.TelegramID] = &cp
	return nil
}

func (m *memPending) ClearPendingAction(_ context.Context, telegramID int64) error {
	delete(m.byUser, telegramID)
	return nil
}

type memDispatch struct {
	messages []*models.DispatchMessage
}

func (m *memDispatch) ConfirmDispatchByTrip(_ context.Context, phone, tripIdentifier string, at time.Time) (int64, error) {
	var n int64
	for _, d := range m.messages {
		if d.Phone == phone && d.TripIdentifier == tripIdentifier && d.ResponseStatus == models.ResponsePending {
			d.ResponseStatus = models.ResponseConfirmed
			t := at
			d.ResponseAt = &t
			n++
		}
	}
	return n, nil
}

func (m *memDispatch) RejectDispatchByTrip(_ context.Context, phone, tripIdentifier, comment string, at time.Time) (int64, error) {
	var n int64
	for _, d := range m.messages {
		if d.Phone == phone && d.TripIdentifier == tripIdentifier && d.ResponseStatus == models.ResponsePending {
			d.ResponseStatus = models.ResponseRejected
			d.ResponseComment = comment
			t := at
			d.ResponseAt = &t
			n++
		}
	}
	return n, nil
}

func (m *memDispatch) PendingDispatchByPhone(_ context.Context, phone string) ([]models.DispatchMessage, error) {
	var result []models.DispatchMessage
	for _, d := range m.messages {
		if d.Phone == phone && d.Status == models.DeliverySent && d.ResponseStatus == models.ResponsePending {
			result = append(result, *d)
		}
	}
	return result, nil
}

func (m *memDispatch) TripStatsByIdentifier(_ context.Context, tripIdentifier string) (*models.TripStats, error) {
	stats := &models.TripStats{TripIdentifier: tripIdentifier}
	for _, d := range m.messages {
		if d.TripIdentifier != tripIdentifier || d.Status != models.DeliverySent {
			continue
		}
		stats.Sent++
		switch d.ResponseStatus {
		case models.ResponseConfirmed:
			stats.Confirmed++
		case models.ResponseRejected:
			stats.Rejected++
		default:
			stats.Pending++
		}
	}
	return stats, nil
}

type memPoints struct {
	points []models.Point
}

func (m *memPoints) ListPoints(_ context.Context) ([]models.Point, error) {
	return append([]models.Point(nil), m.points...), nil
}

func (m *memPoints) PointsByIDs(_ context.Context, ids []int64) ([]models.Point, error) {
	var result []models.Point
	for _, id := range ids {
		for _, p := range m.points {
			if p.ID == id {
				result = append(result, p)
				break
			}
		}
	}
	return result, nil
}

type memTickets struct {
	nextID   int64
	tickets  []*models.SupportTicket
	messages []*models.TicketMessage
}

func unresolved(t *models.SupportTicket) bool {
	return t.Status == models.TicketOpen || t.Status == models.TicketAnswered
}

func (m *memTickets) OpenTicketByUser(_ context.Context, telegramID int64) (*models.SupportTicket, error) {
	for _, t := range m.tickets {
		if t.TelegramID == telegramID && unresolved(t) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memTickets) OpenTicketByOperatorMessage(_ context.Context, messageID int) (*models.SupportTicket, error) {
	for _, t := range m.tickets {
		if t.OperatorMessageID == messageID && unresolved(t) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memTickets) CreateTicket(_ context.Context, ticket *models.SupportTicket) error {
	m.nextID++
	ticket.ID = m.nextID
	ticket.CreatedAt = time.Now()
	cp := *ticket
	m.tickets = append(m.tickets, &cp)
	return nil
}

func (m *memTickets) UpdateTicketStatus(_ context.Context, ticketID int64, status models.TicketStatus) error {
	for _, t := range m.tickets {
		if t.ID == ticketID {
			t.Status = status
			if status == models.TicketClosed {
				now := time.Now()
				t.ClosedAt = &now
			}
		}
	}
	return nil
}

func (m *memTickets) AppendTicketMessage(_ context.Context, message *models.TicketMessage) error {
	cp := *message
	m.messages = append(m.messages, &cp)
	return nil
}

type memSubs struct {
	subs []*models.TripSubscription
}

func (m *memSubs) ActiveSubscriptionsByTrip(_ context.Context, tripIdentifier string) ([]models.TripSubscription, error) {
	var result []models.TripSubscription
	for _, s := range m.subs {
		if s.IsActive && s.TripIdentifier == tripIdentifier {
			result = append(result, *s)
		}
	}
	return result, nil
}

func (m *memSubs) ActiveSubscriptions(_ context.Context) ([]models.TripSubscription, error) {
	var result []models.TripSubscription
	for _, s := range m.subs {
		if s.IsActive {
			result = append(result, *s)
		}
	}
	return result, nil
}

func (m *memSubs) MarkSubscriptionSent(_ context.Context, id int64, at time.Time) error {
	for _, s := range m.subs {
		if s.ID == id {
			t := at
			s.LastSentAt = &t
		}
	}
	return nil
}

func (m *memSubs) DeactivateSubscription(_ context.Context, id int64) error {
	for _, s := range m.subs {
		if s.ID == id {
			s.IsActive = false
		}
	}
	return nil
}

// env wires a Bot over the fakes with a controllable clock.
type env struct {
	bot      *Bot
	notifier *Notifier
	msg      *recorderMessenger
	users    *memUsers
	pending  *memPending
	dispatch *memDispatch
	points   *memPoints
	tickets  *memTickets
	subs     *memSubs
	now      time.Time
}

func newEnv() *env {
	e := &env{
		msg:      &recorderMessenger{},
		users:    newMemUsers(),
		pending:  newMemPending(),
		dispatch: &memDispatch{},
		points:   &memPoints{},
		tickets:  &memTickets{},
		subs:     &memSubs{},
		now:      time.Date(2025, 4, 7, 12, 0, 0, 0, time.UTC),
	}

	e.notifier = NewNotifier(e.dispatch, e.subs, e.msg, 5*time.Minute, logger.NewNop())
	e.notifier.now = func() time.Time { return e.now }

	e.bot = New(Deps{
		Messenger:      e.msg,
		Users:          e.users,
		Pending:        e.pending,
		Dispatch:       e.dispatch,
		Points:         e.points,
		Tickets:        e.tickets,
		Notifier:       e.notifier,
		OperatorChatID: operatorChat,
		Carparks:       []string{"АТП-1", "АТП-2"},
		Logger:         logger.NewNop(),
	})
	e.bot.now = func() time.Time { return e.now }

	return e
}

func (e *env) seedVerifiedDriver(telegramID int64, phone string) *models.User {
	u := &models.User{
		ID:                telegramID,
		TelegramID:        telegramID,
		ChatID:            telegramID,
		Phone:             phone,
		FirstName:         "Иван Петрович",
		LastName:          "Сидоров",
		FullName:          "Иван Петрович Сидоров",
		Carpark:           "АТП-1",
		RegistrationState: models.RegCompleted,
		Verified:          true,
		Role:              models.RoleDriver,
	}
	e.users.byID[telegramID] = u
	return u
}

func (e *env) seedOperator(telegramID int64) *models.User {
	u := &models.User{
		ID:                telegramID,
		TelegramID:        telegramID,
		ChatID:            telegramID,
		FullName:          "Оператор Смены",
		RegistrationState: models.RegCompleted,
		Verified:          true,
		Role:              models.RoleOperator,
	}
	e.users.byID[telegramID] = u
	return u
}

var testMsgID = 1000

func nextTestMsgID() int {
	testMsgID++
	return testMsgID
}

func textUpdate(userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: nextTestMsgID(),
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
	}}
}

func commandUpdate(userID int64, text string) tgbotapi.Update {
	u := textUpdate(userID, text)
	cmd := strings.Fields(text)[0]
	u.Message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	return u
}

func contactUpdate(userID int64, phone string) tgbotapi.Update {
	u := textUpdate(userID, "")
	u.Message.Contact = &tgbotapi.Contact{PhoneNumber: phone}
	return u
}

func callbackUpdate(userID int64, data string, messageID int) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb",
		From: &tgbotapi.User{ID: userID},
		Data: data,
		Message: &tgbotapi.Message{
			MessageID: messageID,
			Chat:      &tgbotapi.Chat{ID: userID},
		},
	}}
}

func operatorReplyUpdate(operatorID int64, replyTo int, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID:      nextTestMsgID(),
		From:           &tgbotapi.User{ID: operatorID},
		Chat:           &tgbotapi.Chat{ID: operatorChat},
		Text:           text,
		ReplyToMessage: &tgbotapi.Message{MessageID: replyTo},
	}}
}
