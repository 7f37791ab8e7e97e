package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramMessenger is the production Messenger over the Bot API. It makes
// a single attempt per call; retry policy lives with the operator, not here.
type TelegramMessenger struct {
	api *tgbotapi.BotAPI
}

func NewTelegramMessenger(api *tgbotapi.BotAPI) *TelegramMessenger {
	return &TelegramMessenger{api: api}
}

func (m *TelegramMessenger) Send(chatID int64, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)

	sent, err := m.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}

	return sent.MessageID, nil
}

func (m *TelegramMessenger) Reply(chatID int64, replyTo int, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo

	sent, err := m.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to send reply: %w", err)
	}

	return sent.MessageID, nil
}

func (m *TelegramMessenger) SendInlineKeyboard(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup

	sent, err := m.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to send keyboard: %w", err)
	}

	return sent.MessageID, nil
}

func (m *TelegramMessenger) EditMessageKeyboard(chatID int64, messageID int, text string, markup tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup)

	if _, err := m.api.Request(edit); err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}

	return nil
}

// StripInlineKeyboard removes the buttons from a consumed message so the
// same choice cannot be pressed again.
func (m *TelegramMessenger) StripInlineKeyboard(chatID int64, messageID int) error {
	markup := tgbotapi.NewInlineKeyboardMarkup()
	markup.InlineKeyboard = [][]tgbotapi.InlineKeyboardButton{}
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, markup)

	if _, err := m.api.Request(edit); err != nil {
		return fmt.Errorf("failed to strip keyboard: %w", err)
	}

	return nil
}

func (m *TelegramMessenger) RequestContact(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewOneTimeReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButtonContact("📱 Поделиться номером"),
		),
	)

	if _, err := m.api.Send(msg); err != nil {
		return fmt.Errorf("failed to request contact: %w", err)
	}

	return nil
}

func (m *TelegramMessenger) RemoveReplyKeyboard(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)

	if _, err := m.api.Send(msg); err != nil {
		return fmt.Errorf("failed to remove keyboard: %w", err)
	}

	return nil
}

func (m *TelegramMessenger) AnswerCallback(callbackID, text string) error {
	callback := tgbotapi.NewCallback(callbackID, text)

	if _, err := m.api.Request(callback); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}

	return nil
}

// ConfigureWebhook drops any previous webhook (and its queued updates) and
// registers the new endpoint. Explicit delete-then-set sequence.
func ConfigureWebhook(api *tgbotapi.BotAPI, url string) error {
	_, err := api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true})
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("failed to build webhook config: %w", err)
	}

	if _, err := api.Request(wh); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}

	return nil
}
