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

// The route builder is a pure accumulator over the pending action payload:
// every press reloads the draft from the store, appends one point and writes
// it back. The first selection is the origin.

type routeDraft struct {
	PointIDs []int64 `json:"point_ids"`
}

func (d routeDraft) contains(id int64) bool {
	for _, p := range d.PointIDs {
		if p == id {
			return true
		}
	}
	return false
}

func (b *Bot) startRoute(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.users.GetUserByTelegramID(ctx, msg.From.ID)
	if errors.Is(err, models.ErrNotFound) {
		_, err := b.msg.Send(msg.Chat.ID, msgRouteRequiresReg)
		return err
	}
	if err != nil {
		return err
	}
	if user.RegistrationState != models.RegCompleted {
		_, err := b.msg.Send(msg.Chat.ID, msgRouteRequiresReg)
		return err
	}

	points, err := b.points.ListPoints(ctx)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		_, err := b.msg.Send(msg.Chat.ID, msgNoPoints)
		return err
	}

	data, err := json.Marshal(routeDraft{PointIDs: []int64{}})
	if err != nil {
		return fmt.Errorf("failed to encode route draft: %w", err)
	}

	// Starting a route replaces whatever flow was in progress.
	action := &models.PendingAction{
		TelegramID: user.TelegramID,
		ActionType: models.ActionBuildingRouteStart,
		ActionData: data,
	}
	if err := b.pending.SetPendingAction(ctx, action); err != nil {
		return err
	}

	_, err = b.msg.SendInlineKeyboard(msg.Chat.ID, msgChooseOrigin, routeKeyboard(points, routeDraft{}))
	return err
}

func (b *Bot) selectRoutePoint(ctx context.Context, q *tgbotapi.CallbackQuery, c SelectRoutePoint) (string, error) {
	action, draft, ok, err := b.routeDraft(ctx, q.From.ID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "Маршрут сейчас не строится", nil
	}

	// An already-selected point means a stale keyboard; ignore the press.
	if draft.contains(c.PointID) {
		return "", nil
	}

	selected, err := b.points.PointsByIDs(ctx, []int64{c.PointID})
	if err != nil {
		return "", err
	}
	if len(selected) == 0 {
		return "Точка не найдена", nil
	}

	draft.PointIDs = append(draft.PointIDs, c.PointID)
	data, err := json.Marshal(draft)
	if err != nil {
		return "", fmt.Errorf("failed to encode route draft: %w", err)
	}

	action.ActionType = models.ActionBuildingRouteContinue
	action.ActionData = data
	if err := b.pending.SetPendingAction(ctx, action); err != nil {
		return "", err
	}

	// Re-render the grid with the remaining choices.
	if q.Message != nil {
		points, err := b.points.ListPoints(ctx)
		if err != nil {
			return "", err
		}
		text := fmt.Sprintf(msgChooseNext, len(draft.PointIDs))
		if err := b.msg.EditMessageKeyboard(callbackChatID(q), q.Message.MessageID, text, routeKeyboard(points, draft)); err != nil {
			b.log.Error("Failed to re-render route keyboard", "error", err)
		}
	}

	return selected[0].Name, nil
}

func (b *Bot) finishRoute(ctx context.Context, q *tgbotapi.CallbackQuery) (string, error) {
	_, draft, ok, err := b.routeDraft(ctx, q.From.ID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "Маршрут сейчас не строится", nil
	}

	// Two points minimum; the draft stays put so the driver can keep going.
	if len(draft.PointIDs) < 2 {
		return "Недостаточно точек: выберите хотя бы две", nil
	}

	points, err := b.points.PointsByIDs(ctx, draft.PointIDs)
	if err != nil {
		return "", err
	}

	if err := b.pending.ClearPendingAction(ctx, q.From.ID); err != nil {
		return "", err
	}

	if q.Message != nil {
		if err := b.msg.StripInlineKeyboard(callbackChatID(q), q.Message.MessageID); err != nil {
			b.log.Error("Failed to strip route keyboard", "error", err)
		}
	}

	if _, err := b.msg.Send(callbackChatID(q), msgRouteReady+"\n"+routeURL(points)); err != nil {
		b.log.Error("Failed to send route link", "error", err)
	}

	return "Маршрут готов", nil
}

// cancelRoute is the escape hatch: it clears the continuation from any
// sub-state.
func (b *Bot) cancelRoute(ctx context.Context, q *tgbotapi.CallbackQuery) (string, error) {
	if err := b.pending.ClearPendingAction(ctx, q.From.ID); err != nil {
		return "", err
	}

	if q.Message != nil {
		if err := b.msg.StripInlineKeyboard(callbackChatID(q), q.Message.MessageID); err != nil {
			b.log.Error("Failed to strip route keyboard", "error", err)
		}
	}

	if _, err := b.msg.Send(callbackChatID(q), msgRouteCancelled); err != nil {
		b.log.Error("Failed to send cancel notice", "error", err)
	}

	return "", nil
}

// routeDraft loads and decodes the user's route-building continuation.
// ok is false when the user is not mid-route.
func (b *Bot) routeDraft(ctx context.Context, telegramID int64) (*models.PendingAction, routeDraft, bool, error) {
	var draft routeDraft

	action, err := b.pending.GetPendingAction(ctx, telegramID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, draft, false, nil
	}
	if err != nil {
		return nil, draft, false, err
	}
	if !action.IsRouteBuilding() {
		return nil, draft, false, nil
	}

	if err := json.Unmarshal(action.ActionData, &draft); err != nil {
		return nil, draft, false, fmt.Errorf("failed to decode route draft: %w", err)
	}

	return action, draft, true, nil
}

// routeKeyboard renders the not-yet-selected points two per row, with the
// finish/cancel controls at the bottom.
func routeKeyboard(points []models.Point, draft routeDraft) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton

	for _, p := range points {
		if draft.contains(p.ID) {
			continue
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(p.Name, fmt.Sprintf("%s%d", prefixRoutePoint, p.ID)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Готово", callbackRouteFinish),
		tgbotapi.NewInlineKeyboardButtonData("❌ Отмена", callbackRouteCancel),
	))

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// routeURL builds a Yandex Maps driving-route deep link with the waypoints
// in selection order.
func routeURL(points []models.Point) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = fmt.Sprintf("%.6f,%.6f", p.Latitude, p.Longitude)
	}
	return "https://yandex.ru/maps/?mode=routes&rtt=auto&rtext=" + strings.Join(parts, "~")
}
