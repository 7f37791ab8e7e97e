package bot

import (
	"context"
	"testing"
	"time"

	"dispatch-bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSubscription(e *env, tripIdentifier string, chatID int64, intervalMinutes int) *models.TripSubscription {
	s := &models.TripSubscription{
		ID:              int64(len(e.subs.subs) + 1),
		TripIdentifier:  tripIdentifier,
		ChatID:          chatID,
		IntervalMinutes: intervalMinutes,
		IsActive:        true,
	}
	e.subs.subs = append(e.subs.subs, s)
	return s
}

func TestFirstNotificationIsImmediate(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	seedDispatch(e, "T-42", "79001234567", 500)
	seedDispatch(e, "T-42", "79002223344", 501)
	sub := seedSubscription(e, "T-42", 777, 30)

	e.notifier.OnResponseChange(ctx, "T-42")

	texts := e.msg.textsFor(777)
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "T-42")
	assert.Contains(t, texts[0], "Отправлено: 2")
	require.NotNil(t, sub.LastSentAt)
	assert.Equal(t, e.now, *sub.LastSentAt)
}

func TestResponseTriggeredNotificationsAreDebounced(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	seedDispatch(e, "T-42", "79001234567", 500)
	seedDispatch(e, "T-42", "79002223344", 501)
	seedSubscription(e, "T-42", 777, 30)

	e.notifier.OnResponseChange(ctx, "T-42")
	require.Len(t, e.msg.textsFor(777), 1)

	// A second change inside the debounce window is suppressed.
	e.now = e.now.Add(2 * time.Minute)
	e.notifier.OnResponseChange(ctx, "T-42")
	assert.Len(t, e.msg.textsFor(777), 1)

	// Once the window elapses the next change goes out.
	e.now = e.now.Add(4 * time.Minute)
	e.notifier.OnResponseChange(ctx, "T-42")
	assert.Len(t, e.msg.textsFor(777), 2)
}

func TestResolvedTripBypassesDebounceAndDeactivates(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	e.seedVerifiedDriver(100, "79001234567")
	d := seedDispatch(e, "T-42", "79001234567", 500)
	sub := seedSubscription(e, "T-42", 777, 30)

	e.notifier.OnResponseChange(ctx, "T-42")
	require.Len(t, e.msg.textsFor(777), 1)

	// The last pending dispatch resolves right inside the debounce window.
	e.now = e.now.Add(time.Minute)
	d.ResponseStatus = models.ResponseConfirmed
	e.notifier.OnResponseChange(ctx, "T-42")

	texts := e.msg.textsFor(777)
	require.Len(t, texts, 2)
	assert.Contains(t, texts[1], "все ответы получены")
	assert.False(t, sub.IsActive)

	// Deactivation is one-way: further changes reach nobody.
	e.now = e.now.Add(time.Hour)
	e.notifier.OnResponseChange(ctx, "T-42")
	assert.Len(t, e.msg.textsFor(777), 2)
}

func TestSweepHonoursPerSubscriptionInterval(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	seedDispatch(e, "T-42", "79001234567", 500)
	seedDispatch(e, "T-43", "79001234567", 501)
	fast := seedSubscription(e, "T-42", 777, 10)
	slow := seedSubscription(e, "T-43", 888, 60)
	sent := e.now.Add(-15 * time.Minute)
	fast.LastSentAt = &sent
	slow.LastSentAt = &sent

	e.notifier.SweepIntervals(ctx)

	// 15 minutes since the last send: only the 10-minute subscription fires.
	assert.Len(t, e.msg.textsFor(777), 1)
	assert.Empty(t, e.msg.textsFor(888))
}

func TestSweepSharesStatsAcrossSubscribers(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	seedDispatch(e, "T-42", "79001234567", 500)
	seedSubscription(e, "T-42", 777, 10)
	seedSubscription(e, "T-42", 888, 10)

	e.notifier.SweepIntervals(ctx)

	assert.Len(t, e.msg.textsFor(777), 1)
	assert.Len(t, e.msg.textsFor(888), 1)
}

func TestConfirmationFeedsSubscribers(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	e.seedVerifiedDriver(100, "79001234567")
	seedDispatch(e, "T-42", "79001234567", 500)
	sub := seedSubscription(e, "T-42", 777, 30)

	e.bot.HandleUpdate(ctx, callbackUpdate(100, "confirm_T-42", 500))

	// The only dispatch is confirmed, so the subscriber gets the final
	// notice straight away.
	texts := e.msg.textsFor(777)
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "все ответы получены")
	assert.Contains(t, texts[0], "Подтверждено: 1")
	assert.False(t, sub.IsActive)
}

func TestSendFailureKeepsSubscriptionFresh(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	seedDispatch(e, "T-42", "79001234567", 500)
	sub := seedSubscription(e, "T-42", 777, 30)
	e.msg.SendErr = assert.AnError

	e.notifier.OnResponseChange(ctx, "T-42")

	// A failed send leaves last_sent_at untouched so the next change retries.
	assert.Nil(t, sub.LastSentAt)
	assert.True(t, sub.IsActive)
}
