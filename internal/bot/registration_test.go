package bot

import (
	"context"
	"testing"

	"dispatch-bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrationRoundTrip(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	const uid int64 = 100

	// /start creates the user and asks for the contact.
	assert.Equal(t, "ok", e.bot.HandleUpdate(ctx, commandUpdate(uid, "/start")))
	user, err := e.users.GetUserByTelegramID(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, models.RegAwaitingPhone, user.RegistrationState)
	assert.Equal(t, models.RoleDriver, user.Role)
	assert.Contains(t, e.msg.Contacts, uid)

	// Contact share normalizes the phone and advances the flow.
	assert.Equal(t, "ok", e.bot.HandleUpdate(ctx, contactUpdate(uid, "+79001234567")))
	user, err = e.users.GetUserByTelegramID(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "79001234567", user.Phone)
	assert.Equal(t, models.RegAwaitingFirstName, user.RegistrationState)

	// A single token is not a first name plus patronymic.
	e.bot.HandleUpdate(ctx, textUpdate(uid, "Иван"))
	user, _ = e.users.GetUserByTelegramID(ctx, uid)
	assert.Equal(t, models.RegAwaitingFirstName, user.RegistrationState)
	assert.Equal(t, msgFirstNameRetry, e.msg.lastTextFor(uid))

	e.bot.HandleUpdate(ctx, textUpdate(uid, "Иван Петрович"))
	user, _ = e.users.GetUserByTelegramID(ctx, uid)
	assert.Equal(t, "Иван Петрович", user.TempFirstName)
	assert.Equal(t, models.RegAwaitingLastName, user.RegistrationState)

	// Too-short surname is rejected.
	e.bot.HandleUpdate(ctx, textUpdate(uid, "С"))
	user, _ = e.users.GetUserByTelegramID(ctx, uid)
	assert.Equal(t, models.RegAwaitingLastName, user.RegistrationState)

	e.bot.HandleUpdate(ctx, textUpdate(uid, "Сидоров"))
	user, _ = e.users.GetUserByTelegramID(ctx, uid)
	assert.Equal(t, "Сидоров", user.TempLastName)
	assert.Equal(t, models.RegAwaitingCarpark, user.RegistrationState)

	// The carpark keyboard was presented.
	last := e.msg.Sent[len(e.msg.Sent)-1]
	require.NotNil(t, last.Markup)
	assert.Len(t, last.Markup.InlineKeyboard, 2)

	// The carpark press is the atomic commit point.
	assert.Equal(t, "ok", e.bot.HandleUpdate(ctx, callbackUpdate(uid, "carpark_АТП-1", 55)))
	user, _ = e.users.GetUserByTelegramID(ctx, uid)
	assert.Equal(t, models.RegCompleted, user.RegistrationState)
	assert.Equal(t, "Иван Петрович Сидоров", user.FullName)
	assert.Equal(t, "АТП-1", user.Carpark)
	assert.Empty(t, user.TempFirstName)
	assert.Empty(t, user.TempLastName)
	assert.Contains(t, e.msg.Stripped, 55)
}

func TestStartWhenCompletedClearsStrayPendingAction(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	user := e.seedVerifiedDriver(100, "79001234567")

	require.NoError(t, e.pending.SetPendingAction(ctx, &models.PendingAction{
		TelegramID: user.TelegramID,
		ActionType: models.ActionAwaitingSupportQuestion,
	}))

	assert.Equal(t, "ok", e.bot.HandleUpdate(ctx, commandUpdate(100, "/start")))

	_, err := e.pending.GetPendingAction(ctx, user.TelegramID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, msgAlreadyRegistered, e.msg.lastTextFor(100))
}

func TestContactShareForCompletedUserOnlyUpdatesPhone(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	e.seedVerifiedDriver(100, "79001234567")

	e.bot.HandleUpdate(ctx, contactUpdate(100, "+79009998877"))

	user, err := e.users.GetUserByTelegramID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "79009998877", user.Phone)
	assert.Equal(t, models.RegCompleted, user.RegistrationState)
	assert.Equal(t, "Иван Петрович Сидоров", user.FullName)
}

func TestStaleCarparkPressIsNoOp(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	e.seedVerifiedDriver(100, "79001234567")

	assert.Equal(t, "ok", e.bot.HandleUpdate(ctx, callbackUpdate(100, "carpark_АТП-2", 55)))

	user, _ := e.users.GetUserByTelegramID(ctx, 100)
	assert.Equal(t, "АТП-1", user.Carpark)
	assert.Len(t, e.msg.Answers, 1)
}
