package bot

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grouphelper/internal/command"
	"grouphelper/internal/interaction"
)

var newcomer = &tgbotapi.User{ID: 3, FirstName: "Carol", UserName: "carol"}

func enableCaptcha(t *testing.T, b *Bot) {
	t.Helper()
	ctx := context.Background()
	chat, err := b.db.GetChat(ctx, testChatID)
	require.NoError(t, err)
	chat.CaptchaEnabled = true
	require.NoError(t, b.db.SaveChat(ctx, chat))
}

func join(b *Bot, users ...tgbotapi.User) {
	msg := groupMessage(&users[0], "")
	msg.NewChatMembers = users
	b.HandleUpdate(tgbotapi.Update{Message: msg})
}

func pending(t *testing.T, b *Bot, userID int64) (captchaChallenge, bool) {
	t.Helper()
	payload, ok := b.interactions.Get(interaction.UserKey(testChatID, userID))
	if !ok {
		return captchaChallenge{}, false
	}
	c, ok := payload.(captchaChallenge)
	require.True(t, ok)
	return c, true
}

func answer(b *Bot, from *tgbotapi.User, challenge captchaChallenge, userID int64, value string) {
	data := command.Callback("verify", "user_id", strconv.FormatInt(userID, 10), "val", value)
	b.HandleUpdate(tgbotapi.Update{CallbackQuery: callback(from, challenge.MessageID, data)})
}

func wrongCode(code string) string {
	d := (code[0]-'0'+1)%10 + '0'
	return string(d) + code[1:]
}

func TestCaptcha_Issue(t *testing.T) {
	b, api, _ := newTestBot(t, Options{CaptchaTimeout: time.Hour})
	enableCaptcha(t, b)

	join(b, *newcomer, tgbotapi.User{ID: 50, IsBot: true})

	restricts := requestsOf[tgbotapi.RestrictChatMemberConfig](api)
	require.Len(t, restricts, 1, "bots are not challenged")
	assert.Equal(t, newcomer.ID, restricts[0].UserID)
	assert.False(t, restricts[0].Permissions.CanSendMessages)

	challenge, ok := pending(t, b, newcomer.ID)
	require.True(t, ok)
	assert.Len(t, challenge.Code, captchaCodeLength)
	assert.Zero(t, challenge.Attempt)
	assert.NotZero(t, challenge.MessageID)
	assert.True(t, b.guards.Active(interaction.UserKey(testChatID, newcomer.ID)))

	texts := api.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "@carol")
	assert.Contains(t, texts[0], "60 minutes")
}

func TestCaptcha_CorrectAnswerVerifies(t *testing.T) {
	b, api, _ := newTestBot(t, Options{CaptchaTimeout: time.Hour})
	enableCaptcha(t, b)
	join(b, *newcomer)
	challenge, _ := pending(t, b, newcomer.ID)
	api.reset()

	answer(b, newcomer, challenge, newcomer.ID, challenge.Code)

	_, ok := pending(t, b, newcomer.ID)
	assert.False(t, ok)
	assert.False(t, b.guards.Active(interaction.UserKey(testChatID, newcomer.ID)))

	restricts := requestsOf[tgbotapi.RestrictChatMemberConfig](api)
	require.Len(t, restricts, 1)
	assert.True(t, restricts[0].Permissions.CanSendMessages)

	deletes := requestsOf[tgbotapi.DeleteMessageConfig](api)
	require.Len(t, deletes, 1)
	assert.Equal(t, challenge.MessageID, deletes[0].MessageID)

	assert.Equal(t, []string{"✅ Verified @carol! You may chat now."}, api.texts())
}

func TestCaptcha_ThreeWrongAnswersKick(t *testing.T) {
	b, api, _ := newTestBot(t, Options{CaptchaTimeout: time.Hour})
	enableCaptcha(t, b)
	join(b, *newcomer)
	challenge, _ := pending(t, b, newcomer.ID)
	wrong := wrongCode(challenge.Code)

	answer(b, newcomer, challenge, newcomer.ID, wrong)
	c, ok := pending(t, b, newcomer.ID)
	require.True(t, ok)
	assert.Equal(t, 1, c.Attempt)

	answer(b, newcomer, challenge, newcomer.ID, wrong)
	c, ok = pending(t, b, newcomer.ID)
	require.True(t, ok)
	assert.Equal(t, 2, c.Attempt)
	assert.Empty(t, requestsOf[tgbotapi.BanChatMemberConfig](api))

	edits := requestsOf[tgbotapi.EditMessageCaptionConfig](api)
	require.Len(t, edits, 2)
	assert.Contains(t, edits[1].Caption, "Incorrect captcha")
	require.NotNil(t, edits[1].ReplyMarkup)
	assert.Equal(t, "cmd:captcha user_id:3", *edits[1].ReplyMarkup.InlineKeyboard[0][0].CallbackData)

	answer(b, newcomer, challenge, newcomer.ID, wrong)
	_, ok = pending(t, b, newcomer.ID)
	assert.False(t, ok)
	assert.False(t, b.guards.Active(interaction.UserKey(testChatID, newcomer.ID)))

	bans := requestsOf[tgbotapi.BanChatMemberConfig](api)
	require.Len(t, bans, 1)
	assert.Equal(t, newcomer.ID, bans[0].UserID)
	unbans := requestsOf[tgbotapi.UnbanChatMemberConfig](api)
	require.Len(t, unbans, 1)
	assert.True(t, unbans[0].OnlyIfBanned)

	edits = requestsOf[tgbotapi.EditMessageCaptionConfig](api)
	assert.Equal(t, "❌ Captcha failed. The user has been kicked.", edits[len(edits)-1].Caption)
}

func TestCaptcha_RetryKeepsAttempt(t *testing.T) {
	b, api, _ := newTestBot(t, Options{CaptchaTimeout: time.Hour})
	enableCaptcha(t, b)
	join(b, *newcomer)
	first, _ := pending(t, b, newcomer.ID)

	answer(b, newcomer, first, newcomer.ID, wrongCode(first.Code))
	api.reset()

	data := command.Callback("captcha", "user_id", strconv.FormatInt(newcomer.ID, 10))
	b.HandleUpdate(tgbotapi.Update{CallbackQuery: callback(newcomer, first.MessageID, data)})

	second, ok := pending(t, b, newcomer.ID)
	require.True(t, ok)
	assert.Equal(t, 1, second.Attempt)
	assert.NotEqual(t, first.MessageID, second.MessageID)
	assert.True(t, b.guards.Active(interaction.UserKey(testChatID, newcomer.ID)))

	deletes := requestsOf[tgbotapi.DeleteMessageConfig](api)
	require.Len(t, deletes, 1)
	assert.Equal(t, first.MessageID, deletes[0].MessageID)

	answer(b, newcomer, second, newcomer.ID, second.Code)
	_, ok = pending(t, b, newcomer.ID)
	assert.False(t, ok)
}

func TestCaptcha_OtherUsers(t *testing.T) {
	b, api, _ := newTestBot(t, Options{CaptchaTimeout: time.Hour})
	enableCaptcha(t, b)
	join(b, *newcomer)
	challenge, _ := pending(t, b, newcomer.ID)
	api.reset()

	// a plain member cannot answer for someone else
	answer(b, alice, challenge, newcomer.ID, challenge.Code)
	c, ok := pending(t, b, newcomer.ID)
	require.True(t, ok)
	assert.Zero(t, c.Attempt)
	assert.True(t, b.guards.Active(interaction.UserKey(testChatID, newcomer.ID)), "rejected clicks leave the timer armed")
	assert.Empty(t, requestsOf[tgbotapi.RestrictChatMemberConfig](api))

	// an admin who can restrict members can
	api.setMember(alice.ID, tgbotapi.ChatMember{Status: "administrator", CanRestrictMembers: true})
	answer(b, alice, challenge, newcomer.ID, challenge.Code)
	_, ok = pending(t, b, newcomer.ID)
	assert.False(t, ok)
}

func TestCaptcha_NoEntryIsIgnored(t *testing.T) {
	b, api, _ := newTestBot(t, Options{CaptchaTimeout: time.Hour})

	answer(b, newcomer, captchaChallenge{MessageID: 7}, newcomer.ID, "123456")

	assert.Empty(t, api.texts())
	assert.Empty(t, requestsOf[tgbotapi.RestrictChatMemberConfig](api))
	assert.Empty(t, requestsOf[tgbotapi.BanChatMemberConfig](api))
	assert.Len(t, requestsOf[tgbotapi.CallbackConfig](api), 1, "only the callback acknowledgement")
}

func TestCaptcha_ExpiryKicksOnce(t *testing.T) {
	b, api, _ := newTestBot(t, Options{CaptchaTimeout: 50 * time.Millisecond})
	enableCaptcha(t, b)
	join(b, *newcomer)

	assert.Eventually(t, func() bool {
		_, ok := pending(t, b, newcomer.ID)
		return !ok && len(requestsOf[tgbotapi.UnbanChatMemberConfig](api)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	assert.Len(t, requestsOf[tgbotapi.BanChatMemberConfig](api), 1, "kicked exactly once")
	assert.False(t, b.guards.Active(interaction.UserKey(testChatID, newcomer.ID)))

	edits := requestsOf[tgbotapi.EditMessageCaptionConfig](api)
	require.Len(t, edits, 1)
	assert.Equal(t, "⏰ Captcha expired. The user has been kicked.", edits[0].Caption)
}

func TestCaptcha_ExpiryAfterVerificationIsNoop(t *testing.T) {
	b, api, _ := newTestBot(t, Options{CaptchaTimeout: 100 * time.Millisecond})
	enableCaptcha(t, b)
	join(b, *newcomer)
	challenge, _ := pending(t, b, newcomer.ID)

	answer(b, newcomer, challenge, newcomer.ID, challenge.Code)
	time.Sleep(300 * time.Millisecond)

	assert.Empty(t, requestsOf[tgbotapi.BanChatMemberConfig](api))
	assert.Empty(t, requestsOf[tgbotapi.EditMessageCaptionConfig](api))
}

func TestCaptcha_ExpiryWithoutChallengeDoesNotKick(t *testing.T) {
	b, api, _ := newTestBot(t, Options{CaptchaTimeout: time.Hour})

	b.expireCaptcha(testChatID, newcomer.ID)

	assert.Empty(t, requestsOf[tgbotapi.BanChatMemberConfig](api))
	assert.Empty(t, requestsOf[tgbotapi.EditMessageCaptionConfig](api))
}

func TestCaptcha_VerifiedWhileWrongAnswerIsEdited(t *testing.T) {
	b, api, _ := newTestBot(t, Options{CaptchaTimeout: time.Hour})
	enableCaptcha(t, b)
	join(b, *newcomer)
	challenge, _ := pending(t, b, newcomer.ID)
	key := interaction.UserKey(testChatID, newcomer.ID)

	editing := make(chan struct{})
	release := make(chan struct{})
	var blocked atomic.Bool
	api.setOnRequest(func(c tgbotapi.Chattable) {
		if _, ok := c.(tgbotapi.EditMessageCaptionConfig); ok && blocked.CompareAndSwap(false, true) {
			close(editing)
			<-release
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		answer(b, newcomer, challenge, newcomer.ID, wrongCode(challenge.Code))
	}()
	<-editing

	// an admin solves it while the "incorrect" caption is still being written
	api.setMember(alice.ID, tgbotapi.ChatMember{Status: "administrator", CanRestrictMembers: true})
	answer(b, alice, challenge, newcomer.ID, challenge.Code)
	close(release)
	<-done

	_, ok := pending(t, b, newcomer.ID)
	assert.False(t, ok)
	assert.False(t, b.guards.Active(key), "no expiry may be armed for a verified user")
	assert.Empty(t, requestsOf[tgbotapi.BanChatMemberConfig](api))
	assert.Contains(t, api.texts(), "✅ Verified @carol! You may chat now.")
}

func TestCaptcha_RejoinReplacesChallenge(t *testing.T) {
	b, api, _ := newTestBot(t, Options{CaptchaTimeout: time.Hour})
	enableCaptcha(t, b)
	join(b, *newcomer)
	first, _ := pending(t, b, newcomer.ID)
	api.reset()

	join(b, *newcomer)

	second, ok := pending(t, b, newcomer.ID)
	require.True(t, ok)
	assert.NotEqual(t, first.MessageID, second.MessageID)

	deletes := requestsOf[tgbotapi.DeleteMessageConfig](api)
	require.Len(t, deletes, 1, "the stale challenge is removed")
	assert.Equal(t, first.MessageID, deletes[0].MessageID)
}

func TestCaptcha_LeaveClearsChallenge(t *testing.T) {
	b, api, _ := newTestBot(t, Options{CaptchaTimeout: time.Hour})
	enableCaptcha(t, b)
	join(b, *newcomer)

	msg := groupMessage(newcomer, "")
	msg.LeftChatMember = newcomer
	b.HandleUpdate(tgbotapi.Update{Message: msg})

	_, ok := pending(t, b, newcomer.ID)
	assert.False(t, ok)
	assert.False(t, b.guards.Active(interaction.UserKey(testChatID, newcomer.ID)))
	assert.Empty(t, requestsOf[tgbotapi.BanChatMemberConfig](api))
}

func TestGreetings(t *testing.T) {
	b, api, _ := newTestBot(t, Options{})
	ctx := context.Background()
	chat, err := b.db.GetChat(ctx, testChatID)
	require.NoError(t, err)
	chat.GreetingsEnabled = true
	require.NoError(t, b.db.SaveChat(ctx, chat))

	join(b, *newcomer)
	msg := groupMessage(newcomer, "")
	msg.LeftChatMember = newcomer
	b.HandleUpdate(tgbotapi.Update{Message: msg})

	assert.Equal(t, []string{"👋 Welcome @carol to Test Chat!", "👋 Goodbye @carol!"}, api.texts())
}

func TestCaptchaChoices(t *testing.T) {
	code := newCaptchaCode()
	choices := captchaChoices(code)

	assert.Len(t, choices, captchaOptions)
	assert.Contains(t, choices, code)
	seen := make(map[string]bool)
	for _, c := range choices {
		assert.False(t, seen[c], "duplicate choice %s", c)
		seen[c] = true
		assert.Len(t, c, captchaCodeLength)
	}

	img, err := renderCaptcha(code)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(img[:4]))
}

func TestHumanTimeout(t *testing.T) {
	assert.Equal(t, "3 minutes", humanTimeout(3*time.Minute))
	assert.Equal(t, "1 minute", humanTimeout(time.Minute))
	assert.Equal(t, "50ms", humanTimeout(50*time.Millisecond))
}
