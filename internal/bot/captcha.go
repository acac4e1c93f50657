package bot

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/dchest/captcha"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"grouphelper/internal/command"
	"grouphelper/internal/interaction"
	"grouphelper/internal/reporting"
)

const (
	captchaCodeLength = 6
	captchaOptions    = 4
	// captchaMaxAttempt is the attempt count at which one more wrong answer kicks
	captchaMaxAttempt = 2
)

// newCaptchaCode returns a random decimal code
func newCaptchaCode() string {
	digits := captcha.RandomDigits(captchaCodeLength)
	code := make([]byte, len(digits))
	for i, d := range digits {
		code[i] = '0' + d
	}
	return string(code)
}

// captchaChoices returns the code and distinct decoys in random order
func captchaChoices(code string) []string {
	choices := []string{code}
	seen := map[string]bool{code: true}
	for len(choices) < captchaOptions {
		decoy := newCaptchaCode()
		if seen[decoy] {
			continue
		}
		seen[decoy] = true
		choices = append(choices, decoy)
	}
	rand.Shuffle(len(choices), func(i, j int) {
		choices[i], choices[j] = choices[j], choices[i]
	})
	return choices
}

// renderCaptcha draws code as a PNG image
func renderCaptcha(code string) ([]byte, error) {
	digits := make([]byte, len(code))
	for i := 0; i < len(code); i++ {
		digits[i] = code[i] - '0'
	}

	var buf bytes.Buffer
	img := captcha.NewImage(code, digits, captcha.StdWidth, captcha.StdHeight)
	if _, err := img.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to render captcha: %w", err)
	}
	return buf.Bytes(), nil
}

// captchaKeyboard lays out the answer buttons two per row
func captchaKeyboard(userID int64, choices []string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, choice := range choices {
		data := command.Callback("verify", "user_id", strconv.FormatInt(userID, 10), "val", choice)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(choice, data))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// sendChallenge posts a fresh captcha image and returns the new code and message id
func (b *Bot) sendChallenge(chatID, userID int64, mention string) (string, int, error) {
	code := newCaptchaCode()
	img, err := renderCaptcha(code)
	if err != nil {
		return "", 0, err
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "captcha.png", Bytes: img})
	photo.Caption = fmt.Sprintf("👋 Welcome %s!\nPick the code shown in the image within %s to start chatting.",
		mention, humanTimeout(b.captchaTimeout))
	photo.ReplyMarkup = captchaKeyboard(userID, captchaChoices(code))

	sent, err := b.send(photo)
	if err != nil {
		return "", 0, fmt.Errorf("failed to send captcha: %w", err)
	}
	return code, sent.MessageID, nil
}

// issueCaptcha mutes a newcomer and challenges them
func (b *Bot) issueCaptcha(ctx context.Context, chatID int64, user *tgbotapi.User) error {
	if err := b.restrict(chatID, user.ID, noPermissions(), time.Time{}); err != nil {
		return fmt.Errorf("failed to restrict newcomer: %w", err)
	}

	mention := targetFromUser(user).Mention()
	code, messageID, err := b.sendChallenge(chatID, user.ID, mention)
	if err != nil {
		return err
	}

	key := interaction.UserKey(chatID, user.ID)
	if old, ok := b.interactions.Get(key); ok {
		if stale, ok := old.(captchaChallenge); ok {
			b.deleteMessage(chatID, stale.MessageID)
		}
	}
	b.interactions.Set(key, captchaChallenge{
		Code:      code,
		MessageID: messageID,
		UserName:  mention,
	})
	b.armCaptchaExpiry(chatID, user.ID)

	b.logger.Info("Captcha issued", zap.Int64("chat_id", chatID), zap.Int64("user_id", user.ID))
	return nil
}

func (b *Bot) armCaptchaExpiry(chatID, userID int64) {
	b.guards.Arm(interaction.UserKey(chatID, userID), b.captchaTimeout, func() {
		b.expireCaptcha(chatID, userID)
	})
}

// expireCaptcha runs when a guard fires: the user never answered in time
func (b *Bot) expireCaptcha(chatID, userID int64) {
	defer func() {
		if r := recover(); r != nil {
			reporting.CapturePanic(r, map[string]string{"handler": "captcha_expiry"})
			b.logger.Error("Recovered from panic in captcha expiry", zap.Any("panic", r))
		}
	}()

	payload, ok := b.interactions.Pop(interaction.UserKey(chatID, userID))
	if !ok {
		// answered or left while the guard was firing
		return
	}

	if err := b.kick(chatID, userID); err != nil {
		b.logger.Error("Failed to kick after captcha expiry", zap.Error(err),
			zap.Int64("chat_id", chatID), zap.Int64("user_id", userID))
	}

	if challenge, isChallenge := payload.(captchaChallenge); isChallenge {
		text := "⏰ Retry expired. The user has been kicked."
		if challenge.Attempt == 0 {
			text = "⏰ Captcha expired. The user has been kicked."
		}
		b.editCaption(chatID, challenge.MessageID, text, nil)
	}

	b.logger.Info("Captcha expired", zap.Int64("chat_id", chatID), zap.Int64("user_id", userID))
}

// captchaTarget reads the challenged user from a callback and checks the clicker may act on it
func (b *Bot) captchaTarget(ctx context.Context, m *Message, inv command.Invocation) (int64, captchaChallenge, bool, error) {
	if !m.IsCallback {
		return 0, captchaChallenge{}, false, nil
	}
	raw, _ := inv.Flag("user_id")
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID == 0 {
		return 0, captchaChallenge{}, false, nil
	}

	payload, ok := b.interactions.Get(interaction.UserKey(m.ChatID, userID))
	if !ok {
		return 0, captchaChallenge{}, false, nil
	}
	challenge, ok := payload.(captchaChallenge)
	if !ok {
		return 0, captchaChallenge{}, false, nil
	}

	if m.From.ID != userID {
		clicker, err := b.member(ctx, m.ChatID, m.From.ID)
		if err != nil {
			return 0, captchaChallenge{}, false, err
		}
		if !clicker.Permissions.CanRestrictMembers {
			return 0, captchaChallenge{}, false, nil
		}
	}
	return userID, challenge, true, nil
}

// handleVerify checks a submitted captcha answer
func (b *Bot) handleVerify(ctx context.Context, m *Message, inv command.Invocation) error {
	value, _ := inv.Flag("val")
	if value == "" {
		return nil
	}
	userID, challenge, ok, err := b.captchaTarget(ctx, m, inv)
	if err != nil || !ok {
		return err
	}

	key := interaction.UserKey(m.ChatID, userID)
	b.guards.Cancel(key)

	if value == challenge.Code {
		if _, ok := b.interactions.Pop(key); !ok {
			return nil
		}
		if err := b.restrict(m.ChatID, userID, fullPermissions(), time.Time{}); err != nil {
			return fmt.Errorf("failed to lift restriction: %w", err)
		}
		b.deleteMessage(m.ChatID, challenge.MessageID)
		b.sendText(m.ChatID, fmt.Sprintf("✅ Verified %s! You may chat now.", challenge.UserName))
		b.logger.Info("Captcha verified", zap.Int64("chat_id", m.ChatID), zap.Int64("user_id", userID))
		return nil
	}

	var kick bool
	found := b.interactions.Update(key, func(payload any) any {
		c := payload.(captchaChallenge)
		if c.Attempt >= captchaMaxAttempt {
			kick = true
			return c
		}
		c.Attempt++
		challenge = c
		return c
	})
	if !found {
		return nil
	}

	if kick {
		if _, ok := b.interactions.Pop(key); !ok {
			return nil
		}
		if err := b.kick(m.ChatID, userID); err != nil {
			return err
		}
		b.editCaption(m.ChatID, challenge.MessageID, "❌ Captcha failed. The user has been kicked.", nil)
		b.logger.Info("Captcha failed", zap.Int64("chat_id", m.ChatID), zap.Int64("user_id", userID))
		return nil
	}

	retry := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔁 Retry captcha",
			command.Callback("captcha", "user_id", strconv.FormatInt(userID, 10))),
	))
	b.editCaption(m.ChatID, challenge.MessageID,
		fmt.Sprintf("❌ Incorrect captcha.\n⏳ Retry within %s or you will be kicked.", humanTimeout(b.captchaTimeout)),
		&retry)
	if _, pending := b.interactions.Get(key); pending {
		b.armCaptchaExpiry(m.ChatID, userID)
	}
	return nil
}

// handleCaptchaRetry replaces the challenge with a new code, keeping the attempt count
func (b *Bot) handleCaptchaRetry(ctx context.Context, m *Message, inv command.Invocation) error {
	userID, challenge, ok, err := b.captchaTarget(ctx, m, inv)
	if err != nil || !ok {
		return err
	}

	code, messageID, err := b.sendChallenge(m.ChatID, userID, challenge.UserName)
	if err != nil {
		return err
	}

	key := interaction.UserKey(m.ChatID, userID)
	updated := b.interactions.Update(key, func(payload any) any {
		c := payload.(captchaChallenge)
		c.Code = code
		c.MessageID = messageID
		return c
	})
	if !updated {
		b.deleteMessage(m.ChatID, messageID)
		return nil
	}

	b.deleteMessage(m.ChatID, challenge.MessageID)
	b.armCaptchaExpiry(m.ChatID, userID)
	return nil
}

// humanTimeout renders whole minutes as "3 minutes" and anything else as a duration
func humanTimeout(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		minutes := int(d / time.Minute)
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	return d.String()
}
