package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// genericFailure is shown whenever a handler fails unexpectedly
const genericFailure = "❌ Something went wrong. Please try again later."

// send delivers a message-producing request and logs failures
func (b *Bot) send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, err := b.api.Send(c)
	if err != nil {
		b.logger.Error("Failed to send message", zap.Error(err))
		return msg, err
	}
	return msg, nil
}

// request performs a request whose result is not a message (deletes, restrictions, acks)
func (b *Bot) request(c tgbotapi.Chattable) error {
	if _, err := b.api.Request(c); err != nil {
		b.logger.Error("Telegram request failed", zap.Error(err))
		return err
	}
	return nil
}

// reply answers m with plain text
func (b *Bot) reply(m *Message, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(m.ChatID, text)
	msg.ReplyToMessageID = m.MessageID
	msg.AllowSendingWithoutReply = true
	return b.send(msg)
}

// replyHTML answers m with HTML formatted text
func (b *Bot) replyHTML(m *Message, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(m.ChatID, text)
	msg.ReplyToMessageID = m.MessageID
	msg.AllowSendingWithoutReply = true
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	return b.send(msg)
}

// sendReplyTo answers an earlier message by id, as multi-step flows do
func (b *Bot) sendReplyTo(chatID int64, messageID int, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = messageID
	msg.AllowSendingWithoutReply = true
	return b.send(msg)
}

// sendText posts plain text to a chat without quoting
func (b *Bot) sendText(chatID int64, text string) (tgbotapi.Message, error) {
	return b.send(tgbotapi.NewMessage(chatID, text))
}

// sendHTML posts HTML formatted text to a chat without quoting
func (b *Bot) sendHTML(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	return b.send(msg)
}

// deleteMessage removes a message, logging failures only
func (b *Bot) deleteMessage(chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	_ = b.request(tgbotapi.NewDeleteMessage(chatID, messageID))
}

// kick removes a user from a chat without banning them for good
func (b *Bot) kick(chatID, userID int64) error {
	member := tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID}
	if err := b.request(tgbotapi.BanChatMemberConfig{ChatMemberConfig: member}); err != nil {
		return fmt.Errorf("failed to ban user %d: %w", userID, err)
	}
	if err := b.request(tgbotapi.UnbanChatMemberConfig{ChatMemberConfig: member, OnlyIfBanned: true}); err != nil {
		return fmt.Errorf("failed to unban user %d: %w", userID, err)
	}
	return nil
}

// restrict applies permissions to a single member
func (b *Bot) restrict(chatID, userID int64, perms *tgbotapi.ChatPermissions, until time.Time) error {
	cfg := tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		Permissions:      perms,
	}
	if !until.IsZero() {
		cfg.UntilDate = until.Unix()
	}
	return b.request(cfg)
}

// editCaption replaces the caption of a message; a nil markup removes the keyboard
func (b *Bot) editCaption(chatID int64, messageID int, caption string, markup *tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageCaption(chatID, messageID, caption)
	edit.ReplyMarkup = markup
	return b.request(edit)
}

// formatDuration renders d as "Xd Xh Xm Xs", leaving out days when there are none
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	days := total / 86400
	hours := total % 86400 / 3600
	minutes := total % 3600 / 60
	seconds := total % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}

// messageLink builds a t.me deep link to a message of a supergroup
func messageLink(chatID int64, messageID int) string {
	id := strings.TrimPrefix(strconv.FormatInt(chatID, 10), "-100")
	return fmt.Sprintf("https://t.me/c/%s/%d", id, messageID)
}

// orNA substitutes "N/A" for empty values
func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
