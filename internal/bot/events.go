package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"grouphelper/internal/interaction"
)

// handleJoin challenges or greets every new member, depending on chat settings
func (b *Bot) handleJoin(ctx context.Context, message *tgbotapi.Message) {
	chat, err := b.db.GetChat(ctx, message.Chat.ID)
	if err != nil {
		b.logger.Error("Failed to load chat settings", zap.Error(err), zap.Int64("chat_id", message.Chat.ID))
		return
	}

	for i := range message.NewChatMembers {
		user := &message.NewChatMembers[i]
		if user.ID == b.self.ID || user.IsBot {
			continue
		}

		switch {
		case chat.CaptchaEnabled:
			if err := b.issueCaptcha(ctx, message.Chat.ID, user); err != nil {
				b.logger.Error("Failed to issue captcha", zap.Error(err),
					zap.Int64("chat_id", message.Chat.ID), zap.Int64("user_id", user.ID))
			}
		case chat.GreetingsEnabled:
			title := message.Chat.Title
			if title == "" {
				title = "the chat"
			}
			b.sendText(message.Chat.ID, fmt.Sprintf("👋 Welcome %s to %s!", targetFromUser(user).Mention(), title))
		}
	}
}

// handleLeave drops any pending captcha of a departing member and says goodbye
func (b *Bot) handleLeave(ctx context.Context, message *tgbotapi.Message) {
	user := message.LeftChatMember
	if user.ID == b.self.ID {
		return
	}

	key := interaction.UserKey(message.Chat.ID, user.ID)
	b.guards.Cancel(key)
	b.interactions.Delete(key)

	chat, err := b.db.GetChat(ctx, message.Chat.ID)
	if err != nil {
		b.logger.Error("Failed to load chat settings", zap.Error(err), zap.Int64("chat_id", message.Chat.ID))
		return
	}
	if chat.GreetingsEnabled {
		b.sendText(message.Chat.ID, fmt.Sprintf("👋 Goodbye %s!", targetFromUser(user).Mention()))
	}
}
