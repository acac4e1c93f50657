package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"grouphelper/internal/reporting"
)

// handleMessage processes a single message
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	// Recover from panics to prevent bot crashes
	defer func() {
		if r := recover(); r != nil {
			reporting.CapturePanic(r, map[string]string{"handler": "message"})
			b.logger.Error("Recovered from panic in handleMessage",
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()

	if message.Chat == nil {
		return
	}

	if len(message.NewChatMembers) > 0 {
		b.handleJoin(ctx, message)
		return
	}
	if message.LeftChatMember != nil {
		b.handleLeave(ctx, message)
		return
	}

	b.dispatch(ctx, newMessage(message))
}

// handleCallbackQuery processes inline keyboard button clicks
func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	// Recover from panics
	defer func() {
		if r := recover(); r != nil {
			reporting.CapturePanic(r, map[string]string{"handler": "callback"})
			b.logger.Error("Recovered from panic in handleCallbackQuery",
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()

	// Answer the callback query to remove loading state
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.Warn("Failed to answer callback query", zap.Error(err))
	}

	if query.Message == nil || query.Message.Chat == nil {
		return
	}

	b.dispatch(ctx, newCallbackMessage(query))
}
