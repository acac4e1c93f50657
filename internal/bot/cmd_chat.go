package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"grouphelper/internal/command"
	"grouphelper/internal/models"
)

// handleAFK marks the sender as away
func (b *Bot) handleAFK(ctx context.Context, m *Message, inv command.Invocation) error {
	reason := strings.TrimSpace(inv.Text)
	_, err := b.db.SwapAFK(ctx, m.From.ID, models.AFKInfo{
		Status: true,
		Reason: reason,
		Since:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to save AFK: %w", err)
	}

	text := m.Sender().Mention() + ", you're now AFK 💤"
	if reason != "" {
		text += "\nReason: " + reason
	}
	_, err = b.reply(m, text)
	return err
}

// handleBan bans the targeted users from the chat
func (b *Bot) handleBan(ctx context.Context, m *Message, inv command.Invocation) error {
	targets := m.Targets()
	if len(targets) == 0 {
		_, err := b.reply(m, "❗ Please mention at least one user or reply to their message to ban them.")
		return err
	}
	reason := stripMentions(inv.Text)

	for _, target := range targets {
		if target.UserID == b.self.ID {
			b.reply(m, "❌ I can't ban myself.")
			continue
		}
		member, err := b.chatMember(m.ChatID, target.UserID)
		if err != nil {
			return err
		}
		if member.IsCreator() {
			b.reply(m, "❌ Cannot ban group owner: "+target.Mention())
			continue
		}

		if err := b.request(tgbotapi.BanChatMemberConfig{
			ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: m.ChatID, UserID: target.UserID},
		}); err != nil {
			return fmt.Errorf("failed to ban %d: %w", target.UserID, err)
		}

		text := fmt.Sprintf("✅ User with ID %d has been banned.", target.UserID)
		if reason != "" {
			text += "\nReason: " + reason
		}
		b.sendText(m.ChatID, text)
	}
	return nil
}

// handleUnban lifts chat bans of the targeted users
func (b *Bot) handleUnban(ctx context.Context, m *Message, inv command.Invocation) error {
	targets := m.Targets()
	if len(targets) == 0 {
		_, err := b.reply(m, "❗ Please mention at least one user or reply to their message to unban them.")
		return err
	}

	for _, target := range targets {
		if target.UserID == b.self.ID {
			continue
		}
		if err := b.request(tgbotapi.UnbanChatMemberConfig{
			ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: m.ChatID, UserID: target.UserID},
			OnlyIfBanned:     true,
		}); err != nil {
			return fmt.Errorf("failed to unban %d: %w", target.UserID, err)
		}
		b.sendText(m.ChatID, fmt.Sprintf("✅ User with ID %d has been unbanned.", target.UserID))
	}
	return nil
}

// handleMute removes send rights from the targeted users, optionally for time:<minutes>
func (b *Bot) handleMute(ctx context.Context, m *Message, inv command.Invocation) error {
	targets := m.Targets()
	if len(targets) == 0 {
		_, err := b.reply(m, "❗ Reply to a user or mention at least one user to mute.")
		return err
	}

	var until time.Time
	var minutes int
	if raw, ok := inv.Flag("time"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n <= 0 {
			_, err := b.reply(m, "❌ time must be a positive number of minutes.")
			return err
		}
		minutes = n
		until = time.Now().Add(time.Duration(n) * time.Minute)
	}

	for _, target := range targets {
		if target.UserID == b.self.ID {
			b.reply(m, "❌ I can't mute myself.")
			continue
		}
		member, err := b.chatMember(m.ChatID, target.UserID)
		if err != nil {
			return err
		}
		if member.IsCreator() || member.IsAdministrator() {
			b.reply(m, "❌ Cannot mute an admin: "+target.Mention())
			continue
		}

		if err := b.restrict(m.ChatID, target.UserID, noPermissions(), until); err != nil {
			return fmt.Errorf("failed to mute %d: %w", target.UserID, err)
		}

		text := fmt.Sprintf("🔇 %s has been muted.", target.Mention())
		if minutes > 0 {
			text = fmt.Sprintf("🔇 %s has been muted for %d minutes.", target.Mention(), minutes)
		}
		b.sendText(m.ChatID, text)
	}
	return nil
}

// handleUnmute restores send rights of muted users
func (b *Bot) handleUnmute(ctx context.Context, m *Message, inv command.Invocation) error {
	targets := m.Targets()
	if len(targets) == 0 {
		_, err := b.reply(m, "❗ Reply to a user or mention at least one user to unmute.")
		return err
	}

	for _, target := range targets {
		member, err := b.chatMember(m.ChatID, target.UserID)
		if err != nil {
			return err
		}
		if member.Status != "restricted" || member.CanSendMessages {
			b.sendText(m.ChatID, fmt.Sprintf("⚠️ %s is not muted.", target.Mention()))
			continue
		}

		if err := b.restrict(m.ChatID, target.UserID, fullPermissions(), time.Time{}); err != nil {
			return fmt.Errorf("failed to unmute %d: %w", target.UserID, err)
		}
		b.sendText(m.ChatID, fmt.Sprintf("🔊 %s has been unmuted.", target.Mention()))
	}
	return nil
}

// handleDemote strips admin rights from the targeted users
func (b *Bot) handleDemote(ctx context.Context, m *Message, inv command.Invocation) error {
	targets := m.Targets()
	if len(targets) == 0 {
		_, err := b.reply(m, "❗ Please mention at least one user or reply to their message to demote them.")
		return err
	}

	for _, target := range targets {
		switch target.UserID {
		case m.From.ID:
			b.reply(m, "❌ You can't demote yourself.")
			continue
		case b.self.ID:
			b.reply(m, "❌ I can't demote myself.")
			continue
		}

		member, err := b.chatMember(m.ChatID, target.UserID)
		if err != nil {
			return err
		}
		if member.IsCreator() {
			b.reply(m, "❌ Cannot demote group owner: "+target.Mention())
			continue
		}

		if err := b.request(tgbotapi.PromoteChatMemberConfig{
			ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: m.ChatID, UserID: target.UserID},
		}); err != nil {
			return fmt.Errorf("failed to demote %d: %w", target.UserID, err)
		}
		b.reply(m, fmt.Sprintf("✅ Demoted %s to regular user.", target.Mention()))
	}
	return nil
}

// handleLock snapshots the chat's member permissions and mutes everyone
func (b *Bot) handleLock(ctx context.Context, m *Message, inv command.Invocation) error {
	record, err := b.db.GetChat(ctx, m.ChatID)
	if err != nil {
		return err
	}
	if record.SavedPermissions != nil {
		_, err := b.reply(m, fmt.Sprintf("🔒 Chat is already locked. Use %sunlock first.", b.prefix))
		return err
	}

	chat, err := b.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: m.ChatID}})
	if err != nil {
		return fmt.Errorf("failed to get chat: %w", err)
	}
	snapshot := fromTelegramPermissions(chat.Permissions)

	record.SavedPermissions = &snapshot
	if err := b.db.SaveChat(ctx, record); err != nil {
		return fmt.Errorf("failed to save permission snapshot: %w", err)
	}

	if err := b.request(tgbotapi.SetChatPermissionsConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: m.ChatID},
		Permissions: noPermissions(),
	}); err != nil {
		record.SavedPermissions = nil
		if saveErr := b.db.SaveChat(ctx, record); saveErr != nil {
			b.logger.Error("Failed to drop permission snapshot", zap.Error(saveErr), zap.Int64("chat_id", m.ChatID))
		}
		return fmt.Errorf("failed to lock chat: %w", err)
	}

	_, err = b.reply(m, "🔒 Chat locked.")
	return err
}

// handleUnlock restores exactly the permissions captured by the last lock
func (b *Bot) handleUnlock(ctx context.Context, m *Message, inv command.Invocation) error {
	record, err := b.db.GetChat(ctx, m.ChatID)
	if err != nil {
		return err
	}
	if record.SavedPermissions == nil {
		_, err := b.reply(m, "🔓 Chat is not locked.")
		return err
	}

	if err := b.request(tgbotapi.SetChatPermissionsConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: m.ChatID},
		Permissions: toTelegramPermissions(*record.SavedPermissions),
	}); err != nil {
		return fmt.Errorf("failed to unlock chat: %w", err)
	}

	record.SavedPermissions = nil
	if err := b.db.SaveChat(ctx, record); err != nil {
		return fmt.Errorf("failed to clear permission snapshot: %w", err)
	}

	_, err = b.reply(m, "🔓 Chat unlocked.")
	return err
}

// handleSettings shows the chat toggles; callbacks with toggle:<name> flip one
func (b *Bot) handleSettings(ctx context.Context, m *Message, inv command.Invocation) error {
	record, err := b.db.GetChat(ctx, m.ChatID)
	if err != nil {
		return err
	}

	if action, ok := inv.Flag("toggle"); ok && m.IsCallback {
		switch action {
		case "greetings":
			record.GreetingsEnabled = !record.GreetingsEnabled
		case "captcha":
			if !record.CaptchaEnabled {
				self, err := b.member(ctx, m.ChatID, b.self.ID)
				if err != nil {
					return err
				}
				if !self.Permissions.CanRestrictMembers {
					_, err := b.sendHTML(m.ChatID, "❌ I need <b>can_restrict_members</b> permission to enable captcha.")
					return err
				}
			}
			record.CaptchaEnabled = !record.CaptchaEnabled
		default:
			return nil
		}
		if err := b.db.SaveChat(ctx, record); err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
	}

	text, keyboard := settingsView(record)
	if m.IsCallback {
		edit := tgbotapi.NewEditMessageTextAndMarkup(m.ChatID, m.MessageID, text, keyboard)
		edit.ParseMode = tgbotapi.ModeHTML
		return b.request(edit)
	}

	msg := tgbotapi.NewMessage(m.ChatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = keyboard
	_, err = b.send(msg)
	return err
}

func settingsView(chat *models.Chat) (string, tgbotapi.InlineKeyboardMarkup) {
	state := func(on bool) (string, string) {
		if on {
			return "Enabled", "Enabled ✅"
		}
		return "Disabled", "Disabled ❌"
	}
	greetings, greetingsButton := state(chat.GreetingsEnabled)
	captchaState, captchaButton := state(chat.CaptchaEnabled)

	text := "<blockquote><b>⚙️Chat Settings</b>\n" +
		fmt.Sprintf("├<b>Greetings:</b> %s\n", greetings) +
		fmt.Sprintf("└<b>Captcha:</b> %s</blockquote>", captchaState)

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(
			"Greetings "+greetingsButton, command.Callback("settings", "toggle", "greetings"))),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(
			"Captcha "+captchaButton, command.Callback("settings", "toggle", "captcha"))),
	)
	return text, keyboard
}

// handleSetChatPhoto sets the chat photo from the message or the replied photo
func (b *Bot) handleSetChatPhoto(ctx context.Context, m *Message, inv command.Invocation) error {
	var fileID string
	switch {
	case m.Raw != nil && len(m.Raw.Photo) > 0:
		fileID = m.Raw.Photo[len(m.Raw.Photo)-1].FileID
	case m.ReplyTo != nil && len(m.ReplyTo.Photo) > 0:
		fileID = m.ReplyTo.Photo[len(m.ReplyTo.Photo)-1].FileID
	}
	if fileID == "" {
		_, err := b.reply(m, "❗ Please reply to a photo or send one with the command.")
		return err
	}

	loading, _ := b.reply(m, "👨‍💻")
	defer b.deleteMessage(m.ChatID, loading.MessageID)

	data, err := b.downloadFile(ctx, fileID)
	if err != nil {
		return err
	}

	if err := b.request(tgbotapi.NewChatPhoto(m.ChatID, tgbotapi.FileBytes{Name: "photo.jpg", Bytes: data})); err != nil {
		return fmt.Errorf("failed to set chat photo: %w", err)
	}

	_, err = b.reply(m, "✅ Group profile picture updated successfully!")
	return err
}

// downloadFile fetches a Telegram file by id
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file: %w", err)
	}
	return b.converter.Download(ctx, url)
}
