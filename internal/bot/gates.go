package bot

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"grouphelper/internal/command"
	"grouphelper/internal/models"
)

// Rejection is the reply sent when a gate refuses an invocation
type Rejection struct {
	Text string
	HTML bool
	// Reply quotes the triggering message
	Reply bool
}

func reject(text string) *Rejection {
	return &Rejection{Text: text, Reply: true}
}

// checkGates runs the eligibility checks in order and returns the first rejection, or nil to proceed.
// Only the command-config lookup may write, creating the default config of an unseen command.
func (b *Bot) checkGates(ctx context.Context, m *Message, inv command.Invocation, cmd *Command, sender *models.User) (*Rejection, error) {
	if inv.Name == "" && strings.TrimSpace(m.Text) == b.prefix {
		return reject(fmt.Sprintf("Please enter a command starting with %s.", b.prefix)), nil
	}

	if cmd == nil {
		return reject(fmt.Sprintf("❌ Unknown command! Use %shelp to see all available commands.", b.prefix)), nil
	}

	if sender.Ban.Status {
		return &Rejection{Text: banNotice(sender.Ban), HTML: true, Reply: true}, nil
	}

	cfg, err := b.db.GetCommandConfig(ctx, cmd.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to load command config: %w", err)
	}
	if !cfg.Enabled {
		reason := cfg.DisabledReason
		if reason == "" {
			reason = "No reason provided."
		}
		return &Rejection{
			Text: fmt.Sprintf("<blockquote>Command <b>%s</b> is currently disabled.\n\n└📝 Reason: %s</blockquote>",
				cmd.Name, html.EscapeString(reason)),
			HTML: true,
		}, nil
	}

	if cmd.OnlyChat && m.IsPrivate() {
		return reject("👥 Chat-only command. Try this in a chat."), nil
	}
	// No built-in command sets OnlyPrivate yet.
	if cmd.OnlyPrivate && !m.IsPrivate() {
		return reject("💬 Please use this command in private chat only."), nil
	}

	if cmd.DevOnly && !b.isDev(m.From.ID) {
		return reject("⚠️ Oops! This command is only for developers."), nil
	}

	if m.IsPrivate() || (len(cmd.AdminPermissions) == 0 && !cmd.OnlyAdmin) {
		return nil, nil
	}

	if len(cmd.AdminPermissions) > 0 {
		self, err := b.member(ctx, m.ChatID, b.self.ID)
		if err != nil {
			return nil, err
		}
		for _, perm := range cmd.AdminPermissions {
			if !self.Permissions.Has(perm) {
				return reject(fmt.Sprintf("🤖 Bot must have '%s' permission to execute this command.", perm)), nil
			}
		}
	}

	member, err := b.member(ctx, m.ChatID, m.From.ID)
	if err != nil {
		return nil, err
	}
	if member.Role == models.RoleAdmin {
		for _, perm := range cmd.AdminPermissions {
			if !member.Permissions.Has(perm) {
				return reject(fmt.Sprintf("❌ You must have '%s' permission to run this command.", perm)), nil
			}
		}
	}
	if cmd.OnlyAdmin && !member.IsAdmin() {
		return reject("❌ Only chat admins can use this command."), nil
	}

	return nil, nil
}

func (b *Bot) isDev(userID int64) bool {
	return b.devs[userID]
}

func banNotice(ban models.BanInfo) string {
	since := "Unknown"
	if !ban.Since.IsZero() {
		since = ban.Since.Format("2006-01-02 15:04:05 (-0700)")
	}
	reason := ban.Reason
	if reason == "" {
		reason = "No reason provided."
	}
	return "<blockquote>" +
		"🚫 <b>Oops! You're banned from using this bot.</b>\n\n" +
		fmt.Sprintf("📝 <b>Reason:</b> %s\n", html.EscapeString(reason)) +
		fmt.Sprintf("🕒 <b>Banned at:</b> %s\n\n", since) +
		"Contact admin if this is a mistake." +
		"</blockquote>"
}
