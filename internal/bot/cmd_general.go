package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"grouphelper/internal/command"
	"grouphelper/internal/rank"
)

// subject picks the user a lookup command is about: the replied-to user, else the
// first mention, else the sender
func subject(m *Message) Target {
	if targets := m.Targets(); len(targets) > 0 {
		return targets[0]
	}
	return m.Sender()
}

// profilePhotoID returns the largest size of the user's current profile photo
func (b *Bot) profilePhotoID(userID int64) string {
	photos, err := b.api.GetUserProfilePhotos(tgbotapi.UserProfilePhotosConfig{UserID: userID, Limit: 1})
	if err != nil {
		b.logger.Warn("Failed to get profile photos", zap.Error(err), zap.Int64("user_id", userID))
		return ""
	}
	if photos.TotalCount == 0 || len(photos.Photos) == 0 || len(photos.Photos[0]) == 0 {
		return ""
	}
	sizes := photos.Photos[0]
	return sizes[len(sizes)-1].FileID
}

// sendCard posts an HTML card, as a photo caption when photoID is set
func (b *Bot) sendCard(m *Message, photoID, text string) error {
	if photoID != "" {
		photo := tgbotapi.NewPhoto(m.ChatID, tgbotapi.FileID(photoID))
		photo.Caption = text
		photo.ParseMode = tgbotapi.ModeHTML
		photo.ReplyToMessageID = m.MessageID
		photo.AllowSendingWithoutReply = true
		if _, err := b.send(photo); err == nil {
			return nil
		}
	}
	_, err := b.replyHTML(m, text)
	return err
}

// handleRank shows the rank card of a user. The user_id and caption flags are set when
// the dispatcher announces a level up.
func (b *Bot) handleRank(ctx context.Context, m *Message, inv command.Invocation) error {
	target := subject(m)
	if raw, ok := inv.Flag("user_id"); ok {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			_, err := b.reply(m, "❌ user_id must be a number.")
			return err
		}
		if id != target.UserID {
			target = Target{UserID: id}
			if id == m.From.ID {
				target = m.Sender()
			}
		}
	}

	user, err := b.db.GetUser(ctx, target.UserID)
	if err != nil {
		return err
	}
	if target.UserName == "" && target.FullName == "" {
		target.UserName = user.UserName
	}

	r := rank.For(user.XP)
	needed := r.NextTitleXP - r.XP
	if needed < 0 {
		needed = 0
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🏅 <b>%s</b>\n", html.EscapeString(target.Mention())))
	sb.WriteString("<blockquote>")
	sb.WriteString(fmt.Sprintf("├Level: %d (%d XP)\n", r.Level, r.XP))
	sb.WriteString(fmt.Sprintf("├Rank name: %s %s\n", r.Title.Name, r.Title.Emoji))
	sb.WriteString(fmt.Sprintf("├Next rank: %s %s\n", r.Next.Name, r.Next.Emoji))
	sb.WriteString(fmt.Sprintf("└XP needed: %d", needed))
	sb.WriteString("</blockquote>")
	if caption, ok := inv.Flag("caption"); ok && caption != "" {
		sb.WriteString("\n" + html.EscapeString(caption))
	}

	return b.sendCard(m, b.profilePhotoID(target.UserID), sb.String())
}

// handleProfile shows a user's picture, XP, chat role and bio
func (b *Bot) handleProfile(ctx context.Context, m *Message, inv command.Invocation) error {
	target := subject(m)

	user, err := b.db.GetUser(ctx, target.UserID)
	if err != nil {
		return err
	}
	if target.UserName == "" {
		target.UserName = user.UserName
	}

	role := "Member"
	if !m.IsPrivate() {
		cm, err := b.chatMember(m.ChatID, target.UserID)
		if err != nil {
			b.logger.Warn("Failed to get member role", zap.Error(err), zap.Int64("user_id", target.UserID))
		} else {
			switch {
			case cm.IsCreator():
				role = "Owner"
			case cm.IsAdministrator():
				role = "Admin"
			case cm.Status == "restricted":
				role = "Restricted"
			}
		}
	}

	var bio string
	if chat, err := b.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: target.UserID}}); err == nil {
		bio = chat.Bio
	}

	userName := "N/A"
	if target.UserName != "" {
		userName = "@" + target.UserName
	}

	var sb strings.Builder
	sb.WriteString("<blockquote>👥 <b>User Information</b>\n")
	sb.WriteString(fmt.Sprintf("├ <b>Name:</b> %s\n", html.EscapeString(orNA(target.FullName))))
	sb.WriteString(fmt.Sprintf("├ <b>User ID:</b> <code>%d</code>\n", target.UserID))
	sb.WriteString(fmt.Sprintf("├ <b>Username:</b> %s\n", html.EscapeString(userName)))
	sb.WriteString(fmt.Sprintf("├ <b>XP:</b> %d\n", user.XP))
	sb.WriteString(fmt.Sprintf("├ <b>Role:</b> %s\n", role))
	sb.WriteString(fmt.Sprintf("└ <b>Bio:</b> %s", html.EscapeString(orNA(bio))))
	sb.WriteString("</blockquote>")

	return b.sendCard(m, b.profilePhotoID(target.UserID), sb.String())
}
