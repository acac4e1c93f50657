package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"grouphelper/internal/models"
)

// memberFromChatMember maps a Telegram chat member onto the typed role and permission set.
// Creators hold every right; administrators hold exactly what Telegram reports; everyone else holds none.
func memberFromChatMember(cm tgbotapi.ChatMember) models.Member {
	m := models.Member{Role: models.RoleMember}
	if cm.User != nil {
		m.UserID = cm.User.ID
	}

	switch {
	case cm.IsCreator():
		m.Role = models.RoleCreator
		m.Permissions = models.AllAdminPermissions()
	case cm.IsAdministrator():
		m.Role = models.RoleAdmin
		m.Permissions = models.AdminPermissions{
			CanChangeInfo:      cm.CanChangeInfo,
			CanDeleteMessages:  cm.CanDeleteMessages,
			CanInviteUsers:     cm.CanInviteUsers,
			CanPinMessages:     cm.CanPinMessages,
			CanPromoteMembers:  cm.CanPromoteMembers,
			CanRestrictMembers: cm.CanRestrictMembers,
		}
	}
	return m
}

// member fetches a chat member once and returns its typed form
func (b *Bot) member(ctx context.Context, chatID, userID int64) (models.Member, error) {
	cm, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		return models.Member{}, fmt.Errorf("failed to get chat member %d: %w", userID, err)
	}
	m := memberFromChatMember(cm)
	m.UserID = userID
	return m, nil
}

// chatMember fetches the raw Telegram chat member
func (b *Bot) chatMember(chatID, userID int64) (tgbotapi.ChatMember, error) {
	cm, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		return tgbotapi.ChatMember{}, fmt.Errorf("failed to get chat member %d: %w", userID, err)
	}
	return cm, nil
}

func toTelegramPermissions(p models.ChatPermissions) *tgbotapi.ChatPermissions {
	return &tgbotapi.ChatPermissions{
		CanSendMessages:       p.CanSendMessages,
		CanSendMediaMessages:  p.CanSendMediaMessages,
		CanSendPolls:          p.CanSendPolls,
		CanSendOtherMessages:  p.CanSendOtherMessages,
		CanAddWebPagePreviews: p.CanAddWebPagePreviews,
		CanChangeInfo:         p.CanChangeInfo,
		CanInviteUsers:        p.CanInviteUsers,
		CanPinMessages:        p.CanPinMessages,
	}
}

func fromTelegramPermissions(p *tgbotapi.ChatPermissions) models.ChatPermissions {
	if p == nil {
		return models.ChatPermissions{}
	}
	return models.ChatPermissions{
		CanSendMessages:       p.CanSendMessages,
		CanSendMediaMessages:  p.CanSendMediaMessages,
		CanSendPolls:          p.CanSendPolls,
		CanSendOtherMessages:  p.CanSendOtherMessages,
		CanAddWebPagePreviews: p.CanAddWebPagePreviews,
		CanChangeInfo:         p.CanChangeInfo,
		CanInviteUsers:        p.CanInviteUsers,
		CanPinMessages:        p.CanPinMessages,
	}
}

// fullPermissions lifts every member restriction
func fullPermissions() *tgbotapi.ChatPermissions {
	return toTelegramPermissions(models.ChatPermissions{
		CanSendMessages:       true,
		CanSendMediaMessages:  true,
		CanSendPolls:          true,
		CanSendOtherMessages:  true,
		CanAddWebPagePreviews: true,
		CanChangeInfo:         true,
		CanInviteUsers:        true,
		CanPinMessages:        true,
	})
}

// noPermissions mutes a member or a whole chat
func noPermissions() *tgbotapi.ChatPermissions {
	return &tgbotapi.ChatPermissions{}
}
