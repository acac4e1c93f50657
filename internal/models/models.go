package models

import "time"

// User represents a Telegram user known to the bot
type User struct {
	UserID    int64
	UserName  string
	XP        int
	Ban       BanInfo
	AFK       AFKInfo
	CreatedAt time.Time
}

// BanInfo describes a bot-level ban (the user can no longer run commands)
type BanInfo struct {
	Status bool
	Reason string
	Since  time.Time
}

// AFKInfo describes the away-from-keyboard status of a user
type AFKInfo struct {
	Status              bool
	Reason              string
	Since               time.Time
	MentionedMessageIDs []int
}

// NewUser returns the record created for a user on first contact
func NewUser(userID int64) *User {
	return &User{
		UserID:    userID,
		CreatedAt: time.Now(),
	}
}

// Chat represents per-group settings
type Chat struct {
	ChatID           int64
	CaptchaEnabled   bool
	GreetingsEnabled bool
	ModMode          bool
	// SavedPermissions is the snapshot taken by the last lock, nil when the chat is not locked
	SavedPermissions *ChatPermissions
}

// ChatPermissions mirrors the default member permissions of a group
type ChatPermissions struct {
	CanSendMessages       bool `json:"can_send_messages"`
	CanSendMediaMessages  bool `json:"can_send_media_messages"`
	CanSendPolls          bool `json:"can_send_polls"`
	CanSendOtherMessages  bool `json:"can_send_other_messages"`
	CanAddWebPagePreviews bool `json:"can_add_web_page_previews"`
	CanChangeInfo         bool `json:"can_change_info"`
	CanInviteUsers        bool `json:"can_invite_users"`
	CanPinMessages        bool `json:"can_pin_messages"`
}

// CommandConfig holds the enabled flag of a single command
type CommandConfig struct {
	Name           string
	Enabled        bool
	DisabledReason string
}

// Sticker set formats
const (
	StickerFormatStatic   = "static"
	StickerFormatVideo    = "video"
	StickerFormatAnimated = "animated"
)

// StickerSet represents a sticker pack created through the bot
type StickerSet struct {
	PackName      string
	PackTitle     string
	Format        string
	CreatorUserID int64
	CreatedAt     time.Time
}

// Member roles as seen by the gate chain
const (
	RoleCreator = "creator"
	RoleAdmin   = "admin"
	RoleMember  = "member"
)

// Member is a chat member resolved once per update
type Member struct {
	UserID      int64
	Role        string
	Permissions AdminPermissions
}

// IsAdmin reports whether the member is the creator or an administrator
func (m Member) IsAdmin() bool {
	return m.Role == RoleCreator || m.Role == RoleAdmin
}

// AdminPermissions is the set of administrator rights a member holds
type AdminPermissions struct {
	CanChangeInfo      bool
	CanDeleteMessages  bool
	CanInviteUsers     bool
	CanPinMessages     bool
	CanPromoteMembers  bool
	CanRestrictMembers bool
}

// Permission names used by command descriptors
const (
	PermChangeInfo      = "can_change_info"
	PermDeleteMessages  = "can_delete_messages"
	PermInviteUsers     = "can_invite_users"
	PermPinMessages     = "can_pin_messages"
	PermPromoteMembers  = "can_promote_members"
	PermRestrictMembers = "can_restrict_members"
)

// AllAdminPermissions returns a permission set with every right granted
func AllAdminPermissions() AdminPermissions {
	return AdminPermissions{
		CanChangeInfo:      true,
		CanDeleteMessages:  true,
		CanInviteUsers:     true,
		CanPinMessages:     true,
		CanPromoteMembers:  true,
		CanRestrictMembers: true,
	}
}

// Has reports whether the named permission is granted. Unknown names are never granted.
func (p AdminPermissions) Has(name string) bool {
	switch name {
	case PermChangeInfo:
		return p.CanChangeInfo
	case PermDeleteMessages:
		return p.CanDeleteMessages
	case PermInviteUsers:
		return p.CanInviteUsers
	case PermPinMessages:
		return p.CanPinMessages
	case PermPromoteMembers:
		return p.CanPromoteMembers
	case PermRestrictMembers:
		return p.CanRestrictMembers
	}
	return false
}
