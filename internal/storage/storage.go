package storage

import (
	"context"

	"grouphelper/internal/models"
)

// Storage defines the interface for data storage operations
type Storage interface {
	// User operations

	// GetUser returns the user record, creating a default one on first use
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	// SetUserName, AddXP, SwapAFK, AddAFKMention and SwapBan change one field group
	// of a user. Each is atomic with respect to the others, so concurrent updates
	// of different fields never overwrite each other.
	SetUserName(ctx context.Context, userID int64, userName string) error
	// AddXP adds delta to the user's XP and returns the new total
	AddXP(ctx context.Context, userID int64, delta int) (int, error)
	// SwapAFK replaces the AFK status and returns the previous one
	SwapAFK(ctx context.Context, userID int64, afk models.AFKInfo) (models.AFKInfo, error)
	// AddAFKMention records messageID for an AFK user. It reports false and stores
	// nothing when the user is not AFK.
	AddAFKMention(ctx context.Context, userID int64, messageID int) (bool, error)
	// SwapBan replaces the bot-level ban and returns the previous one
	SwapBan(ctx context.Context, userID int64, ban models.BanInfo) (models.BanInfo, error)
	// FindUserByUserName looks a user up by @username (case-insensitive).
	// It returns nil without error when nobody with that name has been seen.
	FindUserByUserName(ctx context.Context, userName string) (*models.User, error)

	// Chat operations

	// GetChat returns the chat record, creating a default one on first use
	GetChat(ctx context.Context, chatID int64) (*models.Chat, error)
	SaveChat(ctx context.Context, chat *models.Chat) error

	// Command configuration

	// GetCommandConfig returns the config of a command; unseen commands are
	// stored as enabled and returned
	GetCommandConfig(ctx context.Context, name string) (*models.CommandConfig, error)
	SaveCommandConfig(ctx context.Context, cfg *models.CommandConfig) error

	// Sticker set inventory
	AddStickerSet(ctx context.Context, set models.StickerSet) error
	// DeleteStickerSet removes a set and reports whether it existed
	DeleteStickerSet(ctx context.Context, packName string) (bool, error)
	// ListStickerSets returns the sets created by a user, oldest first
	ListStickerSets(ctx context.Context, creatorUserID int64) ([]models.StickerSet, error)

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}
