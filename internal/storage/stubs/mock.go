package stubs

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"grouphelper/internal/models"
)

// MockDB is an in-memory implementation of the Storage interface for testing
type MockDB struct {
	mu          sync.RWMutex
	users       map[int64]models.User
	chats       map[int64]models.Chat
	commands    map[string]models.CommandConfig
	stickerSets map[string]models.StickerSet
}

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{
		users:       make(map[int64]models.User),
		chats:       make(map[int64]models.Chat),
		commands:    make(map[string]models.CommandConfig),
		stickerSets: make(map[string]models.StickerSet),
	}
}

// Initialize does nothing for mock DB
func (m *MockDB) Initialize(ctx context.Context) error {
	return nil
}

// GetUser returns a copy of the user, creating it on first use
func (m *MockDB) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		user = *models.NewUser(userID)
		m.users[userID] = user
	}
	return copyUser(user), nil
}

// SaveUser stores a copy of the user
func (m *MockDB) SaveUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users[user.UserID] = *copyUser(*user)
	return nil
}

// updateUser applies fn to the stored user under the write lock
func (m *MockDB) updateUser(userID int64, fn func(user *models.User)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		user = *models.NewUser(userID)
	}
	fn(&user)
	m.users[userID] = user
}

// SetUserName stores the user's current username
func (m *MockDB) SetUserName(ctx context.Context, userID int64, userName string) error {
	m.updateUser(userID, func(user *models.User) {
		user.UserName = userName
	})
	return nil
}

// AddXP adds delta to the user's XP and returns the new total
func (m *MockDB) AddXP(ctx context.Context, userID int64, delta int) (int, error) {
	var total int
	m.updateUser(userID, func(user *models.User) {
		user.XP += delta
		total = user.XP
	})
	return total, nil
}

// SwapAFK replaces the AFK status and returns the previous one
func (m *MockDB) SwapAFK(ctx context.Context, userID int64, afk models.AFKInfo) (models.AFKInfo, error) {
	var prev models.AFKInfo
	m.updateUser(userID, func(user *models.User) {
		prev = user.AFK
		afk.MentionedMessageIDs = slices.Clone(afk.MentionedMessageIDs)
		user.AFK = afk
	})
	return prev, nil
}

// AddAFKMention records messageID if the user is AFK
func (m *MockDB) AddAFKMention(ctx context.Context, userID int64, messageID int) (bool, error) {
	var afk bool
	m.updateUser(userID, func(user *models.User) {
		afk = user.AFK.Status
		if afk {
			user.AFK.MentionedMessageIDs = append(user.AFK.MentionedMessageIDs, messageID)
		}
	})
	return afk, nil
}

// SwapBan replaces the bot-level ban and returns the previous one
func (m *MockDB) SwapBan(ctx context.Context, userID int64, ban models.BanInfo) (models.BanInfo, error) {
	var prev models.BanInfo
	m.updateUser(userID, func(user *models.User) {
		prev = user.Ban
		user.Ban = ban
	})
	return prev, nil
}

// FindUserByUserName looks up a user by username, ignoring case and a leading @
func (m *MockDB) FindUserByUserName(ctx context.Context, userName string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	userName = strings.TrimPrefix(userName, "@")
	for _, user := range m.users {
		if user.UserName != "" && strings.EqualFold(user.UserName, userName) {
			return copyUser(user), nil
		}
	}
	return nil, nil
}

// GetChat returns a copy of the chat, creating it on first use
func (m *MockDB) GetChat(ctx context.Context, chatID int64) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	chat, ok := m.chats[chatID]
	if !ok {
		chat = models.Chat{ChatID: chatID}
		m.chats[chatID] = chat
	}
	return copyChat(chat), nil
}

// SaveChat stores a copy of the chat
func (m *MockDB) SaveChat(ctx context.Context, chat *models.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.chats[chat.ChatID] = *copyChat(*chat)
	return nil
}

// GetCommandConfig returns the command config, storing an enabled default on first use
func (m *MockDB) GetCommandConfig(ctx context.Context, name string) (*models.CommandConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, ok := m.commands[name]
	if !ok {
		cfg = models.CommandConfig{Name: name, Enabled: true}
		m.commands[name] = cfg
	}
	return &cfg, nil
}

// SaveCommandConfig stores the command config
func (m *MockDB) SaveCommandConfig(ctx context.Context, cfg *models.CommandConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.commands[cfg.Name] = *cfg
	return nil
}

// HasCommandConfig reports whether a config record exists for name
func (m *MockDB) HasCommandConfig(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.commands[name]
	return ok
}

// AddStickerSet records a sticker set
func (m *MockDB) AddStickerSet(ctx context.Context, set models.StickerSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stickerSets[set.PackName] = set
	return nil
}

// DeleteStickerSet removes a sticker set
func (m *MockDB) DeleteStickerSet(ctx context.Context, packName string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.stickerSets[packName]; !ok {
		return false, nil
	}
	delete(m.stickerSets, packName)
	return true, nil
}

// ListStickerSets returns the sets created by a user, oldest first
func (m *MockDB) ListStickerSets(ctx context.Context, creatorUserID int64) ([]models.StickerSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sets []models.StickerSet
	for _, set := range m.stickerSets {
		if set.CreatorUserID == creatorUserID {
			sets = append(sets, set)
		}
	}

	// Sort by creation time, then by name
	sort.Slice(sets, func(i, j int) bool {
		if !sets[i].CreatedAt.Equal(sets[j].CreatedAt) {
			return sets[i].CreatedAt.Before(sets[j].CreatedAt)
		}
		return sets[i].PackName < sets[j].PackName
	})

	return sets, nil
}

// Close does nothing for mock DB
func (m *MockDB) Close() error {
	return nil
}

func copyUser(user models.User) *models.User {
	user.AFK.MentionedMessageIDs = slices.Clone(user.AFK.MentionedMessageIDs)
	return &user
}

func copyChat(chat models.Chat) *models.Chat {
	if chat.SavedPermissions != nil {
		perms := *chat.SavedPermissions
		chat.SavedPermissions = &perms
	}
	return &chat
}
