package ch

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"grouphelper/internal/models"
	"grouphelper/internal/storage"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ClickHouseDB stores records in ReplacingMergeTree tables: every write inserts
// a new row version and reads use FINAL to see the latest one.
// Field updates of one user are serialized in-process by userLocks so that
// concurrent read-modify-write cycles do not overwrite each other.
type ClickHouseDB struct {
	conn      clickhouse.Conn
	userLocks [64]sync.Mutex
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(host string, port int, database, user, password string, useTLS bool) (*ClickHouseDB, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	options := &clickhouse.Options{
		Addr:     []string{addr},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
	}

	// Configure TLS if enabled
	if useTLS {
		options.TLS = &tls.Config{
			InsecureSkipVerify: false,
		}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test the connection
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Initialize is a no-op - tables are managed via migrations (cmd/migrate)
func (db *ClickHouseDB) Initialize(ctx context.Context) error {
	return nil
}

var lastVersion atomic.Uint64

// nextVersion returns a row version newer than any previous write from this process
func nextVersion() uint64 {
	for {
		last := lastVersion.Load()
		next := max(uint64(time.Now().UnixNano()), last+1)
		if lastVersion.CompareAndSwap(last, next) {
			return next
		}
	}
}

func (db *ClickHouseDB) lockUser(userID int64) func() {
	mu := &db.userLocks[uint64(userID)%uint64(len(db.userLocks))]
	mu.Lock()
	return mu.Unlock
}

const userColumns = `user_id, user_name, xp, ban_status, ban_reason, ban_since,
	afk_status, afk_reason, afk_since, afk_mentions, created_at`

// GetUser returns the latest version of a user, inserting a default row on first use
func (db *ClickHouseDB) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	defer db.lockUser(userID)()
	return db.getUser(ctx, userID)
}

func (db *ClickHouseDB) getUser(ctx context.Context, userID int64) (*models.User, error) {
	row := db.conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users FINAL WHERE user_id = ?`, userID)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		user = models.NewUser(userID)
		if err := db.SaveUser(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// SaveUser writes a new version of the user row
func (db *ClickHouseDB) SaveUser(ctx context.Context, user *models.User) error {
	err := db.conn.Exec(ctx, `INSERT INTO users (`+userColumns+`, version) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.UserID,
		user.UserName,
		int64(user.XP),
		user.Ban.Status,
		user.Ban.Reason,
		storage.TimeUnix(user.Ban.Since),
		user.AFK.Status,
		user.AFK.Reason,
		storage.TimeUnix(user.AFK.Since),
		storage.StoredMessageIDs(user.AFK.MentionedMessageIDs),
		storage.TimeUnix(user.CreatedAt),
		nextVersion(),
	)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// updateUser applies fn to the latest user version and writes the result
func (db *ClickHouseDB) updateUser(ctx context.Context, userID int64, fn func(user *models.User)) error {
	defer db.lockUser(userID)()

	user, err := db.getUser(ctx, userID)
	if err != nil {
		return err
	}
	fn(user)
	return db.SaveUser(ctx, user)
}

// SetUserName stores the user's current username
func (db *ClickHouseDB) SetUserName(ctx context.Context, userID int64, userName string) error {
	return db.updateUser(ctx, userID, func(user *models.User) {
		user.UserName = userName
	})
}

// AddXP adds delta to the user's XP and returns the new total
func (db *ClickHouseDB) AddXP(ctx context.Context, userID int64, delta int) (int, error) {
	var total int
	err := db.updateUser(ctx, userID, func(user *models.User) {
		user.XP += delta
		total = user.XP
	})
	return total, err
}

// SwapAFK replaces the AFK status and returns the previous one
func (db *ClickHouseDB) SwapAFK(ctx context.Context, userID int64, afk models.AFKInfo) (models.AFKInfo, error) {
	var prev models.AFKInfo
	err := db.updateUser(ctx, userID, func(user *models.User) {
		prev = user.AFK
		user.AFK = afk
	})
	return prev, err
}

// AddAFKMention records messageID if the user is AFK
func (db *ClickHouseDB) AddAFKMention(ctx context.Context, userID int64, messageID int) (bool, error) {
	var afk bool
	err := db.updateUser(ctx, userID, func(user *models.User) {
		afk = user.AFK.Status
		if afk {
			user.AFK.MentionedMessageIDs = append(user.AFK.MentionedMessageIDs, messageID)
		}
	})
	return afk, err
}

// SwapBan replaces the bot-level ban and returns the previous one
func (db *ClickHouseDB) SwapBan(ctx context.Context, userID int64, ban models.BanInfo) (models.BanInfo, error) {
	var prev models.BanInfo
	err := db.updateUser(ctx, userID, func(user *models.User) {
		prev = user.Ban
		user.Ban = ban
	})
	return prev, err
}

// FindUserByUserName looks up a user by username, ignoring case
func (db *ClickHouseDB) FindUserByUserName(ctx context.Context, userName string) (*models.User, error) {
	row := db.conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users FINAL
		WHERE user_name != '' AND lower(user_name) = lower(?)
		ORDER BY created_at DESC LIMIT 1`, trimAt(userName))
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user                          models.User
		xp                            int64
		banSince, afkSince, createdAt int64
		mentions                      []int64
	)
	err := row.Scan(
		&user.UserID,
		&user.UserName,
		&xp,
		&user.Ban.Status,
		&user.Ban.Reason,
		&banSince,
		&user.AFK.Status,
		&user.AFK.Reason,
		&afkSince,
		&mentions,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	user.XP = int(xp)
	user.Ban.Since = storage.UnixTime(banSince)
	user.AFK.Since = storage.UnixTime(afkSince)
	user.AFK.MentionedMessageIDs = storage.MessageIDs(mentions)
	user.CreatedAt = storage.UnixTime(createdAt)
	return &user, nil
}

// GetChat returns the latest version of a chat, inserting a default row on first use
func (db *ClickHouseDB) GetChat(ctx context.Context, chatID int64) (*models.Chat, error) {
	var (
		chat  models.Chat
		perms string
	)
	err := db.conn.QueryRow(ctx, `SELECT chat_id, captcha_enabled, greetings_enabled, mod_mode, saved_permissions
		FROM chats FINAL WHERE chat_id = ?`, chatID).
		Scan(&chat.ChatID, &chat.CaptchaEnabled, &chat.GreetingsEnabled, &chat.ModMode, &perms)
	if errors.Is(err, sql.ErrNoRows) {
		chat = models.Chat{ChatID: chatID}
		if err := db.SaveChat(ctx, &chat); err != nil {
			return nil, err
		}
		return &chat, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}

	chat.SavedPermissions, err = storage.DecodePermissions(perms)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// SaveChat writes a new version of the chat row
func (db *ClickHouseDB) SaveChat(ctx context.Context, chat *models.Chat) error {
	perms, err := storage.EncodePermissions(chat.SavedPermissions)
	if err != nil {
		return err
	}
	err = db.conn.Exec(ctx, `INSERT INTO chats (chat_id, captcha_enabled, greetings_enabled, mod_mode, saved_permissions, version)
		VALUES (?, ?, ?, ?, ?, ?)`,
		chat.ChatID, chat.CaptchaEnabled, chat.GreetingsEnabled, chat.ModMode, perms, nextVersion())
	if err != nil {
		return fmt.Errorf("failed to save chat: %w", err)
	}
	return nil
}

// GetCommandConfig returns the config of a command, storing an enabled default on first use
func (db *ClickHouseDB) GetCommandConfig(ctx context.Context, name string) (*models.CommandConfig, error) {
	var cfg models.CommandConfig
	err := db.conn.QueryRow(ctx, `SELECT name, enabled, disabled_reason FROM commands FINAL WHERE name = ?`, name).
		Scan(&cfg.Name, &cfg.Enabled, &cfg.DisabledReason)
	if errors.Is(err, sql.ErrNoRows) {
		cfg = models.CommandConfig{Name: name, Enabled: true}
		if err := db.SaveCommandConfig(ctx, &cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get command config: %w", err)
	}
	return &cfg, nil
}

// SaveCommandConfig writes a new version of the command config
func (db *ClickHouseDB) SaveCommandConfig(ctx context.Context, cfg *models.CommandConfig) error {
	err := db.conn.Exec(ctx, `INSERT INTO commands (name, enabled, disabled_reason, version) VALUES (?, ?, ?, ?)`,
		cfg.Name, cfg.Enabled, cfg.DisabledReason, nextVersion())
	if err != nil {
		return fmt.Errorf("failed to save command config: %w", err)
	}
	return nil
}

// AddStickerSet records a sticker set
func (db *ClickHouseDB) AddStickerSet(ctx context.Context, set models.StickerSet) error {
	return db.writeStickerSet(ctx, set, false)
}

// DeleteStickerSet writes a tombstone version of the set
func (db *ClickHouseDB) DeleteStickerSet(ctx context.Context, packName string) (bool, error) {
	var set models.StickerSet
	var createdAt int64
	err := db.conn.QueryRow(ctx, `SELECT pack_name, pack_title, format, creator_user_id, created_at
		FROM sticker_sets FINAL WHERE pack_name = ? AND deleted = false`, packName).
		Scan(&set.PackName, &set.PackTitle, &set.Format, &set.CreatorUserID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up sticker set: %w", err)
	}
	set.CreatedAt = storage.UnixTime(createdAt)

	if err := db.writeStickerSet(ctx, set, true); err != nil {
		return false, err
	}
	return true, nil
}

func (db *ClickHouseDB) writeStickerSet(ctx context.Context, set models.StickerSet, deleted bool) error {
	err := db.conn.Exec(ctx, `INSERT INTO sticker_sets (pack_name, pack_title, format, creator_user_id, created_at, deleted, version)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		set.PackName, set.PackTitle, set.Format, set.CreatorUserID, storage.TimeUnix(set.CreatedAt), deleted, nextVersion())
	if err != nil {
		return fmt.Errorf("failed to write sticker set: %w", err)
	}
	return nil
}

// ListStickerSets returns the live sets created by a user, oldest first
func (db *ClickHouseDB) ListStickerSets(ctx context.Context, creatorUserID int64) ([]models.StickerSet, error) {
	rows, err := db.conn.Query(ctx, `SELECT pack_name, pack_title, format, creator_user_id, created_at
		FROM sticker_sets FINAL
		WHERE creator_user_id = ? AND deleted = false
		ORDER BY created_at, pack_name`, creatorUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sticker sets: %w", err)
	}
	defer rows.Close()

	var sets []models.StickerSet
	for rows.Next() {
		var set models.StickerSet
		var createdAt int64
		if err := rows.Scan(&set.PackName, &set.PackTitle, &set.Format, &set.CreatorUserID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan sticker set: %w", err)
		}
		set.CreatedAt = storage.UnixTime(createdAt)
		sets = append(sets, set)
	}
	return sets, rows.Err()
}

// Close closes the database connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

func trimAt(userName string) string {
	if len(userName) > 0 && userName[0] == '@' {
		return userName[1:]
	}
	return userName
}
