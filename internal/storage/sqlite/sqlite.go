package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"grouphelper/internal/models"
	"grouphelper/internal/storage"
	"grouphelper/migrations"
)

// SQLiteDB is a single-file implementation of the Storage interface
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB opens (or creates) the database file at path
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between concurrent updates
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Initialize applies the embedded migrations
func (s *SQLiteDB) Initialize(ctx context.Context) error {
	goose.SetBaseFS(migrations.SQLite)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "sqlite"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

const userColumns = `user_id, user_name, xp, ban_status, ban_reason, ban_since,
	afk_status, afk_reason, afk_since, afk_mentions, created_at`

// GetUser returns the user, inserting a default row on first use
func (s *SQLiteDB) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	if err := ensureUser(ctx, s.db, userID); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// SaveUser upserts the user row
func (s *SQLiteDB) SaveUser(ctx context.Context, user *models.User) error {
	mentions, err := encodeMentions(user.AFK.MentionedMessageIDs)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			user_name = excluded.user_name,
			xp = excluded.xp,
			ban_status = excluded.ban_status,
			ban_reason = excluded.ban_reason,
			ban_since = excluded.ban_since,
			afk_status = excluded.afk_status,
			afk_reason = excluded.afk_reason,
			afk_since = excluded.afk_since,
			afk_mentions = excluded.afk_mentions
	`,
		user.UserID,
		user.UserName,
		user.XP,
		user.Ban.Status,
		user.Ban.Reason,
		storage.TimeUnix(user.Ban.Since),
		user.AFK.Status,
		user.AFK.Reason,
		storage.TimeUnix(user.AFK.Since),
		mentions,
		storage.TimeUnix(user.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func ensureUser(ctx context.Context, db execer, userID int64) error {
	_, err := db.ExecContext(ctx, `INSERT INTO users (user_id, created_at) VALUES (?, ?)
		ON CONFLICT(user_id) DO NOTHING`, userID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// SetUserName stores the user's current username
func (s *SQLiteDB) SetUserName(ctx context.Context, userID int64, userName string) error {
	if err := ensureUser(ctx, s.db, userID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET user_name = ? WHERE user_id = ?`, userName, userID); err != nil {
		return fmt.Errorf("failed to set user name: %w", err)
	}
	return nil
}

// AddXP adds delta to the user's XP and returns the new total
func (s *SQLiteDB) AddXP(ctx context.Context, userID int64, delta int) (int, error) {
	if err := ensureUser(ctx, s.db, userID); err != nil {
		return 0, err
	}
	var total int
	err := s.db.QueryRowContext(ctx, `UPDATE users SET xp = xp + ? WHERE user_id = ? RETURNING xp`, delta, userID).
		Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to add xp: %w", err)
	}
	return total, nil
}

// SwapAFK replaces the AFK status and returns the previous one
func (s *SQLiteDB) SwapAFK(ctx context.Context, userID int64, afk models.AFKInfo) (models.AFKInfo, error) {
	mentions, err := encodeMentions(afk.MentionedMessageIDs)
	if err != nil {
		return models.AFKInfo{}, err
	}

	var prev models.AFKInfo
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := ensureUser(ctx, tx, userID); err != nil {
			return err
		}
		var (
			since       int64
			oldMentions string
		)
		err := tx.QueryRowContext(ctx, `SELECT afk_status, afk_reason, afk_since, afk_mentions FROM users WHERE user_id = ?`, userID).
			Scan(&prev.Status, &prev.Reason, &since, &oldMentions)
		if err != nil {
			return fmt.Errorf("failed to read afk: %w", err)
		}
		prev.Since = storage.UnixTime(since)
		if prev.MentionedMessageIDs, err = decodeMentions(oldMentions); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `UPDATE users SET afk_status = ?, afk_reason = ?, afk_since = ?, afk_mentions = ?
			WHERE user_id = ?`, afk.Status, afk.Reason, storage.TimeUnix(afk.Since), mentions, userID)
		if err != nil {
			return fmt.Errorf("failed to set afk: %w", err)
		}
		return nil
	})
	return prev, err
}

// AddAFKMention appends messageID to the mentions of an AFK user
func (s *SQLiteDB) AddAFKMention(ctx context.Context, userID int64, messageID int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET afk_mentions = json_insert(
			CASE WHEN afk_mentions = '' OR afk_mentions = 'null' THEN '[]' ELSE afk_mentions END, '$[#]', ?)
		WHERE user_id = ? AND afk_status = 1`, int64(messageID), userID)
	if err != nil {
		return false, fmt.Errorf("failed to add afk mention: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to add afk mention: %w", err)
	}
	return n > 0, nil
}

// SwapBan replaces the bot-level ban and returns the previous one
func (s *SQLiteDB) SwapBan(ctx context.Context, userID int64, ban models.BanInfo) (models.BanInfo, error) {
	var prev models.BanInfo
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := ensureUser(ctx, tx, userID); err != nil {
			return err
		}
		var since int64
		err := tx.QueryRowContext(ctx, `SELECT ban_status, ban_reason, ban_since FROM users WHERE user_id = ?`, userID).
			Scan(&prev.Status, &prev.Reason, &since)
		if err != nil {
			return fmt.Errorf("failed to read ban: %w", err)
		}
		prev.Since = storage.UnixTime(since)

		_, err = tx.ExecContext(ctx, `UPDATE users SET ban_status = ?, ban_reason = ?, ban_since = ? WHERE user_id = ?`,
			ban.Status, ban.Reason, storage.TimeUnix(ban.Since), userID)
		if err != nil {
			return fmt.Errorf("failed to set ban: %w", err)
		}
		return nil
	})
	return prev, err
}

// inTx runs fn in a transaction, rolling back when it fails
func (s *SQLiteDB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func encodeMentions(ids []int) (string, error) {
	raw, err := json.Marshal(storage.StoredMessageIDs(ids))
	if err != nil {
		return "", fmt.Errorf("failed to encode mentions: %w", err)
	}
	return string(raw), nil
}

func decodeMentions(raw string) ([]int, error) {
	var ids []int64
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return nil, fmt.Errorf("failed to decode mentions: %w", err)
		}
	}
	return storage.MessageIDs(ids), nil
}

// FindUserByUserName looks up a user by username, ignoring case
func (s *SQLiteDB) FindUserByUserName(ctx context.Context, userName string) (*models.User, error) {
	userName = strings.TrimPrefix(userName, "@")
	if userName == "" {
		return nil, nil
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users
		WHERE user_name = ? COLLATE NOCASE
		ORDER BY created_at DESC LIMIT 1`, userName)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		user                          models.User
		banSince, afkSince, createdAt int64
		mentions                      string
	)
	err := row.Scan(
		&user.UserID,
		&user.UserName,
		&user.XP,
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

	user.AFK.MentionedMessageIDs, err = decodeMentions(mentions)
	if err != nil {
		return nil, err
	}
	user.Ban.Since = storage.UnixTime(banSince)
	user.AFK.Since = storage.UnixTime(afkSince)
	user.CreatedAt = storage.UnixTime(createdAt)
	return &user, nil
}

// GetChat returns the chat, inserting a default row on first use
func (s *SQLiteDB) GetChat(ctx context.Context, chatID int64) (*models.Chat, error) {
	_, err := s.db.ExecContext(ctx, `INSERT INTO chats (chat_id) VALUES (?) ON CONFLICT(chat_id) DO NOTHING`, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}

	var (
		chat  models.Chat
		perms string
	)
	err = s.db.QueryRowContext(ctx, `SELECT chat_id, captcha_enabled, greetings_enabled, mod_mode, saved_permissions
		FROM chats WHERE chat_id = ?`, chatID).
		Scan(&chat.ChatID, &chat.CaptchaEnabled, &chat.GreetingsEnabled, &chat.ModMode, &perms)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}

	chat.SavedPermissions, err = storage.DecodePermissions(perms)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// SaveChat upserts the chat row
func (s *SQLiteDB) SaveChat(ctx context.Context, chat *models.Chat) error {
	perms, err := storage.EncodePermissions(chat.SavedPermissions)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chats (chat_id, captcha_enabled, greetings_enabled, mod_mode, saved_permissions)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			captcha_enabled = excluded.captcha_enabled,
			greetings_enabled = excluded.greetings_enabled,
			mod_mode = excluded.mod_mode,
			saved_permissions = excluded.saved_permissions
	`, chat.ChatID, chat.CaptchaEnabled, chat.GreetingsEnabled, chat.ModMode, perms)
	if err != nil {
		return fmt.Errorf("failed to save chat: %w", err)
	}
	return nil
}

// GetCommandConfig returns the command config, storing an enabled default on first use
func (s *SQLiteDB) GetCommandConfig(ctx context.Context, name string) (*models.CommandConfig, error) {
	_, err := s.db.ExecContext(ctx, `INSERT INTO commands (name, enabled) VALUES (?, 1) ON CONFLICT(name) DO NOTHING`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create command config: %w", err)
	}

	var cfg models.CommandConfig
	err = s.db.QueryRowContext(ctx, `SELECT name, enabled, disabled_reason FROM commands WHERE name = ?`, name).
		Scan(&cfg.Name, &cfg.Enabled, &cfg.DisabledReason)
	if err != nil {
		return nil, fmt.Errorf("failed to get command config: %w", err)
	}
	return &cfg, nil
}

// SaveCommandConfig upserts the command config
func (s *SQLiteDB) SaveCommandConfig(ctx context.Context, cfg *models.CommandConfig) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO commands (name, enabled, disabled_reason) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			enabled = excluded.enabled,
			disabled_reason = excluded.disabled_reason
	`, cfg.Name, cfg.Enabled, cfg.DisabledReason)
	if err != nil {
		return fmt.Errorf("failed to save command config: %w", err)
	}
	return nil
}

// AddStickerSet records a sticker set
func (s *SQLiteDB) AddStickerSet(ctx context.Context, set models.StickerSet) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sticker_sets (pack_name, pack_title, format, creator_user_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(pack_name) DO UPDATE SET
			pack_title = excluded.pack_title,
			format = excluded.format
	`, set.PackName, set.PackTitle, set.Format, set.CreatorUserID, storage.TimeUnix(set.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to add sticker set: %w", err)
	}
	return nil
}

// DeleteStickerSet removes a sticker set
func (s *SQLiteDB) DeleteStickerSet(ctx context.Context, packName string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sticker_sets WHERE pack_name = ?`, packName)
	if err != nil {
		return false, fmt.Errorf("failed to delete sticker set: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete sticker set: %w", err)
	}
	return n > 0, nil
}

// ListStickerSets returns the sets created by a user, oldest first
func (s *SQLiteDB) ListStickerSets(ctx context.Context, creatorUserID int64) ([]models.StickerSet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pack_name, pack_title, format, creator_user_id, created_at
		FROM sticker_sets
		WHERE creator_user_id = ?
		ORDER BY created_at, pack_name
	`, creatorUserID)
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

// Close closes the database
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
