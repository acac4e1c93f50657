package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grouphelper/internal/models"
)

// setupTestDB opens a fresh database file with migrations applied
func setupTestDB(t *testing.T) *SQLiteDB {
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "data", "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Initialize(context.Background()))
	return db
}

func TestSQLiteDB_InitializeIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.Initialize(context.Background()))
}

func TestSQLiteDB_Users(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user, err := db.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), user.UserID)
	assert.False(t, user.CreatedAt.IsZero())
	assert.Empty(t, user.AFK.MentionedMessageIDs)

	user.UserName = "Alice"
	user.XP = 60
	user.Ban = models.BanInfo{Status: true, Reason: "spam", Since: time.Unix(1700000000, 0)}
	user.AFK = models.AFKInfo{Status: true, Reason: "away", Since: time.Unix(1700000100, 0), MentionedMessageIDs: []int{7, 9}}
	require.NoError(t, db.SaveUser(ctx, user))

	stored, err := db.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 60, stored.XP)
	assert.True(t, stored.Ban.Status)
	assert.Equal(t, "spam", stored.Ban.Reason)
	assert.Equal(t, int64(1700000000), stored.Ban.Since.Unix())
	assert.Equal(t, []int{7, 9}, stored.AFK.MentionedMessageIDs)
	assert.Equal(t, user.CreatedAt.Unix(), stored.CreatedAt.Unix())

	found, err := db.FindUserByUserName(ctx, "@ALICE")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(42), found.UserID)

	missing, err := db.FindUserByUserName(ctx, "bob")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteDB_UserFieldUpdates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := db.AddXP(ctx, 42, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := db.SwapAFK(ctx, 42, models.AFKInfo{Status: true, Reason: "away", Since: time.Unix(1700000000, 0)})
		assert.NoError(t, err)
	}()
	wg.Wait()

	require.NoError(t, db.SetUserName(ctx, 42, "alice"))
	for _, id := range []int{5, 6} {
		afk, err := db.AddAFKMention(ctx, 42, id)
		require.NoError(t, err)
		assert.True(t, afk)
	}

	stored, err := db.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 20, stored.XP)
	assert.Equal(t, "alice", stored.UserName)
	assert.True(t, stored.AFK.Status)
	assert.Equal(t, []int{5, 6}, stored.AFK.MentionedMessageIDs)

	prev, err := db.SwapAFK(ctx, 42, models.AFKInfo{})
	require.NoError(t, err)
	assert.Equal(t, "away", prev.Reason)
	assert.Equal(t, []int{5, 6}, prev.MentionedMessageIDs)

	afk, err := db.AddAFKMention(ctx, 42, 7)
	require.NoError(t, err)
	assert.False(t, afk)

	ban, err := db.SwapBan(ctx, 42, models.BanInfo{Status: true, Reason: "spam"})
	require.NoError(t, err)
	assert.False(t, ban.Status)
	ban, err = db.SwapBan(ctx, 42, models.BanInfo{})
	require.NoError(t, err)
	assert.True(t, ban.Status)
	assert.Equal(t, "spam", ban.Reason)

	total, err := db.AddXP(ctx, 99, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
}

func TestSQLiteDB_Chats(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	chat, err := db.GetChat(ctx, -1001)
	require.NoError(t, err)
	assert.False(t, chat.CaptchaEnabled)
	assert.Nil(t, chat.SavedPermissions)

	chat.CaptchaEnabled = true
	chat.SavedPermissions = &models.ChatPermissions{CanSendMessages: true, CanAddWebPagePreviews: true}
	require.NoError(t, db.SaveChat(ctx, chat))

	stored, err := db.GetChat(ctx, -1001)
	require.NoError(t, err)
	assert.True(t, stored.CaptchaEnabled)
	require.NotNil(t, stored.SavedPermissions)
	assert.Equal(t, *chat.SavedPermissions, *stored.SavedPermissions)
}

func TestSQLiteDB_CommandConfig(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	cfg, err := db.GetCommandConfig(ctx, "rank")
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)

	cfg.Enabled = false
	cfg.DisabledReason = "broken"
	require.NoError(t, db.SaveCommandConfig(ctx, cfg))

	stored, err := db.GetCommandConfig(ctx, "rank")
	require.NoError(t, err)
	assert.False(t, stored.Enabled)
	assert.Equal(t, "broken", stored.DisabledReason)
}

func TestSQLiteDB_StickerSets(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, db.AddStickerSet(ctx, models.StickerSet{PackName: "b_by_bot", Format: models.StickerFormatStatic, CreatorUserID: 1, CreatedAt: now.Add(time.Minute)}))
	require.NoError(t, db.AddStickerSet(ctx, models.StickerSet{PackName: "a_by_bot", Format: models.StickerFormatVideo, CreatorUserID: 1, CreatedAt: now}))
	require.NoError(t, db.AddStickerSet(ctx, models.StickerSet{PackName: "c_by_bot", Format: models.StickerFormatStatic, CreatorUserID: 2, CreatedAt: now}))

	sets, err := db.ListStickerSets(ctx, 1)
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, "a_by_bot", sets[0].PackName)
	assert.Equal(t, models.StickerFormatVideo, sets[0].Format)

	deleted, err := db.DeleteStickerSet(ctx, "a_by_bot")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = db.DeleteStickerSet(ctx, "a_by_bot")
	require.NoError(t, err)
	assert.False(t, deleted)
}
