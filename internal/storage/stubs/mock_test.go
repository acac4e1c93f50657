package stubs

import (
	"context"
	"sync"
	"testing"
	"time"

	"grouphelper/internal/models"
)

func TestMockDB_GetUserCreatesDefault(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	user, err := db.GetUser(ctx, 42)
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}

	if user.UserID != 42 {
		t.Errorf("Expected user ID 42, got %d", user.UserID)
	}
	if user.XP != 0 || user.Ban.Status || user.AFK.Status {
		t.Errorf("Expected a blank user record, got %+v", user)
	}
	if user.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}
}

func TestMockDB_SaveUserRoundTrip(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	user, _ := db.GetUser(ctx, 7)
	user.UserName = "Alice"
	user.XP = 120
	user.AFK = models.AFKInfo{Status: true, Reason: "lunch", Since: time.Now(), MentionedMessageIDs: []int{1, 2}}
	if err := db.SaveUser(ctx, user); err != nil {
		t.Fatalf("Failed to save user: %v", err)
	}

	// Mutating the caller's copy must not leak into the store
	user.AFK.MentionedMessageIDs[0] = 99

	stored, _ := db.GetUser(ctx, 7)
	if stored.XP != 120 {
		t.Errorf("Expected XP 120, got %d", stored.XP)
	}
	if !stored.AFK.Status || stored.AFK.Reason != "lunch" {
		t.Errorf("Expected AFK to be stored, got %+v", stored.AFK)
	}
	if stored.AFK.MentionedMessageIDs[0] != 1 {
		t.Errorf("Expected stored mentions to be isolated, got %v", stored.AFK.MentionedMessageIDs)
	}
}

func TestMockDB_FindUserByUserName(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	user, _ := db.GetUser(ctx, 7)
	user.UserName = "Alice"
	db.SaveUser(ctx, user)

	found, err := db.FindUserByUserName(ctx, "@alice")
	if err != nil {
		t.Fatalf("Failed to find user: %v", err)
	}
	if found == nil || found.UserID != 7 {
		t.Fatalf("Expected to find user 7, got %+v", found)
	}

	missing, err := db.FindUserByUserName(ctx, "bob")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for unknown username, got %+v", missing)
	}
}

func TestMockDB_ChatSavedPermissions(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	chat, _ := db.GetChat(ctx, -100)
	if chat.SavedPermissions != nil {
		t.Fatal("Expected no saved permissions on a new chat")
	}

	chat.SavedPermissions = &models.ChatPermissions{CanSendMessages: true, CanInviteUsers: true}
	chat.CaptchaEnabled = true
	db.SaveChat(ctx, chat)

	stored, _ := db.GetChat(ctx, -100)
	if !stored.CaptchaEnabled {
		t.Error("Expected captcha to be enabled")
	}
	if stored.SavedPermissions == nil || !stored.SavedPermissions.CanInviteUsers || stored.SavedPermissions.CanPinMessages {
		t.Errorf("Unexpected saved permissions: %+v", stored.SavedPermissions)
	}
}

func TestMockDB_CommandConfigLazyDefault(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	if db.HasCommandConfig("anime") {
		t.Fatal("Expected no config before first lookup")
	}

	cfg, err := db.GetCommandConfig(ctx, "anime")
	if err != nil {
		t.Fatalf("Failed to get command config: %v", err)
	}
	if !cfg.Enabled {
		t.Error("Expected unseen command to be enabled")
	}
	if !db.HasCommandConfig("anime") {
		t.Error("Expected config to be created lazily")
	}

	cfg.Enabled = false
	cfg.DisabledReason = "maintenance"
	db.SaveCommandConfig(ctx, cfg)

	stored, _ := db.GetCommandConfig(ctx, "anime")
	if stored.Enabled || stored.DisabledReason != "maintenance" {
		t.Errorf("Expected disabled config, got %+v", stored)
	}
}

func TestMockDB_StickerSets(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()
	now := time.Now()

	db.AddStickerSet(ctx, models.StickerSet{PackName: "b_by_bot", CreatorUserID: 1, CreatedAt: now.Add(time.Minute)})
	db.AddStickerSet(ctx, models.StickerSet{PackName: "a_by_bot", CreatorUserID: 1, CreatedAt: now})
	db.AddStickerSet(ctx, models.StickerSet{PackName: "c_by_bot", CreatorUserID: 2, CreatedAt: now})

	sets, err := db.ListStickerSets(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to list sticker sets: %v", err)
	}
	if len(sets) != 2 {
		t.Fatalf("Expected 2 sets, got %d", len(sets))
	}
	if sets[0].PackName != "a_by_bot" || sets[1].PackName != "b_by_bot" {
		t.Errorf("Expected oldest first, got %v", sets)
	}

	deleted, _ := db.DeleteStickerSet(ctx, "a_by_bot")
	if !deleted {
		t.Error("Expected set to be deleted")
	}
	deleted, _ = db.DeleteStickerSet(ctx, "a_by_bot")
	if deleted {
		t.Error("Expected second delete to report false")
	}
}

func TestMockDB_UserFieldUpdates(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			db.AddXP(ctx, 7, 1)
		}()
		go func() {
			defer wg.Done()
			db.SetUserName(ctx, 7, "alice")
		}()
	}
	wg.Wait()

	if afk, _ := db.AddAFKMention(ctx, 7, 1); afk {
		t.Error("Expected mention to be ignored while not AFK")
	}
	db.SwapAFK(ctx, 7, models.AFKInfo{Status: true, Reason: "lunch"})
	if afk, _ := db.AddAFKMention(ctx, 7, 2); !afk {
		t.Error("Expected mention to be recorded while AFK")
	}

	user, _ := db.GetUser(ctx, 7)
	if user.XP != 20 {
		t.Errorf("Expected XP 20, got %d", user.XP)
	}
	if user.UserName != "alice" {
		t.Errorf("Expected username alice, got %q", user.UserName)
	}

	prev, _ := db.SwapAFK(ctx, 7, models.AFKInfo{})
	if !prev.Status || len(prev.MentionedMessageIDs) != 1 || prev.MentionedMessageIDs[0] != 2 {
		t.Errorf("Expected previous AFK with mention 2, got %+v", prev)
	}

	ban, _ := db.SwapBan(ctx, 7, models.BanInfo{Status: true, Reason: "spam"})
	if ban.Status {
		t.Error("Expected no previous ban")
	}
	ban, _ = db.SwapBan(ctx, 7, models.BanInfo{})
	if !ban.Status || ban.Reason != "spam" {
		t.Errorf("Expected previous ban to be returned, got %+v", ban)
	}
}
