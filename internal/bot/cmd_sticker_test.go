package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grouphelper/internal/models"
)

func stickerReply(setName string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 5,
		From:      bob,
		Sticker:   &tgbotapi.Sticker{FileID: "stk", SetName: setName},
	}
}

func TestDeleteSet(t *testing.T) {
	b, api, db := newTestBot(t, Options{})
	ctx := context.Background()
	require.NoError(t, db.AddStickerSet(ctx, models.StickerSet{PackName: "pack_1_static_by_helper_bot", CreatorUserID: alice.ID}))

	tests := []struct {
		name  string
		reply *tgbotapi.Message
		want  string
	}{
		{"no reply", nil, "❌ Reply to a sticker from the pack you want to delete."},
		{"loose sticker", stickerReply(""), "❌ This sticker does not belong to a sticker set."},
		{"foreign set", stickerReply("cats_by_otherbot"), "❌ I can only delete sticker sets created by me."},
		{"own set", stickerReply("pack_1_static_by_Helper_Bot"), "✅ Sticker set deleted successfully"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api.reset()
			msg := groupMessage(alice, "/delset")
			msg.ReplyToMessage = tt.reply
			b.HandleUpdate(tgbotapi.Update{Message: msg})
			assert.Equal(t, []string{tt.want}, api.texts())
		})
	}

	assert.Equal(t, 1, api.calls("deleteStickerSet"))
}

func TestStealPack(t *testing.T) {
	b, api, db := newTestBot(t, Options{})

	stickers := make([]map[string]any, 60)
	for i := range stickers {
		stickers[i] = map[string]any{"file_id": fmt.Sprintf("f%d", i), "emoji": "😺"}
	}
	stickers[3]["emoji"] = ""
	set, err := json.Marshal(map[string]any{"name": "cats", "title": "Cats", "stickers": stickers})
	require.NoError(t, err)
	api.results["getStickerSet"] = string(set)

	msg := groupMessage(alice, "/clonepack")
	msg.ReplyToMessage = stickerReply("cats")
	b.HandleUpdate(tgbotapi.Update{Message: msg})

	assert.Equal(t, 1, api.calls("createNewStickerSet"))
	assert.Equal(t, 10, api.calls("addStickerToSet"))

	var created []inputSticker
	for _, p := range api.params {
		if raw, ok := p["stickers"]; ok {
			require.NoError(t, json.Unmarshal([]byte(raw), &created))
			assert.Equal(t, "Alice's Cloned Stickers", p["title"])
			assert.True(t, strings.HasSuffix(p["name"], "_1_static_by_helper_bot"))
		}
	}
	require.Len(t, created, maxStickersPerCall)
	assert.Equal(t, []string{defaultStickerEmoji}, created[3].EmojiList)
	assert.Equal(t, models.StickerFormatStatic, created[0].Format)

	sets, err := db.ListStickerSets(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, "Alice's Cloned Stickers", sets[0].PackTitle)

	texts := api.texts()
	require.NotEmpty(t, texts)
	assert.Contains(t, texts[len(texts)-1], "✅ Sticker pack cloned successfully!")
}

func TestStealPack_VideoLimit(t *testing.T) {
	b, api, _ := newTestBot(t, Options{})

	stickers := make([]map[string]any, 80)
	for i := range stickers {
		stickers[i] = map[string]any{"file_id": fmt.Sprintf("v%d", i), "emoji": "🎬", "is_video": true}
	}
	set, err := json.Marshal(map[string]any{"name": "clips", "stickers": stickers})
	require.NoError(t, err)
	api.results["getStickerSet"] = string(set)

	msg := groupMessage(alice, "/stealpack")
	msg.ReplyToMessage = stickerReply("clips")
	b.HandleUpdate(tgbotapi.Update{Message: msg})

	assert.Equal(t, 1, api.calls("createNewStickerSet"))
	assert.Zero(t, api.calls("addStickerToSet"), "video packs stop at 50")
}

func TestSticker_PickerFlow(t *testing.T) {
	b, api, db := newTestBot(t, Options{})
	ctx := context.Background()
	require.NoError(t, db.AddStickerSet(ctx, models.StickerSet{
		PackName: "pack_a_1_static_by_helper_bot", PackTitle: "Mine", Format: models.StickerFormatStatic,
		CreatorUserID: alice.ID, CreatedAt: time.Now(),
	}))

	msg := groupMessage(alice, "/sset 🔥 title:Hot Stuff")
	msg.ReplyToMessage = &tgbotapi.Message{MessageID: 5, From: bob, Photo: []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}}}
	b.HandleUpdate(tgbotapi.Update{Message: msg})

	require.Len(t, api.sent, 1)
	picker, ok := api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, "🗂 Choose a sticker set:", picker.Text)
	keyboard := picker.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	assert.Equal(t, "cmd:sticker set:pack_a_1_static_by_helper_bot", *keyboard.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "cmd:sticker new:true", *keyboard.InlineKeyboard[1][0].CallbackData)

	payload, ok := b.interactions.Get(stickerPickKey(testChatID, alice.ID))
	require.True(t, ok)
	req := payload.(stickerRequest)
	assert.Equal(t, "large", req.FileID)
	assert.Equal(t, "🔥", req.Emoji)
	assert.Equal(t, "Hot Stuff", req.Title)
	assert.False(t, req.IsVideo)

	// another user clicking finds no pick of their own
	api.reset()
	b.HandleUpdate(tgbotapi.Update{CallbackQuery: callback(bob, 101, "cmd:sticker new:true")})
	_, ok = b.interactions.Get(stickerPickKey(testChatID, alice.ID))
	assert.True(t, ok)
	assert.Empty(t, api.texts())
}

func TestSticker_NeedsMedia(t *testing.T) {
	b, api, _ := newTestBot(t, Options{})

	msg := groupMessage(alice, "/sticker")
	msg.ReplyToMessage = &tgbotapi.Message{MessageID: 5, From: bob, Text: "just text"}
	b.HandleUpdate(tgbotapi.Update{Message: msg})

	assert.Equal(t, []string{"❌ Reply to a photo, GIF, or video."}, api.texts())
}
