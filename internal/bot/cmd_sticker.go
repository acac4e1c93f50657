package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"grouphelper/internal/command"
	"grouphelper/internal/interaction"
	"grouphelper/internal/media"
	"grouphelper/internal/models"
)

const (
	defaultStickerEmoji = "✨"
	maxSetTitleLength   = 64
	// maxStickersPerCall is the most stickers createNewStickerSet accepts at once
	maxStickersPerCall = 50
	// stickerPickTimeout bounds how long a set picker stays answerable
	stickerPickTimeout = 2 * time.Minute
)

// stickerSetInfo is the subset of getStickerSet the bot reads
type stickerSetInfo struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	Stickers []struct {
		FileID     string `json:"file_id"`
		Emoji      string `json:"emoji"`
		IsAnimated bool   `json:"is_animated"`
		IsVideo    bool   `json:"is_video"`
	} `json:"stickers"`
}

// inputSticker is the JSON form of a sticker passed to the sticker set endpoints
type inputSticker struct {
	Sticker   string   `json:"sticker"`
	Format    string   `json:"format"`
	EmojiList []string `json:"emoji_list"`
}

func stickerPickKey(chatID, userID int64) interaction.Key {
	return interaction.TokenKey(chatID, "sticker:"+strconv.FormatInt(userID, 10))
}

// getStickerSet fetches a set with the fields the client library does not decode
func (b *Bot) getStickerSet(name string) (stickerSetInfo, error) {
	resp, err := b.api.MakeRequest("getStickerSet", tgbotapi.Params{"name": name})
	if err != nil {
		return stickerSetInfo{}, fmt.Errorf("failed to get sticker set %s: %w", name, err)
	}
	var set stickerSetInfo
	if err := json.Unmarshal(resp.Result, &set); err != nil {
		return stickerSetInfo{}, fmt.Errorf("failed to decode sticker set %s: %w", name, err)
	}
	return set, nil
}

// newSetName builds a pack name Telegram will accept for this bot
func (b *Bot) newSetName(prefix string, userID int64, format string) string {
	return fmt.Sprintf("%s_%x_%d_%s_by_%s", prefix, rand.Uint32(), userID, format, strings.ToLower(b.self.UserName))
}

func isTelegramRejection(err error) bool {
	var tgErr *tgbotapi.Error
	return errors.As(err, &tgErr)
}

// handleSticker converts the replied media into a sticker. Users who already own sets
// pick one from an inline keyboard; the callback carries set:<name> or new:true.
func (b *Bot) handleSticker(ctx context.Context, m *Message, inv command.Invocation) error {
	key := stickerPickKey(m.ChatID, m.From.ID)

	if m.IsCallback {
		payload, ok := b.interactions.Pop(key)
		if !ok {
			return nil
		}
		b.guards.Cancel(key)
		req := payload.(stickerRequest)
		b.deleteMessage(m.ChatID, m.MessageID)

		setName, _ := inv.Flag("set")
		if v, _ := inv.Flag("new"); v == "true" {
			setName = ""
		}
		if setName != "" && !b.ownsSet(ctx, m.From.ID, setName) {
			return nil
		}
		return b.addSticker(ctx, m, req, setName)
	}

	reply := m.ReplyTo
	if reply == nil || (len(reply.Photo) == 0 && reply.Video == nil && reply.Animation == nil) {
		_, err := b.reply(m, "❌ Reply to a photo, GIF, or video.")
		return err
	}

	emoji := defaultStickerEmoji
	if v, ok := inv.Flag("emoji"); ok && strings.TrimSpace(v) != "" {
		emoji = strings.TrimSpace(v)
	} else if fields := strings.Fields(inv.Text); len(fields) > 0 {
		emoji = fields[0]
	}
	title, _ := inv.Flag("title")
	title = strings.TrimSpace(title)
	if len([]rune(title)) > maxSetTitleLength {
		_, err := b.reply(m, "❌ Title must be 64 characters or less.")
		return err
	}

	req := stickerRequest{Emoji: emoji, Title: title, MessageID: m.MessageID}
	switch {
	case reply.Animation != nil:
		req.FileID, req.IsVideo = reply.Animation.FileID, true
	case reply.Video != nil:
		req.FileID, req.IsVideo = reply.Video.FileID, true
	default:
		req.FileID = reply.Photo[len(reply.Photo)-1].FileID
	}

	sets, err := b.db.ListStickerSets(ctx, m.From.ID)
	if err != nil {
		return err
	}
	if len(sets) == 0 {
		return b.addSticker(ctx, m, req, "")
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, set := range sets {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(set.PackTitle, command.Callback("sticker", "set", set.PackName)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("➕ New Sticker Set", command.Callback("sticker", "new", "true")),
	))

	msg := tgbotapi.NewMessage(m.ChatID, "🗂 Choose a sticker set:")
	msg.ReplyToMessageID = m.MessageID
	msg.AllowSendingWithoutReply = true
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	picker, err := b.send(msg)
	if err != nil {
		return err
	}

	b.interactions.Set(key, req)
	chatID, pickerID := m.ChatID, picker.MessageID
	b.guards.Arm(key, stickerPickTimeout, func() {
		if _, ok := b.interactions.Pop(key); ok {
			b.deleteMessage(chatID, pickerID)
		}
	})
	return nil
}

// ownsSet reports whether the named set was created through the bot by userID
func (b *Bot) ownsSet(ctx context.Context, userID int64, name string) bool {
	sets, err := b.db.ListStickerSets(ctx, userID)
	if err != nil {
		b.logger.Warn("Failed to list sticker sets", zap.Error(err), zap.Int64("user_id", userID))
		return false
	}
	for _, set := range sets {
		if set.PackName == name {
			return true
		}
	}
	return false
}

// addSticker converts the requested media and adds it to setName, or to a new set when setName is empty
func (b *Bot) addSticker(ctx context.Context, m *Message, req stickerRequest, setName string) error {
	loading, _ := b.sendReplyTo(m.ChatID, req.MessageID, "🔮")
	defer b.deleteMessage(m.ChatID, loading.MessageID)

	format := models.StickerFormatStatic
	if req.IsVideo {
		format = models.StickerFormatVideo
	}

	source, err := b.downloadFile(ctx, req.FileID)
	if err != nil {
		return err
	}
	data, err := b.converter.Convert(ctx, source, format)
	if errors.Is(err, media.ErrStickerTooLarge) {
		_, err := b.sendReplyTo(m.ChatID, req.MessageID, "❌ File is too large. Sticker must be under 256 KB.")
		return err
	}
	if err != nil {
		return err
	}

	sticker, err := json.Marshal(inputSticker{Sticker: "attach://sticker", Format: format, EmojiList: []string{req.Emoji}})
	if err != nil {
		return err
	}
	files := []tgbotapi.RequestFile{{
		Name: "sticker",
		Data: tgbotapi.FileBytes{Name: "sticker" + media.Extension(format), Bytes: data},
	}}
	userID := strconv.FormatInt(m.From.ID, 10)

	if setName != "" {
		_, err = b.api.UploadFiles("addStickerToSet", tgbotapi.Params{
			"user_id": userID,
			"name":    setName,
			"sticker": string(sticker),
		}, files)
	} else {
		setName = b.newSetName("pack", m.From.ID, format)
		title := req.Title
		if title == "" {
			title = m.Sender().FullName + "'s Stickers"
		}
		_, err = b.api.UploadFiles("createNewStickerSet", tgbotapi.Params{
			"user_id":      userID,
			"name":         setName,
			"title":        title,
			"sticker_type": "regular",
			"stickers":     "[" + string(sticker) + "]",
		}, files)
		if err == nil {
			err = b.db.AddStickerSet(ctx, models.StickerSet{
				PackName:      setName,
				PackTitle:     title,
				Format:        format,
				CreatorUserID: m.From.ID,
				CreatedAt:     time.Now(),
			})
		}
	}
	if isTelegramRejection(err) {
		b.logger.Warn("Sticker rejected", zap.Error(err), zap.String("set", setName))
		_, err := b.sendReplyTo(m.ChatID, req.MessageID, "❌ Telegram rejected this media. Try a different file.")
		return err
	}
	if err != nil {
		return err
	}

	set, err := b.getStickerSet(setName)
	if err != nil || len(set.Stickers) == 0 {
		_, err := b.sendReplyTo(m.ChatID, req.MessageID,
			"✅ Sticker added: https://t.me/addstickers/"+setName)
		return err
	}
	last := tgbotapi.NewSticker(m.ChatID, tgbotapi.FileID(set.Stickers[len(set.Stickers)-1].FileID))
	last.ReplyToMessageID = req.MessageID
	last.AllowSendingWithoutReply = true
	_, err = b.send(last)
	return err
}

// handleDeleteSet deletes a sticker set the bot created
func (b *Bot) handleDeleteSet(ctx context.Context, m *Message, inv command.Invocation) error {
	if m.ReplyTo == nil || m.ReplyTo.Sticker == nil {
		_, err := b.reply(m, "❌ Reply to a sticker from the pack you want to delete.")
		return err
	}
	name := m.ReplyTo.Sticker.SetName
	if name == "" {
		_, err := b.reply(m, "❌ This sticker does not belong to a sticker set.")
		return err
	}
	if !strings.HasSuffix(strings.ToLower(name), "_by_"+strings.ToLower(b.self.UserName)) {
		_, err := b.reply(m, "❌ I can only delete sticker sets created by me.")
		return err
	}

	if _, err := b.api.MakeRequest("deleteStickerSet", tgbotapi.Params{"name": name}); err != nil {
		b.logger.Warn("Failed to delete sticker set", zap.Error(err), zap.String("set", name))
		_, err := b.reply(m, "❌ Failed to delete sticker set.")
		return err
	}
	if _, err := b.db.DeleteStickerSet(ctx, name); err != nil {
		b.logger.Error("Failed to forget sticker set", zap.Error(err), zap.String("set", name))
	}

	_, err := b.reply(m, "✅ Sticker set deleted successfully")
	return err
}

// handleStealPack clones the replied sticker's pack into a new set owned by the sender
func (b *Bot) handleStealPack(ctx context.Context, m *Message, inv command.Invocation) error {
	if m.ReplyTo == nil || m.ReplyTo.Sticker == nil || m.ReplyTo.Sticker.SetName == "" {
		_, err := b.reply(m, "❌ Reply to a sticker to clone its pack.")
		return err
	}

	loading, _ := b.reply(m, "🪄")
	defer b.deleteMessage(m.ChatID, loading.MessageID)

	original, err := b.getStickerSet(m.ReplyTo.Sticker.SetName)
	if err != nil {
		return err
	}
	if len(original.Stickers) == 0 {
		_, err := b.reply(m, "❌ That sticker pack is empty.")
		return err
	}

	first := original.Stickers[0]
	format, limit := models.StickerFormatStatic, 120
	switch {
	case first.IsVideo:
		format, limit = models.StickerFormatVideo, 50
	case first.IsAnimated:
		format, limit = models.StickerFormatAnimated, 50
	}

	var stickers []inputSticker
	for _, s := range original.Stickers {
		if len(stickers) == limit {
			break
		}
		emoji := s.Emoji
		if emoji == "" {
			emoji = defaultStickerEmoji
		}
		stickers = append(stickers, inputSticker{Sticker: s.FileID, Format: format, EmojiList: []string{emoji}})
	}

	name := b.newSetName("u", m.From.ID, format)
	title := m.Sender().FullName + "'s Cloned Stickers"
	userID := strconv.FormatInt(m.From.ID, 10)

	head := stickers
	if len(head) > maxStickersPerCall {
		head = head[:maxStickersPerCall]
	}
	encoded, err := json.Marshal(head)
	if err != nil {
		return err
	}
	if _, err := b.api.MakeRequest("createNewStickerSet", tgbotapi.Params{
		"user_id":      userID,
		"name":         name,
		"title":        title,
		"sticker_type": "regular",
		"stickers":     string(encoded),
	}); err != nil {
		if isTelegramRejection(err) {
			b.logger.Warn("Sticker pack clone rejected", zap.Error(err), zap.String("source", original.Name))
			_, err := b.reply(m, "❌ Failed to clone sticker pack. Telegram rejected the request.")
			return err
		}
		return err
	}

	for _, s := range stickers[len(head):] {
		one, err := json.Marshal(s)
		if err != nil {
			return err
		}
		if _, err := b.api.MakeRequest("addStickerToSet", tgbotapi.Params{
			"user_id": userID,
			"name":    name,
			"sticker": string(one),
		}); err != nil {
			b.logger.Warn("Failed to copy sticker", zap.Error(err), zap.String("set", name))
			break
		}
	}

	if err := b.db.AddStickerSet(ctx, models.StickerSet{
		PackName:      name,
		PackTitle:     title,
		Format:        format,
		CreatorUserID: m.From.ID,
		CreatedAt:     time.Now(),
	}); err != nil {
		b.logger.Error("Failed to record cloned set", zap.Error(err), zap.String("set", name))
	}

	_, err = b.replyHTML(m, "✅ Sticker pack cloned successfully!\n"+
		fmt.Sprintf("👉 <a href=\"https://t.me/addstickers/%s\">Sticker Pack</a>", name))
	return err
}
