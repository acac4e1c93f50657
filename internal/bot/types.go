package bot

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"grouphelper/internal/interaction"
	"grouphelper/internal/media"
	"grouphelper/internal/storage"
	"grouphelper/internal/weeb"
)

// Bot represents the Telegram bot wrapper
type Bot struct {
	api    BotAPI
	client *tgbotapi.BotAPI // nil in tests; used for polling and webhook setup
	self   tgbotapi.User
	token  string
	db     storage.Storage

	registry     *Registry
	interactions *interaction.Store
	guards       *interaction.Guards

	prefix         string
	devs           map[int64]bool
	captchaTimeout time.Duration

	converter *media.Converter
	weeb      *weeb.Client
	logger    *zap.Logger
}

// Options configures a Bot
type Options struct {
	Token          string
	Prefix         string
	DevIDs         []int64
	CaptchaTimeout time.Duration
	FFmpegPath     string
	WeebAPIURL     string
	NekosAPIURL    string
}

// captchaChallenge is the interaction payload of a pending captcha
type captchaChallenge struct {
	Code      string
	Attempt   int
	MessageID int
	UserName  string
}

// stickerRequest is the interaction payload of the sticker set picker
type stickerRequest struct {
	FileID    string
	IsVideo   bool
	Emoji     string
	Title     string
	MessageID int
}
