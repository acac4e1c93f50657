package bot

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"grouphelper/internal/interaction"
	"grouphelper/internal/media"
	"grouphelper/internal/storage"
	"grouphelper/internal/weeb"
)

// DefaultCaptchaTimeout is how long a joining user has to solve a captcha
const DefaultCaptchaTimeout = 3 * time.Minute

// NewBot creates a new Telegram bot
func NewBot(opts Options, db storage.Storage, logger *zap.Logger) (*Bot, error) {
	client, err := tgbotapi.NewBotAPI(opts.Token)
	if err != nil {
		logger.Error("Failed to create bot API", zap.Error(err))
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Bot created", zap.String("bot_username", client.Self.UserName))

	b, err := newBot(client, client.Self, opts, db, logger)
	if err != nil {
		return nil, err
	}
	b.client = client
	return b, nil
}

// newBot wires a bot around any gateway implementation
func newBot(api BotAPI, self tgbotapi.User, opts Options, db storage.Storage, logger *zap.Logger) (*Bot, error) {
	if opts.Prefix == "" {
		opts.Prefix = "/"
	}
	if opts.CaptchaTimeout <= 0 {
		opts.CaptchaTimeout = DefaultCaptchaTimeout
	}

	devs := make(map[int64]bool)
	for _, id := range opts.DevIDs {
		devs[id] = true
	}

	b := &Bot{
		api:            api,
		self:           self,
		token:          opts.Token,
		db:             db,
		registry:       NewRegistry(),
		interactions:   interaction.NewStore(),
		guards:         interaction.NewGuards(),
		prefix:         opts.Prefix,
		devs:           devs,
		captchaTimeout: opts.CaptchaTimeout,
		converter:      media.NewConverter(opts.FFmpegPath),
		weeb:           weeb.NewClient(opts.WeebAPIURL, opts.NekosAPIURL),
		logger:         logger,
	}

	if err := b.registerCommands(); err != nil {
		return nil, fmt.Errorf("failed to register commands: %w", err)
	}
	logger.Info("Commands loaded", zap.Int("count", len(b.registry.Commands())))

	return b, nil
}

// Stop disarms pending captcha timers
func (b *Bot) Stop() {
	b.guards.StopAll()
	if b.client != nil {
		b.client.StopReceivingUpdates()
	}
}
