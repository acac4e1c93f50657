package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage drivers
const (
	StorageMock       = "mock"
	StorageClickHouse = "clickhouse"
	StorageSQLite     = "sqlite"
)

// Config holds the application configuration
type Config struct {
	TelegramToken string

	// Prefix starts every typed command
	Prefix string
	// OwnerID and ModIDs may run developer commands
	OwnerID int64
	ModIDs  []int64

	// Bot mode configuration
	WebhookMode bool   // If true, use webhook mode; if false, use polling mode
	WebhookURL  string // URL for webhook (required if WebhookMode is true)
	Port        string

	StorageDriver string
	SQLitePath    string

	// ClickHouse configuration
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseUseTLS   bool

	// Error reporting
	SentryDSN         string
	SentryEnvironment string

	LogLevel string

	FFmpegPath     string
	WeebAPIURL     string
	NekosAPIURL    string
	CaptchaTimeout time.Duration
}

// DevIDs returns the owner and moderator ids together
func (c *Config) DevIDs() []int64 {
	ids := make([]int64, 0, len(c.ModIDs)+1)
	if c.OwnerID != 0 {
		ids = append(ids, c.OwnerID)
	}
	return append(ids, c.ModIDs...)
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{}

	// Telegram Bot Token (required)
	config.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if config.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	config.Prefix = os.Getenv("BOT_PREFIX")
	if config.Prefix == "" {
		config.Prefix = "/"
	}

	if ownerStr := os.Getenv("OWNER_ID"); ownerStr != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(ownerStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid OWNER_ID: %s", ownerStr)
		}
		config.OwnerID = id
	}

	if modsStr := os.Getenv("MOD_IDS"); modsStr != "" {
		for _, idStr := range strings.Split(modsStr, ",") {
			idStr = strings.TrimSpace(idStr)
			if idStr == "" {
				continue
			}
			id, err := strconv.ParseInt(idStr, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID in MOD_IDS: %s", idStr)
			}
			config.ModIDs = append(config.ModIDs, id)
		}
	}

	// Bot mode configuration
	config.WebhookMode = os.Getenv("WEBHOOK_MODE") == "true"
	if config.WebhookMode {
		config.WebhookURL = os.Getenv("WEBHOOK_URL")
		if config.WebhookURL == "" {
			return nil, fmt.Errorf("WEBHOOK_URL is required when WEBHOOK_MODE is true")
		}
	}

	config.Port = os.Getenv("PORT")
	if config.Port == "" {
		config.Port = "8080" // Default port
	}

	config.StorageDriver = strings.ToLower(os.Getenv("STORAGE_DRIVER"))
	if config.StorageDriver == "" {
		config.StorageDriver = StorageSQLite
	}

	switch config.StorageDriver {
	case StorageMock:
	case StorageSQLite:
		config.SQLitePath = os.Getenv("SQLITE_PATH")
		if config.SQLitePath == "" {
			config.SQLitePath = "data/grouphelper.db"
		}
	case StorageClickHouse:
		config.ClickHouseHost = os.Getenv("CLICKHOUSE_HOST")
		if config.ClickHouseHost == "" {
			return nil, fmt.Errorf("CLICKHOUSE_HOST is required when STORAGE_DRIVER is clickhouse")
		}

		portStr := os.Getenv("CLICKHOUSE_PORT")
		if portStr == "" {
			config.ClickHousePort = 9000 // Default ClickHouse native port
		} else {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return nil, fmt.Errorf("invalid CLICKHOUSE_PORT: %w", err)
			}
			config.ClickHousePort = port
		}

		config.ClickHouseDatabase = os.Getenv("CLICKHOUSE_DATABASE")
		if config.ClickHouseDatabase == "" {
			config.ClickHouseDatabase = "default"
		}

		config.ClickHouseUser = os.Getenv("CLICKHOUSE_USER")
		if config.ClickHouseUser == "" {
			config.ClickHouseUser = "default"
		}

		config.ClickHousePassword = os.Getenv("CLICKHOUSE_PASSWORD")
		// Password is optional, can be empty

		config.ClickHouseUseTLS = os.Getenv("CLICKHOUSE_USE_TLS") == "true"
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER: %s", config.StorageDriver)
	}

	config.SentryDSN = os.Getenv("SENTRY_DSN")
	config.SentryEnvironment = os.Getenv("SENTRY_ENVIRONMENT")
	if config.SentryEnvironment == "" {
		config.SentryEnvironment = "production"
	}

	config.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}

	config.FFmpegPath = os.Getenv("FFMPEG_PATH")
	config.WeebAPIURL = os.Getenv("WEEB_API_URL")
	config.NekosAPIURL = os.Getenv("NEKOS_API_URL")

	config.CaptchaTimeout = 3 * time.Minute
	if timeoutStr := os.Getenv("CAPTCHA_TIMEOUT"); timeoutStr != "" {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil || timeout <= 0 {
			return nil, fmt.Errorf("invalid CAPTCHA_TIMEOUT: %s", timeoutStr)
		}
		config.CaptchaTimeout = timeout
	}

	return config, nil
}
