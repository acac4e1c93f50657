// Command grouphelper-dev runs the bot against a throwaway ClickHouse container.
package main

import (
	"context"
	"fmt"
	"os"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"go.uber.org/zap"

	"grouphelper/internal/app"
	"grouphelper/migrations"
)

const (
	devImage    = "clickhouse/clickhouse-server:latest"
	devUser     = "default"
	devPassword = "devpassword"
	devDatabase = "default"
)

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("Dev runner failed", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	ctx := context.Background()

	// The app loads .env itself, but the token check below needs it first
	_ = godotenv.Load()

	logger.Info("Starting ClickHouse testcontainer", zap.String("image", devImage))
	container, err := clickhouse.Run(ctx, devImage,
		clickhouse.WithUsername(devUser),
		clickhouse.WithPassword(devPassword),
		clickhouse.WithDatabase(devDatabase),
	)
	if err != nil {
		return fmt.Errorf("failed to start ClickHouse container: %w", err)
	}
	defer func() {
		logger.Info("Stopping ClickHouse container")
		if err := container.Terminate(ctx); err != nil {
			logger.Warn("Failed to terminate container", zap.Error(err))
		}
	}()

	host, err := container.Host(ctx)
	if err != nil {
		return fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "9000/tcp")
	if err != nil {
		return fmt.Errorf("failed to get container port: %w", err)
	}
	logger.Info("ClickHouse started", zap.String("host", host), zap.String("port", port.Port()))

	if err := migrate(host, port.Port()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("Migrations applied")

	env := map[string]string{
		"STORAGE_DRIVER":      "clickhouse",
		"CLICKHOUSE_HOST":     host,
		"CLICKHOUSE_PORT":     port.Port(),
		"CLICKHOUSE_DATABASE": devDatabase,
		"CLICKHOUSE_USER":     devUser,
		"CLICKHOUSE_PASSWORD": devPassword,
		"CLICKHOUSE_USE_TLS":  "false",
		"WEBHOOK_MODE":        "false",
		"LOG_LEVEL":           "debug",
	}
	for key, value := range env {
		os.Setenv(key, value)
	}
	if os.Getenv("PORT") == "" {
		os.Setenv("PORT", "8080")
	}

	if os.Getenv("TELEGRAM_BOT_TOKEN") == "" {
		logger.Warn("TELEGRAM_BOT_TOKEN not set, the bot will fail to start")
	}
	if os.Getenv("OWNER_ID") == "" {
		logger.Warn("OWNER_ID not set, developer commands will be unavailable")
	}

	application, err := app.New()
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	// Run blocks until SIGINT or SIGTERM, then shuts the app down
	return application.Run()
}

// migrate applies the embedded ClickHouse migrations to the dev container
func migrate(host, port string) error {
	db := ch.OpenDB(&ch.Options{
		Addr: []string{host + ":" + port},
		Auth: ch.Auth{
			Database: devDatabase,
			Username: devUser,
			Password: devPassword,
		},
	})
	defer db.Close()

	goose.SetBaseFS(migrations.ClickHouse)
	if err := goose.SetDialect("clickhouse"); err != nil {
		return err
	}
	return goose.Up(db, "clickhouse")
}
