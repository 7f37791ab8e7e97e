// cmd/bot/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dispatch-bot/config"
	"dispatch-bot/internal/bot"
	"dispatch-bot/internal/db"
	"dispatch-bot/internal/server"
	"dispatch-bot/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func main() {
	// Initialize logger
	l := logger.New()
	l.Info("Starting dispatch bot...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l.Fatal("Failed to load config", err)
	}

	// Validate critical configuration
	if cfg.Telegram.Token == "" {
		l.Fatal("Telegram token is not configured")
	}
	if cfg.Telegram.WebhookURL == "" {
		l.Fatal("Telegram webhook URL is not configured")
	}
	if cfg.Telegram.OperatorChatID == 0 {
		l.Fatal("Operator chat id is not configured")
	}

	// Initialize database connection with retry
	var database *db.PostgresDB
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		database, err = db.NewPostgresDB(cfg.DB)
		if err == nil {
			break
		}
		l.Error("Failed to connect to database, retrying...", err)
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	if database == nil {
		l.Fatal("Failed to connect to database after multiple attempts", err)
	}
	defer database.Close()

	// Initialize Telegram API client
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		l.Fatal("Failed to create Telegram client", err)
	}
	l.Info("Authorized on Telegram", "username", api.Self.UserName)

	// Register the webhook (delete-then-set)
	if err := bot.ConfigureWebhook(api, cfg.Telegram.WebhookURL); err != nil {
		l.Fatal("Failed to configure webhook", err)
	}
	l.Info("Webhook configured", "url", cfg.Telegram.WebhookURL)

	messenger := bot.NewTelegramMessenger(api)

	// Notifier: response-triggered fan-out plus the cron interval sweep
	notifier := bot.NewNotifier(database, database, messenger, cfg.Notify.Debounce, l)
	sweeper := notifier.StartCron()

	dispatchBot := bot.New(bot.Deps{
		Messenger:      messenger,
		Users:          database,
		Pending:        database,
		Dispatch:       database,
		Points:         database,
		Tickets:        database,
		Notifier:       notifier,
		OperatorChatID: cfg.Telegram.OperatorChatID,
		Carparks:       cfg.Carparks,
		Logger:         l,
	})

	// Start webhook server
	httpServer := server.NewServer(cfg.Server.Port, dispatchBot, l)
	go func() {
		l.Info("Starting HTTP server...")
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("Failed to start HTTP server", err)
		}
	}()

	// Wait for termination signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info("Shutting down bot...")

	// Create context for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Stop HTTP server first, then the sweep
	if err := httpServer.Stop(ctx); err != nil {
		l.Error("Error during HTTP server shutdown", err)
	}

	sweepCtx := sweeper.Stop()
	select {
	case <-sweepCtx.Done():
	case <-ctx.Done():
		l.Error("Timed out waiting for interval sweep to finish")
	}

	l.Info("Bot stopped successfully")
}
