package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/joho/godotenv"

	"github.com/es0612/health-insight-go/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n🎉 All Telegram alert configuration checks passed!")
}

func run() error {
	fmt.Println("🔧 Validating Telegram alert configuration...")

	// Load .env file
	if err := godotenv.Load(); err != nil {
		fmt.Printf("⚠️  Warning: Could not load .env file: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.Telegram.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is not configured")
	}
	fmt.Printf("✅ TELEGRAM_BOT_TOKEN is configured (length: %d)\n", len(cfg.Telegram.BotToken))

	if cfg.Telegram.ChatID == "" {
		return fmt.Errorf("TELEGRAM_CHAT_ID is not configured, anomaly alerts have no destination")
	}
	chatID, err := strconv.ParseInt(cfg.Telegram.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("TELEGRAM_CHAT_ID %q is not a numeric chat ID: %w", cfg.Telegram.ChatID, err)
	}
	fmt.Printf("✅ TELEGRAM_CHAT_ID is configured: %d\n", chatID)

	fmt.Printf("✅ Alert minimum severity: %s\n", cfg.Insight.MinSeverity())

	// Try to create bot instance
	b, err := bot.New(cfg.Telegram.BotToken)
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	fmt.Println("✅ Telegram bot created successfully")

	// Try to get bot info (this makes an actual API call)
	fmt.Println("🔍 Testing bot API connection...")
	botInfo, err := b.GetMe(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get bot info: %w", err)
	}

	fmt.Printf("✅ Bot API connection successful!\n")
	fmt.Printf("   Bot Name: %s\n", botInfo.FirstName)
	fmt.Printf("   Bot Username: @%s\n", botInfo.Username)
	fmt.Printf("   Bot ID: %d\n", botInfo.ID)

	return nil
}
