package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/abelzeko/mushroom-bot/internal/api"
	"github.com/abelzeko/mushroom-bot/internal/config"
	"github.com/abelzeko/mushroom-bot/internal/insights"
	"github.com/abelzeko/mushroom-bot/internal/integration/openai"
	"github.com/abelzeko/mushroom-bot/internal/repository"
	"github.com/abelzeko/mushroom-bot/internal/usecases"
)

func main() {
	// Configure logging
	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Starting Mushroom Bot...")

	cfg := config.Load()
	if cfg.TelegramBotToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN environment variable is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	thresholds, err := config.LoadThresholds(cfg.ThresholdsFile)
	if err != nil {
		log.Fatalf("Failed to load thresholds: %v", err)
	}

	// Free-text queries fall back to a help hint without OpenAI
	openAIService, err := openai.NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	if err != nil {
		log.Printf("Free-text queries disabled: %v", err)
	}

	repo, err := repository.Open(ctx, cfg.DatabaseURL, cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize repository: %v", err)
	}
	defer repo.Close()

	batches := usecases.NewBatchUseCase(repo, nil)
	insightUseCase := usecases.NewInsightUseCase(repo, insights.NewEngine(thresholds), openAIService)

	telegramBot, err := api.NewTelegramBot(cfg.TelegramBotToken, batches, insightUseCase, nil)
	if err != nil {
		log.Fatalf("Failed to initialize Telegram bot: %v", err)
	}

	telegramBot.Start(ctx)
	log.Println("Mushroom Bot stopped")
}
