package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/abelzeko/mushroom-bot/internal/config"
	"github.com/abelzeko/mushroom-bot/internal/integration"
	"github.com/abelzeko/mushroom-bot/internal/repository"
	"github.com/abelzeko/mushroom-bot/internal/usecases"
	"github.com/robfig/cron/v3"
)

// refreshJob returns the cron job that imports the latest climate readings
func refreshJob(ctx context.Context, useCase *usecases.BatchUseCase) func() {
	return func() {
		if err := useCase.RefreshClimateData(ctx); err != nil {
			log.Printf("Scheduled data refresh failed: %v", err)
		}
	}
}

func main() {
	// Configure logging
	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Starting Mushroom Bot Scraper...")

	cfg := config.Load()
	if cfg.ClimateSourceURL == "" {
		log.Fatal("CLIMATE_SOURCE_URL environment variable is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := repository.Open(ctx, cfg.DatabaseURL, cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize repository: %v", err)
	}
	defer repo.Close()

	scraper := integration.NewClimateScraper(cfg.ClimateSourceURL, cfg.ScrapeTimeout)
	useCase := usecases.NewBatchUseCase(repo, scraper)

	// Run immediately on startup
	if err := useCase.RefreshClimateData(ctx); err != nil {
		log.Printf("Initial data refresh failed: %v", err)
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.ScrapeSchedule, refreshJob(ctx, useCase)); err != nil {
		log.Fatalf("Failed to set up cron job: %v", err)
	}

	log.Printf("Scraper has been scheduled with %q", cfg.ScrapeSchedule)
	c.Start()

	<-ctx.Done()
	log.Println("Stopping scraper...")
	<-c.Stop().Done()
}
