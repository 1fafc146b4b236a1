package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abelzeko/mushroom-bot/internal/api"
	"github.com/abelzeko/mushroom-bot/internal/config"
	"github.com/abelzeko/mushroom-bot/internal/insights"
	"github.com/abelzeko/mushroom-bot/internal/integration/openai"
	"github.com/abelzeko/mushroom-bot/internal/repository"
	"github.com/abelzeko/mushroom-bot/internal/seed"
	"github.com/abelzeko/mushroom-bot/internal/usecases"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Configure logging
	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Starting Mushroom API...")

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	thresholds, err := config.LoadThresholds(cfg.ThresholdsFile)
	if err != nil {
		log.Fatalf("Failed to load thresholds: %v", err)
	}

	repo, err := repository.Open(ctx, cfg.DatabaseURL, cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize repository: %v", err)
	}
	defer repo.Close()

	if cfg.SeedOnStart {
		if _, err := seed.Seed(ctx, repo, false); err != nil {
			log.Printf("Seeding failed: %v", err)
		}
	}

	var agent openai.OpenAIService
	if cfg.OpenAIAPIKey != "" {
		if agent, err = openai.NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIModel); err != nil {
			log.Fatalf("Failed to initialize OpenAI service: %v", err)
		}
	}

	metrics := api.NewMetrics()
	server := api.NewServer(
		usecases.NewBatchUseCase(repo, nil),
		usecases.NewInsightUseCase(repo, insights.NewEngine(thresholds), agent),
		metrics,
	)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Handler(cfg.CORSOrigins, os.Stdout),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("HTTP API listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Println("Shutting down HTTP API...")
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("HTTP API stopped with error: %v", err)
	}
}
