// Package config loads runtime settings from the environment and an optional .env file
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/abelzeko/mushroom-bot/internal/insights"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by every binary
type Config struct {
	DatabasePath     string
	DatabaseURL      string
	HTTPAddr         string
	TelegramBotToken string
	OpenAIAPIKey     string
	OpenAIModel      string
	ClimateSourceURL string
	ScrapeSchedule   string
	ScrapeTimeout    time.Duration
	ThresholdsFile   string
	CORSOrigins      []string
	SeedOnStart      bool
}

// Load reads .env (when present) and then the process environment
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: failed to load .env file: %v", err)
	}

	return Config{
		DatabasePath:     getenv("DATABASE_PATH", "data/mushroom_farming.db"),
		DatabaseURL:      getenv("DATABASE_URL", ""),
		HTTPAddr:         getenv("HTTP_ADDR", ":8000"),
		TelegramBotToken: getenv("TELEGRAM_BOT_TOKEN", ""),
		OpenAIAPIKey:     getenv("OPENAI_API_KEY", ""),
		OpenAIModel:      getenv("OPENAI_MODEL", ""),
		ClimateSourceURL: getenv("CLIMATE_SOURCE_URL", ""),
		ScrapeSchedule:   getenv("SCRAPE_SCHEDULE", "0 * * * *"),
		ScrapeTimeout:    time.Duration(getenvInt("SCRAPE_TIMEOUT_SECONDS", 15)) * time.Second,
		ThresholdsFile:   getenv("THRESHOLDS_FILE", ""),
		CORSOrigins:      splitList(getenv("CORS_ORIGINS", "*")),
		SeedOnStart:      getenvBool("SEED_ON_START", false),
	}
}

func getenv(k, d string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("Ignoring invalid %s=%q", k, v)
	}
	return d
}

func getenvBool(k string, d bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Printf("Ignoring invalid %s=%q", k, v)
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadThresholds returns the default insight thresholds overlaid with the
// values set in the YAML file at path. An empty path means defaults.
func LoadThresholds(path string) (insights.Thresholds, error) {
	th := insights.DefaultThresholds()
	if path == "" {
		return th, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return th, fmt.Errorf("failed to read thresholds file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &th); err != nil {
		return th, fmt.Errorf("failed to parse thresholds file %s: %w", path, err)
	}
	if err := th.Validate(); err != nil {
		return th, fmt.Errorf("invalid thresholds in %s: %w", path, err)
	}
	log.Printf("Loaded insight thresholds from %s", path)
	return th, nil
}
